package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	s.echo.GET("/api/nowplaying/:station", s.handleNowPlaying)

	s.echo.GET("/api/accounts", s.handleListAccounts)
	s.echo.POST("/api/accounts", s.handleAddAccount)
	s.echo.DELETE("/api/accounts/:username", s.handleRemoveAccount)
	s.echo.POST("/api/accounts/:username/refresh", s.handleRefreshAccount)
	s.echo.GET("/api/accounts/:username/contestant", s.handleContestant)
	s.echo.GET("/api/accounts/:username/highscores", s.handleHighscores)
}
