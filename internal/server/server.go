package server

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/pscheid92/hitcatch/internal/config"
	"github.com/pscheid92/hitcatch/internal/domain"
)

// AccountService is the credential store surface the API exposes.
type AccountService interface {
	Add(username, password, discordID string, persist bool) (domain.Account, error)
	Remove(username string) error
	Get(username string) (domain.Account, bool)
	GetAll() []domain.Account
}

// RefreshService triggers and cancels token refreshes.
type RefreshService interface {
	RefreshOne(ctx context.Context, username string, persist, force bool) error
	Cancel(username string)
}

// FeedSnapshot provides the per-station now-playing view.
type FeedSnapshot interface {
	NowPlaying(station string) (domain.SongInfo, bool)
}

// GameService is the per-user game surface the API proxies.
type GameService interface {
	ContestantInfo(ctx context.Context, username string) (*domain.Contestant, error)
	HighscoresForUser(ctx context.Context, username string, limit int) (*domain.Highscores, error)
	InitContestantTracks(ctx context.Context, username string) error
	RemoveUser(username string)
}

// ArtistService is the artist game's subscription surface.
type ArtistService interface {
	InitContestant(acc domain.Account)
	RemoveUser(username string)
}

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	accounts  AccountService
	refresher RefreshService
	feed      FeedSnapshot
	game      GameService
	artist    ArtistService
}

func NewServer(cfg *config.Config, accounts AccountService, refresher RefreshService, feed FeedSnapshot, game GameService, artist ArtistService) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	srv := &Server{
		echo:      e,
		config:    cfg,
		accounts:  accounts,
		refresher: refresher,
		feed:      feed,
		game:      game,
		artist:    artist,
	}
	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	return s.echo.Start(":" + s.config.Port)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP makes the server usable with httptest in handler tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
