package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/pscheid92/hitcatch/internal/domain"
)

const defaultHighscoreLimit = 10

// accountView is the API representation of an account. The password never
// leaves the store; the token is reduced to a presence flag.
type accountView struct {
	Username  string                 `json:"username"`
	DiscordID string                 `json:"discord_id,omitempty"`
	HasToken  bool                   `json:"has_token"`
	ExpiresAt int64                  `json:"expires_at,omitempty"`
	Settings  domain.AccountSettings `json:"settings"`
}

func viewOf(acc domain.Account) accountView {
	return accountView{
		Username:  acc.Username,
		DiscordID: acc.DiscordID,
		HasToken:  acc.Token != "",
		ExpiresAt: acc.ExpiresAt,
		Settings:  acc.Settings,
	}
}

func (s *Server) handleLiveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadiness(c echo.Context) error {
	if _, ok := s.feed.NowPlaying(s.config.PrimaryStation); !ok {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "waiting for feed"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleNowPlaying(c echo.Context) error {
	station := c.Param("station")
	song, ok := s.feed.NowPlaying(station)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no event seen for station")
	}
	return c.JSON(http.StatusOK, song)
}

func (s *Server) handleListAccounts(c echo.Context) error {
	accounts := s.accounts.GetAll()
	views := make([]accountView, 0, len(accounts))
	for _, acc := range accounts {
		views = append(views, viewOf(acc))
	}
	return c.JSON(http.StatusOK, views)
}

func (s *Server) handleAddAccount(c echo.Context) error {
	var req struct {
		Username  string `json:"username"`
		Password  string `json:"password"`
		DiscordID string `json:"discord_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Username == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username and password are required")
	}

	acc, err := s.accounts.Add(req.Username, req.Password, req.DiscordID, true)
	if err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			return echo.NewHTTPError(http.StatusConflict, "account already exists")
		}
		return err
	}

	// Mint the first token and join the games in the background; the caller
	// polls has_token to learn whether the credentials worked.
	go func() {
		// Detached from the request context: the refresh outlives the response.
		ctx := context.Background()
		if err := s.refresher.RefreshOne(ctx, acc.Username, true, true); err != nil {
			slog.Warn("Initial refresh for new account failed", "username", acc.Username, "error", err)
			return
		}
		if err := s.game.InitContestantTracks(ctx, acc.Username); err != nil {
			slog.Debug("Contestant init for new account failed", "username", acc.Username, "error", err)
		}
		if fresh, ok := s.accounts.Get(acc.Username); ok {
			s.artist.InitContestant(fresh)
		}
	}()

	return c.JSON(http.StatusCreated, viewOf(acc))
}

func (s *Server) handleRemoveAccount(c echo.Context) error {
	username := c.Param("username")

	if err := s.accounts.Remove(username); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "account not found")
		}
		return err
	}

	// Cascade: stop the pending refresh and drop the user from the games'
	// tracking sets.
	s.refresher.Cancel(username)
	s.game.RemoveUser(username)
	s.artist.RemoveUser(username)

	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleRefreshAccount(c echo.Context) error {
	username := c.Param("username")

	err := s.refresher.RefreshOne(c.Request().Context(), username, true, true)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "account not found")
		}
		return err
	}

	acc, _ := s.accounts.Get(username)
	return c.JSON(http.StatusOK, viewOf(acc))
}

func (s *Server) handleContestant(c echo.Context) error {
	username := c.Param("username")

	contestant, err := s.game.ContestantInfo(c.Request().Context(), username)
	if err != nil {
		return gameError(err)
	}
	if contestant == nil {
		return echo.NewHTTPError(http.StatusNotFound, "not entered into the game")
	}
	return c.JSON(http.StatusOK, contestant)
}

func (s *Server) handleHighscores(c echo.Context) error {
	username := c.Param("username")

	limit := defaultHighscoreLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}

	highscores, err := s.game.HighscoresForUser(c.Request().Context(), username, limit)
	if err != nil {
		return gameError(err)
	}
	return c.JSON(http.StatusOK, highscores)
}

func gameError(err error) error {
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "account not found")
	case errors.Is(err, domain.ErrNoToken):
		return echo.NewHTTPError(http.StatusConflict, "account has no valid token")
	case errors.Is(err, domain.ErrGameUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "game is not running")
	default:
		return echo.NewHTTPError(http.StatusBadGateway, "provider request failed")
	}
}
