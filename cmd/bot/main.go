package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"

	"github.com/pscheid92/hitcatch/internal/auth"
	"github.com/pscheid92/hitcatch/internal/config"
	"github.com/pscheid92/hitcatch/internal/domain"
	"github.com/pscheid92/hitcatch/internal/feed"
	"github.com/pscheid92/hitcatch/internal/game"
	"github.com/pscheid92/hitcatch/internal/logging"
	"github.com/pscheid92/hitcatch/internal/radio"
	"github.com/pscheid92/hitcatch/internal/server"
)

func setupConfig() *config.Config {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized.
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func runGracefulShutdown(srv *server.Server, listener *feed.Listener, scheduler *auth.Scheduler, cancel context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		cancel()
		listener.Stop()
		scheduler.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()
	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	slog.Info("Bot starting", "env", cfg.AppEnv, "port", cfg.Port, "stations", len(cfg.Stations))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Credential lifecycle: store, login emulator, refresh scheduler.
	bank := auth.NewBank(afero.NewOsFs(), cfg.AccountsFile, clock, cfg.RefreshMargin)
	authenticator := auth.NewAuthenticator(cfg)
	scheduler := auth.NewScheduler(bank, authenticator, clock, cfg.RefreshMargin, cfg.RefreshFloor)

	if err := scheduler.RefreshAll(ctx); err != nil {
		slog.Error("Failed to load accounts", "error", err)
		os.Exit(1)
	}
	slog.Info("Accounts loaded", "count", bank.Count())

	// Consumer API client and the games.
	client := radio.NewClient(cfg.APIBaseURL, cfg.GameBaseURL, cfg.APITimeout, clock)

	summerHit := game.NewSummerHit(client, bank, clock, game.SummerHitOptions{
		Location:   cfg.Location(),
		NightStart: cfg.NightStart,
		NightEnd:   cfg.NightEnd,
		DelayMin:   cfg.CatchDelayMin,
		DelayMax:   cfg.CatchDelayMax,
	})
	summerHit.Init(ctx)
	summerHit.StartRolloverLoop(ctx)

	artist := game.NewArtist(client, bank, clock, cfg.Location(), cfg.NightStart, cfg.NightEnd)
	artist.InitContestants()

	// Live feed with the games as consumers. Only the primary station's
	// plays are catchable; the other stations feed the now-playing snapshot.
	listener := feed.NewListener(cfg.SocketURL, cfg.Stations)
	listener.Subscribe(func(song domain.SongInfo) {
		if song.Station != cfg.PrimaryStation {
			return
		}
		if caught := summerHit.CheckForCatches(ctx, song.Title, song.Artist); len(caught) > 0 {
			slog.Info("Caught track", "title", song.Title, "users", caught)
		}
	})
	listener.Subscribe(func(song domain.SongInfo) {
		if song.Station != cfg.PrimaryStation {
			return
		}
		if res := artist.CheckForCatch(ctx, song); res != nil {
			slog.Info("Tracked artist playing",
				"artist", res.Artist, "upcoming", res.Upcoming,
				"notify", res.NotifyUsers, "messaged", res.MessagedUsers)
		}
	})
	listener.Start(ctx)

	srv := server.NewServer(cfg, bank, scheduler, listener, summerHit, artist)
	done := runGracefulShutdown(srv, listener, scheduler, cancel)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
	slog.Info("Shutdown complete")
}
