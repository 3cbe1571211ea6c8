package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/hitcatch/internal/domain"
	"github.com/pscheid92/hitcatch/internal/metrics"
)

// Minter produces a fresh bearer token for an account, or the empty string
// when the login flow fails.
type Minter interface {
	ProcessLogin(ctx context.Context, username, password string) string
}

// Scheduler keeps every account's token fresh with one self-rescheduling
// one-shot timer per account. Accounts are added at arbitrary times, so their
// expiries are not synchronized; independent timers refresh each account
// exactly once, shortly before its own expiry, instead of sweeping all
// accounts on a global interval.
type Scheduler struct {
	bank   *Bank
	minter Minter
	clock  clockwork.Clock
	margin time.Duration
	floor  time.Duration

	mu     sync.Mutex
	timers map[string]clockwork.Timer
	closed bool
}

func NewScheduler(bank *Bank, minter Minter, clock clockwork.Clock, margin, floor time.Duration) *Scheduler {
	return &Scheduler{
		bank:   bank,
		minter: minter,
		clock:  clock,
		margin: margin,
		floor:  floor,
		timers: make(map[string]clockwork.Timer),
	}
}

// RefreshAll loads the bank and refreshes every account once without forcing.
// Each account's refresh arms its own timer, so no bulk timer is needed.
// Called once at process start.
func (s *Scheduler) RefreshAll(ctx context.Context) error {
	if err := s.bank.Load(); err != nil {
		return err
	}

	for _, acc := range s.bank.GetAll() {
		if err := s.RefreshOne(ctx, acc.Username, false, false); err != nil {
			slog.Warn("Initial token refresh failed", "username", acc.Username, "error", err)
		}
	}

	return s.bank.Save()
}

// RefreshOne mints a new token for the account when forced, when no token is
// present, or when the current token is (nearly) expired. A failed mint still
// overwrites the token slot: an absent token surfaces the failure instead of
// leaving a stale token that callers would keep presenting. The next refresh
// is always armed, so a failed mint retries after the floor delay rather than
// spinning.
func (s *Scheduler) RefreshOne(ctx context.Context, username string, persist, force bool) error {
	acc, ok := s.bank.Get(username)
	if !ok {
		return domain.ErrUserNotFound
	}

	expiresAt := acc.ExpiresAt
	if force || acc.Token == "" || s.bank.IsTokenExpired(acc.Token) {
		token := s.minter.ProcessLogin(ctx, acc.Username, acc.Password)
		if token == "" {
			metrics.TokenRefreshes.WithLabelValues("failed").Inc()
			slog.Warn("Token mint failed", "username", username)
		} else {
			metrics.TokenRefreshes.WithLabelValues("ok").Inc()
		}

		var err error
		expiresAt, err = s.bank.UpdateToken(username, token)
		if err != nil {
			return err
		}
	}

	if persist {
		if err := s.bank.Save(); err != nil {
			return err
		}
	}

	delay := s.refreshDelay(expiresAt)
	s.schedule(username, delay)
	slog.Info("Next token refresh scheduled", "username", username, "delay", delay)

	return nil
}

// refreshDelay computes the delay until the next refresh attempt:
// max(floor, expiry - now - margin). With no expiry (failed mint) this
// degenerates to the floor, producing a bounded retry loop.
func (s *Scheduler) refreshDelay(expiresAt int64) time.Duration {
	if expiresAt == 0 {
		return s.floor
	}
	delay := time.Duration(expiresAt-s.clock.Now().Unix())*time.Second - s.margin
	if delay < s.floor {
		return s.floor
	}
	return delay
}

func (s *Scheduler) schedule(username string, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if t, ok := s.timers[username]; ok {
		t.Stop()
	}
	s.timers[username] = s.clock.AfterFunc(delay, func() {
		if err := s.RefreshOne(context.Background(), username, true, true); err != nil {
			slog.Warn("Scheduled token refresh failed", "username", username, "error", err)
		}
	})
}

// Cancel stops the pending refresh timer for an account. Called when an
// account is removed so its timer cannot fire against a deleted record.
func (s *Scheduler) Cancel(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[username]; ok {
		t.Stop()
		delete(s.timers, username)
	}
}

// Stop cancels all pending refresh timers.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for username, t := range s.timers {
		t.Stop()
		delete(s.timers, username)
	}
}
