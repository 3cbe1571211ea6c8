package game

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sourcegraph/conc"

	"github.com/pscheid92/hitcatch/internal/domain"
	"github.com/pscheid92/hitcatch/internal/metrics"
)

const rolloverCheckInterval = 5 * time.Minute

// TrackAPI is the subset of the radio client the summer hit game needs.
type TrackAPI interface {
	GameAvailable(ctx context.Context) bool
	TrackOfTheDay(ctx context.Context) (*domain.TrackInfo, error)
	Contestant(ctx context.Context, token string) (*domain.Contestant, error)
	Highscores(ctx context.Context, token string, limit int) (*domain.Highscores, error)
	CatchTrack(ctx context.Context, token, trackID string) error
}

// AccountSource resolves usernames to accounts. Implemented by auth.Bank.
type AccountSource interface {
	Get(username string) (domain.Account, bool)
	GetAll() []domain.Account
}

// SummerHit evaluates now-playing events against the daily set of catchable
// tracks and fires a best-effort catch call for every eligible account.
//
// Targets are keyed by uppercase track title. The shared track of the day and
// each contestant's personal tracks are rebuilt wholesale on the daily
// rollover; individual users are re-initialized when their settings change.
type SummerHit struct {
	api      TrackAPI
	accounts AccountSource
	clock    clockwork.Clock
	night    nightWindow
	delayMin time.Duration
	delayMax time.Duration

	mu            sync.RWMutex
	catchers      map[string]*domain.CatchTarget
	trackOfTheDay *domain.TrackInfo
	totdUpdated   time.Time
	available     bool
}

type SummerHitOptions struct {
	Location   *time.Location
	NightStart int
	NightEnd   int
	DelayMin   time.Duration
	DelayMax   time.Duration
}

func NewSummerHit(api TrackAPI, accounts AccountSource, clock clockwork.Clock, opts SummerHitOptions) *SummerHit {
	return &SummerHit{
		api:      api,
		accounts: accounts,
		clock:    clock,
		night: nightWindow{
			clock: clock,
			loc:   opts.Location,
			start: opts.NightStart,
			end:   opts.NightEnd,
		},
		delayMin: opts.DelayMin,
		delayMax: opts.DelayMax,
		catchers: make(map[string]*domain.CatchTarget),
	}
}

// Init probes game availability and loads the initial catch targets.
func (g *SummerHit) Init(ctx context.Context) {
	available := g.api.GameAvailable(ctx)

	g.mu.Lock()
	g.available = available
	if !available {
		g.totdUpdated = g.clock.Now()
	}
	g.mu.Unlock()

	g.loadGameData(ctx)
}

// StartRolloverLoop polls for the daily rollover until ctx ends.
func (g *SummerHit) StartRolloverLoop(ctx context.Context) {
	go func() {
		ticker := g.clock.NewTicker(rolloverCheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				g.CheckForNewDay(ctx, false)
			}
		}
	}()
}

// CheckForNewDay reloads the catch targets when the provider's daily cadence
// has rolled over (or when forced). While the game is unavailable it probes
// availability again once per day.
func (g *SummerHit) CheckForNewDay(ctx context.Context, force bool) {
	g.mu.RLock()
	available := g.available
	updated := g.totdUpdated
	hadTrack := g.trackOfTheDay != nil
	g.mu.RUnlock()

	if !available {
		if !isNextDay(g.clock, g.night.loc, updated) {
			return
		}
		available = g.api.GameAvailable(ctx)

		g.mu.Lock()
		g.available = available
		g.totdUpdated = g.clock.Now()
		g.mu.Unlock()

		if !available {
			return
		}
		force = true
	}

	if force || !hadTrack || isNextDay(g.clock, g.night.loc, updated) {
		g.loadGameData(ctx)
	}
}

// Available reports whether the game is currently running.
func (g *SummerHit) Available() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.available
}

// TrackOfTheDay returns today's shared track, if known.
func (g *SummerHit) TrackOfTheDay() *domain.TrackInfo {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.trackOfTheDay == nil {
		return nil
	}
	track := *g.trackOfTheDay
	return &track
}

// CheckForCatches matches a now-playing event against the catch targets and
// attempts the catch for every eligible subscriber. Each attempt runs after
// an independent random delay inside the configured window, spreading the
// outbound burst and imitating human reaction time. Returns the usernames
// whose catch call succeeded.
//
// Matching requires the normalized title; when the target knows its artist
// and the event carries one, the artist must match too (case-insensitively).
func (g *SummerHit) CheckForCatches(ctx context.Context, title, artist string) []string {
	g.mu.RLock()
	target, ok := g.catchers[strings.ToUpper(title)]
	available := g.available
	var track domain.TrackInfo
	var users []string
	if ok {
		track = target.TrackInfo
		users = target.Users()
	}
	g.mu.RUnlock()

	if !available || !ok || len(users) == 0 {
		return nil
	}
	if track.Artist != "" && artist != "" && !strings.EqualFold(track.Artist, artist) {
		return nil
	}

	batch := uuid.NewString()
	log := slog.Default().With("batch", batch, "title", track.Title)
	log.Info("Catchable track is playing", "subscribers", len(users))

	var mu sync.Mutex
	var caught []string
	var wg conc.WaitGroup

	for _, username := range users {
		if !g.canCatchFor(username) {
			metrics.Catches.WithLabelValues("skipped").Inc()
			continue
		}

		wg.Go(func() {
			g.clock.Sleep(g.catchDelay())

			acc, ok := g.accounts.Get(username)
			if !ok {
				return
			}
			if err := g.api.CatchTrack(ctx, acc.Token, track.TrackID); err != nil {
				metrics.Catches.WithLabelValues("failed").Inc()
				log.Warn("Catch attempt failed", "username", username, "error", err)
				return
			}

			metrics.Catches.WithLabelValues("ok").Inc()
			mu.Lock()
			caught = append(caught, username)
			mu.Unlock()
		})
	}

	wg.Wait()
	log.Info("Catch batch finished", "caught", len(caught))
	return caught
}

// canCatchFor applies the per-account eligibility filter: the feature must be
// enabled, and users who opted out of night catching are skipped during the
// night window.
func (g *SummerHit) canCatchFor(username string) bool {
	acc, ok := g.accounts.Get(username)
	if !ok {
		return false
	}
	if !acc.Settings.SummerHit.Enabled {
		return false
	}
	if !acc.Settings.SummerHit.CatchAtNight && g.night.isNight() {
		return false
	}
	return true
}

func (g *SummerHit) catchDelay() time.Duration {
	if g.delayMax <= g.delayMin {
		return g.delayMin
	}
	return g.delayMin + rand.N(g.delayMax-g.delayMin)
}

// InitContestantTracks (re)subscribes one account to its catchable tracks:
// the shared track of the day plus the personal tracks the game API reports
// for that user. The user is first removed from every target so disabled or
// rotated tracks drop away.
func (g *SummerHit) InitContestantTracks(ctx context.Context, username string) error {
	if !g.Available() {
		return domain.ErrGameUnavailable
	}

	acc, ok := g.accounts.Get(username)
	if !ok {
		return domain.ErrUserNotFound
	}

	g.RemoveUser(username)

	if !acc.Settings.SummerHit.Enabled {
		return nil
	}

	contestant, err := g.api.Contestant(ctx, acc.Token)
	if err != nil || contestant == nil {
		// Not entered into the game on their app yet; nothing to track.
		slog.Debug("No contestant info", "username", username, "error", err)
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.trackOfTheDay != nil {
		if target, ok := g.catchers[strings.ToUpper(g.trackOfTheDay.Title)]; ok {
			target.AddUser(username)
		}
	}

	for _, track := range contestant.Tracks {
		key := strings.ToUpper(track.Title)
		target, ok := g.catchers[key]
		if !ok {
			target = domain.NewCatchTarget(track)
			g.catchers[key] = target
		}
		target.AddUser(username)
	}

	return nil
}

// RemoveUser drops an account from every catch target. Targets left without
// subscribers stay in the map; they are inert until the next rebuild.
func (g *SummerHit) RemoveUser(username string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, target := range g.catchers {
		target.RemoveUser(username)
	}
}

// Subscribers returns the usernames subscribed to a title, for diagnostics.
func (g *SummerHit) Subscribers(title string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	target, ok := g.catchers[strings.ToUpper(title)]
	if !ok {
		return nil
	}
	return target.Users()
}

// ContestantInfo is a passthrough lookup for the presentation layer.
func (g *SummerHit) ContestantInfo(ctx context.Context, username string) (*domain.Contestant, error) {
	acc, ok := g.accounts.Get(username)
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	if acc.Token == "" {
		return nil, domain.ErrNoToken
	}
	return g.api.Contestant(ctx, acc.Token)
}

// HighscoresForUser is a passthrough lookup for the presentation layer.
func (g *SummerHit) HighscoresForUser(ctx context.Context, username string, limit int) (*domain.Highscores, error) {
	acc, ok := g.accounts.Get(username)
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	if acc.Token == "" {
		return nil, domain.ErrNoToken
	}
	return g.api.Highscores(ctx, acc.Token, limit)
}

// loadGameData rebuilds the whole catch target map: the shared track of the
// day plus every enabled account's personal tracks.
func (g *SummerHit) loadGameData(ctx context.Context) {
	if !g.Available() {
		return
	}

	track, err := g.api.TrackOfTheDay(ctx)
	if err != nil {
		slog.Warn("Failed to load track of the day", "error", err)
		track = nil
	}

	g.mu.Lock()
	g.trackOfTheDay = track
	g.totdUpdated = g.clock.Now()
	g.catchers = make(map[string]*domain.CatchTarget)
	if track != nil {
		g.catchers[strings.ToUpper(track.Title)] = domain.NewCatchTarget(*track)
	}
	g.mu.Unlock()

	if track != nil {
		slog.Info("New track of the day", "title", track.Title, "artist", track.Artist, "points", track.Points)
	}

	for _, acc := range g.accounts.GetAll() {
		if err := g.InitContestantTracks(ctx, acc.Username); err != nil {
			slog.Debug("Skipping contestant init", "username", acc.Username, "error", err)
		}
	}
}
