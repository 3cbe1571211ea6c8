package game

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sourcegraph/conc"

	"github.com/pscheid92/hitcatch/internal/domain"
)

// MessageAPI is the subset of the radio client the artist game needs.
type MessageAPI interface {
	SendAppMessage(ctx context.Context, token, text string) error
}

// ArtistCatch is the result of one artist-catch evaluation, handed to the
// presentation layer for user notification.
type ArtistCatch struct {
	Artist   string
	Song     domain.SongInfo
	Upcoming bool
	// NotifyUsers are the usernames that want a notification for this play.
	NotifyUsers []string
	// MessagedUsers are the usernames for which an automatic app message
	// was delivered successfully.
	MessagedUsers []string
}

// Artist evaluates now-playing events against each account's tracked artist
// and optionally sends an automatic app message on the user's behalf.
type Artist struct {
	api      MessageAPI
	accounts AccountSource
	night    nightWindow

	mu       sync.RWMutex
	catchers map[string]map[string]struct{} // uppercase artist -> usernames
}

func NewArtist(api MessageAPI, accounts AccountSource, clock clockwork.Clock, loc *time.Location, nightStart, nightEnd int) *Artist {
	return &Artist{
		api:      api,
		accounts: accounts,
		night: nightWindow{
			clock: clock,
			loc:   loc,
			start: nightStart,
			end:   nightEnd,
		},
		catchers: make(map[string]map[string]struct{}),
	}
}

// InitContestants rebuilds the artist map from every account's settings.
func (g *Artist) InitContestants() {
	g.mu.Lock()
	g.catchers = make(map[string]map[string]struct{})
	g.mu.Unlock()

	for _, acc := range g.accounts.GetAll() {
		g.InitContestant(acc)
	}
}

// InitContestant subscribes one account to its configured artist.
func (g *Artist) InitContestant(acc domain.Account) {
	settings := acc.Settings.Artist
	if !settings.Enabled || settings.ArtistName == "" {
		return
	}

	artist := strings.ToUpper(settings.ArtistName)

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.catchers[artist]; !ok {
		g.catchers[artist] = make(map[string]struct{})
	}
	g.catchers[artist][acc.Username] = struct{}{}
}

// RemoveUser drops an account from every artist set.
func (g *Artist) RemoveUser(username string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, users := range g.catchers {
		delete(users, username)
	}
}

// CheckForCatch evaluates one event. The lookahead track is checked first:
// an upcoming notification replaces the live one so users get warned before
// the play rather than during it. Nothing fires during the night window.
// Returns nil when no user needs to hear about this event.
func (g *Artist) CheckForCatch(ctx context.Context, song domain.SongInfo) *ArtistCatch {
	if g.night.isNight() {
		return nil
	}

	if res := g.checkForUpcoming(song); res != nil {
		return res
	}

	artist := strings.ToUpper(song.Artist)
	users := g.subscribers(artist)
	if len(users) == 0 {
		return nil
	}

	var notify []string
	var toMessage []domain.Account

	for _, username := range users {
		acc, ok := g.accounts.Get(username)
		// Settings may have changed since the map was built; re-validate.
		if !ok || !acc.Settings.Artist.Enabled || !strings.EqualFold(acc.Settings.Artist.ArtistName, artist) {
			continue
		}

		if acc.Settings.Artist.Notify {
			notify = append(notify, username)
		}
		if acc.Settings.Artist.SendAppMessage {
			toMessage = append(toMessage, acc)
		}
	}

	if len(notify) == 0 && len(toMessage) == 0 {
		return nil
	}

	messaged := g.sendAppMessages(ctx, toMessage, artist)

	return &ArtistCatch{
		Artist:        artist,
		Song:          song,
		NotifyUsers:   notify,
		MessagedUsers: messaged,
	}
}

// checkForUpcoming handles the provider's lookahead field.
func (g *Artist) checkForUpcoming(song domain.SongInfo) *ArtistCatch {
	if song.Next == nil {
		return nil
	}

	artist := strings.ToUpper(song.Next.Artist)
	users := g.subscribers(artist)
	if len(users) == 0 {
		return nil
	}

	var notify []string
	for _, username := range users {
		acc, ok := g.accounts.Get(username)
		if !ok || !acc.Settings.Artist.Enabled || !strings.EqualFold(acc.Settings.Artist.ArtistName, artist) {
			continue
		}
		if acc.Settings.Artist.NotifyWhenUpcoming {
			notify = append(notify, username)
		}
	}

	if len(notify) == 0 {
		return nil
	}

	return &ArtistCatch{
		Artist:      artist,
		Song:        *song.Next,
		Upcoming:    true,
		NotifyUsers: notify,
	}
}

// sendAppMessages delivers the automatic app message for each opted-in
// account. Failures are per-account; the successes are reported back.
func (g *Artist) sendAppMessages(ctx context.Context, accounts []domain.Account, text string) []string {
	if len(accounts) == 0 {
		return nil
	}

	var mu sync.Mutex
	var sent []string
	var wg conc.WaitGroup

	for _, acc := range accounts {
		wg.Go(func() {
			if err := g.api.SendAppMessage(ctx, acc.Token, text); err != nil {
				slog.Warn("App message failed", "username", acc.Username, "error", err)
				return
			}
			mu.Lock()
			sent = append(sent, acc.Username)
			mu.Unlock()
		})
	}

	wg.Wait()
	return sent
}

func (g *Artist) subscribers(artist string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	users, ok := g.catchers[artist]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(users))
	for u := range users {
		out = append(out, u)
	}
	return out
}
