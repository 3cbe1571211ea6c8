package game

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// nightWindow is the configured local-time range during which some users
// suppress catches.
type nightWindow struct {
	clock clockwork.Clock
	loc   *time.Location
	start int // inclusive hour
	end   int // exclusive hour
}

// isNight reports whether the current local hour falls inside the window.
// A window may wrap midnight (e.g. 23 to 6).
func (w nightWindow) isNight() bool {
	hour := w.clock.Now().In(w.loc).Hour()
	if w.start <= w.end {
		return hour >= w.start && hour < w.end
	}
	return hour >= w.start || hour < w.end
}

// isNextDay reports whether the current local date differs from t's.
// A zero t counts as a new day.
func isNextDay(clock clockwork.Clock, loc *time.Location, t time.Time) bool {
	if t.IsZero() {
		return true
	}
	now := clock.Now().In(loc)
	then := t.In(loc)
	return now.Year() != then.Year() || now.Month() != then.Month() || now.Day() != then.Day()
}
