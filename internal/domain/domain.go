package domain

import "encoding/json"

// --- Model types ---

// Account represents one linked radio account. The username doubles as the
// unique key in the credential store and is typically an email address.
// Token and ExpiresAt are either both set or both zero; the bank maintains
// that invariant on every token update.
type Account struct {
	Username  string          `json:"username"`
	Password  string          `json:"password"`
	DiscordID string          `json:"discord_id,omitempty"`
	Token     string          `json:"token,omitempty"`
	ExpiresAt int64           `json:"expires,omitempty"`
	Settings  AccountSettings `json:"settings"`
}

// SummerHitSettings controls the track-catching game for one account.
type SummerHitSettings struct {
	Enabled      bool `json:"enabled"`
	Notify       bool `json:"notify"`
	CatchAtNight bool `json:"catch_at_night"`
}

// ArtistSettings controls the artist-catching game for one account.
type ArtistSettings struct {
	Enabled            bool   `json:"enabled"`
	ArtistName         string `json:"artist_name,omitempty"`
	Notify             bool   `json:"notify"`
	SendAppMessage     bool   `json:"send_app_message"`
	NotifyWhenUpcoming bool   `json:"notify_when_upcoming"`
}

// SoundGameSettings controls the daily sound-guessing game for one account.
type SoundGameSettings struct {
	AutoSignup bool `json:"auto_signup"`
}

// AccountSettings holds the per-feature toggles for one account.
type AccountSettings struct {
	SummerHit SummerHitSettings `json:"catch_the_summer_hit"`
	Artist    ArtistSettings    `json:"catch_the_artist"`
	SoundGame SoundGameSettings `json:"het_geluid"`
}

// DefaultSettings returns the settings applied to newly added accounts.
func DefaultSettings() AccountSettings {
	return AccountSettings{
		SummerHit: SummerHitSettings{
			Enabled:      true,
			Notify:       true,
			CatchAtNight: true,
		},
		Artist: ArtistSettings{
			Notify: true,
		},
	}
}

// UnmarshalJSON overlays a stored (possibly partial) settings document on top
// of the defaults, field by field per feature block. Older account files that
// predate a setting keep its default instead of dropping to the zero value.
func (s *AccountSettings) UnmarshalJSON(data []byte) error {
	*s = DefaultSettings()
	type alias AccountSettings
	return json.Unmarshal(data, (*alias)(s))
}

// SongInfo is one normalized "now playing" event on one station. Next, when
// present, is the provider's lookahead for the upcoming track.
type SongInfo struct {
	Station    string
	Title      string
	Artist     string
	Thumbnail  string
	SpotifyURL string
	TrackID    string
	Next       *SongInfo
}

// TrackInfo is a catchable track as reported by the game API.
type TrackInfo struct {
	TrackID   string `json:"track_id"`
	Title     string `json:"track_title"`
	Artist    string `json:"artist_name"`
	Thumbnail string `json:"track_thumbnail"`
	Points    int    `json:"points"`
}

// Contestant is a user's state in the track-catching game.
type Contestant struct {
	Score      int         `json:"score"`
	Multiplier *Multiplier `json:"multiplier,omitempty"`
	Tracks     []TrackInfo `json:"tracks"`
}

type Multiplier struct {
	Value     float64 `json:"value"`
	ExpiresAt int64   `json:"expires_at"`
}

// Highscores is the game leaderboard around one user.
type Highscores struct {
	Me  HighscoreRank    `json:"me"`
	Top []HighscoreEntry `json:"top"`
}

type HighscoreRank struct {
	Rank  int `json:"rank"`
	Score int `json:"score"`
}

type HighscoreEntry struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
	City  string `json:"city,omitempty"`
}

// AppMessage is one message in a user's app inbox.
type AppMessage struct {
	ID     json.Number `json:"id"`
	Text   string      `json:"text"`
	SentAt string      `json:"sent_at,omitempty"`
}

// SoundAnswer is one attempted answer in the daily sound-guessing game.
type SoundAnswer struct {
	Answer string `json:"answer"`
	Count  int    `json:"count,omitempty"`
}
