package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppEnv    string
	Port      string
	LogLevel  string
	LogFormat string
	LogFile   string

	// Durable account storage (single JSON document).
	AccountsFile string

	// Identity provider login flow.
	ConsentURL   string
	SiteBaseURL  string
	LoginBaseURL string
	ClientID     string
	SiteKey      string
	LoginTimeout time.Duration

	// Consumer API and games.
	APIBaseURL  string
	GameBaseURL string
	APITimeout  time.Duration

	// Live feed.
	SocketURL      string
	Stations       []string
	PrimaryStation string

	// Token refresh scheduling.
	RefreshMargin time.Duration
	RefreshFloor  time.Duration

	// Catch behaviour.
	CatchDelayMin time.Duration
	CatchDelayMax time.Duration

	// Night window (local hours in Timezone during which some users
	// suppress catches).
	Timezone   string
	NightStart int
	NightEnd   int
}

func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:    getEnv("APP_ENV", "development"),
		Port:      getEnv("PORT", "8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		LogFile:   getEnv("LOG_FILE", ""),

		AccountsFile: getEnv("ACCOUNTS_FILE", "tokens.json"),

		ConsentURL:   getEnv("CONSENT_URL", "https://myprivacy.dpgmedia.nl/consent"),
		SiteBaseURL:  getEnv("SITE_BASE_URL", "https://qmusic.nl"),
		LoginBaseURL: getEnv("LOGIN_BASE_URL", "https://login.dpgmedia.nl"),
		ClientID:     getEnv("LOGIN_CLIENT_ID", "qmusicnl-web"),
		SiteKey:      getEnv("LOGIN_SITE_KEY", "ewjhEFT3YBV10QQd"),

		APIBaseURL:  getEnv("API_BASE_URL", "https://api.qmusic.nl"),
		GameBaseURL: getEnv("GAME_BASE_URL", "https://api.qmusic.nl/2.4/catch_the_summer_hit"),

		SocketURL:      getEnv("SOCKET_URL", "wss://socket.qmusic.nl/api/465/shxy8lro/websocket"),
		PrimaryStation: getEnv("PRIMARY_STATION", "qmusic_nl"),

		Timezone: getEnv("TIMEZONE", "Europe/Amsterdam"),
	}

	stations := getEnv("STATIONS", "qmusic_nl,nonstop_qnl,foute_uur_nl,hotnow_qnl,classics_qnl,nederlandstalig_qnl,one_world_radio_qnl,qmusic_limburg")
	for _, s := range strings.Split(stations, ",") {
		if s = strings.TrimSpace(s); s != "" {
			cfg.Stations = append(cfg.Stations, s)
		}
	}
	if len(cfg.Stations) == 0 {
		return nil, fmt.Errorf("STATIONS must list at least one station")
	}

	var err error
	if cfg.LoginTimeout, err = getDuration("LOGIN_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.APITimeout, err = getDuration("API_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.RefreshMargin, err = getDuration("TOKEN_REFRESH_MARGIN", time.Hour); err != nil {
		return nil, err
	}
	if cfg.RefreshFloor, err = getDuration("TOKEN_REFRESH_FLOOR", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.CatchDelayMin, err = getDuration("CATCH_DELAY_MIN", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.CatchDelayMax, err = getDuration("CATCH_DELAY_MAX", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.CatchDelayMax < cfg.CatchDelayMin {
		return nil, fmt.Errorf("CATCH_DELAY_MAX must not be smaller than CATCH_DELAY_MIN")
	}

	if cfg.NightStart, err = getInt("NIGHT_START_HOUR", 3); err != nil {
		return nil, err
	}
	if cfg.NightEnd, err = getInt("NIGHT_END_HOUR", 6); err != nil {
		return nil, err
	}
	if cfg.NightStart < 0 || cfg.NightStart > 23 || cfg.NightEnd < 0 || cfg.NightEnd > 23 {
		return nil, fmt.Errorf("night window hours must be between 0 and 23")
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("TIMEZONE is invalid: %w", err)
	}

	return cfg, nil
}

// Location resolves the configured timezone. Load has already validated it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 30s or 1h: %w", key, err)
	}
	return d, nil
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}
