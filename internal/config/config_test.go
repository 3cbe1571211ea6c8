package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "tokens.json", cfg.AccountsFile)
	assert.Equal(t, "qmusicnl-web", cfg.ClientID)
	assert.Equal(t, "qmusic_nl", cfg.PrimaryStation)
	assert.Equal(t, time.Hour, cfg.RefreshMargin)
	assert.Equal(t, 5*time.Second, cfg.CatchDelayMin)
	assert.Equal(t, 15*time.Second, cfg.CatchDelayMax)
	assert.Equal(t, 3, cfg.NightStart)
	assert.Equal(t, 6, cfg.NightEnd)
	assert.Len(t, cfg.Stations, 8)
	assert.Contains(t, cfg.Stations, "qmusic_nl")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("TOKEN_REFRESH_MARGIN", "30m")
	t.Setenv("STATIONS", " qmusic_nl , qmusic_be ")
	t.Setenv("NIGHT_START_HOUR", "23")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, 30*time.Minute, cfg.RefreshMargin)
	assert.Equal(t, []string{"qmusic_nl", "qmusic_be"}, cfg.Stations)
	assert.Equal(t, 23, cfg.NightStart)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad duration", "LOGIN_TIMEOUT", "soon"},
		{"bad night hour", "NIGHT_START_HOUR", "25"},
		{"non-numeric night hour", "NIGHT_END_HOUR", "six"},
		{"empty station list", "STATIONS", " , "},
		{"unknown timezone", "TIMEZONE", "Mars/Olympus_Mons"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadRejectsInvertedDelayWindow(t *testing.T) {
	t.Setenv("CATCH_DELAY_MIN", "20s")
	t.Setenv("CATCH_DELAY_MAX", "10s")

	_, err := Load()
	assert.Error(t, err)
}

func TestLocation(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	loc := cfg.Location()
	require.NotNil(t, loc)
	assert.Equal(t, "Europe/Amsterdam", loc.String())
}
