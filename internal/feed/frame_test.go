package feed

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeFrame wraps a payload the way the provider does: the payload document
// is JSON-encoded into the envelope's data field, and the envelope is
// JSON-encoded again into a one-element array frame.
func makeFrame(t *testing.T, payload any) string {
	t.Helper()

	inner, err := json.Marshal(payload)
	require.NoError(t, err)

	env, err := json.Marshal(map[string]string{"data": string(inner)})
	require.NoError(t, err)

	outer, err := json.Marshal([]string{string(env)})
	require.NoError(t, err)

	return "a" + string(outer)
}

func playPayload(station, title, artist string) map[string]any {
	return map[string]any{
		"entity": "plays",
		"action": "play",
		"data": map[string]any{
			"station":     station,
			"title":       title,
			"thumbnail":   "/thumbs/1.jpg",
			"spotify_url": "https://open.spotify.com/track/1",
			"artist":      map[string]string{"name": artist},
		},
	}
}

func TestDecodeFramePlayEvent(t *testing.T) {
	frame := makeFrame(t, playPayload("qmusic_nl", "Song X", "Artist Y"))

	song, err := DecodeFrame(frame)
	require.NoError(t, err)
	require.NotNil(t, song)

	assert.Equal(t, "qmusic_nl", song.Station)
	assert.Equal(t, "Song X", song.Title)
	assert.Equal(t, "Artist Y", song.Artist)
	assert.Equal(t, "/thumbs/1.jpg", song.Thumbnail)
	assert.Equal(t, "https://open.spotify.com/track/1", song.SpotifyURL)
	assert.Nil(t, song.Next)
}

func TestDecodeFrameWithLookahead(t *testing.T) {
	payload := playPayload("qmusic_nl", "Song X", "Artist Y")
	payload["data"].(map[string]any)["next"] = map[string]any{
		"station": "qmusic_nl",
		"title":   "Song Z",
		"artist":  map[string]string{"name": "Artist W"},
	}

	song, err := DecodeFrame(makeFrame(t, payload))
	require.NoError(t, err)
	require.NotNil(t, song)
	require.NotNil(t, song.Next)

	assert.Equal(t, "Song Z", song.Next.Title)
	assert.Equal(t, "Artist W", song.Next.Artist)
}

// The wire format triple-escapes quotes inside the innermost document; the
// decoder must collapse one escaping level before parsing. Literal captured
// shape, not re-derived through the encoder.
func TestDecodeFrameEscapingQuirk(t *testing.T) {
	frame := `a["{\"data\":\"{\\\"entity\\\":\\\"plays\\\",\\\"data\\\":{\\\"station\\\":\\\"qmusic_nl\\\",\\\"title\\\":\\\"Song X\\\",\\\"artist\\\":{\\\"name\\\":\\\"Artist Y\\\"}}}\"}"]`

	song, err := DecodeFrame(frame)
	require.NoError(t, err)
	require.NotNil(t, song)

	assert.Equal(t, "Song X", song.Title)
	assert.Equal(t, "Artist Y", song.Artist)
}

func TestDecodeFrameDropsOtherEntities(t *testing.T) {
	payload := playPayload("qmusic_nl", "Song X", "Artist Y")
	payload["entity"] = "listeners"

	song, err := DecodeFrame(makeFrame(t, payload))
	require.NoError(t, err)
	assert.Nil(t, song)
}

func TestDecodeFrameMalformed(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{"no embedded document", "a[]"},
		{"not json", `a["{not json at all"]`},
		{"payload not json", `a["{\"data\":\"also not json\"}"]`},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			song, err := DecodeFrame(tt.frame)
			assert.Error(t, err)
			assert.Nil(t, song)
		})
	}
}

func TestJoinFrame(t *testing.T) {
	frame, err := joinFrame(3, "qmusic_nl")
	require.NoError(t, err)

	// The frame is an array holding one JSON-encoded string.
	var outer []string
	require.NoError(t, json.Unmarshal([]byte(frame), &outer))
	require.Len(t, outer, 1)

	var req struct {
		Action string `json:"action"`
		ID     int    `json:"id"`
		Sub    struct {
			Station string `json:"station"`
			Entity  string `json:"entity"`
			Action  string `json:"action"`
		} `json:"sub"`
		Backlog int `json:"backlog"`
	}
	require.NoError(t, json.Unmarshal([]byte(outer[0]), &req))

	assert.Equal(t, "join", req.Action)
	assert.Equal(t, 3, req.ID)
	assert.Equal(t, "qmusic_nl", req.Sub.Station)
	assert.Equal(t, "plays", req.Sub.Entity)
	assert.Equal(t, "play", req.Sub.Action)
	assert.Equal(t, 1, req.Backlog)
}
