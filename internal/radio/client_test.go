package radio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *clockwork.FakeClock) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	clock := clockwork.NewFakeClock()
	return NewClient(srv.URL, srv.URL+"/game", 5*time.Second, clock), clock
}

func TestGameAvailable(t *testing.T) {
	tests := []struct {
		name      string
		state     string
		endsIn    time.Duration
		available bool
	}{
		{"running game", "in_progress", 24 * time.Hour, true},
		{"ended state", "ended", 24 * time.Hour, false},
		{"past end date", "in_progress", -time.Hour, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			endsAt := clockwork.NewFakeClock().Now().Add(tt.endsIn).Format(time.RFC3339)
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/game", r.URL.Path)
				fmt.Fprintf(w, `{"game":{"currentState":%q,"endsAt":%q}}`, tt.state, endsAt)
			}))

			assert.Equal(t, tt.available, client.GameAvailable(context.Background()))
		})
	}
}

func TestGameAvailableProviderDown(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	assert.False(t, client.GameAvailable(context.Background()))
}

func TestTrackOfTheDay(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/game/track_of_the_day", r.URL.Path)
		fmt.Fprint(w, `{"track_of_the_day":{"track_id":"t1","track_title":"Song X","artist_name":"Artist Y","points":100}}`)
	}))

	track, err := client.TrackOfTheDay(context.Background())
	require.NoError(t, err)
	require.NotNil(t, track)
	assert.Equal(t, "t1", track.TrackID)
	assert.Equal(t, "Song X", track.Title)
	assert.Equal(t, 100, track.Points)
}

func TestContestantSendsBearerToken(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"contestant":{"score":500,"tracks":[{"track_id":"t2","track_title":"Song Z","artist_name":"Artist W"}]}}`)
	}))

	contestant, err := client.Contestant(context.Background(), "tok-1")
	require.NoError(t, err)
	require.NotNil(t, contestant)
	assert.Equal(t, 500, contestant.Score)
	require.Len(t, contestant.Tracks, 1)
	assert.Equal(t, "Song Z", contestant.Tracks[0].Title)
}

func TestHighscoresPassesLimit(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/game/highscores", r.URL.Path)
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		fmt.Fprint(w, `{"highscores":{"me":{"rank":7,"score":900},"top":[{"name":"Ada","score":1200}]}}`)
	}))

	scores, err := client.Highscores(context.Background(), "tok-1", 25)
	require.NoError(t, err)
	require.NotNil(t, scores)
	assert.Equal(t, 7, scores.Me.Rank)
	require.Len(t, scores.Top, 1)
	assert.Equal(t, "Ada", scores.Top[0].Name)
}

func TestCatchTrack(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"200 counts as caught", http.StatusOK, false},
		{"201 counts as caught", http.StatusCreated, false},
		{"409 already caught", http.StatusConflict, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/game/catches", r.URL.Path)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

				var body map[string]string
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "t1", body["track_id"])

				w.WriteHeader(tt.status)
			}))

			err := client.CatchTrack(context.Background(), "tok-1", "t1")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSendAppMessage(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2.0/messages", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "hello studio", r.FormValue("text"))
		w.WriteHeader(http.StatusCreated)
	}))

	assert.NoError(t, client.SendAppMessage(context.Background(), "tok-1", "hello studio"))
}

func TestLatestMessages(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2.0/messages", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		fmt.Fprint(w, `{"messages":[{"id":1,"text":"first"},{"id":2,"text":"second"}]}`)
	}))

	messages, err := client.LatestMessages(context.Background(), "tok-1", 5)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "second", messages[1].Text)
}

func TestFindSoundAnswer(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2.7/actions/het-geluid/answers", r.URL.Path)
		fmt.Fprint(w, `{"answers":[{"answer":"Opening a can","count":12},{"answer":"Closing a door","count":4},{"answer":"CAN OPENER","count":2}]}`)
	}))

	matches, err := client.FindSoundAnswer(context.Background(), "can")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "Opening a can", matches[0].Answer)
	assert.Equal(t, "CAN OPENER", matches[1].Answer)
}

func TestFindSoundAnswerTooShort(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("short inputs must not hit the provider")
	}))

	matches, err := client.FindSoundAnswer(context.Background(), "ca")
	require.NoError(t, err)
	assert.Nil(t, matches)
}

func TestBreakerOpensOnConsecutiveServerErrors(t *testing.T) {
	var hits int
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	}))

	// Six consecutive 5xx responses trip the breaker; calls after that fail
	// fast without reaching the provider.
	for i := 0; i < 6; i++ {
		_, err := client.TrackOfTheDay(context.Background())
		require.Error(t, err)
	}
	require.Equal(t, 6, hits)

	_, err := client.TrackOfTheDay(context.Background())
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 6, hits)
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	var hits int
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusNotFound)
	}))

	// 4xx responses are the provider answering; they never trip the breaker.
	for i := 0; i < 10; i++ {
		_, err := client.TrackOfTheDay(context.Background())
		require.Error(t, err)
	}
	assert.Equal(t, 10, hits)
}
