package radio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"

	"github.com/pscheid92/hitcatch/internal/domain"
)

const breakerConsecutiveFailures = 5

// Client talks to the station's consumer API: catch calls, contestant and
// highscore lookups, app messages, and the sound game's answer list.
//
// All calls are context-bound with an explicit client timeout, and routed
// through a circuit breaker so a dead provider trips fast instead of
// stacking timeouts. Only network errors and 5xx responses count as breaker
// failures; a 4xx is the provider answering.
type Client struct {
	apiBase  string
	gameBase string
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker
	clock    clockwork.Clock
}

type apiResponse struct {
	status int
	body   []byte
}

func NewClient(apiBase, gameBase string, timeout time.Duration, clock clockwork.Clock) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "radio-api",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > breakerConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Radio API breaker state changed", "from", from.String(), "to", to.String())
		},
	})

	return &Client{
		apiBase:  strings.TrimRight(apiBase, "/"),
		gameBase: strings.TrimRight(gameBase, "/"),
		http:     &http.Client{Timeout: timeout},
		breaker:  breaker,
		clock:    clock,
	}
}

// --- Track catching game ---

// GameAvailable reports whether the catch game is currently running.
func (c *Client) GameAvailable(ctx context.Context) bool {
	resp, err := c.do(ctx, http.MethodGet, c.gameBase, "", nil, "")
	if err != nil || resp.status != http.StatusOK {
		return false
	}

	var body struct {
		Game struct {
			CurrentState string    `json:"currentState"`
			EndsAt       time.Time `json:"endsAt"`
		} `json:"game"`
	}
	if err := json.Unmarshal(resp.body, &body); err != nil {
		return false
	}

	return body.Game.CurrentState != "ended" && body.Game.EndsAt.After(c.clock.Now())
}

// TrackOfTheDay fetches today's shared catchable track.
func (c *Client) TrackOfTheDay(ctx context.Context) (*domain.TrackInfo, error) {
	resp, err := c.do(ctx, http.MethodGet, c.gameBase+"/track_of_the_day", "", nil, "")
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK {
		return nil, fmt.Errorf("track of the day request returned status %d", resp.status)
	}

	var body struct {
		TrackOfTheDay *domain.TrackInfo `json:"track_of_the_day"`
	}
	if err := json.Unmarshal(resp.body, &body); err != nil {
		return nil, fmt.Errorf("failed to parse track of the day: %w", err)
	}
	return body.TrackOfTheDay, nil
}

// Contestant fetches the authenticated user's game state, including their
// personal catchable tracks.
func (c *Client) Contestant(ctx context.Context, token string) (*domain.Contestant, error) {
	resp, err := c.do(ctx, http.MethodGet, c.gameBase+"/contestant", token, nil, "")
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK {
		return nil, fmt.Errorf("contestant request returned status %d", resp.status)
	}

	var body struct {
		Contestant *domain.Contestant `json:"contestant"`
	}
	if err := json.Unmarshal(resp.body, &body); err != nil {
		return nil, fmt.Errorf("failed to parse contestant: %w", err)
	}
	return body.Contestant, nil
}

// Highscores fetches the leaderboard around the authenticated user.
func (c *Client) Highscores(ctx context.Context, token string, limit int) (*domain.Highscores, error) {
	url := c.gameBase + "/highscores?limit=" + strconv.Itoa(limit)
	resp, err := c.do(ctx, http.MethodGet, url, token, nil, "")
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK {
		return nil, fmt.Errorf("highscores request returned status %d", resp.status)
	}

	var body struct {
		Highscores *domain.Highscores `json:"highscores"`
	}
	if err := json.Unmarshal(resp.body, &body); err != nil {
		return nil, fmt.Errorf("failed to parse highscores: %w", err)
	}
	return body.Highscores, nil
}

// CatchTrack confirms one track catch for the authenticated user. The
// provider answers 200 or 201 on success.
func (c *Client) CatchTrack(ctx context.Context, token, trackID string) error {
	payload, err := json.Marshal(map[string]string{"track_id": trackID})
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, http.MethodPost, c.gameBase+"/catches", token, bytes.NewReader(payload), "application/json")
	if err != nil {
		return err
	}
	if resp.status != http.StatusOK && resp.status != http.StatusCreated {
		return fmt.Errorf("catch call returned status %d", resp.status)
	}
	return nil
}

// --- App messages ---

// SendAppMessage posts a message to the studio as the authenticated user.
func (c *Client) SendAppMessage(ctx context.Context, token, text string) error {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := form.WriteField("text", text); err != nil {
		return err
	}
	if err := form.Close(); err != nil {
		return err
	}

	resp, err := c.do(ctx, http.MethodPost, c.apiBase+"/2.0/messages", token, &buf, form.FormDataContentType())
	if err != nil {
		return err
	}
	if resp.status != http.StatusOK && resp.status != http.StatusCreated {
		return fmt.Errorf("message call returned status %d", resp.status)
	}
	return nil
}

// LatestMessages fetches the authenticated user's most recent app messages.
func (c *Client) LatestMessages(ctx context.Context, token string, limit int) ([]domain.AppMessage, error) {
	url := c.apiBase + "/2.0/messages?limit=" + strconv.Itoa(limit)
	resp, err := c.do(ctx, http.MethodGet, url, token, nil, "")
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK {
		return nil, fmt.Errorf("messages request returned status %d", resp.status)
	}

	var body struct {
		Messages []domain.AppMessage `json:"messages"`
	}
	if err := json.Unmarshal(resp.body, &body); err != nil {
		return nil, fmt.Errorf("failed to parse messages: %w", err)
	}
	return body.Messages, nil
}

// --- Sound game ---

// SoundAnswers fetches all attempted answers for the current sound.
func (c *Client) SoundAnswers(ctx context.Context) ([]domain.SoundAnswer, error) {
	resp, err := c.do(ctx, http.MethodGet, c.apiBase+"/2.7/actions/het-geluid/answers", "", nil, "")
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK {
		return nil, fmt.Errorf("answers request returned status %d", resp.status)
	}

	var body struct {
		Answers []domain.SoundAnswer `json:"answers"`
	}
	if err := json.Unmarshal(resp.body, &body); err != nil {
		return nil, fmt.Errorf("failed to parse answers: %w", err)
	}
	return body.Answers, nil
}

// FindSoundAnswer returns already-attempted answers containing the input.
// Inputs shorter than three characters match nothing.
func (c *Client) FindSoundAnswer(ctx context.Context, input string) ([]domain.SoundAnswer, error) {
	if len(input) < 3 {
		return nil, nil
	}

	answers, err := c.SoundAnswers(ctx)
	if err != nil {
		return nil, err
	}

	var matches []domain.SoundAnswer
	for _, a := range answers {
		if strings.Contains(strings.ToLower(a.Answer), strings.ToLower(input)) {
			matches = append(matches, a)
		}
	}
	return matches, nil
}

// --- Transport ---

func (c *Client) do(ctx context.Context, method, url, token string, body io.Reader, contentType string) (*apiResponse, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return nil, err
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("provider returned status %d", resp.StatusCode)
		}
		return &apiResponse{status: resp.StatusCode, body: data}, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*apiResponse), nil
}
