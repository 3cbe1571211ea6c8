package feed

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pscheid92/hitcatch/internal/domain"
)

// The live feed wraps every event twice: the websocket frame carries a JSON
// array holding one JSON-encoded string, whose "data" field is itself another
// JSON-encoded document. On top of that, quotes inside the innermost document
// arrive triple-escaped. normalizeFrame collapses one escaping level so the
// envelope parses; the replacement order is load-bearing.
func normalizeFrame(raw string) string {
	s := strings.ReplaceAll(raw, `\\\"`, `\\"`)
	return strings.ReplaceAll(s, `\"`, `"`)
}

// envelope is the middle layer: channel routing plus the re-encoded payload.
type envelope struct {
	Data string `json:"data"`
}

// playMessage is the innermost document. Only entity "plays" describes a
// track start; other entities are dropped.
type playMessage struct {
	Entity string       `json:"entity"`
	Action string       `json:"action"`
	Data   trackPayload `json:"data"`
}

type trackPayload struct {
	Station    string `json:"station"`
	Title      string `json:"title"`
	Thumbnail  string `json:"thumbnail"`
	SpotifyURL string `json:"spotify_url"`
	TrackID    string `json:"id"`
	Artist     struct {
		Name string `json:"name"`
	} `json:"artist"`
	Next *trackPayload `json:"next"`
}

// DecodeFrame unwraps one inbound frame into a normalized now-playing event.
// It returns (nil, nil) for frames that parse but carry no play event, and an
// error for malformed frames; callers drop both without affecting the
// connection.
func DecodeFrame(raw string) (*domain.SongInfo, error) {
	s := normalizeFrame(raw)

	start := strings.Index(s, `"`)
	end := strings.LastIndex(s, `"`)
	if start == -1 || end <= start {
		return nil, fmt.Errorf("frame has no embedded document")
	}
	inner := s[start+1 : end]

	var env envelope
	if err := json.Unmarshal([]byte(inner), &env); err != nil {
		return nil, fmt.Errorf("failed to parse frame envelope: %w", err)
	}

	var msg playMessage
	if err := json.Unmarshal([]byte(env.Data), &msg); err != nil {
		return nil, fmt.Errorf("failed to parse frame payload: %w", err)
	}

	if msg.Entity != "plays" {
		return nil, nil
	}

	song := songFromPayload(&msg.Data)
	if msg.Data.Next != nil {
		song.Next = songFromPayload(msg.Data.Next)
	}
	return song, nil
}

func songFromPayload(p *trackPayload) *domain.SongInfo {
	return &domain.SongInfo{
		Station:    p.Station,
		Title:      p.Title,
		Artist:     p.Artist.Name,
		Thumbnail:  p.Thumbnail,
		SpotifyURL: p.SpotifyURL,
		TrackID:    p.TrackID,
	}
}

// joinFrame builds the subscription frame for one station, in the provider's
// array-of-encoded-string format.
func joinFrame(id int, station string) (string, error) {
	type joinSub struct {
		Station string `json:"station"`
		Entity  string `json:"entity"`
		Action  string `json:"action"`
	}
	type joinRequest struct {
		Action  string  `json:"action"`
		ID      int     `json:"id"`
		Sub     joinSub `json:"sub"`
		Backlog int     `json:"backlog"`
	}

	inner, err := json.Marshal(joinRequest{
		Action:  "join",
		ID:      id,
		Sub:     joinSub{Station: station, Entity: "plays", Action: "play"},
		Backlog: 1,
	})
	if err != nil {
		return "", err
	}

	outer, err := json.Marshal([]string{string(inner)})
	if err != nil {
		return "", err
	}
	return string(outer), nil
}
