package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/gorilla/websocket"

	"github.com/pscheid92/hitcatch/internal/domain"
	"github.com/pscheid92/hitcatch/internal/metrics"
)

const (
	handshakeTimeout = 10 * time.Second
	// Station subscription ids start here; the provider only requires them
	// to be unique within the connection.
	firstSubscriptionID = 3
)

// Consumer receives normalized now-playing events. Consumers run isolated
// from each other; a panicking consumer never blocks the others or the feed.
type Consumer func(domain.SongInfo)

// Listener maintains the persistent live feed connection: it subscribes to
// the configured stations, decodes inbound frames, keeps a per-station
// now-playing snapshot, and fans events out to registered consumers.
// Lost connections are re-established with bounded backoff, forever.
type Listener struct {
	url      string
	stations []string
	dialer   *websocket.Dialer

	mu        sync.RWMutex
	consumers []Consumer
	playing   map[string]domain.SongInfo
	conn      *websocket.Conn

	cancel context.CancelFunc
	done   chan struct{}
}

func NewListener(url string, stations []string) *Listener {
	return &Listener{
		url:      url,
		stations: stations,
		dialer:   &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		playing:  make(map[string]domain.SongInfo),
		done:     make(chan struct{}),
	}
}

// Subscribe registers a consumer. Must be called before Start.
func (l *Listener) Subscribe(c Consumer) {
	l.mu.Lock()
	l.consumers = append(l.consumers, c)
	l.mu.Unlock()
}

// NowPlaying returns the last seen event for a station.
func (l *Listener) NowPlaying(station string) (domain.SongInfo, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	song, ok := l.playing[station]
	return song, ok
}

// Start runs the connect/read loop until Stop is called.
func (l *Listener) Start(ctx context.Context) {
	ctx, l.cancel = context.WithCancel(ctx)
	go l.run(ctx)
}

// Stop tears down the connection and ends the reconnect loop.
func (l *Listener) Stop() {
	if l.cancel == nil {
		return
	}
	l.cancel()
	l.closeConn()
	<-l.done
}

func (l *Listener) run(ctx context.Context) {
	defer close(l.done)

	for ctx.Err() == nil {
		conn, err := l.connect(ctx)
		if err != nil {
			return
		}
		l.consume(ctx, conn)

		if ctx.Err() == nil {
			metrics.FeedReconnects.Inc()
			slog.Info("Live feed connection lost, reconnecting")
		}
	}
}

// connect dials and subscribes with exponential backoff until it succeeds or
// the context ends. The original behaviour of retrying immediately on every
// close would spin against a down provider; the backoff is capped so recovery
// still happens within half a minute.
func (l *Listener) connect(ctx context.Context) (*websocket.Conn, error) {
	var conn *websocket.Conn

	err := retry.Do(
		func() error {
			c, _, err := l.dialer.DialContext(ctx, l.url, nil)
			if err != nil {
				return err
			}
			if err := l.subscribe(c); err != nil {
				c.Close()
				return err
			}
			conn = c
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(0),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("Live feed connect failed", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()

	slog.Info("Connected to live feed", "stations", len(l.stations))
	return conn, nil
}

func (l *Listener) subscribe(conn *websocket.Conn) error {
	for i, station := range l.stations {
		frame, err := joinFrame(firstSubscriptionID+i, station)
		if err != nil {
			return err
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			return err
		}
	}
	return nil
}

// consume reads frames in arrival order until the connection drops. Decode
// failures are per-frame: they are counted and skipped, never fatal.
func (l *Listener) consume(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		raw := string(data)
		if raw == "o" || raw == "h" {
			metrics.FeedFrames.WithLabelValues("keepalive").Inc()
			continue
		}

		song, err := DecodeFrame(raw)
		if err != nil {
			metrics.FeedFrames.WithLabelValues("invalid").Inc()
			slog.Debug("Dropping malformed frame", "error", err)
			continue
		}
		if song == nil {
			metrics.FeedFrames.WithLabelValues("dropped").Inc()
			continue
		}

		metrics.FeedFrames.WithLabelValues("event").Inc()
		l.mu.Lock()
		l.playing[song.Station] = *song
		l.mu.Unlock()

		l.dispatch(*song)
	}
}

// dispatch hands the event to every consumer on its own goroutine. Consumer
// failures stay with that consumer.
func (l *Listener) dispatch(song domain.SongInfo) {
	l.mu.RLock()
	consumers := make([]Consumer, len(l.consumers))
	copy(consumers, l.consumers)
	l.mu.RUnlock()

	for _, c := range consumers {
		go func(c Consumer) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("Feed consumer panicked", "panic", r)
				}
			}()
			c(song)
		}(c)
	}
}

func (l *Listener) closeConn() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		l.conn.Close()
		l.conn = nil
	}
}
