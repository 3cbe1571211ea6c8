// Package metrics defines the bot's prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FeedFrames counts inbound live-feed frames by decode result
	// (event, keepalive, dropped, invalid).
	FeedFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hitcatch_feed_frames_total",
		Help: "Inbound live feed frames by decode result.",
	}, []string{"result"})

	// FeedReconnects counts reconnect attempts on the live feed.
	FeedReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hitcatch_feed_reconnects_total",
		Help: "Live feed reconnect attempts.",
	})

	// TokenRefreshes counts token mint attempts by result (ok, failed).
	TokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hitcatch_token_refreshes_total",
		Help: "Token mint attempts by result.",
	}, []string{"result"})

	// Catches counts outbound catch calls by result (ok, failed, skipped).
	Catches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hitcatch_catches_total",
		Help: "Outbound catch attempts by result.",
	}, []string{"result"})
)
