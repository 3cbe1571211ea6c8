// Package feed maintains the provider's real-time websocket channel: station
// subscriptions, the double-encoded frame format, per-station now-playing
// snapshots, and fan-out to event consumers.
package feed
