// Package server exposes the bot's HTTP surface: health, metrics, the
// per-station now-playing snapshot, and account management for the
// presentation layer.
package server
