// Package config loads the bot configuration from environment variables.
package config
