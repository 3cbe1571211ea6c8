// Package domain holds the shared model types and sentinel errors used
// across the bot: accounts and their per-feature settings, normalized
// now-playing events, and the game API's wire shapes.
package domain
