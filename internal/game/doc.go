// Package game holds the catch evaluators: stateful consumers of the live
// feed that decide which accounts should react to a play and fire the
// corresponding best-effort API calls.
package game
