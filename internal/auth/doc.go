// Package auth owns the credential lifecycle: emulating the provider's
// browser login flow to mint bearer tokens, the durable username-to-account
// store, and the per-account self-rescheduling refresh timers.
package auth
