// Package rate throttles failed sign-in attempts per email and per client IP.
//
// # Window semantics
//
// The Redis [Limiter] keeps fixed-window counters: INCR + EXPIRE on the first
// hit. Key prefixes (after the configured namespace):
//   - si:  sign-in failures per email
//   - sip: sign-in failures per IP
//
// The in-process [Local] throttle uses a token bucket per key that refills
// one attempt every Cooldown/MaxAttempts.
//
// # What this package must NOT do
//
//   - Decide what counts as a failure (the sign-in flow does).
//   - Be imported outside the rolegate module.
package rate
