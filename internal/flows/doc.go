// Package flows contains pure-function orchestrators for the Engine's
// sign-in, mint, and revalidation operations.
//
// Each flow function (RunSignIn, RunMint, RunRevalidate) accepts a typed
// dependency struct of funcs and returns results without side-effects beyond
// those dependencies, so every rule can be unit tested with stub lookups.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the store, password verifier, and rate
// limiter. They do NOT own any of these resources; ownership stays with the
// Engine, which also signs tokens, records metrics, and emits audit events.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import rolegate (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency funcs.
package flows
