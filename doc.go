// Package rolegate keeps session authorization consistent with the role
// and identity records of a multi-tenant campaign platform.
//
// An [Engine] signs identities in and issues a signed session token whose
// claims carry the role, its version, and its permission keys. Every later
// use of the token goes through [Engine.Authenticate], which re-reads the
// identity and role from the store and yields one of three states: Valid,
// RequiresLogout (claims are stale but still usable for one step), or
// Invalid. Once a session is flagged RequiresLogout it stays flagged.
//
// # Architecture boundaries
//
// rolegate is the public surface: [Engine], [Builder], [Config] and value
// types. The revalidation and sign-in rules live in internal/flows as pure
// functions over dependency funcs; throttling and audit dispatch live under
// internal/. Persistence is behind [store.Store] with memory, Redis, and
// PostgreSQL implementations.
//
// # What this package must NOT do
//
//   - Cache role or identity records between calls. Every revalidation
//     reads the store.
//   - Retry store operations. A failing store fails closed.
//   - Import any sub-package that re-imports rolegate.
package rolegate
