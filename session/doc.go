// Package session defines the claims record carried in session tokens and the
// tagged session state produced by revalidation.
//
// # States
//
// A [State] is exactly one of Valid, RequiresLogout, or Invalid. Invalid is
// terminal for the request and is the zero value, so an uninitialized state
// never authorizes anything. RequiresLogout keeps the stale claims: until the
// user signs in again, authorization decisions run against the permissions
// the token was minted with.
//
// # Architecture boundaries
//
// This package holds data types only. Token signing lives in jwt, store
// lookups and revalidation rules live in the rolegate engine.
//
// # What this package must NOT do
//
//   - Import rolegate, jwt, or any store package.
//   - Perform I/O.
//   - Provide a way to clear RequiresLogout on an existing claims value.
package session
