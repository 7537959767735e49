// Package jwt signs and verifies session tokens that carry an identity's role,
// role version, account version, permission keys, and the requires-logout flag.
//
// The server keeps no per-session state. Everything needed to detect a stale
// session is in the token and compared against the store on each request.
package jwt
