// Package httpapi serves the sign-in, session status, and role
// administration endpoints over net/http.
//
// Sessions are resolved by the middleware package on every request.
// Read routes accept a session flagged requires_logout and judge it on its
// stale permissions; mutating role routes require a fully valid session.
package httpapi
