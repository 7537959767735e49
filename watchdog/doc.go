// Package watchdog keeps a signed-in client in step with its server-side
// session.
//
// A [Watchdog] polls the session status endpoint on navigation and on a
// heartbeat that only runs while the client is visible. The first
// requires_logout or unauthenticated answer moves it to Prompting; once the
// prompt returns, for any reason, the session is signed out and the watchdog
// stops. Transport failures are logged and never sign anyone out.
package watchdog
