// Package middleware adapts [rolegate.Engine] session resolution to
// net/http handlers.
//
// # Guards
//
//   - [Resolve] attaches the session state to the request and always continues.
//   - [Guard] does the same but rejects Invalid sessions with 401.
//   - [RequirePermission] rejects sessions lacking a permission key with 403.
//
// The token is read from the Authorization bearer header or the session
// cookie. When revalidation changed the claims the reissued token is written
// to the X-Session-Token header and the cookie before the handler runs.
//
// This package makes no authorization decisions of its own beyond the
// permission gate; session state comes from Engine.Authenticate.
package middleware
