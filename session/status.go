package session

import "net/http"

// Status is the wire value reported by the session status endpoint.
type Status string

const (
	StatusOK              Status = "ok"
	StatusUnauthenticated Status = "unauthenticated"
	StatusRequiresLogout  Status = "requires_logout"
)

// HTTPCode returns the HTTP status code the status endpoint uses for s.
// Only unauthenticated maps to 401; requires_logout is a successful answer.
func (s Status) HTTPCode() int {
	if s == StatusUnauthenticated {
		return http.StatusUnauthorized
	}
	return http.StatusOK
}

// ParseStatus converts a wire string to a Status.
func ParseStatus(v string) (Status, bool) {
	switch Status(v) {
	case StatusOK, StatusUnauthenticated, StatusRequiresLogout:
		return Status(v), true
	default:
		return "", false
	}
}
