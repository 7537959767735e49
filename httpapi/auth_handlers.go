package httpapi

import (
	"net/http"

	"github.com/MrEthical07/rolegate"
	"github.com/MrEthical07/rolegate/middleware"
	"github.com/MrEthical07/rolegate/session"
)

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInResponse struct {
	Token       string         `json:"token"`
	Status      session.Status `json:"status"`
	RoleID      string         `json:"role_id"`
	Permissions []string       `json:"permissions"`
	ExpiresAt   int64          `json:"expires_at"`
}

type sessionResponse struct {
	Status session.Status `json:"status"`
}

func (a *API) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	ctx := rolegate.WithUserAgent(rolegate.WithClientIP(r.Context(), middleware.ClientIP(r)), r.UserAgent())
	token, claims, err := a.engine.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		a.writeEngineError(w, r, err)
		return
	}

	middleware.SetSessionCookie(w, a.engine.Config(), token, claims.ExpiresAt)
	writeJSON(w, http.StatusOK, signInResponse{
		Token:       token,
		Status:      session.StatusOK,
		RoleID:      claims.RoleID,
		Permissions: claims.PermissionKeys(),
		ExpiresAt:   claims.ExpiresAt.Unix(),
	})
}

// handleSession answers the watchdog poll. requires_logout is a 200; only
// unauthenticated is a 401. A store outage is a 503 so clients retry
// instead of signing out.
func (a *API) handleSession(w http.ResponseWriter, r *http.Request) {
	st, ok := middleware.StateFromContext(r.Context())
	if !ok {
		st = session.NewInvalid(session.ReasonNoToken)
	}
	w.Header().Set("Cache-Control", "no-store")
	if st.Unavailable() {
		writeError(w, http.StatusServiceUnavailable, "session store unavailable")
		return
	}
	status := a.engine.Status(st)
	writeJSON(w, status.HTTPCode(), sessionResponse{Status: status})
}

func (a *API) handleSignOut(w http.ResponseWriter, r *http.Request) {
	middleware.ClearSessionCookie(w, a.engine.Config())
	w.WriteHeader(http.StatusNoContent)
}
