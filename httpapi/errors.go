package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/MrEthical07/rolegate"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, rolegate.ErrAuthentication):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, rolegate.ErrSignInRateLimited):
		return http.StatusTooManyRequests, "too many sign-in attempts"
	case errors.Is(err, rolegate.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, rolegate.ErrSessionInvalidated):
		return http.StatusUnauthorized, "session requires logout"
	case errors.Is(err, rolegate.ErrAuthorization):
		return http.StatusForbidden, "permission denied"
	case errors.Is(err, rolegate.ErrProtectedRole):
		return http.StatusForbidden, "role is protected"
	case errors.Is(err, rolegate.ErrInUse):
		return http.StatusBadRequest, "role is assigned to users"
	case errors.Is(err, rolegate.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, rolegate.ErrConflict):
		return http.StatusConflict, "already exists"
	case errors.Is(err, rolegate.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, rolegate.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "service unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (a *API) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := statusFor(err)
	if code >= http.StatusInternalServerError {
		a.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeError(w, code, msg)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid request body: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
