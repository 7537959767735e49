package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/rolegate"
	"github.com/MrEthical07/rolegate/permission"
	"github.com/MrEthical07/rolegate/session"
	"go.uber.org/zap"
)

// ReissueHeader carries a re-signed session token back to the client.
const ReissueHeader = "X-Session-Token"

type stateContextKey struct{}

// StateFromContext returns the session state attached by [Resolve] or [Guard].
func StateFromContext(ctx context.Context) (session.State, bool) {
	st, ok := ctx.Value(stateContextKey{}).(session.State)
	return st, ok
}

// WithState attaches st to ctx.
func WithState(ctx context.Context, st session.State) context.Context {
	return context.WithValue(ctx, stateContextKey{}, st)
}

// Option configures the guards.
type Option func(*options)

type options struct {
	log *zap.Logger
}

// WithLogger sets the logger used for reissue failures.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

func buildOptions(opts []Option) options {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	return o
}

// Resolve authenticates the request and attaches the resulting state,
// including Invalid ones, then calls next.
func Resolve(engine *rolegate.Engine, opts ...Option) func(http.Handler) http.Handler {
	o := buildOptions(opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r = resolve(engine, o, w, r)
			next.ServeHTTP(w, r)
		})
	}
}

// Guard authenticates the request and rejects Invalid sessions with 401, or
// 503 when the store could not be reached. Valid and RequiresLogout sessions
// continue; routes decide what a flagged session may do.
func Guard(engine *rolegate.Engine, opts ...Option) func(http.Handler) http.Handler {
	o := buildOptions(opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r = resolve(engine, o, w, r)
			st, _ := StateFromContext(r.Context())
			if st.Unavailable() {
				WriteError(w, http.StatusServiceUnavailable, "session store unavailable")
				return
			}
			if !st.Authenticated() {
				WriteError(w, http.StatusUnauthorized, "unauthenticated")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission rejects requests whose session lacks key. It must run
// after [Guard] or [Resolve].
func RequirePermission(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st, ok := StateFromContext(r.Context())
			if !ok || !st.Authenticated() {
				WriteError(w, http.StatusUnauthorized, "unauthenticated")
				return
			}
			if !permission.HasPermission(st.Permissions(), key) {
				WriteError(w, http.StatusForbidden, "permission denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func resolve(engine *rolegate.Engine, o options, w http.ResponseWriter, r *http.Request) *http.Request {
	ctx := rolegate.WithUserAgent(rolegate.WithClientIP(r.Context(), ClientIP(r)), r.UserAgent())
	if engine == nil {
		return r.WithContext(WithState(ctx, session.NewInvalid(session.ReasonStoreUnavailable)))
	}

	cookieName := engine.Config().Security.CookieName
	st, reissued, err := engine.Authenticate(ctx, TokenFromRequest(r, cookieName))
	if err != nil {
		o.log.Warn("session reissue failed", zap.Error(err))
	}
	if reissued != "" {
		w.Header().Set(ReissueHeader, reissued)
		var expiresAt time.Time
		if c, ok := st.Claims(); ok {
			expiresAt = c.ExpiresAt
		}
		SetSessionCookie(w, engine.Config(), reissued, expiresAt)
	}
	return r.WithContext(WithState(ctx, st))
}

// TokenFromRequest returns the bearer token, falling back to the session
// cookie.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return token
	}
	if cookieName == "" {
		return ""
	}
	c, err := r.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

// ClientIP returns the remote host of r without its port.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// WriteError writes {"error": msg} with code.
func WriteError(w http.ResponseWriter, code int, msg string) {
	WriteJSON(w, code, map[string]string{"error": msg})
}

// WriteJSON writes v as a JSON body with code.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
