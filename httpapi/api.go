package httpapi

import (
	"net/http"

	"github.com/MrEthical07/rolegate"
	"github.com/MrEthical07/rolegate/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// TenantHeader names the client account a request acts on. It is recorded
// on audit events.
const TenantHeader = "X-Tenant-ID"

// Options configures an API.
type Options struct {
	Logger *zap.Logger
	// Registerer receives the HTTP metrics. Nil disables them.
	Registerer prometheus.Registerer
}

// API is the HTTP layer over an Engine.
type API struct {
	engine  *rolegate.Engine
	mux     *http.ServeMux
	log     *zap.Logger
	metrics *httpMetrics
}

// New registers every route on a fresh mux.
func New(engine *rolegate.Engine, opts Options) (*API, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	a := &API{
		engine: engine,
		mux:    http.NewServeMux(),
		log:    log.Named("httpapi"),
	}
	if opts.Registerer != nil {
		m, err := newHTTPMetrics(opts.Registerer)
		if err != nil {
			return nil, err
		}
		a.metrics = m
	}

	resolve := middleware.Resolve(engine, middleware.WithLogger(a.log))
	guard := middleware.Guard(engine, middleware.WithLogger(a.log))
	perm := func(key string, h http.HandlerFunc) http.Handler {
		return guard(middleware.RequirePermission(key)(h))
	}

	// auth
	a.mux.HandleFunc("POST /api/auth/signin", a.handleSignIn)
	a.mux.Handle("GET /api/auth/session", resolve(http.HandlerFunc(a.handleSession)))
	a.mux.HandleFunc("POST /api/auth/signout", a.handleSignOut)

	// catalog and roles
	a.mux.Handle("GET /api/permissions", perm("roles:view", a.handleCatalog))
	a.mux.Handle("GET /api/roles", perm("roles:view", a.handleListRoles))
	a.mux.Handle("GET /api/roles/{id}/permissions", perm("roles:view", a.handleRolePermissions))
	a.mux.Handle("PUT /api/roles/{id}/permissions", perm("roles:edit", a.fresh(a.handleReplacePermissions)))
	a.mux.Handle("DELETE /api/roles/{id}", perm("roles:delete", a.fresh(a.handleDeleteRole)))

	// demo protected read
	a.mux.Handle("GET /api/campaigns", perm("campaigns:view", a.handleCampaigns))

	a.mux.HandleFunc("GET /healthz", a.handleHealthz)

	return a, nil
}

// Handler returns the instrumented root handler.
func (a *API) Handler() http.Handler {
	var h http.Handler = withTenant(a.mux)
	if a.metrics != nil {
		h = a.metrics.instrument(h, a.route)
	}
	return h
}

// route returns the mux pattern serving r, used as a bounded metrics label.
func (a *API) route(r *http.Request) string {
	_, pattern := a.mux.Handler(r)
	if pattern == "" {
		return "unmatched"
	}
	return pattern
}

func withTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tenant := r.Header.Get(TenantHeader); tenant != "" {
			r = r.WithContext(rolegate.WithTenantID(r.Context(), tenant))
		}
		next.ServeHTTP(w, r)
	})
}

// fresh rejects sessions flagged requires_logout before a mutating handler runs.
func (a *API) fresh(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, _ := middleware.StateFromContext(r.Context())
		if err := rolegate.RequireFresh(st); err != nil {
			a.writeEngineError(w, r, err)
			return
		}
		next(w, r)
	}
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h := a.engine.Health(r.Context())
	code := http.StatusOK
	status := "ok"
	if !h.StoreAvailable {
		code = http.StatusServiceUnavailable
		status = "degraded"
	}
	writeJSON(w, code, map[string]any{
		"status":         status,
		"store_latency":  h.StoreLatency.String(),
		"redis_throttle": h.RedisThrottle,
		"audit_dropped":  a.engine.AuditDropped(),
	})
}
