package rolegate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/rolegate/internal/audit"
	"github.com/MrEthical07/rolegate/internal/flows"
	"github.com/MrEthical07/rolegate/internal/rate"
	"github.com/MrEthical07/rolegate/jwt"
	"github.com/MrEthical07/rolegate/password"
	"github.com/MrEthical07/rolegate/permission"
	"github.com/MrEthical07/rolegate/session"
	"github.com/MrEthical07/rolegate/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine signs identities in, re-derives session claims from the store on
// every use, and gates operations on permission keys. It is safe for
// concurrent use once built.
type Engine struct {
	config   Config
	store    store.Store
	catalog  *permission.Catalog
	tokens   *jwt.Manager
	hasher   *password.Hasher
	verifier *password.Verifier
	throttle rate.Throttle
	attempts *rate.Limiter
	audit    *audit.Dispatcher
	metrics  *Metrics
	log      *zap.Logger
	now      func() time.Time
	flows    flows.Service
}

// Close flushes pending audit events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were discarded under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the current counters and latency buckets. Maps are
// never nil, even on a nil Engine.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
			Sums:       map[MetricID]time.Duration{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// Catalog returns the permission catalog role edits are validated against.
func (e *Engine) Catalog() *permission.Catalog {
	return e.catalog
}

/*
====================================
SIGN IN
====================================
*/

// SignIn verifies credentials and returns a signed session token with its
// claims. Unknown email, wrong password, and a non-active identity all
// return ErrAuthentication.
func (e *Engine) SignIn(ctx context.Context, email, password string) (string, Claims, error) {
	if e == nil || !e.flows.Initialized() {
		return "", Claims{}, ErrEngineNotReady
	}

	res := e.flows.SignIn(ctx, email, password)
	switch res.Failure {
	case flows.SignInFailureNone:
	case flows.SignInFailureRateLimited:
		e.metricInc(MetricSignInRateLimited)
		e.emitAudit(ctx, auditEventSignInRateLimited, false, res.Identity.ID, "", ErrSignInRateLimited, nil)
		return "", Claims{}, ErrSignInRateLimited
	case flows.SignInFailureInvalidCredentials, flows.SignInFailureInactive:
		e.metricInc(MetricSignInFailure)
		e.emitAudit(ctx, auditEventSignInFailure, false, res.Identity.ID, res.Identity.RoleID, ErrAuthentication, func() map[string]string {
			if res.Failure == flows.SignInFailureInactive {
				return map[string]string{"cause": "inactive"}
			}
			return nil
		})
		return "", Claims{}, ErrAuthentication
	default:
		e.metricInc(MetricSignInFailure)
		err := fmt.Errorf("%w: %v", ErrStoreUnavailable, res.Err)
		e.log.Warn("sign-in backend failure", zap.Error(res.Err))
		e.emitAudit(ctx, auditEventSignInFailure, false, "", "", err, nil)
		return "", Claims{}, err
	}

	token, claims, err := e.issue(res.Claims)
	if err != nil {
		e.metricInc(MetricSignInFailure)
		e.log.Error("sign session token", zap.String("identity_id", res.Identity.ID), zap.Error(err))
		return "", Claims{}, err
	}

	e.metricInc(MetricSignInSuccess)
	e.emitAudit(ctx, auditEventSignInSuccess, true, claims.IdentityID, claims.RoleID, nil, nil)
	if res.Rehashed {
		e.metricInc(MetricPasswordRehashed)
		e.emitAudit(ctx, auditEventPasswordRehashed, true, claims.IdentityID, "", nil, nil)
	}
	return token, claims, nil
}

// Mint builds fresh claims for ident from its current role. The claims are
// not signed; SignIn is the usual entry point.
func (e *Engine) Mint(ctx context.Context, ident Identity) (Claims, error) {
	if e == nil || !e.flows.Initialized() {
		return Claims{}, ErrEngineNotReady
	}
	if ident.ID == "" || ident.RoleID == "" {
		return Claims{}, fmt.Errorf("%w: identity and role are required", ErrInvalidInput)
	}

	claims, err := e.flows.Mint(ctx, toIdentityRecord(ident))
	if err != nil {
		return Claims{}, mapStoreError(err)
	}
	e.metricInc(MetricMint)
	return claims, nil
}

// issue fills token metadata that is still unset and signs claims. Expiry
// and token id are kept when present so a reissued token does not outlive
// the one it replaces.
func (e *Engine) issue(claims Claims) (string, Claims, error) {
	now := e.now().Truncate(time.Second)
	if claims.IssuedAt.IsZero() {
		claims.IssuedAt = now
	}
	if claims.ExpiresAt.IsZero() {
		claims.ExpiresAt = now.Add(e.tokens.TTL())
	}
	if claims.TokenID == "" {
		claims.TokenID = uuid.NewString()
	}

	token, err := e.tokens.Sign(toTokenClaims(claims))
	if err != nil {
		return "", Claims{}, err
	}
	return token, claims, nil
}

/*
====================================
REVALIDATION
====================================
*/

// Revalidate re-derives the session state for claims from the store. It
// only reads, so repeated calls over an unchanged store return the same
// state. Once claims are flagged RequiresLogout no store contents clear the
// flag; a disabled or missing identity is Invalid regardless.
func (e *Engine) Revalidate(ctx context.Context, claims Claims) session.State {
	if e == nil || !e.flows.Initialized() {
		return session.NewInvalid(session.ReasonStoreUnavailable)
	}

	start := time.Now()
	st := e.flows.Revalidate(ctx, claims)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricRevalidateLatency, time.Since(start))
	}

	switch st.Kind() {
	case session.KindValid:
		e.metricInc(MetricRevalidateValid)
	case session.KindRequiresLogout:
		e.metricInc(MetricRevalidateRequiresLogout)
		if !claims.RequiresLogout {
			e.emitAudit(ctx, auditEventSessionRequiresLogout, true, claims.IdentityID, claims.RoleID, nil, func() map[string]string {
				return map[string]string{"role_version": fmt.Sprint(claims.RoleVersion)}
			})
		}
	default:
		e.metricInc(MetricRevalidateInvalid)
		if st.Reason() == session.ReasonStoreUnavailable {
			e.log.Warn("revalidation failed closed", zap.String("identity_id", claims.IdentityID))
		}
		e.emitAudit(ctx, auditEventSessionRejected, false, claims.IdentityID, claims.RoleID, ErrUnauthenticated, func() map[string]string {
			return map[string]string{"reason": st.Reason().String()}
		})
	}
	return st
}

// Authenticate verifies a session token and revalidates its claims. When
// revalidation changed the claims (a newly set RequiresLogout flag, or a
// role binding filled in) the token is re-signed with the original expiry
// and returned as reissued; otherwise reissued is empty.
//
// A missing or unverifiable token yields an Invalid state and a nil error.
// The error is reserved for failing to sign the reissued token.
func (e *Engine) Authenticate(ctx context.Context, token string) (session.State, string, error) {
	if e == nil || e.tokens == nil {
		return session.NewInvalid(session.ReasonStoreUnavailable), "", ErrEngineNotReady
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return session.NewInvalid(session.ReasonNoToken), "", nil
	}
	parsed, err := e.tokens.Parse(token)
	if err != nil {
		e.metricInc(MetricTokenRejected)
		e.log.Debug("session token rejected", zap.Error(err))
		return session.NewInvalid(session.ReasonBadToken), "", nil
	}

	in := fromTokenClaims(parsed)
	st := e.Revalidate(ctx, in)
	out, ok := st.Claims()
	if !ok || out.SameAuthorization(in) {
		return st, "", nil
	}

	reissued, _, err := e.issue(out)
	if err != nil {
		return st, "", fmt.Errorf("reissue session token: %w", err)
	}
	e.metricInc(MetricTokenReissued)
	return st, reissued, nil
}

// Status maps a session state onto the wire status.
func (e *Engine) Status(st session.State) session.Status {
	return st.Status()
}

/*
====================================
AUTHORIZATION
====================================
*/

// Authorize reports whether st may perform the operation guarded by key.
// A RequiresLogout session is judged on its stale permission set.
func (e *Engine) Authorize(st session.State, key string) error {
	if !st.Authenticated() {
		return ErrUnauthenticated
	}
	if permission.HasPermission(st.Permissions(), key) {
		return nil
	}
	e.metricInc(MetricAuthorizationDenied)
	return fmt.Errorf("%w: %s", ErrAuthorization, key)
}

// RequireFresh returns ErrSessionInvalidated for a flagged session and
// ErrUnauthenticated for an invalid one.
func RequireFresh(st session.State) error {
	switch st.Kind() {
	case session.KindValid:
		return nil
	case session.KindRequiresLogout:
		return ErrSessionInvalidated
	default:
		return ErrUnauthenticated
	}
}
