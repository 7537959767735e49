package rolegate

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/rolegate/permission"
	"github.com/MrEthical07/rolegate/session"
	"github.com/MrEthical07/rolegate/store"
)

func TestBuildRequiresStore(t *testing.T) {
	_, err := New().WithConfig(testConfig()).Build()
	if err == nil {
		t.Fatal("expected error without store")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	env := newTestEnv(t, nil)
	_ = env

	b := New().WithConfig(testConfig()).WithStore(env.store)
	if _, err := b.Build(); err != nil {
		t.Fatalf("first Build: %v", err)
	}
	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestSignInIssuesRoleBoundToken(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createIdentity(t, "ada@example.com", permission.RoleMarketer)

	token, claims := env.signIn(t, "ADA@example.com")
	if token == "" {
		t.Fatal("empty token")
	}
	role, err := env.engine.Role(context.Background(), permission.RoleMarketer)
	if err != nil {
		t.Fatalf("Role: %v", err)
	}
	if claims.RoleID != permission.RoleMarketer || claims.RoleVersion != role.Version() {
		t.Fatalf("claims not bound to current role: %+v", claims)
	}
	if !claims.Permissions.Equal(permission.NewSet(role.Permissions...)) {
		t.Fatalf("claims permissions differ from role: %v", claims.PermissionKeys())
	}
	if claims.RequiresLogout || claims.TokenID == "" || claims.ExpiresAt.IsZero() {
		t.Fatalf("unexpected token metadata: %+v", claims)
	}

	st, reissued, err := env.engine.Authenticate(context.Background(), token)
	if err != nil || reissued != "" {
		t.Fatalf("fresh token should pass through, reissued=%q err=%v", reissued, err)
	}
	if st.Status() != session.StatusOK {
		t.Fatalf("expected ok, got %s", st.Status())
	}
}

func TestSignInFailuresAreGeneric(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createIdentity(t, "ada@example.com", permission.RoleMarketer)
	if _, err := env.engine.CreateIdentity(context.Background(), NewIdentity{
		Email: "invited@example.com", RoleID: permission.RoleClient, Status: IdentityInvited,
	}); err != nil {
		t.Fatalf("CreateIdentity invited: %v", err)
	}

	cases := []struct {
		name, email, password string
	}{
		{"unknown email", "nobody@example.com", testPassword},
		{"wrong password", "ada@example.com", "not-the-password"},
		{"invited identity", "invited@example.com", testPassword},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := env.engine.SignIn(context.Background(), tc.email, tc.password)
			if !errors.Is(err, ErrAuthentication) {
				t.Fatalf("expected ErrAuthentication, got %v", err)
			}
			if err.Error() != "invalid credentials" {
				t.Fatalf("error text leaks detail: %q", err.Error())
			}
		})
	}
}

func TestSignInRateLimited(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createIdentity(t, "ada@example.com", permission.RoleMarketer)
	ctx := WithClientIP(context.Background(), "198.51.100.9")

	var last error
	for i := 0; i < 3; i++ {
		_, _, last = env.engine.SignIn(ctx, "ada@example.com", "wrong-password")
	}
	if !errors.Is(last, ErrSignInRateLimited) {
		t.Fatalf("expected third failure to hit the limit, got %v", last)
	}
	if _, _, err := env.engine.SignIn(ctx, "ada@example.com", testPassword); !errors.Is(err, ErrSignInRateLimited) {
		t.Fatalf("expected throttled even with correct password, got %v", err)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricSignInRateLimited]; got < 2 {
		t.Fatalf("expected rate-limited counter >= 2, got %d", got)
	}
}

func TestSignInWithRedisThrottle(t *testing.T) {
	_, rdb := newTestRedis(t)
	env := newTestEnv(t, func(_ *Config, b *Builder) { b.WithRedis(rdb) })
	env.createIdentity(t, "ada@example.com", permission.RoleMarketer)

	_, _, _ = env.engine.SignIn(context.Background(), "ada@example.com", "wrong-password")
	n, err := env.engine.SignInAttempts(context.Background(), "ada@example.com")
	if err != nil || n != 1 {
		t.Fatalf("expected 1 recorded attempt, got %d (%v)", n, err)
	}

	env.signIn(t, "ada@example.com")
	if n, _ := env.engine.SignInAttempts(context.Background(), "ada@example.com"); n != 0 {
		t.Fatalf("expected counter reset after success, got %d", n)
	}
	if h := env.engine.Health(context.Background()); !h.StoreAvailable || !h.RedisThrottle {
		t.Fatalf("unexpected health %+v", h)
	}
}

// A user's session is flagged on the next request after an admin narrows
// the role, and keeps the stale permissions until re-authentication.
func TestRoleEditFlagsExistingSessions(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	if _, err := env.engine.ReplacePermissions(ctx, permission.RoleMarketer, []string{"campaigns:view", "campaigns:create"}); err != nil {
		t.Fatalf("ReplacePermissions: %v", err)
	}
	env.createIdentity(t, "u@example.com", permission.RoleMarketer)
	token, _ := env.signIn(t, "u@example.com")

	before, err := env.engine.Role(ctx, permission.RoleMarketer)
	if err != nil {
		t.Fatalf("Role: %v", err)
	}
	after, err := env.engine.ReplacePermissions(ctx, permission.RoleMarketer, []string{"campaigns:view"})
	if err != nil {
		t.Fatalf("ReplacePermissions: %v", err)
	}
	if after.Version() <= before.Version() {
		t.Fatalf("role version did not advance: %d -> %d", before.Version(), after.Version())
	}
	resolved, err := env.engine.ResolvePermissions(ctx, permission.RoleMarketer)
	if err != nil {
		t.Fatalf("ResolvePermissions: %v", err)
	}
	if !resolved.Equal(permission.NewSet("campaigns:view")) {
		t.Fatalf("residual keys after replace: %v", resolved.Keys())
	}

	st, reissued, err := env.engine.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if st.Status() != session.StatusRequiresLogout {
		t.Fatalf("expected requires_logout, got %s", st.Status())
	}
	if reissued == "" {
		t.Fatal("flagged claims must be reissued")
	}
	if err := env.engine.Authorize(st, "campaigns:create"); err != nil {
		t.Fatalf("stale permissions should still authorize: %v", err)
	}

	// The reissued token carries the flag, so putting the role back does
	// not clear it.
	if _, err := env.engine.ReplacePermissions(ctx, permission.RoleMarketer, []string{"campaigns:view", "campaigns:create"}); err != nil {
		t.Fatalf("ReplacePermissions: %v", err)
	}
	st2, again, err := env.engine.Authenticate(ctx, reissued)
	if err != nil {
		t.Fatalf("Authenticate reissued: %v", err)
	}
	if st2.Kind() != session.KindRequiresLogout {
		t.Fatalf("flag cleared: %s", st2.Kind())
	}
	if again != "" {
		t.Fatal("already flagged token should not be reissued again")
	}

	flagged, _ := st.Claims()
	kept, _ := st2.Claims()
	if !flagged.ExpiresAt.Equal(kept.ExpiresAt) {
		t.Fatalf("reissue changed expiry: %s vs %s", flagged.ExpiresAt, kept.ExpiresAt)
	}
}

func TestDeleteRoleInUseLeavesRoleUnchanged(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.createIdentity(t, "u@example.com", permission.RoleMarketer)
	before, _ := env.engine.Role(ctx, permission.RoleMarketer)

	err := env.engine.DeleteRole(ctx, permission.RoleMarketer)
	if !errors.Is(err, ErrInUse) {
		t.Fatalf("expected ErrInUse, got %v", err)
	}
	if !errors.Is(err, store.ErrInUse) {
		t.Fatalf("expected store error kept in chain, got %v", err)
	}
	after, err := env.engine.Role(ctx, permission.RoleMarketer)
	if err != nil {
		t.Fatalf("role gone after rejected delete: %v", err)
	}
	if after.Version() != before.Version() || !permission.NewSet(after.Permissions...).Equal(permission.NewSet(before.Permissions...)) {
		t.Fatal("role changed by rejected delete")
	}
	if env.engine.MetricsSnapshot().Counters[MetricRoleDeleteRejected] != 1 {
		t.Fatal("expected rejected-delete metric")
	}
}

func TestDeleteProtectedRole(t *testing.T) {
	env := newTestEnv(t, nil)
	err := env.engine.DeleteRole(context.Background(), permission.RoleSuperAdmin)
	if !errors.Is(err, ErrProtectedRole) {
		t.Fatalf("expected ErrProtectedRole, got %v", err)
	}
	if err := env.engine.DeleteRole(context.Background(), "NOPE"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteUnusedRole(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	if _, err := env.engine.CreateRole(ctx, NewRole{ID: "ANALYST", Name: "Analyst", Permissions: []string{"campaigns:view"}}); err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	if err := env.engine.DeleteRole(ctx, "ANALYST"); err != nil {
		t.Fatalf("DeleteRole: %v", err)
	}
	if _, err := env.engine.Role(ctx, "ANALYST"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected role gone, got %v", err)
	}
}

func TestFreshClientLacksUngrantedPermission(t *testing.T) {
	env := newTestEnv(t, nil)
	ident := env.createIdentity(t, "client@example.com", permission.RoleClient)

	claims, err := env.engine.Mint(context.Background(), ident)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if permission.HasPermission(claims.Permissions, "campaigns:send") {
		t.Fatal("CLIENT must not hold campaigns:send")
	}
	err = env.engine.Authorize(session.NewValid(claims), "campaigns:send")
	if !errors.Is(err, ErrAuthorization) {
		t.Fatalf("expected ErrAuthorization, got %v", err)
	}
}

func TestReplacePermissionsRejectsUnknownKeys(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	before, _ := env.engine.Role(ctx, permission.RoleClient)

	_, err := env.engine.ReplacePermissions(ctx, permission.RoleClient, []string{"campaigns:view", "campaigns:launch"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if !errors.Is(err, permission.ErrUnknownPermission) {
		t.Fatalf("expected catalog error kept in chain, got %v", err)
	}
	after, _ := env.engine.Role(ctx, permission.RoleClient)
	if after.Version() != before.Version() {
		t.Fatal("rejected replace must not bump the version")
	}

	if _, err := env.engine.ReplacePermissions(ctx, "GHOST", []string{"campaigns:view"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing role, got %v", err)
	}
}

func TestReplacePermissionsDeduplicates(t *testing.T) {
	env := newTestEnv(t, nil)
	role, err := env.engine.ReplacePermissions(context.Background(), permission.RoleClient,
		[]string{"templates:view", "campaigns:view", "templates:view"})
	if err != nil {
		t.Fatalf("ReplacePermissions: %v", err)
	}
	if len(role.Permissions) != 2 {
		t.Fatalf("expected 2 keys, got %v", role.Permissions)
	}
}

func TestReplaceWithEmptySetDeniesEverything(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	if _, err := env.engine.ReplacePermissions(ctx, permission.RoleClient, nil); err != nil {
		t.Fatalf("ReplacePermissions: %v", err)
	}
	set, err := env.engine.ResolvePermissions(ctx, permission.RoleClient)
	if err != nil {
		t.Fatalf("ResolvePermissions: %v", err)
	}
	if set.Len() != 0 || permission.HasPermission(set, "campaigns:view") {
		t.Fatalf("expected empty set, got %v", set.Keys())
	}
}

func TestDisabledIdentityIsUnauthenticated(t *testing.T) {
	env := newTestEnv(t, nil)
	ident := env.createIdentity(t, "u@example.com", permission.RoleSuperAdmin)
	token, _ := env.signIn(t, "u@example.com")

	if _, err := env.engine.DisableIdentity(context.Background(), ident.ID); err != nil {
		t.Fatalf("DisableIdentity: %v", err)
	}
	st, reissued, err := env.engine.Authenticate(context.Background(), token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if st.Status() != session.StatusUnauthenticated || st.Reason() != session.ReasonIdentityDisabled {
		t.Fatalf("expected unauthenticated/identity_disabled, got %s/%s", st.Status(), st.Reason())
	}
	if reissued != "" {
		t.Fatal("invalid sessions are never reissued")
	}
	if err := env.engine.Authorize(st, "roles:view"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if _, _, err := env.engine.SignIn(context.Background(), "u@example.com", testPassword); !errors.Is(err, ErrAuthentication) {
		t.Fatalf("disabled identity signed in: %v", err)
	}
}

func TestDeletedIdentityIsUnauthenticated(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	ident := env.createIdentity(t, "u@example.com", permission.RoleMarketer)
	token, claims := env.signIn(t, "u@example.com")

	if err := env.engine.DeleteIdentity(ctx, ident.ID); err != nil {
		t.Fatalf("DeleteIdentity: %v", err)
	}
	st := env.engine.Revalidate(ctx, claims)
	if st.Status() != session.StatusUnauthenticated || st.Reason() != session.ReasonIdentityNotFound {
		t.Fatalf("expected unauthenticated/identity_not_found, got %s/%s", st.Status(), st.Reason())
	}
	if st, _, _ := env.engine.Authenticate(ctx, token); st.Authenticated() {
		t.Fatal("token of a deleted identity still authenticates")
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricIdentityDeleted]; got != 1 {
		t.Fatalf("expected identity deleted counter 1, got %d", got)
	}

	if err := env.engine.DeleteIdentity(ctx, ident.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if err := env.engine.DeleteIdentity(ctx, " "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestReassignedRoleRequiresLogout(t *testing.T) {
	env := newTestEnv(t, nil)
	ident := env.createIdentity(t, "u@example.com", permission.RoleMarketer)
	token, _ := env.signIn(t, "u@example.com")

	if _, err := env.engine.AssignRole(context.Background(), ident.ID, permission.RoleClient); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	st, _, _ := env.engine.Authenticate(context.Background(), token)
	if st.Kind() != session.KindRequiresLogout {
		t.Fatalf("expected requires_logout, got %s", st.Kind())
	}

	_, fresh := env.signIn(t, "u@example.com")
	if fresh.RoleID != permission.RoleClient || fresh.RequiresLogout {
		t.Fatalf("new sign-in should bind the new role: %+v", fresh)
	}
}

func TestRevalidateIdempotentThroughEngine(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createIdentity(t, "u@example.com", permission.RoleMarketer)
	_, claims := env.signIn(t, "u@example.com")

	a := env.engine.Revalidate(context.Background(), claims)
	b := env.engine.Revalidate(context.Background(), claims)
	ca, _ := a.Claims()
	cb, _ := b.Claims()
	if a.Kind() != b.Kind() || !ca.SameAuthorization(cb) {
		t.Fatal("revalidation not idempotent")
	}
}

func TestAuthenticateRejectsGarbage(t *testing.T) {
	env := newTestEnv(t, nil)

	st, _, err := env.engine.Authenticate(context.Background(), "")
	if err != nil || st.Reason() != session.ReasonNoToken {
		t.Fatalf("expected no_token, got %s (%v)", st.Reason(), err)
	}
	st, _, err = env.engine.Authenticate(context.Background(), "not.a.token")
	if err != nil || st.Reason() != session.ReasonBadToken {
		t.Fatalf("expected bad_token, got %s (%v)", st.Reason(), err)
	}
}

func TestUnbuiltEngineFailsClosed(t *testing.T) {
	var e *Engine
	if st := e.Revalidate(context.Background(), Claims{IdentityID: "u1"}); st.Kind() != session.KindInvalid {
		t.Fatalf("expected invalid, got %s", st.Kind())
	}
	if _, _, err := e.SignIn(context.Background(), "a@example.com", "x"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
}

func TestRequireFresh(t *testing.T) {
	c := Claims{IdentityID: "u1"}
	if err := RequireFresh(session.NewValid(c)); err != nil {
		t.Fatalf("valid: %v", err)
	}
	if err := RequireFresh(session.NewRequiresLogout(c)); !errors.Is(err, ErrSessionInvalidated) {
		t.Fatalf("flagged: %v", err)
	}
	if err := RequireFresh(session.NewInvalid(session.ReasonBadToken)); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("invalid: %v", err)
	}
}

func TestActivateInvitedIdentity(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	ident, err := env.engine.CreateIdentity(ctx, NewIdentity{Email: "new@example.com", RoleID: permission.RoleClient, Status: IdentityInvited})
	if err != nil {
		t.Fatalf("CreateIdentity: %v", err)
	}
	if _, err := env.engine.ActivateIdentity(ctx, ident.ID, "short"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected policy rejection, got %v", err)
	}
	if _, err := env.engine.ActivateIdentity(ctx, ident.ID, testPassword); err != nil {
		t.Fatalf("ActivateIdentity: %v", err)
	}
	env.signIn(t, "new@example.com")
}

func TestCreateIdentityValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	cases := []NewIdentity{
		{Email: "no-at-sign", Password: testPassword, RoleID: permission.RoleClient},
		{Email: "a@example.com", Password: testPassword},
		{Email: "a@example.com", RoleID: permission.RoleClient},
		{Email: "a@example.com", Password: testPassword, RoleID: permission.RoleClient, Status: "LOCKED"},
	}
	for i, in := range cases {
		if _, err := env.engine.CreateIdentity(ctx, in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}

	env.createIdentity(t, "a@example.com", permission.RoleClient)
	_, err := env.engine.CreateIdentity(ctx, NewIdentity{Email: "A@example.com", Password: testPassword, RoleID: permission.RoleClient})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate email, got %v", err)
	}
	_, err = env.engine.CreateIdentity(ctx, NewIdentity{Email: "b@example.com", Password: testPassword, RoleID: "GHOST"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown role, got %v", err)
	}
}
