package rolegate

import (
	"context"
	"testing"
	"time"

	"github.com/MrEthical07/rolegate/permission"
)

func auditEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnv(t, func(c *Config, _ *Builder) {
		c.Audit.Enabled = true
		c.Audit.DropIfFull = false
	})
}

func nextEvent(t *testing.T, sink *ChannelSink, eventType string) AuditEvent {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sink.Events():
			if ev.EventType == eventType {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", eventType)
		}
	}
}

func TestAuditSignInEvents(t *testing.T) {
	env := auditEnv(t)
	env.createIdentity(t, "ada@example.com", permission.RoleMarketer)

	ctx := WithTenantID(WithClientIP(context.Background(), "198.51.100.4"), "acme")
	if _, _, err := env.engine.SignIn(ctx, "ada@example.com", "wrong-password"); err == nil {
		t.Fatal("expected failure")
	}
	failure := nextEvent(t, env.sink, auditEventSignInFailure)
	if failure.Success || failure.Error != string(auditErrInvalidCredentials) {
		t.Fatalf("unexpected failure event %+v", failure)
	}
	if failure.IP != "198.51.100.4" || failure.TenantID != "acme" {
		t.Fatalf("request context not carried: %+v", failure)
	}

	if _, _, err := env.engine.SignIn(ctx, "ada@example.com", testPassword); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	success := nextEvent(t, env.sink, auditEventSignInSuccess)
	if !success.Success || success.RoleID != permission.RoleMarketer || success.IdentityID == "" {
		t.Fatalf("unexpected success event %+v", success)
	}
}

func TestAuditRoleEditAndFlaggedSession(t *testing.T) {
	env := auditEnv(t)
	env.createIdentity(t, "ada@example.com", permission.RoleMarketer)
	token, _ := env.signIn(t, "ada@example.com")

	role, err := env.engine.ReplacePermissions(context.Background(), permission.RoleMarketer, []string{"campaigns:view"})
	if err != nil {
		t.Fatalf("ReplacePermissions: %v", err)
	}
	edit := nextEvent(t, env.sink, auditEventPermissionsReplaced)
	if edit.RoleID != permission.RoleMarketer || edit.Metadata["permissions"] != "1" {
		t.Fatalf("unexpected edit event %+v", edit)
	}
	if edit.Metadata["role_version"] == "" || role.Version() == 0 {
		t.Fatal("edit event should carry the new version")
	}

	if _, _, err := env.engine.Authenticate(context.Background(), token); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	flagged := nextEvent(t, env.sink, auditEventSessionRequiresLogout)
	if flagged.RoleID != permission.RoleMarketer {
		t.Fatalf("unexpected flag event %+v", flagged)
	}
}

func TestAuditRejectedDelete(t *testing.T) {
	env := auditEnv(t)
	if err := env.engine.DeleteRole(context.Background(), permission.RoleSuperAdmin); err == nil {
		t.Fatal("expected protected role error")
	}
	ev := nextEvent(t, env.sink, auditEventRoleDeleteRejected)
	if ev.Success || ev.Error != string(auditErrProtectedRole) {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestAuditIdentityDeleted(t *testing.T) {
	env := auditEnv(t)
	ident := env.createIdentity(t, "gone@example.com", permission.RoleClient)
	if err := env.engine.DeleteIdentity(context.Background(), ident.ID); err != nil {
		t.Fatalf("DeleteIdentity: %v", err)
	}
	ev := nextEvent(t, env.sink, auditEventIdentityDeleted)
	if !ev.Success || ev.IdentityID != ident.ID {
		t.Fatalf("unexpected event %+v", ev)
	}

	if err := env.engine.DeleteIdentity(context.Background(), ident.ID); err == nil {
		t.Fatal("expected error for missing identity")
	}
	ev = nextEvent(t, env.sink, auditEventIdentityDeleted)
	if ev.Success || ev.Error != string(auditErrNotFound) {
		t.Fatalf("unexpected failure event %+v", ev)
	}
}

func TestAuditDisabledEmitsNothing(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createIdentity(t, "ada@example.com", permission.RoleMarketer)
	env.signIn(t, "ada@example.com")

	select {
	case ev := <-env.sink.Events():
		t.Fatalf("unexpected event with audit disabled: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
	if env.engine.AuditDropped() != 0 {
		t.Fatal("no events should be dropped")
	}
}

func TestCriticalAuditEvents(t *testing.T) {
	for _, ev := range []string{auditEventPermissionsReplaced, auditEventRoleDeleted, auditEventRoleAssigned, auditEventIdentityDeleted} {
		if !criticalAuditEvent(ev) {
			t.Fatalf("%s must never be dropped", ev)
		}
	}
	for _, ev := range []string{auditEventSignInFailure, auditEventSessionRejected} {
		if criticalAuditEvent(ev) {
			t.Fatalf("%s should be droppable under backpressure", ev)
		}
	}
}
