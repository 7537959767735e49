// Package storetest holds the behavioural checks every store.Store
// implementation must pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/MrEthical07/rolegate/permission"
	"github.com/MrEthical07/rolegate/store"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) store.Store

// Run executes the full suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("RoleLifecycle", func(t *testing.T) { testRoleLifecycle(t, newStore(t)) })
	t.Run("ReplaceIsExactAndBumpsVersion", func(t *testing.T) { testReplace(t, newStore(t)) })
	t.Run("DeleteRoleGuards", func(t *testing.T) { testDeleteRoleGuards(t, newStore(t)) })
	t.Run("IdentityLifecycle", func(t *testing.T) { testIdentityLifecycle(t, newStore(t)) })
	t.Run("SeedRolesIsIdempotent", func(t *testing.T) { testSeed(t, newStore(t)) })
	t.Run("ConcurrentReadersSeeWholeSets", func(t *testing.T) { testConcurrentReplace(t, newStore(t)) })
}

func seed(t *testing.T, s store.Store) {
	t.Helper()
	if err := store.SeedRoles(context.Background(), s, permission.DefaultRoles()); err != nil {
		t.Fatalf("SeedRoles failed: %v", err)
	}
}

func testRoleLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()

	if _, err := s.FindRole(ctx, "EDITOR"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	created, err := s.CreateRole(ctx, store.Role{
		ID:          "EDITOR",
		Name:        "Editor",
		Permissions: []string{"templates:edit", "templates:view", "templates:edit"},
	})
	if err != nil {
		t.Fatalf("CreateRole failed: %v", err)
	}
	if created.UpdatedAt.IsZero() {
		t.Fatal("expected a role version")
	}

	got, err := s.FindRole(ctx, "EDITOR")
	if err != nil {
		t.Fatalf("FindRole failed: %v", err)
	}
	want := []string{"templates:edit", "templates:view"}
	if !reflect.DeepEqual(got.Permissions, want) {
		t.Fatalf("expected %v, got %v", want, got.Permissions)
	}
	if got.Version() != created.Version() {
		t.Fatalf("version mismatch: created %d, found %d", created.Version(), got.Version())
	}

	if _, err := s.CreateRole(ctx, store.Role{ID: "EDITOR", Name: "Again"}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	roles, err := s.ListRoles(ctx)
	if err != nil {
		t.Fatalf("ListRoles failed: %v", err)
	}
	if len(roles) != 1 {
		t.Fatalf("expected 1 role, got %d", len(roles))
	}

	before := got.Version()
	touched, err := s.TouchRoleVersion(ctx, "EDITOR")
	if err != nil {
		t.Fatalf("TouchRoleVersion failed: %v", err)
	}
	if touched.UnixNano() <= before {
		t.Fatalf("expected version to advance past %d, got %d", before, touched.UnixNano())
	}
	if _, err := s.TouchRoleVersion(ctx, "MISSING"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testReplace(t *testing.T, s store.Store) {
	ctx := context.Background()
	seed(t, s)

	before, err := s.FindRole(ctx, permission.RoleMarketer)
	if err != nil {
		t.Fatalf("FindRole failed: %v", err)
	}

	keys := []string{"campaigns:view", "templates:view"}
	updated, err := s.ReplaceRolePermissions(ctx, permission.RoleMarketer, keys)
	if err != nil {
		t.Fatalf("ReplaceRolePermissions failed: %v", err)
	}
	if updated.Version() <= before.Version() {
		t.Fatalf("version did not advance: %d -> %d", before.Version(), updated.Version())
	}

	got, err := s.FindRole(ctx, permission.RoleMarketer)
	if err != nil {
		t.Fatalf("FindRole failed: %v", err)
	}
	if !reflect.DeepEqual(got.Permissions, keys) {
		t.Fatalf("expected exactly %v, got %v", keys, got.Permissions)
	}

	// Back-to-back replacements must still yield strictly increasing versions.
	again, err := s.ReplaceRolePermissions(ctx, permission.RoleMarketer, keys)
	if err != nil {
		t.Fatalf("second ReplaceRolePermissions failed: %v", err)
	}
	if again.Version() <= updated.Version() {
		t.Fatalf("version did not advance on repeat: %d -> %d", updated.Version(), again.Version())
	}

	emptied, err := s.ReplaceRolePermissions(ctx, permission.RoleMarketer, nil)
	if err != nil {
		t.Fatalf("empty ReplaceRolePermissions failed: %v", err)
	}
	if len(emptied.Permissions) != 0 {
		t.Fatalf("expected empty permissions, got %v", emptied.Permissions)
	}

	if _, err := s.ReplaceRolePermissions(ctx, "MISSING", keys); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testDeleteRoleGuards(t *testing.T, s store.Store) {
	ctx := context.Background()
	seed(t, s)

	if err := s.DeleteRole(ctx, permission.RoleSuperAdmin); !errors.Is(err, store.ErrProtectedRole) {
		t.Fatalf("expected ErrProtectedRole, got %v", err)
	}

	if _, err := s.CreateIdentity(ctx, store.Identity{Email: "m@example.com", RoleID: permission.RoleMarketer}); err != nil {
		t.Fatalf("CreateIdentity failed: %v", err)
	}
	before, err := s.FindRole(ctx, permission.RoleMarketer)
	if err != nil {
		t.Fatalf("FindRole failed: %v", err)
	}
	if err := s.DeleteRole(ctx, permission.RoleMarketer); !errors.Is(err, store.ErrInUse) {
		t.Fatalf("expected ErrInUse, got %v", err)
	}
	after, err := s.FindRole(ctx, permission.RoleMarketer)
	if err != nil {
		t.Fatalf("role vanished after rejected delete: %v", err)
	}
	if after.Version() != before.Version() || !reflect.DeepEqual(after.Permissions, before.Permissions) {
		t.Fatal("rejected delete modified the role")
	}

	if err := s.DeleteRole(ctx, permission.RoleClient); err != nil {
		t.Fatalf("DeleteRole failed: %v", err)
	}
	if _, err := s.FindRole(ctx, permission.RoleClient); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected deleted role to be gone, got %v", err)
	}
	if err := s.DeleteRole(ctx, permission.RoleClient); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func testIdentityLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	seed(t, s)

	ident, err := s.CreateIdentity(ctx, store.Identity{
		Email:        "  Ada@Example.com ",
		Name:         "Ada",
		PasswordHash: "hash",
		RoleID:       permission.RoleClient,
	})
	if err != nil {
		t.Fatalf("CreateIdentity failed: %v", err)
	}
	if ident.ID == "" || ident.Status != store.StatusActive || ident.AccountVersion == 0 {
		t.Fatalf("unexpected identity defaults: %+v", ident)
	}

	byEmail, err := s.FindIdentityByEmail(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("FindIdentityByEmail failed: %v", err)
	}
	if byEmail.ID != ident.ID {
		t.Fatalf("expected %s, got %s", ident.ID, byEmail.ID)
	}

	if _, err := s.CreateIdentity(ctx, store.Identity{Email: "ADA@example.com", RoleID: permission.RoleClient}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate email, got %v", err)
	}
	if _, err := s.CreateIdentity(ctx, store.Identity{Email: "x@example.com", RoleID: "MISSING"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown role, got %v", err)
	}

	moved, err := s.AssignRole(ctx, ident.ID, permission.RoleMarketer)
	if err != nil {
		t.Fatalf("AssignRole failed: %v", err)
	}
	if moved.RoleID != permission.RoleMarketer || moved.AccountVersion <= ident.AccountVersion {
		t.Fatalf("AssignRole did not bump account version: %+v", moved)
	}

	disabled, err := s.UpdateIdentityStatus(ctx, ident.ID, store.StatusDisabled)
	if err != nil {
		t.Fatalf("UpdateIdentityStatus failed: %v", err)
	}
	if disabled.Status != store.StatusDisabled || disabled.AccountVersion <= moved.AccountVersion {
		t.Fatalf("status change did not bump account version: %+v", disabled)
	}

	if err := s.UpdatePasswordHash(ctx, ident.ID, "new-hash"); err != nil {
		t.Fatalf("UpdatePasswordHash failed: %v", err)
	}
	reloaded, err := s.FindIdentity(ctx, ident.ID)
	if err != nil {
		t.Fatalf("FindIdentity failed: %v", err)
	}
	if reloaded.PasswordHash != "new-hash" {
		t.Fatalf("password hash not updated: %q", reloaded.PasswordHash)
	}

	if err := s.DeleteIdentity(ctx, ident.ID); err != nil {
		t.Fatalf("DeleteIdentity failed: %v", err)
	}
	if _, err := s.FindIdentity(ctx, ident.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.FindIdentityByEmail(ctx, "ada@example.com"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected email index cleared, got %v", err)
	}
}

func testSeed(t *testing.T, s store.Store) {
	ctx := context.Background()
	seed(t, s)

	if _, err := s.ReplaceRolePermissions(ctx, permission.RoleClient, []string{"campaigns:view"}); err != nil {
		t.Fatalf("ReplaceRolePermissions failed: %v", err)
	}
	seed(t, s)

	client, err := s.FindRole(ctx, permission.RoleClient)
	if err != nil {
		t.Fatalf("FindRole failed: %v", err)
	}
	if !reflect.DeepEqual(client.Permissions, []string{"campaigns:view"}) {
		t.Fatalf("re-seeding overwrote edits: %v", client.Permissions)
	}

	roles, err := s.ListRoles(ctx)
	if err != nil {
		t.Fatalf("ListRoles failed: %v", err)
	}
	if len(roles) != len(permission.DefaultRoles()) {
		t.Fatalf("expected %d roles, got %d", len(permission.DefaultRoles()), len(roles))
	}
}

func testConcurrentReplace(t *testing.T, s store.Store) {
	ctx := context.Background()
	seed(t, s)

	initial, err := s.FindRole(ctx, permission.RoleMarketer)
	if err != nil {
		t.Fatalf("FindRole failed: %v", err)
	}
	setA := []string{"campaigns:view", "campaigns:send"}
	setB := []string{"templates:view", "templates:edit", "templates:create"}

	var wg sync.WaitGroup
	errs := make(chan error, 64)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			keys := setA
			if i%2 == 1 {
				keys = setB
			}
			if _, err := s.ReplaceRolePermissions(ctx, permission.RoleMarketer, keys); err != nil {
				errs <- err
				return
			}
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				role, err := s.FindRole(ctx, permission.RoleMarketer)
				if err != nil {
					errs <- err
					return
				}
				got := role.Permissions
				if !reflect.DeepEqual(got, initial.Permissions) &&
					!reflect.DeepEqual(got, store.NormalizeKeys(setA)) &&
					!reflect.DeepEqual(got, store.NormalizeKeys(setB)) {
					errs <- fmt.Errorf("reader observed a partial permission set: %v", got)
					return
				}
			}
		}()
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent replace: %v", err)
	}
}
