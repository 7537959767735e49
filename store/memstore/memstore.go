// Package memstore is an in-process implementation of store.Store for tests
// and single-node development.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MrEthical07/rolegate/store"
	"github.com/google/uuid"
)

// Store keeps identities and roles in maps guarded by one RWMutex. Every
// mutation happens under the write lock, which makes each operation atomic
// with respect to readers.
type Store struct {
	mu         sync.RWMutex
	now        func() time.Time
	identities map[string]store.Identity
	byEmail    map[string]string
	roles      map[string]store.Role
}

var _ store.Store = (*Store)(nil)

// New returns an empty store using the wall clock.
func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock returns an empty store that reads time from now.
func NewWithClock(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		now:        now,
		identities: make(map[string]store.Identity),
		byEmail:    make(map[string]string),
		roles:      make(map[string]store.Role),
	}
}

func (s *Store) FindIdentity(_ context.Context, id string) (store.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ident, ok := s.identities[id]
	if !ok {
		return store.Identity{}, store.ErrNotFound
	}
	return ident, nil
}

func (s *Store) FindIdentityByEmail(_ context.Context, email string) (store.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[store.NormalizeEmail(email)]
	if !ok {
		return store.Identity{}, store.ErrNotFound
	}
	return s.identities[id], nil
}

func (s *Store) FindRole(_ context.Context, id string) (store.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	role, ok := s.roles[id]
	if !ok {
		return store.Role{}, store.ErrNotFound
	}
	return copyRole(role), nil
}

func (s *Store) ListRoles(_ context.Context) ([]store.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.Role, 0, len(s.roles))
	for _, r := range s.roles {
		out = append(out, copyRole(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CreateRole(_ context.Context, role store.Role) (store.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if role.ID == "" {
		role.ID = uuid.NewString()
	}
	if _, exists := s.roles[role.ID]; exists {
		return store.Role{}, store.ErrConflict
	}

	role.Permissions = store.NormalizeKeys(role.Permissions)
	role.UpdatedAt = store.NextVersion(time.Time{}, s.now(), time.Nanosecond)
	s.roles[role.ID] = role
	return copyRole(role), nil
}

func (s *Store) ReplaceRolePermissions(_ context.Context, roleID string, keys []string) (store.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	role, ok := s.roles[roleID]
	if !ok {
		return store.Role{}, store.ErrNotFound
	}

	role.Permissions = store.NormalizeKeys(keys)
	role.UpdatedAt = store.NextVersion(role.UpdatedAt, s.now(), time.Nanosecond)
	s.roles[roleID] = role
	return copyRole(role), nil
}

func (s *Store) TouchRoleVersion(_ context.Context, roleID string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	role, ok := s.roles[roleID]
	if !ok {
		return time.Time{}, store.ErrNotFound
	}
	role.UpdatedAt = store.NextVersion(role.UpdatedAt, s.now(), time.Nanosecond)
	s.roles[roleID] = role
	return role.UpdatedAt, nil
}

func (s *Store) DeleteRole(_ context.Context, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	role, ok := s.roles[roleID]
	if !ok {
		return store.ErrNotFound
	}
	if role.Protected {
		return store.ErrProtectedRole
	}
	for _, ident := range s.identities {
		if ident.RoleID == roleID {
			return store.ErrInUse
		}
	}

	delete(s.roles, roleID)
	return nil
}

func (s *Store) CreateIdentity(_ context.Context, ident store.Identity) (store.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ident.ID == "" {
		ident.ID = uuid.NewString()
	}
	ident.Email = store.NormalizeEmail(ident.Email)
	if ident.Status == "" {
		ident.Status = store.StatusActive
	}
	if _, ok := s.roles[ident.RoleID]; !ok {
		return store.Identity{}, store.ErrNotFound
	}
	if _, exists := s.identities[ident.ID]; exists {
		return store.Identity{}, store.ErrConflict
	}
	if _, exists := s.byEmail[ident.Email]; exists {
		return store.Identity{}, store.ErrConflict
	}

	ident.AccountVersion = 1
	ident.CreatedAt = s.now().UTC()
	s.identities[ident.ID] = ident
	s.byEmail[ident.Email] = ident.ID
	return ident, nil
}

func (s *Store) AssignRole(_ context.Context, identityID, roleID string) (store.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ident, ok := s.identities[identityID]
	if !ok {
		return store.Identity{}, store.ErrNotFound
	}
	if _, ok := s.roles[roleID]; !ok {
		return store.Identity{}, store.ErrNotFound
	}
	if ident.RoleID == roleID {
		return ident, nil
	}

	ident.RoleID = roleID
	ident.AccountVersion++
	s.identities[identityID] = ident
	return ident, nil
}

func (s *Store) UpdateIdentityStatus(_ context.Context, identityID string, status store.IdentityStatus) (store.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ident, ok := s.identities[identityID]
	if !ok {
		return store.Identity{}, store.ErrNotFound
	}
	if ident.Status == status {
		return ident, nil
	}

	ident.Status = status
	ident.AccountVersion++
	s.identities[identityID] = ident
	return ident, nil
}

func (s *Store) UpdatePasswordHash(_ context.Context, identityID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ident, ok := s.identities[identityID]
	if !ok {
		return store.ErrNotFound
	}
	ident.PasswordHash = hash
	s.identities[identityID] = ident
	return nil
}

func (s *Store) DeleteIdentity(_ context.Context, identityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ident, ok := s.identities[identityID]
	if !ok {
		return store.ErrNotFound
	}
	delete(s.identities, identityID)
	delete(s.byEmail, ident.Email)
	return nil
}

func copyRole(r store.Role) store.Role {
	perms := make([]string, len(r.Permissions))
	copy(perms, r.Permissions)
	r.Permissions = perms
	return r
}
