package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when an identity or role does not exist.
	ErrNotFound = errors.New("not found")
	// ErrProtectedRole is returned when deleting a protected role.
	ErrProtectedRole = errors.New("role is protected")
	// ErrInUse is returned when deleting a role still assigned to identities.
	ErrInUse = errors.New("role is in use")
	// ErrConflict is returned when creating a record whose id or email exists.
	ErrConflict = errors.New("already exists")
	// ErrUnavailable wraps backend failures.
	ErrUnavailable = errors.New("store unavailable")
)

// IdentityStatus is the lifecycle status of an identity.
type IdentityStatus string

const (
	StatusActive   IdentityStatus = "ACTIVE"
	StatusInvited  IdentityStatus = "INVITED"
	StatusDisabled IdentityStatus = "DISABLED"
)

// Valid reports whether s is a known status.
func (s IdentityStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInvited, StatusDisabled:
		return true
	default:
		return false
	}
}

// Identity is an authenticated principal. AccountVersion increases whenever
// the role assignment or status changes.
type Identity struct {
	ID             string
	Email          string
	Name           string
	PasswordHash   string
	Status         IdentityStatus
	RoleID         string
	AccountVersion uint64
	CreatedAt      time.Time
}

// Role is a named permission set. UpdatedAt doubles as the role version and
// strictly increases on every permission replacement.
type Role struct {
	ID          string
	Name        string
	Description string
	Protected   bool
	Permissions []string
	UpdatedAt   time.Time
}

// Version returns the role version carried in session claims.
func (r Role) Version() int64 {
	return r.UpdatedAt.UnixNano()
}

// IdentityReader looks identities up.
type IdentityReader interface {
	FindIdentity(ctx context.Context, id string) (Identity, error)
	FindIdentityByEmail(ctx context.Context, email string) (Identity, error)
}

// RoleReader looks roles up.
type RoleReader interface {
	FindRole(ctx context.Context, id string) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
}

// Store is the persistent backing of identities and roles.
//
// ReplaceRolePermissions and DeleteRole must be atomic: a concurrent reader
// observes either the state before or after, never an empty or partial set.
type Store interface {
	IdentityReader
	RoleReader

	CreateRole(ctx context.Context, role Role) (Role, error)
	ReplaceRolePermissions(ctx context.Context, roleID string, keys []string) (Role, error)
	TouchRoleVersion(ctx context.Context, roleID string) (time.Time, error)
	DeleteRole(ctx context.Context, roleID string) error

	CreateIdentity(ctx context.Context, identity Identity) (Identity, error)
	AssignRole(ctx context.Context, identityID, roleID string) (Identity, error)
	UpdateIdentityStatus(ctx context.Context, identityID string, status IdentityStatus) (Identity, error)
	UpdatePasswordHash(ctx context.Context, identityID, hash string) error
	DeleteIdentity(ctx context.Context, identityID string) error
}

// NextVersion returns the role timestamp that follows prev. It is now
// truncated to step unless that would not move past prev, in which case it
// is prev plus one step.
func NextVersion(prev, now time.Time, step time.Duration) time.Time {
	if step <= 0 {
		step = time.Nanosecond
	}
	next := now.Truncate(step)
	if !next.After(prev) {
		next = prev.Add(step)
	}
	return next
}

// NormalizeEmail lowercases and trims an email for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeKeys trims, deduplicates, and sorts permission keys.
func NormalizeKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
