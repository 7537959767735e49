package rolegate

import (
	"time"

	"github.com/MrEthical07/rolegate/session"
	"github.com/MrEthical07/rolegate/store"
)

// Claims is the authorization payload of a session token.
type Claims = session.Claims

// Role is a named permission set; see [store.Role].
type Role = store.Role

// Identity is an authenticated principal; see [store.Identity].
type Identity = store.Identity

// IdentityStatus is the lifecycle status of an identity.
type IdentityStatus = store.IdentityStatus

const (
	IdentityActive   = store.StatusActive
	IdentityInvited  = store.StatusInvited
	IdentityDisabled = store.StatusDisabled
)

// NewIdentity is the input to Engine.CreateIdentity. Password may be empty
// for invited identities, which then cannot sign in.
type NewIdentity struct {
	Email    string
	Name     string
	Password string
	RoleID   string
	Status   IdentityStatus
}

// NewRole is the input to Engine.CreateRole.
type NewRole struct {
	ID          string
	Name        string
	Description string
	Permissions []string
}

// HealthStatus is an on-demand backend health result.
type HealthStatus struct {
	StoreAvailable bool
	StoreLatency   time.Duration
	RedisThrottle  bool
}
