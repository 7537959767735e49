package session

import (
	"time"

	"github.com/MrEthical07/rolegate/permission"
)

// Claims is the authorization snapshot carried by a session token.
//
// Claims is a value type. The With* methods return modified copies and never
// touch the receiver, and Permissions is an immutable set, so a Claims value
// can be shared between goroutines without copying.
type Claims struct {
	TokenID        string
	IdentityID     string
	RoleID         string
	RoleVersion    int64
	AccountVersion uint64
	Permissions    *permission.Set
	RequiresLogout bool
	IssuedAt       time.Time
	ExpiresAt      time.Time
}

// WithRequiresLogout returns a copy flagged for forced re-authentication.
// Role, version, and permissions are left as they were.
func (c Claims) WithRequiresLogout() Claims {
	c.RequiresLogout = true
	return c
}

// WithRole returns a copy bound to roleID at roleVersion with perms.
func (c Claims) WithRole(roleID string, roleVersion int64, perms *permission.Set) Claims {
	c.RoleID = roleID
	c.RoleVersion = roleVersion
	c.Permissions = perms
	return c
}

// WithAccountVersion returns a copy carrying version.
func (c Claims) WithAccountVersion(version uint64) Claims {
	c.AccountVersion = version
	return c
}

// PermissionKeys returns the sorted permission keys.
func (c Claims) PermissionKeys() []string {
	return c.Permissions.Keys()
}

// SameAuthorization reports whether c and other carry identical
// authorization-relevant fields. Token metadata is ignored.
func (c Claims) SameAuthorization(other Claims) bool {
	return c.IdentityID == other.IdentityID &&
		c.RoleID == other.RoleID &&
		c.RoleVersion == other.RoleVersion &&
		c.AccountVersion == other.AccountVersion &&
		c.RequiresLogout == other.RequiresLogout &&
		c.Permissions.Equal(other.Permissions)
}
