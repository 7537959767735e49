package flows

import (
	"context"

	"github.com/MrEthical07/rolegate/permission"
	"github.com/MrEthical07/rolegate/session"
)

// RevalidateDeps captures the lookups revalidation needs.
type RevalidateDeps struct {
	FindIdentity func(context.Context, string) (IdentityRecord, error)
	FindRole     func(context.Context, string) (RoleRecord, error)
	IsNotFound   func(error) bool
}

// RunRevalidate compares claims with the identity and role currently on
// record and returns the resulting session state. It performs lookups only
// and returns the same state for the same inputs and store contents.
//
// Order of checks:
//
//  1. missing or disabled identity: Invalid, whatever the claims say
//  2. claims already flagged: RequiresLogout, unchanged
//  3. no role in claims: claims are bound to the current role, Valid
//  4. role reassigned, account changed, or role version newer: RequiresLogout
//     with the incoming permissions
//  5. otherwise Valid with the incoming claims
func RunRevalidate(ctx context.Context, claims session.Claims, deps RevalidateDeps) session.State {
	if claims.IdentityID == "" {
		return session.NewInvalid(session.ReasonBadToken)
	}
	if deps.FindIdentity == nil || deps.FindRole == nil {
		return session.NewInvalid(session.ReasonStoreUnavailable)
	}
	isNotFound := deps.IsNotFound
	if isNotFound == nil {
		isNotFound = func(error) bool { return false }
	}

	ident, err := deps.FindIdentity(ctx, claims.IdentityID)
	if err != nil {
		if isNotFound(err) {
			return session.NewInvalid(session.ReasonIdentityNotFound)
		}
		return session.NewInvalid(session.ReasonStoreUnavailable)
	}
	if ident.Disabled {
		return session.NewInvalid(session.ReasonIdentityDisabled)
	}

	if claims.RequiresLogout {
		return session.NewRequiresLogout(claims)
	}

	if claims.RoleID == "" {
		role, err := deps.FindRole(ctx, ident.RoleID)
		if err != nil {
			if isNotFound(err) {
				return session.NewInvalid(session.ReasonRoleNotFound)
			}
			return session.NewInvalid(session.ReasonStoreUnavailable)
		}
		bound := claims.
			WithRole(role.ID, role.Version, permission.NewSet(role.Permissions...)).
			WithAccountVersion(ident.AccountVersion)
		return session.NewValid(bound)
	}

	if ident.RoleID != claims.RoleID {
		return session.NewRequiresLogout(claims)
	}
	if claims.AccountVersion != 0 && ident.AccountVersion > claims.AccountVersion {
		return session.NewRequiresLogout(claims)
	}

	role, err := deps.FindRole(ctx, claims.RoleID)
	if err != nil {
		if isNotFound(err) {
			return session.NewInvalid(session.ReasonRoleNotFound)
		}
		return session.NewInvalid(session.ReasonStoreUnavailable)
	}
	if role.Version > claims.RoleVersion {
		return session.NewRequiresLogout(claims)
	}

	return session.NewValid(claims)
}
