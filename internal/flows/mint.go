package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/rolegate/permission"
	"github.com/MrEthical07/rolegate/session"
)

// MintDeps captures mint dependencies.
type MintDeps struct {
	FindRole func(context.Context, string) (RoleRecord, error)

	EngineNotReady error
}

// RunMint builds fresh claims for ident from its current role. The returned
// claims carry no token metadata; the caller signs them.
func RunMint(ctx context.Context, ident IdentityRecord, deps MintDeps) (session.Claims, error) {
	if deps.FindRole == nil {
		return session.Claims{}, deps.EngineNotReady
	}
	if ident.ID == "" || ident.RoleID == "" {
		return session.Claims{}, errors.New("identity has no role")
	}

	role, err := deps.FindRole(ctx, ident.RoleID)
	if err != nil {
		return session.Claims{}, err
	}

	return session.Claims{
		IdentityID:     ident.ID,
		RoleID:         role.ID,
		RoleVersion:    role.Version,
		AccountVersion: ident.AccountVersion,
		Permissions:    permission.NewSet(role.Permissions...),
	}, nil
}
