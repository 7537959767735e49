package rolegate

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/rolegate/internal/flows"
	"github.com/MrEthical07/rolegate/internal/rate"
	"github.com/MrEthical07/rolegate/jwt"
	"github.com/MrEthical07/rolegate/permission"
	"github.com/MrEthical07/rolegate/session"
	"github.com/MrEthical07/rolegate/store"
	gojwt "github.com/golang-jwt/jwt/v5"
)

func (e *Engine) flowDeps() flows.Deps {
	isNotFound := func(err error) bool { return errors.Is(err, store.ErrNotFound) }
	findRole := func(ctx context.Context, id string) (flows.RoleRecord, error) {
		role, err := e.store.FindRole(ctx, id)
		if err != nil {
			return flows.RoleRecord{}, err
		}
		return toRoleRecord(role), nil
	}
	findIdentity := func(ctx context.Context, id string) (flows.IdentityRecord, error) {
		ident, err := e.store.FindIdentity(ctx, id)
		if err != nil {
			return flows.IdentityRecord{}, err
		}
		return toIdentityRecord(ident), nil
	}

	mint := flows.MintDeps{
		FindRole:       findRole,
		EngineNotReady: ErrEngineNotReady,
	}

	signIn := flows.SignInDeps{
		ClientIPFromContext: clientIPFromContext,
		CheckRate:           e.throttle.Check,
		RecordFailure:       e.throttle.Fail,
		ResetRate:           e.throttle.Reset,
		IsRateLimited:       func(err error) bool { return errors.Is(err, rate.ErrRateLimited) },
		FindIdentityByEmail: func(ctx context.Context, email string) (flows.IdentityRecord, error) {
			ident, err := e.store.FindIdentityByEmail(ctx, email)
			if err != nil {
				return flows.IdentityRecord{}, err
			}
			return toIdentityRecord(ident), nil
		},
		IsNotFound:    isNotFound,
		CheckPassword: e.verifier.Check,
		Mint: func(ctx context.Context, ident flows.IdentityRecord) (session.Claims, error) {
			return flows.RunMint(ctx, ident, mint)
		},
	}
	if e.config.Password.UpgradeOnSignIn {
		signIn.NeedsRehash = e.verifier.NeedsRehash
		signIn.HashPassword = e.hasher.Hash
		signIn.UpdatePasswordHash = e.store.UpdatePasswordHash
	}

	return flows.Deps{
		SignIn: signIn,
		Mint:   mint,
		Revalidate: flows.RevalidateDeps{
			FindIdentity: findIdentity,
			FindRole:     findRole,
			IsNotFound:   isNotFound,
		},
	}
}

func toIdentityRecord(ident store.Identity) flows.IdentityRecord {
	return flows.IdentityRecord{
		ID:             ident.ID,
		RoleID:         ident.RoleID,
		PasswordHash:   ident.PasswordHash,
		AccountVersion: ident.AccountVersion,
		Active:         ident.Status == store.StatusActive,
		Disabled:       ident.Status == store.StatusDisabled,
	}
}

func toRoleRecord(role store.Role) flows.RoleRecord {
	return flows.RoleRecord{
		ID:          role.ID,
		Version:     role.Version(),
		Permissions: role.Permissions,
	}
}

func toTokenClaims(c session.Claims) jwt.SessionClaims {
	out := jwt.SessionClaims{
		UID:   c.IdentityID,
		RID:   c.RoleID,
		RV:    c.RoleVersion,
		AV:    c.AccountVersion,
		Perms: c.PermissionKeys(),
		RLO:   c.RequiresLogout,
	}
	out.ID = c.TokenID
	if !c.IssuedAt.IsZero() {
		out.IssuedAt = gojwt.NewNumericDate(c.IssuedAt)
	}
	if !c.ExpiresAt.IsZero() {
		out.ExpiresAt = gojwt.NewNumericDate(c.ExpiresAt)
	}
	return out
}

func fromTokenClaims(sc *jwt.SessionClaims) session.Claims {
	c := session.Claims{
		TokenID:        sc.ID,
		IdentityID:     sc.UID,
		RoleID:         sc.RID,
		RoleVersion:    sc.RV,
		AccountVersion: sc.AV,
		Permissions:    permission.NewSet(sc.Perms...),
		RequiresLogout: sc.RLO,
	}
	if sc.IssuedAt != nil {
		c.IssuedAt = sc.IssuedAt.Time.In(time.UTC)
	}
	if sc.ExpiresAt != nil {
		c.ExpiresAt = sc.ExpiresAt.Time.In(time.UTC)
	}
	return c
}
