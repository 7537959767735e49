package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/rolegate/session"
)

// SignInFailureKind classifies sign-in failures for root-level mapping.
type SignInFailureKind int

const (
	SignInFailureNone SignInFailureKind = iota
	SignInFailureRateLimited
	SignInFailureInvalidCredentials
	SignInFailureInactive
	SignInFailureUnavailable
)

// SignInResult returns either the minted claims or a classified failure.
type SignInResult struct {
	Failure  SignInFailureKind
	Err      error
	Identity IdentityRecord
	Claims   session.Claims
	Rehashed bool
}

// SignInDeps captures sign-in dependencies.
type SignInDeps struct {
	ClientIPFromContext func(context.Context) string

	CheckRate     func(ctx context.Context, email, ip string) error
	RecordFailure func(ctx context.Context, email, ip string) error
	ResetRate     func(ctx context.Context, email, ip string) error
	IsRateLimited func(error) bool

	FindIdentityByEmail func(context.Context, string) (IdentityRecord, error)
	IsNotFound          func(error) bool

	CheckPassword      func(password, encoded string) error
	NeedsRehash        func(encoded string) bool
	HashPassword       func(password string) (string, error)
	UpdatePasswordHash func(ctx context.Context, identityID, encoded string) error

	Mint func(context.Context, IdentityRecord) (session.Claims, error)
}

// RunSignIn verifies credentials and mints claims.
//
// Unknown email, wrong password, and non-active status all surface as
// SignInFailureInvalidCredentials after the same amount of hashing work.
func RunSignIn(ctx context.Context, email, password string, deps SignInDeps) SignInResult {
	if deps.FindIdentityByEmail == nil || deps.CheckPassword == nil || deps.Mint == nil {
		return SignInResult{Failure: SignInFailureUnavailable, Err: errors.New("sign-in dependencies missing")}
	}

	email = strings.ToLower(strings.TrimSpace(email))
	ip := ""
	if deps.ClientIPFromContext != nil {
		ip = deps.ClientIPFromContext(ctx)
	}

	if deps.CheckRate != nil {
		if err := deps.CheckRate(ctx, email, ip); err != nil {
			if deps.IsRateLimited != nil && deps.IsRateLimited(err) {
				return SignInResult{Failure: SignInFailureRateLimited, Err: err}
			}
			return SignInResult{Failure: SignInFailureUnavailable, Err: err}
		}
	}

	fail := func(kind SignInFailureKind, err error) SignInResult {
		if deps.RecordFailure != nil {
			if rerr := deps.RecordFailure(ctx, email, ip); rerr != nil &&
				deps.IsRateLimited != nil && deps.IsRateLimited(rerr) {
				return SignInResult{Failure: SignInFailureRateLimited, Err: rerr}
			}
		}
		return SignInResult{Failure: kind, Err: err}
	}

	ident, err := deps.FindIdentityByEmail(ctx, email)
	if err != nil {
		if deps.IsNotFound == nil || !deps.IsNotFound(err) {
			return SignInResult{Failure: SignInFailureUnavailable, Err: err}
		}
		// Burn the same hashing cost as a real mismatch.
		_ = deps.CheckPassword(password, "")
		return fail(SignInFailureInvalidCredentials, err)
	}

	if err := deps.CheckPassword(password, ident.PasswordHash); err != nil {
		return fail(SignInFailureInvalidCredentials, err)
	}
	if !ident.Active {
		return fail(SignInFailureInactive, nil)
	}

	claims, err := deps.Mint(ctx, ident)
	if err != nil {
		return SignInResult{Failure: SignInFailureUnavailable, Err: err}
	}

	if deps.ResetRate != nil {
		_ = deps.ResetRate(ctx, email, ip)
	}

	rehashed := false
	if deps.NeedsRehash != nil && deps.HashPassword != nil && deps.UpdatePasswordHash != nil &&
		deps.NeedsRehash(ident.PasswordHash) {
		if encoded, err := deps.HashPassword(password); err == nil {
			rehashed = deps.UpdatePasswordHash(ctx, ident.ID, encoded) == nil
		}
	}

	return SignInResult{Identity: ident, Claims: claims, Rehashed: rehashed}
}
