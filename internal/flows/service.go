package flows

import (
	"context"

	"github.com/MrEthical07/rolegate/session"
)

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Revalidate.FindIdentity != nil && s.deps.Mint.FindRole != nil
}

func (s Service) SignIn(ctx context.Context, email, password string) SignInResult {
	return RunSignIn(ctx, email, password, s.deps.SignIn)
}

func (s Service) Mint(ctx context.Context, ident IdentityRecord) (session.Claims, error) {
	return RunMint(ctx, ident, s.deps.Mint)
}

func (s Service) Revalidate(ctx context.Context, claims session.Claims) session.State {
	return RunRevalidate(ctx, claims, s.deps.Revalidate)
}
