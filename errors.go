package rolegate

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/rolegate/permission"
	"github.com/MrEthical07/rolegate/store"
)

var (
	// ErrAuthentication is returned when credentials do not verify. Unknown
	// email, wrong password, and inactive accounts are indistinguishable.
	ErrAuthentication = errors.New("invalid credentials")
	// ErrSessionInvalidated is returned when a session is flagged for
	// re-authentication and the caller requires a fully valid session.
	ErrSessionInvalidated = errors.New("session invalidated")
	// ErrUnauthenticated is returned when there is no usable session.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrAuthorization is returned when the session lacks a permission.
	ErrAuthorization = errors.New("permission denied")
	// ErrProtectedRole is returned when deleting a protected role.
	ErrProtectedRole = errors.New("role is protected")
	// ErrInUse is returned when deleting a role that is still assigned.
	ErrInUse = errors.New("role is in use")
	// ErrNotFound is returned for unknown roles, identities, or permission keys.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when creating a record that already exists.
	ErrConflict = errors.New("already exists")
	// ErrInvalidInput is returned for malformed requests.
	ErrInvalidInput = errors.New("invalid input")
	// ErrSignInRateLimited is returned when sign-in attempts are throttled.
	ErrSignInRateLimited = errors.New("sign-in rate limited")
	// ErrStoreUnavailable is returned when the backing store fails.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrEngineNotReady is returned when an Engine is used before Build.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// mapStoreError translates store and catalog errors into the root taxonomy,
// keeping the original error in the chain.
func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, permission.ErrUnknownPermission):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, store.ErrProtectedRole):
		return fmt.Errorf("%w: %w", ErrProtectedRole, err)
	case errors.Is(err, store.ErrInUse):
		return fmt.Errorf("%w: %w", ErrInUse, err)
	case errors.Is(err, store.ErrConflict):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	default:
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
}
