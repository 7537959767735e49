package session

import "github.com/MrEthical07/rolegate/permission"

// Kind tags the variant held by a [State].
type Kind uint8

const (
	// KindInvalid means the caller is not authenticated. It is the zero value.
	KindInvalid Kind = iota
	// KindValid means the claims match the store.
	KindValid
	// KindRequiresLogout means the claims are stale and the user must sign in again.
	KindRequiresLogout
)

func (k Kind) String() string {
	switch k {
	case KindValid:
		return "valid"
	case KindRequiresLogout:
		return "requires_logout"
	default:
		return "invalid"
	}
}

// InvalidReason explains why a state is [KindInvalid]. It is diagnostic only
// and is never sent to clients.
type InvalidReason uint8

const (
	ReasonNone InvalidReason = iota
	ReasonNoToken
	ReasonBadToken
	ReasonIdentityNotFound
	ReasonIdentityDisabled
	ReasonRoleNotFound
	ReasonStoreUnavailable
)

func (r InvalidReason) String() string {
	switch r {
	case ReasonNoToken:
		return "no_token"
	case ReasonBadToken:
		return "bad_token"
	case ReasonIdentityNotFound:
		return "identity_not_found"
	case ReasonIdentityDisabled:
		return "identity_disabled"
	case ReasonRoleNotFound:
		return "role_not_found"
	case ReasonStoreUnavailable:
		return "store_unavailable"
	default:
		return "none"
	}
}

// State is the server's view of a session: Valid with current claims,
// RequiresLogout with the stale claims the user still holds, or Invalid.
// The zero State is Invalid.
type State struct {
	kind   Kind
	claims Claims
	reason InvalidReason
}

// NewValid wraps claims that agree with the store.
func NewValid(c Claims) State {
	return State{kind: KindValid, claims: c}
}

// NewRequiresLogout wraps stale claims. The returned claims always carry the
// RequiresLogout flag.
func NewRequiresLogout(stale Claims) State {
	return State{kind: KindRequiresLogout, claims: stale.WithRequiresLogout()}
}

// NewInvalid builds a terminal unauthenticated state.
func NewInvalid(reason InvalidReason) State {
	return State{kind: KindInvalid, reason: reason}
}

// Kind returns the variant tag.
func (s State) Kind() Kind { return s.kind }

// Reason returns the invalidation reason, or ReasonNone for other kinds.
func (s State) Reason() InvalidReason { return s.reason }

// Claims returns the carried claims. ok is false for Invalid states.
func (s State) Claims() (Claims, bool) {
	if s.kind == KindInvalid {
		return Claims{}, false
	}
	return s.claims, true
}

// Authenticated reports whether the state carries an identity.
func (s State) Authenticated() bool {
	return s.kind != KindInvalid
}

// Unavailable reports whether the state is Invalid only because the store
// could not be reached. Such a state is not a verdict on the session.
func (s State) Unavailable() bool {
	return s.kind == KindInvalid && s.reason == ReasonStoreUnavailable
}

// Permissions returns the granted set. A RequiresLogout state still returns
// its stale set; Invalid returns nil.
func (s State) Permissions() *permission.Set {
	if s.kind == KindInvalid {
		return nil
	}
	return s.claims.Permissions
}

// Status maps the state to the status reported to clients.
func (s State) Status() Status {
	switch s.kind {
	case KindValid:
		return StatusOK
	case KindRequiresLogout:
		return StatusRequiresLogout
	default:
		return StatusUnauthenticated
	}
}
