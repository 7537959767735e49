package password

import "errors"

// ErrMismatch is returned for every failed credential check, whether the
// identity exists or not.
var ErrMismatch = errors.New("credentials do not match")

// Verifier checks plaintext passwords against stored hashes. An empty stored
// hash (unknown identity) is verified against a throwaway hash so the caller
// cannot tell the two failure cases apart by timing.
type Verifier struct {
	hasher *Hasher
	dummy  string
}

// NewVerifier prepares a verifier and its throwaway hash.
func NewVerifier(h *Hasher) (*Verifier, error) {
	if h == nil {
		return nil, errors.New("password verifier requires a hasher")
	}
	dummy, err := h.Hash("rolegate-unused-placeholder")
	if err != nil {
		return nil, err
	}
	return &Verifier{hasher: h, dummy: dummy}, nil
}

// Check returns nil when password matches encoded. Any other outcome,
// including a malformed stored hash, is reported as ErrMismatch.
func (v *Verifier) Check(password, encoded string) error {
	if encoded == "" {
		_, _ = v.hasher.Verify(password, v.dummy)
		return ErrMismatch
	}

	ok, err := v.hasher.Verify(password, encoded)
	if err != nil {
		_, _ = v.hasher.Verify(password, v.dummy)
		return ErrMismatch
	}
	if !ok {
		return ErrMismatch
	}
	return nil
}

// NeedsRehash forwards to the underlying hasher.
func (v *Verifier) NeedsRehash(encoded string) bool {
	stale, err := v.hasher.NeedsRehash(encoded)
	return err == nil && stale
}
