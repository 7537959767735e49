package password

import (
	"errors"
	"strings"
	"testing"
)

// Low-cost parameters keep the suite fast while staying above the minimums.
func testConfig() Config {
	return Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newTestHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewHasher(testConfig())
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	return h
}

func TestHashAndVerify(t *testing.T) {
	h := newTestHasher(t)

	hash, err := h.Hash("P@ssw0rd-Ascii")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}

	ok, err := h.Verify("P@ssw0rd-Ascii", hash)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !ok {
		t.Fatal("expected password verification to succeed")
	}

	ok, err = h.Verify("wrong-password", hash)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if ok {
		t.Fatal("expected wrong password to fail")
	}
}

func TestHashRejectsShortPassword(t *testing.T) {
	h := newTestHasher(t)
	if _, err := h.Hash("short"); !errors.Is(err, ErrPolicy) {
		t.Fatalf("expected ErrPolicy, got %v", err)
	}
}

func TestVerifyRejectsMalformedHash(t *testing.T) {
	h := newTestHasher(t)
	for _, encoded := range []string{
		"",
		"plain",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=1,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$!!$aGFzaGhhc2hoYXNoaGFzaA",
	} {
		if _, err := h.Verify("whatever-password", encoded); !errors.Is(err, ErrMalformedHash) {
			t.Fatalf("%q: expected ErrMalformedHash, got %v", encoded, err)
		}
	}
}

func TestNeedsRehash(t *testing.T) {
	old := newTestHasher(t)
	hash, err := old.Hash("test-password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	stronger := testConfig()
	stronger.Time = 2
	h, err := NewHasher(stronger)
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}

	stale, err := h.NeedsRehash(hash)
	if err != nil {
		t.Fatalf("NeedsRehash failed: %v", err)
	}
	if !stale {
		t.Fatal("expected weaker hash to need rehash")
	}

	stale, err = old.NeedsRehash(hash)
	if err != nil || stale {
		t.Fatalf("expected current hash to be fresh, got %v %v", stale, err)
	}
}

func TestNewHasherRejectsWeakConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Memory = 1024
	if _, err := NewHasher(cfg); err == nil {
		t.Fatal("expected low memory to be rejected")
	}
	cfg = testConfig()
	cfg.SaltLength = 8
	if _, err := NewHasher(cfg); err == nil {
		t.Fatal("expected short salt to be rejected")
	}
}

func TestVerifierIndistinguishableFailures(t *testing.T) {
	h := newTestHasher(t)
	v, err := NewVerifier(h)
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}

	hash, err := h.Hash("correct-password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	if err := v.Check("correct-password", hash); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
	if err := v.Check("wrong-password", hash); !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected ErrMismatch for wrong password, got %v", err)
	}
	if err := v.Check("correct-password", ""); !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected ErrMismatch for unknown identity, got %v", err)
	}
	if err := v.Check("correct-password", "garbage"); !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected ErrMismatch for malformed hash, got %v", err)
	}
}
