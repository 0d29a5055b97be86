package security

import (
	"strings"
	"testing"
)

func testParams() Argon2Params {
	p := DefaultArgon2Params()
	p.Memory = 8 * 1024
	return p
}

func TestArgon2HashAndCompare(t *testing.T) {
	t.Parallel()

	hasher, err := NewArgon2Hasher(testParams())
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}

	hash, err := hasher.Hash("SecurePass123!")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Fatalf("expected PHC-format hash, got %q", hash)
	}
	if err := hasher.Compare(hash, "SecurePass123!"); err != nil {
		t.Fatalf("compare with correct password: %v", err)
	}
	if err := hasher.Compare(hash, "WrongPass123!"); err == nil {
		t.Fatalf("expected mismatch error for wrong password")
	}
}

func TestArgon2HashesAreSalted(t *testing.T) {
	t.Parallel()

	hasher, err := NewArgon2Hasher(testParams())
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	a, err := hasher.Hash("same-password")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	b, err := hasher.Hash("same-password")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if a == b {
		t.Fatalf("identical passwords must produce distinct salted hashes")
	}
}

func TestArgon2CompareUsesHashParams(t *testing.T) {
	t.Parallel()

	strong := testParams()
	strong.Time = 2
	origin, err := NewArgon2Hasher(strong)
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	hash, err := origin.Hash("SecurePass123!")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	// A verifier configured with different costs must still verify using the
	// parameters embedded in the stored hash.
	verifier, err := NewArgon2Hasher(testParams())
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	if err := verifier.Compare(hash, "SecurePass123!"); err != nil {
		t.Fatalf("compare across parameter generations: %v", err)
	}
}

func TestArgon2DummyHashNeverMatches(t *testing.T) {
	t.Parallel()

	hasher, err := NewArgon2Hasher(testParams())
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	dummy := hasher.DummyHash()
	if !strings.HasPrefix(dummy, "$argon2id$") {
		t.Fatalf("dummy hash must be a real PHC hash, got %q", dummy)
	}
	if err := hasher.Compare(dummy, "any-password"); err == nil {
		t.Fatalf("dummy hash must never verify")
	}
	if hasher.DummyHash() != dummy {
		t.Fatalf("dummy hash must be stable per hasher instance")
	}
}

func TestArgon2CompareRejectsMalformedHash(t *testing.T) {
	t.Parallel()

	hasher, err := NewArgon2Hasher(testParams())
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	for _, bad := range []string{"", "plaintext", "$argon2id$v=19$garbage"} {
		if err := hasher.Compare(bad, "password"); err == nil {
			t.Fatalf("expected error for malformed hash %q", bad)
		}
	}
}

func TestNewArgon2HasherRejectsWeakParams(t *testing.T) {
	t.Parallel()

	weak := testParams()
	weak.Memory = 1024
	if _, err := NewArgon2Hasher(weak); err == nil {
		t.Fatalf("expected rejection of sub-minimum memory")
	}
	short := testParams()
	short.SaltLength = 8
	if _, err := NewArgon2Hasher(short); err == nil {
		t.Fatalf("expected rejection of short salt")
	}
}
