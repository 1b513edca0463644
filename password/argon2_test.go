package password

import (
	"strings"
	"testing"
)

func secureConfig() Config {
	return Config{
		Memory:      65536,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func TestHashAndVerify(t *testing.T) {
	hasher, err := NewHasher(secureConfig())
	if err != nil {
		t.Fatalf("NewHasher error: %v", err)
	}

	hash, err := hasher.Hash("P@ssw0rd-Ascii")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	if !strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=3,p=2$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}

	if !hasher.Verify("P@ssw0rd-Ascii", hash) {
		t.Fatal("expected password verification to succeed")
	}
}

func TestHashSaltUniqueness(t *testing.T) {
	hasher, err := NewHasher(secureConfig())
	if err != nil {
		t.Fatalf("NewHasher error: %v", err)
	}

	first, err := hasher.Hash("same-plaintext-twice")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	second, err := hasher.Hash("same-plaintext-twice")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	if first == second {
		t.Fatal("expected distinct digests for the same plaintext")
	}
	if !hasher.Verify("same-plaintext-twice", first) || !hasher.Verify("same-plaintext-twice", second) {
		t.Fatal("expected both digests to verify")
	}
}

func TestVerifyWrongPassword(t *testing.T) {
	hasher, err := NewHasher(secureConfig())
	if err != nil {
		t.Fatalf("NewHasher error: %v", err)
	}

	hash, err := hasher.Hash("correct-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	if hasher.Verify("wrong-password", hash) {
		t.Fatal("expected wrong password verification to fail")
	}
}

func TestVerifyMalformedDigest(t *testing.T) {
	hasher, err := NewHasher(secureConfig())
	if err != nil {
		t.Fatalf("NewHasher error: %v", err)
	}

	for _, digest := range []string{
		"",
		"not-a-phc-hash",
		"$argon2id$v=19$m=65536,t=3,p=2$!!!$!!!",
		"$bcrypt$v=19$m=65536,t=3,p=2$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=18$m=65536,t=3,p=2$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
	} {
		if hasher.Verify("password", digest) {
			t.Fatalf("expected malformed digest %q to verify as false", digest)
		}
	}
}

func TestNeedsUpgrade(t *testing.T) {
	oldHasher, err := NewHasher(Config{
		Memory:      32768,
		Time:        2,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewHasher(old) error: %v", err)
	}

	hash, err := oldHasher.Hash("test-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	newHasher, err := NewHasher(secureConfig())
	if err != nil {
		t.Fatalf("NewHasher(new) error: %v", err)
	}

	if !newHasher.NeedsUpgrade(hash) {
		t.Fatal("expected NeedsUpgrade to return true for weaker hash parameters")
	}
}

func TestNeedsUpgradeSameConfig(t *testing.T) {
	hasher, err := NewHasher(secureConfig())
	if err != nil {
		t.Fatalf("NewHasher error: %v", err)
	}

	hash, err := hasher.Hash("same-config-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	if hasher.NeedsUpgrade(hash) {
		t.Fatal("expected NeedsUpgrade to return false for current parameters")
	}
}

func TestNeedsUpgradeMalformedDigest(t *testing.T) {
	hasher, err := NewHasher(secureConfig())
	if err != nil {
		t.Fatalf("NewHasher error: %v", err)
	}

	if !hasher.NeedsUpgrade("garbage") {
		t.Fatal("expected NeedsUpgrade to return true for unparseable digest")
	}
}

func TestHashTooShortPassword(t *testing.T) {
	hasher, err := NewHasher(secureConfig())
	if err != nil {
		t.Fatalf("NewHasher error: %v", err)
	}

	for _, pwd := range []string{"", "short"} {
		if _, err := hasher.Hash(pwd); err == nil {
			t.Fatalf("expected Hash(%q) to fail", pwd)
		}
	}
}

func TestNewHasherRejectsWeakConfig(t *testing.T) {
	weak := secureConfig()
	weak.Memory = 1024

	if _, err := NewHasher(weak); err == nil {
		t.Fatal("expected weak memory parameter to be rejected")
	}
}
