package token

import (
	"errors"
	"strings"
	"testing"
)

func TestHashSHA256Hex_Deterministic(t *testing.T) {
	a := HashSHA256Hex("refresh-token")
	b := HashSHA256Hex("refresh-token")
	if a != b {
		t.Fatal("same input must hash identically")
	}
	if len(a) != 64 {
		t.Fatalf("len=%d want 64", len(a))
	}
	if a == HashSHA256Hex("other") {
		t.Fatal("distinct inputs must differ")
	}
}

func TestHashRefreshTokenHex_ModeSwitch(t *testing.T) {
	t.Setenv(HMACEnvKey, "")
	plain := HashRefreshTokenHex("tok")
	if plain != HashSHA256Hex("tok") {
		t.Fatal("without a key the hash must be plain SHA-256")
	}

	t.Setenv(HMACEnvKey, strings.Repeat("k", 32))
	keyed := HashRefreshTokenHex("tok")
	if keyed == plain {
		t.Fatal("HMAC mode must produce a different digest")
	}
	if keyed != HashHMACSHA256Hex("tok", []byte(strings.Repeat("k", 32))) {
		t.Fatal("HMAC digest mismatch")
	}
}

func TestHMACKeyFromEnv(t *testing.T) {
	t.Setenv(HMACEnvKey, "")
	if _, err := HMACKeyFromEnv(32); !errors.Is(err, ErrHMACKeyMissing) {
		t.Fatalf("missing key: %v", err)
	}

	t.Setenv(HMACEnvKey, "short")
	if _, err := HMACKeyFromEnv(32); !errors.Is(err, ErrHMACKeyTooShort) {
		t.Fatalf("short key: %v", err)
	}

	t.Setenv(HMACEnvKey, strings.Repeat("k", 32))
	key, err := HMACKeyFromEnv(32)
	if err != nil {
		t.Fatalf("valid key: %v", err)
	}
	if len(key) != 32 {
		t.Fatalf("key len=%d", len(key))
	}
}

func TestHashRefreshTokenHexRequireHMAC(t *testing.T) {
	t.Setenv(HMACEnvKey, "")
	if _, err := HashRefreshTokenHexRequireHMAC("tok", 32); !errors.Is(err, ErrHMACKeyMissing) {
		t.Fatalf("expected missing-key error, got %v", err)
	}

	t.Setenv(HMACEnvKey, strings.Repeat("k", 32))
	got, err := HashRefreshTokenHexRequireHMAC("tok", 32)
	if err != nil {
		t.Fatalf("enforced hash: %v", err)
	}
	if len(got) != 64 {
		t.Fatalf("len=%d want 64", len(got))
	}
}
