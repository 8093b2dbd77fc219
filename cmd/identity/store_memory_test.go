package identity

import (
	"context"
	"strings"
	"testing"
	"time"
)

func seedAccount(t *testing.T, s Store, username, email string) Account {
	t.Helper()

	acct, err := s.Create(context.Background(), CreateAccountInput{
		Username:     username,
		Email:        email,
		FullName:     "Test User",
		PasswordHash: "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		Now:          time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Create(%q): %v", username, err)
	}
	return acct
}

func hashOf(raw string) string {
	return HashTokenSHA256Hex(raw)
}

func TestInMemoryStore_CreateAndFind(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStore()
	ctx := context.Background()

	acct := seedAccount(t, s, "Alice", "Alice@Example.com")
	if acct.ID == "" {
		t.Fatal("expected generated id")
	}
	if acct.UsernameNorm != "alice" || acct.EmailNorm != "alice@example.com" {
		t.Fatalf("normalization: %q %q", acct.UsernameNorm, acct.EmailNorm)
	}

	got, err := s.FindByID(ctx, acct.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.Username != "Alice" {
		t.Fatalf("username=%q", got.Username)
	}

	// Lookup is case-insensitive on either identifier.
	if _, err := s.FindByUsernameOrEmail(ctx, "ALICE", ""); err != nil {
		t.Fatalf("find by username: %v", err)
	}
	if _, err := s.FindByUsernameOrEmail(ctx, "", "alice@EXAMPLE.com"); err != nil {
		t.Fatalf("find by email: %v", err)
	}

	if _, err := s.FindByUsernameOrEmail(ctx, "nobody", ""); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := s.FindByUsernameOrEmail(ctx, "", ""); !IsInvalidInput(err) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestInMemoryStore_CreateConflicts(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStore()
	ctx := context.Background()
	seedAccount(t, s, "alice", "alice@example.com")

	_, err := s.Create(ctx, CreateAccountInput{
		Username:     "ALICE",
		Email:        "other@example.com",
		FullName:     "Someone Else",
		PasswordHash: "hash",
	})
	if !IsConflict(err) {
		t.Fatalf("expected username conflict, got %v", err)
	}

	_, err = s.Create(ctx, CreateAccountInput{
		Username:     "bob",
		Email:        "Alice@example.COM",
		FullName:     "Someone Else",
		PasswordHash: "hash",
	})
	if !IsConflict(err) {
		t.Fatalf("expected email conflict, got %v", err)
	}
}

func TestInMemoryStore_RefreshTokenLifecycle(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStore()
	ctx := context.Background()
	acct := seedAccount(t, s, "alice", "alice@example.com")
	now := time.Now().UTC()

	h1 := hashOf("token-1")
	if err := s.UpdateRefreshToken(ctx, acct.ID, &h1, now); err != nil {
		t.Fatalf("UpdateRefreshToken: %v", err)
	}

	got, err := s.FindByID(ctx, acct.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.RefreshTokenHash == nil || *got.RefreshTokenHash != h1 {
		t.Fatal("stored hash mismatch")
	}

	// CAS rotation succeeds only against the stored hash.
	h2 := hashOf("token-2")
	if err := s.RotateRefreshToken(ctx, acct.ID, h1, h2, now); err != nil {
		t.Fatalf("RotateRefreshToken: %v", err)
	}

	// Replaying the old hash must fail: it is no longer stored.
	h3 := hashOf("token-3")
	if err := s.RotateRefreshToken(ctx, acct.ID, h1, h3, now); !IsNotActive(err) {
		t.Fatalf("expected not-active on replay, got %v", err)
	}

	// Clearing ends the session; any further rotation fails.
	if err := s.UpdateRefreshToken(ctx, acct.ID, nil, now); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := s.RotateRefreshToken(ctx, acct.ID, h2, h3, now); !IsNotActive(err) {
		t.Fatalf("expected not-active after clear, got %v", err)
	}
}

func TestInMemoryStore_RotateRejectsMalformedHash(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStore()
	ctx := context.Background()
	acct := seedAccount(t, s, "alice", "alice@example.com")

	err := s.RotateRefreshToken(ctx, acct.ID, "not-a-hash", hashOf("x"), time.Now().UTC())
	if !IsInvalidInput(err) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestInMemoryStore_UpdatePasswordHashKeepsRefreshToken(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStore()
	ctx := context.Background()
	acct := seedAccount(t, s, "alice", "alice@example.com")
	now := time.Now().UTC()

	h := hashOf("token-1")
	if err := s.UpdateRefreshToken(ctx, acct.ID, &h, now); err != nil {
		t.Fatalf("UpdateRefreshToken: %v", err)
	}
	if err := s.UpdatePasswordHash(ctx, acct.ID, "new-hash", now); err != nil {
		t.Fatalf("UpdatePasswordHash: %v", err)
	}

	got, err := s.FindByID(ctx, acct.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.PasswordHash != "new-hash" {
		t.Fatalf("password hash=%q", got.PasswordHash)
	}
	if got.RefreshTokenHash == nil || *got.RefreshTokenHash != h {
		t.Fatal("password change must not touch the refresh token")
	}
}

func TestInMemoryStore_UpdateProfile(t *testing.T) {
	t.Parallel()

	s := NewInMemoryStore()
	ctx := context.Background()
	acct := seedAccount(t, s, "alice", "alice@example.com")
	seedAccount(t, s, "bob", "bob@example.com")
	now := time.Now().UTC()

	newName := "Alice Liddell"
	newEmail := "liddell@example.com"
	got, err := s.UpdateProfile(ctx, UpdateProfileInput{
		AccountID: acct.ID,
		FullName:  &newName,
		Email:     &newEmail,
		Now:       now,
	})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if got.FullName != newName || got.Email != newEmail {
		t.Fatalf("profile: %q %q", got.FullName, got.Email)
	}

	// The old email address becomes available again.
	if _, err := s.FindByUsernameOrEmail(ctx, "", "alice@example.com"); !IsNotFound(err) {
		t.Fatalf("old email still resolves: %v", err)
	}

	// Taking another account's email is a conflict.
	taken := "bob@example.com"
	if _, err := s.UpdateProfile(ctx, UpdateProfileInput{AccountID: acct.ID, Email: &taken, Now: now}); !IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}

	// Nothing to update is invalid input.
	blank := "   "
	if _, err := s.UpdateProfile(ctx, UpdateProfileInput{AccountID: acct.ID, FullName: &blank, Now: now}); !IsInvalidInput(err) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestHashTokenSHA256Hex_Shape(t *testing.T) {
	t.Parallel()

	h := HashTokenSHA256Hex("some-token")
	if len(h) != 64 {
		t.Fatalf("len=%d want 64", len(h))
	}
	if strings.ToLower(h) != h {
		t.Fatal("hash must be lowercase hex")
	}
	if h == HashTokenSHA256Hex("other-token") {
		t.Fatal("distinct inputs must hash differently")
	}
}
