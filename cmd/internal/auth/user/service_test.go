package user

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"helix/cmd/identity"
	"helix/cmd/internal/auth/token"
)

func newTestService(t *testing.T) (*Service, *identity.InMemoryStore) {
	t.Helper()

	cfg := token.DefaultConfig()
	cfg.AccessSecret = []byte(strings.Repeat("a", 32))
	cfg.RefreshSecret = []byte(strings.Repeat("r", 32))

	iss, err := token.NewIssuer(cfg)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}

	store := identity.NewInMemoryStore()
	return NewService(store, iss), store
}

func register(t *testing.T, svc *Service) identity.Account {
	t.Helper()

	acct, err := svc.Register(context.Background(), time.Now().UTC(), RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		FullName: "Alice Liddell",
		Password: "Secret1!",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return acct
}

func storedHash(t *testing.T, store identity.Store, accountID string) *string {
	t.Helper()

	acct, err := store.FindByID(context.Background(), accountID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	return acct.RefreshTokenHash
}

func TestRegister_Validation(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	cases := []struct {
		name string
		in   RegisterInput
	}{
		{name: "missing username", in: RegisterInput{Email: "a@b.c", FullName: "A", Password: "Secret1!"}},
		{name: "missing email", in: RegisterInput{Username: "a", FullName: "A", Password: "Secret1!"}},
		{name: "missing full name", in: RegisterInput{Username: "a", Email: "a@b.c", Password: "Secret1!"}},
		{name: "missing password", in: RegisterInput{Username: "a", Email: "a@b.c", FullName: "A"}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := svc.Register(ctx, now, tc.in); !identity.IsInvalidInput(err) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}
}

func TestRegister_ShortPasswordRejected(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)

	_, err := svc.Register(context.Background(), time.Now().UTC(), RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		FullName: "Alice",
		Password: "short",
	})
	if !identity.IsInvalidInput(err) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestRegister_DuplicateConflicts(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	register(t, svc)

	_, err := svc.Register(context.Background(), time.Now().UTC(), RegisterInput{
		Username: "ALICE",
		Email:    "fresh@example.com",
		FullName: "Impostor",
		Password: "Secret1!",
	})
	if !identity.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestLogin_IssuesPairAndStoresHash(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t)
	acct := register(t, svc)
	ctx := context.Background()
	now := time.Now().UTC()

	got, pair, err := svc.Login(ctx, now, LoginInput{Username: "alice", Password: "Secret1!"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got.ID != acct.ID {
		t.Fatalf("account id=%q want=%q", got.ID, acct.ID)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if !pair.RefreshExp.After(pair.AccessExp) {
		t.Fatalf("refresh must outlive access: %v vs %v", pair.RefreshExp, pair.AccessExp)
	}

	h := storedHash(t, store, acct.ID)
	if h == nil || *h != identity.HashRefreshTokenHex(pair.RefreshToken) {
		t.Fatal("stored hash must match the issued refresh token")
	}

	// Email works as the identifier too.
	if _, _, err := svc.Login(ctx, now, LoginInput{Email: "ALICE@example.com", Password: "Secret1!"}); err != nil {
		t.Fatalf("login by email: %v", err)
	}
}

func TestLogin_Failures(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t)
	acct := register(t, svc)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, _, err := svc.Login(ctx, now, LoginInput{Password: "Secret1!"}); !identity.IsInvalidInput(err) {
		t.Fatalf("missing identifier: %v", err)
	}
	if _, _, err := svc.Login(ctx, now, LoginInput{Username: "alice"}); !identity.IsInvalidInput(err) {
		t.Fatalf("missing password: %v", err)
	}
	if _, _, err := svc.Login(ctx, now, LoginInput{Username: "nobody", Password: "Secret1!"}); !identity.IsNotFound(err) {
		t.Fatalf("unknown account: %v", err)
	}
	if _, _, err := svc.Login(ctx, now, LoginInput{Username: "alice", Password: "WrongPass1!"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: %v", err)
	}

	// None of the failures may disturb a stored session.
	if h := storedHash(t, store, acct.ID); h != nil {
		t.Fatal("failed logins must not write a refresh token")
	}
}

func TestLogin_SecondLoginInvalidatesFirstSession(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	register(t, svc)
	ctx := context.Background()
	now := time.Now().UTC()

	_, first, err := svc.Login(ctx, now, LoginInput{Username: "alice", Password: "Secret1!"})
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	if _, _, err := svc.Login(ctx, now, LoginInput{Username: "alice", Password: "Secret1!"}); err != nil {
		t.Fatalf("second login: %v", err)
	}

	// The first session's refresh token no longer matches the stored value.
	if _, _, err := svc.Refresh(ctx, now, first.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected first session dead, got %v", err)
	}
}

func TestRefresh_RotatesAndRevokesOldToken(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t)
	acct := register(t, svc)
	ctx := context.Background()
	now := time.Now().UTC()

	_, pair, err := svc.Login(ctx, now, LoginInput{Username: "alice", Password: "Secret1!"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	_, rotated, err := svc.Refresh(ctx, now, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if rotated.RefreshToken == pair.RefreshToken {
		t.Fatal("rotation must mint a new refresh token")
	}

	h := storedHash(t, store, acct.ID)
	if h == nil || *h != identity.HashRefreshTokenHex(rotated.RefreshToken) {
		t.Fatal("store must hold the rotated token's hash")
	}

	// The superseded token is permanently unusable.
	if _, _, err := svc.Refresh(ctx, now, pair.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected replay rejection, got %v", err)
	}

	// The rotated token still works.
	if _, _, err := svc.Refresh(ctx, now, rotated.RefreshToken); err != nil {
		t.Fatalf("rotated token rejected: %v", err)
	}
}

func TestRefresh_Failures(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	register(t, svc)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, _, err := svc.Refresh(ctx, now, ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("blank token: %v", err)
	}
	if _, _, err := svc.Refresh(ctx, now, "garbage.token.here"); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("garbage token: %v", err)
	}

	// A well-signed token whose stored hash was cleared must be rejected.
	_, pair, err := svc.Login(ctx, now, LoginInput{Username: "alice", Password: "Secret1!"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := svc.Logout(ctx, now, mustAccountID(t, svc, "alice")); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, _, err := svc.Refresh(ctx, now, pair.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected rejection after logout, got %v", err)
	}
}

func TestLogout_ClearsSessionAndIsIdempotent(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t)
	acct := register(t, svc)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, _, err := svc.Login(ctx, now, LoginInput{Username: "alice", Password: "Secret1!"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := svc.Logout(ctx, now, acct.ID); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if h := storedHash(t, store, acct.ID); h != nil {
		t.Fatal("logout must clear the stored refresh token")
	}
	if err := svc.Logout(ctx, now, acct.ID); err != nil {
		t.Fatalf("repeat logout: %v", err)
	}
	if err := svc.Logout(ctx, now, "01HZZZZZZZZZZZZZZZZZZZZZZZ"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("unknown account: %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t)
	acct := register(t, svc)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, _, err := svc.Login(ctx, now, LoginInput{Username: "alice", Password: "Secret1!"}); err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := svc.ChangePassword(ctx, now, acct.ID, "", "NewSecret1!"); !identity.IsInvalidInput(err) {
		t.Fatalf("blank old password: %v", err)
	}
	if err := svc.ChangePassword(ctx, now, acct.ID, "WrongPass1!", "NewSecret1!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong old password: %v", err)
	}
	if err := svc.ChangePassword(ctx, now, acct.ID, "Secret1!", "short"); !identity.IsInvalidInput(err) {
		t.Fatalf("weak new password: %v", err)
	}

	if err := svc.ChangePassword(ctx, now, acct.ID, "Secret1!", "NewSecret1!"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	// Old password is dead, new one works.
	if _, _, err := svc.Login(ctx, now, LoginInput{Username: "alice", Password: "Secret1!"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password still accepted: %v", err)
	}
	if _, _, err := svc.Login(ctx, now, LoginInput{Username: "alice", Password: "NewSecret1!"}); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}

	// The active session survives a password change.
	if h := storedHash(t, store, acct.ID); h == nil {
		t.Fatal("password change must not clear the refresh token")
	}
}

func TestUpdateProfile(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	acct := register(t, svc)
	ctx := context.Background()
	now := time.Now().UTC()

	// No fields set is a no-op returning the current account.
	same, err := svc.UpdateProfile(ctx, now, acct.ID, nil, nil)
	if err != nil {
		t.Fatalf("no-op update: %v", err)
	}
	if same.Email != acct.Email || same.FullName != acct.FullName {
		t.Fatal("no-op update must not change anything")
	}

	name := "Alice L."
	updated, err := svc.UpdateProfile(ctx, now, acct.ID, &name, nil)
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if updated.FullName != name {
		t.Fatalf("full name=%q want=%q", updated.FullName, name)
	}
	if updated.Email != acct.Email {
		t.Fatal("email must be untouched")
	}
}

func TestVerifyAccess(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	register(t, svc)
	ctx := context.Background()
	now := time.Now().UTC()

	_, pair, err := svc.Login(ctx, now, LoginInput{Username: "alice", Password: "Secret1!"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	claims, err := svc.VerifyAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if claims.Username != "alice" || claims.Email != "alice@example.com" {
		t.Fatalf("claims: %q %q", claims.Username, claims.Email)
	}

	if _, err := svc.VerifyAccess("bogus"); !errors.Is(err, ErrInvalidAccessToken) {
		t.Fatalf("bogus token: %v", err)
	}
	// A refresh token must never pass the access gate.
	if _, err := svc.VerifyAccess(pair.RefreshToken); !errors.Is(err, ErrInvalidAccessToken) {
		t.Fatalf("refresh token accepted as access: %v", err)
	}
}

func mustAccountID(t *testing.T, svc *Service, username string) string {
	t.Helper()

	acct, err := svc.store.FindByUsernameOrEmail(context.Background(), username, "")
	if err != nil {
		t.Fatalf("find %q: %v", username, err)
	}
	return acct.ID
}
