package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"helix/cmd/identity"
	"helix/cmd/internal/auth/token"
)

// Service implements the high-level authentication operations for Helix.
//
// Each operation is an independent request-scoped transaction against the
// credential store; there is no in-process session state.
type Service struct {
	store  identity.Store
	tokens *token.Issuer
}

// TokenPair is the result of issuing or rotating a session.
// It includes a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken string
	AccessExp   time.Time

	RefreshToken string
	RefreshExp   time.Time
}

// RegisterInput describes a registration request. All fields are required.
type RegisterInput struct {
	Username string
	Email    string
	FullName string
	Password string
}

// LoginInput describes a login request. At least one identifier plus the
// password must be supplied.
type LoginInput struct {
	Username string
	Email    string
	Password string
}

// NewService constructs a Service over the provided store and token issuer.
func NewService(store identity.Store, tokens *token.Issuer) *Service {
	return &Service{store: store, tokens: tokens}
}

// Register validates input, hashes the password, and creates the account.
//
// Fails with identity.ErrInvalidInput on blank fields and
// identity.ErrConflict on duplicate username or email. The returned account
// still carries the password hash; transport must sanitize it.
func (s *Service) Register(ctx context.Context, now time.Time, in RegisterInput) (identity.Account, error) {
	if strings.TrimSpace(in.Username) == "" ||
		strings.TrimSpace(in.Email) == "" ||
		strings.TrimSpace(in.FullName) == "" ||
		strings.TrimSpace(in.Password) == "" {
		return identity.Account{}, identity.OpError{
			Op:   "user.Register",
			Kind: identity.ErrInvalidInput,
			Msg:  "all fields are required",
		}
	}

	pwHash, err := identity.HashPassword(in.Password)
	if err != nil {
		return identity.Account{}, err
	}

	// Uniqueness is enforced by the store; no pre-check, so two racing
	// registrations cannot both pass.
	return s.store.Create(ctx, identity.CreateAccountInput{
		Username:     in.Username,
		Email:        in.Email,
		FullName:     in.FullName,
		PasswordHash: pwHash,
		Now:          now,
	})
}

// Login verifies credentials and issues a fresh token pair, overwriting any
// previously stored refresh token (the prior session is invalidated).
//
// Fails with identity.ErrInvalidInput when identifier or password is missing,
// identity.ErrNotFound when no account matches, and ErrInvalidCredentials on
// password mismatch. A failed login never alters the stored refresh token.
func (s *Service) Login(ctx context.Context, now time.Time, in LoginInput) (identity.Account, TokenPair, error) {
	hasIdentifier := strings.TrimSpace(in.Username) != "" || strings.TrimSpace(in.Email) != ""
	if !hasIdentifier || strings.TrimSpace(in.Password) == "" {
		return identity.Account{}, TokenPair{}, identity.OpError{
			Op:   "user.Login",
			Kind: identity.ErrInvalidInput,
			Msg:  "username/email and password are required",
		}
	}

	acct, err := s.store.FindByUsernameOrEmail(ctx, in.Username, in.Email)
	if err != nil {
		return identity.Account{}, TokenPair{}, err
	}

	ok, err := identity.VerifyPassword(in.Password, acct.PasswordHash)
	if err != nil {
		return identity.Account{}, TokenPair{}, err
	}
	if !ok {
		return identity.Account{}, TokenPair{}, ErrInvalidCredentials
	}

	pair, err := s.issuePair(ctx, now, acct, "")
	if err != nil {
		return identity.Account{}, TokenPair{}, err
	}
	return acct, pair, nil
}

// Logout clears the account's stored refresh token.
// Idempotent: safe to call when already logged out.
func (s *Service) Logout(ctx context.Context, now time.Time, accountID string) error {
	err := s.store.UpdateRefreshToken(ctx, accountID, nil, now)
	if identity.IsNotFound(err) {
		return ErrUnauthorized
	}
	return err
}

// Refresh rotates a presented refresh token into a brand-new token pair.
//
// The presented token is valid only if it (a) verifies signature and expiry
// and (b) still hashes to the value stored on the referenced account. The
// rotation overwrite is compare-and-set, so the old token becomes permanently
// unusable the moment one rotation wins.
func (s *Service) Refresh(ctx context.Context, now time.Time, presented string) (identity.Account, TokenPair, error) {
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return identity.Account{}, TokenPair{}, ErrUnauthorized
	}

	claims, err := s.tokens.VerifyRefresh(presented)
	if err != nil {
		return identity.Account{}, TokenPair{}, ErrInvalidRefreshToken
	}

	acct, err := s.store.FindByID(ctx, claims.AccountID())
	if err != nil {
		if identity.IsNotFound(err) {
			return identity.Account{}, TokenPair{}, ErrInvalidRefreshToken
		}
		return identity.Account{}, TokenPair{}, err
	}

	pair, err := s.issuePair(ctx, now, acct, identity.HashRefreshTokenHex(presented))
	if err != nil {
		if identity.IsNotActive(err) {
			return identity.Account{}, TokenPair{}, ErrInvalidRefreshToken
		}
		return identity.Account{}, TokenPair{}, err
	}
	return acct, pair, nil
}

// ChangePassword verifies the old password and replaces the stored hash.
//
// It deliberately does NOT revoke the stored refresh token: a password change
// does not invalidate the active session in this model.
func (s *Service) ChangePassword(ctx context.Context, now time.Time, accountID, oldPassword, newPassword string) error {
	if strings.TrimSpace(oldPassword) == "" || strings.TrimSpace(newPassword) == "" {
		return identity.OpError{
			Op:   "user.ChangePassword",
			Kind: identity.ErrInvalidInput,
			Msg:  "old and new password are required",
		}
	}

	acct, err := s.store.FindByID(ctx, accountID)
	if err != nil {
		if identity.IsNotFound(err) {
			return ErrUnauthorized
		}
		return err
	}

	ok, err := identity.VerifyPassword(oldPassword, acct.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCredentials
	}

	newHash, err := identity.HashPassword(newPassword)
	if err != nil {
		return err
	}

	return s.store.UpdatePasswordHash(ctx, accountID, newHash, now)
}

// VerifyAccess validates a raw access token and returns its claims. Any
// failure, including expiry, maps to ErrInvalidAccessToken.
func (s *Service) VerifyAccess(tokenStr string) (token.AccessClaims, error) {
	claims, err := s.tokens.VerifyAccess(tokenStr)
	if err != nil {
		return token.AccessClaims{}, ErrInvalidAccessToken
	}
	return claims, nil
}

// CurrentAccount resolves an account by id for the verification gate and the
// current-user endpoint.
func (s *Service) CurrentAccount(ctx context.Context, accountID string) (identity.Account, error) {
	return s.store.FindByID(ctx, accountID)
}

// UpdateProfile mutates display fields. Nil fields are left untouched; a call
// with nothing to update returns the current account unchanged.
func (s *Service) UpdateProfile(ctx context.Context, now time.Time, accountID string, fullName, email *string) (identity.Account, error) {
	if trimPtrEmpty(fullName) && trimPtrEmpty(email) {
		return s.store.FindByID(ctx, accountID)
	}
	return s.store.UpdateProfile(ctx, identity.UpdateProfileInput{
		AccountID: accountID,
		FullName:  fullName,
		Email:     email,
		Now:       now,
	})
}

// issuePair creates a new access/refresh pair and persists the refresh hash.
// With an empty oldHash the stored value is overwritten unconditionally
// (login); otherwise the overwrite is compare-and-set (rotation).
func (s *Service) issuePair(ctx context.Context, now time.Time, acct identity.Account, oldHash string) (TokenPair, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	accessToken, accessExp, err := s.tokens.IssueAccess(acct.ID, acct.Username, acct.Email, now)
	if err != nil {
		return TokenPair{}, err
	}
	refreshToken, refreshExp, err := s.tokens.IssueRefresh(acct.ID, now)
	if err != nil {
		return TokenPair{}, err
	}

	newHash := identity.HashRefreshTokenHex(refreshToken)
	if oldHash == "" {
		err = s.store.UpdateRefreshToken(ctx, acct.ID, &newHash, now)
	} else {
		err = s.store.RotateRefreshToken(ctx, acct.ID, oldHash, newHash, now)
	}
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  accessToken,
		AccessExp:    accessExp,
		RefreshToken: refreshToken,
		RefreshExp:   refreshExp,
	}, nil
}

func trimPtrEmpty(p *string) bool {
	return p == nil || strings.TrimSpace(*p) == ""
}

// IsAuthError reports whether err belongs to the 401 family.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrInvalidRefreshToken) ||
		errors.Is(err, ErrInvalidAccessToken)
}
