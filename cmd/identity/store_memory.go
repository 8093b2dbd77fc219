package identity

import (
	"context"
	"strings"
	"sync"
	"time"
)

// InMemoryStore is a dev-only credential store used when no database is
// configured, and the workhorse for unit tests.
//
// It implements the same contract as PostgresStore, including the
// compare-and-set rotation semantics, guarded by a single mutex.
type InMemoryStore struct {
	mu       sync.Mutex
	accounts map[string]*Account // id -> account
	byUser   map[string]string   // username_norm -> id
	byEmail  map[string]string   // email_norm -> id
}

// NewInMemoryStore constructs an empty in-memory credential store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		accounts: make(map[string]*Account),
		byUser:   make(map[string]string),
		byEmail:  make(map[string]string),
	}
}

// Create inserts a new account, enforcing username/email uniqueness.
func (s *InMemoryStore) Create(ctx context.Context, in CreateAccountInput) (Account, error) {
	const op = "identity.Create"

	if err := ctx.Err(); err != nil {
		return Account{}, err
	}

	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	fullName := strings.TrimSpace(in.FullName)
	if username == "" || email == "" || fullName == "" {
		return Account{}, pgInvalid(op, "username, email and full name are required")
	}
	if strings.TrimSpace(in.PasswordHash) == "" {
		return Account{}, pgInvalid(op, "password hash is required")
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	usernameNorm := NormalizeUsername(username)
	emailNorm := NormalizeEmail(email)

	accountID, err := NewULID(now)
	if err != nil {
		return Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUser[usernameNorm]; exists {
		return Account{}, ConflictError{Op: op, Field: "username"}
	}
	if _, exists := s.byEmail[emailNorm]; exists {
		return Account{}, ConflictError{Op: op, Field: "email"}
	}

	acct := &Account{
		ID:           accountID,
		Username:     username,
		UsernameNorm: usernameNorm,
		Email:        email,
		EmailNorm:    emailNorm,
		FullName:     fullName,
		PasswordHash: in.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.accounts[accountID] = acct
	s.byUser[usernameNorm] = accountID
	s.byEmail[emailNorm] = accountID

	return cloneAccount(acct), nil
}

// FindByID loads an account by id.
func (s *InMemoryStore) FindByID(ctx context.Context, accountID string) (Account, error) {
	const op = "identity.FindByID"

	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	if strings.TrimSpace(accountID) == "" {
		return Account{}, pgInvalid(op, "missing account_id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[accountID]
	if !ok {
		return Account{}, NotFoundError{Op: op, Resource: "account"}
	}
	return cloneAccount(acct), nil
}

// FindByUsernameOrEmail loads an account matching either normalized identifier.
func (s *InMemoryStore) FindByUsernameOrEmail(ctx context.Context, username, email string) (Account, error) {
	const op = "identity.FindByUsernameOrEmail"

	if err := ctx.Err(); err != nil {
		return Account{}, err
	}

	usernameNorm := NormalizeUsername(username)
	emailNorm := NormalizeEmail(email)
	if usernameNorm == "" && emailNorm == "" {
		return Account{}, pgInvalid(op, "username or email is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if usernameNorm != "" {
		if id, ok := s.byUser[usernameNorm]; ok {
			return cloneAccount(s.accounts[id]), nil
		}
	}
	if emailNorm != "" {
		if id, ok := s.byEmail[emailNorm]; ok {
			return cloneAccount(s.accounts[id]), nil
		}
	}
	return Account{}, NotFoundError{Op: op, Resource: "account"}
}

// UpdateRefreshToken unconditionally overwrites the stored refresh-token hash.
func (s *InMemoryStore) UpdateRefreshToken(ctx context.Context, accountID string, hash *string, now time.Time) error {
	const op = "identity.UpdateRefreshToken"

	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(accountID) == "" {
		return pgInvalid(op, "missing account_id")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[accountID]
	if !ok {
		return NotFoundError{Op: op, Resource: "account"}
	}
	if hash == nil {
		acct.RefreshTokenHash = nil
	} else {
		v := *hash
		acct.RefreshTokenHash = &v
	}
	acct.UpdatedAt = now
	return nil
}

// RotateRefreshToken replaces oldHash with newHash only while oldHash is still stored.
func (s *InMemoryStore) RotateRefreshToken(ctx context.Context, accountID, oldHash, newHash string, now time.Time) error {
	const op = "identity.RotateRefreshToken"

	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(accountID) == "" {
		return pgInvalid(op, "missing account_id")
	}
	if !hexHash64Valid(oldHash) || !hexHash64Valid(newHash) {
		return pgInvalid(op, "malformed token hash")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[accountID]
	if !ok {
		return notActiveRotate()
	}
	if acct.RefreshTokenHash == nil || !ctEqHex64(*acct.RefreshTokenHash, oldHash) {
		return notActiveRotate()
	}

	v := newHash
	acct.RefreshTokenHash = &v
	acct.UpdatedAt = now
	return nil
}

// UpdatePasswordHash replaces the stored password hash, leaving the
// refresh-token field untouched.
func (s *InMemoryStore) UpdatePasswordHash(ctx context.Context, accountID, passwordHash string, now time.Time) error {
	const op = "identity.UpdatePasswordHash"

	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(accountID) == "" {
		return pgInvalid(op, "missing account_id")
	}
	if strings.TrimSpace(passwordHash) == "" {
		return pgInvalid(op, "missing password hash")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[accountID]
	if !ok {
		return NotFoundError{Op: op, Resource: "account"}
	}
	acct.PasswordHash = passwordHash
	acct.UpdatedAt = now
	return nil
}

// UpdateProfile mutates display fields and returns the updated account.
func (s *InMemoryStore) UpdateProfile(ctx context.Context, in UpdateProfileInput) (Account, error) {
	const op = "identity.UpdateProfile"

	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	if strings.TrimSpace(in.AccountID) == "" {
		return Account{}, pgInvalid(op, "missing account_id")
	}

	fullName := pgTrimPtr(in.FullName)
	email := pgTrimPtr(in.Email)
	if fullName == nil && email == nil {
		return Account{}, pgInvalid(op, "nothing to update")
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[in.AccountID]
	if !ok {
		return Account{}, NotFoundError{Op: op, Resource: "account"}
	}

	if email != nil {
		emailNorm := NormalizeEmail(*email)
		if other, exists := s.byEmail[emailNorm]; exists && other != in.AccountID {
			return Account{}, ConflictError{Op: op, Field: "email"}
		}
		delete(s.byEmail, acct.EmailNorm)
		acct.Email = *email
		acct.EmailNorm = emailNorm
		s.byEmail[emailNorm] = in.AccountID
	}
	if fullName != nil {
		acct.FullName = *fullName
	}
	acct.UpdatedAt = now

	return cloneAccount(acct), nil
}

func cloneAccount(a *Account) Account {
	out := *a
	if a.RefreshTokenHash != nil {
		v := *a.RefreshTokenHash
		out.RefreshTokenHash = &v
	}
	return out
}
