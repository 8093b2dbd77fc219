package identity

import (
	"context"
	"time"
)

// Account is Helix's canonical security principal.
//
// IMPORTANT: PasswordHash and RefreshTokenHash are server-side secrets and
// must never be serialized into API responses.
type Account struct {
	ID           string
	Username     string
	UsernameNorm string
	Email        string
	EmailNorm    string
	FullName     string

	PasswordHash string

	// RefreshTokenHash holds the hash of the single currently valid refresh
	// token, or nil when the account has no active session (logged out).
	// Issuing a new refresh token overwrites this value and invalidates the
	// previous token.
	RefreshTokenHash *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateAccountInput describes a registration request.
// All fields are required; the password arrives already hashed.
type CreateAccountInput struct {
	Username     string
	Email        string
	FullName     string
	PasswordHash string
	Now          time.Time
}

// UpdateProfileInput mutates display fields. Nil fields are left untouched.
type UpdateProfileInput struct {
	AccountID string
	FullName  *string
	Email     *string
	Now       time.Time
}

// Store is the credential persistence boundary.
//
// Implementations must offer per-record atomic read/write. RotateRefreshToken
// must be compare-and-set: the update applies only while the stored hash still
// equals the presented one, so concurrent rotations have exactly one winner.
type Store interface {
	// Create inserts a new account. Returns ConflictError on duplicate
	// username or email (normalized comparison).
	Create(ctx context.Context, in CreateAccountInput) (Account, error)

	// FindByID loads an account by id. Returns ErrNotFound if missing.
	FindByID(ctx context.Context, accountID string) (Account, error)

	// FindByUsernameOrEmail loads an account matching either normalized
	// identifier; blank arguments are ignored. Returns ErrNotFound if no
	// identifier matches.
	FindByUsernameOrEmail(ctx context.Context, username, email string) (Account, error)

	// UpdateRefreshToken unconditionally overwrites the stored refresh-token
	// hash (nil clears it; logout). Returns ErrNotFound for unknown accounts.
	UpdateRefreshToken(ctx context.Context, accountID string, hash *string, now time.Time) error

	// RotateRefreshToken replaces oldHash with newHash only if oldHash is
	// still the stored value. Returns ErrNotActive when the account is
	// missing, the token was cleared, or another rotation won the race.
	RotateRefreshToken(ctx context.Context, accountID, oldHash, newHash string, now time.Time) error

	// UpdatePasswordHash replaces the stored password hash.
	// It does NOT touch the refresh-token field.
	UpdatePasswordHash(ctx context.Context, accountID, passwordHash string, now time.Time) error

	// UpdateProfile mutates display fields and returns the updated account.
	// Returns ConflictError if a new email collides with another account.
	UpdateProfile(ctx context.Context, in UpdateProfileInput) (Account, error)
}
