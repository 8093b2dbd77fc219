package identity

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements the credential store over PostgreSQL.
//
// Design notes:
// - The pgx pool is owned by the caller; this store must NOT close it.
// - Schema/table identifiers are safely quoted to avoid SQL injection via identifiers.
// - RotateRefreshToken is atomic: a single conditional UPDATE keyed on the
//   currently stored refresh-token hash, so concurrent rotations have one winner.
// - Errors are mapped to identity sentinel kinds where appropriate.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the identity store (default "helix").
// The schema name is validated to be a legal PostgreSQL identifier.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentIsValid(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore with secure defaults.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "helix",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

const accountColumns = `id, username, username_norm, email, email_norm, full_name,
	        password_hash, refresh_token_hash, created_at, updated_at`

// Create inserts a new account row.
func (s *PostgresStore) Create(ctx context.Context, in CreateAccountInput) (Account, error) {
	const op = "identity.Create"

	if s == nil || s.pool == nil {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
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

	accounts := pgIdent(s.schema, "accounts")

	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+accounts+` (
		     id, username, username_norm, email, email_norm, full_name,
		     password_hash, created_at, updated_at
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		accountID,
		username,
		usernameNorm,
		email,
		emailNorm,
		fullName,
		in.PasswordHash,
		now,
	)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return Account{}, ConflictError{Op: op, Field: field}
		}
		return Account{}, err
	}

	return Account{
		ID:           accountID,
		Username:     username,
		UsernameNorm: usernameNorm,
		Email:        email,
		EmailNorm:    emailNorm,
		FullName:     fullName,
		PasswordHash: in.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// FindByID loads an account by id.
func (s *PostgresStore) FindByID(ctx context.Context, accountID string) (Account, error) {
	const op = "identity.FindByID"

	if s == nil || s.pool == nil {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	if strings.TrimSpace(accountID) == "" {
		return Account{}, pgInvalid(op, "missing account_id")
	}

	accounts := pgIdent(s.schema, "accounts")

	row := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM `+accounts+` WHERE id = $1`,
		accountID,
	)
	out, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, NotFoundError{Op: op, Resource: "account"}
		}
		return Account{}, err
	}
	return out, nil
}

// FindByUsernameOrEmail loads an account matching either normalized identifier.
func (s *PostgresStore) FindByUsernameOrEmail(ctx context.Context, username, email string) (Account, error) {
	const op = "identity.FindByUsernameOrEmail"

	if s == nil || s.pool == nil {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}

	usernameNorm := NormalizeUsername(username)
	emailNorm := NormalizeEmail(email)
	if usernameNorm == "" && emailNorm == "" {
		return Account{}, pgInvalid(op, "username or email is required")
	}

	accounts := pgIdent(s.schema, "accounts")

	// Blank identifiers are passed as NULL so they can never match.
	var unArg, emArg any
	if usernameNorm != "" {
		unArg = usernameNorm
	}
	if emailNorm != "" {
		emArg = emailNorm
	}

	row := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+`
		   FROM `+accounts+`
		  WHERE username_norm = $1 OR email_norm = $2
		  LIMIT 1`,
		unArg, emArg,
	)
	out, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, NotFoundError{Op: op, Resource: "account"}
		}
		return Account{}, err
	}
	return out, nil
}

// UpdateRefreshToken unconditionally overwrites the stored refresh-token hash.
// A nil hash clears the field (logout). Idempotent for already-cleared accounts.
func (s *PostgresStore) UpdateRefreshToken(ctx context.Context, accountID string, hash *string, now time.Time) error {
	const op = "identity.UpdateRefreshToken"

	if s == nil || s.pool == nil {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(accountID) == "" {
		return pgInvalid(op, "missing account_id")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	accounts := pgIdent(s.schema, "accounts")

	ct, err := s.pool.Exec(ctx,
		`UPDATE `+accounts+`
		    SET refresh_token_hash = $1,
		        updated_at = $2
		  WHERE id = $3`,
		hash, now, accountID,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "account"}
	}
	return nil
}

// RotateRefreshToken performs the compare-and-set rotation.
//
// The UPDATE is keyed on the currently stored hash, so of two concurrent
// refresh calls presenting the same token exactly one succeeds; the loser
// observes zero affected rows and gets ErrNotActive.
func (s *PostgresStore) RotateRefreshToken(ctx context.Context, accountID, oldHash, newHash string, now time.Time) error {
	const op = "identity.RotateRefreshToken"

	if s == nil || s.pool == nil {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
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

	accounts := pgIdent(s.schema, "accounts")

	ct, err := s.pool.Exec(ctx,
		`UPDATE `+accounts+`
		    SET refresh_token_hash = $1,
		        updated_at = $2
		  WHERE id = $3
		    AND refresh_token_hash = $4`,
		newHash, now, accountID, oldHash,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return notActiveRotate()
	}
	return nil
}

// UpdatePasswordHash replaces the stored password hash.
// The refresh-token field is untouched: a password change does not revoke
// the active session.
func (s *PostgresStore) UpdatePasswordHash(ctx context.Context, accountID, passwordHash string, now time.Time) error {
	const op = "identity.UpdatePasswordHash"

	if s == nil || s.pool == nil {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
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

	accounts := pgIdent(s.schema, "accounts")

	ct, err := s.pool.Exec(ctx,
		`UPDATE `+accounts+`
		    SET password_hash = $1,
		        updated_at = $2
		  WHERE id = $3`,
		passwordHash, now, accountID,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "account"}
	}
	return nil
}

// UpdateProfile mutates display fields and returns the updated row.
func (s *PostgresStore) UpdateProfile(ctx context.Context, in UpdateProfileInput) (Account, error) {
	const op = "identity.UpdateProfile"

	if s == nil || s.pool == nil {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
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

	var emailNorm *string
	if email != nil {
		n := NormalizeEmail(*email)
		emailNorm = &n
	}

	accounts := pgIdent(s.schema, "accounts")

	row := s.pool.QueryRow(ctx,
		`UPDATE `+accounts+`
		    SET full_name  = COALESCE($1, full_name),
		        email      = COALESCE($2, email),
		        email_norm = COALESCE($3, email_norm),
		        updated_at = $4
		  WHERE id = $5
		RETURNING `+accountColumns,
		fullName, email, emailNorm, now, in.AccountID,
	)
	out, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, NotFoundError{Op: op, Resource: "account"}
		}
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return Account{}, ConflictError{Op: op, Field: field}
		}
		return Account{}, err
	}
	return out, nil
}

// ---- helpers ----

func scanAccount(row pgx.Row) (Account, error) {
	var out Account
	err := row.Scan(
		&out.ID,
		&out.Username,
		&out.UsernameNorm,
		&out.Email,
		&out.EmailNorm,
		&out.FullName,
		&out.PasswordHash,
		&out.RefreshTokenHash,
		&out.CreatedAt,
		&out.UpdatedAt,
	)
	if err != nil {
		return Account{}, err
	}
	return out, nil
}

// hexHash64Valid reports whether s looks like a 64-char hex digest.
// Enforcing the fixed length keeps hash comparisons length-stable.
func hexHash64Valid(s string) bool {
	if len(s) != 64 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// ctEqHex64 compares two expected 64-char hex strings in constant time.
// Rejects if either length != 64 to keep timing stable.
func ctEqHex64(a, b string) bool {
	if len(a) != 64 || len(b) != 64 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// pgTrimPtr trims a string pointer, returning nil if result is empty.
func pgTrimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	s := strings.TrimSpace(*p)
	if s == "" {
		return nil
	}
	return &s
}

// pgInvalid standardizes invalid input errors.
func pgInvalid(op, msg string) error {
	return OpError{Op: op, Kind: ErrInvalidInput, Msg: msg}
}

// pgIdentIsValid checks if a string is a safe Postgres identifier.
func pgIdentIsValid(s string) bool {
	return pgIdentRe.MatchString(s)
}

// pgIdent safely quotes a schema-qualified identifier: "schema"."name".
func pgIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	// Prefer stable schema constraint names. Fall back to heuristic substring matching.
	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))

	switch c {
	case "uq_accounts_username_norm":
		return "username", true
	case "uq_accounts_email_norm":
		return "email", true
	default:
		switch {
		case strings.Contains(c, "username"):
			return "username", true
		case strings.Contains(c, "email"):
			return "email", true
		default:
			return "unique", true
		}
	}
}
