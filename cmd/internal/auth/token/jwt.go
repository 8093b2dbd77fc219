package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"helix/cmd/identity/ids"
)

// ErrInvalidToken is returned when a token fails signature, shape, or expiry
// verification. Callers must not distinguish the failure reason further.
var ErrInvalidToken = errors.New("invalid token")

// AccessClaims is the identity envelope carried by access tokens.
type AccessClaims struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// RefreshClaims carries only the account id (in Subject). Renewal must go
// through the store, so no display identity is embedded.
type RefreshClaims struct {
	jwt.RegisteredClaims
}

// AccountID returns the account id asserted by the claims.
func (c AccessClaims) AccountID() string { return c.Subject }

// AccountID returns the account id asserted by the claims.
func (c RefreshClaims) AccountID() string { return c.Subject }

// Issuer issues and verifies both token classes from one Config.
// It is immutable after construction and safe for concurrent use.
type Issuer struct {
	cfg Config
}

// NewIssuer validates cfg and constructs an Issuer.
func NewIssuer(cfg Config) (*Issuer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Issuer{cfg: cfg}, nil
}

// IssueAccess signs a short-lived access token asserting the given identity.
func (i *Issuer) IssueAccess(accountID, username, email string, now time.Time) (string, time.Time, error) {
	if accountID == "" {
		return "", time.Time{}, fmt.Errorf("token: missing account id")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	exp := now.Add(i.cfg.AccessTTL)

	jti, err := ids.NewULID(now)
	if err != nil {
		return "", time.Time{}, err
	}

	claims := AccessClaims{
		Username: username,
		Email:    email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.cfg.Issuer,
			Subject:   accountID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.cfg.AccessSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// IssueRefresh signs a long-lived refresh token asserting only the account id.
func (i *Issuer) IssueRefresh(accountID string, now time.Time) (string, time.Time, error) {
	if accountID == "" {
		return "", time.Time{}, fmt.Errorf("token: missing account id")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	exp := now.Add(i.cfg.RefreshTTL)

	// The jti makes every issued token unique even within the same second;
	// without it, back-to-back rotations could mint a byte-identical token.
	jti, err := ids.NewULID(now)
	if err != nil {
		return "", time.Time{}, err
	}

	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.cfg.Issuer,
			Subject:   accountID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.cfg.RefreshSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// VerifyAccess verifies an access token and returns its claims.
// Fails with ErrInvalidToken on bad signature, malformed token, or expiry.
func (i *Issuer) VerifyAccess(tokenStr string) (AccessClaims, error) {
	var claims AccessClaims
	if err := i.verify(tokenStr, &claims, i.cfg.AccessSecret); err != nil {
		return AccessClaims{}, err
	}
	return claims, nil
}

// VerifyRefresh verifies a refresh token and returns its claims.
//
// Callers must additionally match the raw token against the store before
// trusting it: signature validity alone does not make a refresh token live.
func (i *Issuer) VerifyRefresh(tokenStr string) (RefreshClaims, error) {
	var claims RefreshClaims
	if err := i.verify(tokenStr, &claims, i.cfg.RefreshSecret); err != nil {
		return RefreshClaims{}, err
	}
	return claims, nil
}

func (i *Issuer) verify(tokenStr string, claims jwt.Claims, secret []byte) error {
	// Basic sanity bounds to avoid pathological inputs.
	if tokenStr == "" || len(tokenStr) > 4096 {
		return ErrInvalidToken
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.cfg.Issuer),
		jwt.WithLeeway(i.cfg.Leeway),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)

	parsed, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return secret, nil
	})
	if err != nil || !parsed.Valid {
		return ErrInvalidToken
	}

	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return ErrInvalidToken
	}
	return nil
}
