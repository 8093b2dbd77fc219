// Package identity password hashing (Argon2id).
//
// identity delegates hashing to cmd/security/password as the single source of
// truth for Argon2id parameters (defaults + env overrides), password policy,
// and strict PHC decoding with anti-DoS bounds during Verify.
package identity

import (
	"errors"

	"helix/cmd/security/password"
)

// HashPassword returns a PHC-style Argon2id hash string.
//
// Security contract:
// - Enforces a baseline min length of 8.
// - Will honor stricter password policy from env (via security/password).
func HashPassword(passwordPlain string) (string, error) {
	cfg, err := password.FromEnv()
	if err != nil {
		// Treat invalid env as an operational error, not a weak fallback.
		return "", err
	}

	enc, err := cfg.Hash(passwordPlain)
	if err != nil {
		switch {
		case errors.Is(err, password.ErrPasswordTooShort):
			return "", OpError{Op: "identity.HashPassword", Kind: ErrInvalidInput, Msg: "password too short"}
		case errors.Is(err, password.ErrPasswordTooLong):
			return "", OpError{Op: "identity.HashPassword", Kind: ErrInvalidInput, Msg: "password too long"}
		case errors.Is(err, password.ErrWeakPassword):
			return "", OpError{Op: "identity.HashPassword", Kind: ErrInvalidInput, Msg: "weak password"}
		default:
			return "", err
		}
	}

	return enc, nil
}

// VerifyPassword checks a password against a PHC Argon2id hash.
//
// Security contract:
// - Strict PHC parsing; a malformed hash is an error, never a false match.
// - Anti-DoS: verification refuses hashes with parameters wildly above configured maxima.
func VerifyPassword(passwordPlain string, encodedPHC string) (bool, error) {
	cfg, err := password.FromEnv()
	if err != nil {
		return false, err
	}

	ok, err := cfg.Verify(encodedPHC, passwordPlain)
	if err != nil {
		if errors.Is(err, password.ErrInvalidHash) {
			return false, errors.New("invalid argon2id hash format")
		}
		return false, err
	}
	return ok, nil
}
