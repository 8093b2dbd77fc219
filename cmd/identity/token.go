package identity

import (
	"helix/cmd/security/token"
)

// Token hashing hardening:
//
// - identity delegates refresh-token hashing to cmd/security/token as the single source of truth.
// - Output is always a 64-char hex string.
// - The plain refresh token lives only on the client (cookie/body); the server
//   stores only its hash, so an exact-match check compares hashes.
//
// Recommendation (prod):
// - Set HELIX_TOKEN_HMAC_KEY to a long random secret (>= 32 bytes).

// HashRefreshTokenHex returns the server-stored hash for refresh tokens.
// It uses HMAC-SHA256 if HELIX_TOKEN_HMAC_KEY is set; otherwise falls back to SHA-256.
func HashRefreshTokenHex(tokenStr string) string { return token.HashRefreshTokenHex(tokenStr) }

// HashTokenSHA256Hex returns a SHA-256 hex hash of the token.
func HashTokenSHA256Hex(tokenStr string) string { return token.HashSHA256Hex(tokenStr) }
