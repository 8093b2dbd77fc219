// Package identity implements Helix's account foundation.
//
// It contains the Account model, the credential-store contract consumed by the
// authentication service, security primitives (ULID ids, password hashing,
// token hashing), and the Postgres and in-memory store implementations.
//
// This package is intentionally dependency-light and security-first.
package identity
