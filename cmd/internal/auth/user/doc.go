// Package user implements Helix's authentication service.
//
// It orchestrates the session lifecycle over the credential store, the
// password hasher, and the token issuer: registration, login, logout, refresh
// rotation, password change, and profile retrieval/update.
//
// Refresh tokens follow a single-active-session model: the store holds at
// most one live refresh-token hash per account, and every issuance overwrites
// it. Rotation is compare-and-set, so a concurrent refresh with the same
// now-stale token has exactly one winner.
//
// Transport (HTTP) integration is intentionally out of scope here.
package user
