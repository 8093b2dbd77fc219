// Package token implements Helix's token issuer.
//
// It issues and verifies the two classes of signed, expiring JWTs:
//
//   - Access tokens are short-lived and carry display identity
//     (account id, username, email) so protected calls can be authorized
//     without a store lookup of the token itself.
//   - Refresh tokens are long-lived and carry only the account id, forcing a
//     store lookup (and stored-value match) on every renewal.
//
// The two classes are signed with distinct secrets, bounding the blast radius
// of a leaked access token versus a leaked refresh token.
//
// Transport (HTTP cookies/headers) integration is intentionally out of scope here.
package token
