package user

import "errors"

var (
	// ErrUnauthorized is returned when no credential or token accompanies a
	// request that needs one.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidCredentials is returned when password verification fails.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidRefreshToken is returned when a presented refresh token fails
	// signature/expiry verification, references an unknown account, or does
	// not match the stored value. The reasons are deliberately
	// indistinguishable to the caller.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// ErrInvalidAccessToken is returned by the verification gate when an
	// access token cannot be verified or its identity cannot be resolved.
	ErrInvalidAccessToken = errors.New("invalid access token")
)
