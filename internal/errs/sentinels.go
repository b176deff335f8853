// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., email or SKU taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrUnauthorized indicates failed authentication.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates an authenticated caller lacking role or ownership.
	ErrForbidden = errors.New("forbidden")

	// ErrRateLimited indicates the caller exceeded an attempt window.
	ErrRateLimited = errors.New("rate limited")

	// ErrInvalidCredentials is returned for unknown email or wrong password alike.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrAccountDisabled indicates a deactivated account.
	ErrAccountDisabled = errors.New("account is deactivated")

	// ErrTokenExpired indicates a well-formed token past its expiry.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates a token failing signature, structure or purpose checks.
	ErrTokenInvalid = errors.New("invalid token")

	// ErrTokenRevoked indicates the embedded token version no longer matches the account.
	ErrTokenRevoked = errors.New("token has been revoked")

	// ErrProductUnavailable indicates an order line references a missing or deactivated product.
	ErrProductUnavailable = errors.New("product unavailable")

	// ErrSequenceExhausted indicates the per-day order counter ran past four digits.
	ErrSequenceExhausted = errors.New("order sequence exhausted for the day")

	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")
)
