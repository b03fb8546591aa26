package apperrors

import (
	"errors"
)

var (
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrTooManyAttempts    = errors.New("too many login attempts")
	ErrInvalidInput       = errors.New("invalid input")

	// Token verification failures. Callers branch on them to pick the user-facing message
	ErrNoCredential     = errors.New("no credential provided")
	ErrMalformedToken   = errors.New("token is malformed")
	ErrTokenExpired     = errors.New("token is expired")
	ErrSignatureInvalid = errors.New("token signature is invalid")

	// Presented refresh token is not the one stored for the user (rotated, revoked or never issued)
	ErrRefreshMismatch = errors.New("refresh token mismatch")
)
