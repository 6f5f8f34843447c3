package model

import "errors"

var (
	// User related errors
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotConfirmed       = errors.New("email not confirmed")
	ErrUnknownSubject     = errors.New("unknown token subject")

	// Token related errors
	ErrInvalidToken  = errors.New("invalid token")
	ErrTokenExpired  = errors.New("token expired")
	ErrScopeMismatch = errors.New("token scope mismatch")

	// Refresh token presented does not match the stored one.
	ErrRefreshTokenMismatch = errors.New("refresh token mismatch")

	// Permission/Access related errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Contact related errors
	ErrContactNotFound      = errors.New("contact not found")
	ErrContactAlreadyExists = errors.New("contact already exists")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)

// IsTokenError reports whether err is one of the token failures that surface
// to clients as unauthorized.
func IsTokenError(err error) bool {
	return errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrScopeMismatch)
}
