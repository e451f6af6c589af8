// Package auth implements password hashing, token issuance and the
// password-reset flow behind the HTTP handlers.
package auth

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrEmailTaken         = errors.New("email already exists")
	ErrResetTokenInvalid  = errors.New("invalid or expired reset token")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
)
