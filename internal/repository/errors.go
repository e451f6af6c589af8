package repository

import "errors"

var (
	ErrNotFound           = errors.New("user not found")
	ErrDuplicateUsername  = errors.New("username already exists")
	ErrDuplicateEmail     = errors.New("email already exists")
	ErrResetTokenNotFound = errors.New("reset token not found")
)
