package service

import "errors"

var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("already exists")
	ErrResetExpired       = errors.New("reset token expired")
	ErrResetUsed          = errors.New("reset token already used")
	ErrResetNotFound      = errors.New("reset token not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrUnauthorized       = errors.New("unauthorized")
)
