package storage

import "errors"

// Common storage errors
var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrAlreadyVerified     = errors.New("already verified")
	ErrInsufficientBalance = errors.New("insufficient balance")
)
