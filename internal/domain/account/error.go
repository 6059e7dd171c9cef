package account

import "errors"

var (
	ErrNotFound     = errors.New("account not found")
	ErrExists       = errors.New("account already exists")
	ErrInvalidToken = errors.New("invalid token")
	ErrInvalidInput = errors.New("invalid input")
)
