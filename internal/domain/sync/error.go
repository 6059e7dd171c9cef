package sync

import "errors"

var (
	ErrNotAuthenticated = errors.New("account not authenticated")
	ErrContactNotFound  = errors.New("contact not found")
	ErrDetailNotFound   = errors.New("detail not found")
	ErrPageOutOfRange   = errors.New("page out of range")
	ErrInvalidRequest   = errors.New("invalid request")
)
