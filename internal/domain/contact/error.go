package contact

import "errors"

var (
	ErrUnknownKey     = errors.New("unknown contact key")
	ErrUnknownProfile = errors.New("unknown device profile")
	ErrSingularKey    = errors.New("singular key appears more than once")
	ErrUnknownType    = errors.New("unknown change type")
)
