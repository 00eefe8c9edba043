package sections

import "errors"

// Profile errors.
var (
	ErrInvalidProfile = errors.New("invalid profile")
	ErrUnknownSection = errors.New("unknown section")
)
