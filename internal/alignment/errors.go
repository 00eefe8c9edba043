package alignment

import "errors"

// ErrInvalidReferences is returned when a reference table cannot be decoded.
var ErrInvalidReferences = errors.New("invalid reference counts")
