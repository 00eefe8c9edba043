package learning

import "errors"

// Candidate rejection reasons.
var (
	ErrTooBroad    = errors.New("pattern matches too much of its batch")
	ErrGeneric     = errors.New("pattern has no section-distinguishing token")
	ErrUnsupported = errors.New("pattern lacks supporting fields")
	ErrImprecise   = errors.New("pattern matches mostly unrelated fields")
	ErrConflict    = errors.New("pattern proposed for several sections")
)
