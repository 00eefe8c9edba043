// Package extraction turns form sources into field lists: JSON field dumps
// in the flat or wrapped shape, and PDF AcroForms read through pdfcpu.
package extraction

import "errors"

var (
	ErrInvalidInput = errors.New("invalid field input")
	ErrUnsupported  = errors.New("unsupported field source")
)
