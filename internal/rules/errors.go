package rules

import (
	"errors"
	"net/http"
)

// Rule store errors.
var (
	ErrNotFound       = errors.New("rule set not found")
	ErrCorrupt        = errors.New("rule set corrupt")
	ErrInvalidPattern = errors.New("invalid rule pattern")
	ErrInvalidSection = errors.New("invalid section")
	ErrUnavailable    = errors.New("rule source unavailable")
)

// MapHTTPStatus maps rule store errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrInvalidPattern) || errors.Is(err, ErrInvalidSection) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
