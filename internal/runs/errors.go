package runs

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/sectional/pkg/storage"
)

// Domain errors for run operations.
var (
	ErrNotFound        = errors.New("run not found")
	ErrDuplicate       = errors.New("run already exists")
	ErrFileTooLarge    = errors.New("file exceeds maximum upload size")
	ErrInvalidFile     = errors.New("invalid file")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrUnknownArtifact = errors.New("unknown artifact")
)

// MapHTTPStatus maps run domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUnknownArtifact):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrInvalidFile), errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	}
	return storage.MapHTTPStatus(err)
}
