package runs

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/JaimeStill/sectional/pkg/pagination"
)

// System defines the public contract for run domain operations.
type System interface {
	Handler(maxUploadSize int64) *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Run], error)

	Find(ctx context.Context, id uuid.UUID) (*Run, error)
	Create(ctx context.Context, cmd CreateCommand) (*Run, error)
	// Artifacts reports which artifacts of a run are stored.
	Artifacts(ctx context.Context, id uuid.UUID) ([]ArtifactInfo, error)
	// Artifact opens one of the names in Artifacts. The caller must close
	// the reader.
	Artifact(ctx context.Context, id uuid.UUID, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
