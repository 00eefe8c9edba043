// Package runs implements the run domain: each run categorizes one uploaded
// form, stores its artifacts in blob storage, and records a summary row.
package runs

import (
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/sectional/internal/alignment"
)

// Run statuses.
const (
	StatusAligned      = "aligned"
	StatusUnaligned    = "unaligned"
	StatusUnreferenced = "unreferenced"
)

// Run is the stored summary of one categorization run.
type Run struct {
	ID         uuid.UUID `json:"id"`
	Filename   string    `json:"filename"`
	Profile    string    `json:"profile"`
	FieldCount int       `json:"field_count"`
	Score      float64   `json:"score"`
	Aligned    bool      `json:"aligned"`
	Status     string    `json:"status"`
	Cycles     int       `json:"cycles"`
	BestCycle  int       `json:"best_cycle"`
	Residual   int       `json:"residual"`
	StorageKey string    `json:"storage_key"`
	CreatedBy  *string   `json:"created_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// CreateCommand carries an uploaded form and the run parameters. References
// falls back to the service default when empty; MaxCycles falls back to the
// engine config when zero.
type CreateCommand struct {
	Filename   string
	Data       []byte
	References alignment.References
	MaxCycles  int
	CreatedBy  string
}
