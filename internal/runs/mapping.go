package runs

import (
	"net/url"
	"strconv"

	"github.com/JaimeStill/sectional/pkg/query"
	"github.com/JaimeStill/sectional/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "runs", "r").
	Project("id", "ID").
	Project("filename", "Filename").
	Project("profile", "Profile").
	Project("field_count", "FieldCount").
	Project("score", "Score").
	Project("aligned", "Aligned").
	Project("status", "Status").
	Project("cycles", "Cycles").
	Project("best_cycle", "BestCycle").
	Project("residual", "Residual").
	Project("storage_key", "StorageKey").
	Project("created_by", "CreatedBy").
	Project("created_at", "CreatedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for run queries. Nil fields
// are ignored. Filename uses case-insensitive contains matching and MinScore
// is inclusive; the rest match exactly.
type Filters struct {
	Status    *string  `json:"status,omitempty"`
	Filename  *string  `json:"filename,omitempty"`
	Profile   *string  `json:"profile,omitempty"`
	Aligned   *bool    `json:"aligned,omitempty"`
	MinScore  *float64 `json:"min_score,omitempty"`
	CreatedBy *string  `json:"created_by,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Status", f.Status).
		WhereContains("Filename", f.Filename).
		WhereEquals("Profile", f.Profile).
		WhereEquals("Aligned", f.Aligned).
		WhereAtLeast("Score", f.MinScore).
		WhereEquals("CreatedBy", f.CreatedBy)
}

// FiltersFromQuery extracts filter values from URL query parameters.
// Unparseable values are ignored.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("status"); s != "" {
		f.Status = &s
	}
	if fn := values.Get("filename"); fn != "" {
		f.Filename = &fn
	}
	if p := values.Get("profile"); p != "" {
		f.Profile = &p
	}
	if a := values.Get("aligned"); a != "" {
		if v, err := strconv.ParseBool(a); err == nil {
			f.Aligned = &v
		}
	}
	if ms := values.Get("min_score"); ms != "" {
		if v, err := strconv.ParseFloat(ms, 64); err == nil {
			f.MinScore = &v
		}
	}
	if cb := values.Get("created_by"); cb != "" {
		f.CreatedBy = &cb
	}

	return f
}

func scanRun(s repository.Scanner) (Run, error) {
	var r Run
	err := s.Scan(
		&r.ID,
		&r.Filename,
		&r.Profile,
		&r.FieldCount,
		&r.Score,
		&r.Aligned,
		&r.Status,
		&r.Cycles,
		&r.BestCycle,
		&r.Residual,
		&r.StorageKey,
		&r.CreatedBy,
		&r.CreatedAt,
	)
	return r, err
}
