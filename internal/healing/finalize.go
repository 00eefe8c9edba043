package healing

import (
	"cmp"
	"slices"

	"github.com/JaimeStill/sectional/internal/alignment"
	"github.com/JaimeStill/sectional/internal/fields"
)

// Trim returns the lowest-confidence unprotected fields of every section
// holding more than its expected count to the unknown bucket. Among equal
// confidence the most recently placed field goes first. Running Trim twice
// without other changes moves nothing the second time.
func (e *Engine) Trim(m *fields.SectionMap) int {
	if e.refs.Empty() {
		return 0
	}

	trimmed := 0
	for _, id := range e.refs.Sections() {
		excess := m.Count(id) - e.refs.Expected(id)
		if excess <= 0 {
			continue
		}

		recs := m.Fields(id)
		slices.Reverse(recs)
		recs = slices.DeleteFunc(recs, (*fields.Categorized).Protected)
		slices.SortStableFunc(recs, func(a, b *fields.Categorized) int {
			return cmp.Compare(a.Confidence, b.Confidence)
		})

		for _, rec := range recs[:min(excess, len(recs))] {
			if m.Reset(rec.ID) {
				trimmed++
			}
		}
	}

	if dups := m.Dedupe(); dups > 0 {
		e.logger.Warn("duplicates purged after trim", "count", dups)
	}
	return trimmed
}

// Final is the result of Finalize.
type Final struct {
	Trimmed       int              `json:"trimmed"`
	Redistributed int              `json:"redistributed"`
	Residual      int              `json:"residual"`
	Report        alignment.Report `json:"report"`
}

// Finalize trims oversized sections, then immediately redistributes the
// unknown bucket into sections that still have a deficit: by page table,
// sibling and nearest-page majority, then largest deficit. With
// ForceFallback the remainder goes round-robin to the fallback sections;
// otherwise it stays unknown and is reported as residual. Without
// references the map is left as categorized.
func (e *Engine) Finalize(m *fields.SectionMap) Final {
	if e.refs.Empty() {
		r := e.Evaluate(m)
		return Final{Residual: r.Unknown, Report: r}
	}

	out := Final{Trimmed: e.Trim(m)}
	out.Redistributed = e.redistribute(m, pass{
		deficitOnly: true,
		deficit:     true,
		fallback:    e.opts.ForceFallback,
	})
	if dups := m.Dedupe(); dups > 0 {
		e.logger.Warn("duplicates purged after redistribution", "count", dups)
	}

	out.Report = e.Evaluate(m)
	out.Residual = out.Report.Unknown

	e.logger.Info("finalized",
		"trimmed", out.Trimmed,
		"redistributed", out.Redistributed,
		"residual", out.Residual,
		"score", out.Report.Score,
		"force_fallback", e.opts.ForceFallback,
	)
	return out
}
