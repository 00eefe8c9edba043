package healing

import (
	"cmp"
	"math"
	"slices"

	"github.com/JaimeStill/sectional/internal/alignment"
	"github.com/JaimeStill/sectional/internal/fields"
)

// FixDeficits fills undersized and missing sections from the unknown bucket,
// largest deficit first: first with fields the section's rules match, then
// with fields on the section's pages. It returns the number of moves.
func (e *Engine) FixDeficits(m *fields.SectionMap, report alignment.Report) int {
	if report.NoReference || len(report.Undersized) == 0 {
		return 0
	}

	deficit := e.deficits(m)
	order := slices.Clone(report.Undersized)
	e.orderByDeficit(order, deficit)

	moves := 0
	for _, section := range order {
		need := deficit[section]
		if need <= 0 {
			continue
		}

		for _, cand := range e.patternCandidates(m, section) {
			if need == 0 {
				break
			}
			if e.move(m, cand.rec, cand.assignment) {
				need--
				moves++
			}
		}

		for _, rec := range e.pageCandidates(m, section) {
			if need == 0 {
				break
			}
			if e.move(m, rec, assign(section, pageConf, fields.SignalHealPage)) {
				need--
				moves++
			}
		}
		deficit[section] = need
	}
	return moves
}

type candidate struct {
	rec        *fields.Categorized
	assignment fields.Assignment
}

// patternCandidates returns unknown fields matched by the section's rules,
// strongest rule first.
func (e *Engine) patternCandidates(m *fields.SectionMap, section int) []candidate {
	var out []candidate
	for _, rec := range m.Unknown() {
		match, ok := e.book.MatchSection(section, rec.Name)
		if !ok {
			continue
		}
		out = append(out, candidate{
			rec: rec,
			assignment: fields.Assignment{
				Section:    section,
				Subsection: match.Subsection,
				Entry:      match.Entry,
				Confidence: math.Min(match.Confidence*patternShare, patternCeiling),
				Signal:     fields.SignalHealPattern,
			},
		})
	}
	slices.SortStableFunc(out, func(a, b candidate) int {
		return cmp.Compare(b.assignment.Confidence, a.assignment.Confidence)
	})
	return out
}

// pageCandidates returns unknown fields lying on the section's pages that
// its exclusions do not veto.
func (e *Engine) pageCandidates(m *fields.SectionMap, section int) []*fields.Categorized {
	meta, ok := e.registry.Section(section)
	if !ok || len(meta.Pages) == 0 {
		return nil
	}
	var out []*fields.Categorized
	for _, rec := range m.Unknown() {
		if rec.Page > 0 && meta.OnPage(rec.Page) && !e.book.Excluded(section, rec.Name) {
			out = append(out, rec)
		}
	}
	return out
}
