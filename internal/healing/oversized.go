package healing

import (
	"cmp"
	"math"
	"slices"

	"github.com/JaimeStill/sectional/internal/alignment"
	"github.com/JaimeStill/sectional/internal/fields"
)

// FixOversized moves the weakest fields of each oversized section into
// related undersized sections. Destinations within the adjacency page gap
// are tried first, nearest first; any other undersized section follows. The
// fields moved are those with the lowest confidence, ties broken by the best
// keyword match against the destination. Protected fields never move.
func (e *Engine) FixOversized(m *fields.SectionMap, report alignment.Report) int {
	if report.NoReference || len(report.Oversized) == 0 {
		return 0
	}

	order := slices.Clone(report.Oversized)
	slices.SortStableFunc(order, func(a, b int) int {
		if c := cmp.Compare(report.Excess(b), report.Excess(a)); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	moves := 0
	for _, source := range order {
		excess := m.Count(source) - e.refs.Expected(source)
		if excess <= 0 {
			continue
		}

		for _, dest := range e.destinations(m, source) {
			if excess == 0 {
				break
			}
			need := e.refs.Expected(dest) - m.Count(dest)
			if need <= 0 {
				continue
			}

			for _, rec := range e.movable(m, source, dest) {
				if excess == 0 || need == 0 {
					break
				}
				conf := math.Min(rec.Confidence, rebalanceConf)
				if e.move(m, rec, assign(dest, conf, fields.SignalRebalance)) {
					excess--
					need--
					moves++
				}
			}
		}
	}
	return moves
}

// destinations ranks the undersized sections an oversized source may shed
// fields into.
func (e *Engine) destinations(m *fields.SectionMap, source int) []int {
	deficit := e.deficits(m)

	type dest struct {
		id  int
		gap int
	}
	var related, others []dest
	for id := range deficit {
		if id == source {
			continue
		}
		gap := e.registry.PageGap(source, id)
		d := dest{id: id, gap: gap}
		if gap >= 0 && gap <= e.opts.Adjacency {
			related = append(related, d)
		} else {
			others = append(others, d)
		}
	}

	byGap := func(a, b dest) int {
		if c := cmp.Compare(a.gap, b.gap); c != 0 {
			return c
		}
		if c := cmp.Compare(deficit[b.id], deficit[a.id]); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	}
	slices.SortFunc(related, byGap)
	slices.SortFunc(others, func(a, b dest) int {
		if c := cmp.Compare(deficit[b.id], deficit[a.id]); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})

	out := make([]int, 0, len(related)+len(others))
	for _, d := range related {
		out = append(out, d.id)
	}
	for _, d := range others {
		out = append(out, d.id)
	}
	return out
}

// movable returns the unprotected fields of source that dest does not
// exclude, ordered by ascending confidence then descending keyword score
// against dest.
func (e *Engine) movable(m *fields.SectionMap, source, dest int) []*fields.Categorized {
	meta, _ := e.registry.Section(dest)

	type scored struct {
		rec   *fields.Categorized
		score int
	}
	var out []scored
	for _, rec := range m.Fields(source) {
		if rec.Protected() || e.book.Excluded(dest, rec.Name) {
			continue
		}
		s := 0
		if meta != nil {
			s = meta.KeywordScore(rec.Text())
		}
		out = append(out, scored{rec: rec, score: s})
	}

	slices.SortStableFunc(out, func(a, b scored) int {
		if c := cmp.Compare(a.rec.Confidence, b.rec.Confidence); c != 0 {
			return c
		}
		return cmp.Compare(b.score, a.score)
	})

	recs := make([]*fields.Categorized, len(out))
	for i, s := range out {
		recs[i] = s.rec
	}
	return recs
}
