package healing

import (
	"slices"

	"github.com/JaimeStill/sectional/internal/alignment"
	"github.com/JaimeStill/sectional/internal/fields"
)

// pass selects which redistribution mechanisms run and whether targets must
// still have a deficit.
type pass struct {
	deficitOnly bool
	deficit     bool
	fallback    bool
}

// RedistributeUnknown assigns unknown fields by, in order: the page table,
// the majority section of same-page siblings, and the majority of the
// nearest page that has one. The deficit and fallback mechanisms are
// reserved for Finalize.
func (e *Engine) RedistributeUnknown(m *fields.SectionMap, report alignment.Report) int {
	if report.NoReference {
		return 0
	}
	return e.redistribute(m, pass{})
}

func (e *Engine) redistribute(m *fields.SectionMap, p pass) int {
	unknown := m.Unknown()
	if len(unknown) == 0 {
		return 0
	}

	majority := pageMajorities(m)
	deficit := e.deficits(m)
	allowed := func(section int, name string) bool {
		if e.book.Excluded(section, name) {
			return false
		}
		return !p.deficitOnly || deficit[section] > 0
	}

	fallbacks := slices.DeleteFunc(e.registry.Fallbacks(), func(id int) bool { return !e.registry.Has(id) })
	turn := 0

	moves := 0
	for _, rec := range unknown {
		var a fields.Assignment
		found := false

		if section, ok := e.byPageTable(rec, deficit, allowed); ok {
			a, found = assign(section, pageConf, fields.SignalHealPage), true
		} else if section, ok := majority[rec.Page]; ok && rec.Page > 0 && allowed(section, rec.Name) {
			a, found = assign(section, siblingConf, fields.SignalHealSibling), true
		} else if section, ok := e.nearestMajority(rec, majority, allowed); ok {
			a, found = assign(section, nearestConf, fields.SignalHealNearest), true
		} else if section, ok := e.largestDeficit(rec, deficit); ok && p.deficit {
			a, found = assign(section, deficitConf, fields.SignalHealDeficit), true
		} else if section, ok := e.nextFallback(rec, fallbacks, &turn); ok && p.fallback {
			a, found = assign(section, fallbackConf, fields.SignalFallback), true
		}

		if found && e.move(m, rec, a) {
			moves++
			if deficit[a.Section] > 0 {
				deficit[a.Section]--
			}
		}
	}
	return moves
}

// nextFallback takes fallback sections round-robin from *turn, skipping any
// that exclude the field.
func (e *Engine) nextFallback(rec *fields.Categorized, fallbacks []int, turn *int) (int, bool) {
	for range fallbacks {
		section := fallbacks[*turn%len(fallbacks)]
		*turn++
		if !e.book.Excluded(section, rec.Name) {
			return section, true
		}
	}
	return 0, false
}

// byPageTable picks a section claiming the field's page, preferring one that
// still has a deficit.
func (e *Engine) byPageTable(rec *fields.Categorized, deficit map[int]int, allowed func(int, string) bool) (int, bool) {
	if rec.Page <= 0 {
		return 0, false
	}
	first, found := 0, false
	for _, id := range e.registry.ClaimsForPage(rec.Page) {
		if !allowed(id, rec.Name) {
			continue
		}
		if deficit[id] > 0 {
			return id, true
		}
		if !found {
			first, found = id, true
		}
	}
	return first, found
}

// nearestMajority walks outwards from the field's page, lower page first at
// each distance, and returns the first page majority it may use.
func (e *Engine) nearestMajority(rec *fields.Categorized, majority map[int]int, allowed func(int, string) bool) (int, bool) {
	if rec.Page <= 0 {
		return 0, false
	}
	for d := 1; d <= e.opts.NearestPages; d++ {
		for _, page := range []int{rec.Page - d, rec.Page + d} {
			if section, ok := majority[page]; ok && allowed(section, rec.Name) {
				return section, true
			}
		}
	}
	return 0, false
}

// largestDeficit returns the section with the largest remaining deficit
// that does not exclude the field.
func (e *Engine) largestDeficit(rec *fields.Categorized, deficit map[int]int) (int, bool) {
	var ids []int
	for id, d := range deficit {
		if d > 0 && !e.book.Excluded(id, rec.Name) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return 0, false
	}
	e.orderByDeficit(ids, deficit)
	return ids[0], true
}

// pageMajorities returns, for every page, the section holding most of its
// classified fields. Ties go to the lower section.
func pageMajorities(m *fields.SectionMap) map[int]int {
	counts := make(map[int]map[int]int)
	for _, rec := range m.All() {
		if rec.Section == fields.Unknown || rec.Page <= 0 {
			continue
		}
		if counts[rec.Page] == nil {
			counts[rec.Page] = make(map[int]int)
		}
		counts[rec.Page][rec.Section]++
	}

	out := make(map[int]int, len(counts))
	for page, bySection := range counts {
		best, bestCount := 0, 0
		for section, n := range bySection {
			if n > bestCount || (n == bestCount && section < best) {
				best, bestCount = section, n
			}
		}
		out[page] = best
	}
	return out
}
