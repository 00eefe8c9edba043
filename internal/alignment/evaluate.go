// Package alignment measures how well a section map matches the reference
// field counts: per-section deviation, the oversized, undersized and missing
// sections, and the alignment score that drives convergence. Entry and
// subsection coverage is reported alongside but does not affect the score.
package alignment

import (
	"math"
	"slices"

	"github.com/JaimeStill/sectional/internal/fields"
)

// DefaultThreshold is the deviation ratio tolerated when none is configured.
const DefaultThreshold = 0.1

// Thresholds is the per-section deviation tolerance, expressed as a ratio of
// the expected count.
type Thresholds struct {
	Default  float64
	Sections map[int]float64
}

// For returns the threshold of section.
func (t Thresholds) For(section int) float64 {
	if v, ok := t.Sections[section]; ok && v >= 0 {
		return v
	}
	return t.fallback()
}

func (t Thresholds) fallback() float64 {
	if t.Default > 0 {
		return t.Default
	}
	return DefaultThreshold
}

// Scale returns a copy with every threshold multiplied by factor.
func (t Thresholds) Scale(factor float64) Thresholds {
	out := Thresholds{
		Default:  t.fallback() * factor,
		Sections: make(map[int]float64, len(t.Sections)),
	}
	for id, v := range t.Sections {
		out.Sections[id] = v * factor
	}
	return out
}

// Deviation is the comparison of one section against its reference.
type Deviation struct {
	Section   int     `json:"section"`
	Expected  int     `json:"expected"`
	Actual    int     `json:"actual"`
	Deviation int     `json:"deviation"`
	Ratio     float64 `json:"ratio"`
	Threshold float64 `json:"threshold"`
	// Significant is set when the ratio exceeds the threshold.
	Significant bool `json:"significant"`
	// ShouldCorrect is set when healing should act on the section.
	ShouldCorrect bool `json:"shouldCorrect"`

	ExpectedEntries     int `json:"expectedEntries,omitempty"`
	ActualEntries       int `json:"actualEntries,omitempty"`
	ExpectedSubsections int `json:"expectedSubsections,omitempty"`
	ActualSubsections   int `json:"actualSubsections,omitempty"`
}

// Percentage returns the deviation ratio as a percentage.
func (d Deviation) Percentage() float64 {
	return d.Ratio * 100
}

// Incomplete reports whether fewer distinct entries or subsections were
// observed than the reference names.
func (d Deviation) Incomplete() bool {
	return d.ActualEntries < d.ExpectedEntries || d.ActualSubsections < d.ExpectedSubsections
}

// Within reports whether the section is inside its threshold.
func (d Deviation) Within() bool {
	return !d.Significant
}

// Report is the result of one evaluation.
type Report struct {
	Deviations []Deviation `json:"deviations"`
	// Score is the percentage of referenced sections within threshold.
	Score      float64 `json:"score"`
	Oversized  []int   `json:"oversized"`
	Undersized []int   `json:"undersized"`
	Missing    []int   `json:"missing"`
	// Incomplete lists sections whose distinct entries or subsections fall
	// short of the reference.
	Incomplete []int `json:"incomplete,omitempty"`
	Unknown    int   `json:"unknown"`
	Total      int   `json:"total"`
	// NoReference marks an evaluation without expectations; nothing can be
	// corrected against it.
	NoReference bool `json:"noReference,omitempty"`
}

// Aligned reports whether every referenced section is within threshold.
func (r Report) Aligned() bool {
	return !r.NoReference && len(r.Oversized) == 0 && len(r.Undersized) == 0
}

// Deviation returns the record of section.
func (r Report) Deviation(section int) (Deviation, bool) {
	i := slices.IndexFunc(r.Deviations, func(d Deviation) bool { return d.Section == section })
	if i < 0 {
		return Deviation{}, false
	}
	return r.Deviations[i], true
}

// Deficit returns how many fields section lacks (0 when at or above
// expectation).
func (r Report) Deficit(section int) int {
	d, ok := r.Deviation(section)
	if !ok || d.Deviation >= 0 {
		return 0
	}
	return -d.Deviation
}

// Excess returns how many fields section holds beyond expectation.
func (r Report) Excess(section int) int {
	d, ok := r.Deviation(section)
	if !ok || d.Deviation <= 0 {
		return 0
	}
	return d.Deviation
}

// Statistic is one row of the deviation summary artifact.
type Statistic struct {
	Section    int     `json:"section"`
	Expected   int     `json:"expected"`
	Actual     int     `json:"actual"`
	Deviation  int     `json:"deviation"`
	Percentage float64 `json:"percentage"`

	ExpectedEntries     int `json:"expectedEntries,omitempty"`
	ActualEntries       int `json:"actualEntries,omitempty"`
	ExpectedSubsections int `json:"expectedSubsections,omitempty"`
	ActualSubsections   int `json:"actualSubsections,omitempty"`
}

// Summary returns the deviation summary ordered by section.
func (r Report) Summary() []Statistic {
	out := make([]Statistic, 0, len(r.Deviations))
	for _, d := range r.Deviations {
		out = append(out, Statistic{
			Section:    d.Section,
			Expected:   d.Expected,
			Actual:     d.Actual,
			Deviation:  d.Deviation,
			Percentage: math.Round(d.Percentage()*100) / 100,

			ExpectedEntries:     d.ExpectedEntries,
			ActualEntries:       d.ActualEntries,
			ExpectedSubsections: d.ExpectedSubsections,
			ActualSubsections:   d.ActualSubsections,
		})
	}
	return out
}

// Evaluate compares the section counts of m with refs.
func Evaluate(m *fields.SectionMap, refs References, th Thresholds) Report {
	counts := m.Counts()
	r := Report{
		Unknown: counts[fields.Unknown],
		Total:   m.Len(),
	}
	if refs.Empty() {
		r.NoReference = true
		return r
	}

	ids := refs.Sections()
	within := 0
	for _, id := range ids {
		d := compare(id, refs[id].Fields, counts[id], th.For(id))
		d.ExpectedEntries = refs[id].Entries
		d.ExpectedSubsections = refs[id].Subsections
		d.ActualEntries, d.ActualSubsections = coverage(m.Fields(id))
		r.Deviations = append(r.Deviations, d)
		if d.Incomplete() {
			r.Incomplete = append(r.Incomplete, id)
		}

		if !d.Significant {
			within++
		}
		switch {
		case d.Expected > 0 && d.Actual == 0:
			r.Missing = append(r.Missing, id)
			r.Undersized = append(r.Undersized, id)
		case d.Significant && d.Deviation < 0:
			r.Undersized = append(r.Undersized, id)
		case d.Significant && d.Deviation > 0:
			r.Oversized = append(r.Oversized, id)
		}
	}
	r.Score = 100 * float64(within) / float64(len(ids))
	return r
}

// coverage counts the distinct entries and subsections among recs.
func coverage(recs []*fields.Categorized) (entries, subsections int) {
	seenEntries := make(map[int]bool)
	seenSubs := make(map[string]bool)
	for _, rec := range recs {
		if rec.Entry > 0 {
			seenEntries[rec.Entry] = true
		}
		if rec.Subsection != "" {
			seenSubs[rec.Subsection] = true
		}
	}
	return len(seenEntries), len(seenSubs)
}

func compare(section, expected, actual int, threshold float64) Deviation {
	d := Deviation{
		Section:   section,
		Expected:  expected,
		Actual:    actual,
		Deviation: actual - expected,
		Threshold: threshold,
	}
	if expected > 0 {
		d.Ratio = math.Abs(float64(actual-expected)) / float64(expected)
	}
	d.Significant = d.Ratio > threshold+1e-12 || (expected > 0 && actual == 0)
	d.ShouldCorrect = d.Significant && d.Deviation != 0
	return d
}
