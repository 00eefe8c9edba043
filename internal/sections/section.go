// Package sections holds the section-metadata registry: every piece of
// per-section domain knowledge (keywords, page ranges, priorities, deviation
// thresholds, fallback membership, strict and hint patterns) plus the
// field-level override table. Retargeting the engine at another document means
// supplying another profile, not changing code.
package sections

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// PageRange is an inclusive page span.
type PageRange struct {
	Start int `yaml:"start" json:"start"`
	End   int `yaml:"end" json:"end"`
}

// Contains reports whether page lies in the range.
func (r PageRange) Contains(page int) bool {
	return page >= r.Start && page <= r.End
}

// String renders "5" for a single page and "10-13" for a span.
func (r PageRange) String() string {
	if r.Start == r.End {
		return fmt.Sprintf("%d", r.Start)
	}
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// Width returns the number of pages spanned.
func (r PageRange) Width() int {
	return r.End - r.Start + 1
}

// Distance returns how many pages page lies outside the range (0 inside).
func (r PageRange) Distance(page int) int {
	switch {
	case page < r.Start:
		return r.Start - page
	case page > r.End:
		return page - r.End
	}
	return 0
}

// UnmarshalYAML accepts either {start, end}, a two-element list, or a single
// page number.
func (r *PageRange) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var single int
		if err := value.Decode(&single); err != nil {
			return err
		}
		r.Start, r.End = single, single
		return nil
	case yaml.SequenceNode:
		var pair []int
		if err := value.Decode(&pair); err != nil {
			return err
		}
		if len(pair) != 2 {
			return fmt.Errorf("page range must have two elements, got %d", len(pair))
		}
		r.Start, r.End = pair[0], pair[1]
		return nil
	}

	type plain PageRange
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*r = PageRange(p)
	return nil
}

// EntrySpec derives a 1-based entry index from the first capture group of
// Pattern: entry = (captured - Base) / Stride + 1.
type EntrySpec struct {
	Pattern string `yaml:"pattern" json:"pattern"`
	Base    int    `yaml:"base,omitempty" json:"base,omitempty"`
	Stride  int    `yaml:"stride,omitempty" json:"stride,omitempty"`
}

// PatternSpec is a hand-authored pattern carried in a profile.
type PatternSpec struct {
	Pattern     string     `yaml:"pattern"`
	Flags       string     `yaml:"flags,omitempty"`
	Subsection  string     `yaml:"subsection,omitempty"`
	Entry       *EntrySpec `yaml:"entry,omitempty"`
	Confidence  float64    `yaml:"confidence,omitempty"`
	Description string     `yaml:"description,omitempty"`
}

// Section is the metadata of one logical section.
type Section struct {
	ID        int           `yaml:"id"`
	Name      string        `yaml:"name"`
	Keywords  []string      `yaml:"keywords,omitempty"`
	Pages     []PageRange   `yaml:"pages,omitempty"`
	Priority  int           `yaml:"priority,omitempty"`
	Threshold float64       `yaml:"threshold,omitempty"`
	Fallback  bool          `yaml:"fallback,omitempty"`
	Strict    []PatternSpec `yaml:"strict,omitempty"`
	Hints     []PatternSpec `yaml:"hints,omitempty"`
}

// OnPage reports whether the section claims page.
func (s *Section) OnPage(page int) bool {
	for _, r := range s.Pages {
		if r.Contains(page) {
			return true
		}
	}
	return false
}

// PageDistance returns the distance from page to the nearest claimed page, or
// -1 when the section has no page metadata.
func (s *Section) PageDistance(page int) int {
	if len(s.Pages) == 0 {
		return -1
	}
	best := -1
	for _, r := range s.Pages {
		if d := r.Distance(page); best < 0 || d < best {
			best = d
		}
	}
	return best
}

// PageSpan returns the total number of pages claimed.
func (s *Section) PageSpan() int {
	n := 0
	for _, r := range s.Pages {
		n += r.Width()
	}
	return n
}

// KeywordScore counts how many of the section's keywords occur in text.
func (s *Section) KeywordScore(text string) int {
	if text == "" {
		return 0
	}
	lower := strings.ToLower(text)
	score := 0
	for _, kw := range s.Keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			score++
		}
	}
	return score
}

// Label renders "12 (Where You Went to School)" style names for logs.
func (s *Section) Label() string {
	if s.Name == "" {
		return fmt.Sprintf("%d", s.ID)
	}
	return fmt.Sprintf("%d (%s)", s.ID, s.Name)
}
