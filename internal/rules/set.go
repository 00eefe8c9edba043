package rules

import (
	"slices"

	"github.com/JaimeStill/sectional/internal/fields"
)

// Set is the include and exclude rules of one section.
type Set struct {
	Include []Rule `json:"include"`
	Exclude []Rule `json:"exclude"`
}

// Len returns the total number of rules.
func (s Set) Len() int {
	return len(s.Include) + len(s.Exclude)
}

// Clone returns a copy that shares no slices with s.
func (s Set) Clone() Set {
	cp := Set{
		Include: make([]Rule, len(s.Include)),
		Exclude: make([]Rule, len(s.Exclude)),
	}
	for i, r := range s.Include {
		cp.Include[i] = cloneRule(r)
	}
	for i, r := range s.Exclude {
		cp.Exclude[i] = cloneRule(r)
	}
	return cp
}

// Merge folds rules into the include set. A rule whose key is already
// present replaces it only with a higher confidence. Rules that do not
// compile are skipped. It returns the number of rules added or upgraded.
func (s *Set) Merge(rules ...Rule) int {
	changed := 0
	for _, r := range rules {
		if r.Validate() != nil {
			continue
		}
		r.Confidence = fields.ClampConfidence(r.Confidence)
		idx := slices.IndexFunc(s.Include, func(e Rule) bool { return e.Key() == r.Key() })
		switch {
		case idx < 0:
			s.Include = append(s.Include, cloneRule(r))
			changed++
		case r.Confidence > s.Include[idx].Confidence:
			s.Include[idx] = cloneRule(r)
			changed++
		}
	}
	return changed
}

// Dedupe collapses duplicate keys in both lists, keeping the higher
// confidence, and reports how many rules were dropped.
func (s *Set) Dedupe() int {
	before := s.Len()
	s.Include = dedupe(s.Include)
	s.Exclude = dedupe(s.Exclude)
	return before - s.Len()
}

func dedupe(rules []Rule) []Rule {
	out := make([]Rule, 0, len(rules))
	index := make(map[string]int, len(rules))
	for _, r := range rules {
		if i, ok := index[r.Key()]; ok {
			if r.Confidence > out[i].Confidence {
				out[i] = r
			}
			continue
		}
		index[r.Key()] = len(out)
		out = append(out, r)
	}
	return out
}

func cloneRule(r Rule) Rule {
	if r.EntryRule != nil {
		e := *r.EntryRule
		r.EntryRule = &e
	}
	return r
}
