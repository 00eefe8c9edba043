package learning

import (
	"cmp"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/JaimeStill/sectional/internal/fields"
	"github.com/JaimeStill/sectional/internal/rules"
)

// generate proposes candidates for section from its evidence in tier order.
func (l *Learner) generate(section int, evidence []*fields.Categorized, groups map[string][]*fields.Categorized) []Candidate {
	var out []Candidate
	seen := make(map[string]bool)
	add := func(tier Tier, pattern, flags, desc string) {
		key := flags + "/" + pattern
		if pattern == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, Candidate{
			Section: section,
			Tier:    tier,
			Rule: rules.Rule{
				Pattern:     pattern,
				Flags:       flags,
				Confidence:  tierConfidence[tier],
				Description: fmt.Sprintf("learned %s: %s", tier, desc),
				Tier:        rules.TierLearned,
			},
		})
	}

	for _, c := range l.structural(evidence) {
		add(TierStructural, "^"+regexp.QuoteMeta(c)+`\.`, "", "container "+c)
	}
	for _, kw := range l.keywords(section, evidence) {
		add(TierKeyword, regexp.QuoteMeta(kw), "i", "keyword "+kw)
	}
	for _, tok := range l.content(evidence) {
		add(TierContent, `(^|[^a-z])`+regexp.QuoteMeta(tok)+`\d*([^a-z]|$)`, "i", "token "+tok)
	}
	for _, p := range l.prefixes(evidence, groups) {
		add(TierPrefix, "^"+regexp.QuoteMeta(p), "", "prefix "+p)
	}
	if name, ok := l.frequent(evidence); ok {
		add(TierFrequency, template(name), "", "frequent shape "+NormalizeName(name))
	}
	return out
}

// structural returns the parent containers shared by enough evidence.
func (l *Learner) structural(evidence []*fields.Categorized) []string {
	counts := make(map[string]int)
	for _, rec := range evidence {
		if c := container(rec.Name); c != "" {
			counts[c]++
		}
	}
	return l.supported(counts)
}

// keywords returns registry keywords of section that appear in evidence
// names rather than only in their labels.
func (l *Learner) keywords(section int, evidence []*fields.Categorized) []string {
	meta, ok := l.registry.Section(section)
	if !ok {
		return nil
	}
	counts := make(map[string]int)
	for _, kw := range meta.Keywords {
		compact := strings.ReplaceAll(strings.ToLower(kw), " ", "")
		if len(compact) < 3 {
			continue
		}
		for _, rec := range evidence {
			if strings.Contains(strings.ToLower(rec.Name), compact) {
				counts[compact]++
			}
		}
	}
	return l.supported(counts)
}

// content returns distinguishing name words shared by enough evidence.
func (l *Learner) content(evidence []*fields.Categorized) []string {
	counts := make(map[string]int)
	for _, rec := range evidence {
		seen := make(map[string]bool)
		for _, tok := range Tokens(rec.Name) {
			b, _ := base(tok)
			if len(b) < 3 || !Distinguishing(b) || seen[b] {
				continue
			}
			seen[b] = true
			counts[b]++
		}
	}
	return l.supported(counts)
}

// prefixes returns, per normalized-name group, the longest prefix shared by
// the group's evidence.
func (l *Learner) prefixes(evidence []*fields.Categorized, groups map[string][]*fields.Categorized) []string {
	inEvidence := make(map[string]bool, len(evidence))
	for _, rec := range evidence {
		inEvidence[rec.ID] = true
	}

	var out []string
	for _, key := range slices.Sorted(maps.Keys(groups)) {
		var names []string
		for _, rec := range groups[key] {
			if inEvidence[rec.ID] {
				names = append(names, rec.Name)
			}
		}
		if len(names) < l.opts.MinSupport {
			continue
		}
		if p := commonPrefix(names); p != "" && !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}

// frequent returns a representative name of the most common normalized
// shape among the evidence.
func (l *Learner) frequent(evidence []*fields.Categorized) (string, bool) {
	counts := make(map[string]int)
	first := make(map[string]string)
	for _, rec := range evidence {
		key := NormalizeName(rec.Name)
		counts[key]++
		if _, ok := first[key]; !ok {
			first[key] = rec.Name
		}
	}
	best := l.supported(counts)
	if len(best) == 0 {
		return "", false
	}
	return first[best[0]], true
}

// supported returns the keys counted at least MinSupport times, most
// frequent first.
func (l *Learner) supported(counts map[string]int) []string {
	var keys []string
	for k, n := range counts {
		if n >= l.opts.MinSupport {
			keys = append(keys, k)
		}
	}
	slices.SortFunc(keys, func(a, b string) int {
		if c := cmp.Compare(counts[b], counts[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return keys
}
