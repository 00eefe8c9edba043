// Package rules owns the per-section pattern rule sets: lookup with caching,
// merging of learned rules, persistence through a pluggable Source, and the
// compiled Book the categorizer evaluates.
package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/JaimeStill/sectional/internal/sections"
)

// Tier orders rules within the book. Lower tiers are evaluated first.
type Tier string

// Rule tiers, highest precedence first.
const (
	TierStrict  Tier = "strict"
	TierForm    Tier = "form"
	TierLearned Tier = "learned"
)

func (t Tier) rank() int {
	switch t {
	case TierStrict:
		return 0
	case TierLearned:
		return 2
	}
	return 1
}

// EntryRule derives a 1-based entry index from the first capture group of
// Pattern: entry = (captured - Base) / Stride + 1.
type EntryRule struct {
	Pattern string `json:"pattern"`
	Base    int    `json:"base,omitempty"`
	Stride  int    `json:"stride,omitempty"`
}

// Rule is a text pattern targeting one section.
type Rule struct {
	Pattern     string     `json:"pattern"`
	Flags       string     `json:"flags,omitempty"`
	Subsection  string     `json:"subsection,omitempty"`
	EntryRule   *EntryRule `json:"entryRule,omitempty"`
	Confidence  float64    `json:"confidence"`
	Description string     `json:"description,omitempty"`
	Tier        Tier       `json:"tier,omitempty"`
}

// Key identifies duplicates: same pattern text, flags and subsection.
func (r Rule) Key() string {
	return r.Pattern + "/" + r.Flags + "|" + r.Subsection
}

// Source returns the expression handed to the regexp engine.
func (r Rule) Source() string {
	flags := normalizeFlags(r.Flags)
	if flags == "" {
		return r.Pattern
	}
	return "(?" + flags + ")" + r.Pattern
}

// Validate reports whether the rule compiles.
func (r Rule) Validate() error {
	if strings.TrimSpace(r.Pattern) == "" {
		return fmt.Errorf("%w: empty pattern", ErrInvalidPattern)
	}
	if _, err := regexp.Compile(r.Source()); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidPattern, r.Pattern, err)
	}
	if r.EntryRule != nil {
		if _, err := regexp.Compile(r.EntryRule.Pattern); err != nil {
			return fmt.Errorf("%w: entry %q: %w", ErrInvalidPattern, r.EntryRule.Pattern, err)
		}
	}
	return nil
}

// normalizeFlags keeps the flags Go's regexp understands. The "g" and "u"
// flags of rule files written by other tooling carry no meaning here.
func normalizeFlags(flags string) string {
	var b strings.Builder
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's', 'U':
			if !strings.ContainsRune(b.String(), f) {
				b.WriteRune(f)
			}
		}
	}
	return b.String()
}

// FromSpec converts a profile pattern into a rule of the given tier.
func FromSpec(spec sections.PatternSpec, tier Tier) Rule {
	r := Rule{
		Pattern:     spec.Pattern,
		Flags:       spec.Flags,
		Subsection:  spec.Subsection,
		Confidence:  spec.Confidence,
		Description: spec.Description,
		Tier:        tier,
	}
	if r.Confidence <= 0 {
		r.Confidence = 0.95
	}
	if spec.Entry != nil {
		r.EntryRule = &EntryRule{
			Pattern: spec.Entry.Pattern,
			Base:    spec.Entry.Base,
			Stride:  spec.Entry.Stride,
		}
	}
	return r
}

// Compiled is a rule bound to its section with its expressions compiled.
type Compiled struct {
	Rule
	Section int

	re    *regexp.Regexp
	entry *regexp.Regexp
}

// Compile binds r to section.
func Compile(section int, r Rule) (*Compiled, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	c := &Compiled{
		Rule:    r,
		Section: section,
		re:      regexp.MustCompile(r.Source()),
	}
	if r.EntryRule != nil && r.EntryRule.Pattern != "" {
		c.entry = regexp.MustCompile(r.EntryRule.Pattern)
	}
	return c, nil
}

// Match reports whether the rule matches text.
func (c *Compiled) Match(text string) bool {
	return c.re.MatchString(text)
}

// Entry derives the entry index from text, or 0 when the rule has no entry
// extractor or it does not match.
func (c *Compiled) Entry(text string) int {
	if c.entry == nil {
		return 0
	}
	m := c.entry.FindStringSubmatch(text)
	if len(m) < 2 {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	stride := c.EntryRule.Stride
	if stride <= 0 {
		stride = 1
	}
	entry := (n-c.EntryRule.Base)/stride + 1
	if entry < 1 {
		return 0
	}
	return entry
}
