package rules

import (
	"cmp"
	"log/slog"
	"maps"
	"slices"
)

// Match is the outcome of evaluating a name against the book.
type Match struct {
	Section    int
	Subsection string
	Entry      int
	Confidence float64
	Rule       *Compiled
}

// Book is an immutable compiled snapshot of every section's rules. Include
// rules are ordered by tier, then descending confidence, then section; the
// first include that matches and is not vetoed by its section's excludes wins.
type Book struct {
	include  []*Compiled
	exclude  map[int][]*Compiled
	sections map[int][]*Compiled
	skipped  int
}

// NewBook compiles sets. Rules that fail to compile are skipped and logged.
func NewBook(sets map[int]Set, logger *slog.Logger) *Book {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	b := &Book{
		exclude:  make(map[int][]*Compiled),
		sections: make(map[int][]*Compiled),
	}

	for _, section := range slices.Sorted(maps.Keys(sets)) {
		set := sets[section]
		for _, r := range set.Include {
			c, err := Compile(section, r)
			if err != nil {
				b.skipped++
				logger.Warn("skipping include rule", "section", section, "pattern", r.Pattern, "error", err)
				continue
			}
			b.include = append(b.include, c)
			b.sections[section] = append(b.sections[section], c)
		}
		for _, r := range set.Exclude {
			c, err := Compile(section, r)
			if err != nil {
				b.skipped++
				logger.Warn("skipping exclude rule", "section", section, "pattern", r.Pattern, "error", err)
				continue
			}
			b.exclude[section] = append(b.exclude[section], c)
		}
	}

	slices.SortStableFunc(b.include, compareCompiled)
	for section := range b.sections {
		slices.SortStableFunc(b.sections[section], compareCompiled)
	}
	return b
}

func compareCompiled(a, b *Compiled) int {
	if c := cmp.Compare(a.Tier.rank(), b.Tier.rank()); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Confidence, a.Confidence); c != 0 {
		return c
	}
	return cmp.Compare(a.Section, b.Section)
}

// Len returns the number of compiled include rules.
func (b *Book) Len() int {
	if b == nil {
		return 0
	}
	return len(b.include)
}

// Skipped returns how many rules failed to compile.
func (b *Book) Skipped() int {
	if b == nil {
		return 0
	}
	return b.skipped
}

// Sections returns the sections with at least one include rule.
func (b *Book) Sections() []int {
	if b == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(b.sections))
}

// Match returns the first include rule matching name that its section's
// exclude rules do not veto.
func (b *Book) Match(name string) (Match, bool) {
	if b == nil || name == "" {
		return Match{}, false
	}
	for _, c := range b.include {
		if c.Match(name) && !b.vetoed(c.Section, name) {
			return b.result(c, name), true
		}
	}
	return Match{}, false
}

// MatchSection is Match restricted to one section's rules.
func (b *Book) MatchSection(section int, name string) (Match, bool) {
	if b == nil || name == "" || b.vetoed(section, name) {
		return Match{}, false
	}
	for _, c := range b.sections[section] {
		if c.Match(name) {
			return b.result(c, name), true
		}
	}
	return Match{}, false
}

// Excluded reports whether name is vetoed for section.
func (b *Book) Excluded(section int, name string) bool {
	if b == nil {
		return false
	}
	return b.vetoed(section, name)
}

func (b *Book) vetoed(section int, name string) bool {
	for _, x := range b.exclude[section] {
		if x.Match(name) {
			return true
		}
	}
	return false
}

func (b *Book) result(c *Compiled, name string) Match {
	return Match{
		Section:    c.Section,
		Subsection: c.Subsection,
		Entry:      c.Entry(name),
		Confidence: c.Confidence,
		Rule:       c,
	}
}
