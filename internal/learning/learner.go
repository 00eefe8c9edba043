// Package learning synthesizes pattern rules from the fields a cycle left
// unknown or weakly classified, screens out rules that are too broad or that
// several sections would claim, and feeds the survivors to the rule store
// for the next cycle.
package learning

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"regexp"
	"slices"

	"github.com/JaimeStill/sectional/internal/alignment"
	"github.com/JaimeStill/sectional/internal/fields"
	"github.com/JaimeStill/sectional/internal/rules"
	"github.com/JaimeStill/sectional/internal/sections"
)

// Tier is the generation strategy that produced a candidate, strongest
// first.
type Tier int

const (
	TierStructural Tier = iota + 1
	TierKeyword
	TierContent
	TierPrefix
	TierFrequency
)

var tierNames = map[Tier]string{
	TierStructural: "structural",
	TierKeyword:    "keyword",
	TierContent:    "content",
	TierPrefix:     "prefix",
	TierFrequency:  "frequency",
}

var tierConfidence = map[Tier]float64{
	TierStructural: 0.9,
	TierKeyword:    0.85,
	TierContent:    0.75,
	TierPrefix:     0.7,
	TierFrequency:  0.6,
}

func (t Tier) String() string { return tierNames[t] }

// Options tunes the learner.
type Options struct {
	// LowConfidence admits classified fields below it into the batch.
	LowConfidence float64
	// BroadnessLimit is the largest share of the batch a pattern may match.
	BroadnessLimit float64
	// MinPrecision is the smallest share of a pattern's batch matches that
	// must be evidence for its section.
	MinPrecision float64
	// ConflictConfidence is the confidence at which a candidate counts when
	// checking for cross-section conflicts.
	ConflictConfidence float64
	// MinSupport is the fewest evidence fields a pattern must match.
	MinSupport int
	// MaxRules caps the rules emitted per section per cycle.
	MaxRules int
}

// DefaultOptions returns the learner defaults.
func DefaultOptions() Options {
	return Options{
		LowConfidence:      0.6,
		BroadnessLimit:     0.8,
		MinPrecision:       0.5,
		ConflictConfidence: 0.7,
		MinSupport:         2,
		MaxRules:           20,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.LowConfidence <= 0 {
		o.LowConfidence = d.LowConfidence
	}
	if o.BroadnessLimit <= 0 || o.BroadnessLimit > 1 {
		o.BroadnessLimit = d.BroadnessLimit
	}
	if o.MinPrecision <= 0 || o.MinPrecision > 1 {
		o.MinPrecision = d.MinPrecision
	}
	if o.ConflictConfidence <= 0 {
		o.ConflictConfidence = d.ConflictConfidence
	}
	if o.MinSupport <= 0 {
		o.MinSupport = d.MinSupport
	}
	if o.MaxRules <= 0 {
		o.MaxRules = d.MaxRules
	}
	return o
}

// Candidate is a proposed rule with the evidence behind it.
type Candidate struct {
	Section  int        `json:"section"`
	Rule     rules.Rule `json:"rule"`
	Tier     Tier       `json:"tier"`
	Support  int        `json:"support"`
	Matches  int        `json:"matches"`
	BatchLen int        `json:"batch"`
}

// Rejection records a discarded candidate.
type Rejection struct {
	Section int    `json:"section"`
	Pattern string `json:"pattern"`
	Reason  string `json:"reason"`
}

// Result is the outcome of one learning pass.
type Result struct {
	Batch    int                  `json:"batch"`
	Targets  []int                `json:"targets"`
	Rules    map[int][]rules.Rule `json:"rules"`
	Rejected []Rejection          `json:"rejected"`
	Added    int                  `json:"added"`
}

// Count returns the number of proposed rules.
func (r Result) Count() int {
	n := 0
	for _, rs := range r.Rules {
		n += len(rs)
	}
	return n
}

// Learner proposes rules for sections that fall short of their references.
type Learner struct {
	registry *sections.Registry
	opts     Options
	logger   *slog.Logger
}

// New creates a learner.
func New(registry *sections.Registry, opts Options, logger *slog.Logger) *Learner {
	if registry == nil {
		registry = sections.Default()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Learner{
		registry: registry,
		opts:     opts.withDefaults(),
		logger:   logger.With("system", "learning"),
	}
}

// Learn proposes rules from m and report and adds them to store. Persisting
// the store is left to the caller.
func (l *Learner) Learn(ctx context.Context, m *fields.SectionMap, report alignment.Report, store *rules.Store) Result {
	res := l.Propose(m, report)
	for _, section := range slices.Sorted(maps.Keys(res.Rules)) {
		res.Added += store.Add(ctx, section, res.Rules[section]...)
	}
	l.logger.Info("rules learned",
		"batch", res.Batch,
		"targets", len(res.Targets),
		"proposed", res.Count(),
		"added", res.Added,
		"rejected", len(res.Rejected),
	)
	return res
}

// Batch returns the unknown fields and the unprotected fields classified
// below the low-confidence mark.
func (l *Learner) Batch(m *fields.SectionMap) []*fields.Categorized {
	var batch []*fields.Categorized
	for _, rec := range m.All() {
		if rec.Name == "" {
			continue
		}
		if rec.Section == fields.Unknown || (!rec.Protected() && rec.Confidence < l.opts.LowConfidence) {
			batch = append(batch, rec)
		}
	}
	return batch
}

// Group buckets the batch by normalized name.
func Group(batch []*fields.Categorized) map[string][]*fields.Categorized {
	groups := make(map[string][]*fields.Categorized)
	for _, rec := range batch {
		key := NormalizeName(rec.Name)
		groups[key] = append(groups[key], rec)
	}
	return groups
}

// Propose generates, screens and deduplicates candidates without touching a
// store.
func (l *Learner) Propose(m *fields.SectionMap, report alignment.Report) Result {
	res := Result{Rules: make(map[int][]rules.Rule)}
	if report.NoReference {
		return res
	}

	batch := l.Batch(m)
	res.Batch = len(batch)
	res.Targets = l.targets(report)
	if len(batch) == 0 || len(res.Targets) == 0 {
		return res
	}

	names := make([]string, len(batch))
	for i, rec := range batch {
		names[i] = rec.Name
	}
	groups := Group(batch)

	var accepted []Candidate
	for _, section := range res.Targets {
		evidence := l.evidence(section, batch)
		if len(evidence) < l.opts.MinSupport {
			continue
		}
		for _, c := range l.generate(section, evidence, groups) {
			c.BatchLen = len(batch)
			if err := l.screen(&c, names, evidence); err != nil {
				res.reject(l.logger, c, err)
				continue
			}
			accepted = append(accepted, c)
		}
	}

	accepted = l.resolveConflicts(accepted, &res)

	for _, section := range res.Targets {
		var set rules.Set
		var picked []Candidate
		for _, c := range accepted {
			if c.Section == section {
				picked = append(picked, c)
			}
		}
		slices.SortStableFunc(picked, func(a, b Candidate) int {
			if c := cmp.Compare(b.Rule.Confidence, a.Rule.Confidence); c != 0 {
				return c
			}
			return cmp.Compare(b.Support, a.Support)
		})
		for _, c := range picked {
			if len(set.Include) >= l.opts.MaxRules {
				break
			}
			set.Merge(c.Rule)
		}
		if len(set.Include) > 0 {
			res.Rules[section] = set.Include
		}
	}
	return res
}

func (r *Result) reject(logger *slog.Logger, c Candidate, err error) {
	r.Rejected = append(r.Rejected, Rejection{Section: c.Section, Pattern: c.Rule.Pattern, Reason: err.Error()})
	logger.Debug("candidate rejected",
		"section", c.Section,
		"pattern", c.Rule.Pattern,
		"tier", c.Tier.String(),
		"matches", c.Matches,
		"batch", c.BatchLen,
		"reason", err.Error(),
	)
}

// targets returns the sections whose shortfall is significant.
func (l *Learner) targets(report alignment.Report) []int {
	var out []int
	for _, d := range report.Deviations {
		if d.Section > 0 && d.ShouldCorrect && d.Deviation < 0 {
			out = append(out, d.Section)
		}
	}
	return out
}

// evidence returns the batch fields that plausibly belong to section: those
// weakly placed there, lying on its pages, or whose label or value mentions
// its keywords.
func (l *Learner) evidence(section int, batch []*fields.Categorized) []*fields.Categorized {
	meta, ok := l.registry.Section(section)
	var out []*fields.Categorized
	for _, rec := range batch {
		switch {
		case rec.Section == section:
			out = append(out, rec)
		case ok && rec.Page > 0 && meta.OnPage(rec.Page):
			out = append(out, rec)
		case ok && meta.KeywordScore(rec.Text()) > 0:
			out = append(out, rec)
		}
	}
	return out
}

// Screen applies the support-independent filters to a rule against a batch
// of names: it must compile, contain a distinguishing token, and match no
// more than the broadness limit of the batch.
func (l *Learner) Screen(r rules.Rule, batch []string) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if GenericOnly(r.Pattern) {
		return ErrGeneric
	}
	re := regexp.MustCompile(r.Source())
	matches := 0
	for _, n := range batch {
		if re.MatchString(n) {
			matches++
		}
	}
	if len(batch) > 0 && float64(matches)/float64(len(batch)) > l.opts.BroadnessLimit {
		return fmt.Errorf("%w: %d of %d", ErrTooBroad, matches, len(batch))
	}
	return nil
}

func (l *Learner) screen(c *Candidate, batch []string, evidence []*fields.Categorized) error {
	if err := l.Screen(c.Rule, batch); err != nil {
		return err
	}

	re := regexp.MustCompile(c.Rule.Source())
	for _, n := range batch {
		if re.MatchString(n) {
			c.Matches++
		}
	}
	for _, rec := range evidence {
		if re.MatchString(rec.Name) {
			c.Support++
		}
	}

	if c.Support < l.opts.MinSupport {
		return fmt.Errorf("%w: %d", ErrUnsupported, c.Support)
	}
	precision := float64(c.Support) / float64(c.Matches)
	if precision < l.opts.MinPrecision {
		return fmt.Errorf("%w: %.2f", ErrImprecise, precision)
	}
	c.Rule.Confidence = fields.ClampConfidence(tierConfidence[c.Tier] - 0.1*(1-precision))
	return nil
}

// resolveConflicts drops every candidate whose pattern is proposed with
// high confidence for two or more sections.
func (l *Learner) resolveConflicts(cands []Candidate, res *Result) []Candidate {
	claims := make(map[string]map[int]bool)
	for _, c := range cands {
		if c.Rule.Confidence < l.opts.ConflictConfidence {
			continue
		}
		src := c.Rule.Source()
		if claims[src] == nil {
			claims[src] = make(map[int]bool)
		}
		claims[src][c.Section] = true
	}

	out := cands[:0]
	for _, c := range cands {
		if len(claims[c.Rule.Source()]) > 1 {
			res.reject(l.logger, c, ErrConflict)
			continue
		}
		out = append(out, c)
	}
	return out
}
