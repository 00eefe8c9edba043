// Package categorize assigns fields to sections through a fixed cascade of
// signals: override table, explicit name structure, rule book, page range,
// spatial proximity, then label and value keywords. The first signal whose
// result clears its floor wins; a field no signal claims stays unknown.
package categorize

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/JaimeStill/sectional/internal/fields"
	"github.com/JaimeStill/sectional/internal/rules"
	"github.com/JaimeStill/sectional/internal/sections"
)

// Options tunes the cascade.
type Options struct {
	// ConfidenceFloor rejects any signal result below it.
	ConfidenceFloor float64
	// PageWindow is how many pages either side count as neighbours.
	PageWindow int
	// PixelWindow is the neighbour radius in page coordinates.
	PixelWindow float64
	// Dominance is the share of neighbours that must agree.
	Dominance float64
	// MinNeighbors is the smallest neighbourhood worth polling.
	MinNeighbors int
}

// DefaultOptions returns the tuning used when none is given.
func DefaultOptions() Options {
	return Options{
		PageWindow:   0,
		PixelWindow:  150,
		Dominance:    0.7,
		MinNeighbors: 2,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.PageWindow < 0 {
		o.PageWindow = d.PageWindow
	}
	if o.PixelWindow <= 0 {
		o.PixelWindow = d.PixelWindow
	}
	if o.Dominance <= 0 || o.Dominance >= 1 {
		o.Dominance = d.Dominance
	}
	if o.MinNeighbors <= 0 {
		o.MinNeighbors = d.MinNeighbors
	}
	o.ConfidenceFloor = fields.ClampConfidence(o.ConfidenceFloor)
	return o
}

// Categorizer evaluates the signal cascade. It reads the registry and an
// immutable rule book and never mutates either, so one Categorizer may be
// shared between goroutines.
type Categorizer struct {
	registry *sections.Registry
	book     *rules.Book
	detector *Detector
	opts     Options
	logger   *slog.Logger
}

// New creates a categorizer. A nil book means no rule signal.
func New(registry *sections.Registry, book *rules.Book, opts Options, logger *slog.Logger) *Categorizer {
	if registry == nil {
		registry = sections.Default()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Categorizer{
		registry: registry,
		book:     book,
		detector: NewDetector(registry),
		opts:     opts.withDefaults(),
		logger:   logger.With("system", "categorize"),
	}
}

type signal struct {
	kind fields.Signal
	eval func(fields.Field, *Neighborhood) (fields.Assignment, bool)
}

func (c *Categorizer) direct() []signal {
	return []signal{
		{fields.SignalOverride, c.override},
		{fields.SignalExplicit, c.explicit},
		{fields.SignalRule, c.rule},
		{fields.SignalPage, c.page},
	}
}

func (c *Categorizer) contextual() []signal {
	return []signal{
		{fields.SignalSpatial, c.spatial},
		{fields.SignalContent, c.content},
	}
}

// Categorize classifies f against the given neighbourhood, which may be nil.
// The zero Assignment means unknown.
func (c *Categorizer) Categorize(f fields.Field, hood *Neighborhood) fields.Assignment {
	if a, ok := c.cascade(f, hood, c.direct()); ok {
		return a
	}
	if a, ok := c.cascade(f, hood, c.contextual()); ok {
		return a
	}
	return fields.Assignment{}
}

// CategorizeAll classifies fs into a fresh section map. Name and page signals
// run first for every field; spatial and content signals then run for the
// remainder, polling the neighbourhood formed by the first pass.
func (c *Categorizer) CategorizeAll(fs []fields.Field) *fields.SectionMap {
	m := fields.FromFields(fs)
	recs := m.All()

	for _, rec := range recs {
		if a, ok := c.cascade(rec.Field, nil, c.direct()); ok {
			m.Assign(rec.ID, a)
		}
	}

	hood := NewNeighborhood(m.All())
	for _, rec := range m.Unknown() {
		if a, ok := c.cascade(rec.Field, hood, c.contextual()); ok {
			m.Assign(rec.ID, a)
		}
	}

	counts := m.Counts()
	c.logger.Info("categorized fields",
		"fields", m.Len(),
		"sections", len(m.Sections()),
		"unknown", counts[fields.Unknown],
	)
	return m
}

func (c *Categorizer) cascade(f fields.Field, hood *Neighborhood, signals []signal) (fields.Assignment, bool) {
	for _, s := range signals {
		a, ok := c.try(s, f, hood)
		if !ok {
			continue
		}
		if a.Section < 1 || !c.registry.Has(a.Section) {
			continue
		}
		a.Confidence = fields.ClampConfidence(a.Confidence)
		if a.Confidence <= 0 || a.Confidence < c.opts.ConfidenceFloor {
			continue
		}
		a.Signal = s.kind
		return a, true
	}
	return fields.Assignment{}, false
}

// try evaluates one signal. A panic inside a signal is logged and treated as
// no result so that the field falls through to the next signal.
func (c *Categorizer) try(s signal, f fields.Field, hood *Neighborhood) (a fields.Assignment, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("signal failed",
				"signal", string(s.kind),
				"field", f.ID,
				"name", f.Name,
				"error", fmt.Sprint(r),
			)
			a, ok = fields.Assignment{}, false
		}
	}()
	return s.eval(f, hood)
}

func (c *Categorizer) override(f fields.Field, _ *Neighborhood) (fields.Assignment, bool) {
	if f.Name == "" {
		return fields.Assignment{}, false
	}
	o, ok := c.registry.Override(f.Name)
	if !ok {
		return fields.Assignment{}, false
	}
	return fields.Assignment{
		Section:    o.Section,
		Subsection: o.Subsection,
		Entry:      o.Entry,
		Confidence: o.Confidence,
		Explicit:   o.Confidence >= 0.95,
	}, true
}

func (c *Categorizer) explicit(f fields.Field, _ *Neighborhood) (fields.Assignment, bool) {
	e, ok := c.detector.Detect(f.Name)
	if !ok {
		return fields.Assignment{}, false
	}
	if c.book.Excluded(e.Section, f.Name) {
		return fields.Assignment{}, false
	}

	a := fields.Assignment{
		Section:    e.Section,
		Subsection: e.Subsection,
		Entry:      e.Entry,
		Confidence: e.Confidence,
		Explicit:   true,
	}

	// A rule of the detected section may carry finer structure than the
	// name token alone, such as an entry derived from a widget index.
	if m, ok := c.book.MatchSection(e.Section, f.Name); ok {
		if m.Subsection != "" && a.Subsection == "" {
			a.Subsection = m.Subsection
		}
		if m.Entry > 0 {
			a.Entry = m.Entry
		}
	}
	return a, true
}

func (c *Categorizer) rule(f fields.Field, _ *Neighborhood) (fields.Assignment, bool) {
	m, ok := c.book.Match(f.Name)
	if !ok {
		return fields.Assignment{}, false
	}
	return fields.Assignment{
		Section:    m.Section,
		Subsection: m.Subsection,
		Entry:      m.Entry,
		Confidence: m.Confidence,
		Explicit:   m.Rule.Tier == rules.TierStrict && m.Confidence >= 0.99,
	}, true
}

// page assigns by the registry's page table. A page claimed by a single
// narrow section earns the most; shared pages are penalized, less so when
// the winner is decided by rivalry or priority rather than by section order.
func (c *Categorizer) page(f fields.Field, _ *Neighborhood) (fields.Assignment, bool) {
	if f.Page <= 0 {
		return fields.Assignment{}, false
	}

	var claims []int
	for _, id := range c.registry.ClaimsForPage(f.Page) {
		if !c.book.Excluded(id, f.Name) {
			claims = append(claims, id)
		}
	}
	if len(claims) == 0 {
		return fields.Assignment{}, false
	}

	top := claims[0]
	meta, _ := c.registry.Section(top)

	var conf float64
	switch {
	case len(claims) == 1 && meta.PageSpan() <= 2:
		conf = 0.85
	case len(claims) == 1:
		conf = 0.8
	case c.decisive(top, claims[1]):
		conf = 0.7
	default:
		conf = 0.6
	}
	if len(claims) > 1 {
		conf -= 0.02 * float64(min(len(claims)-2, 5))
	}
	return fields.Assignment{Section: top, Confidence: math.Max(conf, 0.6)}, true
}

func (c *Categorizer) decisive(a, b int) bool {
	if c.registry.Prefers(a, b) {
		return true
	}
	sa, _ := c.registry.Section(a)
	sb, _ := c.registry.Section(b)
	return sa.Priority > sb.Priority
}

// spatial adopts the majority section of nearby classified fields when it
// dominates the neighbourhood. Confidence grows with the dominance.
func (c *Categorizer) spatial(f fields.Field, hood *Neighborhood) (fields.Assignment, bool) {
	v, ok := hood.Poll(f, c.opts.PageWindow, c.opts.PixelWindow)
	if !ok || v.Total < c.opts.MinNeighbors || v.Share <= c.opts.Dominance {
		return fields.Assignment{}, false
	}
	if c.book.Excluded(v.Section, f.Name) {
		return fields.Assignment{}, false
	}
	conf := 0.6 + 0.25*(v.Share-c.opts.Dominance)/(1-c.opts.Dominance)
	return fields.Assignment{Section: v.Section, Confidence: math.Min(conf, 0.85)}, true
}

// content matches label and value text against section keywords.
func (c *Categorizer) content(f fields.Field, _ *Neighborhood) (fields.Assignment, bool) {
	id, score := c.registry.Match(f.Text())
	if score == 0 || c.book.Excluded(id, f.Name) {
		return fields.Assignment{}, false
	}
	conf := 0.5 + 0.08*float64(score-1)
	return fields.Assignment{Section: id, Confidence: math.Min(conf, 0.75)}, true
}
