package fields

// Unknown is the reserved section for unclassified fields.
const Unknown = 0

// Signal names the mechanism that produced a field's current assignment.
// Healing mechanisms are ordered by decreasing certainty so that a later,
// weaker mechanism can be recognized when deciding what may be overwritten.
type Signal string

// Assignment mechanisms.
const (
	SignalNone        Signal = ""
	SignalOverride    Signal = "override"
	SignalExplicit    Signal = "explicit"
	SignalRule        Signal = "rule"
	SignalPage        Signal = "page"
	SignalSpatial     Signal = "spatial"
	SignalContent     Signal = "content"
	SignalHealPattern Signal = "heal-pattern"
	SignalHealPage    Signal = "heal-page"
	SignalHealSibling Signal = "heal-sibling"
	SignalHealNearest Signal = "heal-nearest"
	SignalHealDeficit Signal = "heal-deficit"
	SignalRebalance   Signal = "rebalance"
	SignalFallback    Signal = "fallback"
)

// Healed reports whether the signal was produced by the healing process
// rather than by categorization.
func (s Signal) Healed() bool {
	switch s {
	case SignalHealPattern, SignalHealPage, SignalHealSibling,
		SignalHealNearest, SignalHealDeficit, SignalRebalance, SignalFallback:
		return true
	}
	return false
}

// Assignment is a categorization decision applied to a field.
type Assignment struct {
	Section    int     `json:"section"`
	Subsection string  `json:"subsection,omitempty"`
	Entry      int     `json:"entry,omitempty"`
	Confidence float64 `json:"confidence"`
	Signal     Signal  `json:"signal,omitempty"`
	Explicit   bool    `json:"explicit,omitempty"`
}

// Categorized is the mutable working record for a field.
type Categorized struct {
	Field
	Section    int     `json:"section"`
	Subsection string  `json:"subsection,omitempty"`
	Entry      int     `json:"entry,omitempty"`
	Confidence float64 `json:"confidence"`
	Signal     Signal  `json:"signal,omitempty"`
	Explicit   bool    `json:"explicit,omitempty"`
}

// NewCategorized wraps f as an unclassified record.
func NewCategorized(f Field) *Categorized {
	return &Categorized{Field: f}
}

// Assignment returns the record's current decision.
func (c *Categorized) Assignment() Assignment {
	return Assignment{
		Section:    c.Section,
		Subsection: c.Subsection,
		Entry:      c.Entry,
		Confidence: c.Confidence,
		Signal:     c.Signal,
		Explicit:   c.Explicit,
	}
}

// Protected reports whether the record came from explicit detection and must
// not be moved by generic rebalancing.
func (c *Categorized) Protected() bool {
	return c.Explicit
}

// Clone returns a deep copy.
func (c *Categorized) Clone() *Categorized {
	cp := *c
	if c.Rect != nil {
		r := *c.Rect
		cp.Rect = &r
	}
	if c.Value.Text != nil {
		s := *c.Value.Text
		cp.Value.Text = &s
	}
	if c.Value.Bool != nil {
		b := *c.Value.Bool
		cp.Value.Bool = &b
	}
	if c.Value.List != nil {
		cp.Value.List = append([]string(nil), c.Value.List...)
	}
	return &cp
}

// apply writes a into the record. Section membership is owned by SectionMap;
// callers outside this package go through SectionMap.Assign.
func (c *Categorized) apply(a Assignment) {
	c.Section = a.Section
	c.Subsection = a.Subsection
	c.Entry = a.Entry
	c.Confidence = ClampConfidence(a.Confidence)
	c.Signal = a.Signal
	c.Explicit = a.Explicit
}

// ClampConfidence bounds v to [0,1].
func ClampConfidence(v float64) float64 {
	switch {
	case v != v, v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
