package sections

import (
	"cmp"
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed profiles/sf86.yaml
var defaultProfile []byte

// DefaultThreshold is the deviation threshold used by sections that set none.
const DefaultThreshold = 0.1

// Override pins fields to a section regardless of other signals. Exactly one
// of Name (exact field name) or Pattern (regular expression) is set.
type Override struct {
	Name       string  `yaml:"name,omitempty"`
	Pattern    string  `yaml:"pattern,omitempty"`
	Section    int     `yaml:"section"`
	Subsection string  `yaml:"subsection,omitempty"`
	Entry      int     `yaml:"entry,omitempty"`
	Confidence float64 `yaml:"confidence,omitempty"`
	Reason     string  `yaml:"reason,omitempty"`

	re *regexp.Regexp
}

// Matches reports whether the override applies to the field name.
func (o *Override) Matches(name string) bool {
	if o.Name != "" {
		return o.Name == name
	}
	return o.re != nil && o.re.MatchString(name)
}

// Rivalry records that Preferred wins over Over when both claim the same
// physical pages.
type Rivalry struct {
	Preferred int `yaml:"preferred"`
	Over      int `yaml:"over"`
}

// Profile is the on-disk form of a registry.
type Profile struct {
	Name             string     `yaml:"name"`
	DefaultThreshold float64    `yaml:"default_threshold,omitempty"`
	NameTokens       []string   `yaml:"name_tokens,omitempty"`
	Sections         []Section  `yaml:"sections"`
	Overrides        []Override `yaml:"overrides,omitempty"`
	Rivalries        []Rivalry  `yaml:"rivalries,omitempty"`
}

// Registry is the validated, indexed form of a profile. It is read-only after
// construction and safe to share.
type Registry struct {
	name             string
	defaultThreshold float64
	nameTokens       []string
	sections         map[int]*Section
	ids              []int
	overrides        []Override
	rivalries        []Rivalry
}

// Default returns the registry of the embedded questionnaire profile.
func Default() *Registry {
	reg, err := Parse(defaultProfile)
	if err != nil {
		panic(fmt.Sprintf("embedded profile: %v", err))
	}
	return reg
}

// Load reads a YAML profile from path.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML profile.
func Parse(data []byte) (*Registry, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}
	return New(p)
}

// New validates p and builds a registry from it.
func New(p Profile) (*Registry, error) {
	reg := &Registry{
		name:             p.Name,
		defaultThreshold: p.DefaultThreshold,
		nameTokens:       p.NameTokens,
		sections:         make(map[int]*Section, len(p.Sections)),
	}
	if reg.defaultThreshold <= 0 {
		reg.defaultThreshold = DefaultThreshold
	}
	if len(reg.nameTokens) == 0 {
		reg.nameTokens = []string{"section"}
	}

	for i := range p.Sections {
		s := p.Sections[i]
		if s.ID <= 0 {
			return nil, fmt.Errorf("%w: section id must be positive, got %d", ErrInvalidProfile, s.ID)
		}
		if _, dup := reg.sections[s.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate section %d", ErrInvalidProfile, s.ID)
		}
		for _, r := range s.Pages {
			if r.Start <= 0 || r.End < r.Start {
				return nil, fmt.Errorf("%w: section %d has invalid page range %d-%d", ErrInvalidProfile, s.ID, r.Start, r.End)
			}
		}
		if s.Threshold < 0 {
			return nil, fmt.Errorf("%w: section %d has negative threshold", ErrInvalidProfile, s.ID)
		}
		reg.sections[s.ID] = &s
		reg.ids = append(reg.ids, s.ID)
	}
	slices.Sort(reg.ids)

	for _, o := range p.Overrides {
		if _, ok := reg.sections[o.Section]; !ok {
			return nil, fmt.Errorf("%w: override targets section %d", ErrUnknownSection, o.Section)
		}
		if (o.Name == "") == (o.Pattern == "") {
			return nil, fmt.Errorf("%w: override must set exactly one of name or pattern", ErrInvalidProfile)
		}
		if o.Pattern != "" {
			re, err := regexp.Compile(o.Pattern)
			if err != nil {
				return nil, fmt.Errorf("%w: override pattern %q: %w", ErrInvalidProfile, o.Pattern, err)
			}
			o.re = re
		}
		if o.Confidence <= 0 || o.Confidence > 1 {
			o.Confidence = 0.99
		}
		reg.overrides = append(reg.overrides, o)
	}

	for _, r := range p.Rivalries {
		if _, ok := reg.sections[r.Preferred]; !ok {
			return nil, fmt.Errorf("%w: rivalry references section %d", ErrUnknownSection, r.Preferred)
		}
		if _, ok := reg.sections[r.Over]; !ok {
			return nil, fmt.Errorf("%w: rivalry references section %d", ErrUnknownSection, r.Over)
		}
		reg.rivalries = append(reg.rivalries, r)
	}

	return reg, nil
}

// Name returns the profile name.
func (r *Registry) Name() string { return r.name }

// NameTokens returns the tokens that introduce a section number in
// hierarchical field names ("section" by default).
func (r *Registry) NameTokens() []string { return r.nameTokens }

// IDs returns every section number in ascending order.
func (r *Registry) IDs() []int { return slices.Clone(r.ids) }

// Len returns the number of sections.
func (r *Registry) Len() int { return len(r.ids) }

// Max returns the highest section number, N.
func (r *Registry) Max() int {
	if len(r.ids) == 0 {
		return 0
	}
	return r.ids[len(r.ids)-1]
}

// Section returns the metadata of id.
func (r *Registry) Section(id int) (*Section, bool) {
	s, ok := r.sections[id]
	return s, ok
}

// Has reports whether id is a known section.
func (r *Registry) Has(id int) bool {
	_, ok := r.sections[id]
	return ok
}

// Threshold returns the deviation threshold of id.
func (r *Registry) Threshold(id int) float64 {
	if s, ok := r.sections[id]; ok && s.Threshold > 0 {
		return s.Threshold
	}
	return r.defaultThreshold
}

// DefaultThreshold returns the profile-wide threshold.
func (r *Registry) DefaultThreshold() float64 { return r.defaultThreshold }

// Thresholds returns the per-section threshold table.
func (r *Registry) Thresholds() map[int]float64 {
	out := make(map[int]float64, len(r.ids))
	for _, id := range r.ids {
		out[id] = r.Threshold(id)
	}
	return out
}

// Fallbacks returns the absorptive fallback sections in ascending order.
func (r *Registry) Fallbacks() []int {
	var out []int
	for _, id := range r.ids {
		if r.sections[id].Fallback {
			out = append(out, id)
		}
	}
	return out
}

// Override returns the first override matching name.
func (r *Registry) Override(name string) (Override, bool) {
	for _, o := range r.overrides {
		if o.Matches(name) {
			return o, true
		}
	}
	return Override{}, false
}

// Overrides returns the override table.
func (r *Registry) Overrides() []Override { return slices.Clone(r.overrides) }

// Prefers reports whether a is configured to win over b.
func (r *Registry) Prefers(a, b int) bool {
	for _, rv := range r.rivalries {
		if rv.Preferred == a && rv.Over == b {
			return true
		}
	}
	return false
}

// Rivals reports whether a and b overlap on at least one page.
func (r *Registry) Rivals(a, b int) bool {
	sa, okA := r.sections[a]
	sb, okB := r.sections[b]
	if !okA || !okB {
		return false
	}
	for _, ra := range sa.Pages {
		for _, rb := range sb.Pages {
			if ra.Start <= rb.End && rb.Start <= ra.End {
				return true
			}
		}
	}
	return false
}

// ClaimsForPage returns the sections claiming page, most specific first:
// configured rivalry preference, then higher priority, then narrower span,
// then lower section number.
func (r *Registry) ClaimsForPage(page int) []int {
	var claims []int
	for _, id := range r.ids {
		if r.sections[id].OnPage(page) {
			claims = append(claims, id)
		}
	}
	slices.SortStableFunc(claims, r.compareClaims)
	return claims
}

func (r *Registry) compareClaims(a, b int) int {
	switch {
	case r.Prefers(a, b):
		return -1
	case r.Prefers(b, a):
		return 1
	}
	sa, sb := r.sections[a], r.sections[b]
	if c := cmp.Compare(sb.Priority, sa.Priority); c != 0 {
		return c
	}
	if c := cmp.Compare(sa.PageSpan(), sb.PageSpan()); c != 0 {
		return c
	}
	return cmp.Compare(a, b)
}

// PageGap returns the number of pages separating the ranges of a and b (0 when
// they overlap or touch), or -1 when either lacks page metadata.
func (r *Registry) PageGap(a, b int) int {
	sa, okA := r.sections[a]
	sb, okB := r.sections[b]
	if !okA || !okB || len(sa.Pages) == 0 || len(sb.Pages) == 0 {
		return -1
	}
	best := -1
	for _, ra := range sa.Pages {
		for _, rb := range sb.Pages {
			gap := 0
			switch {
			case ra.End < rb.Start:
				gap = rb.Start - ra.End - 1
			case rb.End < ra.Start:
				gap = ra.Start - rb.End - 1
			}
			if best < 0 || gap < best {
				best = gap
			}
		}
	}
	return best
}

// Extend returns a registry that additionally knows the given section numbers
// as bare sections without metadata. Reference tables may name sections that
// a profile does not describe.
func (r *Registry) Extend(ids ...int) *Registry {
	missing := false
	for _, id := range ids {
		if id > 0 && !r.Has(id) {
			missing = true
			break
		}
	}
	if !missing {
		return r
	}

	cp := *r
	cp.sections = make(map[int]*Section, len(r.sections)+len(ids))
	for id, s := range r.sections {
		cp.sections[id] = s
	}
	cp.ids = slices.Clone(r.ids)
	for _, id := range ids {
		if id > 0 && !cp.Has(id) {
			cp.sections[id] = &Section{ID: id}
			cp.ids = append(cp.ids, id)
		}
	}
	slices.Sort(cp.ids)
	return &cp
}

// Match returns the section whose keywords best match text, with its score.
// Ties are broken by claim order; a zero score yields (0, 0).
func (r *Registry) Match(text string) (int, int) {
	if strings.TrimSpace(text) == "" {
		return 0, 0
	}
	bestID, bestScore := 0, 0
	for _, id := range r.ids {
		if score := r.sections[id].KeywordScore(text); score > bestScore {
			bestID, bestScore = id, score
		}
	}
	return bestID, bestScore
}
