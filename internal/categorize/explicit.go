package categorize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/JaimeStill/sectional/internal/sections"
)

// Explicit holds the structure read from a field name that embeds its
// section number.
type Explicit struct {
	Section    int
	Subsection string
	Entry      int
	Confidence float64
}

// Detector recognizes section-number tokens in hierarchical field names:
// "form1[0].Section13_2[0].TextField11[3]", "section2a_field",
// "Section11-3[0]". Range containers such as "Sections7-9" are ambiguous and
// never match.
type Detector struct {
	re  *regexp.Regexp
	max int
}

// NewDetector builds a detector for the registry's name tokens.
func NewDetector(reg *sections.Registry) *Detector {
	tokens := reg.NameTokens()
	quoted := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			quoted = append(quoted, regexp.QuoteMeta(t))
		}
	}
	if len(quoted) == 0 {
		quoted = append(quoted, "section")
	}

	// 1 boundary, 2 token, 3 number, 4 letter subsection, 5 numeric
	// subsection, 6 entry, 7 trailing character.
	expr := `(?i)(^|[^a-z])(` + strings.Join(quoted, "|") + `)[ _]?(\d{1,3})` +
		`(?:([a-z])|_(\d{1,2}))?` +
		`(?:-(\d{1,2}))?` +
		`([^a-z0-9]|$)`

	return &Detector{
		re:  regexp.MustCompile(expr),
		max: reg.Max(),
	}
}

// Detect returns the explicit structure of name, if any.
func (d *Detector) Detect(name string) (Explicit, bool) {
	if name == "" {
		return Explicit{}, false
	}

	for _, loc := range d.re.FindAllStringSubmatchIndex(name, -1) {
		sub := func(i int) string {
			if loc[2*i] < 0 {
				return ""
			}
			return name[loc[2*i]:loc[2*i+1]]
		}

		section, err := strconv.Atoi(sub(3))
		if err != nil || section < 1 || (d.max > 0 && section > d.max) {
			continue
		}

		e := Explicit{Section: section, Confidence: 0.95}
		switch {
		case sub(4) != "":
			e.Subsection = strings.ToUpper(sub(4))
		case sub(5) != "":
			e.Subsection = sub(5)
		}
		if n, err := strconv.Atoi(sub(6)); err == nil && n > 0 {
			e.Entry = n
		}

		boundary := sub(1)
		trailing := sub(7)
		if boundary == "." && (trailing == "[" || trailing == "\\") {
			e.Confidence = 0.99
		}
		return e, true
	}
	return Explicit{}, false
}
