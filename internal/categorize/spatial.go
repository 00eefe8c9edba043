package categorize

import (
	"math"

	"github.com/JaimeStill/sectional/internal/fields"
)

// Neighborhood indexes classified fields with geometry by page for the
// spatial-proximity signal.
type Neighborhood struct {
	byPage map[int][]anchor
}

type anchor struct {
	id      string
	section int
	x, y    float64
}

// NewNeighborhood indexes the classified, positioned records of recs.
func NewNeighborhood(recs []*fields.Categorized) *Neighborhood {
	n := &Neighborhood{byPage: make(map[int][]anchor)}
	for _, c := range recs {
		n.Add(c)
	}
	return n
}

// Add indexes c when it is classified and has geometry.
func (n *Neighborhood) Add(c *fields.Categorized) {
	if c == nil || c.Section == fields.Unknown || c.Rect == nil || c.Page <= 0 {
		return
	}
	x, y := c.Rect.Center()
	n.byPage[c.Page] = append(n.byPage[c.Page], anchor{id: c.ID, section: c.Section, x: x, y: y})
}

// Len returns the number of indexed anchors.
func (n *Neighborhood) Len() int {
	total := 0
	for _, list := range n.byPage {
		total += len(list)
	}
	return total
}

// Vote is the outcome of a neighbourhood poll.
type Vote struct {
	Section int
	Share   float64
	Total   int
}

// Poll counts the sections of anchors within pageWindow pages and pixel
// distance of f, excluding f itself, and returns the majority.
func (n *Neighborhood) Poll(f fields.Field, pageWindow int, pixelWindow float64) (Vote, bool) {
	if n == nil || f.Rect == nil || f.Page <= 0 {
		return Vote{}, false
	}
	x, y := f.Rect.Center()

	counts := make(map[int]int)
	total := 0
	for page := f.Page - pageWindow; page <= f.Page+pageWindow; page++ {
		for _, a := range n.byPage[page] {
			if a.id == f.ID {
				continue
			}
			if math.Hypot(a.x-x, a.y-y) > pixelWindow {
				continue
			}
			counts[a.section]++
			total++
		}
	}
	if total == 0 {
		return Vote{}, false
	}

	best, bestCount := 0, 0
	for section, count := range counts {
		if count > bestCount || (count == bestCount && section < best) {
			best, bestCount = section, count
		}
	}
	return Vote{Section: best, Share: float64(bestCount) / float64(total), Total: total}, true
}
