package workflow

import (
	"time"

	"github.com/JaimeStill/sectional/internal/alignment"
	"github.com/JaimeStill/sectional/internal/categorize"
	"github.com/JaimeStill/sectional/internal/fields"
	"github.com/JaimeStill/sectional/internal/healing"
	"github.com/JaimeStill/sectional/internal/learning"
)

// Options tunes a run.
type Options struct {
	// MaxCycles bounds the categorize, heal and learn cycles.
	MaxCycles int `json:"max_cycles"`
	// Stagnation is how many consecutive cycles may fail to beat the best
	// score before the run stops.
	Stagnation int `json:"stagnation"`
	// Persist writes the rule store through its source when the run ends.
	Persist bool `json:"persist"`

	Categorize categorize.Options `json:"-"`
	Healing    healing.Options    `json:"-"`
	Learning   learning.Options   `json:"-"`
}

// DefaultOptions returns the run defaults.
func DefaultOptions() Options {
	return Options{
		MaxCycles:  5,
		Stagnation: 2,
		Categorize: categorize.DefaultOptions(),
		Healing:    healing.DefaultOptions(),
		Learning:   learning.DefaultOptions(),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxCycles <= 0 {
		o.MaxCycles = d.MaxCycles
	}
	if o.Stagnation <= 0 {
		o.Stagnation = d.Stagnation
	}
	return o
}

// Cycle summarizes one categorize, heal and learn cycle.
type Cycle struct {
	Cycle       int     `json:"cycle"`
	Categorized float64 `json:"categorized_score"`
	Score       float64 `json:"score"`
	Unknown     int     `json:"unknown"`
	Iterations  int     `json:"iterations"`
	Moves       int     `json:"moves"`
	Reason      string  `json:"reason"`
	Rules       int     `json:"rules"`
	Learned     int     `json:"learned"`
	Improved    bool    `json:"improved"`
}

// Result is the final output of a run.
type Result struct {
	Sections    *fields.SectionMap    `json:"sections"`
	Report      alignment.Report      `json:"report"`
	Statistics  []alignment.Statistic `json:"statistics"`
	Aligned     bool                  `json:"aligned"`
	BestCycle   int                   `json:"best_cycle"`
	BestScore   float64               `json:"best_score"`
	Cycles      []Cycle               `json:"cycles"`
	Final       healing.Final         `json:"final"`
	Residual    int                   `json:"residual"`
	Diagnostics []string              `json:"diagnostics,omitempty"`
	CompletedAt time.Time             `json:"completed_at"`
}
