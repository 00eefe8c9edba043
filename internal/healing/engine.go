// Package healing corrects systematic misclassification by comparing section
// sizes with their references and moving fields until the alignment score
// reaches a ceiling, plateaus, or the iteration budget runs out. Fields
// flagged as explicitly detected are never moved by rebalancing.
package healing

import (
	"cmp"
	"log/slog"
	"slices"

	"github.com/JaimeStill/sectional/internal/alignment"
	"github.com/JaimeStill/sectional/internal/fields"
	"github.com/JaimeStill/sectional/internal/rules"
	"github.com/JaimeStill/sectional/internal/sections"
)

// Confidence assigned by each healing mechanism. Pattern moves keep a share
// of the rule's own confidence up to patternCeiling.
const (
	patternShare   = 0.9
	patternCeiling = 0.85
	pageConf       = 0.6
	siblingConf    = 0.5
	rebalanceConf  = 0.45
	nearestConf    = 0.4
	deficitConf    = 0.3
	fallbackConf   = 0.2
)

// Stop reasons.
const (
	StopNoReference = "no-reference"
	StopCeiling     = "ceiling"
	StopPlateau     = "plateau"
	StopStable      = "stable"
	StopBudget      = "budget"
)

// Options tunes the engine.
type Options struct {
	MaxIterations int
	// Ceiling is the alignment score at which healing stops.
	Ceiling float64
	// Patience is how many iterations without improvement count as a
	// plateau.
	Patience int
	// Adjacency is the page gap within which sections count as related when
	// rebalancing an oversized section.
	Adjacency int
	// NearestPages bounds the search for a neighbouring page majority.
	NearestPages int
	Schedule     Schedule
	Thresholds   alignment.Thresholds
	// ForceFallback empties the unknown bucket during Finalize, using the
	// registry's fallback sections as the last resort. When false the
	// remainder is reported as residual.
	ForceFallback bool
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() Options {
	return Options{
		MaxIterations: 20,
		Ceiling:       97,
		Patience:      3,
		Adjacency:     2,
		NearestPages:  5,
		Schedule:      DefaultSchedule(),
		ForceFallback: true,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxIterations <= 0 {
		o.MaxIterations = d.MaxIterations
	}
	if o.Ceiling <= 0 || o.Ceiling > 100 {
		o.Ceiling = d.Ceiling
	}
	if o.Patience <= 0 {
		o.Patience = d.Patience
	}
	if o.Adjacency < 0 {
		o.Adjacency = d.Adjacency
	}
	if o.NearestPages <= 0 {
		o.NearestPages = d.NearestPages
	}
	if o.Schedule == (Schedule{}) {
		o.Schedule = d.Schedule
	}
	return o
}

// Iteration records one pass of the state loop.
type Iteration struct {
	Iteration  int     `json:"iteration"`
	Score      float64 `json:"score"`
	Moves      int     `json:"moves"`
	Multiplier float64 `json:"multiplier"`
	Duplicates int     `json:"duplicates"`
}

// Outcome is the result of Heal.
type Outcome struct {
	Report     alignment.Report `json:"report"`
	Iterations []Iteration      `json:"iterations"`
	Moves      int              `json:"moves"`
	Reason     string           `json:"reason"`
}

// Engine heals section maps against one reference table.
type Engine struct {
	registry *sections.Registry
	book     *rules.Book
	refs     alignment.References
	opts     Options
	logger   *slog.Logger
}

// New creates an engine. Sections named by refs but absent from the registry
// are known to the engine as bare sections. Without explicit thresholds the
// registry's per-section thresholds apply.
func New(registry *sections.Registry, book *rules.Book, refs alignment.References, opts Options, logger *slog.Logger) *Engine {
	if registry == nil {
		registry = sections.Default()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Thresholds.Sections == nil {
		opts.Thresholds = alignment.Thresholds{
			Default:  registry.DefaultThreshold(),
			Sections: registry.Thresholds(),
		}
	}
	return &Engine{
		registry: registry.Extend(refs.Sections()...),
		book:     book,
		refs:     refs,
		opts:     opts.withDefaults(),
		logger:   logger.With("system", "healing"),
	}
}

// Ceiling returns the score at which healing stops.
func (e *Engine) Ceiling() float64 { return e.opts.Ceiling }

// Evaluate scores m against the engine's references at base thresholds.
func (e *Engine) Evaluate(m *fields.SectionMap) alignment.Report {
	return alignment.Evaluate(m, e.refs, e.opts.Thresholds)
}

func (e *Engine) evaluateAt(m *fields.SectionMap, multiplier float64) alignment.Report {
	if multiplier == 1 {
		return e.Evaluate(m)
	}
	return alignment.Evaluate(m, e.refs, e.opts.Thresholds.Scale(multiplier))
}

// Heal runs Evaluate, FixDeficits, FixOversized, RedistributeUnknown and
// re-evaluation until a stop condition holds. m is modified in place.
func (e *Engine) Heal(m *fields.SectionMap) Outcome {
	report := e.Evaluate(m)
	if report.NoReference {
		e.logger.Info("no reference counts, healing skipped")
		return Outcome{Report: report, Reason: StopNoReference}
	}

	out := Outcome{Reason: StopBudget}
	best := report.Score
	stalled := 0

	for i := 1; i <= e.opts.MaxIterations; i++ {
		if report.Score >= e.opts.Ceiling {
			out.Reason = StopCeiling
			break
		}

		mult := e.opts.Schedule.Multiplier(i)
		moves, dups := 0, 0

		moves += e.FixDeficits(m, e.evaluateAt(m, mult))
		dups += m.Dedupe()

		moves += e.FixOversized(m, e.evaluateAt(m, mult))
		dups += m.Dedupe()

		moves += e.RedistributeUnknown(m, e.evaluateAt(m, mult))
		dups += m.Dedupe()

		report = e.Evaluate(m)
		out.Moves += moves
		out.Iterations = append(out.Iterations, Iteration{
			Iteration:  i,
			Score:      report.Score,
			Moves:      moves,
			Multiplier: mult,
			Duplicates: dups,
		})

		e.logger.Info("healing iteration",
			"iteration", i,
			"score", report.Score,
			"moves", moves,
			"threshold_multiplier", mult,
			"duplicates", dups,
			"unknown", report.Unknown,
		)

		if report.Score > best {
			best = report.Score
			stalled = 0
		} else {
			stalled++
		}

		if report.Score >= e.opts.Ceiling {
			out.Reason = StopCeiling
			break
		}
		if moves == 0 {
			out.Reason = StopStable
			break
		}
		if stalled >= e.opts.Patience {
			out.Reason = StopPlateau
			break
		}
	}

	out.Report = report
	e.logger.Info("healing finished",
		"reason", out.Reason,
		"iterations", len(out.Iterations),
		"score", report.Score,
		"moves", out.Moves,
	)
	return out
}

// deficits returns the current shortfall of every referenced section.
func (e *Engine) deficits(m *fields.SectionMap) map[int]int {
	out := make(map[int]int)
	for _, id := range e.refs.Sections() {
		if d := e.refs.Expected(id) - m.Count(id); d > 0 {
			out[id] = d
		}
	}
	return out
}

// orderByDeficit sorts sections by descending deficit. Ties go to the
// section preferred over a page-overlapping rival, then to higher priority,
// then to the lower section number.
func (e *Engine) orderByDeficit(ids []int, deficit map[int]int) {
	slices.SortStableFunc(ids, func(a, b int) int {
		if c := cmp.Compare(deficit[b], deficit[a]); c != 0 {
			return c
		}
		if e.registry.Rivals(a, b) {
			switch {
			case e.registry.Prefers(a, b):
				return -1
			case e.registry.Prefers(b, a):
				return 1
			}
		}
		sa, _ := e.registry.Section(a)
		sb, _ := e.registry.Section(b)
		if sa != nil && sb != nil {
			if c := cmp.Compare(sb.Priority, sa.Priority); c != 0 {
				return c
			}
		}
		return cmp.Compare(a, b)
	})
}

// move reassigns c unless it is protected or already in place.
func (e *Engine) move(m *fields.SectionMap, c *fields.Categorized, a fields.Assignment) bool {
	if c.Protected() || a.Section == c.Section {
		return false
	}
	return m.Assign(c.ID, a)
}

func assign(section int, conf float64, signal fields.Signal) fields.Assignment {
	return fields.Assignment{Section: section, Confidence: conf, Signal: signal}
}
