// Package workflow drives the categorize, heal and learn cycle over one
// document. It retains the best section map seen across cycles and finalizes
// that snapshot rather than the last one computed.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/JaimeStill/sectional/internal/alignment"
	"github.com/JaimeStill/sectional/internal/categorize"
	"github.com/JaimeStill/sectional/internal/fields"
	"github.com/JaimeStill/sectional/internal/healing"
	"github.com/JaimeStill/sectional/internal/learning"
)

// Execute categorizes fs, heals the result against refs, and learns rules
// from what remains unclassified, for up to MaxCycles cycles. Each cycle
// starts from the raw fields with the rule book as extended by the previous
// cycle. The loop ends early when a cycle reaches the healing ceiling or when
// Stagnation consecutive cycles fail to improve on the best score.
//
// Recoverable conditions never fail a run: they are reported in
// Result.Diagnostics. The only error is cancellation of ctx between cycles.
func Execute(ctx context.Context, rt *Runtime, fs []fields.Field, refs alignment.References, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	logger := rt.logger()
	registry := rt.registry()
	store := rt.store()
	learner := learning.New(registry, opts.Learning, rt.Logger)

	res := &Result{BestScore: -1}
	res.Diagnostics = append(res.Diagnostics, inputDiagnostics(fs, refs)...)

	var best *fields.SectionMap
	stalled := 0

	for cycle := 1; cycle <= opts.MaxCycles; cycle++ {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("cycle %d: %w", cycle, err)
		}

		book := store.Book(ctx)
		if n := book.Skipped(); n > 0 && cycle == 1 {
			res.Diagnostics = append(res.Diagnostics, fmt.Sprintf("%d rules skipped for invalid patterns", n))
		}

		m := categorize.New(registry, book, opts.Categorize, rt.Logger).CategorizeAll(fs)
		engine := healing.New(registry, book, refs, opts.Healing, rt.Logger)
		before := engine.Evaluate(m)
		outcome := engine.Heal(m)

		c := Cycle{
			Cycle:       cycle,
			Categorized: before.Score,
			Score:       outcome.Report.Score,
			Unknown:     outcome.Report.Unknown,
			Iterations:  len(outcome.Iterations),
			Moves:       outcome.Moves,
			Reason:      outcome.Reason,
			Rules:       book.Len(),
		}

		if outcome.Report.Score > res.BestScore {
			best = m.Clone()
			res.BestScore = outcome.Report.Score
			res.BestCycle = cycle
			c.Improved = true
			stalled = 0
		} else {
			stalled++
		}

		done := outcome.Reason == healing.StopNoReference ||
			outcome.Report.Score >= engine.Ceiling() ||
			stalled >= opts.Stagnation ||
			cycle == opts.MaxCycles

		if !done {
			learned := learner.Learn(ctx, m, outcome.Report, store)
			c.Learned = learned.Added
		}

		res.Cycles = append(res.Cycles, c)
		logger.Info("cycle complete",
			"cycle", cycle,
			"categorized_score", c.Categorized,
			"score", c.Score,
			"best", res.BestScore,
			"unknown", c.Unknown,
			"learned", c.Learned,
		)

		if done {
			break
		}
	}

	engine := healing.New(registry, store.Book(ctx), refs, opts.Healing, rt.Logger)
	res.Final = engine.Finalize(best)
	res.Sections = best
	res.Report = res.Final.Report
	res.Statistics = res.Report.Summary()
	res.Aligned = res.Report.Aligned()
	res.Residual = res.Final.Residual

	res.Diagnostics = append(res.Diagnostics, outcomeDiagnostics(res, opts)...)

	if opts.Persist {
		if err := store.PersistAll(ctx); err != nil {
			res.Diagnostics = append(res.Diagnostics, fmt.Sprintf("persisting rules: %v", err))
		}
	}

	res.CompletedAt = time.Now()
	logger.Info("run complete",
		"cycles", len(res.Cycles),
		"best_cycle", res.BestCycle,
		"score", res.Report.Score,
		"aligned", res.Aligned,
		"residual", res.Residual,
	)
	return res, nil
}

func inputDiagnostics(fs []fields.Field, refs alignment.References) []string {
	var out []string
	nameless := 0
	for _, f := range fs {
		if f.Name == "" {
			nameless++
		}
	}
	if nameless > 0 {
		out = append(out, fmt.Sprintf("%d fields have no name; only page, spatial and content signals apply", nameless))
	}
	if refs.Empty() {
		out = append(out, "no reference counts; healing and rule learning skipped")
	}
	return out
}

func outcomeDiagnostics(res *Result, opts Options) []string {
	var out []string
	if !res.Report.NoReference && !res.Aligned {
		out = append(out, fmt.Sprintf(
			"not aligned after %d cycles: score %.2f, %d oversized, %d undersized",
			len(res.Cycles), res.Report.Score, len(res.Report.Oversized), len(res.Report.Undersized),
		))
	}
	if n := len(res.Report.Incomplete); n > 0 {
		out = append(out, fmt.Sprintf("%d sections short of referenced entries or subsections: %v", n, res.Report.Incomplete))
	}
	if res.Residual > 0 && !res.Report.NoReference {
		mode := "fallback disabled"
		if opts.Healing.ForceFallback {
			mode = "no fallback section available"
		}
		out = append(out, fmt.Sprintf("%d fields left unknown (%s)", res.Residual, mode))
	}
	return out
}
