package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/sectional/internal/alignment"
	"github.com/JaimeStill/sectional/internal/extraction"
	"github.com/JaimeStill/sectional/internal/workflow"
)

type runOptions struct {
	references string
	out        string
	maxCycles  int
	persist    bool
}

func newRunCmd(g *globals) *cobra.Command {
	o := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <fields.json|form.pdf>",
		Short: "Categorize the fields of a document",
		Long: `Categorize every field of a PDF form or JSON field list, heal and learn
against the reference counts, and report the final alignment.

Without --references the run categorizes only; no healing or learning occurs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, g, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&o.references, "references", "r", "", "reference field counts JSON")
	flags.StringVarP(&o.out, "out", "o", "", "directory to write sections.json, statistics.json and result.json")
	flags.IntVar(&o.maxCycles, "max-cycles", 0, "maximum categorize, heal and learn cycles (default 5)")
	flags.BoolVar(&o.persist, "persist", false, "write learned rules to the rules directory")
	return cmd
}

func (o *runOptions) run(cmd *cobra.Command, g *globals, path string) error {
	logger := g.logger(cmd.ErrOrStderr())

	reg, err := g.registry()
	if err != nil {
		return err
	}

	fs, err := extraction.Load(path)
	if err != nil {
		return fmt.Errorf("extract %s: %w", path, err)
	}

	var refs alignment.References
	if o.references != "" {
		if refs, err = alignment.LoadReferences(o.references); err != nil {
			return err
		}
	}

	opts := workflow.DefaultOptions()
	if o.maxCycles > 0 {
		opts.MaxCycles = o.maxCycles
	}
	opts.Persist = o.persist && g.rulesDir != ""

	rt := &workflow.Runtime{
		Registry: reg,
		Rules:    g.store(reg, logger),
		Logger:   logger,
	}

	res, err := workflow.Execute(cmd.Context(), rt, fs, refs, opts)
	if err != nil {
		return err
	}

	printResult(cmd.OutOrStdout(), len(fs), res)

	if o.out != "" {
		if err := writeArtifacts(o.out, res); err != nil {
			return err
		}
	}
	return nil
}

func printResult(w io.Writer, total int, res *workflow.Result) {
	fmt.Fprintf(w, "fields:     %d\n", total)
	fmt.Fprintf(w, "score:      %.2f\n", res.Report.Score)
	fmt.Fprintf(w, "best cycle: %.2f\n", res.BestScore)
	fmt.Fprintf(w, "aligned:    %t\n", res.Aligned)
	fmt.Fprintf(w, "cycles:     %d (best %d)\n", len(res.Cycles), res.BestCycle)
	fmt.Fprintf(w, "residual:   %d\n", res.Residual)
	for _, d := range res.Diagnostics {
		fmt.Fprintf(w, "note:       %s\n", d)
	}

	if len(res.Statistics) == 0 {
		return
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "SECTION\tEXPECTED\tACTUAL\tDEVIATION\tPERCENT\t")
	for _, s := range res.Statistics {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%+d\t%.2f\t\n", s.Section, s.Expected, s.Actual, s.Deviation, s.Percentage)
	}
	tw.Flush()
}

func writeArtifacts(dir string, res *workflow.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	files := []struct {
		name string
		v    any
	}{
		{"sections.json", res.Sections},
		{"statistics.json", res.Statistics},
		{"result.json", res},
	}
	for _, f := range files {
		data, err := json.MarshalIndent(f.v, "", "  ")
		if err != nil {
			return fmt.Errorf("encode %s: %w", f.name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, f.name), data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", f.name, err)
		}
	}
	return nil
}
