// Command sectional categorizes form fields into sections from the command
// line and manages the rule store and section profiles used by the server.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/sectional/internal/rules"
	"github.com/JaimeStill/sectional/internal/sections"
)

// globals holds the flags shared by every subcommand.
type globals struct {
	profile  string
	rulesDir string
	verbose  bool
}

func (g *globals) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if g.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (g *globals) registry() (*sections.Registry, error) {
	if g.profile == "" {
		return sections.Default(), nil
	}
	reg, err := sections.Load(g.profile)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return reg, nil
}

// store opens the rule store over the rules directory. An empty directory
// keeps rules in memory for the life of the command.
func (g *globals) store(reg *sections.Registry, logger *slog.Logger) *rules.Store {
	var source rules.Source
	if g.rulesDir != "" {
		source = rules.NewFileSource(g.rulesDir)
	}
	return rules.NewStore(source, reg, logger)
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:           "sectional",
		Short:         "Categorize form fields into sections",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&g.profile, "profile", "", "section profile YAML (default: embedded sf86)")
	flags.StringVar(&g.rulesDir, "rules-dir", "rules", "directory of per-section rule files; empty keeps rules in memory")
	flags.BoolVarP(&g.verbose, "verbose", "v", false, "log workflow progress to stderr")

	root.AddCommand(
		newRunCmd(g),
		newRulesCmd(g),
		newProfileCmd(g),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
