package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/sectional/internal/rules"
	"github.com/JaimeStill/sectional/internal/sections"
)

func newProfileCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Inspect section profiles",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the sections of the active profile",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				reg, err := g.registry()
				if err != nil {
					return err
				}
				return showProfile(cmd, reg)
			},
		},
		&cobra.Command{
			Use:   "validate <profile.yaml>...",
			Short: "Check that profiles parse and their patterns compile",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				for _, path := range args {
					reg, err := sections.Load(path)
					if err != nil {
						return fmt.Errorf("%s: %w", path, err)
					}
					if err := validatePatterns(reg); err != nil {
						return fmt.Errorf("%s: %w", path, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: profile %q, %d sections\n", path, reg.Name(), reg.Len())
				}
				return nil
			},
		},
	)
	return cmd
}

// validatePatterns compiles every strict and hint pattern of reg.
func validatePatterns(reg *sections.Registry) error {
	var errs []error
	for _, id := range reg.IDs() {
		s, _ := reg.Section(id)
		for _, p := range s.Strict {
			if err := rules.FromSpec(p, rules.TierStrict).Validate(); err != nil {
				errs = append(errs, fmt.Errorf("section %d: %w", id, err))
			}
		}
		for _, p := range s.Hints {
			if err := rules.FromSpec(p, rules.TierForm).Validate(); err != nil {
				errs = append(errs, fmt.Errorf("section %d: %w", id, err))
			}
		}
	}
	return errors.Join(errs...)
}

func showProfile(cmd *cobra.Command, reg *sections.Registry) error {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "profile:   %s\n", reg.Name())
	fmt.Fprintf(w, "sections:  %d\n", reg.Len())
	fmt.Fprintf(w, "threshold: %.2f\n\n", reg.DefaultThreshold())

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPAGES\tTHRESHOLD\tPATTERNS\tNAME")
	for _, id := range reg.IDs() {
		s, _ := reg.Section(id)
		pages := make([]string, 0, len(s.Pages))
		for _, p := range s.Pages {
			pages = append(pages, p.String())
		}
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%d\t%s\n", id, strings.Join(pages, ","), reg.Threshold(id), len(s.Strict)+len(s.Hints), s.Name)
	}
	return tw.Flush()
}
