package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/sectional/internal/rules"
)

func newRulesCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and edit the per-section rule store",
	}
	cmd.AddCommand(
		newRulesListCmd(g),
		newRulesShowCmd(g),
		newRulesAddCmd(g),
	)
	return cmd
}

func newRulesListCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Summarize the rules of every section",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := g.registry()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store := g.store(reg, g.logger(cmd.ErrOrStderr()))
			stored := store.Stored(ctx)

			ids := append(reg.IDs(), stored...)
			slices.Sort(ids)
			ids = slices.Compact(ids)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SECTION\tINCLUDE\tEXCLUDE\tSTORED\tNAME")
			for _, id := range ids {
				set := store.Rules(ctx, id)
				name := ""
				if meta, ok := reg.Section(id); ok {
					name = meta.Name
				}
				fmt.Fprintf(tw, "%d\t%d\t%d\t%t\t%s\n", id, len(set.Include), len(set.Exclude), slices.Contains(stored, id), name)
			}
			return tw.Flush()
		},
	}
}

func newRulesShowCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "show <section>",
		Short: "Print the rule set of a section as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			section, err := parseSection(args[0])
			if err != nil {
				return err
			}
			reg, err := g.registry()
			if err != nil {
				return err
			}
			store := g.store(reg, g.logger(cmd.ErrOrStderr()))

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(store.Rules(cmd.Context(), section))
		},
	}
}

func newRulesAddCmd(g *globals) *cobra.Command {
	var rule rules.Rule

	cmd := &cobra.Command{
		Use:   "add <section> <pattern>",
		Short: "Add a rule to a section and persist it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if g.rulesDir == "" {
				return errors.New("rules add requires --rules-dir")
			}
			section, err := parseSection(args[0])
			if err != nil {
				return err
			}
			rule.Pattern = args[1]
			if err := rule.Validate(); err != nil {
				return err
			}

			reg, err := g.registry()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store := g.store(reg, g.logger(cmd.ErrOrStderr()))

			added := store.Add(ctx, section, rule)
			if err := store.Persist(ctx, section); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "section %d: %d rule(s) added, %d total\n", section, added, store.Rules(ctx, section).Len())
			return nil
		},
	}

	flags := cmd.Flags()
	flags.Float64Var(&rule.Confidence, "confidence", 0.8, "confidence assigned to matches")
	flags.StringVar(&rule.Subsection, "subsection", "", "subsection label assigned to matches")
	flags.StringVar(&rule.Flags, "flags", "", "regular expression flags (i, m, s, U)")
	flags.StringVar(&rule.Description, "description", "", "free-form description")
	return cmd
}

func parseSection(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", rules.ErrInvalidSection, s)
	}
	return id, nil
}
