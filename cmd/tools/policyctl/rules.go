// cmd/tools/policyctl/rules.go
package main

import (
	"errors"
	"fmt"

	"policy-extraction-workers/pkg/registry"

	"github.com/spf13/cobra"
)

func newRulesCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and update the extraction rules registry",
	}
	cmd.AddCommand(newRulesValidateCmd(opts))
	cmd.AddCommand(newRulesAddAliasCmd(opts))
	return cmd
}

func newRulesValidateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load a rules file and check aliases, currencies and schedule patterns",
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := opts.loadRules()
			if err != nil {
				return err
			}
			printSummary(cmd, rules)
			return nil
		},
	}
}

func newRulesAddAliasCmd(opts *globalOptions) *cobra.Command {
	var field, alias string

	cmd := &cobra.Command{
		Use:   "add-alias",
		Short: "Append an alias to a canonical field and write the rules file back",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.rulesPath == "" {
				return errors.New("--rules is required; the embedded rules are read-only")
			}
			rules, err := opts.loadRules()
			if err != nil {
				return err
			}
			if err := rules.AddAlias(field, alias); err != nil {
				return err
			}
			if err := rules.Save(opts.rulesPath); err != nil {
				return fmt.Errorf("save rules: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added alias %q to %s (%d aliases)\n", alias, field, len(rules.Aliases(field)))
			return nil
		},
	}

	cmd.Flags().StringVar(&field, "field", "", "Canonical field, e.g. policyNumber")
	cmd.Flags().StringVar(&alias, "alias", "", "Bag key to add, e.g. nro_pol")
	_ = cmd.MarkFlagRequired("field")
	_ = cmd.MarkFlagRequired("alias")
	return cmd
}

func printSummary(cmd *cobra.Command, rules *registry.RulesRegistry) {
	out := cmd.OutOrStdout()
	aliases := 0
	for _, list := range rules.Fields {
		aliases += len(list)
	}

	fmt.Fprintf(out, "Rules version %s (updated %s): OK\n", rules.Version, rules.LastUpdated)
	fmt.Fprintf(out, "  fields:     %d (%d aliases)\n", len(rules.Fields), aliases)
	fmt.Fprintf(out, "  currencies: %d\n", len(rules.Currencies))
	fmt.Fprintf(out, "  schedule:   %d candidate tokens\n", len(rules.Schedule.CandidateTokens))
}
