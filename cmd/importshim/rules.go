package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/importshim/pkg/rule"
	"github.com/praetorian-inc/importshim/pkg/types"
)

var (
	outputFormat string
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect rewrite rules",
	Long:  "Commands for listing and inspecting the builtin rewrite rule",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List builtin rules",
	Long:  "Display the builtin rewrite rules with their patterns and replacements",
	RunE:  runRulesList,
}

func init() {
	rulesCmd.AddCommand(rulesListCmd)
	rulesListCmd.Flags().StringVar(&outputFormat, "format", "table", "Output format: table, json")
}

func runRulesList(cmd *cobra.Command, args []string) error {
	rules, err := rule.NewLoader().LoadBuiltinRules()
	if err != nil {
		return fmt.Errorf("loading builtin rules: %w", err)
	}

	switch outputFormat {
	case "json":
		return outputRulesJSON(cmd, rules)
	case "table":
		return outputRulesTable(cmd, rules)
	default:
		return fmt.Errorf("unknown output format: %s", outputFormat)
	}
}

func outputRulesJSON(cmd *cobra.Command, rules []*types.Rule) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(rules)
}

func outputRulesTable(cmd *cobra.Command, rules []*types.Rule) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "ID\tName\tPattern\tReplacement\n")
	fmt.Fprintf(w, "--\t----\t-------\t-----------\n")

	for _, r := range rules {
		fmt.Fprintf(w, "%s\t%s\t%q\t%q\n", r.ID, r.Name, r.Pattern, r.Replacement)
	}

	return nil
}
