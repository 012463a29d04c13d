// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/survey-engine/internal/papers"
)

var papersCmd = &cobra.Command{
	Use:   "papers",
	Short: "Summarize the paper collection without judging it",
	Long: `Papers loads the configured inputs and prints how many papers each
file contributes, broken down by conference and year. Duplicates and
malformed records are reported the same way judge would report them.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, map[string]string{"input": "processing.inputs"})
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		asYAML, _ := cmd.Flags().GetBool("yaml")

		cfg := loadRunConfig()
		loaded, err := papers.Load(cfg.Processing.Inputs, logger)
		if err != nil {
			return err
		}
		summary := papers.Summarize(loaded)

		if asYAML {
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(summary)
		}
		papers.FormatSummary(summary, os.Stdout)
		return nil
	},
}

func init() {
	papersCmd.Flags().StringSlice("input", nil, "paper JSON file or directory (repeatable)")
	papersCmd.Flags().Bool("yaml", false, "print the summary as YAML")
	rootCmd.AddCommand(papersCmd)
}
