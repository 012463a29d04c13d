// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/survey-engine/internal/secrets"
	"github.com/pdiddy/survey-engine/pkg/types"
)

// setDefaults registers the built-in configuration under the keys used in
// survey-engine.yaml.
func setDefaults() {
	d := types.DefaultRunConfig()
	viper.SetDefault("survey.topic", d.Survey.Topic)
	viper.SetDefault("survey.description", d.Survey.Description)
	viper.SetDefault("survey.keywords", d.Survey.Keywords)

	viper.SetDefault("processing.inputs", d.Processing.Inputs)
	viper.SetDefault("processing.output_file", d.Processing.OutputFile)
	viper.SetDefault("processing.checkpoint_file", d.Processing.CheckpointFile)
	viper.SetDefault("processing.checkpointing", d.Processing.Checkpointing)
	viper.SetDefault("processing.keep_checkpoint", d.Processing.KeepCheckpoint)
	viper.SetDefault("processing.batch_size", d.Processing.BatchSize)
	viper.SetDefault("processing.concurrency", d.Processing.Concurrency)
	viper.SetDefault("processing.resume", string(d.Processing.Resume))

	viper.SetDefault("llm.provider", string(d.LLM.Provider))
	viper.SetDefault("llm.base_url", d.LLM.BaseURL)
	viper.SetDefault("llm.model", d.LLM.Model)
	viper.SetDefault("llm.api_key", "")
	viper.SetDefault("llm.timeout", d.LLM.Timeout)
	viper.SetDefault("llm.max_retries", d.LLM.MaxRetries)
	viper.SetDefault("llm.retry_delay", d.LLM.RetryDelay)
	viper.SetDefault("llm.exponential_backoff", d.LLM.ExponentialBackoff)
	viper.SetDefault("llm.requests_per_second", d.LLM.RequestsPerSecond)

	viper.SetDefault("filter.year_from", 0)
	viper.SetDefault("filter.year_to", 0)
	viper.SetDefault("filter.conferences", []string{})
	viper.SetDefault("filter.keywords", []string{})

	viper.SetDefault("report.summary_csv", d.Report.SummaryCSV)
	viper.SetDefault("report.separate_csvs", d.Report.SeparateCSVs)
	viper.SetDefault("report.index_db", d.Report.IndexDB)

	viper.SetDefault("logging.level", d.Logging.Level)
	viper.SetDefault("logging.format", d.Logging.Format)
}

// loadRunConfig assembles the immutable run configuration from viper. The
// API key falls back to the secrets directory.
func loadRunConfig() types.RunConfig {
	return types.RunConfig{
		Survey: types.SurveyConfig{
			Topic:       viper.GetString("survey.topic"),
			Description: viper.GetString("survey.description"),
			Keywords:    viper.GetStringSlice("survey.keywords"),
		},
		Processing: types.ProcessingConfig{
			Inputs:         viper.GetStringSlice("processing.inputs"),
			OutputFile:     viper.GetString("processing.output_file"),
			CheckpointFile: viper.GetString("processing.checkpoint_file"),
			Checkpointing:  viper.GetBool("processing.checkpointing"),
			KeepCheckpoint: viper.GetBool("processing.keep_checkpoint"),
			BatchSize:      viper.GetInt("processing.batch_size"),
			Concurrency:    viper.GetInt("processing.concurrency"),
			Resume:         types.ResumePolicy(viper.GetString("processing.resume")),
		},
		LLM: types.LLMConfig{
			Provider:           types.Provider(viper.GetString("llm.provider")),
			BaseURL:            viper.GetString("llm.base_url"),
			Model:              viper.GetString("llm.model"),
			APIKey:             loadedSecrets.Value(secrets.KeyOpenAI, viper.GetString("llm.api_key")),
			Timeout:            viper.GetDuration("llm.timeout"),
			MaxRetries:         viper.GetInt("llm.max_retries"),
			RetryDelay:         viper.GetDuration("llm.retry_delay"),
			ExponentialBackoff: viper.GetBool("llm.exponential_backoff"),
			RequestsPerSecond:  viper.GetFloat64("llm.requests_per_second"),
		},
		Filter: types.FilterConfig{
			YearFrom:    viper.GetInt("filter.year_from"),
			YearTo:      viper.GetInt("filter.year_to"),
			Conferences: viper.GetStringSlice("filter.conferences"),
			Keywords:    viper.GetStringSlice("filter.keywords"),
		},
		Report: types.ReportConfig{
			SummaryCSV:   viper.GetBool("report.summary_csv"),
			SeparateCSVs: viper.GetBool("report.separate_csvs"),
			IndexDB:      viper.GetString("report.index_db"),
		},
		Logging: loggingConfig(),
	}
}

func loggingConfig() types.LoggingConfig {
	return types.LoggingConfig{
		Level:   viper.GetString("logging.level"),
		Format:  viper.GetString("logging.format"),
		File:    viper.GetString("logging.file"),
		Verbose: viper.GetBool("logging.verbose"),
	}
}

// bindFlags binds the named flags of cmd to configuration keys. Commands
// call it from PreRunE so that only the running command's flags are bound.
func bindFlags(cmd *cobra.Command, flags map[string]string) error {
	for flag, key := range flags {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			return fmt.Errorf("internal: flag --%s not defined on %s", flag, cmd.Name())
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

// --- config command ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or initialize the configuration file",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadRunConfig()
		if cfg.LLM.APIKey != "" {
			cfg.LLM.APIKey = "********"
		}
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(cfg)
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default survey-engine.yaml",
	Long: `Init writes the built-in defaults to survey-engine.yaml in the current
directory (or --path). Edit survey.topic before running judge. An existing
file is not overwritten unless --force is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("path")
		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		cfg := types.DefaultRunConfig()
		cfg.Survey.Topic = "Your survey topic"
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().String("path", "survey-engine.yaml", "file to write")
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")

	configCmd.AddCommand(configShowCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}
