// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the survey-engine CLI.
package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/survey-engine/internal/logging"
	"github.com/pdiddy/survey-engine/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// loadedSecrets holds credentials loaded from the secrets directory at startup.
	loadedSecrets secrets.Secrets

	// logger is configured in PersistentPreRunE and shared by every command.
	logger = logging.Discard()

	closeLog = func() error { return nil }
)

// rootCmd is the base command for the survey-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "survey-engine",
	Short: "Rate paper relevance to a survey topic with a local LLM",
	Long: `survey-engine loads conference paper metadata, asks a locally hosted
language model how relevant each paper is to a survey topic, and writes the
judgments to CSV. Progress is checkpointed after every batch so a long run
can be interrupted and resumed without judging any paper twice.

Configuration comes from flags, SURVEY_ENGINE_* environment variables, and
survey-engine.yaml, in that order of precedence.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log, closeFn, err := logging.Setup(loggingConfig(), os.Stderr)
		if err != nil {
			return err
		}
		logger, closeLog = log, closeFn
		if f := viper.ConfigFileUsed(); f != "" {
			logger.Debug("using config file", "path", f)
		}

		s, err := secrets.Load(viper.GetString("secrets_dir"), logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			logger.Debug("loaded secrets", "keys", s.Keys())
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLog()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./survey-engine.yaml or ~/.config/survey-engine/survey-engine.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text or json")
	pf.String("log-file", "", "also append logs to this file")
	pf.BoolP("verbose", "v", false, "debug logging")
	pf.String("secrets-dir", secrets.DefaultDir, "directory of credential files")

	bindPersistent(map[string]string{
		"log-level":   "logging.level",
		"log-format":  "logging.format",
		"log-file":    "logging.file",
		"verbose":     "logging.verbose",
		"secrets-dir": "secrets_dir",
	})
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("survey-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "survey-engine"))
		}
	}

	viper.SetEnvPrefix("SURVEY_ENGINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("reading config file", "err", err)
			os.Exit(1)
		}
	}
}

func bindPersistent(flags map[string]string) {
	for flag, key := range flags {
		viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag))
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
