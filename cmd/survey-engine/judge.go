// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/survey-engine/internal/checkpoint"
	"github.com/pdiddy/survey-engine/internal/coordinator"
	"github.com/pdiddy/survey-engine/internal/index"
	"github.com/pdiddy/survey-engine/internal/judge"
	"github.com/pdiddy/survey-engine/internal/papers"
	"github.com/pdiddy/survey-engine/internal/report"
	"github.com/pdiddy/survey-engine/pkg/types"
)

// probeTimeout bounds the endpoint check made before the first batch.
const probeTimeout = 30 * time.Second

var judgeCmd = &cobra.Command{
	Use:   "judge",
	Short: "Judge paper relevance to the survey topic",
	Long: `Judge loads papers from the configured inputs, filters them, and asks
the LLM to rate each paper High, Medium, or Low for the survey topic.

Papers are judged in batches. After every batch the checkpoint is saved
atomically, so an interrupted run (Ctrl-C or SIGTERM) can be resumed later
without judging any paper twice. A checkpoint written for a different topic
is never reused silently.

Results are written to the output CSV, plus a summary CSV and optional
per-rating CSVs. With --index-db the judgments are also ingested into a
SQLite database searchable with the query command.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, judgeFlagKeys)
	},
	RunE: runJudge,
}

// judgeFlagKeys maps judge flags to configuration keys.
var judgeFlagKeys = map[string]string{
	"topic":               "survey.topic",
	"description":         "survey.description",
	"keyword":             "survey.keywords",
	"input":               "processing.inputs",
	"output":              "processing.output_file",
	"checkpoint-file":     "processing.checkpoint_file",
	"checkpointing":       "processing.checkpointing",
	"keep-checkpoint":     "processing.keep_checkpoint",
	"batch-size":          "processing.batch_size",
	"concurrency":         "processing.concurrency",
	"resume":              "processing.resume",
	"provider":            "llm.provider",
	"base-url":            "llm.base_url",
	"model":               "llm.model",
	"api-key":             "llm.api_key",
	"timeout":             "llm.timeout",
	"max-retries":         "llm.max_retries",
	"retry-delay":         "llm.retry_delay",
	"exponential-backoff": "llm.exponential_backoff",
	"requests-per-second": "llm.requests_per_second",
	"year-from":           "filter.year_from",
	"year-to":             "filter.year_to",
	"conference":          "filter.conferences",
	"filter-keyword":      "filter.keywords",
	"summary-csv":         "report.summary_csv",
	"separate-csvs":       "report.separate_csvs",
	"index-db":            "report.index_db",
}

func runJudge(cmd *cobra.Command, args []string) error {
	cfg := loadRunConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	skipProbe, _ := cmd.Flags().GetBool("skip-probe")

	loaded, err := papers.Load(cfg.Processing.Inputs, logger)
	if err != nil {
		return err
	}
	selected := papers.Filter(loaded.Papers, cfg.Filter)
	if len(selected) < len(loaded.Papers) {
		logger.Info("filters applied", "loaded", len(loaded.Papers), "selected", len(selected))
	}
	if len(selected) == 0 {
		return fmt.Errorf("no papers to judge in %v", cfg.Processing.Inputs)
	}

	var store *checkpoint.Store
	if cfg.Processing.Checkpointing {
		store = checkpoint.NewStore(cfg.Processing.CheckpointFile, logger)
	}

	backend, err := judge.NewBackend(cfg.LLM)
	if err != nil {
		return err
	}
	j := judge.New(backend, cfg, logger)
	coord := coordinator.New(j, storeOrNil(store), coordinator.PolicyFor(cfg.Processing.Resume, os.Stdin, os.Stdout),
		cfg, os.Stdout, logger)

	if dryRun {
		papers.FormatSummary(papers.Summarize(loaded), os.Stdout)
		printPlan(coord.Plan(selected))
		return nil
	}

	if !skipProbe {
		ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
		err := j.Probe(ctx)
		cancel()
		if err != nil {
			return err
		}
	}

	ctx, stop := interruptContext(context.Background())
	defer stop()

	fmt.Printf("Judging %d papers for %q with %s (%s)\n", len(selected), cfg.Survey.Topic, cfg.LLM.Model, backend.Name())
	outcome, err := coord.Run(ctx, selected)
	if err != nil {
		return err
	}

	rows := report.BuildRows(selected, outcome.Results)
	written, err := report.WriteAll(cfg.Processing.OutputFile, cfg.Report, rows, logger)
	if err != nil {
		return err
	}

	if cfg.Report.IndexDB != "" {
		if err := ingestIndex(cfg, selected, outcome.Results); err != nil {
			return err
		}
		written = append(written, cfg.Report.IndexDB)
	}

	printOutcome(outcome, rows, written)

	if !outcome.Complete() {
		fmt.Printf("\n%d papers still pending. Run judge again to resume from %s.\n",
			outcome.Pending, cfg.Processing.CheckpointFile)
		return nil
	}
	if store != nil && !cfg.Processing.KeepCheckpoint {
		if err := store.Clear(); err != nil {
			logger.Warn("could not remove checkpoint after complete run", "path", store.Path(), "err", err)
		}
	}
	return nil
}

// storeOrNil keeps a nil *checkpoint.Store from becoming a non-nil interface.
func storeOrNil(s *checkpoint.Store) coordinator.Store {
	if s == nil {
		return nil
	}
	return s
}

func ingestIndex(cfg types.RunConfig, selected []types.Paper, results []types.JudgmentResult) error {
	db, err := index.Open(cfg.Report.IndexDB)
	if err != nil {
		return err
	}
	defer db.Close()

	sum, err := db.Ingest(context.Background(), cfg.Survey.TopicHash(), selected, results)
	if err != nil {
		return fmt.Errorf("indexing judgments: %w", err)
	}
	logger.Info("judgments indexed", "path", cfg.Report.IndexDB, "inserted", sum.Inserted, "updated", sum.Updated)
	return nil
}

func printPlan(p coordinator.Plan) {
	fmt.Println()
	fmt.Printf("Checkpoint: %s\n", p.Checkpoint)
	if p.Err != nil {
		var reason string
		if errors.Is(p.Err, checkpoint.ErrCorrupt) {
			reason = " (will be moved aside)"
		}
		fmt.Printf("  %v%s\n", p.Err, reason)
	}
	if p.Checkpoint == coordinator.StateStale {
		fmt.Println("  written for a different survey topic")
	}
	fmt.Printf("Papers: %d selected, %d already judged, %d pending in %d batches\n",
		p.Papers, p.Resumable, p.Pending, p.Batches)
}

func printOutcome(o coordinator.Outcome, rows []report.Row, written []string) {
	s := o.Summary
	fmt.Println()
	fmt.Printf("Judged %d papers in %s (%.2f papers/s), %d resumed from checkpoint\n",
		s.Judged, s.Elapsed.Round(time.Second), s.Rate(), s.Resumed)
	fmt.Printf("Succeeded: %d  Failed: %d\n", s.Succeeded, s.Failed)
	report.FormatDistribution(report.Summarize(rows).Overall, os.Stdout)
	for _, path := range written {
		fmt.Printf("Wrote %s\n", path)
	}
}

func init() {
	f := judgeCmd.Flags()
	f.String("topic", "", "survey topic (required)")
	f.String("description", "", "survey description")
	f.StringSlice("keyword", nil, "survey keyword (repeatable)")
	f.StringSlice("input", nil, "paper JSON file or directory (repeatable)")
	f.StringP("output", "o", "", "results CSV path")
	f.String("checkpoint-file", "", "checkpoint path")
	f.Bool("checkpointing", true, "save a checkpoint after every batch")
	f.Bool("keep-checkpoint", false, "keep the checkpoint after a complete run")
	f.Int("batch-size", 10, "papers judged between checkpoint saves")
	f.Int("concurrency", 0, "simultaneous judgments per batch (0 = batch size)")
	f.String("resume", "ask", "resume policy: ask, always, or never")
	f.String("provider", "ollama", "LLM API: ollama or openai")
	f.String("base-url", "", "LLM endpoint URL")
	f.String("model", "", "model name")
	f.String("api-key", "", "API key for OpenAI-compatible endpoints")
	f.Duration("timeout", 0, "per-request timeout")
	f.Int("max-retries", 3, "attempts per paper")
	f.Duration("retry-delay", time.Second, "delay between attempts")
	f.Bool("exponential-backoff", false, "double the delay after each failed attempt")
	f.Float64("requests-per-second", 0, "pace LLM requests (0 = unpaced)")
	f.Int("year-from", 0, "earliest publication year")
	f.Int("year-to", 0, "latest publication year")
	f.StringSlice("conference", nil, "only judge papers from this conference (repeatable)")
	f.StringSlice("filter-keyword", nil, "only judge papers mentioning this keyword (repeatable)")
	f.Bool("summary-csv", true, "write <output>.summary.csv")
	f.Bool("separate-csvs", false, "write one CSV per rating")
	f.String("index-db", "", "also ingest judgments into this SQLite database")
	f.Bool("dry-run", false, "print what would be judged without calling the LLM")
	f.Bool("skip-probe", false, "do not check the endpoint before judging")

	rootCmd.AddCommand(judgeCmd)
}
