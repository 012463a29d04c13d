// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/survey-engine/internal/index"
	"github.com/pdiddy/survey-engine/internal/judge"
	"github.com/pdiddy/survey-engine/pkg/types"
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Search judged papers in the results database",
	Long: `Query searches the SQLite database written by judge --index-db. Text
is matched with full-text search over title, abstract, and reasoning.
Filters narrow by rating, conference, and year. Results are ordered by
confidence, highest first. With --topic (and --description, if the run
used one) only judgments made for that survey topic are returned; otherwise
every indexed topic is searched.

With --counts, print the number of papers per rating instead.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, map[string]string{"index-db": "report.index_db"})
	},
	RunE: runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
	path := viper.GetString("report.index_db")
	if path == "" {
		return fmt.Errorf("no results database: set --index-db or report.index_db")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("opening results database: %w", err)
	}

	db, err := index.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	opts, err := queryOptsFromFlags(cmd, args)
	if err != nil {
		return err
	}
	if counts, _ := cmd.Flags().GetBool("counts"); counts {
		return printCounts(db, opts.TopicHash)
	}

	hits, err := db.Query(context.Background(), opts)
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	return formatHits(hits, format)
}

func queryOptsFromFlags(cmd *cobra.Command, args []string) (index.QueryOptions, error) {
	ratingFlag, _ := cmd.Flags().GetString("rating")
	conference, _ := cmd.Flags().GetString("conference")
	year, _ := cmd.Flags().GetInt("year")
	failed, _ := cmd.Flags().GetBool("failed")
	limit, _ := cmd.Flags().GetInt("limit")
	topic, _ := cmd.Flags().GetString("topic")
	description, _ := cmd.Flags().GetString("description")

	opts := index.QueryOptions{
		Text:       strings.Join(args, " "),
		Conference: conference,
		Year:       year,
		FailedOnly: failed,
		MaxResults: limit,
	}
	if topic != "" {
		opts.TopicHash = types.TopicHash(topic, description)
	}
	if ratingFlag != "" {
		r, ok := judge.NormalizeRating(ratingFlag)
		if !ok {
			return opts, fmt.Errorf("unknown rating %q: use high, medium, or low", ratingFlag)
		}
		opts.Rating = r
	}
	if opts.FailedOnly && opts.Rating != "" {
		return opts, fmt.Errorf("--failed and --rating cannot be combined")
	}
	return opts, nil
}

func formatHits(hits []index.Hit, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(hits)
	case "table", "":
	default:
		return fmt.Errorf("unsupported format %q: use table, json, or yaml", format)
	}

	if len(hits) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-4s  %-6s  %-4s  %-50s  %-10s  %s\n",
		"Rank", "Rating", "Conf", "Title", "Conference", "Year")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 90))
	for i, h := range hits {
		title := h.Paper.Title
		if len(title) > 50 {
			title = title[:47] + "..."
		}
		rating := string(h.Result.Rating)
		if !h.Result.Succeeded() {
			rating = "failed"
		}
		fmt.Fprintf(os.Stdout, "%-4d  %-6s  %.2f  %-50s  %-10s  %d\n",
			i+1, rating, h.Result.Confidence, title, h.Paper.Conference, h.Paper.Year)
	}
	fmt.Fprintf(os.Stdout, "\n%d results\n", len(hits))
	return nil
}

func printCounts(db *index.Store, topicHash string) error {
	counts, err := db.Count(context.Background(), topicHash)
	if err != nil {
		return err
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	fmt.Printf("%d judged papers\n", total)
	for _, r := range types.Ratings {
		fmt.Printf("  %-7s %d\n", r+":", counts[r])
	}
	fmt.Printf("  %-7s %d\n", "Failed:", counts[""])
	return nil
}

func init() {
	queryCmd.Flags().String("index-db", "", "results database path")
	queryCmd.Flags().String("rating", "", "filter by rating: high, medium, low")
	queryCmd.Flags().String("conference", "", "filter by conference")
	queryCmd.Flags().Int("year", 0, "filter by publication year")
	queryCmd.Flags().Bool("failed", false, "only papers whose judgment failed")
	queryCmd.Flags().Int("limit", 0, "maximum results (0 = use default)")
	queryCmd.Flags().String("format", "table", "output format: table, json, or yaml")
	queryCmd.Flags().Bool("counts", false, "print counts per rating")
	queryCmd.Flags().String("topic", "", "only judgments made for this survey topic")
	queryCmd.Flags().String("description", "", "survey description used with --topic")
	rootCmd.AddCommand(queryCmd)
}
