// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report writes judging results as CSV: the relevance index, a
// summary of the rating distribution, and optional per-rating extracts.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdiddy/survey-engine/pkg/types"
)

// AuthorSeparator joins author names in the authors column.
const AuthorSeparator = "; "

// Header is the column layout of the relevance index.
var Header = []string{
	"title", "authors", "conference", "year",
	"relevance_rating", "confidence_score", "reasoning", "file_source", "status",
}

// Row pairs a paper with its judgment.
type Row struct {
	Paper  types.Paper
	Result types.JudgmentResult
}

// BuildRows joins papers with their results in paper order. Papers without a
// result are left out.
func BuildRows(papers []types.Paper, results []types.JudgmentResult) []Row {
	byID := make(map[string]types.JudgmentResult, len(results))
	for _, r := range results {
		byID[r.PaperID] = r
	}
	rows := make([]Row, 0, len(results))
	for _, p := range papers {
		if r, ok := byID[p.ID]; ok {
			rows = append(rows, Row{Paper: p, Result: r})
		}
	}
	return rows
}

func (r Row) record() []string {
	return []string{
		r.Paper.Title,
		strings.Join(r.Paper.Authors, AuthorSeparator),
		r.Paper.Conference,
		strconv.Itoa(r.Paper.Year),
		string(r.Result.Rating),
		strconv.FormatFloat(r.Result.Confidence, 'f', -1, 64),
		r.Result.Reasoning,
		r.Paper.SourceFile,
		string(r.Result.Status),
	}
}

// WriteCSV writes rows to path.
func WriteCSV(path string, rows []Row) error {
	return writeAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(Header); err != nil {
			return err
		}
		for _, r := range rows {
			if err := cw.Write(r.record()); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

// SummaryPath returns the summary file for an output path:
// "results.csv" becomes "results.summary.csv".
func SummaryPath(output string) string {
	return strings.TrimSuffix(output, filepath.Ext(output)) + ".summary.csv"
}

// RatingPath returns the per-rating extract for an output path:
// "results.csv" becomes "results_high.csv".
func RatingPath(output string, rating types.Rating) string {
	ext := filepath.Ext(output)
	if ext == "" {
		ext = ".csv"
	}
	return strings.TrimSuffix(output, filepath.Ext(output)) + "_" + strings.ToLower(string(rating)) + ext
}

// WriteByRating writes one CSV per rating holding the successful judgments
// with that rating. Ratings with no papers get no file. It returns the paths
// written.
func WriteByRating(output string, rows []Row) ([]string, error) {
	var written []string
	for _, rating := range types.Ratings {
		var subset []Row
		for _, r := range rows {
			if r.Result.Succeeded() && r.Result.Rating == rating {
				subset = append(subset, r)
			}
		}
		if len(subset) == 0 {
			continue
		}
		path := RatingPath(output, rating)
		if err := WriteCSV(path, subset); err != nil {
			return written, fmt.Errorf("writing %s papers: %w", strings.ToLower(string(rating)), err)
		}
		written = append(written, path)
	}
	return written, nil
}

// WriteAll writes the relevance index and the extra reports enabled in cfg.
// It returns every path written.
func WriteAll(output string, cfg types.ReportConfig, rows []Row, log *slog.Logger) ([]string, error) {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if err := WriteCSV(output, rows); err != nil {
		return nil, fmt.Errorf("writing results: %w", err)
	}
	written := []string{output}
	log.Info("results written", "path", output, "rows", len(rows))

	if cfg.SummaryCSV {
		path := SummaryPath(output)
		if err := WriteSummary(path, Summarize(rows)); err != nil {
			return written, fmt.Errorf("writing summary: %w", err)
		}
		written = append(written, path)
		log.Info("summary written", "path", path)
	}

	if cfg.SeparateCSVs {
		paths, err := WriteByRating(output, rows)
		written = append(written, paths...)
		if err != nil {
			return written, err
		}
		log.Info("per-rating files written", "count", len(paths))
	}
	return written, nil
}

// writeAtomic writes to a temp file next to path and renames it into place,
// so a reader never sees a half-written report.
func writeAtomic(path string, fill func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	tmpFile, err := os.CreateTemp(dir, ".report-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	fillErr := fill(tmpFile)
	closeErr := tmpFile.Close()
	if fillErr != nil {
		os.Remove(tmpPath)
		return fillErr
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
