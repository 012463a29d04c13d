// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package papers loads paper records from JSON input files into an ordered,
// deduplicated collection.
//
// Order is file order (directories expand to their *.json files in lexical
// order), then in-file order. Two records that share a paper id are
// duplicates: the first occurrence wins and later ones are dropped.
package papers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/survey-engine/pkg/types"
)

// InputFormatError reports an input file, or a record within it, that does not
// match the paper-array schema. It is never fatal: the offending file or
// record is skipped.
type InputFormatError struct {
	File   string
	Record int // -1 when the whole file is unusable
	Err    error
}

func (e *InputFormatError) Error() string {
	if e.Record < 0 {
		return fmt.Sprintf("input format error in %s: %v", e.File, e.Err)
	}
	return fmt.Sprintf("input format error in %s record %d: %v", e.File, e.Record, e.Err)
}

func (e *InputFormatError) Unwrap() error { return e.Err }

// Duplicate describes a record dropped because an earlier record had the
// same paper id.
type Duplicate struct {
	PaperID   string
	Title     string
	File      string
	FirstFile string
}

// LoadResult holds the ordered papers plus everything that was skipped.
type LoadResult struct {
	Papers     []types.Paper
	Files      []string
	FormatErrs []*InputFormatError
	Duplicates []Duplicate
}

// rawPaper mirrors the input record. Pointers distinguish absent fields from
// zero values.
type rawPaper struct {
	Title         *string  `json:"title"`
	Authors       []string `json:"authors"`
	Abstract      *string  `json:"abstract"`
	Year          *int     `json:"publication_year"`
	Conference    string   `json:"conference_name"`
	VenueType     string   `json:"venue_type"`
	Track         *string  `json:"track"`
	Session       *string  `json:"session"`
	Topic         *string  `json:"topic"`
	PDFURL        *string  `json:"pdf_url"`
	AbstractURL   *string  `json:"abstract_url"`
	OpenReviewURL *string  `json:"openreview_url"`
	ScrapedAt     string   `json:"scraped_at"`
}

// Load reads every input path and returns the ordered, deduplicated paper
// collection. A path that cannot be read is a configuration error and aborts
// the load; malformed files and records are logged and skipped.
func Load(paths []string, log *slog.Logger) (LoadResult, error) {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	files, err := expandInputs(paths)
	if err != nil {
		return LoadResult{}, err
	}

	var result LoadResult
	firstSeen := make(map[string]string) // paper id → file of first occurrence

	for _, file := range files {
		papers, formatErrs, err := loadFile(file)
		if err != nil {
			var fe *InputFormatError
			if errors.As(err, &fe) {
				log.Error("skipping input file", "file", file, "err", err)
				result.FormatErrs = append(result.FormatErrs, fe)
				continue
			}
			return LoadResult{}, err
		}
		for _, fe := range formatErrs {
			log.Error("skipping paper record", "file", fe.File, "record", fe.Record, "err", fe.Err)
		}
		result.FormatErrs = append(result.FormatErrs, formatErrs...)
		result.Files = append(result.Files, file)

		kept := 0
		for _, p := range papers {
			if first, ok := firstSeen[p.ID]; ok {
				log.Warn("duplicate paper dropped", "paper_id", p.ID, "title", p.Title, "file", p.SourceFile, "first_file", first)
				result.Duplicates = append(result.Duplicates, Duplicate{
					PaperID:   p.ID,
					Title:     p.Title,
					File:      p.SourceFile,
					FirstFile: first,
				})
				continue
			}
			firstSeen[p.ID] = p.SourceFile
			result.Papers = append(result.Papers, p)
			kept++
		}
		log.Info("loaded papers", "file", filepath.Base(file), "papers", kept)
	}

	if len(files) == 0 {
		log.Warn("no JSON input files found", "inputs", paths)
	}
	return result, nil
}

// expandInputs turns input locations into an ordered list of files. A
// directory contributes its *.json files sorted by name; a file is taken as is.
func expandInputs(paths []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("reading input %s: %w", p, err)
		}
		if !info.IsDir() {
			if !seen[p] {
				seen[p] = true
				files = append(files, p)
			}
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("reading input directory %s: %w", p, err)
		}
		var names []string
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".json") {
				continue
			}
			names = append(names, e.Name())
		}
		sort.Strings(names)
		for _, name := range names {
			full := filepath.Join(p, name)
			if !seen[full] {
				seen[full] = true
				files = append(files, full)
			}
		}
	}
	return files, nil
}

// loadFile parses one input file. A file that is not a JSON array of objects
// yields an *InputFormatError; individual bad records are returned as
// format errors alongside the good papers.
func loadFile(path string) ([]types.Paper, []*InputFormatError, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading input %s: %w", path, err)
	}

	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, nil, &InputFormatError{File: path, Record: -1, Err: fmt.Errorf("not a JSON array of paper records: %w", err)}
	}

	source := filepath.Base(path)
	var papers []types.Paper
	var formatErrs []*InputFormatError
	for i, rec := range records {
		p, err := parseRecord(rec, source)
		if err != nil {
			formatErrs = append(formatErrs, &InputFormatError{File: path, Record: i, Err: err})
			continue
		}
		papers = append(papers, p)
	}
	return papers, formatErrs, nil
}

func parseRecord(rec json.RawMessage, source string) (types.Paper, error) {
	var raw rawPaper
	if err := json.Unmarshal(rec, &raw); err != nil {
		return types.Paper{}, fmt.Errorf("decoding record: %w", err)
	}
	if raw.Title == nil || strings.TrimSpace(*raw.Title) == "" {
		return types.Paper{}, fmt.Errorf("missing title")
	}
	if raw.Year == nil {
		return types.Paper{}, fmt.Errorf("missing publication_year")
	}

	title := strings.TrimSpace(*raw.Title)
	p := types.Paper{
		ID:            types.PaperID(title, raw.Conference, *raw.Year),
		Title:         title,
		Authors:       raw.Authors,
		Abstract:      deref(raw.Abstract),
		Year:          *raw.Year,
		Conference:    raw.Conference,
		VenueType:     raw.VenueType,
		SourceFile:    source,
		Track:         deref(raw.Track),
		Session:       deref(raw.Session),
		Topic:         deref(raw.Topic),
		PDFURL:        deref(raw.PDFURL),
		AbstractURL:   deref(raw.AbstractURL),
		OpenReviewURL: deref(raw.OpenReviewURL),
	}
	if p.Authors == nil {
		p.Authors = []string{}
	}
	if raw.ScrapedAt != "" {
		if t, err := parseTimestamp(raw.ScrapedAt); err == nil {
			p.ScrapedAt = t
		}
	}
	return p, nil
}

// parseTimestamp accepts RFC 3339 and the zone-less ISO form the fetch stage writes.
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
