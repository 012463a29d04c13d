// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package index keeps judged papers in a SQLite database so results from
// many runs can be searched after the CSV reports are written. Judgments are
// keyed by paper and survey topic hash: re-indexing a topic replaces that
// topic's judgments and leaves other topics alone.
package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/survey-engine/pkg/types"
)

const defaultMaxResults = 20

// Store manages the results database.
type Store struct {
	db         *sql.DB
	maxResults int
}

// Open opens or creates the database at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, maxResults: defaultMaxResults}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS papers (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			authors TEXT,
			abstract TEXT,
			year INTEGER,
			conference TEXT,
			venue_type TEXT,
			source_file TEXT,
			pdf_url TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS judgments (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			paper_id TEXT NOT NULL REFERENCES papers(id),
			survey_topic_hash TEXT NOT NULL,
			rating TEXT NOT NULL,
			confidence REAL NOT NULL,
			reasoning TEXT,
			attempt_count INTEGER NOT NULL,
			status TEXT NOT NULL,
			indexed_at TEXT NOT NULL,
			UNIQUE(paper_id, survey_topic_hash)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_judgments_rating ON judgments(rating)`,
		`CREATE INDEX IF NOT EXISTS idx_judgments_topic ON judgments(survey_topic_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_conference_year ON papers(conference, year)`,
		// Full-text index keyed by judgments.rowid.
		`CREATE VIRTUAL TABLE IF NOT EXISTS judgments_fts USING fts4(title, abstract, reasoning)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// IngestSummary counts the outcome of an Ingest call.
type IngestSummary struct {
	Inserted int
	Updated  int
}

// Ingest stores the judgment of every paper that has one under topicHash. A
// paper judged again for the same topic replaces its earlier judgment. Everything is written in a single
// transaction.
func (s *Store) Ingest(ctx context.Context, topicHash string, papers []types.Paper, results []types.JudgmentResult) (IngestSummary, error) {
	byID := make(map[string]types.JudgmentResult, len(results))
	for _, r := range results {
		byID[r.PaperID] = r
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return IngestSummary{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	var summary IngestSummary
	for _, p := range papers {
		r, ok := byID[p.ID]
		if !ok {
			continue
		}
		updated, err := ingestOne(ctx, tx, topicHash, p, r, now)
		if err != nil {
			return IngestSummary{}, fmt.Errorf("indexing %s: %w", p.ID, err)
		}
		if updated {
			summary.Updated++
		} else {
			summary.Inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return IngestSummary{}, fmt.Errorf("committing: %w", err)
	}
	return summary, nil
}

func ingestOne(ctx context.Context, tx *sql.Tx, topicHash string, p types.Paper, r types.JudgmentResult, now string) (bool, error) {
	authorsJSON, err := json.Marshal(p.Authors)
	if err != nil {
		return false, fmt.Errorf("encoding authors: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO papers (id, title, authors, abstract, year, conference, venue_type, source_file, pdf_url)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, authors=excluded.authors, abstract=excluded.abstract,
			year=excluded.year, conference=excluded.conference, venue_type=excluded.venue_type,
			source_file=excluded.source_file, pdf_url=excluded.pdf_url`,
		p.ID, p.Title, string(authorsJSON), p.Abstract, p.Year, p.Conference,
		p.VenueType, p.SourceFile, p.PDFURL,
	)
	if err != nil {
		return false, fmt.Errorf("upserting paper: %w", err)
	}

	var rowid int64
	err = tx.QueryRowContext(ctx,
		`SELECT rowid FROM judgments WHERE paper_id = ? AND survey_topic_hash = ?`, p.ID, topicHash).Scan(&rowid)
	updated := err == nil
	if err != nil && err != sql.ErrNoRows {
		return false, fmt.Errorf("looking up judgment: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO judgments (paper_id, survey_topic_hash, rating, confidence, reasoning, attempt_count, status, indexed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(paper_id, survey_topic_hash) DO UPDATE SET
			rating=excluded.rating,
			confidence=excluded.confidence, reasoning=excluded.reasoning,
			attempt_count=excluded.attempt_count, status=excluded.status,
			indexed_at=excluded.indexed_at`,
		p.ID, topicHash, string(r.Rating), r.Confidence, r.Reasoning,
		r.AttemptCount, string(r.Status), now,
	)
	if err != nil {
		return false, fmt.Errorf("upserting judgment: %w", err)
	}
	if !updated {
		if err := tx.QueryRowContext(ctx,
			`SELECT rowid FROM judgments WHERE paper_id = ? AND survey_topic_hash = ?`, p.ID, topicHash).Scan(&rowid); err != nil {
			return false, fmt.Errorf("reading judgment rowid: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM judgments_fts WHERE docid = ?`, rowid); err != nil {
		return false, fmt.Errorf("clearing search entry: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO judgments_fts (docid, title, abstract, reasoning) VALUES (?, ?, ?, ?)`,
		rowid, p.Title, p.Abstract, r.Reasoning,
	); err != nil {
		return false, fmt.Errorf("writing search entry: %w", err)
	}
	return updated, nil
}
