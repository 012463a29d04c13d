// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pdiddy/survey-engine/pkg/types"
)

// QueryOptions holds search terms and filters. Empty fields do not filter.
type QueryOptions struct {
	// Text is a full-text query over title, abstract, and reasoning.
	Text string
	// TopicHash restricts results to judgments made for one survey topic.
	TopicHash  string
	Rating     types.Rating
	Conference string
	Year       int
	// FailedOnly selects papers whose judgment failed permanently.
	FailedOnly bool
	// MaxResults limits the result count. Zero uses the store default.
	MaxResults int
}

// Hit is a judged paper returned by Query.
type Hit struct {
	Paper     types.Paper          `json:"paper" yaml:"paper"`
	Result    types.JudgmentResult `json:"result" yaml:"result"`
	TopicHash string               `json:"survey_topic_hash" yaml:"survey_topic_hash"`
}

// Query returns judged papers matching opts, most confident first.
func (s *Store) Query(ctx context.Context, opts QueryOptions) ([]Hit, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(
		`SELECT p.id, p.title, p.authors, p.abstract, p.year, p.conference,
			p.venue_type, p.source_file, p.pdf_url,
			j.rating, j.confidence, j.reasoning, j.attempt_count, j.status, j.survey_topic_hash
		FROM judgments j
		JOIN papers p ON p.id = j.paper_id
		WHERE 1=1`)

	if opts.Text != "" {
		qb.WriteString(` AND j.rowid IN (SELECT docid FROM judgments_fts WHERE judgments_fts MATCH ?)`)
		args = append(args, opts.Text)
	}
	if opts.TopicHash != "" {
		qb.WriteString(` AND j.survey_topic_hash = ?`)
		args = append(args, opts.TopicHash)
	}
	if opts.Rating != "" {
		qb.WriteString(` AND j.rating = ? AND j.status = ?`)
		args = append(args, string(opts.Rating), string(types.StatusSuccess))
	}
	if opts.FailedOnly {
		qb.WriteString(` AND j.status = ?`)
		args = append(args, string(types.StatusFailedPermanently))
	}
	if opts.Conference != "" {
		qb.WriteString(` AND p.conference = ? COLLATE NOCASE`)
		args = append(args, opts.Conference)
	}
	if opts.Year != 0 {
		qb.WriteString(` AND p.year = ?`)
		args = append(args, opts.Year)
	}

	qb.WriteString(` ORDER BY j.confidence DESC, p.title LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			h           Hit
			authorsJSON sql.NullString
			abstract    sql.NullString
			venueType   sql.NullString
			sourceFile  sql.NullString
			pdfURL      sql.NullString
			reasoning   sql.NullString
			rating      string
			status      string
		)
		if err := rows.Scan(
			&h.Paper.ID, &h.Paper.Title, &authorsJSON, &abstract, &h.Paper.Year, &h.Paper.Conference,
			&venueType, &sourceFile, &pdfURL,
			&rating, &h.Result.Confidence, &reasoning, &h.Result.AttemptCount, &status, &h.TopicHash,
		); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if authorsJSON.Valid && authorsJSON.String != "" {
			if err := json.Unmarshal([]byte(authorsJSON.String), &h.Paper.Authors); err != nil {
				return nil, fmt.Errorf("decoding authors of %s: %w", h.Paper.ID, err)
			}
		}
		h.Paper.Abstract = abstract.String
		h.Paper.VenueType = venueType.String
		h.Paper.SourceFile = sourceFile.String
		h.Paper.PDFURL = pdfURL.String
		h.Result.PaperID = h.Paper.ID
		h.Result.Rating = types.Rating(rating)
		h.Result.Reasoning = reasoning.String
		h.Result.Status = types.JudgmentStatus(status)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// Count returns the number of judgments per rating, with permanently failed
// judgments counted under the empty rating. An empty topicHash counts every
// topic.
func (s *Store) Count(ctx context.Context, topicHash string) (map[types.Rating]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT CASE WHEN status = ? THEN rating ELSE '' END AS bucket, count(*)
		 FROM judgments WHERE ? = '' OR survey_topic_hash = ? GROUP BY bucket`,
		string(types.StatusSuccess), topicHash, topicHash)
	if err != nil {
		return nil, fmt.Errorf("counting judgments: %w", err)
	}
	defer rows.Close()

	counts := map[types.Rating]int{}
	for rows.Next() {
		var (
			bucket string
			n      int
		)
		if err := rows.Scan(&bucket, &n); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		counts[types.Rating(bucket)] = n
	}
	return counts, rows.Err()
}
