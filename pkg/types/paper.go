// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the survey-engine pipeline:
// paper records, relevance judgments, checkpoints, and run configuration.
package types

import (
	"crypto/sha256"
	"fmt"
	"strconv"
	"time"
)

// Paper holds the metadata of one paper loaded from an input file. Papers are
// immutable once loaded.
type Paper struct {
	// ID is a deterministic hash of title, conference, and year.
	ID string `json:"paper_id" yaml:"paper_id"`

	// Title is the paper title.
	Title string `json:"title" yaml:"title"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Abstract is the paper abstract. May be empty.
	Abstract string `json:"abstract" yaml:"abstract"`

	// Year is the publication year.
	Year int `json:"publication_year" yaml:"publication_year"`

	// Conference is the conference name (e.g. "ICLR").
	Conference string `json:"conference_name" yaml:"conference_name"`

	// VenueType is the venue type reported by the source (e.g. "conference").
	VenueType string `json:"venue_type" yaml:"venue_type"`

	// SourceFile is the base name of the input file the paper came from.
	SourceFile string `json:"source_file" yaml:"source_file"`

	Track         string    `json:"track,omitempty" yaml:"track,omitempty"`
	Session       string    `json:"session,omitempty" yaml:"session,omitempty"`
	Topic         string    `json:"topic,omitempty" yaml:"topic,omitempty"`
	PDFURL        string    `json:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`
	AbstractURL   string    `json:"abstract_url,omitempty" yaml:"abstract_url,omitempty"`
	OpenReviewURL string    `json:"openreview_url,omitempty" yaml:"openreview_url,omitempty"`
	ScrapedAt     time.Time `json:"scraped_at,omitempty" yaml:"scraped_at,omitempty"`
}

// PaperID returns the stable identifier for a paper: the first 16 hex
// characters of SHA-256(title, conference, year). Fields are separated by a
// NUL byte so that ("ab", "c") and ("a", "bc") hash differently.
func PaperID(title, conference string, year int) string {
	h := sha256.New()
	h.Write([]byte(title))
	h.Write([]byte{0})
	h.Write([]byte(conference))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(year)))
	return fmt.Sprintf("%x", h.Sum(nil))[:16]
}

// Rating is the relevance verdict for a paper.
type Rating string

const (
	RatingHigh   Rating = "High"
	RatingMedium Rating = "Medium"
	RatingLow    Rating = "Low"
)

// Ratings lists the valid ratings from most to least relevant.
var Ratings = []Rating{RatingHigh, RatingMedium, RatingLow}

// Valid reports whether r is one of the canonical ratings.
func (r Rating) Valid() bool {
	switch r {
	case RatingHigh, RatingMedium, RatingLow:
		return true
	}
	return false
}

// JudgmentStatus is the terminal state of a paper's judgment.
type JudgmentStatus string

const (
	StatusSuccess           JudgmentStatus = "Success"
	StatusFailedPermanently JudgmentStatus = "FailedPermanently"
)

// Valid reports whether s is a known terminal status.
func (s JudgmentStatus) Valid() bool {
	return s == StatusSuccess || s == StatusFailedPermanently
}

// JudgmentResult is the relevance judgment produced for one paper. Results are
// immutable once created.
type JudgmentResult struct {
	// PaperID links the judgment to its Paper.
	PaperID string `json:"paper_id" yaml:"paper_id"`

	Rating Rating `json:"rating" yaml:"rating"`

	// Confidence is always within [0.0, 1.0].
	Confidence float64 `json:"confidence" yaml:"confidence"`

	Reasoning string `json:"reasoning" yaml:"reasoning"`

	// AttemptCount is the number of judge calls made for this paper (>= 1).
	AttemptCount int `json:"attempt_count" yaml:"attempt_count"`

	Status JudgmentStatus `json:"status" yaml:"status"`
}

// Succeeded reports whether the judgment carries a usable verdict.
func (r JudgmentResult) Succeeded() bool {
	return r.Status == StatusSuccess
}

// Validate checks the invariants of a stored judgment.
func (r JudgmentResult) Validate() error {
	if r.PaperID == "" {
		return fmt.Errorf("missing paper id")
	}
	if !r.Rating.Valid() {
		return fmt.Errorf("paper %s: invalid rating %q", r.PaperID, r.Rating)
	}
	if r.Confidence < 0.0 || r.Confidence > 1.0 {
		return fmt.Errorf("paper %s: confidence %f out of range [0,1]", r.PaperID, r.Confidence)
	}
	if r.AttemptCount < 1 {
		return fmt.Errorf("paper %s: attempt count %d < 1", r.PaperID, r.AttemptCount)
	}
	if !r.Status.Valid() {
		return fmt.Errorf("paper %s: invalid status %q", r.PaperID, r.Status)
	}
	return nil
}
