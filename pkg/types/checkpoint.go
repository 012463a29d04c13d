// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// CheckpointVersion is the current on-disk checkpoint format version.
const CheckpointVersion = 1

// Checkpoint is the persisted state of a judging run. JudgedPaperIDs is always
// exactly the key set of Results.
type Checkpoint struct {
	Version int `json:"version"`

	// SurveyTopicHash binds the checkpoint to a specific survey query.
	SurveyTopicHash string `json:"survey_topic_hash"`

	// SurveyTopic is the human-readable topic, kept for display only.
	SurveyTopic string `json:"survey_topic,omitempty"`

	// BatchIndex is the number of batches flushed so far.
	BatchIndex int `json:"batch_index"`

	// TotalPapers is the size of the paper set when the checkpoint was written.
	TotalPapers int `json:"total_papers"`

	// JudgedPaperIDs lists judged papers in the order they were judged.
	JudgedPaperIDs []string `json:"judged_paper_ids"`

	Results map[string]JudgmentResult `json:"results"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewCheckpoint returns an empty checkpoint bound to topicHash.
func NewCheckpoint(topicHash, topic string) *Checkpoint {
	return &Checkpoint{
		Version:         CheckpointVersion,
		SurveyTopicHash: topicHash,
		SurveyTopic:     topic,
		JudgedPaperIDs:  []string{},
		Results:         map[string]JudgmentResult{},
	}
}

// Has reports whether the paper already has a terminal judgment.
func (c *Checkpoint) Has(paperID string) bool {
	_, ok := c.Results[paperID]
	return ok
}

// Add records a terminal judgment. A paper that is already judged is left
// untouched; Add reports whether the result was recorded.
func (c *Checkpoint) Add(r JudgmentResult) bool {
	if c.Results == nil {
		c.Results = map[string]JudgmentResult{}
	}
	if _, ok := c.Results[r.PaperID]; ok {
		return false
	}
	c.Results[r.PaperID] = r
	c.JudgedPaperIDs = append(c.JudgedPaperIDs, r.PaperID)
	return true
}

// Clone returns a deep copy so that a snapshot handed to the store cannot be
// mutated by later batches.
func (c *Checkpoint) Clone() *Checkpoint {
	out := *c
	out.JudgedPaperIDs = append([]string(nil), c.JudgedPaperIDs...)
	out.Results = make(map[string]JudgmentResult, len(c.Results))
	for k, v := range c.Results {
		out.Results[k] = v
	}
	return &out
}

// Validate checks the structural invariants of a checkpoint read from disk.
func (c *Checkpoint) Validate() error {
	if c.Version != CheckpointVersion {
		return fmt.Errorf("unsupported checkpoint version %d", c.Version)
	}
	if c.SurveyTopicHash == "" {
		return fmt.Errorf("missing survey_topic_hash")
	}
	if c.BatchIndex < 0 {
		return fmt.Errorf("negative batch_index %d", c.BatchIndex)
	}
	if len(c.JudgedPaperIDs) != len(c.Results) {
		return fmt.Errorf("judged_paper_ids has %d entries but results has %d", len(c.JudgedPaperIDs), len(c.Results))
	}
	seen := make(map[string]bool, len(c.JudgedPaperIDs))
	for _, id := range c.JudgedPaperIDs {
		if seen[id] {
			return fmt.Errorf("duplicate paper id %s in judged_paper_ids", id)
		}
		seen[id] = true
		r, ok := c.Results[id]
		if !ok {
			return fmt.Errorf("paper id %s listed as judged but has no result", id)
		}
		if r.PaperID != id {
			return fmt.Errorf("result keyed %s carries paper id %q", id, r.PaperID)
		}
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// TopicHash returns the hash that binds a checkpoint to a survey query. The
// topic and description are trimmed so whitespace-only edits do not
// invalidate a run.
func TopicHash(topic, description string) string {
	h := sha256.New()
	h.Write([]byte(strings.TrimSpace(topic)))
	h.Write([]byte{0})
	h.Write([]byte(strings.TrimSpace(description)))
	return fmt.Sprintf("%x", h.Sum(nil))
}
