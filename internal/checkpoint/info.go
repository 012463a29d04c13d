// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package checkpoint

import (
	"fmt"
	"io"
	"time"

	"github.com/pdiddy/survey-engine/pkg/types"
)

// Info summarizes a checkpoint for display.
type Info struct {
	Path        string
	Topic       string
	TopicHash   string
	BatchIndex  int
	TotalPapers int
	Judged      int
	Failed      int
	ByRating    map[types.Rating]int
	UpdatedAt   time.Time
}

// Describe builds an Info from cp.
func Describe(path string, cp *types.Checkpoint) Info {
	info := Info{
		Path:        path,
		Topic:       cp.SurveyTopic,
		TopicHash:   cp.SurveyTopicHash,
		BatchIndex:  cp.BatchIndex,
		TotalPapers: cp.TotalPapers,
		Judged:      len(cp.JudgedPaperIDs),
		ByRating:    map[types.Rating]int{},
		UpdatedAt:   cp.UpdatedAt,
	}
	for _, r := range cp.Results {
		if !r.Succeeded() {
			info.Failed++
			continue
		}
		info.ByRating[r.Rating]++
	}
	return info
}

// FormatInfo writes a human-readable description of info to w.
func FormatInfo(info Info, w io.Writer) {
	fmt.Fprintf(w, "Checkpoint: %s\n", info.Path)
	if info.Topic != "" {
		fmt.Fprintf(w, "Topic: %s\n", info.Topic)
	}
	fmt.Fprintf(w, "Topic hash: %.12s\n", info.TopicHash)
	if info.TotalPapers > 0 {
		pct := float64(info.Judged) / float64(info.TotalPapers) * 100
		fmt.Fprintf(w, "Progress: %d/%d papers (%.1f%%), %d batches\n", info.Judged, info.TotalPapers, pct, info.BatchIndex)
	} else {
		fmt.Fprintf(w, "Progress: %d papers, %d batches\n", info.Judged, info.BatchIndex)
	}
	for _, r := range types.Ratings {
		fmt.Fprintf(w, "  %-7s %d\n", r+":", info.ByRating[r])
	}
	fmt.Fprintf(w, "  %-7s %d\n", "Failed:", info.Failed)
	if !info.UpdatedAt.IsZero() {
		fmt.Fprintf(w, "Updated: %s\n", info.UpdatedAt.Format(time.RFC3339))
	}
}
