// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package coordinator

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/survey-engine/pkg/types"
)

// PromptKind identifies the startup decision being asked.
type PromptKind int

const (
	// PromptResume asks whether to continue from a checkpoint for the same
	// survey topic.
	PromptResume PromptKind = iota + 1
	// PromptStaleTopic asks whether to reuse a checkpoint written for a
	// different survey topic.
	PromptStaleTopic
)

func (k PromptKind) String() string {
	switch k {
	case PromptResume:
		return "resume"
	case PromptStaleTopic:
		return "stale topic"
	}
	return fmt.Sprintf("PromptKind(%d)", int(k))
}

// Prompt describes an existing checkpoint the run could reuse.
type Prompt struct {
	Kind            PromptKind
	Path            string
	CheckpointTopic string
	CurrentTopic    string
	Judged          int
	Pending         int
}

// Policy decides whether an existing checkpoint is reused. Returning false
// starts the run fresh; the unused checkpoint is moved aside, not deleted.
type Policy func(Prompt) (bool, error)

// AutoConfirm reuses every checkpoint, including one for a different topic.
func AutoConfirm(Prompt) (bool, error) { return true, nil }

// AutoReject never reuses a checkpoint.
func AutoReject(Prompt) (bool, error) { return false, nil }

// ResumeOnly continues a checkpoint for the same topic and refuses one for a
// different topic.
func ResumeOnly(p Prompt) (bool, error) { return p.Kind == PromptResume, nil }

// Interactive asks on out and reads a y/n answer from in. End of input
// counts as no.
func Interactive(in io.Reader, out io.Writer) Policy {
	r := bufio.NewReader(in)
	return func(p Prompt) (bool, error) {
		switch p.Kind {
		case PromptStaleTopic:
			fmt.Fprintf(out, "Checkpoint %s was written for a different survey topic.\n", p.Path)
			if p.CheckpointTopic != "" {
				fmt.Fprintf(out, "  checkpoint topic: %s\n", p.CheckpointTopic)
			}
			fmt.Fprintf(out, "  current topic:    %s\n", p.CurrentTopic)
			fmt.Fprintf(out, "Reuse its %d judgments anyway? [y/N]: ", p.Judged)
		default:
			fmt.Fprintf(out, "Found checkpoint with %d judged papers (%d pending). Resume? [y/N]: ", p.Judged, p.Pending)
		}
		line, err := r.ReadString('\n')
		if err != nil && err != io.EOF {
			return false, fmt.Errorf("reading answer: %w", err)
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes", nil
	}
}

// PolicyFor maps a configured resume policy to a Policy. Interactive prompts
// use in and out.
func PolicyFor(p types.ResumePolicy, in io.Reader, out io.Writer) Policy {
	switch p {
	case types.ResumeAlways:
		return ResumeOnly
	case types.ResumeNever:
		return AutoReject
	}
	return Interactive(in, out)
}
