// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package coordinator

import (
	"errors"

	"github.com/pdiddy/survey-engine/internal/checkpoint"
	"github.com/pdiddy/survey-engine/pkg/types"
)

// CheckpointState describes the checkpoint found at startup.
type CheckpointState string

const (
	StateDisabled  CheckpointState = "disabled"
	StateNone      CheckpointState = "none"
	StateResumable CheckpointState = "resumable"
	StateStale     CheckpointState = "stale"
	StateCorrupt   CheckpointState = "corrupt"
)

// Plan is what a run would do, computed without judging, prompting, or
// touching the checkpoint file.
type Plan struct {
	Papers     int
	Resumable  int
	Pending    int
	Batches    int
	Checkpoint CheckpointState
	Err        error
}

// Plan inspects the checkpoint and returns the work a run over papers would
// do if the checkpoint were reused.
func (c *Coordinator) Plan(papers []types.Paper) Plan {
	p := Plan{Papers: len(papers), Pending: len(papers), Checkpoint: StateDisabled}
	if c.checkpointing {
		cp, err := c.store.Load()
		switch {
		case errors.Is(err, checkpoint.ErrNotFound):
			p.Checkpoint = StateNone
		case err != nil:
			p.Checkpoint = StateCorrupt
			p.Err = err
		default:
			p.Checkpoint = StateResumable
			if cp.SurveyTopicHash != c.topicHash {
				p.Checkpoint = StateStale
			}
			p.Pending = len(Pending(papers, cp))
			p.Resumable = len(papers) - p.Pending
		}
	}
	p.Batches = (p.Pending + c.batchSize - 1) / c.batchSize
	return p
}
