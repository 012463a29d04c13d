// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package coordinator drives a judging run. It diffs the loaded papers
// against the checkpoint, splits the remainder into batches, judges each
// batch with bounded concurrency, and flushes the checkpoint after every
// batch. Results come back in paper load order regardless of completion
// order.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/survey-engine/internal/checkpoint"
	"github.com/pdiddy/survey-engine/pkg/types"
)

// Judge produces a terminal result for one paper. It returns an error only
// when ctx ends first.
type Judge interface {
	Judge(ctx context.Context, paper types.Paper) (types.JudgmentResult, error)
}

// Store persists checkpoints.
type Store interface {
	Path() string
	Load() (*types.Checkpoint, error)
	Save(cp *types.Checkpoint) error
	Preserve(reason string) (string, error)
}

// Reasons recorded in the name of a checkpoint moved aside.
const (
	reasonStale    = "stale"
	reasonCorrupt  = "corrupt"
	reasonDeclined = "declined"
)

// Summary counts the outcome of a run.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	// Resumed is how many results came from the checkpoint rather than
	// being judged in this run.
	Resumed  int
	Judged   int
	Batches  int
	ByRating map[types.Rating]int
	Elapsed  time.Duration
}

// Rate returns papers judged per second in this run.
func (s Summary) Rate() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Judged) / s.Elapsed.Seconds()
}

// Outcome is the result of Run.
type Outcome struct {
	// Results holds one result per judged input paper, in load order.
	Results []types.JudgmentResult
	Summary Summary
	// Interrupted is true when the run stopped before every paper was judged.
	Interrupted bool
	// Pending is the number of input papers still without a result.
	Pending int
	// Checkpoint is the final in-memory checkpoint.
	Checkpoint *types.Checkpoint
}

// Complete reports whether every input paper has a terminal result.
func (o Outcome) Complete() bool { return !o.Interrupted && o.Pending == 0 }

// Coordinator runs batches of judgments against a checkpoint.
type Coordinator struct {
	judge         Judge
	store         Store
	policy        Policy
	batchSize     int
	concurrency   int
	checkpointing bool
	topicHash     string
	topic         string
	progress      io.Writer
	log           *slog.Logger
}

// New returns a Coordinator for cfg. A nil store is allowed when
// checkpointing is disabled. A nil policy rejects every checkpoint; a nil
// progress writer or logger discards output.
func New(j Judge, store Store, policy Policy, cfg types.RunConfig, progress io.Writer, log *slog.Logger) *Coordinator {
	if policy == nil {
		policy = AutoReject
	}
	if progress == nil {
		progress = io.Discard
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	batch := cfg.Processing.BatchSize
	if batch < 1 {
		batch = 1
	}
	conc := cfg.Processing.Concurrency
	if conc < 1 || conc > batch {
		conc = batch
	}
	return &Coordinator{
		judge:         j,
		store:         store,
		policy:        policy,
		batchSize:     batch,
		concurrency:   conc,
		checkpointing: cfg.Processing.Checkpointing && store != nil,
		topicHash:     cfg.Survey.TopicHash(),
		topic:         cfg.Survey.Topic,
		progress:      progress,
		log:           log,
	}
}

// Pending returns the papers without a result in cp, in load order.
func Pending(papers []types.Paper, cp *types.Checkpoint) []types.Paper {
	var out []types.Paper
	for _, p := range papers {
		if !cp.Has(p.ID) {
			out = append(out, p)
		}
	}
	return out
}

// Run judges every paper not already in the checkpoint. When ctx is
// cancelled, judgments already in flight finish, the partial batch is
// flushed, and Run returns an Outcome with Interrupted set. The returned
// error is non-nil only for startup failures.
func (c *Coordinator) Run(ctx context.Context, papers []types.Paper) (Outcome, error) {
	start := time.Now()

	cp, err := c.startState(papers)
	if err != nil {
		return Outcome{}, err
	}
	resumed := 0
	for _, p := range papers {
		if cp.Has(p.ID) {
			resumed++
		}
	}
	cp.TotalPapers = len(papers)

	pending := Pending(papers, cp)
	totalBatches := (len(pending) + c.batchSize - 1) / c.batchSize
	c.log.Info("starting run",
		"papers", len(papers), "resumed", resumed, "pending", len(pending),
		"batch_size", c.batchSize, "concurrency", c.concurrency, "batches", totalBatches)

	interrupted := false
	judged := 0
	batches := 0
	for b := 0; b*c.batchSize < len(pending); b++ {
		if ctx.Err() != nil {
			interrupted = true
			break
		}
		lo := b * c.batchSize
		hi := min(lo+c.batchSize, len(pending))
		batch := pending[lo:hi]

		batchStart := time.Now()
		results, complete := c.runBatch(ctx, batch)
		n := 0
		for _, r := range results {
			if r == nil {
				continue
			}
			if cp.Add(*r) {
				n++
			}
		}
		judged += n
		if n > 0 {
			cp.BatchIndex++
			batches++
			c.flush(cp)
		}

		done := resumed + judged
		elapsed := time.Since(start)
		fmt.Fprintf(c.progress, "Batch %d/%d: %d papers in %s (%d/%d total, %.2f papers/s)\n",
			b+1, totalBatches, n, time.Since(batchStart).Round(time.Millisecond),
			done, len(papers), float64(judged)/max(elapsed.Seconds(), 1e-9))

		if !complete {
			interrupted = true
			break
		}
	}

	out := Outcome{
		Interrupted: interrupted,
		Checkpoint:  cp,
		Summary: Summary{
			Total:    len(papers),
			Resumed:  resumed,
			Judged:   judged,
			Batches:  batches,
			ByRating: map[types.Rating]int{},
			Elapsed:  time.Since(start),
		},
	}
	for _, p := range papers {
		r, ok := cp.Results[p.ID]
		if !ok {
			out.Pending++
			continue
		}
		out.Results = append(out.Results, r)
		if r.Succeeded() {
			out.Summary.Succeeded++
			out.Summary.ByRating[r.Rating]++
		} else {
			out.Summary.Failed++
		}
	}
	if interrupted {
		c.log.Warn("run interrupted", "judged", judged, "pending", out.Pending)
	}
	return out, nil
}

// runBatch judges a batch and returns results indexed by batch position.
// A nil entry is a paper that was not started because ctx ended. Judgments
// that have started run to completion on a context that ignores
// cancellation.
func (c *Coordinator) runBatch(ctx context.Context, batch []types.Paper) ([]*types.JudgmentResult, bool) {
	results := make([]*types.JudgmentResult, len(batch))
	judgeCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, p := range batch {
		if ctx.Err() != nil {
			break
		}
		i, p := i, p
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			r, err := c.judge.Judge(judgeCtx, p)
			if err != nil {
				return fmt.Errorf("judging %s: %w", p.ID, err)
			}
			if r.PaperID != p.ID {
				return fmt.Errorf("judge returned result for %q, want %q", r.PaperID, p.ID)
			}
			results[i] = &r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.log.Error("batch did not complete", "err", err)
	}

	for _, r := range results {
		if r == nil {
			return results, false
		}
	}
	return results, true
}

// flush saves cp. A failed save is logged and the run continues; the next
// batch retries the save with the full state.
func (c *Coordinator) flush(cp *types.Checkpoint) {
	if !c.checkpointing {
		return
	}
	cp.UpdatedAt = time.Now().UTC()
	if err := c.store.Save(cp); err != nil {
		c.log.Warn("checkpoint save failed", "path", c.store.Path(), "err", err)
	}
}

// startState decides which checkpoint the run continues from. Every
// checkpoint that is found but not reused is moved aside before the first
// save can overwrite it.
func (c *Coordinator) startState(papers []types.Paper) (*types.Checkpoint, error) {
	fresh := types.NewCheckpoint(c.topicHash, c.topic)
	if !c.checkpointing {
		return fresh, nil
	}

	cp, err := c.store.Load()
	switch {
	case errors.Is(err, checkpoint.ErrNotFound):
		return fresh, nil
	case err != nil:
		c.log.Warn("ignoring unusable checkpoint, starting fresh", "path", c.store.Path(), "err", err)
		if _, perr := c.store.Preserve(reasonCorrupt); perr != nil {
			return nil, fmt.Errorf("checkpoint %s is unusable and could not be moved aside: %w", c.store.Path(), perr)
		}
		return fresh, nil
	}

	prompt := Prompt{
		Kind:            PromptResume,
		Path:            c.store.Path(),
		CheckpointTopic: cp.SurveyTopic,
		CurrentTopic:    c.topic,
		Judged:          len(cp.JudgedPaperIDs),
		Pending:         len(Pending(papers, cp)),
	}
	reason := reasonDeclined
	if cp.SurveyTopicHash != c.topicHash {
		prompt.Kind = PromptStaleTopic
		reason = reasonStale
		c.log.Warn("checkpoint was written for a different survey topic",
			"path", c.store.Path(), "checkpoint_topic", cp.SurveyTopic)
	}

	reuse, err := c.policy(prompt)
	if err != nil {
		return nil, fmt.Errorf("resume decision: %w", err)
	}
	if reuse {
		if prompt.Kind == PromptStaleTopic {
			cp.SurveyTopicHash = c.topicHash
			cp.SurveyTopic = c.topic
		}
		c.log.Info("resuming from checkpoint", "path", c.store.Path(),
			"judged", prompt.Judged, "batch_index", cp.BatchIndex)
		return cp, nil
	}

	if _, err := c.store.Preserve(reason); err != nil {
		return nil, fmt.Errorf("moving checkpoint aside: %w", err)
	}
	return fresh, nil
}
