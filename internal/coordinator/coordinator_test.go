// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package coordinator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/survey-engine/internal/checkpoint"
	"github.com/pdiddy/survey-engine/pkg/types"
)

// --- stubs ---

// stubJudge returns a verdict derived only from the paper, so repeated runs
// produce identical results.
type stubJudge struct {
	mu      sync.Mutex
	calls   []string
	delay   func(types.Paper) time.Duration
	onJudge func(types.Paper)
}

func (s *stubJudge) Judge(_ context.Context, p types.Paper) (types.JudgmentResult, error) {
	s.mu.Lock()
	s.calls = append(s.calls, p.ID)
	s.mu.Unlock()
	if s.onJudge != nil {
		s.onJudge(p)
	}
	if s.delay != nil {
		time.Sleep(s.delay(p))
	}
	return verdictFor(p), nil
}

func (s *stubJudge) called() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func verdictFor(p types.Paper) types.JudgmentResult {
	r := types.JudgmentResult{
		PaperID:      p.ID,
		Rating:       types.Ratings[p.Year%3],
		Confidence:   float64(p.Year%10) / 10,
		Reasoning:    "judged " + p.Title,
		AttemptCount: 1,
		Status:       types.StatusSuccess,
	}
	if p.Year%7 == 0 {
		r.Rating, r.Confidence, r.Status, r.AttemptCount = types.RatingLow, 0, types.StatusFailedPermanently, 3
	}
	return r
}

// killingStore cancels the run right after its nth save, standing in for a
// process killed once that checkpoint is on disk.
type killingStore struct {
	*checkpoint.Store
	after  int
	saves  int
	cancel context.CancelFunc
}

func (k *killingStore) Save(cp *types.Checkpoint) error {
	err := k.Store.Save(cp)
	k.saves++
	if k.saves == k.after {
		k.cancel()
	}
	return err
}

func makePapers(n int) []types.Paper {
	papers := make([]types.Paper, n)
	for i := range papers {
		title := fmt.Sprintf("Paper %02d", i+1)
		year := 2000 + i + 1
		papers[i] = types.Paper{
			ID:         types.PaperID(title, "ICLR", year),
			Title:      title,
			Year:       year,
			Conference: "ICLR",
		}
	}
	return papers
}

func ids(papers []types.Paper) []string {
	out := make([]string, len(papers))
	for i, p := range papers {
		out[i] = p.ID
	}
	return out
}

func resultIDs(results []types.JudgmentResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.PaperID
	}
	return out
}

func testConfig(batch, concurrency int) types.RunConfig {
	cfg := types.DefaultRunConfig()
	cfg.Survey = types.SurveyConfig{Topic: "Retrieval-augmented generation"}
	cfg.Processing.BatchSize = batch
	cfg.Processing.Concurrency = concurrency
	cfg.Processing.Checkpointing = true
	return cfg
}

func newStore(t *testing.T) *checkpoint.Store {
	t.Helper()
	return checkpoint.NewStore(filepath.Join(t.TempDir(), "checkpoint.json"), nil)
}

func uninterrupted(t *testing.T, papers []types.Paper) []types.JudgmentResult {
	t.Helper()
	out, err := New(&stubJudge{}, nil, nil, testConfig(len(papers), 1), nil, nil).Run(context.Background(), papers)
	require.NoError(t, err)
	require.True(t, out.Complete())
	return out.Results
}

// --- tests ---

func TestRun_KilledAfterBatchTwoThenResumed(t *testing.T) {
	papers := makePapers(10)
	store := newStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	first := &stubJudge{}
	out, err := New(first, &killingStore{Store: store, after: 2, cancel: cancel}, AutoReject, testConfig(3, 3), nil, nil).Run(ctx, papers)
	require.NoError(t, err)
	assert.True(t, out.Interrupted)
	assert.Equal(t, 4, out.Pending)
	assert.ElementsMatch(t, ids(papers[:6]), first.called())

	onDisk, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, ids(papers[:6]), onDisk.JudgedPaperIDs)
	assert.Equal(t, 2, onDisk.BatchIndex)

	second := &stubJudge{}
	out, err = New(second, store, AutoConfirm, testConfig(3, 3), nil, nil).Run(context.Background(), papers)
	require.NoError(t, err)
	assert.True(t, out.Complete())
	assert.ElementsMatch(t, ids(papers[6:]), second.called())
	assert.Equal(t, 6, out.Summary.Resumed)
	assert.Equal(t, 4, out.Summary.Judged)

	require.Len(t, out.Results, 10)
	if diff := cmp.Diff(uninterrupted(t, papers), out.Results); diff != "" {
		t.Errorf("resumed results differ from uninterrupted run (-want +got):\n%s", diff)
	}
}

func TestRun_ExactlyOnceAcrossBatchSizes(t *testing.T) {
	papers := makePapers(10)
	want := uninterrupted(t, papers)

	for _, batch := range []int{1, 2, 3, 4, 7, 10, 11} {
		t.Run(fmt.Sprintf("batch=%d", batch), func(t *testing.T) {
			j := &stubJudge{}
			out, err := New(j, newStore(t), AutoReject, testConfig(batch, 0), nil, nil).Run(context.Background(), papers)
			require.NoError(t, err)

			assert.ElementsMatch(t, ids(papers), j.called())
			assert.Equal(t, ids(papers), resultIDs(out.Results))
			if diff := cmp.Diff(want, out.Results); diff != "" {
				t.Errorf("results mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, (10+batch-1)/batch, out.Summary.Batches)
			assert.Equal(t, 10, out.Summary.Succeeded+out.Summary.Failed)
		})
	}
}

func TestRun_PreservesOrderUnderConcurrency(t *testing.T) {
	papers := makePapers(12)
	// Later papers in each batch finish first.
	j := &stubJudge{delay: func(p types.Paper) time.Duration {
		return time.Duration(6-(p.Year-2001)%6) * 5 * time.Millisecond
	}}

	out, err := New(j, newStore(t), AutoReject, testConfig(6, 6), nil, nil).Run(context.Background(), papers)
	require.NoError(t, err)

	if diff := cmp.Diff(ids(papers), resultIDs(out.Results)); diff != "" {
		t.Errorf("result order (-want +got):\n%s", diff)
	}
}

func TestRun_StaleTopicWithoutConfirmationStartsFresh(t *testing.T) {
	papers := makePapers(5)
	store := newStore(t)

	old := types.NewCheckpoint(types.TopicHash("Some other topic", ""), "Some other topic")
	for _, p := range papers[:3] {
		old.Add(verdictFor(p))
	}
	require.NoError(t, store.Save(old))

	var asked []PromptKind
	policy := func(p Prompt) (bool, error) {
		asked = append(asked, p.Kind)
		return ResumeOnly(p)
	}

	j := &stubJudge{}
	out, err := New(j, store, policy, testConfig(2, 1), nil, nil).Run(context.Background(), papers)
	require.NoError(t, err)

	assert.Equal(t, []PromptKind{PromptStaleTopic}, asked)
	assert.ElementsMatch(t, ids(papers), j.called(), "stale results must not be reused")
	assert.True(t, out.Complete())

	matches, err := filepath.Glob(store.Path() + ".stale-*")
	require.NoError(t, err)
	require.Len(t, matches, 1, "stale checkpoint must be kept")
	kept, err := checkpoint.NewStore(matches[0], nil).Load()
	require.NoError(t, err)
	assert.Equal(t, old.SurveyTopicHash, kept.SurveyTopicHash)
	assert.Len(t, kept.Results, 3)

	current, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, testConfig(2, 1).Survey.TopicHash(), current.SurveyTopicHash)
}

func TestRun_StaleTopicConfirmedIsReused(t *testing.T) {
	papers := makePapers(5)
	store := newStore(t)

	old := types.NewCheckpoint(types.TopicHash("Earlier wording", ""), "Earlier wording")
	for _, p := range papers[:3] {
		old.Add(verdictFor(p))
	}
	require.NoError(t, store.Save(old))

	j := &stubJudge{}
	out, err := New(j, store, AutoConfirm, testConfig(2, 1), nil, nil).Run(context.Background(), papers)
	require.NoError(t, err)

	assert.ElementsMatch(t, ids(papers[3:]), j.called())
	assert.Len(t, out.Results, 5)
	assert.Equal(t, testConfig(2, 1).Survey.TopicHash(), out.Checkpoint.SurveyTopicHash)
}

func TestRun_ResumeDeclinedMovesCheckpointAside(t *testing.T) {
	papers := makePapers(4)
	cfg := testConfig(2, 1)
	store := newStore(t)

	prior := types.NewCheckpoint(cfg.Survey.TopicHash(), cfg.Survey.Topic)
	prior.Add(verdictFor(papers[0]))
	require.NoError(t, store.Save(prior))

	var got Prompt
	policy := func(p Prompt) (bool, error) {
		got = p
		return false, nil
	}
	j := &stubJudge{}
	_, err := New(j, store, policy, cfg, nil, nil).Run(context.Background(), papers)
	require.NoError(t, err)

	assert.Equal(t, PromptResume, got.Kind)
	assert.Equal(t, 1, got.Judged)
	assert.Equal(t, 3, got.Pending)
	assert.Len(t, j.called(), 4)

	matches, _ := filepath.Glob(store.Path() + ".declined-*")
	assert.Len(t, matches, 1)
}

func TestRun_CorruptCheckpointStartsFreshAndKeepsFile(t *testing.T) {
	papers := makePapers(3)
	store := newStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte(`{"version": 1, "results": {`), 0o644))

	j := &stubJudge{}
	out, err := New(j, store, AutoConfirm, testConfig(3, 1), nil, nil).Run(context.Background(), papers)
	require.NoError(t, err)
	assert.True(t, out.Complete())
	assert.Len(t, j.called(), 3)

	matches, _ := filepath.Glob(store.Path() + ".corrupt-*")
	require.Len(t, matches, 1)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Equal(t, `{"version": 1, "results": {`, string(data))
}

func TestRun_CheckpointingDisabled(t *testing.T) {
	papers := makePapers(4)
	store := newStore(t)
	cfg := testConfig(2, 2)
	cfg.Processing.Checkpointing = false

	out, err := New(&stubJudge{}, store, AutoConfirm, cfg, nil, nil).Run(context.Background(), papers)
	require.NoError(t, err)
	assert.True(t, out.Complete())
	assert.False(t, store.Exists())
}

func TestRun_InterruptMidBatchFlushesStartedWork(t *testing.T) {
	papers := makePapers(8)
	store := newStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	j := &stubJudge{onJudge: func(p types.Paper) {
		if p.ID == papers[1].ID {
			cancel()
		}
	}}

	out, err := New(j, store, AutoReject, testConfig(4, 1), nil, nil).Run(ctx, papers)
	require.NoError(t, err)

	assert.True(t, out.Interrupted)
	assert.Equal(t, ids(papers[:2]), j.called())
	assert.Equal(t, ids(papers[:2]), resultIDs(out.Results))
	assert.Equal(t, 6, out.Pending)

	onDisk, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, ids(papers[:2]), onDisk.JudgedPaperIDs)
	assert.Equal(t, 1, onDisk.BatchIndex)
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	j := &stubJudge{}
	out, err := New(j, newStore(t), AutoReject, testConfig(2, 1), nil, nil).Run(ctx, makePapers(3))
	require.NoError(t, err)
	assert.True(t, out.Interrupted)
	assert.Empty(t, j.called())
	assert.Equal(t, 3, out.Pending)
}

func TestRun_PolicyErrorIsFatal(t *testing.T) {
	papers := makePapers(2)
	cfg := testConfig(2, 1)
	store := newStore(t)
	prior := types.NewCheckpoint(cfg.Survey.TopicHash(), cfg.Survey.Topic)
	prior.Add(verdictFor(papers[0]))
	require.NoError(t, store.Save(prior))

	policy := func(Prompt) (bool, error) { return false, errors.New("terminal closed") }
	_, err := New(&stubJudge{}, store, policy, cfg, nil, nil).Run(context.Background(), papers)
	assert.ErrorContains(t, err, "terminal closed")
	assert.True(t, store.Exists(), "checkpoint must be untouched")
}

func TestRun_CheckpointResultsOutsideInputAreKeptButNotReported(t *testing.T) {
	papers := makePapers(4)
	cfg := testConfig(2, 1)
	store := newStore(t)

	extra := types.Paper{ID: "removed-paper", Title: "Gone", Year: 1999}
	prior := types.NewCheckpoint(cfg.Survey.TopicHash(), cfg.Survey.Topic)
	prior.Add(verdictFor(extra))
	require.NoError(t, store.Save(prior))

	out, err := New(&stubJudge{}, store, AutoConfirm, cfg, nil, nil).Run(context.Background(), papers)
	require.NoError(t, err)
	assert.Equal(t, ids(papers), resultIDs(out.Results))
	assert.True(t, out.Checkpoint.Has("removed-paper"))
}

func TestRun_ProgressLines(t *testing.T) {
	var buf bytes.Buffer
	_, err := New(&stubJudge{}, nil, nil, testConfig(2, 1), &buf, nil).Run(context.Background(), makePapers(5))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "Batch 1/3: 2 papers"))
	assert.Contains(t, lines[2], "(5/5 total")
}

func TestPlan(t *testing.T) {
	papers := makePapers(5)
	cfg := testConfig(2, 1)
	store := newStore(t)

	c := New(&stubJudge{}, store, nil, cfg, nil, nil)
	assert.Equal(t, Plan{Papers: 5, Pending: 5, Batches: 3, Checkpoint: StateNone}, c.Plan(papers))

	prior := types.NewCheckpoint(cfg.Survey.TopicHash(), cfg.Survey.Topic)
	prior.Add(verdictFor(papers[0]))
	prior.Add(verdictFor(papers[1]))
	require.NoError(t, store.Save(prior))
	assert.Equal(t, Plan{Papers: 5, Resumable: 2, Pending: 3, Batches: 2, Checkpoint: StateResumable}, c.Plan(papers))

	stale := New(&stubJudge{}, store, nil, testConfig(2, 1), nil, nil)
	stale.topicHash = "different"
	assert.Equal(t, StateStale, stale.Plan(papers).Checkpoint)

	cfg.Processing.Checkpointing = false
	assert.Equal(t, StateDisabled, New(&stubJudge{}, store, nil, cfg, nil, nil).Plan(papers).Checkpoint)
}

func TestInteractivePolicy(t *testing.T) {
	var out bytes.Buffer
	yes := Interactive(strings.NewReader("Y\n"), &out)
	ok, err := yes(Prompt{Kind: PromptResume, Judged: 6, Pending: 4})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, out.String(), "6 judged papers (4 pending)")

	out.Reset()
	eof := Interactive(strings.NewReader(""), &out)
	ok, err = eof(Prompt{Kind: PromptStaleTopic, CurrentTopic: "RAG", Path: "cp.json"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, out.String(), "different survey topic")
}

func TestPolicyFor(t *testing.T) {
	resume := Prompt{Kind: PromptResume}
	stale := Prompt{Kind: PromptStaleTopic}

	always := PolicyFor(types.ResumeAlways, nil, nil)
	ok, _ := always(resume)
	assert.True(t, ok)
	ok, _ = always(stale)
	assert.False(t, ok)

	never := PolicyFor(types.ResumeNever, nil, nil)
	ok, _ = never(resume)
	assert.False(t, ok)
}
