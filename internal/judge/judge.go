// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package judge asks a language model whether a paper is relevant to a survey
// topic. It builds the prompt, calls the configured endpoint, validates the
// structured answer, and retries transient and malformed-response failures
// up to a fixed attempt budget. A paper whose budget is exhausted gets a
// FailedPermanently result instead of an error so the run can continue.
package judge

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/survey-engine/pkg/types"
)

// Backend abstracts the LLM endpoint so tests can supply a stub. Complete
// sends one prompt and returns the raw model text; errors should be
// classified with Transient, Malformed, or Fatal.
type Backend interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
	// Probe checks that the endpoint is reachable and serves the model.
	Probe(ctx context.Context) error
}

// maxBackoff caps exponential retry delays.
const maxBackoff = 5 * time.Minute

// maxReasoning bounds the diagnostic stored for a failed paper.
const maxReasoning = 500

// Judge produces a JudgmentResult per paper. It is safe for concurrent use.
type Judge struct {
	backend     Backend
	survey      types.SurveyConfig
	attempts    int
	delay       time.Duration
	exponential bool
	limiter     *rate.Limiter
	log         *slog.Logger
}

// New builds a Judge from the run configuration. A nil logger discards output.
func New(backend Backend, cfg types.RunConfig, log *slog.Logger) *Judge {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	j := &Judge{
		backend:     backend,
		survey:      cfg.Survey,
		attempts:    cfg.LLM.Attempts(),
		delay:       cfg.LLM.RetryDelay,
		exponential: cfg.LLM.ExponentialBackoff,
		log:         log.With("backend", backend.Name()),
	}
	if cfg.LLM.RequestsPerSecond > 0 {
		burst := int(cfg.LLM.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		j.limiter = rate.NewLimiter(rate.Limit(cfg.LLM.RequestsPerSecond), burst)
	}
	return j
}

// Probe verifies the endpoint before any paper is judged. A failure here is
// a configuration error.
func (j *Judge) Probe(ctx context.Context) error {
	if err := j.backend.Probe(ctx); err != nil {
		return fmt.Errorf("probing %s endpoint: %w", j.backend.Name(), err)
	}
	return nil
}

// Judge judges one paper. The returned error is non-nil only when ctx ends
// before a terminal result is reached; every other failure is folded into a
// FailedPermanently result.
func (j *Judge) Judge(ctx context.Context, paper types.Paper) (types.JudgmentResult, error) {
	prompt, err := RenderPrompt(paper, j.survey)
	if err != nil {
		return failedResult(paper, 1, fmt.Errorf("rendering prompt: %w", err)), nil
	}

	var lastErr error
	for attempt := 1; attempt <= j.attempts; attempt++ {
		if attempt > 1 {
			if err := sleepCtx(ctx, j.backoff(attempt-1)); err != nil {
				return types.JudgmentResult{}, err
			}
		}
		if j.limiter != nil {
			if err := j.limiter.Wait(ctx); err != nil {
				return types.JudgmentResult{}, err
			}
		}

		verdict, err := j.attempt(ctx, prompt)
		if err == nil {
			j.log.Debug("paper judged", "paper_id", paper.ID, "rating", verdict.Rating, "attempt", attempt)
			return types.JudgmentResult{
				PaperID:      paper.ID,
				Rating:       verdict.Rating,
				Confidence:   verdict.Confidence,
				Reasoning:    verdict.Reasoning,
				AttemptCount: attempt,
				Status:       types.StatusSuccess,
			}, nil
		}
		if ctx.Err() != nil {
			return types.JudgmentResult{}, ctx.Err()
		}

		lastErr = err
		kind := KindOf(err)
		j.log.Warn("judge attempt failed",
			"paper_id", paper.ID, "attempt", attempt, "max_attempts", j.attempts,
			"kind", kind.String(), "err", err)
		if !kind.Retryable() {
			return failedResult(paper, attempt, lastErr), nil
		}
	}

	j.log.Error("all attempts failed", "paper_id", paper.ID, "title", paper.Title, "attempts", j.attempts)
	return failedResult(paper, j.attempts, lastErr), nil
}

func (j *Judge) attempt(ctx context.Context, prompt string) (Verdict, error) {
	text, err := j.backend.Complete(ctx, prompt)
	if err != nil {
		return Verdict{}, err
	}
	return ParseResponse(text)
}

// backoff returns the wait before retry number n (1-based).
func (j *Judge) backoff(n int) time.Duration {
	if !j.exponential || j.delay <= 0 {
		return j.delay
	}
	d := j.delay
	for i := 1; i < n; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

func failedResult(paper types.Paper, attempts int, err error) types.JudgmentResult {
	reasoning := truncate(fmt.Sprintf("judgment failed after %d attempt(s): %v", attempts, err), maxReasoning)
	return types.JudgmentResult{
		PaperID:      paper.ID,
		Rating:       types.RatingLow,
		Confidence:   0.0,
		Reasoning:    reasoning,
		AttemptCount: attempts,
		Status:       types.StatusFailedPermanently,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
