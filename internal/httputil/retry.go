// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers for talking to LLM endpoints.
package httputil

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"
)

// RetryBaseDelay controls the base duration for exponential backoff when the
// endpoint reports it is busy. Tests override this to avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

// MaxRetryAfter caps a server-supplied Retry-After value.
var MaxRetryAfter = time.Minute

const defaultMaxRetries = 3

// Busy reports whether status means the server is overloaded rather than
// broken: 429 Too Many Requests or 503 Service Unavailable (Ollama returns
// 503 when its request queue is full).
func Busy(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}

// DoWithRetry executes an HTTP request and retries while the server answers
// with a busy status. The wait honors a Retry-After header given in seconds
// and otherwise doubles from RetryBaseDelay each attempt.
//
// When maxRetries is 0 the default (3) is used. The request body is rewound
// through req.GetBody before every retry, so POST requests built with
// http.NewRequest from a bytes reader are safe. If the context is cancelled
// during a wait the function returns ctx.Err(). After exhausting retries the
// last busy response is returned so the caller can classify it.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	for attempt := 0; ; attempt++ {
		r := req.Clone(ctx)
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewinding request body: %w", err)
			}
			r.Body = body
		}

		resp, err := client.Do(r)
		if err != nil {
			return nil, err
		}

		if !Busy(resp.StatusCode) || attempt >= maxRetries {
			return resp, nil
		}

		wait := retryAfter(resp.Header.Get("Retry-After"))
		if wait <= 0 {
			wait = time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

// retryAfter parses a Retry-After header expressed in seconds. HTTP-date
// values are ignored.
func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	d := time.Duration(secs) * time.Second
	if d > MaxRetryAfter {
		d = MaxRetryAfter
	}
	return d
}
