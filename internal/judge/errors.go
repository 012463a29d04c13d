// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package judge

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed judge attempt so the retry loop can decide
// between retrying and giving up without inspecting error strings.
type ErrorKind int

const (
	// KindTransient covers transport failures: connection refused, timeouts,
	// rate limiting, server errors.
	KindTransient ErrorKind = iota + 1
	// KindMalformed means the endpoint answered but the answer is unusable.
	KindMalformed
	// KindFatal means retrying the same request cannot succeed (unknown
	// model, rejected request).
	KindFatal
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindMalformed:
		return "malformed response"
	case KindFatal:
		return "fatal"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Retryable reports whether another attempt may succeed.
func (k ErrorKind) Retryable() bool {
	return k == KindTransient || k == KindMalformed
}

// Error is a classified judge attempt failure.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient wraps err as a transient failure.
func Transient(err error) error { return &Error{Kind: KindTransient, Err: err} }

// Malformed wraps err as a malformed-response failure.
func Malformed(err error) error { return &Error{Kind: KindMalformed, Err: err} }

// Fatal wraps err as a non-retryable failure.
func Fatal(err error) error { return &Error{Kind: KindFatal, Err: err} }

// KindOf returns the classification of err. Unclassified errors are treated
// as transient.
func KindOf(err error) ErrorKind {
	var je *Error
	if errors.As(err, &je) {
		return je.Kind
	}
	return KindTransient
}
