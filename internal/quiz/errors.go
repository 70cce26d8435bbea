package quiz

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures.
type ErrorKind int

const (
	// KindProvider is a transport or API error from the model call.
	KindProvider ErrorKind = iota + 1
	// KindMalformed is output that is not JSON or does not match its schema.
	KindMalformed
	// KindHeuristic is well-formed output rejected by a content check.
	KindHeuristic
	// KindTimeout is an attempt that outlived its deadline.
	KindTimeout
	// KindStore is a failed primary write inside an attempt.
	KindStore
	// KindExhausted is a terminal failure after every attempt was used.
	KindExhausted
	// KindSecondaryWrite is a best-effort write that failed. Never surfaced.
	KindSecondaryWrite
)

func (k ErrorKind) String() string {
	switch k {
	case KindProvider:
		return "provider"
	case KindMalformed:
		return "malformed"
	case KindHeuristic:
		return "heuristic"
	case KindTimeout:
		return "timeout"
	case KindStore:
		return "store"
	case KindExhausted:
		return "exhausted"
	case KindSecondaryWrite:
		return "secondary_write"
	}
	return "unknown"
}

// Retriable reports whether a failure of this kind consumes an attempt and
// lets the loop continue.
func (k ErrorKind) Retriable() bool {
	switch k {
	case KindProvider, KindMalformed, KindHeuristic, KindTimeout, KindStore:
		return true
	}
	return false
}

// Error is a classified failure of one pipeline attempt.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds an *Error of the given kind.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies err. A nil err stays nil.
func Wrap(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf returns KindExhausted for terminal failures, otherwise the kind
// of the first *Error in err's chain, or KindProvider when err carries no
// classification.
func KindOf(err error) ErrorKind {
	var ex *ExhaustedError
	if errors.As(err, &ex) {
		return KindExhausted
	}
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Kind
	}
	return KindProvider
}

// ExhaustedError is the terminal failure returned once all attempts failed.
type ExhaustedError struct {
	// Op names the pipeline, e.g. "question generation".
	Op       string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// IsExhausted reports whether err is a terminal pipeline failure.
func IsExhausted(err error) bool {
	var ex *ExhaustedError
	return errors.As(err, &ex)
}
