package orchestrator

import (
	"errors"
	"fmt"
)

// ErrMaxTurnsExceeded is returned by [Orchestrator.Answer] when the model
// keeps requesting tools past the configured turn bound without ever
// producing a final text answer.
var ErrMaxTurnsExceeded = errors.New("orchestrator: max turns exceeded")

// Backend error kinds.
const (
	// KindTimeout marks a completion call that exceeded the per-call timeout.
	KindTimeout = "timeout"

	// KindProtocol marks a malformed or unusable backend response, including
	// transport failures and replies with neither text nor tool calls.
	KindProtocol = "protocol"
)

// BackendError wraps a failure of the LLM backend during the turn loop. It
// distinguishes timeouts from protocol failures so callers can decide whether
// a retry is worthwhile.
type BackendError struct {
	// Kind is [KindTimeout] or [KindProtocol].
	Kind string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("orchestrator: backend %s error", e.Kind)
	}
	return fmt.Sprintf("orchestrator: backend %s error: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *BackendError) Unwrap() error {
	return e.Err
}
