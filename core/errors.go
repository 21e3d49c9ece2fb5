package orchestration

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidConfig   = errors.New("invalid debate config")
	ErrDebateCancelled = errors.New("debate cancelled")
	ErrAlreadyRunning  = errors.New("orchestrator already running")
)

// SessionStartError means a persona's pipeline could not bind. The persona is
// dropped and the debate continues without it.
type SessionStartError struct {
	Persona string
	Err     error
}

func (e *SessionStartError) Error() string {
	return fmt.Sprintf("failed to start session for %s: %v", e.Persona, e.Err)
}

func (e *SessionStartError) Unwrap() error { return e.Err }

// ReplyDispatchError means a persona could not be asked to speak. It is
// logged and the schedule moves on.
type ReplyDispatchError struct {
	Persona      string
	Round        int
	Index        int
	Introduction bool
	Err          error
}

func (e *ReplyDispatchError) Error() string {
	if e.Introduction {
		return fmt.Sprintf("failed to dispatch introduction for %s: %v", e.Persona, e.Err)
	}
	return fmt.Sprintf("failed to dispatch reply for %s (round %d, turn %d): %v", e.Persona, e.Round, e.Index, e.Err)
}

func (e *ReplyDispatchError) Unwrap() error { return e.Err }

type SessionCloseError struct {
	Persona string
	Err     error
}

func (e *SessionCloseError) Error() string {
	return fmt.Sprintf("failed to close session for %s: %v", e.Persona, e.Err)
}

func (e *SessionCloseError) Unwrap() error { return e.Err }

// DebateAbortedError is returned when no persona could join the debate.
type DebateAbortedError struct {
	Failures []*SessionStartError
}

func (e *DebateAbortedError) Error() string {
	if len(e.Failures) == 0 {
		return "debate aborted: no personas requested"
	}

	reasons := make([]string, 0, len(e.Failures))
	for _, failure := range e.Failures {
		reasons = append(reasons, failure.Error())
	}
	return "debate aborted: no session started: " + strings.Join(reasons, "; ")
}

func (e *DebateAbortedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, failure := range e.Failures {
		errs = append(errs, failure)
	}
	return errs
}
