package assistant

import (
	"errors"
	"fmt"
)

// Common sentinel errors for engine operations
var (
	// ErrNoService indicates no remote thread service is configured
	ErrNoService = errors.New("no thread service configured")

	// ErrOperationNotFound indicates a requested operation doesn't exist
	ErrOperationNotFound = errors.New("operation not found")

	// ErrDuplicateOperation indicates two operations registered the same name
	ErrDuplicateOperation = errors.New("duplicate operation name")

	// ErrRunTimeout indicates a run exceeded the turn's wall-clock budget
	ErrRunTimeout = errors.New("run timed out")

	// ErrTooComplex indicates a turn exhausted its tool-call depth budget
	ErrTooComplex = errors.New("tool depth budget exhausted")
)

// TurnPhase represents a distinct phase in a conversational turn.
type TurnPhase string

const (
	// PhaseResolve is session resolution and stale-run reconciliation
	PhaseResolve TurnPhase = "resolve"

	// PhaseSubmit is user message append and run creation
	PhaseSubmit TurnPhase = "submit"

	// PhasePoll is the run status polling loop
	PhasePoll TurnPhase = "poll"

	// PhaseDispatch is tool batch execution and output submission
	PhaseDispatch TurnPhase = "dispatch"

	// PhaseFinish is final message retrieval and mirroring
	PhaseFinish TurnPhase = "finish"
)

// TurnError is an error that occurred while driving a conversational turn,
// annotated with the phase and tool depth it occurred at.
type TurnError struct {
	Phase TurnPhase
	Depth int
	Cause error
}

// Error implements the error interface.
func (e *TurnError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("turn error at %s (depth %d): %v", e.Phase, e.Depth, e.Cause)
	}
	return fmt.Sprintf("turn error at %s (depth %d)", e.Phase, e.Depth)
}

// Unwrap returns the underlying error.
func (e *TurnError) Unwrap() error {
	return e.Cause
}

func turnErr(phase TurnPhase, depth int, cause error) *TurnError {
	return &TurnError{Phase: phase, Depth: depth, Cause: cause}
}
