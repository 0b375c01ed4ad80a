// Package threads abstracts the remote conversational model service: an
// asynchronous API of threads (persistent conversations) and runs (one
// attempt to produce the assistant's next turn, possibly pausing for tool
// execution).
package threads

import "context"

// RunStatus is the remote run status string.
type RunStatus string

const (
	StatusQueued         RunStatus = "queued"
	StatusInProgress     RunStatus = "in_progress"
	StatusRequiresAction RunStatus = "requires_action"
	StatusCompleted      RunStatus = "completed"
	StatusFailed         RunStatus = "failed"
	StatusCancelling     RunStatus = "cancelling"
	StatusCancelled      RunStatus = "cancelled"
	StatusExpired        RunStatus = "expired"
)

// Terminal reports whether the run has reached a state it cannot leave.
// requires_action is not terminal: the run is waiting on tool outputs.
func (s RunStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusExpired:
		return true
	default:
		return false
	}
}

// ToolCall is one request, within a requires_action run, to execute a named
// operation with a JSON argument payload.
type ToolCall struct {
	// ID is the correlation id the matching ToolOutput must carry.
	ID string

	// Name is the operation name.
	Name string

	// Arguments is the raw JSON argument payload.
	Arguments string
}

// ToolOutput is the result of one ToolCall. The remote protocol requires the
// full batch to be submitted together; partial submission is rejected.
type ToolOutput struct {
	ToolCallID string
	Output     string
}

// Usage reports token consumption for a completed run.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Run is a snapshot of one remote run.
type Run struct {
	ID     string
	Status RunStatus

	// ToolCalls is populated when Status is requires_action.
	ToolCalls []ToolCall

	// LastError is the remote failure reason when Status is failed.
	LastError string

	// Usage is populated on terminal runs when the service reports it.
	Usage *Usage
}

// Service is the engine's only view of the remote model service. Any
// transport is acceptable as long as it preserves these semantics.
type Service interface {
	// CreateThread creates a new remote conversation and returns its id.
	CreateThread(ctx context.Context) (string, error)

	// AddMessage appends a message to the thread. Append-only; provider-side
	// limits surface later as a failed run.
	AddMessage(ctx context.Context, threadID, role, content string) error

	// CreateRun starts a run on the thread with additional per-turn
	// instructions.
	CreateRun(ctx context.Context, threadID, instructions string) (*Run, error)

	// GetRun fetches the current run snapshot.
	GetRun(ctx context.Context, threadID, runID string) (*Run, error)

	// ListRuns returns the most recent runs on the thread, newest first.
	ListRuns(ctx context.Context, threadID string, limit int) ([]*Run, error)

	// CancelRun requests cancellation of a run. Cancellation is asynchronous;
	// callers must re-check the run status to verify.
	CancelRun(ctx context.Context, threadID, runID string) error

	// SubmitToolOutputs submits the full batch of tool outputs for a
	// requires_action run and returns the refreshed run snapshot.
	SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) (*Run, error)

	// LatestAssistantMessage returns the text of the most recent assistant
	// message on the thread.
	LatestAssistantMessage(ctx context.Context, threadID string) (string, error)
}
