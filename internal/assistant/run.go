package assistant

import (
	"context"
	"errors"
	"time"

	"github.com/ledgerline/ledgerline/internal/assistant/threads"
	"github.com/ledgerline/ledgerline/pkg/models"
)

// TurnStatus is the terminal outcome of one conversational turn.
type TurnStatus string

const (
	// TurnCompleted means the assistant produced a reply.
	TurnCompleted TurnStatus = "completed"

	// TurnFailed means the remote service reported a failure or a transport
	// error aborted the turn.
	TurnFailed TurnStatus = "failed"

	// TurnTimedOut means the turn exceeded its wall-clock budget.
	TurnTimedOut TurnStatus = "timed_out"

	// TurnCancelled means the caller aborted the turn.
	TurnCancelled TurnStatus = "cancelled"

	// TurnTooComplex means the turn exhausted its tool depth budget.
	TurnTooComplex TurnStatus = "too_complex"
)

// TurnResult is what a completed (or abandoned) turn returns to the caller.
type TurnResult struct {
	Content     string              `json:"content"`
	Attachments []models.Attachment `json:"attachments,omitempty"`
	Status      TurnStatus          `json:"status"`
	Usage       *threads.Usage      `json:"usage,omitempty"`
}

// User-facing fallback texts for abnormal outcomes. The engine never
// surfaces raw errors to the caller.
const (
	failedReply     = "Sorry, something went wrong while I was working on that. Please try again."
	timedOutReply   = "Sorry, that took longer than expected. Please try again, perhaps with a simpler request."
	cancelledReply  = "That request was cancelled."
	tooComplexReply = "That request turned out to be too complex for me to finish. Please try breaking it into smaller steps."
)

// runTurn drives one conversational turn to a terminal state: append the
// user message, start a run, poll until terminal or requires_action, and on
// requires_action dispatch the tool batch and resubmit, consuming one unit of
// the depth budget per round.
//
// Attachments from every dispatched batch are accumulated across rounds.
// Transport errors abort the turn with a failed result; the error is
// returned alongside for logging, never shown to the user.
func (e *Engine) runTurn(ctx context.Context, threadID, userID, text string, chatCtx models.ChatContext, onStatus StatusFunc) (*TurnResult, error) {
	notify(onStatus, "thinking")

	if err := e.threads.AddMessage(ctx, threadID, "user", text); err != nil {
		return failedTurn(nil), turnErr(PhaseSubmit, 0, err)
	}

	run, err := e.threads.CreateRun(ctx, threadID, buildInstructions(chatCtx))
	if err != nil {
		return failedTurn(nil), turnErr(PhaseSubmit, 0, err)
	}

	// One wall-clock budget covers the whole turn, including every tool
	// round; a stalling remote service cannot extend it.
	turnCtx, cancel := context.WithTimeout(ctx, e.cfg.RunTimeout)
	defer cancel()

	var attachments []models.Attachment
	depth := e.cfg.MaxToolDepth
	runID := run.ID

	for {
		run, err = e.pollUntilActionable(turnCtx, threadID, runID)
		if err != nil {
			return e.abortedTurn(ctx, threadID, runID, attachments, err)
		}

		switch run.Status {
		case threads.StatusRequiresAction:
			if depth <= 0 {
				// A requires_action run left behind would block the session;
				// cancel it before giving up.
				e.bestEffortCancel(threadID, run.ID)
				result := &TurnResult{
					Content:     tooComplexReply,
					Attachments: attachments,
					Status:      TurnTooComplex,
				}
				return result, turnErr(PhaseDispatch, e.cfg.MaxToolDepth, ErrTooComplex)
			}
			depth--

			notify(onStatus, "working")
			batch := e.dispatcher.Dispatch(turnCtx, run.ToolCalls, userID)
			attachments = append(attachments, batch.Attachments...)

			run, err = e.threads.SubmitToolOutputs(turnCtx, threadID, runID, batch.Outputs)
			if err != nil {
				return failedTurn(attachments), turnErr(PhaseDispatch, depth, err)
			}
			runID = run.ID

		case threads.StatusCompleted:
			notify(onStatus, "finishing")
			content, err := e.threads.LatestAssistantMessage(ctx, threadID)
			if err != nil {
				return failedTurn(attachments), turnErr(PhaseFinish, depth, err)
			}
			return &TurnResult{
				Content:     content,
				Attachments: attachments,
				Status:      TurnCompleted,
				Usage:       run.Usage,
			}, nil

		case threads.StatusFailed, threads.StatusExpired:
			result := failedTurn(attachments)
			if run.LastError != "" {
				result.Content = failedReply + " (" + run.LastError + ")"
			}
			return result, nil

		case threads.StatusCancelled:
			return &TurnResult{
				Content:     cancelledReply,
				Attachments: attachments,
				Status:      TurnCancelled,
			}, nil

		default:
			return failedTurn(attachments), turnErr(PhasePoll, depth, errors.New("unexpected run status: "+string(run.Status)))
		}
	}
}

// pollUntilActionable polls the run on a fixed interval until it is terminal
// or requires action. The context carries the turn's wall-clock budget.
func (e *Engine) pollUntilActionable(ctx context.Context, threadID, runID string) (*threads.Run, error) {
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		run, err := e.threads.GetRun(ctx, threadID, runID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		if run.Status.Terminal() || run.Status == threads.StatusRequiresAction {
			return run, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// abortedTurn maps a polling failure to its terminal result: timed_out when
// the turn budget elapsed, cancelled when the caller aborted, failed for
// transport errors. The in-flight remote run is best-effort cancelled; if
// that is lost, stale-run reconciliation picks it up on the next turn.
func (e *Engine) abortedTurn(parent context.Context, threadID, runID string, attachments []models.Attachment, cause error) (*TurnResult, error) {
	e.bestEffortCancel(threadID, runID)

	switch {
	case parent.Err() != nil:
		return &TurnResult{
			Content:     cancelledReply,
			Attachments: attachments,
			Status:      TurnCancelled,
		}, turnErr(PhasePoll, 0, parent.Err())
	case errors.Is(cause, context.DeadlineExceeded):
		return &TurnResult{
			Content:     timedOutReply,
			Attachments: attachments,
			Status:      TurnTimedOut,
		}, turnErr(PhasePoll, 0, ErrRunTimeout)
	default:
		return failedTurn(attachments), turnErr(PhasePoll, 0, cause)
	}
}

// bestEffortCancel issues a cancel with a short independent deadline.
// Failures are swallowed; the run is either already terminal or will be
// reconciled later.
func (e *Engine) bestEffortCancel(threadID, runID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.threads.CancelRun(ctx, threadID, runID); err != nil {
		e.logger.Debug("best-effort run cancel failed", "thread_id", threadID, "run_id", runID, "error", err)
	}
}

func failedTurn(attachments []models.Attachment) *TurnResult {
	return &TurnResult{
		Content:     failedReply,
		Attachments: attachments,
		Status:      TurnFailed,
	}
}

func notify(onStatus StatusFunc, status string) {
	if onStatus != nil {
		onStatus(status)
	}
}
