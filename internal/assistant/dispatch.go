package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ledgerline/ledgerline/internal/assistant/threads"
	"github.com/ledgerline/ledgerline/pkg/models"
)

// MaxOperationNameLength caps tool names to prevent pathological payloads.
const MaxOperationNameLength = 256

// MaxArgumentsSize caps a single invocation's JSON arguments (1MB).
const MaxArgumentsSize = 1 << 20

// Dispatcher executes batches of tool invocations against the operation
// registry. Invocations within a batch run concurrently, but the returned
// outputs always correspond 1:1, in order, with the input batch — the remote
// protocol rejects partial or reordered submissions.
type Dispatcher struct {
	registry    *Registry
	concurrency int
	logger      *slog.Logger
}

// NewDispatcher creates a dispatcher over the given registry.
// A concurrency of zero or less defaults to 4.
func NewDispatcher(registry *Registry, concurrency int, logger *slog.Logger) *Dispatcher {
	if concurrency <= 0 {
		concurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry:    registry,
		concurrency: concurrency,
		logger:      logger,
	}
}

// DispatchResult is the outcome of one batch.
type DispatchResult struct {
	// Outputs has exactly one entry per input invocation, in input order.
	Outputs []threads.ToolOutput

	// Attachments are the records produced by successful operations,
	// in invocation order.
	Attachments []models.Attachment
}

// Dispatch executes every invocation in the batch and returns one output per
// invocation. Argument parse failures, unknown operations, and operation
// errors all become structured failure outputs; a batch never aborts because
// one invocation is malformed.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []threads.ToolCall, userID string) DispatchResult {
	results := make([]*Result, len(calls))

	sem := make(chan struct{}, d.concurrency)
	var wg sync.WaitGroup

	for i, tc := range calls {
		wg.Add(1)
		go func(idx int, call threads.ToolCall) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = failureResult("cancelled", "the request was cancelled before this operation ran")
				return
			}

			results[idx] = d.execute(ctx, call, userID)
		}(i, tc)
	}

	wg.Wait()

	out := DispatchResult{
		Outputs: make([]threads.ToolOutput, len(calls)),
	}
	for i, tc := range calls {
		res := results[i]
		if res == nil {
			res = failureResult("internal", "operation produced no result")
		}
		out.Outputs[i] = threads.ToolOutput{
			ToolCallID: tc.ID,
			Output:     encodeResult(res),
		}
		if res.Success && len(res.Attachments) > 0 {
			out.Attachments = append(out.Attachments, res.Attachments...)
		}
	}
	return out
}

// execute runs a single invocation, converting every failure mode into a
// structured Result.
func (d *Dispatcher) execute(ctx context.Context, call threads.ToolCall, userID string) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("operation panicked",
				"operation", call.Name,
				"tool_call_id", call.ID,
				"panic", r,
			)
			res = failureResult("panic", fmt.Sprintf("operation %s failed unexpectedly", call.Name))
		}
	}()

	if len(call.Name) > MaxOperationNameLength {
		return failureResult("invalid_name", "operation name exceeds maximum length")
	}
	if len(call.Arguments) > MaxArgumentsSize {
		return failureResult("arguments_too_large", fmt.Sprintf("arguments exceed maximum size of %d bytes", MaxArgumentsSize))
	}

	op, ok := d.registry.Get(call.Name)
	if !ok {
		d.logger.Warn("unknown operation requested", "operation", call.Name, "tool_call_id", call.ID)
		return failureResult("unknown_operation", "unknown operation: "+call.Name)
	}

	args := json.RawMessage(call.Arguments)
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if err := d.registry.ValidateArgs(call.Name, args); err != nil {
		return failureResult("invalid_arguments", err.Error())
	}

	result, err := op.Run(ctx, args, userID)
	if err != nil {
		d.logger.Warn("operation failed",
			"operation", call.Name,
			"tool_call_id", call.ID,
			"error", err,
		)
		return failureResult("execution_failed", err.Error())
	}
	if result == nil {
		return failureResult("internal", "operation returned no result")
	}
	return result
}

func failureResult(code, message string) *Result {
	return &Result{
		Success: false,
		Error:   code,
		Message: message,
	}
}

// encodeResult serializes a Result as the tool output payload. The payload
// always carries the success flag, even when encoding partially fails.
func encodeResult(res *Result) string {
	data, err := json.Marshal(res)
	if err != nil {
		return `{"success":false,"error":"encoding_failed"}`
	}
	return string(data)
}
