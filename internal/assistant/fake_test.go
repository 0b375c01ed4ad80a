package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/ledgerline/ledgerline/internal/assistant/threads"
)

// scriptedPoll is one GetRun answer for an engine-created run.
type scriptedPoll struct {
	status    threads.RunStatus
	toolCalls []threads.ToolCall
	lastError string
	usage     *threads.Usage
}

// fakeService scripts the remote service. GetRun consumes one scriptedPoll
// per call; an exhausted script reports completed. Runs whose id starts with
// "stale" answer with staleStatus instead, so reconciliation can be driven
// independently of the turn's own runs.
type fakeService struct {
	mu sync.Mutex

	threadSeq int
	runSeq    int
	reply     string

	script           []scriptedPoll
	alwaysInProgress bool

	staleRuns     []*threads.Run
	staleStatus   threads.RunStatus
	cancelBecomes threads.RunStatus

	userMessages []string
	submissions  [][]threads.ToolOutput
	cancelled    []string

	addMessageErr error
	cancelErr     error
	listRunsErr   error
}

func newFakeService(reply string) *fakeService {
	return &fakeService{reply: reply, staleStatus: threads.StatusInProgress}
}

func (f *fakeService) CreateThread(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threadSeq++
	return fmt.Sprintf("thread-%d", f.threadSeq), nil
}

func (f *fakeService) AddMessage(ctx context.Context, threadID, role, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addMessageErr != nil {
		return f.addMessageErr
	}
	f.userMessages = append(f.userMessages, content)
	return nil
}

func (f *fakeService) CreateRun(ctx context.Context, threadID, instructions string) (*threads.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runSeq++
	return &threads.Run{ID: fmt.Sprintf("run-%d", f.runSeq), Status: threads.StatusQueued}, nil
}

func (f *fakeService) GetRun(ctx context.Context, threadID, runID string) (*threads.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if strings.HasPrefix(runID, "stale") {
		return &threads.Run{ID: runID, Status: f.staleStatus}, nil
	}
	if f.alwaysInProgress {
		return &threads.Run{ID: runID, Status: threads.StatusInProgress}, nil
	}
	if len(f.script) == 0 {
		return &threads.Run{ID: runID, Status: threads.StatusCompleted}, nil
	}
	next := f.script[0]
	f.script = f.script[1:]
	return &threads.Run{
		ID:        runID,
		Status:    next.status,
		ToolCalls: next.toolCalls,
		LastError: next.lastError,
		Usage:     next.usage,
	}, nil
}

func (f *fakeService) ListRuns(ctx context.Context, threadID string, limit int) ([]*threads.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listRunsErr != nil {
		return nil, f.listRunsErr
	}
	return f.staleRuns, nil
}

func (f *fakeService) CancelRun(ctx context.Context, threadID, runID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, runID)
	if strings.HasPrefix(runID, "stale") && f.cancelBecomes != "" {
		f.staleStatus = f.cancelBecomes
	}
	return nil
}

func (f *fakeService) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []threads.ToolOutput) (*threads.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submissions = append(f.submissions, outputs)
	return &threads.Run{ID: runID, Status: threads.StatusQueued}, nil
}

func (f *fakeService) LatestAssistantMessage(ctx context.Context, threadID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reply, nil
}

func (f *fakeService) cancelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cancelled)
}

func (f *fakeService) submissionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submissions)
}

// stubOp is a scriptable Operation for registry and dispatch tests.
type stubOp struct {
	name   string
	result *Result
	err    error
	panics bool

	mu    sync.Mutex
	calls []json.RawMessage
}

func (o *stubOp) Name() string        { return o.name }
func (o *stubOp) Description() string { return "stub operation " + o.name }

func (o *stubOp) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object"}`)
}

func (o *stubOp) Run(ctx context.Context, args json.RawMessage, userID string) (*Result, error) {
	o.mu.Lock()
	o.calls = append(o.calls, append(json.RawMessage{}, args...))
	o.mu.Unlock()
	if o.panics {
		panic("stub exploded")
	}
	return o.result, o.err
}

func (o *stubOp) callCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.calls)
}
