package assistant

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/ledgerline/ledgerline/internal/assistant/threads"
	"github.com/ledgerline/ledgerline/internal/sessions"
	"github.com/ledgerline/ledgerline/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEngineConfig() Config {
	return Config{
		PollInterval:       time.Millisecond,
		RunTimeout:         2 * time.Second,
		MaxToolDepth:       2,
		ToolConcurrency:    2,
		CancelVerifyWait:   time.Millisecond,
		ReconcileRunWindow: 5,
	}
}

func newTestEngine(t *testing.T, svc *fakeService, registry *Registry) (*Engine, *sessions.MemoryStore) {
	t.Helper()
	store := sessions.NewMemoryStore()
	engine, err := New(svc, store, registry, testEngineConfig(), testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return engine, store
}

func TestNewRequiresService(t *testing.T) {
	if _, err := New(nil, sessions.NewMemoryStore(), nil, Config{}, nil); !errors.Is(err, ErrNoService) {
		t.Fatalf("expected ErrNoService, got %v", err)
	}
}

func TestSendMessageCompletes(t *testing.T) {
	svc := newFakeService("Invoice created.")
	engine, store := newTestEngine(t, svc, NewRegistry())

	result, err := engine.SendMessage(context.Background(), "user-1", "make an invoice", models.ChatContext{}, nil)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if result.Status != TurnCompleted {
		t.Fatalf("status = %s, want %s", result.Status, TurnCompleted)
	}
	if result.Content != "Invoice created." {
		t.Fatalf("content = %q", result.Content)
	}

	session, err := store.GetActive(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if session.ThreadID != "thread-1" {
		t.Fatalf("thread id = %q", session.ThreadID)
	}

	messages, err := store.Messages(context.Background(), session.ID, 0)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("mirrored %d messages, want 2", len(messages))
	}
	if messages[0].Role != models.RoleUser || messages[0].Content != "make an invoice" {
		t.Fatalf("user mirror = %+v", messages[0])
	}
	if messages[1].Role != models.RoleAssistant || messages[1].Content != "Invoice created." {
		t.Fatalf("assistant mirror = %+v", messages[1])
	}
}

func TestSendMessageReusesSession(t *testing.T) {
	svc := newFakeService("ok")
	engine, store := newTestEngine(t, svc, NewRegistry())

	ctx := context.Background()
	if _, err := engine.SendMessage(ctx, "user-1", "first", models.ChatContext{}, nil); err != nil {
		t.Fatalf("first SendMessage: %v", err)
	}
	if _, err := engine.SendMessage(ctx, "user-1", "second", models.ChatContext{}, nil); err != nil {
		t.Fatalf("second SendMessage: %v", err)
	}

	if svc.threadSeq != 1 {
		t.Fatalf("created %d threads, want 1", svc.threadSeq)
	}
	session, err := store.GetActive(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	messages, _ := store.Messages(ctx, session.ID, 0)
	if len(messages) != 4 {
		t.Fatalf("mirrored %d messages, want 4", len(messages))
	}
}

func TestSendMessageToolRound(t *testing.T) {
	registry := NewRegistry()
	op := &stubOp{
		name: "record_payment",
		result: &Result{
			Success: true,
			Message: "done",
			Attachments: []models.Attachment{
				{Type: "payment", Record: map[string]any{"id": "p1"}},
			},
		},
	}
	if err := registry.Register(op); err != nil {
		t.Fatalf("Register: %v", err)
	}

	svc := newFakeService("All recorded.")
	svc.script = []scriptedPoll{
		{
			status: threads.StatusRequiresAction,
			toolCalls: []threads.ToolCall{
				{ID: "call-1", Name: "record_payment", Arguments: `{}`},
				{ID: "call-2", Name: "record_payment", Arguments: `{}`},
			},
		},
		{status: threads.StatusCompleted, usage: &threads.Usage{TotalTokens: 42}},
	}

	engine, _ := newTestEngine(t, svc, registry)
	result, err := engine.SendMessage(context.Background(), "user-1", "log two payments", models.ChatContext{}, nil)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if result.Status != TurnCompleted {
		t.Fatalf("status = %s", result.Status)
	}
	if op.callCount() != 2 {
		t.Fatalf("operation ran %d times, want 2", op.callCount())
	}
	if svc.submissionCount() != 1 {
		t.Fatalf("submitted %d batches, want 1", svc.submissionCount())
	}
	outputs := svc.submissions[0]
	if len(outputs) != 2 {
		t.Fatalf("submitted %d outputs, want 2", len(outputs))
	}
	if outputs[0].ToolCallID != "call-1" || outputs[1].ToolCallID != "call-2" {
		t.Fatalf("outputs out of order: %q, %q", outputs[0].ToolCallID, outputs[1].ToolCallID)
	}
	if len(result.Attachments) != 2 {
		t.Fatalf("got %d attachments, want 2", len(result.Attachments))
	}
	if result.Usage == nil || result.Usage.TotalTokens != 42 {
		t.Fatalf("usage = %+v", result.Usage)
	}
}

func TestSendMessageMergesAttachmentsAcrossRounds(t *testing.T) {
	registry := NewRegistry()
	op := &stubOp{
		name: "record_payment",
		result: &Result{
			Success:     true,
			Attachments: []models.Attachment{{Type: "payment", Record: map[string]any{}}},
		},
	}
	if err := registry.Register(op); err != nil {
		t.Fatalf("Register: %v", err)
	}

	round := scriptedPoll{
		status:    threads.StatusRequiresAction,
		toolCalls: []threads.ToolCall{{ID: "call-a", Name: "record_payment", Arguments: `{}`}},
	}
	svc := newFakeService("done")
	svc.script = []scriptedPoll{round, round, {status: threads.StatusCompleted}}

	engine, _ := newTestEngine(t, svc, registry)
	result, err := engine.SendMessage(context.Background(), "user-1", "two steps", models.ChatContext{}, nil)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if result.Status != TurnCompleted {
		t.Fatalf("status = %s", result.Status)
	}
	if len(result.Attachments) != 2 {
		t.Fatalf("got %d attachments across rounds, want 2", len(result.Attachments))
	}
}

func TestSendMessageDepthExhausted(t *testing.T) {
	requiresAction := scriptedPoll{
		status: threads.StatusRequiresAction,
		toolCalls: []threads.ToolCall{
			{ID: "call-x", Name: "no_such_operation", Arguments: `{}`},
		},
	}

	svc := newFakeService("unused")
	svc.script = []scriptedPoll{requiresAction, requiresAction, requiresAction}

	engine, _ := newTestEngine(t, svc, NewRegistry())
	result, err := engine.SendMessage(context.Background(), "user-1", "loop forever", models.ChatContext{}, nil)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if result.Status != TurnTooComplex {
		t.Fatalf("status = %s, want %s", result.Status, TurnTooComplex)
	}
	if result.Content != tooComplexReply {
		t.Fatalf("content = %q", result.Content)
	}
	// Depth 2 allows two rounds; the third requires_action triggers abandon.
	if svc.submissionCount() != 2 {
		t.Fatalf("submitted %d batches, want 2", svc.submissionCount())
	}
	if svc.cancelCount() == 0 {
		t.Fatal("abandoned run was not cancelled")
	}
}

func TestSendMessageTimesOut(t *testing.T) {
	svc := newFakeService("unused")
	svc.alwaysInProgress = true

	store := sessions.NewMemoryStore()
	cfg := testEngineConfig()
	cfg.RunTimeout = 25 * time.Millisecond
	cfg.PollInterval = 2 * time.Millisecond
	engine, err := New(svc, store, NewRegistry(), cfg, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := engine.SendMessage(context.Background(), "user-1", "slow", models.ChatContext{}, nil)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if result.Status != TurnTimedOut {
		t.Fatalf("status = %s, want %s", result.Status, TurnTimedOut)
	}
	if result.Content != timedOutReply {
		t.Fatalf("content = %q", result.Content)
	}
	if svc.cancelCount() == 0 {
		t.Fatal("in-flight run was not cancelled")
	}
}

func TestSendMessageCancelledByCaller(t *testing.T) {
	svc := newFakeService("unused")
	svc.alwaysInProgress = true

	engine, _ := newTestEngine(t, svc, NewRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	result, err := engine.SendMessage(ctx, "user-1", "never mind", models.ChatContext{}, nil)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if result.Status != TurnCancelled {
		t.Fatalf("status = %s, want %s", result.Status, TurnCancelled)
	}
	if result.Content != cancelledReply {
		t.Fatalf("content = %q", result.Content)
	}
}

func TestSendMessageRemoteFailure(t *testing.T) {
	svc := newFakeService("unused")
	svc.script = []scriptedPoll{{status: threads.StatusFailed, lastError: "model overloaded"}}

	engine, _ := newTestEngine(t, svc, NewRegistry())
	result, err := engine.SendMessage(context.Background(), "user-1", "hi", models.ChatContext{}, nil)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if result.Status != TurnFailed {
		t.Fatalf("status = %s, want %s", result.Status, TurnFailed)
	}
	if !strings.Contains(result.Content, "model overloaded") {
		t.Fatalf("content does not carry remote reason: %q", result.Content)
	}
}

func TestSendMessageAppendFailure(t *testing.T) {
	svc := newFakeService("unused")
	svc.addMessageErr = errors.New("thread is locked")

	engine, _ := newTestEngine(t, svc, NewRegistry())
	result, err := engine.SendMessage(context.Background(), "user-1", "hi", models.ChatContext{}, nil)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if result.Status != TurnFailed {
		t.Fatalf("status = %s, want %s", result.Status, TurnFailed)
	}
	if result.Content != failedReply {
		t.Fatalf("content = %q", result.Content)
	}
}

func TestSendMessageValidatesInput(t *testing.T) {
	svc := newFakeService("unused")
	engine, _ := newTestEngine(t, svc, NewRegistry())

	if _, err := engine.SendMessage(context.Background(), "", "hi", models.ChatContext{}, nil); err == nil {
		t.Fatal("expected error for empty user id")
	}
	if _, err := engine.SendMessage(context.Background(), "user-1", "", models.ChatContext{}, nil); err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestReconcileCancelsStaleRun(t *testing.T) {
	svc := newFakeService("welcome back")
	svc.staleRuns = []*threads.Run{{ID: "stale-1", Status: threads.StatusInProgress}}
	svc.cancelBecomes = threads.StatusCancelled

	engine, store := newTestEngine(t, svc, NewRegistry())
	ctx := context.Background()

	// Seed an existing session pointing at the thread with the stale run.
	session := &models.Session{UserID: "user-1", ThreadID: "thread-old", Active: true}
	if err := store.Create(ctx, session); err != nil {
		t.Fatalf("Create: %v", err)
	}

	result, err := engine.SendMessage(ctx, "user-1", "hello again", models.ChatContext{}, nil)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if result.Status != TurnCompleted {
		t.Fatalf("status = %s", result.Status)
	}
	if svc.cancelCount() != 1 {
		t.Fatalf("cancelled %d runs, want 1", svc.cancelCount())
	}

	// Cancel was confirmed, so the session survives.
	active, err := store.GetActive(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if active.ID != session.ID {
		t.Fatal("session was replaced despite confirmed cancel")
	}
}

func TestReconcileReplacesUnkillableSession(t *testing.T) {
	svc := newFakeService("fresh start")
	svc.staleRuns = []*threads.Run{{ID: "stale-1", Status: threads.StatusInProgress}}
	// cancelBecomes stays empty: the stale run never leaves in_progress.

	engine, store := newTestEngine(t, svc, NewRegistry())
	ctx := context.Background()

	session := &models.Session{UserID: "user-1", ThreadID: "thread-old", Active: true}
	if err := store.Create(ctx, session); err != nil {
		t.Fatalf("Create: %v", err)
	}

	result, err := engine.SendMessage(ctx, "user-1", "hello", models.ChatContext{}, nil)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if result.Status != TurnCompleted {
		t.Fatalf("status = %s", result.Status)
	}

	active, err := store.GetActive(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if active.ID == session.ID {
		t.Fatal("session was not replaced")
	}
	if active.ThreadID != "thread-1" {
		t.Fatalf("replacement thread = %q", active.ThreadID)
	}
}

func TestReconcileListFailureProceeds(t *testing.T) {
	svc := newFakeService("still works")
	svc.listRunsErr = errors.New("listing unavailable")

	engine, store := newTestEngine(t, svc, NewRegistry())
	ctx := context.Background()

	session := &models.Session{UserID: "user-1", ThreadID: "thread-old", Active: true}
	if err := store.Create(ctx, session); err != nil {
		t.Fatalf("Create: %v", err)
	}

	result, err := engine.SendMessage(ctx, "user-1", "hello", models.ChatContext{}, nil)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if result.Status != TurnCompleted {
		t.Fatalf("status = %s", result.Status)
	}
}

func TestClearSession(t *testing.T) {
	svc := newFakeService("ok")
	engine, store := newTestEngine(t, svc, NewRegistry())
	ctx := context.Background()

	// Clearing without a session is a no-op.
	if err := engine.ClearSession(ctx, "user-1"); err != nil {
		t.Fatalf("ClearSession on empty: %v", err)
	}

	if _, err := engine.SendMessage(ctx, "user-1", "hi", models.ChatContext{}, nil); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	session, err := store.GetActive(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}

	if err := engine.ClearSession(ctx, "user-1"); err != nil {
		t.Fatalf("ClearSession: %v", err)
	}
	if _, err := store.GetActive(ctx, "user-1"); !errors.Is(err, sessions.ErrNotFound) {
		t.Fatalf("session still active after clear: %v", err)
	}
	messages, err := store.Messages(ctx, session.ID, 0)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("%d messages survived the purge", len(messages))
	}

	// Clearing twice stays a no-op.
	if err := engine.ClearSession(ctx, "user-1"); err != nil {
		t.Fatalf("second ClearSession: %v", err)
	}
}

func TestSessionMessagesWithoutSession(t *testing.T) {
	svc := newFakeService("ok")
	engine, _ := newTestEngine(t, svc, NewRegistry())

	messages, err := engine.SessionMessages(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("SessionMessages: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("got %d messages, want 0", len(messages))
	}
}

func TestStatusCallbacks(t *testing.T) {
	registry := NewRegistry()
	op := &stubOp{name: "noop", result: &Result{Success: true}}
	if err := registry.Register(op); err != nil {
		t.Fatalf("Register: %v", err)
	}

	svc := newFakeService("done")
	svc.script = []scriptedPoll{
		{
			status:    threads.StatusRequiresAction,
			toolCalls: []threads.ToolCall{{ID: "call-1", Name: "noop", Arguments: `{}`}},
		},
		{status: threads.StatusCompleted},
	}

	engine, _ := newTestEngine(t, svc, registry)
	var statuses []string
	_, err := engine.SendMessage(context.Background(), "user-1", "go", models.ChatContext{}, func(s string) {
		statuses = append(statuses, s)
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	want := []string{"thinking", "working", "finishing"}
	if len(statuses) != len(want) {
		t.Fatalf("statuses = %v, want %v", statuses, want)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Fatalf("statuses = %v, want %v", statuses, want)
		}
	}
}
