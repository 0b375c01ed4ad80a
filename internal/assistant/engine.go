// Package assistant implements the orchestration engine that binds users to
// remote conversation threads, drives the asynchronous run state machine of a
// single turn, and dispatches tool invocations to domain operations.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ledgerline/ledgerline/internal/assistant/threads"
	"github.com/ledgerline/ledgerline/internal/sessions"
	"github.com/ledgerline/ledgerline/pkg/models"
)

// StatusFunc receives coarse progress updates ("thinking", "working",
// "finishing") during a turn. Callbacks must not block.
type StatusFunc func(status string)

// Config tunes the engine's run state machine and recovery behavior.
type Config struct {
	// PollInterval is the run status polling cadence. Default: 1s.
	PollInterval time.Duration

	// RunTimeout bounds one turn's wall clock. Default: 45s.
	RunTimeout time.Duration

	// MaxToolDepth bounds requires_action rounds per turn. Default: 5.
	MaxToolDepth int

	// ToolConcurrency bounds concurrent operations within a batch. Default: 4.
	ToolConcurrency int

	// CancelVerifyWait is how long to wait between cancelling a stale run and
	// re-checking its status. Default: 2s.
	CancelVerifyWait time.Duration

	// ReconcileRunWindow is how many recent runs to inspect for stale
	// non-terminal runs. Default: 5.
	ReconcileRunWindow int
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		PollInterval:       time.Second,
		RunTimeout:         45 * time.Second,
		MaxToolDepth:       5,
		ToolConcurrency:    4,
		CancelVerifyWait:   2 * time.Second,
		ReconcileRunWindow: 5,
	}
}

func sanitizeConfig(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = defaults.RunTimeout
	}
	if cfg.MaxToolDepth <= 0 {
		cfg.MaxToolDepth = defaults.MaxToolDepth
	}
	if cfg.ToolConcurrency <= 0 {
		cfg.ToolConcurrency = defaults.ToolConcurrency
	}
	if cfg.CancelVerifyWait <= 0 {
		cfg.CancelVerifyWait = defaults.CancelVerifyWait
	}
	if cfg.ReconcileRunWindow <= 0 {
		cfg.ReconcileRunWindow = defaults.ReconcileRunWindow
	}
	return cfg
}

// Engine orchestrates conversational turns for all users. Turns for
// different users run concurrently; turns for the same user are serialized by
// a per-user lock.
type Engine struct {
	threads    threads.Service
	sessions   sessions.Store
	registry   *Registry
	dispatcher *Dispatcher
	cfg        Config
	logger     *slog.Logger

	userLocksMu sync.Mutex
	userLocks   map[string]*userLock
}

// New creates an engine. The registry must already hold the full operation
// catalog; it is not safe to register operations once turns are running.
func New(svc threads.Service, store sessions.Store, registry *Registry, cfg Config, logger *slog.Logger) (*Engine, error) {
	if svc == nil {
		return nil, ErrNoService
	}
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg = sanitizeConfig(cfg)

	return &Engine{
		threads:    svc,
		sessions:   store,
		registry:   registry,
		dispatcher: NewDispatcher(registry, cfg.ToolConcurrency, logger),
		cfg:        cfg,
		logger:     logger,
		userLocks:  map[string]*userLock{},
	}, nil
}

// SendMessage runs one conversational turn for the user and returns the
// assistant's reply with any records created along the way. Concurrent calls
// for the same user are serialized.
func (e *Engine) SendMessage(ctx context.Context, userID, text string, chatCtx models.ChatContext, onStatus StatusFunc) (*TurnResult, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	if text == "" {
		return nil, errors.New("message text is required")
	}

	unlock := e.lockUser(userID)
	defer unlock()

	session, err := e.resolveSession(ctx, userID)
	if err != nil {
		return nil, turnErr(PhaseResolve, 0, err)
	}
	session, err = e.reconcileStaleRuns(ctx, session)
	if err != nil {
		return nil, turnErr(PhaseResolve, 0, err)
	}

	result, turnFailure := e.runTurn(ctx, session.ThreadID, userID, text, chatCtx, onStatus)
	if turnFailure != nil {
		// The turn already produced a user-facing result; the error is for
		// operators.
		e.logger.Warn("turn ended abnormally",
			"user_id", userID,
			"session_id", session.ID,
			"status", result.Status,
			"error", turnFailure,
		)
	}

	e.mirrorTurn(ctx, session.ID, text, result)
	return result, nil
}

// ClearSession deactivates the user's active session and deletes its
// mirrored messages. Clearing when no session exists is a no-op.
func (e *Engine) ClearSession(ctx context.Context, userID string) error {
	unlock := e.lockUser(userID)
	defer unlock()

	session, err := e.sessions.GetActive(ctx, userID)
	if errors.Is(err, sessions.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up session: %w", err)
	}

	if err := e.sessions.PurgeMessages(ctx, session.ID); err != nil {
		return fmt.Errorf("failed to purge messages: %w", err)
	}
	if err := e.sessions.Deactivate(ctx, session.ID); err != nil {
		return fmt.Errorf("failed to deactivate session: %w", err)
	}
	e.logger.Info("cleared session", "user_id", userID, "session_id", session.ID)
	return nil
}

// SessionMessages returns the mirrored transcript of the user's active
// session, oldest first. Users without an active session get an empty slice.
func (e *Engine) SessionMessages(ctx context.Context, userID string) ([]*models.ChatMessage, error) {
	session, err := e.sessions.GetActive(ctx, userID)
	if errors.Is(err, sessions.ErrNotFound) {
		return []*models.ChatMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}
	return e.sessions.Messages(ctx, session.ID, 200)
}

// resolveSession returns the user's active session, creating a fresh remote
// thread and session record when none exists.
func (e *Engine) resolveSession(ctx context.Context, userID string) (*models.Session, error) {
	session, err := e.sessions.GetActive(ctx, userID)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, sessions.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}
	return e.createSession(ctx, userID)
}

func (e *Engine) createSession(ctx context.Context, userID string) (*models.Session, error) {
	threadID, err := e.threads.CreateThread(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create thread: %w", err)
	}
	session := &models.Session{
		UserID:   userID,
		ThreadID: threadID,
		Active:   true,
	}
	if err := e.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}
	e.logger.Info("created session", "user_id", userID, "session_id", session.ID, "thread_id", threadID)
	return session, nil
}

// reconcileStaleRuns guards against turns left in flight by a previous crash
// or network loss. A lingering non-terminal run is cancelled and re-checked;
// if it refuses to die, the whole session is abandoned and replaced — a
// remote thread is undefined once a cancel was issued but never confirmed.
func (e *Engine) reconcileStaleRuns(ctx context.Context, session *models.Session) (*models.Session, error) {
	runs, err := e.threads.ListRuns(ctx, session.ThreadID, e.cfg.ReconcileRunWindow)
	if err != nil {
		// Can't tell whether a run is stuck. Proceed; a genuinely stuck run
		// will surface as a failed message append and the next turn retries.
		e.logger.Warn("failed to list runs during reconciliation",
			"session_id", session.ID, "error", err)
		return session, nil
	}

	var stale *threads.Run
	for _, run := range runs {
		if !run.Status.Terminal() {
			stale = run
			break
		}
	}
	if stale == nil {
		return session, nil
	}

	e.logger.Info("found stale run, attempting cancel",
		"session_id", session.ID, "run_id", stale.ID, "status", stale.Status)

	if err := e.threads.CancelRun(ctx, session.ThreadID, stale.ID); err != nil {
		e.logger.Warn("stale run cancel failed, replacing session",
			"session_id", session.ID, "run_id", stale.ID, "error", err)
		return e.replaceSession(ctx, session)
	}

	select {
	case <-time.After(e.cfg.CancelVerifyWait):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	run, err := e.threads.GetRun(ctx, session.ThreadID, stale.ID)
	if err != nil || !run.Status.Terminal() {
		e.logger.Warn("stale run did not reach a terminal state, replacing session",
			"session_id", session.ID, "run_id", stale.ID)
		return e.replaceSession(ctx, session)
	}
	return session, nil
}

// replaceSession abandons a session and creates a fresh one. This favors
// availability over remote-thread continuity.
func (e *Engine) replaceSession(ctx context.Context, session *models.Session) (*models.Session, error) {
	if err := e.sessions.Deactivate(ctx, session.ID); err != nil {
		e.logger.Warn("failed to deactivate abandoned session",
			"session_id", session.ID, "error", err)
	}
	return e.createSession(ctx, session.UserID)
}

// mirrorTurn records both sides of the turn for UI replay. Mirror failures
// are logged and swallowed; the mirror is not involved in turn correctness.
func (e *Engine) mirrorTurn(ctx context.Context, sessionID, userText string, result *TurnResult) {
	userMsg := &models.ChatMessage{
		SessionID: sessionID,
		Role:      models.RoleUser,
		Content:   userText,
	}
	if err := e.sessions.AppendMessage(ctx, userMsg); err != nil {
		e.logger.Warn("failed to mirror user message", "session_id", sessionID, "error", err)
	}

	assistantMsg := &models.ChatMessage{
		SessionID:   sessionID,
		Role:        models.RoleAssistant,
		Content:     result.Content,
		Attachments: result.Attachments,
	}
	if err := e.sessions.AppendMessage(ctx, assistantMsg); err != nil {
		e.logger.Warn("failed to mirror assistant message", "session_id", sessionID, "error", err)
	}
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// lockUser serializes turns per user. Locks are refcounted so the map does
// not grow with every user ever seen.
func (e *Engine) lockUser(userID string) func() {
	e.userLocksMu.Lock()
	lock := e.userLocks[userID]
	if lock == nil {
		lock = &userLock{}
		e.userLocks[userID] = lock
	}
	lock.refs++
	e.userLocksMu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		e.userLocksMu.Lock()
		lock.refs--
		if lock.refs <= 0 {
			delete(e.userLocks, userID)
		}
		e.userLocksMu.Unlock()
	}
}
