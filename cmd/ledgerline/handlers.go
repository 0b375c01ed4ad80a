package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ledgerline/ledgerline/internal/assistant"
	"github.com/ledgerline/ledgerline/internal/assistant/threads"
	"github.com/ledgerline/ledgerline/internal/billing"
	"github.com/ledgerline/ledgerline/internal/config"
	"github.com/ledgerline/ledgerline/internal/sessions"
	toolsbilling "github.com/ledgerline/ledgerline/internal/tools/billing"
	"github.com/ledgerline/ledgerline/pkg/models"
)

// app holds the wired service graph shared by all commands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *sql.DB
	service  *threads.OpenAIService
	registry *assistant.Registry
	engine   *assistant.Engine
}

// buildApp loads configuration and wires stores, registry, remote service,
// and engine. Callers own Close.
func buildApp(configPath string, debug bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg.Logging.Level, cfg.Logging.Format, debug)

	db, err := sql.Open("sqlite3", cfg.Database.Path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sessionStore, err := sessions.NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init session store: %w", err)
	}
	billingStore, err := billing.NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init billing store: %w", err)
	}
	gate := billing.NewGate(billingStore, cfg.Limits.FreeDocumentLimit)

	registry := assistant.NewRegistry()
	if err := toolsbilling.RegisterAll(registry, billingStore, gate); err != nil {
		db.Close()
		return nil, err
	}

	service := threads.NewOpenAIService(threads.OpenAIConfig{
		APIKey:       cfg.Assistant.APIKey,
		Model:        cfg.Assistant.Model,
		AssistantID:  cfg.Assistant.AssistantID,
		Instructions: assistant.BaseInstructions,
	}, logger)

	engine, err := assistant.New(service, sessionStore, registry, assistant.Config{
		PollInterval:    cfg.Assistant.PollInterval,
		RunTimeout:      cfg.Assistant.RunTimeout,
		MaxToolDepth:    cfg.Assistant.MaxToolDepth,
		ToolConcurrency: cfg.Assistant.ToolConcurrency,
	}, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		service:  service,
		registry: registry,
		engine:   engine,
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// ensureAssistant resolves the remote assistant id before any turn runs.
func (a *app) ensureAssistant(ctx context.Context) error {
	id, err := a.service.EnsureAssistant(ctx, a.registry.ToolDefinitions())
	if err != nil {
		return err
	}
	if a.cfg.Assistant.AssistantID == "" {
		a.logger.Info("assistant not pinned in config; pin it to avoid re-creation",
			"assistant_id", id)
	}
	return nil
}

func runServe(ctx context.Context, configPath string, debug bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(configPath, debug)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.ensureAssistant(ctx); err != nil {
		return fmt.Errorf("failed to resolve assistant: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
	mux.HandleFunc("POST /v1/users/{user_id}/messages", a.handleSendMessage)
	mux.HandleFunc("GET /v1/users/{user_id}/messages", a.handleListMessages)
	mux.HandleFunc("DELETE /v1/users/{user_id}/session", a.handleClearSession)

	addr := net.JoinHostPort(a.cfg.Server.Host, strconv.Itoa(a.cfg.Server.HTTPPort))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type messageRequest struct {
	Text    string             `json:"text"`
	Context models.ChatContext `json:"context"`
}

func (a *app) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	result, err := a.engine.SendMessage(r.Context(), userID, req.Text, req.Context, nil)
	if err != nil {
		a.logger.Error("send message failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to process message")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *app) handleListMessages(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	messages, err := a.engine.SessionMessages(r.Context(), userID)
	if err != nil {
		a.logger.Error("list messages failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (a *app) handleClearSession(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	if err := a.engine.ClearSession(r.Context(), userID); err != nil {
		a.logger.Error("clear session failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to clear session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func runChat(ctx context.Context, configPath string, userID string, debug bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(configPath, debug)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.ensureAssistant(ctx); err != nil {
		return fmt.Errorf("failed to resolve assistant: %w", err)
	}

	fmt.Printf("Chatting as %s. /clear resets, /history replays, /quit exits.\n", userID)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return nil
		case line == "/clear":
			if err := a.engine.ClearSession(ctx, userID); err != nil {
				fmt.Println("error:", err)
				continue
			}
			fmt.Println("Session cleared.")
			continue
		case line == "/history":
			printTranscript(ctx, a, userID)
			continue
		}

		result, err := a.engine.SendMessage(ctx, userID, line, models.ChatContext{}, func(status string) {
			fmt.Printf("  [%s]\n", status)
		})
		if err != nil {
			fmt.Println("error:", err)
			continue
		}
		fmt.Println(result.Content)
		for _, att := range result.Attachments {
			fmt.Printf("  attached %s: %v\n", att.Type, att.Record)
		}
	}
	return scanner.Err()
}

func printTranscript(ctx context.Context, a *app, userID string) {
	messages, err := a.engine.SessionMessages(ctx, userID)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	for _, msg := range messages {
		fmt.Printf("[%s] %s\n", msg.Role, msg.Content)
	}
}

func runSessionsShow(ctx context.Context, configPath, userID string) error {
	a, err := buildApp(configPath, false)
	if err != nil {
		return err
	}
	defer a.Close()

	messages, err := a.engine.SessionMessages(ctx, userID)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		fmt.Println("No active session.")
		return nil
	}
	for _, msg := range messages {
		fmt.Printf("%s [%s] %s\n", msg.CreatedAt.Format(time.RFC3339), msg.Role, msg.Content)
	}
	return nil
}

func runSessionsClear(ctx context.Context, configPath, userID string) error {
	a, err := buildApp(configPath, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.engine.ClearSession(ctx, userID); err != nil {
		return err
	}
	fmt.Println("Session cleared.")
	return nil
}
