package threads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

// ToolDefinition declares one callable operation to the remote assistant.
type ToolDefinition struct {
	Name        string
	Description string
	Schema      json.RawMessage
}

// OpenAIConfig configures the OpenAI-backed Service.
type OpenAIConfig struct {
	APIKey string

	// Model is used when creating the assistant.
	Model string

	// AssistantID pins an existing assistant. When empty, EnsureAssistant
	// creates one.
	AssistantID string

	// Name and Instructions describe the assistant created by
	// EnsureAssistant.
	Name         string
	Instructions string
}

// OpenAIService implements Service against the OpenAI Assistants API.
//
// The assistant id is process-wide state: it is resolved once by
// EnsureAssistant and then read by every CreateRun. The service is safe for
// concurrent use.
type OpenAIService struct {
	client *openai.Client
	cfg    OpenAIConfig
	logger *slog.Logger

	mu          sync.RWMutex
	assistantID string
}

// NewOpenAIService creates a Service backed by the OpenAI Assistants API.
func NewOpenAIService(cfg OpenAIConfig, logger *slog.Logger) *OpenAIService {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Name == "" {
		cfg.Name = "Ledgerline Assistant"
	}
	return &OpenAIService{
		client:      openai.NewClient(cfg.APIKey),
		cfg:         cfg,
		logger:      logger,
		assistantID: cfg.AssistantID,
	}
}

// EnsureAssistant resolves the assistant id, creating a remote assistant with
// the given tool catalog when none is pinned. It must be called once at
// startup before any run is created.
func (s *OpenAIService) EnsureAssistant(ctx context.Context, tools []ToolDefinition) (string, error) {
	s.mu.RLock()
	id := s.assistantID
	s.mu.RUnlock()
	if id != "" {
		return id, nil
	}

	assistantTools := make([]openai.AssistantTool, 0, len(tools))
	for _, t := range tools {
		var params any
		if err := json.Unmarshal(t.Schema, &params); err != nil {
			return "", fmt.Errorf("invalid schema for tool %s: %w", t.Name, err)
		}
		assistantTools = append(assistantTools, openai.AssistantTool{
			Type: openai.AssistantToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}

	name := s.cfg.Name
	instructions := s.cfg.Instructions
	assistant, err := s.client.CreateAssistant(ctx, openai.AssistantRequest{
		Model:        s.cfg.Model,
		Name:         &name,
		Instructions: &instructions,
		Tools:        assistantTools,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create assistant: %w", err)
	}

	s.mu.Lock()
	s.assistantID = assistant.ID
	s.mu.Unlock()
	s.logger.Info("created remote assistant", "assistant_id", assistant.ID, "model", s.cfg.Model, "tools", len(tools))
	return assistant.ID, nil
}

func (s *OpenAIService) currentAssistantID() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.assistantID == "" {
		return "", errors.New("assistant id not resolved; call EnsureAssistant first")
	}
	return s.assistantID, nil
}

func (s *OpenAIService) CreateThread(ctx context.Context) (string, error) {
	thread, err := s.client.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", fmt.Errorf("failed to create thread: %w", err)
	}
	return thread.ID, nil
}

func (s *OpenAIService) AddMessage(ctx context.Context, threadID, role, content string) error {
	_, err := s.client.CreateMessage(ctx, threadID, openai.MessageRequest{
		Role:    role,
		Content: content,
	})
	if err != nil {
		return fmt.Errorf("failed to add message: %w", err)
	}
	return nil
}

func (s *OpenAIService) CreateRun(ctx context.Context, threadID, instructions string) (*Run, error) {
	assistantID, err := s.currentAssistantID()
	if err != nil {
		return nil, err
	}
	run, err := s.client.CreateRun(ctx, threadID, openai.RunRequest{
		AssistantID:            assistantID,
		AdditionalInstructions: instructions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return convertRun(&run), nil
}

func (s *OpenAIService) GetRun(ctx context.Context, threadID, runID string) (*Run, error) {
	run, err := s.client.RetrieveRun(ctx, threadID, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve run: %w", err)
	}
	return convertRun(&run), nil
}

func (s *OpenAIService) ListRuns(ctx context.Context, threadID string, limit int) ([]*Run, error) {
	list, err := s.client.ListRuns(ctx, threadID, openai.Pagination{Limit: &limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	runs := make([]*Run, 0, len(list.Runs))
	for i := range list.Runs {
		runs = append(runs, convertRun(&list.Runs[i]))
	}
	return runs, nil
}

func (s *OpenAIService) CancelRun(ctx context.Context, threadID, runID string) error {
	if _, err := s.client.CancelRun(ctx, threadID, runID); err != nil {
		return fmt.Errorf("failed to cancel run: %w", err)
	}
	return nil
}

func (s *OpenAIService) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) (*Run, error) {
	converted := make([]openai.ToolOutput, 0, len(outputs))
	for _, out := range outputs {
		converted = append(converted, openai.ToolOutput{
			ToolCallID: out.ToolCallID,
			Output:     out.Output,
		})
	}
	run, err := s.client.SubmitToolOutputs(ctx, threadID, runID, openai.SubmitToolOutputsRequest{
		ToolOutputs: converted,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to submit tool outputs: %w", err)
	}
	return convertRun(&run), nil
}

func (s *OpenAIService) LatestAssistantMessage(ctx context.Context, threadID string) (string, error) {
	limit := 1
	order := "desc"
	list, err := s.client.ListMessage(ctx, threadID, &limit, &order, nil, nil, nil)
	if err != nil {
		return "", fmt.Errorf("failed to list messages: %w", err)
	}
	for _, msg := range list.Messages {
		if msg.Role != "assistant" {
			continue
		}
		for _, part := range msg.Content {
			if part.Text != nil {
				return part.Text.Value, nil
			}
		}
	}
	return "", nil
}

func convertRun(run *openai.Run) *Run {
	out := &Run{
		ID:     run.ID,
		Status: RunStatus(run.Status),
	}
	if run.RequiredAction != nil && run.RequiredAction.SubmitToolOutputs != nil {
		for _, tc := range run.RequiredAction.SubmitToolOutputs.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
	}
	if run.LastError != nil {
		out.LastError = run.LastError.Message
	}
	if run.Usage.TotalTokens > 0 {
		usage := Usage{
			PromptTokens:     run.Usage.PromptTokens,
			CompletionTokens: run.Usage.CompletionTokens,
			TotalTokens:      run.Usage.TotalTokens,
		}
		out.Usage = &usage
	}
	return out
}
