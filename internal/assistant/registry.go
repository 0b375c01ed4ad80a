package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ledgerline/ledgerline/internal/assistant/threads"
	"github.com/ledgerline/ledgerline/pkg/models"
)

// Operation is a named, schema-described domain operation the assistant can
// invoke. Implementations must be safe for concurrent use.
type Operation interface {
	// Name returns the operation name used by the remote model for function
	// calling. Must be a valid function name (alphanumeric, underscores).
	Name() string

	// Description returns a natural language description of what the
	// operation does. This helps the model decide when to call it.
	Description() string

	// Schema returns the JSON Schema for the operation's arguments.
	Schema() json.RawMessage

	// Run executes the operation with validated JSON arguments on behalf of
	// the given user.
	Run(ctx context.Context, args json.RawMessage, userID string) (*Result, error)
}

// Result is the structured outcome of one operation. It is serialized as the
// tool output returned to the remote model; Attachments stay local and are
// surfaced to the UI instead.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`

	// Data carries structured payload the model may narrate from.
	Data map[string]any `json:"data,omitempty"`

	// ShowPaywall tells the UI to present the subscription screen.
	ShowPaywall bool `json:"show_paywall,omitempty"`

	// Attachments are created/updated records for the UI, not sent remotely.
	Attachments []models.Attachment `json:"-"`
}

// Registry is the fixed catalog of domain operations. Registration compiles
// each operation's schema so unknown names and malformed schemas fail at
// startup rather than mid-conversation.
type Registry struct {
	mu      sync.RWMutex
	ops     map[string]Operation
	schemas map[string]*jsonschema.Schema
}

// NewRegistry creates an empty operation registry.
func NewRegistry() *Registry {
	return &Registry{
		ops:     make(map[string]Operation),
		schemas: make(map[string]*jsonschema.Schema),
	}
}

// Register adds an operation to the registry. It fails on duplicate names and
// on schemas that do not compile.
func (r *Registry) Register(op Operation) error {
	name := op.Name()
	if name == "" {
		return fmt.Errorf("operation has empty name")
	}

	compiler := jsonschema.NewCompiler()
	url := name + ".schema.json"
	if err := compiler.AddResource(url, bytes.NewReader(op.Schema())); err != nil {
		return fmt.Errorf("invalid schema for operation %s: %w", name, err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return fmt.Errorf("failed to compile schema for operation %s: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.ops[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateOperation, name)
	}
	r.ops[name] = op
	r.schemas[name] = schema
	return nil
}

// MustRegister registers an operation and panics on failure. Intended for
// startup wiring where a registration error is a programming bug.
func (r *Registry) MustRegister(op Operation) {
	if err := r.Register(op); err != nil {
		panic(err)
	}
}

// Get returns an operation by name.
func (r *Registry) Get(name string) (Operation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.ops[name]
	return op, ok
}

// ValidateArgs checks a raw argument payload against the operation's compiled
// schema. The operation must be registered.
func (r *Registry) ValidateArgs(name string, args json.RawMessage) error {
	r.mu.RLock()
	schema, ok := r.schemas[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrOperationNotFound, name)
	}

	var v any
	if err := json.Unmarshal(args, &v); err != nil {
		return fmt.Errorf("arguments are not valid JSON: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("arguments do not match schema: %w", err)
	}
	return nil
}

// ToolDefinitions returns the catalog as remote tool declarations, sorted by
// name so assistant creation is deterministic.
func (r *Registry) ToolDefinitions() []threads.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]threads.ToolDefinition, 0, len(r.ops))
	for _, op := range r.ops {
		defs = append(defs, threads.ToolDefinition{
			Name:        op.Name(),
			Description: op.Description(),
			Schema:      op.Schema(),
		})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Len returns the number of registered operations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ops)
}
