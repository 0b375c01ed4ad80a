package models

import "time"

// Role identifies the author of a chat message.
type Role string

const (
	// RoleUser is a message written by the end user.
	RoleUser Role = "user"

	// RoleAssistant is a message produced by the assistant.
	RoleAssistant Role = "assistant"
)

// Session binds a user to one remote conversation thread.
//
// A user has at most one active session at any time. Sessions are
// deactivated, never deleted, when replaced or explicitly cleared.
type Session struct {
	// ID is the local session identifier.
	ID string `json:"id"`

	// UserID is the owning user.
	UserID string `json:"user_id"`

	// ThreadID is the opaque handle of the remote conversation thread.
	ThreadID string `json:"thread_id"`

	// Active reports whether this is the user's current session.
	Active bool `json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatMessage is the display copy of one side of a conversational turn.
//
// It is persisted independently of the remote thread purely for UI replay
// and is never read back by the orchestration engine.
type ChatMessage struct {
	ID          string       `json:"id"`
	SessionID   string       `json:"session_id"`
	Role        Role         `json:"role"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Attachment is a structured record produced by a domain operation and
// surfaced to the UI alongside the assistant's textual reply.
type Attachment struct {
	// Type describes the record kind (invoice, estimate, client, settings).
	Type string `json:"type"`

	// Record holds the record fields for UI rendering.
	Record map[string]any `json:"record"`
}

// ChatContext carries the recognized per-turn options the engine translates
// into additional run instructions. It is a configuration object, not free
// text.
type ChatContext struct {
	Currency       string `json:"currency,omitempty"`
	CurrencySymbol string `json:"currency_symbol,omitempty"`
	IsFirstInvoice bool   `json:"is_first_invoice,omitempty"`
	HasLogo        bool   `json:"has_logo,omitempty"`
}
