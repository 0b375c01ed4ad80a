// Package sessions persists the user→thread session binding and the mirrored
// chat transcript used for UI replay.
package sessions

import (
	"context"
	"errors"

	"github.com/ledgerline/ledgerline/pkg/models"
)

// ErrNotFound is returned when no matching session exists.
var ErrNotFound = errors.New("session not found")

// Store is the interface for session persistence.
//
// Implementations must uphold the single-active invariant: creating an active
// session deactivates any previously active session for the same user in the
// same operation.
type Store interface {
	// Create persists a session. When session.Active is true, any other
	// active session for the user is deactivated first.
	Create(ctx context.Context, session *models.Session) error

	// GetActive returns the user's active session, or ErrNotFound.
	GetActive(ctx context.Context, userID string) (*models.Session, error)

	// Deactivate marks a session inactive. Deactivating an already inactive
	// session is not an error.
	Deactivate(ctx context.Context, sessionID string) error

	// AppendMessage records a display message for UI replay.
	AppendMessage(ctx context.Context, msg *models.ChatMessage) error

	// Messages returns up to limit messages for the session, oldest first.
	Messages(ctx context.Context, sessionID string, limit int) ([]*models.ChatMessage, error)

	// PurgeMessages deletes all mirrored messages for the session.
	PurgeMessages(ctx context.Context, sessionID string) error
}
