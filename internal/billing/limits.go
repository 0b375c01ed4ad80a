package billing

import (
	"context"
	"fmt"
)

// DefaultFreeDocumentLimit caps invoices+estimates for non-subscribed users.
const DefaultFreeDocumentLimit = 3

// Gate is the usage-limit check consulted before any document write.
type Gate struct {
	store     Store
	freeLimit int
}

// NewGate creates a usage gate. A limit of zero or less uses the default.
func NewGate(store Store, freeLimit int) *Gate {
	if freeLimit <= 0 {
		freeLimit = DefaultFreeDocumentLimit
	}
	return &Gate{store: store, freeLimit: freeLimit}
}

// CanCreateDocument reports whether the user may create another invoice or
// estimate. Subscribed users always may; free users are capped at the
// combined document limit. The check happens before any write.
func (g *Gate) CanCreateDocument(ctx context.Context, userID string) (bool, error) {
	settings, err := g.store.BusinessSettings(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to load business settings: %w", err)
	}
	if settings.Subscribed {
		return true, nil
	}

	count, err := g.store.DocumentCount(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to count documents: %w", err)
	}
	return count < g.freeLimit, nil
}
