package billing

import (
	"context"
	"fmt"
	"testing"

	"github.com/ledgerline/ledgerline/pkg/models"
)

func seedDocuments(t *testing.T, store *MemoryStore, userID string, invoices, estimates int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < invoices; i++ {
		inv := &models.Invoice{UserID: userID, Number: fmt.Sprintf("INV-%04d", i+1)}
		if err := store.CreateInvoice(ctx, inv); err != nil {
			t.Fatalf("CreateInvoice: %v", err)
		}
	}
	for i := 0; i < estimates; i++ {
		est := &models.Estimate{UserID: userID, Number: fmt.Sprintf("EST-%04d", i+1)}
		if err := store.CreateEstimate(ctx, est); err != nil {
			t.Fatalf("CreateEstimate: %v", err)
		}
	}
}

func TestGateUnderLimit(t *testing.T) {
	store := NewMemoryStore()
	seedDocuments(t, store, "user-1", 1, 1)

	gate := NewGate(store, 3)
	allowed, err := gate.CanCreateDocument(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("CanCreateDocument: %v", err)
	}
	if !allowed {
		t.Fatal("two documents should be under a limit of three")
	}
}

func TestGateAtLimitCountsBothKinds(t *testing.T) {
	store := NewMemoryStore()
	// Invoices and estimates share the cap.
	seedDocuments(t, store, "user-1", 2, 1)

	gate := NewGate(store, 3)
	allowed, err := gate.CanCreateDocument(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("CanCreateDocument: %v", err)
	}
	if allowed {
		t.Fatal("three documents should hit a limit of three")
	}
}

func TestGateSubscribedBypassesLimit(t *testing.T) {
	store := NewMemoryStore()
	seedDocuments(t, store, "user-1", 10, 5)
	err := store.SaveBusinessSettings(context.Background(), &models.BusinessSettings{
		UserID:     "user-1",
		Subscribed: true,
	})
	if err != nil {
		t.Fatalf("SaveBusinessSettings: %v", err)
	}

	gate := NewGate(store, 3)
	allowed, err := gate.CanCreateDocument(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("CanCreateDocument: %v", err)
	}
	if !allowed {
		t.Fatal("subscribed users are never capped")
	}
}

func TestGateIsPerUser(t *testing.T) {
	store := NewMemoryStore()
	seedDocuments(t, store, "heavy-user", 3, 3)

	gate := NewGate(store, 3)
	allowed, err := gate.CanCreateDocument(context.Background(), "other-user")
	if err != nil {
		t.Fatalf("CanCreateDocument: %v", err)
	}
	if !allowed {
		t.Fatal("another user's documents must not count")
	}
}

func TestGateDefaultLimit(t *testing.T) {
	store := NewMemoryStore()
	seedDocuments(t, store, "user-1", DefaultFreeDocumentLimit, 0)

	gate := NewGate(store, 0)
	allowed, err := gate.CanCreateDocument(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("CanCreateDocument: %v", err)
	}
	if allowed {
		t.Fatalf("limit should default to %d", DefaultFreeDocumentLimit)
	}
}
