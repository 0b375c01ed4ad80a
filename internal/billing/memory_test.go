package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ledgerline/ledgerline/pkg/models"
)

func TestFindClientByName(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clients := []*models.Client{
		{UserID: "user-1", Name: "Acme Corporation", CreatedAt: base},
		{UserID: "user-1", Name: "Acme Labs", CreatedAt: base.Add(time.Hour)},
		{UserID: "user-2", Name: "Acme Shipping", CreatedAt: base.Add(2 * time.Hour)},
	}
	for _, c := range clients {
		if err := store.CreateClient(ctx, c); err != nil {
			t.Fatalf("CreateClient: %v", err)
		}
	}

	t.Run("case-insensitive substring", func(t *testing.T) {
		got, err := store.FindClientByName(ctx, "user-1", "corporation")
		if err != nil {
			t.Fatalf("FindClientByName: %v", err)
		}
		if got.Name != "Acme Corporation" {
			t.Fatalf("got %q", got.Name)
		}
	})

	t.Run("most recent wins on ambiguity", func(t *testing.T) {
		got, err := store.FindClientByName(ctx, "user-1", "acme")
		if err != nil {
			t.Fatalf("FindClientByName: %v", err)
		}
		if got.Name != "Acme Labs" {
			t.Fatalf("got %q, want the newer match", got.Name)
		}
	})

	t.Run("scoped to user", func(t *testing.T) {
		if _, err := store.FindClientByName(ctx, "user-1", "shipping"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("cross-user match: %v", err)
		}
	})

	t.Run("blank name", func(t *testing.T) {
		if _, err := store.FindClientByName(ctx, "user-1", "  "); !errors.Is(err, ErrNotFound) {
			t.Fatalf("blank lookup: %v", err)
		}
	})
}

func TestUpdateClient(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	client := &models.Client{UserID: "user-1", Name: "Original"}
	if err := store.CreateClient(ctx, client); err != nil {
		t.Fatalf("CreateClient: %v", err)
	}

	client.Name = "Renamed"
	client.Email = "hi@renamed.test"
	if err := store.UpdateClient(ctx, client); err != nil {
		t.Fatalf("UpdateClient: %v", err)
	}

	got, err := store.GetClient(ctx, client.ID)
	if err != nil {
		t.Fatalf("GetClient: %v", err)
	}
	if got.Name != "Renamed" || got.Email != "hi@renamed.test" {
		t.Fatalf("got %+v", got)
	}

	if err := store.UpdateClient(ctx, &models.Client{ID: "ghost"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("updating missing client: %v", err)
	}
}

func TestInvoiceLifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	first := &models.Invoice{UserID: "user-1", Number: "INV-0001", CreatedAt: base}
	second := &models.Invoice{UserID: "user-1", Number: "INV-0002", CreatedAt: base.Add(time.Minute)}
	for _, inv := range []*models.Invoice{first, second} {
		if err := store.CreateInvoice(ctx, inv); err != nil {
			t.Fatalf("CreateInvoice: %v", err)
		}
	}

	latest, err := store.LatestInvoice(ctx, "user-1")
	if err != nil {
		t.Fatalf("LatestInvoice: %v", err)
	}
	if latest.Number != "INV-0002" {
		t.Fatalf("latest = %q", latest.Number)
	}

	found, err := store.FindInvoiceByNumber(ctx, "user-1", "inv-0001")
	if err != nil {
		t.Fatalf("FindInvoiceByNumber: %v", err)
	}
	if found.ID != first.ID {
		t.Fatal("number lookup returned the wrong invoice")
	}

	if err := store.UpdateInvoiceTotals(ctx, first.ID, 100, 120); err != nil {
		t.Fatalf("UpdateInvoiceTotals: %v", err)
	}
	found, _ = store.FindInvoiceByNumber(ctx, "user-1", "INV-0001")
	if found.Subtotal != 100 || found.Total != 120 {
		t.Fatalf("totals = (%v, %v)", found.Subtotal, found.Total)
	}

	if err := store.DeleteInvoice(ctx, first.ID); err != nil {
		t.Fatalf("DeleteInvoice: %v", err)
	}
	if _, err := store.FindInvoiceByNumber(ctx, "user-1", "INV-0001"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted invoice still found: %v", err)
	}

	if _, err := store.LatestInvoice(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LatestInvoice for empty user: %v", err)
	}
}

func TestAddLineItemsPositions(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	invoice := &models.Invoice{UserID: "user-1", Number: "INV-0001"}
	if err := store.CreateInvoice(ctx, invoice); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	firstBatch := []models.LineItem{
		{Description: "Design", Quantity: 1, UnitPrice: 500, Total: 500},
		{Description: "Development", Quantity: 10, UnitPrice: 100, Total: 1000},
	}
	if err := store.AddLineItems(ctx, invoice.ID, firstBatch); err != nil {
		t.Fatalf("AddLineItems: %v", err)
	}
	secondBatch := []models.LineItem{
		{Description: "Hosting", Quantity: 1, UnitPrice: 25, Total: 25},
	}
	if err := store.AddLineItems(ctx, invoice.ID, secondBatch); err != nil {
		t.Fatalf("AddLineItems: %v", err)
	}

	items, err := store.LineItems(ctx, invoice.ID)
	if err != nil {
		t.Fatalf("LineItems: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items", len(items))
	}
	for i, item := range items {
		if item.Position != i {
			t.Fatalf("item %d has position %d", i, item.Position)
		}
		if item.ParentID != invoice.ID {
			t.Fatalf("item %d has parent %q", i, item.ParentID)
		}
		if item.ID == "" {
			t.Fatalf("item %d has no id", i)
		}
	}
	if items[2].Description != "Hosting" {
		t.Fatalf("appended item out of order: %q", items[2].Description)
	}

	// Deleting the parent removes its lines.
	if err := store.DeleteInvoice(ctx, invoice.ID); err != nil {
		t.Fatalf("DeleteInvoice: %v", err)
	}
	items, _ = store.LineItems(ctx, invoice.ID)
	if len(items) != 0 {
		t.Fatalf("%d orphaned line items", len(items))
	}
}

func TestRecentDocumentsMergesKinds(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	client := &models.Client{UserID: "user-1", Name: "Acme"}
	if err := store.CreateClient(ctx, client); err != nil {
		t.Fatalf("CreateClient: %v", err)
	}

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	docs := []struct {
		kind   models.DocumentKind
		number string
		at     time.Time
	}{
		{models.DocumentInvoice, "INV-0001", base},
		{models.DocumentEstimate, "EST-0001", base.Add(time.Hour)},
		{models.DocumentInvoice, "INV-0002", base.Add(2 * time.Hour)},
	}
	for _, d := range docs {
		if d.kind == models.DocumentInvoice {
			err := store.CreateInvoice(ctx, &models.Invoice{
				UserID: "user-1", ClientID: client.ID, Number: d.number, CreatedAt: d.at,
			})
			if err != nil {
				t.Fatalf("CreateInvoice: %v", err)
			}
		} else {
			err := store.CreateEstimate(ctx, &models.Estimate{
				UserID: "user-1", ClientID: client.ID, Number: d.number, CreatedAt: d.at,
			})
			if err != nil {
				t.Fatalf("CreateEstimate: %v", err)
			}
		}
	}

	got, err := store.RecentDocuments(ctx, "user-1", 2)
	if err != nil {
		t.Fatalf("RecentDocuments: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d documents, want 2", len(got))
	}
	if got[0].Number != "INV-0002" || got[1].Number != "EST-0001" {
		t.Fatalf("order = [%s, %s]", got[0].Number, got[1].Number)
	}
	if got[0].ClientName != "Acme" {
		t.Fatalf("client name = %q", got[0].ClientName)
	}

	count, err := store.DocumentCount(ctx, "user-1")
	if err != nil {
		t.Fatalf("DocumentCount: %v", err)
	}
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}
}

func TestSettingsDefaultsAndRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	// Unsaved settings read back as zero-valued defaults, never ErrNotFound.
	business, err := store.BusinessSettings(ctx, "user-1")
	if err != nil {
		t.Fatalf("BusinessSettings: %v", err)
	}
	if business.UserID != "user-1" || business.TaxPercentage != 0 || business.Subscribed {
		t.Fatalf("default settings = %+v", business)
	}
	payment, err := store.PaymentSettings(ctx, "user-1")
	if err != nil {
		t.Fatalf("PaymentSettings: %v", err)
	}
	if payment.AcceptCard || payment.AcceptPayPal {
		t.Fatalf("default payment = %+v", payment)
	}

	business.TaxPercentage = 19
	business.BusinessName = "Freelance Co"
	if err := store.SaveBusinessSettings(ctx, business); err != nil {
		t.Fatalf("SaveBusinessSettings: %v", err)
	}
	payment.AcceptCard = true
	if err := store.SavePaymentSettings(ctx, payment); err != nil {
		t.Fatalf("SavePaymentSettings: %v", err)
	}

	business, _ = store.BusinessSettings(ctx, "user-1")
	if business.TaxPercentage != 19 || business.BusinessName != "Freelance Co" {
		t.Fatalf("saved settings = %+v", business)
	}
	payment, _ = store.PaymentSettings(ctx, "user-1")
	if !payment.AcceptCard {
		t.Fatalf("saved payment = %+v", payment)
	}
}
