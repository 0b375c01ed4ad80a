// Package billing holds the invoicing domain: clients, invoices, estimates,
// line items, settings, usage limits, and document numbering.
package billing

import (
	"context"
	"errors"

	"github.com/ledgerline/ledgerline/pkg/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Store is the interface for billing persistence. All lookups are scoped to
// a user; cross-user reads are not expressible through this interface.
type Store interface {
	// Clients
	CreateClient(ctx context.Context, client *models.Client) error
	UpdateClient(ctx context.Context, client *models.Client) error
	GetClient(ctx context.Context, id string) (*models.Client, error)

	// FindClientByName performs a case-insensitive substring match on the
	// user's clients. When several match, the most recently created one wins
	// — a deliberate simple tie-break, not a fuzzy-matching guarantee.
	FindClientByName(ctx context.Context, userID, name string) (*models.Client, error)

	// Invoices. Creation is two-step: header first, then line items; callers
	// compensate with DeleteInvoice when the second step fails.
	CreateInvoice(ctx context.Context, invoice *models.Invoice) error
	DeleteInvoice(ctx context.Context, id string) error
	UpdateInvoiceTotals(ctx context.Context, id string, subtotal, total float64) error
	LatestInvoice(ctx context.Context, userID string) (*models.Invoice, error)
	FindInvoiceByNumber(ctx context.Context, userID, number string) (*models.Invoice, error)

	// Estimates
	CreateEstimate(ctx context.Context, estimate *models.Estimate) error
	DeleteEstimate(ctx context.Context, id string) error
	LatestEstimate(ctx context.Context, userID string) (*models.Estimate, error)

	// Line items attach to an invoice or estimate by parent id.
	AddLineItems(ctx context.Context, parentID string, items []models.LineItem) error
	LineItems(ctx context.Context, parentID string) ([]models.LineItem, error)

	// DocumentCount returns invoices+estimates for the user, the quantity
	// the free-tier cap is measured against.
	DocumentCount(ctx context.Context, userID string) (int, error)

	// RecentDocuments lists the user's newest invoices and estimates merged,
	// newest first.
	RecentDocuments(ctx context.Context, userID string, limit int) ([]models.DocumentSummary, error)

	// Settings. Reads return zero-valued defaults rather than ErrNotFound
	// when the user has never saved settings.
	BusinessSettings(ctx context.Context, userID string) (*models.BusinessSettings, error)
	SaveBusinessSettings(ctx context.Context, settings *models.BusinessSettings) error
	PaymentSettings(ctx context.Context, userID string) (*models.PaymentSettings, error)
	SavePaymentSettings(ctx context.Context, settings *models.PaymentSettings) error
}
