package billing

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/pkg/models"
)

// MemoryStore provides an in-memory Store implementation for testing and
// local runs.
type MemoryStore struct {
	mu        sync.RWMutex
	clients   map[string]*models.Client
	invoices  map[string]*models.Invoice
	estimates map[string]*models.Estimate
	lineItems map[string][]models.LineItem
	business  map[string]*models.BusinessSettings
	payment   map[string]*models.PaymentSettings
}

// NewMemoryStore creates a new in-memory billing store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clients:   map[string]*models.Client{},
		invoices:  map[string]*models.Invoice{},
		estimates: map[string]*models.Estimate{},
		lineItems: map[string][]models.LineItem{},
		business:  map[string]*models.BusinessSettings{},
		payment:   map[string]*models.PaymentSettings{},
	}
}

func (m *MemoryStore) CreateClient(ctx context.Context, client *models.Client) error {
	if client == nil {
		return errors.New("client is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if client.ID == "" {
		client.ID = uuid.NewString()
	}
	if client.CreatedAt.IsZero() {
		client.CreatedAt = time.Now()
	}
	client.UpdatedAt = client.CreatedAt
	clone := *client
	m.clients[client.ID] = &clone
	return nil
}

func (m *MemoryStore) UpdateClient(ctx context.Context, client *models.Client) error {
	if client == nil {
		return errors.New("client is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.clients[client.ID]
	if !ok {
		return ErrNotFound
	}
	clone := *client
	clone.CreatedAt = existing.CreatedAt
	clone.UpdatedAt = time.Now()
	m.clients[client.ID] = &clone
	client.UpdatedAt = clone.UpdatedAt
	return nil
}

func (m *MemoryStore) GetClient(ctx context.Context, id string) (*models.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	client, ok := m.clients[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *client
	return &clone, nil
}

func (m *MemoryStore) FindClientByName(ctx context.Context, userID, name string) (*models.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil, ErrNotFound
	}

	var best *models.Client
	for _, client := range m.clients {
		if client.UserID != userID {
			continue
		}
		if !strings.Contains(strings.ToLower(client.Name), needle) {
			continue
		}
		if best == nil || client.CreatedAt.After(best.CreatedAt) {
			best = client
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	clone := *best
	return &clone, nil
}

func (m *MemoryStore) CreateInvoice(ctx context.Context, invoice *models.Invoice) error {
	if invoice == nil {
		return errors.New("invoice is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if invoice.ID == "" {
		invoice.ID = uuid.NewString()
	}
	if invoice.CreatedAt.IsZero() {
		invoice.CreatedAt = time.Now()
	}
	invoice.UpdatedAt = invoice.CreatedAt
	clone := *invoice
	m.invoices[invoice.ID] = &clone
	return nil
}

func (m *MemoryStore) DeleteInvoice(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.invoices[id]; !ok {
		return ErrNotFound
	}
	delete(m.invoices, id)
	delete(m.lineItems, id)
	return nil
}

func (m *MemoryStore) UpdateInvoiceTotals(ctx context.Context, id string, subtotal, total float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	invoice, ok := m.invoices[id]
	if !ok {
		return ErrNotFound
	}
	invoice.Subtotal = subtotal
	invoice.Total = total
	invoice.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) LatestInvoice(ctx context.Context, userID string) (*models.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *models.Invoice
	for _, invoice := range m.invoices {
		if invoice.UserID != userID {
			continue
		}
		if latest == nil || invoice.CreatedAt.After(latest.CreatedAt) {
			latest = invoice
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	clone := *latest
	return &clone, nil
}

func (m *MemoryStore) FindInvoiceByNumber(ctx context.Context, userID, number string) (*models.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, invoice := range m.invoices {
		if invoice.UserID == userID && strings.EqualFold(invoice.Number, number) {
			clone := *invoice
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) CreateEstimate(ctx context.Context, estimate *models.Estimate) error {
	if estimate == nil {
		return errors.New("estimate is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if estimate.ID == "" {
		estimate.ID = uuid.NewString()
	}
	if estimate.CreatedAt.IsZero() {
		estimate.CreatedAt = time.Now()
	}
	estimate.UpdatedAt = estimate.CreatedAt
	clone := *estimate
	m.estimates[estimate.ID] = &clone
	return nil
}

func (m *MemoryStore) DeleteEstimate(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.estimates[id]; !ok {
		return ErrNotFound
	}
	delete(m.estimates, id)
	delete(m.lineItems, id)
	return nil
}

func (m *MemoryStore) LatestEstimate(ctx context.Context, userID string) (*models.Estimate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *models.Estimate
	for _, estimate := range m.estimates {
		if estimate.UserID != userID {
			continue
		}
		if latest == nil || estimate.CreatedAt.After(latest.CreatedAt) {
			latest = estimate
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	clone := *latest
	return &clone, nil
}

func (m *MemoryStore) AddLineItems(ctx context.Context, parentID string, items []models.LineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.lineItems[parentID]
	for i := range items {
		item := items[i]
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		item.ParentID = parentID
		item.Position = len(existing)
		existing = append(existing, item)
	}
	m.lineItems[parentID] = existing
	return nil
}

func (m *MemoryStore) LineItems(ctx context.Context, parentID string) ([]models.LineItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := m.lineItems[parentID]
	out := make([]models.LineItem, len(items))
	copy(out, items)
	return out, nil
}

func (m *MemoryStore) DocumentCount(ctx context.Context, userID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, invoice := range m.invoices {
		if invoice.UserID == userID {
			count++
		}
	}
	for _, estimate := range m.estimates {
		if estimate.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) RecentDocuments(ctx context.Context, userID string, limit int) ([]models.DocumentSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.DocumentSummary
	for _, invoice := range m.invoices {
		if invoice.UserID != userID {
			continue
		}
		summary := models.DocumentSummary{
			Kind:      models.DocumentInvoice,
			Number:    invoice.Number,
			Total:     invoice.Total,
			Currency:  invoice.Currency,
			CreatedAt: invoice.CreatedAt,
		}
		if client, ok := m.clients[invoice.ClientID]; ok {
			summary.ClientName = client.Name
		}
		out = append(out, summary)
	}
	for _, estimate := range m.estimates {
		if estimate.UserID != userID {
			continue
		}
		summary := models.DocumentSummary{
			Kind:      models.DocumentEstimate,
			Number:    estimate.Number,
			Total:     estimate.Total,
			Currency:  estimate.Currency,
			CreatedAt: estimate.CreatedAt,
		}
		if client, ok := m.clients[estimate.ClientID]; ok {
			summary.ClientName = client.Name
		}
		out = append(out, summary)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) BusinessSettings(ctx context.Context, userID string) (*models.BusinessSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if settings, ok := m.business[userID]; ok {
		clone := *settings
		return &clone, nil
	}
	return &models.BusinessSettings{UserID: userID}, nil
}

func (m *MemoryStore) SaveBusinessSettings(ctx context.Context, settings *models.BusinessSettings) error {
	if settings == nil {
		return errors.New("settings are required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *settings
	clone.UpdatedAt = time.Now()
	m.business[settings.UserID] = &clone
	return nil
}

func (m *MemoryStore) PaymentSettings(ctx context.Context, userID string) (*models.PaymentSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if settings, ok := m.payment[userID]; ok {
		clone := *settings
		return &clone, nil
	}
	return &models.PaymentSettings{UserID: userID}, nil
}

func (m *MemoryStore) SavePaymentSettings(ctx context.Context, settings *models.PaymentSettings) error {
	if settings == nil {
		return errors.New("settings are required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *settings
	clone.UpdatedAt = time.Now()
	m.payment[settings.UserID] = &clone
	return nil
}
