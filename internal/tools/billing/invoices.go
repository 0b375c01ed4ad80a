package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerline/ledgerline/internal/assistant"
	"github.com/ledgerline/ledgerline/internal/billing"
	"github.com/ledgerline/ledgerline/pkg/models"
)

// CreateInvoice creates an invoice with line items for a client, applying the
// user's business and payment defaults.
type CreateInvoice struct {
	store billing.Store
	gate  *billing.Gate
}

type createInvoiceArgs struct {
	ClientName    string         `json:"client_name" jsonschema:"description=Name of the client to bill; an existing client is matched by partial name"`
	LineItems     []lineItemArgs `json:"line_items" jsonschema:"description=Lines to bill; may be empty for a blank invoice"`
	TaxPercentage *float64       `json:"tax_percentage,omitempty" jsonschema:"description=Tax percentage; defaults to the user's business settings"`
	Currency      string         `json:"currency,omitempty" jsonschema:"description=ISO currency code"`
	DueDate       string         `json:"due_date,omitempty" jsonschema:"description=Due date in YYYY-MM-DD format"`
	Notes         string         `json:"notes,omitempty" jsonschema:"description=Free-form notes shown on the invoice"`
}

func (op *CreateInvoice) Name() string { return "create_invoice" }

func (op *CreateInvoice) Description() string {
	return "Create a new invoice for a client with line items. Reuses an existing client when the name matches, otherwise creates one."
}

func (op *CreateInvoice) Schema() json.RawMessage {
	return schemaFor(&createInvoiceArgs{})
}

func (op *CreateInvoice) Run(ctx context.Context, args json.RawMessage, userID string) (*assistant.Result, error) {
	var params createInvoiceArgs
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if params.ClientName == "" {
		return nil, errors.New("client_name is required")
	}

	allowed, err := op.gate.CanCreateDocument(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return paywallResult(), nil
	}

	client, created, err := resolveClient(ctx, op.store, userID, params.ClientName)
	if err != nil {
		return nil, err
	}

	business, err := op.store.BusinessSettings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load business settings: %w", err)
	}
	payment, err := op.store.PaymentSettings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment settings: %w", err)
	}

	taxPercentage := business.TaxPercentage
	if params.TaxPercentage != nil {
		taxPercentage = *params.TaxPercentage
	}

	items, lineTotals := buildLineItems(params.LineItems)
	subtotal, total := billing.DocumentTotals(lineTotals, taxPercentage)

	number := billing.InvoiceNumberSeed
	if last, err := op.store.LatestInvoice(ctx, userID); err == nil {
		number = billing.NextDocumentNumber(last.Number, billing.InvoiceNumberSeed)
	} else if !errors.Is(err, billing.ErrNotFound) {
		return nil, fmt.Errorf("failed to read latest invoice: %w", err)
	}

	invoice := &models.Invoice{
		UserID:             userID,
		ClientID:           client.ID,
		Number:             number,
		Currency:           params.Currency,
		TaxPercentage:      taxPercentage,
		Subtotal:           subtotal,
		Total:              total,
		Design:             business.InvoiceDesign,
		AccentColor:        business.AccentColor,
		AcceptCard:         payment.AcceptCard,
		AcceptBankTransfer: payment.AcceptBankTransfer,
		AcceptPayPal:       payment.AcceptPayPal,
		Notes:              params.Notes,
	}
	if params.DueDate != "" {
		due, err := time.Parse("2006-01-02", params.DueDate)
		if err != nil {
			return nil, fmt.Errorf("invalid due_date %q: expected YYYY-MM-DD", params.DueDate)
		}
		invoice.DueDate = &due
	}

	if err := op.store.CreateInvoice(ctx, invoice); err != nil {
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}
	if len(items) > 0 {
		if err := op.store.AddLineItems(ctx, invoice.ID, items); err != nil {
			// Compensate so no orphaned empty header survives a partial write.
			if delErr := op.store.DeleteInvoice(ctx, invoice.ID); delErr != nil {
				return nil, fmt.Errorf("failed to add line items (%v) and to roll back invoice: %w", err, delErr)
			}
			return nil, fmt.Errorf("failed to add line items: %w", err)
		}
	}

	result := &assistant.Result{
		Success: true,
		Message: fmt.Sprintf("Created invoice %s for %s.", invoice.Number, client.Name),
		Data: map[string]any{
			"invoice_number": invoice.Number,
			"client_name":    client.Name,
			"subtotal":       invoice.Subtotal,
			"total":          invoice.Total,
			"tax_percentage": invoice.TaxPercentage,
			"line_items":     len(items),
		},
		Attachments: []models.Attachment{invoiceAttachment(invoice, client, items)},
	}
	if created {
		result.Attachments = append(result.Attachments, clientAttachment(client))
	}
	return result, nil
}

// AddLineItems appends lines to an existing invoice and recomputes its
// totals.
type AddLineItems struct {
	store billing.Store
}

type addLineItemsArgs struct {
	InvoiceNumber string         `json:"invoice_number" jsonschema:"description=Number of the invoice to modify, e.g. INV-0042"`
	LineItems     []lineItemArgs `json:"line_items" jsonschema:"description=Lines to append"`
}

func (op *AddLineItems) Name() string { return "add_line_items" }

func (op *AddLineItems) Description() string {
	return "Add line items to one of the user's existing invoices and recompute its totals."
}

func (op *AddLineItems) Schema() json.RawMessage {
	return schemaFor(&addLineItemsArgs{})
}

func (op *AddLineItems) Run(ctx context.Context, args json.RawMessage, userID string) (*assistant.Result, error) {
	var params addLineItemsArgs
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if params.InvoiceNumber == "" {
		return nil, errors.New("invoice_number is required")
	}
	if len(params.LineItems) == 0 {
		return nil, errors.New("line_items must not be empty")
	}

	invoice, err := op.store.FindInvoiceByNumber(ctx, userID, params.InvoiceNumber)
	if err != nil {
		if errors.Is(err, billing.ErrNotFound) {
			return nil, fmt.Errorf("no invoice %s found", params.InvoiceNumber)
		}
		return nil, fmt.Errorf("failed to look up invoice: %w", err)
	}

	items, _ := buildLineItems(params.LineItems)
	if err := op.store.AddLineItems(ctx, invoice.ID, items); err != nil {
		return nil, fmt.Errorf("failed to add line items: %w", err)
	}

	all, err := op.store.LineItems(ctx, invoice.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload line items: %w", err)
	}
	totals := make([]float64, 0, len(all))
	for _, item := range all {
		totals = append(totals, item.Total)
	}
	subtotal, total := billing.DocumentTotals(totals, invoice.TaxPercentage)
	if err := op.store.UpdateInvoiceTotals(ctx, invoice.ID, subtotal, total); err != nil {
		return nil, fmt.Errorf("failed to update totals: %w", err)
	}
	invoice.Subtotal = subtotal
	invoice.Total = total

	var client *models.Client
	if c, err := op.store.GetClient(ctx, invoice.ClientID); err == nil {
		client = c
	}

	return &assistant.Result{
		Success: true,
		Message: fmt.Sprintf("Added %d line item(s) to invoice %s.", len(items), invoice.Number),
		Data: map[string]any{
			"invoice_number": invoice.Number,
			"subtotal":       subtotal,
			"total":          total,
			"line_items":     len(all),
		},
		Attachments: []models.Attachment{invoiceAttachment(invoice, client, all)},
	}, nil
}

func invoiceAttachment(invoice *models.Invoice, client *models.Client, items []models.LineItem) models.Attachment {
	lines := make([]map[string]any, 0, len(items))
	for _, item := range items {
		lines = append(lines, map[string]any{
			"description": item.Description,
			"quantity":    item.Quantity,
			"unit_price":  item.UnitPrice,
			"total":       item.Total,
		})
	}
	record := map[string]any{
		"id":             invoice.ID,
		"number":         invoice.Number,
		"currency":       invoice.Currency,
		"tax_percentage": invoice.TaxPercentage,
		"subtotal":       invoice.Subtotal,
		"total":          invoice.Total,
		"line_items":     lines,
	}
	if client != nil {
		record["client_name"] = client.Name
	}
	if invoice.DueDate != nil {
		record["due_date"] = invoice.DueDate.Format("2006-01-02")
	}
	return models.Attachment{Type: "invoice", Record: record}
}
