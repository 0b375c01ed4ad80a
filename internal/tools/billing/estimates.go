package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ledgerline/ledgerline/internal/assistant"
	"github.com/ledgerline/ledgerline/internal/billing"
	"github.com/ledgerline/ledgerline/pkg/models"
)

// CreateEstimate creates an estimate for a client. Estimates share the free
// document cap with invoices but keep their own numbering sequence.
type CreateEstimate struct {
	store billing.Store
	gate  *billing.Gate
}

type createEstimateArgs struct {
	ClientName    string         `json:"client_name" jsonschema:"description=Name of the client; an existing client is matched by partial name"`
	LineItems     []lineItemArgs `json:"line_items" jsonschema:"description=Lines to estimate; may be empty"`
	TaxPercentage *float64       `json:"tax_percentage,omitempty" jsonschema:"description=Tax percentage; defaults to the user's business settings"`
	Currency      string         `json:"currency,omitempty" jsonschema:"description=ISO currency code"`
	Notes         string         `json:"notes,omitempty" jsonschema:"description=Free-form notes shown on the estimate"`
}

func (op *CreateEstimate) Name() string { return "create_estimate" }

func (op *CreateEstimate) Description() string {
	return "Create a new estimate (quote) for a client with line items."
}

func (op *CreateEstimate) Schema() json.RawMessage {
	return schemaFor(&createEstimateArgs{})
}

func (op *CreateEstimate) Run(ctx context.Context, args json.RawMessage, userID string) (*assistant.Result, error) {
	var params createEstimateArgs
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
	taxPercentage := business.TaxPercentage
	if params.TaxPercentage != nil {
		taxPercentage = *params.TaxPercentage
	}

	items, lineTotals := buildLineItems(params.LineItems)
	subtotal, total := billing.DocumentTotals(lineTotals, taxPercentage)

	number := billing.EstimateNumberSeed
	if last, err := op.store.LatestEstimate(ctx, userID); err == nil {
		number = billing.NextDocumentNumber(last.Number, billing.EstimateNumberSeed)
	} else if !errors.Is(err, billing.ErrNotFound) {
		return nil, fmt.Errorf("failed to read latest estimate: %w", err)
	}

	estimate := &models.Estimate{
		UserID:        userID,
		ClientID:      client.ID,
		Number:        number,
		Currency:      params.Currency,
		TaxPercentage: taxPercentage,
		Subtotal:      subtotal,
		Total:         total,
		Notes:         params.Notes,
	}
	if err := op.store.CreateEstimate(ctx, estimate); err != nil {
		return nil, fmt.Errorf("failed to create estimate: %w", err)
	}
	if len(items) > 0 {
		if err := op.store.AddLineItems(ctx, estimate.ID, items); err != nil {
			if delErr := op.store.DeleteEstimate(ctx, estimate.ID); delErr != nil {
				return nil, fmt.Errorf("failed to add line items (%v) and to roll back estimate: %w", err, delErr)
			}
			return nil, fmt.Errorf("failed to add line items: %w", err)
		}
	}

	lines := make([]map[string]any, 0, len(items))
	for _, item := range items {
		lines = append(lines, map[string]any{
			"description": item.Description,
			"quantity":    item.Quantity,
			"unit_price":  item.UnitPrice,
			"total":       item.Total,
		})
	}
	result := &assistant.Result{
		Success: true,
		Message: fmt.Sprintf("Created estimate %s for %s.", estimate.Number, client.Name),
		Data: map[string]any{
			"estimate_number": estimate.Number,
			"client_name":     client.Name,
			"subtotal":        estimate.Subtotal,
			"total":           estimate.Total,
		},
		Attachments: []models.Attachment{{
			Type: "estimate",
			Record: map[string]any{
				"id":             estimate.ID,
				"number":         estimate.Number,
				"client_name":    client.Name,
				"currency":       estimate.Currency,
				"tax_percentage": estimate.TaxPercentage,
				"subtotal":       estimate.Subtotal,
				"total":          estimate.Total,
				"line_items":     lines,
			},
		}},
	}
	if created {
		result.Attachments = append(result.Attachments, clientAttachment(client))
	}
	return result, nil
}
