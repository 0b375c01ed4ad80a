// Package billing registers the invoicing domain operations the assistant
// can invoke: documents, clients, and business settings.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/ledgerline/ledgerline/internal/assistant"
	"github.com/ledgerline/ledgerline/internal/billing"
	"github.com/ledgerline/ledgerline/pkg/models"
)

// RegisterAll wires every billing operation into the registry.
func RegisterAll(reg *assistant.Registry, store billing.Store, gate *billing.Gate) error {
	ops := []assistant.Operation{
		&CreateInvoice{store: store, gate: gate},
		&CreateEstimate{store: store, gate: gate},
		&AddLineItems{store: store},
		&UpdateClient{store: store},
		&GetBusinessSettings{store: store},
		&UpdateBusinessSettings{store: store},
		&ListRecentDocuments{store: store},
	}
	for _, op := range ops {
		if err := reg.Register(op); err != nil {
			return fmt.Errorf("failed to register %s: %w", op.Name(), err)
		}
	}
	return nil
}

// schemaFor reflects a JSON schema from an args struct. Fields without
// omitempty are required.
func schemaFor(v any) json.RawMessage {
	reflector := jsonschema.Reflector{
		Anonymous:                 true,
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}
	schema := reflector.Reflect(v)
	data, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("failed to marshal schema: %v", err))
	}
	return data
}

// resolveClient finds the user's client by case-insensitive partial name,
// creating a new record when no match exists. Among multiple matches the
// most recently created one is reused.
func resolveClient(ctx context.Context, store billing.Store, userID, name string) (*models.Client, bool, error) {
	client, err := store.FindClientByName(ctx, userID, name)
	if err == nil {
		return client, false, nil
	}
	if !errors.Is(err, billing.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to look up client: %w", err)
	}

	client = &models.Client{UserID: userID, Name: name}
	if err := store.CreateClient(ctx, client); err != nil {
		return nil, false, fmt.Errorf("failed to create client: %w", err)
	}
	return client, true, nil
}

// paywallResult is the refusal returned when the free document cap is hit.
// It carries no side effects; the check happens before any write.
func paywallResult() *assistant.Result {
	return &assistant.Result{
		Success:     false,
		Message:     "The free plan limit has been reached. Upgrading unlocks unlimited invoices and estimates.",
		ShowPaywall: true,
	}
}

type lineItemArgs struct {
	Description string  `json:"description" jsonschema:"description=What the line bills for"`
	Quantity    float64 `json:"quantity,omitempty" jsonschema:"description=Quantity; defaults to 1 when omitted or not positive"`
	UnitPrice   float64 `json:"unit_price" jsonschema:"description=Price per unit"`
}

// buildLineItems normalizes quantities and computes per-line totals,
// returning the items plus the list of line totals for document math.
func buildLineItems(args []lineItemArgs) ([]models.LineItem, []float64) {
	items := make([]models.LineItem, 0, len(args))
	totals := make([]float64, 0, len(args))
	for _, a := range args {
		qty, total := billing.LineTotals(a.Quantity, a.UnitPrice)
		items = append(items, models.LineItem{
			Description: a.Description,
			Quantity:    qty,
			UnitPrice:   a.UnitPrice,
			Total:       total,
		})
		totals = append(totals, total)
	}
	return items, totals
}

func clientAttachment(client *models.Client) models.Attachment {
	return models.Attachment{
		Type: "client",
		Record: map[string]any{
			"id":      client.ID,
			"name":    client.Name,
			"email":   client.Email,
			"phone":   client.Phone,
			"address": client.Address,
		},
	}
}
