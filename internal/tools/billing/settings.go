package billing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ledgerline/ledgerline/internal/assistant"
	"github.com/ledgerline/ledgerline/internal/billing"
)

// GetBusinessSettings reads the user's invoicing defaults.
type GetBusinessSettings struct {
	store billing.Store
}

type getBusinessSettingsArgs struct{}

func (op *GetBusinessSettings) Name() string { return "get_business_settings" }

func (op *GetBusinessSettings) Description() string {
	return "Read the user's business settings: default tax rate, invoice design, accent color, and payment methods."
}

func (op *GetBusinessSettings) Schema() json.RawMessage {
	return schemaFor(&getBusinessSettingsArgs{})
}

func (op *GetBusinessSettings) Run(ctx context.Context, args json.RawMessage, userID string) (*assistant.Result, error) {
	business, err := op.store.BusinessSettings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load business settings: %w", err)
	}
	payment, err := op.store.PaymentSettings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment settings: %w", err)
	}

	return &assistant.Result{
		Success: true,
		Data: map[string]any{
			"business_name":        business.BusinessName,
			"email":                business.Email,
			"tax_percentage":       business.TaxPercentage,
			"invoice_design":       business.InvoiceDesign,
			"accent_color":         business.AccentColor,
			"has_logo":             business.HasLogo,
			"accept_card":          payment.AcceptCard,
			"accept_bank_transfer": payment.AcceptBankTransfer,
			"accept_paypal":        payment.AcceptPayPal,
		},
	}, nil
}

// UpdateBusinessSettings patches the user's invoicing defaults. Only the
// supplied fields change.
type UpdateBusinessSettings struct {
	store billing.Store
}

type updateBusinessSettingsArgs struct {
	BusinessName  *string  `json:"business_name,omitempty" jsonschema:"description=Business display name"`
	Email         *string  `json:"email,omitempty" jsonschema:"description=Business contact email"`
	TaxPercentage *float64 `json:"tax_percentage,omitempty" jsonschema:"description=Default tax percentage applied to new documents"`
	InvoiceDesign *string  `json:"invoice_design,omitempty" jsonschema:"description=Invoice template name"`
	AccentColor   *string  `json:"accent_color,omitempty" jsonschema:"description=Accent color as a hex string"`
}

func (op *UpdateBusinessSettings) Name() string { return "update_business_settings" }

func (op *UpdateBusinessSettings) Description() string {
	return "Update the user's business settings. Only the supplied fields change."
}

func (op *UpdateBusinessSettings) Schema() json.RawMessage {
	return schemaFor(&updateBusinessSettingsArgs{})
}

func (op *UpdateBusinessSettings) Run(ctx context.Context, args json.RawMessage, userID string) (*assistant.Result, error) {
	var params updateBusinessSettingsArgs
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	settings, err := op.store.BusinessSettings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load business settings: %w", err)
	}

	if params.BusinessName != nil {
		settings.BusinessName = *params.BusinessName
	}
	if params.Email != nil {
		settings.Email = *params.Email
	}
	if params.TaxPercentage != nil {
		settings.TaxPercentage = *params.TaxPercentage
	}
	if params.InvoiceDesign != nil {
		settings.InvoiceDesign = *params.InvoiceDesign
	}
	if params.AccentColor != nil {
		settings.AccentColor = *params.AccentColor
	}

	if err := op.store.SaveBusinessSettings(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to save business settings: %w", err)
	}

	return &assistant.Result{
		Success: true,
		Message: "Business settings updated.",
		Data: map[string]any{
			"business_name":  settings.BusinessName,
			"email":          settings.Email,
			"tax_percentage": settings.TaxPercentage,
			"invoice_design": settings.InvoiceDesign,
			"accent_color":   settings.AccentColor,
		},
	}, nil
}
