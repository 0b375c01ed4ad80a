package models

import "time"

// Client is a billable customer record scoped to one user.
type Client struct {
	ID      string `json:"id"`
	UserID  string `json:"user_id"`
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DocumentKind distinguishes invoices from estimates.
type DocumentKind string

const (
	DocumentInvoice  DocumentKind = "invoice"
	DocumentEstimate DocumentKind = "estimate"
)

// Invoice is an invoice header. Line items are stored separately and
// referenced by the invoice ID.
type Invoice struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	ClientID string `json:"client_id"`

	// Number is the user-visible document number, e.g. "INV-0042".
	Number string `json:"number"`

	Currency      string  `json:"currency"`
	TaxPercentage float64 `json:"tax_percentage"`
	Subtotal      float64 `json:"subtotal"`
	Total         float64 `json:"total"`

	Design      string `json:"design,omitempty"`
	AccentColor string `json:"accent_color,omitempty"`

	AcceptCard         bool `json:"accept_card"`
	AcceptBankTransfer bool `json:"accept_bank_transfer"`
	AcceptPayPal       bool `json:"accept_paypal"`

	Notes   string     `json:"notes,omitempty"`
	DueDate *time.Time `json:"due_date,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Estimate mirrors Invoice with its own numbering sequence ("EST-…").
type Estimate struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	ClientID string `json:"client_id"`

	Number string `json:"number"`

	Currency      string  `json:"currency"`
	TaxPercentage float64 `json:"tax_percentage"`
	Subtotal      float64 `json:"subtotal"`
	Total         float64 `json:"total"`

	Notes string `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LineItem is one billed line on an invoice or estimate.
// ParentID references the owning document.
type LineItem struct {
	ID          string  `json:"id"`
	ParentID    string  `json:"parent_id"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Total       float64 `json:"total"`
	Position    int     `json:"position"`
}

// DocumentSummary is a compact listing row spanning invoices and estimates.
type DocumentSummary struct {
	Kind       DocumentKind `json:"kind"`
	Number     string       `json:"number"`
	ClientName string       `json:"client_name,omitempty"`
	Total      float64      `json:"total"`
	Currency   string       `json:"currency"`
	CreatedAt  time.Time    `json:"created_at"`
}

// BusinessSettings holds per-user invoicing defaults applied when a caller
// does not supply explicit values.
type BusinessSettings struct {
	UserID        string  `json:"user_id"`
	BusinessName  string  `json:"business_name,omitempty"`
	Email         string  `json:"email,omitempty"`
	TaxPercentage float64 `json:"tax_percentage"`
	InvoiceDesign string  `json:"invoice_design,omitempty"`
	AccentColor   string  `json:"accent_color,omitempty"`
	HasLogo       bool    `json:"has_logo"`

	// Subscribed users bypass the free document cap.
	Subscribed bool `json:"subscribed"`

	UpdatedAt time.Time `json:"updated_at"`
}

// PaymentSettings holds the per-user payment method flags copied onto new
// documents.
type PaymentSettings struct {
	UserID             string `json:"user_id"`
	AcceptCard         bool   `json:"accept_card"`
	AcceptBankTransfer bool   `json:"accept_bank_transfer"`
	AcceptPayPal       bool   `json:"accept_paypal"`
	BankDetails        string `json:"bank_details,omitempty"`
	PayPalHandle       string `json:"paypal_handle,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}
