package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/pkg/models"
)

// SQLiteStore implements Store on a shared *sql.DB opened with the sqlite3
// driver.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates the billing tables if needed and returns the store.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS clients (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			email TEXT,
			phone TEXT,
			address TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS invoices (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			client_id TEXT NOT NULL,
			number TEXT NOT NULL,
			currency TEXT,
			tax_percentage REAL NOT NULL DEFAULT 0,
			subtotal REAL NOT NULL DEFAULT 0,
			total REAL NOT NULL DEFAULT 0,
			design TEXT,
			accent_color TEXT,
			accept_card INTEGER NOT NULL DEFAULT 0,
			accept_bank_transfer INTEGER NOT NULL DEFAULT 0,
			accept_paypal INTEGER NOT NULL DEFAULT 0,
			notes TEXT,
			due_date DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS estimates (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			client_id TEXT NOT NULL,
			number TEXT NOT NULL,
			currency TEXT,
			tax_percentage REAL NOT NULL DEFAULT 0,
			subtotal REAL NOT NULL DEFAULT 0,
			total REAL NOT NULL DEFAULT 0,
			notes TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS line_items (
			id TEXT PRIMARY KEY,
			parent_id TEXT NOT NULL,
			description TEXT NOT NULL,
			quantity REAL NOT NULL DEFAULT 1,
			unit_price REAL NOT NULL DEFAULT 0,
			total REAL NOT NULL DEFAULT 0,
			position INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS business_settings (
			user_id TEXT PRIMARY KEY,
			business_name TEXT,
			email TEXT,
			tax_percentage REAL NOT NULL DEFAULT 0,
			invoice_design TEXT,
			accent_color TEXT,
			has_logo INTEGER NOT NULL DEFAULT 0,
			subscribed INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS payment_settings (
			user_id TEXT PRIMARY KEY,
			accept_card INTEGER NOT NULL DEFAULT 0,
			accept_bank_transfer INTEGER NOT NULL DEFAULT 0,
			accept_paypal INTEGER NOT NULL DEFAULT 0,
			bank_details TEXT,
			paypal_handle TEXT,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_clients_user ON clients(user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_invoices_user ON invoices(user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_estimates_user ON estimates(user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_line_items_parent ON line_items(parent_id, position)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize billing schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) CreateClient(ctx context.Context, client *models.Client) error {
	if client.ID == "" {
		client.ID = uuid.NewString()
	}
	if client.CreatedAt.IsZero() {
		client.CreatedAt = time.Now()
	}
	client.UpdatedAt = client.CreatedAt

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO clients (id, user_id, name, email, phone, address, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		client.ID, client.UserID, client.Name, client.Email, client.Phone,
		client.Address, client.CreatedAt, client.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert client: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateClient(ctx context.Context, client *models.Client) error {
	client.UpdatedAt = time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE clients SET name = ?, email = ?, phone = ?, address = ?, updated_at = ?
		 WHERE id = ?`,
		client.Name, client.Email, client.Phone, client.Address,
		client.UpdatedAt, client.ID)
	if err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) GetClient(ctx context.Context, id string) (*models.Client, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, COALESCE(email,''), COALESCE(phone,''), COALESCE(address,''), created_at, updated_at
		 FROM clients WHERE id = ?`, id)
	return scanClient(row)
}

func (s *SQLiteStore) FindClientByName(ctx context.Context, userID, name string) (*models.Client, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, COALESCE(email,''), COALESCE(phone,''), COALESCE(address,''), created_at, updated_at
		 FROM clients
		 WHERE user_id = ? AND LOWER(name) LIKE '%' || LOWER(?) || '%'
		 ORDER BY created_at DESC LIMIT 1`, userID, name)
	return scanClient(row)
}

func scanClient(row *sql.Row) (*models.Client, error) {
	var client models.Client
	err := row.Scan(&client.ID, &client.UserID, &client.Name, &client.Email,
		&client.Phone, &client.Address, &client.CreatedAt, &client.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan client: %w", err)
	}
	return &client, nil
}

func (s *SQLiteStore) CreateInvoice(ctx context.Context, invoice *models.Invoice) error {
	if invoice.ID == "" {
		invoice.ID = uuid.NewString()
	}
	if invoice.CreatedAt.IsZero() {
		invoice.CreatedAt = time.Now()
	}
	invoice.UpdatedAt = invoice.CreatedAt

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO invoices (id, user_id, client_id, number, currency, tax_percentage,
			subtotal, total, design, accent_color, accept_card, accept_bank_transfer,
			accept_paypal, notes, due_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invoice.ID, invoice.UserID, invoice.ClientID, invoice.Number, invoice.Currency,
		invoice.TaxPercentage, invoice.Subtotal, invoice.Total, invoice.Design,
		invoice.AccentColor, invoice.AcceptCard, invoice.AcceptBankTransfer,
		invoice.AcceptPayPal, invoice.Notes, invoice.DueDate,
		invoice.CreatedAt, invoice.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert invoice: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteInvoice(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM line_items WHERE parent_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete line items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM invoices WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete invoice: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) UpdateInvoiceTotals(ctx context.Context, id string, subtotal, total float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE invoices SET subtotal = ?, total = ?, updated_at = ? WHERE id = ?`,
		subtotal, total, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update invoice totals: %w", err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

const invoiceColumns = `id, user_id, client_id, number, COALESCE(currency,''), tax_percentage,
	subtotal, total, COALESCE(design,''), COALESCE(accent_color,''), accept_card,
	accept_bank_transfer, accept_paypal, COALESCE(notes,''), due_date, created_at, updated_at`

func (s *SQLiteStore) LatestInvoice(ctx context.Context, userID string) (*models.Invoice, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE user_id = ?
		 ORDER BY created_at DESC LIMIT 1`, userID)
	return scanInvoice(row)
}

func (s *SQLiteStore) FindInvoiceByNumber(ctx context.Context, userID, number string) (*models.Invoice, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices
		 WHERE user_id = ? AND LOWER(number) = LOWER(?) LIMIT 1`, userID, number)
	return scanInvoice(row)
}

func scanInvoice(row *sql.Row) (*models.Invoice, error) {
	var invoice models.Invoice
	var dueDate sql.NullTime
	err := row.Scan(&invoice.ID, &invoice.UserID, &invoice.ClientID, &invoice.Number,
		&invoice.Currency, &invoice.TaxPercentage, &invoice.Subtotal, &invoice.Total,
		&invoice.Design, &invoice.AccentColor, &invoice.AcceptCard,
		&invoice.AcceptBankTransfer, &invoice.AcceptPayPal, &invoice.Notes,
		&dueDate, &invoice.CreatedAt, &invoice.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan invoice: %w", err)
	}
	if dueDate.Valid {
		invoice.DueDate = &dueDate.Time
	}
	return &invoice, nil
}

func (s *SQLiteStore) CreateEstimate(ctx context.Context, estimate *models.Estimate) error {
	if estimate.ID == "" {
		estimate.ID = uuid.NewString()
	}
	if estimate.CreatedAt.IsZero() {
		estimate.CreatedAt = time.Now()
	}
	estimate.UpdatedAt = estimate.CreatedAt

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO estimates (id, user_id, client_id, number, currency, tax_percentage,
			subtotal, total, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		estimate.ID, estimate.UserID, estimate.ClientID, estimate.Number,
		estimate.Currency, estimate.TaxPercentage, estimate.Subtotal,
		estimate.Total, estimate.Notes, estimate.CreatedAt, estimate.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert estimate: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteEstimate(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM line_items WHERE parent_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete line items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM estimates WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete estimate: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) LatestEstimate(ctx context.Context, userID string) (*models.Estimate, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, client_id, number, COALESCE(currency,''), tax_percentage,
			subtotal, total, COALESCE(notes,''), created_at, updated_at
		 FROM estimates WHERE user_id = ? ORDER BY created_at DESC LIMIT 1`, userID)

	var estimate models.Estimate
	err := row.Scan(&estimate.ID, &estimate.UserID, &estimate.ClientID,
		&estimate.Number, &estimate.Currency, &estimate.TaxPercentage,
		&estimate.Subtotal, &estimate.Total, &estimate.Notes,
		&estimate.CreatedAt, &estimate.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan estimate: %w", err)
	}
	return &estimate, nil
}

func (s *SQLiteStore) AddLineItems(ctx context.Context, parentID string, items []models.LineItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var position int
	row := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position)+1, 0) FROM line_items WHERE parent_id = ?`, parentID)
	if err := row.Scan(&position); err != nil {
		return fmt.Errorf("failed to read line item position: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO line_items (id, parent_id, description, quantity, unit_price, total, position)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := range items {
		item := &items[i]
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		item.ParentID = parentID
		item.Position = position
		position++
		if _, err := stmt.ExecContext(ctx, item.ID, item.ParentID, item.Description,
			item.Quantity, item.UnitPrice, item.Total, item.Position); err != nil {
			return fmt.Errorf("failed to insert line item: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) LineItems(ctx context.Context, parentID string) ([]models.LineItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, parent_id, description, quantity, unit_price, total, position
		 FROM line_items WHERE parent_id = ? ORDER BY position ASC`, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query line items: %w", err)
	}
	defer rows.Close()

	var out []models.LineItem
	for rows.Next() {
		var item models.LineItem
		if err := rows.Scan(&item.ID, &item.ParentID, &item.Description,
			&item.Quantity, &item.UnitPrice, &item.Total, &item.Position); err != nil {
			return nil, fmt.Errorf("failed to scan line item: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DocumentCount(ctx context.Context, userID string) (int, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM invoices WHERE user_id = ?)
			  + (SELECT COUNT(*) FROM estimates WHERE user_id = ?)`, userID, userID)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) RecentDocuments(ctx context.Context, userID string, limit int) ([]models.DocumentSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, number, client_name, total, currency, created_at FROM (
			SELECT 'invoice' AS kind, i.number, COALESCE(c.name,'') AS client_name,
				i.total, COALESCE(i.currency,'') AS currency, i.created_at
			FROM invoices i LEFT JOIN clients c ON c.id = i.client_id
			WHERE i.user_id = ?
			UNION ALL
			SELECT 'estimate', e.number, COALESCE(c.name,''),
				e.total, COALESCE(e.currency,''), e.created_at
			FROM estimates e LEFT JOIN clients c ON c.id = e.client_id
			WHERE e.user_id = ?
		) ORDER BY created_at DESC LIMIT ?`, userID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var out []models.DocumentSummary
	for rows.Next() {
		var summary models.DocumentSummary
		var kind string
		if err := rows.Scan(&kind, &summary.Number, &summary.ClientName,
			&summary.Total, &summary.Currency, &summary.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		summary.Kind = models.DocumentKind(kind)
		out = append(out, summary)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) BusinessSettings(ctx context.Context, userID string) (*models.BusinessSettings, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, COALESCE(business_name,''), COALESCE(email,''), tax_percentage,
			COALESCE(invoice_design,''), COALESCE(accent_color,''), has_logo, subscribed, updated_at
		 FROM business_settings WHERE user_id = ?`, userID)

	var settings models.BusinessSettings
	err := row.Scan(&settings.UserID, &settings.BusinessName, &settings.Email,
		&settings.TaxPercentage, &settings.InvoiceDesign, &settings.AccentColor,
		&settings.HasLogo, &settings.Subscribed, &settings.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.BusinessSettings{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan business settings: %w", err)
	}
	return &settings, nil
}

func (s *SQLiteStore) SaveBusinessSettings(ctx context.Context, settings *models.BusinessSettings) error {
	settings.UpdatedAt = time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO business_settings (user_id, business_name, email, tax_percentage,
			invoice_design, accent_color, has_logo, subscribed, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			business_name = excluded.business_name,
			email = excluded.email,
			tax_percentage = excluded.tax_percentage,
			invoice_design = excluded.invoice_design,
			accent_color = excluded.accent_color,
			has_logo = excluded.has_logo,
			subscribed = excluded.subscribed,
			updated_at = excluded.updated_at`,
		settings.UserID, settings.BusinessName, settings.Email, settings.TaxPercentage,
		settings.InvoiceDesign, settings.AccentColor, settings.HasLogo,
		settings.Subscribed, settings.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save business settings: %w", err)
	}
	return nil
}

func (s *SQLiteStore) PaymentSettings(ctx context.Context, userID string) (*models.PaymentSettings, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, accept_card, accept_bank_transfer, accept_paypal,
			COALESCE(bank_details,''), COALESCE(paypal_handle,''), updated_at
		 FROM payment_settings WHERE user_id = ?`, userID)

	var settings models.PaymentSettings
	err := row.Scan(&settings.UserID, &settings.AcceptCard, &settings.AcceptBankTransfer,
		&settings.AcceptPayPal, &settings.BankDetails, &settings.PayPalHandle,
		&settings.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.PaymentSettings{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan payment settings: %w", err)
	}
	return &settings, nil
}

func (s *SQLiteStore) SavePaymentSettings(ctx context.Context, settings *models.PaymentSettings) error {
	settings.UpdatedAt = time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO payment_settings (user_id, accept_card, accept_bank_transfer,
			accept_paypal, bank_details, paypal_handle, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			accept_card = excluded.accept_card,
			accept_bank_transfer = excluded.accept_bank_transfer,
			accept_paypal = excluded.accept_paypal,
			bank_details = excluded.bank_details,
			paypal_handle = excluded.paypal_handle,
			updated_at = excluded.updated_at`,
		settings.UserID, settings.AcceptCard, settings.AcceptBankTransfer,
		settings.AcceptPayPal, settings.BankDetails, settings.PayPalHandle,
		settings.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save payment settings: %w", err)
	}
	return nil
}
