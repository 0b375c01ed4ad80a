package billing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ledgerline/ledgerline/internal/assistant"
	"github.com/ledgerline/ledgerline/internal/billing"
)

// ListRecentDocuments lists the user's newest invoices and estimates so the
// assistant can answer questions about existing documents.
type ListRecentDocuments struct {
	store billing.Store
}

type listRecentDocumentsArgs struct {
	Limit int `json:"limit,omitempty" jsonschema:"description=Maximum number of documents to return; defaults to 10"`
}

func (op *ListRecentDocuments) Name() string { return "list_recent_documents" }

func (op *ListRecentDocuments) Description() string {
	return "List the user's most recent invoices and estimates, newest first."
}

func (op *ListRecentDocuments) Schema() json.RawMessage {
	return schemaFor(&listRecentDocumentsArgs{})
}

func (op *ListRecentDocuments) Run(ctx context.Context, args json.RawMessage, userID string) (*assistant.Result, error) {
	var params listRecentDocumentsArgs
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	limit := params.Limit
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	docs, err := op.store.RecentDocuments(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	rows := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		rows = append(rows, map[string]any{
			"kind":        string(doc.Kind),
			"number":      doc.Number,
			"client_name": doc.ClientName,
			"total":       doc.Total,
			"currency":    doc.Currency,
			"created_at":  doc.CreatedAt.Format("2006-01-02"),
		})
	}

	return &assistant.Result{
		Success: true,
		Data: map[string]any{
			"count":     len(rows),
			"documents": rows,
		},
	}, nil
}
