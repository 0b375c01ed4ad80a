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

// UpdateClient patches contact details on an existing client.
type UpdateClient struct {
	store billing.Store
}

type updateClientArgs struct {
	ClientName string `json:"client_name" jsonschema:"description=Current name of the client to update; matched by partial name"`
	NewName    string `json:"new_name,omitempty" jsonschema:"description=New display name"`
	Email      string `json:"email,omitempty" jsonschema:"description=New email address"`
	Phone      string `json:"phone,omitempty" jsonschema:"description=New phone number"`
	Address    string `json:"address,omitempty" jsonschema:"description=New postal address"`
}

func (op *UpdateClient) Name() string { return "update_client" }

func (op *UpdateClient) Description() string {
	return "Update contact details of one of the user's clients. Only the supplied fields change."
}

func (op *UpdateClient) Schema() json.RawMessage {
	return schemaFor(&updateClientArgs{})
}

func (op *UpdateClient) Run(ctx context.Context, args json.RawMessage, userID string) (*assistant.Result, error) {
	var params updateClientArgs
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if params.ClientName == "" {
		return nil, errors.New("client_name is required")
	}

	client, err := op.store.FindClientByName(ctx, userID, params.ClientName)
	if err != nil {
		if errors.Is(err, billing.ErrNotFound) {
			return nil, fmt.Errorf("no client matching %q found", params.ClientName)
		}
		return nil, fmt.Errorf("failed to look up client: %w", err)
	}

	if params.NewName != "" {
		client.Name = params.NewName
	}
	if params.Email != "" {
		client.Email = params.Email
	}
	if params.Phone != "" {
		client.Phone = params.Phone
	}
	if params.Address != "" {
		client.Address = params.Address
	}

	if err := op.store.UpdateClient(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to update client: %w", err)
	}

	return &assistant.Result{
		Success: true,
		Message: fmt.Sprintf("Updated client %s.", client.Name),
		Data: map[string]any{
			"client_name": client.Name,
			"email":       client.Email,
			"phone":       client.Phone,
			"address":     client.Address,
		},
		Attachments: []models.Attachment{clientAttachment(client)},
	}, nil
}
