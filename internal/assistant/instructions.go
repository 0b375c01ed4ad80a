package assistant

import (
	"fmt"
	"strings"

	"github.com/ledgerline/ledgerline/pkg/models"
)

// BaseInstructions is the standing prompt the remote assistant is created
// with. Per-turn context is layered on top via buildInstructions.
const BaseInstructions = `You are Ledgerline, an invoicing assistant. You help the user create and manage invoices, estimates, clients, and business settings by calling the available tools. Confirm what you did in one or two short sentences. Never invent document numbers or amounts; they come from tool results. If a tool reports that the free plan limit was reached, tell the user an upgrade is required and do not retry.`

// buildInstructions translates the recognized chat context options into
// additional per-run instructions for the remote assistant.
func buildInstructions(chatCtx models.ChatContext) string {
	var parts []string

	if chatCtx.Currency != "" {
		symbol := chatCtx.CurrencySymbol
		if symbol == "" {
			symbol = chatCtx.Currency
		}
		parts = append(parts, fmt.Sprintf(
			"The user's currency is %s (%s). Use it for all amounts unless the user asks otherwise.",
			chatCtx.Currency, symbol))
	}
	if chatCtx.IsFirstInvoice {
		parts = append(parts,
			"This is the user's first invoice. Walk them through the result and point out what they can change.")
	}
	if !chatCtx.HasLogo {
		parts = append(parts,
			"The user has not uploaded a business logo yet. If they ask about invoice appearance, mention that adding a logo is possible in settings.")
	}

	return strings.Join(parts, " ")
}
