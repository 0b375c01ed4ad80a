package billing

import (
	"fmt"
	"strconv"
	"strings"
)

// Numbering seeds for the two document sequences.
const (
	InvoiceNumberSeed  = "INV-0001"
	EstimateNumberSeed = "EST-0001"
)

// NextDocumentNumber derives the next document number from the most recent
// one: the trailing numeric suffix is incremented and left-padded to the same
// width. An empty last number starts the sequence at seed.
//
// This is a best-effort monotonic counter, not a globally unique sequence:
// concurrent creations by the same user can race and produce duplicates. The
// store does not enforce uniqueness; fixing this needs a per-user atomic
// counter or a unique constraint with retry.
func NextDocumentNumber(last, seed string) string {
	if last == "" {
		return seed
	}

	// Find the trailing digit run.
	end := len(last)
	start := end
	for start > 0 && last[start-1] >= '0' && last[start-1] <= '9' {
		start--
	}
	if start == end {
		// No numeric suffix to increment; restart the sequence.
		return seed
	}

	digits := last[start:end]
	n, err := strconv.Atoi(digits)
	if err != nil {
		return seed
	}
	next := strconv.Itoa(n + 1)
	if pad := len(digits) - len(next); pad > 0 {
		next = strings.Repeat("0", pad) + next
	}
	return last[:start] + next
}

// LineTotals normalizes a line's quantity and computes its total.
// A quantity of zero or less is treated as one.
func LineTotals(quantity, unitPrice float64) (normalizedQty, total float64) {
	if quantity <= 0 {
		quantity = 1
	}
	return quantity, quantity * unitPrice
}

// DocumentTotals computes the subtotal and tax-inclusive grand total for a
// set of line totals. Amounts are kept as native floats; rounding happens at
// display time only.
func DocumentTotals(lineTotals []float64, taxPercentage float64) (subtotal, total float64) {
	for _, t := range lineTotals {
		subtotal += t
	}
	total = subtotal * (1 + taxPercentage/100)
	return subtotal, total
}

// FormatAmount renders an amount for user-facing text with two decimals.
func FormatAmount(symbol string, amount float64) string {
	return fmt.Sprintf("%s%.2f", symbol, amount)
}
