package billing

import (
	"math"
	"testing"
)

func TestNextDocumentNumber(t *testing.T) {
	cases := []struct {
		last string
		seed string
		want string
	}{
		{"", InvoiceNumberSeed, "INV-0001"},
		{"INV-0001", InvoiceNumberSeed, "INV-0002"},
		{"INV-0007", InvoiceNumberSeed, "INV-0008"},
		{"INV-0099", InvoiceNumberSeed, "INV-0100"},
		{"INV-9999", InvoiceNumberSeed, "INV-10000"},
		{"EST-0041", EstimateNumberSeed, "EST-0042"},
		{"42", InvoiceNumberSeed, "43"},
		{"2024-INV-005", InvoiceNumberSeed, "2024-INV-006"},
		// No numeric suffix restarts the sequence.
		{"INV-", InvoiceNumberSeed, "INV-0001"},
		{"DRAFT", InvoiceNumberSeed, "INV-0001"},
	}
	for _, tc := range cases {
		if got := NextDocumentNumber(tc.last, tc.seed); got != tc.want {
			t.Errorf("NextDocumentNumber(%q, %q) = %q, want %q", tc.last, tc.seed, got, tc.want)
		}
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestLineTotals(t *testing.T) {
	cases := []struct {
		quantity  float64
		unitPrice float64
		wantQty   float64
		wantTotal float64
	}{
		{2, 50, 2, 100},
		{0.5, 100, 0.5, 50},
		// Zero and negative quantities normalize to one.
		{0, 80, 1, 80},
		{-3, 80, 1, 80},
	}
	for _, tc := range cases {
		qty, total := LineTotals(tc.quantity, tc.unitPrice)
		if !almostEqual(qty, tc.wantQty) || !almostEqual(total, tc.wantTotal) {
			t.Errorf("LineTotals(%v, %v) = (%v, %v), want (%v, %v)",
				tc.quantity, tc.unitPrice, qty, total, tc.wantQty, tc.wantTotal)
		}
	}
}

func TestDocumentTotals(t *testing.T) {
	subtotal, total := DocumentTotals([]float64{100, 50, 25}, 20)
	if !almostEqual(subtotal, 175) {
		t.Fatalf("subtotal = %v, want 175", subtotal)
	}
	if !almostEqual(total, 210) {
		t.Fatalf("total = %v, want 210", total)
	}

	// Zero tax leaves the total equal to the subtotal.
	subtotal, total = DocumentTotals([]float64{40, 60}, 0)
	if !almostEqual(subtotal, 100) || !almostEqual(total, 100) {
		t.Fatalf("zero tax totals = (%v, %v), want (100, 100)", subtotal, total)
	}

	// No lines means a zero document regardless of tax.
	subtotal, total = DocumentTotals(nil, 25)
	if subtotal != 0 || total != 0 {
		t.Fatalf("empty totals = (%v, %v), want (0, 0)", subtotal, total)
	}
}

func TestFormatAmount(t *testing.T) {
	if got := FormatAmount("$", 1234.5); got != "$1234.50" {
		t.Fatalf("FormatAmount = %q", got)
	}
	if got := FormatAmount("€", 0); got != "€0.00" {
		t.Fatalf("FormatAmount = %q", got)
	}
}
