package models

import "github.com/shopspring/decimal"

var decimalOneHundred = decimal.NewFromInt(100)

// Totals carries the five derived display values. All amounts keep full
// precision; rounding to 2 decimal places happens only in View().
type Totals struct {
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	DiscountedTotal decimal.Decimal `json:"discounted_total"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	FinalTotal      decimal.Decimal `json:"final_total"`
}

// CalculateTotals derives the bill totals from the cart lines and the two
// rates. Tax is computed on the post-discount amount, never on the raw
// subtotal; that ordering is part of the contract.
//
// Rates are expected in [0,100]; callers clamp them upstream.
func CalculateTotals(lines []CartLine, discountRate, taxRate decimal.Decimal) Totals {
	var subtotal decimal.Decimal
	for _, line := range lines {
		subtotal = subtotal.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	discountAmount := subtotal.Mul(discountRate).Div(decimalOneHundred)
	discountedTotal := subtotal.Sub(discountAmount)
	taxAmount := discountedTotal.Mul(taxRate).Div(decimalOneHundred)
	finalTotal := discountedTotal.Add(taxAmount)

	return Totals{
		Subtotal:        subtotal,
		DiscountAmount:  discountAmount,
		DiscountedTotal: discountedTotal,
		TaxAmount:       taxAmount,
		FinalTotal:      finalTotal,
	}
}

// TotalsView is the presentation form: every amount fixed to 2 decimal places.
type TotalsView struct {
	Subtotal        string `json:"subtotal"`
	DiscountAmount  string `json:"discount_amount"`
	DiscountedTotal string `json:"discounted_total"`
	TaxAmount       string `json:"tax_amount"`
	FinalTotal      string `json:"final_total"`
}

func (t Totals) View() TotalsView {
	return TotalsView{
		Subtotal:        t.Subtotal.StringFixed(2),
		DiscountAmount:  t.DiscountAmount.StringFixed(2),
		DiscountedTotal: t.DiscountedTotal.StringFixed(2),
		TaxAmount:       t.TaxAmount.StringFixed(2),
		FinalTotal:      t.FinalTotal.StringFixed(2),
	}
}

// clampRate forces a rate into [0,100].
func clampRate(rate decimal.Decimal) decimal.Decimal {
	if rate.IsNegative() {
		return decimal.Zero
	}
	if rate.GreaterThan(decimalOneHundred) {
		return decimalOneHundred
	}
	return rate
}
