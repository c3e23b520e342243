package models_test

import (
	"context"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/smartbillpro/billing_backend/models"
)

func line(t *testing.T, name, unitPrice string, qty int) models.CartLine {
	t.Helper()
	return models.CartLine{Name: name, Price: price(t, unitPrice), Quantity: qty}
}

// 1000 subtotal, 10% discount, 18% tax on the discounted 900:
// 100 off, 162 tax, 1062 due.
func TestCalculateTotals_TaxOnDiscountedAmount(t *testing.T) {
	lines := []models.CartLine{
		line(t, "Laptop", "400", 2),
		line(t, "Mouse", "100", 2),
	}

	totals := models.CalculateTotals(lines, decimal.NewFromInt(10), decimal.NewFromInt(18))

	view := totals.View()
	if view.Subtotal != "1000.00" {
		t.Fatalf("subtotal = %s, want 1000.00", view.Subtotal)
	}
	if view.DiscountAmount != "100.00" {
		t.Fatalf("discount amount = %s, want 100.00", view.DiscountAmount)
	}
	if view.DiscountedTotal != "900.00" {
		t.Fatalf("discounted total = %s, want 900.00", view.DiscountedTotal)
	}
	if view.TaxAmount != "162.00" {
		t.Fatalf("tax amount = %s, want 162.00", view.TaxAmount)
	}
	if view.FinalTotal != "1062.00" {
		t.Fatalf("final total = %s, want 1062.00", view.FinalTotal)
	}
}

func TestCalculateTotals_EmptyCart(t *testing.T) {
	totals := models.CalculateTotals(nil, decimal.NewFromInt(10), decimal.NewFromInt(18))
	view := totals.View()
	for field, got := range map[string]string{
		"subtotal":         view.Subtotal,
		"discount_amount":  view.DiscountAmount,
		"discounted_total": view.DiscountedTotal,
		"tax_amount":       view.TaxAmount,
		"final_total":      view.FinalTotal,
	} {
		if got != "0.00" {
			t.Fatalf("%s = %s, want 0.00", field, got)
		}
	}
}

func TestCalculateTotals_ZeroRates(t *testing.T) {
	lines := []models.CartLine{line(t, "Laptop", "123.45", 3)}
	totals := models.CalculateTotals(lines, decimal.Zero, decimal.Zero)
	if !totals.FinalTotal.Equal(totals.Subtotal) {
		t.Fatalf("final total %s != subtotal %s with zero rates", totals.FinalTotal, totals.Subtotal)
	}
	if !totals.DiscountAmount.IsZero() || !totals.TaxAmount.IsZero() {
		t.Fatalf("nonzero adjustments with zero rates: %+v", totals)
	}
}

// Fractional money must not drift: full precision internally, rounding only
// at the view boundary.
func TestCalculateTotals_FractionalPrecision(t *testing.T) {
	lines := []models.CartLine{line(t, "Cable", "0.10", 3)}
	totals := models.CalculateTotals(lines, decimal.Zero, decimal.Zero)
	if !totals.Subtotal.Equal(price(t, "0.3")) {
		t.Fatalf("subtotal = %s, want 0.3", totals.Subtotal)
	}

	// 33.33% of 1.00 keeps its exact decimal value before rounding.
	totals = models.CalculateTotals(
		[]models.CartLine{line(t, "Unit", "1.00", 1)},
		price(t, "33.33"), decimal.Zero,
	)
	if !totals.DiscountAmount.Equal(price(t, "0.3333")) {
		t.Fatalf("discount amount = %s, want 0.3333", totals.DiscountAmount)
	}
	if totals.View().DiscountAmount != "0.33" {
		t.Fatalf("view discount amount = %s, want 0.33", totals.View().DiscountAmount)
	}
}

// Totals are a pure fold over the lines: reordering them changes nothing.
func TestCalculateTotals_OrderIndependent(t *testing.T) {
	lines := []models.CartLine{
		line(t, "A", "19.99", 3),
		line(t, "B", "0.05", 17),
		line(t, "C", "1250.00", 1),
		line(t, "D", "7.77", 9),
	}
	want := models.CalculateTotals(lines, price(t, "12.5"), price(t, "18"))

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := make([]models.CartLine, len(lines))
		copy(shuffled, lines)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got := models.CalculateTotals(shuffled, price(t, "12.5"), price(t, "18"))
		if !got.FinalTotal.Equal(want.FinalTotal) || !got.Subtotal.Equal(want.Subtotal) {
			t.Fatalf("shuffle changed totals: got %s/%s, want %s/%s",
				got.Subtotal, got.FinalTotal, want.Subtotal, want.FinalTotal)
		}
	}
}

func TestSetRates_ClampIntoRange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, models.NewCatalogItem{Id: "1000000001", Name: "Laptop", Price: price(t, "100"), Stock: 5})

	f.cart.SetDiscountRate(ctx, decimal.NewFromInt(-5))
	f.cart.SetTaxRate(ctx, decimal.NewFromInt(250))
	discount, tax := f.cart.Rates()
	if !discount.IsZero() {
		t.Fatalf("negative discount rate clamped to %s, want 0", discount)
	}
	if !tax.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("oversized tax rate clamped to %s, want 100", tax)
	}

	f.cart.SetDiscountRate(ctx, price(t, "12.5"))
	discount, _ = f.cart.Rates()
	if !discount.Equal(price(t, "12.5")) {
		t.Fatalf("in-range discount rate = %s, want 12.5", discount)
	}
}
