package models

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/smartbillpro/billing_backend/config"
)

// DefaultTaxRate is the product default (GST 18%), applied when no persisted
// rate exists and restored by ClearAll.
var DefaultTaxRate = decimal.NewFromInt(18)

// CartLine is one invoice line. Name and price are snapshots taken from the
// catalog at add time; later catalog price edits do not touch existing lines.
// Id is nil only for lines restored from legacy data that lacked an id.
type CartLine struct {
	Id       *string         `json:"id"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

func (l CartLine) references(productId string) bool {
	return l.Id != nil && *l.Id == productId
}

// BillingState is the persisted bill: ordered cart lines plus the two rates.
type BillingState struct {
	Lines        []CartLine
	DiscountRate decimal.Decimal
	TaxRate      decimal.Decimal
}

// CartLedger owns the in-progress invoice. Every mutation reconciles catalog
// stock first and is all-or-nothing: validation failures leave both the cart
// and the catalog untouched. Both stores are rewritten wholesale after each
// successful mutation; write failures are logged and never roll back memory.
type CartLedger struct {
	catalog   *CatalogStore
	persister *Persister
	logger    *logrus.Logger

	lines        []CartLine
	discountRate decimal.Decimal
	taxRate      decimal.Decimal
}

func NewCartLedger(catalog *CatalogStore, persister *Persister, logger *logrus.Logger) *CartLedger {
	return &CartLedger{
		catalog:   catalog,
		persister: persister,
		logger:    logger,
		taxRate:   DefaultTaxRate,
	}
}

// Load restores the persisted bill. Malformed stored data is discarded: the
// ledger starts fresh and the recoverable *PersistenceLoadError is returned
// so the caller can surface the warning.
func (cl *CartLedger) Load(ctx context.Context) error {
	state, found, err := cl.persister.LoadBillingState(ctx)
	if err != nil {
		cl.lines = nil
		cl.discountRate = decimal.Zero
		cl.taxRate = DefaultTaxRate
		config.LogWarn(cl.logger, "CartLedger", "Load", "discarding malformed billing state", nil, err)
		return err
	}
	if !found {
		cl.lines = nil
		cl.discountRate = decimal.Zero
		cl.taxRate = DefaultTaxRate
		return nil
	}
	cl.lines = state.Lines
	cl.discountRate = state.DiscountRate
	cl.taxRate = state.TaxRate
	return nil
}

// Lines returns the cart in insertion order.
func (cl *CartLedger) Lines() []CartLine {
	out := make([]CartLine, len(cl.lines))
	copy(out, cl.lines)
	return out
}

func (cl *CartLedger) Rates() (discountRate, taxRate decimal.Decimal) {
	return cl.discountRate, cl.taxRate
}

// Totals derives the five display values from the current cart and rates.
func (cl *CartLedger) Totals() Totals {
	return CalculateTotals(cl.lines, cl.discountRate, cl.taxRate)
}

// AddItem allocates requestedQty of a catalog product to the cart.
//
// The available pool is the free catalog stock plus whatever this cart
// already holds for the same product: growing the same line is a
// reallocation, not new consumption. Unlike EditQuantity, an add that would
// exceed the pool is rejected, not clamped.
func (cl *CartLedger) AddItem(ctx context.Context, productId string, requestedQty int) (*CartLine, error) {
	item, ok := cl.catalog.FindById(productId)
	if !ok {
		return nil, ErrNotFound
	}
	if item.Stock == 0 {
		return nil, ErrOutOfStock
	}
	if requestedQty <= 0 {
		return nil, ErrInvalidQuantity
	}

	lineIndex := cl.findLine(productId)
	currentCartQty := 0
	if lineIndex >= 0 {
		currentCartQty = cl.lines[lineIndex].Quantity
	}

	availableStock := item.Stock + currentCartQty
	if currentCartQty+requestedQty > availableStock {
		return nil, &InsufficientStockError{Available: availableStock}
	}

	if lineIndex >= 0 {
		cl.lines[lineIndex].Quantity = currentCartQty + requestedQty
	} else {
		id := item.Id
		cl.lines = append(cl.lines, CartLine{
			Id:       &id,
			Name:     item.Name,
			Price:    item.Price,
			Quantity: requestedQty,
		})
		lineIndex = len(cl.lines) - 1
	}

	cl.catalog.adjustStock(item, -requestedQty)
	cl.persist(ctx)

	line := cl.lines[lineIndex]
	return &line, nil
}

// EditQuantity sets a line to newQty. A request beyond the available pool is
// clamped to the pool and a *StockClamp warning is returned alongside the
// updated line; this clamp-instead-of-reject asymmetry with AddItem is
// deliberate, preserved source behavior.
func (cl *CartLedger) EditQuantity(ctx context.Context, lineIndex int, newQty int) (*CartLine, *StockClamp, error) {
	if lineIndex < 0 || lineIndex >= len(cl.lines) {
		return nil, nil, ErrOutOfRange
	}
	if newQty <= 0 {
		return nil, nil, ErrInvalidQuantity
	}

	line := &cl.lines[lineIndex]
	oldQty := line.Quantity

	var clamp *StockClamp
	if line.Id != nil {
		if item, ok := cl.catalog.FindById(*line.Id); ok {
			availableStock := item.Stock + oldQty
			if newQty > availableStock {
				clamp = &StockClamp{Requested: newQty, ClampedTo: availableStock}
				newQty = availableStock
				config.LogWarn(cl.logger, "CartLedger", "EditQuantity", "quantity clamped to available stock", *line.Id, clamp)
			}
			cl.catalog.adjustStock(item, oldQty-newQty)
		}
	}

	line.Quantity = newQty
	cl.persist(ctx)

	updated := *line
	return &updated, clamp, nil
}

// RemoveLine deletes a cart line and returns its quantity to catalog stock.
// The restore is unconditional; there is no stock ceiling.
func (cl *CartLedger) RemoveLine(ctx context.Context, lineIndex int) error {
	if lineIndex < 0 || lineIndex >= len(cl.lines) {
		return ErrOutOfRange
	}

	line := cl.lines[lineIndex]
	if line.Id != nil {
		if item, ok := cl.catalog.FindById(*line.Id); ok {
			cl.catalog.adjustStock(item, line.Quantity)
		}
	}

	cl.lines = append(cl.lines[:lineIndex], cl.lines[lineIndex+1:]...)
	cl.persist(ctx)
	return nil
}

// ClearAll empties the cart, returning every line's quantity to its catalog
// item, and resets the rates to their defaults (discount 0, tax 18).
//
// A line whose catalog item was removed while still in the cart is dropped
// without restoring its quantity anywhere: that stock is lost. This is a
// known data-loss edge preserved from the source behavior.
func (cl *CartLedger) ClearAll(ctx context.Context) error {
	for _, line := range cl.lines {
		if line.Id == nil {
			continue
		}
		item, ok := cl.catalog.FindById(*line.Id)
		if !ok {
			config.LogWarn(cl.logger, "CartLedger", "ClearAll", "catalog item missing; dropping allocated quantity", *line.Id, ErrNotFound)
			continue
		}
		cl.catalog.adjustStock(item, line.Quantity)
	}

	cl.lines = nil
	cl.discountRate = decimal.Zero
	cl.taxRate = DefaultTaxRate
	cl.persist(ctx)
	return nil
}

// Filter returns cart lines whose name contains query (case-insensitive),
// preserving insertion order. Non-destructive.
func (cl *CartLedger) Filter(query string) []CartLine {
	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]CartLine, 0, len(cl.lines))
	for _, line := range cl.lines {
		if query == "" || strings.Contains(strings.ToLower(line.Name), query) {
			out = append(out, line)
		}
	}
	return out
}

// SetDiscountRate clamps to [0,100] and persists.
func (cl *CartLedger) SetDiscountRate(ctx context.Context, rate decimal.Decimal) {
	cl.discountRate = clampRate(rate)
	cl.persist(ctx)
}

// SetTaxRate clamps to [0,100] and persists.
func (cl *CartLedger) SetTaxRate(ctx context.Context, rate decimal.Decimal) {
	cl.taxRate = clampRate(rate)
	cl.persist(ctx)
}

func (cl *CartLedger) findLine(productId string) int {
	for i, line := range cl.lines {
		if line.references(productId) {
			return i
		}
	}
	return -1
}

// persist rewrites both stores wholesale. Write failures never roll back the
// in-memory mutation; they are reported as warnings and the session continues
// on memory alone.
func (cl *CartLedger) persist(ctx context.Context) {
	if err := cl.catalog.Save(ctx); err != nil {
		config.LogWarn(cl.logger, "CartLedger", "persist", "catalog write failed; continuing in memory", nil, err)
	}
	state := BillingState{Lines: cl.lines, DiscountRate: cl.discountRate, TaxRate: cl.taxRate}
	if err := cl.persister.SaveBillingState(ctx, state); err != nil {
		config.LogWarn(cl.logger, "CartLedger", "persist", "billing state write failed; continuing in memory", nil, err)
	}
}
