package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/smartbillpro/billing_backend/config"
	"github.com/smartbillpro/billing_backend/storage"
	"github.com/smartbillpro/billing_backend/utils"
)

// Storage keys. Two independent records; each is rewritten wholesale after
// every mutation and reconstructed wholesale at startup.
const (
	CatalogStorageKey = "catalog"
	BillingStorageKey = "smartBillPro_data"
)

// Persister round-trips the catalog and the billing state through the
// key-value store. Loads validate shape defensively and discard malformed
// data instead of partially trusting it.
type Persister struct {
	kv     storage.KVStore
	logger *logrus.Logger
}

func NewPersister(kv storage.KVStore, logger *logrus.Logger) *Persister {
	return &Persister{kv: kv, logger: logger}
}

// catalogRecord mirrors the stored catalog entry. Pointer fields make missing
// keys detectable. The stored inStock flag is accepted for backward
// compatibility and ignored: it is derived from stock, never trusted.
type catalogRecord struct {
	Id      *string          `json:"id"`
	Name    *string          `json:"name"`
	Price   *decimal.Decimal `json:"price"`
	Stock   *int             `json:"stock"`
	InStock *bool            `json:"inStock"`
}

// LoadCatalog returns the persisted catalog, found=false when no record
// exists, or a *PersistenceLoadError when the record is not a list of
// complete items.
func (p *Persister) LoadCatalog(ctx context.Context) ([]CatalogItem, bool, error) {
	raw, found, err := p.kv.Get(ctx, CatalogStorageKey)
	if err != nil {
		return nil, false, &PersistenceLoadError{Key: CatalogStorageKey, Cause: err}
	}
	if !found {
		return nil, false, nil
	}

	var records []catalogRecord
	if err := utils.UnmarshalFromJSON([]byte(raw), &records); err != nil {
		return nil, true, &PersistenceLoadError{Key: CatalogStorageKey, Cause: err}
	}

	items := make([]CatalogItem, 0, len(records))
	for i, rec := range records {
		if rec.Id == nil || rec.Name == nil || rec.Price == nil || rec.Stock == nil {
			return nil, true, &PersistenceLoadError{
				Key:   CatalogStorageKey,
				Cause: fmt.Errorf("catalog item %d is missing required fields", i),
			}
		}
		item := CatalogItem{Id: *rec.Id, Name: *rec.Name, Price: *rec.Price}
		item.setStock(*rec.Stock)
		items = append(items, item)
	}
	return items, true, nil
}

func (p *Persister) SaveCatalog(ctx context.Context, items []CatalogItem) error {
	if items == nil {
		items = []CatalogItem{}
	}
	data, err := utils.MarshalToJSON(items)
	if err != nil {
		return &PersistenceWriteError{Key: CatalogStorageKey, Cause: err}
	}
	if err := p.kv.Set(ctx, CatalogStorageKey, data); err != nil {
		return &PersistenceWriteError{Key: CatalogStorageKey, Cause: err}
	}
	return nil
}

// billingRecord mirrors the stored billing state. Rates stay raw so a bad
// rate degrades to its default instead of poisoning the whole record.
type billingRecord struct {
	Products     []cartLineRecord `json:"products"`
	DiscountRate json.RawMessage  `json:"discountRate"`
	TaxRate      json.RawMessage  `json:"taxRate"`
}

type cartLineRecord struct {
	Id       *string          `json:"id"`
	Name     *string          `json:"name"`
	Quantity *float64         `json:"quantity"`
	Price    *decimal.Decimal `json:"price"`
}

// LoadBillingState restores the persisted bill. The top-level record failing
// to decode discards everything with a *PersistenceLoadError; an individual
// line missing fields is dropped with a warning while the rest survive.
// Rates default to 0 (discount) and 18 (tax) when absent or invalid — the
// tax default is a product decision, not a generic zero fallback.
func (p *Persister) LoadBillingState(ctx context.Context) (*BillingState, bool, error) {
	raw, found, err := p.kv.Get(ctx, BillingStorageKey)
	if err != nil {
		return nil, false, &PersistenceLoadError{Key: BillingStorageKey, Cause: err}
	}
	if !found {
		return nil, false, nil
	}

	var record billingRecord
	if err := utils.UnmarshalFromJSON([]byte(raw), &record); err != nil {
		return nil, true, &PersistenceLoadError{Key: BillingStorageKey, Cause: err}
	}

	lines := make([]CartLine, 0, len(record.Products))
	for i, rec := range record.Products {
		if rec.Name == nil || rec.Quantity == nil || rec.Price == nil {
			config.LogWarn(p.logger, "Persister", "LoadBillingState", "dropping cart line with missing fields", i, errors.New("invalid cart line"))
			continue
		}
		qty := int(*rec.Quantity)
		if qty <= 0 {
			config.LogWarn(p.logger, "Persister", "LoadBillingState", "dropping cart line with non-positive quantity", i, ErrInvalidQuantity)
			continue
		}
		lines = append(lines, CartLine{
			Id:       rec.Id,
			Name:     *rec.Name,
			Quantity: qty,
			Price:    *rec.Price,
		})
	}

	state := BillingState{
		Lines:        lines,
		DiscountRate: parseRate(record.DiscountRate, decimal.Zero),
		TaxRate:      parseRate(record.TaxRate, DefaultTaxRate),
	}
	return &state, true, nil
}

func (p *Persister) SaveBillingState(ctx context.Context, state BillingState) error {
	lines := state.Lines
	if lines == nil {
		lines = []CartLine{}
	}
	record := struct {
		Products     []CartLine      `json:"products"`
		DiscountRate decimal.Decimal `json:"discountRate"`
		TaxRate      decimal.Decimal `json:"taxRate"`
	}{Products: lines, DiscountRate: state.DiscountRate, TaxRate: state.TaxRate}

	data, err := utils.MarshalToJSON(record)
	if err != nil {
		return &PersistenceWriteError{Key: BillingStorageKey, Cause: err}
	}
	if err := p.kv.Set(ctx, BillingStorageKey, data); err != nil {
		return &PersistenceWriteError{Key: BillingStorageKey, Cause: err}
	}
	return nil
}

// parseRate decodes a raw rate, falling back to def when the value is
// absent, not a number, or outside [0,100]. Out-of-range counts as invalid
// rather than being clamped, matching how the source restored rates.
func parseRate(raw json.RawMessage, def decimal.Decimal) decimal.Decimal {
	if len(raw) == 0 || string(raw) == "null" {
		return def
	}
	var rate decimal.Decimal
	if err := json.Unmarshal(raw, &rate); err != nil {
		return def
	}
	if rate.IsNegative() || rate.GreaterThan(decimalOneHundred) {
		return def
	}
	return rate
}
