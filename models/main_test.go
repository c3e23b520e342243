package models_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/smartbillpro/billing_backend/models"
	"github.com/smartbillpro/billing_backend/storage"
)

type fixture struct {
	kv        *storage.MemoryStore
	persister *models.Persister
	catalog   *models.CatalogStore
	cart      *models.CartLedger
}

// newFixture builds a catalog + cart over an in-memory store. Items are
// installed through the catalog-edit flow so every invariant holds from the
// start.
func newFixture(t *testing.T, items ...models.NewCatalogItem) *fixture {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	kv := storage.NewMemoryStore()
	persister := models.NewPersister(kv, logger)
	catalog := models.NewCatalogStore(persister, logger)
	if err := catalog.ReplaceAll(context.Background(), items); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}
	cart := models.NewCartLedger(catalog, persister, logger)
	return &fixture{kv: kv, persister: persister, catalog: catalog, cart: cart}
}

func price(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

// mustStock fails the test unless the catalog item holds exactly want stock.
func (f *fixture) mustStock(t *testing.T, id string, want int) {
	t.Helper()
	item, ok := f.catalog.FindById(id)
	if !ok {
		t.Fatalf("catalog item %s not found", id)
	}
	if item.Stock != want {
		t.Fatalf("catalog item %s stock = %d, want %d", id, item.Stock, want)
	}
	if item.InStock() != (want > 0) {
		t.Fatalf("catalog item %s inStock = %v with stock %d", id, item.InStock(), want)
	}
}

// cartQty sums the cart quantity allocated to the given product.
func (f *fixture) cartQty(id string) int {
	total := 0
	for _, line := range f.cart.Lines() {
		if line.Id != nil && *line.Id == id {
			total += line.Quantity
		}
	}
	return total
}

// mustConserve checks the conservation law: free stock plus allocated cart
// quantity always equals the item's original stock.
func (f *fixture) mustConserve(t *testing.T, id string, original int) {
	t.Helper()
	item, ok := f.catalog.FindById(id)
	if !ok {
		t.Fatalf("catalog item %s not found", id)
	}
	if got := item.Stock + f.cartQty(id); got != original {
		t.Fatalf("conservation violated for %s: stock %d + cart %d = %d, want %d",
			id, item.Stock, f.cartQty(id), got, original)
	}
	if item.Stock < 0 {
		t.Fatalf("negative stock %d for %s", item.Stock, id)
	}
}
