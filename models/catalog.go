package models

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/smartbillpro/billing_backend/config"
)

// CatalogStore owns the list of purchasable items and their stock. All
// mutation flows through its methods; the cart ledger reconciles stock
// through AdjustStock and never touches items directly.
type CatalogStore struct {
	persister *Persister
	logger    *logrus.Logger
	items     []CatalogItem
}

func NewCatalogStore(persister *Persister, logger *logrus.Logger) *CatalogStore {
	return &CatalogStore{persister: persister, logger: logger}
}

// Load reads the persisted catalog. An absent catalog is seeded with the
// default item set; malformed data is discarded, the seed set takes over and
// the recoverable *PersistenceLoadError is returned. Items whose identifier
// fails the 10-digit numeric shape get a fresh id in place; the migration
// never removes or reorders items.
func (cs *CatalogStore) Load(ctx context.Context) error {
	items, found, loadErr := cs.persister.LoadCatalog(ctx)
	if loadErr != nil {
		config.LogWarn(cs.logger, "CatalogStore", "Load", "discarding malformed catalog; falling back to seed set", nil, loadErr)
		cs.items = SeedCatalog()
		cs.save(ctx)
		return loadErr
	}
	if !found {
		cs.items = SeedCatalog()
		cs.save(ctx)
		return nil
	}

	migrated := false
	for i := range items {
		if !HasProductIdShape(items[i].Id) {
			items[i].Id = GenerateProductId()
			migrated = true
		}
	}
	cs.items = items
	if migrated {
		cs.save(ctx)
	}
	return nil
}

// Save serializes the full catalog. A write failure is non-fatal: the
// in-memory catalog remains authoritative for the session.
func (cs *CatalogStore) Save(ctx context.Context) error {
	return cs.persister.SaveCatalog(ctx, cs.items)
}

// save is Save for flows that only warn on failure.
func (cs *CatalogStore) save(ctx context.Context) {
	if err := cs.Save(ctx); err != nil {
		config.LogWarn(cs.logger, "CatalogStore", "save", "catalog write failed; continuing in memory", nil, err)
	}
}

// Items returns the catalog in stored order.
func (cs *CatalogStore) Items() []CatalogItem {
	out := make([]CatalogItem, len(cs.items))
	copy(out, cs.items)
	return out
}

// FindById is an exact-match lookup. The returned pointer addresses the live
// item so stock adjustments apply in place.
func (cs *CatalogStore) FindById(id string) (*CatalogItem, bool) {
	for i := range cs.items {
		if cs.items[i].Id == id {
			return &cs.items[i], true
		}
	}
	return nil, false
}

// AdjustStock applies stock += delta with the 0 floor and leaves persistence
// to the caller, which writes both stores after the surrounding mutation.
func (cs *CatalogStore) AdjustStock(id string, delta int) error {
	item, ok := cs.FindById(id)
	if !ok {
		return ErrNotFound
	}
	cs.adjustStock(item, delta)
	return nil
}

func (cs *CatalogStore) adjustStock(item *CatalogItem, delta int) {
	item.setStock(item.Stock + delta)
}

// Add inserts a new catalog item. The identifier must be non-empty and unique.
func (cs *CatalogStore) Add(ctx context.Context, input NewCatalogItem) (*CatalogItem, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	item := input.item()
	if item.Id == "" {
		return nil, ErrInvalidProduct
	}
	if _, exists := cs.FindById(item.Id); exists {
		return nil, ErrDuplicateId
	}

	cs.items = append(cs.items, item)
	cs.save(ctx)
	stored := cs.items[len(cs.items)-1]
	return &stored, nil
}

// Update edits an existing item in place. Stock is clamped at 0 and the
// in-stock flag follows from it; it is never accepted as input.
func (cs *CatalogStore) Update(ctx context.Context, id string, input NewCatalogItem) (*CatalogItem, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	existing, ok := cs.FindById(id)
	if !ok {
		return nil, ErrNotFound
	}

	updated := input.item()
	if updated.Id == "" {
		updated.Id = id
	}
	if updated.Id != id {
		if _, exists := cs.FindById(updated.Id); exists {
			return nil, ErrDuplicateId
		}
	}
	*existing = updated
	cs.save(ctx)
	result := *existing
	return &result, nil
}

// Remove deletes an item by id. Cart lines referencing it keep their
// snapshots; clearing the cart later drops their quantity (see ClearAll).
func (cs *CatalogStore) Remove(ctx context.Context, id string) error {
	for i := range cs.items {
		if cs.items[i].Id == id {
			cs.items = append(cs.items[:i], cs.items[i+1:]...)
			cs.save(ctx)
			return nil
		}
	}
	return ErrNotFound
}

// ReplaceAll swaps in the catalog-edit result wholesale. Rows failing
// validation are skipped with a warning, matching the edit-modal flow;
// duplicate identifiers reject the whole replacement so uniqueness holds.
func (cs *CatalogStore) ReplaceAll(ctx context.Context, inputs []NewCatalogItem) error {
	newItems := make([]CatalogItem, 0, len(inputs))
	seen := make(map[string]bool, len(inputs))
	for _, input := range inputs {
		item := input.item()
		if item.Id == "" || input.validate() != nil {
			config.LogWarn(cs.logger, "CatalogStore", "ReplaceAll", "skipping invalid catalog row", item.Id, ErrInvalidProduct)
			continue
		}
		if seen[item.Id] {
			return ErrDuplicateId
		}
		seen[item.Id] = true
		newItems = append(newItems, item)
	}

	cs.items = newItems
	cs.save(ctx)
	return nil
}

// Filter matches name or id, case-insensitive. limit <= 0 means no limit.
// Out-of-stock items are included so availability stays visible.
func (cs *CatalogStore) Filter(query string, limit int) []CatalogItem {
	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]CatalogItem, 0, len(cs.items))
	for _, item := range cs.items {
		if query != "" &&
			!strings.Contains(strings.ToLower(item.Name), query) &&
			!strings.Contains(strings.ToLower(item.Id), query) {
			continue
		}
		out = append(out, item)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
