// Package storage provides the key-value store the billing state is mirrored
// to. The billing stores take an explicit KVStore handle; no package-level
// state is involved, so tests can swap in the memory driver.
package storage

import "context"

// KVStore is the persistence collaborator contract: two independent records
// (catalog and billing state) round-trip through it as JSON strings.
type KVStore interface {
	// Get returns the stored value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string) error
	Remove(ctx context.Context, key string) error
}
