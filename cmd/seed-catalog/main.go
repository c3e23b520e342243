// seed-catalog force-writes the default product catalog into the configured
// store, discarding whatever catalog is currently persisted. The in-progress
// bill record is left untouched.
//
// Usage (from backend directory):
//
//	REDIS_ADDRESS=localhost:6379 go run ./cmd/seed-catalog
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/smartbillpro/billing_backend/config"
	"github.com/smartbillpro/billing_backend/models"
	"github.com/smartbillpro/billing_backend/storage"
)

func main() {
	ctx := context.Background()

	if os.Getenv("REDIS_ADDRESS") == "" {
		fmt.Fprintln(os.Stderr, "REDIS_ADDRESS not set; seeding an in-memory store would be pointless.")
		os.Exit(1)
	}
	config.ConnectRedisWithRetry()

	kv := storage.NewRedisStore(config.GetRedisDB())
	persister := models.NewPersister(kv, config.GetLogger())

	items := models.SeedCatalog()
	if err := persister.SaveCatalog(ctx, items); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write seed catalog: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("seeded %d catalog items\n", len(items))
	for _, item := range items {
		fmt.Printf("  %s  %-20s price=%s stock=%d\n", item.Id, item.Name, item.Price.StringFixed(2), item.Stock)
	}
}
