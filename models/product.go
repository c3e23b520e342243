package models

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// CatalogItem is a purchasable product with its current free stock.
// The in-stock flag is derived from Stock and is never independent state;
// it is recomputed wherever stock changes and emitted for the wire format
// through MarshalJSON.
type CatalogItem struct {
	Id    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

func (it *CatalogItem) InStock() bool {
	return it.Stock > 0
}

// setStock clamps at the 0 floor. Deltas that would drive stock negative are
// clamped, not rejected.
func (it *CatalogItem) setStock(stock int) {
	if stock < 0 {
		stock = 0
	}
	it.Stock = stock
}

func (it CatalogItem) MarshalJSON() ([]byte, error) {
	type alias CatalogItem
	return json.Marshal(struct {
		alias
		InStock bool `json:"inStock"`
	}{alias: alias(it), InStock: it.InStock()})
}

// NewCatalogItem is the catalog-edit input. An empty Id means "generate one".
type NewCatalogItem struct {
	Id    string          `json:"id"`
	Name  string          `json:"name" binding:"required"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

func (input NewCatalogItem) validate() error {
	if strings.TrimSpace(input.Name) == "" {
		return ErrInvalidProduct
	}
	if input.Price.IsNegative() {
		return ErrInvalidProduct
	}
	return nil
}

// item builds the catalog entry, clamping negative stock to 0.
func (input NewCatalogItem) item() CatalogItem {
	it := CatalogItem{
		Id:    strings.TrimSpace(input.Id),
		Name:  strings.TrimSpace(input.Name),
		Price: input.Price,
	}
	it.setStock(input.Stock)
	return it
}

var productIdShape = regexp.MustCompile(`^\d{10}$`)

// HasProductIdShape reports whether id follows the 10-digit numeric
// convention. Ids failing the shape are regenerated in place on load.
func HasProductIdShape(id string) bool {
	return productIdShape.MatchString(id)
}

// GenerateProductId produces a random 10-digit numeric product id. The first
// digit is 1-9 so the id is a proper 10-digit number.
func GenerateProductId() string {
	firstDigit := rand.Intn(9) + 1
	remaining := rand.Intn(1000000000)
	return fmt.Sprintf("%d%09d", firstDigit, remaining)
}

// SeedCatalog is the fixed default item set used when no persisted catalog
// exists, with freshly generated identifiers. Prices are in Rupees.
func SeedCatalog() []CatalogItem {
	seed := []struct {
		name  string
		price string
		stock int
	}{
		{"Laptop Computer", "49999.99", 25},
		{"Wireless Mouse", "1499.99", 100},
		{"USB Keyboard", "2499.99", 75},
		{"Monitor 24\"", "9999.99", 50},
		{"Webcam HD", "3999.99", 30},
		{"Headphones", "4499.99", 60},
		{"USB Cable", "499.99", 200},
		{"HDD 1TB", "2999.99", 40},
		{"SSD 512GB", "6499.99", 35},
		{"RAM 16GB", "7499.99", 20},
	}

	items := make([]CatalogItem, 0, len(seed))
	for _, s := range seed {
		items = append(items, CatalogItem{
			Id:    GenerateProductId(),
			Name:  s.name,
			Price: decimal.RequireFromString(s.price),
			Stock: s.stock,
		})
	}
	return items
}
