// Package product defines the catalog entities and lookup contracts. The
// checkout workflow treats variant prices from here as the only source of
// truth for unit prices.
package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/verdantlabs/storefront/internal/domain/money"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is a catalog item. Purchasable units are its variants.
type Product struct {
	ID          uuid.UUID
	Name        string
	Description string
	Category    string
	ImageURL    string
	Active      bool
	Variants    []Variant
}

// Variant is a sellable unit of a product with its own price and stock.
type Variant struct {
	ID        uuid.UUID
	ProductID uuid.UUID
	UnitLabel string
	UnitValue string
	Price     money.Money
	Stock     int
	Active    bool
}

// CatalogItem is the flattened catalog view the checkout workflow consumes:
// one variant joined with its product's display name.
type CatalogItem struct {
	VariantID   uuid.UUID
	ProductID   uuid.UUID
	ProductName string
	UnitLabel   string
	UnitPrice   money.Money
	Stock       int
	Active      bool
}

// Repository defines read operations for the storefront catalog.
type Repository interface {
	ListActive(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Product, error)
}

// Catalog provides the batch variant lookup used during checkout.
type Catalog interface {
	// GetCatalogItems fetches the given variants in one query. Missing IDs
	// are simply absent from the result; callers detect them by comparing.
	GetCatalogItems(ctx context.Context, variantIDs []uuid.UUID) ([]CatalogItem, error)
}
