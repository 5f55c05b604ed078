package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/verdantlabs/storefront/internal/domain/money"
	"github.com/verdantlabs/storefront/internal/domain/product"
)

const (
	listActiveProductsSQL = `SELECT id, name, description, category, image_url, active
		FROM products WHERE active = TRUE ORDER BY name`

	getProductSQL = `SELECT id, name, description, category, image_url, active
		FROM products WHERE id = $1`

	listVariantsForProductsSQL = `SELECT id, product_id, unit_label, unit_value,
		price, stock, active
		FROM product_variants WHERE product_id = ANY($1) ORDER BY price`

	getCatalogItemsSQL = `SELECT v.id, v.product_id, p.name, v.unit_label,
		v.price, v.stock, (v.active AND p.active)
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		WHERE v.id = ANY($1)`
)

var (
	_ product.Repository = (*ProductRepository)(nil)
	_ product.Catalog    = (*ProductRepository)(nil)
)

// ProductRepository implements catalog reads backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// ListActive returns all active products with their variants attached.
func (r *ProductRepository) ListActive(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listActiveProductsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	if len(products) == 0 {
		return products, nil
	}

	ids := make([]uuid.UUID, len(products))
	index := make(map[uuid.UUID]int, len(products))
	for i, p := range products {
		ids[i] = p.ID
		index[p.ID] = i
	}

	variantRows, err := r.pool.Query(ctx, listVariantsForProductsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "list variants")
	}
	variants, err := pgx.CollectRows(variantRows, scanVariant)
	if err != nil {
		return nil, errors.Wrap(err, "list variants")
	}
	for _, v := range variants {
		i := index[v.ProductID]
		products[i].Variants = append(products[i].Variants, v)
	}
	return products, nil
}

// GetByID fetches one product and its variants.
// Returns product.ErrNotFound when it does not exist.
func (r *ProductRepository) GetByID(ctx context.Context, id uuid.UUID) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %s", id)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %s", id)
	}

	variantRows, err := r.pool.Query(ctx, listVariantsForProductsSQL, []uuid.UUID{id})
	if err != nil {
		return nil, errors.Wrapf(err, "get variants for product %s", id)
	}
	p.Variants, err = pgx.CollectRows(variantRows, scanVariant)
	if err != nil {
		return nil, errors.Wrapf(err, "get variants for product %s", id)
	}
	return &p, nil
}

// GetCatalogItems fetches the checkout view of the given variants in one
// query. IDs with no row are simply absent from the result.
func (r *ProductRepository) GetCatalogItems(ctx context.Context, variantIDs []uuid.UUID) ([]product.CatalogItem, error) {
	rows, err := r.pool.Query(ctx, getCatalogItemsSQL, variantIDs)
	if err != nil {
		return nil, errors.Wrap(err, "get catalog items")
	}
	return pgx.CollectRows(rows, scanCatalogItem)
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.ImageURL, &p.Active)
	return p, err
}

func scanVariant(row pgx.CollectableRow) (product.Variant, error) {
	var (
		v     product.Variant
		price decimal.Decimal
	)
	err := row.Scan(&v.ID, &v.ProductID, &v.UnitLabel, &v.UnitValue, &price, &v.Stock, &v.Active)
	v.Price = money.FromDecimal(price)
	return v, err
}

func scanCatalogItem(row pgx.CollectableRow) (product.CatalogItem, error) {
	var (
		ci    product.CatalogItem
		price decimal.Decimal
	)
	err := row.Scan(&ci.VariantID, &ci.ProductID, &ci.ProductName, &ci.UnitLabel, &price, &ci.Stock, &ci.Active)
	ci.UnitPrice = money.FromDecimal(price)
	return ci, err
}
