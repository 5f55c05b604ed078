package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/verdantlabs/storefront/internal/domain/money"
	"github.com/verdantlabs/storefront/internal/domain/shipping"
)

const (
	shippingColumns = `id, name, description, price, currency, estimated_days, active, sort_order`

	listActiveShippingSQL = `SELECT ` + shippingColumns + `
		FROM shipping_options WHERE active = TRUE ORDER BY sort_order, price`

	listShippingSQL = `SELECT ` + shippingColumns + `
		FROM shipping_options ORDER BY sort_order, price`

	getShippingSQL = `SELECT ` + shippingColumns + `
		FROM shipping_options WHERE id = $1`

	insertShippingSQL = `INSERT INTO shipping_options
		(id, name, description, price, currency, estimated_days, active, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	updateShippingSQL = `UPDATE shipping_options SET name = $2, description = $3,
		price = $4, currency = $5, estimated_days = $6, active = $7, sort_order = $8
		WHERE id = $1`

	deleteShippingSQL = `DELETE FROM shipping_options WHERE id = $1`
)

var _ shipping.Repository = (*ShippingRepository)(nil)

// ShippingRepository implements shipping.Repository backed by PostgreSQL.
type ShippingRepository struct {
	pool *pgxpool.Pool
}

// NewShippingRepository returns a ShippingRepository that uses the given pool.
func NewShippingRepository(pool *pgxpool.Pool) *ShippingRepository {
	return &ShippingRepository{pool: pool}
}

// ListActive returns the options selectable at checkout.
func (r *ShippingRepository) ListActive(ctx context.Context) ([]shipping.Option, error) {
	rows, err := r.pool.Query(ctx, listActiveShippingSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list shipping options")
	}
	return pgx.CollectRows(rows, scanShippingOption)
}

// List returns all options, including inactive ones, for the back office.
func (r *ShippingRepository) List(ctx context.Context) ([]shipping.Option, error) {
	rows, err := r.pool.Query(ctx, listShippingSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list shipping options")
	}
	return pgx.CollectRows(rows, scanShippingOption)
}

// GetByID fetches one option. Returns shipping.ErrNotFound when absent.
func (r *ShippingRepository) GetByID(ctx context.Context, id uuid.UUID) (*shipping.Option, error) {
	rows, err := r.pool.Query(ctx, getShippingSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get shipping option %s", id)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanShippingOption)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shipping.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get shipping option %s", id)
	}
	return &o, nil
}

// Create inserts a new shipping option.
func (r *ShippingRepository) Create(ctx context.Context, o *shipping.Option) error {
	_, err := r.pool.Exec(ctx, insertShippingSQL,
		o.ID, o.Name, o.Description, o.Price.Decimal(), o.Currency,
		o.EstimatedDays, o.Active, o.SortOrder,
	)
	if err != nil {
		return errors.Wrapf(err, "create shipping option %q", o.Name)
	}
	return nil
}

// Update rewrites an option. Past orders keep their snapshotted price.
func (r *ShippingRepository) Update(ctx context.Context, o *shipping.Option) error {
	tag, err := r.pool.Exec(ctx, updateShippingSQL,
		o.ID, o.Name, o.Description, o.Price.Decimal(), o.Currency,
		o.EstimatedDays, o.Active, o.SortOrder,
	)
	if err != nil {
		return errors.Wrapf(err, "update shipping option %s", o.ID)
	}
	if tag.RowsAffected() == 0 {
		return shipping.ErrNotFound
	}
	return nil
}

// Delete removes an option.
func (r *ShippingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, deleteShippingSQL, id)
	if err != nil {
		return errors.Wrapf(err, "delete shipping option %s", id)
	}
	if tag.RowsAffected() == 0 {
		return shipping.ErrNotFound
	}
	return nil
}

func scanShippingOption(row pgx.CollectableRow) (shipping.Option, error) {
	var (
		o     shipping.Option
		price decimal.Decimal
	)
	err := row.Scan(&o.ID, &o.Name, &o.Description, &price, &o.Currency,
		&o.EstimatedDays, &o.Active, &o.SortOrder)
	o.Price = money.FromDecimal(price)
	return o, err
}
