package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/verdantlabs/storefront/internal/domain/money"
	"github.com/verdantlabs/storefront/internal/domain/order"
)

const (
	orderColumns = `id, order_number, user_id, customer_name, customer_email,
		customer_phone, address_street, address_city, address_postal,
		address_country, currency, shipping_cost, coupon_code, total_amount,
		payment_status, order_status, notes, created_at, updated_at`

	insertOrderSQL = `INSERT INTO orders (id, order_number, user_id,
		customer_name, customer_email, customer_phone, address_street,
		address_city, address_postal, address_country, currency, shipping_cost,
		coupon_code, total_amount, payment_status, order_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	insertOrderItemSQL = `INSERT INTO order_items (id, order_id, product_id,
		variant_id, product_name, unit_label, quantity, unit_price, line_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	getOrderByNumberSQL = `SELECT ` + orderColumns + ` FROM orders WHERE order_number = $1`
	getOrderByIDSQL     = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	listOrdersSQL       = `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC`
	listOrdersByUserSQL = `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	listItemsSQL = `SELECT id, order_id, product_id, variant_id, product_name,
		unit_label, quantity, unit_price, line_total
		FROM order_items WHERE order_id = $1`

	updateOrderStatusSQL = `UPDATE orders SET
		payment_status = COALESCE($2, payment_status),
		order_status = COALESCE($3, order_status),
		notes = COALESCE($4, notes),
		updated_at = now()
		WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order and its items in one transaction. Either the
// whole order becomes visible or nothing does.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin order tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, insertOrderSQL,
		o.ID, o.OrderNumber, nullableText(o.UserID),
		o.CustomerName, o.CustomerEmail, o.CustomerPhone,
		o.AddressStreet, o.AddressCity, o.AddressPostal, o.AddressCountry,
		o.Currency, o.ShippingCost.Decimal(), o.CouponCode,
		o.TotalAmount.Decimal(), o.PaymentStatus, o.OrderStatus,
	)
	if err != nil {
		return errors.Wrapf(err, "insert order %q", o.OrderNumber)
	}

	for _, item := range o.Items {
		_, err = tx.Exec(ctx, insertOrderItemSQL,
			item.ID, o.ID, item.ProductID, item.VariantID,
			item.ProductName, item.UnitLabel, item.Quantity,
			item.UnitPrice.Decimal(), item.LineTotal.Decimal(),
		)
		if err != nil {
			return errors.Wrapf(err, "insert item for order %q", o.OrderNumber)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit order tx")
	}
	return nil
}

// GetByNumber fetches an order with its items by its public order number.
// Returns order.ErrNotFound when the order does not exist.
func (r *OrderRepository) GetByNumber(ctx context.Context, orderNumber string) (*order.Order, error) {
	return r.getOne(ctx, getOrderByNumberSQL, orderNumber)
}

// GetByID fetches an order with its items by primary key.
func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return r.getOne(ctx, getOrderByIDSQL, id)
}

func (r *OrderRepository) getOne(ctx context.Context, sql string, arg any) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, errors.Wrap(err, "query order")
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrap(err, "query order")
	}

	itemRows, err := r.pool.Query(ctx, listItemsSQL, o.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "query items for order %q", o.OrderNumber)
	}
	o.Items, err = pgx.CollectRows(itemRows, scanOrderItem)
	if err != nil {
		return nil, errors.Wrapf(err, "query items for order %q", o.OrderNumber)
	}
	return &o, nil
}

// List returns all orders without their items, newest first.
func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return pgx.CollectRows(rows, scanOrder)
}

// ListByUser returns a user's orders without their items, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "list orders for user %q", userID)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// UpdateStatus patches the admin-editable status fields. Nil patch fields
// leave the current value in place. TotalAmount has no update path.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, patch order.StatusPatch) error {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL,
		id, patch.PaymentStatus, patch.OrderStatus, patch.Notes,
	)
	if err != nil {
		return errors.Wrapf(err, "update status for order %s", id)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o            order.Order
		userID       *string
		shippingCost decimal.Decimal
		totalAmount  decimal.Decimal
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &userID, &o.CustomerName, &o.CustomerEmail,
		&o.CustomerPhone, &o.AddressStreet, &o.AddressCity, &o.AddressPostal,
		&o.AddressCountry, &o.Currency, &shippingCost, &o.CouponCode,
		&totalAmount, &o.PaymentStatus, &o.OrderStatus, &o.Notes,
		&o.CreatedAt, &o.UpdatedAt,
	)
	o.UserID = textOrEmpty(userID)
	o.ShippingCost = money.FromDecimal(shippingCost)
	o.TotalAmount = money.FromDecimal(totalAmount)
	return o, err
}

func scanOrderItem(row pgx.CollectableRow) (order.Item, error) {
	var (
		item      order.Item
		unitPrice decimal.Decimal
		lineTotal decimal.Decimal
	)
	err := row.Scan(
		&item.ID, &item.OrderID, &item.ProductID, &item.VariantID,
		&item.ProductName, &item.UnitLabel, &item.Quantity,
		&unitPrice, &lineTotal,
	)
	item.UnitPrice = money.FromDecimal(unitPrice)
	item.LineTotal = money.FromDecimal(lineTotal)
	return item, err
}
