package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/verdantlabs/storefront/internal/domain/coupon"
	"github.com/verdantlabs/storefront/internal/domain/money"
)

const (
	couponColumns = `id, code, description, discount_type, discount_value,
		min_order_amount, max_discount_amount, usage_limit, usage_count,
		per_user_limit, expires_at, active, created_at, updated_at`

	findCouponByCodeSQL = `SELECT ` + couponColumns + `
		FROM coupons WHERE UPPER(code) = $1`

	getCouponByIDSQL = `SELECT ` + couponColumns + `
		FROM coupons WHERE id = $1`

	listCouponsSQL = `SELECT ` + couponColumns + `
		FROM coupons ORDER BY created_at DESC`

	insertCouponSQL = `INSERT INTO coupons (id, code, description, discount_type,
		discount_value, min_order_amount, max_discount_amount, usage_limit,
		per_user_limit, expires_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	updateCouponSQL = `UPDATE coupons SET code = $2, description = $3,
		discount_type = $4, discount_value = $5, min_order_amount = $6,
		max_discount_amount = $7, usage_limit = $8, per_user_limit = $9,
		expires_at = $10, active = $11, updated_at = now()
		WHERE id = $1`

	deleteCouponSQL = `DELETE FROM coupons WHERE id = $1`

	countUserUsagesSQL = `SELECT COUNT(*) FROM coupon_usages
		WHERE coupon_id = $1 AND user_id = $2`

	listUsagesSQL = `SELECT id, coupon_id, order_id, user_id, discount_amount, created_at
		FROM coupon_usages WHERE coupon_id = $1 ORDER BY created_at DESC`

	// The guard on usage_count makes the increment and the limit check one
	// atomic statement: two concurrent redemptions of a nearly exhausted
	// coupon cannot both pass. usage_limit = 0 means unlimited.
	redeemIncrementSQL = `UPDATE coupons
		SET usage_count = usage_count + 1, updated_at = now()
		WHERE id = $1 AND (usage_limit = 0 OR usage_count < usage_limit)`

	insertUsageSQL = `INSERT INTO coupon_usages (id, coupon_id, order_id, user_id, discount_amount)
		VALUES ($1, $2, $3, $4, $5)`
)

var (
	_ coupon.Store  = (*CouponRepository)(nil)
	_ coupon.Ledger = (*CouponRepository)(nil)
)

// CouponRepository implements coupon.Store and coupon.Ledger backed by
// PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by canonical (upper-cased) code.
// Returns coupon.ErrNotFound when no coupon matches.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, findCouponByCodeSQL, coupon.NormalizeCode(code))
	if err != nil {
		return nil, errors.Wrapf(err, "find coupon by code %q", code)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, errors.Wrapf(err, "find coupon by code %q", code)
	}
	return &c, nil
}

// GetByID fetches a coupon by primary key.
// Returns coupon.ErrNotFound when it does not exist.
func (r *CouponRepository) GetByID(ctx context.Context, id uuid.UUID) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get coupon %s", id)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get coupon %s", id)
	}
	return &c, nil
}

// List returns all coupons, newest first.
func (r *CouponRepository) List(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list coupons")
	}
	return pgx.CollectRows(rows, scanCoupon)
}

// Create inserts a new coupon. The code is stored in canonical form.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	c.Code = coupon.NormalizeCode(c.Code)
	_, err := r.pool.Exec(ctx, insertCouponSQL,
		c.ID, c.Code, c.Description, string(c.DiscountType), c.DiscountValue,
		c.MinOrderAmount.Decimal(), c.MaxDiscountAmount.Decimal(),
		c.UsageLimit, c.PerUserLimit, c.ExpiresAt, c.Active,
	)
	if err != nil {
		return errors.Wrapf(err, "create coupon %q", c.Code)
	}
	return nil
}

// Update rewrites a coupon's rule fields. usage_count is deliberately not
// touched here; only Redeem mutates it.
func (r *CouponRepository) Update(ctx context.Context, c *coupon.Coupon) error {
	c.Code = coupon.NormalizeCode(c.Code)
	tag, err := r.pool.Exec(ctx, updateCouponSQL,
		c.ID, c.Code, c.Description, string(c.DiscountType), c.DiscountValue,
		c.MinOrderAmount.Decimal(), c.MaxDiscountAmount.Decimal(),
		c.UsageLimit, c.PerUserLimit, c.ExpiresAt, c.Active,
	)
	if err != nil {
		return errors.Wrapf(err, "update coupon %s", c.ID)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// Delete removes a coupon. Its usage rows stay behind as audit history.
func (r *CouponRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, deleteCouponSQL, id)
	if err != nil {
		return errors.Wrapf(err, "delete coupon %s", id)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// CountUsagesForUser returns the user's prior redemption count for a coupon.
func (r *CouponRepository) CountUsagesForUser(ctx context.Context, couponID uuid.UUID, userID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, countUserUsagesSQL, couponID, userID).Scan(&count)
	if err != nil {
		return 0, errors.Wrapf(err, "count usages for coupon %s", couponID)
	}
	return count, nil
}

// ListUsages returns a coupon's redemption log, newest first.
func (r *CouponRepository) ListUsages(ctx context.Context, couponID uuid.UUID) ([]coupon.Usage, error) {
	rows, err := r.pool.Query(ctx, listUsagesSQL, couponID)
	if err != nil {
		return nil, errors.Wrapf(err, "list usages for coupon %s", couponID)
	}
	return pgx.CollectRows(rows, scanUsage)
}

// Redeem performs the redemption as one transaction: the guarded atomic
// increment plus the usage-log insert. If the guard rejects the increment
// (limit exhausted, or the coupon was deleted meanwhile) nothing is written
// and coupon.ErrUsageLimitReached is returned.
func (r *CouponRepository) Redeem(ctx context.Context, couponID, orderID uuid.UUID, userID string, discount money.Money) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin redeem tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, redeemIncrementSQL, couponID)
	if err != nil {
		return errors.Wrapf(err, "increment usage for coupon %s", couponID)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrUsageLimitReached
	}

	_, err = tx.Exec(ctx, insertUsageSQL,
		uuid.New(), couponID, orderID, nullableText(userID), discount.Decimal(),
	)
	if err != nil {
		return errors.Wrapf(err, "insert usage for coupon %s", couponID)
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit redeem tx")
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		discountType string
		value        decimal.Decimal
		minOrder     decimal.Decimal
		maxDiscount  decimal.Decimal
		expiresAt    *time.Time
	)
	err := row.Scan(
		&c.ID, &c.Code, &c.Description, &discountType, &value,
		&minOrder, &maxDiscount, &c.UsageLimit, &c.UsageCount,
		&c.PerUserLimit, &expiresAt, &c.Active, &c.CreatedAt, &c.UpdatedAt,
	)
	c.DiscountType = coupon.DiscountType(discountType)
	c.DiscountValue = value
	c.MinOrderAmount = money.FromDecimal(minOrder)
	c.MaxDiscountAmount = money.FromDecimal(maxDiscount)
	c.ExpiresAt = expiresAt
	return c, err
}

func scanUsage(row pgx.CollectableRow) (coupon.Usage, error) {
	var (
		u      coupon.Usage
		userID *string
		amount decimal.Decimal
	)
	err := row.Scan(&u.ID, &u.CouponID, &u.OrderID, &userID, &amount, &u.CreatedAt)
	u.UserID = textOrEmpty(userID)
	u.DiscountAmount = money.FromDecimal(amount)
	return u, err
}
