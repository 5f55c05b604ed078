// Package coupon implements discount coupons: the entity, the pure
// evaluation policy applied at quote and checkout time, and the redemption
// ledger contract that enforces usage limits at the storage layer.
package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/verdantlabs/storefront/internal/domain/money"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage of the order subtotal,
	// optionally capped by MaxDiscountAmount.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed subtracts a fixed monetary amount, clamped to the subtotal.
	DiscountFixed DiscountType = "fixed"
)

// Validation errors for malformed evaluation input. These are rejected before
// any repository lookup happens.
var (
	ErrEmptyCode        = errors.New("coupon code is required")
	ErrNegativeSubtotal = errors.New("order subtotal must not be negative")
)

// Coupon is a named discount rule with eligibility constraints and a usage
// budget. UsageCount is mutated only by the Ledger on successful redemption.
type Coupon struct {
	ID            uuid.UUID
	Code          string
	Description   string
	DiscountType  DiscountType
	DiscountValue decimal.Decimal

	// MinOrderAmount is a floor on the pre-discount item subtotal.
	// Zero means no floor.
	MinOrderAmount money.Money
	// MaxDiscountAmount caps percentage discounts. Zero means no cap.
	MaxDiscountAmount money.Money

	// UsageLimit is the global redemption cap; zero means unlimited.
	UsageLimit int
	UsageCount int
	// PerUserLimit caps redemptions per identified user; zero means unlimited.
	// Guest checkouts (no user identity) are not subject to this check.
	PerUserLimit int

	ExpiresAt *time.Time
	Active    bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Usage is one row of the append-only redemption log. DiscountAmount is the
// amount actually applied at redemption time, independent of later edits to
// the coupon.
type Usage struct {
	ID             uuid.UUID
	CouponID       uuid.UUID
	OrderID        uuid.UUID
	UserID         string // empty for guest checkout
	DiscountAmount money.Money
	CreatedAt      time.Time
}

// NormalizeCode returns the canonical form of a coupon code: trimmed and
// uppercased. Lookups and stored codes both use this form.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Repository provides the reads the evaluation policy needs.
type Repository interface {
	// FindByCode looks up a coupon by canonical code.
	// Returns ErrNotFound when no coupon matches.
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	// CountUsagesForUser returns the number of prior redemptions of the
	// coupon by the given user.
	CountUsagesForUser(ctx context.Context, couponID uuid.UUID, userID string) (int, error)
}

// Ledger records a redemption: one atomic unit that increments the coupon's
// usage counter and appends a Usage row. The increment is guarded at the
// storage layer so that a coupon with UsageLimit = N can never accumulate
// more than N usage rows, regardless of concurrent checkouts.
type Ledger interface {
	// Redeem consumes one unit of the coupon's usage budget for the given
	// order. userID is empty for guest checkout. Returns ErrUsageLimitReached
	// when the storage guard rejects the increment.
	Redeem(ctx context.Context, couponID, orderID uuid.UUID, userID string, discount money.Money) error
}

// Store extends Repository with the admin operations of the back office.
type Store interface {
	Repository

	List(ctx context.Context) ([]Coupon, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Coupon, error)
	Create(ctx context.Context, c *Coupon) error
	Update(ctx context.Context, c *Coupon) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListUsages(ctx context.Context, couponID uuid.UUID) ([]Usage, error)
}
