package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/verdantlabs/storefront/internal/domain/money"
)

// Evaluation is the successful outcome of applying a coupon to a subtotal.
type Evaluation struct {
	Coupon   *Coupon
	Discount money.Money
}

// Policy evaluates coupon applicability and computes discount amounts.
// Evaluate performs no writes, so it serves both the live quote endpoint and
// the authoritative re-check during order creation; given identical coupon
// state and inputs the two calls agree.
type Policy struct {
	repo Repository
	now  func() time.Time
}

// NewPolicy creates a Policy backed by the given Repository.
func NewPolicy(repo Repository) *Policy {
	return &Policy{repo: repo, now: time.Now}
}

// Evaluate checks the coupon identified by code against the pre-discount item
// subtotal and optional user identity (empty userID means guest checkout).
// Checks run in a fixed order and short-circuit at the first failure; each
// failure is a distinct *Rejection carrying the customer-facing reason.
// Errors that are not *Rejection indicate infrastructure problems.
func (p *Policy) Evaluate(ctx context.Context, code string, subtotal money.Money, userID string) (*Evaluation, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, ErrEmptyCode
	}
	if subtotal.IsNegative() {
		return nil, ErrNegativeSubtotal
	}

	c, err := p.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if !c.Active {
		return nil, ErrInactive
	}
	if c.ExpiresAt != nil && c.ExpiresAt.Before(p.now()) {
		return nil, ErrExpired
	}
	if c.UsageLimit > 0 && c.UsageCount >= c.UsageLimit {
		return nil, ErrUsageLimitReached
	}
	if c.MinOrderAmount.IsPositive() && subtotal.LessThan(c.MinOrderAmount) {
		return nil, minOrderRejection(c.MinOrderAmount)
	}

	// Per-user budget applies only when the request carries an identity.
	// Guests cannot be rate-limited by this mechanism.
	if userID != "" && c.PerUserLimit > 0 {
		used, err := p.repo.CountUsagesForUser(ctx, c.ID, userID)
		if err != nil {
			return nil, errors.Wrap(err, "count user redemptions")
		}
		if used >= c.PerUserLimit {
			return nil, ErrPerUserLimitReached
		}
	}

	discount := p.discountFor(c, subtotal)
	return &Evaluation{Coupon: c, Discount: discount}, nil
}

// discountFor computes the discount amount for an eligible coupon: the raw
// percentage or fixed amount, capped by MaxDiscountAmount for percentages,
// clamped to the subtotal, rounded to cents.
func (p *Policy) discountFor(c *Coupon, subtotal money.Money) money.Money {
	var discount money.Money
	switch c.DiscountType {
	case DiscountPercentage:
		discount = subtotal.Percent(c.DiscountValue)
		if c.MaxDiscountAmount.IsPositive() {
			discount = discount.Min(c.MaxDiscountAmount)
		}
	case DiscountFixed:
		discount = money.FromDecimal(c.DiscountValue)
	}
	return discount.Min(subtotal).ClampZero().Round()
}
