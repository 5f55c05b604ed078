package coupon

import "github.com/verdantlabs/storefront/internal/domain/money"

// Rejection is a business-rule refusal with a customer-displayable reason.
// It is an error so it flows through the usual error paths, but callers are
// expected to detect it with errors.As and render Reason verbatim instead of
// treating it as an internal failure.
type Rejection struct {
	Reason string
}

func (r *Rejection) Error() string { return r.Reason }

// The fixed rejection reasons. Identity matters: errors.Is works on these.
var (
	ErrNotFound            = &Rejection{Reason: "Invalid coupon code"}
	ErrInactive            = &Rejection{Reason: "This coupon is no longer active"}
	ErrExpired             = &Rejection{Reason: "This coupon has expired"}
	ErrUsageLimitReached   = &Rejection{Reason: "This coupon has reached its usage limit"}
	ErrPerUserLimitReached = &Rejection{Reason: "You have already used this coupon the maximum number of times"}
)

// minOrderRejection carries the coupon's floor in the message, formatted as
// currency the way the checkout UI shows it.
func minOrderRejection(min money.Money) *Rejection {
	return &Rejection{Reason: "Minimum order amount is $" + min.String()}
}
