package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/verdantlabs/storefront/internal/domain/coupon"
	"github.com/verdantlabs/storefront/internal/domain/money"
	"github.com/verdantlabs/storefront/internal/domain/product"
	"github.com/verdantlabs/storefront/internal/domain/shipping"
	"github.com/verdantlabs/storefront/internal/notify"
)

// Sentinel errors for order lookup and input validation.
var (
	ErrNotFound            = errors.New("order not found")
	ErrEmptyItems          = errors.New("items required")
	ErrShippingUnavailable = errors.New("shipping option is not available")
)

// InvalidQuantityError indicates a line item with a non-positive quantity.
type InvalidQuantityError struct {
	VariantID uuid.UUID
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be at least 1 for variant %s", e.VariantID)
}

// VariantUnavailableError indicates a requested variant that does not exist
// or is not purchasable.
type VariantUnavailableError struct {
	VariantID uuid.UUID
}

func (e *VariantUnavailableError) Error() string {
	return fmt.Sprintf("variant %s is not available", e.VariantID)
}

// LineTotalMismatchError indicates a client-sent line total that disagrees
// with the server-computed unit price times quantity. The client figure is
// never trusted; a mismatch rejects the whole request.
type LineTotalMismatchError struct {
	VariantID uuid.UUID
	Client    money.Money
	Server    money.Money
}

func (e *LineTotalMismatchError) Error() string {
	return fmt.Sprintf("line total mismatch for variant %s: client sent %s, server computed %s",
		e.VariantID, e.Client, e.Server)
}

// ItemRequest is one requested order line. LineTotal is an optional integrity
// cross-check; when present it must equal the server-computed line total.
type ItemRequest struct {
	VariantID uuid.UUID
	Quantity  int
	LineTotal *money.Money
}

// CreateRequest holds the checkout input. UserID is empty for guest checkout.
type CreateRequest struct {
	UserID string

	CustomerName  string
	CustomerEmail string
	CustomerPhone string

	AddressStreet  string
	AddressCity    string
	AddressPostal  string
	AddressCountry string

	Currency         string
	ShippingOptionID *uuid.UUID
	CouponCode       string
	Items            []ItemRequest
}

// CreateResult is the outcome of a completed checkout.
type CreateResult struct {
	Order   *Order
	Pricing Pricing
}

// Service orchestrates order creation:
//
//	validate input → resolve catalog prices → resolve shipping →
//	evaluate coupon → price → persist → redeem coupon → notify owner
//
// Everything up to and including persistence aborts the request on failure.
// Redemption and notification run after the order is durable; their failures
// are logged and the order stands.
type Service struct {
	catalog  product.Catalog
	shipping shipping.Repository
	policy   Evaluator
	ledger   coupon.Ledger
	orders   Repository
	notifier notify.Notifier
	now      func() time.Time
}

// Evaluator is the coupon evaluation contract the workflow depends on.
type Evaluator interface {
	Evaluate(ctx context.Context, code string, subtotal money.Money, userID string) (*coupon.Evaluation, error)
}

// NewService creates an order Service with the required collaborators.
func NewService(
	catalog product.Catalog,
	shippingRepo shipping.Repository,
	policy Evaluator,
	ledger coupon.Ledger,
	orders Repository,
	notifier notify.Notifier,
) *Service {
	return &Service{
		catalog:  catalog,
		shipping: shippingRepo,
		policy:   policy,
		ledger:   ledger,
		orders:   orders,
		notifier: notifier,
		now:      time.Now,
	}
}

// Create runs the checkout workflow. A coupon that fails validation aborts
// the whole request with the coupon's specific reason; there is no silent
// downgrade to an undiscounted order.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	ids := make([]uuid.UUID, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity < 1 {
			return nil, &InvalidQuantityError{VariantID: item.VariantID}
		}
		ids[i] = item.VariantID
	}

	// Resolve unit prices and name snapshots from the catalog in one batch.
	fetched, err := s.catalog.GetCatalogItems(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "fetch catalog items")
	}
	byVariant := make(map[uuid.UUID]product.CatalogItem, len(fetched))
	for _, ci := range fetched {
		byVariant[ci.VariantID] = ci
	}

	items := make([]Item, len(req.Items))
	lines := make([]Line, len(req.Items))
	for i, reqItem := range req.Items {
		ci, ok := byVariant[reqItem.VariantID]
		if !ok || !ci.Active {
			return nil, &VariantUnavailableError{VariantID: reqItem.VariantID}
		}

		lineTotal := ci.UnitPrice.MulInt(int64(reqItem.Quantity)).Round()
		if reqItem.LineTotal != nil && !reqItem.LineTotal.Equal(lineTotal) {
			return nil, &LineTotalMismatchError{
				VariantID: reqItem.VariantID,
				Client:    *reqItem.LineTotal,
				Server:    lineTotal,
			}
		}

		items[i] = Item{
			ID:          uuid.New(),
			ProductID:   ci.ProductID,
			VariantID:   ci.VariantID,
			ProductName: ci.ProductName,
			UnitLabel:   ci.UnitLabel,
			Quantity:    reqItem.Quantity,
			UnitPrice:   ci.UnitPrice,
			LineTotal:   lineTotal,
		}
		lines[i] = Line{UnitPrice: ci.UnitPrice, Quantity: reqItem.Quantity}
	}

	// Snapshot the shipping price; the option must be currently active.
	shippingCost := money.Zero()
	if req.ShippingOptionID != nil {
		opt, err := s.shipping.GetByID(ctx, *req.ShippingOptionID)
		if err != nil {
			if errors.Is(err, shipping.ErrNotFound) {
				return nil, ErrShippingUnavailable
			}
			return nil, errors.Wrap(err, "fetch shipping option")
		}
		if !opt.Active {
			return nil, ErrShippingUnavailable
		}
		shippingCost = opt.Price
	}

	// Re-evaluate the coupon against the server-computed subtotal. The quote
	// a client saw earlier carries no authority here.
	subtotal := Price(lines, money.Zero(), money.Zero()).ItemsSubtotal
	var eval *coupon.Evaluation
	couponCode := ""
	if req.CouponCode != "" {
		eval, err = s.policy.Evaluate(ctx, req.CouponCode, subtotal, req.UserID)
		if err != nil {
			return nil, err
		}
		couponCode = eval.Coupon.Code
	}

	discount := money.Zero()
	if eval != nil {
		discount = eval.Discount
	}
	pricing := Price(lines, shippingCost, discount)

	now := s.now()
	o := &Order{
		ID:             uuid.New(),
		OrderNumber:    NewOrderNumber(now),
		UserID:         req.UserID,
		CustomerName:   req.CustomerName,
		CustomerEmail:  req.CustomerEmail,
		CustomerPhone:  req.CustomerPhone,
		AddressStreet:  req.AddressStreet,
		AddressCity:    req.AddressCity,
		AddressPostal:  req.AddressPostal,
		AddressCountry: req.AddressCountry,
		Currency:       req.Currency,
		ShippingCost:   pricing.ShippingCost,
		CouponCode:     couponCode,
		TotalAmount:    pricing.TotalAmount,
		PaymentStatus:  PaymentPending,
		OrderStatus:    StatusPending,
		Items:          items,
	}
	for i := range o.Items {
		o.Items[i].OrderID = o.ID
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	// The order is durable from here on. Redemption and notification failures
	// must not fail the checkout: the customer already has a valid order.
	if eval != nil {
		if err := s.ledger.Redeem(ctx, eval.Coupon.ID, o.ID, req.UserID, eval.Discount); err != nil {
			zctx.From(ctx).Error("coupon redemption failed after order commit",
				zap.String("order_number", o.OrderNumber),
				zap.Stringer("coupon_id", eval.Coupon.ID),
				zap.Error(err),
			)
		}
	}

	s.notifyOwner(ctx, o, pricing)

	return &CreateResult{Order: o, Pricing: pricing}, nil
}

// notifyOwner sends the new-order notification. Best effort: failures are
// logged and swallowed.
func (s *Service) notifyOwner(ctx context.Context, o *Order, pricing Pricing) {
	itemLines := make([]string, len(o.Items))
	for i, it := range o.Items {
		itemLines[i] = fmt.Sprintf("%s x%d", it.ProductName, it.Quantity)
	}

	content := fmt.Sprintf("New order from %s (%s).\nTotal: $%s %s",
		o.CustomerName, o.CustomerEmail, o.TotalAmount, o.Currency)
	if pricing.DiscountAmount.IsPositive() {
		content += fmt.Sprintf("\nDiscount: -$%s (Code: %s)", pricing.DiscountAmount, o.CouponCode)
	}
	content += "\nItems: " + strings.Join(itemLines, ", ")

	n := notify.Notification{
		Title:   "New Order: " + o.OrderNumber,
		Content: content,
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		zctx.From(ctx).Warn("owner notification failed",
			zap.String("order_number", o.OrderNumber),
			zap.Error(err),
		)
	}
}
