// Package order implements order pricing and the checkout workflow: the pure
// pricer that derives the authoritative total, and the creation service that
// revalidates the coupon, persists the order, and records the redemption.
package order

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verdantlabs/storefront/internal/domain/money"
)

// Payment status values for an order.
const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
	PaymentFailed  = "failed"
)

// Fulfilment status values for an order.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusShipped    = "shipped"
	StatusDelivered  = "delivered"
	StatusCancelled  = "cancelled"
)

// Order is a placed customer order. TotalAmount is set once at creation by
// the pricer and never recomputed; ShippingCost is a snapshot of the chosen
// option's price at order time.
type Order struct {
	ID          uuid.UUID
	OrderNumber string
	UserID      string // empty for guest checkout

	CustomerName  string
	CustomerEmail string
	CustomerPhone string

	AddressStreet  string
	AddressCity    string
	AddressPostal  string
	AddressCountry string

	Currency     string
	ShippingCost money.Money
	CouponCode   string // display snapshot; the applied amount lives in the coupon usage log
	TotalAmount  money.Money

	PaymentStatus string
	OrderStatus   string
	Notes         string

	Items []Item

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Item is one order line with name and price snapshots taken from the catalog
// at order time, so historical orders are immune to later catalog edits.
type Item struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	ProductID   uuid.UUID
	VariantID   uuid.UUID
	ProductName string
	UnitLabel   string
	Quantity    int
	UnitPrice   money.Money
	LineTotal   money.Money
}

// StatusPatch holds the admin-editable status fields. Nil fields are left
// unchanged.
type StatusPatch struct {
	PaymentStatus *string
	OrderStatus   *string
	Notes         *string
}

// Repository defines persistence operations for orders. Create must insert
// the order and its items as one logical unit.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByNumber(ctx context.Context, orderNumber string) (*Order, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	List(ctx context.Context) ([]Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, patch StatusPatch) error
}

// NewOrderNumber generates a human-quotable order number: a base36 millisecond
// timestamp plus a short random suffix, e.g. ORD-MBNE2T1K-7Q3X.
func NewOrderNumber(now time.Time) string {
	ts := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	suffix := make([]byte, 4)
	for i := range suffix {
		suffix[i] = alphabet[rand.IntN(len(alphabet))]
	}
	return fmt.Sprintf("ORD-%s-%s", ts, suffix)
}
