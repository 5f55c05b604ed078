// Package shipping defines shipping options. An option's price is copied into
// the order at creation time, so later price edits never touch past orders.
package shipping

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/verdantlabs/storefront/internal/domain/money"
)

// ErrNotFound is returned when a requested shipping option does not exist.
var ErrNotFound = errors.New("shipping option not found")

// Option is a selectable shipping method. Only active options may be chosen
// at checkout.
type Option struct {
	ID            uuid.UUID
	Name          string
	Description   string
	Price         money.Money
	Currency      string
	EstimatedDays string
	Active        bool
	SortOrder     int
}

// Repository defines persistence operations for shipping options.
type Repository interface {
	ListActive(ctx context.Context) ([]Option, error)
	List(ctx context.Context) ([]Option, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Option, error)
	Create(ctx context.Context, o *Option) error
	Update(ctx context.Context, o *Option) error
	Delete(ctx context.Context, id uuid.UUID) error
}
