package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantlabs/storefront/internal/domain/money"
)

type mockRepo struct {
	coupon    *Coupon
	findErr   error
	userCount int
	countErr  error

	lastCode string
}

func (m *mockRepo) FindByCode(_ context.Context, code string) (*Coupon, error) {
	m.lastCode = code
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.coupon, nil
}

func (m *mockRepo) CountUsagesForUser(_ context.Context, _ uuid.UUID, _ string) (int, error) {
	return m.userCount, m.countErr
}

func newPolicyAt(repo Repository, now time.Time) *Policy {
	p := NewPolicy(repo)
	p.now = func() time.Time { return now }
	return p
}

func TestEvaluate(t *testing.T) {
	fixedNow := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := fixedNow.Add(-time.Hour)
	future := fixedNow.Add(24 * time.Hour)

	active := func(mut func(*Coupon)) *Coupon {
		c := &Coupon{
			ID:            uuid.New(),
			Code:          "SAVE20",
			DiscountType:  DiscountPercentage,
			DiscountValue: decimal.NewFromInt(20),
			Active:        true,
		}
		if mut != nil {
			mut(c)
		}
		return c
	}

	tests := []struct {
		name         string
		repo         *mockRepo
		code         string
		subtotal     string
		userID       string
		wantDiscount string
		wantErr      error
	}{
		{
			name:         "percentage discount",
			repo:         &mockRepo{coupon: active(nil)},
			code:         "SAVE20",
			subtotal:     "83.50",
			wantDiscount: "16.70",
		},
		{
			name:     "unknown code",
			repo:     &mockRepo{findErr: ErrNotFound},
			code:     "BOGUS",
			subtotal: "50.00",
			wantErr:  ErrNotFound,
		},
		{
			name: "inactive coupon",
			repo: &mockRepo{coupon: active(func(c *Coupon) {
				c.Active = false
			})},
			code:     "SAVE20",
			subtotal: "50.00",
			wantErr:  ErrInactive,
		},
		{
			name: "expired coupon rejected even with unused budget",
			repo: &mockRepo{coupon: active(func(c *Coupon) {
				c.ExpiresAt = &past
				c.UsageLimit = 100
				c.UsageCount = 0
			})},
			code:     "SAVE20",
			subtotal: "50.00",
			wantErr:  ErrExpired,
		},
		{
			name: "future expiry still valid",
			repo: &mockRepo{coupon: active(func(c *Coupon) {
				c.ExpiresAt = &future
			})},
			code:         "SAVE20",
			subtotal:     "10.00",
			wantDiscount: "2.00",
		},
		{
			name: "usage limit reached",
			repo: &mockRepo{coupon: active(func(c *Coupon) {
				c.UsageLimit = 3
				c.UsageCount = 3
			})},
			code:     "SAVE20",
			subtotal: "50.00",
			wantErr:  ErrUsageLimitReached,
		},
		{
			name: "minimum order amount not met",
			repo: &mockRepo{coupon: active(func(c *Coupon) {
				c.MinOrderAmount = money.MustParse("50.00")
			})},
			code:     "SAVE20",
			subtotal: "49.99",
			wantErr:  minOrderRejection(money.MustParse("50.00")),
		},
		{
			name: "per-user limit reached for identified user",
			repo: &mockRepo{
				coupon:    active(func(c *Coupon) { c.PerUserLimit = 1 }),
				userCount: 1,
			},
			code:     "SAVE20",
			subtotal: "50.00",
			userID:   "user-7",
			wantErr:  ErrPerUserLimitReached,
		},
		{
			name: "per-user limit skipped for guests",
			repo: &mockRepo{
				coupon:    active(func(c *Coupon) { c.PerUserLimit = 1 }),
				userCount: 99,
			},
			code:         "SAVE20",
			subtotal:     "100.00",
			wantDiscount: "20.00",
		},
		{
			name: "percentage capped by max discount",
			repo: &mockRepo{coupon: active(func(c *Coupon) {
				c.DiscountValue = decimal.NewFromInt(50)
				c.MaxDiscountAmount = money.MustParse("10.00")
			})},
			code:         "SAVE20",
			subtotal:     "100.00",
			wantDiscount: "10.00",
		},
		{
			name: "fixed discount clamped to subtotal",
			repo: &mockRepo{coupon: active(func(c *Coupon) {
				c.Code = "TWENTYOFF"
				c.DiscountType = DiscountFixed
				c.DiscountValue = decimal.NewFromInt(20)
			})},
			code:         "TWENTYOFF",
			subtotal:     "15.00",
			wantDiscount: "15.00",
		},
		{
			name:     "empty code is a validation error",
			repo:     &mockRepo{},
			code:     "   ",
			subtotal: "50.00",
			wantErr:  ErrEmptyCode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPolicyAt(tt.repo, fixedNow)
			ev, err := p.Evaluate(context.Background(), tt.code, money.MustParse(tt.subtotal), tt.userID)

			if tt.wantErr != nil {
				require.Error(t, err)
				var rej *Rejection
				if errors.As(tt.wantErr, &rej) {
					var got *Rejection
					require.True(t, errors.As(err, &got), "expected a business rejection, got %v", err)
					assert.Equal(t, rej.Reason, got.Reason)
				} else {
					assert.ErrorIs(t, err, tt.wantErr)
				}
				assert.Nil(t, ev)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, ev)
			assert.Equal(t, tt.wantDiscount, ev.Discount.String())
			assert.NotNil(t, ev.Coupon)
		})
	}
}

func TestEvaluateNormalizesCode(t *testing.T) {
	repo := &mockRepo{coupon: &Coupon{
		ID:            uuid.New(),
		Code:          "SAVE20",
		DiscountType:  DiscountPercentage,
		DiscountValue: decimal.NewFromInt(20),
		Active:        true,
	}}
	p := NewPolicy(repo)

	_, err := p.Evaluate(context.Background(), "  save20 ", money.MustParse("10.00"), "")
	require.NoError(t, err)
	assert.Equal(t, "SAVE20", repo.lastCode)
}

func TestEvaluateRejectsNegativeSubtotal(t *testing.T) {
	p := NewPolicy(&mockRepo{})
	neg := money.Zero().Sub(money.MustParse("1.00"))
	_, err := p.Evaluate(context.Background(), "SAVE20", neg, "")
	assert.ErrorIs(t, err, ErrNegativeSubtotal)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	repo := &mockRepo{coupon: &Coupon{
		ID:            uuid.New(),
		Code:          "SAVE20",
		DiscountType:  DiscountPercentage,
		DiscountValue: decimal.NewFromInt(20),
		Active:        true,
	}}
	p := newPolicyAt(repo, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	first, err := p.Evaluate(context.Background(), "SAVE20", money.MustParse("83.50"), "user-1")
	require.NoError(t, err)
	second, err := p.Evaluate(context.Background(), "SAVE20", money.MustParse("83.50"), "user-1")
	require.NoError(t, err)
	assert.True(t, first.Discount.Equal(second.Discount))
}

func TestEvaluateWrapsRepositoryErrors(t *testing.T) {
	boom := errors.New("connection refused")
	p := NewPolicy(&mockRepo{findErr: boom})

	_, err := p.Evaluate(context.Background(), "SAVE20", money.MustParse("10.00"), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	var rej *Rejection
	assert.False(t, errors.As(err, &rej), "infrastructure errors must not look like rejections")
}
