package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/verdantlabs/storefront/internal/domain/coupon"
	"github.com/verdantlabs/storefront/internal/domain/money"
)

type validateCouponRequest struct {
	Code       string      `json:"code"`
	OrderTotal money.Money `json:"orderTotal"`
}

type validateCouponResponse struct {
	Valid          bool         `json:"valid"`
	DiscountAmount *money.Money `json:"discountAmount,omitempty"`
	DiscountType   string       `json:"discountType,omitempty"`
	DiscountValue  string       `json:"discountValue,omitempty"`
	Error          string       `json:"error,omitempty"`
}

// validateCoupon handles POST /api/coupons/validate: the live quote endpoint.
// Business refusals come back as 200 {valid:false, error} so the storefront
// can render the reason inline; only malformed input is a 400.
func (h *Handler) validateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	eval, err := h.policy.Evaluate(r.Context(), req.Code, req.OrderTotal, userID(r))
	if err != nil {
		switch {
		case errors.Is(err, coupon.ErrEmptyCode), errors.Is(err, coupon.ErrNegativeSubtotal):
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var rej *coupon.Rejection
		if errors.As(err, &rej) {
			writeJSON(w, http.StatusOK, validateCouponResponse{Valid: false, Error: rej.Reason})
			return
		}

		zctx.From(r.Context()).Error("coupon validation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error, please retry")
		return
	}

	writeJSON(w, http.StatusOK, validateCouponResponse{
		Valid:          true,
		DiscountAmount: &eval.Discount,
		DiscountType:   string(eval.Coupon.DiscountType),
		DiscountValue:  eval.Coupon.DiscountValue.String(),
	})
}

type couponPayload struct {
	Code          string `json:"code"`
	Description   string `json:"description,omitempty"`
	DiscountType  string `json:"discountType"`
	DiscountValue string `json:"discountValue"`

	MinOrderAmount    *money.Money `json:"minOrderAmount,omitempty"`
	MaxDiscountAmount *money.Money `json:"maxDiscountAmount,omitempty"`

	UsageLimit   int `json:"usageLimit,omitempty"`
	PerUserLimit int `json:"perUserLimit,omitempty"`

	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Active    *bool      `json:"active,omitempty"`
}

type couponResponse struct {
	ID            uuid.UUID `json:"id"`
	Code          string    `json:"code"`
	Description   string    `json:"description,omitempty"`
	DiscountType  string    `json:"discountType"`
	DiscountValue string    `json:"discountValue"`

	MinOrderAmount    money.Money `json:"minOrderAmount"`
	MaxDiscountAmount money.Money `json:"maxDiscountAmount"`

	UsageLimit   int `json:"usageLimit"`
	UsageCount   int `json:"usageCount"`
	PerUserLimit int `json:"perUserLimit"`

	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Active    bool       `json:"active"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toCouponResponse(c *coupon.Coupon) couponResponse {
	return couponResponse{
		ID:                c.ID,
		Code:              c.Code,
		Description:       c.Description,
		DiscountType:      string(c.DiscountType),
		DiscountValue:     c.DiscountValue.String(),
		MinOrderAmount:    c.MinOrderAmount,
		MaxDiscountAmount: c.MaxDiscountAmount,
		UsageLimit:        c.UsageLimit,
		UsageCount:        c.UsageCount,
		PerUserLimit:      c.PerUserLimit,
		ExpiresAt:         c.ExpiresAt,
		Active:            c.Active,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}

// applyCouponPayload validates the payload and copies it onto c. Zero-valued
// optional fields mean "no limit".
func applyCouponPayload(c *coupon.Coupon, p couponPayload) error {
	code := coupon.NormalizeCode(p.Code)
	if code == "" {
		return errors.New("code is required")
	}

	dt := coupon.DiscountType(p.DiscountType)
	if dt != coupon.DiscountPercentage && dt != coupon.DiscountFixed {
		return errors.New("discountType must be percentage or fixed")
	}

	value, err := decimal.NewFromString(p.DiscountValue)
	if err != nil || value.IsNegative() {
		return errors.New("discountValue must be a non-negative decimal")
	}
	if dt == coupon.DiscountPercentage && value.GreaterThan(decimal.NewFromInt(100)) {
		return errors.New("percentage discountValue must not exceed 100")
	}

	if p.UsageLimit < 0 || p.PerUserLimit < 0 {
		return errors.New("usage limits must not be negative")
	}

	c.Code = code
	c.Description = p.Description
	c.DiscountType = dt
	c.DiscountValue = value
	c.UsageLimit = p.UsageLimit
	c.PerUserLimit = p.PerUserLimit
	c.ExpiresAt = p.ExpiresAt

	c.MinOrderAmount = money.Zero()
	if p.MinOrderAmount != nil {
		if p.MinOrderAmount.IsNegative() {
			return errors.New("minOrderAmount must not be negative")
		}
		c.MinOrderAmount = *p.MinOrderAmount
	}
	c.MaxDiscountAmount = money.Zero()
	if p.MaxDiscountAmount != nil {
		if p.MaxDiscountAmount.IsNegative() {
			return errors.New("maxDiscountAmount must not be negative")
		}
		c.MaxDiscountAmount = *p.MaxDiscountAmount
	}

	c.Active = true
	if p.Active != nil {
		c.Active = *p.Active
	}
	return nil
}

// listCoupons handles GET /api/admin/coupons.
func (h *Handler) listCoupons(w http.ResponseWriter, r *http.Request) {
	list, err := h.coupons.List(r.Context())
	if err != nil {
		zctx.From(r.Context()).Error("list coupons failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error, please retry")
		return
	}

	resp := make([]couponResponse, len(list))
	for i := range list {
		resp[i] = toCouponResponse(&list[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

// createCoupon handles POST /api/admin/coupons.
func (h *Handler) createCoupon(w http.ResponseWriter, r *http.Request) {
	var p couponPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c := &coupon.Coupon{ID: uuid.New()}
	if err := applyCouponPayload(c, p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.coupons.Create(r.Context(), c); err != nil {
		zctx.From(r.Context()).Error("create coupon failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error, please retry")
		return
	}
	writeJSON(w, http.StatusCreated, toCouponResponse(c))
}

// getCoupon handles GET /api/admin/coupons/{id}.
func (h *Handler) getCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid coupon id")
		return
	}

	c, err := h.coupons.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, coupon.ErrNotFound) {
			writeError(w, http.StatusNotFound, "coupon not found")
			return
		}
		zctx.From(r.Context()).Error("get coupon failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error, please retry")
		return
	}
	writeJSON(w, http.StatusOK, toCouponResponse(c))
}

// updateCoupon handles PUT /api/admin/coupons/{id}. UsageCount is never
// editable here; only the Ledger mutates it.
func (h *Handler) updateCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid coupon id")
		return
	}

	var p couponPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.coupons.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, coupon.ErrNotFound) {
			writeError(w, http.StatusNotFound, "coupon not found")
			return
		}
		zctx.From(r.Context()).Error("get coupon failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error, please retry")
		return
	}

	if err := applyCouponPayload(c, p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.coupons.Update(r.Context(), c); err != nil {
		if errors.Is(err, coupon.ErrNotFound) {
			writeError(w, http.StatusNotFound, "coupon not found")
			return
		}
		zctx.From(r.Context()).Error("update coupon failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error, please retry")
		return
	}
	writeJSON(w, http.StatusOK, toCouponResponse(c))
}

// deleteCoupon handles DELETE /api/admin/coupons/{id}.
func (h *Handler) deleteCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid coupon id")
		return
	}

	if err := h.coupons.Delete(r.Context(), id); err != nil {
		if errors.Is(err, coupon.ErrNotFound) {
			writeError(w, http.StatusNotFound, "coupon not found")
			return
		}
		zctx.From(r.Context()).Error("delete coupon failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error, please retry")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type couponUsageResponse struct {
	ID             uuid.UUID   `json:"id"`
	OrderID        uuid.UUID   `json:"orderId"`
	UserID         string      `json:"userId,omitempty"`
	DiscountAmount money.Money `json:"discountAmount"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// listCouponUsages handles GET /api/admin/coupons/{id}/usages: the audit view
// of the redemption log.
func (h *Handler) listCouponUsages(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid coupon id")
		return
	}

	usages, err := h.coupons.ListUsages(r.Context(), id)
	if err != nil {
		zctx.From(r.Context()).Error("list coupon usages failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error, please retry")
		return
	}

	resp := make([]couponUsageResponse, len(usages))
	for i, u := range usages {
		resp[i] = couponUsageResponse{
			ID:             u.ID,
			OrderID:        u.OrderID,
			UserID:         u.UserID,
			DiscountAmount: u.DiscountAmount,
			CreatedAt:      u.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
