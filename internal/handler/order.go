package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/verdantlabs/storefront/internal/domain/coupon"
	"github.com/verdantlabs/storefront/internal/domain/money"
	"github.com/verdantlabs/storefront/internal/domain/order"
)

type orderItemRequest struct {
	VariantID uuid.UUID    `json:"variantId"`
	Quantity  int          `json:"quantity"`
	LineTotal *money.Money `json:"lineTotal,omitempty"`
}

type createOrderRequest struct {
	CustomerName  string `json:"customerName"`
	CustomerEmail string `json:"customerEmail"`
	CustomerPhone string `json:"customerPhone,omitempty"`

	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`

	Currency         string             `json:"currency"`
	ShippingOptionID *uuid.UUID         `json:"shippingOptionId,omitempty"`
	CouponCode       string             `json:"couponCode,omitempty"`
	Items            []orderItemRequest `json:"items"`
}

type orderItemResponse struct {
	ProductID   uuid.UUID   `json:"productId"`
	VariantID   uuid.UUID   `json:"variantId"`
	ProductName string      `json:"productName"`
	UnitLabel   string      `json:"unitLabel,omitempty"`
	Quantity    int         `json:"quantity"`
	UnitPrice   money.Money `json:"unitPrice"`
	LineTotal   money.Money `json:"lineTotal"`
}

type orderResponse struct {
	ID          uuid.UUID `json:"id"`
	OrderNumber string    `json:"orderNumber"`

	CustomerName  string `json:"customerName"`
	CustomerEmail string `json:"customerEmail"`
	CustomerPhone string `json:"customerPhone,omitempty"`

	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`

	Currency       string      `json:"currency"`
	ItemsSubtotal  money.Money `json:"itemsSubtotal"`
	ShippingCost   money.Money `json:"shippingCost"`
	DiscountAmount money.Money `json:"discountAmount"`
	CouponCode     string      `json:"couponCode,omitempty"`
	TotalAmount    money.Money `json:"totalAmount"`

	PaymentStatus string `json:"paymentStatus"`
	OrderStatus   string `json:"orderStatus"`
	Notes         string `json:"notes,omitempty"`

	Items []orderItemResponse `json:"items"`

	CreatedAt time.Time `json:"createdAt"`
}

func toOrderResponse(o *order.Order, pricing order.Pricing) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemResponse{
			ProductID:   it.ProductID,
			VariantID:   it.VariantID,
			ProductName: it.ProductName,
			UnitLabel:   it.UnitLabel,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			LineTotal:   it.LineTotal,
		}
	}
	return orderResponse{
		ID:             o.ID,
		OrderNumber:    o.OrderNumber,
		CustomerName:   o.CustomerName,
		CustomerEmail:  o.CustomerEmail,
		CustomerPhone:  o.CustomerPhone,
		Street:         o.AddressStreet,
		City:           o.AddressCity,
		PostalCode:     o.AddressPostal,
		Country:        o.AddressCountry,
		Currency:       o.Currency,
		ItemsSubtotal:  pricing.ItemsSubtotal,
		ShippingCost:   pricing.ShippingCost,
		DiscountAmount: pricing.DiscountAmount,
		CouponCode:     o.CouponCode,
		TotalAmount:    o.TotalAmount,
		PaymentStatus:  o.PaymentStatus,
		OrderStatus:    o.OrderStatus,
		Notes:          o.Notes,
		Items:          items,
		CreatedAt:      o.CreatedAt,
	}
}

// storedOrderResponse rebuilds the pricing breakdown from a persisted order:
// the subtotal is the sum of the stored line totals, and the discount is
// whatever closes the gap to the stored total.
func storedOrderResponse(o *order.Order) orderResponse {
	subtotal := money.Zero()
	for _, it := range o.Items {
		subtotal = subtotal.Add(it.LineTotal)
	}
	discount := subtotal.Add(o.ShippingCost).Sub(o.TotalAmount).ClampZero()
	return toOrderResponse(o, order.Pricing{
		ItemsSubtotal:  subtotal,
		ShippingCost:   o.ShippingCost,
		DiscountAmount: discount,
		TotalAmount:    o.TotalAmount,
	})
}

// createOrder handles POST /api/orders: the checkout endpoint.
func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CustomerName == "" || req.CustomerEmail == "" {
		writeError(w, http.StatusBadRequest, "customerName and customerEmail are required")
		return
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}

	items := make([]order.ItemRequest, len(req.Items))
	for i, it := range req.Items {
		items[i] = order.ItemRequest{
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
			LineTotal: it.LineTotal,
		}
	}

	result, err := h.orderService.Create(r.Context(), order.CreateRequest{
		UserID:           userID(r),
		CustomerName:     req.CustomerName,
		CustomerEmail:    req.CustomerEmail,
		CustomerPhone:    req.CustomerPhone,
		AddressStreet:    req.Street,
		AddressCity:      req.City,
		AddressPostal:    req.PostalCode,
		AddressCountry:   req.Country,
		Currency:         req.Currency,
		ShippingOptionID: req.ShippingOptionID,
		CouponCode:       req.CouponCode,
		Items:            items,
	})
	if err != nil {
		h.writeOrderError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(result.Order, result.Pricing))
}

// writeOrderError maps checkout errors onto HTTP statuses: malformed input is
// 400, business refusals are 422 with the customer-facing reason, anything
// else is a logged 500.
func (h *Handler) writeOrderError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, coupon.ErrEmptyCode),
		errors.Is(err, coupon.ErrNegativeSubtotal):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var iqErr *order.InvalidQuantityError
	if errors.As(err, &iqErr) {
		writeError(w, http.StatusBadRequest, iqErr.Error())
		return
	}

	var vuErr *order.VariantUnavailableError
	if errors.As(err, &vuErr) {
		writeError(w, http.StatusUnprocessableEntity, vuErr.Error())
		return
	}
	var ltErr *order.LineTotalMismatchError
	if errors.As(err, &ltErr) {
		writeError(w, http.StatusUnprocessableEntity, ltErr.Error())
		return
	}
	if errors.Is(err, order.ErrShippingUnavailable) {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	var rej *coupon.Rejection
	if errors.As(err, &rej) {
		writeError(w, http.StatusUnprocessableEntity, rej.Reason)
		return
	}

	zctx.From(r.Context()).Error("order creation failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error, please retry")
}

// getOrderByNumber handles GET /api/orders/{number}.
func (h *Handler) getOrderByNumber(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")

	o, err := h.orders.GetByNumber(r.Context(), number)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		zctx.From(r.Context()).Error("get order failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error, please retry")
		return
	}

	writeJSON(w, http.StatusOK, storedOrderResponse(o))
}

// listOrders handles GET /api/admin/orders.
func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	var (
		list []order.Order
		err  error
	)
	if uid := r.URL.Query().Get("userId"); uid != "" {
		list, err = h.orders.ListByUser(r.Context(), uid)
	} else {
		list, err = h.orders.List(r.Context())
	}
	if err != nil {
		zctx.From(r.Context()).Error("list orders failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error, please retry")
		return
	}

	resp := make([]orderResponse, len(list))
	for i := range list {
		resp[i] = storedOrderResponse(&list[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

type updateOrderStatusRequest struct {
	PaymentStatus *string `json:"paymentStatus,omitempty"`
	OrderStatus   *string `json:"orderStatus,omitempty"`
	Notes         *string `json:"notes,omitempty"`
}

func validPaymentStatus(s string) bool {
	switch s {
	case order.PaymentPending, order.PaymentPaid, order.PaymentFailed:
		return true
	}
	return false
}

func validOrderStatus(s string) bool {
	switch s {
	case order.StatusPending, order.StatusProcessing, order.StatusShipped,
		order.StatusDelivered, order.StatusCancelled:
		return true
	}
	return false
}

// updateOrderStatus handles PATCH /api/admin/orders/{id}/status. Absent
// fields are left unchanged.
func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req updateOrderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PaymentStatus != nil && !validPaymentStatus(*req.PaymentStatus) {
		writeError(w, http.StatusBadRequest, "invalid paymentStatus")
		return
	}
	if req.OrderStatus != nil && !validOrderStatus(*req.OrderStatus) {
		writeError(w, http.StatusBadRequest, "invalid orderStatus")
		return
	}

	err = h.orders.UpdateStatus(r.Context(), id, order.StatusPatch{
		PaymentStatus: req.PaymentStatus,
		OrderStatus:   req.OrderStatus,
		Notes:         req.Notes,
	})
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		zctx.From(r.Context()).Error("update order status failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error, please retry")
		return
	}

	o, err := h.orders.GetByID(r.Context(), id)
	if err != nil {
		zctx.From(r.Context()).Error("reload order failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error, please retry")
		return
	}
	writeJSON(w, http.StatusOK, storedOrderResponse(o))
}
