// Package handler exposes the HTTP API: the storefront surface (catalog,
// quote, checkout) and the API-key guarded back office.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/verdantlabs/storefront/internal/domain/auth"
	"github.com/verdantlabs/storefront/internal/domain/coupon"
	"github.com/verdantlabs/storefront/internal/domain/order"
	"github.com/verdantlabs/storefront/internal/domain/product"
	"github.com/verdantlabs/storefront/internal/domain/shipping"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored in the database.
	ImageBaseURL string

	// APIKeyPepper is the HMAC pepper for hashing admin API keys.
	APIKeyPepper []byte
}

// OrderCreator is the checkout workflow contract the handler depends on.
type OrderCreator interface {
	Create(ctx context.Context, req order.CreateRequest) (*order.CreateResult, error)
}

// Handler serves the HTTP API, delegating business logic to the domain
// services and repositories.
type Handler struct {
	products     product.Repository
	shipping     shipping.Repository
	coupons      coupon.Store
	policy       order.Evaluator
	orders       order.Repository
	orderService OrderCreator
	apikeys      auth.Repository

	imageBaseURL string
	pepper       []byte
}

// New constructs a Handler with the required domain dependencies.
func New(
	cfg Config,
	products product.Repository,
	shippingRepo shipping.Repository,
	coupons coupon.Store,
	policy order.Evaluator,
	orders order.Repository,
	orderService OrderCreator,
	apikeys auth.Repository,
) *Handler {
	return &Handler{
		products:     products,
		shipping:     shippingRepo,
		coupons:      coupons,
		policy:       policy,
		orders:       orders,
		orderService: orderService,
		apikeys:      apikeys,
		imageBaseURL: cfg.ImageBaseURL,
		pepper:       cfg.APIKeyPepper,
	}
}

// Routes returns the API router mounted under /api.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.getProduct)
	r.Get("/shipping-options", h.listShippingOptions)

	r.Post("/coupons/validate", h.validateCoupon)
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{number}", h.getOrderByNumber)

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.requireAPIKey)

		r.Get("/orders", h.listOrders)
		r.Patch("/orders/{id}/status", h.updateOrderStatus)

		r.Get("/coupons", h.listCoupons)
		r.Post("/coupons", h.createCoupon)
		r.Get("/coupons/{id}", h.getCoupon)
		r.Put("/coupons/{id}", h.updateCoupon)
		r.Delete("/coupons/{id}", h.deleteCoupon)
		r.Get("/coupons/{id}/usages", h.listCouponUsages)

		r.Post("/shipping-options", h.createShippingOption)
		r.Put("/shipping-options/{id}", h.updateShippingOption)
		r.Delete("/shipping-options/{id}", h.deleteShippingOption)
	})

	return r
}

// errorResponse is the JSON body of every non-2xx response.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Code: status, Message: message})
}

// userID extracts the customer identity forwarded by the upstream gateway.
// Empty string means guest.
func userID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}
