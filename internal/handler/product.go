package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/verdantlabs/storefront/internal/domain/money"
	"github.com/verdantlabs/storefront/internal/domain/product"
)

type variantResponse struct {
	ID        uuid.UUID   `json:"id"`
	UnitLabel string      `json:"unitLabel,omitempty"`
	UnitValue string      `json:"unitValue,omitempty"`
	Price     money.Money `json:"price"`
	Stock     int         `json:"stock"`
	Active    bool        `json:"active"`
}

type productResponse struct {
	ID          uuid.UUID         `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Category    string            `json:"category,omitempty"`
	ImageURL    string            `json:"imageUrl,omitempty"`
	Variants    []variantResponse `json:"variants"`
}

func (h *Handler) toProductResponse(p *product.Product) productResponse {
	variants := make([]variantResponse, len(p.Variants))
	for i, v := range p.Variants {
		variants[i] = variantResponse{
			ID:        v.ID,
			UnitLabel: v.UnitLabel,
			UnitValue: v.UnitValue,
			Price:     v.Price,
			Stock:     v.Stock,
			Active:    v.Active,
		}
	}
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		ImageURL:    h.imageURL(p.ImageURL),
		Variants:    variants,
	}
}

// imageURL prepends the configured base URL to relative image paths.
func (h *Handler) imageURL(path string) string {
	if path == "" || h.imageBaseURL == "" {
		return path
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimSuffix(h.imageBaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}

// listProducts handles GET /api/products.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	list, err := h.products.ListActive(r.Context())
	if err != nil {
		zctx.From(r.Context()).Error("list products failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error, please retry")
		return
	}

	resp := make([]productResponse, len(list))
	for i := range list {
		resp[i] = h.toProductResponse(&list[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

// getProduct handles GET /api/products/{id}.
func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	p, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		zctx.From(r.Context()).Error("get product failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error, please retry")
		return
	}
	writeJSON(w, http.StatusOK, h.toProductResponse(p))
}
