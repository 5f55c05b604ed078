package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/verdantlabs/storefront/internal/domain/money"
	"github.com/verdantlabs/storefront/internal/domain/shipping"
)

type shippingOptionPayload struct {
	Name          string      `json:"name"`
	Description   string      `json:"description,omitempty"`
	Price         money.Money `json:"price"`
	Currency      string      `json:"currency,omitempty"`
	EstimatedDays string      `json:"estimatedDays,omitempty"`
	Active        *bool       `json:"active,omitempty"`
	SortOrder     int         `json:"sortOrder,omitempty"`
}

type shippingOptionResponse struct {
	ID            uuid.UUID   `json:"id"`
	Name          string      `json:"name"`
	Description   string      `json:"description,omitempty"`
	Price         money.Money `json:"price"`
	Currency      string      `json:"currency"`
	EstimatedDays string      `json:"estimatedDays,omitempty"`
	Active        bool        `json:"active"`
	SortOrder     int         `json:"sortOrder"`
}

func toShippingOptionResponse(o *shipping.Option) shippingOptionResponse {
	return shippingOptionResponse{
		ID:            o.ID,
		Name:          o.Name,
		Description:   o.Description,
		Price:         o.Price,
		Currency:      o.Currency,
		EstimatedDays: o.EstimatedDays,
		Active:        o.Active,
		SortOrder:     o.SortOrder,
	}
}

func applyShippingOptionPayload(o *shipping.Option, p shippingOptionPayload) error {
	if p.Name == "" {
		return errors.New("name is required")
	}
	if p.Price.IsNegative() {
		return errors.New("price must not be negative")
	}

	o.Name = p.Name
	o.Description = p.Description
	o.Price = p.Price
	o.Currency = p.Currency
	if o.Currency == "" {
		o.Currency = "USD"
	}
	o.EstimatedDays = p.EstimatedDays
	o.SortOrder = p.SortOrder
	o.Active = true
	if p.Active != nil {
		o.Active = *p.Active
	}
	return nil
}

// listShippingOptions handles GET /api/shipping-options: the active options
// selectable at checkout.
func (h *Handler) listShippingOptions(w http.ResponseWriter, r *http.Request) {
	list, err := h.shipping.ListActive(r.Context())
	if err != nil {
		zctx.From(r.Context()).Error("list shipping options failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error, please retry")
		return
	}

	resp := make([]shippingOptionResponse, len(list))
	for i := range list {
		resp[i] = toShippingOptionResponse(&list[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

// createShippingOption handles POST /api/admin/shipping-options.
func (h *Handler) createShippingOption(w http.ResponseWriter, r *http.Request) {
	var p shippingOptionPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o := &shipping.Option{ID: uuid.New()}
	if err := applyShippingOptionPayload(o, p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.shipping.Create(r.Context(), o); err != nil {
		zctx.From(r.Context()).Error("create shipping option failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error, please retry")
		return
	}
	writeJSON(w, http.StatusCreated, toShippingOptionResponse(o))
}

// updateShippingOption handles PUT /api/admin/shipping-options/{id}.
func (h *Handler) updateShippingOption(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid shipping option id")
		return
	}

	var p shippingOptionPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o := &shipping.Option{ID: id}
	if err := applyShippingOptionPayload(o, p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.shipping.Update(r.Context(), o); err != nil {
		if errors.Is(err, shipping.ErrNotFound) {
			writeError(w, http.StatusNotFound, "shipping option not found")
			return
		}
		zctx.From(r.Context()).Error("update shipping option failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error, please retry")
		return
	}
	writeJSON(w, http.StatusOK, toShippingOptionResponse(o))
}

// deleteShippingOption handles DELETE /api/admin/shipping-options/{id}.
func (h *Handler) deleteShippingOption(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid shipping option id")
		return
	}

	if err := h.shipping.Delete(r.Context(), id); err != nil {
		if errors.Is(err, shipping.ErrNotFound) {
			writeError(w, http.StatusNotFound, "shipping option not found")
			return
		}
		zctx.From(r.Context()).Error("delete shipping option failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error, please retry")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
