package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/karyatek/storefront/internal/cart/service"
	"github.com/karyatek/storefront/internal/owner"
	"github.com/karyatek/storefront/pkg/httputil"
	"github.com/karyatek/storefront/pkg/validator"
)

// CartHandler handles HTTP requests for cart endpoints. The identity
// middleware has already resolved the caller into an owner, minting a guest
// session when no credentials are present.
type CartHandler struct {
	service *service.CartService
	logger  *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(svc *service.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{service: svc, logger: logger}
}

// AddItemRequest is the JSON request body for adding a cart line.
type AddItemRequest struct {
	VariantID string `json:"variant_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gte=1,lte=99"`
}

// UpdateItemRequest is the JSON request body for changing a line quantity.
// Quantity 0 removes the line.
type UpdateItemRequest struct {
	Quantity int `json:"quantity" validate:"gte=0,lte=99"`
}

func requestOwner(w http.ResponseWriter, r *http.Request) (owner.Owner, bool) {
	own, ok := owner.FromContext(r.Context())
	if !ok {
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "MISSING_IDENTITY", Message: "a user or guest session is required"},
		})
		return owner.Owner{}, false
	}
	return own, true
}

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	own, ok := requestOwner(w, r)
	if !ok {
		return
	}

	cart, err := h.service.GetCart(r.Context(), own)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: cart})
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	own, ok := requestOwner(w, r)
	if !ok {
		return
	}

	var req AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	variantID, ok := httputil.ParseUUID(w, req.VariantID)
	if !ok {
		return
	}

	cart, err := h.service.AddItem(r.Context(), own, variantID, req.Quantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: cart})
}

// UpdateItem handles PUT /api/v1/cart/items/{variantId}
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	own, ok := requestOwner(w, r)
	if !ok {
		return
	}

	variantID, ok := httputil.ParseUUID(w, chi.URLParam(r, "variantId"))
	if !ok {
		return
	}

	var req UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	cart, err := h.service.UpdateItem(r.Context(), own, variantID, req.Quantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: cart})
}

// RemoveItem handles DELETE /api/v1/cart/items/{variantId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	own, ok := requestOwner(w, r)
	if !ok {
		return
	}

	variantID, ok := httputil.ParseUUID(w, chi.URLParam(r, "variantId"))
	if !ok {
		return
	}

	cart, err := h.service.RemoveItem(r.Context(), own, variantID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: cart})
}

// ClearCart handles DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	own, ok := requestOwner(w, r)
	if !ok {
		return
	}

	cart, err := h.service.ClearCart(r.Context(), own)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: cart})
}

// RegisterRoutes mounts the cart endpoints. resolveOwner is the identity
// middleware that attaches a user or guest owner to every request.
func RegisterRoutes(r chi.Router, svc *service.CartService, resolveOwner func(http.Handler) http.Handler, logger *slog.Logger) {
	h := NewCartHandler(svc, logger)

	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(resolveOwner)

		r.Get("/", h.GetCart)
		r.Delete("/", h.ClearCart)
		r.Post("/items", h.AddItem)
		r.Put("/items/{variantId}", h.UpdateItem)
		r.Delete("/items/{variantId}", h.RemoveItem)
	})
}
