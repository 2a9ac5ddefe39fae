package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/karyatek/storefront/internal/checkout/domain"
	"github.com/karyatek/storefront/internal/checkout/service"
	"github.com/karyatek/storefront/internal/owner"
	"github.com/karyatek/storefront/pkg/httputil"
	"github.com/karyatek/storefront/pkg/pagination"
)

// CheckoutHandler handles HTTP requests for checkout and order history.
type CheckoutHandler struct {
	service *service.CheckoutService
	logger  *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(svc *service.CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{service: svc, logger: logger}
}

// AddressRequest is the JSON shape of a checkout address. Field-level
// validation lives in the service so every violation is reported at once.
type AddressRequest struct {
	FullName     string `json:"full_name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
}

func (a AddressRequest) toDomain() domain.Address {
	return domain.Address{
		FullName:     a.FullName,
		Email:        a.Email,
		Phone:        a.Phone,
		AddressLine1: a.AddressLine1,
		AddressLine2: a.AddressLine2,
		City:         a.City,
		State:        a.State,
		PostalCode:   a.PostalCode,
		Country:      a.Country,
	}
}

// PlaceOrderRequest is the JSON request body for placing an order.
type PlaceOrderRequest struct {
	ShippingAddress       AddressRequest  `json:"shipping_address"`
	BillingAddress        *AddressRequest `json:"billing_address"`
	BillingSameAsShipping bool            `json:"billing_same_as_shipping"`
	PaymentMethod         string          `json:"payment_method"`
	Notes                 string          `json:"notes"`
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

// PlaceOrder handles POST /api/v1/checkout
//
//	@Summary		Place an order from the current cart
//	@Description	Converts the caller's cart into an order, decrementing stock and emptying the cart atomically
//	@Tags			checkout
//	@Accept			json
//	@Produce		json
//	@Param			request	body		PlaceOrderRequest	true	"Checkout details"
//	@Success		201		{object}	httputil.Response{data=domain.Order}
//	@Failure		401		{object}	httputil.Response
//	@Failure		409		{object}	httputil.Response	"Insufficient stock"
//	@Failure		422		{object}	httputil.Response	"Validation failure or empty cart"
//	@Router			/api/v1/checkout [post]
func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	own, ok := requestOwner(w, r)
	if !ok {
		return
	}

	var req PlaceOrderRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	input := &service.PlaceOrderInput{
		ShippingAddress:       req.ShippingAddress.toDomain(),
		BillingSameAsShipping: req.BillingSameAsShipping,
		PaymentMethod:         req.PaymentMethod,
		Notes:                 req.Notes,
	}
	if req.BillingAddress != nil {
		billing := req.BillingAddress.toDomain()
		input.BillingAddress = &billing
	}

	order, warnings, err := h.service.PlaceOrder(r.Context(), own, input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: order, Warnings: warnings})
}

// ListOrders handles GET /api/v1/orders
//
//	@Summary	List the caller's orders
//	@Tags		orders
//	@Produce	json
//	@Param		page		query		int	false	"Page number"
//	@Param		per_page	query		int	false	"Page size"
//	@Success	200			{object}	httputil.PaginatedResponse[domain.Order]
//	@Router		/api/v1/orders [get]
func (h *CheckoutHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	own, ok := requestOwner(w, r)
	if !ok {
		return
	}

	params := pagination.FromRequest(r)

	orders, total, err := h.service.ListOrders(r.Context(), own, params.Page, params.PerPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(orders, total, params.Page, params.PerPage))
}

// GetOrder handles GET /api/v1/orders/{id}
//
//	@Summary	Get one of the caller's orders
//	@Tags		orders
//	@Produce	json
//	@Param		id	path		string	true	"Order ID"
//	@Success	200	{object}	httputil.Response{data=domain.Order}
//	@Failure	404	{object}	httputil.Response
//	@Router		/api/v1/orders/{id} [get]
func (h *CheckoutHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	own, ok := requestOwner(w, r)
	if !ok {
		return
	}

	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	order, err := h.service.GetOrder(r.Context(), own, id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// UpdateStatusRequest is the JSON request body for an order status change.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateOrderStatus handles PATCH /api/v1/admin/orders/{id}/status
//
//	@Summary	Move an order through its lifecycle
//	@Tags		orders
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string				true	"Order ID"
//	@Param		request	body		UpdateStatusRequest	true	"Target status"
//	@Success	200		{object}	httputil.Response{data=domain.Order}
//	@Failure	404		{object}	httputil.Response
//	@Failure	409		{object}	httputil.Response	"Transition not allowed"
//	@Router		/api/v1/admin/orders/{id}/status [patch]
func (h *CheckoutHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	order, err := h.service.UpdateOrderStatus(r.Context(), id, req.Status)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// RegisterRoutes mounts the checkout and order endpoints. resolveOwner is the
// identity middleware that attaches a user or guest owner to every request;
// requireAdmin guards the status-transition endpoint.
func RegisterRoutes(r chi.Router, svc *service.CheckoutService, resolveOwner, requireAdmin func(http.Handler) http.Handler, logger *slog.Logger) {
	h := NewCheckoutHandler(svc, logger)

	r.Group(func(r chi.Router) {
		r.Use(resolveOwner)

		r.Post("/api/v1/checkout", h.PlaceOrder)
		r.Get("/api/v1/orders", h.ListOrders)
		r.Get("/api/v1/orders/{id}", h.GetOrder)
	})

	r.Group(func(r chi.Router) {
		r.Use(requireAdmin)

		r.Patch("/api/v1/admin/orders/{id}/status", h.UpdateOrderStatus)
	})
}
