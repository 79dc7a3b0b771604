package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/everwear/api/internal/platform/auth"
	"github.com/everwear/api/internal/platform/httpx"
	"github.com/everwear/api/internal/platform/pagination"
	"github.com/everwear/api/internal/services"
)

const maxStatusBodySize = 4 * 1024

// AdminOrderHandlers exposes the staff-facing order management endpoints.
type AdminOrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
	roles  []string
}

// NewAdminOrderHandlers constructs handlers restricted to the given roles.
// Defaults to admin and staff when none are provided.
func NewAdminOrderHandlers(authn *auth.Authenticator, orders services.OrderService, roles ...string) *AdminOrderHandlers {
	if len(roles) == 0 {
		roles = []string{"admin", "staff"}
	}
	return &AdminOrderHandlers{
		authn:  authn,
		orders: orders,
		roles:  roles,
	}
}

// Routes wires the /admin/orders endpoints onto the provided router.
func (h *AdminOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(h.roles...))
	}
	r.Route("/orders", func(group chi.Router) {
		group.Get("/", h.listOrders)
		group.Post("/status", h.updateStatus)
	})
}

type updateStatusRequest struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

func (h *AdminOrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	params, err := pagination.FromRequest(r, pagination.Options{
		DefaultPageSize: defaultOrderListLimit,
		MaxPageSize:     maxOrderListLimit,
	})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	orders, err := h.orders.ListAllOrders(ctx, services.OrderListQuery{Limit: params.PageSize})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderListResponse{Orders: buildOrderPayloads(orders)})
}

func (h *AdminOrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req updateStatusRequest
	body, err := readLimitedBody(r, maxStatusBodySize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	if err := decodeJSON(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}
	if strings.TrimSpace(req.OrderID) == "" || strings.TrimSpace(req.Status) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order_id and status are required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.UpdateOrderStatus(ctx, strings.TrimSpace(req.OrderID), req.Status)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}
