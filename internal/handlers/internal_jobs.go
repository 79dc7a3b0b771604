package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/everwear/api/internal/platform/httpx"
	"github.com/everwear/api/internal/services"
)

const maxReconcileBodySize = 4 * 1024

// InternalJobHandlers exposes scheduler-invoked maintenance endpoints. The
// router guards the group with OIDC middleware so only the configured service
// account reaches these.
type InternalJobHandlers struct {
	orders services.OrderService
}

// NewInternalJobHandlers constructs the internal job handlers.
func NewInternalJobHandlers(orders services.OrderService) *InternalJobHandlers {
	return &InternalJobHandlers{orders: orders}
}

// Routes wires the /internal endpoints onto the provided router.
func (h *InternalJobHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/reconcile", h.reconcile)
}

type reconcileRequest struct {
	OlderThanMinutes int `json:"older_than_minutes"`
	Limit            int `json:"limit"`
}

type reconcileResponse struct {
	Scanned int `json:"scanned"`
	Settled int `json:"settled"`
	Deleted int `json:"deleted"`
	Skipped int `json:"skipped"`
}

func (h *InternalJobHandlers) reconcile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	// The body is optional; the sweep falls back to service defaults.
	var req reconcileRequest
	if body, err := readLimitedBody(r, maxReconcileBodySize); err == nil {
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
			return
		}
	}
	if req.OlderThanMinutes < 0 || req.Limit < 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "older_than_minutes and limit must not be negative", http.StatusBadRequest))
		return
	}

	report, err := h.orders.ReconcilePendingOrders(ctx, services.ReconcileCommand{
		OlderThan: time.Duration(req.OlderThanMinutes) * time.Minute,
		Limit:     req.Limit,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, reconcileResponse{
		Scanned: report.Scanned,
		Settled: report.Settled,
		Deleted: report.Deleted,
		Skipped: report.Skipped,
	})
}
