package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/everwear/api/internal/domain"
	"github.com/everwear/api/internal/platform/auth"
	"github.com/everwear/api/internal/platform/httpx"
	"github.com/everwear/api/internal/services"
)

const (
	maxOrderBodySize      = 64 * 1024
	defaultOrderListLimit = 50
	maxOrderListLimit     = 200

	placeOrderRateLimit  = 10
	placeOrderRateWindow = time.Minute
)

// OrderHandlers exposes order placement, payment confirmation, and listing
// endpoints for authenticated buyers.
type OrderHandlers struct {
	authn   *auth.Authenticator
	orders  services.OrderService
	limiter rateLimiter
}

// OrderHandlersDeps bundles collaborators for NewOrderHandlers.
type OrderHandlersDeps struct {
	Authenticator *auth.Authenticator
	Orders        services.OrderService
	// Limiter throttles order placement per user. Defaults to an in-memory
	// fixed-window limiter when nil.
	Limiter rateLimiter
	// PlacementLimitPerMinute overrides the default placement rate when
	// positive and no Limiter is supplied.
	PlacementLimitPerMinute int
}

// NewOrderHandlers constructs the buyer-facing order handlers.
func NewOrderHandlers(deps OrderHandlersDeps) *OrderHandlers {
	limiter := deps.Limiter
	if limiter == nil {
		limit := deps.PlacementLimitPerMinute
		if limit <= 0 {
			limit = placeOrderRateLimit
		}
		limiter = newSimpleRateLimiter(limit, placeOrderRateWindow, nil)
	}
	return &OrderHandlers{
		authn:   deps.Authenticator,
		orders:  deps.Orders,
		limiter: limiter,
	}
}

// Routes wires the /orders endpoints onto the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.listOrders)
	r.Post("/cod", h.placeCOD)
	r.Post("/stripe", h.placeStripe)
	r.Post("/stripe/verify", h.verifyStripe)
	r.Post("/razorpay", h.placeRazorpay)
	r.Post("/razorpay/verify", h.verifyRazorpay)
}

type placeOrderRequest struct {
	Items   map[string]map[string]int64 `json:"items"`
	Address map[string]any              `json:"address"`
}

type verifyStripeRequest struct {
	OrderID string `json:"order_id"`
	Success string `json:"success"`
}

type verifyRazorpayRequest struct {
	RazorpayOrderID string `json:"razorpay_order_id"`
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	uid, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	limit, ok := parseOrderListLimit(ctx, w, r)
	if !ok {
		return
	}

	orders, err := h.orders.ListUserOrders(ctx, uid, services.OrderListQuery{Limit: limit})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderListResponse{Orders: buildOrderPayloads(orders)})
}

func (h *OrderHandlers) placeCOD(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cmd, ok := h.preparePlacement(ctx, w, r)
	if !ok {
		return
	}

	order, err := h.orders.PlaceCODOrder(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) placeStripe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cmd, ok := h.preparePlacement(ctx, w, r)
	if !ok {
		return
	}

	checkout, err := h.orders.PlaceStripeOrder(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, stripeCheckoutResponse{
		Order:      buildOrderPayload(checkout.Order),
		SessionID:  checkout.SessionID,
		SessionURL: checkout.SessionURL,
	})
}

func (h *OrderHandlers) verifyStripe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	uid, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req verifyStripeRequest
	if !decodeOrderBody(ctx, w, r, &req) {
		return
	}
	if strings.TrimSpace(req.OrderID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order_id is required", http.StatusBadRequest))
		return
	}

	confirmation, err := h.orders.ConfirmStripePayment(ctx, services.ConfirmStripeCommand{
		OrderID:   strings.TrimSpace(req.OrderID),
		UserID:    uid,
		Succeeded: strings.EqualFold(strings.TrimSpace(req.Success), "true"),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeConfirmation(w, confirmation)
}

func (h *OrderHandlers) placeRazorpay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cmd, ok := h.preparePlacement(ctx, w, r)
	if !ok {
		return
	}

	checkout, err := h.orders.PlaceRazorpayOrder(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, razorpayCheckoutResponse{
		Order:           buildOrderPayload(checkout.Order),
		RazorpayOrderID: checkout.RemoteOrderID,
		Amount:          checkout.Amount,
		Currency:        strings.ToUpper(checkout.Currency),
	})
}

func (h *OrderHandlers) verifyRazorpay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	uid, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req verifyRazorpayRequest
	if !decodeOrderBody(ctx, w, r, &req) {
		return
	}
	if strings.TrimSpace(req.RazorpayOrderID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "razorpay_order_id is required", http.StatusBadRequest))
		return
	}

	confirmation, err := h.orders.ConfirmRazorpayPayment(ctx, services.ConfirmRazorpayCommand{
		RemoteOrderID: strings.TrimSpace(req.RazorpayOrderID),
		UserID:        uid,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeConfirmation(w, confirmation)
}

// preparePlacement authenticates, rate-limits, and decodes the shared order
// placement payload.
func (h *OrderHandlers) preparePlacement(ctx context.Context, w http.ResponseWriter, r *http.Request) (services.PlaceOrderCommand, bool) {
	var cmd services.PlaceOrderCommand

	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return cmd, false
	}

	uid, ok := requireIdentity(ctx, w)
	if !ok {
		return cmd, false
	}

	if h.limiter != nil && !h.limiter.Allow(uid) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many order attempts; retry later", http.StatusTooManyRequests))
		return cmd, false
	}

	var req placeOrderRequest
	if !decodeOrderBody(ctx, w, r, &req) {
		return cmd, false
	}

	cmd = services.PlaceOrderCommand{
		UserID:  uid,
		Items:   domain.CartData(req.Items),
		Address: req.Address,
		Origin:  strings.TrimSpace(r.Header.Get("Origin")),
	}
	return cmd, true
}

func decodeOrderBody(ctx context.Context, w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return false
	}
	return true
}

func parseOrderListLimit(ctx context.Context, w http.ResponseWriter, r *http.Request) (int, bool) {
	limit := defaultOrderListLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be an integer", http.StatusBadRequest))
			return 0, false
		}
		switch {
		case parsed <= 0:
			limit = defaultOrderListLimit
		case parsed > maxOrderListLimit:
			limit = maxOrderListLimit
		default:
			limit = parsed
		}
	}
	return limit, true
}

func writeConfirmation(w http.ResponseWriter, confirmation services.PaymentConfirmation) {
	payload := confirmationResponse{Settled: confirmation.Settled}
	if confirmation.Settled {
		order := buildOrderPayload(confirmation.Order)
		payload.Order = &order
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderInvalidStatus):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status must be a valid order status", http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderGateway):
		httpx.WriteError(ctx, w, httpx.NewError("payment_gateway_error", "payment gateway request failed", http.StatusBadGateway))
	case errors.Is(err, services.ErrOrderUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}

type orderListResponse struct {
	Orders []orderPayload `json:"orders"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type stripeCheckoutResponse struct {
	Order      orderPayload `json:"order"`
	SessionID  string       `json:"session_id"`
	SessionURL string       `json:"session_url"`
}

type razorpayCheckoutResponse struct {
	Order           orderPayload `json:"order"`
	RazorpayOrderID string       `json:"razorpay_order_id"`
	Amount          int64        `json:"amount"`
	Currency        string       `json:"currency"`
}

type confirmationResponse struct {
	Settled bool          `json:"settled"`
	Order   *orderPayload `json:"order,omitempty"`
}

type orderPayload struct {
	ID            string             `json:"id"`
	OrderNumber   string             `json:"order_number"`
	UserID        string             `json:"user_id"`
	Items         []orderItemPayload `json:"items"`
	Address       map[string]any     `json:"address,omitempty"`
	Amount        int64              `json:"amount"`
	Currency      string             `json:"currency"`
	PaymentMethod string             `json:"payment_method"`
	Payment       bool               `json:"payment"`
	Status        string             `json:"status"`
	CreatedAt     string             `json:"created_at"`
	UpdatedAt     string             `json:"updated_at,omitempty"`
	PaidAt        string             `json:"paid_at,omitempty"`
}

type orderItemPayload struct {
	ProductRef string   `json:"product_ref"`
	Name       string   `json:"name"`
	Image      []string `json:"image,omitempty"`
	UnitPrice  int64    `json:"unit_price"`
	Size       string   `json:"size,omitempty"`
	Quantity   int64    `json:"quantity"`
	Total      int64    `json:"total"`
}

func buildOrderPayloads(orders []domain.Order) []orderPayload {
	payloads := make([]orderPayload, 0, len(orders))
	for _, order := range orders {
		payloads = append(payloads, buildOrderPayload(order))
	}
	return payloads
}

func buildOrderPayload(order domain.Order) orderPayload {
	payload := orderPayload{
		ID:            strings.TrimSpace(order.ID),
		OrderNumber:   strings.TrimSpace(order.OrderNumber),
		UserID:        strings.TrimSpace(order.UserID),
		Items:         make([]orderItemPayload, 0, len(order.Items)),
		Address:       cloneMap(order.Address),
		Amount:        order.Amount,
		Currency:      strings.ToUpper(strings.TrimSpace(order.Currency)),
		PaymentMethod: string(order.PaymentMethod),
		Payment:       order.Payment,
		Status:        string(order.Status),
		CreatedAt:     formatTime(order.CreatedAt),
		UpdatedAt:     formatTime(order.UpdatedAt),
	}
	if order.PaidAt != nil {
		payload.PaidAt = formatTime(*order.PaidAt)
	}
	for _, item := range order.Items {
		payload.Items = append(payload.Items, orderItemPayload{
			ProductRef: item.ProductRef,
			Name:       item.Name,
			Image:      item.Image,
			UnitPrice:  item.UnitPrice,
			Size:       item.Size,
			Quantity:   item.Quantity,
			Total:      item.Total,
		})
	}
	return payload
}
