package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/everwear/api/internal/domain"
	"github.com/everwear/api/internal/platform/auth"
	"github.com/everwear/api/internal/platform/httpx"
	"github.com/everwear/api/internal/services"
)

const maxCartBodySize = 16 * 1024

// CartHandlers exposes authenticated cart endpoints for the current user.
type CartHandlers struct {
	authn *auth.Authenticator
	carts services.CartService
}

// NewCartHandlers constructs handlers enforcing Firebase authentication before invoking the cart service.
func NewCartHandlers(authn *auth.Authenticator, carts services.CartService) *CartHandlers {
	return &CartHandlers{
		authn: authn,
		carts: carts,
	}
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.getCart)
	r.Post("/items", h.addItem)
	r.Put("/items", h.updateItem)
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	uid, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	data, err := h.carts.GetCart(ctx, uid)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store, no-cache, max-age=0, must-revalidate")
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(data)})
}

type cartItemRequest struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Quantity  *int64 `json:"quantity"`
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	uid, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	req, ok := decodeCartItemRequest(ctx, w, r)
	if !ok {
		return
	}

	data, err := h.carts.AddItem(ctx, uid, req.ProductID, req.Size)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(data)})
}

func (h *CartHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	uid, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	req, ok := decodeCartItemRequest(ctx, w, r)
	if !ok {
		return
	}
	if req.Quantity == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "quantity is required", http.StatusBadRequest))
		return
	}

	data, err := h.carts.UpdateItem(ctx, uid, req.ProductID, req.Size, *req.Quantity)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(data)})
}

func decodeCartItemRequest(ctx context.Context, w http.ResponseWriter, r *http.Request) (cartItemRequest, bool) {
	var req cartItemRequest

	body, err := readLimitedBody(r, maxCartBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return req, false
	}

	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return req, false
	}
	req.ProductID = strings.TrimSpace(req.ProductID)
	req.Size = strings.TrimSpace(req.Size)
	if req.ProductID == "" || req.Size == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product_id and size are required", http.StatusBadRequest))
		return req, false
	}
	return req, true
}

func requireIdentity(ctx context.Context, w http.ResponseWriter) (string, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return "", false
	}
	return strings.TrimSpace(identity.UID), true
}

func writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCartUnknownProduct):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCartUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("cart_error", "failed to process cart request", http.StatusInternalServerError))
	}
}

type cartResponse struct {
	Cart cartPayload `json:"cart"`
}

type cartPayload struct {
	Items map[string]map[string]int64 `json:"items"`
}

func buildCartPayload(data domain.CartData) cartPayload {
	items := make(map[string]map[string]int64, len(data))
	for productID, sizes := range data {
		dup := make(map[string]int64, len(sizes))
		for size, qty := range sizes {
			dup[size] = qty
		}
		items[productID] = dup
	}
	return cartPayload{Items: items}
}
