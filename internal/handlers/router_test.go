package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/everwear/api/internal/services"
)

type stubSystemService struct {
	healthz func(ctx context.Context) services.HealthStatus
	readyz  func(ctx context.Context) (services.HealthStatus, error)
}

func (s *stubSystemService) Healthz(ctx context.Context) services.HealthStatus {
	if s.healthz == nil {
		return services.HealthStatus{Status: "ok"}
	}
	return s.healthz(ctx)
}

func (s *stubSystemService) Readyz(ctx context.Context) (services.HealthStatus, error) {
	if s.readyz == nil {
		return services.HealthStatus{Status: "ok"}, nil
	}
	return s.readyz(ctx)
}

func TestRouterHealthEndpoints(t *testing.T) {
	system := &stubSystemService{
		healthz: func(ctx context.Context) services.HealthStatus {
			return services.HealthStatus{
				Status:      "ok",
				Environment: "test",
				StartedAt:   time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
				CheckedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			}
		},
	}

	router := NewRouter(WithHealthHandlers(NewHealthHandlers(system)))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var payload healthPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload.Status != "ok" || payload.Environment != "test" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestRouterReadyzUnavailable(t *testing.T) {
	system := &stubSystemService{
		readyz: func(ctx context.Context) (services.HealthStatus, error) {
			return services.HealthStatus{Status: "unavailable"}, errors.New("firestore down")
		},
	}

	router := NewRouter(WithHealthHandlers(NewHealthHandlers(system)))

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}

func TestRouterNotFoundEnvelope(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload["error"] != errorNotFoundCode {
		t.Fatalf("unexpected error code %v", payload["error"])
	}
}

func TestRouterUnconfiguredGroupNotImplemented(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("expected status 501, got %d", rr.Code)
	}
}

func TestRouterMountsConfiguredGroups(t *testing.T) {
	orders := &stubOrderService{}
	router := NewRouter(
		WithOrderRoutes(NewOrderHandlers(OrderHandlersDeps{Orders: orders}).Routes),
		WithCartRoutes(NewCartHandlers(nil, &stubCartService{}).Routes),
		WithAdminRoutes(NewAdminOrderHandlers(nil, orders).Routes),
		WithInternalRoutes(NewInternalJobHandlers(orders).Routes),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart/", nil)
	req = authenticated(req, "user-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestRouterInternalMiddlewareApplied(t *testing.T) {
	var sawGuard bool
	guard := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sawGuard = true
			next.ServeHTTP(w, r)
		})
	}

	router := NewRouter(
		WithInternalRoutes(NewInternalJobHandlers(&stubOrderService{}).Routes),
		WithInternalMiddlewares(guard),
	)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/reconcile", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !sawGuard {
		t.Fatalf("expected internal middleware to run")
	}
}
