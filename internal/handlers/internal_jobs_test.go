package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/everwear/api/internal/services"
)

func newInternalRouter(service services.OrderService) chi.Router {
	handler := NewInternalJobHandlers(service)
	router := chi.NewRouter()
	router.Route("/internal", handler.Routes)
	return router
}

func TestInternalJobHandlersReconcile(t *testing.T) {
	service := &stubOrderService{
		reconcileFunc: func(ctx context.Context, cmd services.ReconcileCommand) (services.ReconcileReport, error) {
			if cmd.OlderThan != 90*time.Minute {
				t.Fatalf("expected older_than 90m, got %s", cmd.OlderThan)
			}
			if cmd.Limit != 25 {
				t.Fatalf("expected limit 25, got %d", cmd.Limit)
			}
			return services.ReconcileReport{Scanned: 4, Settled: 2, Deleted: 1, Skipped: 1}, nil
		},
	}

	router := newInternalRouter(service)
	req := httptest.NewRequest(http.MethodPost, "/internal/reconcile", strings.NewReader(`{"older_than_minutes":90,"limit":25}`))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var resp reconcileResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Scanned != 4 || resp.Settled != 2 || resp.Deleted != 1 || resp.Skipped != 1 {
		t.Fatalf("unexpected report %+v", resp)
	}
}

func TestInternalJobHandlersReconcileDefaults(t *testing.T) {
	service := &stubOrderService{
		reconcileFunc: func(ctx context.Context, cmd services.ReconcileCommand) (services.ReconcileReport, error) {
			if cmd.OlderThan != 0 || cmd.Limit != 0 {
				t.Fatalf("expected zero-value defaults, got %+v", cmd)
			}
			return services.ReconcileReport{}, nil
		},
	}

	router := newInternalRouter(service)
	req := httptest.NewRequest(http.MethodPost, "/internal/reconcile", nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}

func TestInternalJobHandlersReconcileRejectsNegative(t *testing.T) {
	router := newInternalRouter(&stubOrderService{})
	req := httptest.NewRequest(http.MethodPost, "/internal/reconcile", strings.NewReader(`{"older_than_minutes":-5}`))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}
