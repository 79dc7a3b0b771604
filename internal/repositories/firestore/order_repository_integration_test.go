//go:build integration

package firestore

import (
	"context"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/everwear/api/internal/domain"
	pconfig "github.com/everwear/api/internal/platform/config"
	pfirestore "github.com/everwear/api/internal/platform/firestore"
	"github.com/everwear/api/internal/repositories"
)

func TestOrderRepositoryIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}

	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not available: " + err.Error())
	}

	ensureDockerDaemon(t)

	port := freePort(t)
	endpoint := fmt.Sprintf("127.0.0.1:%d", port)
	containerID := startFirestoreEmulator(t, port)
	t.Cleanup(func() { stopContainer(containerID) })

	waitForEndpoint(t, endpoint, 30*time.Second)

	cfg := pconfig.FirestoreConfig{
		ProjectID:    "orders-test",
		EmulatorHost: endpoint,
	}

	provider := pfirestore.NewProvider(cfg)
	t.Cleanup(func() {
		_ = provider.Close(context.Background())
	})

	repo, err := NewOrderRepository(provider)
	if err != nil {
		t.Fatalf("new order repository: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Second)
	order := domain.Order{
		ID:          "ord_itest_1",
		OrderNumber: "EW-2025-000001",
		UserID:      "user-1",
		Items: []domain.OrderLineItem{
			{ProductRef: "prod-1", Name: "Crew Neck Tee", UnitPrice: 500, Size: "M", Quantity: 2, Total: 1000},
		},
		Address:       map[string]any{"city": "Mumbai"},
		Amount:        1010,
		Currency:      "inr",
		PaymentMethod: domain.PaymentMethodStripe,
		Status:        domain.OrderStatusPlaced,
		CreatedAt:     now.Add(-2 * time.Hour),
		UpdatedAt:     now.Add(-2 * time.Hour),
	}

	inserted, err := repo.Insert(ctx, order)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if inserted.ID != order.ID {
		t.Fatalf("expected id %q, got %q", order.ID, inserted.ID)
	}

	// The receipt column mirrors the document ID so gateway callbacks can
	// look the order up by the receipt they carry.
	byReceipt, err := repo.FindByReceipt(ctx, order.ID)
	if err != nil {
		t.Fatalf("find by receipt: %v", err)
	}
	if byReceipt.OrderNumber != order.OrderNumber {
		t.Fatalf("unexpected order %+v", byReceipt)
	}

	if err := repo.SetGatewayRef(ctx, order.ID, "cs_test_1"); err != nil {
		t.Fatalf("set gateway ref: %v", err)
	}
	fetched, err := repo.FindByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if fetched.GatewayRef != "cs_test_1" {
		t.Fatalf("expected gateway ref cs_test_1, got %q", fetched.GatewayRef)
	}

	stale, err := repo.ListUnpaidByMethod(ctx, domain.PaymentMethodStripe, now.Add(-time.Hour), repositories.OrderListFilter{})
	if err != nil {
		t.Fatalf("list unpaid: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != order.ID {
		t.Fatalf("expected the stale order, got %+v", stale)
	}

	paidAt := now
	changed, err := repo.SetPayment(ctx, order.ID, repositories.PaymentUpdate{Paid: true, PaidAt: paidAt})
	if err != nil {
		t.Fatalf("set payment: %v", err)
	}
	if !changed {
		t.Fatalf("expected first settle to report a change")
	}
	changed, err = repo.SetPayment(ctx, order.ID, repositories.PaymentUpdate{Paid: true, PaidAt: paidAt})
	if err != nil {
		t.Fatalf("replayed set payment: %v", err)
	}
	if changed {
		t.Fatalf("expected replayed settle to be a no-op")
	}

	settled, err := repo.FindByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("find settled: %v", err)
	}
	if !settled.Payment || settled.PaidAt == nil {
		t.Fatalf("expected settled order, got %+v", settled)
	}

	unpaid, err := repo.ListUnpaidByMethod(ctx, domain.PaymentMethodStripe, now.Add(-time.Hour), repositories.OrderListFilter{})
	if err != nil {
		t.Fatalf("list unpaid after settle: %v", err)
	}
	if len(unpaid) != 0 {
		t.Fatalf("settled order must leave the unpaid listing, got %+v", unpaid)
	}

	if err := repo.Delete(ctx, order.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.FindByID(ctx, order.ID); err == nil {
		t.Fatalf("expected not found after delete")
	}
}
