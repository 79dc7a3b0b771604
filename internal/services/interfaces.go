// Package services implements the storefront's order pricing and payment
// reconciliation logic on top of the repository and payment gateway contracts.
package services

import (
	"context"
	"time"

	"github.com/everwear/api/internal/domain"
)

// Order event types published for downstream consumers.
const (
	OrderEventPlaced    = "order.placed"
	OrderEventPaid      = "order.paid"
	OrderEventCancelled = "order.cancelled"
	OrderEventStatus    = "order.status.changed"
)

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type          string
	OrderID       string
	OrderNumber   string
	UserID        string
	PaymentMethod string
	Amount        int64
	Currency      string
	OccurredAt    time.Time
}

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// PricedCart is the server-side pricing result. Amounts are in major
// currency units.
type PricedCart struct {
	Lines       []domain.OrderLineItem
	ItemsTotal  int64
	DeliveryFee int64
	Total       int64
	Currency    string
}

// PricingEngine turns raw cart data into trustworthy line items and totals.
// The catalog is the only price source consulted.
type PricingEngine interface {
	PriceCart(ctx context.Context, items domain.CartData) (PricedCart, error)
}

// CartService owns per-user cart mutations.
type CartService interface {
	GetCart(ctx context.Context, userID string) (domain.CartData, error)
	AddItem(ctx context.Context, userID, productID, size string) (domain.CartData, error)
	// UpdateItem overwrites the quantity for the product/size pair.
	// Quantity zero removes the entry.
	UpdateItem(ctx context.Context, userID, productID, size string, quantity int64) (domain.CartData, error)
	ClearCart(ctx context.Context, userID string) error
}

// PlaceOrderCommand carries the buyer-submitted order payload. Items are
// re-priced server-side; only the address is taken at face value.
type PlaceOrderCommand struct {
	UserID  string
	Items   domain.CartData
	Address map[string]any
	// Origin is the storefront base URL used to build redirect URLs for
	// hosted checkout flows. Falls back to the configured base URL when
	// empty.
	Origin string
}

// StripeCheckout is returned by PlaceStripeOrder: the pending order plus the
// hosted session the client must redirect to.
type StripeCheckout struct {
	Order      domain.Order
	SessionID  string
	SessionURL string
}

// RazorpayCheckout is returned by PlaceRazorpayOrder: the pending order plus
// the remote gateway order the client completes payment against.
type RazorpayCheckout struct {
	Order         domain.Order
	RemoteOrderID string
	Amount        int64
	Currency      string
}

// ConfirmStripeCommand reports the redirect outcome for a hosted checkout.
type ConfirmStripeCommand struct {
	OrderID   string
	UserID    string
	Succeeded bool
}

// ConfirmRazorpayCommand asks for server-side verification of a remote
// gateway order.
type ConfirmRazorpayCommand struct {
	RemoteOrderID string
	UserID        string
}

// PaymentConfirmation reports a confirmation outcome. Settled is false when
// the order was not settled: after a failed redirect the order has been
// deleted, after an unverified remote order it is preserved.
type PaymentConfirmation struct {
	Settled bool
	Order   domain.Order
}

// OrderListQuery bounds order listings.
type OrderListQuery struct {
	Limit int
}

// ReconcileCommand configures the stale unpaid order sweep.
type ReconcileCommand struct {
	// OlderThan excludes orders newer than the cutoff so in-flight
	// checkouts are never touched.
	OlderThan time.Duration
	Limit     int
}

// ReconcileReport summarises a reconciliation sweep.
type ReconcileReport struct {
	Scanned int
	Settled int
	Deleted int
	Skipped int
}

// OrderService is the order placement and payment reconciliation engine.
type OrderService interface {
	PlaceCODOrder(ctx context.Context, cmd PlaceOrderCommand) (domain.Order, error)
	PlaceStripeOrder(ctx context.Context, cmd PlaceOrderCommand) (StripeCheckout, error)
	ConfirmStripePayment(ctx context.Context, cmd ConfirmStripeCommand) (PaymentConfirmation, error)
	PlaceRazorpayOrder(ctx context.Context, cmd PlaceOrderCommand) (RazorpayCheckout, error)
	ConfirmRazorpayPayment(ctx context.Context, cmd ConfirmRazorpayCommand) (PaymentConfirmation, error)
	ListAllOrders(ctx context.Context, query OrderListQuery) ([]domain.Order, error)
	ListUserOrders(ctx context.Context, userID string, query OrderListQuery) ([]domain.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID, status string) (domain.Order, error)
	ReconcilePendingOrders(ctx context.Context, cmd ReconcileCommand) (ReconcileReport, error)
}

// SystemService reports process health for liveness and readiness probes.
type SystemService interface {
	Healthz(ctx context.Context) HealthStatus
	Readyz(ctx context.Context) (HealthStatus, error)
}

// HealthStatus is the probe payload.
type HealthStatus struct {
	Status      string
	Environment string
	StartedAt   time.Time
	CheckedAt   time.Time
}
