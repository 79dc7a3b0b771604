// Package repositories defines persistence contracts consumed by the service layer.
package repositories

import (
	"context"
	"time"

	"github.com/everwear/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Catalog() CatalogRepository
	Carts() CartRepository
	Orders() OrderRepository
	Counters() CounterRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CatalogRepository reads the product catalog. The catalog is the only price
// source consulted when orders are priced.
type CatalogRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	// FindByIDs resolves the provided product IDs. Unknown IDs are omitted
	// from the result rather than reported as errors.
	FindByIDs(ctx context.Context, productIDs []string) (map[string]domain.Product, error)
}

// CartRepository owns per-user cart persistence.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (domain.Cart, error)
	SaveCart(ctx context.Context, userID string, data domain.CartData) (domain.Cart, error)
	// ClearCart resets the cart to empty in a single write.
	ClearCart(ctx context.Context, userID string) error
}

// OrderListFilter bounds order listings.
type OrderListFilter struct {
	Limit int
}

// PaymentUpdate captures the settlement flip applied by SetPayment.
type PaymentUpdate struct {
	Paid   bool
	PaidAt time.Time
}

// OrderRepository persists order aggregates.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) (domain.Order, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	// FindByReceipt locates the order whose ID was used as the remote
	// gateway receipt.
	FindByReceipt(ctx context.Context, receipt string) (domain.Order, error)
	// SetPayment flips the payment flag. It reports changed=false when the
	// order already carried the requested flag, which makes confirmations
	// safe to replay.
	SetPayment(ctx context.Context, orderID string, update PaymentUpdate) (changed bool, err error)
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) (domain.Order, error)
	// SetGatewayRef records the gateway session or remote order reference
	// once the order has been handed to a payment gateway.
	SetGatewayRef(ctx context.Context, orderID, gatewayRef string) error
	Delete(ctx context.Context, orderID string) error
	// ListAll returns orders across all users, newest first.
	ListAll(ctx context.Context, filter OrderListFilter) ([]domain.Order, error)
	// ListByUser returns the user's orders, newest first.
	ListByUser(ctx context.Context, userID string, filter OrderListFilter) ([]domain.Order, error)
	// ListUnpaidByMethod returns unpaid orders for the given payment method
	// created before the cutoff. Used by the reconciliation sweep.
	ListUnpaidByMethod(ctx context.Context, method domain.PaymentMethod, cutoff time.Time, filter OrderListFilter) ([]domain.Order, error)
}

// CounterRepository issues monotonically increasing sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, name string) (int64, error)
}

// HealthRepository reports backend connectivity for readiness probes.
type HealthRepository interface {
	Check(ctx context.Context) error
}
