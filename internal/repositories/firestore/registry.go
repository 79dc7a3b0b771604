package firestore

import (
	"context"
	"errors"
	"fmt"

	pfirestore "github.com/everwear/api/internal/platform/firestore"
	"github.com/everwear/api/internal/repositories"
)

// Registry wires the Firestore-backed repositories behind the persistence
// contracts the service layer depends on. It owns the provider lifecycle.
type Registry struct {
	provider *pfirestore.Provider

	catalog  *CatalogRepository
	carts    *CartRepository
	orders   *OrderRepository
	counters *CounterRepository
	health   repositories.HealthRepository
}

// NewRegistry builds all repositories on top of a shared provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	catalog, err := NewCatalogRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build catalog repository: %w", err)
	}
	carts, err := NewCartRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build cart repository: %w", err)
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build order repository: %w", err)
	}
	counters, err := NewCounterRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build counter repository: %w", err)
	}

	health, err := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{
		{
			Name: "firestore",
			Check: func(ctx context.Context) error {
				_, err := provider.Client(ctx)
				return err
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("build health repository: %w", err)
	}

	return &Registry{
		provider: provider,
		catalog:  catalog,
		carts:    carts,
		orders:   orders,
		counters: counters,
		health:   health,
	}, nil
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

func (r *Registry) Catalog() repositories.CatalogRepository  { return r.catalog }
func (r *Registry) Carts() repositories.CartRepository       { return r.carts }
func (r *Registry) Orders() repositories.OrderRepository     { return r.orders }
func (r *Registry) Counters() repositories.CounterRepository { return r.counters }
func (r *Registry) Health() repositories.HealthRepository    { return r.health }

// RunInTx executes fn as a plain sequence of repository calls. Each
// repository write is atomic per document, and the operations that need
// read-modify-write atomicity (payment flag, counters) open their own
// Firestore transactions internally. Wrapping fn in an outer transaction
// would commit nothing and would re-run the direct writes on a callback
// retry, so the boundary here is sequencing only.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r == nil || r.provider == nil {
		return errors.New("registry not initialised")
	}
	if fn == nil {
		return errors.New("registry: transaction function is nil")
	}
	return fn(ctx)
}

var _ repositories.Registry = (*Registry)(nil)
