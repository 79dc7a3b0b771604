// Package di assembles repositories, payment gateways, and services into the
// runtime dependency graph consumed by the HTTP layer.
package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/everwear/api/internal/payments"
	"github.com/everwear/api/internal/platform/config"
	"github.com/everwear/api/internal/repositories"
	"github.com/everwear/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Pricing services.PricingEngine
	Cart    services.CartService
	Orders  services.OrderService
	System  services.SystemService
}

// Deps carries the externally constructed collaborators the container wires
// together. Repositories and gateway providers are built in main so tests can
// substitute fakes.
type Deps struct {
	Config       config.Config
	Repositories repositories.Registry
	Stripe       payments.RedirectProvider
	Razorpay     payments.RemoteOrderProvider
	Events       services.OrderEventPublisher
	Logger       *zap.Logger
	StartedAt    time.Time
}

// Container wires repositories, gateways, and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies.
func NewContainer(ctx context.Context, deps Deps) (*Container, error) {
	if deps.Repositories == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(deps)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       deps.Config,
		Repositories: deps.Repositories,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(deps Deps) (Services, error) {
	var svc Services
	reg := deps.Repositories
	cfg := deps.Config
	logger := serviceLogger(deps.Logger)

	pricing, err := services.NewPricingEngine(services.PricingEngineDeps{
		Catalog:     reg.Catalog(),
		Currency:    cfg.Checkout.Currency,
		DeliveryFee: cfg.Checkout.DeliveryFee,
		Logger:      logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build pricing engine: %w", err)
	}
	svc.Pricing = pricing

	cart, err := services.NewCartService(services.CartServiceDeps{
		Carts:   reg.Carts(),
		Catalog: reg.Catalog(),
		Logger:  logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}
	svc.Cart = cart

	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:     reg.Orders(),
		Carts:      reg.Carts(),
		Counters:   reg.Counters(),
		Pricing:    pricing,
		Stripe:     deps.Stripe,
		Razorpay:   deps.Razorpay,
		Events:     deps.Events,
		UnitOfWork: reg,
		WebBaseURL: cfg.Checkout.WebBaseURL,
		Logger:     logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orders

	system, err := services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: reg.Health(),
		Environment:      cfg.Security.Environment,
		StartedAt:        deps.StartedAt,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build system service: %w", err)
	}
	svc.System = system

	return svc, nil
}

// serviceLogger adapts the structured logger to the event callback shape the
// services accept.
func serviceLogger(logger *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	if logger == nil {
		return nil
	}
	return func(_ context.Context, event string, fields map[string]any) {
		zapFields := make([]zap.Field, 0, len(fields))
		for key, value := range fields {
			zapFields = append(zapFields, zap.Any(key, value))
		}
		logger.Info(event, zapFields...)
	}
}
