package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/everwear/api/internal/domain"
	"github.com/everwear/api/internal/repositories"
)

var (
	// ErrPricingInvalidInput signals bad cart data such as overflowing totals.
	ErrPricingInvalidInput = errors.New("pricing: invalid input")
	// ErrPricingUnavailable indicates the catalog could not be read.
	ErrPricingUnavailable = errors.New("pricing: catalog unavailable")
)

// PricingEngineDeps bundles collaborators for the pricing engine.
type PricingEngineDeps struct {
	Catalog     repositories.CatalogRepository
	Currency    string
	DeliveryFee int64
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type pricingEngine struct {
	catalog     repositories.CatalogRepository
	currency    string
	deliveryFee int64
	logger      func(context.Context, string, map[string]any)
}

// NewPricingEngine builds the catalog-backed pricing engine. The delivery fee
// and currency are fixed at construction.
func NewPricingEngine(deps PricingEngineDeps) (PricingEngine, error) {
	if deps.Catalog == nil {
		return nil, errors.New("pricing engine: catalog repository is required")
	}
	currency := strings.ToLower(strings.TrimSpace(deps.Currency))
	if currency == "" {
		return nil, errors.New("pricing engine: currency is required")
	}
	if deps.DeliveryFee < 0 {
		return nil, errors.New("pricing engine: delivery fee cannot be negative")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &pricingEngine{
		catalog:     deps.Catalog,
		currency:    currency,
		deliveryFee: deps.DeliveryFee,
		logger:      logger,
	}, nil
}

// PriceCart resolves every cart entry against the catalog and prices it.
// Unknown products and non-positive quantities are dropped rather than
// rejected, so a cart holding only stale entries prices to zero. The
// delivery surcharge applies only when the items total is non-zero.
func (e *pricingEngine) PriceCart(ctx context.Context, items domain.CartData) (PricedCart, error) {
	result := PricedCart{Currency: e.currency}
	if len(items) == 0 {
		return result, nil
	}

	productIDs := make([]string, 0, len(items))
	for productID := range items {
		if strings.TrimSpace(productID) == "" {
			continue
		}
		productIDs = append(productIDs, productID)
	}
	sort.Strings(productIDs)

	products, err := e.catalog.FindByIDs(ctx, productIDs)
	if err != nil {
		return PricedCart{}, fmt.Errorf("%w: %v", ErrPricingUnavailable, err)
	}

	var lines []domain.OrderLineItem
	var itemsTotal int64
	dropped := 0

	for _, productID := range productIDs {
		product, ok := products[productID]
		if !ok {
			dropped++
			continue
		}

		sizes := make([]string, 0, len(items[productID]))
		for size := range items[productID] {
			sizes = append(sizes, size)
		}
		sort.Strings(sizes)

		for _, size := range sizes {
			quantity := items[productID][size]
			if quantity <= 0 {
				dropped++
				continue
			}
			if product.Price > 0 && quantity > math.MaxInt64/product.Price {
				return PricedCart{}, fmt.Errorf("%w: line total overflow for product %s", ErrPricingInvalidInput, productID)
			}

			lineTotal := product.Price * quantity
			if lineTotal > 0 && itemsTotal > math.MaxInt64-lineTotal {
				return PricedCart{}, fmt.Errorf("%w: cart total overflow", ErrPricingInvalidInput)
			}
			itemsTotal += lineTotal

			lines = append(lines, domain.OrderLineItem{
				ProductRef: productID,
				Name:       product.Name,
				Image:      append([]string(nil), product.Image...),
				UnitPrice:  product.Price,
				Size:       size,
				Quantity:   quantity,
				Total:      lineTotal,
			})
		}
	}

	if dropped > 0 {
		e.logger(ctx, "pricing.entries.dropped", map[string]any{"dropped": dropped})
	}

	result.Lines = lines
	result.ItemsTotal = itemsTotal
	if itemsTotal != 0 {
		result.DeliveryFee = e.deliveryFee
	}
	result.Total = result.ItemsTotal + result.DeliveryFee
	return result, nil
}
