package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/everwear/api/internal/domain"
	"github.com/everwear/api/internal/repositories"
)

var (
	// ErrCartInvalidInput signals the caller provided invalid cart data.
	ErrCartInvalidInput = errors.New("cart: invalid input")
	// ErrCartUnknownProduct indicates the product does not exist in the catalog.
	ErrCartUnknownProduct = errors.New("cart: unknown product")
	// ErrCartUnavailable indicates the cart store could not be reached.
	ErrCartUnavailable = errors.New("cart: store unavailable")
)

// CartServiceDeps bundles collaborators for the cart service.
type CartServiceDeps struct {
	Carts   repositories.CartRepository
	Catalog repositories.CatalogRepository
	Clock   func() time.Time
	Logger  func(ctx context.Context, event string, fields map[string]any)
}

type cartService struct {
	carts   repositories.CartRepository
	catalog repositories.CatalogRepository
	clock   func() time.Time
	logger  func(context.Context, string, map[string]any)
}

// NewCartService wires dependencies into a concrete CartService.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart service: cart repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("cart service: catalog repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &cartService{
		carts:   deps.Carts,
		catalog: deps.Catalog,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *cartService) GetCart(ctx context.Context, userID string) (domain.CartData, error) {
	uid, err := requireUserID(userID)
	if err != nil {
		return nil, err
	}
	cart, err := s.carts.GetCart(ctx, uid)
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return cart.Data.Clone(), nil
}

// AddItem increments the quantity for the product/size pair by one, after
// confirming the product exists in the catalog.
func (s *cartService) AddItem(ctx context.Context, userID, productID, size string) (domain.CartData, error) {
	uid, err := requireUserID(userID)
	if err != nil {
		return nil, err
	}
	pid := strings.TrimSpace(productID)
	if pid == "" {
		return nil, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}
	sz := strings.TrimSpace(size)
	if sz == "" {
		return nil, fmt.Errorf("%w: size is required", ErrCartInvalidInput)
	}

	if _, err := s.catalog.FindByID(ctx, pid); err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return nil, fmt.Errorf("%w: %s", ErrCartUnknownProduct, pid)
		}
		return nil, s.translateRepoError(err)
	}

	cart, err := s.carts.GetCart(ctx, uid)
	if err != nil {
		return nil, s.translateRepoError(err)
	}

	data := cart.Data.Clone()
	if data == nil {
		data = domain.CartData{}
	}
	if data[pid] == nil {
		data[pid] = map[string]int64{}
	}
	data[pid][sz]++

	saved, err := s.carts.SaveCart(ctx, uid, data)
	if err != nil {
		return nil, s.translateRepoError(err)
	}

	s.logger(ctx, "cart.item.added", map[string]any{
		"userId":    uid,
		"productId": pid,
		"size":      sz,
	})
	return saved.Data.Clone(), nil
}

// UpdateItem overwrites the quantity for the product/size pair. Zero removes
// the entry, negative quantities are rejected.
func (s *cartService) UpdateItem(ctx context.Context, userID, productID, size string, quantity int64) (domain.CartData, error) {
	uid, err := requireUserID(userID)
	if err != nil {
		return nil, err
	}
	pid := strings.TrimSpace(productID)
	if pid == "" {
		return nil, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}
	sz := strings.TrimSpace(size)
	if sz == "" {
		return nil, fmt.Errorf("%w: size is required", ErrCartInvalidInput)
	}
	if quantity < 0 {
		return nil, fmt.Errorf("%w: quantity cannot be negative", ErrCartInvalidInput)
	}

	cart, err := s.carts.GetCart(ctx, uid)
	if err != nil {
		return nil, s.translateRepoError(err)
	}

	data := cart.Data.Clone()
	if data == nil {
		data = domain.CartData{}
	}
	if quantity == 0 {
		if sizes, ok := data[pid]; ok {
			delete(sizes, sz)
			if len(sizes) == 0 {
				delete(data, pid)
			}
		}
	} else {
		if data[pid] == nil {
			data[pid] = map[string]int64{}
		}
		data[pid][sz] = quantity
	}

	saved, err := s.carts.SaveCart(ctx, uid, data)
	if err != nil {
		return nil, s.translateRepoError(err)
	}

	s.logger(ctx, "cart.item.updated", map[string]any{
		"userId":    uid,
		"productId": pid,
		"size":      sz,
		"quantity":  quantity,
	})
	return saved.Data.Clone(), nil
}

func (s *cartService) ClearCart(ctx context.Context, userID string) error {
	uid, err := requireUserID(userID)
	if err != nil {
		return err
	}
	if err := s.carts.ClearCart(ctx, uid); err != nil {
		return s.translateRepoError(err)
	}
	s.logger(ctx, "cart.cleared", map[string]any{"userId": uid})
	return nil
}

func requireUserID(userID string) (string, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return "", fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	return uid, nil
}

func (s *cartService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsUnavailable() {
		return fmt.Errorf("%w: %v", ErrCartUnavailable, err)
	}
	return err
}
