package services

import (
	"context"
	"errors"
	"testing"

	"github.com/everwear/api/internal/domain"
)

type stubCartRepo struct {
	cart     domain.Cart
	getErr   error
	saveErr  error
	clearErr error

	savedData   domain.CartData
	clearedUser string
}

func (s *stubCartRepo) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	if s.getErr != nil {
		return domain.Cart{}, s.getErr
	}
	cart := s.cart
	cart.UserID = userID
	return cart, nil
}

func (s *stubCartRepo) SaveCart(ctx context.Context, userID string, data domain.CartData) (domain.Cart, error) {
	if s.saveErr != nil {
		return domain.Cart{}, s.saveErr
	}
	s.savedData = data
	s.cart = domain.Cart{UserID: userID, Data: data}
	return s.cart, nil
}

func (s *stubCartRepo) ClearCart(ctx context.Context, userID string) error {
	if s.clearErr != nil {
		return s.clearErr
	}
	s.clearedUser = userID
	s.cart = domain.Cart{UserID: userID, Data: domain.CartData{}}
	return nil
}

func newTestCartService(t *testing.T, carts *stubCartRepo, catalog *stubCatalogRepo) CartService {
	t.Helper()
	svc, err := NewCartService(CartServiceDeps{Carts: carts, Catalog: catalog})
	if err != nil {
		t.Fatalf("new cart service: %v", err)
	}
	return svc
}

func TestCartAddItemIncrementsQuantity(t *testing.T) {
	carts := &stubCartRepo{cart: domain.Cart{Data: domain.CartData{
		"prod-1": {"M": 1},
	}}}
	catalog := &stubCatalogRepo{products: map[string]domain.Product{
		"prod-1": {ID: "prod-1", Name: "Crew Neck Tee", Price: 500},
	}}
	svc := newTestCartService(t, carts, catalog)

	data, err := svc.AddItem(context.Background(), "user-1", "prod-1", "M")
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if got := data["prod-1"]["M"]; got != 2 {
		t.Fatalf("expected quantity 2, got %d", got)
	}
	if carts.savedData["prod-1"]["M"] != 2 {
		t.Fatalf("expected saved quantity 2, got %d", carts.savedData["prod-1"]["M"])
	}
}

func TestCartAddItemNewSize(t *testing.T) {
	carts := &stubCartRepo{cart: domain.Cart{Data: domain.CartData{}}}
	catalog := &stubCatalogRepo{products: map[string]domain.Product{
		"prod-1": {ID: "prod-1", Price: 500},
	}}
	svc := newTestCartService(t, carts, catalog)

	data, err := svc.AddItem(context.Background(), "user-1", "prod-1", "L")
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if got := data["prod-1"]["L"]; got != 1 {
		t.Fatalf("expected quantity 1, got %d", got)
	}
}

func TestCartAddItemUnknownProduct(t *testing.T) {
	svc := newTestCartService(t, &stubCartRepo{}, &stubCatalogRepo{products: map[string]domain.Product{}})

	if _, err := svc.AddItem(context.Background(), "user-1", "ghost", "M"); !errors.Is(err, ErrCartUnknownProduct) {
		t.Fatalf("expected ErrCartUnknownProduct, got %v", err)
	}
}

func TestCartAddItemValidatesInput(t *testing.T) {
	svc := newTestCartService(t, &stubCartRepo{}, &stubCatalogRepo{})

	if _, err := svc.AddItem(context.Background(), "", "prod-1", "M"); !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected ErrCartInvalidInput for missing user, got %v", err)
	}
	if _, err := svc.AddItem(context.Background(), "user-1", "", "M"); !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected ErrCartInvalidInput for missing product, got %v", err)
	}
	if _, err := svc.AddItem(context.Background(), "user-1", "prod-1", " "); !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected ErrCartInvalidInput for missing size, got %v", err)
	}
}

func TestCartUpdateItemOverwritesQuantity(t *testing.T) {
	carts := &stubCartRepo{cart: domain.Cart{Data: domain.CartData{
		"prod-1": {"M": 1},
	}}}
	svc := newTestCartService(t, carts, &stubCatalogRepo{})

	data, err := svc.UpdateItem(context.Background(), "user-1", "prod-1", "M", 5)
	if err != nil {
		t.Fatalf("update item: %v", err)
	}
	if got := data["prod-1"]["M"]; got != 5 {
		t.Fatalf("expected quantity 5, got %d", got)
	}
}

func TestCartUpdateItemZeroRemovesEntry(t *testing.T) {
	carts := &stubCartRepo{cart: domain.Cart{Data: domain.CartData{
		"prod-1": {"M": 2, "L": 1},
	}}}
	svc := newTestCartService(t, carts, &stubCatalogRepo{})

	data, err := svc.UpdateItem(context.Background(), "user-1", "prod-1", "M", 0)
	if err != nil {
		t.Fatalf("update item: %v", err)
	}
	if _, ok := data["prod-1"]["M"]; ok {
		t.Fatalf("expected M entry to be removed")
	}
	if got := data["prod-1"]["L"]; got != 1 {
		t.Fatalf("expected L entry to survive, got %d", got)
	}
}

func TestCartUpdateItemZeroRemovesEmptyProduct(t *testing.T) {
	carts := &stubCartRepo{cart: domain.Cart{Data: domain.CartData{
		"prod-1": {"M": 2},
	}}}
	svc := newTestCartService(t, carts, &stubCatalogRepo{})

	data, err := svc.UpdateItem(context.Background(), "user-1", "prod-1", "M", 0)
	if err != nil {
		t.Fatalf("update item: %v", err)
	}
	if _, ok := data["prod-1"]; ok {
		t.Fatalf("expected product entry to be removed entirely")
	}
}

func TestCartUpdateItemRejectsNegativeQuantity(t *testing.T) {
	svc := newTestCartService(t, &stubCartRepo{}, &stubCatalogRepo{})

	if _, err := svc.UpdateItem(context.Background(), "user-1", "prod-1", "M", -1); !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected ErrCartInvalidInput, got %v", err)
	}
}

func TestCartGetCartReturnsClone(t *testing.T) {
	carts := &stubCartRepo{cart: domain.Cart{Data: domain.CartData{
		"prod-1": {"M": 2},
	}}}
	svc := newTestCartService(t, carts, &stubCatalogRepo{})

	data, err := svc.GetCart(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	data["prod-1"]["M"] = 99
	if carts.cart.Data["prod-1"]["M"] != 2 {
		t.Fatalf("expected repository data to be unaffected by caller mutation")
	}
}

func TestCartClearCart(t *testing.T) {
	carts := &stubCartRepo{cart: domain.Cart{Data: domain.CartData{"prod-1": {"M": 2}}}}
	svc := newTestCartService(t, carts, &stubCatalogRepo{})

	if err := svc.ClearCart(context.Background(), "user-1"); err != nil {
		t.Fatalf("clear cart: %v", err)
	}
	if carts.clearedUser != "user-1" {
		t.Fatalf("expected clear for user-1, got %q", carts.clearedUser)
	}
}

func TestCartTranslatesUnavailableErrors(t *testing.T) {
	carts := &stubCartRepo{getErr: stubRepoError{unavailable: true}}
	svc := newTestCartService(t, carts, &stubCatalogRepo{})

	if _, err := svc.GetCart(context.Background(), "user-1"); !errors.Is(err, ErrCartUnavailable) {
		t.Fatalf("expected ErrCartUnavailable, got %v", err)
	}
}
