package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/everwear/api/internal/domain"
	pfirestore "github.com/everwear/api/internal/platform/firestore"
	"github.com/everwear/api/internal/repositories"
)

const cartCollection = "carts"

// CartRepository persists per-user carts within Firestore. The document ID is
// the user ID, so every user owns at most one cart.
type CartRepository struct {
	base *pfirestore.BaseRepository[cartDocument]
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[cartDocument](provider, cartCollection, nil, nil)
	return &CartRepository{base: base}, nil
}

// GetCart loads the cart for the given user ID. A missing document is treated
// as an empty cart so new accounts work without a provisioning step.
func (r *CartRepository) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	doc, err := r.base.Get(ctx, uid)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.Cart{UserID: uid, Data: domain.CartData{}}, nil
		}
		return domain.Cart{}, err
	}

	return domain.Cart{
		UserID:    doc.ID,
		Data:      decodeCartData(doc.Data.Items),
		CreatedAt: doc.Data.CreatedAt,
		UpdatedAt: doc.UpdateTime,
	}, nil
}

// SaveCart replaces the stored cart data for the user.
func (r *CartRepository) SaveCart(ctx context.Context, userID string, data domain.CartData) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	now := time.Now().UTC()
	doc := cartDocument{
		Items:     encodeCartData(data),
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Preserve the original creation timestamp across rewrites.
	if existing, err := r.base.Get(ctx, uid); err == nil && !existing.Data.CreatedAt.IsZero() {
		doc.CreatedAt = existing.Data.CreatedAt
	}

	result, err := r.base.Set(ctx, uid, doc)
	if err != nil {
		return domain.Cart{}, err
	}

	return domain.Cart{
		UserID:    uid,
		Data:      data.Clone(),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: result.UpdateTime,
	}, nil
}

// ClearCart resets the cart to empty in a single write. The document survives
// so the cart keeps its creation timestamp.
func (r *CartRepository) ClearCart(ctx context.Context, userID string) error {
	_, err := r.SaveCart(ctx, userID, domain.CartData{})
	return err
}

func encodeCartData(data domain.CartData) map[string]map[string]int64 {
	out := make(map[string]map[string]int64, len(data))
	for productID, sizes := range data {
		if len(sizes) == 0 {
			continue
		}
		entry := make(map[string]int64, len(sizes))
		for size, qty := range sizes {
			if qty <= 0 {
				continue
			}
			entry[size] = qty
		}
		if len(entry) > 0 {
			out[productID] = entry
		}
	}
	return out
}

func decodeCartData(items map[string]map[string]int64) domain.CartData {
	out := make(domain.CartData, len(items))
	for productID, sizes := range items {
		entry := make(map[string]int64, len(sizes))
		for size, qty := range sizes {
			if qty <= 0 {
				continue
			}
			entry[size] = qty
		}
		if len(entry) > 0 {
			out[productID] = entry
		}
	}
	return out
}

type cartDocument struct {
	Items     map[string]map[string]int64 `firestore:"items"`
	CreatedAt time.Time                   `firestore:"createdAt"`
	UpdatedAt time.Time                   `firestore:"updatedAt"`
}

var _ repositories.CartRepository = (*CartRepository)(nil)
