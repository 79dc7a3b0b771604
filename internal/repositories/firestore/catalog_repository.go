package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/everwear/api/internal/domain"
	pfirestore "github.com/everwear/api/internal/platform/firestore"
	"github.com/everwear/api/internal/repositories"
)

const productsCollection = "products"

type productDocument struct {
	Name        string    `firestore:"name"`
	Description string    `firestore:"description,omitempty"`
	Price       int64     `firestore:"price"`
	Image       []string  `firestore:"image,omitempty"`
	Category    string    `firestore:"category,omitempty"`
	SubCategory string    `firestore:"subCategory,omitempty"`
	Sizes       []string  `firestore:"sizes,omitempty"`
	BestSeller  bool      `firestore:"bestSeller"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

// CatalogRepository reads product documents from Firestore.
type CatalogRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[productDocument]
}

// NewCatalogRepository constructs a Firestore-backed catalog repository.
func NewCatalogRepository(provider *pfirestore.Provider) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[productDocument](provider, productsCollection, nil, nil)
	return &CatalogRepository{
		provider: provider,
		base:     base,
	}, nil
}

// FindByID loads a single product.
func (r *CatalogRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("catalog repository not initialised")
	}
	id := strings.TrimSpace(productID)
	if id == "" {
		return domain.Product{}, errors.New("catalog repository: product id is required")
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return productFromDocument(doc.ID, doc.Data), nil
}

// FindByIDs resolves the given product IDs in a single batched read. IDs with
// no matching document are silently omitted, which lets pricing drop stale
// cart entries instead of failing the whole order.
func (r *CatalogRepository) FindByIDs(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("catalog repository not initialised")
	}

	ids := make([]string, 0, len(productIDs))
	seen := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	out := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}

	refs := make([]*firestore.DocumentRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, client.Collection(productsCollection).Doc(id))
	}

	snapshots, err := client.GetAll(ctx, refs)
	if err != nil {
		return nil, pfirestore.WrapError("products.getall", err)
	}

	for _, snapshot := range snapshots {
		if snapshot == nil || !snapshot.Exists() {
			continue
		}
		var doc productDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return nil, pfirestore.WrapError("products.decode", err)
		}
		out[snapshot.Ref.ID] = productFromDocument(snapshot.Ref.ID, doc)
	}

	return out, nil
}

func productFromDocument(id string, doc productDocument) domain.Product {
	return domain.Product{
		ID:          id,
		Name:        doc.Name,
		Description: doc.Description,
		Price:       doc.Price,
		Image:       append([]string(nil), doc.Image...),
		Category:    doc.Category,
		SubCategory: doc.SubCategory,
		Sizes:       append([]string(nil), doc.Sizes...),
		BestSeller:  doc.BestSeller,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}

var _ repositories.CatalogRepository = (*CatalogRepository)(nil)
