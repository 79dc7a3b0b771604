package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/everwear/api/internal/domain"
	pfirestore "github.com/everwear/api/internal/platform/firestore"
	"github.com/everwear/api/internal/repositories"
)

const ordersCollection = "orders"

type orderLineItemDocument struct {
	ProductRef string   `firestore:"productRef"`
	Name       string   `firestore:"name"`
	Image      []string `firestore:"image,omitempty"`
	UnitPrice  int64    `firestore:"unitPrice"`
	Size       string   `firestore:"size"`
	Quantity   int64    `firestore:"quantity"`
	Total      int64    `firestore:"total"`
}

type orderDocument struct {
	OrderNumber   string                  `firestore:"orderNumber"`
	UserID        string                  `firestore:"userId"`
	Items         []orderLineItemDocument `firestore:"items"`
	Address       map[string]any          `firestore:"address,omitempty"`
	Amount        int64                   `firestore:"amount"`
	Currency      string                  `firestore:"currency"`
	PaymentMethod string                  `firestore:"paymentMethod"`
	Payment       bool                    `firestore:"payment"`
	Status        string                  `firestore:"status"`
	Receipt       string                  `firestore:"receipt"`
	GatewayRef    string                  `firestore:"gatewayRef,omitempty"`
	CreatedAt     time.Time               `firestore:"createdAt"`
	UpdatedAt     time.Time               `firestore:"updatedAt"`
	PaidAt        *time.Time              `firestore:"paidAt,omitempty"`
}

// OrderRepository persists order aggregates within Firestore.
type OrderRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil)
	return &OrderRepository{
		provider: provider,
		base:     base,
	}, nil
}

// Insert creates the order document. The order's own ID doubles as the
// gateway receipt so verification callbacks can find their way back.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	doc := orderToDocument(order)
	doc.Receipt = id

	result, err := r.base.Set(ctx, id, doc)
	if err != nil {
		return domain.Order{}, err
	}

	order.UpdatedAt = result.UpdateTime
	return order, nil
}

// FindByID loads a single order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	doc, err := r.base.Get(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.Order{}, err
	}
	return orderFromDocument(doc.ID, doc.Data), nil
}

// FindByReceipt locates the order whose ID was handed to the payment gateway
// as the receipt.
func (r *OrderRepository) FindByReceipt(ctx context.Context, receipt string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	trimmed := strings.TrimSpace(receipt)
	if trimmed == "" {
		return domain.Order{}, errors.New("order repository: receipt is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("receipt", "==", trimmed).Limit(1)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if len(docs) == 0 {
		return domain.Order{}, pfirestore.WrapError("orders.receipt", status.Error(codes.NotFound, "order not found for receipt"))
	}
	return orderFromDocument(docs[0].ID, docs[0].Data), nil
}

// SetPayment flips the settlement flag transactionally. changed reports
// whether the stored flag actually moved, so replayed confirmations of an
// already settled order are detectable without being errors.
func (r *OrderRepository) SetPayment(ctx context.Context, orderID string, update repositories.PaymentUpdate) (bool, error) {
	if r == nil || r.provider == nil {
		return false, errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return false, errors.New("order repository: order id is required")
	}

	var changed bool
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, id)
		if err != nil {
			return err
		}

		snapshot, err := tx.Get(ref)
		if err != nil {
			return err
		}

		var doc orderDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return err
		}

		if doc.Payment == update.Paid {
			changed = false
			return nil
		}

		updates := []firestore.Update{
			{Path: "payment", Value: update.Paid},
			{Path: "updatedAt", Value: time.Now().UTC()},
		}
		if update.Paid {
			paidAt := update.PaidAt.UTC()
			if paidAt.IsZero() {
				paidAt = time.Now().UTC()
			}
			updates = append(updates, firestore.Update{Path: "paidAt", Value: paidAt})
		} else {
			updates = append(updates, firestore.Update{Path: "paidAt", Value: firestore.Delete})
		}

		if err := tx.Update(ref, updates); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return false, pfirestore.WrapError("orders.setpayment", err)
	}
	return changed, nil
}

// UpdateStatus overwrites the fulfillment status and returns the updated order.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, orderStatus domain.OrderStatus) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	_, err := r.base.Update(ctx, id, []firestore.Update{
		{Path: "status", Value: string(orderStatus)},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
	if err != nil {
		return domain.Order{}, err
	}
	return r.FindByID(ctx, id)
}

// SetGatewayRef records the gateway reference handed back when the order was
// registered with a payment gateway.
func (r *OrderRepository) SetGatewayRef(ctx context.Context, orderID, gatewayRef string) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return errors.New("order repository: order id is required")
	}
	_, err := r.base.Update(ctx, id, []firestore.Update{
		{Path: "gatewayRef", Value: strings.TrimSpace(gatewayRef)},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
	return err
}

// Delete removes the order document. Used when a hosted checkout redirect
// comes back unsuccessful and the pending order must not survive.
func (r *OrderRepository) Delete(ctx context.Context, orderID string) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	_, err := r.base.Delete(ctx, strings.TrimSpace(orderID))
	return err
}

// ListAll returns orders across all users, newest first.
func (r *OrderRepository) ListAll(ctx context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	return r.list(ctx, func(q firestore.Query) firestore.Query {
		return applyOrderFilter(q.OrderBy("createdAt", firestore.Desc), filter)
	})
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string, filter repositories.OrderListFilter) ([]domain.Order, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, errors.New("order repository: user id is required")
	}
	return r.list(ctx, func(q firestore.Query) firestore.Query {
		return applyOrderFilter(q.Where("userId", "==", uid).OrderBy("createdAt", firestore.Desc), filter)
	})
}

// ListUnpaidByMethod returns unpaid orders for the payment method created
// before the cutoff, oldest first so the sweep drains the backlog in order.
func (r *OrderRepository) ListUnpaidByMethod(ctx context.Context, method domain.PaymentMethod, cutoff time.Time, filter repositories.OrderListFilter) ([]domain.Order, error) {
	if method == "" {
		return nil, errors.New("order repository: payment method is required")
	}
	return r.list(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("paymentMethod", "==", string(method)).
			Where("payment", "==", false).
			Where("createdAt", "<", cutoff.UTC()).
			OrderBy("createdAt", firestore.Asc)
		return applyOrderFilter(q, filter)
	})
}

func (r *OrderRepository) list(ctx context.Context, build pfirestore.QueryBuilder) ([]domain.Order, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("order repository not initialised")
	}
	docs, err := r.base.Query(ctx, build)
	if err != nil {
		return nil, err
	}
	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, orderFromDocument(doc.ID, doc.Data))
	}
	return orders, nil
}

func applyOrderFilter(q firestore.Query, filter repositories.OrderListFilter) firestore.Query {
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	return q
}

func orderToDocument(order domain.Order) orderDocument {
	items := make([]orderLineItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderLineItemDocument{
			ProductRef: item.ProductRef,
			Name:       item.Name,
			Image:      append([]string(nil), item.Image...),
			UnitPrice:  item.UnitPrice,
			Size:       item.Size,
			Quantity:   item.Quantity,
			Total:      item.Total,
		})
	}

	var paidAt *time.Time
	if order.PaidAt != nil {
		utc := order.PaidAt.UTC()
		paidAt = &utc
	}

	return orderDocument{
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		Items:         items,
		Address:       order.Address,
		Amount:        order.Amount,
		Currency:      order.Currency,
		PaymentMethod: string(order.PaymentMethod),
		Payment:       order.Payment,
		Status:        string(order.Status),
		GatewayRef:    order.GatewayRef,
		CreatedAt:     order.CreatedAt.UTC(),
		UpdatedAt:     order.UpdatedAt.UTC(),
		PaidAt:        paidAt,
	}
}

func orderFromDocument(id string, doc orderDocument) domain.Order {
	items := make([]domain.OrderLineItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		items = append(items, domain.OrderLineItem{
			ProductRef: item.ProductRef,
			Name:       item.Name,
			Image:      append([]string(nil), item.Image...),
			UnitPrice:  item.UnitPrice,
			Size:       item.Size,
			Quantity:   item.Quantity,
			Total:      item.Total,
		})
	}

	return domain.Order{
		ID:            id,
		OrderNumber:   doc.OrderNumber,
		UserID:        doc.UserID,
		Items:         items,
		Address:       doc.Address,
		Amount:        doc.Amount,
		Currency:      doc.Currency,
		PaymentMethod: domain.PaymentMethod(doc.PaymentMethod),
		Payment:       doc.Payment,
		Status:        domain.OrderStatus(doc.Status),
		GatewayRef:    doc.GatewayRef,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
		PaidAt:        doc.PaidAt,
	}
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
