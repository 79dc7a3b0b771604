package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/everwear/api/internal/domain"
	"github.com/everwear/api/internal/payments"
	"github.com/everwear/api/internal/repositories"
)

const (
	orderIDPrefix     = "ord_"
	orderCounterName  = "orders"
	deliveryLineName  = "Delivery Charges"
	defaultSweepAge   = time.Hour
	defaultSweepLimit = 100
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidStatus indicates an unknown fulfillment status label.
	ErrOrderInvalidStatus = errors.New("order: invalid status")
	// ErrOrderGateway indicates the payment gateway rejected or failed the call.
	ErrOrderGateway = errors.New("order: payment gateway failure")
	// ErrOrderUnavailable indicates the order store could not be reached.
	ErrOrderUnavailable = errors.New("order: store unavailable")
)

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Carts       repositories.CartRepository
	Counters    repositories.CounterRepository
	Pricing     PricingEngine
	Stripe      payments.RedirectProvider
	Razorpay    payments.RemoteOrderProvider
	Events      OrderEventPublisher
	UnitOfWork  repositories.UnitOfWork
	WebBaseURL  string
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders     repositories.OrderRepository
	carts      repositories.CartRepository
	counters   repositories.CounterRepository
	pricing    PricingEngine
	stripe     payments.RedirectProvider
	razorpay   payments.RemoteOrderProvider
	events     OrderEventPublisher
	unitOfWork repositories.UnitOfWork
	webBaseURL string
	clock      func() time.Time
	newID      func() string
	logger     func(context.Context, string, map[string]any)
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Carts == nil {
		return nil, errors.New("order service: cart repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
	}
	if deps.Pricing == nil {
		return nil, errors.New("order service: pricing engine is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return orderIDPrefix + ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:     deps.Orders,
		carts:      deps.Carts,
		counters:   deps.Counters,
		pricing:    deps.Pricing,
		stripe:     deps.Stripe,
		razorpay:   deps.Razorpay,
		events:     deps.Events,
		unitOfWork: unit,
		webBaseURL: strings.TrimRight(strings.TrimSpace(deps.WebBaseURL), "/"),
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// PlaceCODOrder creates a settled-later order paid on delivery. The cart is
// cleared immediately; the payment flag stays false until delivery.
func (s *orderService) PlaceCODOrder(ctx context.Context, cmd PlaceOrderCommand) (domain.Order, error) {
	order, _, err := s.buildPendingOrder(ctx, cmd, domain.PaymentMethodCOD)
	if err != nil {
		return domain.Order{}, err
	}

	err = s.unitOfWork.RunInTx(ctx, func(ctx context.Context) error {
		inserted, err := s.orders.Insert(ctx, order)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		order = inserted
		if err := s.carts.ClearCart(ctx, order.UserID); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.publishEvent(ctx, OrderEventPlaced, order)
	s.logger(ctx, "order.cod.placed", map[string]any{
		"orderId":     order.ID,
		"orderNumber": order.OrderNumber,
		"amount":      order.Amount,
		"zeroAmount":  order.Amount == 0,
	})
	return order, nil
}

// PlaceStripeOrder creates a pending order and a hosted checkout session the
// client must redirect to. The cart is only cleared once the redirect comes
// back successful.
func (s *orderService) PlaceStripeOrder(ctx context.Context, cmd PlaceOrderCommand) (StripeCheckout, error) {
	if s.stripe == nil {
		return StripeCheckout{}, fmt.Errorf("%w: stripe provider not configured", ErrOrderGateway)
	}

	order, priced, err := s.buildPendingOrder(ctx, cmd, domain.PaymentMethodStripe)
	if err != nil {
		return StripeCheckout{}, err
	}

	order, err = s.orders.Insert(ctx, order)
	if err != nil {
		return StripeCheckout{}, s.mapRepositoryError(err)
	}

	origin := s.resolveOrigin(cmd.Origin)
	items := make([]payments.CheckoutLineItem, 0, len(priced.Lines)+1)
	for _, line := range priced.Lines {
		items = append(items, payments.CheckoutLineItem{
			Name:      line.Name,
			SKU:       line.ProductRef,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Currency:  priced.Currency,
		})
	}
	if priced.DeliveryFee > 0 {
		items = append(items, payments.CheckoutLineItem{
			Name:      deliveryLineName,
			Quantity:  1,
			UnitPrice: priced.DeliveryFee,
			Currency:  priced.Currency,
		})
	}

	session, err := s.stripe.CreateCheckoutSession(ctx, payments.CheckoutSessionRequest{
		OrderID:    order.ID,
		Currency:   priced.Currency,
		SuccessURL: fmt.Sprintf("%s/verify?success=true&orderId=%s", origin, order.ID),
		CancelURL:  fmt.Sprintf("%s/verify?success=false&orderId=%s", origin, order.ID),
		Items:      items,
	})
	if err != nil {
		// The pending order stays in place; the reconciliation sweep or a
		// retried checkout picks it up.
		s.logger(ctx, "order.stripe.session.failed", map[string]any{"orderId": order.ID, "error": err.Error()})
		return StripeCheckout{}, fmt.Errorf("%w: %v", ErrOrderGateway, err)
	}

	if err := s.orders.SetGatewayRef(ctx, order.ID, session.ID); err != nil {
		return StripeCheckout{}, s.mapRepositoryError(err)
	}
	order.GatewayRef = session.ID

	s.publishEvent(ctx, OrderEventPlaced, order)
	s.logger(ctx, "order.stripe.placed", map[string]any{
		"orderId":   order.ID,
		"sessionId": session.ID,
		"amount":    order.Amount,
	})
	return StripeCheckout{
		Order:      order,
		SessionID:  session.ID,
		SessionURL: session.RedirectURL,
	}, nil
}

// ConfirmStripePayment settles or discards a pending hosted checkout order
// based on the reported redirect outcome. A failed redirect deletes the
// pending order; a successful one flips the payment flag and clears the
// buyer's cart. Replayed confirmations of a settled order are no-ops.
func (s *orderService) ConfirmStripePayment(ctx context.Context, cmd ConfirmStripeCommand) (PaymentConfirmation, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return PaymentConfirmation{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return PaymentConfirmation{}, s.mapRepositoryError(err)
	}
	if uid := strings.TrimSpace(cmd.UserID); uid != "" && order.UserID != uid {
		return PaymentConfirmation{}, fmt.Errorf("%w: order %s", ErrOrderNotFound, orderID)
	}

	if !cmd.Succeeded {
		if err := s.orders.Delete(ctx, orderID); err != nil {
			return PaymentConfirmation{}, s.mapRepositoryError(err)
		}
		s.publishEvent(ctx, OrderEventCancelled, order)
		s.logger(ctx, "order.stripe.cancelled", map[string]any{"orderId": orderID})
		return PaymentConfirmation{Settled: false}, nil
	}

	settled, err := s.settleOrder(ctx, order)
	if err != nil {
		return PaymentConfirmation{}, err
	}
	return PaymentConfirmation{Settled: true, Order: settled}, nil
}

// PlaceRazorpayOrder creates a pending order and registers it with the remote
// gateway, handing the local order ID over as the receipt.
func (s *orderService) PlaceRazorpayOrder(ctx context.Context, cmd PlaceOrderCommand) (RazorpayCheckout, error) {
	if s.razorpay == nil {
		return RazorpayCheckout{}, fmt.Errorf("%w: razorpay provider not configured", ErrOrderGateway)
	}

	order, priced, err := s.buildPendingOrder(ctx, cmd, domain.PaymentMethodRazorpay)
	if err != nil {
		return RazorpayCheckout{}, err
	}
	if priced.Total <= 0 {
		return RazorpayCheckout{}, fmt.Errorf("%w: gateway orders require a positive amount", ErrOrderInvalidInput)
	}

	order, err = s.orders.Insert(ctx, order)
	if err != nil {
		return RazorpayCheckout{}, s.mapRepositoryError(err)
	}

	remote, err := s.razorpay.CreateRemoteOrder(ctx, payments.RemoteOrderRequest{
		Amount:   order.Amount,
		Currency: order.Currency,
		Receipt:  order.ID,
	})
	if err != nil {
		s.logger(ctx, "order.razorpay.create.failed", map[string]any{"orderId": order.ID, "error": err.Error()})
		return RazorpayCheckout{}, fmt.Errorf("%w: %v", ErrOrderGateway, err)
	}

	if err := s.orders.SetGatewayRef(ctx, order.ID, remote.ID); err != nil {
		return RazorpayCheckout{}, s.mapRepositoryError(err)
	}
	order.GatewayRef = remote.ID

	s.publishEvent(ctx, OrderEventPlaced, order)
	s.logger(ctx, "order.razorpay.placed", map[string]any{
		"orderId":       order.ID,
		"remoteOrderId": remote.ID,
		"amount":        order.Amount,
	})
	return RazorpayCheckout{
		Order:         order,
		RemoteOrderID: remote.ID,
		Amount:        order.Amount,
		Currency:      order.Currency,
	}, nil
}

// ConfirmRazorpayPayment verifies the remote order server-side and settles
// the local order only when the gateway itself reports it paid. Any other
// gateway status leaves the pending order untouched.
func (s *orderService) ConfirmRazorpayPayment(ctx context.Context, cmd ConfirmRazorpayCommand) (PaymentConfirmation, error) {
	if s.razorpay == nil {
		return PaymentConfirmation{}, fmt.Errorf("%w: razorpay provider not configured", ErrOrderGateway)
	}
	remoteID := strings.TrimSpace(cmd.RemoteOrderID)
	if remoteID == "" {
		return PaymentConfirmation{}, fmt.Errorf("%w: remote order id is required", ErrOrderInvalidInput)
	}

	remote, err := s.razorpay.FetchRemoteOrder(ctx, remoteID)
	if err != nil {
		if errors.Is(err, payments.ErrSessionNotFound) {
			return PaymentConfirmation{}, fmt.Errorf("%w: remote order %s", ErrOrderNotFound, remoteID)
		}
		return PaymentConfirmation{}, fmt.Errorf("%w: %v", ErrOrderGateway, err)
	}

	if remote.Status != payments.RemoteOrderPaid {
		s.logger(ctx, "order.razorpay.unverified", map[string]any{
			"remoteOrderId": remoteID,
			"status":        string(remote.Status),
		})
		return PaymentConfirmation{Settled: false}, nil
	}

	order, err := s.orders.FindByReceipt(ctx, remote.Receipt)
	if err != nil {
		return PaymentConfirmation{}, s.mapRepositoryError(err)
	}
	if uid := strings.TrimSpace(cmd.UserID); uid != "" && order.UserID != uid {
		return PaymentConfirmation{}, fmt.Errorf("%w: order for receipt %s", ErrOrderNotFound, remote.Receipt)
	}

	settled, err := s.settleOrder(ctx, order)
	if err != nil {
		return PaymentConfirmation{}, err
	}
	return PaymentConfirmation{Settled: true, Order: settled}, nil
}

func (s *orderService) ListAllOrders(ctx context.Context, query OrderListQuery) ([]domain.Order, error) {
	orders, err := s.orders.ListAll(ctx, repositories.OrderListFilter{Limit: query.Limit})
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return orders, nil
}

func (s *orderService) ListUserOrders(ctx context.Context, userID string, query OrderListQuery) ([]domain.Order, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	orders, err := s.orders.ListByUser(ctx, uid, repositories.OrderListFilter{Limit: query.Limit})
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return orders, nil
}

// UpdateOrderStatus overwrites the fulfillment status. The label set is
// validated; ordering between labels deliberately is not.
func (s *orderService) UpdateOrderStatus(ctx context.Context, orderID, status string) (domain.Order, error) {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	parsed, ok := domain.ParseOrderStatus(status)
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: %q", ErrOrderInvalidStatus, status)
	}

	order, err := s.orders.UpdateStatus(ctx, id, parsed)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEventStatus, order)
	s.logger(ctx, "order.status.updated", map[string]any{
		"orderId": order.ID,
		"status":  string(order.Status),
	})
	return order, nil
}

// ReconcilePendingOrders sweeps stale unpaid gateway orders and re-queries
// each gateway for its authoritative view. Orders the gateway reports paid
// are settled, expired hosted sessions are deleted, everything else is left
// for the next sweep.
func (s *orderService) ReconcilePendingOrders(ctx context.Context, cmd ReconcileCommand) (ReconcileReport, error) {
	olderThan := cmd.OlderThan
	if olderThan <= 0 {
		olderThan = defaultSweepAge
	}
	limit := cmd.Limit
	if limit <= 0 {
		limit = defaultSweepLimit
	}
	cutoff := s.clock().Add(-olderThan)
	filter := repositories.OrderListFilter{Limit: limit}

	var report ReconcileReport

	if s.stripe != nil {
		stale, err := s.orders.ListUnpaidByMethod(ctx, domain.PaymentMethodStripe, cutoff, filter)
		if err != nil {
			return report, s.mapRepositoryError(err)
		}
		for _, order := range stale {
			report.Scanned++
			s.reconcileStripeOrder(ctx, order, &report)
		}
	}

	if s.razorpay != nil {
		stale, err := s.orders.ListUnpaidByMethod(ctx, domain.PaymentMethodRazorpay, cutoff, filter)
		if err != nil {
			return report, s.mapRepositoryError(err)
		}
		for _, order := range stale {
			report.Scanned++
			s.reconcileRazorpayOrder(ctx, order, &report)
		}
	}

	s.logger(ctx, "order.reconcile.completed", map[string]any{
		"scanned": report.Scanned,
		"settled": report.Settled,
		"deleted": report.Deleted,
		"skipped": report.Skipped,
	})
	return report, nil
}

func (s *orderService) reconcileStripeOrder(ctx context.Context, order domain.Order, report *ReconcileReport) {
	if order.GatewayRef == "" {
		report.Skipped++
		return
	}
	session, err := s.stripe.FetchCheckoutSession(ctx, order.GatewayRef)
	if err != nil {
		report.Skipped++
		s.logger(ctx, "order.reconcile.stripe.fetch_failed", map[string]any{"orderId": order.ID, "error": err.Error()})
		return
	}
	switch session.Status {
	case payments.CheckoutSessionPaid:
		if _, err := s.settleOrder(ctx, order); err != nil {
			report.Skipped++
			s.logger(ctx, "order.reconcile.stripe.settle_failed", map[string]any{"orderId": order.ID, "error": err.Error()})
			return
		}
		report.Settled++
	case payments.CheckoutSessionExpired:
		if err := s.orders.Delete(ctx, order.ID); err != nil {
			report.Skipped++
			s.logger(ctx, "order.reconcile.stripe.delete_failed", map[string]any{"orderId": order.ID, "error": err.Error()})
			return
		}
		s.publishEvent(ctx, OrderEventCancelled, order)
		report.Deleted++
	default:
		report.Skipped++
	}
}

func (s *orderService) reconcileRazorpayOrder(ctx context.Context, order domain.Order, report *ReconcileReport) {
	if order.GatewayRef == "" {
		report.Skipped++
		return
	}
	remote, err := s.razorpay.FetchRemoteOrder(ctx, order.GatewayRef)
	if err != nil {
		report.Skipped++
		s.logger(ctx, "order.reconcile.razorpay.fetch_failed", map[string]any{"orderId": order.ID, "error": err.Error()})
		return
	}
	if remote.Status != payments.RemoteOrderPaid {
		report.Skipped++
		return
	}
	if _, err := s.settleOrder(ctx, order); err != nil {
		report.Skipped++
		s.logger(ctx, "order.reconcile.razorpay.settle_failed", map[string]any{"orderId": order.ID, "error": err.Error()})
		return
	}
	report.Settled++
}

// buildPendingOrder prices the submitted cart server-side and assembles the
// order aggregate. The submitted items are never trusted for amounts.
func (s *orderService) buildPendingOrder(ctx context.Context, cmd PlaceOrderCommand, method domain.PaymentMethod) (domain.Order, PricedCart, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return domain.Order{}, PricedCart{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}

	priced, err := s.pricing.PriceCart(ctx, cmd.Items)
	if err != nil {
		if errors.Is(err, ErrPricingInvalidInput) {
			return domain.Order{}, PricedCart{}, fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
		}
		return domain.Order{}, PricedCart{}, fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
	}

	number, err := s.nextOrderNumber(ctx)
	if err != nil {
		return domain.Order{}, PricedCart{}, err
	}

	now := s.clock()
	order := domain.Order{
		ID:            s.newID(),
		OrderNumber:   number,
		UserID:        userID,
		Items:         priced.Lines,
		Address:       cmd.Address,
		Amount:        priced.Total,
		Currency:      priced.Currency,
		PaymentMethod: method,
		Payment:       false,
		Status:        domain.OrderStatusPlaced,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return order, priced, nil
}

// settleOrder flips the payment flag and clears the buyer's cart. The flip is
// transactional set-if-not-already-true, so replays settle at most once and
// publish at most one paid event. A failed cart clear is reported to the
// caller; the flag flip is durable, so a retried confirm completes the clear
// without settling twice.
func (s *orderService) settleOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	now := s.clock()
	changed, err := s.orders.SetPayment(ctx, order.ID, repositories.PaymentUpdate{Paid: true, PaidAt: now})
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	order.Payment = true
	order.PaidAt = &now
	if changed {
		s.publishEvent(ctx, OrderEventPaid, order)
		s.logger(ctx, "order.settled", map[string]any{
			"orderId":     order.ID,
			"orderNumber": order.OrderNumber,
			"amount":      order.Amount,
		})
	}

	if err := s.carts.ClearCart(ctx, order.UserID); err != nil {
		s.logger(ctx, "order.cart.clear_failed", map[string]any{"orderId": order.ID, "error": err.Error()})
		return domain.Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

func (s *orderService) nextOrderNumber(ctx context.Context) (string, error) {
	seq, err := s.counters.Next(ctx, orderCounterName)
	if err != nil {
		return "", s.mapRepositoryError(err)
	}
	return fmt.Sprintf("EW-%d-%06d", s.clock().Year(), seq), nil
}

func (s *orderService) resolveOrigin(origin string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(origin), "/")
	if trimmed != "" {
		return trimmed
	}
	return s.webBaseURL
}

func (s *orderService) publishEvent(ctx context.Context, eventType string, order domain.Order) {
	if s.events == nil {
		return
	}
	event := OrderEvent{
		Type:          eventType,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		PaymentMethod: string(order.PaymentMethod),
		Amount:        order.Amount,
		Currency:      order.Currency,
		OccurredAt:    s.clock(),
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish_failed", map[string]any{
			"orderId":   order.ID,
			"eventType": eventType,
			"error":     err.Error(),
		})
	}
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
		}
	}
	return err
}
