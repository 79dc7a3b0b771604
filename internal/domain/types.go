// Package domain declares the entities shared across repositories, services, and handlers.
package domain

import (
	"strings"
	"time"
)

// Product is the catalog's authoritative view of a sellable item. Prices are
// expressed in major currency units and are only ever read from the catalog
// when computing order amounts.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       int64
	Image       []string
	Category    string
	SubCategory string
	Sizes       []string
	BestSeller  bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CartData maps product ID to size label to quantity. An absent entry means
// zero; stored quantities are always >= 1.
type CartData map[string]map[string]int64

// Clone returns a deep copy so that callers can mutate without aliasing the
// stored cart.
func (c CartData) Clone() CartData {
	if c == nil {
		return nil
	}
	out := make(CartData, len(c))
	for productID, sizes := range c {
		dup := make(map[string]int64, len(sizes))
		for size, qty := range sizes {
			dup[size] = qty
		}
		out[productID] = dup
	}
	return out
}

// IsEmpty reports whether the cart holds no positive-quantity entries.
func (c CartData) IsEmpty() bool {
	for _, sizes := range c {
		for _, qty := range sizes {
			if qty > 0 {
				return false
			}
		}
	}
	return true
}

// Cart aggregates the mutable shopping cart state for a buyer. The cart is
// created empty alongside the account and survives clearing: ClearCart resets
// Data to an empty map, it never deletes the document.
type Cart struct {
	UserID    string
	Data      CartData
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PaymentMethod tags the strategy used to settle an order.
type PaymentMethod string

const (
	// PaymentMethodCOD marks cash-on-delivery orders settled offline.
	PaymentMethodCOD PaymentMethod = "cod"
	// PaymentMethodStripe marks orders settled through a hosted checkout redirect.
	PaymentMethodStripe PaymentMethod = "stripe"
	// PaymentMethodRazorpay marks orders settled through a remote gateway order verified after the fact.
	PaymentMethodRazorpay PaymentMethod = "razorpay"
)

// OrderStatus enumerates the fulfillment progression labels for orders.
// Payment settlement is tracked separately on Order.Payment.
type OrderStatus string

const (
	// OrderStatusPlaced is the initial status assigned at creation.
	OrderStatusPlaced OrderStatus = "placed"
	// OrderStatusPacking indicates the order is being prepared.
	OrderStatusPacking OrderStatus = "packing"
	// OrderStatusShipped indicates the order has been handed to the carrier.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusOutForDelivery indicates the order is on its final leg.
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	// OrderStatusDelivered indicates the order reached the buyer.
	OrderStatusDelivered OrderStatus = "delivered"
)

// ValidOrderStatus reports whether the label belongs to the known set.
// Ordering between labels is not enforced; the admin update path deliberately
// allows arbitrary overwrites.
func ValidOrderStatus(status OrderStatus) bool {
	switch status {
	case OrderStatusPlaced, OrderStatusPacking, OrderStatusShipped, OrderStatusOutForDelivery, OrderStatusDelivered:
		return true
	}
	return false
}

// ParseOrderStatus normalises a raw label into an OrderStatus.
func ParseOrderStatus(raw string) (OrderStatus, bool) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !ValidOrderStatus(status) {
		return "", false
	}
	return status, true
}

// OrderLineItem is a priced snapshot of one cart entry, frozen at order
// creation time. UnitPrice is the catalog price at that moment and never
// follows later catalog changes.
type OrderLineItem struct {
	ProductRef string
	Name       string
	Image      []string
	UnitPrice  int64
	Size       string
	Quantity   int64
	Total      int64
}

// Order is the order store's aggregate. Amount is always recomputed
// server-side; Payment flips false->true exactly once outside of the
// delete-on-failed-redirect path.
type Order struct {
	ID            string
	OrderNumber   string
	UserID        string
	Items         []OrderLineItem
	Address       map[string]any
	Amount        int64
	Currency      string
	PaymentMethod PaymentMethod
	Payment       bool
	Status        OrderStatus
	// GatewayRef records the hosted checkout session or remote gateway
	// order this order was handed to, when one exists. The reconciliation
	// sweep uses it to re-query the gateway for stale unpaid orders.
	GatewayRef string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	PaidAt     *time.Time
}
