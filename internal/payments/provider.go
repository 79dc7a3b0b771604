// Package payments adapts hosted payment gateways behind narrow provider
// contracts. Domain money is expressed in major currency units; conversion to
// the minor units the gateways expect happens inside each adapter.
package payments

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrSessionNotFound is returned when a gateway no longer knows the
// referenced session or remote order.
var ErrSessionNotFound = errors.New("payments: session not found")

// minorUnits converts a major-unit amount to the minor units gateways bill in.
func minorUnits(amount int64) int64 {
	return amount * 100
}

// Logger defines the logging contract for provider operations.
type Logger func(ctx context.Context, event string, fields map[string]any)

func noopLogger(context.Context, string, map[string]any) {}

// CheckoutLineItem describes a single line item to include in a hosted
// checkout session. UnitPrice is in major currency units.
type CheckoutLineItem struct {
	Name      string
	SKU       string
	Quantity  int64
	UnitPrice int64
	Currency  string
}

// CheckoutSessionRequest captures the payload required to create a hosted
// checkout session. SuccessURL and CancelURL already embed the local order
// reference so the redirect lands back on the right order.
type CheckoutSessionRequest struct {
	OrderID        string
	Currency       string
	SuccessURL     string
	CancelURL      string
	CustomerEmail  string
	Metadata       map[string]string
	IdempotencyKey string
	Items          []CheckoutLineItem
}

// CheckoutSessionStatus normalises the hosted session lifecycle.
type CheckoutSessionStatus string

const (
	CheckoutSessionOpen    CheckoutSessionStatus = "open"
	CheckoutSessionPaid    CheckoutSessionStatus = "paid"
	CheckoutSessionExpired CheckoutSessionStatus = "expired"
	CheckoutSessionUnpaid  CheckoutSessionStatus = "unpaid"
)

// CheckoutSession represents the gateway session returned to the client.
type CheckoutSession struct {
	ID          string
	Provider    string
	RedirectURL string
	Status      CheckoutSessionStatus
	ExpiresAt   time.Time
	Raw         map[string]any
}

// RedirectProvider is a gateway that runs payment on its own hosted page and
// reports the outcome via redirect back to the storefront.
type RedirectProvider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error)
	// FetchCheckoutSession re-reads the session so stale unpaid orders can
	// be reconciled against the gateway's view.
	FetchCheckoutSession(ctx context.Context, sessionID string) (CheckoutSession, error)
}

// RemoteOrderStatus normalises the remote gateway order lifecycle.
type RemoteOrderStatus string

const (
	RemoteOrderCreated   RemoteOrderStatus = "created"
	RemoteOrderAttempted RemoteOrderStatus = "attempted"
	RemoteOrderPaid      RemoteOrderStatus = "paid"
)

// RemoteOrderRequest registers an order with the gateway ahead of client-side
// payment. Receipt carries the local order ID so verification can find its
// way back.
type RemoteOrderRequest struct {
	Amount   int64
	Currency string
	Receipt  string
	Notes    map[string]string
}

// RemoteOrder is the gateway's view of a registered order.
type RemoteOrder struct {
	ID       string
	Provider string
	Amount   int64
	Currency string
	Receipt  string
	Status   RemoteOrderStatus
	Raw      map[string]any
}

// RemoteOrderProvider is a gateway where the server registers an order first
// and the client completes payment against it, with the server verifying the
// result by re-fetching the remote order.
type RemoteOrderProvider interface {
	CreateRemoteOrder(ctx context.Context, req RemoteOrderRequest) (RemoteOrder, error)
	FetchRemoteOrder(ctx context.Context, remoteOrderID string) (RemoteOrder, error)
}

func cloneMetadata(metadata map[string]string) map[string]string {
	if len(metadata) == 0 {
		return nil
	}
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}

func normalizeCurrency(currency string) string {
	return strings.ToLower(strings.TrimSpace(currency))
}
