package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	razorpay "github.com/razorpay/razorpay-go"
)

type razorpayOrderAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
	Fetch(orderID string, data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// RazorpayProviderConfig configures the RazorpayProvider.
type RazorpayProviderConfig struct {
	KeyID     string
	KeySecret string
	Logger    Logger
	Orders    razorpayOrderAPI
}

// RazorpayProvider implements RemoteOrderProvider on the Razorpay Orders API.
type RazorpayProvider struct {
	orders razorpayOrderAPI
	logger Logger
}

// NewRazorpayProvider constructs a Razorpay remote-order provider.
func NewRazorpayProvider(cfg RazorpayProviderConfig) (*RazorpayProvider, error) {
	keyID := strings.TrimSpace(cfg.KeyID)
	keySecret := strings.TrimSpace(cfg.KeySecret)
	if cfg.Orders == nil && (keyID == "" || keySecret == "") {
		return nil, errors.New("razorpay: key id and key secret are required")
	}

	orders := cfg.Orders
	if orders == nil {
		orders = razorpay.NewClient(keyID, keySecret).Order
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger
	}

	return &RazorpayProvider{
		orders: orders,
		logger: logger,
	}, nil
}

// CreateRemoteOrder registers the order with Razorpay. The amount arrives in
// major units and is converted here; the receipt carries the local order ID.
func (p *RazorpayProvider) CreateRemoteOrder(ctx context.Context, req RemoteOrderRequest) (RemoteOrder, error) {
	if p == nil {
		return RemoteOrder{}, errors.New("razorpay: provider is nil")
	}
	receipt := strings.TrimSpace(req.Receipt)
	if receipt == "" {
		return RemoteOrder{}, errors.New("razorpay: receipt is required")
	}
	if req.Amount <= 0 {
		return RemoteOrder{}, errors.New("razorpay: amount must be positive")
	}

	data := map[string]interface{}{
		"amount":   minorUnits(req.Amount),
		"currency": strings.ToUpper(normalizeCurrency(req.Currency)),
		"receipt":  receipt,
	}
	if len(req.Notes) > 0 {
		notes := make(map[string]interface{}, len(req.Notes))
		for k, v := range req.Notes {
			notes[k] = v
		}
		data["notes"] = notes
	}

	body, err := p.orders.Create(data, nil)
	if err != nil {
		return RemoteOrder{}, fmt.Errorf("razorpay: create order: %w", err)
	}

	order := razorpayRemoteOrder(body)
	p.logger(ctx, "payments.razorpay.order.created", map[string]any{
		"remoteOrderId": order.ID,
		"receipt":       order.Receipt,
		"currency":      order.Currency,
	})
	return order, nil
}

// FetchRemoteOrder re-reads the remote order so the caller can decide whether
// the gateway considers it settled.
func (p *RazorpayProvider) FetchRemoteOrder(ctx context.Context, remoteOrderID string) (RemoteOrder, error) {
	if p == nil {
		return RemoteOrder{}, errors.New("razorpay: provider is nil")
	}
	id := strings.TrimSpace(remoteOrderID)
	if id == "" {
		return RemoteOrder{}, errors.New("razorpay: remote order id is required")
	}

	body, err := p.orders.Fetch(id, nil, nil)
	if err != nil {
		if isRemoteOrderNotFound(err) {
			return RemoteOrder{}, ErrSessionNotFound
		}
		return RemoteOrder{}, fmt.Errorf("razorpay: fetch order: %w", err)
	}

	order := razorpayRemoteOrder(body)
	p.logger(ctx, "payments.razorpay.order.fetched", map[string]any{
		"remoteOrderId": order.ID,
		"receipt":       order.Receipt,
		"status":        string(order.Status),
	})
	return order, nil
}

// isRemoteOrderNotFound classifies a fetch failure as an unknown order id.
// The SDK returns untyped errors carrying the gateway's error body as text,
// so classification has to match on that text: the description for unknown
// ids ("does not exist") and the BAD_REQUEST_ERROR code the gateway assigns
// to id lookups it rejects.
func isRemoteOrderNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "does not exist") {
		return true
	}
	return strings.Contains(msg, "bad_request_error")
}

// razorpayRemoteOrder normalises the loosely typed API response. Amounts come
// back in minor units and are converted to major units for the domain.
func razorpayRemoteOrder(body map[string]interface{}) RemoteOrder {
	order := RemoteOrder{
		Provider: "razorpay",
		ID:       stringField(body, "id"),
		Currency: normalizeCurrency(stringField(body, "currency")),
		Receipt:  stringField(body, "receipt"),
		Raw:      body,
	}

	switch strings.ToLower(stringField(body, "status")) {
	case "paid":
		order.Status = RemoteOrderPaid
	case "attempted":
		order.Status = RemoteOrderAttempted
	default:
		order.Status = RemoteOrderCreated
	}

	if minor, ok := int64Field(body, "amount"); ok {
		order.Amount = minor / 100
	}
	return order
}

func stringField(body map[string]interface{}, key string) string {
	if body == nil {
		return ""
	}
	value, _ := body[key].(string)
	return value
}

func int64Field(body map[string]interface{}, key string) (int64, bool) {
	if body == nil {
		return 0, false
	}
	switch value := body[key].(type) {
	case int64:
		return value, true
	case int:
		return int64(value), true
	case float64:
		return int64(value), true
	case json.Number:
		parsed, err := value.Int64()
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

var _ RemoteOrderProvider = (*RazorpayProvider)(nil)
