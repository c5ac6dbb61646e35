// Package tools provides the simulated downstream tool adapters the
// gateway ships with. They are in-memory stand-ins for real payment and
// file services, useful for demos and end-to-end tests.
package tools

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/aegis-gate/aegisgate/internal/domain/tool"
)

// payment is a created payment held in memory.
type payment struct {
	ID       string
	Amount   float64
	Currency string
	VendorID string
}

// Payments simulates a payment rail with create and refund actions.
type Payments struct {
	mu       sync.Mutex
	payments map[string]payment
	refunds  map[string]string // refund id -> payment id
}

// NewPayments creates an empty simulated payment adapter.
func NewPayments() *Payments {
	return &Payments{
		payments: make(map[string]payment),
		refunds:  make(map[string]string),
	}
}

// Name implements tool.Handler.
func (p *Payments) Name() string { return "payments" }

// Call implements tool.Handler.
func (p *Payments) Call(_ context.Context, action string, params map[string]interface{}) (map[string]interface{}, error) {
	switch action {
	case "create":
		return p.create(params)
	case "refund":
		return p.refund(params)
	default:
		return nil, fmt.Errorf("%w: payments.%s", tool.ErrUnknownAction, action)
	}
}

func (p *Payments) create(params map[string]interface{}) (map[string]interface{}, error) {
	amount, ok := numberParam(params, "amount")
	if !ok || amount <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	currency, _ := params["currency"].(string)
	if currency == "" {
		return nil, fmt.Errorf("currency is required")
	}
	vendorID, _ := params["vendor_id"].(string)
	if vendorID == "" {
		return nil, fmt.Errorf("vendor_id is required")
	}

	pay := payment{
		ID:       newToken(),
		Amount:   amount,
		Currency: currency,
		VendorID: vendorID,
	}

	p.mu.Lock()
	p.payments[pay.ID] = pay
	p.mu.Unlock()

	return map[string]interface{}{
		"payment_id": pay.ID,
		"amount":     pay.Amount,
		"currency":   pay.Currency,
		"status":     "created",
	}, nil
}

func (p *Payments) refund(params map[string]interface{}) (map[string]interface{}, error) {
	paymentID, _ := params["payment_id"].(string)
	if paymentID == "" {
		return nil, fmt.Errorf("payment_id is required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.payments[paymentID]; !ok {
		return nil, fmt.Errorf("payment '%s' not found", paymentID)
	}

	refundID := newToken()
	p.refunds[refundID] = paymentID

	return map[string]interface{}{
		"refund_id":  refundID,
		"payment_id": paymentID,
		"status":     "refunded",
	}, nil
}

func numberParam(params map[string]interface{}, key string) (float64, bool) {
	switch n := params[key].(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// newToken returns a 32-char hex token, matching the shape of real
// processor ids.
func newToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
