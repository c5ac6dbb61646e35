package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aegis-gate/aegisgate/internal/domain/tool"
)

func TestPayments_CreateAndRefund(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := NewPayments()

	resp, err := p.Call(ctx, "create", map[string]interface{}{
		"amount":    500.0,
		"currency":  "USD",
		"vendor_id": "v1",
	})
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if resp["status"] != "created" {
		t.Errorf("status = %v", resp["status"])
	}
	paymentID, _ := resp["payment_id"].(string)
	if len(paymentID) != 32 {
		t.Errorf("payment_id = %q, want 32 hex chars", paymentID)
	}

	refund, err := p.Call(ctx, "refund", map[string]interface{}{"payment_id": paymentID})
	if err != nil {
		t.Fatalf("refund error: %v", err)
	}
	if refund["status"] != "refunded" || refund["payment_id"] != paymentID {
		t.Errorf("refund response = %v", refund)
	}
}

func TestPayments_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		action  string
		params  map[string]interface{}
		wantErr string
	}{
		{"zero amount", "create", map[string]interface{}{"amount": 0.0, "currency": "USD", "vendor_id": "v1"}, "amount must be positive"},
		{"missing amount", "create", map[string]interface{}{"currency": "USD", "vendor_id": "v1"}, "amount must be positive"},
		{"missing currency", "create", map[string]interface{}{"amount": 5.0, "vendor_id": "v1"}, "currency is required"},
		{"missing vendor", "create", map[string]interface{}{"amount": 5.0, "currency": "USD"}, "vendor_id is required"},
		{"refund unknown payment", "refund", map[string]interface{}{"payment_id": "nope"}, "not found"},
		{"refund missing id", "refund", map[string]interface{}{}, "payment_id is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewPayments().Call(context.Background(), tt.action, tt.params)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestPayments_UnknownAction(t *testing.T) {
	t.Parallel()

	_, err := NewPayments().Call(context.Background(), "transfer", nil)
	if !errors.Is(err, tool.ErrUnknownAction) {
		t.Errorf("error = %v, want ErrUnknownAction", err)
	}
}

func TestFiles_ReadSeededCorpus(t *testing.T) {
	t.Parallel()

	resp, err := NewFiles().Call(context.Background(), "read",
		map[string]interface{}{"path": "/hr-docs/benefits.txt"})
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	content, _ := resp["content"].(string)
	if !strings.Contains(content, "Benefits Information") {
		t.Errorf("content = %q", content)
	}
}

func TestFiles_ReadUnknownPath(t *testing.T) {
	t.Parallel()

	_, err := NewFiles().Call(context.Background(), "read",
		map[string]interface{}{"path": "/nope.txt"})
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %v", err)
	}
}

func TestFiles_WriteThenRead(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := NewFiles()

	resp, err := f.Call(ctx, "write", map[string]interface{}{
		"path":    "/hr-docs/new.txt",
		"content": "hello",
	})
	if err != nil {
		t.Fatalf("write error: %v", err)
	}
	if resp["status"] != "written" {
		t.Errorf("status = %v", resp["status"])
	}

	read, err := f.Call(ctx, "read", map[string]interface{}{"path": "/hr-docs/new.txt"})
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if read["content"] != "hello" {
		t.Errorf("content = %v", read["content"])
	}
}

func TestRegistry_Dispatch(t *testing.T) {
	t.Parallel()

	reg := tool.NewRegistry()
	reg.Register(NewPayments())
	reg.Register(NewFiles())

	resp, err := reg.Forward(context.Background(), "files", "read",
		map[string]interface{}{"path": "/legal/contract.docx"})
	if err != nil {
		t.Fatalf("Forward() error: %v", err)
	}
	if resp["path"] != "/legal/contract.docx" {
		t.Errorf("path = %v", resp["path"])
	}

	_, err = reg.Forward(context.Background(), "email", "send", nil)
	if !errors.Is(err, tool.ErrUnknownTool) {
		t.Errorf("error = %v, want ErrUnknownTool", err)
	}
}
