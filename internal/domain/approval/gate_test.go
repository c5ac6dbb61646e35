package approval

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/aegis-gate/aegisgate/internal/domain/policy"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testContext() policy.EvaluationContext {
	return policy.EvaluationContext{
		AgentID: "billing_bot",
		Tool:    "payments",
		Action:  "refund",
		Params:  map[string]interface{}{"payment_id": "p1"},
	}
}

func TestGate_CreateAndConsume(t *testing.T) {
	t.Parallel()

	g := NewGate(testLogger())
	id := g.Create(testContext())
	if id == "" {
		t.Fatal("Create() returned empty id")
	}

	req, err := g.Consume(id)
	if err != nil {
		t.Fatalf("Consume() error: %v", err)
	}
	if req.Status != "approved" {
		t.Errorf("Status = %q, want %q", req.Status, "approved")
	}
	if req.ApprovedAt.IsZero() {
		t.Error("ApprovedAt not set")
	}
	if req.Context.AgentID != "billing_bot" {
		t.Errorf("Context.AgentID = %q", req.Context.AgentID)
	}
}

// Each approval id is valid for exactly one Consume. The second call sees
// ErrNotFound and leaves the gate unchanged.
func TestGate_ConsumeIsSingleUse(t *testing.T) {
	t.Parallel()

	g := NewGate(testLogger())
	id := g.Create(testContext())

	if _, err := g.Consume(id); err != nil {
		t.Fatalf("first Consume() error: %v", err)
	}
	if _, err := g.Consume(id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Consume() error = %v, want ErrNotFound", err)
	}
	if n := g.Len(); n != 0 {
		t.Errorf("Len() = %d after double consume, want 0", n)
	}
}

func TestGate_ConsumeUnknownID(t *testing.T) {
	t.Parallel()

	g := NewGate(testLogger())
	if _, err := g.Consume("no-such-id"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Consume() error = %v, want ErrNotFound", err)
	}
}

func TestGate_PendingOrderedByCreation(t *testing.T) {
	t.Parallel()

	clock := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	g := NewGate(testLogger(), WithClock(func() time.Time { return clock }))

	first := g.Create(testContext())
	clock = clock.Add(time.Second)
	second := g.Create(testContext())

	pending := g.Pending()
	if len(pending) != 2 {
		t.Fatalf("Pending() returned %d entries, want 2", len(pending))
	}
	if pending[0].ID != first || pending[1].ID != second {
		t.Errorf("Pending() order = [%s %s], want creation order", pending[0].ID, pending[1].ID)
	}
	for _, req := range pending {
		if req.Status != "pending" {
			t.Errorf("Status = %q, want %q", req.Status, "pending")
		}
	}
}

func TestGate_TTLExpiry(t *testing.T) {
	t.Parallel()

	clock := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	g := NewGate(testLogger(),
		WithTTL(10*time.Minute),
		WithClock(func() time.Time { return clock }),
	)

	id := g.Create(testContext())
	clock = clock.Add(11 * time.Minute)

	if _, err := g.Consume(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Consume() after expiry = %v, want ErrNotFound", err)
	}
	if len(g.Pending()) != 0 {
		t.Error("Pending() still lists an expired entry")
	}
}

func TestGate_SweepRemovesExpired(t *testing.T) {
	t.Parallel()

	clock := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	g := NewGate(testLogger(),
		WithTTL(time.Minute),
		WithClock(func() time.Time { return clock }),
	)

	g.Create(testContext())
	clock = clock.Add(2 * time.Minute)
	g.sweep()

	if n := g.Len(); n != 0 {
		t.Errorf("Len() = %d after sweep, want 0", n)
	}
}

func TestGate_StartStop(t *testing.T) {
	t.Parallel()

	g := NewGate(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	g.Start(ctx)
	g.Create(testContext())
	cancel()
	g.Stop()
}
