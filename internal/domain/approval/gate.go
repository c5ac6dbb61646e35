// Package approval implements the two-phase approval gate. A call that
// policy marks require_approval is suspended: the gate issues an approval
// id, and the call only proceeds when re-submitted carrying that id.
package approval

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aegis-gate/aegisgate/internal/domain/policy"
)

// DefaultTTL is how long a pending approval stays consumable.
const DefaultTTL = 15 * time.Minute

// sweepInterval is how often expired entries are removed.
const sweepInterval = time.Minute

// ErrNotFound is returned when an approval id is unknown, already
// consumed, or expired. An approval id is valid for exactly one Consume.
var ErrNotFound = errors.New("approval not found")

// Request is a tool call suspended pending human approval.
type Request struct {
	ID         string                   `json:"id"`
	CreatedAt  time.Time                `json:"created_at"`
	ApprovedAt time.Time                `json:"approved_at,omitempty"`
	Status     string                   `json:"status"` // "pending" or "approved"
	Context    policy.EvaluationContext `json:"context"`
}

// Gate holds the pending approval map. All operations run under a single
// mutex; the map is never exposed directly.
type Gate struct {
	mu      sync.Mutex
	pending map[string]*Request
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time
	cancel  context.CancelFunc
}

// Option configures a Gate.
type Option func(*Gate)

// WithTTL overrides the pending-approval lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(g *Gate) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithClock injects a clock for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// NewGate creates an approval gate. Call Start to enable the expiry sweep.
func NewGate(logger *slog.Logger, opts ...Option) *Gate {
	g := &Gate{
		pending: make(map[string]*Request),
		ttl:     DefaultTTL,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Start launches the background sweep that removes expired entries.
// The sweep stops when ctx is cancelled or Stop is called.
func (g *Gate) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	g.cancel = cancel

	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				g.sweep()
			}
		}
	}()
}

// Stop terminates the expiry sweep goroutine.
func (g *Gate) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
}

// Create registers a new pending approval for the frozen context and
// returns its id (UUID v4).
func (g *Gate) Create(evalCtx policy.EvaluationContext) string {
	req := &Request{
		ID:        uuid.New().String(),
		CreatedAt: g.now(),
		Status:    "pending",
		Context:   evalCtx,
	}

	g.mu.Lock()
	g.pending[req.ID] = req
	g.mu.Unlock()

	g.logger.Info("approval requested",
		"approval_id", req.ID,
		"agent", evalCtx.AgentID,
		"tool", evalCtx.Tool,
		"action", evalCtx.Action,
	)
	return req.ID
}

// Consume atomically removes and returns the pending request with the
// given id, marking it approved. A second Consume with the same id returns
// ErrNotFound: each approval id is single-use.
func (g *Gate) Consume(id string) (*Request, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	req, ok := g.pending[id]
	if !ok {
		return nil, ErrNotFound
	}
	if g.expiredLocked(req) {
		delete(g.pending, id)
		return nil, ErrNotFound
	}

	delete(g.pending, id)
	req.Status = "approved"
	req.ApprovedAt = g.now()
	return req, nil
}

// Pending returns a copy of the currently pending requests, oldest first.
func (g *Gate) Pending() []Request {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]Request, 0, len(g.pending))
	for _, req := range g.pending {
		if g.expiredLocked(req) {
			continue
		}
		out = append(out, *req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Len reports the number of live pending entries.
func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := 0
	for _, req := range g.pending {
		if !g.expiredLocked(req) {
			n++
		}
	}
	return n
}

func (g *Gate) sweep() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for id, req := range g.pending {
		if g.expiredLocked(req) {
			delete(g.pending, id)
			g.logger.Info("approval expired",
				"approval_id", id,
				"agent", req.Context.AgentID,
				"age", g.now().Sub(req.CreatedAt),
			)
		}
	}
}

func (g *Gate) expiredLocked(req *Request) bool {
	return g.now().Sub(req.CreatedAt) > g.ttl
}

