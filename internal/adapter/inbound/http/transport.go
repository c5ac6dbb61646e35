// Package http provides the inbound HTTP adapter: the mediated tool-call
// endpoint, the approval endpoint, and the read-only admin API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aegis-gate/aegisgate/internal/domain/approval"
	"github.com/aegis-gate/aegisgate/internal/domain/history"
	"github.com/aegis-gate/aegisgate/internal/domain/policy"
	"github.com/aegis-gate/aegisgate/internal/service"
)

// Transport is the inbound adapter that connects agents to the admission
// pipeline over HTTP.
type Transport struct {
	pipeline *service.Pipeline
	policies service.PolicySource
	gate     *approval.Gate
	history  *history.Ring
	server   *http.Server
	addr     string
	version  string
	logger   *slog.Logger
	metrics  *Metrics
}

// Option is a functional option for configuring Transport.
type Option func(*Transport)

// WithAddr sets the listen address. Default is ":8080".
func WithAddr(addr string) Option {
	return func(t *Transport) {
		t.addr = addr
	}
}

// WithLogger sets the logger for the HTTP transport.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

// WithVersion sets the version string reported by /health.
func WithVersion(version string) Option {
	return func(t *Transport) {
		t.version = version
	}
}

// NewTransport creates an HTTP transport over the given pipeline and its
// collaborators.
func NewTransport(
	pipeline *service.Pipeline,
	policies service.PolicySource,
	gate *approval.Gate,
	ring *history.Ring,
	opts ...Option,
) *Transport {
	t := &Transport{
		pipeline: pipeline,
		policies: policies,
		gate:     gate,
		history:  ring,
		addr:     ":8080",
		version:  "dev",
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Handler builds the full route tree with its middleware chain and a fresh
// Prometheus registry.
func (t *Transport) Handler() http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	t.metrics = NewMetrics(reg, t.gate.Len, func() policy.Stats { return t.policies.Snapshot().Stats() })

	mux := http.NewServeMux()
	mux.HandleFunc("POST /tools/{tool}/{action}", t.handleToolCall)
	mux.HandleFunc("POST /approve/{approval_id}", t.handleApprove)
	mux.HandleFunc("GET /health", t.handleHealth)
	mux.HandleFunc("GET /admin/agents", t.handleAdminAgents)
	mux.HandleFunc("GET /admin/policies", t.handleAdminPolicies)
	mux.HandleFunc("GET /admin/decisions", t.handleAdminDecisions)
	mux.HandleFunc("GET /admin/approvals/pending", t.handleAdminPendingApprovals)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	var handler http.Handler = mux
	handler = RequestIDMiddleware(handler)
	handler = MetricsMiddleware(t.metrics)(handler)
	return handler
}

// Start begins accepting HTTP connections. It blocks until the context is
// cancelled or the server fails.
func (t *Transport) Start(ctx context.Context) error {
	t.server = &http.Server{
		Addr:              t.addr,
		Handler:           t.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		t.logger.Info("starting HTTP server", "addr", t.addr)
		if err := t.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		t.logger.Info("context cancelled, shutting down HTTP server")
		return t.shutdown()
	case err := <-errCh:
		return err
	}
}

// shutdown performs graceful shutdown, letting in-flight admissions finish.
func (t *Transport) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := t.server.Shutdown(ctx); err != nil {
		t.logger.Error("error during server shutdown", "error", err)
		return err
	}

	t.logger.Info("HTTP server shutdown complete")
	return nil
}

// Close gracefully shuts down the transport.
func (t *Transport) Close() error {
	if t.server == nil {
		return nil
	}
	return t.shutdown()
}
