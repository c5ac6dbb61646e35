// Package audit provides the file-backed decision sink: one JSON line per
// decision in an append-only log, plus a policy.decision trace span per
// record.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/aegis-gate/aegisgate/internal/domain/audit"
)

// FileSink implements audit.Sink. The log file handle is guarded by its
// own mutex; spans are created per record and are thread-safe by contract
// of the tracing library.
type FileSink struct {
	mu     sync.Mutex
	w      io.Writer
	file   *os.File
	tracer trace.Tracer
	logger *slog.Logger
	closed bool
}

// NewFileSink opens (or creates) the append-only log at path, creating
// parent directories as needed.
func NewFileSink(path string, tracer trace.Tracer, logger *slog.Logger) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &FileSink{w: f, file: f, tracer: tracer, logger: logger}, nil
}

// NewWriterSink writes records to an arbitrary writer. Used for stdout
// audit output and in tests.
func NewWriterSink(w io.Writer, tracer trace.Tracer, logger *slog.Logger) *FileSink {
	return &FileSink{w: w, tracer: tracer, logger: logger}
}

// Record emits one decision record: a policy.decision span carrying the
// record's attributes (with a child tool.call span when the tool ran), and
// a JSON line in the log. The trace id of the span is stamped into the
// record before serialization so log lines correlate with traces.
func (s *FileSink) Record(ctx context.Context, rec audit.Record) {
	_, span := s.tracer.Start(ctx, "policy.decision", trace.WithAttributes(
		attribute.String("agent.id", rec.AgentID),
		attribute.String("tool.name", rec.ToolName),
		attribute.String("tool.action", rec.ToolAction),
		attribute.Bool("decision.allow", rec.DecisionAllow),
		attribute.Int("policy.version", rec.PolicyVersion),
		attribute.String("params.hash", rec.ParamsHash),
		attribute.Float64("latency.ms", rec.LatencyMS),
	))
	if rec.ParentAgent != "" {
		span.SetAttributes(attribute.String("parent.agent", rec.ParentAgent))
	}
	if rec.ApprovalID != "" {
		span.SetAttributes(attribute.String("approval.id", rec.ApprovalID))
	}

	if rec.ToolLatencyMS > 0 {
		_, toolSpan := s.tracer.Start(trace.ContextWithSpan(ctx, span), "tool.call",
			trace.WithAttributes(
				attribute.String("tool.name", rec.ToolName),
				attribute.String("tool.action", rec.ToolAction),
				attribute.Float64("latency.ms", rec.ToolLatencyMS),
			))
		toolSpan.End()
	}

	rec.TraceID = span.SpanContext().TraceID().String()
	span.End()

	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	line, err := json.Marshal(rec)
	if err != nil {
		s.logger.Error("failed to marshal audit record", "error", err)
		return
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.logger.Warn("audit record dropped: sink closed",
			"agent", rec.AgentID, "tool", rec.ToolName)
		return
	}
	if _, err := s.w.Write(line); err != nil {
		s.logger.Error("failed to write audit record", "error", err)
	}
}

// Flush syncs the log file to disk.
func (s *FileSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file != nil && !s.closed {
		return s.file.Sync()
	}
	return nil
}

// Close flushes and closes the log file. Subsequent records are dropped
// with a warning.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.file != nil {
		if err := s.file.Sync(); err != nil {
			return err
		}
		return s.file.Close()
	}
	return nil
}

var _ audit.Sink = (*FileSink)(nil)
