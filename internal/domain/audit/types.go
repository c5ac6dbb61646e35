// Package audit contains the decision audit record and the sink port.
package audit

import (
	"context"
	"math"
	"strings"
	"time"
)

// Record is one structured decision record. It is serialized as a single
// JSON line; field names use dotted keys so downstream log pipelines can
// index them without remapping. Raw params never appear in a record, only
// their canonical hash.
type Record struct {
	Timestamp     time.Time `json:"timestamp"`
	TraceID       string    `json:"trace.id"`
	AgentID       string    `json:"agent.id"`
	ToolName      string    `json:"tool.name"`
	ToolAction    string    `json:"tool.action"`
	DecisionAllow bool      `json:"decision.allow"`
	Reason        string    `json:"reason"`
	PolicyVersion int       `json:"policy.version"`
	ParamsHash    string    `json:"params.hash"`
	LatencyMS     float64   `json:"latency.ms"`
	Outcome       string    `json:"outcome"`
	ParentAgent   string    `json:"parent.agent,omitempty"`
	ApprovalID    string    `json:"approval.id,omitempty"`
	ToolLatencyMS float64   `json:"tool.latency.ms,omitempty"`
}

// Sink receives decision records. Implementations must serialize each
// record as one JSON line to an append-only log and open a policy.decision
// trace span carrying the record's attributes.
type Sink interface {
	// Record emits one decision record. Must be safe for concurrent use.
	Record(ctx context.Context, rec Record)

	// Flush forces buffered records to the underlying log.
	Flush() error

	// Close releases resources. Record must not be called after Close.
	Close() error
}

// RoundLatency rounds a latency value to two decimal places for records.
func RoundLatency(ms float64) float64 {
	return math.Round(ms*100) / 100
}

// sensitiveKeywords lists substrings that mark an argument key sensitive.
// Comparison is case-insensitive.
var sensitiveKeywords = []string{
	"password", "secret", "token", "api_key", "apikey",
	"credential", "auth", "private_key", "privatekey",
}

// RedactSensitiveParams returns a copy of params with sensitive values
// masked. Used by admin listings; audit records themselves carry only the
// params hash.
func RedactSensitiveParams(params map[string]interface{}) map[string]interface{} {
	if len(params) == 0 {
		return params
	}
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		if isSensitiveKey(k) {
			out[k] = "***REDACTED***"
		} else {
			out[k] = v
		}
	}
	return out
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, kw := range sensitiveKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
