// Package config provides configuration loading for the gateway.
package config

import (
	"strings"
	"time"
)

// Config is the top-level gateway configuration. Values come from an
// optional YAML file, AEGIS_GATE_* environment variables, and a handful of
// legacy plain environment variables (PORT, POLICY_DIR, OTEL_ENDPOINT).
type Config struct {
	// Server configures the HTTP listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Policy configures where policy files are loaded from.
	Policy PolicyConfig `yaml:"policy" mapstructure:"policy"`

	// Audit configures where decision records are written.
	Audit AuditConfig `yaml:"audit" mapstructure:"audit"`

	// Approval configures the human approval gate.
	Approval ApprovalConfig `yaml:"approval" mapstructure:"approval"`

	// History configures the in-memory decision buffer.
	History HistoryConfig `yaml:"history" mapstructure:"history"`

	// Telemetry configures trace export.
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`

	// DevMode enables development conveniences (stdout traces, debug logs).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr" mapstructure:"addr" validate:"required"`
}

// PolicyConfig configures the policy directory.
type PolicyConfig struct {
	// Dir is the directory scanned for *.yaml / *.yml policy files.
	Dir string `yaml:"dir" mapstructure:"dir" validate:"required"`

	// Watch enables hot reload on file changes. Default: true.
	Watch bool `yaml:"watch" mapstructure:"watch"`
}

// AuditConfig configures the decision log.
type AuditConfig struct {
	// Output is "stdout" or "file://<path>".
	Output string `yaml:"output" mapstructure:"output" validate:"audit_output"`
}

// FilePath returns the audit log path and true when output is file-based.
func (c AuditConfig) FilePath() (string, bool) {
	if strings.HasPrefix(c.Output, "file://") {
		return strings.TrimPrefix(c.Output, "file://"), true
	}
	return "", false
}

// ApprovalConfig configures the approval gate.
type ApprovalConfig struct {
	// TTL is how long a pending approval stays consumable (e.g. "15m").
	TTL string `yaml:"ttl" mapstructure:"ttl" validate:"omitempty,duration"`
}

// ParsedTTL returns the configured TTL, or 0 when unset (caller applies
// the gate default).
func (c ApprovalConfig) ParsedTTL() time.Duration {
	d, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 0
	}
	return d
}

// HistoryConfig configures the decision history ring.
type HistoryConfig struct {
	// Size is the ring capacity. Default: 50.
	Size int `yaml:"size" mapstructure:"size" validate:"omitempty,min=1"`
}

// TelemetryConfig configures trace export.
type TelemetryConfig struct {
	// OTLPEndpoint is the OTLP gRPC collector address (e.g. "localhost:4317").
	// Empty disables OTLP export.
	OTLPEndpoint string `yaml:"otlp_endpoint" mapstructure:"otlp_endpoint"`

	// Insecure disables TLS on the OTLP connection.
	Insecure bool `yaml:"insecure" mapstructure:"insecure"`

	// Stdout writes spans to stdout instead of a collector.
	Stdout bool `yaml:"stdout" mapstructure:"stdout"`
}

// SetDefaults applies default values for optional fields.
func (c *Config) SetDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Policy.Dir == "" {
		c.Policy.Dir = "./policies"
	}
	if c.Audit.Output == "" {
		c.Audit.Output = "stdout"
	}
	if c.Approval.TTL == "" {
		c.Approval.TTL = "15m"
	}
	if c.History.Size == 0 {
		c.History.Size = 50
	}
}

// SetDevDefaults applies dev-mode conveniences. Call after flag overrides.
func (c *Config) SetDevDefaults() {
	if c.DevMode && c.Telemetry.OTLPEndpoint == "" {
		c.Telemetry.Stdout = true
	}
}
