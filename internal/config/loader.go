package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, it searches for aegis-gate.yaml/.yml
// in standard locations. The search requires an explicit YAML extension so
// the binary itself (same base name, no extension) is never matched.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// No config file found; ReadInConfig will return
		// ConfigFileNotFoundError, which callers handle gracefully.
		viper.SetConfigName("aegis-gate")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: AEGIS_GATE_SERVER_ADDR etc.
	viper.SetEnvPrefix("AEGIS_GATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("policy.watch", true)

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for an aegis-gate config file
// with an explicit YAML extension.
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".aegis-gate"),
		"/etc/aegis-gate",
	}
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "aegis-gate"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds nested config keys for environment variable
// support, e.g. AEGIS_GATE_POLICY_DIR overrides policy.dir.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("server.addr")
	_ = viper.BindEnv("policy.dir")
	_ = viper.BindEnv("policy.watch")
	_ = viper.BindEnv("audit.output")
	_ = viper.BindEnv("approval.ttl")
	_ = viper.BindEnv("history.size")
	_ = viper.BindEnv("telemetry.otlp_endpoint")
	_ = viper.BindEnv("telemetry.insecure")
	_ = viper.BindEnv("telemetry.stdout")
	_ = viper.BindEnv("dev_mode")
}

// LoadConfig reads the configuration file, applies environment overrides
// and defaults, and validates the result.
func LoadConfig() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found: continue with env vars only.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyLegacyEnv(&cfg)
	cfg.SetDefaults()
	cfg.SetDevDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// applyLegacyEnv honors the plain environment variables the gateway has
// always accepted, taking precedence over file values but not over the
// prefixed AEGIS_GATE_* forms.
func applyLegacyEnv(cfg *Config) {
	if !viper.IsSet("server.addr") {
		if port := os.Getenv("PORT"); port != "" {
			cfg.Server.Addr = ":" + port
		}
	}
	if !viper.IsSet("policy.dir") {
		if dir := os.Getenv("POLICY_DIR"); dir != "" {
			cfg.Policy.Dir = dir
		}
	}
	if !viper.IsSet("telemetry.otlp_endpoint") {
		if ep := os.Getenv("OTEL_ENDPOINT"); ep != "" {
			cfg.Telemetry.OTLPEndpoint = ep
		}
	}
}

// ConfigFileUsed returns the path of the loaded configuration file, or ""
// when running on environment variables only.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
