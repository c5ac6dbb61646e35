package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aegis-gate/aegisgate/internal/adapter/inbound/http"
	auditsink "github.com/aegis-gate/aegisgate/internal/adapter/outbound/audit"
	"github.com/aegis-gate/aegisgate/internal/adapter/outbound/policyfs"
	"github.com/aegis-gate/aegisgate/internal/adapter/outbound/tools"
	"github.com/aegis-gate/aegisgate/internal/config"
	"github.com/aegis-gate/aegisgate/internal/domain/approval"
	"github.com/aegis-gate/aegisgate/internal/domain/history"
	"github.com/aegis-gate/aegisgate/internal/domain/tool"
	"github.com/aegis-gate/aegisgate/internal/observability"
	"github.com/aegis-gate/aegisgate/internal/service"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the gateway server",
	Long: `Start the Aegis Gate server.

The server loads every *.yaml / *.yml file from the policy directory,
watches the directory for changes (hot reload), and serves the mediated
tool-call API.

Examples:
  # Start with defaults (policies in ./policies, listen on :8080)
  aegis-gate start

  # Start with a specific config file
  aegis-gate --config /etc/aegis-gate/aegis-gate.yaml start

  # Override the listen address and policy directory
  AEGIS_GATE_SERVER_ADDR=:9090 AEGIS_GATE_POLICY_DIR=/opt/policies aegis-gate start`,
	RunE: runStart,
}

var devMode bool

func init() {
	startCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (debug logging, stdout traces)")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override dev mode from the CLI flag.
	if devMode {
		cfg.DevMode = true
		cfg.SetDevDefaults()
	}

	// Signal context for graceful shutdown. stop() restores default signal
	// handling so a second Ctrl+C does a hard kill.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()

	logLevel := slog.LevelInfo
	if cfg.DevMode {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	// ===== Policy store and watcher =====
	store := policyfs.NewStore(cfg.Policy.Dir, logger)
	if err := store.Load(); err != nil {
		// Serve deny-all rather than refusing to boot; the watcher picks
		// up corrected files.
		logger.Error("initial policy load failed", "dir", cfg.Policy.Dir, "error", err)
	}

	if cfg.Policy.Watch {
		watcher, err := policyfs.NewWatcher(store, logger)
		if err != nil {
			return fmt.Errorf("failed to watch policy dir: %w", err)
		}
		go func() {
			if err := watcher.Run(ctx); err != nil {
				logger.Error("policy watcher stopped", "error", err)
			}
		}()
		logger.Info("policy hot reload enabled", "dir", cfg.Policy.Dir)
	}

	// ===== Tracing =====
	tracer, shutdownTracing, err := observability.Setup(ctx, observability.Config{
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		Insecure:     cfg.Telemetry.Insecure,
		Stdout:       cfg.Telemetry.Stdout,
		Version:      Version,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() { _ = shutdownTracing(cmd.Context()) }()

	// ===== Audit sink =====
	var sink *auditsink.FileSink
	if path, ok := cfg.Audit.FilePath(); ok {
		sink, err = auditsink.NewFileSink(path, tracer, logger)
		if err != nil {
			return fmt.Errorf("failed to open audit log: %w", err)
		}
		logger.Info("audit output: file", "path", path)
	} else {
		sink = auditsink.NewWriterSink(os.Stdout, tracer, logger)
		logger.Info("audit output: stdout")
	}
	defer func() { _ = sink.Close() }()

	// ===== Approval gate =====
	gate := approval.NewGate(logger, approval.WithTTL(cfg.Approval.ParsedTTL()))
	gate.Start(ctx)
	defer gate.Stop()

	// ===== Tool adapters =====
	registry := tool.NewRegistry()
	registry.Register(tools.NewPayments())
	registry.Register(tools.NewFiles())

	// ===== Pipeline and transport =====
	ring := history.NewRing(cfg.History.Size)
	pipeline := service.NewPipeline(store, gate, registry, sink, ring, logger)

	stats := store.Stats()
	logger.Info("aegis-gate starting",
		"version", Version,
		"dev_mode", cfg.DevMode,
		"addr", cfg.Server.Addr,
		"policy_files", stats.PolicyFiles,
		"agents", stats.TotalAgents,
		"tools", registry.Names(),
		"approval_ttl", cfg.Approval.TTL,
		"audit_output", cfg.Audit.Output,
	)

	transport := http.NewTransport(pipeline, store, gate, ring,
		http.WithAddr(cfg.Server.Addr),
		http.WithLogger(logger),
		http.WithVersion(Version),
	)
	if err := transport.Start(ctx); err != nil {
		return err
	}

	logger.Info("aegis-gate stopped")
	return nil
}
