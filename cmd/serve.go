package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calbridge/internal/config"
	"github.com/teemow/calbridge/internal/instrumentation"
	"github.com/teemow/calbridge/internal/logging"
	"github.com/teemow/calbridge/internal/server"
	"github.com/teemow/calbridge/internal/tools/calendar_tools"
)

const (
	// warmupTimeout bounds the connection attempt made at startup.
	warmupTimeout = 15 * time.Second

	metricsStartTimeout = 5 * time.Second
)

// serveFlags holds the raw flag values. They only override the loaded
// configuration when set explicitly.
type serveFlags struct {
	configPath         string
	debug              bool
	transport          string
	httpAddr           string
	yolo               bool
	gateway            string
	account            string
	googleClientID     string
	googleClientSecret string
	tokenDir           string
	toolServerCommand  string
	toolServerArgs     string
	toolServerURL      string
	metricsEnabled     bool
	metricsAddr        string
}

func newServeCmd() *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server exposing calendar tools
for AI assistants.

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - streamable-http: Streamable HTTP transport on /mcp with /healthz and /readyz

Safety Mode:
  By default, the server operates in read-only mode, providing only safe operations.
  Use --yolo to enable write operations (creating, updating and deleting events
  and calendars).

Provider:
  --gateway api       Google Calendar API. Needs --google-client-id and
                      --google-client-secret and a stored token for --account.
  --gateway toolcall  Another calendar MCP server, started with
                      --tool-server-command or reached at --tool-server-url.

Configuration is read from calbridge.yaml and CALBRIDGE_* environment variables
(a .env file is loaded first). Flags take precedence.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServeConfig(cmd, &flags)
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}

	cmd.Flags().StringVar(&flags.configPath, "config", config.DefaultPath, "Path to the YAML configuration file")
	cmd.Flags().BoolVar(&flags.debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&flags.transport, "transport", config.TransportStdio, "Transport type: stdio or streamable-http")
	cmd.Flags().StringVar(&flags.httpAddr, "http-addr", ":8080", "HTTP server address (for streamable-http transport)")
	cmd.Flags().BoolVar(&flags.yolo, "yolo", false, "Enable write operations (event and calendar changes). Default is read-only mode.")
	cmd.Flags().StringVar(&flags.gateway, "gateway", config.GatewayAPI, "Provider gateway: api or toolcall")
	cmd.Flags().StringVar(&flags.account, "account", "default", "Account whose stored Google token is used (api gateway)")
	cmd.Flags().StringVar(&flags.googleClientID, "google-client-id", "", "Google OAuth Client ID the stored token belongs to. Can also use CALBRIDGE_GOOGLE_CLIENTID env var.")
	cmd.Flags().StringVar(&flags.googleClientSecret, "google-client-secret", "", "Google OAuth Client Secret. Can also use CALBRIDGE_GOOGLE_CLIENTSECRET env var.")
	cmd.Flags().StringVar(&flags.tokenDir, "token-dir", "", "Directory holding google-<account>.token files (default: user cache dir)")
	cmd.Flags().StringVar(&flags.toolServerCommand, "tool-server-command", "", "Command starting the calendar MCP server over stdio (toolcall gateway)")
	cmd.Flags().StringVar(&flags.toolServerArgs, "tool-server-args", "", "Comma-separated arguments for --tool-server-command")
	cmd.Flags().StringVar(&flags.toolServerURL, "tool-server-url", "", "Streamable HTTP URL of the calendar MCP server (toolcall gateway)")
	cmd.Flags().BoolVar(&flags.metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port (streamable-http only)")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", ":9090", "Metrics server address")

	return cmd
}

// loadServeConfig layers .env, the config file, the environment and the
// explicitly set flags, then validates the result.
func loadServeConfig(cmd *cobra.Command, flags *serveFlags) (config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return config.Config{}, err
	}

	cfg, err := config.Load(flags.configPath, nil)
	if err != nil {
		return config.Config{}, err
	}

	applyFlagOverrides(cmd, flags, &cfg)

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyFlagOverrides copies every flag the user set onto cfg.
func applyFlagOverrides(cmd *cobra.Command, flags *serveFlags, cfg *config.Config) {
	changed := cmd.Flags().Changed

	if changed("debug") {
		cfg.Debug = flags.debug
	}
	if changed("transport") {
		cfg.Transport = flags.transport
	}
	if changed("http-addr") {
		cfg.HTTPAddr = flags.httpAddr
	}
	if changed("yolo") {
		cfg.ReadOnly = !flags.yolo
	}
	if changed("gateway") {
		cfg.Gateway = flags.gateway
	}
	if changed("account") {
		cfg.Account = flags.account
	}
	if changed("google-client-id") {
		cfg.Google.ClientID = flags.googleClientID
	}
	if changed("google-client-secret") {
		cfg.Google.ClientSecret = flags.googleClientSecret
	}
	if changed("token-dir") {
		cfg.Google.TokenDir = flags.tokenDir
	}
	if changed("tool-server-command") {
		cfg.ToolServer.Command = flags.toolServerCommand
	}
	if changed("tool-server-args") {
		cfg.ToolServer.Args = parseCommaSeparatedList(flags.toolServerArgs)
	}
	if changed("tool-server-url") {
		cfg.ToolServer.URL = flags.toolServerURL
	}
	if changed("metrics-enabled") {
		cfg.Metrics.Enabled = flags.metricsEnabled
	}
	if changed("metrics-addr") {
		cfg.Metrics.Addr = flags.metricsAddr
	}
}

func runServe(cfg config.Config) error {
	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Logs go to stderr so they never interleave with stdio JSON-RPC.
	logger := logging.Setup(os.Stderr, cfg.LogFormatOrDefault(), cfg.Debug)

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	metrics := provider.Metrics()

	b, err := newBackend(cfg, logger, metrics)
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return err
	}
	eng := newEngine(cfg, b, logger, metrics)

	serverContext, err := server.NewServerContext(ctx, eng,
		server.WithInstrumentation(provider),
		server.WithLogger(logger),
		server.WithAccount(cfg.Account),
		server.WithShutdownHook(provider.Shutdown),
		server.WithShutdownHook(func(context.Context) error { return b.disconnect() }),
	)
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := serverContext.Shutdown(shutdownCtx); err != nil {
			logger.Error("error during server context shutdown", logging.Err(err))
		}
	}()

	// Note: mcp.Implementation has Title field but WithTitle() ServerOption not available in v0.43.0
	mcpSrv := mcpserver.NewMCPServer("calbridge", version,
		mcpserver.WithToolCapabilities(true),
	)

	if cfg.ReadOnly {
		logger.Info("starting server in READ-ONLY mode (use --yolo to enable write operations)")
	} else {
		logger.Info("starting server with WRITE operations enabled")
	}

	if err := calendar_tools.RegisterCalendarTools(mcpSrv, serverContext, cfg.ReadOnly); err != nil {
		return fmt.Errorf("failed to register calendar tools: %w", err)
	}

	warmUp(ctx, b, logger)

	switch cfg.Transport {
	case config.TransportStdio:
		return runStdioServer(mcpSrv)
	case config.TransportStreamableHTTP:
		return runStreamableHTTPServer(ctx, mcpSrv, serverContext, cfg, logger)
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http)", cfg.Transport)
	}
}

// warmUp connects once at startup so readiness reflects the provider early.
// Failure is not fatal; the executor reconnects on the first call.
func warmUp(ctx context.Context, b *backend, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, warmupTimeout)
	defer cancel()

	if err := b.conn.Connect(ctx); err != nil {
		logger.Warn("initial provider connection failed, will retry on first call",
			logging.Gateway(b.gateway.Name()), logging.Err(err))
		return
	}
	logger.Info("provider connection established", logging.Gateway(b.gateway.Name()))
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

func runStreamableHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, sc *server.ServerContext, cfg config.Config, logger *slog.Logger) error {
	metricsServer, err := startMetricsServer(sc, cfg, logger)
	if err != nil {
		return err
	}
	if metricsServer != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("error during metrics server shutdown", logging.Err(err))
			}
		}()
	}

	mux := http.NewServeMux()
	mux.Handle("/mcp", mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithEndpointPath("/mcp"),
	))

	health := server.NewHealthChecker(sc)
	health.RegisterHealthEndpoints(mux)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("streamable HTTP server starting",
		"addr", cfg.HTTPAddr,
		"mcp_endpoint", "/mcp",
		"health_endpoints", "/healthz, /readyz, /healthz/detailed")

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping HTTP server")
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
		logger.Info("HTTP server stopped normally")
	}

	logger.Info("HTTP server gracefully stopped")
	return nil
}

// startMetricsServer starts the Prometheus listener when enabled. It
// returns nil when metrics are off or exported elsewhere.
func startMetricsServer(sc *server.ServerContext, cfg config.Config, logger *slog.Logger) (*server.MetricsServer, error) {
	provider := sc.InstrumentationProvider()
	if !cfg.Metrics.Enabled || provider == nil || !provider.Enabled() || !provider.ServesPrometheus() {
		return nil, nil
	}

	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    cfg.Metrics.Addr,
		Enabled:                 true,
		InstrumentationProvider: provider,
		Logger:                  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics server: %w", err)
	}

	// Use ready channel to confirm metrics server started successfully
	metricsReady := make(chan struct{})
	metricsErr := make(chan error, 1)
	go func() {
		if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && !errors.Is(err, http.ErrServerClosed) {
			metricsErr <- err
		}
		close(metricsErr)
	}()

	select {
	case <-metricsReady:
		return metricsServer, nil
	case err := <-metricsErr:
		return nil, fmt.Errorf("metrics server failed to start: %w", err)
	case <-time.After(metricsStartTimeout):
		return nil, fmt.Errorf("metrics server startup timed out")
	}
}

// parseCommaSeparatedList parses a comma-separated string into a slice,
// trimming whitespace from each element and filtering out empty strings.
// Returns nil if the input is empty or contains only whitespace/commas.
func parseCommaSeparatedList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
