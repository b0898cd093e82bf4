package cmd

import (
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	calendarapi "google.golang.org/api/calendar/v3"

	"github.com/teemow/calbridge/internal/calendar"
	"github.com/teemow/calbridge/internal/config"
	"github.com/teemow/calbridge/internal/connection"
	"github.com/teemow/calbridge/internal/engine"
	"github.com/teemow/calbridge/internal/google"
	"github.com/teemow/calbridge/internal/instrumentation"
	"github.com/teemow/calbridge/internal/retry"
	"github.com/teemow/calbridge/internal/timeutil"
)

// backend is the provider connection plus the gateway speaking over it.
type backend struct {
	gateway    calendar.Gateway
	conn       retry.Readiness
	disconnect func() error
}

// newBackend builds the gateway selected by cfg.Gateway. Nothing is dialed
// here; the executor connects on first use.
func newBackend(cfg config.Config, logger *slog.Logger, metrics *instrumentation.Metrics) (*backend, error) {
	switch cfg.Gateway {
	case config.GatewayAPI:
		return newAPIBackend(cfg, logger, metrics)
	case config.GatewayToolCall:
		return newToolCallBackend(cfg, logger, metrics)
	default:
		return nil, fmt.Errorf("unsupported gateway: %s (supported: %s, %s)", cfg.Gateway, config.GatewayAPI, config.GatewayToolCall)
	}
}

func newAPIBackend(cfg config.Config, logger *slog.Logger, metrics *instrumentation.Metrics) (*backend, error) {
	conf, err := google.ClientConfig{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		Scopes:       google.ScopesFor(cfg.ReadOnly),
	}.OAuthConfig()
	if err != nil {
		return nil, err
	}

	tokens := google.NewFileTokenProvider(cfg.Google.TokenDir)
	if !tokens.HasTokenForAccount(cfg.Account) {
		logger.Warn("no stored Google token for account, provider calls will fail until one is saved",
			"path", tokens.TokenPath(cfg.Account))
	}

	conn := connection.NewManager[*calendarapi.Service](config.GatewayAPI,
		google.CalendarDialer(conf, tokens, cfg.Account),
		connection.WithDialTimeout[*calendarapi.Service](cfg.Retry.DialTimeout),
		connection.WithLogger[*calendarapi.Service](logger),
		connection.WithMetrics[*calendarapi.Service](metrics),
	)
	gw := calendar.NewAPIGateway(conn,
		calendar.WithAPILogger(logger),
		calendar.WithAPIMetrics(metrics),
	)
	return &backend{gateway: gw, conn: conn, disconnect: conn.Disconnect}, nil
}

func newToolCallBackend(cfg config.Config, logger *slog.Logger, metrics *instrumentation.Metrics) (*backend, error) {
	ts := cfg.ToolServer

	var factory calendar.ToolClientFactory
	switch {
	case ts.Command != "":
		factory = func() (*client.Client, error) {
			return client.NewClient(transport.NewStdio(ts.Command, nil, ts.Args...)), nil
		}
	case ts.URL != "":
		factory = func() (*client.Client, error) {
			return client.NewStreamableHttpClient(ts.URL)
		}
	default:
		return nil, fmt.Errorf("toolcall gateway needs a tool server command or url")
	}

	info := mcp.Implementation{Name: "calbridge", Version: version}
	conn := connection.NewManager[*client.Client](config.GatewayToolCall,
		calendar.DialToolClient(factory, info),
		connection.WithCloser[*client.Client](calendar.CloseToolClient),
		connection.WithDialTimeout[*client.Client](cfg.Retry.DialTimeout),
		connection.WithLogger[*client.Client](logger),
		connection.WithMetrics[*client.Client](metrics),
	)
	gw := calendar.NewToolCallGateway(conn,
		calendar.WithToolNames(ts.ToolNames()),
		calendar.WithToolCallLogger(logger),
		calendar.WithToolCallMetrics(metrics),
	)
	return &backend{gateway: gw, conn: conn, disconnect: conn.Disconnect}, nil
}

// newEngine wires the retry executor and the engine around a backend.
func newEngine(cfg config.Config, b *backend, logger *slog.Logger, metrics *instrumentation.Metrics) *engine.Engine {
	exec := retry.New(b.conn,
		retry.WithPolicy(retry.Policy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			Backoff:     retry.LinearBackoff(cfg.Retry.Backoff),
		}),
		retry.WithLogger(logger),
		retry.WithMetrics(metrics),
	)

	return engine.New(b.gateway, exec,
		engine.WithConfig(engine.Config{
			OperationTimeout: cfg.Engine.Timeout,
			DefaultTimeZone:  cfg.Engine.TimeZone,
		}),
		engine.WithNormalizer(timeutil.NewNormalizer(
			timeutil.WithWindows(cfg.Engine.ListWindow, cfg.Engine.SearchWindow),
		)),
		engine.WithLogger(logger),
		engine.WithMetrics(metrics),
	)
}
