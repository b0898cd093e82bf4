package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/teemow/calbridge/internal/logging"
)

// DefaultPath is the config file read when none is given.
const DefaultPath = "calbridge.yaml"

// EnvPrefix prefixes every environment override. CALBRIDGE_GOOGLE_CLIENTID
// sets google.clientid.
const EnvPrefix = "CALBRIDGE_"

const (
	TransportStdio          = "stdio"
	TransportStreamableHTTP = "streamable-http"

	GatewayAPI      = "api"
	GatewayToolCall = "toolcall"
)

// Config is the application configuration. An empty LogFormat picks text
// for stdio and JSON for HTTP transports.
type Config struct {
	Transport  string     `koanf:"transport"`
	HTTPAddr   string     `koanf:"httpaddr"`
	ReadOnly   bool       `koanf:"readonly"`
	Debug      bool       `koanf:"debug"`
	LogFormat  string     `koanf:"logformat"`
	Gateway    string     `koanf:"gateway"`
	Account    string     `koanf:"account"`
	Google     Google     `koanf:"google"`
	ToolServer ToolServer `koanf:"toolserver"`
	Retry      Retry      `koanf:"retry"`
	Engine     Engine     `koanf:"engine"`
	Metrics    Metrics    `koanf:"metrics"`
}

// Google holds the OAuth client the stored tokens belong to.
type Google struct {
	ClientID     string `koanf:"clientid"`
	ClientSecret string `koanf:"clientsecret"`
	TokenDir     string `koanf:"tokendir"`
}

// ToolServer locates the calendar MCP server used by the toolcall gateway.
// Command starts it over stdio; URL reaches it over streamable HTTP.
type ToolServer struct {
	Command string      `koanf:"command"`
	Args    []string    `koanf:"args"`
	URL     string      `koanf:"url"`
	Tools   []ToolAlias `koanf:"tools"`
}

// ToolAlias renames the tool called for one gateway operation, e.g.
// {op: events.list, name: list_events}.
type ToolAlias struct {
	Op   string `koanf:"op"`
	Name string `koanf:"name"`
}

// ToolNames returns the aliases as an operation to tool name map.
func (t ToolServer) ToolNames() map[string]string {
	names := make(map[string]string, len(t.Tools))
	for _, a := range t.Tools {
		names[a.Op] = a.Name
	}
	return names
}

// Retry bounds provider calls. DialTimeout bounds one connection attempt.
type Retry struct {
	MaxAttempts int           `koanf:"maxattempts"`
	Backoff     time.Duration `koanf:"backoff"`
	DialTimeout time.Duration `koanf:"dialtimeout"`
}

// Engine tunes the calendar engine.
type Engine struct {
	Timeout      time.Duration `koanf:"timeout"`
	TimeZone     string        `koanf:"timezone"`
	ListWindow   time.Duration `koanf:"listwindow"`
	SearchWindow time.Duration `koanf:"searchwindow"`
}

// Metrics configures the dedicated Prometheus listener.
type Metrics struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Transport: TransportStdio,
		HTTPAddr:  ":8080",
		ReadOnly:  true,
		Gateway:   GatewayAPI,
		Account:   "default",
		Retry: Retry{
			MaxAttempts: 3,
			Backoff:     time.Second,
			DialTimeout: 30 * time.Second,
		},
		Engine: Engine{
			ListWindow:   7 * 24 * time.Hour,
			SearchWindow: 30 * 24 * time.Hour,
		},
		Metrics: Metrics{
			Enabled: true,
			Addr:    ":9090",
		},
	}
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are skipped; existing variables win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load layers defaults, the YAML file at path and CALBRIDGE_ environment
// variables, in that order. A missing file is not an error.
func Load(path string, logger *slog.Logger) (Config, error) {
	logger = logging.OrDefault(logger)
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("error loading config defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("error loading config from %s: %w", path, err)
			}
			logger.Debug("config file not found, using defaults and environment", "path", path)
		} else {
			logger.Debug("loaded configuration from file", "path", path)
		}
	}

	err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(k, v string) (string, any) {
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, EnvPrefix)), "_", ".")
			return k, v
		},
	}), nil)
	if err != nil {
		return Config{}, fmt.Errorf("error loading config from environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("error decoding config: %w", err)
	}
	return cfg, nil
}

// LogFormatOrDefault returns the configured log format. Without one, the
// stdio transport logs text and HTTP transports log JSON.
func (c Config) LogFormatOrDefault() logging.Format {
	if c.LogFormat != "" {
		return logging.Format(c.LogFormat)
	}
	if c.Transport == TransportStdio {
		return logging.FormatText
	}
	return logging.FormatJSON
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	var errs []error

	if !slices.Contains([]string{TransportStdio, TransportStreamableHTTP}, c.Transport) {
		errs = append(errs, fmt.Errorf("invalid transport %q, must be one of: %s, %s", c.Transport, TransportStdio, TransportStreamableHTTP))
	}
	if c.Transport == TransportStreamableHTTP && c.HTTPAddr == "" {
		errs = append(errs, errors.New("httpaddr is required for the streamable-http transport"))
	}

	switch c.Gateway {
	case GatewayAPI:
		if c.Google.ClientID == "" || c.Google.ClientSecret == "" {
			errs = append(errs, errors.New("google.clientid and google.clientsecret are required for the api gateway"))
		}
	case GatewayToolCall:
		if (c.ToolServer.Command == "") == (c.ToolServer.URL == "") {
			errs = append(errs, errors.New("exactly one of toolserver.command and toolserver.url is required for the toolcall gateway"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid gateway %q, must be one of: %s, %s", c.Gateway, GatewayAPI, GatewayToolCall))
	}

	if !slices.Contains([]string{"", string(logging.FormatText), string(logging.FormatJSON)}, c.LogFormat) {
		errs = append(errs, fmt.Errorf("invalid log format %q, must be one of: text, json", c.LogFormat))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.maxattempts must be at least 1, got %d", c.Retry.MaxAttempts))
	}
	if c.Retry.Backoff < 0 || c.Retry.DialTimeout < 0 || c.Engine.Timeout < 0 || c.Engine.ListWindow < 0 || c.Engine.SearchWindow < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}

	return errors.Join(errs...)
}
