// Package config handles configuration loading, validation, and backend origin resolution.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/backend-gateway/config.toml",
	"configs/config.toml",
}

// Routes owned by the gateway itself; nothing else may be mounted on them.
const (
	HealthzPath  = "/healthz"
	StatusPath   = "/gateway/status"
	DebugEnvPath = "/debug/env"
)

// DefaultPrefix is the default gateway and backend API path prefix.
const DefaultPrefix = "/api"

// absPathPattern matches an absolute URL path without query or fragment.
var absPathPattern = regexp.MustCompile(`^/[^?#]*$`)

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config     string `kong:"short='c',help='Path to TOML or YAML config file.',env='CONFIG_PATH'"`
	Host       string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port       int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	BackendURL string `kong:"name='backend-url',help='Backend origin (overrides config, BACKEND_API_URL and NEXT_PUBLIC_API_URL).'"`
	LogLevel   string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server" yaml:"server"`
	Gateway  GatewayConfig  `toml:"gateway" yaml:"gateway"`
	Upstream UpstreamConfig `toml:"upstream" yaml:"upstream"`
	Log      LogConfig      `toml:"log" yaml:"log"`
	Metrics  MetricsConfig  `toml:"metrics" yaml:"metrics"`
	Debug    DebugConfig    `toml:"debug" yaml:"debug"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string          `toml:"host" yaml:"host"`
	Port         int             `toml:"port" yaml:"port"` // 0 means "use default" (3000)
	BodyMaxBytes int64           `toml:"body_max_bytes" yaml:"body_max_bytes"` // 0 means 10 MB, negative means no limit
	RateLimit    RateLimitConfig `toml:"rate_limit" yaml:"rate_limit"`

	// DisableSecurityHeaders turns off X-Content-Type-Options / X-Frame-Options injection.
	DisableSecurityHeaders bool `toml:"disable_security_headers" yaml:"disable_security_headers"`
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled" yaml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second" yaml:"requests_per_second"`
}

// GatewayConfig controls how inbound paths map onto the backend.
type GatewayConfig struct {
	// Prefix is the inbound route prefix that is stripped, e.g. "/api".
	Prefix string `toml:"prefix" yaml:"prefix"`
	// APIPrefix is the backend path prefix the remainder is appended to.
	APIPrefix string `toml:"api_prefix" yaml:"api_prefix"`
	// DocRewrites enables the fixed rewrites for the backend's API docs assets.
	DocRewrites bool `toml:"doc_rewrites" yaml:"doc_rewrites"`
}

// UpstreamConfig holds backend connection settings.
type UpstreamConfig struct {
	// BaseURL pins the backend origin. When empty the origin is taken from
	// the environment on every request (see ResolveOrigin).
	BaseURL         string `toml:"base_url" yaml:"base_url"`
	TimeoutSeconds  int    `toml:"timeout_seconds" yaml:"timeout_seconds"` // 0 means no client timeout
	IdleConnections int    `toml:"idle_connections" yaml:"idle_connections"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Path    string `toml:"path" yaml:"path"`
}

// DebugConfig enables the debug endpoints.
type DebugConfig struct {
	Enabled bool `toml:"enabled" yaml:"enabled"`
}

// Load reads the config file (if any) and applies CLI overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/backend-gateway/config.toml then configs/config.toml. A missing file
// is not an error: defaults and the environment are enough to run.
func Load(cli *CLI) (*Config, error) {
	path := cli.Config
	if path == "" {
		path = findConfig()
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := decode(path, data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// decode picks the parser from the file extension; TOML is the default.
func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return toml.Unmarshal(data, cfg)
	}
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.BackendURL != "" {
		c.Upstream.BaseURL = cli.BackendURL
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) validate() error {
	fields := []struct {
		name  string
		value any
		rules []validation.Rule
	}{
		{"server.port", c.Server.Port, []validation.Rule{validation.Min(0), validation.Max(65535)}},
		{"server.rate_limit.requests_per_second", c.Server.RateLimit.RequestsPerSecond, []validation.Rule{
			validation.When(c.Server.RateLimit.Enabled, validation.Required, validation.Min(0.0).Exclusive()),
		}},
		{"gateway.prefix", c.Gateway.Prefix, []validation.Rule{
			validation.Match(absPathPattern).Error("must start with '/'"),
		}},
		{"gateway.api_prefix", c.Gateway.APIPrefix, []validation.Rule{
			validation.Match(absPathPattern).Error("must start with '/'"),
		}},
		{"upstream.base_url", c.Upstream.BaseURL, []validation.Rule{is.URL, validation.By(httpOrigin)}},
		{"upstream.timeout_seconds", c.Upstream.TimeoutSeconds, []validation.Rule{validation.Min(0)}},
		{"upstream.idle_connections", c.Upstream.IdleConnections, []validation.Rule{validation.Min(0)}},
		{"log.level", strings.ToLower(c.Log.Level), []validation.Rule{validation.In("debug", "info", "warn", "error")}},
		{"log.format", strings.ToLower(c.Log.Format), []validation.Rule{validation.In("json", "text")}},
		{"metrics.path", c.Metrics.Path, []validation.Rule{
			validation.When(c.Metrics.Enabled,
				validation.Match(absPathPattern).Error("must start with '/'"),
				validation.By(c.notReserved),
			),
		}},
	}

	for _, f := range fields {
		if err := validation.Validate(f.value, f.rules...); err != nil {
			return fmt.Errorf("%s %w; got %v", f.name, err, f.value)
		}
	}
	return nil
}

// httpOrigin requires an http or https URL with a host.
func httpOrigin(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "must use http or https scheme")
	}
	if u.Host == "" {
		return validation.NewError("validation_missing_host", "must have a host")
	}
	return nil
}

// notReserved rejects metrics paths that would shadow a gateway route.
func (c *Config) notReserved(value any) error {
	p, _ := value.(string)
	if p == "" {
		return nil
	}
	for _, reserved := range c.reservedRoutes() {
		if p == reserved || strings.HasPrefix(p, reserved+"/") {
			return validation.NewError("validation_reserved_route", fmt.Sprintf("conflicts with reserved route %q", reserved))
		}
	}
	return nil
}

func (c *Config) reservedRoutes() []string {
	prefix := c.Gateway.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	routes := []string{HealthzPath, StatusPath, DebugEnvPath}
	// A root prefix forwards everything; exact routes registered beside it
	// still take precedence in the router.
	if p := strings.TrimRight(prefix, "/"); p != "" {
		routes = append(routes, p)
	}
	return routes
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields, zero means "unset" because TOML cannot distinguish
// between an explicit 0 and an omitted key. The exception is
// upstream.timeout_seconds, where 0 keeps the HTTP client default (no timeout).
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 10 * 1024 * 1024 // 10 MB
	}
	if c.Gateway.Prefix == "" {
		c.Gateway.Prefix = DefaultPrefix
	}
	if c.Gateway.APIPrefix == "" {
		c.Gateway.APIPrefix = DefaultPrefix
	}
	c.Gateway.Prefix = strings.TrimRight(c.Gateway.Prefix, "/")
	c.Gateway.APIPrefix = strings.TrimRight(c.Gateway.APIPrefix, "/")
	if c.Upstream.IdleConnections == 0 {
		c.Upstream.IdleConnections = 100
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// FilePath returns the config file the configuration was read from, or
// empty string when running on defaults.
func (c *Config) FilePath() string {
	return c.filePath
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WarnPermissions logs a warning if the config file is readable by group or others.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
