// Package config handles YAML configuration loading with environment variable expansion.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"
)

// Config is the top-level streamline configuration.
type Config struct {
	Request   RequestConfig   `yaml:"request"`
	Transport TransportConfig `yaml:"transport"`
	History   HistoryConfig   `yaml:"history"`
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Output    OutputConfig    `yaml:"output"`
	Log       LogConfig       `yaml:"log"`
}

// RequestConfig holds per-transfer defaults; CLI flags override them.
type RequestConfig struct {
	Method      string            `yaml:"method"`
	Headers     map[string]string `yaml:"headers"`
	Timeout     time.Duration     `yaml:"timeout"`
	Charset     string            `yaml:"charset"`       // "" = from Content-Type, else UTF-8
	ChunkSize   int               `yaml:"chunk_size"`    // read buffer bytes
	MaxLineSize int               `yaml:"max_line_size"` // bytes
}

// TransportConfig tunes the outbound HTTP client.
type TransportConfig struct {
	ForceHTTP2          bool          `yaml:"force_http2"`
	DNSCache            bool          `yaml:"dns_cache"`
	DNSRefresh          time.Duration `yaml:"dns_refresh"` // 0 = never refresh
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
	TLSHandshakeTimeout time.Duration `yaml:"tls_handshake_timeout"`
	Proxy               string        `yaml:"proxy"` // "" = from environment
}

// HistoryConfig controls the SQLite transfer log.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"` // file path or ":memory:"
}

// ServerConfig holds settings for the history/metrics HTTP API.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CacheSize       int           `yaml:"cache_size"` // transfer records cached by ID
	CacheTTL        time.Duration `yaml:"cache_ttl"`
}

// TelemetryConfig holds observability settings.
type TelemetryConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"` // OTLP gRPC endpoint
	Insecure   bool    `yaml:"insecure"`
	SampleRate float64 `yaml:"sample_rate"` // 0.0 to 1.0
}

// OutputConfig controls how received lines are printed.
type OutputConfig struct {
	TrimPrefix string   `yaml:"trim_prefix"` // e.g. "data: "
	Field      string   `yaml:"field"`       // gjson path, "" = whole line
	Skip       []string `yaml:"skip"`        // lines (after trimming) to drop, e.g. "[DONE]"
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level %q: %w", l.Level, err)
	}
	return lvl, nil
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnv replaces ${VAR} patterns with environment variable values.
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := string(match[2 : len(match)-1])
		if val, ok := os.LookupEnv(varName); ok {
			return []byte(val)
		}
		return match
	})
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Request: RequestConfig{
			Method:      "GET",
			Timeout:     30 * time.Second,
			ChunkSize:   32 * 1024,
			MaxLineSize: 1 << 20,
		},
		Transport: TransportConfig{
			DNSCache:            true,
			DNSRefresh:          5 * time.Minute,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 5 * time.Second,
		},
		History: HistoryConfig{
			DSN: "streamline.db",
		},
		Server: ServerConfig{
			Addr:            ":9464",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CacheSize:       1_000,
			CacheTTL:        10 * time.Minute,
		},
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{Enabled: true},
			Tracing: TracingConfig{Endpoint: "localhost:4317", Insecure: true, SampleRate: 1.0},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads and parses a YAML config file, expanding environment variables.
// An empty path returns Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	data = expandEnv(data)

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Request.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("request.timeout must be positive, got %s", c.Request.Timeout))
	}
	if c.Request.ChunkSize < 0 {
		errs = append(errs, errors.New("request.chunk_size must not be negative"))
	}
	if c.Request.MaxLineSize < 0 {
		errs = append(errs, errors.New("request.max_line_size must not be negative"))
	}
	seen := make(map[string]bool, len(c.Request.Headers))
	for k := range c.Request.Headers {
		lk := strings.ToLower(k)
		if seen[lk] {
			errs = append(errs, fmt.Errorf("request.headers: duplicate key %q", k))
		}
		seen[lk] = true
	}
	if c.Transport.DNSRefresh < 0 {
		errs = append(errs, errors.New("transport.dns_refresh must not be negative"))
	}
	if c.Telemetry.Tracing.SampleRate < 0 || c.Telemetry.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("telemetry.tracing.sample_rate must be within [0, 1], got %v", c.Telemetry.Tracing.SampleRate))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
