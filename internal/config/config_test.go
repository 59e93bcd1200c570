package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "streamline.yaml")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	yaml := `
request:
  method: POST
  timeout: 45s
  headers:
    Accept: text/event-stream
transport:
  force_http2: true
  dns_cache: false
history:
  enabled: true
  dsn: ":memory:"
server:
  addr: ":9999"
output:
  trim_prefix: "data: "
  field: choices.0.delta.content
  skip: ["[DONE]"]
log:
  level: debug
  format: json
`
	cfg, err := Load(writeConfig(t, yaml))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Request.Method != "POST" {
		t.Errorf("method = %q, want POST", cfg.Request.Method)
	}
	if cfg.Request.Timeout != 45*time.Second {
		t.Errorf("timeout = %s, want 45s", cfg.Request.Timeout)
	}
	if cfg.Request.Headers["Accept"] != "text/event-stream" {
		t.Errorf("headers = %v", cfg.Request.Headers)
	}
	if !cfg.Transport.ForceHTTP2 || cfg.Transport.DNSCache {
		t.Errorf("transport = %+v", cfg.Transport)
	}
	if !cfg.History.Enabled || cfg.History.DSN != ":memory:" {
		t.Errorf("history = %+v", cfg.History)
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("addr = %q, want :9999", cfg.Server.Addr)
	}
	if cfg.Output.TrimPrefix != "data: " || cfg.Output.Field != "choices.0.delta.content" {
		t.Errorf("output = %+v", cfg.Output)
	}
	if len(cfg.Output.Skip) != 1 || cfg.Output.Skip[0] != "[DONE]" {
		t.Errorf("skip = %v", cfg.Output.Skip)
	}
	lvl, err := cfg.Log.SlogLevel()
	if err != nil || lvl != slog.LevelDebug {
		t.Errorf("level = %v, %v; want debug", lvl, err)
	}
	// Untouched sections keep their defaults.
	if cfg.Request.ChunkSize != 32*1024 {
		t.Errorf("chunk size = %d, want default", cfg.Request.ChunkSize)
	}
}

func TestExpandEnv(t *testing.T) {
	// Cannot use t.Parallel() with t.Setenv
	t.Setenv("TEST_STREAM_TOKEN", "Bearer abc")

	result := expandEnv([]byte("auth: ${TEST_STREAM_TOKEN} ${UNSET_STREAM_VAR}"))
	if string(result) != "auth: Bearer abc ${UNSET_STREAM_VAR}" {
		t.Errorf("expandEnv = %q", string(result))
	}

	cfg, err := Load(writeConfig(t, "request:\n  headers:\n    Authorization: ${TEST_STREAM_TOKEN}\n"))
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Request.Headers["Authorization"]; got != "Bearer abc" {
		t.Errorf("Authorization = %q, want expanded value", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	for _, path := range []string{"", writeConfig(t, "{}")} {
		cfg, err := Load(path)
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Request.Timeout != 30*time.Second {
			t.Errorf("default timeout = %s, want 30s", cfg.Request.Timeout)
		}
		if cfg.Request.Method != "GET" {
			t.Errorf("default method = %q, want GET", cfg.Request.Method)
		}
		if cfg.History.DSN != "streamline.db" {
			t.Errorf("default dsn = %q", cfg.History.DSN)
		}
		if cfg.Server.Addr != ":9464" {
			t.Errorf("default addr = %q", cfg.Server.Addr)
		}
		if !cfg.Transport.DNSCache {
			t.Error("dns cache should default to on")
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	t.Parallel()

	if _, err := Load(writeConfig(t, "request: [unclosed")); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults ok", mutate: func(*Config) {}},
		{name: "zero timeout", mutate: func(c *Config) { c.Request.Timeout = 0 }, wantErr: "request.timeout"},
		{name: "negative chunk", mutate: func(c *Config) { c.Request.ChunkSize = -1 }, wantErr: "chunk_size"},
		{name: "negative max line", mutate: func(c *Config) { c.Request.MaxLineSize = -1 }, wantErr: "max_line_size"},
		{name: "duplicate header", mutate: func(c *Config) {
			c.Request.Headers = map[string]string{"accept": "a", "Accept": "b"}
		}, wantErr: "duplicate key"},
		{name: "negative refresh", mutate: func(c *Config) { c.Transport.DNSRefresh = -time.Second }, wantErr: "dns_refresh"},
		{name: "sample rate", mutate: func(c *Config) { c.Telemetry.Tracing.SampleRate = 1.5 }, wantErr: "sample_rate"},
		{name: "log level", mutate: func(c *Config) { c.Log.Level = "loud" }, wantErr: "log level"},
		{name: "log format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}
