package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/rs/dnscache"
	"github.com/spf13/cobra"

	streamline "github.com/eugener/streamline/internal"
	"github.com/eugener/streamline/internal/config"
	"github.com/eugener/streamline/internal/telemetry"
	"github.com/eugener/streamline/internal/transport"
)

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:   "streamline",
		Short: "Stream HTTP responses line by line",
		Long: `Streamline issues an HTTP request and prints the response body line by
line as it arrives, with progress reporting, cancellation, and a timeout.

Finished transfers can be recorded to a local SQLite history and browsed
with the history command or over HTTP with serve.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to config file")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	cmd.AddCommand(
		newFetchCmd(&flags),
		newHistoryCmd(&flags),
		newServeCmd(&flags),
		newVersionCmd(),
	)
	return cmd
}

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// exitCode maps a transfer error to a process exit code, following the
// conventions of timeout(1) and shells for SIGINT.
func exitCode(err error) int {
	switch {
	case errors.Is(err, streamline.ErrTimeout):
		return 124
	case errors.Is(err, streamline.ErrCanceled), errors.Is(err, context.Canceled):
		return 130
	default:
		return 1
	}
}

// loadConfig reads the config file and applies global flag overrides.
func loadConfig(flags *rootFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	return cfg, nil
}

// setupLogger installs the process logger writing to w.
func setupLogger(w io.Writer, cfg config.LogConfig) error {
	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if cfg.Format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(h))
	return nil
}

// setupTracing starts the OTLP exporter when tracing is enabled. The
// returned function flushes spans and is safe to call when disabled.
func setupTracing(ctx context.Context, cfg config.TracingConfig) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	shutdown, err := telemetry.SetupTracing(ctx, telemetry.TracingOptions{
		Endpoint:       cfg.Endpoint,
		Insecure:       cfg.Insecure,
		SampleRate:     cfg.SampleRate,
		ServiceVersion: version,
	})
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}
	return shutdown, nil
}

// newHTTPClient builds the outbound client. The resolver is nil when DNS
// caching is disabled.
func newHTTPClient(cfg config.TransportConfig) (*http.Client, *dnscache.Resolver, error) {
	var resolver *dnscache.Resolver
	if cfg.DNSCache {
		resolver = &dnscache.Resolver{}
	}
	t, err := transport.NewTransport(resolver, transport.Options{
		ForceHTTP2:          cfg.ForceHTTP2,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		TLSHandshakeTimeout: cfg.TLSHandshakeTimeout,
		Proxy:               cfg.Proxy,
	})
	if err != nil {
		return nil, nil, err
	}
	return transport.NewClient(t), resolver, nil
}
