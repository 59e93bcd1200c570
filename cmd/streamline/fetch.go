package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	streamline "github.com/eugener/streamline/internal"
	"github.com/eugener/streamline/internal/app"
	"github.com/eugener/streamline/internal/config"
	"github.com/eugener/streamline/internal/output"
	"github.com/eugener/streamline/internal/server"
	"github.com/eugener/streamline/internal/storage/sqlite"
	"github.com/eugener/streamline/internal/stream"
	"github.com/eugener/streamline/internal/telemetry"
	"github.com/eugener/streamline/internal/worker"
)

// fetchFlags override the request and output sections of the config.
type fetchFlags struct {
	method      string
	headers     []string
	data        string
	timeout     time.Duration
	charset     string
	trimPrefix  string
	field       string
	skip        []string
	progress    bool
	history     bool
	metricsAddr string
}

func newFetchCmd(root *rootFlags) *cobra.Command {
	var f fetchFlags

	cmd := &cobra.Command{
		Use:   "fetch URL",
		Short: "Fetch a URL and print the response body line by line",
		Long: `Fetch issues a single request and prints every non-blank line of the
response body to stdout as soon as it arrives.

Ctrl-C cancels the transfer. The exit status is 0 when the body was read to
the end, 124 on timeout, 130 on cancellation, and 1 on any other failure.`,
		Example: `  streamline fetch https://example.com/events
  streamline fetch -X POST -d '{"stream":true}' --trim-prefix 'data: ' \
      --field choices.0.delta.content --skip '[DONE]' https://api.example.com/v1/chat`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			if err := f.apply(cmd, cfg); err != nil {
				return err
			}
			return runFetch(cmd, cfg, args[0], f)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.method, "method", "X", "GET", "HTTP method")
	fl.StringArrayVarP(&f.headers, "header", "H", nil, `request header "Name: value" (repeatable)`)
	fl.StringVarP(&f.data, "data", "d", "", "JSON request body")
	fl.DurationVar(&f.timeout, "timeout", stream.DefaultTimeout, "whole-transfer timeout")
	fl.StringVar(&f.charset, "charset", "", "response charset override (default from Content-Type, else UTF-8)")
	fl.StringVar(&f.trimPrefix, "trim-prefix", "", `strip this prefix from lines and drop lines without it, e.g. "data: "`)
	fl.StringVar(&f.field, "field", "", "print only this JSON path of each line (gjson syntax)")
	fl.StringArrayVar(&f.skip, "skip", nil, "drop lines equal to this value after prefix trimming (repeatable)")
	fl.BoolVar(&f.progress, "progress", false, "report download progress on stderr when the length is known")
	fl.BoolVar(&f.history, "history", false, "record the transfer in the history database")
	fl.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while fetching")

	return cmd
}

// apply copies explicitly set flags over the config and re-validates it.
func (f fetchFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	changed := cmd.Flags().Changed
	if changed("method") {
		cfg.Request.Method = f.method
	}
	if changed("timeout") {
		cfg.Request.Timeout = f.timeout
	}
	if changed("charset") {
		cfg.Request.Charset = f.charset
	}
	if changed("trim-prefix") {
		cfg.Output.TrimPrefix = f.trimPrefix
	}
	if changed("field") {
		cfg.Output.Field = f.field
	}
	if changed("skip") {
		cfg.Output.Skip = f.skip
	}
	if changed("history") {
		cfg.History.Enabled = f.history
	}
	if f.metricsAddr != "" {
		cfg.Telemetry.Metrics.Enabled = true
	}
	return cfg.Validate()
}

func runFetch(cmd *cobra.Command, cfg *config.Config, url string, f fetchFlags) error {
	if err := setupLogger(cmd.ErrOrStderr(), cfg.Log); err != nil {
		return err
	}

	header, err := mergeHeaders(cfg.Request.Headers, f.headers)
	if err != nil {
		return err
	}
	var body any
	if f.data != "" {
		if !json.Valid([]byte(f.data)) {
			return errors.New("--data must be valid JSON")
		}
		body = json.RawMessage(f.data)
	}

	// SIGINT/SIGTERM cancel the transfer with ErrCanceled as the reason.
	ctx, cancel := context.WithCancelCause(cmd.Context())
	defer cancel(nil)
	sigCtx, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	stopAfter := context.AfterFunc(sigCtx, func() { cancel(streamline.ErrCanceled) })
	defer stopAfter()

	shutdownTracing, err := setupTracing(ctx, cfg.Telemetry.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer scancel()
		if err := shutdownTracing(sctx); err != nil {
			slog.Warn("tracing shutdown failed", "error", err)
		}
	}()

	client, resolver, err := newHTTPClient(cfg.Transport)
	if err != nil {
		return err
	}

	var metrics *telemetry.Metrics
	reg := prometheus.NewRegistry()
	if cfg.Telemetry.Metrics.Enabled {
		metrics = telemetry.NewMetrics(reg)
	}
	if f.metricsAddr != "" {
		stop, err := serveMetrics(f.metricsAddr, metrics, reg)
		if err != nil {
			return err
		}
		defer stop()
	}

	var (
		workers  []worker.Worker
		recorder app.Recorder
	)
	if resolver != nil {
		workers = append(workers, worker.NewDNSRefresher(resolver, cfg.Transport.DNSRefresh))
	}
	if cfg.History.Enabled {
		store, err := sqlite.New(cfg.History.DSN)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer store.Close()
		rec := worker.NewTransferRecorder(store, metrics)
		workers = append(workers, rec)
		recorder = rec
	}

	// Workers outlive ctx cancellation so the recorder can drain.
	wctx, wcancel := context.WithCancel(context.WithoutCancel(ctx))
	runDone := make(chan error, 1)
	go func() { runDone <- worker.NewRunner(workers...).Run(wctx) }()
	defer func() {
		wcancel()
		if err := <-runDone; err != nil {
			slog.Warn("worker failed", "error", err)
		}
	}()

	formatter := output.Formatter{
		TrimPrefix: cfg.Output.TrimPrefix,
		Field:      cfg.Output.Field,
		Skip:       cfg.Output.Skip,
	}
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	opts := stream.Options{
		URL:         url,
		Method:      cfg.Request.Method,
		Header:      header,
		Body:        body,
		Timeout:     cfg.Request.Timeout,
		Charset:     cfg.Request.Charset,
		ChunkSize:   cfg.Request.ChunkSize,
		MaxLineSize: cfg.Request.MaxLineSize,
		OnLine: func(line string) {
			if s, ok := formatter.Format(line); ok {
				fmt.Fprintln(out, s)
			}
		},
	}
	if f.progress {
		opts.OnProgress = func(p streamline.Progress) {
			fmt.Fprintf(errOut, "progress: %s%% (%d/%d bytes)\n", p.Percent, p.Received, p.Total)
		}
	}

	fetcher := app.NewFetcher(client, metrics, recorder)
	if _, err := fetcher.Fetch(ctx, opts); err != nil {
		if errors.Is(err, streamline.ErrInvalidOptions) {
			return err
		}
		return &exitError{code: exitCode(err), err: err}
	}
	return nil
}

// mergeHeaders combines config headers with "Name: value" flag headers.
// Keys are canonicalized so that a flag replaces a config header of the
// same name.
func mergeHeaders(base map[string]string, flags []string) (map[string]string, error) {
	out := make(map[string]string, len(base)+len(flags))
	for k, v := range base {
		out[http.CanonicalHeaderKey(k)] = v
	}
	for _, h := range flags {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q, want \"Name: value\"", h)
		}
		out[http.CanonicalHeaderKey(name)] = strings.TrimSpace(value)
	}
	return out, nil
}

// serveMetrics exposes /metrics on addr until the returned stop is called.
func serveMetrics(addr string, metrics *telemetry.Metrics, reg *prometheus.Registry) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen metrics: %w", err)
	}
	srv := &http.Server{
		Handler: server.New(server.Deps{
			Metrics:        metrics,
			MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()
	slog.Debug("metrics listening", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}, nil
}
