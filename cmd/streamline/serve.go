package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	streamline "github.com/eugener/streamline/internal"
	"github.com/eugener/streamline/internal/cache"
	"github.com/eugener/streamline/internal/config"
	"github.com/eugener/streamline/internal/server"
	"github.com/eugener/streamline/internal/storage/sqlite"
	"github.com/eugener/streamline/internal/telemetry"
)

func newServeCmd(root *rootFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the transfer history API and metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if err := setupLogger(cmd.ErrOrStderr(), cfg.Log); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ln, err := net.Listen("tcp", cfg.Server.Addr)
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}
			return serve(ctx, cfg, ln)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :9464)")
	return cmd
}

// serve runs the API on ln until ctx is cancelled, then shuts down gracefully.
func serve(ctx context.Context, cfg *config.Config, ln net.Listener) error {
	slog.Info("starting streamline server", "version", version, "addr", ln.Addr().String())

	store, err := sqlite.New(cfg.History.DSN)
	if err != nil {
		ln.Close()
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()

	records, err := cache.NewMemory[*streamline.TransferRecord](cfg.Server.CacheSize, cfg.Server.CacheTTL)
	if err != nil {
		ln.Close()
		return err
	}

	deps := server.Deps{
		Store:      store,
		Cache:      records,
		ReadyCheck: store.Ping,
	}
	if cfg.Telemetry.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		deps.Metrics = telemetry.NewMetrics(reg)
		deps.MetricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	srv := &http.Server{
		Handler:      server.New(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("streamline server ready", "addr", ln.Addr().String())

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	slog.Info("streamline server stopped")
	return nil
}
