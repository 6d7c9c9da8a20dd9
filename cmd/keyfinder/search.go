package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mahdiidarabi/keyfinder/internal/config"
	"github.com/mahdiidarabi/keyfinder/internal/logging"
	"github.com/mahdiidarabi/keyfinder/pkg/keyfinder"
)

const progressInterval = 10 * time.Second

func newSearchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Run a range or key list search",
		Long: `Search a sequential key range (--start, --stride, --end) or a key list
(--mode list --keys FILE) for keys whose address is in --targets.

Matches are written one per line as "<private key> <address> <encoding>".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags(), configFile)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSearch(ctx, cfg, logger, cmd.OutOrStdout())
		},
	}
	config.AddFlags(cmd.Flags())
	return cmd
}

func runSearch(ctx context.Context, cfg *config.Config, logger *zap.Logger, stdout io.Writer) error {
	targets, warnings, err := keyfinder.LoadTargets(cfg.Targets)
	if err != nil {
		return fmt.Errorf("failed to load targets: %w", err)
	}
	origin, keyWarnings, err := cfg.Origin()
	if err != nil {
		return fmt.Errorf("failed to load keys: %w", err)
	}

	fc, err := cfg.FinderConfig()
	if err != nil {
		return err
	}
	opts, err := cfg.CPUOptions()
	if err != nil {
		return err
	}
	dev := keyfinder.NewCPUDevice(opts)
	defer dev.Close()

	out := stdout
	if cfg.Output != "" {
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("failed to open output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	reg := prometheus.NewRegistry()
	m := keyfinder.NewMetrics(reg)
	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, reg, logger)
		defer srv.Close()
	}

	lastReport := time.Now()
	finder := keyfinder.NewKeyFinder(dev).
		WithConfig(fc).
		WithLogger(logger).
		WithMetrics(m).
		WithSink(keyfinder.NewLineSink(out)).
		WithProgressHandler(func(p keyfinder.Progress) {
			if time.Since(lastReport) < progressInterval {
				return
			}
			lastReport = time.Now()
			rate := float64(p.Keys) / p.Elapsed.Seconds()
			logger.Info("progress",
				zap.Uint64("iteration", p.Iteration),
				zap.String("keys", humanize.Comma(int64(p.Keys))),
				zap.String("rate", humanize.SIWithDigits(rate, 2, "keys/s")),
				zap.Int("matches", p.Matches))
		})
	finder.Warn(warnings...)
	finder.Warn(keyWarnings...)

	summary, err := finder.Run(ctx, origin, targets)
	if err != nil {
		return err
	}
	logger.Info("done",
		zap.Stringer("state", summary.State),
		zap.String("keys", humanize.Comma(int64(summary.Progress))),
		zap.Int("matches", len(summary.Matches)),
		zap.Int("warnings", len(summary.Warnings)),
		zap.Duration("elapsed", summary.Elapsed))
	return nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
	return srv
}
