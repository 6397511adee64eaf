// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-keypin/pkg/keypin"
	"github.com/jeremyhahn/go-keypin/pkg/pinmetrics"
)

const (
	defaultMonitorInterval = time.Minute
	metricsShutdownTimeout = 5 * time.Second
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Probe the server periodically and export pin metrics",
	Long: `Probe the server at a fixed interval and verify its leaf key against the
stored pin. Outcomes are logged and exported as Prometheus metrics on
--metrics-addr (keypin_verifications_total, by decision and reason).

The stored pin is re-read on every probe, so 'keypin config set-pin' takes
effect without restarting the monitor.`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().String("url", "", "server URL or host:port (default: stored url)")
	monitorCmd.Flags().Duration("interval", defaultMonitorInterval, "time between probes")
	monitorCmd.Flags().Int("count", 0, "number of probes before exiting (0: until interrupted)")
	monitorCmd.Flags().String("metrics-addr", "", "address for the /metrics endpoint (e.g., :9464)")
	monitorCmd.Flags().Duration("timeout", defaultRequestTimeout, "per-probe handshake timeout")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	flagURL, _ := cmd.Flags().GetString("url")
	interval, _ := cmd.Flags().GetDuration("interval")
	count, _ := cmd.Flags().GetInt("count")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	if interval <= 0 {
		return fmt.Errorf("%w: --interval must be positive", ErrInvalidInput)
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	target, err := targetURL(store, flagURL)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	metrics, err := pinmetrics.NewCollector(reg)
	if err != nil {
		return err
	}

	client, err := newPinnedClient(store, clientOptions{
		timeout:   timeout,
		onOutcome: metrics.Observe,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := signalContext(0)
	defer cancel()

	if metricsAddr != "" {
		stop, err := serveMetrics(metricsAddr, reg)
		if err != nil {
			return err
		}
		defer stop()
	}

	logger := slog.Default().With("server", target)
	logger.Info("monitoring server pin", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var rejected int
	for n := 1; ; n++ {
		if !probeOnce(ctx, client, target, timeout, logger) {
			rejected++
		}
		if count > 0 && n >= count {
			break
		}
		select {
		case <-ctx.Done():
			logger.Info("monitor stopped")
			return nil
		case <-ticker.C:
		}
	}

	if rejected > 0 {
		return fmt.Errorf("%w: %d of %d probes rejected", ErrVerificationFailed, rejected, count)
	}
	return nil
}

// probeOnce runs one probe and reports whether it was not rejected.
func probeOnce(ctx context.Context, client *keypin.Client, target string, timeout time.Duration, logger *slog.Logger) bool {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	outcome, err := client.Probe(probeCtx, target)
	if err != nil {
		logger.Warn("probe failed", "error", err)
		return false
	}
	if outcome.Decision == keypin.Rejected {
		return false
	}
	logger.Info("probe complete", "decision", outcome.Decision.String(), "pin", outcome.Digest)
	return true
}

// serveMetrics exposes reg on addr and returns a function that shuts the
// listener down.
func serveMetrics(addr string, reg *prometheus.Registry) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: metrics listener: %w", ErrServerStart, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()
	slog.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
