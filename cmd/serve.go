package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/mj1618/uitransfer/internal/mcpbridge"
	"github.com/mj1618/uitransfer/internal/metrics"
	"github.com/mj1618/uitransfer/internal/transfer"
	"github.com/mj1618/uitransfer/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start an MCP server that transfers snapshot files in chunks",
	Long: `Start a Model Context Protocol (MCP) server exposing the snapshot_begin,
snapshot_more and snapshot_cancel tools. Snapshots are YAML files in --dir,
named without their extension.

Supported transports:
  stdio             Standard I/O (default)
  streamable-http   Streamable HTTP transport (for remote clients)

Examples:
  uitransfer serve --dir ./snapshots
  uitransfer serve --transport streamable-http --port 8080 --metrics-addr :9100
  uitransfer serve --cache-ttl 0`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("transport", "stdio", "Transport: stdio, streamable-http")
	serveCmd.Flags().Int("port", 8080, "HTTP port for streamable-http transport")
	serveCmd.Flags().String("dir", ".", "Directory holding snapshot YAML files")
	serveCmd.Flags().Duration("cache-ttl", 500*time.Millisecond, "Loaded snapshot cache TTL (0 to disable)")
	serveCmd.Flags().Int("chunk-size", transfer.DefaultChunkSize, "Default chunk body size in bytes")
	serveCmd.Flags().Duration("ready-timeout", transfer.DefaultReadyTimeout, "Wait for async subtrees before sending an empty snapshot")
	serveCmd.Flags().String("metrics-addr", "", "Serve prometheus metrics on this address (e.g. :9100)")
}

func runServe(cmd *cobra.Command, args []string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewTransfer(reg)

	if cfg.Metrics.Addr != "" {
		stop := serveMetrics(cfg.Metrics.Addr, reg)
		defer stop()
	}

	mcfg := mcpbridge.Config{
		Transport: cfg.Server.Transport,
		Port:      cfg.Server.Port,
		CacheTTL:  cfg.Server.CacheTTL,
	}
	srv := mcpbridge.NewServer(
		mcpbridge.DirSource{Dir: cfg.Server.Dir},
		mcfg,
		logger,
		version.Version,
		transferOptions(m)...,
	)
	if err := srv.Serve(mcfg); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

// serveMetrics exposes reg on addr/metrics in the background.
func serveMetrics(addr string, reg *prometheus.Registry) (stop func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", addr).Msg("serving metrics")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
		}
	}()
	return func() { httpServer.Close() }
}
