package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/vigilmon/vigil/internal/alerting"
	"github.com/vigilmon/vigil/internal/metrics"
	"github.com/vigilmon/vigil/internal/monitor"
	"github.com/vigilmon/vigil/internal/telemetry"
)

var metricsAddr string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the monitoring engine until interrupted",
	Long: `Start the collection loop: one immediate tick, then one tick per
configured interval. Runs until SIGINT or SIGTERM, then shuts down
gracefully.

With --metrics-addr, the engine's own Prometheus metrics are served on
/metrics at that address.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := monitor.LoadConfig(configPath)
		if err != nil {
			return err
		}

		sink, closeSinks, err := buildSinks(cfg)
		if err != nil {
			return err
		}
		defer closeSinks()

		tel := telemetry.New()

		mon, err := monitor.NewMonitor(&monitor.Deps{
			Source:    metrics.NewSystemSource(),
			Sink:      sink,
			Telemetry: tel,
			Config:    cfg,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if metricsAddr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(tel.Registry(), promhttp.HandlerOpts{}))
			srv := &http.Server{Addr: metricsAddr, Handler: mux}
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					fmt.Fprintf(os.Stderr, "metrics server failed: %v\n", err)
				}
			}()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
			fmt.Printf("Monitor: serving metrics on %s/metrics\n", metricsAddr)
		}

		if err := mon.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()
		mon.Stop()
		return nil
	},
}

// buildSinks assembles the configured delivery chain. The returned cleanup
// closes the SQLite audit log if one was opened.
func buildSinks(cfg *monitor.Config) (alerting.Sink, func(), error) {
	var sinks []alerting.Sink
	cleanup := func() {}

	if cfg.Sinks.Console.Enabled {
		sinks = append(sinks, alerting.NewConsoleSink(os.Stdout, cfg.Sinks.Console.MaxPerMinute))
	}
	if cfg.Sinks.Webhook.URL != "" {
		sinks = append(sinks, alerting.NewWebhookSink(cfg.Sinks.Webhook.URL, cfg.Sinks.Webhook.Timeout))
	}
	if cfg.Sinks.SQLite.Path != "" {
		audit, err := alerting.NewSQLiteSink(cfg.Sinks.SQLite.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening alert audit log: %w", err)
		}
		sinks = append(sinks, audit)
		cleanup = func() {
			if err := audit.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "closing alert audit log: %v\n", err)
			}
		}
	}

	switch len(sinks) {
	case 0:
		return nil, cleanup, nil
	case 1:
		return sinks[0], cleanup, nil
	default:
		return alerting.NewMultiSink(sinks...), cleanup, nil
	}
}

func init() {
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve the engine's own Prometheus metrics on (e.g. :9090)")
	rootCmd.AddCommand(runCmd)
}
