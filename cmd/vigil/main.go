package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "vigil",
	Short: "Operational monitoring and alerting engine",
	Long: `Vigil watches a running system: it collects metric snapshots on an
interval, detects statistical anomalies (latency spikes, error-rate surges,
resource overload, stuck agents), evaluates declarative alert rules, probes
external services, and aggregates everything into one health verdict.

Alerts fan out to the console, a webhook, and a SQLite audit log depending
on configuration.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "vigil.yaml", "path to the YAML configuration file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
