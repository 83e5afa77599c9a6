package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vigilmon/vigil/internal/health"
	"github.com/vigilmon/vigil/internal/metrics"
	"github.com/vigilmon/vigil/internal/monitor"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Run one collection pass and print the verdict",
	Long: `Collect one metric snapshot, evaluate the configured rules and probes
against it, and print the resulting health verdict. Useful for cron checks
and quick inspection without a long-running engine.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := monitor.LoadConfig(configPath)
		if err != nil {
			return err
		}

		mon, err := monitor.NewMonitor(&monitor.Deps{
			Source: metrics.NewSystemSource(),
			Config: cfg,
		})
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.TickTimeout)
		defer cancel()

		if err := mon.Tick(ctx); err != nil {
			return err
		}

		printSummary(mon)
		return nil
	},
}

func printSummary(mon *monitor.Monitor) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	summary := mon.Summary()

	fmt.Printf("\n%s\n\n", cyan("=== Vigil Status ==="))
	fmt.Printf("Health: %s\n", verdictColor(summary.Health)(string(summary.Health)))
	fmt.Printf("Checked: %s\n", summary.LastTick.Format("2006-01-02 15:04:05"))
	fmt.Println()

	snap := mon.History().Latest()
	if snap != nil {
		fmt.Printf("%s\n", yellow("System:"))
		fmt.Printf("  CPU:    %5.1f%%\n", snap.System.CPUUsagePercent)
		fmt.Printf("  Memory: %5.1f%%\n", snap.System.MemoryUsagePercent)
		fmt.Printf("  Disk:   %5.1f%%\n", snap.System.DiskUsagePercent)
		if len(snap.System.LoadAverage) == 3 {
			fmt.Printf("  Load:   %.2f / %.2f / %.2f\n",
				snap.System.LoadAverage[0], snap.System.LoadAverage[1], snap.System.LoadAverage[2])
		}
		fmt.Println()
	}

	fmt.Printf("%s\n", yellow("Alerts:"))
	active := mon.Alerts().Active()
	if len(active) == 0 {
		fmt.Printf("  %s\n", gray("none active"))
	}
	for _, a := range active {
		fmt.Printf("  %s %s (value=%.2f threshold=%.2f at %s)\n",
			severityColor(string(a.Severity))(fmt.Sprintf("[%s]", a.Severity)),
			a.Message, a.MetricValue, a.Threshold, a.Timestamp.Format("15:04:05"))
	}
	fmt.Println()

	if len(summary.Probes) > 0 {
		fmt.Printf("%s\n", yellow("Probes:"))
		for _, p := range summary.Probes {
			line := fmt.Sprintf("  %s %s (%v)", verdictColor(p.Status)(statusIcon(p.Status)), p.Name, p.ResponseTime.Round(time.Millisecond))
			if p.Err != nil {
				line += gray(fmt.Sprintf("  %v", p.Err))
			}
			fmt.Println(line)
		}
		fmt.Println()
	}

	if len(summary.LastAnomalies) > 0 {
		fmt.Printf("%s\n", yellow("Anomalies:"))
		for _, a := range summary.LastAnomalies {
			fmt.Printf("  %s %s (confidence %.0f%%)\n",
				severityColor(string(a.Severity))(fmt.Sprintf("[%s]", a.Type)),
				a.Description, a.Confidence*100)
		}
		fmt.Println()
	}
}

func verdictColor(s health.Status) func(a ...interface{}) string {
	switch s {
	case health.StatusHealthy:
		return color.New(color.FgGreen).SprintFunc()
	case health.StatusDegraded:
		return color.New(color.FgYellow).SprintFunc()
	default:
		return color.New(color.FgRed).SprintFunc()
	}
}

func severityColor(s string) func(a ...interface{}) string {
	switch s {
	case "critical":
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case "high":
		return color.New(color.FgRed).SprintFunc()
	case "medium":
		return color.New(color.FgYellow).SprintFunc()
	default:
		return color.New(color.FgHiBlack).SprintFunc()
	}
}

func statusIcon(s health.Status) string {
	switch s {
	case health.StatusHealthy:
		return "●"
	case health.StatusDegraded:
		return "⚠"
	default:
		return "○"
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
