package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vigilmon/vigil/internal/monitor"
)

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate the configuration file",
	Long:  `Parse and validate the configuration, then print a summary of what the engine would run with.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := monitor.LoadConfig(configPath)
		if err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("%s %s\n\n", green("✓"), "configuration is valid")
		fmt.Printf("Interval:       %v\n", cfg.Interval)
		fmt.Printf("History:        %d snapshots, %v retention\n", cfg.History.MaxSize, cfg.History.Retention)
		fmt.Printf("Alert history:  %d\n", cfg.MaxAlertHistory)

		fmt.Printf("Rules:          %d\n", len(cfg.Rules))
		for _, r := range cfg.Rules {
			state := ""
			if !r.Enabled {
				state = gray(" (disabled)")
			}
			fmt.Printf("  %s: %s %s %.2f -> %s%s\n", r.ID, r.MetricPath, r.Condition, r.Threshold, r.Severity, state)
		}

		fmt.Printf("Probes:         %d\n", len(cfg.Probes))
		for _, p := range cfg.Probes {
			fmt.Printf("  %s\n", p.Name())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkConfigCmd)
}
