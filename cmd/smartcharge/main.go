// Package main provides the smartcharge command line: one-shot jobs for cron
// or launchd, and a long-running serve mode with its own scheduler.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yourusername/smart-charge/internal/config"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
)

var (
	configFile string
	application *app
)

var rootCmd = &cobra.Command{
	Use:           "smartcharge",
	Short:         "Find the cheapest, cleanest overnight EV charging window",
	Long:          `Recommends when to charge from Octopus Agile prices, price forecasts and grid carbon intensity, and tracks how good those recommendations were.`,
	Version:       fmt.Sprintf("%s (%s)", Version, GitCommit),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), configFile)
		if err != nil {
			return err
		}
		application = a
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if application == nil {
			return nil
		}
		return application.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", config.DefaultConfigPath, "Path to configuration file")

	rootCmd.AddCommand(
		newRecommendCmd(),
		newPlanCmd(),
		newCompareCmd(),
		newEvolutionCmd(),
		newTuneCmd(),
		newLogChargeCmd(),
		newSummaryCmd(),
		newRemindCmd(),
		newCleanupCmd(),
		newServeCmd(),
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if application != nil {
			_ = application.Close()
		}
		os.Exit(1)
	}
}
