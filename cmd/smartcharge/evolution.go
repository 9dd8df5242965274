package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yourusername/smart-charge/internal/forecast"
	"github.com/yourusername/smart-charge/internal/models"
)

type evolutionFlags struct {
	date     string
	list     bool
	drifted  bool
	minDrift float64
	cleanup  bool
	asJSON   bool
}

func newEvolutionCmd() *cobra.Command {
	var f evolutionFlags
	cmd := &cobra.Command{
		Use:   "evolution",
		Short: "Show how predictions for a date changed as it approached",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case f.cleanup:
				return runEvolutionCleanup(cmd)
			case f.list:
				return runEvolutionList(cmd, f.asJSON)
			case f.drifted:
				return runEvolutionDrifted(cmd, f.minDrift, f.asJSON)
			case f.date != "":
				return runEvolutionDate(cmd, f.date, f.asJSON)
			}
			return cmd.Help()
		},
	}
	cmd.Flags().StringVar(&f.date, "date", "", "Target date to show (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&f.list, "list", false, "List tracked target dates")
	cmd.Flags().BoolVar(&f.drifted, "drifted", false, "List targets whose savings drifted")
	cmd.Flags().Float64Var(&f.minDrift, "min", forecast.DefaultSignificantChange, "Minimum absolute drift in percentage points for --drifted")
	cmd.Flags().BoolVar(&f.cleanup, "cleanup", false, "Remove targets past retention")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "Print JSON")
	cmd.MarkFlagsMutuallyExclusive("date", "list", "drifted", "cleanup")
	return cmd
}

func runEvolutionDate(cmd *cobra.Command, date string, asJSON bool) error {
	rec := application.evolution.Evolution(date)
	if rec == nil {
		return fmt.Errorf("no forecast evolution tracked for %s", date)
	}
	out := cmd.OutOrStdout()
	if asJSON {
		return printJSON(out, rec)
	}

	heading(out, fmt.Sprintf("🔮 Forecast evolution for %s", date))
	savings := make([]float64, 0, len(rec.Snapshots))
	for _, s := range rec.Snapshots {
		fmt.Fprintf(out, "  %s  %d days out  %-9s £%5.2f  %5.1f%% saving  confidence %d%%  %s\n",
			s.SnapshotDate, s.DaysUntilTarget, rating(s.Rating), s.PredictedCost,
			s.PredictedSavingsPct, s.ConfidenceScore, subtle(string(s.PriceSource)))
		savings = append(savings, s.PredictedSavingsPct)
	}
	if sum := rec.EvolutionSummary; sum != nil {
		rule(out)
		fmt.Fprintf(out, "  Drift %+.1f points (%s), price volatility %.2fp\n",
			sum.SavingsDrift, sum.SavingsDriftDirection, sum.PriceVolatility)
	}
	if a := rec.ActualResult; a != nil {
		fmt.Fprintf(out, "  Actual: £%.2f at %.2fp/kWh\n", a.ActualCost, a.ActualAvgPrice)
	}
	chart(out, savings, "predicted savings %, oldest first")
	return nil
}

func runEvolutionList(cmd *cobra.Command, asJSON bool) error {
	dates := application.evolution.TrackedDates()
	out := cmd.OutOrStdout()
	if asJSON {
		return printJSON(out, dates)
	}
	if len(dates) == 0 {
		fmt.Fprintln(out, "No target dates tracked")
		return nil
	}
	heading(out, "🔮 Tracked target dates")
	for _, d := range dates {
		latest := application.evolution.LatestSnapshot(d)
		if latest == nil {
			fmt.Fprintf(out, "  %s\n", d)
			continue
		}
		fmt.Fprintf(out, "  %s  %-9s £%5.2f  %5.1f%%\n", d, rating(latest.Rating), latest.PredictedCost, latest.PredictedSavingsPct)
	}
	return nil
}

func runEvolutionDrifted(cmd *cobra.Command, minDrift float64, asJSON bool) error {
	drifted := application.evolution.ForecastsWithDrift(minDrift)
	out := cmd.OutOrStdout()
	if asJSON {
		if drifted == nil {
			drifted = []models.DriftedForecast{}
		}
		return printJSON(out, drifted)
	}
	if len(drifted) == 0 {
		fmt.Fprintf(out, "No forecasts drifted by %.1f points or more\n", minDrift)
		return nil
	}
	heading(out, fmt.Sprintf("🔮 Forecasts drifting %.1f+ points", minDrift))
	for _, d := range drifted {
		fmt.Fprintf(out, "  %s  %5.1f%% → %5.1f%%  (%+.1f over %d snapshots)\n",
			d.TargetDate, d.InitialSavingsPct, d.CurrentSavingsPct, d.SavingsDrift, d.NumSnapshots)
	}
	return nil
}

func runEvolutionCleanup(cmd *cobra.Command) error {
	removed, err := application.evolution.CleanupOldData(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired targets\n", removed)
	return nil
}
