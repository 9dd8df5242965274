package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourusername/smart-charge/internal/planner"
)

func newRecommendCmd() *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Select tonight's charging window and notify when it is exceptional",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := application.planner.RunDaily(cmd.Context(), !quiet)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			heading(out, "⚡ Charging recommendation")
			printWindow(out, res.Window, res.Source)
			if res.DegradedCarbon {
				fmt.Fprintln(out, subtle("  carbon intensity unavailable, neutral values assumed"))
			}
			if n := len(res.NegativeSlots); n > 0 {
				fmt.Fprintf(out, "  Negative pricing in %d slots (cheapest %.2fp/kWh)\n", n, res.NegativeSlots[0].Price)
			}
			if res.Notified || res.NegativeAlert {
				fmt.Fprintln(out, "  Notification sent")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&quiet, "no-notify", false, "Do not send notifications")
	return cmd
}

func newPlanCmd() *cobra.Command {
	var (
		days   int
		kwh    float64
		dryRun bool
		alerts bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Compare the best charging window over the coming days",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := application.planner.GeneratePlan(cmd.Context(), planner.PlanOptions{
				Days:   days,
				KWh:    kwh,
				Notify: !dryRun,
				Alerts: alerts && !dryRun,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, res.Plan)
			}

			plan := res.Plan
			heading(out, fmt.Sprintf("📅 %d-day charging plan (%.0f kWh)", len(plan.Days), plan.ChargeKWh))
			for _, d := range plan.Days {
				fmt.Fprintf(out, "  %-9s %s  %-9s £%5.2f  %5.2fp/kWh  %s\n",
					d.DayName, d.Date, rating(d.Rating), d.Cost, d.AvgPrice, subtle(string(d.PriceSource)))
			}
			rule(out)
			best := plan.BestDay
			fmt.Fprintf(out, "  Best: %s (%s) £%.2f, saves £%.2f (%.0f%%)\n", best.DayName, best.Date, best.Cost, best.Savings, best.Percentage)
			fmt.Fprintf(out, "  %s\n", best.Reason)
			for _, c := range res.Changes {
				fmt.Fprintf(out, "  Forecast for %s %s: %.1f%% → %.1f%%\n",
					c.TargetDate, c.DriftDirection, c.PreviousSavingsPct, c.CurrentSavingsPct)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Number of days to plan (1-7, default from config)")
	cmd.Flags().Float64Var(&kwh, "kwh", 0, "Energy to add in kWh (default from config)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Do not send notifications")
	cmd.Flags().BoolVar(&alerts, "alerts", false, "Notify on significant forecast changes")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the plan as JSON")
	return cmd
}

func newCompareCmd() *cobra.Command {
	var history bool
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Score today's price forecast against published prices",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if history {
				return printAccuracyHistory(cmd, application.cfg.Forecast.AccuracyDays)
			}

			res, err := application.planner.RunComparison(cmd.Context())
			if err != nil {
				return err
			}
			if res.Skipped != "" {
				fmt.Fprintf(out, "Comparison skipped: %s\n", res.Skipped)
				return nil
			}
			r := res.Record
			heading(out, fmt.Sprintf("📈 Forecast accuracy for %s", r.Date))
			fmt.Fprintf(out, "  Hours compared: %d\n", r.NumHours)
			fmt.Fprintf(out, "  MAE %.2fp  bias %+.2fp  RMSE %.2fp\n", r.MeanAbsoluteError, r.MeanError, r.RMSE)
			fmt.Fprintf(out, "  Forecast avg %.2fp vs actual %.2fp\n", r.ForecastAvg, r.ActualAvg)
			fmt.Fprintf(out, "  Reliability: %s", res.Grade)
			if !res.Trusted {
				fmt.Fprint(out, "  (forecast not trusted)")
			}
			fmt.Fprintln(out)
			chart(out, r.Errors, "hourly error, p/kWh (actual - forecast)")
			return nil
		},
	}
	cmd.Flags().BoolVar(&history, "history", false, "Show the recent accuracy summary instead of running a comparison")
	return cmd
}

func printAccuracyHistory(cmd *cobra.Command, days int) error {
	out := cmd.OutOrStdout()
	s := application.accuracy.RecentAccuracy(days)
	heading(out, fmt.Sprintf("📈 Forecast accuracy, last %d days", days))
	if s.NumComparisons == 0 {
		fmt.Fprintln(out, "  No comparisons recorded yet")
		return nil
	}
	fmt.Fprintf(out, "  Comparisons: %d  trend: %s  grade: %s\n", s.NumComparisons, s.Trend, application.accuracy.ReliabilityGrade(days))
	fmt.Fprintf(out, "  MAE %s  median %s  bias %s\n", pct(s.MeanAbsoluteError), pct(s.MedianAbsoluteError), pct(s.SystematicBias))
	fmt.Fprintf(out, "  Best day %s  worst day %s\n", pct(s.BestDayMAE), pct(s.WorstDayMAE))
	if s.NegativePricingPredicts > 0 {
		fmt.Fprintf(out, "  Negative pricing: %d/%d predictions correct\n", s.NegativePricingCorrect, s.NegativePricingPredicts)
	}

	var maes []float64
	for _, c := range application.accuracy.Comparisons() {
		maes = append(maes, c.MeanAbsoluteError)
	}
	chart(out, maes, "daily MAE, p/kWh")
	return nil
}

func newRemindCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remind",
		Short: "Remind to plug in when a good window is about to open",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := application.planner.RunReminder(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.Skipped != "" {
				fmt.Fprintf(out, "No reminder: %s\n", res.Skipped)
				return nil
			}
			start := res.Recommendation.WindowStart.UTC().Format(time.Kitchen)
			if res.Sent {
				fmt.Fprintf(out, "Reminder sent for the %s window\n", start)
			} else {
				fmt.Fprintf(out, "Reminder for the %s window was not delivered\n", start)
			}
			return nil
		},
	}
}
