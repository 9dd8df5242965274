package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourusername/smart-charge/internal/clock"
	"github.com/yourusername/smart-charge/internal/costtracker"
	"github.com/yourusername/smart-charge/internal/models"
	"github.com/yourusername/smart-charge/internal/notify"
)

func newLogChargeCmd() *cobra.Command {
	var (
		date string
		kwh  float64
		note string
	)
	cmd := &cobra.Command{
		Use:   "log-charge",
		Short: "Record that the car was charged",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := application.store.Clock().Now().UTC()
			if date == "" {
				date = now.Format(clock.DateLayout)
			}
			if _, err := clock.ParseDate(date, time.UTC); err != nil {
				return fmt.Errorf("invalid --date %q: %w", date, err)
			}

			action := &models.UserAction{
				Timestamp: now,
				Date:      date,
				Action:    models.ActionCharged,
				Note:      note,
			}
			if cmd.Flags().Changed("kwh") {
				action.KWhCharged = &kwh
			}
			if err := application.repos.UserActions.SaveUserAction(cmd.Context(), action); err != nil {
				return fmt.Errorf("failed to log charge: %w", err)
			}
			application.audit.LogChargeLogged(date, action.KWhCharged, note)
			fmt.Fprintf(cmd.OutOrStdout(), "Charge logged for %s\n", date)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Date charged (YYYY-MM-DD, default today)")
	cmd.Flags().Float64Var(&kwh, "kwh", 0, "Energy added in kWh")
	cmd.Flags().StringVar(&note, "note", "", "Free-text note")
	return cmd
}

func newSummaryCmd() *cobra.Command {
	var (
		year, month int
		save        bool
		send        bool
		week        bool
	)
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Monthly charging cost summary against flat-rate baselines",
		Long: `Summarises a month of logged charges. Defaults to last month. --notify saves last month and sends the report.
With --week the last seven days are summarised instead; --week --notify sends that summary.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			kwh := application.cfg.User.TypicalChargeKWh
			out := cmd.OutOrStdout()

			if week {
				var n notify.Notifier
				if send {
					n = application.notifier
				}
				report, err := application.costs.RunWeekly(ctx, n, application.accuracy, kwh)
				if err != nil {
					return err
				}
				printWeekly(out, report)
				return nil
			}

			if send {
				report, err := application.costs.RunMonthly(ctx, application.notifier, kwh)
				if err != nil {
					return err
				}
				printSummary(out, report.Summary, report.Projection)
				if report.Sent {
					fmt.Fprintln(out, "  Report sent")
				}
				return nil
			}

			if year == 0 || month == 0 {
				now := application.store.Clock().Now().UTC()
				last := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
				year, month = last.Year(), int(last.Month())
			}
			if month < 1 || month > 12 {
				return fmt.Errorf("invalid --month %d", month)
			}

			var (
				summary *costtracker.MonthlySummary
				err     error
			)
			if save {
				summary, err = application.costs.SaveMonthlyAggregate(ctx, year, month, kwh)
			} else {
				summary, err = application.costs.MonthlySummary(ctx, year, month, kwh)
			}
			if err != nil {
				return err
			}
			printSummary(out, summary, application.costs.YearlyProjection(year))
			return nil
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "Year to summarise")
	cmd.Flags().IntVar(&month, "month", 0, "Month to summarise (1-12)")
	cmd.Flags().BoolVar(&save, "save", false, "Store the summary in the cost history")
	cmd.Flags().BoolVar(&send, "notify", false, "Save last month and send the report")
	cmd.Flags().BoolVar(&week, "week", false, "Summarise the last seven days")
	cmd.MarkFlagsMutuallyExclusive("week", "save")
	cmd.MarkFlagsMutuallyExclusive("week", "month")
	return cmd
}

func printSummary(out io.Writer, s *costtracker.MonthlySummary, p costtracker.Projection) {
	heading(out, fmt.Sprintf("💰 Charging costs %s", s.Period()))
	if s.NumCharges == 0 {
		fmt.Fprintln(out, "  No charges logged")
	} else {
		fmt.Fprintf(out, "  Charges: %d  total £%.2f  avg £%.2f\n", s.NumCharges, s.TotalCost, s.AvgCostPerCharge)
		fmt.Fprintf(out, "  Saved £%.2f vs %.0fp standard, £%.2f vs %.0fp peak\n",
			s.Baselines.StandardSavings, costtracker.StandardRate, s.Baselines.PeakSavings, costtracker.PeakRate)
		fmt.Fprintf(out, "  Adherence %.1f%% (%d of %d good days)\n", s.AdherenceRate, s.ChargesOnGoodDays, s.GoodOpportunities)
		for _, r := range []models.Rating{models.RatingExcellent, models.RatingGood, models.RatingAverage, models.RatingPoor} {
			if n := s.ChargesByRating[r]; n > 0 {
				fmt.Fprintf(out, "    %s %d\n", rating(r), n)
			}
		}
	}
	if p.MonthsOfData > 0 {
		rule(out)
		fmt.Fprintf(out, "  %d to date: £%.2f spent, £%.2f saved over %d months\n", p.Year, p.YTDCost, p.YTDSavings, p.MonthsOfData)
		fmt.Fprintf(out, "  Projected year: £%.2f spent, £%.2f saved, %d charges\n",
			p.ProjectedAnnualCost, p.ProjectedAnnualSavings, p.ProjectedAnnualCharges)
	}
}

func printWeekly(out io.Writer, r *costtracker.WeeklyReport) {
	if r.Skipped != "" {
		fmt.Fprintf(out, "No weekly summary: %s\n", r.Skipped)
		return
	}
	w := r.Summary
	heading(out, fmt.Sprintf("📊 Week %s to %s", w.From, w.To))
	for _, rt := range []models.Rating{models.RatingExcellent, models.RatingGood, models.RatingAverage, models.RatingPoor} {
		if n := w.RatingCounts[rt]; n > 0 {
			fmt.Fprintf(out, "    %s %d days\n", rating(rt), n)
		}
	}
	fmt.Fprintf(out, "  Charges: %d  on good days %d/%d  adherence %.1f%%\n",
		w.NumCharges, w.ChargesOnGoodDays, w.GoodOpportunities, w.AdherenceRate)
	fmt.Fprintf(out, "  Spent £%.2f, saved £%.2f vs %.0fp standard\n", w.ActualCost, w.RealizedSavings, costtracker.StandardRate)
	if w.Weekday.Days > 0 && w.Weekend.Days > 0 {
		fmt.Fprintf(out, "  Weekday avg %.2fp over %d days, weekend avg %.2fp over %d days\n",
			w.Weekday.AvgPrice, w.Weekday.Days, w.Weekend.AvgPrice, w.Weekend.Days)
	}
	if r.Sent {
		fmt.Fprintln(out, "  Summary sent")
	}
}
