package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/smart-charge/internal/models"
	"github.com/yourusername/smart-charge/internal/repository"
	"github.com/yourusername/smart-charge/internal/tuning"
)

type tuneResult struct {
	Update      bool
	Recommended *models.ThresholdTuningRecord
}

// tune recomputes thresholds from recent recommendations. New values are
// stored and take effect on the next start when tuning is enabled.
func (a *app) tune(ctx context.Context) (*tuneResult, error) {
	update, rec, err := a.tuner.ShouldUpdate(ctx, a.scorer.Config())
	if err != nil {
		return nil, err
	}
	a.log.WithFields(logrus.Fields{
		"update":          update,
		"price_excellent": rec.PriceExcellent,
		"price_good":      rec.PriceGood,
		"using_defaults":  rec.UsingDefaults,
	}).Info("Threshold tuning complete")
	return &tuneResult{Update: update, Recommended: rec}, nil
}

type cleanupResult struct {
	Store     int
	Database  int64
	Evolution int
}

func (r cleanupResult) Total() int {
	return r.Store + int(r.Database) + r.Evolution
}

// cleanup applies every retention policy.
func (a *app) cleanup(ctx context.Context) (cleanupResult, error) {
	var res cleanupResult
	swept, err := a.store.Cleanup(ctx)
	if err != nil {
		return res, err
	}
	res.Store = swept.Total()

	res.Database, err = a.repos.Prune(ctx, repository.RetentionDays{
		Recommendations: a.cfg.Storage.RecommendationDays,
		UserActions:     a.cfg.Storage.UserActionDays,
	})
	if err != nil {
		return res, fmt.Errorf("failed to prune database: %w", err)
	}

	res.Evolution, err = a.evolution.CleanupOldData(ctx)
	if err != nil {
		return res, err
	}
	a.log.WithFields(logrus.Fields{
		"store":     res.Store,
		"database":  res.Database,
		"evolution": res.Evolution,
	}).Info("Retention cleanup complete")
	return res, nil
}

func newTuneCmd() *cobra.Command {
	var history bool
	cmd := &cobra.Command{
		Use:   "tune",
		Short: "Recompute rating thresholds from recent recommendations",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if history {
				heading(out, "🎚  Tuning history")
				for _, r := range application.tuner.History(tuning.HistoryRetentionDays) {
					fmt.Fprintf(out, "  %s  price %.1f/%.1f  carbon %.0f/%.0f  from %d days\n",
						r.LastUpdated.UTC().Format("2006-01-02 15:04"), r.PriceExcellent, r.PriceGood,
						r.CarbonExcellent, r.CarbonGood, r.DaysAnalyzed)
				}
				return nil
			}

			res, err := application.tune(cmd.Context())
			if err != nil {
				return err
			}
			cur := application.scorer.Config()
			rec := res.Recommended
			heading(out, "🎚  Threshold tuning")
			fmt.Fprintf(out, "  Price excellent: %.1fp → %.1fp\n", cur.Price.Excellent, rec.PriceExcellent)
			fmt.Fprintf(out, "  Price good:      %.1fp → %.1fp\n", cur.Price.Good, rec.PriceGood)
			fmt.Fprintf(out, "  Carbon excellent: %.0f → %.0f\n", cur.Carbon.Excellent, rec.CarbonExcellent)
			fmt.Fprintf(out, "  Carbon good:      %.0f → %.0f\n", cur.Carbon.Good, rec.CarbonGood)
			switch {
			case rec.UsingDefaults:
				fmt.Fprintf(out, "  Not enough recommendations yet (need %d), defaults shown\n", tuning.MinObservations)
			case !res.Update:
				fmt.Fprintln(out, "  Current thresholds are close enough, no update needed")
			case application.cfg.Tuning.Enabled:
				fmt.Fprintln(out, "  New thresholds saved and used from the next run")
			default:
				fmt.Fprintln(out, "  New thresholds saved; set tuning.enabled to use them")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&history, "history", false, "Show stored tuning results")
	return cmd
}

func newCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove records past their retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := application.cleanup(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d records (store %d, database %d, evolution %d)\n",
				res.Total(), res.Store, res.Database, res.Evolution)
			return nil
		},
	}
}
