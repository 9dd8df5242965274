package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourusername/smart-charge/internal/health"
	"github.com/yourusername/smart-charge/internal/models"
	"github.com/yourusername/smart-charge/internal/planner"
	"github.com/yourusername/smart-charge/internal/scheduler"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run every job on its schedule and serve health and metrics endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			return application.serve(cmd.Context())
		},
	}
}

// jobs maps the configured schedule onto the one-shot operations.
func (a *app) jobs() scheduler.Jobs {
	j := scheduler.Jobs{
		Daily: func(ctx context.Context) error {
			_, err := a.planner.RunDaily(ctx, true)
			return err
		},
		Plan: func(ctx context.Context) error {
			_, err := a.planner.GeneratePlan(ctx, planner.PlanOptions{Notify: true, Alerts: true})
			return err
		},
		Comparison: func(ctx context.Context) error {
			_, err := a.planner.RunComparison(ctx)
			return err
		},
		Reminder: func(ctx context.Context) error {
			_, err := a.planner.RunReminder(ctx)
			return err
		},
		Cleanup: func(ctx context.Context) error {
			_, err := a.cleanup(ctx)
			return err
		},
		Weekly: func(ctx context.Context) error {
			_, err := a.costs.RunWeekly(ctx, a.notifier, a.accuracy, a.cfg.User.TypicalChargeKWh)
			return err
		},
		Monthly: func(ctx context.Context) error {
			_, err := a.costs.RunMonthly(ctx, a.notifier, a.cfg.User.TypicalChargeKWh)
			return err
		},
	}
	if a.cfg.Tuning.Enabled {
		j.Tune = func(ctx context.Context) error {
			res, err := a.tune(ctx)
			if err == nil && res.Update {
				a.log.Info("New thresholds stored, restart to apply them")
			}
			return err
		}
	}
	return j
}

func (a *app) serve(ctx context.Context) error {
	sched := scheduler.NewScheduler(a.log)
	if err := sched.ScheduleAll(a.cfg.Schedule, a.jobs()); err != nil {
		return err
	}

	var pinger health.DatabasePinger
	if a.db != nil {
		pinger = a.db
	}
	srv := health.NewServer(health.Config{
		ServiceName: a.cfg.App.Name,
		Version:     Version,
		Port:        a.cfg.Metrics.Port,
		MetricsPath: a.cfg.Metrics.Path,
		Logger:      a.log,
		DB:          pinger,
		Checks: map[string]health.CheckFunc{
			"scheduler": func(context.Context) error {
				if !sched.IsRunning() {
					return errors.New("scheduler stopped")
				}
				return nil
			},
			"price_api": func(context.Context) error {
				if a.http.IsOpen() {
					return errors.New("circuit breaker open")
				}
				return nil
			},
		},
		Status: func(ctx context.Context) (*models.Recommendation, time.Time, error) {
			rec, err := a.repos.Recommendations.LatestRecommendation(ctx)
			return rec, sched.NextRun(), err
		},
	})

	if err := srv.Start(ctx); err != nil {
		return err
	}
	if err := sched.Start(); err != nil {
		return err
	}
	srv.SetReady(true)
	a.log.WithField("jobs", sched.JobNames()).Info("smartcharge serving")

	<-ctx.Done()
	a.log.Info("Shutting down")
	srv.SetReady(false)
	return sched.Stop()
}
