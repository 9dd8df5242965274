package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/smart-charge/internal/analyzer"
	"github.com/yourusername/smart-charge/internal/config"
	"github.com/yourusername/smart-charge/internal/costtracker"
	"github.com/yourusername/smart-charge/internal/database"
	"github.com/yourusername/smart-charge/internal/datasource"
	"github.com/yourusername/smart-charge/internal/forecast"
	"github.com/yourusername/smart-charge/internal/logger"
	"github.com/yourusername/smart-charge/internal/metrics"
	"github.com/yourusername/smart-charge/internal/notify"
	"github.com/yourusername/smart-charge/internal/planner"
	"github.com/yourusername/smart-charge/internal/repository"
	"github.com/yourusername/smart-charge/internal/store"
	"github.com/yourusername/smart-charge/internal/tuning"
)

// app is the wired dependency graph shared by every command.
type app struct {
	cfg       *config.Config
	log       *logrus.Logger
	http      *datasource.RateLimitedHTTPClient
	store     *store.Store
	db        *database.DB
	repos     *repository.Repositories
	published *datasource.CachedPriceSource
	predicted *datasource.CachedPriceSource
	notifier  notify.Notifier
	scorer    *analyzer.Scorer
	tuner     *tuning.Tuner
	accuracy  *forecast.AccuracyTracker
	evolution *forecast.EvolutionTracker
	planner   *planner.Planner
	costs     *costtracker.Tracker
	audit     *logger.AuditLogger

	closeOnce sync.Once
}

func newApp(ctx context.Context, path string) (*app, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := config.LoadSecretsFromAWS(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to load secrets: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log := logger.NewLoggerFor(cfg.App.LogLevel, cfg.App.Environment)
	log.SetOutput(os.Stderr)
	metrics.InitRegistry()

	a := &app{cfg: cfg, log: log, audit: logger.NewAuditLogger(log)}

	a.store, err = store.New(cfg.Storage.DataDir, log, store.WithRetention(store.Retention{
		ForecastDays:       cfg.Storage.ForecastDays,
		RecommendationDays: cfg.Storage.RecommendationDays,
		UserActionDays:     cfg.Storage.UserActionDays,
		PlanDays:           cfg.Storage.PlanDays,
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to open data store: %w", err)
	}

	if cfg.UsesPostgres() {
		a.db, err = database.Initialize(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.repos, err = repository.NewRepositories(a.db, a.store.Clock())
		if err != nil {
			a.db.Close()
			return nil, fmt.Errorf("failed to initialize repositories: %w", err)
		}
	} else {
		a.repos = repository.NewJSONRepositories(a.store)
	}

	httpCfg := datasource.DefaultHTTPClientConfig()
	httpCfg.Timeout = cfg.APITimeout()
	httpCfg.MaxRetries = cfg.APIs.MaxRetries
	httpCfg.RateLimit = float64(cfg.APIs.RateLimit)
	a.http = datasource.NewRateLimitedHTTPClient(httpCfg, log)

	if err := a.wireScoring(); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.wireNotifier(); err != nil {
		a.Close()
		return nil, err
	}
	a.wirePlanner()

	log.WithFields(logrus.Fields{
		"environment": cfg.App.Environment,
		"region":      cfg.User.Region,
		"backend":     cfg.Storage.Backend,
	}).Debug("smartcharge initialised")
	return a, nil
}

// wireScoring builds the scorer from config, then applies the latest tuning
// record when auto-tuning is enabled.
func (a *app) wireScoring() error {
	sc := a.cfg.Scoring
	scorer, err := analyzer.NewScorer(analyzer.Config{
		PriceWeight:  sc.PriceWeight,
		CarbonWeight: sc.CarbonWeight,
		Price:        analyzer.ThresholdSet(sc.PriceThresholds),
		Carbon:       analyzer.ThresholdSet(sc.CarbonThresholds),
	})
	if err != nil {
		return fmt.Errorf("invalid scoring configuration: %w", err)
	}

	a.tuner = tuning.NewTuner(a.repos.Recommendations, a.store, a.cfg.Tuning.WindowDays, a.log)
	if a.cfg.Tuning.Enabled {
		if history := a.tuner.History(tuning.HistoryRetentionDays); len(history) > 0 {
			tuned, err := a.tuner.Apply(scorer, &history[0])
			if err != nil {
				a.log.WithError(err).Warn("Stored thresholds rejected, keeping configured values")
			} else {
				scorer = tuned
			}
		}
	}
	a.scorer = scorer

	c := scorer.Config()
	metrics.UpdateThresholds(c.Price.Excellent, c.Price.Good, c.Carbon.Excellent, c.Carbon.Good)
	return nil
}

func (a *app) wireNotifier() error {
	po := a.cfg.Notifications.Pushover
	if !po.Enabled {
		a.notifier = notify.NewDisabled(a.log)
		return nil
	}
	client, err := notify.NewPushoverClient(notify.Config{
		UserKey:  po.UserKey,
		APIToken: po.APIToken,
		MaxDaily: po.MaxDaily,
	}, a.http, a.store, a.log)
	if err != nil {
		return fmt.Errorf("failed to configure pushover: %w", err)
	}
	a.notifier = client
	return nil
}

func (a *app) wirePlanner() {
	cfg := a.cfg
	octopus := datasource.NewOctopusClient(a.http, cfg.APIs.OctopusBaseURL, cfg.APIs.OctopusProduct, a.log)
	predictor := datasource.NewForecastClient(a.http, cfg.APIs.ForecastURL, a.log,
		datasource.WithForecastClock(a.store.Clock()))
	a.published = datasource.NewCachedPriceSource(octopus, cfg.CacheTTL())
	a.predicted = datasource.NewCachedPriceSource(predictor, cfg.CacheTTL())
	carbon := datasource.NewCarbonClient(a.http, cfg.APIs.CarbonBaseURL, a.log)

	chain := datasource.NewChain(a.log,
		datasource.PublishedStrategy{Source: a.published},
		datasource.PredictedStrategy{Source: a.predicted},
	)

	a.accuracy = forecast.NewAccuracyTracker(a.store, a.log)
	a.evolution = forecast.NewEvolutionTracker(a.store, forecast.EvolutionConfig{
		RetentionDays:     cfg.Forecast.RetentionDays,
		SignificantChange: cfg.Forecast.SignificantChange,
	}, a.log)

	a.planner = planner.New(planner.Config{
		Region:       cfg.User.Region,
		ChargeKWh:    cfg.User.TypicalChargeKWh,
		ChargerKW:    cfg.User.ChargingRateKW,
		BaselineHour: cfg.User.BaselineHour,
		PlanDays:     cfg.User.PlanDays,
		ReminderLead: cfg.ReminderLead(),
	}, planner.Sources{
		Chain:     chain,
		Published: a.published,
		Predicted: a.predicted,
		Carbon:    carbon,
	}, analyzer.NewWindowSelector(a.scorer, cfg.User.ChargingRateKW), planner.Deps{
		Store:           a.store,
		Recommendations: a.repos.Recommendations,
		Accuracy:        a.accuracy,
		Evolution:       a.evolution,
		Notifier:        a.notifier,
	}, a.log)

	a.costs = costtracker.NewTracker(a.repos, a.store, a.log)
}

// Close writes the metrics textfile and releases connections.
func (a *app) Close() error {
	var err error
	a.closeOnce.Do(func() {
		if path := a.cfg.Metrics.Textfile; path != "" {
			if werr := metrics.WriteTextfile(path); werr != nil {
				a.log.WithError(werr).Warn("Failed to write metrics textfile")
			}
		}
		if a.published != nil {
			hits, misses, ratio := a.published.Stats()
			a.log.WithFields(logrus.Fields{
				"hits":   hits,
				"misses": misses,
				"ratio":  ratio,
			}).Debug("Price cache statistics")
		}
		if a.http != nil {
			err = a.http.Close()
		}
		if a.db != nil {
			a.db.Close()
		}
	})
	return err
}
