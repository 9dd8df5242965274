// Package planner runs the charging jobs: the daily recommendation, the
// multi-day plan, the forecast comparison and the pre-window reminder.
package planner

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/smart-charge/internal/analyzer"
	"github.com/yourusername/smart-charge/internal/clock"
	"github.com/yourusername/smart-charge/internal/datasource"
	"github.com/yourusername/smart-charge/internal/forecast"
	"github.com/yourusername/smart-charge/internal/logger"
	"github.com/yourusername/smart-charge/internal/metrics"
	"github.com/yourusername/smart-charge/internal/models"
	"github.com/yourusername/smart-charge/internal/notify"
	"github.com/yourusername/smart-charge/internal/repository"
	"github.com/yourusername/smart-charge/internal/store"
)

const (
	DefaultBaselineHour = 18
	MaxPlanDays         = 7
	DefaultReminderLead = 6 * time.Hour

	// lookahead is how far ahead the daily run asks for prices.
	lookahead = 48 * time.Hour
)

var ErrNoPlanData = errors.New("no price data for any planned day")

// Config holds the household parameters every job needs.
type Config struct {
	Region       string
	ChargeKWh    float64
	ChargerKW    float64
	BaselineHour int
	PlanDays     int
	ReminderLead time.Duration
}

// ChargeHours is how long charging kwh takes at the configured rate.
func (c Config) ChargeHours(kwh float64) float64 {
	if kwh <= 0 {
		kwh = c.ChargeKWh
	}
	return kwh / c.ChargerKW
}

func (c *Config) applyDefaults() {
	if c.ChargeKWh <= 0 {
		c.ChargeKWh = models.DefaultEarningsKWh
	}
	if c.ChargerKW <= 0 {
		c.ChargerKW = models.DefaultChargerKW
	}
	if c.BaselineHour < 0 || c.BaselineHour > 23 {
		c.BaselineHour = DefaultBaselineHour
	}
	if c.PlanDays <= 0 || c.PlanDays > MaxPlanDays {
		c.PlanDays = MaxPlanDays
	}
	if c.ReminderLead <= 0 {
		c.ReminderLead = DefaultReminderLead
	}
}

// Sources are the upstream feeds. Chain serves the daily run; the multi-day
// plan and the comparison read Published and Predicted directly.
type Sources struct {
	Chain     *datasource.Chain
	Published datasource.PriceSource
	Predicted datasource.PriceSource
	Carbon    datasource.CarbonSource
}

// Deps holds persistence, trackers and the notification sink.
type Deps struct {
	Store           *store.Store
	Recommendations repository.RecommendationRepository
	Accuracy        *forecast.AccuracyTracker
	Evolution       *forecast.EvolutionTracker
	Notifier        notify.Notifier
}

// Planner coordinates sources, the window selector and the trackers.
type Planner struct {
	cfg       Config
	sources   Sources
	selector  *analyzer.WindowSelector
	store     *store.Store
	recs      repository.RecommendationRepository
	accuracy  *forecast.AccuracyTracker
	evolution *forecast.EvolutionTracker
	notifier  notify.Notifier
	clock     clock.Clock
	logger    *logger.PlannerLogger
	audit     *logger.AuditLogger
}

// New creates a planner. A nil notifier disables notifications.
func New(cfg Config, sources Sources, selector *analyzer.WindowSelector, deps Deps, log *logrus.Logger) *Planner {
	cfg.applyDefaults()
	base := logger.OrDiscard(log)
	n := deps.Notifier
	if n == nil {
		n = notify.NewDisabled(base)
	}
	recs := deps.Recommendations
	if recs == nil {
		recs = deps.Store
	}
	return &Planner{
		cfg:       cfg,
		sources:   sources,
		selector:  selector,
		store:     deps.Store,
		recs:      recs,
		accuracy:  deps.Accuracy,
		evolution: deps.Evolution,
		notifier:  n,
		clock:     deps.Store.Clock(),
		logger:    logger.NewPlannerLogger(base),
		audit:     logger.NewAuditLogger(base),
	}
}

// Config returns the effective configuration.
func (p *Planner) Config() Config {
	return p.cfg
}

// baseline is BaselineHour UTC on day's date.
func (p *Planner) baseline(day time.Time) time.Time {
	d := clock.Today(day.UTC())
	return d.Add(time.Duration(p.cfg.BaselineHour) * time.Hour)
}

// carbonFor fetches carbon for the range, substituting neutral intensity.
func (p *Planner) carbonFor(ctx context.Context, prices []models.PriceSlot, from, to time.Time) ([]models.CarbonSlot, bool) {
	var carbon []models.CarbonSlot
	if p.sources.Carbon != nil {
		c, err := p.sources.Carbon.FetchCarbon(ctx, from, to)
		if err != nil {
			p.logger.WithError(err).Warn("Carbon fetch failed")
		}
		carbon = c
	}
	if len(carbon) == 0 {
		p.logger.LogDegradedCarbon(len(prices), models.NeutralCarbonIntensity)
		return models.NeutralCarbon(prices), true
	}
	return carbon, false
}

// send delivers msg, recording the attempt. Delivery never fails a job.
func (p *Planner) send(ctx context.Context, kind string, msg notify.Message) bool {
	sent, err := p.notifier.Send(ctx, msg)
	if err != nil {
		p.logger.WithError(err).WithField("kind", kind).Error("Notification rejected")
	}
	metrics.RecordNotification(kind, sent)
	return sent
}
