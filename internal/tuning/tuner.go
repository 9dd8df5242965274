// Package tuning derives scoring thresholds from recent recommendation history.
package tuning

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/smart-charge/internal/analyzer"
	"github.com/yourusername/smart-charge/internal/clock"
	"github.com/yourusername/smart-charge/internal/logger"
	"github.com/yourusername/smart-charge/internal/models"
	"github.com/yourusername/smart-charge/internal/stats"
	"github.com/yourusername/smart-charge/internal/store"
)

const (
	// MinObservations is the sample size below which defaults are used.
	MinObservations = 7
	// DefaultWindowDays is the look-back used by ShouldUpdate.
	DefaultWindowDays = 30
	// HistoryRetentionDays bounds the stored tuning records.
	HistoryRetentionDays = 90
	// UpdateDelta is the price difference, in pence, that warrants new thresholds.
	UpdateDelta = 2.0

	defaultPriceExcellent  = 10.0
	defaultPriceGood       = 15.0
	defaultCarbonExcellent = 100.0
	defaultCarbonGood      = 150.0
)

// RecommendationReader lists recommendations saved within the last days.
type RecommendationReader interface {
	Recommendations(ctx context.Context, days int) ([]models.Recommendation, error)
}

// Tuner recomputes price and carbon thresholds from the quartiles of recent
// recommended window averages.
type Tuner struct {
	recs       RecommendationReader
	store      *store.Store
	clock      clock.Clock
	windowDays int
	logger     logrus.FieldLogger
	audit      *logger.AuditLogger
}

// NewTuner creates a tuner reading from recs and recording results in st.
func NewTuner(recs RecommendationReader, st *store.Store, windowDays int, log *logrus.Logger) *Tuner {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	base := logger.OrDiscard(log)
	return &Tuner{
		recs:       recs,
		store:      st,
		clock:      st.Clock(),
		windowDays: windowDays,
		logger:     base.WithField("component", "tuning"),
		audit:      logger.NewAuditLogger(base),
	}
}

// OptimalThresholds returns the 25th and 50th percentiles of prices rounded
// to 1dp, or the defaults with fewer than seven prices.
func OptimalThresholds(prices []float64) (excellent, good float64) {
	if len(prices) < MinObservations {
		return defaultPriceExcellent, defaultPriceGood
	}
	return stats.Round(stats.Quantile(prices, 0.25), 1), stats.Round(stats.Median(prices), 1)
}

// CarbonThresholds is OptimalThresholds for carbon, rounded to whole grams.
func CarbonThresholds(carbon []float64) (excellent, good float64) {
	if len(carbon) < MinObservations {
		return defaultCarbonExcellent, defaultCarbonGood
	}
	return stats.Round(stats.Quantile(carbon, 0.25), 0), stats.Round(stats.Median(carbon), 0)
}

// Defaults returns the untuned thresholds flagged as such.
func (t *Tuner) Defaults() *models.ThresholdTuningRecord {
	return &models.ThresholdTuningRecord{
		PriceExcellent:  defaultPriceExcellent,
		PriceGood:       defaultPriceGood,
		CarbonExcellent: defaultCarbonExcellent,
		CarbonGood:      defaultCarbonGood,
		LastUpdated:     t.clock.Now(),
		UsingDefaults:   true,
	}
}

// RecommendedThresholds analyses recommendations dated within the last days.
// With enough data the result is appended to the tuning history; otherwise
// defaults are returned and nothing is stored.
func (t *Tuner) RecommendedThresholds(ctx context.Context, days int) (*models.ThresholdTuningRecord, error) {
	all, err := t.recs.Recommendations(ctx, days+1)
	if err != nil {
		return nil, fmt.Errorf("failed to load recommendations: %w", err)
	}

	now := t.clock.Now()
	cutoff := clock.Today(now).AddDate(0, 0, -days)
	var prices, carbon []float64
	for _, r := range all {
		if clock.Today(r.Timestamp.In(now.Location())).Before(cutoff) {
			continue
		}
		prices = append(prices, r.AvgPrice)
		carbon = append(carbon, float64(r.AvgCarbon))
	}

	if len(prices) < MinObservations {
		t.logger.WithField("recommendations", len(prices)).Warn("Too few recent recommendations, using default thresholds")
		return t.Defaults(), nil
	}

	priceExc, priceGood := OptimalThresholds(prices)
	carbonExc, carbonGood := CarbonThresholds(carbon)
	lo, hi := stats.MinMax(prices)
	rec := &models.ThresholdTuningRecord{
		PriceExcellent:  priceExc,
		PriceGood:       priceGood,
		CarbonExcellent: carbonExc,
		CarbonGood:      carbonGood,
		DaysAnalyzed:    len(prices),
		PriceRange:      models.PriceRange{Min: lo, Max: hi, Mean: stats.Round(stats.Mean(prices), 2)},
		LastUpdated:     now,
	}
	if err := t.store.Validate(rec); err != nil {
		return nil, err
	}

	historyCutoff := now.AddDate(0, 0, -HistoryRetentionDays)
	err = store.Update(ctx, t.store, store.ThresholdTuning, func(records *[]models.ThresholdTuningRecord) error {
		kept := (*records)[:0]
		for _, r := range *records {
			if !r.LastUpdated.Before(historyCutoff) {
				kept = append(kept, r)
			}
		}
		*records = append(kept, *rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save tuning record: %w", err)
	}

	t.logger.WithFields(logrus.Fields{
		"days_analyzed":    rec.DaysAnalyzed,
		"price_excellent":  rec.PriceExcellent,
		"price_good":       rec.PriceGood,
		"carbon_excellent": rec.CarbonExcellent,
		"carbon_good":      rec.CarbonGood,
	}).Info("Calculated recommended thresholds")
	return rec, nil
}

// ShouldUpdate reports whether either current price threshold is more than
// UpdateDelta away from the recommendation, returning the recommendation too.
func (t *Tuner) ShouldUpdate(ctx context.Context, current analyzer.Config) (bool, *models.ThresholdTuningRecord, error) {
	rec, err := t.RecommendedThresholds(ctx, t.windowDays)
	if err != nil {
		return false, nil, err
	}
	update := math.Abs(current.Price.Excellent-rec.PriceExcellent) > UpdateDelta ||
		math.Abs(current.Price.Good-rec.PriceGood) > UpdateDelta
	return update, rec, nil
}

// History returns tuning records from the last days, newest first.
func (t *Tuner) History(days int) []models.ThresholdTuningRecord {
	cutoff := t.clock.Now().AddDate(0, 0, -days)
	var out []models.ThresholdTuningRecord
	for _, r := range store.Load[[]models.ThresholdTuningRecord](t.store, store.ThresholdTuning) {
		if !r.LastUpdated.Before(cutoff) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastUpdated.After(out[j].LastUpdated) })
	return out
}

// Apply returns a scorer using rec's thresholds, auditing each changed value.
func (t *Tuner) Apply(scorer *analyzer.Scorer, rec *models.ThresholdTuningRecord) (*analyzer.Scorer, error) {
	tuned, err := scorer.WithThresholds(rec.PriceExcellent, rec.PriceGood, rec.CarbonExcellent, rec.CarbonGood)
	if err != nil {
		return nil, err
	}
	before, after := scorer.Config(), tuned.Config()
	changes := []struct {
		name     string
		old, new float64
	}{
		{"price_excellent", before.Price.Excellent, after.Price.Excellent},
		{"price_good", before.Price.Good, after.Price.Good},
		{"carbon_excellent", before.Carbon.Excellent, after.Carbon.Excellent},
		{"carbon_good", before.Carbon.Good, after.Carbon.Good},
	}
	for _, c := range changes {
		if c.old != c.new {
			t.audit.LogThresholdChange(c.name, c.old, c.new, rec.DaysAnalyzed)
		}
	}
	return tuned, nil
}
