// Package forecast tracks forecast accuracy against settled prices and how
// predictions for a target date evolve as the date approaches.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/smart-charge/internal/clock"
	"github.com/yourusername/smart-charge/internal/logger"
	"github.com/yourusername/smart-charge/internal/models"
	"github.com/yourusername/smart-charge/internal/stats"
	"github.com/yourusername/smart-charge/internal/store"
)

var (
	ErrValidation     = errors.New("forecast validation error")
	ErrLengthMismatch = fmt.Errorf("%w: forecast and actual series differ in length", ErrValidation)
	ErrEmptySeries    = fmt.Errorf("%w: series are empty", ErrLengthMismatch)
)

const (
	// MaxComparisons is the number of most recent daily comparisons kept.
	MaxComparisons = 90
	// DefaultAccuracyDays is the default look-back for summaries and grading.
	DefaultAccuracyDays = 30
	// DefaultTrustDays is the default look-back for ShouldTrustForecast.
	DefaultTrustDays = 7

	storedErrors   = 10
	trendWindow    = 7
	trendThreshold = 0.5
	minGraded      = 3
	trustMAE       = 4.0
)

// AccuracyTracker records daily forecast-versus-actual comparisons.
type AccuracyTracker struct {
	store  *store.Store
	clock  clock.Clock
	logger *logger.ForecastLogger
}

// NewAccuracyTracker creates a tracker persisting to st.
func NewAccuracyTracker(st *store.Store, log *logrus.Logger) *AccuracyTracker {
	return &AccuracyTracker{
		store:  st,
		clock:  st.Clock(),
		logger: logger.NewForecastLogger(logger.OrDiscard(log)),
	}
}

// RecordComparison computes error statistics for date and stores them,
// replacing any previous record for the same date.
// Errors are actual - forecast, so a positive mean error means the forecast was too low.
func (t *AccuracyTracker) RecordComparison(ctx context.Context, date time.Time, forecast, actual []float64, source string) (*models.ComparisonRecord, error) {
	if len(forecast) != len(actual) {
		return nil, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(forecast), len(actual))
	}
	if len(forecast) == 0 {
		return nil, ErrEmptySeries
	}

	errs := make([]float64, len(forecast))
	abs := make([]float64, len(forecast))
	for i := range forecast {
		errs[i] = actual[i] - forecast[i]
		abs[i] = math.Abs(errs[i])
	}
	minAbs, maxAbs := stats.MinMax(abs)
	fMin, fMax := stats.MinMax(forecast)
	aMin, aMax := stats.MinMax(actual)

	forecastNegative := fMin < 0
	actualNegative := aMin < 0

	rec := &models.ComparisonRecord{
		Date:              date.Format(clock.DateLayout),
		Timestamp:         t.clock.Now(),
		ForecastSource:    source,
		NumHours:          len(forecast),
		MeanAbsoluteError: stats.Mean(abs),
		MeanError:         stats.Mean(errs),
		RMSE:              stats.RMSE(errs),
		MaxError:          maxAbs,
		MinError:          minAbs,
		ForecastAvg:       stats.Mean(forecast),
		ActualAvg:         stats.Mean(actual),
		ForecastMin:       fMin,
		ActualMin:         aMin,
		ForecastMax:       fMax,
		ActualMax:         aMax,
		Errors:            append([]float64(nil), errs[:min(storedErrors, len(errs))]...),
		NegativePricing: models.NegativePricingOutcome{
			ForecastPredicted: forecastNegative,
			ActuallyOccurred:  actualNegative,
			CorrectPrediction: forecastNegative == actualNegative,
		},
	}
	if err := t.store.Validate(rec); err != nil {
		return nil, err
	}

	err := store.Update(ctx, t.store, store.ForecastAccuracy, func(all *[]models.ComparisonRecord) error {
		kept := make([]models.ComparisonRecord, 0, len(*all)+1)
		for _, c := range *all {
			if c.Date != rec.Date {
				kept = append(kept, c)
			}
		}
		kept = append(kept, *rec)
		sort.SliceStable(kept, func(i, j int) bool { return kept[i].Date > kept[j].Date })
		if len(kept) > MaxComparisons {
			kept = kept[:MaxComparisons]
		}
		*all = kept
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save comparison: %w", err)
	}

	t.logger.LogComparisonRecorded(rec.Date, source, rec.NumHours, rec.MeanAbsoluteError, rec.MeanError, rec.RMSE)
	return rec, nil
}

// Comparisons returns every stored record, newest first.
func (t *AccuracyTracker) Comparisons() []models.ComparisonRecord {
	all := store.Load[[]models.ComparisonRecord](t.store, store.ForecastAccuracy)
	sort.SliceStable(all, func(i, j int) bool { return all[i].Date > all[j].Date })
	return all
}

// RecentAccuracy aggregates the days most recently dated comparisons.
func (t *AccuracyTracker) RecentAccuracy(days int) models.AccuracySummary {
	all := t.Comparisons()
	if len(all) == 0 {
		return models.AccuracySummary{PeriodDays: days, Trend: models.TrendInsufficientData}
	}
	recent := all[:min(days, len(all))]
	if len(recent) == 0 {
		return models.AccuracySummary{PeriodDays: days, Trend: models.TrendNoRecentData}
	}

	maes := make([]float64, len(recent))
	biases := make([]float64, len(recent))
	var negPredicted, negCorrect int
	for i, c := range recent {
		maes[i] = c.MeanAbsoluteError
		biases[i] = c.MeanError
		if c.NegativePricing.ForecastPredicted {
			negPredicted++
			if c.NegativePricing.CorrectPrediction {
				negCorrect++
			}
		}
	}

	mae := stats.Mean(maes)
	median := stats.UpperMedian(maes)
	bias := stats.Mean(biases)
	best, worst := stats.MinMax(maes)
	lastUpdated := recent[0].Timestamp

	summary := models.AccuracySummary{
		NumComparisons:          len(recent),
		PeriodDays:              days,
		MeanAbsoluteError:       &mae,
		MedianAbsoluteError:     &median,
		SystematicBias:          &bias,
		BestDayMAE:              &best,
		WorstDayMAE:             &worst,
		Trend:                   trendOf(maes),
		NegativePricingPredicts: negPredicted,
		NegativePricingCorrect:  negCorrect,
		LastUpdated:             &lastUpdated,
	}
	if negPredicted > 0 {
		ratio := float64(negCorrect) / float64(negPredicted)
		summary.NegativePricingAccuracy = &ratio
	}
	return summary
}

// trendOf compares the newest seven MAEs with up to seven before them.
func trendOf(maes []float64) models.Trend {
	if len(maes) <= trendWindow {
		return models.TrendInsufficientData
	}
	recent := stats.Mean(maes[:trendWindow])
	older := stats.Mean(maes[trendWindow:min(2*trendWindow, len(maes))])
	switch {
	case recent < older-trendThreshold:
		return models.TrendImproving
	case recent > older+trendThreshold:
		return models.TrendDegrading
	default:
		return models.TrendStable
	}
}

// ReliabilityGrade buckets the recent MAE.
func (t *AccuracyTracker) ReliabilityGrade(days int) models.ReliabilityGrade {
	s := t.RecentAccuracy(days)
	if s.NumComparisons < minGraded || s.MeanAbsoluteError == nil {
		return models.GradeUnknown
	}
	switch mae := *s.MeanAbsoluteError; {
	case mae < 2.0:
		return models.GradeExcellent
	case mae < 3.0:
		return models.GradeGood
	case mae < 5.0:
		return models.GradeFair
	default:
		return models.GradePoor
	}
}

// ShouldTrustForecast is true with fewer than three comparisons or a recent MAE under 4p.
func (t *AccuracyTracker) ShouldTrustForecast(days int) bool {
	s := t.RecentAccuracy(days)
	if s.NumComparisons < minGraded {
		return true
	}
	return s.MeanAbsoluteError != nil && *s.MeanAbsoluteError < trustMAE
}

// RecentMAE returns the mean MAE over days, or nil without data.
func (t *AccuracyTracker) RecentMAE(days int) *float64 {
	return t.RecentAccuracy(days).MeanAbsoluteError
}
