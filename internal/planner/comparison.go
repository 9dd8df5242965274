package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/smart-charge/internal/clock"
	"github.com/yourusername/smart-charge/internal/metrics"
	"github.com/yourusername/smart-charge/internal/models"
)

const (
	hoursPerDay = 24
	// minComparedHours is the least overlap worth scoring.
	minComparedHours = 20
)

var (
	ErrIncompleteActuals = errors.New("published prices do not cover every hour of the day")
	ErrNoTracker         = errors.New("accuracy tracker not configured")
)

// ComparisonResult is the outcome of one forecast-versus-actual run.
type ComparisonResult struct {
	Record  *models.ComparisonRecord
	Skipped string
	Grade   models.ReliabilityGrade
	Trusted bool
	Summary models.AccuracySummary
}

// RunComparison scores today's forecast against today's published prices,
// hour by hour, and closes today's evolution record with the actual result.
func (p *Planner) RunComparison(ctx context.Context) (*ComparisonResult, error) {
	if p.accuracy == nil {
		return nil, ErrNoTracker
	}
	now := p.clock.Now().UTC()
	day := clock.Today(now)
	next := day.AddDate(0, 0, 1)
	log := p.logger.WithField("date", day.Format(clock.DateLayout))

	actualSlots, err := p.sources.Published.FetchPrices(ctx, p.cfg.Region, day, next)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch actual prices: %w", err)
	}
	actual := hourlyAverages(models.FilterPrices(actualSlots, day, next), day)
	for h, v := range actual {
		if v == nil {
			return nil, fmt.Errorf("%w: hour %02d missing", ErrIncompleteActuals, h)
		}
	}

	forecastSlots, err := p.sources.Predicted.FetchPrices(ctx, p.cfg.Region, day, next)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch forecast prices: %w", err)
	}
	predicted := hourlyAverages(models.FilterPrices(forecastSlots, day, next), day)

	var fc, ac []float64
	for h := 0; h < hoursPerDay; h++ {
		if predicted[h] == nil {
			continue
		}
		fc = append(fc, *predicted[h])
		ac = append(ac, *actual[h])
	}
	if len(fc) == 0 {
		log.Warn("No forecast available for today, comparison skipped")
		return &ComparisonResult{Skipped: "no forecast"}, nil
	}
	if len(fc) < minComparedHours {
		log.WithField("hours", len(fc)).Warn("Too few forecast hours, comparison skipped")
		return &ComparisonResult{Skipped: fmt.Sprintf("only %d forecast hours", len(fc))}, nil
	}

	rec, err := p.accuracy.RecordComparison(ctx, day, fc, ac, p.sources.Predicted.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to record comparison: %w", err)
	}
	metrics.RecordComparison(rec.MeanAbsoluteError, rec.MeanError)

	res := &ComparisonResult{
		Record:  rec,
		Summary: p.accuracy.RecentAccuracy(accuracyWindow),
		Grade:   p.accuracy.ReliabilityGrade(accuracyWindow),
		Trusted: p.accuracy.ShouldTrustForecast(accuracyWindow),
	}
	log.WithFields(logrus.Fields{
		"grade":       res.Grade,
		"comparisons": res.Summary.NumComparisons,
	}).Info("Forecast reliability updated")
	if !res.Trusted {
		log.Warn("Forecast accuracy is poor, treat predicted prices with caution")
	}

	p.recordActual(ctx, day, actualSlots)
	return res, nil
}

// recordActual prices today's best window from published prices and stores
// it against the day's evolution record.
func (p *Planner) recordActual(ctx context.Context, day time.Time, prices []models.PriceSlot) {
	if p.evolution == nil {
		return
	}
	date := day.Format(clock.DateLayout)
	baseline := p.baseline(day)
	window, err := p.selector.FindOptimalWindow(prices, models.NeutralCarbon(prices), p.cfg.ChargeHours(0), &baseline)
	if err != nil {
		p.logger.WithError(err).Warn("Could not price actual window")
		return
	}
	if _, err := p.evolution.RecordActualResult(ctx, date, window.TotalCost, window.AvgPrice); err != nil {
		p.logger.WithError(err).Warn("Failed to record actual result")
	}
}

// hourlyAverages buckets slots by UTC hour of day. Hours without data are nil.
func hourlyAverages(slots []models.PriceSlot, day time.Time) [hoursPerDay]*float64 {
	var sums [hoursPerDay]float64
	var counts [hoursPerDay]int
	for _, s := range slots {
		h := int(s.Time.Sub(day) / time.Hour)
		if h < 0 || h >= hoursPerDay {
			continue
		}
		sums[h] += s.Price
		counts[h]++
	}
	var out [hoursPerDay]*float64
	for h := range out {
		if counts[h] > 0 {
			avg := sums[h] / float64(counts[h])
			out[h] = &avg
		}
	}
	return out
}
