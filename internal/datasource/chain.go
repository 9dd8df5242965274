package datasource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/smart-charge/internal/clock"
	"github.com/yourusername/smart-charge/internal/logger"
	"github.com/yourusername/smart-charge/internal/metrics"
	"github.com/yourusername/smart-charge/internal/models"
)

// PriceStrategy is one link of a fallback chain.
type PriceStrategy interface {
	// Fetch returns usable slots and the origin they came from, or an error
	// explaining why this strategy could not serve the request.
	Fetch(ctx context.Context, region string, from, to time.Time) ([]models.PriceSlot, models.DataOrigin, error)
	Name() string
}

// PublishedStrategy serves published tariff rates, but only when they reach
// 06:00 UTC on the day after from. Agile rates for tomorrow appear mid afternoon.
type PublishedStrategy struct {
	Source PriceSource
}

func (s PublishedStrategy) Name() string { return s.Source.Name() }

func (s PublishedStrategy) Fetch(ctx context.Context, region string, from, to time.Time) ([]models.PriceSlot, models.DataOrigin, error) {
	slots, err := s.Source.FetchPrices(ctx, region, from, to)
	if err != nil {
		return nil, "", err
	}
	need := RequiredCoverage(from)
	if !CoversUntil(slots, need) {
		return nil, "", NewDataSourceError(s.Name(), ErrCodeInsufficientData,
			fmt.Sprintf("%d slots, coverage short of %s", len(slots), need.Format(time.RFC3339)), ErrInsufficientData)
	}
	return slots, models.OriginOctopusActual, nil
}

// RequiredCoverage is 06:00 UTC on the day after from.
func RequiredCoverage(from time.Time) time.Time {
	return clock.Today(from.UTC()).AddDate(0, 0, 1).Add(6 * time.Hour)
}

// PredictedStrategy serves forecast prices; any non-empty result is usable.
type PredictedStrategy struct {
	Source PriceSource
}

func (s PredictedStrategy) Name() string { return s.Source.Name() }

func (s PredictedStrategy) Fetch(ctx context.Context, region string, from, to time.Time) ([]models.PriceSlot, models.DataOrigin, error) {
	slots, err := s.Source.FetchPrices(ctx, region, from, to)
	if err != nil {
		return nil, "", err
	}
	if len(slots) == 0 {
		return nil, "", NewDataSourceError(s.Name(), ErrCodeInsufficientData, "no forecast slots", ErrInsufficientData)
	}
	return slots, models.OriginForecast, nil
}

// Chain tries strategies in order until one yields usable data.
type Chain struct {
	strategies []PriceStrategy
	logger     *logger.PlannerLogger
}

func NewChain(log *logrus.Logger, strategies ...PriceStrategy) *Chain {
	return &Chain{
		strategies: strategies,
		logger:     logger.NewPlannerLogger(logger.OrDiscard(log)),
	}
}

// Fetch returns the first usable result, or ErrAllSourcesFailed joined with
// every strategy's failure.
func (c *Chain) Fetch(ctx context.Context, region string, from, to time.Time) ([]models.PriceSlot, models.DataOrigin, error) {
	var errs []error
	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		slots, origin, err := s.Fetch(ctx, region, from, to)
		if err == nil {
			return slots, origin, nil
		}
		c.logger.LogSourceFallback(s.Name(), err.Error())
		metrics.RecordSourceFallback(s.Name())
		errs = append(errs, err)
	}
	return nil, "", fmt.Errorf("%w: %w", ErrAllSourcesFailed, errors.Join(errs...))
}
