// Package analyzer scores price and carbon conditions and finds the best charging window.
package analyzer

import (
	"errors"
	"fmt"
	"math"

	"github.com/yourusername/smart-charge/internal/models"
)

// Error categories. Callers match with errors.Is.
var (
	ErrConfig = errors.New("analyzer configuration error")
	ErrData   = errors.New("analyzer data error")
)

var (
	ErrInvalidWeights    = fmt.Errorf("%w: price_weight and carbon_weight must sum to 1.0", ErrConfig)
	ErrInvalidThresholds = fmt.Errorf("%w: thresholds must be ascending", ErrConfig)
)

const weightTolerance = 0.01

// Score bands. Every step function returns one of these.
const (
	scoreExcellent = 100.0
	scoreGood      = 75.0
	scoreAverage   = 50.0
	scorePoor      = 25.0
)

// ThresholdSet holds ascending cutoffs for one dimension.
type ThresholdSet struct {
	Excellent float64 `mapstructure:"excellent" json:"excellent"`
	Good      float64 `mapstructure:"good" json:"good"`
	Average   float64 `mapstructure:"average" json:"average"`
}

func (t ThresholdSet) valid() bool {
	return t.Excellent <= t.Good && t.Good <= t.Average
}

func (t ThresholdSet) score(v float64) float64 {
	switch {
	case v <= t.Excellent:
		return scoreExcellent
	case v <= t.Good:
		return scoreGood
	case v <= t.Average:
		return scoreAverage
	default:
		return scorePoor
	}
}

// Config configures a Scorer.
type Config struct {
	PriceWeight  float64      `mapstructure:"price_weight" json:"price_weight"`
	CarbonWeight float64      `mapstructure:"carbon_weight" json:"carbon_weight"`
	Price        ThresholdSet `mapstructure:"price" json:"price"`
	Carbon       ThresholdSet `mapstructure:"carbon" json:"carbon"`
}

// DefaultConfig returns the standard UK Agile thresholds.
func DefaultConfig() Config {
	return Config{
		PriceWeight:  0.6,
		CarbonWeight: 0.4,
		Price:        ThresholdSet{Excellent: 10, Good: 15, Average: 20},
		Carbon:       ThresholdSet{Excellent: 100, Good: 150, Average: 200},
	}
}

// Validate checks weights and threshold ordering.
func (c Config) Validate() error {
	if math.Abs(c.PriceWeight+c.CarbonWeight-1.0) > weightTolerance {
		return fmt.Errorf("%w (got %.3f + %.3f)", ErrInvalidWeights, c.PriceWeight, c.CarbonWeight)
	}
	if c.PriceWeight < 0 || c.CarbonWeight < 0 {
		return fmt.Errorf("%w: weights must not be negative", ErrConfig)
	}
	if !c.Price.valid() {
		return fmt.Errorf("%w (price %+v)", ErrInvalidThresholds, c.Price)
	}
	if !c.Carbon.valid() {
		return fmt.Errorf("%w (carbon %+v)", ErrInvalidThresholds, c.Carbon)
	}
	return nil
}

// Scorer maps price and carbon intensity to opportunity scores. It is immutable.
type Scorer struct {
	cfg Config
}

// NewScorer validates cfg and returns a Scorer.
func NewScorer(cfg Config) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{cfg: cfg}, nil
}

// Config returns the scorer's configuration.
func (s *Scorer) Config() Config {
	return s.cfg
}

// WithThresholds returns a scorer using new excellent/good cutoffs and the existing weights.
// Average cutoffs are raised if needed to keep each set ascending.
func (s *Scorer) WithThresholds(priceExcellent, priceGood, carbonExcellent, carbonGood float64) (*Scorer, error) {
	cfg := s.cfg
	cfg.Price.Excellent, cfg.Price.Good = priceExcellent, priceGood
	cfg.Price.Average = math.Max(cfg.Price.Average, priceGood)
	cfg.Carbon.Excellent, cfg.Carbon.Good = carbonExcellent, carbonGood
	cfg.Carbon.Average = math.Max(cfg.Carbon.Average, carbonGood)
	return NewScorer(cfg)
}

// PriceScore is 100/75/50/25 with inclusive upper cutoffs.
func (s *Scorer) PriceScore(price float64) float64 {
	return s.cfg.Price.score(price)
}

// CarbonScore is 100/75/50/25 with inclusive upper cutoffs.
func (s *Scorer) CarbonScore(carbon float64) float64 {
	return s.cfg.Carbon.score(carbon)
}

// OpportunityScore blends price and carbon scores. The result lies in [25, 100].
func (s *Scorer) OpportunityScore(price, carbon float64) float64 {
	return s.cfg.PriceWeight*s.PriceScore(price) + s.cfg.CarbonWeight*s.CarbonScore(carbon)
}

// Classify buckets a score into a rating.
func Classify(score float64) models.Rating {
	switch {
	case score >= 90:
		return models.RatingExcellent
	case score >= 70:
		return models.RatingGood
	case score >= 50:
		return models.RatingAverage
	default:
		return models.RatingPoor
	}
}

// Reason reports which of price and carbon are at or under their good cutoff.
func (s *Scorer) Reason(price, carbon float64) models.Reason {
	cheap := price <= s.cfg.Price.Good
	clean := carbon <= s.cfg.Carbon.Good
	switch {
	case cheap && clean:
		return models.ReasonBoth
	case cheap:
		return models.ReasonCheap
	case clean:
		return models.ReasonClean
	default:
		return models.ReasonNeither
	}
}
