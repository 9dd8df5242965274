package models

import "time"

// Trend labels how recent forecast error compares to the preceding period.
type Trend string

const (
	TrendImproving        Trend = "improving"
	TrendDegrading        Trend = "degrading"
	TrendStable           Trend = "stable"
	TrendInsufficientData Trend = "insufficient_data"
	TrendNoRecentData     Trend = "no_recent_data"
)

// ReliabilityGrade buckets recent mean absolute error.
type ReliabilityGrade string

const (
	GradeExcellent ReliabilityGrade = "EXCELLENT"
	GradeGood      ReliabilityGrade = "GOOD"
	GradeFair      ReliabilityGrade = "FAIR"
	GradePoor      ReliabilityGrade = "POOR"
	GradeUnknown   ReliabilityGrade = "UNKNOWN"
)

// NegativePricingOutcome records whether a forecast anticipated sub-zero prices.
type NegativePricingOutcome struct {
	ForecastPredicted bool `json:"forecast_predicted"`
	ActuallyOccurred  bool `json:"actually_occurred"`
	CorrectPrediction bool `json:"correct_prediction"`
}

// ComparisonRecord holds one day's forecast-versus-actual error statistics.
type ComparisonRecord struct {
	Date              string                 `json:"date" validate:"required,datetime=2006-01-02"`
	Timestamp         time.Time              `json:"timestamp" validate:"required"`
	ForecastSource    string                 `json:"forecast_source" validate:"required"`
	NumHours          int                    `json:"num_hours" validate:"gt=0"`
	MeanAbsoluteError float64                `json:"mean_absolute_error" validate:"gte=0"`
	MeanError         float64                `json:"mean_error"`
	RMSE              float64                `json:"rmse" validate:"gte=0"`
	MaxError          float64                `json:"max_error"`
	MinError          float64                `json:"min_error"`
	ForecastAvg       float64                `json:"forecast_avg"`
	ActualAvg         float64                `json:"actual_avg"`
	ForecastMin       float64                `json:"forecast_min"`
	ActualMin         float64                `json:"actual_min"`
	ForecastMax       float64                `json:"forecast_max"`
	ActualMax         float64                `json:"actual_max"`
	Errors            []float64              `json:"errors"`
	NegativePricing   NegativePricingOutcome `json:"negative_pricing"`
}

// AccuracySummary aggregates the most recent comparison records.
type AccuracySummary struct {
	NumComparisons          int        `json:"num_comparisons"`
	PeriodDays              int        `json:"period_days"`
	MeanAbsoluteError       *float64   `json:"mean_absolute_error"`
	MedianAbsoluteError     *float64   `json:"median_absolute_error,omitempty"`
	SystematicBias          *float64   `json:"systematic_bias,omitempty"`
	BestDayMAE              *float64   `json:"best_day_mae,omitempty"`
	WorstDayMAE             *float64   `json:"worst_day_mae,omitempty"`
	Trend                   Trend      `json:"trend"`
	NegativePricingPredicts int        `json:"negative_pricing_predictions"`
	NegativePricingCorrect  int        `json:"negative_pricing_correct"`
	NegativePricingAccuracy *float64   `json:"negative_pricing_accuracy"`
	LastUpdated             *time.Time `json:"last_updated,omitempty"`
}
