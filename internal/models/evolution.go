package models

import "time"

// Prediction is one planner estimate for a target date, the input to an evolution snapshot.
type Prediction struct {
	Date           string          `json:"date"`
	PriceSource    DataOrigin      `json:"price_source"`
	AvgPrice       float64         `json:"avg_price"`
	Cost           float64         `json:"cost"`
	SavingsVsToday float64         `json:"savings_vs_today"`
	Rating         Rating          `json:"rating"`
	Window         *ChargingWindow `json:"optimal_window,omitempty"`
}

// ForecastSnapshot is the prediction for a target date as seen on one calendar day.
type ForecastSnapshot struct {
	SnapshotDate        string          `json:"snapshot_date" validate:"required,datetime=2006-01-02"`
	SnapshotTimestamp   time.Time       `json:"snapshot_timestamp"`
	DaysUntilTarget     int             `json:"days_until_target" validate:"gte=0"`
	PriceSource         DataOrigin      `json:"price_source" validate:"required"`
	PredictedAvgPrice   float64         `json:"predicted_avg_price"`
	PredictedCost       float64         `json:"predicted_cost"`
	PredictedSavingsPct float64         `json:"predicted_savings_pct"`
	Rating              Rating          `json:"rating"`
	OptimalWindow       *ChargingWindow `json:"optimal_window,omitempty"`
	ConfidenceScore     int             `json:"confidence_score" validate:"gte=0,lte=100"`
}

// DriftDirection describes a change in predicted savings.
type DriftDirection string

const (
	DriftImproved  DriftDirection = "improved"
	DriftWorsened  DriftDirection = "worsened"
	DriftUnchanged DriftDirection = "unchanged"
)

// DirectionOf classifies a savings drift.
func DirectionOf(drift float64) DriftDirection {
	switch {
	case drift > 0:
		return DriftImproved
	case drift < 0:
		return DriftWorsened
	default:
		return DriftUnchanged
	}
}

// EvolutionSummary is derived from the full snapshot history of a target date.
type EvolutionSummary struct {
	InitialSavingsPct     float64        `json:"initial_savings_pct"`
	CurrentSavingsPct     float64        `json:"current_savings_pct"`
	SavingsDrift          float64        `json:"savings_drift"`
	SavingsDriftDirection DriftDirection `json:"savings_drift_direction"`
	PriceVolatility       float64        `json:"price_volatility"`
	NumSnapshots          int            `json:"num_snapshots"`
	FirstSnapshot         string         `json:"first_snapshot"`
	LastUpdated           time.Time      `json:"last_updated"`
}

// ActualResult is the realized outcome for a target date, written once.
type ActualResult struct {
	RecordedAt     time.Time `json:"recorded_at"`
	ActualCost     float64   `json:"actual_cost"`
	ActualAvgPrice float64   `json:"actual_avg_price"`
}

// TargetForecastRecord is the snapshot history for one target date.
type TargetForecastRecord struct {
	TargetDate       string             `json:"target_date" validate:"required,datetime=2006-01-02"`
	Snapshots        []ForecastSnapshot `json:"snapshots" validate:"dive"`
	EvolutionSummary *EvolutionSummary  `json:"evolution_summary"`
	ActualResult     *ActualResult      `json:"actual_result"`
}

// Latest returns the newest snapshot, or nil.
func (r *TargetForecastRecord) Latest() *ForecastSnapshot {
	if len(r.Snapshots) == 0 {
		return nil
	}
	return &r.Snapshots[len(r.Snapshots)-1]
}

// EvolutionMetadata is bookkeeping stored alongside tracked targets.
type EvolutionMetadata struct {
	Version       string     `json:"version"`
	RetentionDays int        `json:"retention_days"`
	LastCleanup   *time.Time `json:"last_cleanup"`
}

// EvolutionDocument is the persisted evolution state keyed by target date.
type EvolutionDocument struct {
	TargetForecasts map[string]*TargetForecastRecord `json:"target_forecasts"`
	Metadata        EvolutionMetadata                `json:"metadata"`
}

// SignificantChange describes a large move between the last two snapshots.
type SignificantChange struct {
	TargetDate           string         `json:"target_date"`
	PreviousSavingsPct   float64        `json:"previous_savings_pct"`
	CurrentSavingsPct    float64        `json:"current_savings_pct"`
	SavingsDrift         float64        `json:"savings_drift"`
	DriftDirection       DriftDirection `json:"drift_direction"`
	PreviousSnapshotDate string         `json:"previous_snapshot_date"`
	CurrentSnapshotDate  string         `json:"current_snapshot_date"`
	ConfidenceScore      int            `json:"confidence_score"`
	PriceSource          DataOrigin     `json:"price_source"`
}

// DriftedForecast is a tracked target whose overall drift passed a threshold.
type DriftedForecast struct {
	TargetDate        string  `json:"target_date"`
	InitialSavingsPct float64 `json:"initial_savings_pct"`
	CurrentSavingsPct float64 `json:"current_savings_pct"`
	SavingsDrift      float64 `json:"savings_drift"`
	NumSnapshots      int     `json:"num_snapshots"`
}
