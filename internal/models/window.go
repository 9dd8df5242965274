package models

import (
	"math"
	"time"
)

// SlotDuration is the granularity of every tariff and carbon series.
const SlotDuration = 30 * time.Minute

// DefaultChargerKW is the charger power assumed when converting hours to kWh.
const DefaultChargerKW = 7.4

// DefaultEarningsKWh is the charge size used for negative-pricing earnings estimates.
const DefaultEarningsKWh = 30.0

// Rating classifies an opportunity score.
type Rating string

const (
	RatingExcellent Rating = "EXCELLENT"
	RatingGood      Rating = "GOOD"
	RatingAverage   Rating = "AVERAGE"
	RatingPoor      Rating = "POOR"
)

// Emoji returns the marker used in notification text.
func (r Rating) Emoji() string {
	switch r {
	case RatingExcellent:
		return "🟢"
	case RatingGood:
		return "🟡"
	case RatingAverage:
		return "🟠"
	default:
		return "🔴"
	}
}

// Reason explains which of price and carbon made a window attractive.
type Reason string

const (
	ReasonBoth    Reason = "both"
	ReasonCheap   Reason = "cheap"
	ReasonClean   Reason = "clean"
	ReasonNeither Reason = "neither"
)

// WindowStatus is a window's position relative to a reference time.
type WindowStatus string

const (
	StatusUpcoming WindowStatus = "UPCOMING"
	StatusActive   WindowStatus = "ACTIVE"
	StatusPassed   WindowStatus = "PASSED"
)

// ChargingWindow is the best contiguous interval found for one scoring run.
type ChargingWindow struct {
	Start             time.Time `json:"start"`
	End               time.Time `json:"end"`
	AvgPrice          float64   `json:"avg_price"`
	AvgCarbon         int       `json:"avg_carbon"`
	TotalCost         float64   `json:"total_cost"`
	TotalCarbon       int       `json:"total_carbon"`
	OpportunityScore  float64   `json:"opportunity_score"`
	Rating            Rating    `json:"rating"`
	Reason            Reason    `json:"reason"`
	SavingsVsBaseline float64   `json:"savings_vs_baseline"`
	KWh               float64   `json:"kwh"`
}

// Duration returns End - Start.
func (w *ChargingWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Status derives UPCOMING/ACTIVE/PASSED; both boundaries count as active.
func (w *ChargingWindow) Status(at time.Time) WindowStatus {
	switch {
	case at.Before(w.Start):
		return StatusUpcoming
	case at.After(w.End):
		return StatusPassed
	default:
		return StatusActive
	}
}

// TimeUntilStart is negative once the window has started.
func (w *ChargingWindow) TimeUntilStart(at time.Time) time.Duration {
	return w.Start.Sub(at)
}

// TimeUntilEnd is negative once the window has ended.
func (w *ChargingWindow) TimeUntilEnd(at time.Time) time.Duration {
	return w.End.Sub(at)
}

// HasNegativePricing reports whether charging in the window earns money.
func (w *ChargingWindow) HasNegativePricing() bool {
	return w.AvgPrice < 0
}

// EarningsEstimate returns £ earned charging kwh at a negative average price, or nil.
func (w *ChargingWindow) EarningsEstimate(kwh float64) *float64 {
	if !w.HasNegativePricing() {
		return nil
	}
	earnings := math.Abs(w.AvgPrice * kwh / 100)
	return &earnings
}
