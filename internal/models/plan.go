package models

import "time"

// DayComparison is the best window found for one day of a multi-day plan.
type DayComparison struct {
	Date           string          `json:"date"`
	DayName        string          `json:"day_name"`
	Window         *ChargingWindow `json:"optimal_window"`
	Cost           float64         `json:"cost"`
	AvgPrice       float64         `json:"avg_price"`
	Rating         Rating          `json:"rating"`
	SavingsVsToday float64         `json:"savings_vs_today"`
	PriceSource    DataOrigin      `json:"price_source"`
}

// Prediction converts the comparison into an evolution snapshot input.
func (d *DayComparison) Prediction() Prediction {
	return Prediction{
		Date:           d.Date,
		PriceSource:    d.PriceSource,
		AvgPrice:       d.AvgPrice,
		Cost:           d.Cost,
		SavingsVsToday: d.SavingsVsToday,
		Rating:         d.Rating,
		Window:         d.Window,
	}
}

// BestDay is the cheapest day in a plan with a human-readable justification.
type BestDay struct {
	Date       string  `json:"date"`
	DayName    string  `json:"day_name"`
	Cost       float64 `json:"cost"`
	Savings    float64 `json:"savings"`
	Percentage float64 `json:"percentage"`
	Reason     string  `json:"reason"`
}

// MultiDayPlan compares charging opportunities over the coming days.
type MultiDayPlan struct {
	GeneratedAt time.Time       `json:"generated_at" validate:"required"`
	ChargeKWh   float64         `json:"charge_kwh" validate:"gt=0"`
	Days        []DayComparison `json:"days" validate:"min=1"`
	BestDay     BestDay         `json:"best_day"`
	SavedAt     time.Time       `json:"saved_at"`
}
