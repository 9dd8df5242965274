package models

import (
	"time"

	"github.com/google/uuid"
)

// DayType separates weekday and weekend charging behaviour.
type DayType string

const (
	DayWeekday DayType = "weekday"
	DayWeekend DayType = "weekend"
)

// DayTypeOf returns the day type for t.
func DayTypeOf(t time.Time) DayType {
	if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return DayWeekend
	}
	return DayWeekday
}

// Recommendation is the persisted form of a ChargingWindow.
type Recommendation struct {
	ID          uuid.UUID  `db:"id" json:"id" validate:"required"`
	Timestamp   time.Time  `db:"timestamp" json:"timestamp" validate:"required"`
	Date        string     `db:"date" json:"date" validate:"required,datetime=2006-01-02"`
	DayType     DayType    `db:"day_type" json:"day_type" validate:"required,oneof=weekday weekend"`
	PriceSource DataOrigin `db:"price_source" json:"price_source" validate:"required,oneof=octopus_actual forecast"`
	WindowStart time.Time  `db:"window_start" json:"window_start" validate:"required"`
	WindowEnd   time.Time  `db:"window_end" json:"window_end" validate:"required,gtfield=WindowStart"`
	AvgPrice    float64    `db:"avg_price" json:"avg_price"`
	AvgCarbon   int        `db:"avg_carbon" json:"avg_carbon" validate:"gte=0"`
	TotalCost   float64    `db:"total_cost" json:"total_cost"`
	TotalCarbon int        `db:"total_carbon" json:"total_carbon"`
	KWh         float64    `db:"kwh" json:"kwh" validate:"gte=0"`
	Rating      Rating     `db:"rating" json:"rating" validate:"required,oneof=EXCELLENT GOOD AVERAGE POOR"`
	Reason      Reason     `db:"reason" json:"reason" validate:"required,oneof=both cheap clean neither"`
	Savings     float64    `db:"savings" json:"savings"`
	Score       float64    `db:"score" json:"score" validate:"gte=0,lte=100"`
	SavedAt     time.Time  `db:"saved_at" json:"saved_at"`
}

// NewRecommendation builds a recommendation record from a selected window.
func NewRecommendation(w *ChargingWindow, source DataOrigin, now time.Time) *Recommendation {
	return &Recommendation{
		ID:          uuid.New(),
		Timestamp:   now,
		Date:        w.Start.Format("2006-01-02"),
		DayType:     DayTypeOf(w.Start),
		PriceSource: source,
		WindowStart: w.Start,
		WindowEnd:   w.End,
		AvgPrice:    w.AvgPrice,
		AvgCarbon:   w.AvgCarbon,
		TotalCost:   w.TotalCost,
		TotalCarbon: w.TotalCarbon,
		KWh:         w.KWh,
		Rating:      w.Rating,
		Reason:      w.Reason,
		Savings:     w.SavingsVsBaseline,
		Score:       w.OpportunityScore,
	}
}

// Window rebuilds the charging window a recommendation was saved from.
func (r *Recommendation) Window() *ChargingWindow {
	return &ChargingWindow{
		Start:             r.WindowStart,
		End:               r.WindowEnd,
		AvgPrice:          r.AvgPrice,
		AvgCarbon:         r.AvgCarbon,
		TotalCost:         r.TotalCost,
		TotalCarbon:       r.TotalCarbon,
		KWh:               r.KWh,
		OpportunityScore:  r.Score,
		Rating:            r.Rating,
		Reason:            r.Reason,
		SavingsVsBaseline: r.Savings,
	}
}

// IsGoodOpportunity reports whether the rating is GOOD or better.
func (r *Recommendation) IsGoodOpportunity() bool {
	return r.Rating == RatingExcellent || r.Rating == RatingGood
}

// UserAction is a manually logged charge.
type UserAction struct {
	ID         uuid.UUID `db:"id" json:"id" validate:"required"`
	Timestamp  time.Time `db:"timestamp" json:"timestamp" validate:"required"`
	Date       string    `db:"date" json:"date" validate:"required,datetime=2006-01-02"`
	Action     string    `db:"action" json:"action" validate:"required"`
	KWhCharged *float64  `db:"kwh_charged" json:"kwh_charged,omitempty" validate:"omitempty,gt=0"`
	Note       string    `db:"note" json:"note,omitempty"`
	LoggedAt   time.Time `db:"logged_at" json:"logged_at"`
}

// ActionCharged is the only action type the CLI records.
const ActionCharged = "charged"

// ForecastRecord is a raw forecast fetch kept for short-term history.
type ForecastRecord struct {
	Timestamp time.Time   `json:"timestamp" validate:"required"`
	Source    DataOrigin  `json:"source" validate:"required"`
	Region    string      `json:"region"`
	Slots     []PriceSlot `json:"slots" validate:"dive"`
	SavedAt   time.Time   `json:"saved_at"`
}
