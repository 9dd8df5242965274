package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWindow(avgPrice float64) *ChargingWindow {
	start := time.Date(2025, 3, 1, 2, 0, 0, 0, time.UTC)
	return &ChargingWindow{
		Start:    start,
		End:      start.Add(4 * time.Hour),
		AvgPrice: avgPrice,
	}
}

func TestChargingWindowStatus(t *testing.T) {
	w := testWindow(10)

	assert.Equal(t, StatusUpcoming, w.Status(w.Start.Add(-time.Second)))
	assert.Equal(t, StatusActive, w.Status(w.Start))
	assert.Equal(t, StatusActive, w.Status(w.Start.Add(time.Hour)))
	assert.Equal(t, StatusActive, w.Status(w.End))
	assert.Equal(t, StatusPassed, w.Status(w.End.Add(time.Second)))
}

func TestChargingWindowTimeUntil(t *testing.T) {
	w := testWindow(10)
	at := w.Start.Add(-90 * time.Minute)

	assert.Equal(t, 90*time.Minute, w.TimeUntilStart(at))
	assert.Equal(t, 5*time.Hour+30*time.Minute, w.TimeUntilEnd(at))
	assert.Less(t, w.TimeUntilStart(w.End), time.Duration(0))
}

func TestEarningsEstimate(t *testing.T) {
	assert.Nil(t, testWindow(0).EarningsEstimate(DefaultEarningsKWh))
	assert.Nil(t, testWindow(4.2).EarningsEstimate(DefaultEarningsKWh))

	e := testWindow(-3.5).EarningsEstimate(20)
	require.NotNil(t, e)
	assert.InDelta(t, 0.7, *e, 1e-9)
}

func TestRecommendationRoundTrip(t *testing.T) {
	w := testWindow(9.25)
	w.AvgCarbon = 120
	w.TotalCost = 2.74
	w.TotalCarbon = 3552
	w.Rating = RatingGood
	w.Reason = ReasonBoth
	w.OpportunityScore = 85
	w.SavingsVsBaseline = 1.2
	w.KWh = 29.6

	rec := NewRecommendation(w, OriginForecast, w.Start)
	back := rec.Window()

	assert.Equal(t, "2025-03-01", rec.Date)
	assert.Equal(t, DayWeekend, rec.DayType)
	assert.Equal(t, w.Rating, back.Rating)
	assert.Equal(t, w.TotalCost, back.TotalCost)
	assert.Equal(t, w.TotalCarbon, back.TotalCarbon)
	assert.Equal(t, 29.6, rec.KWh)
	assert.Equal(t, w.KWh, back.KWh)
	assert.True(t, rec.IsGoodOpportunity())
}

func TestDirectionOf(t *testing.T) {
	assert.Equal(t, DriftImproved, DirectionOf(0.5))
	assert.Equal(t, DriftWorsened, DirectionOf(-0.5))
	assert.Equal(t, DriftUnchanged, DirectionOf(0))
}
