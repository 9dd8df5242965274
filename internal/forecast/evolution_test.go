package forecast

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/smart-charge/internal/models"
)

func prediction(cost, savings float64, source models.DataOrigin) models.Prediction {
	return models.Prediction{
		PriceSource:    source,
		AvgPrice:       cost / 30 * 100,
		Cost:           cost,
		SavingsVsToday: savings,
		Rating:         models.RatingGood,
	}
}

func TestSavingsPct(t *testing.T) {
	assert.Equal(t, 25.0, SavingsPct(3, 1))
	assert.Equal(t, 0.0, SavingsPct(2, 0))
	assert.Equal(t, 0.0, SavingsPct(0, 0))
	assert.Equal(t, 0.0, SavingsPct(-1, 0.5))
	assert.Equal(t, -50.0, SavingsPct(3, -1))
	assert.Equal(t, 33.33, SavingsPct(2, 1))
}

func TestConfidence(t *testing.T) {
	mae := func(v float64) *float64 { return &v }
	tests := []struct {
		name    string
		daysOut int
		source  models.DataOrigin
		mae     *float64
		want    int
	}{
		{"tomorrow actual no history", 1, models.OriginOctopusActual, nil, 85},
		{"two days forecast", 2, models.OriginForecast, nil, 62},
		{"three days accurate", 3, models.OriginForecast, mae(1.5), 67},
		{"six days middling", 6, models.OriginForecast, mae(3), 50},
		{"today inaccurate", 0, models.OriginForecast, mae(10), 68},
		{"far horizon floor", 12, models.OriginForecast, mae(5), 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Confidence(tt.daysOut, tt.source, tt.mae))
		})
	}
}

func TestRecordSnapshotSkipsPastTargets(t *testing.T) {
	st, _ := newTestStore(t)
	tr := NewEvolutionTracker(st, DefaultEvolutionConfig(), nil)

	snap, err := tr.RecordSnapshot(context.Background(), "2025-03-09", prediction(3, 1, models.OriginForecast), nil)
	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.Empty(t, tr.TrackedDates())
}

func TestRecordSnapshotUsesUTCDay(t *testing.T) {
	st, clk := newTestStore(t)
	tr := NewEvolutionTracker(st, DefaultEvolutionConfig(), nil)
	// 00:30 BST on 10 June is still 9 June in UTC
	bst := time.FixedZone("BST", 60*60)
	clk.Set(time.Date(2025, 6, 10, 0, 30, 0, 0, bst))

	snap, err := tr.RecordSnapshot(context.Background(), "2025-06-09", prediction(3, 1, models.OriginForecast), nil)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "2025-06-09", snap.SnapshotDate)
	assert.Equal(t, 0, snap.DaysUntilTarget)
}

func TestRecordSnapshotInvalidDate(t *testing.T) {
	st, _ := newTestStore(t)
	tr := NewEvolutionTracker(st, DefaultEvolutionConfig(), nil)

	_, err := tr.RecordSnapshot(context.Background(), "next tuesday", prediction(3, 1, models.OriginForecast), nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRecordSnapshotSameDayReplaces(t *testing.T) {
	st, clk := newTestStore(t)
	tr := NewEvolutionTracker(st, DefaultEvolutionConfig(), nil)
	ctx := context.Background()

	snap, err := tr.RecordSnapshot(ctx, "2025-03-12", prediction(3, 1, models.OriginForecast), nil)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 2, snap.DaysUntilTarget)
	assert.Equal(t, "2025-03-10", snap.SnapshotDate)
	assert.Equal(t, 25.0, snap.PredictedSavingsPct)

	clk.Advance(3 * time.Hour)
	_, err = tr.RecordSnapshot(ctx, "2025-03-12", prediction(2, 2, models.OriginForecast), nil)
	require.NoError(t, err)

	rec := tr.Evolution("2025-03-12")
	require.NotNil(t, rec)
	require.Len(t, rec.Snapshots, 1)
	assert.Equal(t, 50.0, rec.Snapshots[0].PredictedSavingsPct)
	assert.Equal(t, 1, rec.EvolutionSummary.NumSnapshots)
}

func TestEvolutionSummaryAcrossDays(t *testing.T) {
	st, clk := newTestStore(t)
	tr := NewEvolutionTracker(st, DefaultEvolutionConfig(), nil)
	ctx := context.Background()

	_, err := tr.RecordSnapshot(ctx, "2025-03-13", prediction(3, 1, models.OriginForecast), nil)
	require.NoError(t, err)
	clk.Advance(24 * time.Hour)
	_, err = tr.RecordSnapshot(ctx, "2025-03-13", prediction(2, 2, models.OriginOctopusActual), nil)
	require.NoError(t, err)

	rec := tr.Evolution("2025-03-13")
	require.NotNil(t, rec)
	require.Len(t, rec.Snapshots, 2)
	s := rec.EvolutionSummary
	require.NotNil(t, s)
	assert.Equal(t, 25.0, s.InitialSavingsPct)
	assert.Equal(t, 50.0, s.CurrentSavingsPct)
	assert.Equal(t, 25.0, s.SavingsDrift)
	assert.Equal(t, models.DriftImproved, s.SavingsDriftDirection)
	assert.Equal(t, 0.5, s.PriceVolatility)
	assert.Equal(t, "2025-03-10", s.FirstSnapshot)
	assert.True(t, clk.Now().Equal(s.LastUpdated))

	latest := tr.LatestSnapshot("2025-03-13")
	require.NotNil(t, latest)
	assert.Equal(t, 2, latest.DaysUntilTarget)
	assert.Equal(t, models.OriginOctopusActual, latest.PriceSource)
	assert.Nil(t, tr.LatestSnapshot("2025-04-01"))
}

func TestDetectSignificantChange(t *testing.T) {
	st, clk := newTestStore(t)
	tr := NewEvolutionTracker(st, DefaultEvolutionConfig(), nil)
	ctx := context.Background()

	_, err := tr.RecordSnapshot(ctx, "2025-03-15", prediction(2, 2, models.OriginForecast), nil)
	require.NoError(t, err)
	assert.Nil(t, tr.DetectSignificantChange("2025-03-15"))

	clk.Advance(24 * time.Hour)
	_, err = tr.RecordSnapshot(ctx, "2025-03-15", prediction(2.2, 1.8, models.OriginForecast), nil)
	require.NoError(t, err)
	assert.Nil(t, tr.DetectSignificantChange("2025-03-15"), "5 point drift is below threshold")

	clk.Advance(24 * time.Hour)
	_, err = tr.RecordSnapshot(ctx, "2025-03-15", prediction(3, 1, models.OriginForecast), nil)
	require.NoError(t, err)

	change := tr.DetectSignificantChange("2025-03-15")
	require.NotNil(t, change)
	assert.Equal(t, 45.0, change.PreviousSavingsPct)
	assert.Equal(t, 25.0, change.CurrentSavingsPct)
	assert.Equal(t, -20.0, change.SavingsDrift)
	assert.Equal(t, models.DriftWorsened, change.DriftDirection)
	assert.Equal(t, "2025-03-11", change.PreviousSnapshotDate)
	assert.Equal(t, "2025-03-12", change.CurrentSnapshotDate)
	assert.Nil(t, tr.DetectSignificantChange("2025-05-01"))
}

func TestForecastsWithDrift(t *testing.T) {
	st, clk := newTestStore(t)
	tr := NewEvolutionTracker(st, DefaultEvolutionConfig(), nil)
	ctx := context.Background()

	first := map[string]models.Prediction{
		"2025-03-14": prediction(3, 1, models.OriginForecast), // 25%
		"2025-03-15": prediction(2, 2, models.OriginForecast), // 50%
		"2025-03-16": prediction(3, 1, models.OriginForecast), // 25%
	}
	second := map[string]models.Prediction{
		"2025-03-14": prediction(2, 2, models.OriginForecast),     // +25
		"2025-03-15": prediction(3.8, 0.2, models.OriginForecast), // -45
		"2025-03-16": prediction(2.9, 1.1, models.OriginForecast), // +2.5
	}
	for date, p := range first {
		_, err := tr.RecordSnapshot(ctx, date, p, nil)
		require.NoError(t, err)
	}
	clk.Advance(24 * time.Hour)
	for date, p := range second {
		_, err := tr.RecordSnapshot(ctx, date, p, nil)
		require.NoError(t, err)
	}

	drifted := tr.ForecastsWithDrift(DefaultMinDrift)
	require.Len(t, drifted, 2)
	assert.Equal(t, "2025-03-15", drifted[0].TargetDate)
	assert.Equal(t, -45.0, drifted[0].SavingsDrift)
	assert.Equal(t, "2025-03-14", drifted[1].TargetDate)
	assert.Equal(t, 2, drifted[1].NumSnapshots)

	assert.Len(t, tr.ForecastsWithDrift(0), 3)
	assert.Equal(t, []string{"2025-03-14", "2025-03-15", "2025-03-16"}, tr.TrackedDates())
}

func TestRecordActualResultOnce(t *testing.T) {
	st, _ := newTestStore(t)
	tr := NewEvolutionTracker(st, DefaultEvolutionConfig(), nil)
	ctx := context.Background()

	written, err := tr.RecordActualResult(ctx, "2025-03-11", 2.5, 8.3)
	require.NoError(t, err)
	assert.False(t, written, "untracked target")

	_, err = tr.RecordSnapshot(ctx, "2025-03-11", prediction(3, 1, models.OriginForecast), nil)
	require.NoError(t, err)

	written, err = tr.RecordActualResult(ctx, "2025-03-11", 2.5, 8.3)
	require.NoError(t, err)
	assert.True(t, written)

	written, err = tr.RecordActualResult(ctx, "2025-03-11", 9.9, 33)
	require.NoError(t, err)
	assert.False(t, written)

	rec := tr.Evolution("2025-03-11")
	require.NotNil(t, rec.ActualResult)
	assert.Equal(t, 2.5, rec.ActualResult.ActualCost)
	assert.Equal(t, 8.3, rec.ActualResult.ActualAvgPrice)
}

func TestCleanupOldData(t *testing.T) {
	st, clk := newTestStore(t)
	tr := NewEvolutionTracker(st, EvolutionConfig{RetentionDays: 30}, nil)
	ctx := context.Background()

	for _, date := range []string{"2025-03-10", "2025-03-20", "2025-04-15"} {
		_, err := tr.RecordSnapshot(ctx, date, prediction(3, 1, models.OriginForecast), nil)
		require.NoError(t, err)
	}

	removed, err := tr.CleanupOldData(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	// cutoff becomes 2025-03-15
	clk.Set(time.Date(2025, 4, 14, 8, 0, 0, 0, time.UTC))
	removed, err = tr.CleanupOldData(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, []string{"2025-03-20", "2025-04-15"}, tr.TrackedDates())
}

func TestFormatEvolutionAlert(t *testing.T) {
	worse := FormatEvolutionAlert(models.SignificantChange{
		TargetDate:         "2025-01-02",
		PreviousSavingsPct: 40,
		CurrentSavingsPct:  25,
		SavingsDrift:       -15,
		ConfidenceScore:    72,
	})
	assert.Equal(t, "Forecast Update: Jan 02 savings worsened", worse.Title)
	assert.Equal(t, 1, worse.Priority)
	assert.Equal(t, "falling", worse.Sound)
	assert.True(t, worse.HTML)
	assert.Equal(t, "<b>Target Date:</b> Jan 02\n"+
		"<b>Original Forecast:</b> 40% savings\n"+
		"<b>Updated Forecast:</b> 25% savings\n"+
		"<b>Change:</b> -15.0%\n\n"+
		"<b>Consider:</b> Charging earlier may be better\n"+
		"<b>Confidence:</b> 72%", worse.Body)
	require.NoError(t, worse.Validate())

	better := FormatEvolutionAlert(models.SignificantChange{
		TargetDate:         "2025-01-02",
		PreviousSavingsPct: 20,
		CurrentSavingsPct:  30,
		SavingsDrift:       10,
		ConfidenceScore:    60,
	})
	assert.Equal(t, "Forecast Update: Jan 02 savings improved", better.Title)
	assert.Equal(t, 0, better.Priority)
	assert.Equal(t, "cosmic", better.Sound)
	assert.Contains(t, better.Body, "<b>Change:</b> +10.0%")
	assert.NotContains(t, better.Body, "Consider")
}
