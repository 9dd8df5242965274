package tuning

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/smart-charge/internal/analyzer"
	"github.com/yourusername/smart-charge/internal/clock"
	"github.com/yourusername/smart-charge/internal/models"
	"github.com/yourusername/smart-charge/internal/store"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type MockRecommendationReader struct {
	mock.Mock
}

func (m *MockRecommendationReader) Recommendations(ctx context.Context, days int) ([]models.Recommendation, error) {
	args := m.Called(ctx, days)
	recs, _ := args.Get(0).([]models.Recommendation)
	return recs, args.Error(1)
}

func newTuner(t *testing.T, recs []models.Recommendation) (*Tuner, *clock.MockClock) {
	t.Helper()
	clk := clock.NewMockClock(testNow)
	st, err := store.New(t.TempDir(), nil, store.WithClock(clk))
	require.NoError(t, err)
	reader := &MockRecommendationReader{}
	reader.On("Recommendations", mock.Anything, mock.Anything).Return(recs, nil)
	return NewTuner(reader, st, 30, nil), clk
}

// history builds one recommendation per day, newest yesterday.
func history(prices []float64, carbon []int) []models.Recommendation {
	out := make([]models.Recommendation, len(prices))
	for i := range prices {
		out[i] = models.Recommendation{
			Timestamp: testNow.AddDate(0, 0, -(i + 1)),
			AvgPrice:  prices[i],
			AvgCarbon: carbon[i],
		}
	}
	return out
}

func seq(from, step float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = from + step*float64(i)
	}
	return out
}

func seqInt(from, step, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = from + step*i
	}
	return out
}

func TestOptimalThresholds(t *testing.T) {
	exc, good := OptimalThresholds(seq(5, 1, 11))
	assert.Equal(t, 7.5, exc)
	assert.Equal(t, 10.0, good)

	exc, good = OptimalThresholds([]float64{12, 3, 9, 7, 15, 4, 8})
	// sorted 3 4 7 8 9 12 15: P25 at h=1.5
	assert.Equal(t, 5.5, exc)
	assert.Equal(t, 8.0, good)

	exc, good = OptimalThresholds(seq(1, 1, 6))
	assert.Equal(t, 10.0, exc)
	assert.Equal(t, 15.0, good)
}

func TestCarbonThresholds(t *testing.T) {
	exc, good := CarbonThresholds(seq(100, 10, 11))
	assert.Equal(t, 125.0, exc)
	assert.Equal(t, 150.0, good)

	exc, good = CarbonThresholds(seq(100, 10, 3))
	assert.Equal(t, 100.0, exc)
	assert.Equal(t, 150.0, good)
}

func TestRecommendedThresholds(t *testing.T) {
	tuner, _ := newTuner(t, history(seq(5, 1, 11), seqInt(100, 10, 11)))

	rec, err := tuner.RecommendedThresholds(context.Background(), 30)
	require.NoError(t, err)
	assert.False(t, rec.UsingDefaults)
	assert.Equal(t, 7.5, rec.PriceExcellent)
	assert.Equal(t, 10.0, rec.PriceGood)
	assert.Equal(t, 125.0, rec.CarbonExcellent)
	assert.Equal(t, 150.0, rec.CarbonGood)
	assert.Equal(t, 11, rec.DaysAnalyzed)
	assert.Equal(t, models.PriceRange{Min: 5, Max: 15, Mean: 10}, rec.PriceRange)

	hist := tuner.History(90)
	require.Len(t, hist, 1)
	assert.Equal(t, 7.5, hist[0].PriceExcellent)
}

func TestRecommendedThresholdsIgnoresOldRecommendations(t *testing.T) {
	recs := history(seq(5, 1, 11), seqInt(100, 10, 11))
	// only the newest five are inside a five-day window
	tuner, _ := newTuner(t, recs)

	rec, err := tuner.RecommendedThresholds(context.Background(), 5)
	require.NoError(t, err)
	assert.True(t, rec.UsingDefaults)
	assert.Equal(t, 10.0, rec.PriceExcellent)
	assert.Equal(t, 15.0, rec.PriceGood)
	assert.Equal(t, 100.0, rec.CarbonExcellent)
	assert.Equal(t, 150.0, rec.CarbonGood)
	assert.Empty(t, tuner.History(90), "defaults are not recorded")
}

func TestShouldUpdate(t *testing.T) {
	tuner, _ := newTuner(t, history(seq(5, 1, 11), seqInt(100, 10, 11)))
	ctx := context.Background()

	cfg := analyzer.DefaultConfig() // 10 / 15
	update, rec, err := tuner.ShouldUpdate(ctx, cfg)
	require.NoError(t, err)
	assert.True(t, update, "good threshold is 5p away")
	assert.Equal(t, 10.0, rec.PriceGood)

	cfg.Price.Excellent, cfg.Price.Good = 9, 12
	update, _, err = tuner.ShouldUpdate(ctx, cfg)
	require.NoError(t, err)
	assert.False(t, update)
}

func TestShouldUpdateAbsoluteDelta(t *testing.T) {
	tuner, _ := newTuner(t, history(seq(5, 1, 11), seqInt(100, 10, 11)))
	ctx := context.Background()

	_, rec, err := tuner.ShouldUpdate(ctx, analyzer.DefaultConfig())
	require.NoError(t, err)

	cfg := analyzer.DefaultConfig()
	cfg.Price.Excellent = rec.PriceExcellent
	cfg.Price.Good = rec.PriceGood + UpdateDelta
	update, _, err := tuner.ShouldUpdate(ctx, cfg)
	require.NoError(t, err)
	assert.False(t, update, "a gap of exactly UpdateDelta is kept")

	cfg.Price.Good = rec.PriceGood - UpdateDelta - 0.5
	update, _, err = tuner.ShouldUpdate(ctx, cfg)
	require.NoError(t, err)
	assert.True(t, update, "a current threshold below the recommendation also counts")
}

func TestHistoryRetentionAndOrder(t *testing.T) {
	tuner, clk := newTuner(t, history(seq(5, 1, 11), seqInt(100, 10, 11)))
	ctx := context.Background()

	_, err := tuner.RecommendedThresholds(ctx, 30)
	require.NoError(t, err)
	clk.Advance(60 * 24 * time.Hour)
	_, err = tuner.RecommendedThresholds(ctx, 90)
	require.NoError(t, err)
	clk.Advance(40 * 24 * time.Hour)
	_, err = tuner.RecommendedThresholds(ctx, 120)
	require.NoError(t, err)

	hist := tuner.History(365)
	require.Len(t, hist, 2, "record older than 90 days dropped on save")
	assert.True(t, hist[0].LastUpdated.After(hist[1].LastUpdated))
	assert.Len(t, tuner.History(30), 1)
}

func TestApply(t *testing.T) {
	tuner, _ := newTuner(t, nil)
	scorer, err := analyzer.NewScorer(analyzer.DefaultConfig())
	require.NoError(t, err)

	tuned, err := tuner.Apply(scorer, &models.ThresholdTuningRecord{
		PriceExcellent: 7.5, PriceGood: 22, CarbonExcellent: 125, CarbonGood: 150,
	})
	require.NoError(t, err)

	cfg := tuned.Config()
	assert.Equal(t, 7.5, cfg.Price.Excellent)
	assert.Equal(t, 22.0, cfg.Price.Good)
	assert.Equal(t, 22.0, cfg.Price.Average)
	assert.Equal(t, 125.0, cfg.Carbon.Excellent)
	assert.Equal(t, 0.6, cfg.PriceWeight)
	assert.Equal(t, 10.0, scorer.Config().Price.Excellent, "original scorer unchanged")
}

func TestRecommendedThresholdsFromStore(t *testing.T) {
	clk := clock.NewMockClock(testNow)
	st, err := store.New(t.TempDir(), nil, store.WithClock(clk))
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		start := testNow.Add(time.Duration(i) * time.Hour)
		w := &models.ChargingWindow{
			Start: start, End: start.Add(4 * time.Hour),
			AvgPrice: float64(8 + i), AvgCarbon: 120,
			Rating: models.RatingGood, Reason: models.ReasonCheap,
		}
		require.NoError(t, st.SaveRecommendation(ctx, models.NewRecommendation(w, models.OriginForecast, clk.Now())))
	}

	rec, err := NewTuner(st, st, 30, nil).RecommendedThresholds(ctx, 30)
	require.NoError(t, err)
	assert.False(t, rec.UsingDefaults)
	assert.Equal(t, 8, rec.DaysAnalyzed)
	// sorted 8..15: P25 at h=1.75 is 9.75
	assert.Equal(t, 9.8, rec.PriceExcellent)
	assert.Equal(t, 11.5, rec.PriceGood)
	assert.Equal(t, 120.0, rec.CarbonExcellent)
}
