package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/smart-charge/internal/clock"
	"github.com/yourusername/smart-charge/internal/config"
	"github.com/yourusername/smart-charge/internal/costtracker"
	"github.com/yourusername/smart-charge/internal/forecast"
	"github.com/yourusername/smart-charge/internal/models"
	"github.com/yourusername/smart-charge/internal/notify"
	"github.com/yourusername/smart-charge/internal/repository"
	"github.com/yourusername/smart-charge/internal/store"
)

// useTestApp installs a JSON-backed app as the command target for the test.
func useTestApp(t *testing.T, now time.Time) (*app, *clock.MockClock) {
	t.Helper()
	clk := clock.NewMockClock(now)
	st, err := store.New(t.TempDir(), nil, store.WithClock(clk))
	require.NoError(t, err)
	repos := repository.NewJSONRepositories(st)

	a := &app{
		cfg:      &config.Config{User: config.UserConfig{TypicalChargeKWh: 30}},
		store:    st,
		repos:    repos,
		notifier: notify.NewDisabled(nil),
		accuracy: forecast.NewAccuracyTracker(st, nil),
		costs:    costtracker.NewTracker(repos, st, nil),
	}
	prev := application
	application = a
	t.Cleanup(func() { application = prev })
	return a, clk
}

func runSummary(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newSummaryCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestSummaryWeekEmpty(t *testing.T) {
	useTestApp(t, time.Date(2025, 3, 9, 18, 0, 0, 0, time.UTC))

	out, err := runSummary(t, "--week")
	require.NoError(t, err)
	assert.Contains(t, out, "No weekly summary")
}

func TestSummaryWeek(t *testing.T) {
	a, clk := useTestApp(t, time.Date(2025, 3, 9, 18, 0, 0, 0, time.UTC))
	ctx := context.Background()

	for _, d := range []struct {
		date   string
		rating models.Rating
	}{
		{"2025-03-04", models.RatingExcellent},
		{"2025-03-08", models.RatingGood},
	} {
		day, err := clock.ParseDate(d.date, time.UTC)
		require.NoError(t, err)
		start := day.Add(time.Hour)
		w := &models.ChargingWindow{
			Start:     start,
			End:       start.Add(4 * time.Hour),
			AvgPrice:  8,
			TotalCost: 2.40,
			Rating:    d.rating,
			Reason:    models.ReasonCheap,
		}
		require.NoError(t, a.repos.Recommendations.SaveRecommendation(ctx, models.NewRecommendation(w, models.OriginOctopusActual, clk.Now())))
		clk.Advance(time.Minute)
	}
	require.NoError(t, a.repos.UserActions.SaveUserAction(ctx, &models.UserAction{Date: "2025-03-04", Action: models.ActionCharged}))

	out, err := runSummary(t, "--week")
	require.NoError(t, err)
	assert.Contains(t, out, "Week 2025-03-04 to 2025-03-08")
	assert.Contains(t, out, "Charges: 1  on good days 1/2  adherence 50.0%")
	assert.NotContains(t, out, "Summary sent")
}

func TestSummaryWeekRejectsMonth(t *testing.T) {
	useTestApp(t, time.Date(2025, 3, 9, 18, 0, 0, 0, time.UTC))

	_, err := runSummary(t, "--week", "--month", "2")
	require.Error(t, err)
}
