package planner

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/smart-charge/internal/analyzer"
	"github.com/yourusername/smart-charge/internal/clock"
	"github.com/yourusername/smart-charge/internal/datasource"
	"github.com/yourusername/smart-charge/internal/forecast"
	"github.com/yourusername/smart-charge/internal/models"
	"github.com/yourusername/smart-charge/internal/notify"
	"github.com/yourusername/smart-charge/internal/store"
)

var testNow = time.Date(2025, 3, 10, 16, 0, 0, 0, time.UTC)

type MockPriceSource struct {
	mock.Mock
	name string
}

func (m *MockPriceSource) FetchPrices(ctx context.Context, region string, from, to time.Time) ([]models.PriceSlot, error) {
	args := m.Called(ctx, region, from, to)
	slots, _ := args.Get(0).([]models.PriceSlot)
	return models.FilterPrices(slots, from, to), args.Error(1)
}

func (m *MockPriceSource) Name() string { return m.name }

type MockCarbonSource struct {
	mock.Mock
}

func (m *MockCarbonSource) FetchCarbon(ctx context.Context, from, to time.Time) ([]models.CarbonSlot, error) {
	args := m.Called(ctx, from, to)
	slots, _ := args.Get(0).([]models.CarbonSlot)
	return slots, args.Error(1)
}

func (m *MockCarbonSource) Name() string { return "carbon" }

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(ctx context.Context, msg notify.Message) (bool, error) {
	args := m.Called(ctx, msg)
	return args.Bool(0), args.Error(1)
}

type fixture struct {
	planner   *Planner
	clock     *clock.MockClock
	store     *store.Store
	published *MockPriceSource
	predicted *MockPriceSource
	carbon    *MockCarbonSource
	notifier  *MockNotifier
	accuracy  *forecast.AccuracyTracker
	evolution *forecast.EvolutionTracker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := clock.NewMockClock(testNow)
	st, err := store.New(t.TempDir(), nil, store.WithClock(clk))
	require.NoError(t, err)

	scorer, err := analyzer.NewScorer(analyzer.DefaultConfig())
	require.NoError(t, err)

	f := &fixture{
		clock:     clk,
		store:     st,
		published: &MockPriceSource{name: "octopus"},
		predicted: &MockPriceSource{name: "forecast"},
		carbon:    &MockCarbonSource{},
		notifier:  &MockNotifier{},
		accuracy:  forecast.NewAccuracyTracker(st, nil),
		evolution: forecast.NewEvolutionTracker(st, forecast.DefaultEvolutionConfig(), nil),
	}
	f.carbon.On("FetchCarbon", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil).Maybe()

	chain := datasource.NewChain(nil,
		datasource.PublishedStrategy{Source: f.published},
		datasource.PredictedStrategy{Source: f.predicted},
	)
	f.planner = New(Config{
		Region:       "C",
		ChargeKWh:    30,
		ChargerKW:    7.5,
		BaselineHour: 18,
		PlanDays:     3,
	}, Sources{
		Chain:     chain,
		Published: f.published,
		Predicted: f.predicted,
		Carbon:    f.carbon,
	}, analyzer.NewWindowSelector(scorer, 7.5), Deps{
		Store:     st,
		Accuracy:  f.accuracy,
		Evolution: f.evolution,
		Notifier:  f.notifier,
	}, nil)
	return f
}

// series builds n half-hour slots from start priced by fn.
func series(start time.Time, n int, kind models.PriceKind, fn func(time.Time) float64) []models.PriceSlot {
	out := make([]models.PriceSlot, n)
	for i := range out {
		ts := start.Add(time.Duration(i) * models.SlotDuration)
		out[i] = models.PriceSlot{Time: ts, Price: fn(ts), Source: kind}
	}
	return out
}

func flat(p float64) func(time.Time) float64 {
	return func(time.Time) float64 { return p }
}

// overnightDip is 25p except 01:00-05:00 UTC, where it is dip.
func overnightDip(dip float64) func(time.Time) float64 {
	return func(ts time.Time) float64 {
		if h := ts.Hour(); h >= 1 && h < 5 {
			return dip
		}
		return 25
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{BaselineHour: 30}
	cfg.applyDefaults()

	assert.Equal(t, DefaultBaselineHour, cfg.BaselineHour)
	assert.Equal(t, MaxPlanDays, cfg.PlanDays)
	assert.Equal(t, DefaultReminderLead, cfg.ReminderLead)
	assert.Equal(t, models.DefaultChargerKW, cfg.ChargerKW)
	assert.InDelta(t, 30/models.DefaultChargerKW, cfg.ChargeHours(0), 1e-9)
	assert.Equal(t, 2.0, Config{ChargeKWh: 30, ChargerKW: 7.5}.ChargeHours(15))
}

func TestRunDailyUsesPublishedPrices(t *testing.T) {
	f := newFixture(t)
	f.published.On("FetchPrices", mock.Anything, "C", mock.Anything, mock.Anything).
		Return(series(testNow, 64, models.PriceMeasured, overnightDip(5)), nil)
	f.notifier.On("Send", mock.Anything, mock.MatchedBy(func(m notify.Message) bool {
		return m.HTML && m.Title != ""
	})).Return(true, nil).Once()

	res, err := f.planner.RunDaily(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, models.OriginOctopusActual, res.Source)
	assert.True(t, res.DegradedCarbon)
	assert.Equal(t, time.Date(2025, 3, 11, 1, 0, 0, 0, time.UTC), res.Window.Start)
	assert.Equal(t, 5.0, res.Window.AvgPrice)
	assert.InDelta(t, 1.5, res.Window.TotalCost, 1e-9)
	assert.InDelta(t, 6.0, res.Window.SavingsVsBaseline, 1e-9, "baseline is 18:00 today at 25p")
	assert.True(t, res.Notified)
	assert.Empty(t, res.NegativeSlots)

	saved, err := f.store.LatestRecommendation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2025-03-11", saved.Date)
	assert.Equal(t, models.OriginOctopusActual, saved.PriceSource)
	f.predicted.AssertNotCalled(t, "FetchPrices", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.notifier.AssertExpectations(t)
}

func TestRunDailyFallsBackToForecast(t *testing.T) {
	f := newFixture(t)
	// Published rates stop at midnight, short of the 06:00 requirement.
	f.published.On("FetchPrices", mock.Anything, "C", mock.Anything, mock.Anything).
		Return(series(testNow, 16, models.PriceMeasured, flat(20)), nil)
	f.predicted.On("FetchPrices", mock.Anything, "C", mock.Anything, mock.Anything).
		Return(series(testNow, 96, models.PricePredicted, overnightDip(12)), nil)

	res, err := f.planner.RunDaily(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, models.OriginForecast, res.Source)
	assert.Equal(t, models.OriginForecast, res.Recommendation.PriceSource)
	assert.False(t, res.Notified)
	f.notifier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestRunDailyAllSourcesFail(t *testing.T) {
	f := newFixture(t)
	f.published.On("FetchPrices", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("octopus down"))
	f.predicted.On("FetchPrices", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, nil)

	_, err := f.planner.RunDaily(context.Background(), true)
	assert.ErrorIs(t, err, datasource.ErrAllSourcesFailed)

	_, err = f.store.LatestRecommendation(context.Background())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRunDailyNegativePricing(t *testing.T) {
	f := newFixture(t)
	f.published.On("FetchPrices", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(series(testNow, 64, models.PriceMeasured, overnightDip(-2)), nil)

	var titles []string
	f.notifier.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		titles = append(titles, args.Get(1).(notify.Message).Title)
	}).Return(true, nil).Twice()

	res, err := f.planner.RunDaily(context.Background(), true)
	require.NoError(t, err)

	assert.Len(t, res.NegativeSlots, 8)
	assert.True(t, res.NegativeAlert)
	assert.True(t, res.Notified)
	require.Len(t, titles, 2)
	assert.Equal(t, "💰 MONEY-MAKING ALERT: Negative Pricing Tonight!", titles[0])
	assert.Equal(t, "🚨 NEGATIVE PRICING ALERT! 💰 You'll GET PAID £0.60!", titles[1])
}

func TestRunDailySkipsOrdinaryWindows(t *testing.T) {
	f := newFixture(t)
	f.published.On("FetchPrices", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(series(testNow, 64, models.PriceMeasured, flat(24)), nil)

	res, err := f.planner.RunDaily(context.Background(), true)
	require.NoError(t, err)
	assert.False(t, res.Notified)
	f.notifier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestExceptional(t *testing.T) {
	tests := []struct {
		name     string
		window   models.ChargingWindow
		negative bool
		want     bool
	}{
		{"excellent", models.ChargingWindow{Rating: models.RatingExcellent, AvgPrice: 20}, false, true},
		{"cheap", models.ChargingWindow{Rating: models.RatingAverage, AvgPrice: 8}, false, true},
		{"big saving", models.ChargingWindow{Rating: models.RatingGood, AvgPrice: 12, SavingsVsBaseline: 1.5}, false, true},
		{"negative slots elsewhere", models.ChargingWindow{Rating: models.RatingPoor, AvgPrice: 20}, true, true},
		{"ordinary", models.ChargingWindow{Rating: models.RatingGood, AvgPrice: 12, SavingsVsBaseline: 1.2}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := exceptional(&tt.window, tt.negative)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestFormatNegativePricingAlert(t *testing.T) {
	slots := series(time.Date(2025, 3, 11, 2, 0, 0, 0, time.UTC), 7, models.PriceMeasured, flat(-1))
	slots[3].Price = -4

	msg := FormatNegativePricingAlert(negativeSlots(slots), 30)

	assert.Equal(t, 1, msg.Priority)
	assert.Equal(t, "cashregister", msg.Sound)
	assert.Contains(t, msg.Body, "£3.00 for 30kWh")
	assert.Contains(t, msg.Body, "03:30: -4.00p/kWh (PAID £1.20)")
	assert.Contains(t, msg.Body, "Negative price slots:</b> 7")
	assert.Equal(t, 5, strings.Count(msg.Body, "p/kWh (PAID"))
}

func TestFormatRecommendationStatuses(t *testing.T) {
	w := &models.ChargingWindow{
		Start:             time.Date(2025, 3, 11, 1, 0, 0, 0, time.UTC),
		End:               time.Date(2025, 3, 11, 5, 0, 0, 0, time.UTC),
		AvgPrice:          7.25,
		AvgCarbon:         95,
		TotalCost:         2.175,
		Rating:            models.RatingExcellent,
		Reason:            models.ReasonBoth,
		SavingsVsBaseline: 4.5,
		KWh:               30,
	}

	upcoming := FormatRecommendation(w, models.OriginOctopusActual, false, testNow)
	assert.Equal(t, "EV Optimizer: 🔋⚡ Tonight: EXCELLENT opportunity", upcoming.Title)
	assert.Equal(t, 1, upcoming.Priority)
	assert.Contains(t, upcoming.Body, "01:00 AM - 05:00 AM")
	assert.Contains(t, upcoming.Body, "£2.18 for 30kWh")
	assert.Contains(t, upcoming.Body, "7.2p/kWh")
	assert.Contains(t, upcoming.Body, "£4.50 vs evening")
	assert.Contains(t, upcoming.Body, "95 gCO2/kWh (very clean)")
	assert.Contains(t, upcoming.Body, "Both cheap AND clean")
	assert.Contains(t, upcoming.Body, "Actual prices (published) ✅")
	assert.Contains(t, upcoming.Body, "Definitely charge tonight!")

	soon := FormatRecommendation(w, models.OriginForecast, false, w.Start.Add(-90*time.Minute))
	assert.Equal(t, "🕐 Starts in 1h - EV Optimizer: 🔋⚡ Tonight: EXCELLENT opportunity", soon.Title)
	assert.Contains(t, soon.Body, "Forecast prices (predicted)")

	active := FormatRecommendation(w, models.OriginOctopusActual, false, w.Start.Add(95*time.Minute))
	assert.Contains(t, active.Title, "⚡ CHARGING WINDOW IS ACTIVE! ")
	assert.Contains(t, active.Body, "ACTIVE (2h 25m remaining)")
	assert.Contains(t, active.Body, "🟢 ACTIVE NOW! Definitely charge tonight!")

	passed := FormatRecommendation(w, models.OriginOctopusActual, true, w.End.Add(time.Hour))
	assert.Contains(t, passed.Title, "⚠️ LATE NOTIFICATION: ")
	assert.Contains(t, passed.Body, "Window has passed")
	assert.Contains(t, passed.Body, "(estimated)")
	assert.Contains(t, passed.Body, "⏰ Window passed - see next best time below")
}

func TestFormatRecommendationRatings(t *testing.T) {
	tests := []struct {
		rating   models.Rating
		priority int
		sound    string
		action   string
	}{
		{models.RatingGood, 0, "pushover", "Good time to charge"},
		{models.RatingAverage, -1, "none", "Consider waiting if possible"},
		{models.RatingPoor, -1, "none", "Wait for better prices"},
	}
	for _, tt := range tests {
		t.Run(string(tt.rating), func(t *testing.T) {
			w := &models.ChargingWindow{
				Start:     testNow.Add(6 * time.Hour),
				End:       testNow.Add(10 * time.Hour),
				AvgPrice:  18,
				AvgCarbon: 210,
				Rating:    tt.rating,
				Reason:    models.ReasonNeither,
				KWh:       30,
			}
			msg := FormatRecommendation(w, models.OriginForecast, false, testNow)
			assert.Equal(t, tt.priority, msg.Priority)
			assert.Equal(t, tt.sound, msg.Sound)
			assert.Contains(t, msg.Body, tt.action)
			assert.NotContains(t, msg.Body, "Save:")
			assert.NoError(t, msg.Validate())
		})
	}
}

func TestFormatRecommendationNegativeWindow(t *testing.T) {
	w := &models.ChargingWindow{
		Start:    testNow.Add(8 * time.Hour),
		End:      testNow.Add(12 * time.Hour),
		AvgPrice: -3,
		Rating:   models.RatingExcellent,
		KWh:      30,
	}
	msg := FormatRecommendation(w, models.OriginOctopusActual, false, testNow)

	assert.Equal(t, "🚨 NEGATIVE PRICING ALERT! 💰 You'll GET PAID £0.90!", msg.Title)
	assert.Equal(t, 2, msg.Priority)
	assert.Equal(t, "cashregister", msg.Sound)
	assert.Contains(t, msg.Body, "NEGATIVE!")
	assert.Contains(t, msg.Body, "CHARGE NOW - You'll get PAID!")
	assert.NotContains(t, msg.Body, "Why:")
}

func saveRecommendation(t *testing.T, st *store.Store, rating models.Rating, start time.Time) {
	t.Helper()
	w := &models.ChargingWindow{
		Start:             start,
		End:               start.Add(4 * time.Hour),
		AvgPrice:          9,
		AvgCarbon:         120,
		TotalCost:         2.7,
		OpportunityScore:  70,
		Rating:            rating,
		Reason:            models.ReasonCheap,
		SavingsVsBaseline: 3.1,
	}
	require.NoError(t, st.SaveRecommendation(context.Background(), models.NewRecommendation(w, models.OriginOctopusActual, testNow)))
}

func TestRunReminder(t *testing.T) {
	tests := []struct {
		name    string
		rating  models.Rating
		start   time.Duration
		sent    bool
		skipped string
	}{
		{"good and soon", models.RatingGood, 3 * time.Hour, true, ""},
		{"excellent and active", models.RatingExcellent, -time.Hour, true, ""},
		{"poor", models.RatingPoor, 3 * time.Hour, false, "rating below GOOD"},
		{"too early", models.RatingGood, 9 * time.Hour, false, "window not starting soon"},
		{"passed", models.RatingGood, -6 * time.Hour, false, "window passed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			saveRecommendation(t, f.store, tt.rating, testNow.Add(tt.start))
			f.notifier.On("Send", mock.Anything, mock.MatchedBy(func(m notify.Message) bool {
				return strings.Contains(m.Body, "Plug in before bed!") && m.Sound == notify.DefaultSound
			})).Return(true, nil).Maybe()

			res, err := f.planner.RunReminder(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.sent, res.Sent)
			assert.Equal(t, tt.skipped, res.Skipped)
		})
	}
}

func TestRunReminderWithoutRecommendation(t *testing.T) {
	f := newFixture(t)

	res, err := f.planner.RunReminder(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "no recommendation", res.Skipped)
}

func TestFormatReminder(t *testing.T) {
	w := &models.ChargingWindow{
		Start:             time.Date(2025, 3, 11, 1, 30, 0, 0, time.UTC),
		End:               time.Date(2025, 3, 11, 5, 30, 0, 0, time.UTC),
		TotalCost:         2.4,
		Rating:            models.RatingExcellent,
		Reason:            models.ReasonCheap,
		SavingsVsBaseline: 3,
	}
	msg := FormatReminder(models.NewRecommendation(w, models.OriginForecast, testNow), testNow)

	assert.Equal(t, "EV Optimizer: 🔋⚡ Reminder: Good charging opportunity tonight", msg.Title)
	assert.Contains(t, msg.Body, "01:30 - 05:30")
	assert.Contains(t, msg.Body, "<b>Cost:</b> £2.40")
	assert.Contains(t, msg.Body, "<b>Savings:</b> £3.00 vs evening")
}

func TestGeneratePlan(t *testing.T) {
	f := newFixture(t)
	today := clock.Today(testNow)
	published := append(
		series(today, 48, models.PriceMeasured, flat(10)),
		series(today.AddDate(0, 0, 1), 48, models.PriceMeasured, flat(6))...,
	)
	f.published.On("FetchPrices", mock.Anything, "C", mock.Anything, mock.Anything).Return(published, nil)
	f.predicted.On("FetchPrices", mock.Anything, "C", mock.Anything, mock.Anything).
		Return(series(today, 144, models.PricePredicted, flat(4)), nil).Once()
	f.notifier.On("Send", mock.Anything, mock.MatchedBy(func(m notify.Message) bool {
		return m.Title == "📅 3-Day Charging Plan (30kWh)"
	})).Return(true, nil).Once()

	res, err := f.planner.GeneratePlan(context.Background(), PlanOptions{Notify: true})
	require.NoError(t, err)
	plan := res.Plan

	require.Len(t, plan.Days, 3)
	assert.Equal(t, []string{"Today", "Tomorrow", "Day 3"},
		[]string{plan.Days[0].DayName, plan.Days[1].DayName, plan.Days[2].DayName})
	assert.Equal(t, models.OriginOctopusActual, plan.Days[0].PriceSource)
	assert.Equal(t, models.OriginOctopusActual, plan.Days[1].PriceSource)
	assert.Equal(t, models.OriginForecast, plan.Days[2].PriceSource)
	assert.InDelta(t, 3.0, plan.Days[0].Cost, 1e-9)
	assert.InDelta(t, 1.2, plan.Days[1].SavingsVsToday, 1e-9)
	assert.Zero(t, plan.Days[0].SavingsVsToday)

	assert.Equal(t, "2025-03-12", plan.BestDay.Date)
	assert.InDelta(t, 1.8, plan.BestDay.Savings, 1e-9)
	assert.InDelta(t, 60, plan.BestDay.Percentage, 1e-9)
	assert.Contains(t, plan.BestDay.Reason, "on Day 3 (60% cheaper than today)")
	assert.True(t, res.Notified)

	saved := f.store.Plans(30)
	require.Len(t, saved, 1)
	assert.Equal(t, "2025-03-12", saved[0].BestDay.Date)

	for _, d := range plan.Days {
		rec := f.evolution.Evolution(d.Date)
		require.NotNil(t, rec, d.Date)
		assert.Len(t, rec.Snapshots, 1)
	}
	f.predicted.AssertNumberOfCalls(t, "FetchPrices", 1)
}

func TestGeneratePlanSkipsDaysWithoutPrices(t *testing.T) {
	f := newFixture(t)
	today := clock.Today(testNow)
	f.published.On("FetchPrices", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(series(today, 48, models.PriceMeasured, flat(12)), nil)
	f.predicted.On("FetchPrices", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, nil)

	res, err := f.planner.GeneratePlan(context.Background(), PlanOptions{Days: 5})
	require.NoError(t, err)
	require.Len(t, res.Plan.Days, 1)
	assert.Equal(t, "Today has the best prices", res.Plan.BestDay.Reason)
	assert.False(t, res.Notified)
}

func TestGeneratePlanWithoutData(t *testing.T) {
	f := newFixture(t)
	f.published.On("FetchPrices", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("timeout"))
	f.predicted.On("FetchPrices", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, nil)

	_, err := f.planner.GeneratePlan(context.Background(), PlanOptions{})
	assert.ErrorIs(t, err, ErrNoPlanData)
	assert.Empty(t, f.store.Plans(30))
}

func TestGeneratePlanAlertsOnSignificantChange(t *testing.T) {
	f := newFixture(t)
	today := clock.Today(testNow)
	target := today.AddDate(0, 0, 2)
	f.published.On("FetchPrices", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(series(today, 96, models.PriceMeasured, flat(20)), nil)
	f.predicted.On("FetchPrices", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(series(target, 48, models.PricePredicted, flat(18)), nil).Once()
	f.predicted.On("FetchPrices", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(series(target, 48, models.PricePredicted, flat(8)), nil).Once()

	res, err := f.planner.GeneratePlan(context.Background(), PlanOptions{Days: 3, Alerts: true})
	require.NoError(t, err)
	assert.Empty(t, res.Changes)

	// A day later the forecast for the same target is much cheaper.
	f.clock.Set(testNow.AddDate(0, 0, 1))
	f.notifier.On("Send", mock.Anything, mock.MatchedBy(func(m notify.Message) bool {
		return strings.Contains(m.Title, "Forecast Update")
	})).Return(true, nil).Once()

	res, err = f.planner.GeneratePlan(context.Background(), PlanOptions{Days: 2, Alerts: true})
	require.NoError(t, err)
	require.Len(t, res.Changes, 1)
	assert.Equal(t, target.Format(clock.DateLayout), res.Changes[0].TargetDate)
	assert.Equal(t, models.DriftImproved, res.Changes[0].DriftDirection)
	assert.InDelta(t, 50, res.Changes[0].SavingsDrift, 1e-6)
	f.notifier.AssertExpectations(t)
}

func TestBestDay(t *testing.T) {
	comps := []models.DayComparison{
		{Date: "2025-03-10", DayName: "Today", Cost: 2.0},
		{Date: "2025-03-11", DayName: "Tomorrow", Cost: 2.0},
		{Date: "2025-03-12", DayName: "Day 3", Cost: 2.5, SavingsVsToday: -0.5},
	}
	best := bestDay(comps)
	assert.Equal(t, "Today", best.DayName, "ties keep the earliest day")
	assert.Equal(t, "Today has the best prices", best.Reason)
	assert.Zero(t, best.Percentage)

	comps[2] = models.DayComparison{Date: "2025-03-12", DayName: "Day 3", Cost: 1.7, Rating: models.RatingGood}
	assert.Equal(t, "Slightly cheaper on Day 3 (15% cheaper than today)", bestDay(comps).Reason)

	comps[2].Rating = models.RatingExcellent
	assert.Equal(t, "Excellent prices on Day 3 (15% cheaper than today)", bestDay(comps).Reason)

	comps[0].Cost = 5
	comps[2].Rating = models.RatingGood
	assert.Equal(t, "Significant savings on Day 3 (66% cheaper than today)", bestDay(comps).Reason)
}

func TestFormatPlanFitsMessageLimit(t *testing.T) {
	plan := &models.MultiDayPlan{ChargeKWh: 30}
	for i := 0; i < MaxPlanDays; i++ {
		start := testNow.AddDate(0, 0, i)
		plan.Days = append(plan.Days, models.DayComparison{
			Date:           start.Format(clock.DateLayout),
			DayName:        dayName(i),
			Window:         &models.ChargingWindow{Start: start, End: start.Add(4 * time.Hour)},
			Cost:           3 - float64(i)*0.2,
			AvgPrice:       10 - float64(i)*0.6,
			Rating:         models.RatingGood,
			SavingsVsToday: float64(i) * 0.2,
			PriceSource:    models.OriginForecast,
		})
	}
	plan.BestDay = bestDay(plan.Days)

	msg := FormatPlan(plan)
	assert.Equal(t, "📅 7-Day Charging Plan (30kWh)", msg.Title)
	assert.NoError(t, msg.Validate())
	assert.Contains(t, msg.Body, "BEST DAY: DAY 7")
	assert.Contains(t, msg.Body, "✨ Day 7")
}

func TestRunComparison(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(time.Date(2025, 3, 10, 23, 55, 0, 0, time.UTC))
	today := clock.Today(testNow)
	date := today.Format(clock.DateLayout)
	f.published.On("FetchPrices", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(series(today, 48, models.PriceMeasured, flat(20)), nil)
	f.predicted.On("FetchPrices", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(series(today, 48, models.PricePredicted, flat(22)), nil)

	_, err := f.evolution.RecordSnapshot(context.Background(), date, models.Prediction{
		Date: date, PriceSource: models.OriginForecast, AvgPrice: 22, Cost: 6.6, Rating: models.RatingPoor,
	}, nil)
	require.NoError(t, err)

	res, err := f.planner.RunComparison(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.Record)
	assert.Equal(t, 24, res.Record.NumHours)
	assert.InDelta(t, 2.0, res.Record.MeanAbsoluteError, 1e-9)
	assert.InDelta(t, -2.0, res.Record.MeanError, 1e-9, "forecast ran high")
	assert.Equal(t, "forecast", res.Record.ForecastSource)
	assert.True(t, res.Trusted)

	rec := f.evolution.Evolution(date)
	require.NotNil(t, rec)
	require.NotNil(t, rec.ActualResult)
	assert.InDelta(t, 6.0, rec.ActualResult.ActualCost, 1e-9)
}

func TestRunComparisonSkipsShortForecast(t *testing.T) {
	f := newFixture(t)
	today := clock.Today(testNow)
	f.published.On("FetchPrices", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(series(today, 48, models.PriceMeasured, flat(20)), nil)
	f.predicted.On("FetchPrices", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(series(today, 30, models.PricePredicted, flat(21)), nil)

	res, err := f.planner.RunComparison(context.Background())
	require.NoError(t, err)
	assert.Nil(t, res.Record)
	assert.Equal(t, "only 15 forecast hours", res.Skipped)
	assert.Empty(t, f.accuracy.Comparisons())
}

func TestRunComparisonRequiresFullActuals(t *testing.T) {
	f := newFixture(t)
	today := clock.Today(testNow)
	f.published.On("FetchPrices", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(series(today, 40, models.PriceMeasured, flat(20)), nil)

	_, err := f.planner.RunComparison(context.Background())
	assert.ErrorIs(t, err, ErrIncompleteActuals)
	f.predicted.AssertNotCalled(t, "FetchPrices", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHourlyAverages(t *testing.T) {
	day := clock.Today(testNow)
	slots := []models.PriceSlot{
		{Time: day, Price: 10},
		{Time: day.Add(30 * time.Minute), Price: 14},
		{Time: day.Add(5 * time.Hour), Price: 7},
		{Time: day.Add(25 * time.Hour), Price: 99},
	}
	avg := hourlyAverages(slots, day)

	require.NotNil(t, avg[0])
	assert.Equal(t, 12.0, *avg[0])
	require.NotNil(t, avg[5])
	assert.Equal(t, 7.0, *avg[5])
	assert.Nil(t, avg[1])
}
