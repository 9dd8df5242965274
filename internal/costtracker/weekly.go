package costtracker

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/smart-charge/internal/metrics"
	"github.com/yourusername/smart-charge/internal/models"
	"github.com/yourusername/smart-charge/internal/notify"
	"github.com/yourusername/smart-charge/internal/stats"
)

const (
	// WeeklyTitle is the notification title of the weekly summary.
	WeeklyTitle = "EV Optimizer: Weekly Charging Summary"

	weekDays = 7
	// weekly accuracy is only shown once this many comparisons exist
	minWeeklyComparisons = 3
	// average price gap in p/kWh before one day type counts as cheaper
	dayTypePriceGap = 2.0
)

// DayTypeStats splits a week's opportunities and charges by day type.
type DayTypeStats struct {
	Days              int     `json:"days"`
	AvgPrice          float64 `json:"avg_price"`
	GoodOpportunities int     `json:"good_opportunities"`
	Charges           int     `json:"charges"`
	ChargesOnGoodDays int     `json:"charges_on_good_days"`
	AdherenceRate     float64 `json:"adherence_rate"`
}

// WeeklySummary compares a week of recommendations with the charges logged.
type WeeklySummary struct {
	From                 string                `json:"from"`
	To                   string                `json:"to"`
	Recommendations      int                   `json:"recommendations"`
	RatingCounts         map[models.Rating]int `json:"rating_counts"`
	GoodOpportunities    int                   `json:"good_opportunities"`
	NumCharges           int                   `json:"num_charges"`
	ChargesOnGoodDays    int                   `json:"charges_on_good_days"`
	AdherenceRate        float64               `json:"adherence_rate"`
	AvgRecommendedCost   float64               `json:"avg_recommended_cost"`
	AvgRecommendedCarbon float64               `json:"avg_recommended_carbon"`
	ActualCost           float64               `json:"actual_cost"`
	ActualCarbon         int                   `json:"actual_carbon"`
	SavingsPotential     float64               `json:"savings_potential"`
	RealizedSavings      float64               `json:"realized_savings"`
	RealizedSavingsPct   float64               `json:"realized_savings_pct"`
	Weekday              DayTypeStats          `json:"weekday"`
	Weekend              DayTypeStats          `json:"weekend"`
}

// AccuracyReporter is the part of the forecast accuracy tracker the weekly
// summary reports on.
type AccuracyReporter interface {
	RecentAccuracy(days int) models.AccuracySummary
	ReliabilityGrade(days int) models.ReliabilityGrade
}

// WeeklyReport is the result of a weekly reporting run.
type WeeklyReport struct {
	Summary     *WeeklySummary
	Accuracy    *models.AccuracySummary
	Grade       models.ReliabilityGrade
	MonthToDate *MonthlySummary
	Message     notify.Message
	Sent        bool
	Skipped     string
}

// AnalyzeWeek summarises recommendations against logged charges. When a date
// has several recommendations the last one wins. Realised savings assume each
// charge would otherwise have cost kwhPerCharge at the standard rate.
func AnalyzeWeek(recs []models.Recommendation, actions []models.UserAction, kwhPerCharge float64) *WeeklySummary {
	byDate := make(map[string]models.Recommendation, len(recs))
	for _, r := range recs {
		byDate[r.Date] = r
	}

	w := &WeeklySummary{
		RatingCounts: map[models.Rating]int{
			models.RatingExcellent: 0,
			models.RatingGood:      0,
			models.RatingAverage:   0,
			models.RatingPoor:      0,
		},
	}
	var (
		cost, carbon, potential decimal.Decimal
		weekdayPrices           []float64
		weekendPrices           []float64
	)
	for date, r := range byDate {
		if w.From == "" || date < w.From {
			w.From = date
		}
		if date > w.To {
			w.To = date
		}
		w.Recommendations++
		w.RatingCounts[r.Rating]++
		cost = cost.Add(decimal.NewFromFloat(r.TotalCost))
		carbon = carbon.Add(decimal.NewFromInt(int64(r.TotalCarbon)))
		potential = potential.Add(decimal.NewFromFloat(r.Savings))

		day := &w.Weekday
		if r.DayType == models.DayWeekend {
			day = &w.Weekend
			weekendPrices = append(weekendPrices, r.AvgPrice)
		} else {
			weekdayPrices = append(weekdayPrices, r.AvgPrice)
		}
		day.Days++
		if r.IsGoodOpportunity() {
			w.GoodOpportunities++
			day.GoodOpportunities++
		}
	}

	actual := decimal.Zero
	for _, a := range actions {
		w.NumCharges++
		r, ok := byDate[a.Date]
		if !ok {
			continue
		}
		day := &w.Weekday
		if r.DayType == models.DayWeekend {
			day = &w.Weekend
		}
		day.Charges++
		if r.IsGoodOpportunity() {
			w.ChargesOnGoodDays++
			day.ChargesOnGoodDays++
		}
		actual = actual.Add(decimal.NewFromFloat(r.TotalCost))
		w.ActualCarbon += r.TotalCarbon
	}

	if w.Recommendations > 0 {
		n := decimal.NewFromInt(int64(w.Recommendations))
		w.AvgRecommendedCost = cost.Div(n).Round(2).InexactFloat64()
		w.AvgRecommendedCarbon = carbon.Div(n).Round(0).InexactFloat64()
	}
	w.ActualCost = actual.Round(2).InexactFloat64()
	w.SavingsPotential = potential.Round(2).InexactFloat64()

	baseline := decimal.NewFromFloat(kwhPerCharge).Mul(decimal.NewFromFloat(StandardRate)).Div(decimal.NewFromInt(100))
	realized := baseline.Mul(decimal.NewFromInt(int64(w.NumCharges))).Sub(actual)
	w.RealizedSavings = realized.Round(2).InexactFloat64()
	if potential.IsPositive() {
		w.RealizedSavingsPct = stats.Round(realized.Div(potential).InexactFloat64()*100, 1)
	}

	w.AdherenceRate = adherence(w.ChargesOnGoodDays, w.GoodOpportunities)
	w.Weekday.AdherenceRate = adherence(w.Weekday.ChargesOnGoodDays, w.Weekday.GoodOpportunities)
	w.Weekend.AdherenceRate = adherence(w.Weekend.ChargesOnGoodDays, w.Weekend.GoodOpportunities)
	if len(weekdayPrices) > 0 {
		w.Weekday.AvgPrice = stats.Round(stats.Mean(weekdayPrices), 2)
	}
	if len(weekendPrices) > 0 {
		w.Weekend.AvgPrice = stats.Round(stats.Mean(weekendPrices), 2)
	}
	return w
}

func adherence(onGood, good int) float64 {
	if good == 0 {
		return 0
	}
	return stats.Round(float64(onGood)/float64(good)*100, 1)
}

// RunWeekly summarises the last seven days and sends the summary through n
// when it is non-nil. A week without recommendations sends nothing.
func (t *Tracker) RunWeekly(ctx context.Context, n notify.Notifier, acc AccuracyReporter, kwhPerCharge float64) (*WeeklyReport, error) {
	recs, err := t.recs.Recommendations(ctx, weekDays)
	if err != nil {
		return nil, fmt.Errorf("failed to load recommendations: %w", err)
	}
	if len(recs) == 0 {
		t.logger.Warn("No recommendations in the last week, skipping weekly summary")
		return &WeeklyReport{Skipped: "no recommendations in the last 7 days"}, nil
	}
	actions, err := t.actions.UserActions(ctx, weekDays)
	if err != nil {
		return nil, fmt.Errorf("failed to load user actions: %w", err)
	}

	report := &WeeklyReport{Summary: AnalyzeWeek(recs, actions, kwhPerCharge)}
	if acc != nil {
		s := acc.RecentAccuracy(weekDays)
		report.Accuracy = &s
		report.Grade = acc.ReliabilityGrade(weekDays)
	}
	now := t.clock.Now().UTC()
	mtd, err := t.MonthlySummary(ctx, now.Year(), int(now.Month()), kwhPerCharge)
	if err != nil {
		t.logger.WithError(err).Warn("Month-to-date costs unavailable")
	} else {
		report.MonthToDate = mtd
	}
	report.Message = FormatWeeklySummary(report)

	t.logger.WithFields(logrus.Fields{
		"from":      report.Summary.From,
		"to":        report.Summary.To,
		"charges":   report.Summary.NumCharges,
		"adherence": report.Summary.AdherenceRate,
	}).Info("Weekly summary generated")

	if n == nil {
		return report, nil
	}
	sent, err := n.Send(ctx, report.Message)
	if err != nil {
		return report, fmt.Errorf("failed to send weekly summary: %w", err)
	}
	report.Sent = sent
	metrics.RecordNotification("weekly", sent)
	return report, nil
}

// FormatWeeklySummary renders the core summary, then adds the day type,
// accuracy and month-to-date sections in that order while the message stays
// within the notification length limit.
func FormatWeeklySummary(r *WeeklyReport) notify.Message {
	body := weeklyCore(r.Summary)
	for _, section := range []string{
		dayTypeSection(r.Summary),
		accuracySection(r.Accuracy, r.Grade),
		monthToDateSection(r.MonthToDate),
	} {
		if section == "" {
			continue
		}
		if utf8.RuneCountInString(body)+utf8.RuneCountInString(section) > notify.MaxMessageLength {
			continue
		}
		body += section
	}
	return notify.Message{
		Title:    WeeklyTitle,
		Body:     body,
		Priority: 0,
		Sound:    notify.DefaultSound,
		HTML:     true,
	}
}

func weeklyCore(w *WeeklySummary) string {
	var b strings.Builder
	b.WriteString("<b>📊 Weekly Charging Summary</b>\n\n")

	b.WriteString("<b>🎯 Opportunities this week:</b>\n")
	for _, line := range []struct {
		rating models.Rating
		label  string
	}{
		{models.RatingExcellent, "⚡ %d excellent days"},
		{models.RatingGood, "✅ %d good days"},
		{models.RatingAverage, "🔌 %d average days"},
	} {
		if n := w.RatingCounts[line.rating]; n > 0 {
			b.WriteString("  " + fmt.Sprintf(line.label, n) + "\n")
		}
	}

	b.WriteString("\n<b>📈 Your performance:</b>\n")
	fmt.Fprintf(&b, "  Charges completed: %d\n", w.NumCharges)
	if w.GoodOpportunities > 0 {
		fmt.Fprintf(&b, "  Charged on good days: %d/%d\n", w.ChargesOnGoodDays, w.GoodOpportunities)
		fmt.Fprintf(&b, "  Adherence rate: %.0f%%\n", w.AdherenceRate)
	}

	b.WriteString("\n<b>💰 Cost analysis:</b>\n")
	if w.NumCharges > 0 {
		fmt.Fprintf(&b, "  Total spent: %s\n", pounds(w.ActualCost))
		fmt.Fprintf(&b, "  Avg per charge: %s\n", pounds(w.ActualCost/float64(w.NumCharges)))
		if w.RealizedSavings > 0 {
			fmt.Fprintf(&b, "  You saved: %s\n", pounds(w.RealizedSavings))
			fmt.Fprintf(&b, "  Savings rate: %.0f%%\n", w.RealizedSavingsPct)
		}
	} else {
		fmt.Fprintf(&b, "  Recommended avg: %s/charge\n", pounds(w.AvgRecommendedCost))
	}

	b.WriteString("\n<b>💡 Tip:</b> ")
	switch {
	case w.AdherenceRate >= 80:
		b.WriteString("Excellent adherence! Keep it up! 🎉")
	case w.AdherenceRate >= 60:
		b.WriteString("Good work! Try to catch more excellent days.")
	case w.AdherenceRate >= 40:
		b.WriteString("You're doing okay. Watch for excellent ratings!")
	default:
		b.WriteString("Try to charge on excellent/good days for max savings.")
	}
	b.WriteString("\n")
	return b.String()
}

// dayTypeSection needs at least two weekdays and one weekend day.
func dayTypeSection(w *WeeklySummary) string {
	wd, we := w.Weekday, w.Weekend
	if wd.Days < 2 || we.Days < 1 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n<b>📅 Weekend vs Weekday Patterns:</b>\n")
	fmt.Fprintf(&b, "  Weekday avg: %.1fp/kWh (%d days)\n", wd.AvgPrice, wd.Days)
	fmt.Fprintf(&b, "  Weekend avg: %.1fp/kWh (%d days)\n", we.AvgPrice, we.Days)

	if wd.GoodOpportunities > 0 || we.GoodOpportunities > 0 {
		b.WriteString("\n<b>📊 Adherence by day type:</b>\n")
		if wd.GoodOpportunities > 0 {
			fmt.Fprintf(&b, "  Weekdays: %.0f%% (%d/%d)\n", wd.AdherenceRate, wd.ChargesOnGoodDays, wd.GoodOpportunities)
		}
		if we.GoodOpportunities > 0 {
			fmt.Fprintf(&b, "  Weekends: %.0f%% (%d/%d)\n", we.AdherenceRate, we.ChargesOnGoodDays, we.GoodOpportunities)
		}
	}

	b.WriteString("\n<b>💡 Insight:</b> ")
	switch {
	case we.AvgPrice < wd.AvgPrice-dayTypePriceGap:
		b.WriteString("Weekends are cheaper - prioritize weekend charging!\n")
		if we.AdherenceRate < wd.AdherenceRate-10 {
			b.WriteString("  ⚠️ Weekend recommendations are followed less often. Plan Sunday charges in advance!\n")
		}
	case wd.AvgPrice < we.AvgPrice-dayTypePriceGap:
		b.WriteString("Weekdays are cheaper this week - weekday charging is better!\n")
		if wd.AdherenceRate < we.AdherenceRate-10 {
			b.WriteString("  ⚠️ Try to catch those cheaper weekday opportunities!\n")
		}
	default:
		b.WriteString("Similar pricing throughout week\n")
		if math.Abs(wd.AdherenceRate-we.AdherenceRate) > 15 {
			if we.AdherenceRate > wd.AdherenceRate {
				b.WriteString("  📈 You charge more reliably on weekends - good routine!\n")
			} else {
				b.WriteString("  📈 You charge more reliably on weekdays - good routine!\n")
			}
		}
	}
	return b.String()
}

func accuracySection(s *models.AccuracySummary, grade models.ReliabilityGrade) string {
	if s == nil || s.NumComparisons < minWeeklyComparisons || s.MeanAbsoluteError == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\n<b>📈 Forecast Accuracy (%d days):</b>\n", weekDays)
	fmt.Fprintf(&b, "  Grade: %s\n", grade)
	fmt.Fprintf(&b, "  Avg Error: %.2fp/kWh\n", *s.MeanAbsoluteError)
	if s.NegativePricingPredicts > 0 && s.NegativePricingAccuracy != nil {
		fmt.Fprintf(&b, "  Negative pricing: %.0f%% accurate\n", *s.NegativePricingAccuracy*100)
	}
	fmt.Fprintf(&b, "  Trend: %s\n", strings.ReplaceAll(string(s.Trend), "_", " "))
	return b.String()
}

func monthToDateSection(m *MonthlySummary) string {
	if m == nil || m.NumCharges == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\n<b>📅 Month-to-Date (%s)</b>\n", monthName(m))
	fmt.Fprintf(&b, "  Total spent: %s\n", pounds(m.TotalCost))
	fmt.Fprintf(&b, "  Charges: %d\n", m.NumCharges)
	fmt.Fprintf(&b, "  Saved vs standard: %s\n", pounds(m.Baselines.StandardSavings))
	if m.GoodOpportunities > 0 {
		fmt.Fprintf(&b, "  Monthly adherence: %.0f%%\n", m.AdherenceRate)
	}
	return b.String()
}
