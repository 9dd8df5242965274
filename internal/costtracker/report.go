package costtracker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yourusername/smart-charge/internal/metrics"
	"github.com/yourusername/smart-charge/internal/models"
	"github.com/yourusername/smart-charge/internal/notify"
)

// ReportTitle is the notification title of the monthly report.
const ReportTitle = "EV Optimizer: Monthly Charging Report"

// MonthlyReport is the result of a monthly reporting run.
type MonthlyReport struct {
	Summary    *MonthlySummary
	Projection Projection
	Message    notify.Message
	Sent       bool
}

// RunMonthly summarises the month before now, saves it to the cost history
// and sends the report through n when it is non-nil.
func (t *Tracker) RunMonthly(ctx context.Context, n notify.Notifier, kwhPerCharge float64) (*MonthlyReport, error) {
	now := t.clock.Now().UTC()
	last := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)

	summary, err := t.SaveMonthlyAggregate(ctx, last.Year(), int(last.Month()), kwhPerCharge)
	if err != nil {
		return nil, err
	}
	report := &MonthlyReport{
		Summary:    summary,
		Projection: t.YearlyProjection(last.Year()),
	}
	report.Message = FormatMonthlySummary(summary, report.Projection)

	if n == nil {
		return report, nil
	}
	sent, err := n.Send(ctx, report.Message)
	if err != nil {
		return report, fmt.Errorf("failed to send monthly report: %w", err)
	}
	report.Sent = sent
	metrics.RecordNotification("monthly", sent)
	return report, nil
}

// FormatMonthlySummary renders a month's summary and the year to date.
func FormatMonthlySummary(s *MonthlySummary, p Projection) notify.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>📊 Monthly Charging Report - %s %d</b>\n\n", monthName(s), s.Year)

	b.WriteString("<b>💰 Cost Summary:</b>\n")
	if s.NumCharges == 0 {
		b.WriteString("  No charges this month\n")
	} else {
		fmt.Fprintf(&b, "  Total spent: %s\n", pounds(s.TotalCost))
		fmt.Fprintf(&b, "  Number of charges: %d\n", s.NumCharges)
		fmt.Fprintf(&b, "  Avg per charge: %s\n", pounds(s.AvgCostPerCharge))

		bl := s.Baselines
		b.WriteString("\n<b>💸 Savings vs Baseline:</b>\n")
		fmt.Fprintf(&b, "  vs Standard rate (%.0fp/kWh): %s\n", StandardRate, pounds(bl.StandardSavings))
		fmt.Fprintf(&b, "  vs Peak charging (%.0fp/kWh): %s\n", PeakRate, pounds(bl.PeakSavings))
		if bl.StandardSavings > 0 && bl.StandardCost > 0 {
			fmt.Fprintf(&b, "  💡 Saved %.0f%% vs standard rate\n", bl.StandardSavings/bl.StandardCost*100)
		}

		b.WriteString("\n<b>📈 Performance:</b>\n")
		fmt.Fprintf(&b, "  Adherence: %.0f%%\n", s.AdherenceRate)
		fmt.Fprintf(&b, "  Good opportunities: %d/%d\n", s.ChargesOnGoodDays, s.GoodOpportunities)
		writeBreakdown(&b, s)
	}

	if p.MonthsOfData > 0 {
		fmt.Fprintf(&b, "\n<b>🎯 Year to Date (%d months):</b>\n", p.MonthsOfData)
		fmt.Fprintf(&b, "  Total saved: %s\n", pounds(p.YTDSavings))
		fmt.Fprintf(&b, "  Total charges: %d\n", p.YTDCharges)
		if p.MonthsOfData >= 2 {
			fmt.Fprintf(&b, "  Projected annual savings: %s\n", pounds(p.ProjectedAnnualSavings))
		}
	}

	if s.NumCharges > 0 {
		b.WriteString("\n<b>💡 Insight:</b> ")
		b.WriteString(insight(s.AdherenceRate))
	}

	return notify.Message{
		Title:    ReportTitle,
		Body:     b.String(),
		Priority: 0,
		Sound:    notify.DefaultSound,
		HTML:     true,
	}
}

var breakdown = []struct {
	rating models.Rating
	label  string
}{
	{models.RatingExcellent, "⚡ %d excellent"},
	{models.RatingGood, "✅ %d good"},
	{models.RatingAverage, "🔌 %d average"},
	{models.RatingPoor, "⚠️ %d poor"},
}

func writeBreakdown(b *strings.Builder, s *MonthlySummary) {
	if s.NumCharges == 0 {
		return
	}
	header := false
	for _, r := range breakdown {
		n := s.ChargesByRating[r.rating]
		if n == 0 {
			continue
		}
		if !header {
			b.WriteString("  Charge breakdown:\n")
			header = true
		}
		b.WriteString("    " + fmt.Sprintf(r.label, n) + "\n")
	}
}

func insight(adherence float64) string {
	switch {
	case adherence >= 80:
		return "Outstanding! You're maximizing your savings by charging on the best days."
	case adherence >= 60:
		return "Great work! Keep watching for excellent opportunities to save even more."
	case adherence >= 40:
		return "You're doing okay. Try to prioritize excellent/good days for bigger savings."
	default:
		return "Focus on charging during excellent/good rated days for maximum savings."
	}
}

func monthName(s *MonthlySummary) string {
	return time.Month(s.Month).String()
}

func pounds(v float64) string {
	return "£" + decimal.NewFromFloat(v).StringFixed(2)
}
