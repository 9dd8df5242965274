package planner

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/smart-charge/internal/analyzer"
	"github.com/yourusername/smart-charge/internal/clock"
	"github.com/yourusername/smart-charge/internal/datasource"
	"github.com/yourusername/smart-charge/internal/forecast"
	"github.com/yourusername/smart-charge/internal/metrics"
	"github.com/yourusername/smart-charge/internal/models"
	"github.com/yourusername/smart-charge/internal/notify"
)

const (
	// extraPublishedSlots is the margin over the charge length a day's
	// published prices need before they are preferred to the forecast.
	extraPublishedSlots = 4
	// publishedHorizon is how far ahead published tariffs can exist.
	publishedHorizon  = 48 * time.Hour
	significantSaving = 2.0
	goodSaving        = 1.0
	accuracyWindow    = 7
)

// PlanOptions overrides the configured plan parameters for one run.
type PlanOptions struct {
	Days   int
	KWh    float64
	Notify bool
	// Alerts sends a notification for each significant forecast change.
	Alerts bool
}

// PlanResult is a generated plan plus the side effects of producing it.
type PlanResult struct {
	Plan     *models.MultiDayPlan
	Changes  []models.SignificantChange
	Notified bool
}

type dayData struct {
	date   time.Time
	prices []models.PriceSlot
	carbon []models.CarbonSlot
	source models.DataOrigin
}

// GeneratePlan compares the best window of each coming day and picks the
// cheapest. Days without usable prices are left out of the plan.
func (p *Planner) GeneratePlan(ctx context.Context, opts PlanOptions) (*PlanResult, error) {
	days := opts.Days
	if days <= 0 || days > MaxPlanDays {
		days = p.cfg.PlanDays
	}
	kwh := opts.KWh
	if kwh <= 0 {
		kwh = p.cfg.ChargeKWh
	}
	hours := p.cfg.ChargeHours(kwh)
	now := p.clock.Now().UTC()
	today := clock.Today(now)

	data := p.multiDayPrices(ctx, today, days, hours)
	comps := p.compareDays(data, hours)
	if len(comps) == 0 {
		return nil, ErrNoPlanData
	}

	res := &PlanResult{}
	res.Changes = p.recordSnapshots(ctx, comps)

	plan := &models.MultiDayPlan{
		GeneratedAt: now,
		ChargeKWh:   kwh,
		Days:        comps,
		BestDay:     bestDay(comps),
	}
	if err := p.store.SavePlan(ctx, plan); err != nil {
		return nil, fmt.Errorf("failed to save plan: %w", err)
	}
	res.Plan = plan
	metrics.RecordPlanGenerated(plan.BestDay.Savings)
	p.logger.LogPlanGenerated(len(comps), plan.BestDay.Date, plan.BestDay.Cost, plan.BestDay.Savings)

	if opts.Notify {
		msg := FormatPlan(plan)
		res.Notified = p.send(ctx, "plan", msg)
		p.audit.LogNotification(msg.Title, msg.Priority, res.Notified, "multi-day plan")
	}
	if opts.Alerts {
		for _, change := range res.Changes {
			msg := forecast.FormatEvolutionAlert(change)
			sent := p.send(ctx, "evolution", msg)
			p.audit.LogNotification(msg.Title, msg.Priority, sent, "significant forecast change")
		}
	}
	return res, nil
}

// multiDayPrices gathers per-day series. Published prices are used for a day
// when they cover the charge with margin, otherwise the forecast.
func (p *Planner) multiDayPrices(ctx context.Context, today time.Time, days int, hours float64) []dayData {
	end := today.AddDate(0, 0, days)

	var published []models.PriceSlot
	if p.sources.Published != nil {
		slots, err := p.sources.Published.FetchPrices(ctx, p.cfg.Region, today, today.Add(publishedHorizon))
		if err != nil {
			p.logger.WithError(err).Error("Failed to fetch published prices")
		}
		published = slots
	}

	var predicted []models.PriceSlot
	fetchedForecast := false
	forecastFor := func() []models.PriceSlot {
		if !fetchedForecast && p.sources.Predicted != nil {
			fetchedForecast = true
			slots, err := p.sources.Predicted.FetchPrices(ctx, p.cfg.Region, today, end)
			if err != nil {
				p.logger.WithError(err).Error("Failed to fetch forecast prices")
			}
			predicted = slots
		}
		return predicted
	}

	var carbon []models.CarbonSlot
	if p.sources.Carbon != nil {
		c, err := p.sources.Carbon.FetchCarbon(ctx, today, end)
		if err != nil {
			p.logger.WithError(err).Warn("Carbon fetch failed")
		}
		carbon = c
	}

	minSlots := analyzer.SlotsFor(hours) + extraPublishedSlots
	out := make([]dayData, 0, days)
	for offset := 0; offset < days; offset++ {
		day := today.AddDate(0, 0, offset)
		next := day.AddDate(0, 0, 1)
		log := p.logger.WithField("day", offset)

		d := dayData{date: day, source: models.OriginOctopusActual}
		d.prices = models.FilterPrices(published, day, next)
		if len(d.prices) < minSlots {
			d.prices = models.FilterPrices(forecastFor(), day, next)
			d.source = models.OriginForecast
		}
		log.WithFields(logrus.Fields{
			"source": d.source,
			"slots":  len(d.prices),
		}).Debug("Day prices selected")

		dayCarbon := models.FilterCarbon(carbon, day, next)
		if len(dayCarbon) == 0 && len(d.prices) > 0 {
			p.logger.LogDegradedCarbon(len(d.prices), models.NeutralCarbonIntensity)
		}
		d.carbon = datasource.CarbonFor(d.prices, dayCarbon)
		out = append(out, d)
	}
	return out
}

// compareDays finds each day's window and prices it against today.
func (p *Planner) compareDays(data []dayData, hours float64) []models.DayComparison {
	comps := make([]models.DayComparison, 0, len(data))
	for i, d := range data {
		if len(d.prices) == 0 {
			p.logger.WithField("day", i).Warn("No price data for day, skipping")
			continue
		}
		baseline := p.baseline(d.date)
		window, err := p.selector.FindOptimalWindow(d.prices, d.carbon, hours, &baseline)
		if err != nil {
			p.logger.WithError(err).WithField("day", i).Warn("No window for day, skipping")
			continue
		}
		comps = append(comps, models.DayComparison{
			Date:        d.date.Format(clock.DateLayout),
			DayName:     dayName(i),
			Window:      window,
			Cost:        window.TotalCost,
			AvgPrice:    window.AvgPrice,
			Rating:      window.Rating,
			PriceSource: d.source,
		})
	}
	if len(comps) > 0 {
		base := comps[0].Cost
		for i := range comps {
			comps[i].SavingsVsToday = base - comps[i].Cost
		}
	}
	return comps
}

// recordSnapshots feeds each day into the evolution tracker. Failures are
// logged and never fail the plan.
func (p *Planner) recordSnapshots(ctx context.Context, comps []models.DayComparison) []models.SignificantChange {
	if p.evolution == nil {
		return nil
	}
	var mae *float64
	if p.accuracy != nil {
		mae = p.accuracy.RecentMAE(accuracyWindow)
	}
	var changes []models.SignificantChange
	for i := range comps {
		if _, err := p.evolution.RecordSnapshot(ctx, comps[i].Date, comps[i].Prediction(), mae); err != nil {
			p.logger.WithError(err).WithField("date", comps[i].Date).Warn("Failed to record forecast snapshot")
			continue
		}
		if change := p.evolution.DetectSignificantChange(comps[i].Date); change != nil {
			metrics.RecordSignificantChange(string(change.DriftDirection))
			changes = append(changes, *change)
		}
	}
	return changes
}

func dayName(offset int) string {
	switch offset {
	case 0:
		return "Today"
	case 1:
		return "Tomorrow"
	default:
		return fmt.Sprintf("Day %d", offset+1)
	}
}

// bestDay picks the cheapest day, keeping the earliest on ties.
func bestDay(comps []models.DayComparison) models.BestDay {
	today := comps[0]
	best := today
	for _, c := range comps[1:] {
		if c.Cost < best.Cost {
			best = c
		}
	}

	savings := today.Cost - best.Cost
	var pct float64
	if today.Cost > 0 {
		pct = savings / today.Cost * 100
	}

	var reason string
	switch {
	case best.Date == today.Date:
		reason = "Today has the best prices"
	case best.Rating == models.RatingExcellent:
		reason = "Excellent prices on " + best.DayName
	case savings >= significantSaving:
		reason = "Significant savings on " + best.DayName
	default:
		reason = "Slightly cheaper on " + best.DayName
	}
	if best.Date != today.Date {
		reason += fmt.Sprintf(" (%.0f%% cheaper than today)", pct)
	}

	return models.BestDay{
		Date:       best.Date,
		DayName:    best.DayName,
		Cost:       best.Cost,
		Savings:    savings,
		Percentage: pct,
		Reason:     reason,
	}
}

var planRatingEmoji = map[models.Rating]string{
	models.RatingExcellent: "⚡",
	models.RatingGood:      "✅",
	models.RatingAverage:   "⚠️",
	models.RatingPoor:      "❌",
}

// FormatPlan renders a plan for Pushover. Long plans fall back to one line
// per day so the message stays within the size limit.
func FormatPlan(plan *models.MultiDayPlan) notify.Message {
	title := fmt.Sprintf("📅 %d-Day Charging Plan (%.0fkWh)", len(plan.Days), plan.ChargeKWh)
	body := planBody(plan, true)
	if len([]rune(body)) > notify.MaxMessageLength {
		body = planBody(plan, false)
	}
	return notify.Message{
		Title:    title,
		Body:     body,
		Priority: 0,
		Sound:    "cosmic",
		HTML:     true,
	}
}

func planBody(plan *models.MultiDayPlan, detailed bool) string {
	var b strings.Builder
	b.WriteString("<b>💰 Price Comparison:</b>\n\n")
	todayCost := plan.Days[0].Cost

	for _, day := range plan.Days {
		label := day.DayName
		if t, err := clock.ParseDate(day.Date, time.UTC); err == nil {
			label = fmt.Sprintf("%s (%s)", day.DayName, t.Format("Mon Jan 02"))
		}
		if day.Date == plan.BestDay.Date {
			label = "✨ " + label
		}
		window := fmt.Sprintf("%s - %s", day.Window.Start.Format("15:04"), day.Window.End.Format("15:04"))

		if !detailed {
			fmt.Fprintf(&b, "<b>%s</b> %s %s %s\n", label, window, pounds(day.Cost), planRatingEmoji[day.Rating])
			continue
		}
		fmt.Fprintf(&b, "<b>%s</b>\n", label)
		fmt.Fprintf(&b, "⚡ Window: %s\n", window)
		fmt.Fprintf(&b, "💵 Cost: %s (%.1fp/kWh)\n", pounds(day.Cost), day.AvgPrice)
		fmt.Fprintf(&b, "⭐ Rating: %s %s\n", day.Rating, planRatingEmoji[day.Rating])
		if day.PriceSource == models.OriginOctopusActual {
			b.WriteString("📊 Data: Actual prices ✅\n")
		} else {
			b.WriteString("📊 Data: Forecast (predicted)\n")
		}
		if todayCost > 0 {
			pct := math.Abs(day.SavingsVsToday / todayCost * 100)
			switch {
			case day.SavingsVsToday > 0:
				fmt.Fprintf(&b, "💚 Save: %s (%.0f%% cheaper)\n", pounds(day.SavingsVsToday), pct)
			case day.SavingsVsToday < 0:
				fmt.Fprintf(&b, "💸 More: %s (%.0f%% pricier)\n", pounds(-day.SavingsVsToday), pct)
			}
		}
		b.WriteString("\n")
	}

	best := plan.BestDay
	if !detailed {
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "<b>🎯 BEST DAY: %s</b>\n", strings.ToUpper(best.DayName))
	switch {
	case best.Savings > 0:
		fmt.Fprintf(&b, "💰 Savings: %s vs today (%.0f%% cheaper)\n", pounds(best.Savings), best.Percentage)
		if best.Savings >= significantSaving {
			b.WriteString("✨ Excellent savings opportunity!\n")
		} else if best.Savings >= goodSaving {
			b.WriteString("👍 Good savings available\n")
		}
	default:
		fmt.Fprintf(&b, "💡 %s\n", best.Reason)
	}
	b.WriteString("\n<i>💡 Decision is yours - you know your battery!</i>")
	return b.String()
}
