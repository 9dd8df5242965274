package planner

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/smart-charge/internal/metrics"
	"github.com/yourusername/smart-charge/internal/models"
	"github.com/yourusername/smart-charge/internal/notify"
)

const (
	exceptionalAvgPrice = 8.0
	exceptionalSavings  = 1.50
	negativeSlotsShown  = 5
)

// DailyResult is the outcome of one recommendation run.
type DailyResult struct {
	Recommendation *models.Recommendation
	Window         *models.ChargingWindow
	Source         models.DataOrigin
	DegradedCarbon bool
	NegativeSlots  []models.PriceSlot
	Notified       bool
	NegativeAlert  bool
}

// RunDaily fetches prices through the source chain, selects tonight's
// window, persists it and notifies when the opportunity is exceptional.
func (p *Planner) RunDaily(ctx context.Context, notifyUser bool) (*DailyResult, error) {
	now := p.clock.Now().UTC()
	from := now.Truncate(models.SlotDuration)
	to := from.Add(lookahead)

	prices, origin, err := p.sources.Chain.Fetch(ctx, p.cfg.Region, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prices: %w", err)
	}
	history := &models.ForecastRecord{Timestamp: now, Source: origin, Region: p.cfg.Region, Slots: prices}
	if err := p.store.SaveForecast(ctx, history); err != nil {
		p.logger.WithError(err).Warn("Failed to save price history")
	}
	carbon, degraded := p.carbonFor(ctx, prices, from, to)

	baseline := p.baseline(now)
	window, err := p.selector.FindOptimalWindow(prices, carbon, p.cfg.ChargeHours(0), &baseline)
	if err != nil {
		return nil, fmt.Errorf("failed to select window: %w", err)
	}
	p.logger.LogWindowSelected(window.Start, window.End, string(window.Rating), string(origin),
		window.AvgPrice, window.AvgCarbon, window.OpportunityScore)

	rec := models.NewRecommendation(window, origin, now)
	if err := p.recs.SaveRecommendation(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save recommendation: %w", err)
	}
	metrics.RecordRecommendation(string(window.Rating), string(origin), window.AvgPrice,
		window.AvgCarbon, window.TotalCost, window.SavingsVsBaseline, window.OpportunityScore)

	res := &DailyResult{
		Recommendation: rec,
		Window:         window,
		Source:         origin,
		DegradedCarbon: degraded,
		NegativeSlots:  negativeSlots(prices),
	}
	if !notifyUser {
		return res, nil
	}

	if len(res.NegativeSlots) > 0 {
		msg := FormatNegativePricingAlert(res.NegativeSlots, window.KWh)
		res.NegativeAlert = p.send(ctx, "negative_pricing", msg)
		p.audit.LogNotification(msg.Title, msg.Priority, res.NegativeAlert, "negative prices published")
	}
	if reason, ok := exceptional(window, len(res.NegativeSlots) > 0); ok {
		msg := FormatRecommendation(window, origin, degraded, now)
		res.Notified = p.send(ctx, "daily", msg)
		p.audit.LogNotification(msg.Title, msg.Priority, res.Notified, reason)
	} else {
		p.logger.WithFields(logrus.Fields{
			"rating":    window.Rating,
			"avg_price": window.AvgPrice,
		}).Info("Opportunity not exceptional, notification skipped")
	}
	return res, nil
}

// exceptional decides whether the daily window is worth a push.
func exceptional(w *models.ChargingWindow, negative bool) (string, bool) {
	switch {
	case w.Rating == models.RatingExcellent:
		return "excellent rating", true
	case w.AvgPrice <= exceptionalAvgPrice:
		return "very low average price", true
	case w.SavingsVsBaseline >= exceptionalSavings:
		return "large savings", true
	case negative:
		return "negative prices", true
	}
	return "", false
}

// negativeSlots returns slots priced below zero, most negative first.
func negativeSlots(prices []models.PriceSlot) []models.PriceSlot {
	var out []models.PriceSlot
	for _, s := range prices {
		if s.Price < 0 {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out
}

// FormatNegativePricingAlert lists the best paid slots and the total earnings
// from charging kwh across them.
func FormatNegativePricingAlert(slots []models.PriceSlot, kwh float64) notify.Message {
	if kwh <= 0 {
		kwh = models.DefaultEarningsKWh
	}
	var total float64
	for _, s := range slots {
		total -= s.Price
	}
	earnings := total * kwh / 100

	var b strings.Builder
	b.WriteString("<b>⚡ You'll be PAID to charge tonight!</b>\n\n")
	fmt.Fprintf(&b, "<b>💵 Expected earnings:</b> %s for %gkWh\n", pounds(earnings), kwh)
	fmt.Fprintf(&b, "<b>📊 Negative price slots:</b> %d\n\n", len(slots))
	b.WriteString("<b>Best negative slots:</b>\n")
	shown := slots
	if len(shown) > negativeSlotsShown {
		shown = shown[:negativeSlotsShown]
	}
	for _, s := range shown {
		fmt.Fprintf(&b, "  • %s: %.2fp/kWh (PAID %s)\n", s.Time.UTC().Format("15:04"), s.Price, pounds(-s.Price*kwh/100))
	}
	b.WriteString("\n<b>🔋 Action:</b> Plug in tonight - you'll make money!")

	return notify.Message{
		Title:    "💰 MONEY-MAKING ALERT: Negative Pricing Tonight!",
		Body:     b.String(),
		Priority: 1,
		Sound:    "cashregister",
		HTML:     true,
	}
}

// pounds formats a £ amount rounded to pence.
func pounds(v float64) string {
	return "£" + decimal.NewFromFloat(v).Round(2).StringFixed(2)
}

// hoursMinutes renders d as "Xh Ym", truncating.
func hoursMinutes(d time.Duration) string {
	return fmt.Sprintf("%dh %dm", int(d/time.Hour), int(d%time.Hour/time.Minute))
}
