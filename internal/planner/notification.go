package planner

import (
	"fmt"
	"strings"
	"time"

	"github.com/yourusername/smart-charge/internal/models"
	"github.com/yourusername/smart-charge/internal/notify"
)

const (
	clockLayout   = "03:04 PM"
	soonThreshold = 2 * time.Hour
)

type ratingStyle struct {
	priority int
	sound    string
	emoji    string
	action   string
}

var ratingStyles = map[models.Rating]ratingStyle{
	models.RatingExcellent: {1, "magic", "🔋⚡", "Definitely charge tonight!"},
	models.RatingGood:      {0, "pushover", "🔋", "Good time to charge"},
	models.RatingAverage:   {-1, "none", "🔌", "Consider waiting if possible"},
	models.RatingPoor:      {-1, "none", "⏸️", "Wait for better prices"},
}

var reasonText = map[models.Reason]string{
	models.ReasonBoth:    "Both cheap AND clean",
	models.ReasonCheap:   "Cheap electricity",
	models.ReasonClean:   "Clean energy",
	models.ReasonNeither: "Limited options",
}

// FormatRecommendation renders the daily window as a push notification,
// adjusting the wording to whether the window is upcoming, active or gone.
func FormatRecommendation(w *models.ChargingWindow, source models.DataOrigin, degradedCarbon bool, now time.Time) notify.Message {
	kwh := w.KWh
	if kwh <= 0 {
		kwh = models.DefaultEarningsKWh
	}
	style, ok := ratingStyles[w.Rating]
	if !ok {
		style = ratingStyles[models.RatingPoor]
	}
	negative := w.HasNegativePricing()
	if negative {
		style = ratingStyle{2, "cashregister", "💰💸⚡", "CHARGE NOW - You'll get PAID!"}
	}

	status := w.Status(now)
	action, prefix := style.action, ""
	switch status {
	case models.StatusActive:
		action = "🟢 ACTIVE NOW! " + action
		prefix = "⚡ CHARGING WINDOW IS ACTIVE! "
	case models.StatusPassed:
		action = "⏰ Window passed - see next best time below"
		prefix = "⚠️ LATE NOTIFICATION: "
	default:
		if until := w.TimeUntilStart(now); until < soonThreshold {
			prefix = fmt.Sprintf("🕐 Starts in %dh - ", int(until/time.Hour))
		}
	}

	start := w.Start.Format(clockLayout)
	end := w.End.Format(clockLayout)

	var title string
	var b strings.Builder
	if negative {
		earnings := pounds(*w.EarningsEstimate(kwh))
		title = fmt.Sprintf("🚨 NEGATIVE PRICING ALERT! 💰 You'll GET PAID %s!", earnings)
		fmt.Fprintf(&b, "<b>⚡ Window:</b> %s - %s\n", start, end)
		fmt.Fprintf(&b, "<b>💸 EARNINGS:</b> %s for %gkWh!\n", earnings, kwh)
		fmt.Fprintf(&b, "<b>📊 Price:</b> %.1fp/kWh (NEGATIVE!)\n", w.AvgPrice)
		b.WriteString("\n<b>🎉 RARE OPPORTUNITY!</b>\nGrid will PAY YOU to charge.\nCharge as much as possible!\n")
	} else {
		title = fmt.Sprintf("%sEV Optimizer: %s Tonight: %s opportunity", prefix, style.emoji, w.Rating)
		fmt.Fprintf(&b, "<b>⚡ Best window:</b> %s - %s\n", start, end)
		switch status {
		case models.StatusActive:
			fmt.Fprintf(&b, "<b>⏰ Status:</b> ACTIVE (%s remaining)\n", hoursMinutes(w.TimeUntilEnd(now)))
		case models.StatusPassed:
			b.WriteString("<b>⚠️ Status:</b> Window has passed\n")
		}
		fmt.Fprintf(&b, "<b>💰 Cost:</b> %s for %gkWh\n", pounds(w.TotalCost), kwh)
		fmt.Fprintf(&b, "<b>📊 Avg price:</b> %.1fp/kWh\n", w.AvgPrice)
		if w.SavingsVsBaseline > 0 {
			fmt.Fprintf(&b, "<b>💵 Save:</b> %s vs evening\n", pounds(w.SavingsVsBaseline))
		}

		fmt.Fprintf(&b, "<b>🌱 Carbon:</b> %d gCO2/kWh", w.AvgCarbon)
		switch {
		case degradedCarbon:
			b.WriteString(" (estimated)\n")
		case w.AvgCarbon <= 100:
			b.WriteString(" (very clean)\n")
		case w.AvgCarbon <= 150:
			b.WriteString(" (clean)\n")
		default:
			b.WriteString("\n")
		}
		why, ok := reasonText[w.Reason]
		if !ok {
			why = string(w.Reason)
		}
		fmt.Fprintf(&b, "\n<b>Why:</b> %s\n", why)
	}

	if source == models.OriginOctopusActual {
		b.WriteString("<b>📊 Data:</b> Actual prices (published) ✅\n")
	} else {
		b.WriteString("<b>📊 Data:</b> Forecast prices (predicted)\n")
	}
	fmt.Fprintf(&b, "<b>Action:</b> %s", action)

	return notify.Message{
		Title:    title,
		Body:     b.String(),
		Priority: style.priority,
		Sound:    style.sound,
		HTML:     true,
	}
}

// FormatReminder is the short evening nudge for a GOOD or better window.
func FormatReminder(rec *models.Recommendation, now time.Time) notify.Message {
	w := rec.Window()
	emoji := ratingStyles[models.RatingGood].emoji
	if rec.Rating == models.RatingExcellent {
		emoji = ratingStyles[models.RatingExcellent].emoji
	}
	title := fmt.Sprintf("EV Optimizer: %s Reminder: Good charging opportunity tonight", emoji)
	if w.Status(now) == models.StatusActive {
		title = fmt.Sprintf("EV Optimizer: %s Charging window is open now", emoji)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>Best window:</b> %s - %s\n", w.Start.Format("15:04"), w.End.Format("15:04"))
	fmt.Fprintf(&b, "<b>Cost:</b> %s\n", pounds(rec.TotalCost))
	if rec.Savings > 0 {
		fmt.Fprintf(&b, "<b>Savings:</b> %s vs evening\n", pounds(rec.Savings))
	}
	b.WriteString("\n<b>Action:</b> Plug in before bed!")

	return notify.Message{
		Title:    title,
		Body:     b.String(),
		Priority: 0,
		Sound:    notify.DefaultSound,
		HTML:     true,
	}
}
