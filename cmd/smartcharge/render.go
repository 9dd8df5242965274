package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/yourusername/smart-charge/internal/models"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4285f4"))
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	ratingColors = map[models.Rating]lipgloss.Color{
		models.RatingExcellent: lipgloss.Color("#22c55e"),
		models.RatingGood:      lipgloss.Color("#84cc16"),
		models.RatingAverage:   lipgloss.Color("#eab308"),
		models.RatingPoor:      lipgloss.Color("#ef4444"),
	}
)

func heading(w io.Writer, title string) {
	fmt.Fprintln(w, headingStyle.Render(title))
}

func rating(r models.Rating) string {
	return lipgloss.NewStyle().Bold(true).Foreground(ratingColors[r]).Render(string(r))
}

func subtle(s string) string {
	return subtleStyle.Render(s)
}

// chart plots values; fewer than two points are not worth drawing.
func chart(w io.Writer, values []float64, caption string) {
	if len(values) < 2 {
		return
	}
	fmt.Fprintln(w, asciigraph.Plot(values,
		asciigraph.Height(8),
		asciigraph.Width(48),
		asciigraph.Caption(caption),
	))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printWindow(w io.Writer, win *models.ChargingWindow, source models.DataOrigin) {
	fmt.Fprintf(w, "  Window:   %s - %s UTC (%s)\n",
		win.Start.UTC().Format("Mon 02 Jan 15:04"), win.End.UTC().Format("15:04"), hoursMinutes(win.Duration()))
	fmt.Fprintf(w, "  Rating:   %s  score %.0f  reason %s\n", rating(win.Rating), win.OpportunityScore, win.Reason)
	fmt.Fprintf(w, "  Price:    %.2fp/kWh avg, £%.2f for %.1f kWh\n", win.AvgPrice, win.TotalCost, win.KWh)
	fmt.Fprintf(w, "  Carbon:   %d gCO2/kWh avg\n", win.AvgCarbon)
	fmt.Fprintf(w, "  Savings:  £%.2f vs evening baseline\n", win.SavingsVsBaseline)
	fmt.Fprintf(w, "  Source:   %s\n", source)
}

func hoursMinutes(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) - h*60
	if m == 0 {
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}

func pct(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}

func rule(w io.Writer) {
	fmt.Fprintln(w, subtle(strings.Repeat("─", 56)))
}
