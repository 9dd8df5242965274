package forecast

import (
	"fmt"
	"strings"
	"time"

	"github.com/yourusername/smart-charge/internal/clock"
	"github.com/yourusername/smart-charge/internal/models"
	"github.com/yourusername/smart-charge/internal/notify"
)

// adviceDrift is the savings move, in points, that earns a suggestion line.
const adviceDrift = 10.0

// FormatEvolutionAlert renders a significant change as a push notification.
// Worsening forecasts are sent at high priority.
func FormatEvolutionAlert(change models.SignificantChange) notify.Message {
	display := change.TargetDate
	if t, err := time.Parse(clock.DateLayout, change.TargetDate); err == nil {
		display = t.Format("Jan 02")
	}

	direction, priority, sound := models.DriftWorsened, 1, "falling"
	if change.SavingsDrift > 0 {
		direction, priority, sound = models.DriftImproved, 0, "cosmic"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>Target Date:</b> %s\n", display)
	fmt.Fprintf(&b, "<b>Original Forecast:</b> %.0f%% savings\n", change.PreviousSavingsPct)
	fmt.Fprintf(&b, "<b>Updated Forecast:</b> %.0f%% savings\n", change.CurrentSavingsPct)
	fmt.Fprintf(&b, "<b>Change:</b> %+.1f%%\n\n", change.SavingsDrift)
	switch {
	case change.SavingsDrift < -adviceDrift:
		b.WriteString("<b>Consider:</b> Charging earlier may be better\n")
	case change.SavingsDrift > adviceDrift:
		b.WriteString("<b>Consider:</b> Waiting is now more attractive\n")
	}
	fmt.Fprintf(&b, "<b>Confidence:</b> %d%%", change.ConfidenceScore)

	return notify.Message{
		Title:    fmt.Sprintf("Forecast Update: %s savings %s", display, direction),
		Body:     b.String(),
		Priority: priority,
		Sound:    sound,
		HTML:     true,
	}
}
