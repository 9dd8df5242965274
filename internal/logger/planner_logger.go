package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// PlannerLogger logs window selection and planning runs.
type PlannerLogger struct {
	*logrus.Entry
}

// NewPlannerLogger creates a new planner logger.
func NewPlannerLogger(baseLogger *logrus.Logger) *PlannerLogger {
	return &PlannerLogger{
		Entry: baseLogger.WithField("component", "planner"),
	}
}

// LogWindowSelected logs the window chosen by a scoring run.
func (pl *PlannerLogger) LogWindowSelected(start, end time.Time, rating, source string, avgPrice float64, avgCarbon int, score float64) {
	pl.WithFields(logrus.Fields{
		"window_start": start.Format(time.RFC3339),
		"window_end":   end.Format(time.RFC3339),
		"rating":       rating,
		"price_source": source,
		"avg_price":    avgPrice,
		"avg_carbon":   avgCarbon,
		"score":        score,
	}).Info("Optimal charging window selected")
}

// LogSourceFallback logs a move down the price source chain.
func (pl *PlannerLogger) LogSourceFallback(failed, reason string) {
	pl.WithFields(logrus.Fields{
		"failed_source": failed,
		"reason":        reason,
	}).Warn("Price source unusable, trying next")
}

// LogDegradedCarbon logs that neutral carbon data was substituted.
func (pl *PlannerLogger) LogDegradedCarbon(slots int, intensity int) {
	pl.WithFields(logrus.Fields{
		"slots":     slots,
		"intensity": intensity,
	}).Warn("Carbon data unavailable, using neutral intensity")
}

// LogPlanGenerated logs a completed multi-day plan.
func (pl *PlannerLogger) LogPlanGenerated(days int, bestDate string, bestCost, savings float64) {
	pl.WithFields(logrus.Fields{
		"days":      days,
		"best_date": bestDate,
		"best_cost": bestCost,
		"savings":   savings,
	}).Info("Multi-day plan generated")
}
