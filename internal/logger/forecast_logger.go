package logger

import (
	"github.com/sirupsen/logrus"
)

// ForecastLogger logs accuracy and evolution tracking.
type ForecastLogger struct {
	*logrus.Entry
}

// NewForecastLogger creates a new forecast logger.
func NewForecastLogger(baseLogger *logrus.Logger) *ForecastLogger {
	return &ForecastLogger{
		Entry: baseLogger.WithField("component", "forecast"),
	}
}

// LogComparisonRecorded logs a forecast-versus-actual comparison.
func (fl *ForecastLogger) LogComparisonRecorded(date, source string, hours int, mae, bias, rmse float64) {
	fl.WithFields(logrus.Fields{
		"date":            date,
		"forecast_source": source,
		"num_hours":       hours,
		"mae":             mae,
		"bias":            bias,
		"rmse":            rmse,
	}).Info("Forecast comparison recorded")
}

// LogSnapshotRecorded logs an evolution snapshot.
func (fl *ForecastLogger) LogSnapshotRecorded(targetDate string, daysOut int, savingsPct float64, confidence int, replaced bool) {
	fl.WithFields(logrus.Fields{
		"target_date":       targetDate,
		"days_until_target": daysOut,
		"savings_pct":       savingsPct,
		"confidence_score":  confidence,
		"replaced":          replaced,
	}).Debug("Forecast snapshot recorded")
}

// LogSignificantChange logs a large drift between consecutive snapshots.
func (fl *ForecastLogger) LogSignificantChange(targetDate string, previous, current, drift float64) {
	fl.WithFields(logrus.Fields{
		"target_date":          targetDate,
		"previous_savings_pct": previous,
		"current_savings_pct":  current,
		"savings_drift":        drift,
	}).Info("Significant forecast change detected")
}

// LogCleanup logs an evolution retention sweep.
func (fl *ForecastLogger) LogCleanup(removed, remaining int) {
	fl.WithFields(logrus.Fields{
		"removed":   removed,
		"remaining": remaining,
	}).Info("Old forecast evolution data removed")
}
