// Package logger provides audit logging.
package logger

import (
	"github.com/sirupsen/logrus"
)

// AuditLogger provides dedicated audit trail logging.
type AuditLogger struct {
	*logrus.Entry
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(baseLogger *logrus.Logger) *AuditLogger {
	return &AuditLogger{
		Entry: baseLogger.WithField("component", "audit"),
	}
}

// LogThresholdChange logs a scoring threshold update.
func (al *AuditLogger) LogThresholdChange(name string, oldValue, newValue float64, daysAnalyzed int) {
	al.WithFields(logrus.Fields{
		"threshold":     name,
		"old_value":     oldValue,
		"new_value":     newValue,
		"days_analyzed": daysAnalyzed,
	}).Info("Scoring threshold changed")
}

// LogNotification logs the outcome of a push notification attempt.
func (al *AuditLogger) LogNotification(title string, priority int, sent bool, reason string) {
	entry := al.WithFields(logrus.Fields{
		"title":    title,
		"priority": priority,
		"sent":     sent,
	})
	if sent {
		entry.Info("Notification sent")
		return
	}
	entry.WithField("reason", reason).Warn("Notification not sent")
}

// LogActualResult logs the realized outcome written for a target date.
func (al *AuditLogger) LogActualResult(targetDate string, cost, avgPrice float64) {
	al.WithFields(logrus.Fields{
		"target_date":      targetDate,
		"actual_cost":      cost,
		"actual_avg_price": avgPrice,
	}).Info("Actual result recorded")
}

// LogChargeLogged logs a user-recorded charge.
func (al *AuditLogger) LogChargeLogged(date string, kwh *float64, note string) {
	fields := logrus.Fields{"date": date, "note": note}
	if kwh != nil {
		fields["kwh_charged"] = *kwh
	}
	al.WithFields(fields).Info("Charge logged")
}
