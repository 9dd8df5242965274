package planner

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/smart-charge/internal/models"
)

// ReminderResult reports why a reminder was or was not sent.
type ReminderResult struct {
	Recommendation *models.Recommendation
	Sent           bool
	Skipped        string
}

// RunReminder nudges the user when the latest recommended window is GOOD or
// better and either open or starting within the reminder lead. The latest
// recommendation is used because an overnight window is dated tomorrow.
func (p *Planner) RunReminder(ctx context.Context) (*ReminderResult, error) {
	now := p.clock.Now().UTC()
	rec, err := p.recs.LatestRecommendation(ctx)
	if errors.Is(err, models.ErrNotFound) {
		p.logger.Info("No recommendation available, reminder skipped")
		return &ReminderResult{Skipped: "no recommendation"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest recommendation: %w", err)
	}

	res := &ReminderResult{Recommendation: rec}
	log := p.logger.WithFields(logrus.Fields{
		"date":   rec.Date,
		"rating": rec.Rating,
	})
	if !rec.IsGoodOpportunity() {
		res.Skipped = "rating below GOOD"
		log.Info("Reminder skipped")
		return res, nil
	}

	w := rec.Window()
	switch w.Status(now) {
	case models.StatusPassed:
		res.Skipped = "window passed"
		log.Info("Reminder skipped")
		return res, nil
	case models.StatusUpcoming:
		if w.TimeUntilStart(now) > p.cfg.ReminderLead {
			res.Skipped = "window not starting soon"
			log.WithField("starts_in", w.TimeUntilStart(now).String()).Info("Reminder skipped")
			return res, nil
		}
	}

	msg := FormatReminder(rec, now)
	res.Sent = p.send(ctx, "reminder", msg)
	p.audit.LogNotification(msg.Title, msg.Priority, res.Sent, "charge reminder")
	return res, nil
}
