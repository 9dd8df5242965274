package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/smart-charge/internal/models"
)

// SaveForecast appends a raw forecast fetch.
func (s *Store) SaveForecast(ctx context.Context, rec *models.ForecastRecord) error {
	if err := s.Validate(rec); err != nil {
		return err
	}
	rec.SavedAt = s.clock.Now()
	return Update(ctx, s, ForecastHistory, func(all *[]models.ForecastRecord) error {
		*all = append(*all, *rec)
		return nil
	})
}

// LatestForecast returns the most recently saved forecast, or nil.
func (s *Store) LatestForecast() *models.ForecastRecord {
	all := Load[[]models.ForecastRecord](s, ForecastHistory)
	var latest *models.ForecastRecord
	for i := range all {
		if latest == nil || all[i].SavedAt.After(latest.SavedAt) {
			latest = &all[i]
		}
	}
	return latest
}

// Forecasts returns forecasts saved within the last days.
func (s *Store) Forecasts(days int) []models.ForecastRecord {
	cutoff := s.cutoff(days)
	var out []models.ForecastRecord
	for _, f := range Load[[]models.ForecastRecord](s, ForecastHistory) {
		if !f.SavedAt.Before(cutoff) {
			out = append(out, f)
		}
	}
	return out
}

// SaveRecommendation appends a recommendation, assigning an ID when missing.
func (s *Store) SaveRecommendation(ctx context.Context, rec *models.Recommendation) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if err := s.Validate(rec); err != nil {
		return err
	}
	rec.SavedAt = s.clock.Now()
	return Update(ctx, s, DailyRecommendations, func(all *[]models.Recommendation) error {
		*all = append(*all, *rec)
		return nil
	})
}

// Recommendations returns recommendations saved within the last days.
func (s *Store) Recommendations(_ context.Context, days int) ([]models.Recommendation, error) {
	cutoff := s.cutoff(days)
	var out []models.Recommendation
	for _, r := range Load[[]models.Recommendation](s, DailyRecommendations) {
		if !r.SavedAt.Before(cutoff) {
			out = append(out, r)
		}
	}
	return out, nil
}

// RecommendationByDate returns the most recently saved recommendation for date.
func (s *Store) RecommendationByDate(_ context.Context, date string) (*models.Recommendation, error) {
	all := Load[[]models.Recommendation](s, DailyRecommendations)
	var found *models.Recommendation
	for i := range all {
		if all[i].Date != date {
			continue
		}
		if found == nil || !all[i].SavedAt.Before(found.SavedAt) {
			found = &all[i]
		}
	}
	if found == nil {
		return nil, models.ErrNotFound
	}
	return found, nil
}

// LatestRecommendation returns the most recently saved recommendation.
func (s *Store) LatestRecommendation(_ context.Context) (*models.Recommendation, error) {
	all := Load[[]models.Recommendation](s, DailyRecommendations)
	var found *models.Recommendation
	for i := range all {
		if found == nil || !all[i].SavedAt.Before(found.SavedAt) {
			found = &all[i]
		}
	}
	if found == nil {
		return nil, models.ErrNotFound
	}
	return found, nil
}

// SaveUserAction appends a logged charge.
func (s *Store) SaveUserAction(ctx context.Context, action *models.UserAction) error {
	now := s.clock.Now()
	if action.ID == uuid.Nil {
		action.ID = uuid.New()
	}
	if action.Timestamp.IsZero() {
		action.Timestamp = now
	}
	if err := s.Validate(action); err != nil {
		return err
	}
	action.LoggedAt = now
	return Update(ctx, s, UserActions, func(all *[]models.UserAction) error {
		*all = append(*all, *action)
		return nil
	})
}

// UserActions returns actions logged within the last days.
func (s *Store) UserActions(_ context.Context, days int) ([]models.UserAction, error) {
	cutoff := s.cutoff(days)
	var out []models.UserAction
	for _, a := range Load[[]models.UserAction](s, UserActions) {
		if !a.LoggedAt.Before(cutoff) {
			out = append(out, a)
		}
	}
	return out, nil
}

// SavePlan appends a multi-day plan and drops plans past retention.
func (s *Store) SavePlan(ctx context.Context, plan *models.MultiDayPlan) error {
	if err := s.Validate(plan); err != nil {
		return err
	}
	plan.SavedAt = s.clock.Now()
	cutoff := s.cutoff(s.retention.PlanDays)
	return Update(ctx, s, MultiDayPlans, func(all *[]models.MultiDayPlan) error {
		kept := (*all)[:0]
		for _, p := range *all {
			if !p.SavedAt.Before(cutoff) {
				kept = append(kept, p)
			}
		}
		*all = append(kept, *plan)
		return nil
	})
}

// Plans returns plans saved within the last days, oldest first.
func (s *Store) Plans(days int) []models.MultiDayPlan {
	cutoff := s.cutoff(days)
	var out []models.MultiDayPlan
	for _, p := range Load[[]models.MultiDayPlan](s, MultiDayPlans) {
		if !p.SavedAt.Before(cutoff) {
			out = append(out, p)
		}
	}
	return out
}

// CleanupResult counts records removed per collection.
type CleanupResult struct {
	Forecasts       int
	Recommendations int
	UserActions     int
	Plans           int
}

// Total is the number of records removed.
func (r CleanupResult) Total() int {
	return r.Forecasts + r.Recommendations + r.UserActions + r.Plans
}

// Cleanup drops records older than each collection's retention.
func (s *Store) Cleanup(ctx context.Context) (CleanupResult, error) {
	var res CleanupResult

	fc := s.cutoff(s.retention.ForecastDays)
	if err := Update(ctx, s, ForecastHistory, func(all *[]models.ForecastRecord) error {
		res.Forecasts = retain(all, func(f models.ForecastRecord) bool { return !f.SavedAt.Before(fc) })
		return nil
	}); err != nil {
		return res, fmt.Errorf("forecast cleanup: %w", err)
	}

	rc := s.cutoff(s.retention.RecommendationDays)
	if err := Update(ctx, s, DailyRecommendations, func(all *[]models.Recommendation) error {
		res.Recommendations = retain(all, func(r models.Recommendation) bool { return !r.SavedAt.Before(rc) })
		return nil
	}); err != nil {
		return res, fmt.Errorf("recommendation cleanup: %w", err)
	}

	ac := s.cutoff(s.retention.UserActionDays)
	if err := Update(ctx, s, UserActions, func(all *[]models.UserAction) error {
		res.UserActions = retain(all, func(a models.UserAction) bool { return !a.LoggedAt.Before(ac) })
		return nil
	}); err != nil {
		return res, fmt.Errorf("user action cleanup: %w", err)
	}

	pc := s.cutoff(s.retention.PlanDays)
	if err := Update(ctx, s, MultiDayPlans, func(all *[]models.MultiDayPlan) error {
		res.Plans = retain(all, func(p models.MultiDayPlan) bool { return !p.SavedAt.Before(pc) })
		return nil
	}); err != nil {
		return res, fmt.Errorf("plan cleanup: %w", err)
	}

	s.logger.WithField("removed", res.Total()).Info("Data retention sweep complete")
	return res, nil
}

func (s *Store) cutoff(days int) time.Time {
	return s.clock.Now().AddDate(0, 0, -days)
}

// retain filters *all in place and returns how many records were dropped.
func retain[T any](all *[]T, keep func(T) bool) int {
	kept := (*all)[:0]
	for _, v := range *all {
		if keep(v) {
			kept = append(kept, v)
		}
	}
	removed := len(*all) - len(kept)
	*all = kept
	return removed
}
