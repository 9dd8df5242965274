// Package store persists named JSON collections under a data directory.
//
// Every write goes to a temp file that is renamed over the target after the
// previous version has been copied to <name>.json.bak. Reads never fail: a
// missing or unreadable file yields the zero value. Read-modify-write cycles
// hold an exclusive lock on <name>.json.lock for their duration.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/smart-charge/internal/clock"
	"github.com/yourusername/smart-charge/internal/models"
)

// Collection names.
const (
	ForecastHistory      = "forecast_history"
	DailyRecommendations = "daily_recommendations"
	UserActions          = "user_actions"
	ForecastAccuracy     = "forecast_accuracy"
	ForecastEvolution    = "forecast_evolution"
	ThresholdTuning      = "threshold_tuning"
	MultiDayPlans        = "multi_day_plans"
	NotificationLimits   = "notification_rate_limit"
	CostHistory          = "cost_history"
)

const lockRetryDelay = 50 * time.Millisecond

var ErrLockTimeout = errors.New("timed out waiting for data file lock")

// Retention holds per-collection retention in days.
type Retention struct {
	ForecastDays       int `mapstructure:"forecast_days" validate:"gt=0"`
	RecommendationDays int `mapstructure:"recommendation_days" validate:"gt=0"`
	UserActionDays     int `mapstructure:"user_action_days" validate:"gt=0"`
	PlanDays           int `mapstructure:"plan_days" validate:"gt=0"`
}

// DefaultRetention keeps forecasts a week, recommendations and plans a month, actions a quarter.
func DefaultRetention() Retention {
	return Retention{
		ForecastDays:       7,
		RecommendationDays: 30,
		UserActionDays:     90,
		PlanDays:           30,
	}
}

// Store is a JSON file store rooted at a single directory.
type Store struct {
	dir       string
	retention Retention
	clock     clock.Clock
	validate  *validator.Validate
	logger    logrus.FieldLogger
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the time source used for bookkeeping timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithRetention overrides the default retention periods.
func WithRetention(r Retention) Option {
	return func(s *Store) { s.retention = r }
}

// New creates the data directory if needed.
func New(dir string, logger logrus.FieldLogger, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}

	s := &Store{
		dir:       dir,
		retention: DefaultRetention(),
		clock:     clock.RealClock{},
		validate:  validator.New(),
		logger:    logger.WithField("component", "store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string {
	return s.dir
}

// Clock returns the store's time source.
func (s *Store) Clock() clock.Clock {
	return s.clock
}

// Path returns the file backing a collection.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// Validate checks a record's struct tags.
func (s *Store) Validate(v interface{}) error {
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidRecord, err)
	}
	return nil
}

// Load reads a collection into a fresh T. Missing or corrupt files give the zero value.
func Load[T any](s *Store, name string) T {
	var doc T
	s.read(name, &doc)
	return doc
}

// Update locks a collection, loads it, applies fn and writes the result.
// Nothing is written when fn returns an error.
func Update[T any](ctx context.Context, s *Store, name string, fn func(*T) error) error {
	unlock, err := s.lock(ctx, name)
	if err != nil {
		return err
	}
	defer unlock()

	var doc T
	s.read(name, &doc)
	if err := fn(&doc); err != nil {
		return err
	}
	return s.write(name, doc)
}

// Save replaces a collection under lock.
func Save[T any](ctx context.Context, s *Store, name string, doc T) error {
	return Update(ctx, s, name, func(cur *T) error {
		*cur = doc
		return nil
	})
}

func (s *Store) lock(ctx context.Context, name string) (func(), error) {
	fl := flock.New(s.Path(name) + ".lock")
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", name, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLockTimeout, name)
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			s.logger.WithError(err).WithField("collection", name).Warn("Failed to release data file lock")
		}
	}, nil
}

func (s *Store) read(name string, v interface{}) {
	path := s.Path(name)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.WithError(err).WithField("file", path).Error("Failed to read data file, using empty default")
		}
		return
	}
	if len(data) == 0 {
		return
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.logger.WithError(err).WithField("file", path).Error("Corrupt data file, using empty default")
	}
}

func (s *Store) write(name string, v interface{}) error {
	path := s.Path(name)
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	s.backup(path)

	tmp, err := os.CreateTemp(s.dir, name+".*.json.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}

// backup copies the current file to .bak. Failures are logged only.
func (s *Store) backup(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	if err := os.WriteFile(path+".bak", data, 0o644); err != nil {
		s.logger.WithError(err).WithField("file", path).Warn("Failed to write backup")
	}
}
