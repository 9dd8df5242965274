package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/smart-charge/internal/config"
	"github.com/yourusername/smart-charge/internal/logger"
	"github.com/yourusername/smart-charge/internal/metrics"
)

// JobFunc is one scheduled unit of work.
type JobFunc func(ctx context.Context) error

// Jobs are the serve-mode tasks. A nil field is not scheduled.
type Jobs struct {
	Daily      JobFunc
	Plan       JobFunc
	Comparison JobFunc
	Reminder   JobFunc
	Cleanup    JobFunc
	Tune       JobFunc
	Weekly     JobFunc
	Monthly    JobFunc
}

type job struct {
	name string
	id   cron.EntryID
	run  func()
}

// Scheduler runs named jobs on cron expressions in UTC.
type Scheduler struct {
	cron            *cron.Cron
	logger          *logrus.Logger
	mu              sync.RWMutex
	isRunning       bool
	jobs            map[string]*job
	jobTimeout      time.Duration
	gracefulTimeout time.Duration
}

// NewScheduler creates a new scheduler
func NewScheduler(log *logrus.Logger) *Scheduler {
	log = logger.OrDiscard(log)
	cronLog := cron.PrintfLogger(log)
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		logger:          log,
		jobs:            make(map[string]*job),
		jobTimeout:      10 * time.Minute,
		gracefulTimeout: 30 * time.Second,
	}
}

// Schedule registers fn under name. Each run gets its own timeout and is
// recorded in the job metrics.
func (s *Scheduler) Schedule(name, cronExpression string, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot schedule job while scheduler is running")
	}
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("job %q already scheduled", name)
	}

	j := &job{name: name}
	j.run = func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
		defer cancel()

		started := time.Now()
		log := s.logger.WithField("job", name)
		log.Info("Starting scheduled job")
		err := fn(ctx)
		metrics.ObserveJob(name, started, err)
		if err != nil {
			log.WithError(err).Error("Scheduled job failed")
			return
		}
		log.WithField("duration", time.Since(started).String()).Info("Scheduled job completed")
	}

	entryID, err := s.cron.AddFunc(cronExpression, j.run)
	if err != nil {
		return fmt.Errorf("failed to add job %s: %w", name, err)
	}
	j.id = entryID
	s.jobs[name] = j
	s.logger.WithFields(logrus.Fields{
		"job":      name,
		"schedule": cronExpression,
	}).Info("Scheduled job")

	return nil
}

// ScheduleAll registers every non-nil job in jobs using the configured
// cron expressions.
func (s *Scheduler) ScheduleAll(cfg config.ScheduleConfig, jobs Jobs) error {
	entries := []struct {
		name string
		expr string
		fn   JobFunc
	}{
		{"daily", cfg.Daily, jobs.Daily},
		{"plan", cfg.Plan, jobs.Plan},
		{"comparison", cfg.Comparison, jobs.Comparison},
		{"reminder", cfg.Reminder, jobs.Reminder},
		{"cleanup", cfg.Cleanup, jobs.Cleanup},
		{"tune", cfg.Tune, jobs.Tune},
		{"weekly", cfg.Weekly, jobs.Weekly},
		{"monthly", cfg.Monthly, jobs.Monthly},
	}
	for _, e := range entries {
		if e.fn == nil {
			continue
		}
		if err := s.Schedule(e.name, e.expr, e.fn); err != nil {
			return err
		}
	}
	return nil
}

// RunNow executes a registered job synchronously.
func (s *Scheduler) RunNow(name string) error {
	s.mu.RLock()
	j, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	j.run()
	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	if len(s.jobs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("jobs", len(s.jobs)).Info("Scheduler started")

	return nil
}

// Stop waits for running jobs to finish, up to the graceful timeout.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	s.isRunning = false
	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("Scheduler stopped")
		return nil
	case <-time.After(s.gracefulTimeout):
		return fmt.Errorf("scheduler did not stop within %s", s.gracefulTimeout)
	}
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRun returns the time of the next scheduled job run
func (s *Scheduler) NextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return time.Time{}
	}

	nextRun := time.Time{}
	for _, j := range s.jobs {
		entry := s.cron.Entry(j.id)
		if entry.Valid() && (nextRun.IsZero() || entry.Next.Before(nextRun)) {
			nextRun = entry.Next
		}
	}

	return nextRun
}

// JobNames returns the registered job names in order.
func (s *Scheduler) JobNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RemoveJob removes a scheduled job
func (s *Scheduler) RemoveJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot remove job while scheduler is running")
	}
	j, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}

	s.cron.Remove(j.id)
	delete(s.jobs, name)
	s.logger.WithField("job", name).Info("Removed job")

	return nil
}
