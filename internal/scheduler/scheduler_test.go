package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/smart-charge/internal/config"
	"github.com/yourusername/smart-charge/internal/metrics"
)

func testSchedule() config.ScheduleConfig {
	return config.ScheduleConfig{
		Daily:      "0 16 * * *",
		Plan:       "30 16 * * *",
		Comparison: "55 23 * * *",
		Reminder:   "0 21 * * *",
		Cleanup:    "0 3 * * 0",
		Tune:       "0 4 * * 1",
		Weekly:     "0 18 * * 0",
		Monthly:    "0 8 1 * *",
	}
}

func noop(context.Context) error { return nil }

func TestScheduleAllSkipsNilJobs(t *testing.T) {
	s := NewScheduler(nil)

	err := s.ScheduleAll(testSchedule(), Jobs{Daily: noop, Reminder: noop, Monthly: noop})
	require.NoError(t, err)
	assert.Equal(t, []string{"daily", "monthly", "reminder"}, s.JobNames())
}

func TestScheduleRejectsBadExpressionAndDuplicates(t *testing.T) {
	s := NewScheduler(nil)

	assert.Error(t, s.Schedule("daily", "every night", noop))
	require.NoError(t, s.Schedule("daily", "0 16 * * *", noop))
	assert.ErrorContains(t, s.Schedule("daily", "0 17 * * *", noop), "already scheduled")
}

func TestRunNowRecordsOutcome(t *testing.T) {
	metrics.InitRegistry()
	s := NewScheduler(nil)

	calls := 0
	require.NoError(t, s.Schedule("comparison", "55 23 * * *", func(ctx context.Context) error {
		calls++
		_, ok := ctx.Deadline()
		assert.True(t, ok, "job context carries a timeout")
		return errors.New("no actuals yet")
	}))
	failures := testutil.ToFloat64(metrics.JobRunsTotal.WithLabelValues("comparison", "failure"))

	require.NoError(t, s.RunNow("comparison"))

	assert.Equal(t, 1, calls)
	assert.Equal(t, failures+1, testutil.ToFloat64(metrics.JobRunsTotal.WithLabelValues("comparison", "failure")))
	assert.Error(t, s.RunNow("missing"))
}

func TestStartStopLifecycle(t *testing.T) {
	s := NewScheduler(nil)
	assert.ErrorContains(t, s.Start(), "no jobs scheduled")

	require.NoError(t, s.Schedule("daily", "0 16 * * *", noop))
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.False(t, s.NextRun().IsZero())
	assert.Error(t, s.Start())
	assert.Error(t, s.Schedule("plan", "30 16 * * *", noop))
	assert.Error(t, s.RemoveJob("daily"))

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.True(t, s.NextRun().IsZero())
	require.NoError(t, s.RemoveJob("daily"))
	assert.Empty(t, s.JobNames())
}
