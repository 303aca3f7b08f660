package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goahead/predtracker/pkg/logger"
)

type countingJob struct {
	name     string
	schedule string
	failures int32
	runs     atomic.Int32
}

func (j *countingJob) Name() string     { return j.name }
func (j *countingJob) Schedule() string { return j.schedule }

func (j *countingJob) Run(ctx context.Context) error {
	n := j.runs.Add(1)
	if n <= j.failures {
		return errors.New("boom")
	}
	return nil
}

func newTestScheduler(opts ...Option) *Scheduler {
	opts = append([]Option{WithRetry(2, time.Millisecond)}, opts...)
	return New(logger.Nop(), opts...)
}

func TestAddJob(t *testing.T) {
	s := newTestScheduler()

	require.NoError(t, s.AddJob(&countingJob{name: "b", schedule: "0 0 2 * * *"}))
	require.NoError(t, s.AddJob(&countingJob{name: "a", schedule: "0 45 15 * * 1-5"}))

	err := s.AddJob(&countingJob{name: "a", schedule: "0 0 2 * * *"})
	assert.Error(t, err)

	err = s.AddJob(&countingJob{name: "bad", schedule: "not a cron"})
	assert.Error(t, err)

	assert.Equal(t, []string{"a", "b"}, s.GetAllJobs())
}

func TestRemoveJob(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.AddJob(&countingJob{name: "a", schedule: "@daily"}))

	require.NoError(t, s.RemoveJob("a"))
	assert.Empty(t, s.GetAllJobs())
	assert.Error(t, s.RemoveJob("a"))

	_, ok := s.NextRun("a")
	assert.False(t, ok)
}

func TestRunJobNowRetries(t *testing.T) {
	s := newTestScheduler()
	job := &countingJob{name: "flaky", schedule: "@daily", failures: 2}
	require.NoError(t, s.AddJob(job))

	res, err := s.RunJobNow(context.Background(), "flaky")
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 3, res.Attempts)
	assert.Empty(t, res.Error)
}

func TestRunJobNowGivesUp(t *testing.T) {
	s := newTestScheduler()
	job := &countingJob{name: "broken", schedule: "@daily", failures: 100}
	require.NoError(t, s.AddJob(job))

	res, err := s.RunJobNow(context.Background(), "broken")
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, "boom", res.Error)

	stats := s.GetJobStats()["broken"]
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 1, stats.FailureCount)
	assert.NotNil(t, stats.LastFailure)
	assert.Nil(t, stats.LastSuccess)
}

func TestRunJobNowCancelled(t *testing.T) {
	s := New(logger.Nop(), WithRetry(5, time.Hour))
	job := &countingJob{name: "broken", schedule: "@daily", failures: 100}
	require.NoError(t, s.AddJob(job))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := s.RunJobNow(ctx, "broken")
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, context.Canceled.Error(), res.Error)
}

func TestRunJobNowUnknown(t *testing.T) {
	s := newTestScheduler()

	_, err := s.RunJobNow(context.Background(), "missing")
	assert.Error(t, err)
	assert.Error(t, s.RunJob("missing"))
}

func TestNextRunUsesLocation(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+30*60)
	s := newTestScheduler(WithLocation(ist))
	require.NoError(t, s.AddJob(&countingJob{name: "close", schedule: "0 45 15 * * 1-5"}))

	s.Start()
	defer s.Stop()

	next, ok := s.NextRun("close")
	require.True(t, ok)
	require.False(t, next.IsZero())

	local := next.In(ist)
	assert.Equal(t, 15, local.Hour())
	assert.Equal(t, 45, local.Minute())
	assert.NotEqual(t, time.Saturday, local.Weekday())
	assert.NotEqual(t, time.Sunday, local.Weekday())
}

func TestJobHistory(t *testing.T) {
	h := &JobHistory{}
	assert.Equal(t, 0.0, h.SuccessRate())
	assert.Empty(t, h.Latest(5))

	for i := 0; i < historyLimit+10; i++ {
		h.Add(JobResult{JobName: "x", Success: i%2 == 0})
	}

	assert.Len(t, h.Results, historyLimit)
	assert.Equal(t, historyLimit/2, h.Failures())
	assert.InDelta(t, 0.5, h.SuccessRate(), 1e-9)

	latest := h.Latest(3)
	require.Len(t, latest, 3)
	latest[0].JobName = "mutated"
	assert.Equal(t, "x", h.Results[len(h.Results)-3].JobName)
}
