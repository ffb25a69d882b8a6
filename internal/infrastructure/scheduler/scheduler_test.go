package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name string
	runs atomic.Int32
	err  error
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "counts runs" }
func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	return j.err
}

func newScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := New(Config{})
	require.NoError(t, err)
	return s
}

func TestSchedulerRegister(t *testing.T) {
	s := newScheduler(t)

	require.NoError(t, s.Register(&countingJob{name: "weekly"}, WeeklyAt(time.Monday, 0, 0)))
	require.NoError(t, s.Register(&countingJob{name: "daily"}, DailyAt(0, 0)))
	err := s.Register(&countingJob{name: "daily"}, DailyAt(1, 0))
	assert.ErrorIs(t, err, ErrJobAlreadyExists)
	assert.ErrorIs(t, s.Register(nil, DailyAt(0, 0)), ErrNilJob)

	require.NoError(t, s.Start())
	defer s.Stop()

	schedules := map[string]string{}
	for _, info := range s.Jobs() {
		schedules[info.Name] = info.Schedule
		assert.False(t, info.NextRun.IsZero(), info.Name)
	}
	assert.Equal(t, map[string]string{
		"weekly": "weekly on Monday at 00:00 UTC",
		"daily":  "daily at 00:00 UTC",
	}, schedules)
}

func TestSchedulerRunNow(t *testing.T) {
	s := newScheduler(t)
	ok := &countingJob{name: "ok"}
	bad := &countingJob{name: "bad", err: errors.New("store unavailable")}
	require.NoError(t, s.Register(ok, DailyAt(0, 0)))
	require.NoError(t, s.Register(bad, DailyAt(0, 0)))
	ctx := context.Background()

	res, err := s.RunNow(ctx, "ok")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, int32(1), ok.runs.Load())

	res, err = s.RunNow(ctx, "bad")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "store unavailable", res.Error)

	last, found := s.LastRun("bad")
	require.True(t, found)
	assert.Equal(t, res, last)

	_, err = s.RunNow(ctx, "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestSchedulerFiresIntervalJobs(t *testing.T) {
	s := newScheduler(t)
	job := &countingJob{name: "tick"}
	require.NoError(t, s.Register(job, Every(20*time.Millisecond)))

	require.NoError(t, s.Start())
	assert.ErrorIs(t, s.Start(), ErrSchedulerAlreadyRunning)

	require.Eventually(t, func() bool { return job.runs.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}
