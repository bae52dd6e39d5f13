package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestJob_Lifecycle(t *testing.T) {
	job := NewJob(JobTypeExpirySweep, 1)
	assert.Equal(t, JobStatusPending, job.Status)

	job.Start()
	assert.Equal(t, JobStatusRunning, job.Status)
	require.NotNil(t, job.StartedAt)

	job.Fail("boom")
	assert.Equal(t, "boom", job.Error)
	assert.True(t, job.ShouldRetry())

	job.ScheduleRetry(time.Second)
	assert.Equal(t, 1, job.RetryCount)
	assert.Equal(t, JobStatusPending, job.Status)
	require.NotNil(t, job.NextRetryAt)

	job.Start()
	job.Fail("boom again")
	assert.False(t, job.ShouldRetry())

	job.Complete()
	assert.Equal(t, JobStatusSuccess, job.Status)
}

func TestTaskExecutor(t *testing.T) {
	var ran atomic.Int32
	exec := NewTaskExecutor().Register(JobTypeExpirySweep, func(context.Context) error {
		ran.Add(1)
		return nil
	})

	require.NoError(t, exec.Execute(context.Background(), NewJob(JobTypeExpirySweep, 0)))
	assert.Equal(t, int32(1), ran.Load())

	err := exec.Execute(context.Background(), NewJob(JobTypeForecastRun, 0))
	assert.ErrorIs(t, err, ErrUnknownJobType)
}

func TestScheduler_RunsAndRetries(t *testing.T) {
	var attempts atomic.Int32
	exec := NewTaskExecutor().Register(JobTypeForecastRun, func(context.Context) error {
		if attempts.Add(1) == 1 {
			return errors.New("transient")
		}
		return nil
	})

	s := NewScheduler(SchedulerConfig{
		MaxConcurrentJobs: 1,
		JobTimeout:        time.Second,
		RetryAttempts:     2,
		RetryDelay:        10 * time.Millisecond,
	}, exec, zaptest.NewLogger(t))

	assert.ErrorIs(t, s.Schedule(JobTypeForecastRun), ErrSchedulerNotRunning)

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	require.NoError(t, s.Schedule(JobTypeForecastRun))

	assert.Eventually(t, func() bool { return attempts.Load() == 2 }, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.False(t, s.IsRunning())
}

type recordingSubmitter struct {
	mu    sync.Mutex
	types []JobType
}

func (r *recordingSubmitter) Schedule(jobType JobType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, jobType)
	return nil
}

func (r *recordingSubmitter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.types)
}

func TestCronTrigger_CheckAndTrigger(t *testing.T) {
	sub := &recordingSubmitter{}
	trigger := NewCronTrigger(CronTriggerConfig{DailyHour: 2, DailyMinute: 30}, JobTypeForecastRun, sub, nil)

	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	assert.False(t, trigger.checkAndTrigger(day.Add(2*time.Hour+29*time.Minute)), "before the daily time")
	assert.True(t, trigger.checkAndTrigger(day.Add(2*time.Hour+30*time.Minute)))
	assert.False(t, trigger.checkAndTrigger(day.Add(2*time.Hour+31*time.Minute)), "once per day")
	assert.False(t, trigger.checkAndTrigger(day.Add(23*time.Hour)))

	next := day.AddDate(0, 0, 1)
	assert.True(t, trigger.checkAndTrigger(next.Add(9*time.Hour)), "a late check still fires")

	assert.Equal(t, []JobType{JobTypeForecastRun, JobTypeForecastRun}, sub.types)
}

func TestIntervalTrigger(t *testing.T) {
	sub := &recordingSubmitter{}
	trigger := NewIntervalTrigger(10*time.Millisecond, JobTypeExpirySweep, sub, zaptest.NewLogger(t))

	require.NoError(t, trigger.Start(context.Background()))
	assert.GreaterOrEqual(t, sub.count(), 1, "submits immediately on start")
	assert.Eventually(t, func() bool { return sub.count() >= 3 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, trigger.Stop(ctx))

	stopped := sub.count()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, sub.count())
}
