package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobType names a background task of the ledger.
type JobType string

const (
	// JobTypeExpirySweep moves expired batches out of sale and raises alerts.
	JobTypeExpirySweep JobType = "EXPIRY_SWEEP"
	// JobTypeForecastRun recomputes demand forecasts for every active drug.
	JobTypeForecastRun JobType = "FORECAST_RUN"
)

type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// Job is one attempt sequence of a task. Retries reuse the same Job.
type Job struct {
	ID          uuid.UUID
	Type        JobType
	Status      JobStatus
	Error       string
	RetryCount  int
	MaxRetries  int
	StartedAt   *time.Time
	CompletedAt *time.Time
	NextRetryAt *time.Time
}

func NewJob(jobType JobType, maxRetries int) *Job {
	return &Job{ID: uuid.New(), Type: jobType, Status: JobStatusPending, MaxRetries: maxRetries}
}

func stamp() *time.Time {
	t := time.Now()
	return &t
}

func (j *Job) Start() {
	j.Status, j.Error, j.StartedAt = JobStatusRunning, "", stamp()
}

func (j *Job) Complete() {
	j.Status, j.CompletedAt = JobStatusSuccess, stamp()
}

func (j *Job) Fail(reason string) {
	j.Status, j.Error, j.CompletedAt = JobStatusFailed, reason, stamp()
}

// ShouldRetry reports whether a failed job has attempts left.
func (j *Job) ShouldRetry() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// ScheduleRetry resets the job to pending, due after delay.
func (j *Job) ScheduleRetry(delay time.Duration) {
	due := time.Now().Add(delay)
	j.RetryCount++
	j.Status, j.Error, j.NextRetryAt = JobStatusPending, "", &due
}

// JobExecutor runs a job to completion or error.
type JobExecutor interface {
	Execute(ctx context.Context, job *Job) error
}

// Task is the body of a job type.
type Task func(ctx context.Context) error

// TaskExecutor dispatches jobs to the task registered for their type.
type TaskExecutor struct {
	mu    sync.RWMutex
	tasks map[JobType]Task
}

func NewTaskExecutor() *TaskExecutor {
	return &TaskExecutor{tasks: map[JobType]Task{}}
}

// Register binds task to jobType and returns the executor for chaining.
func (e *TaskExecutor) Register(jobType JobType, task Task) *TaskExecutor {
	e.mu.Lock()
	e.tasks[jobType] = task
	e.mu.Unlock()
	return e
}

func (e *TaskExecutor) Execute(ctx context.Context, job *Job) error {
	e.mu.RLock()
	task := e.tasks[job.Type]
	e.mu.RUnlock()
	if task == nil {
		return fmt.Errorf("%w: %s", ErrUnknownJobType, job.Type)
	}
	return task(ctx)
}
