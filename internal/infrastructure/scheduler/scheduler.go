package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const queueSize = 64

// SchedulerConfig sizes the worker pool and its retry policy.
type SchedulerConfig struct {
	Enabled           bool
	MaxConcurrentJobs int
	JobTimeout        time.Duration
	RetryAttempts     int
	RetryDelay        time.Duration
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled:           true,
		MaxConcurrentJobs: 2,
		JobTimeout:        10 * time.Minute,
		RetryAttempts:     2,
		RetryDelay:        time.Minute,
	}
}

// Scheduler runs queued jobs on a fixed pool of workers. Failed jobs are
// re-queued after RetryDelay without holding a worker.
type Scheduler struct {
	cfg  SchedulerConfig
	exec JobExecutor
	log  *zap.Logger

	queue chan *Job

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewScheduler(cfg SchedulerConfig, exec JobExecutor, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	cfg.MaxConcurrentJobs = max(cfg.MaxConcurrentJobs, 1)
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultSchedulerConfig().JobTimeout
	}
	return &Scheduler{cfg: cfg, exec: exec, log: log, queue: make(chan *Job, queueSize)}
}

// Start launches the workers. Starting a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	for range s.cfg.MaxConcurrentJobs {
		s.wg.Add(1)
		go s.work(ctx)
	}
	s.log.Info("Job scheduler started", zap.Int("workers", s.cfg.MaxConcurrentJobs))
	return nil
}

// Stop cancels in-flight jobs and waits for workers until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	if err := waitGroupDone(ctx, &s.wg); err != nil {
		return err
	}
	s.log.Info("Job scheduler stopped")
	return nil
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// SubmitJob enqueues job without blocking.
func (s *Scheduler) SubmitJob(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return ErrSchedulerNotRunning
	}
	select {
	case s.queue <- job:
		return nil
	default:
		return ErrJobQueueFull
	}
}

// Schedule enqueues a fresh job of jobType with the configured retry budget.
func (s *Scheduler) Schedule(jobType JobType) error {
	return s.SubmitJob(NewJob(jobType, s.cfg.RetryAttempts))
}

func (s *Scheduler) work(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.queue:
			s.run(ctx, job)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, job *Job) {
	log := s.log.With(zap.String("job_id", job.ID.String()), zap.String("job_type", string(job.Type)))

	job.Start()
	jobCtx, cancel := context.WithTimeout(ctx, s.cfg.JobTimeout)
	err := s.exec.Execute(jobCtx, job)
	cancel()

	if err == nil {
		job.Complete()
		log.Info("Job completed", zap.Duration("took", job.CompletedAt.Sub(*job.StartedAt)))
		return
	}

	job.Fail(err.Error())
	log.Error("Job failed", zap.Int("attempt", job.RetryCount+1), zap.Error(err))
	if ctx.Err() != nil || !job.ShouldRetry() {
		return
	}
	job.ScheduleRetry(s.cfg.RetryDelay)
	time.AfterFunc(s.cfg.RetryDelay, func() {
		if err := s.SubmitJob(job); err != nil {
			log.Warn("Retry dropped", zap.Error(err))
		}
	})
}
