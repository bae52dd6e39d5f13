package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// JobSubmitter accepts jobs by type
type JobSubmitter interface {
	Schedule(jobType JobType) error
}

// CronTriggerConfig holds configuration for the daily trigger
type CronTriggerConfig struct {
	// DailyHour and DailyMinute are the UTC time of day to run (24h format)
	DailyHour   int
	DailyMinute int

	// CheckInterval is how often to check if it's time to run
	CheckInterval time.Duration
}

// DefaultCronTriggerConfig returns default cron trigger configuration
func DefaultCronTriggerConfig() CronTriggerConfig {
	return CronTriggerConfig{
		DailyHour:     2, // 2am
		DailyMinute:   0,
		CheckInterval: time.Minute,
	}
}

// CronTrigger submits one job of a type once per day at a fixed time
type CronTrigger struct {
	config    CronTriggerConfig
	jobType   JobType
	submitter JobSubmitter
	logger    *zap.Logger
	now       func() time.Time

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	isRunning   bool
	lastRunDate string // Track which date we last ran for
}

// NewCronTrigger creates a new daily trigger for jobType
func NewCronTrigger(config CronTriggerConfig, jobType JobType, submitter JobSubmitter, logger *zap.Logger) *CronTrigger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.CheckInterval <= 0 {
		config.CheckInterval = time.Minute
	}
	return &CronTrigger{
		config:    config,
		jobType:   jobType,
		submitter: submitter,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start starts the cron trigger
func (c *CronTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = true
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.runLoop(ctx)

	c.logger.Info("Cron trigger started",
		zap.String("job_type", string(c.jobType)),
		zap.Int("daily_hour", c.config.DailyHour),
		zap.Int("daily_minute", c.config.DailyMinute),
		zap.Duration("check_interval", c.config.CheckInterval),
	)

	return nil
}

// Stop stops the cron trigger
func (c *CronTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	return waitGroupDone(ctx, &c.wg)
}

// runLoop checks periodically if it's time to run
func (c *CronTrigger) runLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.checkAndTrigger(c.now())
		}
	}
}

// checkAndTrigger submits the job once the daily time is reached. A check
// that lands after the minute has passed still fires for that day.
func (c *CronTrigger) checkAndTrigger(now time.Time) bool {
	currentDate := now.Format("2006-01-02")

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastRunDate == currentDate {
		return false
	}

	due := time.Date(now.Year(), now.Month(), now.Day(), c.config.DailyHour, c.config.DailyMinute, 0, 0, now.Location())
	if now.Before(due) {
		return false
	}
	c.lastRunDate = currentDate

	c.logger.Info("Triggering daily job", zap.String("job_type", string(c.jobType)))
	if err := c.submitter.Schedule(c.jobType); err != nil {
		c.logger.Error("Failed to schedule daily job",
			zap.String("job_type", string(c.jobType)),
			zap.Error(err),
		)
	}
	return true
}

// IntervalTrigger submits one job of a type on start and then every interval
type IntervalTrigger struct {
	interval  time.Duration
	jobType   JobType
	submitter JobSubmitter
	logger    *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewIntervalTrigger creates a new interval trigger for jobType
func NewIntervalTrigger(interval time.Duration, jobType JobType, submitter JobSubmitter, logger *zap.Logger) *IntervalTrigger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &IntervalTrigger{
		interval:  interval,
		jobType:   jobType,
		submitter: submitter,
		logger:    logger,
	}
}

// Start submits the first job and starts the ticker
func (t *IntervalTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.submit()
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.submit()
			}
		}
	}()

	t.logger.Info("Interval trigger started",
		zap.String("job_type", string(t.jobType)),
		zap.Duration("interval", t.interval),
	)
	return nil
}

// Stop stops the interval trigger
func (t *IntervalTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}
	return waitGroupDone(ctx, &t.wg)
}

func (t *IntervalTrigger) submit() {
	if err := t.submitter.Schedule(t.jobType); err != nil {
		t.logger.Error("Failed to schedule job",
			zap.String("job_type", string(t.jobType)),
			zap.Error(err),
		)
	}
}

func waitGroupDone(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
