package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DailySchedule is a time of day, parsed from a "minute hour * * *" cron
// expression
type DailySchedule struct {
	Hour   int
	Minute int
}

// ParseDailySchedule parses "minute hour * * *". Only fixed daily
// expressions are supported; anything else is rejected.
func ParseDailySchedule(expr string) (DailySchedule, error) {
	parts := strings.Fields(expr)
	if len(parts) != 5 {
		return DailySchedule{}, fmt.Errorf("%w: cron expression %q must have 5 fields", ErrInvalidConfig, expr)
	}
	for _, p := range parts[2:] {
		if p != "*" {
			return DailySchedule{}, fmt.Errorf("%w: only daily schedules (\"m h * * *\") are supported, got %q", ErrInvalidConfig, expr)
		}
	}

	minute, err := strconv.Atoi(parts[0])
	if err != nil || minute < 0 || minute > 59 {
		return DailySchedule{}, fmt.Errorf("%w: minute must be 0-59, got %q", ErrInvalidConfig, parts[0])
	}
	hour, err := strconv.Atoi(parts[1])
	if err != nil || hour < 0 || hour > 23 {
		return DailySchedule{}, fmt.Errorf("%w: hour must be 0-23, got %q", ErrInvalidConfig, parts[1])
	}
	return DailySchedule{Hour: hour, Minute: minute}, nil
}

// Due reports whether t, in its own location, is at or past the scheduled
// time of its day
func (d DailySchedule) Due(t time.Time) bool {
	return t.Hour() > d.Hour || (t.Hour() == d.Hour && t.Minute() >= d.Minute)
}

// CronTrigger submits a task once a day at a fixed local time. Day
// boundaries are taken in the configured location, the same one the expiry
// policy uses, so the sweep runs right after items expire.
type CronTrigger struct {
	schedule      DailySchedule
	location      *time.Location
	checkInterval time.Duration
	task          Task
	scheduler     *Scheduler
	logger        *zap.Logger
	now           func() time.Time

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	isRunning   bool
	lastRunDate string
}

// NewCronTrigger creates a trigger. A late start (process booted after the
// scheduled time) still runs the task that day.
func NewCronTrigger(schedule DailySchedule, location *time.Location, task Task, scheduler *Scheduler, logger *zap.Logger) *CronTrigger {
	if location == nil {
		location = time.UTC
	}
	return &CronTrigger{
		schedule:      schedule,
		location:      location,
		checkInterval: time.Minute,
		task:          task,
		scheduler:     scheduler,
		logger:        logger,
		now:           time.Now,
	}
}

// Start starts the check loop
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
		zap.String("task", c.task.Name()),
		zap.Int("hour", c.schedule.Hour),
		zap.Int("minute", c.schedule.Minute),
		zap.String("location", c.location.String()),
	)
	return nil
}

// Stop stops the check loop
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

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("Cron trigger stopped", zap.String("task", c.task.Name()))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *CronTrigger) runLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.checkInterval)
	defer ticker.Stop()

	c.checkAndTrigger()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.checkAndTrigger()
		}
	}
}

// checkAndTrigger submits the task when today's slot has passed and it has
// not been submitted today. It reports whether it submitted.
func (c *CronTrigger) checkAndTrigger() bool {
	now := c.now().In(c.location)
	today := now.Format("2006-01-02")

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastRunDate == today || !c.schedule.Due(now) {
		return false
	}

	if _, err := c.scheduler.Submit(c.task); err != nil {
		c.logger.Error("Failed to submit scheduled task",
			zap.String("task", c.task.Name()),
			zap.Error(err),
		)
		return false
	}
	c.lastRunDate = today
	c.logger.Info("Scheduled task submitted", zap.String("task", c.task.Name()), zap.String("date", today))
	return true
}

// IntervalTrigger submits a task every interval
type IntervalTrigger struct {
	interval  time.Duration
	task      Task
	scheduler *Scheduler
	logger    *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewIntervalTrigger creates an IntervalTrigger
func NewIntervalTrigger(interval time.Duration, task Task, scheduler *Scheduler, logger *zap.Logger) *IntervalTrigger {
	return &IntervalTrigger{interval: interval, task: task, scheduler: scheduler, logger: logger}
}

// Start starts the ticker
func (t *IntervalTrigger) Start(ctx context.Context) error {
	if t.interval <= 0 {
		return fmt.Errorf("%w: interval for %s must be positive", ErrInvalidConfig, t.task.Name())
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
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
				if _, err := t.scheduler.Submit(t.task); err != nil {
					t.logger.Warn("Failed to submit periodic task", zap.String("task", t.task.Name()), zap.Error(err))
				}
			}
		}
	}()

	t.logger.Info("Interval trigger started", zap.String("task", t.task.Name()), zap.Duration("interval", t.interval))
	return nil
}

// Stop stops the ticker
func (t *IntervalTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	t.wg.Wait()
	return nil
}
