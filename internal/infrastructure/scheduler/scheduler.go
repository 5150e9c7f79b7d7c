package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopcore/stockengine/internal/infrastructure/lock"
	"github.com/shopcore/stockengine/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// JobStatus represents the status of a job run
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
	// JobStatusSkipped means another replica held the job's lock
	JobStatusSkipped JobStatus = "SKIPPED"
)

// Task is a unit of background work. Name doubles as the lock name, so two
// replicas never run the same task at once.
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

// TaskFunc adapts a function to Task
type TaskFunc struct {
	TaskName string
	Fn       func(ctx context.Context) error
}

// Name returns the task name
func (f TaskFunc) Name() string { return f.TaskName }

// Run calls Fn
func (f TaskFunc) Run(ctx context.Context) error { return f.Fn(ctx) }

// JobRun records one execution of a task
type JobRun struct {
	ID          uuid.UUID  `json:"id"`
	Task        string     `json:"task"`
	Status      JobStatus  `json:"status"`
	Error       string     `json:"error,omitempty"`
	SubmittedAt time.Time  `json:"submitted_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type job struct {
	task Task
	run  JobRun
}

// Config holds scheduler configuration
type Config struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
	LockTTL    time.Duration
}

// DefaultConfig returns the default scheduler configuration
func DefaultConfig() Config {
	return Config{
		Workers:    2,
		QueueSize:  32,
		JobTimeout: 10 * time.Minute,
		LockTTL:    15 * time.Minute,
	}
}

func (c Config) validate() error {
	if c.Workers <= 0 || c.QueueSize <= 0 || c.JobTimeout <= 0 || c.LockTTL <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Scheduler runs submitted tasks on a fixed worker pool. Each run first
// takes the task's lock; a run that finds the lock held is skipped, never
// queued behind it.
type Scheduler struct {
	config Config
	locker lock.Locker
	logger *zap.Logger
	now    func() time.Time

	jobs      chan *job
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	lastRuns  map[string]JobRun
}

// NewScheduler creates a new scheduler
func NewScheduler(config Config, locker lock.Locker, logger *zap.Logger) (*Scheduler, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	return &Scheduler{
		config:   config,
		locker:   locker,
		logger:   logger,
		now:      time.Now,
		lastRuns: make(map[string]JobRun),
	}, nil
}

// Start starts the worker pool
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	jobs := make(chan *job, s.config.QueueSize)
	s.jobs = jobs
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.config.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, jobs, i)
	}

	s.logger.Info("Scheduler started",
		zap.Int("workers", s.config.Workers),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop cancels running jobs and waits for the workers
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	close(s.jobs)
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out")
		return ctx.Err()
	}
}

// Submit queues a run of task
func (s *Scheduler) Submit(task Task) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return uuid.Nil, ErrSchedulerNotRunning
	}

	j := &job{task: task, run: JobRun{
		ID:          uuid.New(),
		Task:        task.Name(),
		Status:      JobStatusPending,
		SubmittedAt: s.now(),
	}}

	select {
	case s.jobs <- j:
		s.logger.Debug("Job submitted", zap.String("task", task.Name()), zap.String("job_id", j.run.ID.String()))
		return j.run.ID, nil
	default:
		return uuid.Nil, ErrJobQueueFull
	}
}

// LastRun returns the most recent finished run of the named task
func (s *Scheduler) LastRun(task string) (JobRun, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.lastRuns[task]
	return run, ok
}

func (s *Scheduler) worker(ctx context.Context, jobs <-chan *job, workerID int) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			s.process(ctx, j, workerID)
		}
	}
}

func (s *Scheduler) process(ctx context.Context, j *job, workerID int) {
	status, errMsg := s.execute(ctx, j, []zap.Field{
		zap.Int("worker_id", workerID),
		zap.String("task", j.run.Task),
		zap.String("job_id", j.run.ID.String()),
	})
	s.finish(j, status, errMsg)
}

// execute runs the task under its lock; the lock is released before the run
// is recorded
func (s *Scheduler) execute(ctx context.Context, j *job, fields []zap.Field) (JobStatus, string) {
	release, err := s.locker.TryLock(ctx, j.run.Task, s.config.LockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			s.logger.Info("Job skipped, lock held elsewhere", fields...)
			return JobStatusSkipped, ""
		}
		s.logger.Error("Job lock failed", append(fields, zap.Error(err))...)
		return JobStatusFailed, err.Error()
	}
	defer func() {
		// the job context may be cancelled already; release on a fresh one
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := release(releaseCtx); err != nil {
			s.logger.Warn("Job lock release failed", append(fields, zap.Error(err))...)
		}
	}()

	started := s.now()
	j.run.StartedAt = &started
	j.run.Status = JobStatusRunning
	s.logger.Info("Processing job", fields...)

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()
	jobCtx, span := telemetry.StartServiceSpan(jobCtx, "scheduler", j.run.Task)
	defer span.End()

	var runErr error
	telemetry.WithProfilingLabels(jobCtx, telemetry.TaskLabels(j.run.Task), func(c context.Context) {
		runErr = j.task.Run(c)
	})
	if runErr != nil {
		telemetry.RecordError(span, runErr)
		s.logger.Error("Job failed", append(fields, zap.Error(runErr))...)
		return JobStatusFailed, runErr.Error()
	}

	s.logger.Info("Job completed successfully",
		append(fields, zap.Duration("duration", s.now().Sub(started)))...)
	return JobStatusSuccess, ""
}

func (s *Scheduler) finish(j *job, status JobStatus, errMsg string) {
	completed := s.now()
	j.run.Status = status
	j.run.Error = errMsg
	j.run.CompletedAt = &completed

	s.mu.Lock()
	s.lastRuns[j.run.Task] = j.run
	s.mu.Unlock()
}
