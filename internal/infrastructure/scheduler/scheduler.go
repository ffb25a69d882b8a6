// Package scheduler runs the periodic jobs of the CyberQuest worker (points
// resets, realtime leaderboard rebuilds) on top of gocron.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/cyberquest/cyberquest-api/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Job defines the interface that all scheduled jobs must implement.
type Job interface {
	// Name returns the unique name of the job.
	Name() string

	// Description returns a human-readable description of the job.
	Description() string

	// Run executes the job. The context is cancelled when the scheduler stops.
	Run(ctx context.Context) error
}

// JobResult contains the result of a job execution.
type JobResult struct {
	JobName     string        `json:"jobName"`
	StartedAt   time.Time     `json:"startedAt"`
	CompletedAt time.Time     `json:"completedAt"`
	Duration    time.Duration `json:"duration"`
	Success     bool          `json:"success"`
	Error       string        `json:"error,omitempty"`
}

var (
	ErrNilJob                  = errors.New("job cannot be nil")
	ErrJobAlreadyExists        = errors.New("job already registered")
	ErrJobNotFound             = errors.New("job not found")
	ErrSchedulerAlreadyRunning = errors.New("scheduler already running")
	ErrSchedulerNotRunning     = errors.New("scheduler not running")
)

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// Config contains configuration for the Scheduler.
type Config struct {
	Logger *logger.Logger

	// JobTimeout bounds a single run. Zero means no bound.
	JobTimeout time.Duration
}

type registeredJob struct {
	job      Job
	schedule Schedule
	handle   gocron.Job
}

// Scheduler owns a gocron scheduler and records the outcome of every run.
// A job never overlaps itself; a run that is still going when the next one is
// due makes gocron reschedule.
type Scheduler struct {
	cron   gocron.Scheduler
	log    *logger.Logger
	config Config

	mu       sync.RWMutex
	jobs     map[string]*registeredJob
	lastRuns map[string]JobResult
	running  bool
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a Scheduler. Jobs run in UTC.
func New(config Config) (*Scheduler, error) {
	if config.Logger == nil {
		config.Logger = logger.Nop()
	}
	log := config.Logger.With(logger.Component("scheduler"))

	cron, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithLogger(log.Slog()),
		gocron.WithStopTimeout(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:     cron,
		log:      log,
		config:   config,
		jobs:     make(map[string]*registeredJob),
		lastRuns: make(map[string]JobResult),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Register adds a job with its schedule.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	if job == nil || schedule == nil {
		return ErrNilJob
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}

	handle, err := s.cron.NewJob(
		schedule.definition(),
		gocron.NewTask(func() { s.run(s.ctx, job) }),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}
	s.jobs[name] = &registeredJob{job: job, schedule: schedule, handle: handle}

	s.log.Info("job registered",
		logger.String("job", name),
		logger.String("description", job.Description()),
		logger.String("schedule", schedule.String()),
	)
	return nil
}

// Start begins firing jobs.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrSchedulerAlreadyRunning
	}
	s.running = true
	s.cron.Start()
	s.log.Info("scheduler started", logger.Int("jobs_count", len(s.jobs)))
	return nil
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	if err := s.cron.Shutdown(); err != nil {
		return fmt.Errorf("shutdown scheduler: %w", err)
	}
	s.log.Info("scheduler stopped")
	return nil
}

// RunNow runs a registered job synchronously, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) (JobResult, error) {
	s.mu.RLock()
	rj, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return JobResult{}, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.run(ctx, rj.job), nil
}

func (s *Scheduler) run(ctx context.Context, job Job) JobResult {
	if s.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.JobTimeout)
		defer cancel()
	}

	result := JobResult{JobName: job.Name(), StartedAt: time.Now().UTC()}
	err := job.Run(ctx)
	result.CompletedAt = time.Now().UTC()
	result.Duration = result.CompletedAt.Sub(result.StartedAt)
	result.Success = err == nil

	if err != nil {
		result.Error = err.Error()
		s.log.Error("job failed", logger.String("job", job.Name()), logger.Latency(result.Duration), logger.Err(err))
	} else {
		s.log.Info("job completed", logger.String("job", job.Name()), logger.Latency(result.Duration))
	}

	s.mu.Lock()
	s.lastRuns[job.Name()] = result
	s.mu.Unlock()
	return result
}

// JobInfo describes a registered job.
type JobInfo struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Schedule    string     `json:"schedule"`
	NextRun     time.Time  `json:"nextRun,omitempty"`
	LastRun     *JobResult `json:"lastRun,omitempty"`
}

// Jobs lists the registered jobs.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobInfo, 0, len(s.jobs))
	for name, rj := range s.jobs {
		info := JobInfo{Name: name, Description: rj.job.Description(), Schedule: rj.schedule.String()}
		if next, err := rj.handle.NextRun(); err == nil {
			info.NextRun = next
		}
		if last, ok := s.lastRuns[name]; ok {
			info.LastRun = &last
		}
		out = append(out, info)
	}
	return out
}

// LastRun returns the latest result of a job.
func (s *Scheduler) LastRun(name string) (JobResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.lastRuns[name]
	return r, ok
}
