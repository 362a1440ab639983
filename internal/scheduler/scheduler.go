// Package scheduler runs verification periodically, on a fixed interval or
// a cron expression.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Ning0612/Sumkeeper/internal/logger"
)

// Status represents the current state of a scheduler
type Status struct {
	Running        bool
	LastRunTime    time.Time
	NextRunTime    time.Time
	TotalRuns      int
	SuccessfulRuns int
	FailedRuns     int
	LastError      string
}

// Config contains scheduler configuration; exactly one of Interval or Cron
type Config struct {
	// Interval specifies the duration between runs
	Interval time.Duration

	// Cron is a standard five-field cron expression
	Cron string

	// Targets are the paths verified on every tick
	Targets []string
}

// Runner is what the scheduler invokes on every tick
type Runner interface {
	RunVerify(ctx context.Context, target string) error
}

// RunnerFunc adapts a function to Runner
type RunnerFunc func(ctx context.Context, target string) error

func (f RunnerFunc) RunVerify(ctx context.Context, target string) error {
	return f(ctx, target)
}

// intervalSchedule is a fixed delay; cron.Every rounds to whole seconds
type intervalSchedule time.Duration

func (s intervalSchedule) Next(t time.Time) time.Time {
	return t.Add(time.Duration(s))
}

// Scheduler triggers the runner according to a cron.Schedule
type Scheduler struct {
	config   Config
	schedule cron.Schedule
	runner   Runner
	log      logger.Logger

	// Runtime state
	mu          sync.RWMutex
	running     bool
	stopped     bool      // Track if stopped to prevent restart
	stopOnce    sync.Once // Ensure Stop() is idempotent
	closeOnce   sync.Once // Ensure stoppedChan is closed exactly once
	stopChan    chan struct{}
	stoppedChan chan struct{}

	// Statistics
	stats struct {
		lastRunTime    time.Time
		nextRunTime    time.Time
		totalRuns      int
		successfulRuns int
		failedRuns     int
		lastError      string
	}
}

// New creates a scheduler from config
func New(config Config, runner Runner) (*Scheduler, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner cannot be nil")
	}

	var schedule cron.Schedule
	switch {
	case config.Cron != "" && config.Interval > 0:
		return nil, fmt.Errorf("interval and cron are mutually exclusive")
	case config.Cron != "":
		parsed, err := cron.ParseStandard(config.Cron)
		if err != nil {
			return nil, fmt.Errorf("invalid cron expression %q: %w", config.Cron, err)
		}
		schedule = parsed
	case config.Interval > 0:
		schedule = intervalSchedule(config.Interval)
	default:
		return nil, fmt.Errorf("interval must be positive, got %v", config.Interval)
	}

	return &Scheduler{
		config:      config,
		schedule:    schedule,
		runner:      runner,
		log:         logger.Get().With("component", "scheduler"),
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}, nil
}

// Start begins the scheduling loop
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	if s.stopped {
		return fmt.Errorf("scheduler cannot be restarted after stop")
	}

	s.running = true
	s.stats.nextRunTime = s.schedule.Next(time.Now())

	go s.run(ctx)
	return nil
}

// run is the main scheduling loop
func (s *Scheduler) run(ctx context.Context) {
	defer s.closeOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.running = false
		s.mu.Unlock()
		close(s.stoppedChan)
	})

	for {
		s.mu.RLock()
		next := s.stats.nextRunTime
		s.mu.RUnlock()

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.stopChan:
			timer.Stop()
			return
		case <-timer.C:
			s.execute(ctx)
		}
	}
}

// execute verifies every target once
func (s *Scheduler) execute(ctx context.Context) {
	now := time.Now()
	s.mu.Lock()
	s.stats.lastRunTime = now
	s.stats.totalRuns++
	s.stats.nextRunTime = s.schedule.Next(now)
	s.mu.Unlock()

	var lastErr error
	for _, target := range s.config.Targets {
		if err := s.runner.RunVerify(ctx, target); err != nil {
			s.log.Warn("scheduled verification failed", "target", target, "error", err)
			lastErr = err
		}
	}

	s.mu.Lock()
	if lastErr != nil {
		s.stats.failedRuns++
		s.stats.lastError = lastErr.Error()
	} else {
		s.stats.successfulRuns++
		s.stats.lastError = ""
	}
	s.mu.Unlock()
}

// Stop gracefully stops the scheduler, waiting for a run in progress
func (s *Scheduler) Stop() error {
	s.mu.RLock()
	if !s.running {
		s.mu.RUnlock()
		return fmt.Errorf("scheduler is not running")
	}
	s.mu.RUnlock()

	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	<-s.stoppedChan
	return nil
}

// Done is closed once the loop has exited
func (s *Scheduler) Done() <-chan struct{} {
	return s.stoppedChan
}

// Status returns the current scheduler status
func (s *Scheduler) Status() *Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return &Status{
		Running:        s.running,
		LastRunTime:    s.stats.lastRunTime,
		NextRunTime:    s.stats.nextRunTime,
		TotalRuns:      s.stats.totalRuns,
		SuccessfulRuns: s.stats.successfulRuns,
		FailedRuns:     s.stats.failedRuns,
		LastError:      s.stats.lastError,
	}
}
