package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Ning0612/Sumkeeper/internal/config"
	"github.com/Ning0612/Sumkeeper/internal/logger"
	"github.com/Ning0612/Sumkeeper/internal/scheduler"
	"github.com/Ning0612/Sumkeeper/internal/state"
)

// ErrChangesDetected marks a scheduled verification that found drift
var ErrChangesDetected = errors.New("changes detected")

// ScheduleService runs verification periodically
type ScheduleService struct {
	mu        sync.RWMutex
	config    *config.Config
	checksums *ChecksumService
	history   *state.Manager
	scheduler *scheduler.Scheduler
	log       logger.Logger

	// OnResult sees every scheduled outcome, including failed ones
	OnResult func(target string, out *Outcome, err error)
}

// ScheduleStatus represents the current schedule status
type ScheduleStatus struct {
	Running        bool
	SchedulerStats *scheduler.Status
	LastRun        *state.RunRecord
}

// ScheduleOptions selects what each tick verifies
type ScheduleOptions struct {
	// Targets are verified in order; the baseline root if empty
	Targets []string

	// Checksums is the baseline file used for every target
	Checksums string
}

// NewScheduleService creates a schedule service over an existing checksum service.
// history may be nil.
func NewScheduleService(cfg *config.Config, checksums *ChecksumService, history *state.Manager) (*ScheduleService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if checksums == nil {
		return nil, fmt.Errorf("checksum service cannot be nil")
	}
	return &ScheduleService{
		config:    cfg,
		checksums: checksums,
		history:   history,
		log:       logger.Get().With("component", "schedule-service"),
	}, nil
}

// Start begins periodic verification using schedule.interval or schedule.cron
func (s *ScheduleService) Start(ctx context.Context, opts ScheduleOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduler != nil {
		return fmt.Errorf("schedule is already running")
	}

	targets := opts.Targets
	if len(targets) == 0 {
		// Empty target resolves to the baseline root
		targets = []string{""}
	}

	runner := scheduler.RunnerFunc(func(ctx context.Context, target string) error {
		return s.verifyOnce(ctx, target, opts.Checksums)
	})

	sched, err := scheduler.New(scheduler.Config{
		Interval: s.config.Schedule.Interval,
		Cron:     s.config.Schedule.Cron,
		Targets:  targets,
	}, runner)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	s.scheduler = sched
	s.log.Info("schedule started",
		"interval", s.config.Schedule.Interval,
		"cron", s.config.Schedule.Cron,
		"targets", len(targets),
	)
	return nil
}

// verifyOnce runs one verification; drift is reported as ErrChangesDetected
func (s *ScheduleService) verifyOnce(ctx context.Context, target, checksums string) error {
	out, err := s.checksums.Verify(ctx, VerifyOptions{Target: target, Checksums: checksums})
	if s.OnResult != nil {
		s.OnResult(target, out, err)
	}
	if err != nil {
		return err
	}

	sum := out.Verification.Summary
	if !sum.Clean() {
		return fmt.Errorf("%w: %d modified, %d new, %d removed", ErrChangesDetected, sum.Modified, sum.New, sum.Removed)
	}
	return nil
}

// Done is closed when the scheduling loop exits; nil if not started
func (s *ScheduleService) Done() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.scheduler == nil {
		return nil
	}
	return s.scheduler.Done()
}

// Stop stops the schedule, cancelling a verification in progress
func (s *ScheduleService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduler == nil {
		return fmt.Errorf("schedule is not running")
	}

	s.checksums.Cancel()
	if err := s.scheduler.Stop(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}

	s.scheduler = nil
	return nil
}

// Status returns the current schedule status
func (s *ScheduleService) Status() *ScheduleStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := &ScheduleStatus{
		Running: s.scheduler != nil,
	}
	if s.scheduler != nil {
		status.SchedulerStats = s.scheduler.Status()
	}

	if s.history != nil {
		history, err := s.history.GetAllHistory(1)
		if err == nil && len(history) > 0 {
			status.LastRun = &history[0]
		}
	}
	return status
}

// IsChangesDetected reports whether err is a drift report rather than a failure
func IsChangesDetected(err error) bool {
	return errors.Is(err, ErrChangesDetected)
}
