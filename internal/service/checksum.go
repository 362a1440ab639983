// Package service wires discovery, the checksum engine, the stores and the
// run history into calculate and verify runs.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/Ning0612/Sumkeeper/internal/config"
	"github.com/Ning0612/Sumkeeper/internal/core/checksum"
	"github.com/Ning0612/Sumkeeper/internal/core/discover"
	"github.com/Ning0612/Sumkeeper/internal/core/registry"
	"github.com/Ning0612/Sumkeeper/internal/core/verify"
	"github.com/Ning0612/Sumkeeper/internal/domain"
	"github.com/Ning0612/Sumkeeper/internal/engine"
	"github.com/Ning0612/Sumkeeper/internal/events"
	"github.com/Ning0612/Sumkeeper/internal/lock"
	"github.com/Ning0612/Sumkeeper/internal/logger"
	"github.com/Ning0612/Sumkeeper/internal/state"
	"github.com/Ning0612/Sumkeeper/internal/store"
)

// Run modes recorded in the lock, the history and completion events
const (
	ModeCalculate = "calculate"
	ModeVerify    = "verify"
)

// Bus listener IDs; binding twice is a no-op
const (
	exitListenerID  = "checksum-service.exit"
	pauseListenerID = "checksum-service.pause"
)

// Options configures a ChecksumService
type Options struct {
	Config *config.Config

	// Bus carries pause/exit requests in and progress/completion out.
	// A private bus is created when nil.
	Bus *events.Bus

	// History records every run; nil disables it
	History *state.Manager

	Fs afero.Fs

	// WorkDir stands in for the baseline root in verify targets
	WorkDir string

	Logger logger.Logger
}

// CalculateOptions selects what a calculate run hashes
type CalculateOptions struct {
	// Root is the file or directory to hash; the working directory if empty
	Root string

	// Algorithm overrides scan.algorithm when set
	Algorithm string

	// Resume continues from the snapshot in the state directory
	Resume bool

	// Output overrides storage.baseline_path when set
	Output string
}

// VerifyOptions selects what a verify run checks
type VerifyOptions struct {
	// Target is the baseline root, a file recorded in it, or empty for the
	// working directory
	Target string

	// Checksums is the baseline file; storage.baseline_path if empty
	Checksums string
}

// Outcome describes a finished run, including cancelled ones
type Outcome struct {
	RunID     string
	Mode      string
	Status    state.RunStatus
	Root      string
	Algorithm domain.Algorithm
	StartTime time.Time
	EndTime   time.Time

	// Records holds the computed records of a calculate run
	Records []domain.ChecksumRecord

	// Verification holds the classification of a verify run
	Verification *verify.Result

	// Output is the baseline or snapshot written by the run
	Output string

	Err error
}

// ChecksumService orchestrates calculate and verify runs
type ChecksumService struct {
	config  *config.Config
	bus     *events.Bus
	history *state.Manager
	fs      afero.Fs
	codec   store.Codec
	lock    *lock.FileLock
	gate    *engine.PauseGate
	workDir string
	log     logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewChecksumService creates a service and binds its pause/exit listeners
func NewChecksumService(opts Options) (*ChecksumService, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Bus == nil {
		opts.Bus = events.NewBus(opts.Logger)
	}
	if opts.WorkDir == "" {
		opts.WorkDir, _ = os.Getwd()
	}

	if err := os.MkdirAll(opts.Config.Storage.StateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	fileLock, err := lock.NewFileLock(opts.Config.Storage.StateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create file lock: %w", err)
	}

	s := &ChecksumService{
		config:  opts.Config,
		bus:     opts.Bus,
		history: opts.History,
		fs:      opts.Fs,
		codec:   store.CodecFor(opts.Config.Storage.Binary),
		lock:    fileLock,
		gate:    engine.NewPauseGate(),
		workDir: opts.WorkDir,
		log:     logger.OrDefault(opts.Logger).With("component", "checksum-service"),
	}
	s.bind()
	return s, nil
}

// CheckModes rejects a request that mixes calculate and verify options
func CheckModes(algorithm, checksums string) error {
	if algorithm != "" && checksums != "" {
		return fmt.Errorf("%w: --algorithm selects calculate, --checksums selects verify", domain.ErrConflictingModes)
	}
	return nil
}

func (s *ChecksumService) bind() {
	s.bus.Bind(events.TopicExit, events.Listener{
		ID:     exitListenerID,
		Handle: func(events.Event) { s.Cancel() },
	})
	s.bus.Bind(events.TopicPause, events.Listener{
		ID: pauseListenerID,
		Handle: func(events.Event) {
			paused := s.gate.Toggle()
			s.log.Info("pause toggled", "paused", paused)
		},
	})
}

// Bus returns the bus the service listens and publishes on
func (s *ChecksumService) Bus() *events.Bus {
	return s.bus
}

// Gate returns the pause gate shared by every run of this service
func (s *ChecksumService) Gate() *engine.PauseGate {
	return s.gate
}

// Cancel stops the run in progress, if any
func (s *ChecksumService) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		s.log.Info("exit requested")
		cancel()
	}
}

// begin derives the run context; only one run at a time holds the cancel func
func (s *ChecksumService) begin(ctx context.Context) (context.Context, func()) {
	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	return runCtx, func() {
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
		cancel()
	}
}

func (s *ChecksumService) calculator() checksum.Calculator {
	return checksum.NewCalculator(checksum.Options{
		MaxSize:    s.config.Scan.MaxSize,
		BufferSize: s.config.Scan.ChunkSize,
	})
}

func (s *ChecksumService) discoverer() *discover.Discoverer {
	return discover.New(discover.Options{
		Exclude: s.config.Scan.Exclude,
		Logger:  s.log,
	})
}

func (s *ChecksumService) snapshots() *store.SnapshotStore {
	return store.NewSnapshotStore(s.fs, s.config.Storage.StateDir, s.codec)
}

func (s *ChecksumService) baselines(path string) *store.BaselineStore {
	if path == "" {
		path = s.config.Storage.BaselinePath
	}
	return store.NewBaselineStore(s.fs, path, s.codec)
}

func (s *ChecksumService) absPath(path string) (string, error) {
	if path == "" {
		return filepath.Clean(s.workDir), nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.workDir, path)
	}
	return filepath.Abs(path)
}

// Calculate hashes Root and writes a baseline when the run completes.
// A cancelled run is saved as a snapshot and returns ErrCancelled with the
// partial Outcome.
func (s *ChecksumService) Calculate(ctx context.Context, opts CalculateOptions) (*Outcome, error) {
	algo := s.config.Algorithm()
	if opts.Algorithm != "" {
		parsed, err := domain.ParseAlgorithm(opts.Algorithm)
		if err != nil {
			return nil, err
		}
		algo = parsed
	}

	root, err := s.absPath(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	if err := s.lock.Acquire(ModeCalculate, root); err != nil {
		return nil, err
	}
	defer s.lock.Release()

	runCtx, end := s.begin(ctx)
	defer end()

	out := &Outcome{
		RunID:     state.NewRunID(),
		Mode:      ModeCalculate,
		Root:      root,
		Algorithm: algo,
		StartTime: time.Now(),
	}
	log := s.log.With("run", out.RunID, "mode", ModeCalculate, "root", root)
	log.Info("calculate started", "algorithm", string(algo))

	snapshots := s.snapshots()
	e := engine.New(engine.Options{
		Root:         root,
		CallerID:     ModeCalculate,
		Fs:           s.fs,
		Calculator:   s.calculator(),
		Sink:         events.BusSink{Bus: s.bus},
		Gate:         s.gate,
		Checkpointer: store.Checkpointer{Store: snapshots},
		Logger:       log,
	})

	reg := registry.New()
	if err := e.Discover(runCtx, s.discoverer(), reg); err != nil {
		if errors.Is(err, domain.ErrCancelled) {
			return s.finishCancelled(out, reg, nil, snapshots)
		}
		return s.finishFailed(out, err)
	}

	if opts.Resume {
		snap, err := snapshots.Load()
		switch {
		case err == nil:
			if err := engine.ApplySnapshot(reg, *snap, root); err != nil {
				return s.finishFailed(out, err)
			}
			e.Seed(snap.Finished)
			log.Info("resuming from snapshot", "finished", len(snap.Finished), "pending", len(snap.Pending))
		case errors.Is(err, domain.ErrSnapshotNotFound):
			log.Info("no snapshot to resume, starting fresh")
		default:
			return s.finishFailed(out, err)
		}
	}

	records, err := e.Run(runCtx, reg, algo)
	out.Records = records
	if err != nil {
		if engine.IsCancelled(err) {
			return s.finishCancelled(out, reg, records, snapshots)
		}
		return s.finishFailed(out, err)
	}

	baselines := s.baselines(opts.Output)
	if err := baselines.Save(root, algo, records); err != nil {
		return s.finishFailed(out, err)
	}
	if err := snapshots.Discard(); err != nil {
		log.Warn("failed to discard snapshot", "error", err)
	}

	out.Output = baselines.Path()
	out.Status = state.RunCompleted
	s.finish(out)
	return out, nil
}

// Verify re-hashes a baseline's tree and classifies every path.
// A cancelled run returns ErrCancelled and no classification.
func (s *ChecksumService) Verify(ctx context.Context, opts VerifyOptions) (*Outcome, error) {
	baseline, err := s.baselines(opts.Checksums).Load(opts.Checksums)
	if err != nil {
		return nil, err
	}

	target := opts.Target
	if target != "" {
		if target, err = s.absPath(target); err != nil {
			return nil, fmt.Errorf("resolve target: %w", err)
		}
	}

	root, err := verify.ResolveTarget(*baseline, target, s.workDir)
	if err != nil {
		return nil, err
	}

	if err := s.lock.Acquire(ModeVerify, root); err != nil {
		return nil, err
	}
	defer s.lock.Release()

	runCtx, end := s.begin(ctx)
	defer end()

	out := &Outcome{
		RunID:     state.NewRunID(),
		Mode:      ModeVerify,
		Root:      root,
		Algorithm: baseline.Algorithm,
		StartTime: time.Now(),
	}
	log := s.log.With("run", out.RunID, "mode", ModeVerify, "root", root)
	log.Info("verify started", "algorithm", string(baseline.Algorithm), "baseline_records", len(baseline.Records))

	v := verify.New(verify.Options{
		Discoverer: s.discoverer(),
		Engine: engine.Options{
			CallerID:   ModeVerify,
			Fs:         s.fs,
			Calculator: s.calculator(),
			Sink:       events.BusSink{Bus: s.bus},
			Gate:       s.gate,
			Logger:     log,
		},
		WorkDir: s.workDir,
		Logger:  log,
	})

	result, err := v.Verify(runCtx, baseline, root)
	if err != nil {
		if errors.Is(err, domain.ErrCancelled) {
			out.Status = state.RunCancelled
			out.Err = domain.ErrCancelled
			s.finish(out)
			return out, domain.ErrCancelled
		}
		return s.finishFailed(out, err)
	}

	out.Verification = result
	out.Status = state.RunCompleted
	s.finish(out)
	return out, nil
}

func (s *ChecksumService) finishCancelled(out *Outcome, reg *registry.Registry, records []domain.ChecksumRecord, snapshots *store.SnapshotStore) (*Outcome, error) {
	out.Status = state.RunCancelled
	out.Err = domain.ErrCancelled

	snap := engine.TakeSnapshot(reg, records, out.Root)
	if err := snapshots.Save(snap); err != nil {
		s.log.Warn("failed to save snapshot of cancelled run", "run", out.RunID, "error", err)
	} else {
		out.Output = snapshots.Path()
	}

	s.finish(out)
	return out, domain.ErrCancelled
}

func (s *ChecksumService) finishFailed(out *Outcome, err error) (*Outcome, error) {
	out.Status = state.RunFailed
	out.Err = err
	s.finish(out)
	return out, err
}

// finish records the run and then publishes runComplete, exactly once
func (s *ChecksumService) finish(out *Outcome) {
	out.EndTime = time.Now()

	if s.history != nil {
		record := state.RunRecord{
			ID:        out.RunID,
			Mode:      out.Mode,
			Root:      out.Root,
			Algorithm: string(out.Algorithm),
			StartTime: out.StartTime,
			EndTime:   out.EndTime,
			Status:    out.Status,
			Files:     len(out.Records),
		}
		if out.Verification != nil {
			sum := out.Verification.Summary
			record.Files = len(out.Verification.Entries)
			record.Ok, record.Modified, record.New, record.Removed = sum.Ok, sum.Modified, sum.New, sum.Removed
		}
		if out.Err != nil && out.Status == state.RunFailed {
			record.Error = out.Err.Error()
		}
		if _, err := s.history.SaveRun(record); err != nil {
			s.log.Warn("failed to record run history", "run", out.RunID, "error", err)
		}
	}

	s.log.Info("run finished",
		"run", out.RunID,
		"mode", out.Mode,
		"status", string(out.Status),
		"duration", out.EndTime.Sub(out.StartTime),
	)

	s.bus.Publish(events.TopicRunComplete, events.Completion{
		RunID:  out.RunID,
		Mode:   out.Mode,
		Status: string(out.Status),
		Output: out.Output,
	})
}

// Close unbinds the service from the bus
func (s *ChecksumService) Close() error {
	s.Cancel()
	s.bus.Unbind(events.TopicExit, exitListenerID)
	s.bus.Unbind(events.TopicPause, pauseListenerID)
	return nil
}
