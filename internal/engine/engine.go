// Package engine runs the resumable checksum traversal over a registry.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/afero"

	"github.com/Ning0612/Sumkeeper/internal/core/checksum"
	"github.com/Ning0612/Sumkeeper/internal/core/discover"
	"github.com/Ning0612/Sumkeeper/internal/core/registry"
	"github.com/Ning0612/Sumkeeper/internal/domain"
	"github.com/Ning0612/Sumkeeper/internal/logger"
)

// ProgressSink receives progress and per-file outcomes.
// Implementations must not block for long; they run on the engine goroutine.
type ProgressSink interface {
	Progress(callerID, path string, percent int)
	FileDone(path string, err error)
}

// DiscoverySink is implemented by sinks that want the file count once
// discovery has filled the registry
type DiscoverySink interface {
	Discovered(callerID string, files int)
}

// Options configures an Engine
type Options struct {
	// Root is the traversal root recorded in snapshots
	Root string

	// CallerID tags every progress event from this engine
	CallerID string

	Fs           afero.Fs
	Calculator   checksum.Calculator
	Sink         ProgressSink
	Gate         *PauseGate
	Checkpointer Checkpointer
	Logger       logger.Logger
}

// Engine hashes every pending file of a registry.
// One Engine serves one run; it is not reusable after a terminal state.
type Engine struct {
	opts Options
	log  logger.Logger

	mu    sync.Mutex
	state State

	seeded []domain.ChecksumRecord
}

// New creates an engine in the Idle state
func New(opts Options) *Engine {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Calculator == nil {
		opts.Calculator = checksum.NewDefaultCalculator()
	}
	if opts.Gate == nil {
		opts.Gate = NewPauseGate()
	}
	return &Engine{
		opts:  opts,
		log:   logger.OrDefault(opts.Logger).With("component", "engine", "caller", opts.CallerID),
		state: StateIdle,
	}
}

// State returns the current lifecycle state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(to State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == to {
		return
	}
	if !canTransition(e.state, to) {
		e.log.Error("illegal state transition", "from", e.state.String(), "to", to.String())
		return
	}
	e.state = to
}

// Seed carries finished records over from a resumed snapshot.
// They are returned with the results and never recomputed.
func (e *Engine) Seed(records []domain.ChecksumRecord) {
	e.seeded = append(e.seeded, records...)
}

// Discover fills reg from root, moving the engine through Discovering
func (e *Engine) Discover(ctx context.Context, d *discover.Discoverer, reg *registry.Registry) error {
	e.setState(StateDiscovering)
	if err := d.Discover(ctx, e.opts.Root, reg); err != nil {
		if ctx.Err() != nil {
			e.setState(StateCancelled)
			return fmt.Errorf("%w: %v", domain.ErrCancelled, err)
		}
		return err
	}
	e.log.Debug("discovery finished", "files", reg.Len())
	if ds, ok := e.opts.Sink.(DiscoverySink); ok {
		ds.Discovered(e.opts.CallerID, reg.Len())
	}
	return nil
}

// Run hashes every pending path of reg with algo, in registry order.
// On cancellation the records finished so far are returned with ErrCancelled.
func (e *Engine) Run(ctx context.Context, reg *registry.Registry, algo domain.Algorithm) ([]domain.ChecksumRecord, error) {
	if st := e.State(); st.IsTerminal() {
		return nil, fmt.Errorf("engine already %s", st)
	}
	if !algo.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidAlgorithm, algo)
	}

	r := &run{
		e:    e,
		reg:  reg,
		algo: algo,
		done: make(map[string]bool),
	}
	for _, rec := range e.seeded {
		r.add(rec)
	}

	e.setState(StateHashing)

	for _, path := range reg.Pending() {
		if ctx.Err() != nil {
			return r.cancel()
		}
		if e.opts.Gate.IsPaused() {
			if err := r.pause(ctx); err != nil {
				return r.cancel()
			}
		}
		if reg.IsFinished(path) {
			continue
		}

		rec, err := r.hashFile(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return r.cancel()
			}
			e.log.Warn("skipping file", "path", path, "error", err)
			e.fileDone(path, err)
			continue
		}

		reg.MarkFinished(path)
		r.add(rec)
		e.fileDone(path, nil)
	}

	e.setState(StateCompleted)
	e.log.Info("run completed", "files", len(r.results), "pending", len(reg.Pending()))
	return r.results, nil
}

func (e *Engine) fileDone(path string, err error) {
	if e.opts.Sink != nil {
		e.opts.Sink.FileDone(path, err)
	}
}

// run carries the per-Run working set
type run struct {
	e       *Engine
	reg     *registry.Registry
	algo    domain.Algorithm
	results []domain.ChecksumRecord
	done    map[string]bool
}

func (r *run) add(rec domain.ChecksumRecord) {
	if r.done[rec.Path] {
		return
	}
	r.done[rec.Path] = true
	r.results = append(r.results, rec)
}

func (r *run) cancel() ([]domain.ChecksumRecord, error) {
	r.e.setState(StateCancelled)
	r.e.log.Info("run cancelled", "finished", len(r.results))
	return r.results, domain.ErrCancelled
}

func (r *run) hashFile(ctx context.Context, path string) (domain.ChecksumRecord, error) {
	f, err := r.e.opts.Fs.Open(path)
	if err != nil {
		return domain.ChecksumRecord{}, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return domain.ChecksumRecord{}, fmt.Errorf("stat: %w", err)
	}

	class := checksum.ClassifyReader(f)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return domain.ChecksumRecord{}, fmt.Errorf("seek: %w", err)
	}

	obs := &observer{run: r, path: path}
	digest, err := r.e.opts.Calculator.Stream(ctx, f, info.Size(), r.algo, obs)
	if err != nil {
		return domain.ChecksumRecord{}, err
	}
	if digest == "" {
		return domain.ChecksumRecord{}, domain.ErrEmptyDigest
	}

	return domain.ChecksumRecord{Path: path, Class: class, Digest: digest}, nil
}

// pause snapshots the run, blocks until the gate opens and restores the
// snapshot. A failed restore re-closes the gate and waits again.
// When the snapshot could not be saved the run continues from memory.
func (r *run) pause(ctx context.Context) error {
	e := r.e
	e.setState(StatePaused)
	e.log.Info("run paused", "finished", len(r.results))

	cp := e.opts.Checkpointer
	saved := false
	if cp != nil {
		snap := TakeSnapshot(r.reg, r.results, e.opts.Root)
		if err := cp.Pause(snap); err != nil {
			e.log.Error("failed to save snapshot, resuming from memory", "error", err)
		} else {
			saved = true
		}
	}

	for {
		if err := e.opts.Gate.Wait(ctx); err != nil {
			return err
		}
		if !saved {
			break
		}

		snap, err := cp.Resume(e.opts.Root)
		if err == nil {
			err = ApplySnapshot(r.reg, *snap, e.opts.Root)
		}
		if err != nil {
			e.log.Error("resume failed, staying paused", "error", err)
			e.opts.Gate.Pause()
			continue
		}

		for _, rec := range snap.Finished {
			r.add(rec)
		}
		break
	}

	e.setState(StateHashing)
	e.log.Info("run resumed")
	return nil
}

// observer bridges calculator callbacks to the sink and pause gate
type observer struct {
	run  *run
	path string
}

func (o *observer) Progress(percent int) {
	e := o.run.e
	if e.opts.Sink != nil {
		e.opts.Sink.Progress(e.opts.CallerID, o.path, percent)
	}
}

func (o *observer) Checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !o.run.e.opts.Gate.IsPaused() {
		return nil
	}
	return o.run.pause(ctx)
}

// IsCancelled reports whether err stems from a cancelled run
func IsCancelled(err error) bool {
	return errors.Is(err, domain.ErrCancelled) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
