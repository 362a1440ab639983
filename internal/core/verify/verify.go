// Package verify re-checks a tree against a saved baseline.
package verify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Ning0612/Sumkeeper/internal/core/discover"
	"github.com/Ning0612/Sumkeeper/internal/core/registry"
	"github.com/Ning0612/Sumkeeper/internal/domain"
	"github.com/Ning0612/Sumkeeper/internal/engine"
	"github.com/Ning0612/Sumkeeper/internal/logger"
)

// ResolveTarget decides which root to verify.
// The target must be the baseline root, or the working directory (which
// stands for the baseline root). A single-file target is accepted only if
// the baseline holds a record for it.
func ResolveTarget(baseline domain.Baseline, target, cwd string) (string, error) {
	root := filepath.Clean(baseline.RootPath)
	if target == "" {
		target = cwd
	}
	target = filepath.Clean(target)

	if target == root || target == filepath.Clean(cwd) {
		return root, nil
	}

	info, err := os.Stat(target)
	if err == nil && !info.IsDir() {
		for _, rec := range baseline.Records {
			if filepath.Clean(rec.Path) == target {
				return target, nil
			}
		}
		return "", fmt.Errorf("%w: %s has no baseline record", domain.ErrUnresolvableTarget, target)
	}

	return "", fmt.Errorf("%w: %s (baseline root %s)", domain.ErrRootMismatch, target, root)
}

// Result is the outcome of one verification
type Result struct {
	Root      string
	Algorithm domain.Algorithm
	Entries   []domain.ClassifiedEntry
	Summary   Summary
}

// Options configures a Verifier
type Options struct {
	Discoverer *discover.Discoverer

	// Engine is the template for the per-run engine; Root is filled in
	Engine engine.Options

	// WorkDir stands in for the baseline root when given as target
	WorkDir string

	Logger logger.Logger
}

// Verifier runs a fresh pass and classifies it against a baseline
type Verifier struct {
	opts Options
	log  logger.Logger
}

// New creates a verifier
func New(opts Options) *Verifier {
	if opts.Discoverer == nil {
		opts.Discoverer = discover.New(discover.Options{Logger: opts.Logger})
	}
	if opts.WorkDir == "" {
		opts.WorkDir, _ = os.Getwd()
	}
	return &Verifier{
		opts: opts,
		log:  logger.OrDefault(opts.Logger).With("component", "verifier"),
	}
}

// Verify hashes target with the baseline's algorithm and classifies the result.
// A cancelled run returns ErrCancelled and no partial classification.
func (v *Verifier) Verify(ctx context.Context, baseline *domain.Baseline, target string) (*Result, error) {
	if baseline == nil {
		return nil, fmt.Errorf("%w: no baseline loaded", domain.ErrBaselineNotFound)
	}

	root, err := ResolveTarget(*baseline, target, v.opts.WorkDir)
	if err != nil {
		return nil, err
	}

	opts := v.opts.Engine
	opts.Root = root
	e := engine.New(opts)

	reg := registry.New()
	if err := e.Discover(ctx, v.opts.Discoverer, reg); err != nil {
		return nil, err
	}

	fresh, err := e.Run(ctx, reg, baseline.Algorithm)
	if err != nil {
		if engine.IsCancelled(err) {
			return nil, domain.ErrCancelled
		}
		return nil, err
	}

	records := baseline.Records
	if root != filepath.Clean(baseline.RootPath) {
		records = recordsFor(records, root)
	}

	entries := Classify(records, fresh)
	summary := Summarize(entries)
	v.log.Info("verification finished",
		"root", root,
		"ok", summary.Ok,
		"modified", summary.Modified,
		"new", summary.New,
		"removed", summary.Removed,
	)

	return &Result{
		Root:      root,
		Algorithm: baseline.Algorithm,
		Entries:   entries,
		Summary:   summary,
	}, nil
}

func recordsFor(records []domain.ChecksumRecord, path string) []domain.ChecksumRecord {
	var out []domain.ChecksumRecord
	for _, rec := range records {
		if filepath.Clean(rec.Path) == path {
			out = append(out, rec)
		}
	}
	return out
}
