package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/Ning0612/Sumkeeper/internal/domain"
	"github.com/Ning0612/Sumkeeper/internal/logger"
)

// BaselineFile is the default baseline name in the working directory
const BaselineFile = "checksum.dat"

// DefaultBaselinePath returns <cwd>/checksum.dat
func DefaultBaselinePath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return BaselineFile
	}
	return filepath.Join(cwd, BaselineFile)
}

// BaselineStore reads and writes baseline files
type BaselineStore struct {
	fs    afero.Fs
	path  string
	codec Codec
	log   logger.Logger
}

// NewBaselineStore creates a store writing to path (default location if empty)
func NewBaselineStore(fs afero.Fs, path string, codec Codec) *BaselineStore {
	if path == "" {
		path = DefaultBaselinePath()
	}
	return &BaselineStore{
		fs:    fs,
		path:  path,
		codec: codec,
		log:   logger.Get().With("component", "baseline-store"),
	}
}

// Path returns the default save location
func (s *BaselineStore) Path() string {
	return s.path
}

// Save writes a baseline for a completed run
func (s *BaselineStore) Save(root string, algo domain.Algorithm, records []domain.ChecksumRecord) error {
	if records == nil {
		records = []domain.ChecksumRecord{}
	}
	data, err := s.codec.Marshal(domain.Baseline{
		Algorithm: algo,
		RootPath:  root,
		Records:   records,
	})
	if err != nil {
		return fmt.Errorf("encode baseline: %w", err)
	}
	if err := writeAtomic(s.fs, s.path, data); err != nil {
		return fmt.Errorf("write baseline: %w", err)
	}
	s.log.Info("baseline saved", "path", s.path, "records", len(records))
	return nil
}

// Load reads the baseline at path (the store's path if empty).
// Malformed content yields ErrBaselineCorrupt, never a panic.
func (s *BaselineStore) Load(path string) (b *domain.Baseline, err error) {
	if path == "" {
		path = s.path
	}

	defer func() {
		if r := recover(); r != nil {
			b, err = nil, fmt.Errorf("%w: %v", domain.ErrBaselineCorrupt, r)
		}
	}()

	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrBaselineNotFound, path)
		}
		return nil, fmt.Errorf("read baseline: %w", err)
	}

	var baseline domain.Baseline
	if err := s.codec.Unmarshal(data, &baseline); err != nil {
		s.log.Warn("baseline corrupt", "path", path, "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrBaselineCorrupt, err)
	}
	if !baseline.Algorithm.IsValid() {
		return nil, fmt.Errorf("%w: unknown algorithm %q", domain.ErrBaselineCorrupt, baseline.Algorithm)
	}
	return &baseline, nil
}
