package checksum

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/Ning0612/Sumkeeper/internal/domain"
)

// DefaultBufferSize is the chunk size fed to the hash per read
const DefaultBufferSize = 8 * 1024

// Options configures the checksum calculator
type Options struct {
	// MaxSize: files larger than this will not be checksummed (0 = unlimited)
	MaxSize int64

	// BufferSize: size of buffer for streaming reads
	// Default: 8KB
	BufferSize int
}

// DefaultOptions returns the recommended default options
func DefaultOptions() Options {
	return Options{
		MaxSize:    0,
		BufferSize: DefaultBufferSize,
	}
}

// Observer receives per-chunk callbacks while a stream is hashed
type Observer interface {
	// Progress is called with the new percentage whenever it changes
	Progress(percent int)

	// Checkpoint is called at every chunk boundary. A non-nil error aborts
	// the stream and is returned from Stream unchanged.
	Checkpoint(ctx context.Context) error
}

// Calculator computes file checksums
type Calculator interface {
	// Calculate computes checksum from an io.Reader
	Calculate(ctx context.Context, reader io.Reader, algo domain.Algorithm) (string, error)

	// Stream computes checksum from an io.Reader of known size, reporting
	// progress and checkpoints to obs (which may be nil)
	Stream(ctx context.Context, reader io.Reader, size int64, algo domain.Algorithm, obs Observer) (string, error)
}

// DefaultCalculator implements Calculator with streaming support
type DefaultCalculator struct {
	opts Options
}

// NewCalculator creates a new calculator with the given options
func NewCalculator(opts Options) *DefaultCalculator {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	return &DefaultCalculator{opts: opts}
}

// NewDefaultCalculator creates a calculator with default options
func NewDefaultCalculator() *DefaultCalculator {
	return NewCalculator(DefaultOptions())
}

// NewHash resolves an algorithm id to its hash implementation
func NewHash(algo domain.Algorithm) (hash.Hash, error) {
	switch algo {
	case domain.MD5:
		return md5.New(), nil
	case domain.SHA1:
		return sha1.New(), nil
	case domain.SHA256:
		return sha256.New(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported algorithm: %s", domain.ErrInvalidAlgorithm, algo)
	}
}

// Calculate implements the Calculator interface
func (c *DefaultCalculator) Calculate(ctx context.Context, reader io.Reader, algo domain.Algorithm) (string, error) {
	return c.Stream(ctx, reader, 0, algo, nil)
}

// Stream implements the Calculator interface.
// Progress is floor(read*100/size), clamped to 100, reported only when it
// changes so the sequence for one stream is strictly increasing.
func (c *DefaultCalculator) Stream(ctx context.Context, reader io.Reader, size int64, algo domain.Algorithm, obs Observer) (string, error) {
	h, err := NewHash(algo)
	if err != nil {
		return "", err
	}

	var limitedReader io.Reader = reader
	if c.opts.MaxSize > 0 {
		limitedReader = io.LimitReader(reader, c.opts.MaxSize+1)
	}

	buffer := make([]byte, c.opts.BufferSize)
	totalBytes := int64(0)
	lastPercent := -1

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		n, readErr := limitedReader.Read(buffer)
		if n > 0 {
			totalBytes += int64(n)

			if c.opts.MaxSize > 0 && totalBytes > c.opts.MaxSize {
				return "", fmt.Errorf("%w (%d bytes)", domain.ErrFileTooLarge, c.opts.MaxSize)
			}

			if _, hashErr := h.Write(buffer[:n]); hashErr != nil {
				return "", fmt.Errorf("hash write error: %w", hashErr)
			}

			if obs != nil && size > 0 {
				if p := percentOf(totalBytes, size); p > lastPercent {
					obs.Progress(p)
					lastPercent = p
				}
			}
		}

		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", fmt.Errorf("read error: %w", readErr)
		}

		if obs != nil {
			if err := obs.Checkpoint(ctx); err != nil {
				return "", err
			}
		}
	}

	// Empty (or unsized) streams still complete at 100%
	if obs != nil && lastPercent < 100 && size <= 0 {
		obs.Progress(100)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func percentOf(read, size int64) int {
	if size <= 0 {
		return 100
	}
	p := read * 100 / size
	if p > 100 {
		p = 100
	}
	return int(p)
}
