// Package discover walks a root path and registers every file to checksum.
//
// Symbolic links and shell shortcuts are followed once. Directories already
// entered (by their resolved path) are never entered again, so a link back to
// an ancestor terminates instead of recursing forever.
package discover

import (
	"context"
	"os"
	"path/filepath"

	"github.com/Ning0612/Sumkeeper/internal/core/registry"
	"github.com/Ning0612/Sumkeeper/internal/logger"
)

// Kind is the outcome of resolving a path
type Kind int

const (
	// Unresolved: the link could not be followed, treat the path itself as a file
	Unresolved Kind = iota
	// File: Path is a regular file
	File
	// Directory: Path is a directory to descend into
	Directory
)

func (k Kind) String() string {
	switch k {
	case File:
		return "file"
	case Directory:
		return "directory"
	default:
		return "unresolved"
	}
}

// Target is a resolved path with its kind
type Target struct {
	Kind Kind
	Path string
}

// Options configures discovery
type Options struct {
	// Exclude holds glob patterns matched against base names
	Exclude []string

	Logger logger.Logger
}

// Discoverer enumerates files under a root into a registry
type Discoverer struct {
	exclude []string
	log     logger.Logger
}

// New creates a discoverer
func New(opts Options) *Discoverer {
	return &Discoverer{
		exclude: opts.Exclude,
		log:     logger.OrDefault(opts.Logger),
	}
}

// Discover registers every file reachable from root as pending in reg.
// Files of a directory are registered before its subdirectories are walked,
// each group in lexical order.
func (d *Discoverer) Discover(ctx context.Context, root string, reg *registry.Registry) error {
	root = filepath.Clean(root)
	t := d.Resolve(root)

	if t.Kind != Directory {
		reg.Add(t.Path)
		return nil
	}

	w := &walker{d: d, reg: reg, entered: make(map[string]bool)}
	return w.walk(ctx, t.Path)
}

// Resolve follows a symlink or shortcut at path one time
func (d *Discoverer) Resolve(path string) Target {
	info, err := os.Lstat(path)
	if err != nil {
		return Target{Kind: Unresolved, Path: path}
	}

	if info.Mode()&os.ModeSymlink != 0 {
		resolved, err := filepath.EvalSymlinks(path)
		if err != nil {
			d.log.Debug("symlink not resolvable, treating as file", "path", path, "error", err)
			return Target{Kind: Unresolved, Path: path}
		}
		return statTarget(resolved, path)
	}

	if info.IsDir() {
		return Target{Kind: Directory, Path: path}
	}

	if IsShortcut(path) {
		target, err := ReadShortcut(path)
		if err != nil || target == "" {
			d.log.Debug("shortcut not resolvable, treating as file", "path", path, "error", err)
			return Target{Kind: Unresolved, Path: path}
		}
		return statTarget(target, path)
	}

	return Target{Kind: File, Path: path}
}

func statTarget(resolved, original string) Target {
	info, err := os.Stat(resolved)
	if err != nil {
		return Target{Kind: Unresolved, Path: original}
	}
	if info.IsDir() {
		return Target{Kind: Directory, Path: resolved}
	}
	return Target{Kind: File, Path: resolved}
}

func (d *Discoverer) excluded(name string) bool {
	for _, pattern := range d.exclude {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

type walker struct {
	d       *Discoverer
	reg     *registry.Registry
	entered map[string]bool
}

func (w *walker) walk(ctx context.Context, dir string) error {
	key := dir
	if real, err := filepath.EvalSymlinks(dir); err == nil {
		key = real
	}
	if w.entered[key] {
		w.d.log.Debug("directory already visited", "path", dir)
		return nil
	}
	w.entered[key] = true

	entries, err := os.ReadDir(dir)
	if err != nil {
		w.d.log.Warn("cannot read directory, skipping", "path", dir, "error", err)
		return nil
	}

	var subdirs []string
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if w.d.excluded(entry.Name()) {
			continue
		}

		t := w.d.Resolve(filepath.Join(dir, entry.Name()))
		if t.Kind == Directory {
			subdirs = append(subdirs, t.Path)
			continue
		}
		w.reg.Add(t.Path)
	}

	for _, sub := range subdirs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.walk(ctx, sub); err != nil {
			return err
		}
	}
	return nil
}
