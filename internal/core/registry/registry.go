// Package registry holds the visitation registry: the set of discovered
// file paths, each flagged finished or pending.
package registry

// Registry maps absolute file paths to a finished flag.
// Insertion order is preserved so traversal is deterministic within a run.
// It is owned by a single worker and is not safe for concurrent use.
type Registry struct {
	order    []string
	finished map[string]bool
}

// New creates an empty registry
func New() *Registry {
	return &Registry{finished: make(map[string]bool)}
}

// Add inserts path as pending. Returns false if the path is already present.
func (r *Registry) Add(path string) bool {
	if _, ok := r.finished[path]; ok {
		return false
	}
	r.finished[path] = false
	r.order = append(r.order, path)
	return true
}

// Contains reports whether path has been registered
func (r *Registry) Contains(path string) bool {
	_, ok := r.finished[path]
	return ok
}

// IsFinished reports whether path is registered and finished
func (r *Registry) IsFinished(path string) bool {
	return r.finished[path]
}

// MarkFinished marks path finished, registering it first if needed
func (r *Registry) MarkFinished(path string) {
	r.Add(path)
	r.finished[path] = true
}

// MarkPending marks path pending, registering it first if needed
func (r *Registry) MarkPending(path string) {
	r.Add(path)
	r.finished[path] = false
}

// Pending returns the pending paths in insertion order
func (r *Registry) Pending() []string {
	var out []string
	for _, p := range r.order {
		if !r.finished[p] {
			out = append(out, p)
		}
	}
	return out
}

// Paths returns every registered path in insertion order
func (r *Registry) Paths() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered paths
func (r *Registry) Len() int {
	return len(r.order)
}

// FinishedCount returns the number of finished paths
func (r *Registry) FinishedCount() int {
	n := 0
	for _, done := range r.finished {
		if done {
			n++
		}
	}
	return n
}
