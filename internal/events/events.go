// Package events is the publish/subscribe hub that decouples the checksum
// engine from console concerns (pause toggling, exit requests, progress,
// completion). It carries no business logic.
package events

// Topic names used across the application
const (
	TopicPause         = "pause"
	TopicExit          = "exit"
	TopicProgress      = "progressUpdate"
	TopicRunComplete   = "runComplete"
	TopicFileProcessed = "fileProcessed"
	TopicFileFailed    = "fileFailed"
	TopicDiscovered    = "discoveryComplete"
)

// Event is any payload delivered to listeners
type Event interface{}

// Empty is a payload-less event (pause, exit)
type Empty struct{}

// Progress reports hashing progress of the current file
type Progress struct {
	CallerID string
	Path     string
	Percent  int
}

// Discovered reports how many files a run will hash
type Discovered struct {
	CallerID string
	Files    int
}

// FileEvent reports a finished or failed file
type FileEvent struct {
	Path string
	Err  error
}

// Completion is published exactly once per run, after persistence finished
type Completion struct {
	RunID  string
	Mode   string
	Status string

	// Output is the file written by the run (baseline or snapshot), if any
	Output string
}

// Listener is a named handler bound to a topic
type Listener struct {
	ID     string
	Handle func(Event)
}
