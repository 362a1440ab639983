package events

import (
	"fmt"
	"sync"

	"github.com/Ning0612/Sumkeeper/internal/logger"
)

// Bus dispatches events to listeners. Construct one per process (or per
// test) and share it by reference.
type Bus struct {
	mu        sync.RWMutex
	listeners map[string][]Listener
	log       logger.Logger
}

// NewBus creates an empty bus. log may be nil.
func NewBus(log logger.Logger) *Bus {
	return &Bus{
		listeners: make(map[string][]Listener),
		log:       logger.OrDefault(log),
	}
}

// Bind registers a listener under topic.
// Binding an ID that is already present under the topic is a no-op and
// returns false, so re-binding is always safe.
func (b *Bus) Bind(topic string, l Listener) bool {
	if topic == "" || l.ID == "" || l.Handle == nil {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, existing := range b.listeners[topic] {
		if existing.ID == l.ID {
			return false
		}
	}
	b.listeners[topic] = append(b.listeners[topic], l)
	return true
}

// Unbind removes the listener with id from topic
func (b *Bus) Unbind(topic, id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.listeners[topic]
	for i, l := range list {
		if l.ID == id {
			b.listeners[topic] = append(list[:i:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// Count returns the number of listeners bound to topic
func (b *Bus) Count(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[topic])
}

// Publish invokes every listener of topic in registration order on the
// calling goroutine. A panicking listener is logged and skipped.
func (b *Bus) Publish(topic string, e Event) {
	for _, l := range b.snapshot(topic) {
		b.invoke(topic, l, e)
	}
}

// snapshot copies the listener slice so handlers may bind/unbind while
// being invoked without deadlocking
func (b *Bus) snapshot(topic string) []Listener {
	if topic == "" {
		return nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	list := b.listeners[topic]
	if len(list) == 0 {
		return nil
	}
	out := make([]Listener, len(list))
	copy(out, list)
	return out
}

func (b *Bus) invoke(topic string, l Listener, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event listener panicked",
				"topic", topic,
				"listener", l.ID,
				"panic", fmt.Sprint(r),
			)
		}
	}()
	l.Handle(e)
}

// BusSink publishes engine progress on the bus
type BusSink struct {
	Bus *Bus
}

// Progress implements engine.ProgressSink
func (s BusSink) Progress(callerID, path string, percent int) {
	s.Bus.Publish(TopicProgress, Progress{CallerID: callerID, Path: path, Percent: percent})
}

// FileDone implements engine.FileObserver
func (s BusSink) FileDone(path string, err error) {
	if err != nil {
		s.Bus.Publish(TopicFileFailed, FileEvent{Path: path, Err: err})
		return
	}
	s.Bus.Publish(TopicFileProcessed, FileEvent{Path: path})
}

// Discovered implements engine.DiscoverySink
func (s BusSink) Discovered(callerID string, files int) {
	s.Bus.Publish(TopicDiscovered, Discovered{CallerID: callerID, Files: files})
}
