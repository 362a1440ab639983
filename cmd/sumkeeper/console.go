package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
	"unicode"

	"github.com/Ning0612/Sumkeeper/internal/events"
	"github.com/Ning0612/Sumkeeper/internal/progress"
)

const (
	barWidth         = 30
	progressInterval = 100 * time.Millisecond

	consoleListenerID = "console"
)

// console renders run progress and turns keys and signals into bus events
type console struct {
	bus     *events.Bus
	out     io.Writer
	tracker *progress.Tracker

	mu      sync.Mutex
	current string

	completed chan events.Completion
}

func newConsole(bus *events.Bus, out io.Writer) *console {
	c := &console{
		bus:       bus,
		out:       out,
		completed: make(chan events.Completion, 1),
	}
	c.tracker = progress.NewTracker(c.render, progressInterval)
	return c
}

// attach binds the console to the bus
func (c *console) attach() {
	c.bus.Bind(events.TopicProgress, events.Listener{
		ID: consoleListenerID,
		Handle: func(e events.Event) {
			if p, ok := e.(events.Progress); ok {
				c.tracker.Progress(p.CallerID, p.Path, p.Percent)
			}
		},
	})
	c.bus.Bind(events.TopicDiscovered, events.Listener{
		ID: consoleListenerID,
		Handle: func(e events.Event) {
			if d, ok := e.(events.Discovered); ok {
				c.tracker.SetTotal(d.Files)
			}
		},
	})
	c.bus.Bind(events.TopicFileProcessed, events.Listener{
		ID: consoleListenerID,
		Handle: func(e events.Event) {
			if f, ok := e.(events.FileEvent); ok {
				c.tracker.FileDone(f.Path, nil)
			}
		},
	})
	c.bus.Bind(events.TopicFileFailed, events.Listener{
		ID: consoleListenerID,
		Handle: func(e events.Event) {
			if f, ok := e.(events.FileEvent); ok {
				c.tracker.FileDone(f.Path, f.Err)
			}
		},
	})
	c.bus.Bind(events.TopicRunComplete, events.Listener{
		ID: consoleListenerID,
		Handle: func(e events.Event) {
			if done, ok := e.(events.Completion); ok {
				select {
				case c.completed <- done:
				default:
				}
			}
		},
	})
}

// detach unbinds every console listener
func (c *console) detach() {
	for _, topic := range []string{events.TopicDiscovered, events.TopicProgress, events.TopicFileProcessed, events.TopicFileFailed, events.TopicRunComplete} {
		c.bus.Unbind(topic, consoleListenerID)
	}
}

// render prints one tracker update
func (c *console) render(u progress.Update) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if u.CurrentFile != c.current {
		c.current = u.CurrentFile
		fmt.Fprintf(c.out, "Processing: %s\n", u.CurrentFile)
	}

	switch u.Type {
	case progress.UpdateProgress:
		fmt.Fprintf(c.out, "\r  %s", progress.FormatProgress(u.Percent, barWidth))
	case progress.UpdateComplete:
		fmt.Fprintf(c.out, "\r  %s OK%s\n", progress.FormatProgress(100, barWidth), fileCount(u))
	case progress.UpdateError:
		fmt.Fprintf(c.out, "\r  Error: %v%s\n", u.Error, fileCount(u))
	}
}

// fileCount renders " (done/total)" once the total is known
func fileCount(u progress.Update) string {
	if u.FilesTotal <= 0 {
		return ""
	}
	return fmt.Sprintf(" (%d/%d)", u.FilesCompleted+u.FilesFailed, u.FilesTotal)
}

// waitComplete returns the runComplete event, or false after timeout
func (c *console) waitComplete(timeout time.Duration) (events.Completion, bool) {
	select {
	case done := <-c.completed:
		return done, true
	case <-time.After(timeout):
		return events.Completion{}, false
	}
}

// watchKeys reads in until EOF: 'p' publishes pause, 'q' publishes exit
func (c *console) watchKeys(in io.Reader) {
	r := bufio.NewReader(in)
	for {
		ch, _, err := r.ReadRune()
		if err != nil {
			return
		}
		switch unicode.ToLower(ch) {
		case 'p':
			c.bus.Publish(events.TopicPause, events.Empty{})
		case 'q':
			c.bus.Publish(events.TopicExit, events.Empty{})
			return
		}
	}
}

// watchSignals publishes exit on SIGINT or SIGTERM until stop is called
func (c *console) watchSignals() (stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	quit := make(chan struct{})

	go func() {
		for {
			select {
			case <-sigCh:
				fmt.Fprintln(c.out, "\nStopping...")
				c.bus.Publish(events.TopicExit, events.Empty{})
			case <-quit:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(quit)
	}
}

// start attaches the console and begins watching stdin and signals
func (c *console) start() (stop func()) {
	c.attach()
	go c.watchKeys(os.Stdin)
	stopSignals := c.watchSignals()
	return func() {
		stopSignals()
		c.detach()
	}
}
