package engine

import (
	"context"
	"sync"
)

// PauseGate is the pause toggle shared between the controller and the engine.
// The engine polls IsPaused at chunk and file boundaries and blocks in Wait.
type PauseGate struct {
	mu     sync.Mutex
	paused bool
	resume chan struct{}
}

// NewPauseGate creates an open (not paused) gate
func NewPauseGate() *PauseGate {
	return &PauseGate{}
}

// Toggle flips the gate and returns the new paused state
func (g *PauseGate) Toggle() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused {
		g.openLocked()
	} else {
		g.closeLocked()
	}
	return g.paused
}

// Pause closes the gate; no-op if already paused
func (g *PauseGate) Pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.paused {
		g.closeLocked()
	}
}

// Unpause opens the gate; no-op if not paused
func (g *PauseGate) Unpause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused {
		g.openLocked()
	}
}

// IsPaused reports the current toggle state
func (g *PauseGate) IsPaused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// Wait blocks while the gate is paused. Returns ctx.Err() if ctx ends first.
func (g *PauseGate) Wait(ctx context.Context) error {
	g.mu.Lock()
	if !g.paused {
		g.mu.Unlock()
		return nil
	}
	ch := g.resume
	g.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *PauseGate) closeLocked() {
	g.paused = true
	g.resume = make(chan struct{})
}

func (g *PauseGate) openLocked() {
	g.paused = false
	close(g.resume)
}
