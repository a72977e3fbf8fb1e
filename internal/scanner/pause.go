package scanner

import (
	"context"
	"sync"
	"time"
)

// Pauser is a pause/resume gate for worker goroutines. While paused, Wait
// blocks until Toggle resumes the scan or the context is done.
type Pauser struct {
	mu          sync.Mutex
	resume      chan struct{} // non-nil while paused; closed on resume
	pausedSince time.Time
	totalPaused time.Duration
}

// NewPauser creates a Pauser in the running state.
func NewPauser() *Pauser {
	return &Pauser{}
}

// Wait blocks while the scan is paused. It returns ctx.Err() if the context
// ends first, nil otherwise.
func (p *Pauser) Wait(ctx context.Context) error {
	p.mu.Lock()
	gate := p.resume
	p.mu.Unlock()
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Toggle flips between paused and running. Returns true if now paused.
func (p *Pauser) Toggle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resume != nil {
		p.totalPaused += time.Since(p.pausedSince)
		close(p.resume)
		p.resume = nil
		return false
	}
	p.resume = make(chan struct{})
	p.pausedSince = time.Now()
	return true
}

// IsPaused returns whether the scan is currently paused.
func (p *Pauser) IsPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resume != nil
}

// PausedDuration returns the total time spent paused, including any
// ongoing pause.
func (p *Pauser) PausedDuration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	d := p.totalPaused
	if p.resume != nil {
		d += time.Since(p.pausedSince)
	}
	return d
}
