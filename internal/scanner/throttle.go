package scanner

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttler spaces out probe dispatches. With a base delay of d, consecutive
// dispatches are at least d apart; the first one is immediate. When adaptive
// mode is on and 429/503 responses or repeated errors show up, the spacing
// doubles (floor 500ms, cap 30s) and is halved back toward the base once
// responses are healthy again.
type Throttler struct {
	limiter *rate.Limiter

	mu           sync.Mutex
	baseDelay    time.Duration
	currentDelay time.Duration
	maxDelay     time.Duration
	consecutive  int // consecutive throttle signals
	adaptive     bool
	quiet        bool
}

// NewThrottler creates a dispatch throttler.
func NewThrottler(baseDelay time.Duration, adaptive, quiet bool) *Throttler {
	if baseDelay < 0 {
		baseDelay = 0
	}
	return &Throttler{
		limiter:      rate.NewLimiter(limitFor(baseDelay), 1),
		baseDelay:    baseDelay,
		currentDelay: baseDelay,
		maxDelay:     30 * time.Second,
		adaptive:     adaptive,
		quiet:        quiet,
	}
}

func limitFor(d time.Duration) rate.Limit {
	if d <= 0 {
		return rate.Inf
	}
	return rate.Every(d)
}

// Wait blocks until the next dispatch is allowed or ctx is done.
func (t *Throttler) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}

// Delay returns the current spacing between dispatches.
func (t *Throttler) Delay() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentDelay
}

// RecordStatus updates the throttler based on a response status code.
func (t *Throttler) RecordStatus(statusCode int) {
	if !t.adaptive {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if statusCode == http.StatusTooManyRequests || statusCode == http.StatusServiceUnavailable {
		t.consecutive++
		if t.backOff() && !t.quiet {
			fmt.Fprintf(os.Stderr, "\n[!] Rate limited (HTTP %d), backing off to %s between probes\n", statusCode, t.currentDelay)
		}
		return
	}

	if t.consecutive > 0 {
		t.consecutive = 0
		// Gradually recover: halve delay toward base, but not below base.
		newDelay := t.currentDelay / 2
		if newDelay < t.baseDelay {
			newDelay = t.baseDelay
		}
		if newDelay != t.currentDelay {
			t.setDelay(newDelay)
			if !t.quiet && t.currentDelay > t.baseDelay {
				fmt.Fprintf(os.Stderr, "\n[+] Recovering, delay now %s between probes\n", t.currentDelay)
			}
		}
	}
}

// RecordError flags a transport error (timeout, reset) as a possible
// rate limit signal. Three in a row trigger a back-off.
func (t *Throttler) RecordError() {
	if !t.adaptive {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.consecutive++
	if t.consecutive >= 3 && t.backOff() && !t.quiet {
		fmt.Fprintf(os.Stderr, "\n[!] Multiple errors, backing off to %s between probes\n", t.currentDelay)
	}
}

// backOff doubles the delay. Caller holds t.mu. Reports whether it changed.
func (t *Throttler) backOff() bool {
	newDelay := t.currentDelay * 2
	if newDelay < 500*time.Millisecond {
		newDelay = 500 * time.Millisecond
	}
	if newDelay > t.maxDelay {
		newDelay = t.maxDelay
	}
	if newDelay == t.currentDelay {
		return false
	}
	t.setDelay(newDelay)
	return true
}

func (t *Throttler) setDelay(d time.Duration) {
	t.currentDelay = d
	t.limiter.SetLimit(limitFor(d))
}
