package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter paces successive downloads
type Limiter interface {
	// Wait blocks until the next request may start or ctx is done
	Wait(ctx context.Context) error
	// Stats reports how many times Wait paused and for how long in total
	Stats() (waits int, waited time.Duration)
}

// Throttle enforces a fixed pause after each completed download.
// A zero delay never blocks.
type Throttle struct {
	delay time.Duration

	mu     sync.Mutex
	waits  int
	waited time.Duration
}

// NewThrottle creates a throttle that pauses for delay on every Wait
func NewThrottle(delay time.Duration) *Throttle {
	if delay < 0 {
		delay = 0
	}
	return &Throttle{delay: delay}
}

// Wait sleeps for the configured delay, returning early with ctx.Err()
// if ctx is cancelled first.
func (t *Throttle) Wait(ctx context.Context) error {
	if t.delay == 0 {
		return ctx.Err()
	}

	start := time.Now()
	timer := time.NewTimer(t.delay)
	defer timer.Stop()

	var err error
	select {
	case <-timer.C:
	case <-ctx.Done():
		err = ctx.Err()
	}

	t.mu.Lock()
	t.waits++
	t.waited += time.Since(start)
	t.mu.Unlock()

	return err
}

// Stats reports how many times Wait paused and for how long in total
func (t *Throttle) Stats() (waits int, waited time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.waits, t.waited
}
