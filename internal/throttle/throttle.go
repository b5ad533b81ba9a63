// Package throttle enforces a minimum spacing between outbound writes to
// the platform.
package throttle

import (
	"context"
	"sync"
	"time"
)

// Limiter serializes acquisitions and guarantees that consecutive grants
// are at least MinInterval apart. The mutex is held across the wait, so
// concurrent callers queue up and are granted one at a time.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	now      func() time.Time
}

func New(interval time.Duration) *Limiter {
	return &Limiter{interval: interval, now: time.Now}
}

// Acquire blocks until at least the configured interval has elapsed since
// the previous successful acquisition, then records the grant time and
// returns. A cancelled context aborts the wait without consuming the slot.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.last.IsZero() {
		if wait := l.interval - l.now().Sub(l.last); wait > 0 {
			timer := time.NewTimer(wait)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	l.last = l.now()
	return nil
}
