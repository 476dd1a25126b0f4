package ratelimit

import (
	"context"
	"sync"
	"time"

	"wosexport/pkg/pacing"
)

// Limiter caps how often exports are started
type Limiter interface {
	// Allow records an event if the cap permits one now
	Allow() bool
	// Wait blocks until an event is permitted or ctx is done
	Wait(ctx context.Context) error
	// Reset forgets recorded events
	Reset()
}

// New returns a sliding window allowing max events per window, or an
// unlimited limiter when max is not positive
func New(max int, window time.Duration) Limiter {
	if max <= 0 || window <= 0 {
		return Unlimited{}
	}
	return NewSlidingWindow(max, window)
}

// Unlimited never blocks
type Unlimited struct{}

func (Unlimited) Allow() bool                    { return true }
func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }
func (Unlimited) Reset()                         {}

// SlidingWindow implements a sliding window rate limiter
type SlidingWindow struct {
	windowSize  time.Duration
	maxRequests int
	requests    []time.Time
	now         func() time.Time
	sleep       pacing.Sleeper
	mu          sync.Mutex
}

// NewSlidingWindow creates a new sliding window rate limiter
func NewSlidingWindow(maxRequests int, windowSize time.Duration) *SlidingWindow {
	return &SlidingWindow{
		windowSize:  windowSize,
		maxRequests: maxRequests,
		requests:    make([]time.Time, 0, maxRequests),
		now:         time.Now,
		sleep:       pacing.Sleep,
	}
}

// WithClock swaps the time source and sleeper, for tests
func (sw *SlidingWindow) WithClock(now func() time.Time, sleep pacing.Sleeper) *SlidingWindow {
	sw.now = now
	sw.sleep = sleep
	return sw
}

// Allow checks if a request can proceed
func (sw *SlidingWindow) Allow() bool {
	_, ok := sw.reserve()
	return ok
}

// reserve records an event when permitted; otherwise it reports how long
// until the oldest event leaves the window
func (sw *SlidingWindow) reserve() (time.Duration, bool) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	sw.cleanOldRequests(now)

	if len(sw.requests) < sw.maxRequests {
		sw.requests = append(sw.requests, now)
		return 0, true
	}
	return sw.requests[0].Add(sw.windowSize).Sub(now), false
}

// Wait blocks until a request is allowed or ctx is done
func (sw *SlidingWindow) Wait(ctx context.Context) error {
	for {
		wait, ok := sw.reserve()
		if ok {
			return nil
		}
		if wait <= 0 {
			wait = 100 * time.Millisecond
		}
		if err := sw.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Reset clears all recorded requests
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.requests = sw.requests[:0]
}

// cleanOldRequests removes requests outside the sliding window
func (sw *SlidingWindow) cleanOldRequests(now time.Time) {
	cutoff := now.Add(-sw.windowSize)

	i := 0
	for i < len(sw.requests) && !sw.requests[i].After(cutoff) {
		i++
	}

	if i > 0 {
		copy(sw.requests, sw.requests[i:])
		sw.requests = sw.requests[:len(sw.requests)-i]
	}
}
