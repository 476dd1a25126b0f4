package pacing

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// Range bounds a randomized pause
//
// Exponent shapes the distribution inside [Min, Max]: a sample is
// Min + (Max-Min)*U^(1/Exponent) for U uniform in [0,1). An exponent of 1
// is uniform; values below 1 crowd samples toward Min and leave a long tail
// toward Max
type Range struct {
	Min      time.Duration `yaml:"min" json:"min"`
	Max      time.Duration `yaml:"max" json:"max"`
	Exponent float64       `yaml:"exponent" json:"exponent"`
}

// Seconds builds a Range from fractional seconds
func Seconds(min, max, exponent float64) Range {
	return Range{
		Min:      time.Duration(min * float64(time.Second)),
		Max:      time.Duration(max * float64(time.Second)),
		Exponent: exponent,
	}
}

// Validate reports whether the range can be sampled
func (r Range) Validate() error {
	if r.Min < 0 {
		return fmt.Errorf("min pause %s is negative", r.Min)
	}
	if r.Max < r.Min {
		return fmt.Errorf("max pause %s is below min pause %s", r.Max, r.Min)
	}
	if r.Exponent <= 0 || math.IsNaN(r.Exponent) || math.IsInf(r.Exponent, 0) {
		return fmt.Errorf("exponent %v must be a positive number", r.Exponent)
	}
	return nil
}

// String renders the range for logs
func (r Range) String() string {
	return fmt.Sprintf("%s..%s^%g", r.Min, r.Max, r.Exponent)
}

// Sleeper blocks for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Pacer draws pause lengths and sleeps through them. It is safe for
// concurrent use
type Pacer struct {
	mu    sync.Mutex
	rng   *rand.Rand
	sleep Sleeper
	scale float64
}

// Option configures a Pacer
type Option func(*Pacer)

// WithSeed makes the sample sequence reproducible
func WithSeed(seed uint64) Option {
	return func(p *Pacer) {
		p.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithSleeper replaces the real clock, mostly for tests
func WithSleeper(s Sleeper) Option {
	return func(p *Pacer) {
		p.sleep = s
	}
}

// WithScale multiplies every sampled pause. A scale of 0 disables waiting
func WithScale(scale float64) Option {
	return func(p *Pacer) {
		if scale >= 0 {
			p.scale = scale
		}
	}
}

// New creates a Pacer seeded from the runtime source
func New(opts ...Option) *Pacer {
	p := &Pacer{
		rng:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		sleep: Sleep,
		scale: 1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Instant returns a Pacer that never sleeps
func Instant() *Pacer {
	return New(WithSeed(1), WithSleeper(func(ctx context.Context, _ time.Duration) error {
		return ctx.Err()
	}))
}

// Sample draws a pause length from r. Invalid ranges collapse to Min
func (p *Pacer) Sample(r Range) time.Duration {
	if r.Validate() != nil || r.Max == r.Min {
		return p.scaled(r.Min)
	}

	u := p.Float64()
	shaped := math.Pow(u, 1/r.Exponent)
	span := float64(r.Max - r.Min)
	return p.scaled(r.Min + time.Duration(shaped*span))
}

// Pause sleeps for a sample of r
func (p *Pacer) Pause(ctx context.Context, r Range) error {
	return p.sleep(ctx, p.Sample(r))
}

// Wait sleeps for exactly d, honoring ctx
func (p *Pacer) Wait(ctx context.Context, d time.Duration) error {
	return p.sleep(ctx, d)
}

// Float64 returns a uniform value in [0,1)
func (p *Pacer) Float64() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64()
}

// Between returns a uniform value in [lo,hi)
func (p *Pacer) Between(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + p.Float64()*(hi-lo)
}

// IntN returns a uniform int in [0,n). n must be positive
func (p *Pacer) IntN(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.IntN(n)
}

func (p *Pacer) scaled(d time.Duration) time.Duration {
	if p.scale == 1 {
		return d
	}
	return time.Duration(float64(d) * p.scale)
}
