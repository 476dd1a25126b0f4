// Package pacing produces the randomized pauses that keep browser automation
// at a human tempo.
//
// Pauses are drawn from a power-law shaped distribution bounded by a Range.
// Most samples land near the lower bound while an occasional one stretches
// toward the upper bound, which is closer to how a person hesitates than a
// flat uniform delay.
//
//	p := pacing.New()
//	if err := p.Pause(ctx, pacing.Seconds(1.618, 5.42, 0.2)); err != nil {
//	    return err // context cancelled
//	}
//
// Tests inject a Sleeper (or use Instant) so nothing actually waits.
package pacing
