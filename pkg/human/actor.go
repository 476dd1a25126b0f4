// Package human performs browser interactions at a human pace.
//
// Every gesture is a sequence of Driver calls separated by pauses drawn from
// the configured pacing ranges: typing goes one character at a time,
// clearing a field is hover, double-click, Delete, and clicks rest on the
// target before pressing.
package human

import (
	"context"
	"fmt"
	"time"

	"wosexport/pkg/browser"
	"wosexport/pkg/config"
	errs "wosexport/pkg/errors"
	"wosexport/pkg/logger"
	"wosexport/pkg/pacing"
	"wosexport/pkg/retry"
)

// DefaultHoverRatio offsets the pointer halfway from an element's centre
// toward its corner
const DefaultHoverRatio = 0.5

// Direction is a scroll direction
type Direction int

const (
	Down Direction = iota
	Up
)

// Actor drives a browser the way an operator would
type Actor struct {
	driver  browser.Driver
	pacer   *pacing.Pacer
	pacing  config.PacingConfig
	timeout time.Duration
	logger  logger.Logger
}

// New creates an Actor. timeout bounds every element lookup
func New(d browser.Driver, p *pacing.Pacer, ranges config.PacingConfig, timeout time.Duration, log logger.Logger) *Actor {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Actor{driver: d, pacer: p, pacing: ranges, timeout: timeout, logger: log}
}

// Driver returns the underlying browser
func (a *Actor) Driver() browser.Driver {
	return a.driver
}

// Pacer returns the pause source
func (a *Actor) Pacer() *pacing.Pacer {
	return a.pacer
}

// Pacing returns the configured pause ranges
func (a *Actor) Pacing() config.PacingConfig {
	return a.pacing
}

// Timeout is the element lookup timeout
func (a *Actor) Timeout() time.Duration {
	return a.timeout
}

// Think pauses between two unrelated interactions
func (a *Actor) Think(ctx context.Context) error {
	return a.pacer.Pause(ctx, a.pacing.Think)
}

// Settle pauses after the page changed under us
func (a *Actor) Settle(ctx context.Context) error {
	return a.pacer.Pause(ctx, a.pacing.Settle)
}

// Type enters text one character at a time
func (a *Actor) Type(ctx context.Context, xpath, text string) error {
	for _, r := range text {
		if err := a.driver.SendKeys(ctx, xpath, string(r)); err != nil {
			return err
		}
		if err := a.pacer.Pause(ctx, a.pacing.Keystroke); err != nil {
			return err
		}
	}
	return nil
}

// Clear empties an input: hover, pause, double-click to select, pause,
// Delete
func (a *Actor) Clear(ctx context.Context, xpath string) error {
	if err := a.driver.WaitVisible(ctx, xpath, a.timeout); err != nil {
		return err
	}
	if err := a.driver.Hover(ctx, xpath, 0, a.timeout); err != nil {
		return err
	}
	if err := a.pacer.Pause(ctx, a.pacing.Clear); err != nil {
		return err
	}
	if err := a.driver.DoubleClick(ctx, xpath, a.timeout); err != nil {
		return err
	}
	if err := a.pacer.Pause(ctx, a.pacing.Clear); err != nil {
		return err
	}
	return a.driver.PressKey(ctx, browser.KeyDelete)
}

// Replace clears xpath, types value and checks the field took it
func (a *Actor) Replace(ctx context.Context, xpath, value string) error {
	if err := a.Clear(ctx, xpath); err != nil {
		return err
	}
	if err := a.Type(ctx, xpath, value); err != nil {
		return err
	}
	return a.VerifyValue(ctx, xpath, value)
}

// Scroll presses the arrow key for dir presses times
func (a *Actor) Scroll(ctx context.Context, dir Direction, presses int) error {
	key := browser.KeyArrowDown
	if dir == Up {
		key = browser.KeyArrowUp
	}
	for i := 0; i < presses; i++ {
		if err := a.driver.PressKey(ctx, key); err != nil {
			return err
		}
		if err := a.pacer.Pause(ctx, a.pacing.Scroll); err != nil {
			return err
		}
	}
	return nil
}

// Wander scrolls a few presses in a random direction
func (a *Actor) Wander(ctx context.Context, presses int) error {
	dir := Down
	if a.pacer.IntN(2) == 1 {
		dir = Up
	}
	return a.Scroll(ctx, dir, presses)
}

// ScrollToTop presses Home
func (a *Actor) ScrollToTop(ctx context.Context) error {
	return a.driver.PressKey(ctx, browser.KeyHome)
}

// ClickOptions tunes HoverPauseClick
type ClickOptions struct {
	// NoClick stops after the hover pause
	NoClick bool
	// Ratio offsets the pointer from the element centre; zero means
	// DefaultHoverRatio
	Ratio float64
	// Pause overrides the hover pause range
	Pause *pacing.Range
	// Timeout overrides the element lookup timeout
	Timeout time.Duration
	// Retries is how many extra attempts follow a failure
	Retries int
	// OnRetry runs between attempts, typically to dismiss overlays
	OnRetry func(ctx context.Context) error
}

// HoverPauseClick rests the pointer on xpath for a hover pause and then
// clicks it, retrying the whole gesture on failure
func (a *Actor) HoverPauseClick(ctx context.Context, xpath string, opts ClickOptions) error {
	ratio := opts.Ratio
	if ratio == 0 {
		ratio = DefaultHoverRatio
	}
	pause := a.pacing.Hover
	if opts.Pause != nil {
		pause = *opts.Pause
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = a.timeout
	}

	cfg := &retry.Config{
		MaxAttempts: opts.Retries + 1,
		Backoff:     &retry.ConstantBackoff{},
		Sleep:       a.pacer.Wait,
		Logger:      a.logger,
		Name:        "hover_click",
	}
	if opts.OnRetry != nil {
		cfg.OnRetry = func(ctx context.Context, _ int, _ error) error {
			return opts.OnRetry(ctx)
		}
	}

	attempts, err := retry.Do(ctx, cfg, func(ctx context.Context, _ int) error {
		if err := a.driver.Hover(ctx, xpath, ratio, timeout); err != nil {
			return err
		}
		if err := a.pacer.Pause(ctx, pause); err != nil {
			return err
		}
		if opts.NoClick {
			return nil
		}
		return a.driver.Click(ctx, xpath, timeout)
	})
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return errs.Navigation("human.hover_click",
			fmt.Errorf("%s failed after %d attempt(s): %w", xpath, attempts, err))
	}
	return nil
}

// Click is HoverPauseClick with default options
func (a *Actor) Click(ctx context.Context, xpath string) error {
	return a.HoverPauseClick(ctx, xpath, ClickOptions{})
}

// VerifyValue fails when the input at xpath does not hold expected
func (a *Actor) VerifyValue(ctx context.Context, xpath, expected string) error {
	got, err := a.driver.Value(ctx, xpath)
	if err != nil {
		return err
	}
	if got != expected {
		return errs.Validation("human.verify_value", "%s holds %q, expected %q", xpath, got, expected)
	}
	return nil
}
