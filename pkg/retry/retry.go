package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	errs "wosexport/pkg/errors"
	"wosexport/pkg/logger"
	"wosexport/pkg/pacing"
)

// Operation performs one attempt. attempt starts at 1.
type Operation func(ctx context.Context, attempt int) error

// OperationWithResult is an Operation that also yields a value
type OperationWithResult[T any] func(ctx context.Context, attempt int) (T, error)

// Config holds retry configuration
type Config struct {
	// MaxAttempts is the maximum number of attempts (0 means unlimited)
	MaxAttempts int
	// Backoff strategy to use between attempts
	Backoff BackoffStrategy
	// RetryIf determines if an error should be retried
	RetryIf func(error) bool
	// OnRetry runs after a failed attempt and before the backoff delay.
	// It is where callers put recovery steps such as reloading a page. A
	// non-nil return stops retrying.
	OnRetry func(ctx context.Context, attempt int, err error) error
	// Sleep waits between attempts
	Sleep pacing.Sleeper
	// Logger for retry attempts
	Logger logger.Logger
	// Name labels log lines
	Name string
}

// DefaultConfig returns a retry configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		Backoff:     DefaultExponentialBackoff(),
		RetryIf:     DefaultRetryIf,
		Sleep:       pacing.Sleep,
		Logger:      logger.NewNopLogger(),
	}
}

// DefaultRetryIf retries everything except cancellation and error types
// that cannot improve on a second try. Whether the caller gave up is decided
// by Do from the caller's context, not from err.
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}

	// A deadline inside the error chain is usually a per-call timeout of
	// the browser; the caller's own context is checked by Do
	if errors.Is(err, context.Canceled) && errs.TypeOf(err) == errs.ErrorTypeUnknown {
		return false
	}

	return errs.IsRetryable(errs.TypeOf(err))
}

// ExhaustedError is returned when every attempt failed
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("max retry attempts (%d) exceeded: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Do executes op until it succeeds, returns a non-retryable error, the
// attempts run out, or ctx is done. It returns the number of attempts made.
func Do(ctx context.Context, cfg *Config, op Operation) (int, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg = cfg.withDefaults()
	log := cfg.Logger.WithField("operation", cfg.Name)

	attempt := 0
	for {
		attempt++

		if err := ctx.Err(); err != nil {
			return attempt - 1, fmt.Errorf("retry cancelled: %w", err)
		}

		err := op(ctx, attempt)
		if err == nil {
			if attempt > 1 {
				log.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return attempt, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return attempt, fmt.Errorf("retry cancelled: %w", errors.Join(ctxErr, err))
		}

		if !cfg.RetryIf(err) {
			log.WithError(err).Debug("error is not retryable")
			return attempt, err
		}

		if cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts {
			log.WithError(err).WarnWithFields("max retry attempts exceeded", map[string]interface{}{
				"attempts": attempt,
			})
			return attempt, &ExhaustedError{Attempts: attempt, Last: err}
		}

		if cfg.OnRetry != nil {
			if hookErr := cfg.OnRetry(ctx, attempt, err); hookErr != nil {
				return attempt, fmt.Errorf("recovery after attempt %d failed: %w", attempt, errors.Join(hookErr, err))
			}
		}

		delay := cfg.Backoff.NextDelay(attempt)
		log.WithError(err).WarnWithFields("retrying operation", map[string]interface{}{
			"attempt":      attempt,
			"max_attempts": cfg.MaxAttempts,
			"delay":        delay,
		})

		if err := cfg.Sleep(ctx, delay); err != nil {
			return attempt, fmt.Errorf("retry cancelled: %w", err)
		}
	}
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](ctx context.Context, cfg *Config, op OperationWithResult[T]) (T, int, error) {
	var result T
	attempts, err := Do(ctx, cfg, func(ctx context.Context, attempt int) error {
		var opErr error
		result, opErr = op(ctx, attempt)
		return opErr
	})
	return result, attempts, err
}

func (c *Config) withDefaults() *Config {
	out := *c
	if out.Backoff == nil {
		out.Backoff = DefaultExponentialBackoff()
	}
	if out.RetryIf == nil {
		out.RetryIf = DefaultRetryIf
	}
	if out.Sleep == nil {
		out.Sleep = pacing.Sleep
	}
	if out.Logger == nil {
		out.Logger = logger.NewNopLogger()
	}
	return &out
}

// Attempts returns how many attempts an ExhaustedError recorded, or 0
func Attempts(err error) int {
	var ex *ExhaustedError
	if errors.As(err, &ex) {
		return ex.Attempts
	}
	return 0
}

// Wait waits for the specified duration or until context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	return pacing.Sleep(ctx, delay)
}
