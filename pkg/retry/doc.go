// Package retry runs an operation repeatedly until it succeeds or gives up.
//
// Features:
//   - Exponential, constant, and human-paced backoff strategies
//   - Context support for cancellation
//   - A recovery hook that runs between attempts
//   - Retry predicates driven by the error taxonomy in pkg/errors
//
// Basic usage:
//
//	attempts, err := retry.Do(ctx, &retry.Config{
//		MaxAttempts: 7,
//		Backoff:     &retry.PacedBackoff{Pacer: p, Range: cfg.Pacing.Settle},
//		OnRetry: func(ctx context.Context, attempt int, err error) error {
//			return nav.Recover(ctx, resultsURL)
//		},
//		Logger: log,
//	}, func(ctx context.Context, attempt int) error {
//		return exportOnce(ctx, r)
//	})
package retry
