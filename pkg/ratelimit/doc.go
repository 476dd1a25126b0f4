// Package ratelimit caps how many exports start within a moving time window.
//
// The site throttles accounts that export too quickly, so the exporter asks
// the limiter for permission before opening each export dialog. A
// SlidingWindow remembers the start time of recent exports and blocks until
// the oldest one leaves the window. Wait honors context cancellation.
//
//	limiter := ratelimit.New(cfg.Export.ExportsPerHour, time.Hour)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
package ratelimit
