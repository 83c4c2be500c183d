// Package httputil provides HTTP utilities for remote repository clients.
//
// # Overview
//
// This package provides infrastructure used by index-over-HTTP repositories:
//
//   - [Retry]: Automatic retry with exponential backoff
//   - [GetBytes]: Instrumented GET with transient-failure classification
//
// # Retry
//
// [Retry] wraps operations with automatic retry for transient failures:
//
//   - Network errors
//   - 5xx server errors
//   - 429 rate limit responses
//
// Wrap transient failures in [RetryableError] so Retry knows to try again:
//
//	err := httputil.RetryWithBackoff(ctx, func() error {
//	    data, err = httputil.GetBytes(ctx, client, url)
//	    return err
//	})
//
// # Configuration
//
// Default settings are suitable for most use cases:
//
//   - Max retries: 3
//   - Base backoff: 1 second (doubling each retry)
//
// Response caching is handled separately by the cache package.
package httputil
