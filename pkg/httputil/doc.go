// Package httputil provides HTTP utilities for remote dataset access.
//
// # Overview
//
// This package provides infrastructure used when a dataset is addressed
// by URL instead of a local file:
//
//   - [Fetch]: Download a remote resource into memory
//   - [Retry]: Automatic retry with exponential backoff
//
// # Fetching
//
// [Fetch] downloads the body of an HTTP(S) resource and returns it as a
// byte slice, ready to hand to a dataset loader:
//
//	data, err := httputil.Fetch(ctx, "https://example.com/course.json")
//	if err != nil {
//	    return err
//	}
//	ds, err := dataset.LoadBytes(data, "course.json", "")
//
// # Retry
//
// [Retry] wraps operations with automatic retry for transient failures:
//
//   - Network errors
//   - 5xx server errors
//
// It uses exponential backoff, doubling the delay after each attempt:
//
//	err := httputil.RetryWithBackoff(ctx, func() error {
//	    return push(url)
//	})
//
// # Configuration
//
// Default settings are suitable for most use cases:
//
//   - Request timeout: 30 seconds
//   - Max retries: 3
//   - Base backoff: 1 second
//
// Responses are never cached here; artifact-level caching is handled by
// the pipeline's cache layer.
package httputil
