package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const fetchTimeout = 30 * time.Second

// IsURL reports whether path addresses a remote resource rather than a
// local file. Only http and https schemes are recognized.
func IsURL(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// Fetch downloads the resource at url and returns the response body.
// Transient failures (network errors, 5xx responses) are retried with
// exponential backoff; other non-2xx statuses fail immediately.
func Fetch(ctx context.Context, url string) ([]byte, error) {
	client := &http.Client{Timeout: fetchTimeout}
	var data []byte
	err := RetryWithBackoff(ctx, func() error {
		var ferr error
		data, ferr = fetchOnce(ctx, client, url)
		return ferr
	})
	return data, err
}

func fetchOnce(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &RetryableError{Err: fmt.Errorf("fetch %s: %w", url, err)}
	}
	defer resp.Body.Close()

	if err := checkStatus(url, resp.StatusCode); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RetryableError{Err: fmt.Errorf("fetch %s: %w", url, err)}
	}
	return data, nil
}

func checkStatus(url string, code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code >= 500:
		return &RetryableError{Err: fmt.Errorf("fetch %s: status %d", url, code)}
	default:
		return fmt.Errorf("fetch %s: status %d", url, code)
	}
}
