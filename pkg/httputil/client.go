package httputil

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/yarmol/bnd/pkg/errors"
	"github.com/yarmol/bnd/pkg/observability"
)

// GetBytes performs a GET request and returns the response body. Transient
// failures (network errors, 429, 5xx) are wrapped in [RetryableError] so
// callers can compose with [Retry]. Other non-2xx statuses fail permanently.
func GetBytes(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "build request for %s", url)
	}

	observability.HTTP().OnRequest(ctx, req.Method, req.URL.Host, req.URL.Path)
	start := time.Now()

	resp, err := client.Do(req)
	if err != nil {
		observability.HTTP().OnError(ctx, req.Method, req.URL.Host, req.URL.Path, err)
		return nil, &RetryableError{Err: errors.Wrap(errors.ErrCodeNetwork, err, "get %s", url)}
	}
	defer resp.Body.Close()

	observability.HTTP().OnResponse(ctx, req.Method, req.URL.Host, req.URL.Path, resp.StatusCode, time.Since(start))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &RetryableError{Err: errors.Wrap(errors.ErrCodeNetwork, err, "read %s", url)}
		}
		return data, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		err := errors.New(errors.ErrCodeNetwork, "get %s: status %d", url, resp.StatusCode)
		return nil, &RetryableError{Err: err}
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.New(errors.ErrCodeNotFound, "get %s: status 404", url)
	default:
		return nil, errors.New(errors.ErrCodeNetwork, "get %s: status %d", url, resp.StatusCode)
	}
}
