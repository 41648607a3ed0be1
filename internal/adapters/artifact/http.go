package artifact

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ewilliams-labs/soundwatch/internal/logging"
)

const (
	defaultMaxRetries = 3
	defaultBackoffMs  = 500
)

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type httpSource struct {
	client      HTTPDoer
	maxRetries  int
	baseBackoff time.Duration
}

func newHTTPSource(client HTTPDoer, maxRetries int, baseBackoff time.Duration) *httpSource {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if baseBackoff <= 0 {
		baseBackoff = time.Duration(defaultBackoffMs) * time.Millisecond
	}
	return &httpSource{client: client, maxRetries: maxRetries, baseBackoff: baseBackoff}
}

func (s *httpSource) fetch(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("artifact: build request for %s: %w", ref, err)
	}

	resp, err := s.doRequestWithRetry(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("artifact: %s: %w", ref, ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("artifact: %s: unexpected status %d", ref, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("artifact: read %s: %w", ref, err)
	}
	return data, nil
}

func (s *httpSource) doRequestWithRetry(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("artifact: request canceled: %w", err)
		}

		resp, err := s.client.Do(req)
		retryAfter, retry := shouldRetry(resp, err)
		if !retry {
			return resp, err
		}

		attemptNum := attempt + 1
		if err != nil {
			logging.Warning(logging.CategoryArtifact, "retry attempt %d/%d for %s after error: %v", attemptNum, s.maxRetries, req.URL.Redacted(), err)
		} else if resp != nil {
			logging.Warning(logging.CategoryArtifact, "retry attempt %d/%d for %s after status %d", attemptNum, s.maxRetries, req.URL.Redacted(), resp.StatusCode)
			_ = resp.Body.Close()
		}

		if attempt == s.maxRetries-1 {
			if err != nil {
				return nil, fmt.Errorf("artifact: request failed after %d attempts: %w", s.maxRetries, err)
			}
			if resp != nil {
				return nil, fmt.Errorf("artifact: request failed after %d attempts: status %d", s.maxRetries, resp.StatusCode)
			}
			return nil, fmt.Errorf("artifact: request failed after %d attempts", s.maxRetries)
		}

		backoff := s.baseBackoff * time.Duration(1<<attempt)
		if retryAfter > 0 {
			backoff = retryAfter
		}

		if err := sleepWithContext(ctx, backoff); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("artifact: request failed after %d attempts", s.maxRetries)
}

func shouldRetry(resp *http.Response, err error) (time.Duration, bool) {
	if err != nil {
		return 0, true
	}
	if resp == nil {
		return 0, false
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return parseRetryAfter(resp), true
	}

	return 0, false
}

func parseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}

	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if when, err := http.ParseTime(retryAfter); err == nil {
		until := time.Until(when)
		if until > 0 {
			return until
		}
	}

	return 0
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("artifact: request canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
