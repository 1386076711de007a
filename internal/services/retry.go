package services

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultMaxRetries = 3
	defaultBackoff    = 500 * time.Millisecond
)

// doRequestWithRetry sends req, retrying transport errors, 429 and 5xx responses.
//
// Waits double from the base backoff per attempt unless the response carries Retry-After. The final response
// is returned as is so the caller can map its status.
func (s *SpotifyService) doRequestWithRetry(req *http.Request) (*http.Response, error) {
	attempts := max(s.maxRetries, 1)
	ctx := req.Context()

	for attempt := 0; ; attempt++ {
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("reset request body: %w", err)
			}
			req.Body = body
		}

		resp, err := s.httpClient.Do(req)
		wait, retry := shouldRetry(ctx, resp, err)
		if !retry || attempt == attempts-1 {
			return resp, err
		}

		if err != nil {
			s.logger.Warn("retrying request", "attempt", attempt+1, "of", attempts, "url", req.URL.Path, "err", err)
		} else {
			s.logger.Warn("retrying request", "attempt", attempt+1, "of", attempts, "url", req.URL.Path, "status", resp.StatusCode)
			resp.Body.Close()
		}

		backoff := s.backoff << attempt
		if wait > 0 {
			backoff = wait
		}
		if err := sleepWithContext(ctx, backoff); err != nil {
			return nil, err
		}
	}
}

func shouldRetry(ctx context.Context, resp *http.Response, err error) (time.Duration, bool) {
	if err != nil {
		return 0, ctx.Err() == nil
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return parseRetryAfter(resp), true
	}
	return 0, false
}

// parseRetryAfter reads Retry-After as delay seconds or an HTTP date.
func parseRetryAfter(resp *http.Response) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if when, err := http.ParseTime(retryAfter); err == nil {
		if until := time.Until(when); until > 0 {
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
		return fmt.Errorf("request canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
