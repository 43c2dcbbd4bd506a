package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// StatusError is a non-2xx answer from a sink's HTTP endpoint.
type StatusError struct {
	Service string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s api %d: %s", e.Service, e.Code, e.Body)
}

// Retryable reports whether the same request may succeed later.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// RetryPolicy bounds PostJSON attempts. The wait before attempt n is n*Backoff.
type RetryPolicy struct {
	Limit   int
	Backoff time.Duration
}

// PostJSON sends body to endpoint, retrying transport errors, 429 and 5xx.
func PostJSON(ctx context.Context, hc *http.Client, service, endpoint string, body []byte, policy RetryPolicy) error {
	var lastErr error
	for attempt := 0; attempt <= max(policy.Limit, 0); attempt++ {
		if attempt > 0 {
			if err := wait(ctx, time.Duration(attempt)*policy.Backoff); err != nil {
				return err
			}
		}
		lastErr = postOnce(ctx, hc, service, endpoint, body)
		if lastErr == nil {
			return nil
		}
		var se *StatusError
		if errors.As(lastErr, &se) && !se.Retryable() {
			return lastErr
		}
	}
	return lastErr
}

func postOnce(ctx context.Context, hc *http.Client, service, endpoint string, body []byte) (err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", service, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", service, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close %s response: %w", service, cerr))
		}
	}()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{Service: service, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
