// Package internal provides the resilient RoundTripper behind clientx.
package internal

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// StatusError marks a response whose status counts as a failure for the
// circuit breaker. The response itself is still returned to the caller.
type StatusError struct {
	Response *http.Response
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Response.StatusCode)
}

// RetryTransport implements http.RoundTripper with bounded retries and an
// optional circuit breaker.
type RetryTransport struct {
	base          http.RoundTripper
	maxRetries    int
	backoff       time.Duration
	failureStatus int
	cb            *gobreaker.CircuitBreaker
}

// NewRetryTransport creates a transport. Responses with a status code at or
// above failureStatus are reported to cb as failures; retries only happen for
// transport errors and 5xx responses.
func NewRetryTransport(base http.RoundTripper, maxRetries int, backoff time.Duration, failureStatus int, cb *gobreaker.CircuitBreaker) *RetryTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	if failureStatus <= 0 {
		failureStatus = http.StatusInternalServerError
	}
	return &RetryTransport{
		base:          base,
		maxRetries:    maxRetries,
		backoff:       backoff,
		failureStatus: failureStatus,
		cb:            cb,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.cb == nil {
		return t.roundTripWithRetry(req)
	}

	result, err := t.cb.Execute(func() (interface{}, error) {
		resp, err := t.roundTripWithRetry(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= t.failureStatus {
			return resp, &StatusError{Response: resp}
		}
		return resp, nil
	})

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Response, nil
	}
	if err != nil {
		return nil, err
	}
	return result.(*http.Response), nil
}

func (t *RetryTransport) roundTripWithRetry(req *http.Request) (*http.Response, error) {
	var lastResp *http.Response
	var lastErr error

	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		attemptReq, err := rewind(req, attempt)
		if err != nil {
			return nil, err
		}

		resp, err := t.base.RoundTrip(attemptReq)
		if err == nil && resp.StatusCode < http.StatusInternalServerError {
			return resp, nil
		}

		lastResp = resp
		lastErr = err

		if attempt == t.maxRetries {
			break
		}

		if resp != nil && resp.Body != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(t.backoff * time.Duration(1<<uint(attempt))):
		}
	}

	return lastResp, lastErr
}

// rewind returns a request whose body can be sent again for attempt > 0.
func rewind(req *http.Request, attempt int) (*http.Request, error) {
	if attempt == 0 {
		return req, nil
	}
	clone := req.Clone(req.Context())
	if req.Body != nil && req.Body != http.NoBody {
		if req.GetBody == nil {
			return nil, errors.New("request body cannot be replayed for retry")
		}
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to rewind request body: %w", err)
		}
		clone.Body = body
	}
	return clone, nil
}
