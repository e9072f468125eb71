package reliability

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

// RetryableError marks an error that should trigger another attempt on the
// same credential/model combination.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRateLimited reports whether the backend signaled request throttling.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests")
}

// IsQuotaSignal reports whether the error carries a quota/billing signal.
// Rate-limit errors with a quota signal mean the credential is spent for the
// day and the caller should move on to the next credential immediately.
func IsQuotaSignal(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota") || strings.Contains(msg, "billing")
}

// IsModelNotFound reports whether the backend rejected the model name.
func IsModelNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "404") || strings.Contains(msg, "not found")
}

// IsRetryable checks if an error warrants another attempt at all.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return true
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrDailyQuotaExceeded) {
		return false
	}

	msg := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"rate limit",
		"too many requests",
		"service unavailable",
		"internal server error",
		"timeout",
		"connection reset",
		"connection refused",
		"temporary failure",
	}
	for _, pattern := range retryablePatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}

	return false
}

// IsRetryableStatusCode checks if an HTTP status code indicates a
// retryable error.
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		http.StatusBadGateway,
		http.StatusInternalServerError:
		return true
	default:
		return false
	}
}

// TransientBackoff returns the wait before retrying a generic transient
// failure: unit * 2^attempt.
func TransientBackoff(attempt int, unit time.Duration) time.Duration {
	return unit << attempt
}

// RateLimitBackoff returns the wait before retrying a throttled call:
// 3 * unit * 2^attempt.
func RateLimitBackoff(attempt int, unit time.Duration) time.Duration {
	return 3 * (unit << attempt)
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
