package provider

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const defaultBackoffBase = time.Second

// withRetry runs call, retrying transient failures (network errors, 5xx,
// 429) up to maxRetries extra times with quadratic backoff plus jitter.
func withRetry(ctx context.Context, maxRetries int, base time.Duration, logger *slog.Logger, call func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * base
			backoff += time.Duration(rand.Int64N(int64(backoff/2 + 1)))
			logger.Warn("retrying model request", "attempt", attempt+1, "backoff", backoff, "err", lastErr)
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		err := call(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) || ctx.Err() != nil {
			return err
		}
	}
	return lastErr
}

// isRetryable reports whether err looks transient: 5xx, 429, a
// connection-level failure or a per-attempt timeout. Malformed response
// bodies are not retried.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if code := statusCode(err); code != 0 {
		return code >= 500 || code == http.StatusTooManyRequests
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// statusCode extracts the HTTP status from go-openai errors, or 0.
func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
