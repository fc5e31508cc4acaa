package ai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// RetryConfig holds retry configuration for analysis calls.
type RetryConfig struct {
	MaxRetries        int           // Maximum number of retries (default: 2)
	InitialBackoff    time.Duration // Initial backoff duration (default: 1s)
	MaxBackoff        time.Duration // Maximum backoff duration (default: 15s)
	BackoffMultiplier float64       // Backoff multiplier (default: 2.0)
	Timeout           time.Duration // Per-request timeout (default: 30s)

	// MaxConcurrentCalls caps concurrent analysis calls across all
	// projects (default: 3, 0 = unlimited)
	MaxConcurrentCalls int
}

// DefaultRetryConfig returns the default retry configuration. Retries are
// kept short: the supervisor polls continuously, so a failed round is
// simply retried on a later poll cycle.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:         2,
		InitialBackoff:     1 * time.Second,
		MaxBackoff:         15 * time.Second,
		BackoffMultiplier:  2.0,
		Timeout:            30 * time.Second,
		MaxConcurrentCalls: 3,
	}
}

// retryWithBackoff executes an operation with bounded per-attempt timeouts
// and exponential backoff between attempts.
func (a *AnthropicAnalyst) retryWithBackoff(ctx context.Context, operation string, fn func(context.Context) error) error {
	if a.concurrencySem != nil {
		if err := a.concurrencySem.Acquire(ctx, 1); err != nil {
			return fmt.Errorf("failed to acquire concurrency slot for %s: %w", operation, err)
		}
		defer a.concurrencySem.Release(1)
	}

	var lastErr error
	backoff := a.retry.InitialBackoff

	for attempt := 0; attempt <= a.retry.MaxRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, a.retry.Timeout)
		err := fn(attemptCtx)
		cancel()

		if err == nil {
			if attempt > 0 && a.verbose {
				fmt.Printf("analysis %s succeeded after %d retries\n", operation, attempt)
			}
			return nil
		}
		lastErr = err

		if !isRetriableError(err) {
			fmt.Fprintf(os.Stderr, "analysis %s failed with non-retriable error: %v\n", operation, err)
			return err
		}
		if attempt == a.retry.MaxRetries {
			break
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s canceled: %w", operation, ctx.Err())
		}

		if a.verbose {
			fmt.Printf("analysis %s failed (attempt %d/%d), retrying in %v: %v\n",
				operation, attempt+1, a.retry.MaxRetries+1, backoff, err)
		}

		select {
		case <-time.After(backoff):
			backoff = time.Duration(float64(backoff) * a.retry.BackoffMultiplier)
			if backoff > a.retry.MaxBackoff {
				backoff = a.retry.MaxBackoff
			}
		case <-ctx.Done():
			return fmt.Errorf("%s canceled during backoff: %w", operation, ctx.Err())
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, a.retry.MaxRetries+1, lastErr)
}

// isRetriableError determines if an error is transient. Auth and other
// client errors fail immediately; the supervisor's own backoff handles
// longer outages.
func isRetriableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errStr := err.Error()

	// Rate limits are retriable
	if strings.Contains(errStr, "429") || strings.Contains(errStr, "rate limit") {
		return true
	}

	// Server-side errors are retriable
	if strings.Contains(errStr, "500") || strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") || strings.Contains(errStr, "504") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "bad gateway") ||
		strings.Contains(errStr, "service unavailable") ||
		strings.Contains(errStr, "gateway timeout") {
		return true
	}

	// Network errors are retriable
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "temporary failure") ||
		strings.Contains(errStr, "network") {
		return true
	}

	// Remaining 4xx client errors won't succeed on retry
	return false
}
