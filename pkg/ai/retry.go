package ai

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig controls the backoff schedule of WithRetry.
type RetryConfig struct {
	Attempts       int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts:       3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
	}
}

// WithRetry runs fn up to config.Attempts times with exponential backoff
// between attempts. It is used by the generative-AI client path only; step
// executors never retry.
func WithRetry[T any](ctx context.Context, config RetryConfig, fn func() (T, error)) (T, error) {
	var zero T

	if config.Attempts < 1 {
		config.Attempts = 1
	}

	backoff := config.InitialBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	var lastErr error

	for attempt := 1; attempt <= config.Attempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}

		lastErr = err

		if attempt == config.Attempts {
			break
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if config.MaxBackoff > 0 && backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	return zero, fmt.Errorf("all %d attempts failed: %w", config.Attempts, lastErr)
}
