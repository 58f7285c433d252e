package bybit

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryConfig holds configuration for retry mechanisms
type RetryConfig struct {
	MaxRetries     int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	BackoffFactor  float64
	JitterEnabled  bool
	// Minimum wait after a rate-limit response (10006)
	RateLimitDelay time.Duration
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialDelay:   time.Second,
		MaxDelay:       30 * time.Second,
		BackoffFactor:  2.0,
		JitterEnabled:  true,
		RateLimitDelay: 5 * time.Second,
	}
}

// RetryWithConfig executes fn until it succeeds, returns a non-retryable
// error, or exhausts config.MaxRetries.
func RetryWithConfig(ctx context.Context, fn func() error, config RetryConfig) error {
	var lastErr error

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == config.MaxRetries || !IsRetryableError(err) {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay(err, attempt, config)):
		}
	}

	return lastErr
}

// retryDelay is the backoff for attempt, raised to RateLimitDelay when the
// exchange reported a rate limit
func retryDelay(err error, attempt int, config RetryConfig) time.Duration {
	delay := calculateDelay(attempt, config)
	if IsRateLimitError(err) && delay < config.RateLimitDelay {
		delay = config.RateLimitDelay
	}
	return delay
}

// calculateDelay calculates the delay for a retry attempt with exponential backoff
func calculateDelay(attempt int, config RetryConfig) time.Duration {
	delay := time.Duration(float64(config.InitialDelay) * math.Pow(config.BackoffFactor, float64(attempt)))
	if delay > config.MaxDelay {
		delay = config.MaxDelay
	}
	if config.JitterEnabled {
		delay += time.Duration(float64(delay) * 0.1 * (2*rand.Float64() - 1))
	}
	return delay
}
