package client

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// RetryPolicy holds the configuration for retry logic. It is a plain value
// shared by every endpoint; the loop itself lives in retryWithBackoff.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// BaseBackoff is the first backoff for ordinary retryable failures.
	// Attempt n sleeps BaseBackoff * 2^(n-1) + jitter.
	BaseBackoff time.Duration

	// MaxBackoff caps ordinary backoff.
	MaxBackoff time.Duration

	// MaxRateLimitBackoff caps backoff derived from a 429 Retry-After.
	MaxRateLimitBackoff time.Duration

	// Jitter returns the random component added to every backoff.
	// Nil means uniform in [0, 1s).
	Jitter func() time.Duration
}

// DefaultRetryPolicy returns the default retry configuration.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:         8,
		BaseBackoff:         800 * time.Millisecond,
		MaxBackoff:          120 * time.Second,
		MaxRateLimitBackoff: 600 * time.Second,
	}
}

// NoJitter disables the random backoff component.
func NoJitter() time.Duration { return 0 }

func defaultJitter() time.Duration {
	return time.Duration(rand.Float64() * float64(time.Second))
}

// Backoff returns the sleep before the attempt following a failed attempt.
//
// A 429 carrying Retry-After sleeps min(MaxRateLimitBackoff,
// retryAfter*2^(attempt-1) + jitter); everything else sleeps
// min(MaxBackoff, BaseBackoff*2^(attempt-1) + jitter).
func (p RetryPolicy) Backoff(attempt int, err error) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	jitter := p.Jitter
	if jitter == nil {
		jitter = defaultJitter
	}
	mult := math.Pow(2, float64(attempt-1))

	base, limit := p.BaseBackoff, p.MaxBackoff
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusTooManyRequests && se.RetryAfter > 0 {
		base, limit = se.RetryAfter, p.MaxRateLimitBackoff
	}

	d := float64(base)*mult + float64(jitter())
	if limit > 0 && d > float64(limit) {
		return limit
	}
	return time.Duration(d)
}

// retryHook is called before each backoff sleep with the computed duration.
type retryHook func(attempt int, err error, sleep time.Duration)

// retryWithBackoff executes fn until it succeeds, returns a non-retryable
// error, or the attempt budget is spent. Retry budgets are per call; nothing
// is shared between calls.
func retryWithBackoff(ctx context.Context, logger zerolog.Logger, endpoint string, policy RetryPolicy, fn func(attempt int) error, onRetry retryHook) error {
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Str("endpoint", endpoint).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr = err

		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		}

		// Non-retryable errors surface immediately
		if !shouldRetry(err) {
			return lastErr
		}

		if attempt >= maxAttempts {
			break
		}

		class := errorClassOf(err)
		sleep := policy.Backoff(attempt, err)

		retriesTotal.WithLabelValues(string(class)).Inc()
		retryBackoffSeconds.WithLabelValues(string(class)).Observe(sleep.Seconds())

		event := logger.Warn().
			Str("endpoint", endpoint).
			Int("attempt", attempt).
			Int("max_attempts", maxAttempts).
			Str("error_class", string(class)).
			Dur("sleep", sleep)
		var se *StatusError
		if errors.As(err, &se) {
			event = event.Int("status", se.StatusCode)
		} else {
			event = event.Err(err)
		}
		event.Msg("Retrying request after backoff")

		if onRetry != nil {
			onRetry(attempt, err, sleep)
		}

		t := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			t.Stop()
			logger.Warn().
				Str("endpoint", endpoint).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-t.C:
		}
	}

	class := errorClassOf(lastErr)
	retryExhaustedTotal.WithLabelValues(string(class)).Inc()
	logger.Error().
		Str("endpoint", endpoint).
		Str("error_class", string(class)).
		Int("max_attempts", maxAttempts).
		Msg("Retry attempts exhausted")

	return &RetryExhaustedError{Endpoint: endpoint, Attempts: maxAttempts, Err: lastErr}
}
