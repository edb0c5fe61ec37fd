// Package retry wraps a single fallible fetch with bounded attempts and
// linear backoff, turning every outcome into a record.Result.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/HariharPal/LC-Fetch/pkg/record"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lcfetch_retries_total",
		Help: "Total number of retry attempts by error kind",
	}, []string{"error_kind"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lcfetch_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error kind",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"error_kind"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lcfetch_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error kind",
	}, []string{"error_kind"})
)

// Common errors wrapped into failed results.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// Operation performs one attempt and returns the raw payload.
// Returning record.ErrNotFound (possibly wrapped) ends the unit as NotFound.
type Operation func(ctx context.Context) ([]byte, error)

// Policy holds the configuration for retry logic.
type Policy struct {
	// MaxAttempts is the maximum number of attempts (including the first one).
	MaxAttempts int

	// BackoffBase is multiplied by the 1-based attempt index to get the sleep
	// before the next attempt.
	BackoffBase time.Duration

	// RetryableStatuses lists HTTP statuses that are worth another attempt.
	// It alone decides for errors carrying a status code.
	RetryableStatuses map[int]bool

	// RetryableKinds lists error kinds that are worth another attempt when
	// the error has no status code, such as network failures.
	RetryableKinds map[record.ErrorKind]bool
}

// DefaultPolicy returns the default retry policy: 3 attempts, 1s linear
// backoff, retry on 429/5xx gateway statuses and transient error kinds.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BackoffBase: 1 * time.Second,
		RetryableStatuses: map[int]bool{
			http.StatusTooManyRequests:     true,
			http.StatusInternalServerError: true,
			http.StatusBadGateway:          true,
			http.StatusServiceUnavailable:  true,
			http.StatusGatewayTimeout:      true,
		},
		RetryableKinds: map[record.ErrorKind]bool{
			record.KindNetwork:   true,
			record.KindServer:    true,
			record.KindRateLimit: true,
		},
	}
}

// Validate checks the policy for values that would make Execute misbehave.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be >= 1 (got %d)", p.MaxAttempts)
	}
	if p.BackoffBase < 0 {
		return fmt.Errorf("backoff_base must not be negative (got %v)", p.BackoffBase)
	}
	return nil
}

// Retryable reports whether err should be attempted again under this policy.
func (p Policy) Retryable(err error) bool {
	kind, status := record.Classify(err)
	if kind == record.KindNotFound || kind == record.KindDecode || kind == record.KindCancelled {
		return false
	}
	if status != 0 {
		return p.RetryableStatuses[status]
	}
	return p.RetryableKinds[kind]
}

// Backoff returns the sleep after the given 1-based attempt.
func (p Policy) Backoff(attempt int) time.Duration {
	return p.BackoffBase * time.Duration(attempt)
}

// Execute runs op until it succeeds, returns a non-retryable error, or the
// attempts run out. It never returns an error: every outcome is a Result.
// Sleeping happens on the calling goroutine only and honours ctx.
func (p Policy) Execute(ctx context.Context, key record.Key, op Operation) record.Result {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		payload, err := op(ctx)
		if err == nil {
			if attempt > 1 {
				log.Info().
					Str("key", string(key)).
					Int("attempt", attempt).
					Msg("Fetch succeeded after retry")
			}
			return record.Success(key, payload, attempt)
		}

		if errors.Is(err, record.ErrNotFound) {
			return record.NotFound(key, attempt)
		}

		lastErr = err
		kind, _ := record.Classify(err)

		if !p.Retryable(err) {
			return record.Failure(key, err, attempt)
		}

		// If this was the last attempt, don't wait
		if attempt >= maxAttempts {
			break
		}

		backoff := p.Backoff(attempt)
		retriesTotal.WithLabelValues(string(kind)).Inc()
		retryBackoffSeconds.WithLabelValues(string(kind)).Observe(backoff.Seconds())

		log.Debug().
			Str("key", string(key)).
			Str("error_kind", string(kind)).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Err(err).
			Msg("Retrying fetch after backoff")

		if !sleep(ctx, backoff) {
			log.Warn().
				Str("key", string(key)).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return record.Failure(key, fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err()), attempt)
		}
	}

	kind, _ := record.Classify(lastErr)
	retryExhaustedTotal.WithLabelValues(string(kind)).Inc()
	log.Warn().
		Str("key", string(key)).
		Str("error_kind", string(kind)).
		Int("max_attempts", maxAttempts).
		Err(lastErr).
		Msg("Retry attempts exhausted")

	return record.Failure(key, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, maxAttempts, lastErr), maxAttempts)
}

// sleep waits for d or until ctx is done; it reports whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
