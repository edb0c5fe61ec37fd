// Package ratelimit throttles request issuance. A single Limiter is shared by
// every worker of a run so the aggregate request rate is bounded, and an
// optional CooldownStore lets the server push everyone back at once.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var (
	rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lcfetch_rate_limit_wait_seconds",
		Help:    "Time spent waiting for the rate limiter before a request",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	})

	rateLimitCooldownWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lcfetch_rate_limit_cooldown_waits_total",
		Help: "Total number of acquisitions delayed by a server-signalled cooldown",
	})
)

// Limiter enforces a minimum interval between requests.
type Limiter struct {
	limiter  *rate.Limiter
	cooldown CooldownStore
	logger   zerolog.Logger
}

// NewLimiter creates a limiter admitting one request per interval.
// An interval of zero or less disables pacing.
func NewLimiter(interval time.Duration, logger zerolog.Logger) *Limiter {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Limiter{
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// WithCooldown attaches a cooldown store consulted on every Acquire.
func (l *Limiter) WithCooldown(store CooldownStore) *Limiter {
	l.cooldown = store
	return l
}

// Cooldown returns the attached cooldown store, or nil.
func (l *Limiter) Cooldown() CooldownStore {
	return l.cooldown
}

// Interval returns the configured minimum spacing between requests.
func (l *Limiter) Interval() time.Duration {
	limit := l.limiter.Limit()
	if limit == rate.Inf || limit <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / float64(limit))
}

// Acquire blocks the calling goroutine until a request may be issued.
func (l *Limiter) Acquire(ctx context.Context) error {
	start := time.Now()
	defer func() {
		rateLimitWaitSeconds.Observe(time.Since(start).Seconds())
	}()

	if l.cooldown != nil {
		until, err := l.cooldown.Until(ctx)
		if err != nil {
			// A broken store must not stall collection.
			l.logger.Warn().Err(err).Msg("Cooldown lookup failed")
		} else if wait := time.Until(until); wait > 0 {
			rateLimitCooldownWaitsTotal.Inc()
			l.logger.Warn().
				Dur("wait_duration", wait).
				Msg("Server cooldown active - delaying request")

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("wait for cooldown: %w", ctx.Err())
			case <-timer.C:
			}
		}
	}

	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for rate limiter: %w", err)
	}
	return nil
}
