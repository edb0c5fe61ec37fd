package collector

import (
	"fmt"
	"time"

	"github.com/HariharPal/LC-Fetch/pkg/pagination"
)

// Config is the whole configuration surface of the engine.
type Config struct {
	// MinPage and MaxPage bound the page range, inclusive.
	MinPage int
	MaxPage int

	// Workers is the key fetcher pool size.
	Workers int

	// PageWorkers > 1 fetches pages concurrently (order is still preserved).
	// 1 keeps page collection strictly sequential.
	PageWorkers int

	// PageTimeout bounds one page request, not counting limiter and
	// cooldown waits. Zero disables it.
	PageTimeout time.Duration

	// MaxAttempts per unit, including the first attempt.
	MaxAttempts int

	// BackoffBase is multiplied by the attempt index between retries.
	BackoffBase time.Duration

	// RateLimitInterval is the minimum spacing between requests across all workers.
	RateLimitInterval time.Duration
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		MinPage:           1,
		MaxPage:           1,
		Workers:           8,
		PageWorkers:       1,
		PageTimeout:       pagination.DefaultAttemptTimeout,
		MaxAttempts:       3,
		BackoffBase:       1 * time.Second,
		RateLimitInterval: 0,
	}
}

// Validate reports configuration errors. They are the only errors that stop
// a run, and they are raised before any request is made.
func (c Config) Validate() error {
	if c.MinPage < 1 {
		return fmt.Errorf("min_page must be >= 1 (got %d)", c.MinPage)
	}
	if c.MinPage > c.MaxPage {
		return fmt.Errorf("min_page must be <= max_page (got %d > %d)", c.MinPage, c.MaxPage)
	}
	if c.Workers < 1 {
		return fmt.Errorf("worker_count must be >= 1 (got %d)", c.Workers)
	}
	if c.PageWorkers < 1 {
		return fmt.Errorf("page_workers must be >= 1 (got %d)", c.PageWorkers)
	}
	if c.PageTimeout < 0 {
		return fmt.Errorf("page_timeout must not be negative (got %v)", c.PageTimeout)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be >= 1 (got %d)", c.MaxAttempts)
	}
	if c.BackoffBase < 0 {
		return fmt.Errorf("backoff_base must not be negative (got %v)", c.BackoffBase)
	}
	if c.RateLimitInterval < 0 {
		return fmt.Errorf("rate_limit_interval must not be negative (got %v)", c.RateLimitInterval)
	}
	return nil
}
