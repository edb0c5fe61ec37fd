// Package collector is the engine facade: it validates one Config, builds the
// shared retry policy and rate limiter, and runs page collection, key
// fan-out, and schema merging on top of them.
package collector

import (
	"context"
	"fmt"

	"github.com/HariharPal/LC-Fetch/pkg/fetcher"
	"github.com/HariharPal/LC-Fetch/pkg/pagination"
	"github.com/HariharPal/LC-Fetch/pkg/ratelimit"
	"github.com/HariharPal/LC-Fetch/pkg/record"
	"github.com/HariharPal/LC-Fetch/pkg/report"
	"github.com/HariharPal/LC-Fetch/pkg/retry"
	"github.com/HariharPal/LC-Fetch/pkg/table"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Option customizes an Engine.
type Option func(*Engine)

// WithCooldown makes the shared limiter honour server-signalled cooldowns.
func WithCooldown(store ratelimit.CooldownStore) Option {
	return func(e *Engine) {
		e.cooldown = store
	}
}

// WithSink registers a callback receiving every resolved unit.
func WithSink(sink func(record.Result)) Option {
	return func(e *Engine) {
		e.sink = sink
	}
}

// WithPageField stamps page records with their page number under name.
func WithPageField(name string) Option {
	return func(e *Engine) {
		e.pageField = name
	}
}

// WithRetryableStatuses replaces the set of HTTP statuses worth retrying.
// Errors with a status outside the set fail on the first attempt whatever
// their kind; errors without a status still retry by kind.
func WithRetryableStatuses(statuses ...int) Option {
	return func(e *Engine) {
		e.policy.RetryableStatuses = make(map[int]bool, len(statuses))
		for _, s := range statuses {
			e.policy.RetryableStatuses[s] = true
		}
	}
}

// Engine runs collections with one shared policy and limiter.
type Engine struct {
	config    Config
	policy    retry.Policy
	limiter   *ratelimit.Limiter
	cooldown  ratelimit.CooldownStore
	sink      func(record.Result)
	pageField string
	logger    zerolog.Logger
}

// New validates cfg and builds an engine.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	policy := retry.DefaultPolicy()
	policy.MaxAttempts = cfg.MaxAttempts
	policy.BackoffBase = cfg.BackoffBase

	logger := log.With().Str("component", "collector").Logger()
	e := &Engine{
		config: cfg,
		policy: policy,
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.limiter = ratelimit.NewLimiter(cfg.RateLimitInterval, logger)
	if e.cooldown != nil {
		e.limiter.WithCooldown(e.cooldown)
	}

	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Policy returns the retry policy shared by all collectors.
func (e *Engine) Policy() retry.Policy {
	return e.policy
}

// Limiter returns the limiter shared by all collectors.
func (e *Engine) Limiter() *ratelimit.Limiter {
	return e.limiter
}

// CollectPages walks the configured page range and merges every decoded
// record into a table. Failed pages are counted and skipped.
func (e *Engine) CollectPages(ctx context.Context, f pagination.PageFetcher, d pagination.PageDecoder) (table.Table, report.Snapshot, error) {
	pcfg := pagination.Config{
		Policy:         e.policy,
		Limiter:        e.limiter,
		AttemptTimeout: e.config.PageTimeout,
		PageField:      e.pageField,
	}
	if e.sink != nil {
		pcfg.OnPage = func(_ int, res record.Result) { e.sink(res) }
	}

	var (
		records []record.Record
		snap    report.Snapshot
		err     error
	)
	if e.config.PageWorkers > 1 {
		bcfg := pagination.DefaultBatchConfig()
		bcfg.Config = pcfg
		bcfg.MaxConcurrency = e.config.PageWorkers
		records, snap, err = pagination.NewBatchCollector(f, d, bcfg).Collect(ctx, e.config.MinPage, e.config.MaxPage)
	} else {
		records, snap, err = pagination.NewCollector(f, d, pcfg).Collect(ctx, e.config.MinPage, e.config.MaxPage)
	}

	return table.Merge(records), snap, err
}

// FetchKeys resolves every key through the worker pool. The results are
// complete even when ctx is cancelled. ctx.Err() is returned alongside them
// only if the cancellation cost at least one key.
func (e *Engine) FetchKeys(ctx context.Context, keys []record.Key, f fetcher.KeyFetcher, d fetcher.KeyDecoder) (fetcher.Results, error) {
	res := e.pool(f, d).FetchAll(ctx, keys)
	if res.Interrupted > 0 {
		return res, ctx.Err()
	}
	return res, nil
}

// KeysTable fetches keys and merges the results in input order. Every row
// carries keyField; missing keys follow policy.
func (e *Engine) KeysTable(ctx context.Context, keys []record.Key, keyField string, policy table.MissingPolicy, f fetcher.KeyFetcher, d fetcher.KeyDecoder, ensure ...string) (table.Table, report.Snapshot, error) {
	res, err := e.FetchKeys(ctx, keys, f, d)
	return table.FromResults(res.Ordered, keyField, policy, ensure...), res.Report, err
}

// AugmentRows fetches the key found under keyField in every base row and
// left-joins the fetched fields onto the rows. Rows without a key are kept
// but not fetched.
func (e *Engine) AugmentRows(ctx context.Context, base []record.Record, keyField string, f fetcher.KeyFetcher, d fetcher.KeyDecoder, ensure ...string) (table.Table, report.Snapshot, error) {
	keys := make([]record.Key, 0, len(base))
	for _, row := range base {
		if k := row.String(keyField); k != "" {
			keys = append(keys, record.Key(k))
		}
	}
	if skipped := len(base) - len(keys); skipped > 0 {
		e.logger.Warn().Int("rows", skipped).Str("key_field", keyField).Msg("Rows without key - kept without lookup")
	}

	res, err := e.FetchKeys(ctx, keys, f, d)
	return table.LeftJoin(base, keyField, res.ByKey, ensure...), res.Report, err
}

func (e *Engine) pool(f fetcher.KeyFetcher, d fetcher.KeyDecoder) *fetcher.Pool {
	return fetcher.NewPool(f, d, fetcher.Config{
		Workers:  e.config.Workers,
		Policy:   e.policy,
		Limiter:  e.limiter,
		OnResult: e.sink,
	})
}

// Stream resolves keys and delivers results as they complete.
func (e *Engine) Stream(ctx context.Context, keys []record.Key, f fetcher.KeyFetcher, d fetcher.KeyDecoder) <-chan record.Result {
	return e.pool(f, d).Stream(ctx, keys)
}
