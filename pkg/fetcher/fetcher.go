// Package fetcher resolves many independent keys over a bounded worker pool.
//
// Workers receive keys by value and hand results back over a channel; the
// coordinating goroutine is the only writer of work-item state and of the
// output, so no lock is taken on shared data. Every distinct key resolves to
// exactly one record.Result, including keys never dispatched because the
// context was cancelled.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/HariharPal/LC-Fetch/pkg/ratelimit"
	"github.com/HariharPal/LC-Fetch/pkg/record"
	"github.com/HariharPal/LC-Fetch/pkg/report"
	"github.com/HariharPal/LC-Fetch/pkg/retry"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the pool size used when Config.Workers is not set.
const DefaultWorkers = 8

// KeyFetcher fetches the raw body for one key.
type KeyFetcher interface {
	FetchKey(ctx context.Context, key record.Key) ([]byte, error)
}

// KeyFetcherFunc adapts a function to KeyFetcher.
type KeyFetcherFunc func(ctx context.Context, key record.Key) ([]byte, error)

// FetchKey implements KeyFetcher.
func (f KeyFetcherFunc) FetchKey(ctx context.Context, key record.Key) ([]byte, error) {
	return f(ctx, key)
}

// KeyDecoder turns a key's body into a record. It returns record.ErrNotFound
// when the body says the entity does not exist.
type KeyDecoder interface {
	DecodeKey(key record.Key, body []byte) (record.Record, error)
}

// KeyDecoderFunc adapts a function to KeyDecoder.
type KeyDecoderFunc func(key record.Key, body []byte) (record.Record, error)

// DecodeKey implements KeyDecoder.
func (f KeyDecoderFunc) DecodeKey(key record.Key, body []byte) (record.Record, error) {
	return f(key, body)
}

// Config holds pool configuration.
type Config struct {
	// Workers is the number of concurrent fetches.
	Workers int

	// Policy wraps every key fetch.
	Policy retry.Policy

	// Limiter is shared by all workers; nil disables pacing.
	Limiter *ratelimit.Limiter

	// OnResult is called by the coordinator for every resolved key,
	// in completion order.
	OnResult func(record.Result)
}

// Results is the outcome of FetchAll.
type Results struct {
	// ByKey holds exactly one result per distinct input key.
	ByKey map[record.Key]record.Result

	// Ordered is aligned with the input key order.
	Ordered []record.Result

	// Report counts outcomes per distinct key.
	Report report.Snapshot

	// Interrupted counts keys that failed because the context was done:
	// never dispatched, or cut short while in flight.
	Interrupted int
}

// Pool dispatches key fetches across a fixed number of workers.
type Pool struct {
	fetcher KeyFetcher
	decoder KeyDecoder
	config  Config
	logger  zerolog.Logger
}

// NewPool creates a pool.
func NewPool(fetcher KeyFetcher, decoder KeyDecoder, config Config) *Pool {
	if fetcher == nil || decoder == nil {
		panic("key fetcher and decoder cannot be nil")
	}
	if config.Workers <= 0 {
		config.Workers = DefaultWorkers
	}
	return &Pool{
		fetcher: fetcher,
		decoder: decoder,
		config:  config,
		logger:  log.With().Str("component", "fetcher").Logger(),
	}
}

// Workers returns the pool size.
func (p *Pool) Workers() int {
	return p.config.Workers
}

// FetchAll resolves every key and returns once none is pending.
func (p *Pool) FetchAll(ctx context.Context, keys []record.Key) Results {
	start := time.Now()
	rep := report.New("fetcher")
	byKey := make(map[record.Key]record.Result, len(keys))

	interrupted := p.run(ctx, keys, func(res record.Result) {
		byKey[res.Key] = res
		rep.Observe(res)
	})

	ordered := make([]record.Result, len(keys))
	for i, key := range keys {
		ordered[i] = byKey[key]
	}

	snap := rep.Snapshot()
	p.logger.Info().
		Int("keys", len(byKey)).
		Int("workers", p.config.Workers).
		Int("interrupted", interrupted).
		Str("report", snap.String()).
		Dur("duration", time.Since(start)).
		Msg("Key fetch complete")

	return Results{ByKey: byKey, Ordered: ordered, Report: snap, Interrupted: interrupted}
}

// Stream resolves every key and delivers results in completion order.
// The channel is closed once every key has resolved.
func (p *Pool) Stream(ctx context.Context, keys []record.Key) <-chan record.Result {
	out := make(chan record.Result, len(keys))
	go func() {
		defer close(out)
		_ = p.run(ctx, keys, func(res record.Result) {
			out <- res
		})
	}()
	return out
}

// run is the coordinator. It alone dispatches keys, collects results, and
// updates work items; emit is called once per distinct key. It returns the
// number of keys that failed because ctx was done.
func (p *Pool) run(ctx context.Context, keys []record.Key, emit func(record.Result)) int {
	unique, items := newWorkItems(keys)
	if len(unique) == 0 {
		return 0
	}

	jobs := make(chan record.Key)
	results := make(chan record.Result)

	var g errgroup.Group
	workers := min(p.config.Workers, len(unique))
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for key := range jobs {
				results <- p.fetchKey(ctx, key)
			}
			return nil
		})
	}

	interrupted := 0
	resolve := func(res record.Result) {
		items[res.Key].finish()
		if err := ctx.Err(); err != nil && res.Status == record.StatusFailure && errors.Is(res.Err, err) {
			interrupted++
		}
		if p.config.OnResult != nil {
			p.config.OnResult(res)
		}
		emit(res)
	}

	next, inFlight := 0, 0
	for {
		var dispatch chan<- record.Key
		var cancelled <-chan struct{}
		if next < len(unique) && ctx.Err() == nil {
			dispatch = jobs
			cancelled = ctx.Done()
		}
		if dispatch == nil && inFlight == 0 {
			break
		}

		var key record.Key
		if dispatch != nil {
			key = unique[next]
		}

		select {
		case dispatch <- key:
			items[key].start()
			next++
			inFlight++
		case res := <-results:
			inFlight--
			resolve(res)
		case <-cancelled:
			// Stop dispatching; loop again to drain in-flight results.
		}
	}

	close(jobs)
	_ = g.Wait()

	if next < len(unique) {
		p.logger.Warn().
			Int("dispatched", next).
			Int("total", len(unique)).
			Msg("Context cancelled - resolving undispatched keys as failures")

		cause := ctx.Err()
		if cause == nil {
			cause = context.Canceled
		}
		for _, key := range unique {
			if items[key].pending() {
				resolve(record.Failure(key, fmt.Errorf("key not dispatched: %w", cause), 0))
			}
		}
	}
	return interrupted
}

// fetchKey runs on a worker: limiter, retried fetch, decode.
func (p *Pool) fetchKey(ctx context.Context, key record.Key) record.Result {
	res := p.config.Policy.Execute(ctx, key, func(ctx context.Context) ([]byte, error) {
		if p.config.Limiter != nil {
			if err := p.config.Limiter.Acquire(ctx); err != nil {
				return nil, err
			}
		}
		return p.fetcher.FetchKey(ctx, key)
	})
	if !res.OK() {
		logFailure(p.logger, res)
		return res
	}

	rec, err := p.decoder.DecodeKey(key, res.Payload)
	switch {
	case errors.Is(err, record.ErrNotFound):
		p.logger.Debug().Str("key", string(key)).Msg("Key not found")
		return record.NotFound(key, res.Attempts)
	case err != nil:
		var de *record.DecodeError
		if !errors.As(err, &de) {
			err = &record.DecodeError{Key: key, Err: err}
		}
		res = record.Failure(key, err, res.Attempts)
		logFailure(p.logger, res)
		return res
	}

	res.Records = []record.Record{rec}
	return res
}

func logFailure(logger zerolog.Logger, res record.Result) {
	if res.Status == record.StatusNotFound {
		logger.Debug().Str("key", string(res.Key)).Msg("Key not found")
		return
	}
	logger.Warn().
		Err(res.Err).
		Str("key", string(res.Key)).
		Str("error_kind", string(res.Kind())).
		Int("attempts", res.Attempts).
		Msg("Key fetch failed")
}
