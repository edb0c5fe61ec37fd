package pagination

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
)

// PageFetcher fetches the raw body of one page.
type PageFetcher interface {
	FetchPage(ctx context.Context, page int) ([]byte, error)
}

// PageFetcherFunc adapts a function to PageFetcher.
type PageFetcherFunc func(ctx context.Context, page int) ([]byte, error)

// FetchPage implements PageFetcher.
func (f PageFetcherFunc) FetchPage(ctx context.Context, page int) ([]byte, error) {
	return f(ctx, page)
}

// PageDecoder turns a page body into zero or more records.
type PageDecoder interface {
	DecodePage(body []byte) ([]record.Record, error)
}

// PageDecoderFunc adapts a function to PageDecoder.
type PageDecoderFunc func(body []byte) ([]record.Record, error)

// DecodePage implements PageDecoder.
func (f PageDecoderFunc) DecodePage(body []byte) ([]record.Record, error) {
	return f(body)
}

// DefaultAttemptTimeout bounds one page request when no timeout is configured.
const DefaultAttemptTimeout = 30 * time.Second

// Config holds collector configuration.
type Config struct {
	// Policy wraps every page fetch.
	Policy retry.Policy

	// Limiter is acquired before every request; nil disables pacing.
	Limiter *ratelimit.Limiter

	// AttemptTimeout bounds one fetch attempt. The limiter and cooldown
	// wait before the attempt does not count against it. Zero disables it.
	AttemptTimeout time.Duration

	// PageField, when set, stamps each record with its page number.
	PageField string

	// OnPage receives every resolved page in page order.
	OnPage func(page int, res record.Result)
}

// ValidateRange rejects page ranges the collectors cannot walk.
func ValidateRange(minPage, maxPage int) error {
	if minPage < 1 {
		return fmt.Errorf("min_page must be >= 1 (got %d)", minPage)
	}
	if minPage > maxPage {
		return fmt.Errorf("min_page must be <= max_page (got %d > %d)", minPage, maxPage)
	}
	return nil
}

// Collector walks a page range sequentially.
type Collector struct {
	fetcher PageFetcher
	decoder PageDecoder
	config  Config
	logger  zerolog.Logger
}

// NewCollector creates a sequential collector.
func NewCollector(fetcher PageFetcher, decoder PageDecoder, config Config) *Collector {
	if fetcher == nil || decoder == nil {
		panic("page fetcher and decoder cannot be nil")
	}
	return &Collector{
		fetcher: fetcher,
		decoder: decoder,
		config:  config,
		logger:  log.With().Str("component", "pagination").Logger(),
	}
}

// Collect fetches pages minPage..maxPage inclusive, in ascending order, and
// returns the decoded records in page order. Failed pages are skipped.
// A cancelled context stops the walk and returns the partial records with ctx.Err().
func (c *Collector) Collect(ctx context.Context, minPage, maxPage int) ([]record.Record, report.Snapshot, error) {
	if err := ValidateRange(minPage, maxPage); err != nil {
		return nil, report.Snapshot{}, err
	}

	start := time.Now()
	rep := report.New("pagination")
	var records []record.Record

	c.logger.Info().
		Int("min_page", minPage).
		Int("max_page", maxPage).
		Msg("Starting page collection")

	for page := minPage; page <= maxPage; page++ {
		if err := ctx.Err(); err != nil {
			c.logger.Warn().
				Int("page", page).
				Int("records", len(records)).
				Msg("Collection cancelled - returning partial results")
			return records, rep.Snapshot(), err
		}

		res := fetchPage(ctx, c.fetcher, c.decoder, c.config, page)
		rep.Observe(res)
		records = append(records, res.Records...)
		logPage(c.logger, page, res)

		if c.config.OnPage != nil {
			c.config.OnPage(page, res)
		}
	}

	snap := rep.Snapshot()
	c.logger.Info().
		Int("records", len(records)).
		Str("report", snap.String()).
		Dur("duration", time.Since(start)).
		Msg("Page collection complete")

	return records, snap, nil
}

// fetchPage resolves one page: limiter, retried fetch, decode, page stamp.
func fetchPage(ctx context.Context, fetcher PageFetcher, decoder PageDecoder, config Config, page int) record.Result {
	key := record.PageKey(page)

	res := config.Policy.Execute(ctx, key, func(ctx context.Context) ([]byte, error) {
		if config.Limiter != nil {
			if err := config.Limiter.Acquire(ctx); err != nil {
				return nil, err
			}
		}
		if config.AttemptTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, config.AttemptTimeout)
			defer cancel()
		}
		return fetcher.FetchPage(ctx, page)
	})
	if !res.OK() {
		return res
	}

	records, err := decoder.DecodePage(res.Payload)
	if err != nil {
		var de *record.DecodeError
		if !errors.As(err, &de) {
			err = &record.DecodeError{Key: key, Err: err}
		}
		return record.Failure(key, err, res.Attempts)
	}

	if config.PageField != "" {
		for i := range records {
			records[i].Set(config.PageField, page)
		}
	}
	res.Records = records
	return res
}

func logPage(logger zerolog.Logger, page int, res record.Result) {
	switch {
	case res.Status == record.StatusNotFound:
		logger.Warn().Int("page", page).Msg("Page not found - skipping")
	case !res.OK():
		logger.Warn().
			Err(res.Err).
			Int("page", page).
			Str("error_kind", string(res.Kind())).
			Int("attempts", res.Attempts).
			Msg("Page fetch failed - skipping")
	case res.Empty():
		logger.Warn().Int("page", page).Msg("Page returned no records")
	default:
		logger.Debug().
			Int("page", page).
			Int("records", len(res.Records)).
			Msg("Page collected")
	}
}
