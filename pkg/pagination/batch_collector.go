package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/HariharPal/LC-Fetch/pkg/record"
	"github.com/HariharPal/LC-Fetch/pkg/report"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// BatchConfig holds batch collector configuration.
type BatchConfig struct {
	Config

	// MaxConcurrency is the maximum number of pages in flight.
	MaxConcurrency int
}

// DefaultBatchConfig returns a conservative batch configuration.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		Config:         Config{AttemptTimeout: DefaultAttemptTimeout},
		MaxConcurrency: 4,
	}
}

// pageResult pairs a resolved page with its number.
type pageResult struct {
	page int
	res  record.Result
}

// BatchCollector fetches pages over a worker pool and releases them in
// ascending page order.
type BatchCollector struct {
	fetcher PageFetcher
	decoder PageDecoder
	config  BatchConfig
	logger  zerolog.Logger
}

// NewBatchCollector creates a concurrent collector.
func NewBatchCollector(fetcher PageFetcher, decoder PageDecoder, config BatchConfig) *BatchCollector {
	if fetcher == nil || decoder == nil {
		panic("page fetcher and decoder cannot be nil")
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = DefaultBatchConfig().MaxConcurrency
	}
	return &BatchCollector{
		fetcher: fetcher,
		decoder: decoder,
		config:  config,
		logger:  log.With().Str("component", "batch-pagination").Logger(),
	}
}

// Collect fetches pages minPage..maxPage inclusive and returns records in
// page order. Pages left unfetched because ctx was cancelled resolve as failures.
func (bc *BatchCollector) Collect(ctx context.Context, minPage, maxPage int) ([]record.Record, report.Snapshot, error) {
	if err := ValidateRange(minPage, maxPage); err != nil {
		return nil, report.Snapshot{}, err
	}

	start := time.Now()
	totalPages := maxPage - minPage + 1

	bc.logger.Info().
		Int("min_page", minPage).
		Int("max_page", maxPage).
		Int("workers", bc.config.MaxConcurrency).
		Msg("Starting parallel page collection")

	pageQueue := make(chan int, totalPages)
	for page := minPage; page <= maxPage; page++ {
		pageQueue <- page
	}
	close(pageQueue)

	// Sized to the range so workers never block on a slow consumer.
	pageResults := make(chan pageResult, totalPages)

	var g errgroup.Group
	for i := 0; i < bc.config.MaxConcurrency; i++ {
		workerID := i
		g.Go(func() error {
			bc.worker(ctx, pageQueue, pageResults, workerID)
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(pageResults)
	}()

	rep := report.New("batch-pagination")
	var records []record.Record
	pending := make(map[int]record.Result)
	next := minPage

	for pr := range pageResults {
		pending[pr.page] = pr.res

		// Release every page that is now contiguous with the output.
		for {
			res, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)

			rep.Observe(res)
			records = append(records, res.Records...)
			logPage(bc.logger, next, res)
			if bc.config.OnPage != nil {
				bc.config.OnPage(next, res)
			}
			next++
		}
	}

	snap := rep.Snapshot()
	if next <= maxPage {
		// Unreachable unless a worker exits without resolving its pages.
		return records, snap, fmt.Errorf("pages %d..%d never resolved", next, maxPage)
	}

	bc.logger.Info().
		Int("records", len(records)).
		Str("report", snap.String()).
		Dur("duration", time.Since(start)).
		Msg("Parallel page collection complete")

	if err := ctx.Err(); err != nil {
		return records, snap, err
	}
	return records, snap, nil
}

// worker resolves pages from the queue. Once ctx is done it drains the queue
// as failures so every page still resolves exactly once.
func (bc *BatchCollector) worker(ctx context.Context, pageQueue <-chan int, results chan<- pageResult, workerID int) {
	pagesProcessed := 0

	for page := range pageQueue {
		if err := ctx.Err(); err != nil {
			results <- pageResult{
				page: page,
				res:  record.Failure(record.PageKey(page), fmt.Errorf("page not dispatched: %w", err), 0),
			}
			continue
		}

		res := fetchPage(ctx, bc.fetcher, bc.decoder, bc.config.Config, page)
		results <- pageResult{page: page, res: res}
		pagesProcessed++
	}

	if pagesProcessed > 0 {
		bc.logger.Debug().
			Int("worker_id", workerID).
			Int("pages_processed", pagesProcessed).
			Msg("Worker completed")
	}
}
