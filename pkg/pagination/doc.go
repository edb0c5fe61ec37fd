// Package pagination collects records from a ranked listing, one page at a time.
//
// The listing is addressed by an explicit inclusive page range; there is no
// early stop on an empty page. Every page goes through the retry policy and
// the shared rate limiter, and its outcome is counted in a report.
//
// Example usage:
//
//	c := pagination.NewCollector(fetcher, decoder, pagination.Config{
//		Policy:    retry.DefaultPolicy(),
//		Limiter:   ratelimit.NewLimiter(50*time.Millisecond, logger),
//		PageField: "page",
//	})
//	records, rep, err := c.Collect(ctx, 1, 20)
//
// Two collectors are provided:
//   - Collector fetches strictly sequentially (one page in flight), which is
//     what a shared interactive session requires
//   - BatchCollector spreads pages over a worker pool and buffers
//     out-of-order pages so the output is still page-ascending
//
// A page that fails to fetch or decode is logged, counted and skipped; it
// never aborts the run. Only an invalid page range is returned as an error.
package pagination
