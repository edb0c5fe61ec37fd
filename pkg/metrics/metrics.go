// Package metrics exposes the Prometheus metrics of a collection run.
// The metrics themselves are defined next to the code that updates them
// (retry, ratelimit, report, client, cache) and registered via promauto.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Registry is the registerer every lcfetch metric is registered with.
var Registry = prometheus.DefaultRegisterer

// Path is where Serve exposes the metrics.
const Path = "/metrics"

// Handler returns the HTTP handler for the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Server serves Path until Shutdown is called.
type Server struct {
	srv      *http.Server
	listener net.Listener
}

// Listen binds addr and starts serving metrics in the background.
func Listen(addr string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle(Path, Handler())

	s := &Server{
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		listener: ln,
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	log.Info().Str("addr", ln.Addr().String()).Msg("Metrics server listening")

	return s, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Metrics Documentation
//
// Retry Metrics (pkg/retry):
//   - lcfetch_retries_total{error_kind} (Counter): Retry attempts by error kind
//   - lcfetch_retry_backoff_seconds{error_kind} (Histogram): Backoff slept before a retry
//   - lcfetch_retry_exhausted_total{error_kind} (Counter): Units that used every attempt
//
// Rate Limit Metrics (pkg/ratelimit):
//   - lcfetch_rate_limit_wait_seconds (Histogram): Time spent in Acquire
//   - lcfetch_rate_limit_cooldown_waits_total (Counter): Acquisitions delayed by a cooldown
//   - lcfetch_rate_limit_cooldowns_total (Counter): Cooldowns signalled by the server
//
// Collection Metrics (pkg/report):
//   - lcfetch_units_total{collector, outcome} (Counter): Resolved units by collector
//     (pagination, batch-pagination, fetcher) and outcome (succeeded, not_found, failed, empty)
//
// Request Metrics (pkg/client):
//   - lcfetch_requests_total{endpoint, status} (Counter): Requests by host and HTTP status
//   - lcfetch_request_duration_seconds{endpoint} (Histogram): Request duration by host
//   - lcfetch_errors_total{kind} (Counter): Failed requests by error kind
//
// Cache Metrics (pkg/cache):
//   - lcfetch_cache_hits_total{layer} (Counter): Cache hits by layer
//   - lcfetch_cache_misses_total (Counter): Cache misses
//   - lcfetch_cache_size_bytes{layer} (Gauge): Bytes written to the cache
//   - lcfetch_cache_errors_total{operation} (Counter): Cache operation errors
//
// Example Prometheus Queries:
//
//   # Unit failure ratio
//   sum(rate(lcfetch_units_total{outcome="failed"}[5m])) / sum(rate(lcfetch_units_total[5m]))
//
//   # Retries caused by rate limiting
//   rate(lcfetch_retries_total{error_kind="rate_limit"}[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(lcfetch_request_duration_seconds_bucket[5m]))
