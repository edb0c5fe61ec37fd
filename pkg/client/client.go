// Package client provides the transport the collectors fetch through: one
// shared, keep-alive HTTP client with status classification, cooldown
// tracking and an optional response cache.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/HariharPal/LC-Fetch/pkg/cache"
	"github.com/HariharPal/LC-Fetch/pkg/ratelimit"
	"github.com/HariharPal/LC-Fetch/pkg/record"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for transport operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lcfetch_requests_total",
		Help: "Total upstream requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lcfetch_request_duration_seconds",
		Help:    "Upstream request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lcfetch_errors_total",
		Help: "Total upstream errors by kind",
	}, []string{"kind"})
)

// DefaultUserAgent is sent when Config.UserAgent is empty.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) lc-fetch/1.0"

// MaxBodyBytes bounds how much of a response body is read.
const MaxBodyBytes = 16 << 20

// Response is a fully read upstream response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Cached     bool
}

// Config holds the client configuration.
type Config struct {
	// UserAgent header
	UserAgent string

	// Cookie is sent verbatim as the Cookie header. Obtaining it (logging in)
	// is the caller's business.
	Cookie string

	// CSRFToken is sent as x-csrftoken when set.
	CSRFToken string

	// Timeout per request attempt
	Timeout time.Duration

	// Cache stores successful responses; nil disables caching.
	Cache cache.Store

	// CacheTTL is how long cached responses stay fresh.
	CacheTTL time.Duration

	// Tracker records server-signalled cooldowns; nil disables tracking.
	Tracker *ratelimit.Tracker

	// MaxIdleConnsPerHost sizes the keep-alive pool; match it to the worker count.
	MaxIdleConnsPerHost int
}

// DefaultConfig returns a configuration without cache or cooldown tracking.
func DefaultConfig() Config {
	return Config{
		UserAgent:           DefaultUserAgent,
		Timeout:             10 * time.Second,
		CacheTTL:            1 * time.Hour,
		MaxIdleConnsPerHost: 8,
	}
}

// Client is safe for concurrent use by all workers of a run.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must not be negative (got %v)", cfg.Timeout)
	}
	if cfg.Cache != nil && cfg.CacheTTL <= 0 {
		return nil, fmt.Errorf("cache_ttl must be > 0 when a cache is configured")
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.MaxIdleConnsPerHost <= 0 {
		cfg.MaxIdleConnsPerHost = DefaultConfig().MaxIdleConnsPerHost
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		config: cfg,
		logger: log.With().Str("component", "client").Logger(),
	}, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.Do(req, nil)
}

// PostJSON performs a POST with payload encoded as JSON.
func (c *Client) PostJSON(ctx context.Context, rawURL string, payload any) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.Do(req, body)
}

// Do performs one request attempt. body must be the bytes already attached
// to req (used for the cache key); pass nil for requests without a body.
//
// A 2xx response is returned as is. A 404 returns record.ErrNotFound. Every
// other failure is a *record.TransportError classified by kind.
func (c *Client) Do(req *http.Request, body []byte) (*Response, error) {
	ctx := req.Context()
	endpoint := req.URL.Path

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	var cacheKey cache.Key
	if c.config.Cache != nil {
		cacheKey = cache.NewKey(req.Method, req.URL.String(), body)
		entry, err := c.config.Cache.Get(ctx, cacheKey)
		switch {
		case err == nil:
			c.logger.Debug().Str("endpoint", endpoint).Msg("Serving response from cache")
			requestsTotal.WithLabelValues(endpoint, "cached").Inc()
			header := http.Header{}
			if entry.ContentType != "" {
				header.Set("Content-Type", entry.ContentType)
			}
			return &Response{StatusCode: entry.StatusCode, Header: header, Body: entry.Data, Cached: true}, nil
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if req.Header.Get("Referer") == "" {
		req.Header.Set("Referer", req.URL.Scheme+"://"+req.URL.Host+"/")
	}
	if c.config.Cookie != "" {
		req.Header.Set("Cookie", c.config.Cookie)
	}
	if c.config.CSRFToken != "" {
		req.Header.Set("x-csrftoken", c.config.CSRFToken)
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Msg("Executing request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.Canceled) {
			return nil, fmt.Errorf("request %s: %w", endpoint, ctxErr)
		}
		errorsTotal.WithLabelValues(string(record.KindNetwork)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		return nil, &record.TransportError{
			Kind:    record.KindNetwork,
			Message: "request failed",
			Err:     err,
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		errorsTotal.WithLabelValues(string(record.KindNetwork)).Inc()
		return nil, &record.TransportError{
			StatusCode: resp.StatusCode,
			Kind:       record.KindNetwork,
			Message:    "read response body",
			Err:        err,
		}
	}

	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if c.config.Tracker != nil {
		if err := c.config.Tracker.UpdateFromHeaders(ctx, resp.StatusCode, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update cooldown from headers")
		}
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", endpoint, record.ErrNotFound)
	}

	if kind := ClassifyStatus(resp.StatusCode); kind != "" {
		errorsTotal.WithLabelValues(string(kind)).Inc()
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status_code", resp.StatusCode).
			Str("error_kind", string(kind)).
			Msg("Upstream request error")
		return nil, &record.TransportError{
			StatusCode: resp.StatusCode,
			Kind:       kind,
			Message:    resp.Status,
		}
	}

	out := &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}

	if c.config.Cache != nil {
		entry := cache.NewEntry(resp.StatusCode, resp.Header.Get("Content-Type"), data, c.config.CacheTTL)
		if err := c.config.Cache.Set(ctx, cacheKey, entry); err != nil {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Failed to cache response")
		}
	}

	return out, nil
}

// ClassifyStatus maps a non-2xx status to an error kind; "" means success.
func ClassifyStatus(status int) record.ErrorKind {
	switch {
	case status >= 200 && status < 300:
		return ""
	case status == http.StatusNotFound:
		return record.KindNotFound
	case status == http.StatusTooManyRequests:
		return record.KindRateLimit
	case status >= 500:
		return record.KindServer
	default:
		return record.KindClient
	}
}

// Host returns the host of rawURL, used as the cooldown scope.
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Host
}
