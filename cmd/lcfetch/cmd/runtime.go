package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/HariharPal/LC-Fetch/pkg/cache"
	"github.com/HariharPal/LC-Fetch/pkg/client"
	"github.com/HariharPal/LC-Fetch/pkg/collector"
	"github.com/HariharPal/LC-Fetch/pkg/metrics"
	"github.com/HariharPal/LC-Fetch/pkg/ratelimit"
	"github.com/HariharPal/LC-Fetch/pkg/record"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
)

// runtime holds the per-invocation resources shared by a command: one
// HTTP client, one cooldown store and optionally Redis and a metrics server.
type runtime struct {
	settings settings
	client   *client.Client
	cooldown ratelimit.CooldownStore
	redis    *redis.Client
	metrics  *metrics.Server
}

func newRuntime(ctx context.Context, s settings) (*runtime, error) {
	rt := &runtime{settings: s}

	ccfg := client.DefaultConfig()
	ccfg.Cookie = s.Cookie
	ccfg.CSRFToken = s.CSRFToken
	if s.Timeout > 0 {
		ccfg.Timeout = s.Timeout
	}
	if s.Workers > 0 {
		ccfg.MaxIdleConnsPerHost = s.Workers
	}

	if s.RedisAddr != "" {
		rt.redis = redis.NewClient(&redis.Options{Addr: s.RedisAddr})
		if err := rt.redis.Ping(ctx).Err(); err != nil {
			rt.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", s.RedisAddr, err)
		}
		log.Info().Str("addr", s.RedisAddr).Msg("Connected to Redis")

		ccfg.Cache = cache.NewManager(rt.redis)
		ccfg.CacheTTL = s.CacheTTL
		rt.cooldown = ratelimit.NewRedisCooldown(rt.redis, client.Host(s.BaseURL))
	} else {
		rt.cooldown = ratelimit.NewMemoryCooldown()
	}
	ccfg.Tracker = ratelimit.NewTracker(rt.cooldown, log.With().Str("component", "cooldown").Logger())

	c, err := client.New(ccfg)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.client = c

	if s.MetricsAddr != "" {
		srv, err := metrics.Listen(s.MetricsAddr)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.metrics = srv
		log.Info().Str("addr", srv.Addr()).Str("path", metrics.Path).Msg("Serving metrics")
	}

	return rt, nil
}

// engine builds a collector engine sharing the runtime's cooldown store.
func (rt *runtime) engine(cfg collector.Config, opts ...collector.Option) (*collector.Engine, error) {
	opts = append([]collector.Option{collector.WithCooldown(rt.cooldown)}, opts...)
	return collector.New(cfg, opts...)
}

// Close releases the runtime's resources.
func (rt *runtime) Close() {
	if rt.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rt.metrics.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("Metrics server shutdown failed")
		}
	}
	if rt.redis != nil {
		_ = rt.redis.Close()
	}
}

// progress renders resolved units on stderr. A nil progress is silent.
type progress struct {
	bar *progressbar.ProgressBar
}

func newProgress(quiet bool, total int, description string) *progress {
	if quiet || total <= 0 {
		return nil
	}
	return &progress{bar: progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)}
}

// sink is registered with collector.WithSink.
func (p *progress) sink(record.Result) {
	if p == nil {
		return
	}
	_ = p.bar.Add(1)
}

func (p *progress) finish() {
	if p == nil {
		return
	}
	_ = p.bar.Finish()
}
