package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var rateLimitCooldownsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "lcfetch_rate_limit_cooldowns_total",
	Help: "Total number of server-signalled cooldowns recorded",
})

// RedisKeyCooldownPrefix prefixes the Redis key holding the cooldown deadline.
const RedisKeyCooldownPrefix = "lcfetch:cooldown:"

// MaxCooldown caps a single server-signalled cooldown.
const MaxCooldown = 5 * time.Minute

// CooldownStore holds the instant before which no request should be sent.
// Implementations must be safe for concurrent use.
type CooldownStore interface {
	// Until returns the cooldown deadline; the zero time means none.
	Until(ctx context.Context) (time.Time, error)

	// Extend moves the deadline to until if that is later than the current one.
	Extend(ctx context.Context, until time.Time) error
}

// MemoryCooldown is an in-process CooldownStore.
type MemoryCooldown struct {
	mu    sync.Mutex
	until time.Time
}

// NewMemoryCooldown creates an empty in-process cooldown store.
func NewMemoryCooldown() *MemoryCooldown {
	return &MemoryCooldown{}
}

// Until implements CooldownStore.
func (m *MemoryCooldown) Until(_ context.Context) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.until, nil
}

// Extend implements CooldownStore.
func (m *MemoryCooldown) Extend(_ context.Context, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if until.After(m.until) {
		m.until = until
	}
	return nil
}

// RedisCooldown shares the cooldown deadline between processes through Redis.
type RedisCooldown struct {
	redis *redis.Client
	key   string
}

// NewRedisCooldown creates a Redis-backed store for the given scope
// (usually the upstream host).
func NewRedisCooldown(redisClient *redis.Client, scope string) *RedisCooldown {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisCooldown{
		redis: redisClient,
		key:   RedisKeyCooldownPrefix + scope,
	}
}

// Until implements CooldownStore.
func (r *RedisCooldown) Until(ctx context.Context) (time.Time, error) {
	ms, err := r.redis.Get(ctx, r.key).Int64()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get cooldown: %w", err)
	}
	return time.UnixMilli(ms), nil
}

// Extend implements CooldownStore. The key expires with the cooldown.
func (r *RedisCooldown) Extend(ctx context.Context, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}

	current, err := r.Until(ctx)
	if err != nil {
		return err
	}
	if !until.After(current) {
		return nil
	}

	if err := r.redis.Set(ctx, r.key, until.UnixMilli(), ttl).Err(); err != nil {
		return fmt.Errorf("store cooldown in redis: %w", err)
	}
	return nil
}

// Tracker turns throttling responses into cooldowns.
type Tracker struct {
	store  CooldownStore
	logger zerolog.Logger
	now    func() time.Time
}

// NewTracker creates a tracker writing into store.
func NewTracker(store CooldownStore, logger zerolog.Logger) *Tracker {
	return &Tracker{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// UpdateFromHeaders records a cooldown when a 429 or 503 response carries a
// Retry-After header (delta seconds or HTTP date). Other responses are ignored.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, statusCode int, headers http.Header) error {
	if statusCode != http.StatusTooManyRequests && statusCode != http.StatusServiceUnavailable {
		return nil
	}

	wait, ok := ParseRetryAfter(headers.Get("Retry-After"), t.now())
	if !ok {
		return nil
	}
	if wait > MaxCooldown {
		wait = MaxCooldown
	}

	until := t.now().Add(wait)
	if err := t.store.Extend(ctx, until); err != nil {
		return err
	}

	rateLimitCooldownsTotal.Inc()
	t.logger.Warn().
		Int("status_code", statusCode).
		Dur("cooldown", wait).
		Time("until", until).
		Msg("Server requested cooldown")
	return nil
}

// ParseRetryAfter parses a Retry-After value relative to now.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs <= 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		d := at.Sub(now)
		if d <= 0 {
			return 0, false
		}
		return d, true
	}
	return 0, false
}
