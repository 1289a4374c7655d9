package comparables

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"propnest/internal/property/models"
	"propnest/pkg/platform/circuit"
)

const (
	comparablesKeyPrefix = "comparables:v1:"

	// defaultProbeInterval spaces the pings sent to Redis while the breaker
	// is open.
	defaultProbeInterval = 5 * time.Second
)

// RedisCache is a read-through cache in front of a Corpus. Cache failures
// fall back to the underlying corpus; they never fail the price check.
// After repeated failures the breaker opens and reads bypass Redis. At most
// one read per probe interval pings it, until it answers again.
type RedisCache struct {
	next    Corpus
	client  *redis.Client
	ttl     time.Duration
	logger  *slog.Logger
	breaker *circuit.Breaker

	mu            sync.Mutex
	probeInterval time.Duration
	nextProbe     time.Time
}

func NewRedisCache(next Corpus, client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{
		next:    next,
		client:  client,
		ttl:     ttl,
		logger:  logger,
		breaker: circuit.New("comparables-cache"),

		probeInterval: defaultProbeInterval,
	}
}

func cacheKey(city string, category models.Category) string {
	return comparablesKeyPrefix + strings.ToLower(strings.TrimSpace(city)) + ":" + string(category)
}

func (c *RedisCache) Recent(ctx context.Context, city string, category models.Category) ([]Comparable, error) {
	if c.breaker.IsOpen() {
		if c.probeDue() {
			c.record(ctx, c.client.Ping(ctx).Err())
		}
		return c.next.Recent(ctx, city, category)
	}

	key := cacheKey(city, category)
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		c.record(ctx, nil)
		var cached []Comparable
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		c.logger.WarnContext(ctx, "discarding undecodable comparables cache entry", "key", key)
	case errors.Is(err, redis.Nil):
		c.record(ctx, nil)
	default:
		c.logger.WarnContext(ctx, "comparables cache read failed", "key", key, "error", err)
		if c.record(ctx, err) {
			return c.next.Recent(ctx, city, category)
		}
	}

	out, err := c.next.Recent(ctx, city, category)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return out, nil
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "comparables cache write failed", "key", key, "error", err)
		c.record(ctx, err)
	}
	return out, nil
}

// Invalidate drops the cached sample for a city and category, e.g. after a
// listing there is approved or leaves APPROVED. It is attempted even while
// the breaker is open so a recovered cache does not serve a stale sample.
func (c *RedisCache) Invalidate(ctx context.Context, city string, category models.Category) error {
	err := c.client.Del(ctx, cacheKey(city, category)).Err()
	c.record(ctx, err)
	return err
}

// record feeds one Redis outcome to the breaker and reports whether the
// cache should be bypassed.
func (c *RedisCache) record(ctx context.Context, err error) bool {
	if err == nil {
		_, change := c.breaker.RecordSuccess()
		if change.Closed {
			c.logger.InfoContext(ctx, "comparables cache recovered", "breaker", c.breaker.Name())
		}
		return false
	}
	bypass, change := c.breaker.RecordFailure()
	if change.Opened {
		c.deferProbe()
		c.logger.WarnContext(ctx, "comparables cache disabled after repeated failures",
			"breaker", c.breaker.Name(),
			"error", err,
		)
	}
	return bypass
}

// probeDue reports whether this read should ping Redis and, if so, claims
// the probe for the current interval.
func (c *RedisCache) probeDue() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	if now.Before(c.nextProbe) {
		return false
	}
	c.nextProbe = now.Add(c.probeInterval)
	return true
}

func (c *RedisCache) deferProbe() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextProbe = time.Now().Add(c.probeInterval)
}
