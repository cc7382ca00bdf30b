// Package rediscache provides a MetricsCollector that keeps pipeline metrics
// in Redis with a TTL, so short-lived processes (CLI runs, cron exports) can
// still surface counters to a shared dashboard.
package rediscache

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "metric:"

// Collector implements auditx.MetricsCollector over a Redis instance. Counter
// increments use INCRBY, gauges SET, timings RPUSH of millisecond values;
// every touched key gets its TTL refreshed.
type Collector struct {
	client *redis.Client
	ttl    time.Duration

	// collector methods carry no context; writes use this one.
	ctx context.Context
}

// Config holds configuration for the Redis collector.
type Config struct {
	// Addr is the Redis address (host:port). Required.
	Addr string

	// Password is optional.
	Password string

	// DB selects the Redis logical database.
	DB int

	// TTL is applied to every metric key. Defaults to 24h.
	TTL time.Duration
}

// New creates a Redis-backed metrics collector and verifies connectivity.
func New(ctx context.Context, cfg Config) (*Collector, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &Collector{client: client, ttl: ttl, ctx: ctx}, nil
}

// IncrementCounter implements auditx.MetricsCollector.
func (c *Collector) IncrementCounter(name string, tags map[string]string) {
	c.IncrementCounterBy(name, 1, tags)
}

// IncrementCounterBy implements auditx.MetricsCollector.
func (c *Collector) IncrementCounterBy(name string, value int64, tags map[string]string) {
	key := c.key(name, tags)
	pipe := c.client.Pipeline()
	pipe.IncrBy(c.ctx, key, value)
	pipe.Expire(c.ctx, key, c.ttl)
	pipe.Exec(c.ctx)
}

// SetGauge implements auditx.MetricsCollector.
func (c *Collector) SetGauge(name string, value float64, tags map[string]string) {
	c.client.Set(c.ctx, c.key(name, tags), value, c.ttl)
}

// RecordTiming implements auditx.MetricsCollector.
func (c *Collector) RecordTiming(name string, duration time.Duration, tags map[string]string) {
	key := c.key(name, tags)
	pipe := c.client.Pipeline()
	pipe.RPush(c.ctx, key, duration.Milliseconds())
	pipe.Expire(c.ctx, key, c.ttl)
	pipe.Exec(c.ctx)
}

// Flush implements auditx.MetricsCollector. Redis writes are synchronous, so
// there is nothing buffered to push.
func (c *Collector) Flush() error {
	return nil
}

// Close releases the Redis connection.
func (c *Collector) Close() error {
	return c.client.Close()
}

// CounterValue reads a counter back, mainly for tests and dashboards.
func (c *Collector) CounterValue(ctx context.Context, name string, tags map[string]string) (int64, error) {
	v, err := c.client.Get(ctx, c.key(name, tags)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return v, err
}

// key builds "metric:<name>[|tag=value...]" with sorted tags so the same
// logical series always maps to the same key.
func (c *Collector) key(name string, tags map[string]string) string {
	if len(tags) == 0 {
		return keyPrefix + name
	}
	parts := make([]string, 0, len(tags))
	for k, v := range tags {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)
	return keyPrefix + name + "|" + strings.Join(parts, "|")
}
