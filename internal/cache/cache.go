// Package cache implements the short-term cache (C8): a key-addressed
// store of recent validated plans, TTL'd and size-bounded,
// tolerant of a backing-store outage. Only plans derived from
// successful validations may ever be stored here.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/entool-router/sqlcore/internal/schema"
)

// Stats tracks cache activity for observability. Counters are
// best-effort and reset only on process restart.
type Stats struct {
	Hits   int64
	Misses int64
	Sets   int64
	Errors int64
}

// Cache is the short-term cache. It prefers Redis when configured and
// reachable, and degrades to an in-process map on any Redis failure —
// a miss from the degraded path is still silent to the caller.
type Cache struct {
	mu            sync.Mutex
	redisClient   *redis.Client
	local         map[string]localEntry
	ttl           time.Duration
	maxValueBytes int
	stats         Stats
}

type localEntry struct {
	plan      schema.Plan
	expiresAt time.Time
}

// Config configures the short-term cache.
type Config struct {
	RedisAddr     string
	TTLSeconds    int
	MaxValueBytes int
}

// New builds a Cache. If cfg.RedisAddr is empty, the cache runs
// entirely in-process.
func New(cfg Config) *Cache {
	ttl := time.Duration(cfg.TTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 1800 * time.Second
	}
	maxBytes := cfg.MaxValueBytes
	if maxBytes <= 0 {
		maxBytes = 1048576
	}

	c := &Cache{
		local:         make(map[string]localEntry),
		ttl:           ttl,
		maxValueBytes: maxBytes,
	}

	if cfg.RedisAddr != "" {
		c.redisClient = redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  2 * time.Second,
			WriteTimeout: 2 * time.Second,
			MaxRetries:   3,
		})
	}

	return c
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Key computes the SHA-256 of the normalized (lowercased,
// whitespace-collapsed) natural-language query.
func Key(nlQuery string) string {
	normalized := whitespaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(nlQuery)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Get returns a cached Plan for key, or nil on any miss — including a
// backing-store error, which is treated as a miss and never surfaced.
func (c *Cache) Get(ctx context.Context, key string) *schema.Plan {
	if c.redisClient != nil {
		val, err := c.redisClient.Get(ctx, key).Result()
		if err == nil {
			var plan schema.Plan
			if jsonErr := json.Unmarshal([]byte(val), &plan); jsonErr == nil {
				c.recordHit()
				return &plan
			}
		}
		if err != nil && err != redis.Nil {
			c.recordError()
		}
		// Fall through to the local map on Redis miss or error — the
		// local map may still hold a recently-set entry that hasn't
		// propagated, which is acceptable for a best-effort cache.
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.local[key]
	if !ok || time.Now().After(entry.expiresAt) {
		c.stats.Misses++
		return nil
	}
	c.stats.Hits++
	plan := entry.plan
	return &plan
}

// Set stores plan under key, subject to the configured TTL and size
// ceiling. Oversized payloads are skipped silently — still reported as
// a success, since the request that triggered the write is unaffected.
func (c *Cache) Set(ctx context.Context, key string, plan schema.Plan) {
	data, err := json.Marshal(plan)
	if err != nil {
		c.recordError()
		return
	}
	if len(data) > c.maxValueBytes {
		return
	}

	if c.redisClient != nil {
		if err := c.redisClient.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.recordError()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.local[key] = localEntry{plan: plan, expiresAt: time.Now().Add(c.ttl)}
	c.stats.Sets++
}

func (c *Cache) recordHit() {
	c.mu.Lock()
	c.stats.Hits++
	c.mu.Unlock()
}

func (c *Cache) recordError() {
	c.mu.Lock()
	c.stats.Errors++
	c.mu.Unlock()
}

// StatsSnapshot returns a copy of the current counters.
func (c *Cache) StatsSnapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Close releases the Redis connection, if any.
func (c *Cache) Close() error {
	if c.redisClient != nil {
		return c.redisClient.Close()
	}
	return nil
}
