package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/portfolio-tracker/internal/config"
	"github.com/portfolio-tracker/internal/logging"
	"github.com/portfolio-tracker/internal/source"
)

// PriceCache holds recently resolved reference quotes and daily close
// series so repeated aggregation cycles do not refetch them. Cache failures
// are soft: a broken cache degrades to a miss, never to an error.
type PriceCache interface {
	GetQuote(ctx context.Context, key string) (source.PriceQuote, bool)
	SetQuote(ctx context.Context, key string, quote source.PriceQuote)
	GetHistory(ctx context.Context, key string) ([]source.Close, bool)
	SetHistory(ctx context.Context, key string, closes []source.Close)
}

// QuoteKey builds the cache key for a resolved reference quote.
func QuoteKey(sourceName, asset, baseFiat, baseCrypto string) string {
	return strings.Join([]string{"quote", sourceName, asset, baseFiat, baseCrypto}, ":")
}

// HistoryKey builds the cache key for a daily close series.
func HistoryKey(sourceName, asset, baseFiat string) string {
	return strings.Join([]string{"history", sourceName, asset, baseFiat}, ":")
}

// RedisPriceCache is the Redis-backed PriceCache.
type RedisPriceCache struct {
	redis      *RedisCache
	priceTTL   time.Duration
	historyTTL time.Duration
}

// NewRedisPriceCache creates a PriceCache on top of a Redis connection.
func NewRedisPriceCache(redis *RedisCache, priceTTL, historyTTL time.Duration) *RedisPriceCache {
	return &RedisPriceCache{
		redis:      redis,
		priceTTL:   priceTTL,
		historyTTL: historyTTL,
	}
}

// GetQuote implements PriceCache.
func (c *RedisPriceCache) GetQuote(ctx context.Context, key string) (source.PriceQuote, bool) {
	var quote source.PriceQuote
	if !c.get(ctx, key, &quote) {
		return source.PriceQuote{}, false
	}
	return quote, true
}

// SetQuote implements PriceCache.
func (c *RedisPriceCache) SetQuote(ctx context.Context, key string, quote source.PriceQuote) {
	c.set(ctx, key, quote, c.priceTTL)
}

// GetHistory implements PriceCache.
func (c *RedisPriceCache) GetHistory(ctx context.Context, key string) ([]source.Close, bool) {
	var closes []source.Close
	if !c.get(ctx, key, &closes) {
		return nil, false
	}
	return closes, true
}

// SetHistory implements PriceCache.
func (c *RedisPriceCache) SetHistory(ctx context.Context, key string, closes []source.Close) {
	c.set(ctx, key, closes, c.historyTTL)
}

func (c *RedisPriceCache) get(ctx context.Context, key string, out interface{}) bool {
	raw, err := c.redis.Get(ctx, key)
	if err != nil {
		if !IsMiss(err) {
			logging.FromContext(ctx).WithError(err).WithField("key", key).Warn("Cache read failed")
		}
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		logging.FromContext(ctx).WithError(err).WithField("key", key).Warn("Cache entry malformed")
		return false
	}
	return true
}

func (c *RedisPriceCache) set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		logging.FromContext(ctx).WithError(err).WithField("key", key).Warn("Cache encode failed")
		return
	}
	if err := c.redis.Set(ctx, key, string(raw), ttl); err != nil {
		logging.FromContext(ctx).WithError(err).WithField("key", key).Warn("Cache write failed")
	}
}

// MemoryPriceCache is the in-process PriceCache used when no Redis backend
// is configured.
type MemoryPriceCache struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	priceTTL   time.Duration
	historyTTL time.Duration
	now        func() time.Time
}

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// NewMemoryPriceCache creates an in-memory PriceCache.
func NewMemoryPriceCache(priceTTL, historyTTL time.Duration) *MemoryPriceCache {
	return &MemoryPriceCache{
		entries:    make(map[string]memoryEntry),
		priceTTL:   priceTTL,
		historyTTL: historyTTL,
		now:        time.Now,
	}
}

// GetQuote implements PriceCache.
func (c *MemoryPriceCache) GetQuote(ctx context.Context, key string) (source.PriceQuote, bool) {
	var quote source.PriceQuote
	if !c.get(key, &quote) {
		return source.PriceQuote{}, false
	}
	return quote, true
}

// SetQuote implements PriceCache.
func (c *MemoryPriceCache) SetQuote(ctx context.Context, key string, quote source.PriceQuote) {
	c.set(key, quote, c.priceTTL)
}

// GetHistory implements PriceCache.
func (c *MemoryPriceCache) GetHistory(ctx context.Context, key string) ([]source.Close, bool) {
	var closes []source.Close
	if !c.get(key, &closes) {
		return nil, false
	}
	return closes, true
}

// SetHistory implements PriceCache.
func (c *MemoryPriceCache) SetHistory(ctx context.Context, key string, closes []source.Close) {
	c.set(key, closes, c.historyTTL)
}

func (c *MemoryPriceCache) get(key string, out interface{}) bool {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.now().After(entry.expiresAt) {
		return false
	}
	return json.Unmarshal(entry.payload, out) == nil
}

func (c *MemoryPriceCache) set(key string, value interface{}, ttl time.Duration) {
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.mu.Lock()
	c.entries[key] = memoryEntry{payload: payload, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

// FromConfig builds the configured PriceCache: Redis when a host is set,
// in-memory otherwise. A Redis connection failure degrades to memory with a
// warning rather than aborting startup.
func FromConfig(cfg *config.CacheConfig) PriceCache {
	if cfg.RedisEnabled() {
		redisCache, err := NewRedisCache(cfg)
		if err == nil {
			return NewRedisPriceCache(redisCache, cfg.PriceTTL, cfg.HistoryTTL)
		}
		logging.GetGlobalLogger().WithError(err).Warn(
			fmt.Sprintf("Redis cache unavailable at %s:%s, using in-memory cache", cfg.RedisHost, cfg.RedisPort))
	}
	return NewMemoryPriceCache(cfg.PriceTTL, cfg.HistoryTTL)
}
