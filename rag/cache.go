package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/knowflow/internal/metrics"
)

// EnhancementCache 查询增强结果缓存。
// 本地内存层 + 可选 Redis 层：本地层降低重复请求延迟，
// Redis 层在多实例间共享。Redis 故障静默降级到本地层。
type EnhancementCache struct {
	entries map[string]*cacheEntry
	mu      sync.RWMutex
	ttl     time.Duration

	rdb       redis.UniversalClient
	logger    *zap.Logger
	collector *metrics.Collector
}

type cacheEntry struct {
	text      string
	expiresAt time.Time
}

// NewEnhancementCache 创建增强缓存。rdb 为 nil 时仅用本地层。
func NewEnhancementCache(ttl time.Duration, rdb redis.UniversalClient, collector *metrics.Collector, logger *zap.Logger) *EnhancementCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &EnhancementCache{
		entries:   make(map[string]*cacheEntry),
		ttl:       ttl,
		rdb:       rdb,
		logger:    logger.With(zap.String("component", "enhancement_cache")),
		collector: collector,
	}
}

// cacheKey 缓存键由模式、模型与查询文本共同决定。
func cacheKey(mode RewriteMode, model, query string) string {
	sum := sha256.Sum256([]byte(string(mode) + "|" + model + "|" + query))
	return "knowflow:enh:" + hex.EncodeToString(sum[:])
}

// Get 查询缓存，命中返回增强后的文本。
func (c *EnhancementCache) Get(ctx context.Context, key string) (string, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		c.hit()
		return entry.text, true
	}

	if c.rdb != nil {
		text, err := c.rdb.Get(ctx, key).Result()
		if err == nil {
			// 回填本地层
			c.setLocal(key, text)
			c.hit()
			return text, true
		}
		if err != redis.Nil {
			c.logger.Warn("Redis 缓存读取失败", zap.Error(err))
		}
	}

	c.miss()
	return "", false
}

// Set 写入缓存。
func (c *EnhancementCache) Set(ctx context.Context, key, text string) {
	c.setLocal(key, text)

	if c.rdb != nil {
		if err := c.rdb.Set(ctx, key, text, c.ttl).Err(); err != nil {
			c.logger.Warn("Redis 缓存写入失败", zap.Error(err))
		}
	}
}

func (c *EnhancementCache) setLocal(key, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &cacheEntry{
		text:      text,
		expiresAt: time.Now().Add(c.ttl),
	}
}

func (c *EnhancementCache) hit() {
	if c.collector != nil {
		c.collector.RecordCacheHit("enhancement")
	}
}

func (c *EnhancementCache) miss() {
	if c.collector != nil {
		c.collector.RecordCacheMiss("enhancement")
	}
}
