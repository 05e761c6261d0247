package cache

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"time"
)

// AdvisorCache caches llmadvisor review envelopes and enforces a cooldown
// between calls to the external model for the same symbol, adapted from
// the teacher's LLMCache (there caching TradingSignalDB analyses; here
// caching the advisor's confidence-adjustment envelope).
type AdvisorCache struct {
	redis *RedisClient
}

func NewAdvisorCache(redis *RedisClient) *AdvisorCache {
	return &AdvisorCache{redis: redis}
}

// GetReview retrieves a cached advisor envelope for a symbol and data hash.
// dest should be a pointer to an llmadvisor.Envelope; the type is left
// generic here to avoid an import cycle between cache and llmadvisor.
func (c *AdvisorCache) GetReview(ctx context.Context, symbol, dataHash string, dest interface{}) bool {
	if c.redis == nil {
		return false
	}
	cacheKey := fmt.Sprintf("advisor:review:%s:%s", symbol, dataHash)
	return c.redis.Get(ctx, cacheKey, dest) == nil
}

// SetReview caches an advisor envelope for a symbol and data hash.
func (c *AdvisorCache) SetReview(ctx context.Context, symbol, dataHash string, envelope interface{}, ttl time.Duration) error {
	if c.redis == nil {
		return fmt.Errorf("redis client not available")
	}
	cacheKey := fmt.Sprintf("advisor:review:%s:%s", symbol, dataHash)
	return c.redis.Set(ctx, cacheKey, envelope, ttl)
}

// SetCooldown marks a symbol as recently reviewed, to rate-limit advisor calls.
func (c *AdvisorCache) SetCooldown(ctx context.Context, symbol string, ttl time.Duration) error {
	if c.redis == nil {
		return fmt.Errorf("redis client not available")
	}
	cooldownKey := fmt.Sprintf("advisor:cooldown:%s", symbol)
	return c.redis.Set(ctx, cooldownKey, time.Now().Unix(), ttl)
}

// IsInCooldown reports whether a symbol was reviewed within the cooldown window.
func (c *AdvisorCache) IsInCooldown(ctx context.Context, symbol string) bool {
	if c.redis == nil {
		return false
	}
	cooldownKey := fmt.Sprintf("advisor:cooldown:%s", symbol)
	var timestamp int64
	if err := c.redis.Get(ctx, cooldownKey, &timestamp); err != nil {
		return false
	}
	return timestamp > 0
}

// GenerateDataHash hashes arbitrary market context to detect when
// conditions have changed enough to warrant a fresh advisor call.
func GenerateDataHash(data interface{}) string {
	jsonData, _ := json.Marshal(data)
	hash := md5.Sum(jsonData)
	return fmt.Sprintf("%x", hash[:8])
}
