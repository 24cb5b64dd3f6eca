package assistant

import (
	"context"
	"time"

	"github.com/dpup/prefab/logging"
)

// AnswerCache stores answers by query hash
type AnswerCache interface {
	SetAnswer(queryHash string, answer interface{}, ttl time.Duration) error
	GetAnswer(queryHash string, out interface{}) (bool, error)
}

// CachedAssistant serves repeated queries from cache
type CachedAssistant struct {
	inner Assistant
	cache AnswerCache
	ttl   time.Duration
}

// NewCachedAssistant wraps inner with a cache
func NewCachedAssistant(inner Assistant, cache AnswerCache, ttl time.Duration) *CachedAssistant {
	return &CachedAssistant{inner: inner, cache: cache, ttl: ttl}
}

// Describe checks the cache, then asks the inner assistant and caches the result
func (c *CachedAssistant) Describe(ctx context.Context, query string) (Answer, error) {
	hash := HashQuery(query)

	var cached Answer
	found, err := c.cache.GetAnswer(hash, &cached)
	if err != nil {
		logging.Warnw(ctx, "Assistant cache read failed", "hash", hash[:8], "error", err)
	}
	if found {
		logging.Debugw(ctx, "Assistant cache hit", "hash", hash[:8])
		cached.Cached = true
		return cached, nil
	}

	answer, err := c.inner.Describe(ctx, query)
	if err != nil {
		return answer, err
	}

	if err := c.cache.SetAnswer(hash, answer, c.ttl); err != nil {
		logging.Warnw(ctx, "Failed to cache assistant answer", "error", err)
	}
	return answer, nil
}

// HealthCheck delegates to the inner assistant
func (c *CachedAssistant) HealthCheck(ctx context.Context) error {
	return c.inner.HealthCheck(ctx)
}
