package judge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/storychain/internal/globaltime"
)

// VerdictCache stores verdicts by pair key.
type VerdictCache interface {
	Get(ctx context.Context, key string) (*Verdict, bool, error)
	Set(ctx context.Context, key string, verdict Verdict, ttl time.Duration) error
}

// CachedProvider serves repeated pairs from a VerdictCache. Cache failures
// are logged and never fail the adjudication.
type CachedProvider struct {
	inner  Provider
	cache  VerdictCache
	model  string
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedProvider keys entries by the model inner reports; model is only
// used for providers that do not report one.
func NewCachedProvider(inner Provider, cache VerdictCache, model string, ttl time.Duration, logger zerolog.Logger) *CachedProvider {
	return &CachedProvider{
		inner:  inner,
		cache:  cache,
		model:  ModelName(inner, model),
		ttl:    ttl,
		logger: logger,
	}
}

func (p *CachedProvider) Name() string {
	return p.inner.Name()
}

func (p *CachedProvider) Judge(ctx context.Context, req Request) (*Verdict, error) {
	key := CacheKey(p.inner.Name(), p.model, req)

	if cached, ok, err := p.cache.Get(ctx, key); err != nil {
		p.logger.Warn().Err(err).Str("key", key).Msg("judge cache lookup failed")
	} else if ok {
		cached.Cached = true
		return cached, nil
	}

	verdict, err := p.inner.Judge(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := p.cache.Set(ctx, key, *verdict, p.ttl); err != nil {
		p.logger.Warn().Err(err).Str("key", key).Msg("judge cache store failed")
	}
	return verdict, nil
}

// CacheKey hashes provider, model, and both excerpts. The two articles are
// ordered by their own digest so (a,b) and (b,a) share a key.
func CacheKey(provider, model string, req Request) string {
	first := excerptDigest(req.First)
	second := excerptDigest(req.Second)
	if second < first {
		first, second = second, first
	}

	h := sha256.New()
	h.Write([]byte(provider))
	h.Write([]byte{0})
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(first))
	h.Write([]byte(second))
	return "storychain:verdict:" + hex.EncodeToString(h.Sum(nil))
}

func excerptDigest(excerpt ArticleExcerpt) string {
	h := sha256.New()
	h.Write([]byte(excerpt.Date))
	h.Write([]byte{0})
	h.Write([]byte(excerpt.Headline))
	h.Write([]byte{0})
	h.Write([]byte(excerpt.Content))
	return hex.EncodeToString(h.Sum(nil))
}

type memoryEntry struct {
	verdict   Verdict
	expiresAt time.Time
}

// MemoryCache is a process-local VerdictCache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*Verdict, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && globaltime.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false, nil
	}
	verdict := entry.verdict
	return &verdict, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, verdict Verdict, ttl time.Duration) error {
	entry := memoryEntry{verdict: verdict}
	if ttl > 0 {
		entry.expiresAt = globaltime.Now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
