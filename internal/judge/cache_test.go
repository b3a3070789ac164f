package judge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/storychain/internal/globaltime"
)

type countingProvider struct {
	calls int
	err   error
}

func (p *countingProvider) Name() string { return "counting" }

func (p *countingProvider) Judge(context.Context, Request) (*Verdict, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &Verdict{SameStory: true, Confidence: 0.8, Reason: "same", ProviderName: "counting"}, nil
}

func samplePairRequest() Request {
	return Request{
		First:  ArticleExcerpt{Date: "1 June 2025", Headline: "Flood warning", Content: "river rising"},
		Second: ArticleExcerpt{Date: "2 June 2025", Headline: "Town evacuated", Content: "river burst"},
	}
}

func TestCacheKeyIsOrderIndependent(t *testing.T) {
	t.Parallel()

	req := samplePairRequest()
	swapped := Request{First: req.Second, Second: req.First}
	if CacheKey("openai", "gpt-4.1", req) != CacheKey("openai", "gpt-4.1", swapped) {
		t.Fatalf("expected swapped pair to share a cache key")
	}
	if CacheKey("openai", "gpt-4.1", req) == CacheKey("openai", "gpt-4o", req) {
		t.Fatalf("expected model to be part of the cache key")
	}
}

func TestCachedProviderServesRepeatPairs(t *testing.T) {
	t.Parallel()

	inner := &countingProvider{}
	cache := NewMemoryCache()
	provider := NewCachedProvider(inner, cache, "gpt-4.1", time.Hour, zerolog.Nop())

	first, err := provider.Judge(context.Background(), samplePairRequest())
	if err != nil {
		t.Fatalf("Judge failed: %v", err)
	}
	if first.Cached {
		t.Fatalf("first verdict should not be cached")
	}

	req := samplePairRequest()
	second, err := provider.Judge(context.Background(), Request{First: req.Second, Second: req.First})
	if err != nil {
		t.Fatalf("Judge failed: %v", err)
	}
	if !second.Cached || !second.SameStory || second.Confidence != 0.8 {
		t.Fatalf("unexpected cached verdict: %+v", second)
	}
	if inner.calls != 1 {
		t.Fatalf("unexpected inner calls: got %d want 1", inner.calls)
	}
	if provider.Name() != "counting" {
		t.Fatalf("unexpected provider name: %s", provider.Name())
	}
}

func TestCachedProviderDoesNotCacheErrors(t *testing.T) {
	t.Parallel()

	inner := &countingProvider{err: errors.New("upstream down")}
	cache := NewMemoryCache()
	provider := NewCachedProvider(inner, cache, "gpt-4.1", time.Hour, zerolog.Nop())

	if _, err := provider.Judge(context.Background(), samplePairRequest()); err == nil {
		t.Fatalf("expected error to propagate")
	}
	if cache.Len() != 0 {
		t.Fatalf("expected failed verdict to stay out of the cache")
	}
}

// Not parallel: freezes the process clock.
func TestMemoryCacheExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	restore := globaltime.Freeze(now)
	t.Cleanup(func() { restore() })

	cache := NewMemoryCache()
	if err := cache.Set(context.Background(), "k", Verdict{SameStory: true}, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, ok, _ := cache.Get(context.Background(), "k"); !ok {
		t.Fatalf("expected fresh entry to be present")
	}

	restoreLater := globaltime.Freeze(now.Add(2 * time.Minute))
	defer restoreLater()
	if _, ok, _ := cache.Get(context.Background(), "k"); ok {
		t.Fatalf("expected expired entry to be evicted")
	}
	if cache.Len() != 0 {
		t.Fatalf("expected expired entry to be removed, len=%d", cache.Len())
	}
}

type modelledProvider struct {
	countingProvider
	model string
}

func (p *modelledProvider) ModelName() string { return p.model }

func TestModelNamePrefersProviderModel(t *testing.T) {
	t.Parallel()

	if got := ModelName(NewLocalProvider("http://127.0.0.1:8080", "", ""), "configured"); got != DefaultModel {
		t.Fatalf("unexpected local model: got %q want %q", got, DefaultModel)
	}
	if got := ModelName(&countingProvider{}, " configured "); got != "configured" {
		t.Fatalf("expected fallback for providers without a model, got %q", got)
	}
	if got := ModelName(&modelledProvider{model: " "}, "configured"); got != "configured" {
		t.Fatalf("expected fallback for a blank provider model, got %q", got)
	}
}

func TestCachedProviderKeysByProviderModel(t *testing.T) {
	t.Parallel()

	cache := NewMemoryCache()
	req := samplePairRequest()

	first := NewCachedProvider(&modelledProvider{model: "gpt-4.1"}, cache, "", time.Hour, zerolog.Nop())
	if _, err := first.Judge(context.Background(), req); err != nil {
		t.Fatalf("Judge failed: %v", err)
	}

	other := &modelledProvider{model: "gpt-4o"}
	second := NewCachedProvider(other, cache, "gpt-4.1", time.Hour, zerolog.Nop())
	verdict, err := second.Judge(context.Background(), req)
	if err != nil {
		t.Fatalf("Judge failed: %v", err)
	}
	if verdict.Cached || other.calls != 1 {
		t.Fatalf("expected a different model to miss the cache, cached=%t calls=%d", verdict.Cached, other.calls)
	}
}
