package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"horse.fit/storychain/internal/config"
	"horse.fit/storychain/internal/judge"
	"horse.fit/storychain/internal/pipeline"
)

// judgeConfigured reports whether the configured provider has what it needs
// to make calls. Without it, runs fall back to similarity-only validation.
func judgeConfigured(cfg *config.Config) bool {
	if cfg == nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(cfg.JudgeProvider)) {
	case "local":
		return strings.TrimSpace(cfg.JudgeEndpoint) != ""
	case "openai", "":
		return strings.TrimSpace(cfg.OpenAIAPIKey) != "" || strings.TrimSpace(cfg.JudgeEndpoint) != ""
	default:
		return true
	}
}

// buildAdjudicator resolves the judge provider, wraps it with the verdict
// cache (Redis when configured, in-memory otherwise) and the retrying
// adapter. The returned close func releases the cache connection.
func buildAdjudicator(ctx context.Context, cfg *config.Config, excerptChars int, logger zerolog.Logger) (pipeline.Adjudicator, func(), error) {
	noop := func() {}
	if !judgeConfigured(cfg) {
		logger.Warn().
			Str("provider", cfg.JudgeProvider).
			Msg("judge is not configured; runs use similarity-only validation")
		return nil, noop, nil
	}

	registry := judge.NewRegistryFromSettings(judge.Settings{
		Provider: cfg.JudgeProvider,
		Endpoint: cfg.JudgeEndpoint,
		Model:    cfg.JudgeModel,
		APIKey:   cfg.OpenAIAPIKey,
	})
	provider, err := registry.Provider(cfg.JudgeProvider)
	if err != nil {
		return nil, noop, fmt.Errorf("resolve judge provider: %w", err)
	}

	var (
		cache   judge.VerdictCache = judge.NewMemoryCache()
		closeFn                    = noop
	)
	if cfg.HasRedis() {
		redisCache, err := judge.NewRedisCache(ctx, judge.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis verdict cache unavailable; using in-memory cache")
		} else {
			cache = redisCache
			closeFn = func() { _ = redisCache.Close() }
		}
	}

	model := judge.ModelName(provider, cfg.JudgeModel)
	cached := judge.NewCachedProvider(provider, cache, model, cfg.JudgeCacheTTL, logger)
	adapter := pipeline.NewJudgeAdapter(cached, pipeline.AdapterOptions{
		Timeout:       cfg.JudgeTimeout,
		Retries:       cfg.JudgeRetries,
		RetryBackoff:  pipeline.DefaultJudgeRetryBackoff,
		RatePerSecond: cfg.JudgeRatePerSecond,
		ExcerptChars:  excerptChars,
	}, logger)

	logger.Info().
		Str("provider", provider.Name()).
		Str("model", model).
		Bool("redis_cache", cfg.HasRedis()).
		Msg("judge configured")
	return adapter, closeFn, nil
}
