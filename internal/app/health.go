package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/storychain/internal/cli"
	"horse.fit/storychain/internal/db"
	"horse.fit/storychain/internal/judge"
)

// runHealth checks every configured dependency. Unconfigured optional
// dependencies are reported as skipped, not failed.
func runHealth(args []string) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Second, "Ping timeout per dependency")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, logger, err := loadRuntime(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	failed := false

	if cfg.HasDatabase() {
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		pool, err := db.NewPool(ctx, cfg, logger)
		cancel()
		if err != nil {
			logger.Error().Err(err).Msg("database health check failed")
			fmt.Printf("fail: database: %v\n", err)
			failed = true
		} else {
			_ = pool.Close()
			fmt.Println("ok: database ping successful")
		}
	} else {
		fmt.Println("skip: database (DATABASE_URL not set)")
	}

	if cfg.HasRedis() {
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		cache, err := judge.NewRedisCache(ctx, judge.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		cancel()
		if err != nil {
			logger.Error().Err(err).Msg("redis health check failed")
			fmt.Printf("fail: redis: %v\n", err)
			failed = true
		} else {
			_ = cache.Close()
			fmt.Println("ok: redis ping successful")
		}
	} else {
		fmt.Println("skip: redis (REDIS_ADDR not set)")
	}

	if judgeConfigured(cfg) {
		registry := judge.NewRegistryFromSettings(judge.Settings{
			Provider: cfg.JudgeProvider,
			Endpoint: cfg.JudgeEndpoint,
			Model:    cfg.JudgeModel,
			APIKey:   cfg.OpenAIAPIKey,
		})
		if _, err := registry.Provider(cfg.JudgeProvider); err != nil {
			fmt.Printf("fail: judge: %v\n", err)
			failed = true
		} else {
			fmt.Printf("ok: judge provider %s model %s (registered: %s)\n", registry.DefaultProvider(), cfg.JudgeModel, strings.Join(registry.ProviderNames(), ","))
		}
	} else {
		fmt.Printf("skip: judge (%s provider not configured; similarity-only mode)\n", cfg.JudgeProvider)
	}

	if failed {
		return 1
	}
	logger.Info().Dur("timeout", *timeout).Msg("health check passed")
	return 0
}
