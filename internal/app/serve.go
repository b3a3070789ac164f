package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/storychain/internal/cli"
	"horse.fit/storychain/internal/db"
	"horse.fit/storychain/internal/httpapi"
	"horse.fit/storychain/internal/pipeline"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	host := fs.String("host", "0.0.0.0", "Host interface to bind")
	port := fs.Int("port", 8090, "HTTP port")
	readTimeout := fs.Duration("read-timeout", 30*time.Second, "HTTP read timeout")
	writeTimeout := fs.Duration("write-timeout", 15*time.Minute, "HTTP write timeout")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")
	chainTimeout := fs.Duration("chain-timeout", 10*time.Minute, "Upper bound for one chaining request (0 = none)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *port <= 0 || *port > 65535 {
		fmt.Fprintln(os.Stderr, "--port must be between 1 and 65535")
		return 2
	}

	cfg, logger, err := loadRuntime(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, stop := signalContext()
	defer stop()

	var store httpapi.RunStore
	if cfg.HasDatabase() {
		dbCtx, dbCancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := db.NewPool(dbCtx, cfg, logger)
		dbCancel()
		if err != nil {
			logger.Error().Err(err).Msg("serve failed to connect to database")
			fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
			return 1
		}
		defer pool.Close()
		store = pool
	} else {
		logger.Warn().Msg("DATABASE_URL is not set; chain runs will not be persisted")
	}

	adjudicator, closeJudge, err := buildAdjudicator(ctx, cfg, cfg.ExcerptChars, logger)
	if err != nil {
		logger.Error().Err(err).Msg("judge setup failed")
		fmt.Fprintf(os.Stderr, "Judge setup failed: %v\n", err)
		return 1
	}
	defer closeJudge()

	srv := httpapi.NewServer(pipeline.NewService(adjudicator, logger), store, cfg.ChainSettings, logger, httpapi.Options{
		Host:            *host,
		Port:            *port,
		ReadTimeout:     *readTimeout,
		WriteTimeout:    *writeTimeout,
		ShutdownTimeout: *shutdownTimeout,
		ChainTimeout:    *chainTimeout,
		Concurrency:     cfg.JudgeConcurrency,
		JudgeConfigured: adjudicator != nil,
	})

	if err := srv.Start(ctx); err != nil {
		logger.Error().Err(err).Str("host", *host).Int("port", *port).Msg("server failed")
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
		return 1
	}
	return 0
}
