// Package db stores chain runs in Postgres through gorm.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"horse.fit/storychain/internal/config"
)

// ErrNoRows is returned by lookups that match nothing.
var ErrNoRows = sql.ErrNoRows

const (
	defaultMaxConns    = 8
	connMaxIdleTime    = 5 * time.Minute
	connMaxLifetime    = 30 * time.Minute
	slowQueryThreshold = time.Second
)

type Pool struct {
	gdb   *gorm.DB
	sqlDB *sql.DB
}

// NewPool opens the chain-run store, sizes the connection pool from cfg and
// migrates the chaining schema. SQL logging goes through log.
func NewPool(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Pool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if !cfg.HasDatabase() {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	gdb, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger:  newGormLogger(log, resolveGormLogLevel(cfg.LogLevel, cfg.Environment)),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm database: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("get gorm sql db: %w", err)
	}
	sizePool(sqlDB, int(cfg.DBMinConns), int(cfg.DBMaxConns))

	pool := &Pool{gdb: gdb, sqlDB: sqlDB}
	if err := pool.Ping(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := pool.autoMigrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("auto-migrate schema: %w", err)
	}
	return pool, nil
}

func sizePool(sqlDB *sql.DB, minConns, maxConns int) {
	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(max(1, min(minConns, maxConns)))
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
}

// InTx runs fn inside a gorm transaction; any error rolls it back.
func (p *Pool) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if p == nil || p.gdb == nil {
		return fmt.Errorf("database pool is not initialized")
	}
	return p.gdb.WithContext(ctx).Transaction(fn)
}

// QueryRow runs a raw single-row query. Scan on the result reports
// ErrNoRows when nothing matched.
func (p *Pool) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	if p == nil || p.gdb == nil {
		return nil
	}
	return p.gdb.WithContext(ctx).Raw(query, args...).Row()
}

func (p *Pool) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}
	return p.gdb.WithContext(ctx).Raw(query, args...).Rows()
}

func (p *Pool) Ping(ctx context.Context) error {
	if p == nil || p.sqlDB == nil {
		return fmt.Errorf("database pool is not initialized")
	}
	return p.sqlDB.PingContext(ctx)
}

func (p *Pool) Close() error {
	if p == nil || p.sqlDB == nil {
		return nil
	}
	return p.sqlDB.Close()
}

func IsNoRows(err error) bool {
	return errors.Is(err, ErrNoRows) || errors.Is(err, gorm.ErrRecordNotFound)
}

// resolveGormLogLevel keeps SQL statements out of the logs unless the app
// runs at debug or trace.
func resolveGormLogLevel(appLogLevel, environment string) logger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(appLogLevel)) {
	case "trace", "debug":
		return logger.Info
	case "", "info", "warn", "warning":
		return logger.Warn
	case "error":
		return logger.Error
	case "silent", "disabled":
		return logger.Silent
	}
	if strings.EqualFold(strings.TrimSpace(environment), "local") {
		return logger.Warn
	}
	return logger.Error
}

func newGormLogger(log zerolog.Logger, level logger.LogLevel) logger.Interface {
	return logger.New(gormLogWriter{log: log.With().Str("component", "gorm").Logger()}, logger.Config{
		SlowThreshold:             slowQueryThreshold,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})
}

// gormLogWriter adapts zerolog to gorm's Printf-style logger.
type gormLogWriter struct {
	log zerolog.Logger
}

func (w gormLogWriter) Printf(format string, args ...any) {
	w.log.Info().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
