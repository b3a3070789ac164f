// Package httpapi serves story chaining over HTTP with jsend envelopes.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"horse.fit/storychain/internal/config"
	"horse.fit/storychain/internal/db"
	"horse.fit/storychain/internal/pipeline"
)

const (
	defaultRunPageSize = 20
	maxRunPageSize     = 200
	defaultBodyLimit   = 16 << 20
)

// Chainer runs the chaining pipeline. *pipeline.Service implements it.
type Chainer interface {
	ChainStories(ctx context.Context, inputs []pipeline.ArticleInput, opts pipeline.ChainOptions) (pipeline.ChainResult, error)
}

// RunStore persists chain runs. *db.Pool implements it.
type RunStore interface {
	SaveChainRun(ctx context.Context, record db.ChainRunRecord) (string, error)
	ListChainRuns(ctx context.Context, limit int) ([]db.ChainRunSummary, error)
	GetChainRun(ctx context.Context, runUUID string) (*db.ChainRunDetail, error)
	Ping(ctx context.Context) error
}

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// ChainTimeout bounds one POST /chains run; 0 leaves it to the client.
	ChainTimeout time.Duration
	MaxBodyBytes int64
	// Concurrency is the judge worker count used for API runs.
	Concurrency int
	// JudgeConfigured tells health whether runs can be adjudicated.
	JudgeConfigured bool
}

type Server struct {
	chainer  Chainer
	store    RunStore
	settings config.ChainSettings
	logger   zerolog.Logger
	opts     Options
}

// NewServer wires the API. store may be nil, in which case persistence and
// the run endpoints report 503.
func NewServer(chainer Chainer, store RunStore, settings config.ChainSettings, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	if opts.Port <= 0 {
		opts.Port = 8090
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		// Adjudicated runs can take minutes.
		opts.WriteTimeout = 15 * time.Minute
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultBodyLimit
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = pipeline.DefaultJudgeConcurrency
	}
	opts.Host = host

	return &Server{
		chainer:  chainer,
		store:    store,
		settings: settings,
		logger:   logger,
		opts:     opts,
	}
}

func (s *Server) routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit(strconv.FormatInt(s.opts.MaxBodyBytes, 10)))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := s.logger.Info()
			if v.Error != nil {
				event = s.logger.Error().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.POST("/chains", s.handleChain)
	api.GET("/runs", s.handleRuns)
	api.GET("/runs/:run_uuid", s.handleRunDetail)
	return e
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.chainer == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := s.routes()
	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().
		Str("addr", addr).
		Bool("persistence", s.store != nil).
		Bool("judge", s.opts.JudgeConfigured).
		Msg("storychain api started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("storychain api stopped")
	return nil
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if text, ok := he.Message.(string); ok && strings.TrimSpace(text) != "" {
			message = text
		} else if text := http.StatusText(status); text != "" {
			message = text
		}
	}

	if status >= 500 {
		s.logger.Error().Err(err).Str("uri", c.Request().URL.Path).Msg("unhandled api error")
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message, nil)
}

func parsePositiveInt(raw string, defaultValue, minValue, maxValue int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	if value < minValue || value > maxValue {
		return 0, fmt.Errorf("must be between %d and %d", minValue, maxValue)
	}
	return value, nil
}
