package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"horse.fit/storychain/internal/articles"
	"horse.fit/storychain/internal/config"
	"horse.fit/storychain/internal/db"
	"horse.fit/storychain/internal/globaltime"
	"horse.fit/storychain/internal/pipeline"
)

// chainRequestEnvelope holds the optional keys that may sit next to
// "articles" in a POST /chains body.
type chainRequestEnvelope struct {
	Options *config.ChainProfile `json:"options"`
	Persist bool                 `json:"persist"`
	Source  string               `json:"source"`
}

type chainResponse struct {
	RunUUID string `json:"run_uuid,omitempty"`
	articles.ChainOutput
}

func (s *Server) handleHealth(c echo.Context) error {
	database := "disabled"
	if s.store != nil {
		database = "ok"
		if err := s.store.Ping(c.Request().Context()); err != nil {
			s.logger.Warn().Err(err).Msg("database ping failed")
			database = "unavailable"
		}
	}

	judgeMode := string(pipeline.ModeSimilarityOnly)
	if s.opts.JudgeConfigured && s.settings.AdjudicationEnabled {
		judgeMode = string(pipeline.ModeAdjudicated)
	}

	return success(c, map[string]any{
		"service":      "storychain",
		"time":         globaltime.UTC(),
		"database":     database,
		"default_mode": judgeMode,
	})
}

func (s *Server) handleChain(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return fail(c, http.StatusBadRequest, "Failed to read request body", nil)
	}

	var envelope chainRequestEnvelope
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return failValidation(c, map[string]string{"body": "must be valid JSON"})
		}
	}

	source := strings.TrimSpace(envelope.Source)
	if source == "" {
		source = "api"
	}

	inputs, err := articles.LoadJSON(bytes.NewReader(body), source)
	if err != nil {
		if articles.IsSchemaError(err) {
			return failValidation(c, map[string]string{"articles": err.Error()})
		}
		s.logger.Error().Err(err).Msg("decode article table failed")
		return internalError(c, "Failed to read article table")
	}

	settings, err := envelope.Options.Apply(s.settings)
	if err != nil {
		return failValidation(c, map[string]string{"options": err.Error()})
	}
	if envelope.Persist && s.store == nil {
		return failUnavailable(c, "Run storage is not configured")
	}

	opts := pipeline.OptionsFromSettings(settings)
	opts.Concurrency = s.opts.Concurrency

	ctx := c.Request().Context()
	if s.opts.ChainTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.ChainTimeout)
		defer cancel()
	}

	result, err := s.chainer.ChainStories(ctx, inputs, opts)
	if err != nil {
		return failValidation(c, map[string]string{"options": err.Error()})
	}

	response := chainResponse{ChainOutput: articles.BuildOutput(result)}
	if !envelope.Persist {
		return success(c, response)
	}

	record, err := db.BuildChainRunRecord(result, source, settings)
	if err != nil {
		s.logger.Error().Err(err).Msg("build chain run record failed")
		return internalError(c, "Failed to store chain run")
	}
	// The request context may already be cancelled after an interrupted run.
	runUUID, err := s.store.SaveChainRun(context.WithoutCancel(c.Request().Context()), record)
	if err != nil {
		s.logger.Error().Err(err).Msg("save chain run failed")
		return internalError(c, "Failed to store chain run")
	}
	response.RunUUID = runUUID
	return successWithStatus(c, http.StatusCreated, response)
}

func (s *Server) handleRuns(c echo.Context) error {
	if s.store == nil {
		return failUnavailable(c, "Run storage is not configured")
	}

	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultRunPageSize, 1, maxRunPageSize)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}

	runs, err := s.store.ListChainRuns(c.Request().Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("list chain runs failed")
		return internalError(c, "Failed to load chain runs")
	}
	return success(c, map[string]any{
		"items": runs,
		"limit": limit,
	})
}

func (s *Server) handleRunDetail(c echo.Context) error {
	if s.store == nil {
		return failUnavailable(c, "Run storage is not configured")
	}

	runUUID := strings.TrimSpace(c.Param("run_uuid"))
	if _, err := uuid.Parse(runUUID); err != nil {
		return failValidation(c, map[string]string{"run_uuid": "must be a valid UUID"})
	}

	detail, err := s.store.GetChainRun(c.Request().Context(), runUUID)
	if err != nil {
		if db.IsNoRows(err) {
			return failNotFound(c, "Chain run not found")
		}
		s.logger.Error().Err(err).Str("run_uuid", runUUID).Msg("load chain run failed")
		return internalError(c, "Failed to load chain run")
	}
	return success(c, detail)
}
