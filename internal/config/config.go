package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// DatabaseURL is optional; chain runs are only persisted when it is set.
	DatabaseURL string `envconfig:"DATABASE_URL"`
	DBMinConns  int32  `envconfig:"STORYCHAIN_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"STORYCHAIN_DB_MAX_CONNS" default:"8"`

	JudgeProvider      string        `envconfig:"JUDGE_PROVIDER" default:"openai"`
	JudgeEndpoint      string        `envconfig:"JUDGE_ENDPOINT" default:""`
	JudgeModel         string        `envconfig:"JUDGE_MODEL" default:"gpt-4.1"`
	OpenAIAPIKey       string        `envconfig:"OPENAI_API_KEY"`
	JudgeTimeout       time.Duration `envconfig:"JUDGE_TIMEOUT" default:"45s"`
	JudgeRetries       int           `envconfig:"JUDGE_RETRIES" default:"1"`
	JudgeConcurrency   int           `envconfig:"JUDGE_CONCURRENCY" default:"4"`
	JudgeRatePerSecond float64       `envconfig:"JUDGE_RATE_PER_SECOND" default:"0"`

	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	JudgeCacheTTL time.Duration `envconfig:"JUDGE_CACHE_TTL" default:"168h"`

	ChainSettings
}

// ChainSettings holds the default chaining knobs. Profile files and CLI
// flags override them per run.
type ChainSettings struct {
	SimilarityThreshold float64 `envconfig:"CHAIN_SIMILARITY_THRESHOLD" default:"0.25" yaml:"similarity_threshold" json:"similarity_threshold"`
	ConfidenceThreshold float64 `envconfig:"CHAIN_CONFIDENCE_THRESHOLD" default:"0.7" yaml:"confidence_threshold" json:"confidence_threshold"`
	DecayWindowDays     float64 `envconfig:"CHAIN_DECAY_WINDOW_DAYS" default:"30" yaml:"decay_window_days" json:"decay_window_days"`
	MaxValidations      int     `envconfig:"CHAIN_MAX_VALIDATIONS" default:"0" yaml:"max_validations" json:"max_validations"`
	AdjudicationEnabled bool    `envconfig:"CHAIN_ADJUDICATION_ENABLED" default:"true" yaml:"adjudication_enabled" json:"adjudication_enabled"`
	FallbackTopN        int     `envconfig:"CHAIN_FALLBACK_TOP_N" default:"100" yaml:"fallback_top_n" json:"fallback_top_n"`
	KeywordCount        int     `envconfig:"CHAIN_KEYWORDS" default:"5" yaml:"keyword_count" json:"keyword_count"`
	MaxFeatures         int     `envconfig:"CHAIN_MAX_FEATURES" default:"1000" yaml:"max_features" json:"max_features"`
	ExcerptChars        int     `envconfig:"CHAIN_EXCERPT_CHARS" default:"500" yaml:"excerpt_chars" json:"excerpt_chars"`
	SkipCrossLanguage   bool    `envconfig:"CHAIN_SKIP_CROSS_LANGUAGE" default:"true" yaml:"skip_cross_language" json:"skip_cross_language"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBMinConns < 0 {
		return fmt.Errorf("STORYCHAIN_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("STORYCHAIN_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("STORYCHAIN_DB_MIN_CONNS (%d) cannot exceed STORYCHAIN_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if strings.TrimSpace(c.JudgeProvider) == "" {
		return fmt.Errorf("JUDGE_PROVIDER is required")
	}
	if c.JudgeTimeout <= 0 {
		return fmt.Errorf("JUDGE_TIMEOUT must be > 0")
	}
	if c.JudgeRetries < 0 {
		return fmt.Errorf("JUDGE_RETRIES must be >= 0")
	}
	if c.JudgeConcurrency < 1 {
		return fmt.Errorf("JUDGE_CONCURRENCY must be >= 1")
	}
	if c.JudgeRatePerSecond < 0 {
		return fmt.Errorf("JUDGE_RATE_PER_SECOND must be >= 0")
	}
	if c.RedisDB < 0 {
		return fmt.Errorf("REDIS_DB must be >= 0")
	}
	return c.ChainSettings.Validate()
}

func (s ChainSettings) Validate() error {
	if !inUnitRange(s.SimilarityThreshold) {
		return fmt.Errorf("CHAIN_SIMILARITY_THRESHOLD must be within [0,1]")
	}
	if !inUnitRange(s.ConfidenceThreshold) {
		return fmt.Errorf("CHAIN_CONFIDENCE_THRESHOLD must be within [0,1]")
	}
	if s.DecayWindowDays <= 0 || math.IsNaN(s.DecayWindowDays) {
		return fmt.Errorf("CHAIN_DECAY_WINDOW_DAYS must be > 0")
	}
	if s.MaxValidations < 0 {
		return fmt.Errorf("CHAIN_MAX_VALIDATIONS must be >= 0")
	}
	if s.FallbackTopN < 0 {
		return fmt.Errorf("CHAIN_FALLBACK_TOP_N must be >= 0")
	}
	if s.KeywordCount < 1 {
		return fmt.Errorf("CHAIN_KEYWORDS must be >= 1")
	}
	if s.MaxFeatures < 1 {
		return fmt.Errorf("CHAIN_MAX_FEATURES must be >= 1")
	}
	if s.ExcerptChars < 1 {
		return fmt.Errorf("CHAIN_EXCERPT_CHARS must be >= 1")
	}
	return nil
}

// HasDatabase reports whether chain runs can be persisted.
func (c *Config) HasDatabase() bool {
	return c != nil && strings.TrimSpace(c.DatabaseURL) != ""
}

// HasRedis reports whether the judge verdict cache should use Redis.
func (c *Config) HasRedis() bool {
	return c != nil && strings.TrimSpace(c.RedisAddr) != ""
}

func inUnitRange(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}
