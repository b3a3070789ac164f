package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Environment:      "local",
		LogLevel:         "info",
		DBMinConns:       1,
		DBMaxConns:       8,
		JudgeProvider:    "openai",
		JudgeModel:       "gpt-4.1",
		JudgeTimeout:     45 * time.Second,
		JudgeRetries:     1,
		JudgeConcurrency: 4,
		ChainSettings: ChainSettings{
			SimilarityThreshold: 0.25,
			ConfidenceThreshold: 0.7,
			DecayWindowDays:     30,
			AdjudicationEnabled: true,
			FallbackTopN:        100,
			KeywordCount:        5,
			MaxFeatures:         1000,
			ExcerptChars:        500,
			SkipCrossLanguage:   true,
		},
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	if cfg.HasDatabase() {
		t.Fatalf("expected no database without DATABASE_URL")
	}
}

func TestValidateRejectsOutOfRangeThresholds(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.SimilarityThreshold = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected similarity threshold > 1 to fail")
	}

	cfg = validConfig()
	cfg.ConfidenceThreshold = -0.1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected negative confidence threshold to fail")
	}

	cfg = validConfig()
	cfg.JudgeConcurrency = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected zero concurrency to fail")
	}
}

func TestLoadReadsChainSettingsFromEnv(t *testing.T) {
	t.Setenv("CHAIN_SIMILARITY_THRESHOLD", "0.3")
	t.Setenv("CHAIN_ADJUDICATION_ENABLED", "false")
	t.Setenv("JUDGE_CONCURRENCY", "2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SimilarityThreshold != 0.3 {
		t.Fatalf("unexpected similarity threshold: %v", cfg.SimilarityThreshold)
	}
	if cfg.AdjudicationEnabled {
		t.Fatalf("expected adjudication to be disabled")
	}
	if cfg.JudgeConcurrency != 2 {
		t.Fatalf("unexpected judge concurrency: %d", cfg.JudgeConcurrency)
	}
	if cfg.ConfidenceThreshold != 0.7 {
		t.Fatalf("unexpected default confidence threshold: %v", cfg.ConfidenceThreshold)
	}
}

func TestChainProfileOverridesOnlySetKeys(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "profile.yaml")
	body := "similarity_threshold: 0.4\nmax_validations: 25\nadjudication_enabled: false\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}

	profile, err := LoadChainProfile(path)
	if err != nil {
		t.Fatalf("LoadChainProfile failed: %v", err)
	}

	base := validConfig().ChainSettings
	got, err := profile.Apply(base)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if got.SimilarityThreshold != 0.4 || got.MaxValidations != 25 || got.AdjudicationEnabled {
		t.Fatalf("unexpected overridden settings: %+v", got)
	}
	if got.ConfidenceThreshold != base.ConfidenceThreshold || got.KeywordCount != base.KeywordCount {
		t.Fatalf("expected untouched keys to keep defaults: %+v", got)
	}
}

func TestChainProfileRejectsInvalidValues(t *testing.T) {
	t.Parallel()

	profile, err := ParseChainProfile([]byte("keyword_count: 0\n"))
	if err != nil {
		t.Fatalf("ParseChainProfile failed: %v", err)
	}
	base := validConfig().ChainSettings
	got, err := profile.Apply(base)
	if err == nil {
		t.Fatalf("expected invalid keyword_count to fail")
	}
	if got != base {
		t.Fatalf("expected original settings on error")
	}
}
