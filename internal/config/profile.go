package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ChainProfile is a YAML file (or JSON object) of per-run overrides. Unset
// keys keep the environment defaults.
//
//	similarity_threshold: 0.3
//	max_validations: 200
//	adjudication_enabled: false
type ChainProfile struct {
	SimilarityThreshold *float64 `yaml:"similarity_threshold" json:"similarity_threshold,omitempty"`
	ConfidenceThreshold *float64 `yaml:"confidence_threshold" json:"confidence_threshold,omitempty"`
	DecayWindowDays     *float64 `yaml:"decay_window_days" json:"decay_window_days,omitempty"`
	MaxValidations      *int     `yaml:"max_validations" json:"max_validations,omitempty"`
	AdjudicationEnabled *bool    `yaml:"adjudication_enabled" json:"adjudication_enabled,omitempty"`
	FallbackTopN        *int     `yaml:"fallback_top_n" json:"fallback_top_n,omitempty"`
	KeywordCount        *int     `yaml:"keyword_count" json:"keyword_count,omitempty"`
	MaxFeatures         *int     `yaml:"max_features" json:"max_features,omitempty"`
	ExcerptChars        *int     `yaml:"excerpt_chars" json:"excerpt_chars,omitempty"`
	SkipCrossLanguage   *bool    `yaml:"skip_cross_language" json:"skip_cross_language,omitempty"`
}

// LoadChainProfile reads a YAML profile. An empty path returns an empty profile.
func LoadChainProfile(path string) (*ChainProfile, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return &ChainProfile{}, nil
	}

	raw, err := os.ReadFile(trimmed)
	if err != nil {
		return nil, fmt.Errorf("read chain profile %s: %w", trimmed, err)
	}
	return ParseChainProfile(raw)
}

func ParseChainProfile(raw []byte) (*ChainProfile, error) {
	var profile ChainProfile
	if err := yaml.Unmarshal(raw, &profile); err != nil {
		return nil, fmt.Errorf("parse chain profile: %w", err)
	}
	return &profile, nil
}

// Apply returns settings with the profile overrides layered on top.
func (p *ChainProfile) Apply(settings ChainSettings) (ChainSettings, error) {
	if p == nil {
		return settings, nil
	}
	out := settings
	if p.SimilarityThreshold != nil {
		out.SimilarityThreshold = *p.SimilarityThreshold
	}
	if p.ConfidenceThreshold != nil {
		out.ConfidenceThreshold = *p.ConfidenceThreshold
	}
	if p.DecayWindowDays != nil {
		out.DecayWindowDays = *p.DecayWindowDays
	}
	if p.MaxValidations != nil {
		out.MaxValidations = *p.MaxValidations
	}
	if p.AdjudicationEnabled != nil {
		out.AdjudicationEnabled = *p.AdjudicationEnabled
	}
	if p.FallbackTopN != nil {
		out.FallbackTopN = *p.FallbackTopN
	}
	if p.KeywordCount != nil {
		out.KeywordCount = *p.KeywordCount
	}
	if p.MaxFeatures != nil {
		out.MaxFeatures = *p.MaxFeatures
	}
	if p.ExcerptChars != nil {
		out.ExcerptChars = *p.ExcerptChars
	}
	if p.SkipCrossLanguage != nil {
		out.SkipCrossLanguage = *p.SkipCrossLanguage
	}
	if err := out.Validate(); err != nil {
		return settings, fmt.Errorf("invalid chain profile: %w", err)
	}
	return out, nil
}
