// Package pipeline groups news articles that cover the same ongoing story
// into story chains: lexical candidates, judge validation, then union-find.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/storychain/internal/globaltime"
)

var ErrInvalidOptions = errors.New("invalid chain options")

type ChainOptions struct {
	SimilarityThreshold float64
	ConfidenceThreshold float64
	DecayWindowDays     float64
	MaxValidations      int
	AdjudicationEnabled bool
	FallbackTopN        int
	KeywordCount        int
	MaxFeatures         int
	Concurrency         int
	SkipCrossLanguage   bool
	Progress            ProgressFunc
}

func DefaultChainOptions() ChainOptions {
	return ChainOptions{
		SimilarityThreshold: DefaultSimilarityThreshold,
		ConfidenceThreshold: DefaultConfidenceThreshold,
		DecayWindowDays:     DefaultDecayWindowDays,
		AdjudicationEnabled: true,
		FallbackTopN:        DefaultFallbackTopN,
		KeywordCount:        DefaultKeywordCount,
		MaxFeatures:         DefaultMaxFeatures,
		Concurrency:         DefaultJudgeConcurrency,
		SkipCrossLanguage:   true,
	}
}

type ChainResult struct {
	Articles    []Article
	Candidates  []CandidatePair
	Validations []ValidationResult
	Accepted    []Pair
	Chains      [][]int
	Stats       ChainStats
	Mode        Mode
	JudgeCalls  int
	Fallbacks   int
	Interrupted bool
	StartedAt   time.Time
	Elapsed     time.Duration
}

type Service struct {
	validator *Validator
	logger    zerolog.Logger
}

// NewService builds the orchestrator. adjudicator may be nil, in which case
// every run uses similarity-only validation.
func NewService(adjudicator Adjudicator, logger zerolog.Logger) *Service {
	return &Service{
		validator: NewValidator(adjudicator, logger),
		logger:    logger,
	}
}

// ChainStories runs the three stages and always returns a full partition of
// the input. Only invalid options produce an error.
func (s *Service) ChainStories(ctx context.Context, inputs []ArticleInput, options ChainOptions) (ChainResult, error) {
	if s == nil || s.validator == nil {
		return ChainResult{}, fmt.Errorf("pipeline service is not initialized")
	}
	opts, err := normalizeChainOptions(options)
	if err != nil {
		return ChainResult{}, err
	}

	started := globaltime.UTC()
	result := ChainResult{
		Mode:      ModeSimilarityOnly,
		StartedAt: started,
	}
	if opts.AdjudicationEnabled && s.validator.adjudicator != nil {
		result.Mode = ModeAdjudicated
	}

	n := len(inputs)
	opts.Progress.report(StagePrepare, 0, n)
	result.Articles = prepareArticles(inputs, prepareOptions{detectLanguage: opts.SkipCrossLanguage}, s.logger)

	space := BuildVectorSpace(normalizedCorpus(result.Articles), VectorOptions{MaxFeatures: opts.MaxFeatures})
	for i := range result.Articles {
		result.Articles[i].Keywords = space.Keywords(i, opts.KeywordCount)
	}
	opts.Progress.report(StagePrepare, n, n)

	result.Candidates = FindCandidates(result.Articles, space, CandidateOptions{
		SimilarityThreshold: opts.SimilarityThreshold,
		DecayWindowDays:     opts.DecayWindowDays,
		SkipCrossLanguage:   opts.SkipCrossLanguage,
	})
	opts.Progress.report(StageCandidates, len(result.Candidates), len(result.Candidates))
	s.logger.Info().
		Int("articles", n).
		Int("vocabulary", space.VocabularySize()).
		Int("candidates", len(result.Candidates)).
		Float64("similarity_threshold", opts.SimilarityThreshold).
		Msg("candidate pairs found")

	if len(result.Candidates) > 0 {
		outcome := s.validator.Validate(ctx, result.Candidates, result.Articles, ValidateOptions{
			ConfidenceThreshold: opts.ConfidenceThreshold,
			MaxValidations:      opts.MaxValidations,
			AdjudicationEnabled: opts.AdjudicationEnabled,
			FallbackTopN:        opts.FallbackTopN,
			Concurrency:         opts.Concurrency,
			Progress:            opts.Progress,
		})
		result.Mode = outcome.Mode
		result.Validations = outcome.Results
		result.Accepted = outcome.Accepted
		result.JudgeCalls = outcome.JudgeCalls
		result.Fallbacks = outcome.Fallbacks
		result.Interrupted = outcome.Interrupted
		s.logger.Info().
			Str("mode", string(outcome.Mode)).
			Int("considered", len(outcome.Results)).
			Int("accepted", len(outcome.Accepted)).
			Int("judge_calls", outcome.JudgeCalls).
			Int("fallbacks", outcome.Fallbacks).
			Bool("interrupted", outcome.Interrupted).
			Msg("candidate validation completed")
	}

	if len(result.Accepted) == 0 {
		result.Chains = SingletonChains(n)
	} else {
		result.Chains = BuildChains(result.Accepted, n)
	}
	opts.Progress.report(StageChains, len(result.Chains), n)

	result.Stats = ComputeStats(result.Chains)
	result.Elapsed = globaltime.Since(started)
	opts.Progress.report(StageDone, n, n)

	s.logger.Info().
		Int("articles", n).
		Int("chains", result.Stats.Chains).
		Int("singletons", result.Stats.Singletons).
		Int("max_size", result.Stats.MaxSize).
		Dur("elapsed", result.Elapsed).
		Msg("story chaining completed")
	return result, nil
}

func normalizeChainOptions(opts ChainOptions) (ChainOptions, error) {
	if !unitInterval(opts.SimilarityThreshold) {
		return opts, fmt.Errorf("%w: similarity threshold %v outside [0,1]", ErrInvalidOptions, opts.SimilarityThreshold)
	}
	if !unitInterval(opts.ConfidenceThreshold) {
		return opts, fmt.Errorf("%w: confidence threshold %v outside [0,1]", ErrInvalidOptions, opts.ConfidenceThreshold)
	}
	if opts.MaxValidations < 0 {
		return opts, fmt.Errorf("%w: max validations must be >= 0", ErrInvalidOptions)
	}
	if opts.FallbackTopN < 0 {
		return opts, fmt.Errorf("%w: fallback top-n must be >= 0", ErrInvalidOptions)
	}
	if opts.DecayWindowDays <= 0 || math.IsNaN(opts.DecayWindowDays) {
		opts.DecayWindowDays = DefaultDecayWindowDays
	}
	if opts.KeywordCount <= 0 {
		opts.KeywordCount = DefaultKeywordCount
	}
	if opts.MaxFeatures <= 0 {
		opts.MaxFeatures = DefaultMaxFeatures
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultJudgeConcurrency
	}
	return opts, nil
}

func unitInterval(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}
