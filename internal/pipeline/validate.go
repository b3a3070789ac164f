package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultConfidenceThreshold = 0.7
	DefaultFallbackTopN        = 100
	DefaultJudgeConcurrency    = 4
)

type Mode string

const (
	ModeAdjudicated    Mode = "adjudicated"
	ModeSimilarityOnly Mode = "similarity_only"
)

type ValidateOptions struct {
	ConfidenceThreshold float64
	// MaxValidations caps judge calls to the best-ranked candidates; 0 means all.
	MaxValidations      int
	AdjudicationEnabled bool
	// FallbackTopN is how many ranked candidates similarity-only mode accepts; 0 means all.
	FallbackTopN int
	Concurrency  int
	Progress     ProgressFunc
}

type ValidationOutcome struct {
	Mode        Mode
	Results     []ValidationResult
	Accepted    []Pair
	JudgeCalls  int
	Fallbacks   int
	Interrupted bool
}

type Validator struct {
	adjudicator Adjudicator
	logger      zerolog.Logger
}

func NewValidator(adjudicator Adjudicator, logger zerolog.Logger) *Validator {
	return &Validator{
		adjudicator: adjudicator,
		logger:      logger,
	}
}

// Accepts reports whether a judgement links its pair.
func Accepts(result ValidationResult, confidenceThreshold float64) bool {
	return result.SameStory && result.Confidence >= confidenceThreshold
}

// Validate turns ranked candidates into accepted pairs. With a judge it
// adjudicates the first MaxValidations candidates concurrently and keeps
// results in ranked order; without one it accepts the top FallbackTopN.
//
// Cancelling ctx stops scheduling new judge calls. Candidates that were never
// judged stay unaccepted.
func (v *Validator) Validate(ctx context.Context, candidates []CandidatePair, articles []Article, opts ValidateOptions) ValidationOutcome {
	if !opts.AdjudicationEnabled || v == nil || v.adjudicator == nil {
		return acceptTopCandidates(candidates, opts.FallbackTopN)
	}

	budget := len(candidates)
	if opts.MaxValidations > 0 && opts.MaxValidations < budget {
		budget = opts.MaxValidations
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultJudgeConcurrency
	}

	results := make([]ValidationResult, budget)
	for idx := range results {
		results[idx] = ValidationResult{
			Pair:   candidates[idx],
			Reason: "not adjudicated: run interrupted",
		}
	}

	var (
		progressMu sync.Mutex
		done       int
		cutShort   atomic.Bool
	)
	report := func() {
		progressMu.Lock()
		defer progressMu.Unlock()
		done++
		opts.Progress.report(StageValidation, done, budget)
	}

	var g errgroup.Group
	g.SetLimit(concurrency)
	for idx := 0; idx < budget; idx++ {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			candidate := candidates[idx]
			result := v.adjudicator.Adjudicate(ctx, articles[candidate.I], articles[candidate.J], candidate)
			result.Pair = candidate
			result.Accepted = Accepts(result, opts.ConfidenceThreshold)
			results[idx] = result
			if result.Fallback && ctx.Err() != nil {
				cutShort.Store(true)
				return nil
			}
			report()
			return nil
		})
	}
	_ = g.Wait()

	outcome := ValidationOutcome{
		Mode:        ModeAdjudicated,
		Results:     results,
		Interrupted: cutShort.Load() || done < budget,
	}
	for _, result := range results {
		if result.Adjudicated {
			outcome.JudgeCalls++
		}
		if result.Fallback {
			outcome.Fallbacks++
		}
		if result.Accepted {
			outcome.Accepted = append(outcome.Accepted, result.Pair.Pair())
		}
		v.logger.Debug().
			Int("i", result.Pair.I).
			Int("j", result.Pair.J).
			Bool("same_story", result.SameStory).
			Float64("confidence", result.Confidence).
			Bool("accepted", result.Accepted).
			Str("reason", result.Reason).
			Msg("candidate judged")
	}
	return outcome
}

func acceptTopCandidates(candidates []CandidatePair, topN int) ValidationOutcome {
	limit := len(candidates)
	if topN > 0 && topN < limit {
		limit = topN
	}

	outcome := ValidationOutcome{
		Mode:     ModeSimilarityOnly,
		Results:  make([]ValidationResult, 0, limit),
		Accepted: make([]Pair, 0, limit),
	}
	for _, candidate := range candidates[:limit] {
		outcome.Results = append(outcome.Results, ValidationResult{
			Pair:     candidate,
			Reason:   "accepted by similarity rank",
			Accepted: true,
		})
		outcome.Accepted = append(outcome.Accepted, candidate.Pair())
	}
	return outcome
}
