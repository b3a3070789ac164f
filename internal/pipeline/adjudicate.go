package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"horse.fit/storychain/internal/judge"
	"horse.fit/storychain/internal/reader"
)

const (
	DefaultJudgeTimeout      = 45 * time.Second
	DefaultJudgeRetries      = 1
	DefaultJudgeRetryBackoff = 2 * time.Second
	DefaultExcerptChars      = reader.DefaultExcerptChars

	// FallbackConfidence is reported when the judge could not answer.
	FallbackConfidence = 0.5
)

// ValidationResult is the judgement for one candidate pair.
type ValidationResult struct {
	Pair        CandidatePair `json:"pair"`
	SameStory   bool          `json:"same_story"`
	Confidence  float64       `json:"confidence"`
	Reason      string        `json:"reason"`
	Accepted    bool          `json:"accepted"`
	Adjudicated bool          `json:"adjudicated"`
	Fallback    bool          `json:"fallback"`
	Provider    string        `json:"provider,omitempty"`
	Cached      bool          `json:"cached,omitempty"`
	Attempts    int           `json:"attempts,omitempty"`
	LatencyMs   int64         `json:"latency_ms,omitempty"`
}

// Adjudicator decides whether two articles report the same story. It never
// fails: problems surface as a fallback result.
type Adjudicator interface {
	Adjudicate(ctx context.Context, first, second Article, pair CandidatePair) ValidationResult
}

type AdapterOptions struct {
	Timeout       time.Duration
	Retries       int
	RetryBackoff  time.Duration
	RatePerSecond float64
	ExcerptChars  int
}

// JudgeAdapter wraps a judge.Provider with a per-attempt timeout, a retry
// budget, and an optional rate limit.
type JudgeAdapter struct {
	provider judge.Provider
	opts     AdapterOptions
	limiter  *rate.Limiter
	logger   zerolog.Logger
}

func NewJudgeAdapter(provider judge.Provider, options AdapterOptions, logger zerolog.Logger) *JudgeAdapter {
	opts := normalizeAdapterOptions(options)

	var limiter *rate.Limiter
	if opts.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1)
	}
	return &JudgeAdapter{
		provider: provider,
		opts:     opts,
		limiter:  limiter,
		logger:   logger,
	}
}

func normalizeAdapterOptions(opts AdapterOptions) AdapterOptions {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultJudgeTimeout
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = DefaultJudgeRetryBackoff
	}
	if opts.ExcerptChars <= 0 {
		opts.ExcerptChars = DefaultExcerptChars
	}
	return opts
}

func (a *JudgeAdapter) Adjudicate(ctx context.Context, first, second Article, pair CandidatePair) ValidationResult {
	if a == nil || a.provider == nil {
		return fallbackResult(pair, 0, errors.New("no judge provider configured"))
	}

	req := judge.Request{
		First:  a.excerpt(first),
		Second: a.excerpt(second),
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= a.opts.Retries; attempt++ {
		if attempt > 0 {
			if err := sleepContext(ctx, a.opts.RetryBackoff); err != nil {
				lastErr = err
				break
			}
		}
		if a.limiter != nil {
			if err := a.limiter.Wait(ctx); err != nil {
				lastErr = fmt.Errorf("wait for judge rate limit: %w", err)
				break
			}
		}

		attempts++
		verdict, err := a.judgeOnce(ctx, req)
		if err == nil {
			return ValidationResult{
				Pair:        pair,
				SameStory:   verdict.SameStory,
				Confidence:  verdict.Confidence,
				Reason:      verdict.Reason,
				Adjudicated: true,
				Provider:    verdict.ProviderName,
				Cached:      verdict.Cached,
				Attempts:    attempts,
				LatencyMs:   verdict.LatencyMs,
			}
		}

		lastErr = err
		a.logger.Warn().
			Err(err).
			Int("i", pair.I).
			Int("j", pair.J).
			Int("attempt", attempts).
			Msg("judge call failed")
		if !retryable(ctx, err) {
			break
		}
	}

	return fallbackResult(pair, attempts, lastErr)
}

func (a *JudgeAdapter) judgeOnce(ctx context.Context, req judge.Request) (*judge.Verdict, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	verdict, err := a.provider.Judge(callCtx, req)
	if err != nil {
		return nil, err
	}
	if verdict == nil {
		return nil, fmt.Errorf("%w: empty verdict", judge.ErrMalformedVerdict)
	}
	return verdict, nil
}

func (a *JudgeAdapter) excerpt(article Article) judge.ArticleExcerpt {
	return judge.ArticleExcerpt{
		Date:     article.Date,
		Headline: strings.TrimSpace(article.Headline),
		Content:  reader.Excerpt(articleText(article), a.opts.ExcerptChars),
	}
}

// articleText prefers the extracted text and falls back to the raw body for
// articles built outside prepareArticles.
func articleText(article Article) string {
	if strings.TrimSpace(article.Text) != "" {
		return article.Text
	}
	return article.Content
}

// retryable reports whether another attempt could succeed. Malformed replies
// and a cancelled parent context are final.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, judge.ErrMalformedVerdict)
}

func fallbackResult(pair CandidatePair, attempts int, err error) ValidationResult {
	reason := "judge unavailable"
	if err != nil {
		reason = "judge unavailable: " + err.Error()
	}
	return ValidationResult{
		Pair:        pair,
		SameStory:   false,
		Confidence:  FallbackConfidence,
		Reason:      reason,
		Adjudicated: attempts > 0,
		Fallback:    true,
		Attempts:    attempts,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
