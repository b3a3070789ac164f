package pipeline

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"horse.fit/storychain/internal/judge"
)

func scenarioInputs() []ArticleInput {
	return []ArticleInput{
		{Date: "13 February 2025", Headline: "Ferry strike halts Helsinki harbour", Content: "Ferry workers began a strike at Helsinki harbour, halting ferry traffic to Tallinn."},
		{Date: "14 February 2025", Headline: "Ferry strike enters second day", Content: "The ferry strike at Helsinki harbour continued as ferry workers rejected the offer."},
		{Date: "5 March 2025", Headline: "Harbour traffic statistics", Content: "Helsinki harbour published annual traffic statistics for cargo vessels."},
		{Date: "14 February 2025", Headline: "Bank raises rates", Content: "The central bank raised interest rates by a quarter point."},
		{Date: "15 February 2025", Headline: "Forestry law debated", Content: "Parliament debated amendments to the forestry law on Thursday."},
	}
}

func TestChainStoriesWithJudge(t *testing.T) {
	t.Parallel()

	stub := &stubAdjudicator{verdicts: verdictByPair{
		{I: 0, J: 1}: {SameStory: true, Confidence: 0.9, Reason: "same strike"},
		{I: 0, J: 2}: {SameStory: false, Confidence: 0.4, Reason: "different topic"},
		{I: 1, J: 2}: {SameStory: false, Confidence: 0.4, Reason: "different topic"},
	}}
	svc := NewService(stub, testLogger())

	opts := DefaultChainOptions()
	opts.SimilarityThreshold = 0.2
	opts.SkipCrossLanguage = false
	var stages []Stage
	opts.Progress = func(p Progress) {
		if p.Stage != StageValidation {
			stages = append(stages, p.Stage)
		}
	}

	result, err := svc.ChainStories(context.Background(), scenarioInputs(), opts)
	if err != nil {
		t.Fatalf("ChainStories failed: %v", err)
	}
	if result.Mode != ModeAdjudicated {
		t.Fatalf("unexpected mode: %s", result.Mode)
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Pair() != (Pair{I: 0, J: 1}) {
		t.Fatalf("expected (0,1) to be the top candidate, got %+v", result.Candidates)
	}
	for _, c := range result.Candidates {
		if c.I >= 3 || c.J >= 3 {
			t.Fatalf("unrelated article produced a candidate: %+v", c)
		}
	}

	want := [][]int{{0, 1}, {2}, {3}, {4}}
	if !reflect.DeepEqual(result.Chains, want) {
		t.Fatalf("unexpected chains: got %v want %v", result.Chains, want)
	}
	if result.Stats.Chains != 4 || result.Stats.Singletons != 3 || result.Stats.MaxSize != 2 {
		t.Fatalf("unexpected stats: %+v", result.Stats)
	}
	if len(result.Articles[0].Keywords) == 0 || result.Articles[0].PublishedOn == nil {
		t.Fatalf("expected derived article fields, got %+v", result.Articles[0])
	}

	wantStages := []Stage{StagePrepare, StagePrepare, StageCandidates, StageChains, StageDone}
	if !reflect.DeepEqual(stages, wantStages) {
		t.Fatalf("unexpected progress stages: got %v want %v", stages, wantStages)
	}
}

func TestChainStoriesJudgeAlwaysFails(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{respond: func(int, context.Context, judge.Request) (*judge.Verdict, error) {
		return nil, errors.New("upstream timeout")
	}}
	adapter := NewJudgeAdapter(provider, AdapterOptions{Retries: 1, RetryBackoff: time.Millisecond}, testLogger())
	svc := NewService(adapter, testLogger())

	opts := DefaultChainOptions()
	opts.SimilarityThreshold = 0.2
	opts.SkipCrossLanguage = false

	inputs := scenarioInputs()
	result, err := svc.ChainStories(context.Background(), inputs, opts)
	if err != nil {
		t.Fatalf("ChainStories failed: %v", err)
	}
	if len(result.Candidates) == 0 {
		t.Fatalf("expected candidates to be judged")
	}
	for _, v := range result.Validations {
		if !v.Fallback || v.SameStory || v.Confidence != FallbackConfidence || v.Accepted {
			t.Fatalf("expected neutral fallback verdict, got %+v", v)
		}
	}
	if !reflect.DeepEqual(result.Chains, SingletonChains(len(inputs))) {
		t.Fatalf("expected all-singleton chains, got %v", result.Chains)
	}
	if result.Fallbacks != len(result.Validations) {
		t.Fatalf("unexpected fallback count: %d of %d", result.Fallbacks, len(result.Validations))
	}
}

func TestChainStoriesSendsExtractedTextToJudge(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		requests []judge.Request
	)
	provider := &stubProvider{respond: func(_ int, _ context.Context, req judge.Request) (*judge.Verdict, error) {
		mu.Lock()
		requests = append(requests, req)
		mu.Unlock()
		return &judge.Verdict{SameStory: true, Confidence: 0.9, Reason: "same strike"}, nil
	}}
	svc := NewService(NewJudgeAdapter(provider, AdapterOptions{}, testLogger()), testLogger())

	opts := DefaultChainOptions()
	opts.SimilarityThreshold = 0.2
	opts.SkipCrossLanguage = false

	inputs := []ArticleInput{
		{Date: "13 February 2025", Headline: "Ferry strike halts Helsinki harbour", Content: "<html><body><article><p>Ferry workers began a strike at Helsinki harbour, halting ferry traffic to Tallinn.</p></article></body></html>"},
		{Date: "14 February 2025", Headline: "Ferry strike enters second day", Content: "<html><body><article><p>The ferry strike at Helsinki harbour continued as ferry workers rejected the offer.</p></article></body></html>"},
	}
	result, err := svc.ChainStories(context.Background(), inputs, opts)
	if err != nil {
		t.Fatalf("ChainStories failed: %v", err)
	}
	if len(requests) == 0 {
		t.Fatalf("expected the ferry pair to be judged, candidates=%+v", result.Candidates)
	}
	for _, req := range requests {
		for _, excerpt := range []judge.ArticleExcerpt{req.First, req.Second} {
			if strings.ContainsAny(excerpt.Content, "<>") {
				t.Fatalf("judge received markup: %q", excerpt.Content)
			}
			if !strings.Contains(excerpt.Content, "Helsinki harbour") {
				t.Fatalf("judge excerpt lost the article text: %q", excerpt.Content)
			}
		}
	}
	if result.Articles[0].Content != inputs[0].Content {
		t.Fatalf("expected raw content to be kept for output")
	}
}

func TestChainStoriesSimilarityOnly(t *testing.T) {
	t.Parallel()

	svc := NewService(nil, testLogger())
	opts := DefaultChainOptions()
	opts.SimilarityThreshold = 0.2
	opts.SkipCrossLanguage = false

	result, err := svc.ChainStories(context.Background(), scenarioInputs(), opts)
	if err != nil {
		t.Fatalf("ChainStories failed: %v", err)
	}
	if result.Mode != ModeSimilarityOnly || result.JudgeCalls != 0 {
		t.Fatalf("unexpected mode=%s judge_calls=%d", result.Mode, result.JudgeCalls)
	}
	if len(result.Accepted) != len(result.Candidates) {
		t.Fatalf("expected every candidate to be accepted, got %d of %d", len(result.Accepted), len(result.Candidates))
	}
	if result.Chains[0][0] != 0 || len(result.Chains[0]) < 2 {
		t.Fatalf("expected articles 0 and 1 to chain, got %v", result.Chains)
	}
}

func TestChainStoriesDegenerateInputs(t *testing.T) {
	t.Parallel()

	svc := NewService(&stubAdjudicator{}, testLogger())
	opts := DefaultChainOptions()
	opts.SkipCrossLanguage = false

	empty, err := svc.ChainStories(context.Background(), nil, opts)
	if err != nil {
		t.Fatalf("ChainStories failed on empty input: %v", err)
	}
	if len(empty.Chains) != 0 || empty.Stats.Articles != 0 {
		t.Fatalf("unexpected chains for empty input: %v", empty.Chains)
	}

	blank, err := svc.ChainStories(context.Background(), []ArticleInput{{}, {Content: "nan"}, {Headline: "only a headline"}}, opts)
	if err != nil {
		t.Fatalf("ChainStories failed on blank articles: %v", err)
	}
	if !reflect.DeepEqual(blank.Chains, SingletonChains(3)) {
		t.Fatalf("expected singleton chains, got %v", blank.Chains)
	}
}

func TestChainStoriesRejectsInvalidOptions(t *testing.T) {
	t.Parallel()

	svc := NewService(nil, testLogger())
	for _, opts := range []ChainOptions{
		{SimilarityThreshold: 1.5},
		{SimilarityThreshold: 0.2, ConfidenceThreshold: -0.1},
		{SimilarityThreshold: 0.2, ConfidenceThreshold: 0.7, MaxValidations: -1},
	} {
		if _, err := svc.ChainStories(context.Background(), scenarioInputs(), opts); !errors.Is(err, ErrInvalidOptions) {
			t.Fatalf("expected ErrInvalidOptions for %+v, got %v", opts, err)
		}
	}
}
