package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"horse.fit/storychain/internal/judge"
)

type stubProvider struct {
	name    string
	calls   atomic.Int32
	respond func(call int, ctx context.Context, req judge.Request) (*judge.Verdict, error)
}

func (p *stubProvider) Name() string {
	if p.name == "" {
		return "stub"
	}
	return p.name
}

func (p *stubProvider) Judge(ctx context.Context, req judge.Request) (*judge.Verdict, error) {
	call := int(p.calls.Add(1))
	return p.respond(call, ctx, req)
}

func TestJudgeAdapterReturnsVerdict(t *testing.T) {
	t.Parallel()

	var gotReq judge.Request
	provider := &stubProvider{respond: func(_ int, _ context.Context, req judge.Request) (*judge.Verdict, error) {
		gotReq = req
		return &judge.Verdict{SameStory: true, Confidence: 0.85, Reason: "Same strike.", ProviderName: "stub"}, nil
	}}
	adapter := NewJudgeAdapter(provider, AdapterOptions{ExcerptChars: 10}, testLogger())

	first := Article{ID: 0, Date: "1 May 2025", Headline: " Ferry strike ", Content: "Workers at the harbour walked out on Monday."}
	second := Article{ID: 1, Date: "2 May 2025", Headline: "Strike day two", Content: "short"}
	result := adapter.Adjudicate(context.Background(), first, second, CandidatePair{I: 0, J: 1})

	if !result.SameStory || result.Confidence != 0.85 || result.Fallback || !result.Adjudicated {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Attempts != 1 || result.Provider != "stub" {
		t.Fatalf("unexpected metadata: %+v", result)
	}
	if gotReq.First.Headline != "Ferry strike" || gotReq.Second.Date != "2 May 2025" {
		t.Fatalf("unexpected request: %+v", gotReq)
	}
	if n := len([]rune(gotReq.First.Content)); n != 10 || !strings.HasSuffix(gotReq.First.Content, "…") {
		t.Fatalf("expected excerpt clipped to 10 runes, got %q", gotReq.First.Content)
	}
}

func TestJudgeAdapterRetriesTransientFailure(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{respond: func(call int, _ context.Context, _ judge.Request) (*judge.Verdict, error) {
		if call == 1 {
			return nil, errors.New("connection reset")
		}
		return &judge.Verdict{SameStory: true, Confidence: 0.9, Reason: "ok"}, nil
	}}
	adapter := NewJudgeAdapter(provider, AdapterOptions{Retries: 1, RetryBackoff: time.Millisecond}, testLogger())

	result := adapter.Adjudicate(context.Background(), Article{}, Article{ID: 1}, CandidatePair{I: 0, J: 1})
	if result.Fallback || !result.SameStory || result.Attempts != 2 {
		t.Fatalf("expected retry to succeed, got %+v", result)
	}
}

func TestJudgeAdapterFallsBackWhenJudgeFails(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{respond: func(int, context.Context, judge.Request) (*judge.Verdict, error) {
		return nil, errors.New("service unavailable")
	}}
	adapter := NewJudgeAdapter(provider, AdapterOptions{Retries: 1, RetryBackoff: time.Millisecond}, testLogger())

	result := adapter.Adjudicate(context.Background(), Article{}, Article{ID: 1}, CandidatePair{I: 0, J: 1})
	if result.SameStory || result.Confidence != FallbackConfidence || !result.Fallback {
		t.Fatalf("expected neutral fallback, got %+v", result)
	}
	if provider.calls.Load() != 2 || result.Attempts != 2 {
		t.Fatalf("expected one retry, got calls=%d attempts=%d", provider.calls.Load(), result.Attempts)
	}
	if !strings.Contains(result.Reason, "service unavailable") {
		t.Fatalf("expected diagnostic reason, got %q", result.Reason)
	}
}

func TestJudgeAdapterDoesNotRetryMalformedVerdict(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{respond: func(int, context.Context, judge.Request) (*judge.Verdict, error) {
		return nil, fmt.Errorf("%w: confidence is missing", judge.ErrMalformedVerdict)
	}}
	adapter := NewJudgeAdapter(provider, AdapterOptions{Retries: 3, RetryBackoff: time.Millisecond}, testLogger())

	result := adapter.Adjudicate(context.Background(), Article{}, Article{ID: 1}, CandidatePair{I: 0, J: 1})
	if !result.Fallback || provider.calls.Load() != 1 {
		t.Fatalf("expected single attempt and fallback, got calls=%d result=%+v", provider.calls.Load(), result)
	}
}

func TestJudgeAdapterAppliesTimeout(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{respond: func(_ int, ctx context.Context, _ judge.Request) (*judge.Verdict, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	adapter := NewJudgeAdapter(provider, AdapterOptions{Timeout: 10 * time.Millisecond, Retries: 1, RetryBackoff: time.Millisecond}, testLogger())

	started := time.Now()
	result := adapter.Adjudicate(context.Background(), Article{}, Article{ID: 1}, CandidatePair{I: 0, J: 1})
	if !result.Fallback || result.Attempts != 2 {
		t.Fatalf("expected timed-out attempts to fall back, got %+v", result)
	}
	if elapsed := time.Since(started); elapsed > 5*time.Second {
		t.Fatalf("adapter ignored its timeout: %v", elapsed)
	}
}

func TestJudgeAdapterWithoutProvider(t *testing.T) {
	t.Parallel()

	var adapter *JudgeAdapter
	result := adapter.Adjudicate(context.Background(), Article{}, Article{ID: 1}, CandidatePair{I: 0, J: 1})
	if !result.Fallback || result.Adjudicated {
		t.Fatalf("unexpected result: %+v", result)
	}
}
