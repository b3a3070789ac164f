// Package judge asks an external model whether two news articles report the
// same ongoing story.
package judge

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrProviderNotRegistered = errors.New("judge provider is not registered")
	ErrMalformedVerdict      = errors.New("malformed judge verdict")
)

// Provider adjudicates one pair of articles.
type Provider interface {
	Judge(ctx context.Context, req Request) (*Verdict, error)
	Name() string
}

// ModelName returns the model p sends requests to, or fallback when p does
// not report one.
func ModelName(p Provider, fallback string) string {
	if named, ok := p.(interface{ ModelName() string }); ok {
		if model := strings.TrimSpace(named.ModelName()); model != "" {
			return model
		}
	}
	return strings.TrimSpace(fallback)
}

// ArticleExcerpt is the bounded view of an article that is sent to a provider.
type ArticleExcerpt struct {
	Date     string
	Headline string
	Content  string
}

// Request describes one pair adjudication.
type Request struct {
	First  ArticleExcerpt
	Second ArticleExcerpt
}

// Verdict is the structured answer of a provider.
type Verdict struct {
	SameStory    bool
	Confidence   float64
	Reason       string
	ProviderName string
	Cached       bool
	LatencyMs    int64
}
