package judge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// OpenAIProvider adjudicates pairs with the OpenAI chat completions API.
type OpenAIProvider struct {
	client openai.Client
	model  string
}

// NewOpenAIProvider builds a provider for the hosted API. baseURL may point
// at any OpenAI-compatible gateway; empty uses the SDK default.
func NewOpenAIProvider(apiKey, baseURL, model string) *OpenAIProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(apiKey)),
		// Retries are owned by the pipeline adapter.
		option.WithMaxRetries(0),
	}
	if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
		opts = append(opts, option.WithBaseURL(trimmed))
	}

	trimmedModel := strings.TrimSpace(model)
	if trimmedModel == "" {
		trimmedModel = DefaultModel
	}
	return &OpenAIProvider{
		client: openai.NewClient(opts...),
		model:  trimmedModel,
	}
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) ModelName() string {
	if p == nil {
		return ""
	}
	return p.model
}

func (p *OpenAIProvider) Judge(ctx context.Context, req Request) (*Verdict, error) {
	if p == nil {
		return nil, fmt.Errorf("openai provider is nil")
	}

	started := time.Now()
	response, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(buildPrompt(req)),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		},
		Temperature: openai.Float(judgeTemperature),
		MaxTokens:   openai.Int(judgeMaxTokens),
	})
	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no response from openai")
	}

	verdict, err := ParseVerdict(response.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	verdict.ProviderName = p.Name()
	verdict.LatencyMs = time.Since(started).Milliseconds()
	return verdict, nil
}
