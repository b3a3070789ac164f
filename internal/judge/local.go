package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultLocalEndpoint points to a local OpenAI-compatible chat endpoint.
	DefaultLocalEndpoint = "http://127.0.0.1:8845/v1"
	// DefaultModel mirrors the model the chaining prompt was tuned on.
	DefaultModel = "gpt-4.1"

	judgeTemperature = 0.1
	judgeMaxTokens   = 200

	maxJudgeResponseBytes = 1 << 20
)

// LocalProvider adjudicates pairs through an OpenAI-compatible chat
// completions endpoint such as a self-hosted vLLM or llama.cpp server.
type LocalProvider struct {
	endpointURL string
	model       string
	apiKey      string
	client      *http.Client
}

// NewLocalProvider builds a local provider for the given endpoint/model.
// apiKey may be empty for unauthenticated servers.
func NewLocalProvider(endpoint, model, apiKey string) *LocalProvider {
	trimmedModel := strings.TrimSpace(model)
	if trimmedModel == "" {
		trimmedModel = DefaultModel
	}
	return &LocalProvider{
		endpointURL: resolveChatURL(endpoint),
		model:       trimmedModel,
		apiKey:      strings.TrimSpace(apiKey),
		// Per-call deadlines come from the caller's context.
		client: &http.Client{},
	}
}

func (p *LocalProvider) Name() string {
	return "local"
}

func (p *LocalProvider) ModelName() string {
	if p == nil {
		return ""
	}
	return p.model
}

func (p *LocalProvider) Judge(ctx context.Context, req Request) (*Verdict, error) {
	if p == nil {
		return nil, fmt.Errorf("local provider is nil")
	}

	started := time.Now()
	content, err := p.complete(ctx, chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(req)},
		},
		Temperature:    judgeTemperature,
		MaxTokens:      judgeMaxTokens,
		ResponseFormat: &chatResponseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, err
	}

	verdict, err := ParseVerdict(content)
	if err != nil {
		return nil, err
	}
	verdict.ProviderName = p.Name()
	verdict.LatencyMs = time.Since(started).Milliseconds()
	return verdict, nil
}

// complete posts one chat request and returns the first choice's content.
func (p *LocalProvider) complete(ctx context.Context, payload chatRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal judge request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpointURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build judge request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send judge request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxJudgeResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read judge response: %w", err)
	}

	var decoded chatResponse
	decodeErr := json.Unmarshal(raw, &decoded)
	if resp.StatusCode/100 != 2 {
		detail := strings.TrimSpace(string(raw))
		if decodeErr == nil && decoded.Error != nil && strings.TrimSpace(decoded.Error.Message) != "" {
			detail = strings.TrimSpace(decoded.Error.Message)
		}
		return "", fmt.Errorf("judge endpoint status %d: %s", resp.StatusCode, detail)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("decode judge response: %w", decodeErr)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("judge response missing choices")
	}
	return decoded.Choices[0].Message.Content, nil
}

type chatRequest struct {
	Model          string              `json:"model"`
	Messages       []chatMessage       `json:"messages"`
	Temperature    float64             `json:"temperature"`
	MaxTokens      int                 `json:"max_tokens,omitempty"`
	ResponseFormat *chatResponseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponseFormat struct {
	Type string `json:"type"`
}

// chatResponse covers both the success body and the {"error": {...}} body
// OpenAI-compatible servers return on failure.
type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// resolveChatURL turns a base endpoint (host, host/v1, or a full
// .../chat/completions URL) into the chat completions URL.
func resolveChatURL(raw string) string {
	endpoint := strings.TrimSpace(raw)
	if endpoint == "" {
		endpoint = DefaultLocalEndpoint
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}

	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Host == "" {
		parsed, _ = url.Parse(DefaultLocalEndpoint)
	}

	path := strings.TrimRight(parsed.Path, "/")
	switch {
	case strings.HasSuffix(path, "/chat/completions"):
	case strings.HasSuffix(path, "/v1"):
		path += "/chat/completions"
	default:
		path += "/v1/chat/completions"
	}
	parsed.Path = path
	return parsed.String()
}
