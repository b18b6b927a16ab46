package nlu

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// GroqProvider implements Provider against Groq's OpenAI-compatible API.
// Groq's inference latency is low enough to run in the turn hot path.
type GroqProvider struct {
	config *ProviderConfig
	client *http.Client
}

// NewGroqProvider creates a Groq provider, filling unset config fields
// from the defaults.
func NewGroqProvider(cfg *ProviderConfig) *GroqProvider {
	defaults := DefaultConfig("groq")
	if cfg == nil {
		cfg = defaults
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaults.Endpoint
	}
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaults.MaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}
	cfg.Name = "groq"

	return &GroqProvider{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Name returns the provider identifier.
func (p *GroqProvider) Name() string { return p.config.Name }

// Available checks if the API key is configured.
func (p *GroqProvider) Available() bool { return p.config.APIKey != "" }

// Chat sends a chat request to Groq. Timeouts, connection failures, rate
// limits, and 5xx responses wrap ErrTransient so callers can retry them.
func (p *GroqProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if p.config.APIKey == "" {
		return nil, fmt.Errorf("Groq API key not configured")
	}

	start := time.Now()

	groqReq := groqChatRequest{Model: req.Model}
	if groqReq.Model == "" {
		groqReq.Model = p.config.Model
	}
	if req.SystemPrompt != "" {
		groqReq.Messages = append(groqReq.Messages, groqMessage{Role: "system", Content: req.SystemPrompt})
	}
	for _, msg := range req.Messages {
		groqReq.Messages = append(groqReq.Messages, groqMessage{Role: msg.Role, Content: msg.Content})
	}
	groqReq.MaxTokens = req.MaxTokens
	if groqReq.MaxTokens == 0 {
		groqReq.MaxTokens = p.config.MaxTokens
	}
	groqReq.Temperature = req.Temperature
	if groqReq.Temperature == 0 {
		groqReq.Temperature = p.config.Temperature
	}

	body, err := json.Marshal(groqReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.config.Endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrTransient, err)
		}
		// Transport-level failures (refused, reset, DNS) are retryable.
		return nil, fmt.Errorf("%w: execute request: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := readLimitedBody(resp.Body, MaxErrorBodySize)
		err := fmt.Errorf("Groq error (status %d): %s", resp.StatusCode, string(bodyBytes))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: %v", ErrTransient, err)
		}
		return nil, err
	}

	var groqResp groqChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&groqResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(groqResp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	return &ChatResponse{
		Content:          groqResp.Choices[0].Message.Content,
		Model:            groqResp.Model,
		PromptTokens:     groqResp.Usage.PromptTokens,
		CompletionTokens: groqResp.Usage.CompletionTokens,
		Duration:         time.Since(start),
	}, nil
}

// Groq API types (OpenAI-compatible)
type groqChatRequest struct {
	Model       string        `json:"model"`
	Messages    []groqMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type groqMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type groqChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      groqMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}
