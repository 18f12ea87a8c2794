package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	anthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"
)

// AnthropicService implements LLMService for Anthropic Claude.
type AnthropicService struct {
	apiKey     string
	modelName  string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

type anthropicChatRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicChatResponse struct {
	ID         string                  `json:"id"`
	Type       string                  `json:"type"`
	Role       string                  `json:"role"`
	Content    []anthropicContentBlock `json:"content"`
	Model      string                  `json:"model"`
	StopReason string                  `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewAnthropicService(apiKey, modelName string, timeout time.Duration, logger *slog.Logger) *AnthropicService {
	return &AnthropicService{
		apiKey:    apiKey,
		modelName: modelName,
		baseURL:   anthropicBaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// WithBaseURL overrides the API endpoint. Used in tests.
func (a *AnthropicService) WithBaseURL(baseURL string) *AnthropicService {
	a.baseURL = baseURL
	return a
}

// InitModel is a no-op for the hosted API; there is nothing to pull.
func (a *AnthropicService) InitModel(ctx context.Context, modelName string) error {
	return nil
}

// Generate produces narration with the messages endpoint.
func (a *AnthropicService) Generate(ctx context.Context, req Request) (string, error) {
	temperature := req.Params.Temperature
	anthropicReq := anthropicChatRequest{
		Model:       a.modelName,
		MaxTokens:   req.Params.MaxTokens,
		Temperature: &temperature,
		System:      req.SystemPrompt,
		Messages: []anthropicMessage{
			{Role: "user", Content: req.Context},
		},
	}

	reqBody, err := json.Marshal(anthropicReq)
	if err != nil {
		return "", &LLMError{Kind: ErrMalformed, Err: fmt.Errorf("marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", &LLMError{Kind: ErrMalformed, Err: err}
	}
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("content-type", "application/json")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return "", classifyTransportErr(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &LLMError{Kind: ErrMalformed, Err: fmt.Errorf("read response body: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &LLMError{
			Kind: ErrUnreachable,
			Err:  fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var anthropicResp anthropicChatResponse
	if err := json.Unmarshal(body, &anthropicResp); err != nil {
		return "", &LLMError{Kind: ErrMalformed, Err: fmt.Errorf("parse response: %w", err)}
	}
	if anthropicResp.Error != nil {
		return "", &LLMError{Kind: ErrMalformed, Err: fmt.Errorf("API error: %s", anthropicResp.Error.Message)}
	}

	var responseText string
	for _, content := range anthropicResp.Content {
		if content.Type == "text" {
			responseText += content.Text
		}
	}
	if responseText == "" {
		return "", &LLMError{Kind: ErrMalformed, Err: fmt.Errorf("no text content in response")}
	}

	a.logger.Debug("Anthropic response received", "model", anthropicResp.Model, "stop_reason", anthropicResp.StopReason)
	return responseText, nil
}
