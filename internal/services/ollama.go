package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// OllamaService implements LLMService against a local Ollama daemon.
type OllamaService struct {
	baseURL    string
	modelName  string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewOllamaService(baseURL, modelName string, timeout time.Duration, logger *slog.Logger) *OllamaService {
	return &OllamaService{
		baseURL:   strings.TrimRight(baseURL, "/"),
		modelName: modelName,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	System  string         `json:"system,omitempty"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// InitModel checks that the model is present on the daemon and pulls
// it if missing.
func (s *OllamaService) InitModel(ctx context.Context, modelName string) error {
	s.logger.Info("Initializing LLM model", "model", modelName)

	ready, err := s.isModelReady(ctx, modelName)
	if err != nil {
		return fmt.Errorf("failed to check model readiness: %w", err)
	}
	if ready {
		s.logger.Info("Model already available", "model", modelName)
		return nil
	}

	s.logger.Info("Model not found, pulling it", "model", modelName)
	if err := s.pullModel(ctx, modelName); err != nil {
		return fmt.Errorf("failed to pull model: %w", err)
	}
	s.logger.Info("Model pulled successfully", "model", modelName)
	return nil
}

// Generate produces narration with the /api/generate endpoint
// (non-streaming).
func (s *OllamaService) Generate(ctx context.Context, req Request) (string, error) {
	body := ollamaGenerateRequest{
		Model:  s.modelName,
		System: req.SystemPrompt,
		Prompt: req.Context,
		Stream: false,
		Options: map[string]any{
			"temperature": req.Params.Temperature,
			"num_predict": req.Params.MaxTokens,
		},
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return "", &LLMError{Kind: ErrMalformed, Err: fmt.Errorf("marshal request: %w", err)}
	}

	url := s.baseURL + "/api/generate"
	s.logger.Debug("Making Ollama generate request", "url", url, "model", s.modelName)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", &LLMError{Kind: ErrMalformed, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return "", classifyTransportErr(err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &LLMError{Kind: ErrMalformed, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &LLMError{
			Kind: ErrUnreachable,
			Err:  fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	var genResp ollamaGenerateResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return "", &LLMError{Kind: ErrMalformed, Err: fmt.Errorf("parse response: %w", err)}
	}
	if genResp.Error != "" {
		return "", &LLMError{Kind: ErrMalformed, Err: fmt.Errorf("ollama error: %s", genResp.Error)}
	}
	if strings.TrimSpace(genResp.Response) == "" {
		return "", &LLMError{Kind: ErrMalformed, Err: fmt.Errorf("empty response from model")}
	}

	return genResp.Response, nil
}

func (s *OllamaService) isModelReady(ctx context.Context, modelName string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/tags", nil)
	if err != nil {
		return false, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false, classifyTransportErr(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return false, fmt.Errorf("parse tags response: %w", err)
	}

	for _, m := range tags.Models {
		if m.Name == modelName || strings.HasPrefix(m.Name, modelName+":") {
			return true, nil
		}
	}
	return false, nil
}

func (s *OllamaService) pullModel(ctx context.Context, modelName string) error {
	body, err := json.Marshal(map[string]any{"name": modelName, "stream": false})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/pull", bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return classifyTransportErr(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("pull failed with status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
