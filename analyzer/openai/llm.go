// Package openai talks to an OpenAI-compatible chat completions endpoint over plain HTTP.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"mealvoice"
	"mealvoice/analyzer"
)

const (
	defaultBaseURL     = "https://api.openai.com/v1"
	defaultModelID     = "gpt-3.5-turbo"
	defaultMaxTokens   = 800
	defaultTemperature = 0.3
)

type ClientOpts struct {
	BaseURL     string
	APIKey      string
	ModelID     string
	MaxTokens   int32
	Temperature float32
	HTTPClient  mealvoice.HTTPClient
}

type Client struct {
	endpoint    string
	apiKey      string
	model       string
	maxTokens   int32
	temperature float32
	httpClient  mealvoice.HTTPClient
}

// NewClient fails with mealvoice.ErrConfiguration when no API key is given.
func NewClient(opts ClientOpts) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY is not set", mealvoice.ErrConfiguration)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.ModelID == "" {
		opts.ModelID = defaultModelID
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.Temperature == 0 {
		opts.Temperature = defaultTemperature
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Client{
		endpoint:    strings.TrimRight(opts.BaseURL, "/") + "/chat/completions",
		apiKey:      opts.APIKey,
		model:       opts.ModelID,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
		httpClient:  opts.HTTPClient,
	}, nil
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type wireRequest struct {
	Model          string         `json:"model"`
	Messages       []wireMessage  `json:"messages"`
	Temperature    float32        `json:"temperature"`
	MaxTokens      int32          `json:"max_tokens"`
	ResponseFormat responseFormat `json:"response_format"`
}

type wireResponse struct {
	Choices []struct {
		Message      wireMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete sends the prompt and returns the first choice's message content verbatim.
func (c *Client) Complete(ctx context.Context, prompt analyzer.Prompt) (string, error) {
	slog.Info("LLM_CLIENT: Invoked", "model", c.model)

	reqBytes, err := json.Marshal(wireRequest{
		Model: c.model,
		Messages: []wireMessage{
			{Role: "system", Content: prompt.System},
			{Role: "user", Content: prompt.User},
		},
		Temperature:    c.temperature,
		MaxTokens:      c.maxTokens,
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBytes))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", analyzer.RemoteFailure(0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", analyzer.RemoteFailure(0, fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Error("LLM_CLIENT: Request failed", "status", resp.StatusCode, "body", truncate(string(body), 500))
		return "", analyzer.RemoteFailure(resp.StatusCode, fmt.Errorf("%s: %s", resp.Status, truncate(string(body), 200)))
	}

	var wr wireResponse
	if err := json.Unmarshal(body, &wr); err != nil {
		return "", fmt.Errorf("%w: undecodable completion envelope: %w", mealvoice.ErrParse, err)
	}
	if len(wr.Choices) == 0 {
		return "", fmt.Errorf("%w: completion has no choices", mealvoice.ErrParse)
	}

	choice := wr.Choices[0]
	slog.Info("LLM_CLIENT: Completion received",
		"finish_reason", choice.FinishReason,
		"prompt_tokens", wr.Usage.PromptTokens,
		"completion_tokens", wr.Usage.CompletionTokens,
		"content_len", len(choice.Message.Content),
	)
	if choice.FinishReason == "length" {
		slog.Warn("LLM_CLIENT: Model hit max_tokens limit; output is likely truncated")
	}

	return choice.Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
