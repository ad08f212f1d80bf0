// Package gemini runs meal analysis on Google's Gemini models.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"mealvoice"
	"mealvoice/analyzer"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	defaultModelID     = "gemini-1.5-flash"
	defaultMaxTokens   = 800
	defaultTemperature = 0.3
)

type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type ClientOpts struct {
	APIKey      string
	ModelID     string
	MaxTokens   int32
	Temperature float32
}

type Client struct {
	cl        *genai.Client
	modelID   string
	config    genai.GenerationConfig
	newGenner func(system string) generator
}

// NewClient dials Gemini with an API key. A missing key is a mealvoice.ErrConfiguration.
func NewClient(ctx context.Context, opts ClientOpts) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY is not set", mealvoice.ErrConfiguration)
	}

	cl, err := genai.NewClient(ctx, option.WithAPIKey(opts.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	c := newClient(opts)
	c.cl = cl
	c.newGenner = func(system string) generator {
		m := cl.GenerativeModel(c.modelID)
		m.GenerationConfig = c.config
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
		return m
	}
	return c, nil
}

func newClient(opts ClientOpts) *Client {
	if opts.ModelID == "" {
		opts.ModelID = defaultModelID
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.Temperature == 0 {
		opts.Temperature = defaultTemperature
	}

	return &Client{
		modelID: opts.ModelID,
		config: genai.GenerationConfig{
			Temperature:      &opts.Temperature,
			MaxOutputTokens:  &opts.MaxTokens,
			ResponseMIMEType: "application/json",
		},
	}
}

func (c *Client) Close() error {
	if c.cl == nil {
		return nil
	}
	return c.cl.Close()
}

// Complete sends the prompt and returns the first candidate's text.
func (c *Client) Complete(ctx context.Context, prompt analyzer.Prompt) (string, error) {
	slog.Info("LLM_CLIENT: Invoked", "model", c.modelID)

	resp, err := c.newGenner(prompt.System).GenerateContent(ctx, genai.Text(prompt.User))
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			slog.Warn("LLM_CLIENT: Gemini blocked the response", "error", err)
			return "", analyzer.Blocked(blocked.Error())
		}
		slog.Error("LLM_CLIENT: Gemini invoke failed", "error", err)
		return "", analyzer.RemoteFailure(statusCode(err), err)
	}

	if resp.UsageMetadata != nil {
		slog.Info("LLM_CLIENT: Gemini invoke succeeded",
			"prompt_tokens", resp.UsageMetadata.PromptTokenCount,
			"candidate_tokens", resp.UsageMetadata.CandidatesTokenCount,
		)
	}

	return firstText(resp), nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		var b strings.Builder
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if b.Len() > 0 {
			return b.String()
		}
	}
	return ""
}

func statusCode(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	return 0
}
