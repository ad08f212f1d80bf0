// Package backend builds the configured model client and wraps it in an analyzer.Remote.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"mealvoice"
	"mealvoice/analyzer"
	"mealvoice/analyzer/bedrock"
	"mealvoice/analyzer/gemini"
	"mealvoice/analyzer/mock"
	"mealvoice/analyzer/openai"
	"mealvoice/nutrition"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

const (
	ProviderOpenAI  = "openai"
	ProviderBedrock = "bedrock"
	ProviderGemini  = "gemini"
	ProviderMock    = "mock"
)

type Options struct {
	// HTTPClient is used by the OpenAI backend. Defaults to a client with cfg.RequestTimeout.
	HTTPClient mealvoice.HTTPClient
	// Table backs the mock backend.
	Table *nutrition.Table
}

func nop() error { return nil }

// New returns an Analyzer for cfg.Provider plus a cleanup func that releases client resources.
// A missing credential yields an error wrapping mealvoice.ErrConfiguration.
func New(ctx context.Context, cfg mealvoice.ModelConfig, opts Options) (*analyzer.Remote, func() error, error) {
	remoteOpts := analyzer.Options{MaxAttempts: uint(max(cfg.MaxAttempts, 1))}

	switch provider := strings.ToLower(strings.TrimSpace(cfg.Provider)); provider {
	case ProviderOpenAI, "":
		httpClient := opts.HTTPClient
		if httpClient == nil {
			httpClient = &http.Client{Timeout: cfg.RequestTimeout}
		}
		client, err := openai.NewClient(openai.ClientOpts{
			BaseURL:     cfg.OpenAIBaseURL,
			APIKey:      cfg.OpenAIAPIKey,
			ModelID:     cfg.ModelID,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			HTTPClient:  httpClient,
		})
		if err != nil {
			return nil, nop, err
		}
		slog.Info("SETUP: OpenAI backend ready", "base_url", cfg.OpenAIBaseURL)
		return analyzer.NewRemote(client, remoteOpts), nop, nil

	case ProviderBedrock:
		// Retries happen in analyzer.Remote, so the SDK makes a single attempt.
		awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRetryMaxAttempts(1))
		if err != nil {
			return nil, nop, fmt.Errorf("%w: failed to load AWS config: %w", mealvoice.ErrConfiguration, err)
		}
		client := bedrock.NewLLMClient(bedrockruntime.NewFromConfig(awsCfg), bedrock.LLMOptions{
			ModelID:     cfg.ModelID,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
		})
		slog.Info("SETUP: Bedrock backend ready", "region", awsCfg.Region)
		return analyzer.NewRemote(client, remoteOpts), nop, nil

	case ProviderGemini:
		client, err := gemini.NewClient(ctx, gemini.ClientOpts{
			APIKey:      cfg.GeminiAPIKey,
			ModelID:     cfg.ModelID,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		})
		if err != nil {
			return nil, nop, err
		}
		slog.Info("SETUP: Gemini backend ready")
		return analyzer.NewRemote(client, remoteOpts), client.Close, nil

	case ProviderMock:
		slog.Info("SETUP: Mock backend ready")
		return analyzer.NewRemote(mock.NewLLMClient(mock.Options{Table: opts.Table}), remoteOpts), nop, nil

	default:
		return nil, nop, fmt.Errorf("%w: unknown model provider %q", mealvoice.ErrConfiguration, provider)
	}
}
