package gemini

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"mealvoice"
	"mealvoice/analyzer"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

type mockGenerator struct {
	resp  *genai.GenerateContentResponse
	err   error
	parts []genai.Part
}

func (m *mockGenerator) GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	m.parts = parts
	return m.resp, m.err
}

func testClient(gen *mockGenerator) (*Client, *string) {
	var system string
	c := newClient(ClientOpts{})
	c.newGenner = func(s string) generator {
		system = s
		return gen
	}
	return c, &system
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{Role: "model"}
	for _, p := range parts {
		content.Parts = append(content.Parts, genai.Text(p))
	}
	return &genai.GenerateContentResponse{
		Candidates:    []*genai.Candidate{{Content: content}},
		UsageMetadata: &genai.UsageMetadata{PromptTokenCount: 300, CandidatesTokenCount: 80},
	}
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(context.Background(), ClientOpts{})
	assert.ErrorIs(t, err, mealvoice.ErrConfiguration)
}

func TestNewClientDefaults(t *testing.T) {
	c := newClient(ClientOpts{})
	assert.Equal(t, defaultModelID, c.modelID)
	require.NotNil(t, c.config.Temperature)
	assert.Equal(t, float32(defaultTemperature), *c.config.Temperature)
	require.NotNil(t, c.config.MaxOutputTokens)
	assert.Equal(t, int32(defaultMaxTokens), *c.config.MaxOutputTokens)
	assert.Equal(t, "application/json", c.config.ResponseMIMEType)
}

func TestComplete(t *testing.T) {
	prompt := analyzer.Prompt{System: "instructions", User: `Meal description: "rice"`}

	t.Run("joins text parts", func(t *testing.T) {
		gen := &mockGenerator{resp: textResponse(`{"foodItems":`, `[]}`)}
		c, system := testClient(gen)

		text, err := c.Complete(context.Background(), prompt)
		require.NoError(t, err)
		assert.Equal(t, `{"foodItems":[]}`, text)
		assert.Equal(t, "instructions", *system)
		require.Len(t, gen.parts, 1)
		assert.Equal(t, genai.Text(prompt.User), gen.parts[0])
	})

	t.Run("no candidates", func(t *testing.T) {
		c, _ := testClient(&mockGenerator{resp: &genai.GenerateContentResponse{}})
		text, err := c.Complete(context.Background(), prompt)
		require.NoError(t, err)
		assert.Empty(t, text)
	})

	t.Run("api error keeps status", func(t *testing.T) {
		apiErr := fmt.Errorf("generate: %w", &googleapi.Error{Code: http.StatusTooManyRequests, Message: "quota"})
		c, _ := testClient(&mockGenerator{err: apiErr})

		_, err := c.Complete(context.Background(), prompt)
		var re *mealvoice.RemoteError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, http.StatusTooManyRequests, re.StatusCode)
	})

	t.Run("blocked response", func(t *testing.T) {
		blocked := &genai.BlockedError{Candidate: &genai.Candidate{FinishReason: genai.FinishReasonSafety}}
		c, _ := testClient(&mockGenerator{err: blocked})

		_, err := c.Complete(context.Background(), prompt)
		assert.ErrorIs(t, err, mealvoice.ErrContentBlocked)
		var re *mealvoice.RemoteError
		require.ErrorAs(t, err, &re)
		assert.False(t, re.Retryable())
	})

	t.Run("close without client", func(t *testing.T) {
		c, _ := testClient(&mockGenerator{})
		assert.NoError(t, c.Close())
	})
}
