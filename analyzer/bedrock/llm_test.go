package bedrock

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"mealvoice"
	"mealvoice/analyzer"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithydocjson "github.com/aws/smithy-go/document/json"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBedrockClient implements bedrockRuntimeClient for testing
type mockBedrockClient struct {
	response *bedrockruntime.ConverseOutput
	err      error
	input    *bedrockruntime.ConverseInput
}

func (m *mockBedrockClient) Converse(ctx context.Context, input *bedrockruntime.ConverseInput, opts ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	m.input = input
	return m.response, m.err
}

func TestNewLLMClient(t *testing.T) {
	tests := []struct {
		name     string
		input    LLMOptions
		expected LLMOptions
	}{
		{
			name:  "empty options uses defaults",
			input: LLMOptions{},
			expected: LLMOptions{
				ModelID:     defaultModelID,
				MaxTokens:   defaultMaxTokens,
				Temperature: defaultTemperature,
				TopP:        defaultTopP,
			},
		},
		{
			name:  "partial options with defaults",
			input: LLMOptions{ModelID: "custom-model", MaxTokens: 400},
			expected: LLMOptions{
				ModelID:     "custom-model",
				MaxTokens:   400,
				Temperature: defaultTemperature,
				TopP:        defaultTopP,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockClient := &mockBedrockClient{}
			client := NewLLMClient(mockClient, tt.input)
			assert.Equal(t, tt.expected, client.opts)
		})
	}
}

// responseDocument decodes like a document read off the wire: JSON numbers
// become smithy document numbers when the target is untyped.
type responseDocument struct {
	document.Interface
	raw []byte
}

func newResponseDocument(t *testing.T, v any) *responseDocument {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return &responseDocument{Interface: document.NewLazyDocument(nil), raw: raw}
}

func (d *responseDocument) UnmarshalSmithyDocument(v any) error {
	dec := json.NewDecoder(bytes.NewReader(d.raw))
	dec.UseNumber()
	var jv any
	if err := dec.Decode(&jv); err != nil {
		return err
	}
	return smithydocjson.NewDecoder().DecodeJSONInterface(jv, v)
}

func (d *responseDocument) MarshalSmithyDocument() ([]byte, error) {
	return d.raw, nil
}

func toolUseOutput(input document.Interface) *bedrockruntime.ConverseOutput {
	return &bedrockruntime.ConverseOutput{
		StopReason: types.StopReasonToolUse,
		Output: &types.ConverseOutputMemberMessage{
			Value: types.Message{
				Role: types.ConversationRoleAssistant,
				Content: []types.ContentBlock{
					&types.ContentBlockMemberToolUse{Value: types.ToolUseBlock{
						ToolUseId: aws.String("tool-1"),
						Name:      aws.String(analyzer.ToolName),
						Input:     document.NewLazyDocument(input),
					}},
				},
			},
		},
		Usage: &types.TokenUsage{InputTokens: aws.Int32(500), OutputTokens: aws.Int32(90)},
	}
}

func TestComplete(t *testing.T) {
	prompt := analyzer.Prompt{System: "instructions", User: `Meal description: "pasta"`}

	t.Run("forced tool input returned as json", func(t *testing.T) {
		mock := &mockBedrockClient{response: toolUseOutput(newResponseDocument(t, map[string]any{
			"mealTime":      "dinner",
			"foodItems":     []any{map[string]any{"name": "pasta", "calories": 350, "protein": 12}},
			"totalCalories": 350,
			"totalProtein":  12,
		}))}
		client := NewLLMClient(mock, LLMOptions{})

		text, err := client.Complete(context.Background(), prompt)
		require.NoError(t, err)

		var got map[string]any
		require.NoError(t, json.Unmarshal([]byte(text), &got))
		assert.Equal(t, "dinner", got["mealTime"])
		assert.Equal(t, 350.0, got["totalCalories"])

		require.NotNil(t, mock.input)
		choice, ok := mock.input.ToolConfig.ToolChoice.(*types.ToolChoiceMemberTool)
		require.True(t, ok, "tool use must be forced")
		assert.Equal(t, analyzer.ToolName, aws.ToString(choice.Value.Name))
		require.Len(t, mock.input.Messages, 1)
		assert.Equal(t, types.ConversationRoleUser, mock.input.Messages[0].Role)
		assert.Equal(t, float32(0.3), aws.ToFloat32(mock.input.InferenceConfig.Temperature))
	})

	t.Run("plain text answer", func(t *testing.T) {
		mock := &mockBedrockClient{response: &bedrockruntime.ConverseOutput{
			StopReason: types.StopReasonEndTurn,
			Output: &types.ConverseOutputMemberMessage{Value: types.Message{
				Role:    types.ConversationRoleAssistant,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: `{"foodItems":[]}`}},
			}},
		}}
		text, err := NewLLMClient(mock, LLMOptions{}).Complete(context.Background(), prompt)
		require.NoError(t, err)
		assert.Equal(t, `{"foodItems":[]}`, text)
	})

	t.Run("content filtered", func(t *testing.T) {
		for _, reason := range []types.StopReason{types.StopReasonContentFiltered, types.StopReasonGuardrailIntervened} {
			mock := &mockBedrockClient{response: &bedrockruntime.ConverseOutput{StopReason: reason}}
			_, err := analyzer.NewRemote(NewLLMClient(mock, LLMOptions{}), analyzer.Options{}).Analyze(context.Background(), "pasta")
			assert.ErrorIs(t, err, mealvoice.ErrContentBlocked)
			assert.ErrorIs(t, err, mealvoice.ErrRemote)
			assert.NotErrorIs(t, err, mealvoice.ErrParse)
		}
	})

	t.Run("undecodable tool input", func(t *testing.T) {
		mock := &mockBedrockClient{response: toolUseOutput(newResponseDocument(t, "not an object"))}
		_, err := NewLLMClient(mock, LLMOptions{}).Complete(context.Background(), prompt)
		assert.ErrorIs(t, err, mealvoice.ErrParse)
	})

	t.Run("throttling keeps status code", func(t *testing.T) {
		throttled := &awshttp.ResponseError{
			ResponseError: &smithyhttp.ResponseError{
				Response: &smithyhttp.Response{Response: &http.Response{StatusCode: http.StatusTooManyRequests}},
				Err:      errors.New("ThrottlingException"),
			},
		}
		mock := &mockBedrockClient{err: throttled}

		_, err := NewLLMClient(mock, LLMOptions{}).Complete(context.Background(), prompt)
		var re *mealvoice.RemoteError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, http.StatusTooManyRequests, re.StatusCode)
		assert.True(t, re.Retryable())
	})

	t.Run("end to end through remote analyzer", func(t *testing.T) {
		mock := &mockBedrockClient{response: toolUseOutput(newResponseDocument(t, map[string]any{
			"mealTime":      "lunch",
			"foodItems":     []any{map[string]any{"name": "salmon", "calories": 300, "protein": 30, "confidence": "high"}},
			"totalCalories": 300,
			"totalProtein":  30,
			"totalCarbs":    0,
			"totalFat":      18,
		}))}
		r := analyzer.NewRemote(NewLLMClient(mock, LLMOptions{}), analyzer.Options{
			Now: func() time.Time { return time.Date(2026, 10, 19, 19, 0, 0, 0, time.UTC) },
		})

		got, err := r.Analyze(context.Background(), "salmon for lunch")
		require.NoError(t, err)
		assert.Equal(t, mealvoice.MealTimeLunch, got.MealTime)
		require.Len(t, got.FoodItems, 1)
		assert.Equal(t, mealvoice.ConfidenceHigh, got.FoodItems[0].Confidence)
		assert.Equal(t, 18.0, got.TotalFat)
	})
}

func TestBuildToolSpec(t *testing.T) {
	spec, err := buildToolSpec()
	require.NoError(t, err)
	assert.Equal(t, analyzer.ToolName, aws.ToString(spec.Name))
	_, ok := spec.InputSchema.(*types.ToolInputSchemaMemberJson)
	assert.True(t, ok)
}
