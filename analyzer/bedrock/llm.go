// Package bedrock runs meal analysis on Amazon Bedrock through the Converse API,
// forcing the model to answer through a tool whose input schema is the analysis schema.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"mealvoice"
	"mealvoice/analyzer"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithydoc "github.com/aws/smithy-go/document"
)

const (
	// defaultModelID is an inference profile ID, not the foundation model's ID.
	// See https://docs.aws.amazon.com/bedrock/latest/userguide/inference-profiles.html.
	defaultModelID = "us.anthropic.claude-3-5-haiku-20241022-v1:0"

	// A meal analysis is a small JSON object; 800 tokens leaves room for long meals.
	defaultMaxTokens = 800

	defaultTemperature = 0.3

	defaultTopP = 0.9
)

type bedrockRuntimeClient interface {
	Converse(context.Context, *bedrockruntime.ConverseInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

type LLMOptions struct {
	ModelID     string
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

type LLMClient struct {
	brc  bedrockRuntimeClient
	opts LLMOptions
}

func NewLLMClient(brc bedrockRuntimeClient, opts LLMOptions) *LLMClient {
	if opts.ModelID == "" {
		opts.ModelID = defaultModelID
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.Temperature == 0 {
		opts.Temperature = defaultTemperature
	}
	if opts.TopP == 0 {
		opts.TopP = defaultTopP
	}
	return &LLMClient{
		brc:  brc,
		opts: opts,
	}
}

// Complete returns the forced tool's input as JSON text, or the assistant text if the model answered without the tool.
func (c *LLMClient) Complete(ctx context.Context, prompt analyzer.Prompt) (string, error) {
	slog.Info("LLM_CLIENT: Invoked", "model", c.opts.ModelID)

	spec, err := buildToolSpec()
	if err != nil {
		return "", err
	}

	in := &bedrockruntime.ConverseInput{
		ModelId: aws.String(c.opts.ModelID),
		System:  []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: prompt.System}},
		Messages: []types.Message{{
			Role:    types.ConversationRoleUser,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: prompt.User}},
		}},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(c.opts.MaxTokens),
			Temperature: aws.Float32(c.opts.Temperature),
			TopP:        aws.Float32(c.opts.TopP),
		},
		ToolConfig: &types.ToolConfiguration{
			Tools: []types.Tool{&types.ToolMemberToolSpec{Value: spec}},
			ToolChoice: &types.ToolChoiceMemberTool{
				Value: types.SpecificToolChoice{Name: aws.String(analyzer.ToolName)},
			},
		},
	}

	out, err := c.brc.Converse(ctx, in)
	if err != nil {
		slog.Error("LLM_CLIENT: Bedrock invoke failed", "error", err)
		return "", analyzer.RemoteFailure(statusCode(err), err)
	}

	attrs := []any{"stop_reason", out.StopReason}
	if out.Usage != nil {
		attrs = append(attrs, "input_tokens", aws.ToInt32(out.Usage.InputTokens), "output_tokens", aws.ToInt32(out.Usage.OutputTokens))
	}
	if out.Metrics != nil {
		attrs = append(attrs, "latency_ms", aws.ToInt64(out.Metrics.LatencyMs))
	}
	slog.Info("LLM_CLIENT: Bedrock invoke succeeded", attrs...)

	switch out.StopReason {
	case types.StopReasonMaxTokens:
		slog.Warn("LLM_CLIENT: Model hit MaxTokens limit; output is likely truncated")
	case types.StopReasonContentFiltered, types.StopReasonGuardrailIntervened:
		return "", analyzer.Blocked(fmt.Sprintf("bedrock stop reason %s", out.StopReason))
	}

	input, ok, err := toolInputFromOutput(out)
	if err != nil {
		return "", err
	}
	if ok {
		b, err := json.Marshal(input)
		if err != nil {
			return "", fmt.Errorf("%w: failed to encode tool input: %v", mealvoice.ErrParse, err)
		}
		return string(b), nil
	}

	return textFromOutput(out), nil
}

// buildToolSpec wraps the analysis schema as a Bedrock tool specification.
func buildToolSpec() (types.ToolSpecification, error) {
	// Round-trip through JSON so the schema's own MarshalJSON decides the wire shape
	schemaJSON, err := json.Marshal(analyzer.OutputSchema())
	if err != nil {
		return types.ToolSpecification{}, fmt.Errorf("failed to marshal tool schema: %w", err)
	}

	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return types.ToolSpecification{}, fmt.Errorf("failed to unmarshal tool schema: %w", err)
	}

	return types.ToolSpecification{
		Name:        aws.String(analyzer.ToolName),
		Description: aws.String(analyzer.ToolDescription),
		InputSchema: &types.ToolInputSchemaMemberJson{
			Value: document.NewLazyDocument(schemaMap),
		},
	}, nil
}

// toolInputFromOutput returns the input of the first analysis tool call, if any.
func toolInputFromOutput(out *bedrockruntime.ConverseOutput) (map[string]any, bool, error) {
	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok || msg == nil {
		return nil, false, nil
	}

	for _, cb := range msg.Value.Content {
		tu, ok := cb.(*types.ContentBlockMemberToolUse)
		if !ok || tu == nil || aws.ToString(tu.Value.Name) != analyzer.ToolName {
			continue
		}
		if tu.Value.Input == nil {
			return nil, false, nil
		}

		var input map[string]any
		if err := tu.Value.Input.UnmarshalSmithyDocument(&input); err != nil {
			return nil, false, fmt.Errorf("%w: failed to decode tool input: %v", mealvoice.ErrParse, err)
		}
		return normalizeDocument(input).(map[string]any), true, nil
	}

	return nil, false, nil
}

// textFromOutput joins the assistant's text blocks.
func textFromOutput(out *bedrockruntime.ConverseOutput) string {
	if out == nil || out.Output == nil {
		return ""
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok || msg == nil {
		return ""
	}

	var texts []string
	for _, cb := range msg.Value.Content {
		if t, ok := cb.(*types.ContentBlockMemberText); ok && t != nil && t.Value != "" {
			texts = append(texts, t.Value)
		}
	}
	return strings.Join(texts, "\n")
}

// normalizeDocument swaps smithy document numbers, which marshal as JSON strings, for json.Number.
func normalizeDocument(val any) any {
	switch v := val.(type) {
	case smithydoc.Number:
		return json.Number(v)
	case []any:
		for i := range v {
			v[i] = normalizeDocument(v[i])
		}
		return v
	case map[string]any:
		for key, item := range v {
			v[key] = normalizeDocument(item)
		}
		return v
	default:
		return v
	}
}

func statusCode(err error) int {
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		return re.HTTPStatusCode()
	}
	return 0
}
