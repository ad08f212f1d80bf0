// Package analyzer turns a meal transcript into a validated MealAnalysisResult.
// Backends under this directory only move text to and from a hosted model; prompt
// construction, parsing and normalization live here so every backend behaves the same.
package analyzer

import (
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
)

// ToolName is the forced tool name used by backends that return structured output through tool calls.
const ToolName = "record_meal_analysis"

const ToolDescription = "Record the nutritional analysis of the described meal."

const instructions = `You are a nutrition assistant. Analyze the meal description the user gives you and extract nutritional information.

Return ONLY a JSON object that matches this JSON schema. Do not add prose, explanations or markdown fences.

%s

Rules:
- mealTime must be one of: breakfast, lunch, dinner, snack, dessert. Use the meal the user names. If none is named, choose the most likely one for the foods described.
- For every food item give calories in kcal and protein, carbs and fat in grams for the amount eaten.
- estimatedAmount is the portion in everyday units such as "1 cup" or "150g".
- confidence is high, medium or low depending on how precisely the description identifies the food and portion.
- totalCalories, totalProtein, totalCarbs and totalFat are the sums for the whole meal.
- If the description contains no food, return an empty foodItems array and zero totals.`

// Prompt is the rendered request for one analysis. System carries the instructions and
// output schema; User carries the transcript verbatim.
type Prompt struct {
	System     string
	User       string
	Transcript string
}

// NewPrompt renders the canonical analysis prompt for transcript.
func NewPrompt(transcript string) (Prompt, error) {
	schema, err := json.MarshalIndent(OutputSchema(), "", "  ")
	if err != nil {
		return Prompt{}, fmt.Errorf("failed to marshal output schema: %w", err)
	}

	return Prompt{
		System:     fmt.Sprintf(instructions, schema),
		User:       fmt.Sprintf("Meal description: \"%s\"", transcript),
		Transcript: transcript,
	}, nil
}

// OutputSchema describes the JSON object the model must return.
func OutputSchema() *jsonschema.Schema {
	zero := 0.0
	number := func(desc string) *jsonschema.Schema {
		return &jsonschema.Schema{Type: "number", Minimum: &zero, Description: desc}
	}

	item := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"name":            {Type: "string", Description: "Food name, e.g. grilled chicken"},
			"estimatedAmount": {Type: "string", Description: "Portion eaten, e.g. 150g"},
			"calories":        number("Calories in kcal"),
			"protein":         number("Protein in grams"),
			"carbs":           number("Carbohydrates in grams"),
			"fat":             number("Fat in grams"),
			"confidence":      {Type: "string", Enum: []any{"high", "medium", "low"}},
		},
		Required: []string{"name", "calories", "protein", "carbs", "fat", "confidence"},
	}

	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"mealTime": {
				Type: "string",
				Enum: []any{"breakfast", "lunch", "dinner", "snack", "dessert"},
			},
			"foodItems":     {Type: "array", Items: item},
			"totalCalories": number("Total calories in kcal"),
			"totalProtein":  number("Total protein in grams"),
			"totalCarbs":    number("Total carbohydrates in grams"),
			"totalFat":      number("Total fat in grams"),
		},
		Required: []string{"mealTime", "foodItems", "totalCalories", "totalProtein", "totalCarbs", "totalFat"},
	}
}
