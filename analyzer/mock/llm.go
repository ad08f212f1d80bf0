// Package mock is a deterministic stand-in for a hosted model. It answers from the local
// nutrition table so the pipeline can be exercised without credentials or network access.
package mock

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"mealvoice/analyzer"
	"mealvoice/nutrition"
)

type Options struct {
	// Table is consulted for per-item values. Defaults to the built-in table.
	Table *nutrition.Table
	// Delay simulates model latency and honours context cancellation.
	Delay time.Duration
	// Err, when set, is returned instead of a response.
	Err error
}

type LLMClient struct {
	opts Options
}

func NewLLMClient(opts Options) *LLMClient {
	if opts.Table == nil {
		opts.Table = nutrition.DefaultTable()
	}
	return &LLMClient{opts: opts}
}

// Complete builds an analysis by splitting the transcript into foods and pricing each from the table.
func (m *LLMClient) Complete(ctx context.Context, prompt analyzer.Prompt) (string, error) {
	slog.Info("LLM_CLIENT: Invoked", "model", "mock")

	if m.opts.Delay > 0 {
		select {
		case <-time.After(m.opts.Delay):
		case <-ctx.Done():
			return "", analyzer.RemoteFailure(0, ctx.Err())
		}
	}
	if m.opts.Err != nil {
		return "", m.opts.Err
	}

	type item struct {
		Name            string  `json:"name"`
		EstimatedAmount string  `json:"estimatedAmount"`
		Calories        float64 `json:"calories"`
		Protein         float64 `json:"protein"`
		Carbs           float64 `json:"carbs"`
		Fat             float64 `json:"fat"`
		Confidence      string  `json:"confidence"`
	}

	out := struct {
		MealTime      string  `json:"mealTime,omitempty"`
		FoodItems     []item  `json:"foodItems"`
		TotalCalories float64 `json:"totalCalories"`
		TotalProtein  float64 `json:"totalProtein"`
		TotalCarbs    float64 `json:"totalCarbs"`
		TotalFat      float64 `json:"totalFat"`
	}{
		MealTime:  mentionedMealTime(prompt.Transcript),
		FoodItems: []item{},
	}

	for _, name := range nutrition.SplitFoods(prompt.Transcript) {
		it := item{Name: name, EstimatedAmount: "100g", Confidence: "low"}
		if n, ok := m.lookup(name); ok {
			it.Calories, it.Protein, it.Carbs, it.Fat = n.Calories, n.Protein, n.Carbs, n.Fat
			it.Confidence = "medium"
		} else {
			it.Calories, it.Protein = nutrition.UnknownFood.Calories, nutrition.UnknownFood.Protein
		}
		out.FoodItems = append(out.FoodItems, it)
		out.TotalCalories += it.Calories
		out.TotalProtein += it.Protein
		out.TotalCarbs += it.Carbs
		out.TotalFat += it.Fat
	}

	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}

	slog.Info("LLM_CLIENT: Returning mock analysis", "food_items", len(out.FoodItems))
	return string(b), nil
}

// lookup tries the whole name, then each word, so "grilled chicken" prices as chicken.
func (m *LLMClient) lookup(name string) (nutrition.Nutrients, bool) {
	if n, ok := m.opts.Table.Lookup(name); ok {
		return n, true
	}
	for _, word := range strings.Fields(name) {
		if n, ok := m.opts.Table.Lookup(word); ok {
			return n, true
		}
	}
	return nutrition.Nutrients{}, false
}

func mentionedMealTime(transcript string) string {
	lower := strings.ToLower(transcript)
	for _, mt := range []string{"breakfast", "lunch", "dinner", "snack", "dessert"} {
		if strings.Contains(lower, mt) {
			return mt
		}
	}
	return ""
}
