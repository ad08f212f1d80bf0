package analyzer

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"mealvoice"
)

// Parse validates raw model output and normalizes it into a MealAnalysisResult.
// now supplies the hour used when the model omits or garbles the meal time.
func Parse(text string, now time.Time) (mealvoice.MealAnalysisResult, error) {
	text = stripCodeFences(strings.TrimSpace(text))
	if text == "" {
		return mealvoice.MealAnalysisResult{}, fmt.Errorf("%w: empty response", mealvoice.ErrParse)
	}

	var decoded any
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return mealvoice.MealAnalysisResult{}, fmt.Errorf("%w: %w", mealvoice.ErrParse, err)
	}

	obj, ok := decoded.(map[string]any)
	if !ok {
		return mealvoice.MealAnalysisResult{}, fmt.Errorf("%w: expected a JSON object, got %T", mealvoice.ErrSchema, decoded)
	}

	rawItems, ok := obj["foodItems"].([]any)
	if !ok {
		return mealvoice.MealAnalysisResult{}, fmt.Errorf("%w: foodItems missing or not an array", mealvoice.ErrSchema)
	}

	result := mealvoice.MealAnalysisResult{
		FoodItems:     make([]mealvoice.FoodItem, 0, len(rawItems)),
		TotalProtein:  number(obj["totalProtein"]),
		TotalCalories: number(obj["totalCalories"]),
		TotalCarbs:    number(obj["totalCarbs"]),
		TotalFat:      number(obj["totalFat"]),
	}

	mealTime, _ := obj["mealTime"].(string)
	if mt, ok := mealvoice.ParseMealTime(mealTime); ok {
		result.MealTime = mt
	} else {
		result.MealTime = mealvoice.MealTimeAt(now)
		result.MealTimeInferred = true
	}

	for _, raw := range rawItems {
		if item, ok := foodItem(raw); ok {
			result.FoodItems = append(result.FoodItems, item)
		}
	}

	return result, nil
}

// foodItem converts one decoded array element. Elements that are not objects or lack a name are dropped.
func foodItem(raw any) (mealvoice.FoodItem, bool) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return mealvoice.FoodItem{}, false
	}

	name, _ := obj["name"].(string)
	name = strings.TrimSpace(name)
	if name == "" {
		return mealvoice.FoodItem{}, false
	}

	item := mealvoice.FoodItem{
		Name:     name,
		Protein:  number(obj["protein"]),
		Calories: number(obj["calories"]),
		Carbs:    number(obj["carbs"]),
		Fat:      number(obj["fat"]),
	}

	if amount, ok := obj["estimatedAmount"].(string); ok && strings.TrimSpace(amount) != "" {
		amount = strings.TrimSpace(amount)
		item.EstimatedAmount = &amount
	}

	confidence, _ := obj["confidence"].(string)
	item.Confidence = mealvoice.ParseConfidence(confidence)

	return item, true
}

// number coerces a decoded JSON value to a finite, non-negative float. Anything else is 0.
func number(v any) float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

// stripCodeFences removes a surrounding ```json fence some models add despite instructions.
func stripCodeFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		return ""
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
