package analyzer

import (
	"testing"
	"time"

	"mealvoice"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var lunchHour = time.Date(2026, 10, 19, 12, 15, 0, 0, time.UTC)

func TestParse(t *testing.T) {
	t.Run("valid response", func(t *testing.T) {
		text := `{
			"mealTime": "Dinner",
			"foodItems": [
				{"name": "grilled chicken", "estimatedAmount": "150g", "calories": 248, "protein": 46, "carbs": 0, "fat": 5, "confidence": "high"},
				{"name": "rice", "calories": 206, "protein": 4.3, "carbs": 45, "fat": 0.4, "confidence": "medium"}
			],
			"totalCalories": 454, "totalProtein": 50.3, "totalCarbs": 45, "totalFat": 5.4
		}`

		got, err := Parse(text, lunchHour)
		require.NoError(t, err)

		assert.Equal(t, mealvoice.MealTimeDinner, got.MealTime)
		assert.False(t, got.MealTimeInferred)
		require.Len(t, got.FoodItems, 2)
		assert.Equal(t, "grilled chicken", got.FoodItems[0].Name)
		require.NotNil(t, got.FoodItems[0].EstimatedAmount)
		assert.Equal(t, "150g", *got.FoodItems[0].EstimatedAmount)
		assert.Nil(t, got.FoodItems[1].EstimatedAmount)
		assert.Equal(t, mealvoice.ConfidenceMedium, got.FoodItems[1].Confidence)
		assert.Equal(t, 454.0, got.TotalCalories)
		assert.Equal(t, 50.3, got.TotalProtein)
	})

	t.Run("totals are trusted over items", func(t *testing.T) {
		text := `{"mealTime":"lunch","foodItems":[{"name":"apple","calories":95,"protein":0.5}],"totalCalories":500,"totalProtein":20,"totalCarbs":10,"totalFat":1}`
		got, err := Parse(text, lunchHour)
		require.NoError(t, err)
		assert.Equal(t, 500.0, got.TotalCalories)
	})

	t.Run("invalid meal time inferred from clock", func(t *testing.T) {
		got, err := Parse(`{"mealTime":"brunch","foodItems":[],"totalCalories":0,"totalProtein":0}`, lunchHour)
		require.NoError(t, err)
		assert.Equal(t, mealvoice.MealTimeLunch, got.MealTime)
		assert.True(t, got.MealTimeInferred)
	})

	t.Run("missing meal time inferred from clock", func(t *testing.T) {
		late := time.Date(2026, 10, 19, 23, 0, 0, 0, time.UTC)
		got, err := Parse(`{"foodItems":[]}`, late)
		require.NoError(t, err)
		assert.Equal(t, mealvoice.MealTimeSnack, got.MealTime)
	})

	t.Run("numeric coercion", func(t *testing.T) {
		text := `{"mealTime":"snack","foodItems":[{"name":" nuts ","calories":"180","protein":null,"carbs":"lots","fat":-3,"confidence":"certain"},{"name":""},42],"totalCalories":"180.5","totalProtein":true}`
		got, err := Parse(text, lunchHour)
		require.NoError(t, err)

		require.Len(t, got.FoodItems, 1, "nameless and non-object items are dropped")
		item := got.FoodItems[0]
		assert.Equal(t, "nuts", item.Name)
		assert.Equal(t, 180.0, item.Calories)
		assert.Zero(t, item.Protein)
		assert.Zero(t, item.Carbs)
		assert.Zero(t, item.Fat)
		assert.Equal(t, mealvoice.ConfidenceLow, item.Confidence)
		assert.Equal(t, 180.5, got.TotalCalories)
		assert.Zero(t, got.TotalProtein)
		assert.Zero(t, got.TotalCarbs)
		assert.Zero(t, got.TotalFat)
	})

	t.Run("code fenced json", func(t *testing.T) {
		text := "```json\n{\"mealTime\":\"breakfast\",\"foodItems\":[{\"name\":\"eggs\"}],\"totalCalories\":140,\"totalProtein\":12}\n```"
		got, err := Parse(text, lunchHour)
		require.NoError(t, err)
		assert.Equal(t, mealvoice.MealTimeBreakfast, got.MealTime)
		assert.Equal(t, 140.0, got.TotalCalories)
	})
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr error
	}{
		{"empty", "", mealvoice.ErrParse},
		{"whitespace", "  \n\t ", mealvoice.ErrParse},
		{"prose", "Sure! Here is your analysis.", mealvoice.ErrParse},
		{"truncated", `{"mealTime": "lunch", "foodItems": [`, mealvoice.ErrParse},
		{"array", `[{"name":"rice"}]`, mealvoice.ErrSchema},
		{"string", `"chicken"`, mealvoice.ErrSchema},
		{"missing food items", `{"mealTime":"lunch","totalCalories":100}`, mealvoice.ErrSchema},
		{"food items not array", `{"foodItems":"rice"}`, mealvoice.ErrSchema},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text, lunchHour)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFences("```\n{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, stripCodeFences(`{"a":1}`))
}
