package nutrition

import (
	"testing"

	"mealvoice"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	meals := []mealvoice.NormalizedMeal{
		{Calories: 600, Protein: 40, Carbs: 70, Fat: 20},
		{Calories: 900, Protein: 75, Carbs: 80, Fat: 60},
	}

	s := Summarize(meals, DefaultGoals())

	assert.Equal(t, 2, s.Meals)
	assert.Equal(t, Totals{Calories: 1500, Protein: 115, Carbs: 150, Fat: 80}, s.Totals)
	assert.InDelta(t, 75, s.Percentages.Calories, 1e-9)
	assert.Equal(t, 100.0, s.Percentages.Protein, "capped at 100")
	assert.InDelta(t, 60, s.Percentages.Carbs, 1e-9)
	assert.Equal(t, 100.0, s.Percentages.Fat)
}

func TestSummarizeEdgeCases(t *testing.T) {
	s := Summarize(nil, DefaultGoals())
	assert.Equal(t, 0, s.Meals)
	assert.Equal(t, Totals{}, s.Percentages)

	s = Summarize([]mealvoice.NormalizedMeal{{Calories: 100}}, Goals{})
	assert.Equal(t, 0.0, s.Percentages.Calories, "zero goal yields zero")
}

func TestGoalsFromConfig(t *testing.T) {
	g := GoalsFromConfig(mealvoice.GoalsConfig{Calories: 1800, Protein: 120, Carbs: 200, Fat: 60})
	assert.Equal(t, Goals{Calories: 1800, Protein: 120, Carbs: 200, Fat: 60}, g)
}
