package nutrition

import (
	"math"

	"mealvoice"
)

type Goals struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

func DefaultGoals() Goals {
	return Goals{Calories: 2000, Protein: 100, Carbs: 250, Fat: 70}
}

func GoalsFromConfig(cfg mealvoice.GoalsConfig) Goals {
	return Goals{Calories: cfg.Calories, Protein: cfg.Protein, Carbs: cfg.Carbs, Fat: cfg.Fat}
}

type Totals struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// Summary is a day's intake measured against goals.
type Summary struct {
	Meals       int    `json:"meals"`
	Totals      Totals `json:"totals"`
	Goals       Goals  `json:"goals"`
	Percentages Totals `json:"percentages"`
}

// Summarize adds up meals and reports each macro as a percentage of its goal, capped at 100.
func Summarize(meals []mealvoice.NormalizedMeal, goals Goals) Summary {
	var totals Totals
	for _, m := range meals {
		totals.Calories += m.Calories
		totals.Protein += m.Protein
		totals.Carbs += m.Carbs
		totals.Fat += m.Fat
	}

	return Summary{
		Meals:  len(meals),
		Totals: totals,
		Goals:  goals,
		Percentages: Totals{
			Calories: percentage(totals.Calories, goals.Calories),
			Protein:  percentage(totals.Protein, goals.Protein),
			Carbs:    percentage(totals.Carbs, goals.Carbs),
			Fat:      percentage(totals.Fat, goals.Fat),
		},
	}
}

func percentage(current, goal float64) float64 {
	if goal <= 0 {
		return 0
	}
	return math.Min(current/goal*100, 100)
}
