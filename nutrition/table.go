// Package nutrition holds the local nutrition lookup table used when remote analysis
// is unavailable, and the daily goal arithmetic for journal summaries.
package nutrition

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"mealvoice/nutrition/storage"
)

// Nutrients are the macros for a reference amount of one food, 100g unless Per says otherwise.
type Nutrients struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs,omitempty"`
	Fat      float64 `json:"fat,omitempty"`
	Per      string  `json:"per,omitempty"`
}

// Estimate is the fallback calorie and protein guess for a list of foods.
type Estimate struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
}

// UnknownFood is charged for every name missing from the table.
var UnknownFood = Estimate{Calories: 50, Protein: 2}

var defaultEntries = map[string]Nutrients{
	"chicken":    {Calories: 165, Protein: 31, Carbs: 0, Fat: 3.6, Per: "100g"},
	"rice":       {Calories: 130, Protein: 2.7, Carbs: 28, Fat: 0.3, Per: "100g"},
	"salmon":     {Calories: 208, Protein: 22, Carbs: 0, Fat: 13, Per: "100g"},
	"salad":      {Calories: 20, Protein: 1, Carbs: 3.6, Fat: 0.2, Per: "100g"},
	"pasta":      {Calories: 131, Protein: 5.5, Carbs: 25, Fat: 1.1, Per: "100g"},
	"beef":       {Calories: 250, Protein: 26, Carbs: 0, Fat: 15, Per: "100g"},
	"fish":       {Calories: 120, Protein: 20, Carbs: 0, Fat: 4, Per: "100g"},
	"vegetables": {Calories: 50, Protein: 3, Carbs: 10, Fat: 0.3, Per: "100g"},
}

// Table is an immutable food-name lookup. Keys are lowercase.
type Table struct {
	entries map[string]Nutrients
}

// DefaultTable returns the built-in table.
func DefaultTable() *Table {
	t, _ := NewTable(defaultEntries)
	return t
}

// NewTable copies entries into a table, lowercasing names and rejecting
// negative or non-finite values.
func NewTable(entries map[string]Nutrients) (*Table, error) {
	out := make(map[string]Nutrients, len(entries))
	for name, n := range entries {
		key := normalizeName(name)
		if key == "" {
			return nil, fmt.Errorf("nutrition table: empty food name")
		}
		for field, v := range map[string]float64{"calories": n.Calories, "protein": n.Protein, "carbs": n.Carbs, "fat": n.Fat} {
			if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("nutrition table: %s has invalid %s %v", key, field, v)
			}
		}
		out[key] = n
	}
	return &Table{entries: out}, nil
}

// LoadTable reads a JSON object of name → Nutrients from state.
func LoadTable(ctx context.Context, state storage.TableState) (*Table, error) {
	data, err := state.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load nutrition table: %w", err)
	}

	var entries map[string]Nutrients
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode nutrition table: %w", err)
	}

	t, err := NewTable(entries)
	if err != nil {
		return nil, err
	}
	slog.Info("NUTRITION: Lookup table loaded", "entries", t.Len())
	return t, nil
}

func (t *Table) Lookup(name string) (Nutrients, bool) {
	n, ok := t.entries[normalizeName(name)]
	return n, ok
}

func (t *Table) Len() int {
	return len(t.entries)
}

// Estimate sums calories and protein over names, charging UnknownFood for misses.
func (t *Table) Estimate(names []string) Estimate {
	var est Estimate
	for _, name := range names {
		if n, ok := t.Lookup(name); ok {
			est.Calories += n.Calories
			est.Protein += n.Protein
			continue
		}
		est.Calories += UnknownFood.Calories
		est.Protein += UnknownFood.Protein
	}
	return est
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
