package nutrition

import (
	"context"
	"errors"
	"testing"

	"mealvoice/nutrition/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimate(t *testing.T) {
	table := DefaultTable()

	tests := []struct {
		name  string
		items []string
		want  Estimate
	}{
		{
			name:  "known and unknown",
			items: []string{"chicken", "unknown_xyz"},
			want:  Estimate{Calories: 215, Protein: 33},
		},
		{
			name:  "case and whitespace insensitive",
			items: []string{"  Salmon ", "SALAD"},
			want:  Estimate{Calories: 228, Protein: 23},
		},
		{
			name:  "all unknown",
			items: []string{"eggs", "toast"},
			want:  Estimate{Calories: 100, Protein: 4},
		},
		{
			name:  "empty input",
			items: nil,
			want:  Estimate{},
		},
		{
			name:  "duplicates count twice",
			items: []string{"rice", "rice"},
			want:  Estimate{Calories: 260, Protein: 5.4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := table.Estimate(tt.items)
			assert.InDelta(t, tt.want.Calories, got.Calories, 1e-9)
			assert.InDelta(t, tt.want.Protein, got.Protein, 1e-9)
		})
	}
}

func TestDefaultTable(t *testing.T) {
	table := DefaultTable()
	assert.Equal(t, 8, table.Len())

	n, ok := table.Lookup("Pasta")
	require.True(t, ok)
	assert.Equal(t, 131.0, n.Calories)
	assert.Equal(t, 5.5, n.Protein)

	_, ok = table.Lookup("tofu")
	assert.False(t, ok)
}

func TestNewTable(t *testing.T) {
	t.Run("rejects negative values", func(t *testing.T) {
		_, err := NewTable(map[string]Nutrients{"bad": {Calories: -1}})
		assert.Error(t, err)
	})

	t.Run("rejects empty names", func(t *testing.T) {
		_, err := NewTable(map[string]Nutrients{"  ": {Calories: 1}})
		assert.Error(t, err)
	})

	t.Run("does not alias input map", func(t *testing.T) {
		in := map[string]Nutrients{"Tofu": {Calories: 76, Protein: 8}}
		table, err := NewTable(in)
		require.NoError(t, err)

		in["Tofu"] = Nutrients{Calories: 1}
		n, ok := table.Lookup("tofu")
		require.True(t, ok)
		assert.Equal(t, 76.0, n.Calories)
	})
}

func TestLoadTable(t *testing.T) {
	t.Run("valid document", func(t *testing.T) {
		state := storage.NewStaticTableState([]byte(`{"Tofu": {"calories": 76, "protein": 8, "per": "100g"}, "egg": {"calories": 155, "protein": 13}}`))
		table, err := LoadTable(context.Background(), state)
		require.NoError(t, err)
		assert.Equal(t, 2, table.Len())

		est := table.Estimate([]string{"tofu", "egg", "bread"})
		assert.Equal(t, Estimate{Calories: 281, Protein: 23}, est)
	})

	t.Run("storage error", func(t *testing.T) {
		_, err := LoadTable(context.Background(), storage.NewFailingTableState(errors.New("not found")))
		assert.Error(t, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := LoadTable(context.Background(), storage.NewStaticTableState([]byte(`[1,2]`)))
		assert.Error(t, err)
	})
}
