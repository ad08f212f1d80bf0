package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"mealvoice"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProcessor struct {
	transcript string
}

func (p *stubProcessor) Process(_ context.Context, transcript string) mealvoice.NormalizedMeal {
	p.transcript = transcript
	return mealvoice.NormalizedMeal{Description: transcript, MealType: "lunch", FoodItems: []string{"salad"}, Calories: 20}
}

func TestHandle(t *testing.T) {
	flushes := 0
	flush := func(context.Context) error {
		flushes++
		return nil
	}

	t.Run("analyzes trimmed transcript", func(t *testing.T) {
		p := &stubProcessor{}
		h := handler{processor: p, flush: flush}

		resp, err := h.handle(context.Background(), Params{Transcript: "  salad \n"})
		require.NoError(t, err)
		assert.Equal(t, "salad", p.transcript)
		assert.Equal(t, 20.0, resp.Calories)
		assert.False(t, resp.Error)
	})

	t.Run("blank transcript", func(t *testing.T) {
		h := handler{processor: &stubProcessor{}, flush: flush}
		_, err := h.handle(context.Background(), Params{Transcript: "   "})
		assert.ErrorIs(t, err, mealvoice.ErrValidation)
	})

	t.Run("backend not configured", func(t *testing.T) {
		backendErr := fmt.Errorf("%w: OPENAI_API_KEY is not set", mealvoice.ErrConfiguration)
		h := handler{backendErr: backendErr, flush: flush}
		_, err := h.handle(context.Background(), Params{Transcript: "rice"})
		assert.ErrorIs(t, err, mealvoice.ErrConfiguration)
	})

	t.Run("flush failure does not fail the invocation", func(t *testing.T) {
		h := handler{processor: &stubProcessor{}, flush: func(context.Context) error { return errors.New("collector down") }}
		_, err := h.handle(context.Background(), Params{Transcript: "rice"})
		assert.NoError(t, err)
	})

	assert.Equal(t, 3, flushes, "telemetry is flushed on every invocation")
}
