package analyzer

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"mealvoice"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validOutput = `{"mealTime":"lunch","foodItems":[{"name":"salad","calories":150,"protein":5,"carbs":10,"fat":9,"confidence":"high"}],"totalCalories":150,"totalProtein":5,"totalCarbs":10,"totalFat":9}`

// scriptedLLM returns the scripted outcomes in order and records the prompts it saw.
type scriptedLLM struct {
	outputs []string
	errs    []error
	prompts []Prompt
}

func (s *scriptedLLM) Complete(ctx context.Context, prompt Prompt) (string, error) {
	i := len(s.prompts)
	s.prompts = append(s.prompts, prompt)
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.outputs) {
		return s.outputs[i], nil
	}
	return "", errors.New("script exhausted")
}

func fixedClock() time.Time { return lunchHour }

func TestRemoteAnalyze(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		llm := &scriptedLLM{outputs: []string{validOutput}}
		r := NewRemote(llm, Options{Now: fixedClock})

		got, err := r.Analyze(context.Background(), "a salad")
		require.NoError(t, err)
		assert.Equal(t, mealvoice.MealTimeLunch, got.MealTime)
		assert.Equal(t, 150.0, got.TotalCalories)
		require.Len(t, llm.prompts, 1)
		assert.Contains(t, llm.prompts[0].User, "a salad")
	})

	t.Run("retries throttling then succeeds", func(t *testing.T) {
		llm := &scriptedLLM{
			errs: []error{
				RemoteFailure(http.StatusTooManyRequests, errors.New("slow down")),
				RemoteFailure(http.StatusServiceUnavailable, errors.New("unavailable")),
			},
			outputs: []string{"", "", validOutput},
		}
		r := NewRemote(llm, Options{Now: fixedClock, InitialInterval: time.Millisecond})

		got, err := r.Analyze(context.Background(), "a salad")
		require.NoError(t, err)
		assert.Equal(t, 150.0, got.TotalCalories)
		assert.Len(t, llm.prompts, 3)
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		llm := &scriptedLLM{errs: []error{RemoteFailure(http.StatusBadRequest, errors.New("bad request"))}}
		r := NewRemote(llm, Options{Now: fixedClock, InitialInterval: time.Millisecond})

		_, err := r.Analyze(context.Background(), "a salad")
		require.Error(t, err)
		assert.ErrorIs(t, err, mealvoice.ErrRemote)

		var re *mealvoice.RemoteError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, http.StatusBadRequest, re.StatusCode)
		assert.Len(t, llm.prompts, 1)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		unavailable := RemoteFailure(http.StatusBadGateway, errors.New("bad gateway"))
		llm := &scriptedLLM{errs: []error{unavailable, unavailable, unavailable, unavailable}}
		r := NewRemote(llm, Options{Now: fixedClock, InitialInterval: time.Millisecond, MaxAttempts: 2})

		_, err := r.Analyze(context.Background(), "a salad")
		assert.ErrorIs(t, err, mealvoice.ErrRemote)
		assert.Len(t, llm.prompts, 2)
	})

	t.Run("unparseable output is not retried", func(t *testing.T) {
		llm := &scriptedLLM{outputs: []string{"not json", validOutput}}
		r := NewRemote(llm, Options{Now: fixedClock})

		_, err := r.Analyze(context.Background(), "a salad")
		assert.ErrorIs(t, err, mealvoice.ErrParse)
		assert.Len(t, llm.prompts, 1)
	})

	t.Run("deadline between attempts reports a timeout", func(t *testing.T) {
		unavailable := RemoteFailure(http.StatusServiceUnavailable, errors.New("unavailable"))
		llm := &scriptedLLM{errs: []error{unavailable, unavailable, unavailable}}
		r := NewRemote(llm, Options{Now: fixedClock, InitialInterval: time.Second})

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := r.Analyze(ctx, "a salad")
		require.Error(t, err)

		var re *mealvoice.RemoteError
		require.ErrorAs(t, err, &re)
		assert.True(t, re.Timeout)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestRemoteFailure(t *testing.T) {
	re := RemoteFailure(0, context.DeadlineExceeded)
	assert.True(t, re.Timeout)

	re = RemoteFailure(0, errors.New("connection refused"))
	assert.False(t, re.Timeout)
	assert.Zero(t, re.StatusCode)
}
