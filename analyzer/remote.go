package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mealvoice"

	"github.com/cenkalti/backoff/v5"
)

const (
	defaultMaxAttempts     = 3
	defaultInitialInterval = time.Second
)

// llmClient is implemented by each backend: one request to a hosted model, raw text back.
// Transport failures must be reported as *mealvoice.RemoteError.
type llmClient interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

type Options struct {
	// MaxAttempts bounds calls per analysis, including the first. Only throttling and
	// server errors are retried.
	MaxAttempts uint
	// InitialInterval is the first backoff wait; later waits double.
	InitialInterval time.Duration
	// Now is the clock used for meal-time inference.
	Now func() time.Time
}

// Remote is the shared mealvoice.Analyzer built on top of a backend client.
type Remote struct {
	llm  llmClient
	opts Options
}

var _ mealvoice.Analyzer = (*Remote)(nil)

func NewRemote(llm llmClient, opts Options) *Remote {
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.InitialInterval == 0 {
		opts.InitialInterval = defaultInitialInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Remote{llm: llm, opts: opts}
}

// Analyze sends transcript to the backend and returns the validated result.
func (r *Remote) Analyze(ctx context.Context, transcript string) (mealvoice.MealAnalysisResult, error) {
	prompt, err := NewPrompt(transcript)
	if err != nil {
		return mealvoice.MealAnalysisResult{}, err
	}

	text, err := r.complete(ctx, prompt)
	if err != nil {
		return mealvoice.MealAnalysisResult{}, err
	}

	result, err := Parse(text, r.opts.Now())
	if err != nil {
		slog.Warn("ANALYZER: Model output rejected", "error", err, "output_len", len(text))
		return mealvoice.MealAnalysisResult{}, err
	}

	slog.Info("ANALYZER: Analysis parsed",
		"meal_time", result.MealTime,
		"meal_time_inferred", result.MealTimeInferred,
		"food_items", len(result.FoodItems),
		"total_calories", result.TotalCalories,
	)
	return result, nil
}

func (r *Remote) complete(ctx context.Context, prompt Prompt) (string, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.opts.InitialInterval
	b.Multiplier = 2

	var lastErr error
	attempt := 0
	op := func() (string, error) {
		attempt++
		text, err := r.llm.Complete(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err

		var re *mealvoice.RemoteError
		if errors.As(err, &re) && re.Retryable() {
			return "", err
		}
		return "", backoff.Permanent(err)
	}

	text, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(r.opts.MaxAttempts),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			slog.Warn("ANALYZER: Retrying remote analysis", "attempt", attempt, "wait", wait, "error", err)
		}),
	)
	if err == nil {
		return text, nil
	}

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return "", perm.Err
	}

	// Retry gives up with the bare context error when the deadline hits between attempts
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		var re *mealvoice.RemoteError
		if errors.As(lastErr, &re) && re.Timeout {
			return "", lastErr
		}
		return "", &mealvoice.RemoteError{Timeout: errors.Is(ctxErr, context.DeadlineExceeded), Err: fmt.Errorf("after %d attempts: %w", attempt, err)}
	}

	return "", err
}
