package main

import (
	"context"
	"log/slog"

	"mealvoice"
	"mealvoice/orchestrator"
)

type Params struct {
	Transcript string `json:"transcript"`
}

type processor interface {
	Process(ctx context.Context, transcript string) mealvoice.NormalizedMeal
}

type handler struct {
	processor  processor
	backendErr error
	flush      func(context.Context) error
}

func (h handler) handle(ctx context.Context, params Params) (mealvoice.AnalyzeResponse, error) {
	// Flush telemetry before the execution environment freezes.
	defer func() {
		if h.flush == nil {
			return
		}
		if err := h.flush(ctx); err != nil {
			slog.Error("SETUP: Failed to flush telemetry", "error", err)
		}
	}()

	transcript, err := orchestrator.ValidateTranscript(params.Transcript)
	if err != nil {
		return mealvoice.AnalyzeResponse{}, err
	}
	if h.processor == nil {
		return mealvoice.AnalyzeResponse{}, h.backendErr
	}

	return mealvoice.NewAnalyzeResponse(h.processor.Process(ctx, transcript)), nil
}
