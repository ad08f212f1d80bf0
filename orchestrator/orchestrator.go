// Package orchestrator runs one transcript through remote analysis and always produces a
// NormalizedMeal, substituting a local estimate when the remote path fails.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mealvoice"
	"mealvoice/nutrition"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const defaultTimeout = 15 * time.Second

// Failure is what the Alerter receives when a remote call is rejected as invalid.
type Failure struct {
	Reason     Reason
	Message    string
	StatusCode int
	Transcript string
	Err        error
}

type Alerter interface {
	Alert(ctx context.Context, failure Failure) error
}

type Options struct {
	// Timeout bounds the whole remote analysis, retries included.
	Timeout time.Duration
	Table   *nutrition.Table
	// Usage, when set, caps remote calls per day.
	Usage   *mealvoice.UsageTracker
	Logger  mealvoice.AnalysisLogger
	Alerter Alerter
	Now     func() time.Time
	Tracer  trace.Tracer
	Meter   metric.Meter
}

type Orchestrator struct {
	analyzer mealvoice.Analyzer
	timeout  time.Duration
	table    *nutrition.Table
	usage    *mealvoice.UsageTracker
	logger   mealvoice.AnalysisLogger
	alerter  Alerter
	now      func() time.Time
	tracer   trace.Tracer

	processed      metric.Int64Counter
	fallbacks      metric.Int64Counter
	remoteDuration metric.Float64Histogram
}

func New(analyzer mealvoice.Analyzer, opts Options) *Orchestrator {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Table == nil {
		opts.Table = nutrition.DefaultTable()
	}
	if opts.Logger == nil {
		opts.Logger = mealvoice.NewNoOpAnalysisLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(mealvoice.TracerNameOrchestrator)
	}
	if opts.Meter == nil {
		opts.Meter = otel.Meter(mealvoice.MeterNameOrchestrator)
	}

	processed, _ := opts.Meter.Int64Counter("meals_processed_total",
		metric.WithDescription("Total number of transcripts processed, by outcome"))
	fallbacks, _ := opts.Meter.Int64Counter("meal_fallbacks_total",
		metric.WithDescription("Total number of local fallback estimates, by reason"))
	remoteDuration, _ := opts.Meter.Float64Histogram("remote_analysis_duration_seconds",
		metric.WithDescription("Time spent waiting on remote meal analysis in seconds"))

	return &Orchestrator{
		analyzer:       analyzer,
		timeout:        opts.Timeout,
		table:          opts.Table,
		usage:          opts.Usage,
		logger:         opts.Logger,
		alerter:        opts.Alerter,
		now:            opts.Now,
		tracer:         opts.Tracer,
		processed:      processed,
		fallbacks:      fallbacks,
		remoteDuration: remoteDuration,
	}
}

// ValidateTranscript trims transcript and rejects it when nothing is left.
func ValidateTranscript(transcript string) (string, error) {
	t := strings.TrimSpace(transcript)
	if t == "" {
		return "", fmt.Errorf("%w: no transcript provided", mealvoice.ErrValidation)
	}
	return t, nil
}

// Process analyzes transcript and never fails: any remote problem yields a fallback meal
// whose ProcessingError says what went wrong.
func (o *Orchestrator) Process(ctx context.Context, transcript string) mealvoice.NormalizedMeal {
	started := time.Now()
	ctx, span := o.tracer.Start(ctx, "Orchestrator.Process", trace.WithAttributes(
		attribute.Int("transcript.length", len(transcript)),
	))
	defer span.End()

	slog.Info("ORCHESTRATOR: Processing transcript", "transcript_len", len(transcript))

	entry := mealvoice.AnalysisLog{Timestamp: o.now(), Transcript: transcript}

	result, err := o.analyze(ctx, transcript)
	var meal mealvoice.NormalizedMeal
	if err == nil {
		meal = o.fromAnalysis(transcript, result)
		entry.Outcome = "success"
		entry.Analysis = &result

		span.AddEvent("Remote analysis accepted", trace.WithAttributes(
			attribute.String("meal.type", meal.MealType),
			attribute.Int("meal.food_items", len(meal.FoodItems)),
		))
		o.processed.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "success")))
	} else {
		reason, message := Classify(err)
		meal = o.fallback(transcript, message)
		entry.Outcome = "fallback"
		entry.FallbackReason = string(reason)
		entry.Error = err.Error()

		slog.Warn("ORCHESTRATOR: Falling back to local estimate", "reason", reason, "error", err)
		span.SetStatus(codes.Error, "remote analysis failed")
		span.RecordError(err)
		span.SetAttributes(attribute.String("fallback.reason", string(reason)))
		o.processed.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "fallback")))
		o.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", string(reason))))

		o.alert(ctx, transcript, reason, message, err)
	}

	entry.DurationMs = time.Since(started).Milliseconds()
	if lerr := o.logger.LogAnalysis(entry); lerr != nil {
		slog.Error("ORCHESTRATOR: Failed to write analysis log", "error", lerr)
	}

	slog.Info("ORCHESTRATOR: Transcript processed",
		"outcome", entry.Outcome,
		"meal_type", meal.MealType,
		"calories", meal.Calories,
		"duration_ms", entry.DurationMs,
	)
	return meal
}

func (o *Orchestrator) analyze(ctx context.Context, transcript string) (mealvoice.MealAnalysisResult, error) {
	if o.usage != nil {
		o.usage.ResetIfNewDay()
		if !o.usage.Allow() {
			return mealvoice.MealAnalysisResult{}, mealvoice.ErrRateLimited
		}
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	started := time.Now()
	result, err := o.analyzer.Analyze(ctx, transcript)
	o.remoteDuration.Record(ctx, time.Since(started).Seconds())
	if err != nil {
		return mealvoice.MealAnalysisResult{}, err
	}

	if result.TotalCalories == 0 && result.TotalProtein == 0 {
		return result, mealvoice.ErrIncompleteData
	}
	return result, nil
}

func (o *Orchestrator) fromAnalysis(transcript string, result mealvoice.MealAnalysisResult) mealvoice.NormalizedMeal {
	names := make([]string, 0, len(result.FoodItems))
	for _, item := range result.FoodItems {
		names = append(names, item.Name)
	}

	return mealvoice.NormalizedMeal{
		Description: transcript,
		MealType:    string(result.MealTime),
		FoodItems:   names,
		Calories:    result.TotalCalories,
		Protein:     result.TotalProtein,
		Carbs:       result.TotalCarbs,
		Fat:         result.TotalFat,
		Timestamp:   o.now(),
		RawAnalysis: &result,
	}
}

func (o *Orchestrator) fallback(transcript, message string) mealvoice.NormalizedMeal {
	foods := nutrition.SplitFoods(transcript)
	est := o.table.Estimate(foods)

	return mealvoice.NormalizedMeal{
		Description:     transcript,
		MealType:        mealvoice.MealTypeUnknown,
		FoodItems:       foods,
		Calories:        est.Calories,
		Protein:         est.Protein,
		Timestamp:       o.now(),
		ProcessingError: &message,
		IsFallbackData:  true,
	}
}

// alert notifies an administrator about rejected requests, which usually mean a bad credential or payload.
func (o *Orchestrator) alert(ctx context.Context, transcript string, reason Reason, message string, err error) {
	if o.alerter == nil {
		return
	}

	var re *mealvoice.RemoteError
	if !errors.As(err, &re) || !re.InvalidRequest() {
		return
	}

	failure := Failure{
		Reason:     reason,
		Message:    message,
		StatusCode: re.StatusCode,
		Transcript: transcript,
		Err:        err,
	}
	if aerr := o.alerter.Alert(context.WithoutCancel(ctx), failure); aerr != nil {
		slog.Error("ORCHESTRATOR: Failed to send alert", "error", aerr)
	}
}
