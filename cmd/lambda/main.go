package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joeshaw/envdecode"

	"mealvoice"
	"mealvoice/backend"
	"mealvoice/nutrition"
	"mealvoice/nutrition/storage"
	"mealvoice/orchestrator"
	"mealvoice/slack"
)

func main() {
	ctx := context.Background()

	var modelConfig mealvoice.ModelConfig
	if err := envdecode.Decode(&modelConfig); err != nil {
		log.Fatalf("Failed to decode: %s", err)
	}

	var pipelineConfig mealvoice.PipelineConfig
	if err := envdecode.Decode(&pipelineConfig); err != nil {
		log.Fatalf("Failed to decode: %s", err)
	}

	tracerProvider, meterProvider, otelShutdown, err := mealvoice.InitOtel(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize OpenTelemetry: %s", err)
	}

	table := nutrition.DefaultTable()
	if pipelineConfig.LookupTableBucket != "" && pipelineConfig.LookupTableKey != "" {
		awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRetryMaxAttempts(5))
		if err != nil {
			log.Fatalf("Failed to load AWS config: %s", err)
		}
		ts := storage.NewS3TableState(s3.NewFromConfig(awsCfg), pipelineConfig.LookupTableBucket, pipelineConfig.LookupTableKey)
		if table, err = nutrition.LoadTable(ctx, ts); err != nil {
			log.Fatalf("Failed to load nutrition table from S3: %s", err)
		}
		slog.Info("SETUP: Nutrition table loaded from S3", "foods", table.Len())
	}

	var alerter orchestrator.Alerter
	if pipelineConfig.AlertWebhookURL != "" {
		client := slack.NewClient(pipelineConfig.AlertWebhookURL, &http.Client{Timeout: 10 * time.Second})
		alerter = slack.NewAlerter(client, slack.AlerterOpts{Channel: pipelineConfig.AlertChannel})
	}

	remote, closeBackend, backendErr := backend.New(ctx, modelConfig, backend.Options{Table: table})
	if backendErr != nil {
		slog.Error("SETUP: Meal analysis backend unavailable", "provider", modelConfig.Provider, "error", backendErr)
	}

	h := handler{
		backendErr: backendErr,
		flush: func(ctx context.Context) error {
			return errors.Join(tracerProvider.ForceFlush(ctx), meterProvider.ForceFlush(ctx))
		},
	}
	if remote != nil {
		h.processor = orchestrator.New(remote, orchestrator.Options{
			Timeout: pipelineConfig.AnalysisTimeout,
			Table:   table,
			Logger:  mealvoice.NewStdoutAnalysisLogger(),
			Alerter: alerter,
			Tracer:  tracerProvider.Tracer(mealvoice.TracerNameOrchestrator),
			Meter:   meterProvider.Meter(mealvoice.MeterNameOrchestrator),
		})
	}

	lambda.StartWithOptions(h.handle, lambda.WithEnableSIGTERM(func() {
		if err := closeBackend(); err != nil {
			slog.Error("SETUP: Failed to close backend", "error", err)
		}
		if err := otelShutdown(context.Background()); err != nil {
			slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
		}
	}))
}
