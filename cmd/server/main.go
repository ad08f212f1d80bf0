package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"mealvoice"
	"mealvoice/backend"
	"mealvoice/journal"
	"mealvoice/nutrition"
	"mealvoice/nutrition/storage"
	"mealvoice/orchestrator"
	"mealvoice/server"
	"mealvoice/slack"
)

func main() {
	issueToken := flag.String("issue-token", "", "print a journal token for the given user id and exit")
	tokenTTL := flag.Duration("token-ttl", 30*24*time.Hour, "lifetime of tokens printed by -issue-token")
	flag.Parse()

	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load()
	}

	var modelConfig mealvoice.ModelConfig
	if err := envdecode.Decode(&modelConfig); err != nil {
		log.Fatalf("Failed to decode: %s", err)
	}
	var pipelineConfig mealvoice.PipelineConfig
	if err := envdecode.Decode(&pipelineConfig); err != nil {
		log.Fatalf("Failed to decode: %s", err)
	}
	var serverConfig mealvoice.ServerConfig
	if err := envdecode.Decode(&serverConfig); err != nil {
		log.Fatalf("Failed to decode: %s", err)
	}
	var goalsConfig mealvoice.GoalsConfig
	if err := envdecode.Decode(&goalsConfig); err != nil {
		log.Fatalf("Failed to decode: %s", err)
	}

	if *issueToken != "" {
		token, err := server.IssueToken([]byte(serverConfig.JWTSecret), *issueToken, *tokenTTL)
		if err != nil {
			log.Fatalf("Failed to issue token: %s", err)
		}
		fmt.Println(token)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracerProvider, meterProvider, otelShutdown, err := mealvoice.InitOtel(ctx)
	if err != nil {
		slog.Error("SETUP: Failed to initialize OpenTelemetry", "error", err)
		return
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
		}
	}()

	table, err := loadTable(ctx, pipelineConfig)
	if err != nil {
		slog.Error("SETUP: Failed to load nutrition table", "error", err)
		return
	}
	slog.Info("SETUP: Nutrition table loaded", "foods", table.Len())

	logger, cleanupLog, err := mealvoice.NewStreamingAnalysisLogger(pipelineConfig.AnalysisLog, modelConfig.ModelID)
	if err != nil {
		slog.Error("SETUP: Failed to create analysis logger", "error", err)
		return
	}
	defer func() {
		if err := cleanupLog(); err != nil {
			slog.Error("SETUP: Failed to flush analysis log", "error", err)
		}
	}()

	usage := mealvoice.NewUsageTracker(pipelineConfig.DailyRequestLimit, time.Now)

	cfg := server.Config{
		Usage:     usage,
		JWTSecret: serverConfig.JWTSecret,
		Goals:     nutrition.GoalsFromConfig(goalsConfig),
		Tracer:    tracerProvider.Tracer(mealvoice.TracerNameServer),
	}

	remote, cleanupBackend, err := backend.New(ctx, modelConfig, backend.Options{Table: table})
	if err != nil {
		// Keep serving so the analyze route can report the problem.
		slog.Error("SETUP: Meal analysis backend unavailable", "provider", modelConfig.Provider, "error", err)
		cfg.BackendErr = err
	} else {
		cfg.Processor = orchestrator.New(remote, orchestrator.Options{
			Timeout: pipelineConfig.AnalysisTimeout,
			Table:   table,
			Usage:   usage,
			Logger:  logger,
			Alerter: newAlerter(pipelineConfig),
			Tracer:  tracerProvider.Tracer(mealvoice.TracerNameOrchestrator),
			Meter:   meterProvider.Meter(mealvoice.MeterNameOrchestrator),
		})
	}
	defer func() {
		if err := cleanupBackend(); err != nil {
			slog.Error("SETUP: Failed to close backend", "error", err)
		}
	}()

	if serverConfig.JWTSecret != "" {
		store, err := journal.Open(ctx, serverConfig.DBDriver, serverConfig.DBDSN)
		if err != nil {
			slog.Error("SETUP: Failed to open meal journal", "error", err)
			return
		}
		defer store.Close()
		cfg.Journal = store
	} else {
		slog.Warn("SETUP: JWT_SECRET not set, meal journal routes disabled")
	}

	srv := &http.Server{
		Addr:              serverConfig.Addr,
		Handler:           server.New(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("SERVER: Shutdown failed", "error", err)
		}
	}()

	slog.Info("SERVER: Listening", "addr", serverConfig.Addr, "provider", modelConfig.Provider)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("SERVER: Failed", "error", err)
	}
}

func loadTable(ctx context.Context, cfg mealvoice.PipelineConfig) (*nutrition.Table, error) {
	switch {
	case cfg.LookupTableBucket != "" && cfg.LookupTableKey != "":
		awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRetryMaxAttempts(5))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return nutrition.LoadTable(ctx, storage.NewS3TableState(s3.NewFromConfig(awsCfg), cfg.LookupTableBucket, cfg.LookupTableKey))
	case cfg.LookupTablePath != "":
		return nutrition.LoadTable(ctx, storage.NewFileTableState(cfg.LookupTablePath))
	default:
		return nutrition.DefaultTable(), nil
	}
}

func newAlerter(cfg mealvoice.PipelineConfig) orchestrator.Alerter {
	if cfg.AlertWebhookURL == "" {
		return nil
	}
	client := slack.NewClient(cfg.AlertWebhookURL, &http.Client{Timeout: 10 * time.Second})
	return slack.NewAlerter(client, slack.AlerterOpts{Channel: cfg.AlertChannel})
}
