package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"mealvoice"
	"mealvoice/backend"
	"mealvoice/nutrition"
	"mealvoice/nutrition/storage"
	"mealvoice/orchestrator"
)

func main() {
	dump := flag.Bool("dump", false, "print a go-spew dump instead of JSON")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-dump] \"<transcript>\"\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	_ = godotenv.Load()
	ctx := context.Background()

	var modelConfig mealvoice.ModelConfig
	if err := envdecode.Decode(&modelConfig); err != nil {
		log.Fatalf("Failed to decode: %s", err)
	}

	var pipelineConfig mealvoice.PipelineConfig
	if err := envdecode.Decode(&pipelineConfig); err != nil {
		log.Fatalf("Failed to decode: %s", err)
	}

	transcript, err := orchestrator.ValidateTranscript(strings.Join(flag.Args(), " "))
	if err != nil {
		flag.Usage()
		os.Exit(2)
	}

	table := nutrition.DefaultTable()
	if pipelineConfig.LookupTablePath != "" {
		if table, err = nutrition.LoadTable(ctx, storage.NewFileTableState(pipelineConfig.LookupTablePath)); err != nil {
			log.Fatalf("Failed to load nutrition table: %s", err)
		}
	}

	logger, cleanup, err := mealvoice.NewAnalysisLogger(pipelineConfig.AnalysisLog, modelConfig.ModelID)
	if err != nil {
		log.Fatalf("Failed to create analysis logger: %s", err)
	}
	defer func() {
		if err := cleanup(); err != nil {
			slog.Error("Failed to flush analysis log", "error", err)
		}
	}()

	remote, closeBackend, err := backend.New(ctx, modelConfig, backend.Options{Table: table})
	if err != nil {
		slog.Error("SETUP: Failed to create backend", "provider", modelConfig.Provider, "error", err)
		return
	}
	defer closeBackend() // nolint: errcheck

	meal := orchestrator.New(remote, orchestrator.Options{
		Timeout: pipelineConfig.AnalysisTimeout,
		Table:   table,
		Logger:  logger,
	}).Process(ctx, transcript)

	if *dump {
		mealvoice.Dump(meal)
		return
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(mealvoice.NewAnalyzeResponse(meal)); err != nil {
		log.Fatalf("Failed to encode result: %s", err)
	}
}
