package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/DantesRevengeReloaded/pokopred/internal/logger"
	"github.com/DantesRevengeReloaded/pokopred/pkg/pokopred"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config overlay")
	dbPath := flag.String("db", "", "sqlite database path (overrides config)")
	skipIngest := flag.Bool("skip-ingest", false, "predict from existing store contents without downloading")
	since := flag.String("since", "", "incremental statistics refresh from this date (YYYY-MM-DD); full recompute when unset")
	evaluate := flag.Bool("evaluate", false, "report accuracy of stored predictions against played results")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if *verbose {
		logger.SetLevel(logger.DEBUG)
	}

	cfg, err := pokopred.LoadConfig(*configPath)
	if err != nil {
		logger.Error("Invalid configuration", err)
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	var sinceTime time.Time
	if *since != "" {
		sinceTime, err = time.Parse("2006-01-02", *since)
		if err != nil {
			logger.Error("Invalid -since date", *since, err)
			os.Exit(1)
		}
	}

	store, err := pokopred.OpenStore(cfg.DBPath)
	if err != nil {
		logger.Error("Could not open store", err)
		os.Exit(1)
	}
	defer store.Close()

	pipeline, err := pokopred.NewPipeline(cfg, store)
	if err != nil {
		logger.Error("Could not build pipeline", err)
		os.Exit(1)
	}

	summary := runSession(pipeline, *skipIngest, sinceTime)

	if *evaluate {
		reportAccuracy(pipeline)
	}

	if len(summary.TrainedMembers) == 0 || (summary.PredictionsTotal > 0 && summary.PredictionsStored == 0) {
		os.Exit(1)
	}
}

func runSession(pipeline *pokopred.Pipeline, skipIngest bool, since time.Time) *pokopred.RunSummary {
	ingested, ingestTotal := 0, 0
	if !skipIngest {
		var err error
		ingested, ingestTotal, err = pipeline.Ingest()
		if err != nil {
			logger.Error("Ingestion failed", err)
			os.Exit(1)
		}
		fmt.Printf("Ingested %d of %d match rows\n", ingested, ingestTotal)
	}

	summary, err := pipeline.Run(since)
	if err != nil {
		logger.Error("Prediction session failed", err)
		os.Exit(1)
	}
	summary.MatchesIngested = ingested
	summary.MatchesTotal = ingestTotal

	fmt.Printf("Session %s\n", summary.SessionID)
	fmt.Printf("Snapshots computed: %d\n", summary.SnapshotsComputed)
	fmt.Printf("Trained members: %v\n", summary.TrainedMembers)
	fmt.Printf("Stored %d of %d predictions\n", summary.PredictionsStored, summary.PredictionsTotal)
	return summary
}

func reportAccuracy(pipeline *pokopred.Pipeline) {
	records, err := pipeline.Predictions().GetPredictions(pokopred.PredictionFilter{})
	if err != nil {
		logger.Error("Could not load predictions for evaluation", err)
		return
	}
	report, err := pokopred.EvaluatePredictions(records, pipeline.Matches())
	if err != nil {
		logger.Error("Evaluation failed", err)
		return
	}
	fmt.Printf("Evaluated %d predictions, result accuracy %.1f%% (original labels %.1f%%)\n",
		report.Evaluated, report.ResultAccuracy, report.OriginalAccuracy)
	if report.Conversions > 0 {
		fmt.Printf("Draw conversions: %d, correct %.1f%%\n",
			report.Conversions, report.ConversionAccuracy)
	}
}
