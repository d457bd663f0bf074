package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"healthdash/internal/config"
	"healthdash/internal/dataprocessing"
	"healthdash/internal/exporter"
	"healthdash/internal/infrastructure"
	"healthdash/pkg/contracts/domain"
)

// pregen runs the full pipeline once, writes the analysis snapshot and
// optionally the CSV report files, so the web server starts warm.
func main() {
	source := flag.String("source", "", "source dataset path (defaults to the configured data directory)")
	out := flag.String("out", "", "snapshot output path (defaults to the configured snapshot path)")
	overwrite := flag.Bool("overwrite", false, "replace an existing snapshot")
	exportCSV := flag.Bool("csv", false, "also export the analysis tables as CSV reports")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("failed to initialize logger", "error", err)
		os.Exit(1)
	}
	defer infrastructure.CloseLogFile()

	loaderConfig := dataprocessing.LoaderConfig{
		DataDir:             cfg.Paths.DataDir,
		FileName:            cfg.Paths.SourceFile,
		MinRows:             cfg.Pipeline.MinRows,
		EncodingSampleBytes: cfg.Pipeline.EncodingSampleBytes,
	}
	if *source != "" {
		loaderConfig.FileName = *source
	}

	snapshotPath := cfg.SnapshotPath()
	if *out != "" {
		snapshotPath = *out
	}

	ctx := context.Background()
	start := time.Now()

	// Guard before the pipeline runs: a refused overwrite must not cost a
	// full load/clean/feature/analysis pass.
	store := exporter.NewSnapshotStore(logger)
	if err := store.CheckWritable(snapshotPath, *overwrite); err != nil {
		logger.Error("snapshot not writable",
			slog.String("path", snapshotPath),
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	pipeline := dataprocessing.NewPipeline(logger, loaderConfig, nil)
	features, bundle, err := pipeline.Run(ctx, domain.FilterOptions{})
	if err != nil {
		logger.Error("pipeline run failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	snapshot := &exporter.Snapshot{Features: features, Bundle: bundle}
	if err := store.Write(ctx, snapshotPath, snapshot, *overwrite); err != nil {
		logger.Error("snapshot write failed",
			slog.String("path", snapshotPath),
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	if *exportCSV {
		writer := exporter.NewCSVWriter(logger, cfg.Paths.ReportsDir)
		paths, err := writer.WriteBundle(ctx, bundle)
		if err != nil {
			logger.Error("csv export failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("csv reports written", slog.Int("files", len(paths)))
	}

	logger.Info("pregeneration completed",
		slog.String("snapshot", snapshotPath),
		slog.Int("feature_rows", len(features)),
		slog.Duration("duration", time.Since(start)))
}
