package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"healthdash/internal/infrastructure"
	"healthdash/pkg/contracts/domain"
)

// Pipeline runs the full load, clean, feature and analysis sequence. Stages
// are stateless; concurrent Run calls are safe and independent.
type Pipeline struct {
	logger   *slog.Logger
	loader   *Loader
	cleaner  *Cleaner
	features *FeatureBuilder
	analyzer *Analyzer
	metrics  *infrastructure.PipelineMetrics
}

// NewPipeline wires the four stages together. metrics may be nil when
// telemetry is disabled.
func NewPipeline(logger *slog.Logger, loaderConfig LoaderConfig, metrics *infrastructure.PipelineMetrics) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		logger:   logger.With(slog.String("component", "pipeline")),
		loader:   NewLoader(logger, loaderConfig),
		cleaner:  NewCleaner(logger),
		features: NewFeatureBuilder(logger),
		analyzer: NewAnalyzer(logger),
		metrics:  metrics,
	}
}

// Run executes the pipeline end to end and returns the full feature set
// together with the analysis bundle for the given filters. Filter dimensions
// left empty resolve to every observed year or region, so a zero
// FilterOptions analyzes the whole dataset.
func (p *Pipeline) Run(ctx context.Context, filters domain.FilterOptions) ([]domain.FeatureRecord, *domain.AnalysisBundle, error) {
	start := time.Now()

	features, bundle, err := p.run(ctx, filters)

	if p.metrics != nil {
		infrastructure.RecordPipelineRun(ctx, p.metrics, time.Since(start), err == nil)
	}
	if err != nil {
		p.logger.ErrorContext(ctx, "pipeline run failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)))
		return nil, nil, err
	}

	p.logger.InfoContext(ctx, "pipeline run completed",
		slog.Int("feature_rows", len(features)),
		slog.Duration("duration", time.Since(start)))

	return features, bundle, nil
}

func (p *Pipeline) run(ctx context.Context, filters domain.FilterOptions) ([]domain.FeatureRecord, *domain.AnalysisBundle, error) {
	dataset, err := p.loader.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load stage: %w", err)
	}
	if p.metrics != nil {
		p.metrics.PipelineRowsLoaded.Add(ctx, int64(len(dataset.Rows)))
	}

	cleaned, err := p.cleaner.Clean(ctx, dataset)
	if err != nil {
		return nil, nil, fmt.Errorf("clean stage: %w", err)
	}
	if p.metrics != nil {
		p.metrics.PipelineRowsDropped.Add(ctx, int64(len(dataset.Rows)-len(cleaned)))
	}

	features, err := p.features.Build(ctx, cleaned)
	if err != nil {
		return nil, nil, fmt.Errorf("feature stage: %w", err)
	}

	resolved := filters.Resolve(domain.ObservedCatalog(features))

	bundle, err := p.analyzer.GenerateTables(ctx, features, resolved.Years, resolved.Regions)
	if err != nil {
		return nil, nil, fmt.Errorf("analysis stage: %w", err)
	}

	return features, bundle, nil
}

// Analyze reruns only the analysis stage against an existing feature set,
// for callers that cache features and re-filter without touching disk.
func (p *Pipeline) Analyze(ctx context.Context, features []domain.FeatureRecord, filters domain.FilterOptions) (*domain.AnalysisBundle, error) {
	resolved := filters.Resolve(domain.ObservedCatalog(features))
	return p.analyzer.GenerateTables(ctx, features, resolved.Years, resolved.Regions)
}
