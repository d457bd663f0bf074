package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"healthdash/internal/config"
	"healthdash/internal/dataprocessing"
	apperrors "healthdash/internal/errors"
	"healthdash/internal/exporter"
	"healthdash/internal/files"
	"healthdash/internal/infrastructure"
	"healthdash/pkg/contracts/domain"
)

// DashboardService serves the analysis tables to the HTTP layer. It keeps
// the feature set from the last pipeline run in memory so filter changes
// only rerun the aggregation, not the whole pipeline.
type DashboardService struct {
	logger    *slog.Logger
	cfg       *config.Config
	pipeline  *dataprocessing.Pipeline
	snapshots *exporter.SnapshotStore
	csv       *exporter.CSVWriter
	discovery *files.Discovery
	metrics   *infrastructure.PipelineMetrics

	mu       sync.RWMutex
	features []domain.FeatureRecord
	catalog  domain.FilterCatalog
	loadedAt time.Time
}

// NewDashboardService creates a dashboard service. metrics may be nil.
func NewDashboardService(cfg *config.Config, logger *slog.Logger, metrics *infrastructure.PipelineMetrics) *DashboardService {
	if logger == nil {
		logger = slog.Default()
	}

	loaderConfig := dataprocessing.LoaderConfig{
		DataDir:             cfg.Paths.DataDir,
		FileName:            cfg.Paths.SourceFile,
		MinRows:             cfg.Pipeline.MinRows,
		EncodingSampleBytes: cfg.Pipeline.EncodingSampleBytes,
	}

	return &DashboardService{
		logger:    logger.With(slog.String("component", "dashboard_service")),
		cfg:       cfg,
		pipeline:  dataprocessing.NewPipeline(logger, loaderConfig, metrics),
		snapshots: exporter.NewSnapshotStore(logger),
		csv:       exporter.NewCSVWriter(logger, cfg.Paths.ReportsDir),
		discovery: files.NewDiscovery(cfg.Paths.ReportsDir),
		metrics:   metrics,
	}
}

// Warm loads the feature cache, preferring a persisted snapshot and falling
// back to a full pipeline run when none exists. Called once at startup.
func (s *DashboardService) Warm(ctx context.Context) error {
	snapshot, err := s.snapshots.Read(ctx, s.cfg.SnapshotPath())
	if err == nil && len(snapshot.Features) > 0 {
		s.setFeatures(snapshot.Features)
		s.logger.InfoContext(ctx, "feature cache warmed from snapshot",
			slog.String("path", s.cfg.SnapshotPath()),
			slog.Time("snapshot_created_at", snapshot.CreatedAt))
		return nil
	}
	if err != nil && !apperrors.IsType(err, apperrors.ErrTypeNotFound) {
		s.logger.WarnContext(ctx, "snapshot unusable, falling back to pipeline",
			slog.String("error", err.Error()))
	}

	_, err = s.Refresh(ctx)
	return err
}

// Refresh reruns the full pipeline from the source file, replaces the
// feature cache and rewrites the snapshot. It returns the unfiltered
// analysis bundle.
func (s *DashboardService) Refresh(ctx context.Context) (*domain.AnalysisBundle, error) {
	features, bundle, err := s.pipeline.Run(ctx, domain.FilterOptions{})
	if err != nil {
		return nil, err
	}

	s.setFeatures(features)

	snapshot := &exporter.Snapshot{Features: features, Bundle: bundle}
	if err := s.snapshots.Write(ctx, s.cfg.SnapshotPath(), snapshot, true); err != nil {
		// The in-memory cache is already valid; a failed snapshot write
		// only costs the next startup a pipeline run.
		s.logger.WarnContext(ctx, "failed to persist snapshot",
			slog.String("path", s.cfg.SnapshotPath()),
			slog.String("error", err.Error()))
	} else if s.metrics != nil {
		s.metrics.SnapshotWritesTotal.Add(ctx, 1)
	}

	return bundle, nil
}

// Tables recomputes the analysis bundle for the given filters against the
// cached feature set.
func (s *DashboardService) Tables(ctx context.Context, filters domain.FilterOptions) (*domain.AnalysisBundle, error) {
	features, err := s.cachedFeatures(ctx)
	if err != nil {
		return nil, err
	}
	return s.pipeline.Analyze(ctx, features, filters)
}

// KPIs returns only the KPI table for the given filters.
func (s *DashboardService) KPIs(ctx context.Context, filters domain.FilterOptions) ([]domain.KPIRow, error) {
	bundle, err := s.Tables(ctx, filters)
	if err != nil {
		return nil, err
	}
	return bundle.KPIs, nil
}

// Filters returns the selectable years and regions observed in the data.
func (s *DashboardService) Filters(ctx context.Context) (domain.FilterCatalog, error) {
	if _, err := s.cachedFeatures(ctx); err != nil {
		return domain.FilterCatalog{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog, nil
}

// Export writes the four analysis tables for the given filters as CSV
// report files and returns the written paths.
func (s *DashboardService) Export(ctx context.Context, filters domain.FilterOptions) ([]string, error) {
	bundle, err := s.Tables(ctx, filters)
	if err != nil {
		return nil, err
	}
	return s.csv.WriteBundle(ctx, bundle)
}

// Reports lists previously exported CSV report files, newest first.
func (s *DashboardService) Reports(ctx context.Context) ([]files.FileInfo, error) {
	reports, err := s.discovery.FindReports(".")
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list report files", err)
	}
	return reports, nil
}

// DataStatus describes the state of the feature cache for health reporting.
type DataStatus struct {
	Ready       bool      `json:"ready"`
	FeatureRows int       `json:"feature_rows"`
	LoadedAt    time.Time `json:"loaded_at,omitzero"`
}

// Status reports whether the feature cache is populated.
func (s *DashboardService) Status() DataStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return DataStatus{
		Ready:       len(s.features) > 0,
		FeatureRows: len(s.features),
		LoadedAt:    s.loadedAt,
	}
}

// cachedFeatures returns the cached feature set, warming the cache on first
// use so handlers never see an empty service.
func (s *DashboardService) cachedFeatures(ctx context.Context) ([]domain.FeatureRecord, error) {
	s.mu.RLock()
	features := s.features
	s.mu.RUnlock()
	if len(features) > 0 {
		return features, nil
	}

	if err := s.Warm(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.features, nil
}

func (s *DashboardService) setFeatures(features []domain.FeatureRecord) {
	catalog := domain.ObservedCatalog(features)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.features = features
	s.catalog = catalog
	s.loadedAt = time.Now().UTC()
}
