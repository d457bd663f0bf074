package services

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"healthdash/internal/config"
	"healthdash/internal/files"
)

// HealthService reports service liveness and data readiness.
type HealthService struct {
	version   string
	cfg       *config.Config
	dashboard *DashboardService
	discovery *files.Discovery
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus is the health endpoint response.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// NewHealthService creates a health service.
func NewHealthService(cfg *config.Config, dashboard *DashboardService, version string, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:   version,
		cfg:       cfg,
		dashboard: dashboard,
		discovery: files.NewDiscovery(cfg.Paths.DataDir),
		startTime: time.Now(),
		logger:    logger.With(slog.String("component", "health_service")),
	}
}

// Check returns the current health status. The service is degraded when the
// feature cache is empty and the source file is missing, since no request
// can be served from either.
func (h *HealthService) Check(ctx context.Context) *HealthStatus {
	data := h.dashboard.Status()

	sourceAvailable := true
	if _, err := os.Stat(h.cfg.SourcePath()); err != nil {
		sourceAvailable = false
	}

	// Candidate datasets in the data directory, beyond the configured one.
	sources, err := h.discovery.FindSources(".")
	if err != nil {
		h.logger.WarnContext(ctx, "failed to scan data directory",
			slog.String("error", err.Error()))
	}

	status := "healthy"
	if !data.Ready && !sourceAvailable {
		status = "degraded"
	}

	return &HealthStatus{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Runtime: map[string]interface{}{
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
		Data: map[string]interface{}{
			"ready":            data.Ready,
			"feature_rows":     data.FeatureRows,
			"loaded_at":        data.LoadedAt,
			"source_available": sourceAvailable,
			"source_path":      h.cfg.SourcePath(),
			"source_files":     len(sources),
		},
	}
}
