package exporter

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	apperrors "healthdash/internal/errors"
	"healthdash/pkg/contracts/domain"
)

// Report file names for the four analysis tables.
const (
	FileTimeseries    = "timeseries.csv"
	FileRegionSES     = "region_ses.csv"
	FileVaccineEffect = "vaccine_effect.csv"
	FileKPI           = "kpi.csv"
)

// CSVWriter writes analysis tables as CSV report files.
type CSVWriter struct {
	logger     *slog.Logger
	reportsDir string
}

// NewCSVWriter creates a CSV writer rooted at reportsDir.
func NewCSVWriter(logger *slog.Logger, reportsDir string) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{
		logger:     logger.With(slog.String("component", "csv_writer")),
		reportsDir: reportsDir,
	}
}

// WriteBundle exports all four tables of the bundle into the reports
// directory and returns the written file paths.
func (w *CSVWriter) WriteBundle(ctx context.Context, bundle *domain.AnalysisBundle) ([]string, error) {
	if bundle == nil {
		return nil, apperrors.NewValidationError("no analysis bundle to export")
	}

	exports := []struct {
		name    string
		headers []string
		records [][]string
	}{
		{FileTimeseries, timeseriesHeaders, timeseriesRecords(bundle.Timeseries)},
		{FileRegionSES, regionSESHeaders, regionSESRecords(bundle.RegionSES)},
		{FileVaccineEffect, vaccineEffectHeaders, vaccineEffectRecords(bundle.VaccineEffect)},
		{FileKPI, kpiHeaders, kpiRecords(bundle.KPIs)},
	}

	paths := make([]string, 0, len(exports))
	for _, export := range exports {
		path := filepath.Join(w.reportsDir, export.name)
		if err := w.writeFile(path, export.headers, export.records); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}

	w.logger.InfoContext(ctx, "analysis tables exported",
		slog.String("reports_dir", w.reportsDir),
		slog.Int("files", len(paths)))

	return paths, nil
}

// writeFile writes one CSV file with a UTF-8 BOM so spreadsheet tools
// recognize the encoding.
func (w *CSVWriter) writeFile(path string, headers []string, records [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("failed to create reports directory for %s", path), err)
	}

	file, err := os.Create(path)
	if err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("failed to create report file %s", path), err)
	}
	defer file.Close()

	if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("failed to write BOM to %s", path), err)
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(headers); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("failed to write headers to %s", path), err)
	}
	for i, record := range records {
		if err := writer.Write(record); err != nil {
			return apperrors.NewStorageError(fmt.Sprintf("failed to write record %d to %s", i, path), err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("failed to flush report file %s", path), err)
	}

	return nil
}
