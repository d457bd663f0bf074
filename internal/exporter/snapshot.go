package exporter

import (
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	apperrors "healthdash/internal/errors"
	"healthdash/pkg/contracts/domain"
)

// SnapshotVersion is bumped whenever the snapshot layout changes, so stale
// files are rejected instead of being decoded into the wrong shape.
const SnapshotVersion = 1

// Snapshot is the precomputed analysis state persisted between runs. The
// presentation layer reads it at startup instead of re-running the pipeline.
type Snapshot struct {
	Version   int
	CreatedAt time.Time
	Features  []domain.FeatureRecord
	Bundle    *domain.AnalysisBundle
}

// SnapshotStore reads and writes analysis snapshots as gob files.
type SnapshotStore struct {
	logger *slog.Logger
}

// NewSnapshotStore creates a snapshot store.
func NewSnapshotStore(logger *slog.Logger) *SnapshotStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotStore{logger: logger.With(slog.String("component", "snapshot_store"))}
}

// CheckWritable fails with a STORAGE error when a snapshot already exists at
// path and overwrite is not set. Callers check this before running the
// pipeline so a guarded pregeneration never pays for a computation it will
// refuse to persist.
func (s *SnapshotStore) CheckWritable(path string, overwrite bool) error {
	if _, err := os.Stat(path); err == nil && !overwrite {
		return apperrors.NewStorageError(
			fmt.Sprintf("snapshot already exists at %s; pass overwrite to replace it", path), nil)
	}
	return nil
}

// Write persists the snapshot to path. An existing file is only replaced
// when overwrite is set; otherwise the call fails with a STORAGE error so a
// pregeneration run never clobbers state by accident. The file is written to
// a temporary sibling first and renamed into place.
func (s *SnapshotStore) Write(ctx context.Context, path string, snapshot *Snapshot, overwrite bool) error {
	if snapshot == nil || snapshot.Bundle == nil {
		return apperrors.NewValidationError("snapshot has no analysis bundle to persist")
	}

	if err := s.CheckWritable(path, overwrite); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("failed to create snapshot directory for %s", path), err)
	}

	snapshot.Version = SnapshotVersion
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now().UTC()
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("failed to create snapshot file %s", tmpPath), err)
	}

	if err := gob.NewEncoder(file).Encode(snapshot); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return apperrors.NewStorageError("failed to encode snapshot", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return apperrors.NewStorageError("failed to close snapshot file", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return apperrors.NewStorageError(fmt.Sprintf("failed to move snapshot into place at %s", path), err)
	}

	s.logger.InfoContext(ctx, "analysis snapshot written",
		slog.String("path", path),
		slog.Int("feature_rows", len(snapshot.Features)),
		slog.Bool("overwrite", overwrite))

	return nil
}

// Read loads a snapshot from path. A missing file is a NOT_FOUND error so
// callers can fall back to running the pipeline.
func (s *SnapshotStore) Read(ctx context.Context, path string) (*Snapshot, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFoundError(
				fmt.Sprintf("no analysis snapshot at %s; run the pregeneration step first", path), err)
		}
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to open snapshot %s", path), err)
	}
	defer file.Close()

	var snapshot Snapshot
	if err := gob.NewDecoder(file).Decode(&snapshot); err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to decode snapshot %s", path), err)
	}

	if snapshot.Version != SnapshotVersion {
		return nil, apperrors.NewValidationError(fmt.Sprintf(
			"snapshot %s has version %d, expected %d; regenerate it", path, snapshot.Version, SnapshotVersion))
	}
	if snapshot.Bundle == nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("snapshot %s has no analysis bundle", path))
	}

	s.logger.InfoContext(ctx, "analysis snapshot loaded",
		slog.String("path", path),
		slog.Time("created_at", snapshot.CreatedAt),
		slog.Int("feature_rows", len(snapshot.Features)))

	return &snapshot, nil
}
