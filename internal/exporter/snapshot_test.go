package exporter

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "healthdash/internal/errors"
	"healthdash/pkg/contracts/domain"
)

func testBundle() *domain.AnalysisBundle {
	return &domain.AnalysisBundle{
		Timeseries: []domain.TimeseriesRow{
			{
				Year: 2023, Month: 1, Region: domain.RegionUrban,
				Date:          time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
				DailyNewCases: 30, TransmissionRate: 1.2, VaccineCoverage: 0.5, ResourceLoad: 0.2,
			},
		},
		RegionSES: []domain.RegionSESRow{
			{
				Region: domain.RegionUrban, SES: domain.SESHigh, Season: domain.SeasonWinter,
				DailyNewCases: 30, VaccineCoverage: 0.5, ResourceLoad: 0.2, MedianAge: 40, SampleSize: 2,
			},
		},
		VaccineEffect: []domain.VaccineEffectRow{
			{
				VaccinationStatus: domain.LabelVaccinated, ImmunityLevel: domain.ImmunityHigh,
				AgeGroup: domain.AgeGroupAdult, MeanDailyCases: 15, MeanTransmission: 1.2,
			},
		},
		KPIs: []domain.KPIRow{
			{Key: domain.KPITotalCases, Metric: "Total Cases", Value: 30, Unit: "Cases", Description: "Total new cases in filtered data"},
		},
		RawFeatures: []domain.FeatureRecord{
			{
				CleanRecord: domain.CleanRecord{
					DateOfOnset:         time.Date(2023, 1, 10, 0, 0, 0, 0, time.UTC),
					Location:            domain.RegionUrban,
					SES:                 domain.SESHigh,
					VaccinationStatus:   1,
					DailyNewCases:       30,
					ImmunityLevel:       domain.ImmunityHigh,
					Age:                 40,
					ResourceUtilization: 85.0,
					HasUtilization:      true,
				},
				Year: 2023, Month: 1, Season: domain.SeasonWinter, AgeGroup: domain.AgeGroupAdult,
				VaccineCoverage: 0.5, ResourceLoad: 0.85, TransmissionRate: 1.2,
			},
		},
		Years:       []int{2023},
		Regions:     []domain.Region{domain.RegionUrban},
		GeneratedAt: time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSnapshotStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewSnapshotStore(slog.Default())
	path := filepath.Join(t.TempDir(), "analysis_snapshot.gob")

	bundle := testBundle()
	err := store.Write(ctx, path, &Snapshot{Features: bundle.RawFeatures, Bundle: bundle}, false)
	require.NoError(t, err)

	loaded, err := store.Read(ctx, path)
	require.NoError(t, err)

	assert.Equal(t, SnapshotVersion, loaded.Version)
	assert.False(t, loaded.CreatedAt.IsZero())
	assert.Equal(t, bundle.Timeseries, loaded.Bundle.Timeseries)
	assert.Equal(t, bundle.RegionSES, loaded.Bundle.RegionSES)
	assert.Equal(t, bundle.VaccineEffect, loaded.Bundle.VaccineEffect)
	assert.Equal(t, bundle.KPIs, loaded.Bundle.KPIs)
	require.Len(t, loaded.Features, 1)
	require.True(t, loaded.Features[0].HasUtilization)
	assert.Equal(t, 85.0, loaded.Features[0].ResourceUtilization)
}

func TestSnapshotStore_ZeroUtilizationSurvivesRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewSnapshotStore(slog.Default())
	path := filepath.Join(t.TempDir(), "analysis_snapshot.gob")

	bundle := testBundle()
	bundle.RawFeatures[0].ResourceUtilization = 0.0
	bundle.RawFeatures[0].HasUtilization = true

	require.NoError(t, store.Write(ctx, path, &Snapshot{Features: bundle.RawFeatures, Bundle: bundle}, false))

	loaded, err := store.Read(ctx, path)
	require.NoError(t, err)
	require.Len(t, loaded.Features, 1)
	// A 0.0 reading is still a reading; presence must not be lost in encoding.
	assert.True(t, loaded.Features[0].HasUtilization)
	assert.Equal(t, 0.0, loaded.Features[0].ResourceUtilization)
}

func TestSnapshotStore_CheckWritable(t *testing.T) {
	store := NewSnapshotStore(slog.Default())
	path := filepath.Join(t.TempDir(), "analysis_snapshot.gob")

	// Nothing there yet: writable either way.
	require.NoError(t, store.CheckWritable(path, false))
	require.NoError(t, store.CheckWritable(path, true))

	require.NoError(t, os.WriteFile(path, []byte("stale"), 0644))

	err := store.CheckWritable(path, false)
	require.Error(t, err)
	// The guard reports the existing file, not a missing dataset; it never
	// touches the source data at all.
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStorage))
	assert.False(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
	assert.Contains(t, err.Error(), "already exists")

	require.NoError(t, store.CheckWritable(path, true))
}

func TestSnapshotStore_OverwriteGuard(t *testing.T) {
	ctx := context.Background()
	store := NewSnapshotStore(slog.Default())
	path := filepath.Join(t.TempDir(), "analysis_snapshot.gob")

	bundle := testBundle()
	require.NoError(t, store.Write(ctx, path, &Snapshot{Bundle: bundle}, false))

	err := store.Write(ctx, path, &Snapshot{Bundle: bundle}, false)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStorage))
	assert.Contains(t, err.Error(), "already exists")

	assert.NoError(t, store.Write(ctx, path, &Snapshot{Bundle: bundle}, true))
}

func TestSnapshotStore_ReadMissing(t *testing.T) {
	store := NewSnapshotStore(slog.Default())

	_, err := store.Read(context.Background(), filepath.Join(t.TempDir(), "nope.gob"))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestSnapshotStore_RejectsEmptySnapshot(t *testing.T) {
	store := NewSnapshotStore(slog.Default())
	path := filepath.Join(t.TempDir(), "analysis_snapshot.gob")

	err := store.Write(context.Background(), path, &Snapshot{}, false)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
}
