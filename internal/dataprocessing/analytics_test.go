package dataprocessing

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "healthdash/internal/errors"
	"healthdash/pkg/contracts/domain"
)

type featureSpec struct {
	year       int
	month      int
	region     domain.Region
	ses        domain.SES
	season     domain.Season
	vaccinated int
	immunity   domain.ImmunityLevel
	ageGroup   domain.AgeGroup
	cases      float64
	age        float64
}

func feature(s featureSpec) domain.FeatureRecord {
	return domain.FeatureRecord{
		CleanRecord: domain.CleanRecord{
			Location:          s.region,
			SES:               s.ses,
			VaccinationStatus: s.vaccinated,
			DailyNewCases:     s.cases,
			ImmunityLevel:     s.immunity,
			Age:               s.age,
		},
		Year:             s.year,
		Month:            s.month,
		Season:           s.season,
		AgeGroup:         s.ageGroup,
		VaccineCoverage:  0.5,
		ResourceLoad:     0.2,
		TransmissionRate: 1.2,
	}
}

func testFeatures() []domain.FeatureRecord {
	return []domain.FeatureRecord{
		feature(featureSpec{2023, 1, domain.RegionUrban, domain.SESHigh, domain.SeasonWinter, 1, domain.ImmunityHigh, domain.AgeGroupAdult, 10, 30}),
		feature(featureSpec{2023, 1, domain.RegionUrban, domain.SESHigh, domain.SeasonWinter, 0, domain.ImmunityLow, domain.AgeGroupAdult, 20, 50}),
		feature(featureSpec{2023, 7, domain.RegionRural, domain.SESLow, domain.SeasonSummer, 1, domain.ImmunityHigh, domain.AgeGroupChild, 5, 10}),
		feature(featureSpec{2024, 1, domain.RegionUrban, domain.SESHigh, domain.SeasonWinter, 0, domain.ImmunityMedium, domain.AgeGroupElderly, 40, 70}),
	}
}

func TestAnalyzer_GenerateTables(t *testing.T) {
	ctx := context.Background()
	analyzer := NewAnalyzer(slog.Default())

	t.Run("empty filter result is a validation error", func(t *testing.T) {
		_, err := analyzer.GenerateTables(ctx, testFeatures(), []int{2025}, nil)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
	})

	t.Run("nil filters keep everything", func(t *testing.T) {
		bundle, err := analyzer.GenerateTables(ctx, testFeatures(), nil, nil)
		require.NoError(t, err)
		assert.Len(t, bundle.RawFeatures, 4)
	})

	t.Run("filters restrict by year and region", func(t *testing.T) {
		bundle, err := analyzer.GenerateTables(ctx, testFeatures(), []int{2023}, []domain.Region{domain.RegionUrban})
		require.NoError(t, err)
		assert.Len(t, bundle.RawFeatures, 2)
		for _, f := range bundle.RawFeatures {
			assert.Equal(t, 2023, f.Year)
			assert.Equal(t, domain.RegionUrban, f.Location)
		}
	})

	t.Run("timeseries groups and sorts by year month region", func(t *testing.T) {
		bundle, err := analyzer.GenerateTables(ctx, testFeatures(), nil, nil)
		require.NoError(t, err)

		rows := bundle.Timeseries
		require.Len(t, rows, 3)

		// 2023-01 Urban: two rows merged.
		assert.Equal(t, 2023, rows[0].Year)
		assert.Equal(t, 1, rows[0].Month)
		assert.Equal(t, domain.RegionUrban, rows[0].Region)
		assert.Equal(t, 30.0, rows[0].DailyNewCases)
		assert.Equal(t, 1, rows[0].Date.Day())

		assert.Equal(t, 2023, rows[1].Year)
		assert.Equal(t, 7, rows[1].Month)
		assert.Equal(t, domain.RegionRural, rows[1].Region)

		assert.Equal(t, 2024, rows[2].Year)
	})

	t.Run("region ses table carries median age and sample size", func(t *testing.T) {
		bundle, err := analyzer.GenerateTables(ctx, testFeatures(), nil, nil)
		require.NoError(t, err)

		rows := bundle.RegionSES
		require.Len(t, rows, 2)

		// Urban sorts before Rural; Urban/High/Winter merges three rows.
		assert.Equal(t, domain.RegionUrban, rows[0].Region)
		assert.Equal(t, domain.SESHigh, rows[0].SES)
		assert.Equal(t, domain.SeasonWinter, rows[0].Season)
		assert.Equal(t, 70.0, rows[0].DailyNewCases)
		assert.Equal(t, 50.0, rows[0].MedianAge)
		assert.Equal(t, 3, rows[0].SampleSize)

		assert.Equal(t, domain.RegionRural, rows[1].Region)
		assert.Equal(t, 1, rows[1].SampleSize)
	})

	t.Run("vaccine effect table labels status codes", func(t *testing.T) {
		bundle, err := analyzer.GenerateTables(ctx, testFeatures(), nil, nil)
		require.NoError(t, err)

		rows := bundle.VaccineEffect
		require.Len(t, rows, 4)

		// Unvaccinated groups sort first, then immunity order High > Medium > Low.
		assert.Equal(t, domain.LabelUnvaccinated, rows[0].VaccinationStatus)
		assert.Equal(t, domain.ImmunityMedium, rows[0].ImmunityLevel)
		assert.Equal(t, domain.LabelUnvaccinated, rows[1].VaccinationStatus)
		assert.Equal(t, domain.ImmunityLow, rows[1].ImmunityLevel)
		assert.Equal(t, domain.LabelVaccinated, rows[2].VaccinationStatus)
		assert.Equal(t, domain.LabelVaccinated, rows[3].VaccinationStatus)
	})

	t.Run("kpi table has stable keys and values", func(t *testing.T) {
		bundle, err := analyzer.GenerateTables(ctx, testFeatures(), nil, nil)
		require.NoError(t, err)

		require.Len(t, bundle.KPIs, 4)

		total, ok := bundle.KPI(domain.KPITotalCases)
		require.True(t, ok)
		assert.Equal(t, 75.0, total.Value)

		coverage, ok := bundle.KPI(domain.KPIAvgCoverage)
		require.True(t, ok)
		assert.Equal(t, 0.5, coverage.Value)

		load, ok := bundle.KPI(domain.KPIAvgResourceLoad)
		require.True(t, ok)
		assert.Equal(t, 0.2, load.Value)

		// Winter sums 10+20+40 across both years, above Summer's 5.
		peak, ok := bundle.KPI(domain.KPIPeakSeasonCases)
		require.True(t, ok)
		assert.Equal(t, 70.0, peak.Value)
	})
}

func TestObservedCatalog(t *testing.T) {
	catalog := domain.ObservedCatalog(testFeatures())
	assert.Equal(t, []int{2023, 2024}, catalog.Years)
	assert.Equal(t, []domain.Region{domain.RegionUrban, domain.RegionRural}, catalog.Regions)
}

func TestFilterOptions_Resolve(t *testing.T) {
	catalog := domain.FilterCatalog{
		Years:   []int{2023, 2024},
		Regions: []domain.Region{domain.RegionUrban, domain.RegionRural},
	}

	t.Run("zero filter takes the whole catalog", func(t *testing.T) {
		resolved := domain.FilterOptions{}.Resolve(catalog)
		assert.Equal(t, catalog.Years, resolved.Years)
		assert.Equal(t, catalog.Regions, resolved.Regions)
	})

	t.Run("supplied values pass through", func(t *testing.T) {
		resolved := domain.FilterOptions{Years: []int{2024}}.Resolve(catalog)
		assert.Equal(t, []int{2024}, resolved.Years)
		assert.Equal(t, catalog.Regions, resolved.Regions)
	})
}
