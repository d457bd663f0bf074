package dataprocessing

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "healthdash/internal/errors"
	"healthdash/pkg/contracts/domain"
)

func cleanRecord(date string, region domain.Region, vaccinated int) domain.CleanRecord {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return domain.CleanRecord{
		DateOfOnset:                t,
		Location:                   region,
		SES:                        domain.SESMedium,
		VaccinationStatus:          vaccinated,
		DailyNewCases:              10,
		HospitalCapacity:           100,
		HospitalizationRequirement: 10,
		ImmunityLevel:              domain.ImmunityMedium,
		Age:                        40,
	}
}

func TestFeatureBuilder_Build(t *testing.T) {
	ctx := context.Background()
	builder := NewFeatureBuilder(slog.Default())

	t.Run("empty input is a validation error", func(t *testing.T) {
		_, err := builder.Build(ctx, nil)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
	})

	t.Run("derives time features and season", func(t *testing.T) {
		features, err := builder.Build(ctx, []domain.CleanRecord{
			cleanRecord("2023-01-10", domain.RegionUrban, 1),
			cleanRecord("2023-04-10", domain.RegionUrban, 1),
			cleanRecord("2023-07-10", domain.RegionUrban, 1),
			cleanRecord("2023-10-10", domain.RegionUrban, 1),
			cleanRecord("2023-12-10", domain.RegionUrban, 1),
		})
		require.NoError(t, err)
		require.Len(t, features, 5)

		assert.Equal(t, 2023, features[0].Year)
		assert.Equal(t, 1, features[0].Month)
		assert.Equal(t, domain.SeasonWinter, features[0].Season)
		assert.Equal(t, domain.SeasonSpring, features[1].Season)
		assert.Equal(t, domain.SeasonSummer, features[2].Season)
		assert.Equal(t, domain.SeasonAutumn, features[3].Season)
		assert.Equal(t, domain.SeasonWinter, features[4].Season)
	})

	t.Run("transmission rate follows the season", func(t *testing.T) {
		features, err := builder.Build(ctx, []domain.CleanRecord{
			cleanRecord("2023-01-10", domain.RegionUrban, 1),
			cleanRecord("2023-04-10", domain.RegionUrban, 1),
			cleanRecord("2023-07-10", domain.RegionUrban, 1),
			cleanRecord("2023-10-10", domain.RegionUrban, 1),
		})
		require.NoError(t, err)

		assert.Equal(t, 1.2, features[0].TransmissionRate)
		assert.Equal(t, 0.9, features[1].TransmissionRate)
		assert.Equal(t, 0.6, features[2].TransmissionRate)
		assert.Equal(t, 0.8, features[3].TransmissionRate)
	})

	t.Run("age groups bucket at the boundaries", func(t *testing.T) {
		records := []domain.CleanRecord{
			cleanRecord("2023-01-10", domain.RegionUrban, 1),
			cleanRecord("2023-01-10", domain.RegionUrban, 1),
			cleanRecord("2023-01-10", domain.RegionUrban, 1),
			cleanRecord("2023-01-10", domain.RegionUrban, 1),
		}
		records[0].Age = 18
		records[1].Age = 19
		records[2].Age = 65
		records[3].Age = 66

		features, err := builder.Build(ctx, records)
		require.NoError(t, err)

		assert.Equal(t, domain.AgeGroupChild, features[0].AgeGroup)
		assert.Equal(t, domain.AgeGroupAdult, features[1].AgeGroup)
		assert.Equal(t, domain.AgeGroupAdult, features[2].AgeGroup)
		assert.Equal(t, domain.AgeGroupElderly, features[3].AgeGroup)
	})

	t.Run("coverage is per year and region cohort", func(t *testing.T) {
		features, err := builder.Build(ctx, []domain.CleanRecord{
			cleanRecord("2023-01-10", domain.RegionUrban, 1),
			cleanRecord("2023-05-10", domain.RegionUrban, 1),
			cleanRecord("2023-08-10", domain.RegionUrban, 0),
			cleanRecord("2023-01-10", domain.RegionRural, 0),
			cleanRecord("2024-01-10", domain.RegionUrban, 1),
		})
		require.NoError(t, err)

		// Urban 2023: 2 of 3 vaccinated.
		assert.Equal(t, 0.667, features[0].VaccineCoverage)
		assert.Equal(t, 0.667, features[1].VaccineCoverage)
		assert.Equal(t, 0.667, features[2].VaccineCoverage)
		// Rural 2023: 0 of 1.
		assert.Equal(t, 0.0, features[3].VaccineCoverage)
		// Urban 2024: 1 of 1.
		assert.Equal(t, 1.0, features[4].VaccineCoverage)
	})

	t.Run("resource load falls back to the capacity ratio", func(t *testing.T) {
		record := cleanRecord("2023-01-10", domain.RegionUrban, 1)
		record.HospitalCapacity = 200
		record.HospitalizationRequirement = 50

		features, err := builder.Build(ctx, []domain.CleanRecord{record})
		require.NoError(t, err)
		assert.Equal(t, 0.25, features[0].ResourceLoad)
	})

	t.Run("resource load prefers utilization when present", func(t *testing.T) {
		withUtil := cleanRecord("2023-01-10", domain.RegionUrban, 1)
		withUtil.ResourceUtilization = 85.0
		withUtil.HasUtilization = true

		withoutUtil := cleanRecord("2023-01-10", domain.RegionUrban, 1)
		withoutUtil.HospitalCapacity = 100
		withoutUtil.HospitalizationRequirement = 30

		features, err := builder.Build(ctx, []domain.CleanRecord{withUtil, withoutUtil})
		require.NoError(t, err)

		assert.Equal(t, 0.85, features[0].ResourceLoad)
		// Rows without a utilization value still get the ratio.
		assert.Equal(t, 0.3, features[1].ResourceLoad)
	})

	t.Run("resource load is clamped", func(t *testing.T) {
		record := cleanRecord("2023-01-10", domain.RegionUrban, 1)
		record.HospitalCapacity = 10
		record.HospitalizationRequirement = 500

		features, err := builder.Build(ctx, []domain.CleanRecord{record})
		require.NoError(t, err)
		assert.Equal(t, maxResourceLoad, features[0].ResourceLoad)
	})
}

func TestRounding(t *testing.T) {
	assert.Equal(t, 0.667, Round3(2.0/3.0))
	assert.Equal(t, 0.5, Round3(0.5))
	assert.Equal(t, 1.2, Round2(1.2))
	assert.Equal(t, 0.33, Round2(1.0/3.0))
}
