package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	apperrors "healthdash/internal/errors"
	"healthdash/pkg/contracts/domain"
)

// Season-indexed transmission-rate constants: a proxy for spread intensity,
// not an empirically fitted parameter.
var seasonTransmissionRate = map[domain.Season]float64{
	domain.SeasonWinter: 1.2,
	domain.SeasonSpring: 0.9,
	domain.SeasonSummer: 0.6,
	domain.SeasonAutumn: 0.8,
}

// Resource load is clamped to [0,5] to keep extreme ratios from dominating
// the aggregates; >1 already signals unmet demand.
const maxResourceLoad = 5.0

// FeatureBuilder derives the analytical attributes from cleaned records.
// It is a pure transform and preserves row count: every input record
// produces exactly one feature record.
type FeatureBuilder struct {
	logger *slog.Logger
}

// NewFeatureBuilder creates a new feature builder.
func NewFeatureBuilder(logger *slog.Logger) *FeatureBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeatureBuilder{logger: logger.With(slog.String("component", "feature_builder"))}
}

// Build derives time features, age bands, vaccine coverage, resource load
// and the transmission rate for every record.
func (b *FeatureBuilder) Build(ctx context.Context, records []domain.CleanRecord) ([]domain.FeatureRecord, error) {
	if len(records) == 0 {
		return nil, apperrors.NewValidationError("no cleaned records to build features from")
	}

	coverage := vaccineCoverageByCohort(records)
	useUtilization := hasUtilizationValues(records)

	features := make([]domain.FeatureRecord, 0, len(records))
	for _, record := range records {
		year := record.DateOfOnset.Year()
		month := int(record.DateOfOnset.Month())

		season, err := domain.SeasonForMonth(month)
		if err != nil {
			return nil, apperrors.NewRuntimeError("failed to derive season", err)
		}

		ageGroup, err := domain.AgeGroupForAge(record.Age)
		if err != nil {
			return nil, apperrors.NewRuntimeError(
				fmt.Sprintf("failed to derive age group for age %v", record.Age), err)
		}

		features = append(features, domain.FeatureRecord{
			CleanRecord:      record,
			Year:             year,
			Month:            month,
			Season:           season,
			AgeGroup:         ageGroup,
			VaccineCoverage:  coverage[domain.YearRegion{Year: year, Region: record.Location}],
			ResourceLoad:     resourceLoad(record, useUtilization),
			TransmissionRate: Round2(seasonTransmissionRate[season]),
		})
	}

	b.logger.InfoContext(ctx, "feature engineering completed",
		slog.Int("rows", len(features)),
		slog.Bool("utilization_based_load", useUtilization),
		slog.Int("coverage_cohorts", len(coverage)))

	return features, nil
}

// vaccineCoverageByCohort computes the share of vaccinated rows per
// (year, region) cohort, rounded to 3 decimals. Every row of a cohort
// shares the same coverage value.
func vaccineCoverageByCohort(records []domain.CleanRecord) map[domain.YearRegion]float64 {
	vaccinated := make(map[domain.YearRegion]int)
	totals := make(map[domain.YearRegion]int)

	for _, record := range records {
		key := domain.YearRegion{Year: record.DateOfOnset.Year(), Region: record.Location}
		totals[key]++
		if record.VaccinationStatus == 1 {
			vaccinated[key]++
		}
	}

	coverage := make(map[domain.YearRegion]float64, len(totals))
	for key, total := range totals {
		if total == 0 {
			coverage[key] = 0
			continue
		}
		coverage[key] = Round3(float64(vaccinated[key]) / float64(total))
	}

	return coverage
}

// hasUtilizationValues reports whether the optional utilization column is
// present and not entirely null. Only then is it preferred over the
// requirement/capacity ratio.
func hasUtilizationValues(records []domain.CleanRecord) bool {
	for _, record := range records {
		if record.HasUtilization {
			return true
		}
	}
	return false
}

// resourceLoad computes the per-row load, preferring the source utilization
// percentage when available. Rows without a utilization value fall back to
// the ratio so no row is ever left undefined.
func resourceLoad(record domain.CleanRecord, useUtilization bool) float64 {
	var load float64

	if useUtilization && record.HasUtilization {
		load = record.ResourceUtilization / 100
	} else if record.HospitalCapacity > 0 {
		load = record.HospitalizationRequirement / record.HospitalCapacity
	}

	if load < 0 {
		load = 0
	}
	if load > maxResourceLoad {
		load = maxResourceLoad
	}

	return Round3(load)
}

// Round3 rounds to 3 decimal places.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// Round2 rounds to 2 decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
