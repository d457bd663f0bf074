package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	apperrors "healthdash/internal/errors"
	"healthdash/pkg/contracts/domain"
)

// Analyzer turns a feature record set into the presentation-ready analysis
// table bundle. Every invocation recomputes all tables from scratch; the
// returned bundle is never mutated afterwards.
type Analyzer struct {
	logger *slog.Logger
}

// NewAnalyzer creates a new table analyzer.
func NewAnalyzer(logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{logger: logger.With(slog.String("component", "analyzer"))}
}

// GenerateTables applies the year/region filters and produces the four
// derived tables plus the filtered feature slice as one atomic bundle.
// Empty filter slices mean "no restriction". It fails with a VALIDATION
// error when the filtered slice is empty, so callers can surface the bad
// filter combination instead of rendering empty tables.
func (a *Analyzer) GenerateTables(ctx context.Context, features []domain.FeatureRecord, years []int, regions []domain.Region) (*domain.AnalysisBundle, error) {
	filtered := filterFeatures(features, years, regions)

	if len(filtered) == 0 {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("no data left after filtering (years=%v, regions=%v); adjust filter criteria", years, regions))
	}

	bundle := &domain.AnalysisBundle{
		Timeseries:    a.timeseriesTable(filtered),
		RegionSES:     a.regionSESTable(filtered),
		VaccineEffect: a.vaccineEffectTable(filtered),
		KPIs:          a.kpiTable(filtered),
		RawFeatures:   filtered,
		Years:         years,
		Regions:       regions,
		GeneratedAt:   time.Now().UTC(),
	}

	a.logger.InfoContext(ctx, "analysis tables generated",
		slog.Int("filtered_rows", len(filtered)),
		slog.Any("table_sizes", bundle.TableSizes()))

	return bundle, nil
}

// filterFeatures keeps rows matching both the year and region membership
// predicates. A nil or empty filter matches everything.
func filterFeatures(features []domain.FeatureRecord, years []int, regions []domain.Region) []domain.FeatureRecord {
	yearSet := make(map[int]bool, len(years))
	for _, y := range years {
		yearSet[y] = true
	}
	regionSet := make(map[domain.Region]bool, len(regions))
	for _, r := range regions {
		regionSet[r] = true
	}

	filtered := make([]domain.FeatureRecord, 0, len(features))
	for _, f := range features {
		if len(yearSet) > 0 && !yearSet[f.Year] {
			continue
		}
		if len(regionSet) > 0 && !regionSet[f.Location] {
			continue
		}
		filtered = append(filtered, f)
	}
	return filtered
}

type timeseriesKey struct {
	year   int
	month  int
	region domain.Region
}

type timeseriesAgg struct {
	cases    float64
	rateSum  float64
	covSum   float64
	loadSum  float64
	rowCount int
}

// timeseriesTable groups by (year, month, region): summed cases, averaged
// rate/coverage/load, and a synthesized first-of-month date.
func (a *Analyzer) timeseriesTable(features []domain.FeatureRecord) []domain.TimeseriesRow {
	groups := make(map[timeseriesKey]*timeseriesAgg)

	for _, f := range features {
		key := timeseriesKey{year: f.Year, month: f.Month, region: f.Location}
		agg := groups[key]
		if agg == nil {
			agg = &timeseriesAgg{}
			groups[key] = agg
		}
		agg.cases += f.DailyNewCases
		agg.rateSum += f.TransmissionRate
		agg.covSum += f.VaccineCoverage
		agg.loadSum += f.ResourceLoad
		agg.rowCount++
	}

	rows := make([]domain.TimeseriesRow, 0, len(groups))
	for key, agg := range groups {
		n := float64(agg.rowCount)
		rows = append(rows, domain.TimeseriesRow{
			Year:             key.year,
			Month:            key.month,
			Region:           key.region,
			Date:             time.Date(key.year, time.Month(key.month), 1, 0, 0, 0, 0, time.UTC),
			DailyNewCases:    agg.cases,
			TransmissionRate: agg.rateSum / n,
			VaccineCoverage:  agg.covSum / n,
			ResourceLoad:     agg.loadSum / n,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Year != rows[j].Year {
			return rows[i].Year < rows[j].Year
		}
		if rows[i].Month != rows[j].Month {
			return rows[i].Month < rows[j].Month
		}
		return rows[i].Region.Order() < rows[j].Region.Order()
	})

	return rows
}

type regionSESKey struct {
	region domain.Region
	ses    domain.SES
	season domain.Season
}

type regionSESAgg struct {
	cases   float64
	covSum  float64
	loadSum float64
	ages    []float64
}

// regionSESTable groups by (region, SES, season): summed cases, averaged
// coverage/load, median age, and the group's sample size.
func (a *Analyzer) regionSESTable(features []domain.FeatureRecord) []domain.RegionSESRow {
	groups := make(map[regionSESKey]*regionSESAgg)

	for _, f := range features {
		key := regionSESKey{region: f.Location, ses: f.SES, season: f.Season}
		agg := groups[key]
		if agg == nil {
			agg = &regionSESAgg{}
			groups[key] = agg
		}
		agg.cases += f.DailyNewCases
		agg.covSum += f.VaccineCoverage
		agg.loadSum += f.ResourceLoad
		agg.ages = append(agg.ages, f.Age)
	}

	rows := make([]domain.RegionSESRow, 0, len(groups))
	for key, agg := range groups {
		n := float64(len(agg.ages))
		medianAge, _ := median(agg.ages)
		rows = append(rows, domain.RegionSESRow{
			Region:          key.region,
			SES:             key.ses,
			Season:          key.season,
			DailyNewCases:   agg.cases,
			VaccineCoverage: agg.covSum / n,
			ResourceLoad:    agg.loadSum / n,
			MedianAge:       medianAge,
			SampleSize:      len(agg.ages),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Region != rows[j].Region {
			return rows[i].Region.Order() < rows[j].Region.Order()
		}
		if rows[i].SES != rows[j].SES {
			return rows[i].SES.Order() < rows[j].SES.Order()
		}
		return rows[i].Season.Order() < rows[j].Season.Order()
	})

	return rows
}

type vaccineEffectKey struct {
	vaccination int
	immunity    domain.ImmunityLevel
	ageGroup    domain.AgeGroup
}

type vaccineEffectAgg struct {
	casesSum float64
	rateSum  float64
	rowCount int
}

// vaccineEffectTable groups by (vaccination status, immunity level, age
// group) with mean cases and mean transmission rate, and remaps the 0/1
// status codes to display labels.
func (a *Analyzer) vaccineEffectTable(features []domain.FeatureRecord) []domain.VaccineEffectRow {
	groups := make(map[vaccineEffectKey]*vaccineEffectAgg)

	for _, f := range features {
		key := vaccineEffectKey{vaccination: f.VaccinationStatus, immunity: f.ImmunityLevel, ageGroup: f.AgeGroup}
		agg := groups[key]
		if agg == nil {
			agg = &vaccineEffectAgg{}
			groups[key] = agg
		}
		agg.casesSum += f.DailyNewCases
		agg.rateSum += f.TransmissionRate
		agg.rowCount++
	}

	keys := make([]vaccineEffectKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].vaccination != keys[j].vaccination {
			return keys[i].vaccination < keys[j].vaccination
		}
		if keys[i].immunity != keys[j].immunity {
			return keys[i].immunity.Order() < keys[j].immunity.Order()
		}
		return keys[i].ageGroup.Order() < keys[j].ageGroup.Order()
	})

	rows := make([]domain.VaccineEffectRow, 0, len(keys))
	for _, key := range keys {
		agg := groups[key]
		n := float64(agg.rowCount)
		rows = append(rows, domain.VaccineEffectRow{
			VaccinationStatus: domain.VaccinationLabel(key.vaccination),
			ImmunityLevel:     key.immunity,
			AgeGroup:          key.ageGroup,
			MeanDailyCases:    agg.casesSum / n,
			MeanTransmission:  agg.rateSum / n,
		})
	}

	return rows
}

// kpiTable computes the four scalar indicators over the filtered slice.
// Peak-season cases sums per season across all other dimensions first,
// then takes the maximum season total.
func (a *Analyzer) kpiTable(features []domain.FeatureRecord) []domain.KPIRow {
	var totalCases, covSum, loadSum float64
	seasonCases := make(map[domain.Season]float64)

	for _, f := range features {
		totalCases += f.DailyNewCases
		covSum += f.VaccineCoverage
		loadSum += f.ResourceLoad
		seasonCases[f.Season] += f.DailyNewCases
	}

	n := float64(len(features))

	var peakSeasonCases float64
	for _, cases := range seasonCases {
		if cases > peakSeasonCases {
			peakSeasonCases = cases
		}
	}

	return []domain.KPIRow{
		{
			Key:         domain.KPITotalCases,
			Metric:      "Total Cases",
			Value:       totalCases,
			Unit:        "Cases",
			Description: "Total new cases in filtered data",
		},
		{
			Key:         domain.KPIAvgCoverage,
			Metric:      "Average Vaccine Coverage",
			Value:       Round3(covSum / n),
			Unit:        "Ratio",
			Description: "Average vaccination rate across regions and years",
		},
		{
			Key:         domain.KPIAvgResourceLoad,
			Metric:      "Average Resource Load",
			Value:       Round3(loadSum / n),
			Unit:        "Ratio",
			Description: "Average ratio of hospitalization requirement to capacity",
		},
		{
			Key:         domain.KPIPeakSeasonCases,
			Metric:      "Peak Season Cases",
			Value:       peakSeasonCases,
			Unit:        "Cases",
			Description: "Maximum number of cases in any single season",
		},
	}
}
