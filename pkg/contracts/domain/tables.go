package domain

import (
	"time"
)

// TimeseriesRow is one (year, month, region) row of the monthly time series:
// summed cases with averaged rate/coverage/load and a synthesized
// first-of-month date.
type TimeseriesRow struct {
	Year             int       `json:"year"`
	Month            int       `json:"month"`
	Region           Region    `json:"location"`
	Date             time.Time `json:"date"`
	DailyNewCases    float64   `json:"daily_new_cases"`
	TransmissionRate float64   `json:"transmission_rate"`
	VaccineCoverage  float64   `json:"vaccine_coverage"`
	ResourceLoad     float64   `json:"resource_load"`
}

// RegionSESRow is one (region, SES, season) summary row.
type RegionSESRow struct {
	Region          Region  `json:"location"`
	SES             SES     `json:"ses"`
	Season          Season  `json:"season"`
	DailyNewCases   float64 `json:"daily_new_cases"`
	VaccineCoverage float64 `json:"vaccine_coverage"`
	ResourceLoad    float64 `json:"resource_load"`
	MedianAge       float64 `json:"age"`
	SampleSize      int     `json:"sample_size"`
}

// VaccineEffectRow is one (vaccination status, immunity level, age group)
// row with mean outcomes. VaccinationStatus carries the display label
// ("Vaccinated"/"Unvaccinated"), not the 0/1 code.
type VaccineEffectRow struct {
	VaccinationStatus string        `json:"vaccination_status"`
	ImmunityLevel     ImmunityLevel `json:"immunity_level"`
	AgeGroup          AgeGroup      `json:"age_group"`
	MeanDailyCases    float64       `json:"daily_new_cases"`
	MeanTransmission  float64       `json:"transmission_rate"`
}

// KPIRow is one scalar indicator. Key is the stable lookup identifier;
// Metric/Unit/Description are display strings.
type KPIRow struct {
	Key         KPIKey  `json:"key"`
	Metric      string  `json:"metric"`
	Value       float64 `json:"value"`
	Unit        string  `json:"unit"`
	Description string  `json:"description"`
}

// AnalysisBundle is the atomic result of one aggregation run: the four
// derived tables plus the filtered feature slice retained for data-quality
// inspection. A bundle is immutable once produced; every filter change
// recomputes a fresh one.
type AnalysisBundle struct {
	Timeseries    []TimeseriesRow    `json:"timeseries"`
	RegionSES     []RegionSESRow     `json:"region_ses"`
	VaccineEffect []VaccineEffectRow `json:"vaccine_effect"`
	KPIs          []KPIRow           `json:"kpi"`
	RawFeatures   []FeatureRecord    `json:"raw_feature"`

	// Applied filters, recorded for observability and cache metadata.
	Years   []int    `json:"years"`
	Regions []Region `json:"regions"`

	GeneratedAt time.Time `json:"generated_at"`
}

// KPI returns the KPI row with the given key.
func (b *AnalysisBundle) KPI(key KPIKey) (KPIRow, bool) {
	for _, row := range b.KPIs {
		if row.Key == key {
			return row, true
		}
	}
	return KPIRow{}, false
}

// TableSizes reports row counts per table, used for logging and for
// verifying snapshot round-trips.
func (b *AnalysisBundle) TableSizes() map[string]int {
	return map[string]int{
		"timeseries":     len(b.Timeseries),
		"region_ses":     len(b.RegionSES),
		"vaccine_effect": len(b.VaccineEffect),
		"kpi":            len(b.KPIs),
		"raw_feature":    len(b.RawFeatures),
	}
}
