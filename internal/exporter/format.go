package exporter

import (
	"strconv"

	"healthdash/pkg/contracts/domain"
)

var (
	timeseriesHeaders    = []string{"date", "year", "month", "region", "daily_new_cases", "transmission_rate", "vaccine_coverage", "resource_load"}
	regionSESHeaders     = []string{"region", "ses", "season", "daily_new_cases", "vaccine_coverage", "resource_load", "median_age", "sample_size"}
	vaccineEffectHeaders = []string{"vaccination_status", "immunity_level", "age_group", "mean_daily_cases", "mean_transmission_rate"}
	kpiHeaders           = []string{"key", "metric", "value", "unit", "description"}
)

// formatFloat renders values without exponent notation and without
// trailing zeros, matching how the tables are displayed.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func timeseriesRecords(rows []domain.TimeseriesRow) [][]string {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			r.Date.Format("2006-01-02"),
			strconv.Itoa(r.Year),
			strconv.Itoa(r.Month),
			string(r.Region),
			formatFloat(r.DailyNewCases),
			formatFloat(r.TransmissionRate),
			formatFloat(r.VaccineCoverage),
			formatFloat(r.ResourceLoad),
		})
	}
	return records
}

func regionSESRecords(rows []domain.RegionSESRow) [][]string {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			string(r.Region),
			string(r.SES),
			string(r.Season),
			formatFloat(r.DailyNewCases),
			formatFloat(r.VaccineCoverage),
			formatFloat(r.ResourceLoad),
			formatFloat(r.MedianAge),
			strconv.Itoa(r.SampleSize),
		})
	}
	return records
}

func vaccineEffectRecords(rows []domain.VaccineEffectRow) [][]string {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			r.VaccinationStatus,
			string(r.ImmunityLevel),
			string(r.AgeGroup),
			formatFloat(r.MeanDailyCases),
			formatFloat(r.MeanTransmission),
		})
	}
	return records
}

func kpiRecords(rows []domain.KPIRow) [][]string {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			string(r.Key),
			r.Metric,
			formatFloat(r.Value),
			r.Unit,
			r.Description,
		})
	}
	return records
}
