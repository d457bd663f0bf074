package domain

import (
	"time"
)

// Column names after header normalization (lowercase, whitespace to underscore).
const (
	ColDateOfOnset                = "date_of_onset"
	ColLocation                   = "location"
	ColSES                        = "ses"
	ColChronicConditions          = "chronic_conditions"
	ColVaccinationStatus          = "vaccination_status"
	ColDailyNewCases              = "daily_new_cases"
	ColHospitalCapacity           = "hospital_capacity"
	ColHospitalizationRequirement = "hospitalization_requirement"
	ColImmunityLevel              = "immunity_level"
	ColAge                        = "age"
	ColResourceUtilization        = "resource_utilization"
)

// RequiredColumns lists the ten columns every source file must provide.
// ColResourceUtilization is optional and only consulted when present.
var RequiredColumns = []string{
	ColDateOfOnset,
	ColLocation,
	ColSES,
	ColChronicConditions,
	ColVaccinationStatus,
	ColDailyNewCases,
	ColHospitalCapacity,
	ColHospitalizationRequirement,
	ColImmunityLevel,
	ColAge,
}

// RawRecord is one source row as loaded, before any cleaning. Cells keep
// their raw text form; an empty string means the cell was missing.
type RawRecord struct {
	DateOfOnset                string `json:"date_of_onset"`
	Location                   string `json:"location"`
	SES                        string `json:"ses"`
	ChronicConditions          string `json:"chronic_conditions"`
	VaccinationStatus          string `json:"vaccination_status"`
	DailyNewCases              string `json:"daily_new_cases"`
	HospitalCapacity           string `json:"hospital_capacity"`
	HospitalizationRequirement string `json:"hospitalization_requirement"`
	ImmunityLevel              string `json:"immunity_level"`
	Age                        string `json:"age"`
	ResourceUtilization        string `json:"resource_utilization,omitempty"`
}

// RawDataset is the loader output: raw rows plus source metadata used for
// the diagnostic summary.
type RawDataset struct {
	Rows           []RawRecord `json:"rows"`
	Columns        []string    `json:"columns"`
	HasUtilization bool        `json:"has_utilization"`
	SourcePath     string      `json:"source_path"`
	Encoding       string      `json:"encoding"`
}

// CleanRecord is a fully typed, fully populated record. After cleaning no
// field may be left at an invalid value: binary fields are 0 or 1, age is
// within [0,120], cases are non-negative and capacity/requirement positive.
type CleanRecord struct {
	DateOfOnset                time.Time     `json:"date_of_onset"`
	Location                   Region        `json:"location"`
	SES                        SES           `json:"ses"`
	ChronicConditions          int           `json:"chronic_conditions"`
	VaccinationStatus          int           `json:"vaccination_status"`
	DailyNewCases              float64       `json:"daily_new_cases"`
	HospitalCapacity           float64       `json:"hospital_capacity"`
	HospitalizationRequirement float64       `json:"hospitalization_requirement"`
	ImmunityLevel              ImmunityLevel `json:"immunity_level"`
	Age                        float64       `json:"age"`

	// ResourceUtilization carries the optional source utilization column
	// through cleaning. HasUtilization marks presence explicitly: gob omits
	// zero-valued fields, so a 0.0 reading would not survive a snapshot
	// round-trip behind a pointer.
	ResourceUtilization float64 `json:"resource_utilization"`
	HasUtilization      bool    `json:"has_utilization"`
}

// FeatureRecord is a CleanRecord plus the derived analytical attributes.
type FeatureRecord struct {
	CleanRecord

	Year             int      `json:"year"`
	Month            int      `json:"month"`
	Season           Season   `json:"season"`
	AgeGroup         AgeGroup `json:"age_group"`
	VaccineCoverage  float64  `json:"vaccine_coverage"`
	ResourceLoad     float64  `json:"resource_load"`
	TransmissionRate float64  `json:"transmission_rate"`
}

// YearRegion identifies a (year, region) cohort, the grouping key for
// vaccine coverage.
type YearRegion struct {
	Year   int    `json:"year"`
	Region Region `json:"region"`
}
