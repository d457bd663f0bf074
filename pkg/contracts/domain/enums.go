package domain

import (
	"fmt"
	"strings"
)

// Region represents the surveillance region type
type Region string

const (
	RegionUrban    Region = "Urban"
	RegionSuburban Region = "Suburban"
	RegionRural    Region = "Rural"
	RegionUnknown  Region = "Unknown"
)

// Regions lists all known regions in canonical display order.
var Regions = []Region{RegionUrban, RegionSuburban, RegionRural}

// ParseRegion parses a raw cell value into a Region. Input is trimmed and
// title-cased before matching, so "urban", "URBAN " and "Urban" all resolve
// to RegionUrban. Unrecognized values return false.
func ParseRegion(s string) (Region, bool) {
	switch Region(TitleCase(s)) {
	case RegionUrban:
		return RegionUrban, true
	case RegionSuburban:
		return RegionSuburban, true
	case RegionRural:
		return RegionRural, true
	case RegionUnknown:
		return RegionUnknown, true
	}
	return RegionUnknown, false
}

// Order returns the sort rank of the region within Regions.
func (r Region) Order() int { return enumOrder(string(r), regionOrder) }

// SES represents socio-economic status
type SES string

const (
	SESHigh    SES = "High"
	SESMedium  SES = "Medium"
	SESLow     SES = "Low"
	SESUnknown SES = "Unknown"
)

// SESLevels lists all known SES levels in canonical display order.
var SESLevels = []SES{SESHigh, SESMedium, SESLow}

// ParseSES parses a raw cell value into an SES level.
func ParseSES(s string) (SES, bool) {
	switch SES(TitleCase(s)) {
	case SESHigh:
		return SESHigh, true
	case SESMedium:
		return SESMedium, true
	case SESLow:
		return SESLow, true
	case SESUnknown:
		return SESUnknown, true
	}
	return SESUnknown, false
}

// Order returns the sort rank of the SES level within SESLevels.
func (s SES) Order() int { return enumOrder(string(s), sesOrder) }

// ImmunityLevel represents an individual's measured immunity level
type ImmunityLevel string

const (
	ImmunityHigh    ImmunityLevel = "High"
	ImmunityMedium  ImmunityLevel = "Medium"
	ImmunityLow     ImmunityLevel = "Low"
	ImmunityUnknown ImmunityLevel = "Unknown"
)

// ImmunityLevels lists all known immunity levels in canonical display order.
var ImmunityLevels = []ImmunityLevel{ImmunityHigh, ImmunityMedium, ImmunityLow}

// ParseImmunityLevel parses a raw cell value into an ImmunityLevel.
func ParseImmunityLevel(s string) (ImmunityLevel, bool) {
	switch ImmunityLevel(TitleCase(s)) {
	case ImmunityHigh:
		return ImmunityHigh, true
	case ImmunityMedium:
		return ImmunityMedium, true
	case ImmunityLow:
		return ImmunityLow, true
	case ImmunityUnknown:
		return ImmunityUnknown, true
	}
	return ImmunityUnknown, false
}

// Order returns the sort rank of the immunity level within ImmunityLevels.
func (l ImmunityLevel) Order() int { return enumOrder(string(l), immunityOrder) }

// Season represents a calendar season (northern-hemisphere convention)
type Season string

const (
	SeasonWinter Season = "Winter"
	SeasonSpring Season = "Spring"
	SeasonSummer Season = "Summer"
	SeasonAutumn Season = "Autumn"
)

// Seasons lists the four seasons in calendar order starting at Spring.
var Seasons = []Season{SeasonSpring, SeasonSummer, SeasonAutumn, SeasonWinter}

// SeasonForMonth maps a calendar month (1-12) to its season:
// Dec-Feb Winter, Mar-May Spring, Jun-Aug Summer, Sep-Nov Autumn.
func SeasonForMonth(month int) (Season, error) {
	switch month {
	case 12, 1, 2:
		return SeasonWinter, nil
	case 3, 4, 5:
		return SeasonSpring, nil
	case 6, 7, 8:
		return SeasonSummer, nil
	case 9, 10, 11:
		return SeasonAutumn, nil
	}
	return "", fmt.Errorf("invalid month: %d", month)
}

// Order returns the sort rank of the season within Seasons.
func (s Season) Order() int { return enumOrder(string(s), seasonOrder) }

// AgeGroup represents an age band with closed boundaries at 0/18/65/120
type AgeGroup string

const (
	AgeGroupChild   AgeGroup = "Child (0-18)"
	AgeGroupAdult   AgeGroup = "Adult (19-65)"
	AgeGroupElderly AgeGroup = "Elderly (66+)"
)

// AgeGroups lists the age bands from youngest to oldest.
var AgeGroups = []AgeGroup{AgeGroupChild, AgeGroupAdult, AgeGroupElderly}

// AgeGroupForAge buckets an age into its band. Ages are expected to already
// be restricted to [0,120] by cleaning; out-of-range values return an error.
func AgeGroupForAge(age float64) (AgeGroup, error) {
	switch {
	case age >= 0 && age <= 18:
		return AgeGroupChild, nil
	case age > 18 && age <= 65:
		return AgeGroupAdult, nil
	case age > 65 && age <= 120:
		return AgeGroupElderly, nil
	}
	return "", fmt.Errorf("age out of range [0,120]: %v", age)
}

// Order returns the sort rank of the age group within AgeGroups.
func (g AgeGroup) Order() int { return enumOrder(string(g), ageGroupOrder) }

// Vaccination status display labels used in the vaccine effect table
const (
	LabelVaccinated   = "Vaccinated"
	LabelUnvaccinated = "Unvaccinated"
)

// VaccinationLabel maps the 0/1 vaccination code to its display label.
func VaccinationLabel(status int) string {
	if status == 1 {
		return LabelVaccinated
	}
	return LabelUnvaccinated
}

// KPIKey is a stable identifier for a KPI row. Consumers look KPIs up by key
// instead of matching on display labels.
type KPIKey string

const (
	KPITotalCases      KPIKey = "total_cases"
	KPIAvgCoverage     KPIKey = "avg_vaccine_coverage"
	KPIAvgResourceLoad KPIKey = "avg_resource_load"
	KPIPeakSeasonCases KPIKey = "peak_season_cases"
)

// KPIKeys lists all KPI keys in canonical display order.
var KPIKeys = []KPIKey{KPITotalCases, KPIAvgCoverage, KPIAvgResourceLoad, KPIPeakSeasonCases}

// TitleCase trims the value and upper-cases the first letter of each word,
// lower-casing the rest, matching the normalization applied to categorical
// source cells ("  uRbAn " -> "Urban").
func TitleCase(s string) string {
	words := strings.Fields(strings.TrimSpace(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

var (
	regionOrder   = orderMap(Regions)
	sesOrder      = orderMap(SESLevels)
	immunityOrder = orderMap(ImmunityLevels)
	seasonOrder   = orderMap(Seasons)
	ageGroupOrder = orderMap(AgeGroups)
)

func orderMap[T ~string](values []T) map[string]int {
	m := make(map[string]int, len(values))
	for i, v := range values {
		m[string(v)] = i
	}
	return m
}

// enumOrder ranks unknown values after all known ones so they sort last.
func enumOrder(s string, order map[string]int) int {
	if i, ok := order[s]; ok {
		return i
	}
	return len(order)
}
