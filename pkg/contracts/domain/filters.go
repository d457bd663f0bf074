package domain

import "sort"

// FilterOptions narrows an analysis run to specific years and regions.
// Empty slices carry no opinion; callers resolve them against the observed
// catalog before filtering so "no filter" always means "everything seen".
type FilterOptions struct {
	Years   []int    `json:"years"`
	Regions []Region `json:"regions"`
}

// IsZero reports whether no filter dimension was supplied.
func (f FilterOptions) IsZero() bool {
	return len(f.Years) == 0 && len(f.Regions) == 0
}

// FilterCatalog lists the selectable filter values observed in a feature
// set, each in canonical display order.
type FilterCatalog struct {
	Years   []int    `json:"years"`
	Regions []Region `json:"regions"`
}

// ObservedCatalog scans a feature slice and collects the distinct years
// (ascending) and regions (canonical order) present in it.
func ObservedCatalog(features []FeatureRecord) FilterCatalog {
	yearSet := make(map[int]bool)
	regionSet := make(map[Region]bool)
	for _, f := range features {
		yearSet[f.Year] = true
		regionSet[f.Location] = true
	}

	years := make([]int, 0, len(yearSet))
	for y := range yearSet {
		years = append(years, y)
	}
	sort.Ints(years)

	regions := make([]Region, 0, len(regionSet))
	for _, r := range Regions {
		if regionSet[r] {
			regions = append(regions, r)
		}
	}

	return FilterCatalog{Years: years, Regions: regions}
}

// Resolve fills absent filter dimensions from the catalog. Supplied values
// pass through untouched, even when they match nothing.
func (f FilterOptions) Resolve(catalog FilterCatalog) FilterOptions {
	resolved := f
	if len(resolved.Years) == 0 {
		resolved.Years = catalog.Years
	}
	if len(resolved.Regions) == 0 {
		resolved.Regions = catalog.Regions
	}
	return resolved
}
