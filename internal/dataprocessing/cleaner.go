package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	apperrors "healthdash/internal/errors"
	"healthdash/pkg/contracts/domain"
)

// Business defaults applied when a numeric column is entirely missing, so
// imputation never produces an undefined median.
const (
	DefaultDailyNewCases    = 0.0
	DefaultHospitalCapacity = 100.0
	DefaultRequirement      = 10.0
	DefaultAge              = 35.0
)

// Cleaner normalizes, repairs and filters raw records into fully populated
// clean records. It is a pure transform: the input dataset is never mutated.
type Cleaner struct {
	logger *slog.Logger
}

// NewCleaner creates a new record cleaner.
func NewCleaner(logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleaner{logger: logger.With(slog.String("component", "cleaner"))}
}

// workingRow carries per-field parse state between cleaning passes. A nil
// numeric pointer means the cell was missing or not coercible.
type workingRow struct {
	date        time.Time
	location    string
	ses         string
	immunity    string
	chronic     *float64
	vaccination *float64
	cases       *float64
	capacity    *float64
	requirement *float64
	age         *float64
	utilization *float64
}

// Clean applies the full per-field-class policy: date repair, categorical
// mode imputation, binary coercion and numeric median imputation with
// outlier removal. It fails with a VALIDATION error when no rows survive.
func (c *Cleaner) Clean(ctx context.Context, dataset *domain.RawDataset) ([]domain.CleanRecord, error) {
	if dataset == nil || len(dataset.Rows) == 0 {
		return nil, apperrors.NewValidationError("no raw data to clean")
	}

	rows := c.parseRows(ctx, dataset.Rows)

	c.imputeCategoricals(ctx, rows)
	rows = c.cleanBinaries(ctx, rows)
	rows = c.cleanNumerics(ctx, rows)

	if len(rows) == 0 {
		return nil, apperrors.NewValidationError(
			"no valid data left after cleaning; check raw data quality")
	}

	records, err := c.toCleanRecords(rows)
	if err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "data cleaning completed",
		slog.Int("input_rows", len(dataset.Rows)),
		slog.Int("output_rows", len(records)))

	return records, nil
}

// parseRows coerces every cell and drops rows with unparseable dates.
func (c *Cleaner) parseRows(ctx context.Context, raw []domain.RawRecord) []*workingRow {
	rows := make([]*workingRow, 0, len(raw))
	invalidDates := 0

	for _, r := range raw {
		date, err := ParseFlexibleDate(r.DateOfOnset)
		if err != nil {
			invalidDates++
			continue
		}

		rows = append(rows, &workingRow{
			date:        date,
			location:    domain.TitleCase(r.Location),
			ses:         domain.TitleCase(r.SES),
			immunity:    domain.TitleCase(r.ImmunityLevel),
			chronic:     parseNumericCell(r.ChronicConditions),
			vaccination: parseNumericCell(r.VaccinationStatus),
			cases:       parseNumericCell(r.DailyNewCases),
			capacity:    parseNumericCell(r.HospitalCapacity),
			requirement: parseNumericCell(r.HospitalizationRequirement),
			age:         parseNumericCell(r.Age),
			utilization: parseNumericCell(r.ResourceUtilization),
		})
	}

	if invalidDates > 0 {
		c.logger.InfoContext(ctx, "filtered rows with invalid dates",
			slog.Int("dropped", invalidDates),
			slog.Int("remaining", len(rows)))
	}

	return rows
}

// imputeCategoricals fills missing or unrecognized categorical cells with
// the column mode, or "Unknown" when the whole column is unusable.
func (c *Cleaner) imputeCategoricals(ctx context.Context, rows []*workingRow) {
	fields := []struct {
		name  string
		get   func(*workingRow) string
		set   func(*workingRow, string)
		known func(string) bool
	}{
		{
			name: domain.ColLocation,
			get:  func(r *workingRow) string { return r.location },
			set:  func(r *workingRow, v string) { r.location = v },
			known: func(v string) bool {
				_, ok := domain.ParseRegion(v)
				return ok
			},
		},
		{
			name: domain.ColSES,
			get:  func(r *workingRow) string { return r.ses },
			set:  func(r *workingRow, v string) { r.ses = v },
			known: func(v string) bool {
				_, ok := domain.ParseSES(v)
				return ok
			},
		},
		{
			name: domain.ColImmunityLevel,
			get:  func(r *workingRow) string { return r.immunity },
			set:  func(r *workingRow, v string) { r.immunity = v },
			known: func(v string) bool {
				_, ok := domain.ParseImmunityLevel(v)
				return ok
			},
		},
	}

	for _, field := range fields {
		counts := make(map[string]int)
		for _, row := range rows {
			if v := field.get(row); v != "" && field.known(v) {
				counts[v]++
			}
		}

		mode := modeValue(counts)
		if mode == "" {
			mode = "Unknown"
		}

		filled := 0
		for _, row := range rows {
			if v := field.get(row); v == "" || !field.known(v) {
				field.set(row, mode)
				filled++
			}
		}

		if filled > 0 {
			c.logger.InfoContext(ctx, "filled missing categorical values",
				slog.String("field", field.name),
				slog.Int("filled", filled),
				slog.String("mode", mode))
		}
	}
}

// cleanBinaries fills missing binary cells with 0 and drops rows whose
// values fall outside {0,1}.
func (c *Cleaner) cleanBinaries(ctx context.Context, rows []*workingRow) []*workingRow {
	fields := []struct {
		name string
		get  func(*workingRow) *float64
		set  func(*workingRow, *float64)
	}{
		{
			name: domain.ColChronicConditions,
			get:  func(r *workingRow) *float64 { return r.chronic },
			set:  func(r *workingRow, v *float64) { r.chronic = v },
		},
		{
			name: domain.ColVaccinationStatus,
			get:  func(r *workingRow) *float64 { return r.vaccination },
			set:  func(r *workingRow, v *float64) { r.vaccination = v },
		},
	}

	for _, field := range fields {
		zero := 0.0
		for _, row := range rows {
			if field.get(row) == nil {
				v := zero
				field.set(row, &v)
			}
		}

		kept := rows[:0]
		dropped := 0
		for _, row := range rows {
			v := *field.get(row)
			if v == 0 || v == 1 {
				kept = append(kept, row)
			} else {
				dropped++
			}
		}
		rows = kept

		if dropped > 0 {
			c.logger.InfoContext(ctx, "filtered invalid binary values",
				slog.String("field", field.name),
				slog.Int("dropped", dropped))
		}
	}

	return rows
}

// cleanNumerics fills missing numeric cells with the column median (or the
// business default when the whole column is missing) and removes outlier
// rows. Fields are processed in order; a drop in an earlier field affects
// the medians of later ones.
func (c *Cleaner) cleanNumerics(ctx context.Context, rows []*workingRow) []*workingRow {
	fields := []struct {
		name         string
		defaultValue float64
		get          func(*workingRow) *float64
		set          func(*workingRow, float64)
		valid        func(float64) bool
	}{
		{
			name:         domain.ColDailyNewCases,
			defaultValue: DefaultDailyNewCases,
			get:          func(r *workingRow) *float64 { return r.cases },
			set:          func(r *workingRow, v float64) { r.cases = &v },
			valid:        func(v float64) bool { return v >= 0 },
		},
		{
			name:         domain.ColHospitalCapacity,
			defaultValue: DefaultHospitalCapacity,
			get:          func(r *workingRow) *float64 { return r.capacity },
			set:          func(r *workingRow, v float64) { r.capacity = &v },
			valid:        func(v float64) bool { return v > 0 },
		},
		{
			name:         domain.ColHospitalizationRequirement,
			defaultValue: DefaultRequirement,
			get:          func(r *workingRow) *float64 { return r.requirement },
			set:          func(r *workingRow, v float64) { r.requirement = &v },
			valid:        func(v float64) bool { return v > 0 },
		},
		{
			name:         domain.ColAge,
			defaultValue: DefaultAge,
			get:          func(r *workingRow) *float64 { return r.age },
			set:          func(r *workingRow, v float64) { r.age = &v },
			valid:        func(v float64) bool { return v >= 0 && v <= 120 },
		},
	}

	for _, field := range fields {
		var present []float64
		for _, row := range rows {
			if v := field.get(row); v != nil {
				present = append(present, *v)
			}
		}

		fill, usedDefault := median(present)
		if usedDefault {
			fill = field.defaultValue
			c.logger.WarnContext(ctx, "all values missing, using business default",
				slog.String("field", field.name),
				slog.Float64("default", fill))
		}

		filled := 0
		for _, row := range rows {
			if field.get(row) == nil {
				field.set(row, fill)
				filled++
			}
		}
		if filled > 0 {
			c.logger.InfoContext(ctx, "filled missing numeric values",
				slog.String("field", field.name),
				slog.Int("filled", filled),
				slog.Float64("value", fill))
		}

		kept := rows[:0]
		dropped := 0
		for _, row := range rows {
			if field.valid(*field.get(row)) {
				kept = append(kept, row)
			} else {
				dropped++
			}
		}
		rows = kept

		if dropped > 0 {
			c.logger.InfoContext(ctx, "filtered numeric outliers",
				slog.String("field", field.name),
				slog.Int("dropped", dropped))
		}
	}

	return rows
}

// toCleanRecords converts fully repaired working rows into typed records.
func (c *Cleaner) toCleanRecords(rows []*workingRow) ([]domain.CleanRecord, error) {
	records := make([]domain.CleanRecord, 0, len(rows))
	for _, row := range rows {
		region, ok := domain.ParseRegion(row.location)
		if !ok {
			return nil, apperrors.NewRuntimeError(fmt.Sprintf("unexpected region after cleaning: %q", row.location), nil)
		}
		ses, ok := domain.ParseSES(row.ses)
		if !ok {
			return nil, apperrors.NewRuntimeError(fmt.Sprintf("unexpected SES after cleaning: %q", row.ses), nil)
		}
		immunity, ok := domain.ParseImmunityLevel(row.immunity)
		if !ok {
			return nil, apperrors.NewRuntimeError(fmt.Sprintf("unexpected immunity level after cleaning: %q", row.immunity), nil)
		}

		record := domain.CleanRecord{
			DateOfOnset:                row.date,
			Location:                   region,
			SES:                        ses,
			ChronicConditions:          int(*row.chronic),
			VaccinationStatus:          int(*row.vaccination),
			DailyNewCases:              *row.cases,
			HospitalCapacity:           *row.capacity,
			HospitalizationRequirement: *row.requirement,
			ImmunityLevel:              immunity,
			Age:                        *row.age,
			HasUtilization:             row.utilization != nil,
		}
		if row.utilization != nil {
			record.ResourceUtilization = *row.utilization
		}
		records = append(records, record)
	}
	return records, nil
}

// dateLayouts are tried in order; first match wins. Layouts with
// unambiguous year positions come first.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
	"02-01-2006",
	"2 Jan 2006",
	"Jan 2, 2006",
}

// ParseFlexibleDate parses a date cell with a permissive multi-format
// matcher. Empty or unparseable cells return an error.
func ParseFlexibleDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unparseable date: %q", s)
}

// parseNumericCell coerces a raw cell to a float. Missing or non-coercible
// cells yield nil. Thousands separators are tolerated.
func parseNumericCell(s string) *float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// modeValue returns the most frequent key; ties break toward the
// lexicographically smallest value so imputation is deterministic.
func modeValue(counts map[string]int) string {
	best := ""
	bestCount := 0
	for v, n := range counts {
		if n > bestCount || (n == bestCount && (best == "" || v < best)) {
			best = v
			bestCount = n
		}
	}
	return best
}

// median returns the median of values. The second result is true when the
// slice is empty and the caller must substitute a default.
func median(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, true
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid], false
	}
	return (sorted[mid-1] + sorted[mid]) / 2, false
}
