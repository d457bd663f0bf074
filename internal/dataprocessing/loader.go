package dataprocessing

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	apperrors "healthdash/internal/errors"
	"healthdash/pkg/contracts/domain"
)

// LoaderConfig holds configuration options for the Loader.
type LoaderConfig struct {
	DataDir             string // directory holding the source file
	FileName            string // source file name (.csv or .xlsx)
	MinRows             int    // minimum number of data rows required
	EncodingSampleBytes int    // leading bytes sampled for encoding detection
}

// DefaultLoaderConfig returns a default configuration for typical use cases.
func DefaultLoaderConfig() LoaderConfig {
	return LoaderConfig{
		DataDir:             "data",
		FileName:            "public_health_surveillance_dataset.csv",
		MinRows:             500,
		EncodingSampleBytes: 10000,
	}
}

// Loader reads the raw surveillance dataset from disk into typed raw records.
type Loader struct {
	logger *slog.Logger
	config LoaderConfig
}

// NewLoader creates a new dataset loader with the given configuration.
func NewLoader(logger *slog.Logger, config LoaderConfig) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if config.MinRows <= 0 {
		config.MinRows = 500
	}
	if config.EncodingSampleBytes <= 0 {
		config.EncodingSampleBytes = 10000
	}

	return &Loader{
		logger: logger.With(slog.String("component", "loader")),
		config: config,
	}
}

// Load locates the source file, detects its encoding, parses it and
// validates the header and row count. It fails with a NOT_FOUND error when
// the file is absent and a VALIDATION error when required columns are
// missing or the dataset is below the minimum row count.
func (l *Loader) Load(ctx context.Context) (*domain.RawDataset, error) {
	path := filepath.Join(l.config.DataDir, l.config.FileName)
	if filepath.IsAbs(l.config.FileName) {
		path = l.config.FileName
	}

	if _, err := os.Stat(path); err != nil {
		return nil, apperrors.NewNotFoundError(
			fmt.Sprintf("raw dataset not found at %s; place the source file in the %q directory", path, l.config.DataDir), err)
	}

	var rows [][]string
	var encodingName string
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = l.readExcel(path)
		encodingName = "xlsx"
	default:
		rows, encodingName, err = l.readDelimited(path)
	}
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, apperrors.NewValidationError(fmt.Sprintf("source file %s is empty", path))
	}

	dataset, err := l.buildDataset(rows)
	if err != nil {
		return nil, err
	}
	dataset.SourcePath = path
	dataset.Encoding = encodingName

	if len(dataset.Rows) < l.config.MinRows {
		return nil, apperrors.NewValidationError(fmt.Sprintf(
			"raw dataset is too small (only %d rows, minimum required: %d)", len(dataset.Rows), l.config.MinRows))
	}

	l.logSummary(ctx, dataset)

	return dataset, nil
}

// readDelimited reads a CSV file, detecting the text encoding from a
// leading byte sample before decoding.
func (l *Loader) readDelimited(path string) ([][]string, string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, "", apperrors.NewStorageError(fmt.Sprintf("failed to open source file %s", path), err)
	}
	defer file.Close()

	sample := make([]byte, l.config.EncodingSampleBytes)
	n, err := file.Read(sample)
	if err != nil && err != io.EOF {
		return nil, "", apperrors.NewRuntimeError("failed to sample source file for encoding detection", err)
	}
	encodingName := detectEncoding(sample[:n])

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, "", apperrors.NewRuntimeError("failed to rewind source file", err)
	}

	reader, err := decodingReader(file, encodingName)
	if err != nil {
		return nil, "", apperrors.NewRuntimeError(fmt.Sprintf("failed to decode source file as %s", encodingName), err)
	}

	csvReader := csv.NewReader(reader)
	csvReader.FieldsPerRecord = -1
	csvReader.TrimLeadingSpace = true

	rows, err := csvReader.ReadAll()
	if err != nil {
		return nil, "", apperrors.NewParsingError(fmt.Sprintf("failed to parse CSV file %s", path), err)
	}

	l.logger.Info("detected file encoding",
		slog.String("path", path),
		slog.String("encoding", encodingName))

	return rows, encodingName, nil
}

// readExcel reads the first sheet of an XLSX workbook.
func (l *Loader) readExcel(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to open workbook %s", path), err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperrors.NewValidationError(fmt.Sprintf("workbook %s has no sheets", path))
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to read sheet %q", sheets[0]), err)
	}

	return rows, nil
}

// buildDataset maps header columns to record fields and converts data rows.
func (l *Loader) buildDataset(rows [][]string) (*domain.RawDataset, error) {
	header := rows[0]
	columns := make([]string, len(header))
	index := make(map[string]int, len(header))
	for i, name := range header {
		normalized := NormalizeColumnName(name)
		columns[i] = normalized
		index[normalized] = i
	}

	var missing []string
	for _, col := range domain.RequiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.NewValidationError(fmt.Sprintf(
			"missing required fields in raw dataset: %s (required: %s)",
			strings.Join(missing, ", "), strings.Join(domain.RequiredColumns, ", ")))
	}

	utilIdx, hasUtil := index[domain.ColResourceUtilization]

	cell := func(row []string, idx int) string {
		if idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}

	records := make([]domain.RawRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		// Skip rows that are entirely empty.
		empty := true
		for _, c := range row {
			if strings.TrimSpace(c) != "" {
				empty = false
				break
			}
		}
		if empty {
			continue
		}

		record := domain.RawRecord{
			DateOfOnset:                cell(row, index[domain.ColDateOfOnset]),
			Location:                   cell(row, index[domain.ColLocation]),
			SES:                        cell(row, index[domain.ColSES]),
			ChronicConditions:          cell(row, index[domain.ColChronicConditions]),
			VaccinationStatus:          cell(row, index[domain.ColVaccinationStatus]),
			DailyNewCases:              cell(row, index[domain.ColDailyNewCases]),
			HospitalCapacity:           cell(row, index[domain.ColHospitalCapacity]),
			HospitalizationRequirement: cell(row, index[domain.ColHospitalizationRequirement]),
			ImmunityLevel:              cell(row, index[domain.ColImmunityLevel]),
			Age:                        cell(row, index[domain.ColAge]),
		}
		if hasUtil {
			record.ResourceUtilization = cell(row, utilIdx)
		}
		records = append(records, record)
	}

	return &domain.RawDataset{
		Rows:           records,
		Columns:        columns,
		HasUtilization: hasUtil,
	}, nil
}

// logSummary emits the diagnostic summary for observability. It is not part
// of the data contract.
func (l *Loader) logSummary(ctx context.Context, dataset *domain.RawDataset) {
	var minDate, maxDate time.Time
	for _, row := range dataset.Rows {
		date, err := ParseFlexibleDate(row.DateOfOnset)
		if err != nil {
			continue
		}
		if minDate.IsZero() || date.Before(minDate) {
			minDate = date
		}
		if maxDate.IsZero() || date.After(maxDate) {
			maxDate = date
		}
	}

	l.logger.InfoContext(ctx, "raw dataset loaded",
		slog.String("path", dataset.SourcePath),
		slog.String("encoding", dataset.Encoding),
		slog.Int("rows", len(dataset.Rows)),
		slog.Int("columns", len(dataset.Columns)),
		slog.Bool("has_utilization", dataset.HasUtilization),
		slog.String("date_range_start", formatDate(minDate)),
		slog.String("date_range_end", formatDate(maxDate)))
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Format("2006-01-02")
}

// NormalizeColumnName lowercases a header cell and replaces whitespace runs
// with underscores, so "Date_of_Onset" and "date of onset" both map to
// "date_of_onset".
func NormalizeColumnName(name string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(name)))
	return strings.Join(fields, "_")
}

// detectEncoding inspects a leading byte sample and names the text encoding.
// BOMs win; otherwise valid UTF-8 is assumed to be UTF-8 and anything else
// falls back to Windows-1252.
func detectEncoding(sample []byte) string {
	switch {
	case bytes.HasPrefix(sample, []byte{0xEF, 0xBB, 0xBF}):
		return "utf-8-bom"
	case bytes.HasPrefix(sample, []byte{0xFF, 0xFE}):
		return "utf-16le"
	case bytes.HasPrefix(sample, []byte{0xFE, 0xFF}):
		return "utf-16be"
	case utf8.Valid(sample):
		return "utf-8"
	default:
		return "windows-1252"
	}
}

// decodingReader wraps a reader with the decoder for the detected encoding.
func decodingReader(r io.Reader, encodingName string) (io.Reader, error) {
	switch encodingName {
	case "utf-8":
		return r, nil
	case "utf-8-bom":
		return transform.NewReader(r, unicode.UTF8BOM.NewDecoder()), nil
	case "utf-16le":
		return transform.NewReader(r, unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()), nil
	case "utf-16be":
		return transform.NewReader(r, unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()), nil
	case "windows-1252":
		return transform.NewReader(r, charmap.Windows1252.NewDecoder()), nil
	default:
		return nil, fmt.Errorf("unsupported encoding: %s", encodingName)
	}
}
