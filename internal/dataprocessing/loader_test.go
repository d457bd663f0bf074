package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "healthdash/internal/errors"
	"healthdash/pkg/contracts/domain"
)

const testHeader = "Date_of_Onset,Location,SES,Chronic_Conditions,Vaccination_Status,Daily_New_Cases,Hospital_Capacity,Hospitalization_Requirement,Immunity_Level,Age"

// writeTestCSV generates a dataset with rows spread deterministically over
// years, regions and months and writes it to dir.
func writeTestCSV(t *testing.T, dir string, rows int) string {
	t.Helper()

	regions := []string{"Urban", "Suburban", "Rural"}
	sesLevels := []string{"High", "Medium", "Low"}
	immunity := []string{"High", "Medium", "Low"}

	var b strings.Builder
	b.WriteString(testHeader + "\n")
	for i := 0; i < rows; i++ {
		year := 2023 + i%2
		month := 1 + i%12
		fmt.Fprintf(&b, "%d-%02d-15,%s,%s,%d,%d,%d,%d,%d,%s,%d\n",
			year, month,
			regions[i%3],
			sesLevels[i%3],
			i%2,
			i%2,
			10+i%20,
			100+i%50,
			5+i%10,
			immunity[i%3],
			1+i%90,
		)
	}

	path := filepath.Join(dir, "public_health_surveillance_dataset.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
	return path
}

func testLoaderConfig(dir string) LoaderConfig {
	return LoaderConfig{
		DataDir:             dir,
		FileName:            "public_health_surveillance_dataset.csv",
		MinRows:             10,
		EncodingSampleBytes: 10000,
	}
}

func TestLoader_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("loads valid dataset", func(t *testing.T) {
		dir := t.TempDir()
		writeTestCSV(t, dir, 600)

		loader := NewLoader(slog.Default(), testLoaderConfig(dir))
		dataset, err := loader.Load(ctx)
		require.NoError(t, err)

		assert.Len(t, dataset.Rows, 600)
		assert.Equal(t, "utf-8", dataset.Encoding)
		assert.False(t, dataset.HasUtilization)
		assert.Equal(t, "2023-01-15", dataset.Rows[0].DateOfOnset)
		assert.Equal(t, "Urban", dataset.Rows[0].Location)
	})

	t.Run("missing file is a not found error", func(t *testing.T) {
		loader := NewLoader(slog.Default(), testLoaderConfig(t.TempDir()))
		_, err := loader.Load(ctx)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
	})

	t.Run("missing required column is a validation error", func(t *testing.T) {
		dir := t.TempDir()
		content := "Date_of_Onset,Location,SES\n2023-01-01,Urban,High\n"
		path := filepath.Join(dir, "public_health_surveillance_dataset.csv")
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		loader := NewLoader(slog.Default(), testLoaderConfig(dir))
		_, err := loader.Load(ctx)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
		assert.Contains(t, err.Error(), domain.ColAge)
	})

	t.Run("dataset below minimum row count is rejected", func(t *testing.T) {
		dir := t.TempDir()
		writeTestCSV(t, dir, 5)

		loader := NewLoader(slog.Default(), testLoaderConfig(dir))
		_, err := loader.Load(ctx)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
		assert.Contains(t, err.Error(), "too small")
	})

	t.Run("optional utilization column is picked up", func(t *testing.T) {
		dir := t.TempDir()
		var b strings.Builder
		b.WriteString(testHeader + ",Resource_Utilization\n")
		for i := 0; i < 20; i++ {
			fmt.Fprintf(&b, "2023-01-%02d,Urban,High,0,1,5,100,10,High,40,%d\n", 1+i%28, 50+i)
		}
		path := filepath.Join(dir, "public_health_surveillance_dataset.csv")
		require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))

		loader := NewLoader(slog.Default(), testLoaderConfig(dir))
		dataset, err := loader.Load(ctx)
		require.NoError(t, err)

		assert.True(t, dataset.HasUtilization)
		assert.Equal(t, "50", dataset.Rows[0].ResourceUtilization)
	})

	t.Run("skips fully empty rows", func(t *testing.T) {
		dir := t.TempDir()
		var b strings.Builder
		b.WriteString(testHeader + "\n")
		for i := 0; i < 15; i++ {
			fmt.Fprintf(&b, "2023-02-%02d,Rural,Low,0,0,3,80,8,Low,25\n", 1+i%28)
			b.WriteString(",,,,,,,,,\n")
		}
		path := filepath.Join(dir, "public_health_surveillance_dataset.csv")
		require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))

		loader := NewLoader(slog.Default(), testLoaderConfig(dir))
		dataset, err := loader.Load(ctx)
		require.NoError(t, err)
		assert.Len(t, dataset.Rows, 15)
	})

	t.Run("decodes UTF-8 BOM files", func(t *testing.T) {
		dir := t.TempDir()
		var b strings.Builder
		b.Write([]byte{0xEF, 0xBB, 0xBF})
		b.WriteString(testHeader + "\n")
		for i := 0; i < 12; i++ {
			b.WriteString("2023-03-01,Urban,Medium,1,1,7,120,12,Medium,33\n")
		}
		path := filepath.Join(dir, "public_health_surveillance_dataset.csv")
		require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))

		loader := NewLoader(slog.Default(), testLoaderConfig(dir))
		dataset, err := loader.Load(ctx)
		require.NoError(t, err)

		assert.Equal(t, "utf-8-bom", dataset.Encoding)
		assert.Equal(t, domain.ColDateOfOnset, dataset.Columns[0])
	})

	t.Run("decodes windows-1252 files", func(t *testing.T) {
		dir := t.TempDir()
		var b strings.Builder
		b.WriteString(testHeader + "\n")
		for i := 0; i < 12; i++ {
			// 0xE9 is "e" with acute accent in Windows-1252 and invalid UTF-8.
			b.WriteString("2023-04-01,Urban,High,0,1,4,90,9,High,5\xe9\n")
		}
		path := filepath.Join(dir, "public_health_surveillance_dataset.csv")
		require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))

		loader := NewLoader(slog.Default(), testLoaderConfig(dir))
		dataset, err := loader.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "windows-1252", dataset.Encoding)
	})
}

func TestNormalizeColumnName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Date_of_Onset", "date_of_onset"},
		{"date of onset", "date_of_onset"},
		{"  Hospital Capacity  ", "hospital_capacity"},
		{"AGE", "age"},
		{"Resource_Utilization", "resource_utilization"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeColumnName(tt.input))
		})
	}
}

func TestDetectEncoding(t *testing.T) {
	tests := []struct {
		name     string
		sample   []byte
		expected string
	}{
		{"utf-8 bom", []byte{0xEF, 0xBB, 0xBF, 'a'}, "utf-8-bom"},
		{"utf-16le bom", []byte{0xFF, 0xFE, 'a', 0x00}, "utf-16le"},
		{"utf-16be bom", []byte{0xFE, 0xFF, 0x00, 'a'}, "utf-16be"},
		{"plain ascii", []byte("date,location"), "utf-8"},
		{"valid utf-8", []byte("r\xc3\xa9gion"), "utf-8"},
		{"invalid utf-8 falls back", []byte("r\xe9gion"), "windows-1252"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, detectEncoding(tt.sample))
		})
	}
}
