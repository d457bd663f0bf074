package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthdash/internal/config"
)

// newTestApplication builds one application against a temp-dir dataset. The
// OTel prometheus exporter registers global collectors, so all subtests
// share a single instance.
func newTestApplication(t *testing.T) *Application {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Paths.DataDir = dir
	cfg.Paths.ReportsDir = filepath.Join(dir, "reports")
	cfg.Paths.LogsDir = filepath.Join(dir, "logs")
	cfg.Logging.FilePath = filepath.Join(dir, "logs", "app.log")
	cfg.Logging.Output = "stdout"
	cfg.Pipeline.MinRows = 10

	var b strings.Builder
	b.WriteString("Date_of_Onset,Location,SES,Chronic_Conditions,Vaccination_Status,Daily_New_Cases,Hospital_Capacity,Hospitalization_Requirement,Immunity_Level,Age\n")
	regions := []string{"Urban", "Suburban", "Rural"}
	levels := []string{"High", "Medium", "Low"}
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&b, "%d-%02d-10,%s,%s,%d,%d,%d,100,10,%s,%d\n",
			2023+i%2, 1+i%12, regions[i%3], levels[i%3], i%2, i%2, 5+i%10, levels[i%3], 20+i%60)
	}
	require.NoError(t, os.WriteFile(cfg.SourcePath(), []byte(b.String()), 0644))

	app, err := NewWithConfig(cfg)
	require.NoError(t, err)
	return app
}

func TestApplication(t *testing.T) {
	app := newTestApplication(t)

	t.Run("health endpoint", func(t *testing.T) {
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "healthy", body["status"])
		assert.Equal(t, Version, body["version"])
	})

	t.Run("liveness endpoint", func(t *testing.T) {
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health/live", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "alive")
	})

	t.Run("dashboard tables", func(t *testing.T) {
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard/tables", nil))

		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Contains(t, body, "timeseries")
		assert.Contains(t, body, "region_ses")
		assert.Contains(t, body, "vaccine_effect")
		assert.Contains(t, body, "kpi")
	})

	t.Run("dashboard tables with filters", func(t *testing.T) {
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard/tables?years=2023&regions=Urban", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("invalid filter is a 400", func(t *testing.T) {
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard/tables?regions=Atlantis", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("filters endpoint", func(t *testing.T) {
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard/filters", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "2023")
		assert.Contains(t, rec.Body.String(), "Urban")
	})

	t.Run("kpis endpoint", func(t *testing.T) {
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard/kpis", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "total_cases")
		assert.Contains(t, rec.Body.String(), "peak_season_cases")
	})

	t.Run("export and reports endpoints", func(t *testing.T) {
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/dashboard/export", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard/reports", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "timeseries.csv")
	})

	t.Run("metrics endpoint", func(t *testing.T) {
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("request id header is set", func(t *testing.T) {
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})
}
