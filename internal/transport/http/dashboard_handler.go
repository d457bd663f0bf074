package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apierrors "healthdash/internal/errors"
	"healthdash/internal/files"
	"healthdash/pkg/contracts/domain"
)

// DashboardServiceInterface is the service surface the handler depends on.
type DashboardServiceInterface interface {
	Tables(ctx context.Context, filters domain.FilterOptions) (*domain.AnalysisBundle, error)
	KPIs(ctx context.Context, filters domain.FilterOptions) ([]domain.KPIRow, error)
	Filters(ctx context.Context) (domain.FilterCatalog, error)
	Refresh(ctx context.Context) (*domain.AnalysisBundle, error)
	Export(ctx context.Context, filters domain.FilterOptions) ([]string, error)
	Reports(ctx context.Context) ([]files.FileInfo, error)
}

// DashboardHandler serves the analysis tables, KPIs and filter catalog.
type DashboardHandler struct {
	service      DashboardServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(service DashboardServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DashboardHandler {
	return &DashboardHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "dashboard_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the dashboard routes.
func (h *DashboardHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/tables", h.GetTables)
	r.Get("/kpis", h.GetKPIs)
	r.Get("/filters", h.GetFilters)
	r.Post("/refresh", h.Refresh)
	r.Post("/export", h.Export)
	r.Get("/reports", h.GetReports)

	return r
}

// GetTables handles GET /api/dashboard/tables?years=2023,2024&regions=Urban
func (h *DashboardHandler) GetTables(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "fetching analysis tables",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.Any("years", filters.Years),
		slog.Any("regions", filters.Regions))

	bundle, err := h.service.Tables(r.Context(), filters)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, bundle)
}

// GetKPIs handles GET /api/dashboard/kpis
func (h *DashboardHandler) GetKPIs(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	kpis, err := h.service.KPIs(r.Context(), filters)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{"kpis": kpis})
}

// GetFilters handles GET /api/dashboard/filters
func (h *DashboardHandler) GetFilters(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.service.Filters(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, catalog)
}

// Refresh handles POST /api/dashboard/refresh. It reruns the pipeline from
// the source file and rewrites the snapshot.
func (h *DashboardHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.logger.InfoContext(r.Context(), "refresh requested",
		slog.String("request_id", middleware.GetReqID(r.Context())))

	bundle, err := h.service.Refresh(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status":       "refreshed",
		"generated_at": bundle.GeneratedAt,
		"table_sizes":  bundle.TableSizes(),
	})
}

// Export handles POST /api/dashboard/export. It writes the filtered tables
// as CSV report files.
func (h *DashboardHandler) Export(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	paths, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "exported",
		"files":  paths,
	})
}

// GetReports handles GET /api/dashboard/reports. It lists previously
// exported CSV report files.
func (h *DashboardHandler) GetReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.service.Reports(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{"reports": reports})
}

// parseFilters reads the years and regions query parameters. Both accept
// comma-separated values; absent parameters leave the dimension empty so the
// service resolves it to everything observed.
func parseFilters(r *http.Request) (domain.FilterOptions, error) {
	var filters domain.FilterOptions

	for _, raw := range splitParam(r.URL.Query().Get("years")) {
		year, err := strconv.Atoi(raw)
		if err != nil {
			return domain.FilterOptions{}, apierrors.ErrValidation("years", fmt.Sprintf("invalid year %q", raw))
		}
		filters.Years = append(filters.Years, year)
	}

	for _, raw := range splitParam(r.URL.Query().Get("regions")) {
		region, ok := domain.ParseRegion(raw)
		if !ok {
			return domain.FilterOptions{}, apierrors.ErrValidation("regions", fmt.Sprintf("unknown region %q", raw))
		}
		filters.Regions = append(filters.Regions, region)
	}

	return filters, nil
}

func splitParam(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
