package http

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "evdash/internal/errors"
	"evdash/internal/exporter"
	"evdash/internal/infrastructure"
	"evdash/internal/middleware"
	"evdash/internal/services"
	api "evdash/pkg/contracts/api/v1"
	"evdash/pkg/contracts/domain"
)

// DashboardHandler serves the dashboard report and its parts
type DashboardHandler struct {
	service      DashboardServiceInterface
	validator    *middleware.Validator
	csv          *exporter.CSVWriter
	workbook     *exporter.WorkbookExporter
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewDashboardHandler creates a dashboard handler
func NewDashboardHandler(service DashboardServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DashboardHandler {
	return &DashboardHandler{
		service:      service,
		validator:    middleware.NewValidator(),
		csv:          exporter.NewCSVWriter(),
		workbook:     exporter.NewWorkbookExporter(),
		logger:       infrastructure.WithComponent(logger, "dashboard_handler"),
		errorHandler: errorHandler,
	}
}

// Routes returns the dashboard routes, mounted under /api/dashboard
func (h *DashboardHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.GetDashboard)
	r.Get("/columns", h.GetColumns)
	r.Get("/categories", h.GetCategories)
	r.Route("/categories/{category}", func(r chi.Router) {
		r.Get("/counties", h.GetRanking(domain.GroupByCounty))
		r.Get("/postal-codes", h.GetRanking(domain.GroupByPostalCode))
	})
	r.Get("/estimates", h.GetEstimates)
	r.Get("/export.xlsx", h.ExportWorkbook)
	r.Get("/export.csv", h.ExportCSV)
	r.Post("/refresh", h.Refresh)

	return r
}

// GetDashboard handles GET /api/dashboard
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Report(r.Context())
	if err != nil {
		h.fail(w, r, "failed to build dashboard", err)
		return
	}
	if writeWeakETag(w, r, report.Fingerprint) {
		return
	}
	render.JSON(w, r, report)
}

// GetColumns handles GET /api/dashboard/columns
func (h *DashboardHandler) GetColumns(w http.ResponseWriter, r *http.Request) {
	cols, err := h.service.Columns(r.Context())
	if err != nil {
		h.fail(w, r, "failed to read columns", err)
		return
	}
	render.JSON(w, r, api.ColumnsResponse{
		Source:  h.service.Source().Describe(),
		Columns: cols,
	})
}

// GetCategories handles GET /api/dashboard/categories
func (h *DashboardHandler) GetCategories(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Categories(r.Context())
	if err != nil {
		h.fail(w, r, "failed to list categories", err)
		return
	}
	if writeETag(w, r, report.Fingerprint) {
		return
	}
	render.JSON(w, r, api.CategoriesResponse{
		Categories:  report.Categories,
		Totals:      report.Totals,
		Fingerprint: report.Fingerprint,
	})
}

// GetRanking returns the handler for
// GET /api/dashboard/categories/{category}/counties and /postal-codes
func (h *DashboardHandler) GetRanking(groupBy domain.GroupBy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := middleware.QueryInt(r, "limit", api.MaxLimit)
		if err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		req := api.RankingRequest{Category: chi.URLParam(r, "category"), Limit: limit}
		if err := h.validator.ValidateStruct(req); err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}

		result, err := h.service.Ranking(r.Context(), req.Category, groupBy, req.Limit)
		if err != nil {
			h.fail(w, r, "failed to rank category", err)
			return
		}
		if writeETag(w, r, result.Fingerprint) {
			return
		}
		render.JSON(w, r, api.RankingResponse{
			Category:     result.Breakdown.Category,
			GroupBy:      groupBy,
			Column:       groupBy.Column(),
			Groups:       result.Breakdown.Groups,
			TotalRecords: result.Breakdown.TotalRecords,
			Fingerprint:  result.Fingerprint,
		})
	}
}

// GetEstimates handles GET /api/dashboard/estimates
func (h *DashboardHandler) GetEstimates(w http.ResponseWriter, r *http.Request) {
	limit, err := middleware.QueryInt(r, "limit", api.MaxLimit)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	req := api.EstimatesRequest{Limit: limit}
	if err := h.validator.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	result, err := h.service.Estimates(r.Context(), req.Limit)
	if err != nil {
		h.fail(w, r, "failed to estimate totals", err)
		return
	}
	if writeETag(w, r, result.Fingerprint) {
		return
	}
	render.JSON(w, r, api.EstimatesResponse{
		Estimation:  result.Parameters,
		Estimates:   result.Estimates,
		Fingerprint: result.Fingerprint,
	})
}

// ExportWorkbook handles GET /api/dashboard/export.xlsx
func (h *DashboardHandler) ExportWorkbook(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Report(r.Context())
	if err != nil {
		h.fail(w, r, "failed to build dashboard", err)
		return
	}
	if writeWeakETag(w, r, report.Fingerprint) {
		return
	}

	var buf bytes.Buffer
	if err := h.workbook.Write(&buf, report); err != nil {
		h.fail(w, r, "workbook export failed", apierrors.ExportError("xlsx", err))
		return
	}
	h.sendFile(w, buf.Bytes(), exportName(report, "dashboard", "xlsx"),
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
}

// ExportCSV handles GET /api/dashboard/export.csv?table=
func (h *DashboardHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	req := api.ExportRequest{Table: r.URL.Query().Get("table")}
	if err := h.validator.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	table, err := exporter.ParseTable(req.Table)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("table", err.Error()))
		return
	}

	report, err := h.service.Report(r.Context())
	if err != nil {
		h.fail(w, r, "failed to build dashboard", err)
		return
	}
	if writeETag(w, r, report.Fingerprint) {
		return
	}

	var buf bytes.Buffer
	if err := h.csv.WriteTable(&buf, report, table); err != nil {
		h.fail(w, r, "csv export failed", apierrors.ExportError("csv", err))
		return
	}
	h.sendFile(w, buf.Bytes(), exportName(report, string(table), "csv"), "text/csv; charset=utf-8")
}

// Refresh handles POST /api/dashboard/refresh
func (h *DashboardHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Refresh(r.Context())
	if err != nil {
		h.fail(w, r, "refresh failed", err)
		return
	}

	h.logger.InfoContext(r.Context(), "dashboard refreshed",
		slog.String("request_id", middleware.GetRequestID(r.Context())),
		slog.String("fingerprint", report.Fingerprint))

	render.JSON(w, r, api.RefreshResponse{
		Fingerprint: report.Fingerprint,
		GeneratedAt: report.GeneratedAt,
		Records:     report.Clean.Kept,
		Duration:    report.ProcessingTime,
	})
}

func (h *DashboardHandler) sendFile(w http.ResponseWriter, data []byte, filename, contentType string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// fail maps service errors to API errors and writes the problem response
func (h *DashboardHandler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.ErrorContext(r.Context(), msg,
		slog.String("error", err.Error()),
		slog.String("request_id", middleware.GetRequestID(r.Context())))

	switch {
	case errors.Is(err, services.ErrCategoryNotFound):
		err = apierrors.CategoryNotFoundError(chi.URLParam(r, "category"))
	case errors.Is(err, services.ErrInvalidGroupBy), errors.Is(err, services.ErrInvalidLimit):
		err = apierrors.InvalidRequestWithError(err)
	case apierrors.IsDataSourceError(err):
		err = apierrors.DataSourceUnavailable(err)
	}
	h.errorHandler.HandleError(w, r, err)
}

func exportName(report *domain.DashboardReport, table, ext string) string {
	id := report.Fingerprint
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("evdash-%s-%s.%s", table, id, ext)
}
