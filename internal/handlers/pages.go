package handlers

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"time"

	"ctr-dashboard/internal/errors"
	"ctr-dashboard/internal/format"
	"ctr-dashboard/internal/models"
	"ctr-dashboard/internal/observability"
	"ctr-dashboard/internal/report"
	"ctr-dashboard/internal/services"
	"ctr-dashboard/internal/ui/templates"
)

const (
	renderTimeout = 10 * time.Second
	xlsxMediaType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type PageHandlers struct {
	analytics *services.Analytics
	formatter *format.Formatter
	logger    *slog.Logger
}

func NewPageHandlers(analytics *services.Analytics, formatter *format.Formatter, logger *slog.Logger) *PageHandlers {
	return &PageHandlers{
		analytics: analytics,
		formatter: formatter,
		logger:    logger,
	}
}

func (h *PageHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	d := h.analytics.Dashboard(models.FilterSet{})

	var buf bytes.Buffer
	if err := templates.Dashboard(d, h.formatter).Render(ctx, &buf); err != nil {
		h.logger.Error("render dashboard", "error", err)
		http.Error(w, "render error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

// HandleExport streams the dashboard for the requested filter as an xlsx
// workbook.
func (h *PageHandlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	f, err := ParseFilterQuery(r.URL.Query())
	if err != nil {
		errors.WriteError(w, h.logger, errors.BadRequestWrap(err, err.Error()), requestID)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteWorkbook(&buf, h.analytics.Dashboard(f), h.formatter); err != nil {
		errors.WriteError(w, h.logger, errors.InternalWrap(err, "Report could not be generated"), requestID)
		return
	}

	w.Header().Set("Content-Type", xlsxMediaType)
	w.Header().Set("Content-Disposition", `attachment; filename="ctr-report.xlsx"`)
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}
