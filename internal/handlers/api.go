package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"ctr-dashboard/internal/errors"
	"ctr-dashboard/internal/models"
	"ctr-dashboard/internal/observability"
	"ctr-dashboard/internal/services"
)

const maxTopN = 100

var noStore = map[string]string{
	"Cache-Control": "no-store",
}

type APIHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
}

func NewAPIHandlers(analytics *services.Analytics, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		analytics: analytics,
		logger:    logger,
	}
}

func (h *APIHandlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
}

// filter parses the request's filter and writes a 400 when it is invalid.
func (h *APIHandlers) filter(w http.ResponseWriter, r *http.Request) (models.FilterSet, bool) {
	f, err := ParseFilterQuery(r.URL.Query())
	if err != nil {
		h.writeError(w, r, errors.BadRequestWrap(err, err.Error()))
		return models.FilterSet{}, false
	}
	return f, true
}

func (h *APIHandlers) HandleKPIs(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}

	errors.WriteSuccessWithHeaders(w, h.analytics.KPIs(f), noStore)
}

func (h *APIHandlers) HandleTopCTR(w http.ResponseWriter, r *http.Request) {
	dim, err := models.ParseDimension(r.PathValue("dimension"))
	if err != nil {
		h.writeError(w, r, errors.NotFound(err.Error()))
		return
	}

	n := h.analytics.TopNLimit()
	if raw := r.URL.Query().Get("n"); raw != "" {
		n, err = strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxTopN {
			h.writeError(w, r, errors.Validation("n must be an integer between 1 and 100"))
			return
		}
	}

	f, ok := h.filter(w, r)
	if !ok {
		return
	}

	errors.WriteSuccessWithHeaders(w, h.analytics.TopN(f, dim, n), noStore)
}

func (h *APIHandlers) HandleDailyCTR(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}

	errors.WriteSuccessWithHeaders(w, h.analytics.Trend(f), noStore)
}

func (h *APIHandlers) HandleFilterOptions(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}

	errors.WriteSuccessWithHeaders(w, h.analytics.Options(f), noStore)
}

func (h *APIHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}

	_, span := observability.StartSpan(r.Context(), "render dashboard")
	d := h.analytics.Dashboard(f)
	span.SetTag("impressions", strconv.Itoa(d.KPIs.Impressions))
	span.Finish(h.logger)

	errors.WriteSuccessWithHeaders(w, d, noStore)
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {

	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {

	stats := h.analytics.Stats()

	errors.WriteSuccess(w, stats)
}

// HandleReload re-reads the dataset file. The previous data stays live when
// the file is malformed.
func (h *APIHandlers) HandleReload(w http.ResponseWriter, r *http.Request) {
	source := h.analytics.Source()
	if source == "" {
		h.writeError(w, r, errors.ServiceUnavailable("No dataset file to reload"))
		return
	}

	if err := h.analytics.LoadFromCSV(r.Context(), source); err != nil {
		h.writeError(w, r, errors.FromDataset(err))
		return
	}

	errors.WriteSuccess(w, h.analytics.Stats())
}
