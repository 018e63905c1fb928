package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/starfederation/datastar-go/datastar"

	"ctr-dashboard/internal/format"
	"ctr-dashboard/internal/models"
	"ctr-dashboard/internal/services"
	"ctr-dashboard/internal/ui/templates"
)

type SSEHandlers struct {
	analytics *services.Analytics
	formatter *format.Formatter
	logger    *slog.Logger
}

func NewSSEHandlers(analytics *services.Analytics, formatter *format.Formatter, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		analytics: analytics,
		formatter: formatter,
		logger:    logger,
	}
}

// filterFromSignals maps the sidebar state onto a FilterSet. Zero day bounds
// mean the page has not initialised the slider yet.
func filterFromSignals(s templates.Signals) (models.FilterSet, error) {
	f := models.FilterSet{
		DeviceTypes:    s.DeviceTypes,
		AppCategories:  s.AppCategories,
		SiteCategories: s.SiteCategories,
	}
	if s.DayMin == 0 && s.DayMax == 0 {
		return f, nil
	}

	days, err := parseDayRange(fmt.Sprint(s.DayMin), fmt.Sprint(s.DayMax))
	if err != nil {
		return models.FilterSet{}, err
	}
	f.Days = &days
	return f, nil
}

// HandleDashboard is invoked by the browser after every filter change. It
// recomputes the whole dashboard and patches the sidebar, the KPI cards and
// the chart signals.
func (h *SSEHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	var signals templates.Signals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		http.Error(w, "invalid signals", http.StatusBadRequest)
		return
	}

	f, err := filterFromSignals(signals)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	d := h.analytics.Dashboard(f)

	sse := datastar.NewSSE(w, r)

	filters, err := templates.Render(r.Context(), templates.FilterPanel(d.Options))
	if err != nil {
		h.logger.Error("render filter panel", "error", err)
		return
	}
	if err := sse.PatchElements(filters); err != nil {
		h.logger.Warn("patch filter panel", "error", err)
		return
	}

	cards, err := templates.Render(r.Context(), templates.KPICards(d.KPIs, h.formatter))
	if err != nil {
		h.logger.Error("render kpi cards", "error", err)
		return
	}
	if err := sse.PatchElements(cards); err != nil {
		h.logger.Warn("patch kpi cards", "error", err)
		return
	}

	chartSignals, err := json.Marshal(map[string]any{
		"charts": d.Charts,
		"trend":  d.Trend,
	})
	if err != nil {
		h.logger.Error("marshal chart signals", "error", err)
		return
	}
	if err := sse.PatchSignals(chartSignals); err != nil {
		h.logger.Warn("patch chart signals", "error", err)
		return
	}

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}
