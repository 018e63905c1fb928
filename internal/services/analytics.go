package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ctr-dashboard/internal/dataset"
	"ctr-dashboard/internal/models"
)

// ChartSpec describes one top-N bar chart on the dashboard.
type ChartSpec struct {
	Dimension  models.Dimension
	ColorScale string
}

var DefaultCharts = []ChartSpec{
	{Dimension: models.DimAppCategory, ColorScale: "Blues"},
	{Dimension: models.DimSiteCategory, ColorScale: "Greens"},
	{Dimension: models.DimDeviceModel, ColorScale: "Oranges"},
	{Dimension: models.DimDeviceType, ColorScale: "Purples"},
}

type snapshot struct {
	rows     []models.Impression
	source   string
	loadedAt time.Time
	bounds   models.DayRange
	days     int
}

// Analytics owns the loaded impressions. Readers get an immutable snapshot;
// a reload replaces the snapshot as a whole.
type Analytics struct {
	mu     sync.RWMutex
	data   *snapshot
	topN   int
	charts []ChartSpec
	logger *slog.Logger
}

type Option func(*Analytics)

func WithTopN(n int) Option {
	return func(a *Analytics) {
		if n > 0 {
			a.topN = n
		}
	}
}

func WithCharts(charts []ChartSpec) Option {
	return func(a *Analytics) {
		if len(charts) > 0 {
			a.charts = charts
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Analytics) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func NewAnalytics(opts ...Option) *Analytics {
	a := &Analytics{
		data:   &snapshot{},
		topN:   DefaultTopN,
		charts: DefaultCharts,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetData replaces the dataset with rows that did not come from a file.
func (a *Analytics) SetData(rows []models.Impression) {
	a.swap(rows, "")
}

func (a *Analytics) LoadFromCSV(ctx context.Context, filename string) error {
	start := time.Now()
	a.logger.Info("processing CSV file", "filename", filename)

	rows, err := dataset.Load(ctx, filename)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}

	a.swap(rows, filename)

	duration := time.Since(start)
	a.logger.Info("csv processing complete",
		"records", len(rows),
		"duration", duration,
		"rate", fmt.Sprintf("%.0f records/sec", float64(len(rows))/duration.Seconds()))

	return nil
}

// Reload re-reads the current source. A failed reload keeps the previous
// snapshot live.
func (a *Analytics) Reload(ctx context.Context) {
	source := a.Source()
	if source == "" {
		return
	}
	if err := a.LoadFromCSV(ctx, source); err != nil {
		a.logger.Error("dataset reload failed, keeping previous data", "source", source, "error", err)
	}
}

func (a *Analytics) swap(rows []models.Impression, source string) {
	bounds, days := dayBounds(rows)
	s := &snapshot{
		rows:     rows,
		source:   source,
		loadedAt: time.Now(),
		bounds:   bounds,
		days:     days,
	}

	a.mu.Lock()
	a.data = s
	a.mu.Unlock()
}

func (a *Analytics) current() *snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.data
}

// effectiveFilter drops the day range when the dataset holds a single day,
// in which case every record is shown.
func effectiveFilter(s *snapshot, f models.FilterSet) models.FilterSet {
	if s.days < 2 {
		f.Days = nil
	}
	return f
}

func (a *Analytics) Filtered(f models.FilterSet) []models.Impression {
	s := a.current()
	return ApplyFilters(s.rows, effectiveFilter(s, f))
}

func (a *Analytics) KPIs(f models.FilterSet) models.KPIs {
	return ComputeKPIs(a.Filtered(f))
}

func (a *Analytics) TopN(f models.FilterSet, dim models.Dimension, n int) []models.CTRRow {
	return TopNByCTR(a.Filtered(f), dim, n)
}

func (a *Analytics) Trend(f models.FilterSet) []models.DailyCTR {
	return DailyCTRTrend(a.Filtered(f))
}

// Options returns the filter choices for f. Each multiselect only offers
// values that survive the filters placed before it: day range, then device
// type, then app category.
func (a *Analytics) Options(f models.FilterSet) models.FilterOptions {
	s := a.current()
	return filterOptions(s, effectiveFilter(s, f))
}

func filterOptions(s *snapshot, f models.FilterSet) models.FilterOptions {
	rows := ApplyFilters(s.rows, models.FilterSet{Days: f.Days})
	opts := models.FilterOptions{
		DayBounds:   s.bounds,
		SingleDay:   s.days < 2,
		DeviceTypes: distinctSorted(rows, models.DimDeviceType.Value),
	}

	rows = ApplyFilters(rows, models.FilterSet{DeviceTypes: f.DeviceTypes})
	opts.AppCategories = distinctSorted(rows, models.DimAppCategory.Value)

	rows = ApplyFilters(rows, models.FilterSet{AppCategories: f.AppCategories})
	opts.SiteCategories = distinctSorted(rows, models.DimSiteCategory.Value)

	return opts
}

// Dashboard renders one full pass over the dataset for f: KPI cards, the
// top-N charts, the daily trend and the sidebar options.
func (a *Analytics) Dashboard(f models.FilterSet) models.Dashboard {
	s := a.current()
	f = effectiveFilter(s, f)
	rows := ApplyFilters(s.rows, f)

	charts := make([]models.BarChart, 0, len(a.charts))
	for _, spec := range a.charts {
		charts = append(charts, models.BarChart{
			Dimension:  spec.Dimension,
			Title:      fmt.Sprintf("Top %d CTR by %s", a.topN, spec.Dimension),
			ColorScale: spec.ColorScale,
			Rows:       TopNByCTR(rows, spec.Dimension, a.topN),
		})
	}

	return models.Dashboard{
		Filter:  f,
		Options: filterOptions(s, f),
		KPIs:    ComputeKPIs(rows),
		Charts:  charts,
		Trend:   DailyCTRTrend(rows),
	}
}

// Source is the file the current data was loaded from, "" for in-memory data.
func (a *Analytics) Source() string {
	return a.current().source
}

func (a *Analytics) TopNLimit() int {
	return a.topN
}

// Stats is used by the admin endpoint.
func (a *Analytics) Stats() map[string]any {
	s := a.current()
	return map[string]any{
		"record_count": len(s.rows),
		"source":       s.source,
		"last_loaded":  s.loadedAt,
		"days":         s.days,
		"day_bounds":   s.bounds,
	}
}
