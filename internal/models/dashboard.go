package models

type KPIs struct {
	Impressions int     `json:"impressions"`
	Clicks      int     `json:"clicks"`
	CTR         float64 `json:"ctr"`
}

type CTRRow struct {
	Value       string  `json:"value"`
	Clicks      int     `json:"clicks"`
	Impressions int     `json:"impressions"`
	CTR         float64 `json:"ctr"`
}

type DailyCTR struct {
	Date        string  `json:"date"`
	Clicks      int     `json:"clicks"`
	Impressions int     `json:"impressions"`
	CTR         float64 `json:"ctr"`
}

type BarChart struct {
	Dimension  Dimension `json:"dimension"`
	Title      string    `json:"title"`
	ColorScale string    `json:"color_scale"`
	Rows       []CTRRow  `json:"rows"`
}

type FilterOptions struct {
	DayBounds      DayRange `json:"day_bounds"`
	SingleDay      bool     `json:"single_day"`
	DeviceTypes    []string `json:"device_types"`
	AppCategories  []string `json:"app_categories"`
	SiteCategories []string `json:"site_categories"`
}

// Dashboard is everything one render pass needs: the applied filter, the
// KPI cards and the chart series.
type Dashboard struct {
	Filter  FilterSet     `json:"filter"`
	Options FilterOptions `json:"options"`
	KPIs    KPIs          `json:"kpis"`
	Charts  []BarChart    `json:"charts"`
	Trend   []DailyCTR    `json:"trend"`
}
