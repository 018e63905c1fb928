// Package templates holds the server-rendered pieces of the dashboard. The
// page is static apart from the fragments the SSE endpoint patches by id:
// #filters, #kpi-cards and the chart signals.
package templates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"ctr-dashboard/internal/format"
	"ctr-dashboard/internal/models"
)

const (
	Title       = "Avazu CTR Marketing Dashboard"
	Description = "This dashboard provides insights into click-through rate performance across devices, apps, and sites."

	plotlyURL = "https://cdn.jsdelivr.net/npm/plotly.js-dist-min@2.35.2/plotly.min.js"
	// datastar client matching datastar-go v1
	datastarURL = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.5/bundles/datastar.js"
)

// Signals is the client-side state bound to the sidebar widgets and chart
// containers.
type Signals struct {
	DayMin         int               `json:"dayMin"`
	DayMax         int               `json:"dayMax"`
	DeviceTypes    []string          `json:"deviceTypes"`
	AppCategories  []string          `json:"appCategories"`
	SiteCategories []string          `json:"siteCategories"`
	Charts         []models.BarChart `json:"charts"`
	Trend          []models.DailyCTR `json:"trend"`
}

func InitialSignals(d models.Dashboard) Signals {
	s := Signals{
		DayMin:         d.Options.DayBounds.Min,
		DayMax:         d.Options.DayBounds.Max,
		DeviceTypes:    nonNil(d.Filter.DeviceTypes),
		AppCategories:  nonNil(d.Filter.AppCategories),
		SiteCategories: nonNil(d.Filter.SiteCategories),
		Charts:         d.Charts,
		Trend:          d.Trend,
	}
	if d.Filter.Days != nil {
		s.DayMin, s.DayMax = d.Filter.Days.Min, d.Filter.Days.Max
	}
	return s
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// Dashboard is the full page for the initial request.
func Dashboard(d models.Dashboard, f *format.Formatter) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		signals, err := json.Marshal(InitialSignals(d))
		if err != nil {
			return fmt.Errorf("marshal signals: %w", err)
		}

		if _, err := fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s</title>
<script type="module" src="%s"></script>
<script src="%s"></script>
<style>%s</style>
</head>
<body data-signals="%s">
<aside class="sidebar">
<h2>Filters</h2>
<form id="filter-form" data-on:change="@get('/sse/dashboard')">
`, templ.EscapeString(Title), datastarURL, plotlyURL, pageCSS, templ.EscapeString(string(signals))); err != nil {
			return err
		}

		if err := FilterPanel(d.Options).Render(ctx, w); err != nil {
			return err
		}

		if _, err := fmt.Fprintf(w, `</form>
</aside>
<main>
<h1>%s</h1>
<p>%s</p>
<h2>Key Metrics</h2>
`, templ.EscapeString(Title), templ.EscapeString(Description)); err != nil {
			return err
		}

		if err := KPICards(d.KPIs, f).Render(ctx, w); err != nil {
			return err
		}

		if _, err := io.WriteString(w, "<h2>CTR Analysis</h2>\n"); err != nil {
			return err
		}
		for i, chart := range d.Charts {
			if _, err := fmt.Fprintf(w, `<div class="chart" id="chart-%d" aria-label="%s"></div>
`, i, templ.EscapeString(chart.Title)); err != nil {
				return err
			}
		}

		_, err = fmt.Fprintf(w, `<h2>CTR Over Time</h2>
<div class="chart" id="chart-trend" aria-label="Daily CTR Trend"></div>
<div data-effect="window.renderCharts && window.renderCharts($charts, $trend)"></div>
</main>
<script>%s</script>
</body>
</html>
`, chartScript)
		return err
	})
}

// FilterPanel renders the sidebar widgets. Multiselect options cascade, so
// the panel is re-rendered after every filter change.
func FilterPanel(opts models.FilterOptions) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div id="filters">`)

		if opts.SingleDay {
			fmt.Fprintf(&b, `<p class="warning">&#9888; Only one day available: %d. Showing all records.</p>`, opts.DayBounds.Min)
		} else {
			fmt.Fprintf(&b, `<label>Select Date Range</label>
<div class="range"><input type="number" min="%[1]d" max="%[2]d" data-bind:day-min>
<input type="number" min="%[1]d" max="%[2]d" data-bind:day-max></div>`, opts.DayBounds.Min, opts.DayBounds.Max)
		}

		writeMultiselect(&b, "Device Type", "device-types", opts.DeviceTypes)
		writeMultiselect(&b, "App Category", "app-categories", opts.AppCategories)
		writeMultiselect(&b, "Site Category", "site-categories", opts.SiteCategories)

		b.WriteString(`</div>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func writeMultiselect(b *strings.Builder, label, signal string, options []string) {
	fmt.Fprintf(b, `<label>%s</label><select multiple data-bind:%s>`, templ.EscapeString(label), signal)
	for _, o := range options {
		v := templ.EscapeString(o)
		fmt.Fprintf(b, `<option value="%s">%s</option>`, v, v)
	}
	b.WriteString(`</select>`)
}

// KPICards renders the three headline metrics.
func KPICards(k models.KPIs, f *format.Formatter) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<div id="kpi-cards" class="kpis">
<div class="kpi"><span class="label">Total Impressions</span><span class="value">%s</span></div>
<div class="kpi"><span class="label">Total Clicks</span><span class="value">%s</span></div>
<div class="kpi"><span class="label">Overall CTR</span><span class="value">%s</span></div>
</div>`,
			templ.EscapeString(f.Count(k.Impressions)),
			templ.EscapeString(f.Count(k.Clicks)),
			templ.EscapeString(f.Percent(k.CTR)),
		)
		return err
	})
}

// Render is a convenience for SSE patches that need the HTML as a string.
func Render(ctx context.Context, c templ.Component) (string, error) {
	var b strings.Builder
	if err := c.Render(ctx, &b); err != nil {
		return "", err
	}
	return b.String(), nil
}

const pageCSS = `body{display:flex;margin:0;font-family:system-ui,sans-serif;color:#222}
.sidebar{width:280px;padding:1rem;background:#f4f5f7;min-height:100vh}
.sidebar label{display:block;margin-top:1rem;font-weight:600}
.sidebar select{width:100%;min-height:6rem}
.range{display:flex;gap:.5rem}.range input{width:50%}
.warning{background:#fff3cd;padding:.5rem;border-radius:4px}
main{flex:1;padding:1rem 2rem}
.kpis{display:flex;gap:1rem}
.kpi{flex:1;padding:1rem;border:1px solid #ddd;border-radius:6px}
.kpi .label{display:block;color:#666}.kpi .value{font-size:1.8rem;font-weight:700}
.chart{width:100%;height:380px}`

const chartScript = `window.renderCharts = function(charts, trend) {
  if (!window.Plotly) return;
  (charts || []).forEach(function(c, i) {
    var x = c.rows.map(function(r) { return r.value; });
    var y = c.rows.map(function(r) { return r.ctr; });
    Plotly.react('chart-' + i, [{
      type: 'bar', x: x, y: y,
      text: y.map(function(v) { return v.toFixed(2) + '%'; }),
      marker: {color: y, colorscale: c.color_scale},
      hovertemplate: c.dimension + ': %{x}<br>CTR: %{y:.2f}%<extra></extra>'
    }], {title: c.title, xaxis: {type: 'category'}});
  });
  Plotly.react('chart-trend', [{
    type: 'scatter', mode: 'lines+markers',
    x: (trend || []).map(function(t) { return t.date; }),
    y: (trend || []).map(function(t) { return t.ctr; })
  }], {title: 'Daily CTR Trend'});
};`
