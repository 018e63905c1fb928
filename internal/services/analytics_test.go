package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"ctr-dashboard/internal/dataset"
	"ctr-dashboard/internal/models"
)

const testCSV = `id,click,hour,C1,banner_pos,site_id,site_category,app_id,app_category,device_id,device_ip,device_model,device_type
1000009418151094273,0,2014-10-21 00:00:00,1005,0,1fbe01fe,28905ebd,ecad2386,07d7df22,a99f214a,ddd2926e,44956a24,1
10000169349117863715,1,2014-10-21 01:00:00,1005,0,1fbe01fe,28905ebd,ecad2386,07d7df22,a99f214a,96809ac8,711ee120,1
10000371904215119486,1,2014-10-22 02:00:00,1005,0,85f751fd,50e219e0,febd1138,0f2161f8,a99f214a,b3cf8def,8a4875bd,4
10000640724480838376,0,2014-10-23 03:00:00,1002,0,85f751fd,50e219e0,51cedd4e,0f2161f8,c357dbff,e8275b8f,6332421a,1
`

func createTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "impressions.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func at(day, hour int) time.Time {
	return time.Date(2014, 10, day, hour, 0, 0, 0, time.UTC)
}

func testRows() []models.Impression {
	return []models.Impression{
		{Hour: at(21, 0), Click: 1, DeviceType: "1", DeviceModel: "m1", AppCategory: "games", SiteCategory: "news"},
		{Hour: at(21, 5), Click: 0, DeviceType: "1", DeviceModel: "m1", AppCategory: "games", SiteCategory: "sport"},
		{Hour: at(22, 3), Click: 1, DeviceType: "4", DeviceModel: "m2", AppCategory: "tools", SiteCategory: "news"},
		{Hour: at(23, 9), Click: 0, DeviceType: "4", DeviceModel: "m3", AppCategory: "news", SiteCategory: "travel"},
		{Hour: at(24, 9), Click: 0, DeviceType: "5", DeviceModel: "m3", AppCategory: "games", SiteCategory: "travel"},
	}
}

func TestNewAnalytics(t *testing.T) {
	a := NewAnalytics()
	if a.logger == nil {
		t.Error("logger should be initialized")
	}
	if a.TopNLimit() != DefaultTopN {
		t.Errorf("TopNLimit() = %d, want %d", a.TopNLimit(), DefaultTopN)
	}
	if len(a.charts) != len(DefaultCharts) {
		t.Errorf("charts = %d, want %d", len(a.charts), len(DefaultCharts))
	}

	a = NewAnalytics(WithTopN(0), WithCharts(nil), WithLogger(nil))
	if a.TopNLimit() != DefaultTopN || a.logger == nil || len(a.charts) == 0 {
		t.Error("zero-value options should keep defaults")
	}

	a = NewAnalytics(WithTopN(3))
	if a.TopNLimit() != 3 {
		t.Errorf("TopNLimit() = %d, want 3", a.TopNLimit())
	}
}

func TestAnalytics_SetData(t *testing.T) {
	a := NewAnalytics()
	a.SetData(testRows())

	if got := a.KPIs(models.FilterSet{}); got.Impressions != 5 || got.Clicks != 2 {
		t.Errorf("KPIs() = %+v, want 5 impressions and 2 clicks", got)
	}
	if a.Source() != "" {
		t.Errorf("Source() = %q, want empty for in-memory data", a.Source())
	}

	stats := a.Stats()
	if stats["record_count"] != 5 {
		t.Errorf("record_count = %v, want 5", stats["record_count"])
	}
	if stats["days"] != 4 {
		t.Errorf("days = %v, want 4", stats["days"])
	}
}

func TestAnalytics_LoadFromCSV_ValidData(t *testing.T) {
	path := createTempCSV(t, testCSV)

	a := NewAnalytics()
	if err := a.LoadFromCSV(context.Background(), path); err != nil {
		t.Fatalf("LoadFromCSV() error = %v", err)
	}

	if a.Source() != path {
		t.Errorf("Source() = %q, want %q", a.Source(), path)
	}

	got := a.KPIs(models.FilterSet{})
	want := models.KPIs{Impressions: 4, Clicks: 2, CTR: 50}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("KPIs() mismatch (-want +got):\n%s", diff)
	}

	trend := a.Trend(models.FilterSet{})
	if len(trend) != 3 || trend[0].Date != "2014-10-21" {
		t.Errorf("Trend() = %+v, want three days starting 2014-10-21", trend)
	}
}

func TestAnalytics_LoadFromCSV_InvalidData(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{name: "empty file", csv: ""},
		{name: "header only", csv: "hour,click,device_type,device_model,app_category,site_category\n"},
		{name: "missing column", csv: "hour,click,device_type,device_model,app_category\n2014-10-21 00:00:00,0,1,m,games\n"},
		{name: "invalid timestamp", csv: "hour,click,device_type,device_model,app_category,site_category\nyesterday,0,1,m,games,news\n"},
		{name: "invalid click", csv: "hour,click,device_type,device_model,app_category,site_category\n2014-10-21 00:00:00,2,1,m,games,news\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAnalytics()
			a.SetData(testRows())

			err := a.LoadFromCSV(context.Background(), createTempCSV(t, tt.csv))
			var malformed *dataset.MalformedInputError
			if !errors.As(err, &malformed) {
				t.Fatalf("LoadFromCSV() error = %v, want MalformedInputError", err)
			}

			if got := a.KPIs(models.FilterSet{}).Impressions; got != 5 {
				t.Errorf("failed load replaced data: %d impressions", got)
			}
		})
	}
}

func TestAnalytics_LoadFromCSV_MissingFile(t *testing.T) {
	a := NewAnalytics()
	err := a.LoadFromCSV(context.Background(), filepath.Join(t.TempDir(), "absent.csv"))

	var malformed *dataset.MalformedInputError
	if !errors.As(err, &malformed) {
		t.Fatalf("error = %v, want MalformedInputError", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error should wrap os.ErrNotExist, got %v", err)
	}
}

func TestAnalytics_Reload(t *testing.T) {
	path := createTempCSV(t, testCSV)

	a := NewAnalytics()
	if err := a.LoadFromCSV(context.Background(), path); err != nil {
		t.Fatal(err)
	}

	appended := testCSV + "10000679056417042096,1,2014-10-23 04:00:00,1005,1,fe8cc448,f66779e6,ecad2386,07d7df22,a99f214a,9644d0bf,779d90c2,1\n"
	if err := os.WriteFile(path, []byte(appended), 0o644); err != nil {
		t.Fatal(err)
	}
	a.Reload(context.Background())
	if got := a.KPIs(models.FilterSet{}).Impressions; got != 5 {
		t.Fatalf("after reload impressions = %d, want 5", got)
	}

	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	a.Reload(context.Background())
	if got := a.KPIs(models.FilterSet{}).Impressions; got != 5 {
		t.Errorf("failed reload should keep previous data, got %d impressions", got)
	}
}

func TestAnalytics_Reload_InMemoryIsNoop(t *testing.T) {
	a := NewAnalytics()
	a.SetData(testRows())
	a.Reload(context.Background())

	if got := a.KPIs(models.FilterSet{}).Impressions; got != 5 {
		t.Errorf("impressions = %d, want 5", got)
	}
}

func TestAnalytics_DayFilter(t *testing.T) {
	a := NewAnalytics()
	a.SetData(testRows())

	got := a.KPIs(models.FilterSet{Days: &models.DayRange{Min: 22, Max: 23}})
	if got.Impressions != 2 || got.Clicks != 1 {
		t.Errorf("KPIs(22-23) = %+v, want 2 impressions 1 click", got)
	}
}

func TestAnalytics_SingleDayIgnoresDayFilter(t *testing.T) {
	rows := []models.Impression{
		{Hour: at(21, 0), Click: 1, DeviceType: "1", AppCategory: "games"},
		{Hour: at(21, 7), Click: 0, DeviceType: "1", AppCategory: "news"},
	}
	a := NewAnalytics()
	a.SetData(rows)

	f := models.FilterSet{Days: &models.DayRange{Min: 25, Max: 26}}
	if got := a.KPIs(f).Impressions; got != 2 {
		t.Errorf("KPIs() impressions = %d, want 2", got)
	}

	d := a.Dashboard(f)
	if !d.Options.SingleDay {
		t.Error("Options.SingleDay should be set")
	}
	if d.Filter.Days != nil {
		t.Errorf("Dashboard filter kept day range %+v", d.Filter.Days)
	}
}

func TestAnalytics_OptionsCascade(t *testing.T) {
	a := NewAnalytics()
	a.SetData(testRows())

	got := a.Options(models.FilterSet{})
	want := models.FilterOptions{
		DayBounds:      models.DayRange{Min: 21, Max: 24},
		DeviceTypes:    []string{"1", "4", "5"},
		AppCategories:  []string{"games", "news", "tools"},
		SiteCategories: []string{"news", "sport", "travel"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Options() mismatch (-want +got):\n%s", diff)
	}

	got = a.Options(models.FilterSet{
		Days:          &models.DayRange{Min: 22, Max: 24},
		DeviceTypes:   []string{"4"},
		AppCategories: []string{"news"},
	})
	want = models.FilterOptions{
		DayBounds:      models.DayRange{Min: 21, Max: 24},
		DeviceTypes:    []string{"4", "5"},
		AppCategories:  []string{"news", "tools"},
		SiteCategories: []string{"travel"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("cascaded Options() mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalytics_Dashboard(t *testing.T) {
	a := NewAnalytics(WithTopN(2))
	a.SetData(testRows())

	d := a.Dashboard(models.FilterSet{DeviceTypes: []string{"1", "4"}})

	if d.KPIs.Impressions != 4 || d.KPIs.Clicks != 2 {
		t.Errorf("KPIs = %+v, want 4 impressions 2 clicks", d.KPIs)
	}
	if len(d.Charts) != len(DefaultCharts) {
		t.Fatalf("charts = %d, want %d", len(d.Charts), len(DefaultCharts))
	}

	for i, chart := range d.Charts {
		spec := DefaultCharts[i]
		if chart.Dimension != spec.Dimension || chart.ColorScale != spec.ColorScale {
			t.Errorf("chart %d = %s/%s, want %s/%s", i, chart.Dimension, chart.ColorScale, spec.Dimension, spec.ColorScale)
		}
		if len(chart.Rows) > 2 {
			t.Errorf("chart %s has %d rows, want at most 2", chart.Dimension, len(chart.Rows))
		}
	}
	if d.Charts[0].Title != "Top 2 CTR by app_category" {
		t.Errorf("title = %q", d.Charts[0].Title)
	}

	wantApps := []models.CTRRow{
		{Value: "tools", Clicks: 1, Impressions: 1, CTR: 100},
		{Value: "games", Clicks: 1, Impressions: 2, CTR: 50},
	}
	if diff := cmp.Diff(wantApps, d.Charts[0].Rows); diff != "" {
		t.Errorf("app chart mismatch (-want +got):\n%s", diff)
	}

	if len(d.Trend) != 3 {
		t.Errorf("trend days = %d, want 3", len(d.Trend))
	}
}

func TestAnalytics_WithCharts(t *testing.T) {
	a := NewAnalytics(WithCharts([]ChartSpec{{Dimension: models.DimHourOfDay, ColorScale: "Reds"}}))
	a.SetData(testRows())

	d := a.Dashboard(models.FilterSet{})
	if len(d.Charts) != 1 || d.Charts[0].Dimension != models.DimHourOfDay {
		t.Fatalf("charts = %+v", d.Charts)
	}
	if d.Charts[0].Rows[0].Value != "00" {
		t.Errorf("top hour = %q, want 00", d.Charts[0].Rows[0].Value)
	}
}

func TestAnalytics_EmptyData(t *testing.T) {
	a := NewAnalytics()

	if got := a.KPIs(models.FilterSet{}); got != (models.KPIs{}) {
		t.Errorf("KPIs() = %+v, want zero", got)
	}
	if got := a.TopN(models.FilterSet{}, models.DimAppCategory, 10); len(got) != 0 {
		t.Errorf("TopN() length %d, want 0", len(got))
	}
	if got := a.Trend(models.FilterSet{}); len(got) != 0 {
		t.Errorf("Trend() length %d, want 0", len(got))
	}

	d := a.Dashboard(models.FilterSet{})
	for _, chart := range d.Charts {
		if chart.Rows == nil {
			t.Errorf("chart %s rows should be empty, not nil", chart.Dimension)
		}
	}
}

func TestAnalytics_ConcurrentAccess(t *testing.T) {
	a := NewAnalytics()
	a.SetData(testRows())

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%3 == 0 {
				a.SetData(testRows())
			}
			_ = a.Dashboard(models.FilterSet{AppCategories: []string{"games"}})
			_ = a.TopN(models.FilterSet{}, models.DimDeviceModel, 5)
			_ = a.Stats()
		}()
	}
	wg.Wait()
}

func BenchmarkAnalytics_Dashboard(b *testing.B) {
	a := NewAnalytics()
	rows := make([]models.Impression, 0, 10000)
	for i := range 10000 {
		rows = append(rows, models.Impression{
			Hour:         at(21+i%7, i%24),
			Click:        i % 2,
			DeviceType:   string(rune('0' + i%5)),
			DeviceModel:  string(rune('a' + i%26)),
			AppCategory:  string(rune('A' + i%12)),
			SiteCategory: string(rune('K' + i%9)),
		})
	}
	a.SetData(rows)

	for b.Loop() {
		_ = a.Dashboard(models.FilterSet{Days: &models.DayRange{Min: 22, Max: 25}})
	}
}
