package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ctr-dashboard/internal/models"
	"ctr-dashboard/internal/services"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func at(day, hour int) time.Time {
	return time.Date(2014, 10, day, hour, 0, 0, 0, time.UTC)
}

func createTestAnalytics() *services.Analytics {
	a := services.NewAnalytics(services.WithLogger(testLogger()))
	a.SetData([]models.Impression{
		{Hour: at(21, 0), Click: 1, DeviceType: "1", DeviceModel: "iPhone", AppCategory: "games", SiteCategory: "news"},
		{Hour: at(21, 1), Click: 1, DeviceType: "1", DeviceModel: "iPhone", AppCategory: "games", SiteCategory: "news"},
		{Hour: at(22, 2), Click: 0, DeviceType: "1", DeviceModel: "Pixel", AppCategory: "games", SiteCategory: "sport"},
		{Hour: at(22, 3), Click: 1, DeviceType: "4", DeviceModel: "Pixel", AppCategory: "tools", SiteCategory: "sport"},
		{Hour: at(23, 4), Click: 0, DeviceType: "4", DeviceModel: "Galaxy", AppCategory: "tools", SiteCategory: "news"},
		{Hour: at(23, 5), Click: 0, DeviceType: "4", DeviceModel: "Galaxy", AppCategory: "tools", SiteCategory: "news"},
		{Hour: at(24, 6), Click: 0, DeviceType: "5", DeviceModel: "Galaxy", AppCategory: "news", SiteCategory: "travel"},
	})
	return a
}

func pct(clicks, impressions int) float64 {
	return float64(clicks) / float64(impressions) * 100
}

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Success bool            `json:"success"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if data != nil && env.Success {
		if err := json.Unmarshal(env.Data, data); err != nil {
			t.Fatalf("invalid data: %v", err)
		}
	}
	return env
}

func TestNewAPIHandlers(t *testing.T) {
	analytics := createTestAnalytics()
	handlers := NewAPIHandlers(analytics, testLogger())

	if handlers.analytics != analytics {
		t.Error("NewAPIHandlers() should set analytics field")
	}
}

func TestAPIHandlers_HandleKPIs(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(), testLogger())

	tests := []struct {
		query string
		want  models.KPIs
	}{
		{"", models.KPIs{Impressions: 7, Clicks: 3, CTR: pct(3, 7)}},
		{"?device_type=1", models.KPIs{Impressions: 3, Clicks: 2, CTR: pct(2, 3)}},
		{"?day_min=23&day_max=24", models.KPIs{Impressions: 3, Clicks: 0, CTR: 0}},
		{"?app_category=games,tools&site_category=sport", models.KPIs{Impressions: 2, Clicks: 1, CTR: 50}},
		{"?device_type=9", models.KPIs{}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := httptest.NewRecorder()
			handlers.HandleKPIs(w, httptest.NewRequest(http.MethodGet, "/api/kpis"+tt.query, nil))

			if w.Code != http.StatusOK {
				t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
			}
			if cc := w.Header().Get("Cache-Control"); cc != "no-store" {
				t.Errorf("Cache-Control = %q, want no-store", cc)
			}

			var got models.KPIs
			decode(t, w, &got)
			if got != tt.want {
				t.Errorf("KPIs = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAPIHandlers_HandleTopCTR(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(), testLogger())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/top-ctr/{dimension}", handlers.HandleTopCTR)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/top-ctr/device_model", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var rows []models.CTRRow
	decode(t, w, &rows)
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if rows[0].Value != "iPhone" || rows[0].CTR != 100 {
		t.Errorf("first row = %+v, want iPhone at 100", rows[0])
	}
	if rows[1].Value != "Pixel" || rows[2].Value != "Galaxy" {
		t.Errorf("order = %s, %s; want Pixel, Galaxy", rows[1].Value, rows[2].Value)
	}

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/top-ctr/app_category?n=1&device_type=4,5", nil))
	rows = nil
	decode(t, w, &rows)
	if len(rows) != 1 || rows[0].Value != "tools" {
		t.Errorf("rows = %+v, want only tools", rows)
	}
}

func TestAPIHandlers_HandleTopCTR_Errors(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(), testLogger())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/top-ctr/{dimension}", handlers.HandleTopCTR)

	tests := []struct {
		path     string
		wantCode int
		wantErr  string
	}{
		{"/api/top-ctr/country", http.StatusNotFound, "NOT_FOUND"},
		{"/api/top-ctr/app_category?n=0", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"/api/top-ctr/app_category?n=101", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"/api/top-ctr/app_category?n=ten", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"/api/top-ctr/app_category?day_min=40", http.StatusBadRequest, "BAD_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if w.Code != tt.wantCode {
				t.Errorf("expected status %d, got %d", tt.wantCode, w.Code)
			}
			env := decode(t, w, nil)
			if env.Success || env.Error == nil || env.Error.Code != tt.wantErr {
				t.Errorf("error envelope = %+v, want code %s", env, tt.wantErr)
			}
		})
	}
}

func TestAPIHandlers_HandleDailyCTR(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(), testLogger())

	w := httptest.NewRecorder()
	handlers.HandleDailyCTR(w, httptest.NewRequest(http.MethodGet, "/api/daily-ctr?day_min=22", nil))

	var trend []models.DailyCTR
	decode(t, w, &trend)

	dates := make([]string, 0, len(trend))
	for _, d := range trend {
		dates = append(dates, d.Date)
	}
	if strings.Join(dates, ",") != "2014-10-22,2014-10-23,2014-10-24" {
		t.Errorf("dates = %v", dates)
	}
	if trend[0].CTR != 50 {
		t.Errorf("2014-10-22 CTR = %v, want 50", trend[0].CTR)
	}
}

func TestAPIHandlers_HandleFilterOptions(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(), testLogger())

	w := httptest.NewRecorder()
	handlers.HandleFilterOptions(w, httptest.NewRequest(http.MethodGet, "/api/filters?device_type=5", nil))

	var opts models.FilterOptions
	decode(t, w, &opts)

	if opts.DayBounds != (models.DayRange{Min: 21, Max: 24}) || opts.SingleDay {
		t.Errorf("day bounds = %+v single=%v", opts.DayBounds, opts.SingleDay)
	}
	if strings.Join(opts.DeviceTypes, ",") != "1,4,5" {
		t.Errorf("device types = %v", opts.DeviceTypes)
	}
	if strings.Join(opts.AppCategories, ",") != "news" {
		t.Errorf("app categories = %v, want only news", opts.AppCategories)
	}
}

func TestAPIHandlers_HandleDashboard(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(), testLogger())

	w := httptest.NewRecorder()
	handlers.HandleDashboard(w, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))

	var d models.Dashboard
	decode(t, w, &d)

	if d.KPIs.Impressions != 7 {
		t.Errorf("impressions = %d, want 7", d.KPIs.Impressions)
	}
	if len(d.Charts) != 4 {
		t.Fatalf("charts = %d, want 4", len(d.Charts))
	}
	wantScales := []string{"Blues", "Greens", "Oranges", "Purples"}
	for i, c := range d.Charts {
		if c.ColorScale != wantScales[i] {
			t.Errorf("chart %d color scale = %q, want %q", i, c.ColorScale, wantScales[i])
		}
	}
	if len(d.Trend) != 4 {
		t.Errorf("trend = %d days, want 4", len(d.Trend))
	}
}

func TestAPIHandlers_HandleHealth(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(), testLogger())

	w := httptest.NewRecorder()
	handlers.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	var health map[string]string
	decode(t, w, &health)
	if health["status"] != "healthy" {
		t.Errorf("status = %q, want healthy", health["status"])
	}
	if _, err := time.Parse(time.RFC3339, health["timestamp"]); err != nil {
		t.Errorf("timestamp %q is not RFC3339", health["timestamp"])
	}
}

func TestAPIHandlers_HandleStats(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(), testLogger())

	w := httptest.NewRecorder()
	handlers.HandleStats(w, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))

	var stats map[string]any
	decode(t, w, &stats)
	if stats["record_count"] != float64(7) {
		t.Errorf("record_count = %v, want 7", stats["record_count"])
	}
	if stats["days"] != float64(4) {
		t.Errorf("days = %v, want 4", stats["days"])
	}
}

func TestAPIHandlers_HandleReload(t *testing.T) {
	t.Run("in-memory data", func(t *testing.T) {
		handlers := NewAPIHandlers(createTestAnalytics(), testLogger())

		w := httptest.NewRecorder()
		handlers.HandleReload(w, httptest.NewRequest(http.MethodPost, "/admin/reload", nil))
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
		}
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data.csv")
		csv := "hour,click,device_type,device_model,app_category,site_category\n2014-10-21 00:00:00,1,1,m,games,news\n"
		if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
			t.Fatal(err)
		}

		analytics := services.NewAnalytics(services.WithLogger(testLogger()))
		if err := analytics.LoadFromCSV(context.Background(), path); err != nil {
			t.Fatal(err)
		}
		handlers := NewAPIHandlers(analytics, testLogger())

		csv += "2014-10-22 00:00:00,0,1,m,games,news\n"
		if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
			t.Fatal(err)
		}
		w := httptest.NewRecorder()
		handlers.HandleReload(w, httptest.NewRequest(http.MethodPost, "/admin/reload", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
		}
		if got := analytics.KPIs(models.FilterSet{}).Impressions; got != 2 {
			t.Errorf("impressions after reload = %d, want 2", got)
		}

		if err := os.WriteFile(path, []byte(csv+"tomorrow,0,1,m,games,news\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		w = httptest.NewRecorder()
		handlers.HandleReload(w, httptest.NewRequest(http.MethodPost, "/admin/reload", nil))
		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("expected status %d, got %d", http.StatusUnprocessableEntity, w.Code)
		}
		env := decode(t, w, nil)
		if env.Error == nil || env.Error.Code != "MALFORMED_INPUT" || !strings.Contains(env.Error.Details, "line 4") {
			t.Errorf("error = %+v", env.Error)
		}
		if got := analytics.KPIs(models.FilterSet{}).Impressions; got != 2 {
			t.Errorf("failed reload replaced data: %d impressions", got)
		}
	})
}
