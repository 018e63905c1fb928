// Package report writes dashboard bundles to files and terminals.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"ctr-dashboard/internal/format"
	"ctr-dashboard/internal/models"
)

const (
	kpiSheet   = "KPIs"
	trendSheet = "Daily CTR"
)

// WriteWorkbook writes d as an xlsx workbook: a KPI sheet, one sheet per
// top-N chart and the daily trend. CTR values are rounded to the formatter's
// decimals.
func WriteWorkbook(w io.Writer, d models.Dashboard, f *format.Formatter) error {
	wb := excelize.NewFile()
	defer wb.Close()

	if err := wb.SetSheetName("Sheet1", kpiSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	kpiRows := [][]any{
		{"Metric", "Value"},
		{"Total Impressions", d.KPIs.Impressions},
		{"Total Clicks", d.KPIs.Clicks},
		{"Overall CTR (%)", f.Round(d.KPIs.CTR)},
	}
	if err := writeRows(wb, kpiSheet, kpiRows); err != nil {
		return err
	}

	for _, chart := range d.Charts {
		sheet := sheetName(string(chart.Dimension))
		if _, err := wb.NewSheet(sheet); err != nil {
			return fmt.Errorf("create sheet %s: %w", sheet, err)
		}

		rows := [][]any{{string(chart.Dimension), "Clicks", "Impressions", "CTR (%)"}}
		for _, r := range chart.Rows {
			rows = append(rows, []any{r.Value, r.Clicks, r.Impressions, f.Round(r.CTR)})
		}
		if err := writeRows(wb, sheet, rows); err != nil {
			return err
		}
	}

	if _, err := wb.NewSheet(trendSheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", trendSheet, err)
	}
	trendRows := [][]any{{"Date", "Clicks", "Impressions", "CTR (%)"}}
	for _, t := range d.Trend {
		trendRows = append(trendRows, []any{t.Date, t.Clicks, t.Impressions, f.Round(t.CTR)})
	}
	if err := writeRows(wb, trendSheet, trendRows); err != nil {
		return err
	}

	wb.SetActiveSheet(0)

	if err := wb.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(wb *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := wb.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

// sheetName keeps names inside the 31 character limit of the format.
func sheetName(dimension string) string {
	name := "Top CTR " + dimension
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}
