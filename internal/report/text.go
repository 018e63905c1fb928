package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"ctr-dashboard/internal/format"
	"ctr-dashboard/internal/models"
)

func WriteKPIs(w io.Writer, k models.KPIs, f *format.Formatter) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Total Impressions\t%s\n", f.Count(k.Impressions))
	fmt.Fprintf(tw, "Total Clicks\t%s\n", f.Count(k.Clicks))
	fmt.Fprintf(tw, "Overall CTR\t%s\n", f.Percent(k.CTR))
	return tw.Flush()
}

func WriteTopN(w io.Writer, dim models.Dimension, rows []models.CTRRow, f *format.Formatter) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\tclicks\timpressions\tctr\n", dim)
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Value, f.Count(r.Clicks), f.Count(r.Impressions), f.Percent(r.CTR))
	}
	return tw.Flush()
}

func WriteTrend(w io.Writer, trend []models.DailyCTR, f *format.Formatter) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "date\tclicks\timpressions\tctr")
	for _, t := range trend {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.Date, f.Count(t.Clicks), f.Count(t.Impressions), f.Percent(t.CTR))
	}
	return tw.Flush()
}
