package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"ctr-dashboard/internal/config"
	"ctr-dashboard/internal/format"
	"ctr-dashboard/internal/models"
	"ctr-dashboard/internal/observability"
	"ctr-dashboard/internal/report"
	"ctr-dashboard/internal/services"
)

type options struct {
	csvFile        string
	dayMin         int
	dayMax         int
	deviceTypes    []string
	appCategories  []string
	siteCategories []string
	locale         string
	decimals       int
	logLevel       string

	stdout io.Writer
	stderr io.Writer
}

func (o *options) filter() (models.FilterSet, error) {
	f := models.FilterSet{
		DeviceTypes:    o.deviceTypes,
		AppCategories:  o.appCategories,
		SiteCategories: o.siteCategories,
	}
	if o.dayMin == 0 && o.dayMax == 0 {
		return f, nil
	}

	days := models.DayRange{Min: o.dayMin, Max: o.dayMax}
	if days.Min == 0 {
		days.Min = 1
	}
	if days.Max == 0 {
		days.Max = 31
	}
	if days.Min < 1 || days.Max > 31 || days.Min > days.Max {
		return models.FilterSet{}, fmt.Errorf("invalid day range %d-%d", days.Min, days.Max)
	}
	f.Days = &days
	return f, nil
}

func (o *options) formatter() *format.Formatter {
	return format.New(format.Config{Locale: o.locale, Decimals: o.decimals})
}

// load reads the CSV into a fresh Analytics. Logs go to stderr so stdout
// only carries the report.
func (o *options) load(ctx context.Context, topN int) (*services.Analytics, error) {
	logger := observability.NewLoggerTo(o.stderr, config.LoggerConfig{Level: o.logLevel, Format: "text"})

	analytics := services.NewAnalytics(
		services.WithTopN(topN),
		services.WithLogger(logger),
	)
	if err := analytics.LoadFromCSV(ctx, o.csvFile); err != nil {
		return nil, err
	}
	return analytics, nil
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	defaults := format.DefaultConfig()
	o := &options{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "ctrreport",
		Short:         "Summarise click-through rates of an impression log",
		Long:          `Reads an Avazu-style impression CSV and prints the KPIs, top-N CTR tables and daily trend shown on the dashboard.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&o.csvFile, "csv", envOr("CSV_FILE", "50krecords.csv"), "impression CSV file")
	pf.IntVar(&o.dayMin, "day-min", 0, "first day of month to include (1-31)")
	pf.IntVar(&o.dayMax, "day-max", 0, "last day of month to include (1-31)")
	pf.StringSliceVar(&o.deviceTypes, "device-type", nil, "device types to include")
	pf.StringSliceVar(&o.appCategories, "app-category", nil, "app categories to include")
	pf.StringSliceVar(&o.siteCategories, "site-category", nil, "site categories to include")
	pf.StringVar(&o.locale, "locale", defaults.Locale, "locale for number formatting")
	pf.IntVar(&o.decimals, "decimals", defaults.Decimals, "decimals shown for CTR values")
	pf.StringVar(&o.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		newKPIsCmd(o),
		newTopCmd(o),
		newTrendCmd(o),
		newExportCmd(o),
	)
	return root
}

func newKPIsCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "kpis",
		Short: "Print total impressions, clicks and overall CTR",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := o.filter()
			if err != nil {
				return err
			}
			analytics, err := o.load(cmd.Context(), services.DefaultTopN)
			if err != nil {
				return err
			}
			return report.WriteKPIs(o.stdout, analytics.KPIs(f), o.formatter())
		},
	}
}

func newTopCmd(o *options) *cobra.Command {
	var (
		dimension string
		n         int
	)

	cmd := &cobra.Command{
		Use:   "top",
		Short: "Print the groups of a dimension with the highest CTR",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dim, err := models.ParseDimension(dimension)
			if err != nil {
				return err
			}
			if n < 1 {
				return fmt.Errorf("--n must be positive, got %d", n)
			}
			f, err := o.filter()
			if err != nil {
				return err
			}
			analytics, err := o.load(cmd.Context(), n)
			if err != nil {
				return err
			}
			return report.WriteTopN(o.stdout, dim, analytics.TopN(f, dim, n), o.formatter())
		},
	}

	names := make([]string, 0, len(models.Dimensions))
	for _, d := range models.Dimensions {
		names = append(names, string(d))
	}
	cmd.Flags().StringVar(&dimension, "dimension", string(models.DimAppCategory), "group by one of: "+strings.Join(names, ", "))
	cmd.Flags().IntVar(&n, "n", services.DefaultTopN, "number of groups to print")
	return cmd
}

func newTrendCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "trend",
		Short: "Print the CTR of every calendar day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := o.filter()
			if err != nil {
				return err
			}
			analytics, err := o.load(cmd.Context(), services.DefaultTopN)
			if err != nil {
				return err
			}
			return report.WriteTrend(o.stdout, analytics.Trend(f), o.formatter())
		},
	}
}

func newExportCmd(o *options) *cobra.Command {
	var (
		out  string
		topN int
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the filtered dashboard to an xlsx workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := o.filter()
			if err != nil {
				return err
			}
			analytics, err := o.load(cmd.Context(), topN)
			if err != nil {
				return err
			}

			file, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			if err := report.WriteWorkbook(file, analytics.Dashboard(f), o.formatter()); err != nil {
				file.Close()
				return err
			}
			if err := file.Close(); err != nil {
				return err
			}

			fmt.Fprintf(o.stdout, "wrote %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "ctr-report.xlsx", "output workbook")
	cmd.Flags().IntVar(&topN, "top", services.DefaultTopN, "groups per chart sheet")
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
