// Package dataset turns the impressions CSV into typed records.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"golang.org/x/sync/errgroup"

	"ctr-dashboard/internal/models"
)

const (
	batchSize  = 10000
	maxWorkers = 10
)

const (
	ColHour         = "hour"
	ColClick        = "click"
	ColDeviceType   = "device_type"
	ColDeviceModel  = "device_model"
	ColAppCategory  = "app_category"
	ColSiteCategory = "site_category"
)

var RequiredColumns = []string{
	ColHour,
	ColClick,
	ColDeviceType,
	ColDeviceModel,
	ColAppCategory,
	ColSiteCategory,
}

// IdentifierColumns are dropped after load; they carry no analytical value.
var IdentifierColumns = []string{"id", "site_id", "app_id", "device_id", "device_ip"}

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02",
	"06010215", // raw Avazu YYMMDDHH
}

// Load reads the CSV at path and returns its impressions in file order.
func Load(ctx context.Context, path string) ([]models.Impression, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &MalformedInputError{Path: path, Reason: "open file", Err: err}
	}
	defer file.Close()

	rows, err := Read(ctx, file)
	if err != nil {
		var malformed *MalformedInputError
		if errors.As(err, &malformed) {
			malformed.Path = path
		}
		return nil, err
	}
	return rows, nil
}

// Read parses impressions from r. Every column is loaded as a string so the
// timestamp and click columns are validated here rather than guessed by type
// detection.
func Read(ctx context.Context, r io.Reader) ([]models.Impression, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return nil, &MalformedInputError{Reason: "read csv", Err: df.Err}
	}

	df, err := prepareFrame(df)
	if err != nil {
		return nil, err
	}
	if df.Nrow() == 0 {
		return nil, &MalformedInputError{Reason: "no records"}
	}

	columns := make(map[string][]string, len(RequiredColumns))
	for _, name := range RequiredColumns {
		columns[name] = df.Col(name).Records()
	}

	return convert(ctx, columns, df.Nrow())
}

// prepareFrame checks the required columns and drops identifier columns.
func prepareFrame(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	names := df.Names()
	for _, col := range RequiredColumns {
		if !slices.Contains(names, col) {
			return df, &MalformedInputError{Line: 1, Column: col, Reason: "missing required column"}
		}
	}

	var drop []string
	for _, col := range IdentifierColumns {
		if slices.Contains(names, col) {
			drop = append(drop, col)
		}
	}
	if len(drop) > 0 {
		df = df.Drop(drop)
		if df.Err != nil {
			return df, fmt.Errorf("drop identifier columns: %w", df.Err)
		}
	}

	df = df.Select(RequiredColumns)
	if df.Err != nil {
		return df, fmt.Errorf("select columns: %w", df.Err)
	}
	return df, nil
}

func convert(ctx context.Context, columns map[string][]string, n int) ([]models.Impression, error) {
	result := make([]models.Impression, n)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)

	for start := 0; start < n; start += batchSize {
		end := min(start+batchSize, n)
		g.Go(func() error {
			for i := start; i < end; i++ {
				if i%1000 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				imp, err := parseRow(columns, i)
				if err != nil {
					return err
				}
				result[i] = imp
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

func parseRow(columns map[string][]string, i int) (models.Impression, error) {
	line := i + 2

	hour, err := ParseTimestamp(columns[ColHour][i])
	if err != nil {
		return models.Impression{}, &MalformedInputError{Line: line, Column: ColHour, Reason: "invalid timestamp", Err: err}
	}

	click, err := parseClick(columns[ColClick][i])
	if err != nil {
		return models.Impression{}, &MalformedInputError{Line: line, Column: ColClick, Reason: "invalid click flag", Err: err}
	}

	return models.Impression{
		Hour:         hour,
		Click:        click,
		DeviceType:   strings.TrimSpace(columns[ColDeviceType][i]),
		DeviceModel:  strings.TrimSpace(columns[ColDeviceModel][i]),
		AppCategory:  strings.TrimSpace(columns[ColAppCategory][i]),
		SiteCategory: strings.TrimSpace(columns[ColSiteCategory][i]),
	}, nil
}

// ParseTimestamp accepts the ISO-like layouts seen in exported datasets and
// the compact YYMMDDHH form of the raw Avazu dump. Times are UTC.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if layout == "06010215" && len(value) != len(layout) {
			continue
		}
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", value)
}

func parseClick(value string) (int, error) {
	value = strings.TrimSpace(value)
	click, err := strconv.Atoi(value)
	if err != nil {
		f, ferr := strconv.ParseFloat(value, 64)
		if ferr != nil || f != float64(int(f)) {
			return 0, fmt.Errorf("not an integer: %q", value)
		}
		click = int(f)
	}
	if click != 0 && click != 1 {
		return 0, fmt.Errorf("click must be 0 or 1, got %d", click)
	}
	return click, nil
}
