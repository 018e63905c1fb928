package services

import (
	"cmp"
	"slices"
	"strings"

	"ctr-dashboard/internal/models"
)

const DefaultTopN = 10

// ctr returns clicks/impressions as a percentage, 0 when there are no
// impressions.
func ctr(clicks, impressions int) float64 {
	if impressions <= 0 {
		return 0
	}
	return float64(clicks) / float64(impressions) * 100
}

func ComputeKPIs(rows []models.Impression) models.KPIs {
	clicks := 0
	for _, r := range rows {
		clicks += r.Click
	}
	return models.KPIs{
		Impressions: len(rows),
		Clicks:      clicks,
		CTR:         ctr(clicks, len(rows)),
	}
}

type clickCount struct {
	clicks      int
	impressions int
}

func groupClicks(rows []models.Impression, key func(models.Impression) string) map[string]*clickCount {
	groups := make(map[string]*clickCount)
	for _, r := range rows {
		k := key(r)
		g := groups[k]
		if g == nil {
			g = &clickCount{}
			groups[k] = g
		}
		g.clicks += r.Click
		g.impressions++
	}
	return groups
}

// TopNByCTR groups rows by dim and returns at most n groups ordered by CTR
// descending, ties broken by group value ascending.
func TopNByCTR(rows []models.Impression, dim models.Dimension, n int) []models.CTRRow {
	if n <= 0 {
		return []models.CTRRow{}
	}

	groups := groupClicks(rows, dim.Value)
	result := make([]models.CTRRow, 0, len(groups))
	for value, g := range groups {
		result = append(result, models.CTRRow{
			Value:       value,
			Clicks:      g.clicks,
			Impressions: g.impressions,
			CTR:         ctr(g.clicks, g.impressions),
		})
	}

	slices.SortFunc(result, func(a, b models.CTRRow) int {
		if a.CTR > b.CTR {
			return -1
		}
		if a.CTR < b.CTR {
			return 1
		}
		return strings.Compare(a.Value, b.Value)
	})

	if len(result) > n {
		result = result[:n]
	}
	return result
}

func DailyCTRTrend(rows []models.Impression) []models.DailyCTR {
	groups := groupClicks(rows, models.Impression.Date)
	result := make([]models.DailyCTR, 0, len(groups))
	for date, g := range groups {
		result = append(result, models.DailyCTR{
			Date:        date,
			Clicks:      g.clicks,
			Impressions: g.impressions,
			CTR:         ctr(g.clicks, g.impressions),
		})
	}

	// DateLayout sorts lexically in date order.
	slices.SortFunc(result, func(a, b models.DailyCTR) int {
		return cmp.Compare(a.Date, b.Date)
	})
	return result
}

// ApplyFilters returns the rows matching every active predicate of f. The
// input slice is never modified.
func ApplyFilters(rows []models.Impression, f models.FilterSet) []models.Impression {
	devices := toSet(f.DeviceTypes)
	apps := toSet(f.AppCategories)
	sites := toSet(f.SiteCategories)

	result := make([]models.Impression, 0, len(rows))
	for _, r := range rows {
		if f.Days != nil && !f.Days.Contains(r.Day()) {
			continue
		}
		if !allowed(devices, r.DeviceType) || !allowed(apps, r.AppCategory) || !allowed(sites, r.SiteCategory) {
			continue
		}
		result = append(result, r)
	}
	return result
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// allowed treats a nil set as "no restriction".
func allowed(set map[string]struct{}, value string) bool {
	if set == nil {
		return true
	}
	_, ok := set[value]
	return ok
}

// distinctSorted returns the distinct values of key over rows in ascending
// order.
func distinctSorted(rows []models.Impression, key func(models.Impression) string) []string {
	seen := make(map[string]struct{})
	result := make([]string, 0)
	for _, r := range rows {
		v := key(r)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	slices.Sort(result)
	return result
}

// dayBounds returns the smallest and largest day-of-month present and the
// number of distinct days.
func dayBounds(rows []models.Impression) (models.DayRange, int) {
	if len(rows) == 0 {
		return models.DayRange{}, 0
	}
	days := make(map[int]struct{})
	bounds := models.DayRange{Min: rows[0].Day(), Max: rows[0].Day()}
	for _, r := range rows {
		d := r.Day()
		days[d] = struct{}{}
		bounds.Min = min(bounds.Min, d)
		bounds.Max = max(bounds.Max, d)
	}
	return bounds, len(days)
}
