package handlers

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"ctr-dashboard/internal/models"
)

const (
	minDay = 1
	maxDay = 31
)

// ParseFilterQuery reads a FilterSet from query parameters. Membership
// filters accept repeated keys and comma-separated lists; a day range is
// set when either bound is present, the other bound defaulting to the edge
// of the month.
func ParseFilterQuery(q url.Values) (models.FilterSet, error) {
	var f models.FilterSet

	minRaw, maxRaw := q.Get("day_min"), q.Get("day_max")
	if minRaw != "" || maxRaw != "" {
		days, err := parseDayRange(minRaw, maxRaw)
		if err != nil {
			return models.FilterSet{}, err
		}
		f.Days = &days
	}

	f.DeviceTypes = splitValues(q["device_type"])
	f.AppCategories = splitValues(q["app_category"])
	f.SiteCategories = splitValues(q["site_category"])
	return f, nil
}

func parseDayRange(minRaw, maxRaw string) (models.DayRange, error) {
	r := models.DayRange{Min: minDay, Max: maxDay}

	if minRaw != "" {
		v, err := parseDay("day_min", minRaw)
		if err != nil {
			return r, err
		}
		r.Min = v
	}
	if maxRaw != "" {
		v, err := parseDay("day_max", maxRaw)
		if err != nil {
			return r, err
		}
		r.Max = v
	}
	if r.Min > r.Max {
		return r, fmt.Errorf("day_min %d is after day_max %d", r.Min, r.Max)
	}
	return r, nil
}

func parseDay(name, raw string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", name, raw)
	}
	if v < minDay || v > maxDay {
		return 0, fmt.Errorf("%s must be between %d and %d, got %d", name, minDay, maxDay, v)
	}
	return v, nil
}

func splitValues(raw []string) []string {
	var result []string
	for _, item := range raw {
		for _, v := range strings.Split(item, ",") {
			if v = strings.TrimSpace(v); v != "" {
				result = append(result, v)
			}
		}
	}
	return result
}
