package models

import (
	"fmt"
	"time"
)

// Impression is one ad display event. Date features are derived from Hour on
// every call so they can never drift from the timestamp.
type Impression struct {
	Hour         time.Time `json:"hour"`
	Click        int       `json:"click"`
	DeviceType   string    `json:"device_type"`
	DeviceModel  string    `json:"device_model"`
	AppCategory  string    `json:"app_category"`
	SiteCategory string    `json:"site_category"`
}

func (i Impression) Year() int { return i.Hour.Year() }

func (i Impression) Month() time.Month { return i.Hour.Month() }

func (i Impression) Day() int { return i.Hour.Day() }

func (i Impression) Weekday() string { return i.Hour.Weekday().String() }

func (i Impression) HourOfDay() int { return i.Hour.Hour() }

// Date is the calendar date of the impression in the timestamp's location.
func (i Impression) Date() string { return i.Hour.Format(DateLayout) }

const DateLayout = "2006-01-02"

type Dimension string

const (
	DimAppCategory  Dimension = "app_category"
	DimSiteCategory Dimension = "site_category"
	DimDeviceModel  Dimension = "device_model"
	DimDeviceType   Dimension = "device_type"
	DimWeekday      Dimension = "weekday"
	DimHourOfDay    Dimension = "hour_of_day"
)

var Dimensions = []Dimension{
	DimAppCategory,
	DimSiteCategory,
	DimDeviceModel,
	DimDeviceType,
	DimWeekday,
	DimHourOfDay,
}

func ParseDimension(name string) (Dimension, error) {
	for _, d := range Dimensions {
		if string(d) == name {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown dimension %q", name)
}

// Value returns the grouping value of the impression for d. Unknown
// dimensions group everything under "".
func (d Dimension) Value(i Impression) string {
	switch d {
	case DimAppCategory:
		return i.AppCategory
	case DimSiteCategory:
		return i.SiteCategory
	case DimDeviceModel:
		return i.DeviceModel
	case DimDeviceType:
		return i.DeviceType
	case DimWeekday:
		return i.Weekday()
	case DimHourOfDay:
		return fmt.Sprintf("%02d", i.HourOfDay())
	default:
		return ""
	}
}

type DayRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

func (r DayRange) Contains(day int) bool {
	return day >= r.Min && day <= r.Max
}

// FilterSet is a conjunction of predicates. A nil Days or an empty
// membership slice places no restriction on that field.
type FilterSet struct {
	Days           *DayRange `json:"days,omitempty"`
	DeviceTypes    []string  `json:"device_types,omitempty"`
	AppCategories  []string  `json:"app_categories,omitempty"`
	SiteCategories []string  `json:"site_categories,omitempty"`
}

func (f FilterSet) IsEmpty() bool {
	return f.Days == nil && len(f.DeviceTypes) == 0 && len(f.AppCategories) == 0 && len(f.SiteCategories) == 0
}
