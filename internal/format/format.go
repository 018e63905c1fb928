// Package format renders KPI numbers for people. Its configuration is passed
// explicitly to each renderer instead of living in process-wide state.
package format

import (
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	DefaultLocale   = "en"
	DefaultDecimals = 2
)

type Config struct {
	Locale   string `yaml:"locale"`
	Decimals int    `yaml:"decimals"`
}

func DefaultConfig() Config {
	return Config{Locale: DefaultLocale, Decimals: DefaultDecimals}
}

type Formatter struct {
	printer       *message.Printer
	decimals      int
	percentLayout string
}

// New builds a Formatter. An unparseable locale falls back to English and a
// negative decimal count to the default.
func New(cfg Config) *Formatter {
	tag, err := language.Parse(cfg.Locale)
	if err != nil {
		tag = language.English
	}
	decimals := cfg.Decimals
	if decimals < 0 {
		decimals = DefaultDecimals
	}
	return &Formatter{
		printer:       message.NewPrinter(tag),
		decimals:      decimals,
		percentLayout: fmt.Sprintf("%%.%df%%%%", decimals),
	}
}

// Count renders n with the locale's digit grouping, e.g. 1,234,567.
func (f *Formatter) Count(n int) string {
	return f.printer.Sprintf("%d", n)
}

// Percent renders v (already scaled to 0-100) with a trailing percent sign.
func (f *Formatter) Percent(v float64) string {
	return f.printer.Sprintf(f.percentLayout, v)
}

// Round returns v rounded to the configured decimals, for tabular exports.
func (f *Formatter) Round(v float64) float64 {
	p := math.Pow10(f.decimals)
	return math.Round(v*p) / p
}

func (f *Formatter) Decimals() int {
	return f.decimals
}

func (c Config) String() string {
	return fmt.Sprintf("locale=%s decimals=%d", c.Locale, c.Decimals)
}
