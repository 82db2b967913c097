// ABOUTME: Dual-format date parsing for sheet cells
// ABOUTME: Reads YYYY-MM-DD, DD/MM/YYYY and serial numbers, always writes YYYY-MM-DD
package schema

import (
	"math"
	"strings"
	"time"
)

// DateLayout is the canonical wire format for dates.
const DateLayout = "2006-01-02"

var readLayouts = []string{
	DateLayout,
	"2/1/2006",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseDate parses a date cell in loc. Empty input is not an error; it
// reports ok=false.
func ParseDate(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range readLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NormalizeDate rewrites a parseable date into DateLayout. Unparseable
// values are returned unchanged so no data is lost.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	t, ok := ParseDate(s, time.UTC)
	if !ok {
		return s
	}
	return t.Format(DateLayout)
}

// serialEpoch is day zero of spreadsheet serial dates.
var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// SerialDate converts a spreadsheet serial date into DateLayout. The time
// of day is dropped.
func SerialDate(serial float64) string {
	return serialEpoch.AddDate(0, 0, int(math.Floor(serial))).Format(DateLayout)
}

// FormatDate formats t in DateLayout.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
