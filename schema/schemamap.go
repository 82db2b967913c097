// ABOUTME: Schema map from normalized header to column index
// ABOUTME: Built fresh from each fetched header row and diffed against the expected schema
package schema

import (
	"sort"
	"strings"

	"github.com/harperreed/leadsheet/models"
)

// ExpectedSchemaVersion is bumped whenever ExpectedHeader changes.
const ExpectedSchemaVersion = 3

// ExpectedHeader is the canonical header line of the leads table.
const ExpectedHeader = "Lead ID,Date,Company Name,Contact Person,Number,Email,City,Source,Category," +
	"Customer Type,Platform Type,Integration Ready,Print Type,Product Type,Estimated Qty,Order Info," +
	"Sample Required,Sample Status,Status,Stage,YDS POC,Priority,Next Action,Next Action Date," +
	"Stage Changed Date,Last Contact Date,Won Date,Lost Date,Lost Reason,Remarks,Days Open,SLA Status,SLA Health"

// ExpectedHeaders returns ExpectedHeader split into labels.
func ExpectedHeaders() []string {
	return strings.Split(ExpectedHeader, ",")
}

// Map resolves normalized header keys to zero-based column indexes.
// A Map is never modified after Build returns it.
type Map struct {
	Headers []string       `json:"headers"`
	Index   map[string]int `json:"index"`

	duplicates []string
}

// Build creates a map from a raw header row. When two columns normalize to
// the same key the first one wins.
func Build(headers []string) *Map {
	m := &Map{
		Headers: append([]string(nil), headers...),
		Index:   make(map[string]int, len(headers)),
	}
	for i, h := range headers {
		key := Normalize(h)
		if key == "" {
			continue
		}
		if _, exists := m.Index[key]; exists {
			m.duplicates = append(m.duplicates, h)
			continue
		}
		m.Index[key] = i
	}
	return m
}

// BuildFromRow builds a map from a fetched header row of raw cell values.
func BuildFromRow(row []interface{}) *Map {
	headers := make([]string, len(row))
	for i, cell := range row {
		headers[i] = CellString(cell)
	}
	return Build(headers)
}

// DefaultMap is the map of the canonical header, used when no sheet header
// has been seen yet.
func DefaultMap() *Map {
	return Build(ExpectedHeaders())
}

// Column returns the index for a header label in any casing or spacing.
func (m *Map) Column(header string) (int, bool) {
	if m == nil {
		return 0, false
	}
	idx, ok := m.Index[Normalize(header)]
	return idx, ok
}

// Width is the highest mapped index plus one.
func (m *Map) Width() int {
	width := 0
	for _, idx := range m.Index {
		if idx+1 > width {
			width = idx + 1
		}
	}
	return width
}

// Report diffs the map against the expected leads schema.
func (m *Map) Report() models.SchemaReport {
	var report models.SchemaReport
	expected := make(map[string]bool)
	for _, h := range ExpectedHeaders() {
		key := Normalize(h)
		expected[key] = true
		if _, ok := m.Index[key]; !ok {
			report.Missing = append(report.Missing, h)
		}
	}
	for _, h := range m.Headers {
		key := Normalize(h)
		if key != "" && !expected[key] {
			report.Unknown = append(report.Unknown, h)
		}
	}
	report.Duplicates = append(report.Duplicates, m.duplicates...)
	sort.Strings(report.Unknown)
	return report
}
