// ABOUTME: Row codec between flat sheet rows and Lead records
// ABOUTME: Decodes through the schema map with type coercion and encodes back to row order
package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/harperreed/leadsheet/models"
)

var knownByKey = func() map[string]models.FieldSpec {
	m := make(map[string]models.FieldSpec, len(models.LeadFields))
	for _, f := range models.LeadFields {
		m[Normalize(f.Header)] = f
	}
	return m
}()

// CellString renders an unformatted cell value as text.
func CellString(v interface{}) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(c)
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	case bool:
		if c {
			return "TRUE"
		}
		return "FALSE"
	case int:
		return strconv.Itoa(c)
	case int64:
		return strconv.FormatInt(c, 10)
	default:
		return strings.TrimSpace(fmt.Sprint(c))
	}
}

func cellAt(row []interface{}, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return CellString(row[idx])
}

// dateAt reads a date cell, which the sheet returns as a serial number when
// it holds a real date and as text otherwise.
func dateAt(row []interface{}, idx int) string {
	if idx >= 0 && idx < len(row) {
		if serial, ok := row[idx].(float64); ok {
			return SerialDate(serial)
		}
	}
	return NormalizeDate(cellAt(row, idx))
}

// DerivePriority maps an estimated quantity onto the priority ladder.
func DerivePriority(qty int) string {
	switch {
	case qty >= 100:
		return models.PriorityHigh
	case qty >= 50:
		return models.PriorityMedium
	case qty > 0:
		return models.PriorityLow
	default:
		return models.PriorityNone
	}
}

// DecodeLead turns a sheet row into a lead. Fields whose header is not in
// the map decode as empty; unknown non-empty columns land in Extra.
func DecodeLead(row []interface{}, m *Map) models.Lead {
	lead := models.Lead{RowIndex: -1}
	for _, f := range models.LeadFields {
		idx, ok := m.Index[Normalize(f.Header)]
		if !ok {
			continue
		}
		if f.Kind == models.FieldDate {
			f.Assign(&lead, dateAt(row, idx))
			continue
		}
		f.Assign(&lead, cellAt(row, idx))
	}

	for idx, h := range m.Headers {
		key := Normalize(h)
		if key == "" || m.Index[key] != idx {
			continue
		}
		if _, known := knownByKey[key]; known {
			continue
		}
		if value := cellAt(row, idx); value != "" {
			if lead.Extra == nil {
				lead.Extra = make(map[string]string)
			}
			lead.Extra[h] = value
		}
	}

	if lead.Status == "" {
		lead.Status = lead.Stage
	}
	if lead.Status == "" {
		lead.Status = models.StageNew
	}
	lead.Stage = lead.Status

	if lead.Priority == "" || strings.EqualFold(lead.Priority, models.PriorityUnset) {
		lead.Priority = DerivePriority(lead.EstimatedQty)
	}
	return lead
}

// EncodeLead writes a lead into a row sized to the widest mapped column.
// Unmapped cells are empty strings.
func EncodeLead(lead models.Lead, m *Map) []interface{} {
	row := make([]interface{}, m.Width())
	for i := range row {
		row[i] = ""
	}
	lead.Stage = lead.CurrentStage()
	for _, f := range models.LeadFields {
		idx, ok := m.Index[Normalize(f.Header)]
		if !ok {
			continue
		}
		row[idx] = f.Value(&lead)
	}
	for header, value := range lead.Extra {
		key := Normalize(header)
		if _, known := knownByKey[key]; known {
			continue
		}
		if idx, ok := m.Index[key]; ok {
			row[idx] = value
		}
	}
	return row
}

// DecodeLeads decodes a full leads range whose first row is the header.
// Row indexes are 1-based sheet rows, so the first data row is 2. Blank rows
// are skipped and rows without an id get a stable ROW-<n> id.
func DecodeLeads(values [][]interface{}) (*Map, []models.Lead) {
	if len(values) == 0 {
		return DefaultMap(), nil
	}
	m := BuildFromRow(values[0])
	leads := make([]models.Lead, 0, len(values)-1)
	for i, row := range values[1:] {
		if isBlank(row) {
			continue
		}
		lead := DecodeLead(row, m)
		lead.RowIndex = i + 2
		if lead.LeadID == "" {
			lead.LeadID = fmt.Sprintf("ROW-%d", lead.RowIndex)
		}
		leads = append(leads, lead)
	}
	return m, leads
}

func isBlank(row []interface{}) bool {
	for _, cell := range row {
		if CellString(cell) != "" {
			return false
		}
	}
	return true
}
