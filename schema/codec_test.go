// ABOUTME: Tests for the header normalizer, schema map, and row codec
// ABOUTME: Covers round-trips over header permutations, drift tolerance, and priority derivation
package schema

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/leadsheet/models"
)

func fullLead() models.Lead {
	return models.Lead{
		LeadID:           "L-100",
		Date:             "2026-01-05",
		CompanyName:      "Acme Prints",
		ContactPerson:    "Asha Rao",
		Number:           "9876543210",
		Email:            "asha@acme.test",
		City:             "Pune",
		Source:           "Website",
		Category:         "Dropshipping",
		CustomerType:     "D2C Brand",
		PlatformType:     "Shopify",
		IntegrationReady: "Yes",
		PrintType:        "DTG",
		ProductType:      "T-Shirt",
		EstimatedQty:     250,
		OrderInfo:        "Monthly drops",
		SampleRequired:   "Yes",
		SampleStatus:     "Delivered",
		Status:           "Negotiation",
		Stage:            "Negotiation",
		YdsPoc:           "Ravi",
		Priority:         "High",
		NextAction:       "Send revised quote",
		NextActionDate:   "2026-02-01",
		StageChangedDate: "2026-01-20",
		LastContactDate:  "2026-01-22",
		WonDate:          "2026-03-01",
		LostDate:         "2026-03-02",
		LostReason:       "Budget",
		Remarks:          "Prefers email",
		DaysOpen:         17,
		SLAStatus:        "OK",
		SLAHealth:        "Healthy",
		RowIndex:         -1,
		Extra:            map[string]string{"GST Number": "27ABCDE1234F1Z5"},
	}
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Lead ID":             "lead_id",
		"  lead   ID ":        "lead_id",
		"LEAD_ID":             "lead_id",
		"lead-id":             "lead_id",
		"Next\tAction  Date":  "next_action_date",
		"YDS POC":             "yds_poc",
		"":                    "",
		"   ":                 "",
		"__Stage__":           "stage",
		"Sample  -  Required": "sample_required",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), "Normalize(%q)", in)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := append(ExpectedHeaders(), "  Weird__Header -- X ", "ÉTAT Lead", "\tTabbed\n")
	for _, h := range inputs {
		once := Normalize(h)
		assert.Equal(t, once, Normalize(once), "normalize must be idempotent for %q", h)
	}
}

func TestNormalizeDriftInvariant(t *testing.T) {
	for _, h := range ExpectedHeaders() {
		want := Normalize(h)
		assert.Equal(t, want, Normalize(strings.ToUpper(h)))
		assert.Equal(t, want, Normalize(strings.ToLower(h)))
		assert.Equal(t, want, Normalize("  "+strings.ReplaceAll(h, " ", "   ")+" "))
	}
}

func TestExpectedHeaderMatchesFieldTable(t *testing.T) {
	headers := ExpectedHeaders()
	require.Len(t, headers, len(models.LeadFields))
	for i, f := range models.LeadFields {
		assert.Equal(t, f.Header, headers[i])
	}
}

func TestRoundTripOverPermutations(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	base := append(ExpectedHeaders(), "GST Number")

	for i := 0; i < 25; i++ {
		headers := append([]string(nil), base...)
		rng.Shuffle(len(headers), func(a, b int) { headers[a], headers[b] = headers[b], headers[a] })
		m := Build(headers)

		lead := fullLead()
		got := DecodeLead(EncodeLead(lead, m), m)
		assert.Equal(t, lead, got, "permutation %d: %v", i, headers)
	}
}

func TestRoundTripWithDriftedHeaders(t *testing.T) {
	headers := ExpectedHeaders()
	for i, h := range headers {
		if i%2 == 0 {
			headers[i] = "  " + strings.ToUpper(h) + " "
		} else {
			headers[i] = strings.ReplaceAll(strings.ToLower(h), " ", "_")
		}
	}
	m := Build(headers)
	lead := fullLead()
	lead.Extra = nil

	assert.Equal(t, lead, DecodeLead(EncodeLead(lead, m), m))
}

func TestDecodeMissingColumnsAreEmpty(t *testing.T) {
	m := Build([]string{"Lead ID", "Company Name", "Status"})
	lead := DecodeLead([]interface{}{"L-1", "Acme"}, m)

	assert.Equal(t, "L-1", lead.LeadID)
	assert.Equal(t, "Acme", lead.CompanyName)
	assert.Equal(t, models.StageNew, lead.Status, "short row leaves status empty, defaulting to New")
	assert.Empty(t, lead.Email)
	assert.Empty(t, lead.NextActionDate)
}

func TestDecodeCoercion(t *testing.T) {
	m := Build([]string{"Lead ID", "Estimated Qty", "Next Action Date", "Days Open", "Status", "Priority"})

	lead := DecodeLead([]interface{}{"L-2", "lots", "05/02/2026", float64(3), "Qualified", ""}, m)
	assert.Equal(t, 0, lead.EstimatedQty, "unparseable integers default to 0")
	assert.Equal(t, "2026-02-05", lead.NextActionDate, "DD/MM/YYYY is read and rewritten canonically")
	assert.Equal(t, 3, lead.DaysOpen)

	lead = DecodeLead([]interface{}{"L-3", float64(75), "", nil, "Qualified", ""}, m)
	assert.Equal(t, 75, lead.EstimatedQty)
	assert.Empty(t, lead.NextActionDate, "empty dates stay empty")
}

func TestDecodeSerialDates(t *testing.T) {
	m := Build([]string{"Lead ID", "Date", "Next Action Date"})
	lead := DecodeLead([]interface{}{"L-5", float64(46093), 46094.75}, m)
	assert.Equal(t, "2026-03-12", lead.Date)
	assert.Equal(t, "2026-03-13", lead.NextActionDate, "time of day is dropped")
}

func TestEncodeKeepsTextCells(t *testing.T) {
	m := Build([]string{"Lead ID", "Number", "Remarks", "Next Action Date"})
	lead := models.Lead{LeadID: "L-6", Number: "0987654321", Remarks: "=SUM(A1:A2)", NextActionDate: "2026-03-12"}

	row := EncodeLead(lead, m)
	assert.Equal(t, "0987654321", row[1], "leading zeros are kept as text")
	assert.Equal(t, "=SUM(A1:A2)", row[2])

	back := DecodeLead(row, m)
	assert.Equal(t, "0987654321", back.Number)
	assert.Equal(t, "=SUM(A1:A2)", back.Remarks)
	assert.Equal(t, "2026-03-12", back.NextActionDate)
}

func TestDecodeUnparseableDateKept(t *testing.T) {
	m := Build([]string{"Lead ID", "Next Action Date"})
	lead := DecodeLead([]interface{}{"L-4", "next week"}, m)
	assert.Equal(t, "next week", lead.NextActionDate)
}

func TestPriorityDerivation(t *testing.T) {
	m := Build([]string{"Lead ID", "Estimated Qty", "Priority"})

	lead := DecodeLead([]interface{}{"L-5", float64(120), ""}, m)
	assert.Equal(t, models.PriorityHigh, lead.Priority)

	lead = DecodeLead([]interface{}{"L-6", float64(0), ""}, m)
	assert.Equal(t, models.PriorityNone, lead.Priority)

	lead = DecodeLead([]interface{}{"L-7", float64(60), "Unset"}, m)
	assert.Equal(t, models.PriorityMedium, lead.Priority)

	lead = DecodeLead([]interface{}{"L-8", float64(5), ""}, m)
	assert.Equal(t, models.PriorityLow, lead.Priority)

	lead = DecodeLead([]interface{}{"L-9", float64(500), "Low"}, m)
	assert.Equal(t, "Low", lead.Priority, "explicit priority is never overridden")
}

func TestStatusStageReconciled(t *testing.T) {
	m := Build([]string{"Lead ID", "Status", "Stage"})

	lead := DecodeLead([]interface{}{"L-1", "", "Proposal"}, m)
	assert.Equal(t, "Proposal", lead.Status)
	assert.Equal(t, "Proposal", lead.Stage)

	lead = DecodeLead([]interface{}{"L-1", "Won", "Proposal"}, m)
	assert.Equal(t, "Won", lead.Status)
	assert.Equal(t, "Won", lead.Stage)
}

func TestEncodeSizesToWidestMappedColumn(t *testing.T) {
	m := Build([]string{"", "Lead ID", "", "", "Company Name"})
	row := EncodeLead(models.Lead{LeadID: "L-1", CompanyName: "Acme", Status: "New"}, m)

	require.Len(t, row, 5)
	assert.Equal(t, "", row[0])
	assert.Equal(t, "L-1", row[1])
	assert.Equal(t, "", row[2])
	assert.Equal(t, "Acme", row[4])
}

func TestDecodeLeadsAssignsRowIndexes(t *testing.T) {
	values := [][]interface{}{
		{"Lead ID", "Company Name", "Status"},
		{"L-1", "Acme", "New"},
		{},
		{"", "Nameless Co", "Contacted"},
	}

	m, leads := DecodeLeads(values)
	require.NotNil(t, m)
	require.Len(t, leads, 2)
	assert.Equal(t, 2, leads[0].RowIndex)
	assert.Equal(t, 4, leads[1].RowIndex)
	assert.Equal(t, "ROW-4", leads[1].LeadID)
}

func TestSchemaReport(t *testing.T) {
	headers := ExpectedHeaders()
	headers = append(headers[:3], headers[4:]...) // drop Contact Person
	headers = append(headers, "GST Number", "lead id")

	report := Build(headers).Report()
	assert.Equal(t, []string{"Contact Person"}, report.Missing)
	assert.Equal(t, []string{"GST Number"}, report.Unknown)
	assert.Equal(t, []string{"lead id"}, report.Duplicates)
	assert.False(t, report.OK())

	assert.True(t, DefaultMap().Report().OK())
}

func TestCellString(t *testing.T) {
	assert.Equal(t, "", CellString(nil))
	assert.Equal(t, "12", CellString(float64(12)))
	assert.Equal(t, "12.5", CellString(12.5))
	assert.Equal(t, "TRUE", CellString(true))
	assert.Equal(t, "abc", CellString("  abc "))
}
