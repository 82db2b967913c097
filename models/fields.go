// ABOUTME: Field table describing every logical Lead column
// ABOUTME: Gives the codec and the rule engine keyed access to Lead fields
package models

import "strconv"

// FieldKind controls how a cell is coerced.
type FieldKind int

const (
	FieldText FieldKind = iota
	FieldInt
	FieldDate
)

// FieldSpec ties a logical field key to its canonical sheet header.
type FieldSpec struct {
	Key    string
	Header string
	Kind   FieldKind
	get    func(*Lead) string
	set    func(*Lead, string)
}

func text(key, header string, ptr func(*Lead) *string) FieldSpec {
	return FieldSpec{
		Key:    key,
		Header: header,
		Kind:   FieldText,
		get:    func(l *Lead) string { return *ptr(l) },
		set:    func(l *Lead, v string) { *ptr(l) = v },
	}
}

func date(key, header string, ptr func(*Lead) *string) FieldSpec {
	f := text(key, header, ptr)
	f.Kind = FieldDate
	return f
}

func integer(key, header string, ptr func(*Lead) *int) FieldSpec {
	return FieldSpec{
		Key:    key,
		Header: header,
		Kind:   FieldInt,
		get:    func(l *Lead) string { return strconv.Itoa(*ptr(l)) },
		set: func(l *Lead, v string) {
			n, err := strconv.Atoi(v)
			if err != nil {
				f, ferr := strconv.ParseFloat(v, 64)
				if ferr != nil {
					n = 0
				} else {
					n = int(f)
				}
			}
			*ptr(l) = n
		},
	}
}

// LeadFields lists the known columns in canonical order.
var LeadFields = []FieldSpec{
	text("leadId", "Lead ID", func(l *Lead) *string { return &l.LeadID }),
	date("date", "Date", func(l *Lead) *string { return &l.Date }),
	text("companyName", "Company Name", func(l *Lead) *string { return &l.CompanyName }),
	text("contactPerson", "Contact Person", func(l *Lead) *string { return &l.ContactPerson }),
	text("number", "Number", func(l *Lead) *string { return &l.Number }),
	text("email", "Email", func(l *Lead) *string { return &l.Email }),
	text("city", "City", func(l *Lead) *string { return &l.City }),
	text("source", "Source", func(l *Lead) *string { return &l.Source }),
	text("category", "Category", func(l *Lead) *string { return &l.Category }),
	text("customerType", "Customer Type", func(l *Lead) *string { return &l.CustomerType }),
	text("platformType", "Platform Type", func(l *Lead) *string { return &l.PlatformType }),
	text("integrationReady", "Integration Ready", func(l *Lead) *string { return &l.IntegrationReady }),
	text("printType", "Print Type", func(l *Lead) *string { return &l.PrintType }),
	text("productType", "Product Type", func(l *Lead) *string { return &l.ProductType }),
	integer("estimatedQty", "Estimated Qty", func(l *Lead) *int { return &l.EstimatedQty }),
	text("orderInfo", "Order Info", func(l *Lead) *string { return &l.OrderInfo }),
	text("sampleRequired", "Sample Required", func(l *Lead) *string { return &l.SampleRequired }),
	text("sampleStatus", "Sample Status", func(l *Lead) *string { return &l.SampleStatus }),
	text("status", "Status", func(l *Lead) *string { return &l.Status }),
	text("stage", "Stage", func(l *Lead) *string { return &l.Stage }),
	text("ydsPoc", "YDS POC", func(l *Lead) *string { return &l.YdsPoc }),
	text("priority", "Priority", func(l *Lead) *string { return &l.Priority }),
	text("nextAction", "Next Action", func(l *Lead) *string { return &l.NextAction }),
	date("nextActionDate", "Next Action Date", func(l *Lead) *string { return &l.NextActionDate }),
	date("stageChangedDate", "Stage Changed Date", func(l *Lead) *string { return &l.StageChangedDate }),
	date("lastContactDate", "Last Contact Date", func(l *Lead) *string { return &l.LastContactDate }),
	date("wonDate", "Won Date", func(l *Lead) *string { return &l.WonDate }),
	date("lostDate", "Lost Date", func(l *Lead) *string { return &l.LostDate }),
	text("lostReason", "Lost Reason", func(l *Lead) *string { return &l.LostReason }),
	text("remarks", "Remarks", func(l *Lead) *string { return &l.Remarks }),
	integer("daysOpen", "Days Open", func(l *Lead) *int { return &l.DaysOpen }),
	text("slaStatus", "SLA Status", func(l *Lead) *string { return &l.SLAStatus }),
	text("slaHealth", "SLA Health", func(l *Lead) *string { return &l.SLAHealth }),
}

// QuantityFields are fields where a zero value counts as missing.
var QuantityFields = map[string]bool{
	"estimatedQty": true,
}

var fieldsByKey = func() map[string]FieldSpec {
	m := make(map[string]FieldSpec, len(LeadFields))
	for _, f := range LeadFields {
		m[f.Key] = f
	}
	return m
}()

// LookupField returns the spec for a field key.
func LookupField(key string) (FieldSpec, bool) {
	f, ok := fieldsByKey[key]
	return f, ok
}

// Value reads this field from a lead.
func (f FieldSpec) Value(l *Lead) string {
	return f.get(l)
}

// Assign writes a raw string into this field, coercing integers.
func (f FieldSpec) Assign(l *Lead, v string) {
	f.set(l, v)
}

// Get returns a field value by key.
func (l *Lead) Get(key string) (string, bool) {
	f, ok := fieldsByKey[key]
	if !ok {
		return "", false
	}
	return f.get(l), true
}

// Set assigns a field by key. Unknown keys return false.
func (l *Lead) Set(key, value string) bool {
	f, ok := fieldsByKey[key]
	if !ok {
		return false
	}
	f.set(l, value)
	return true
}
