// ABOUTME: Lead deduplication and matching logic
// ABOUTME: Finds existing leads by email or phone number before a new one is added
package sync

import (
	"strings"
	"unicode"

	"github.com/harperreed/leadsheet/models"
)

type LeadMatcher struct {
	byEmail  map[string]*models.Lead
	byNumber map[string]*models.Lead
}

// NewLeadMatcher creates a matcher from existing leads.
func NewLeadMatcher(leads []models.Lead) *LeadMatcher {
	m := &LeadMatcher{
		byEmail:  make(map[string]*models.Lead),
		byNumber: make(map[string]*models.Lead),
	}
	for i := range leads {
		m.AddLead(&leads[i])
	}
	return m
}

// FindMatch looks for an existing lead by email, then by phone number.
func (m *LeadMatcher) FindMatch(email, number string) (*models.Lead, bool) {
	if e := normalizeEmail(email); e != "" {
		if lead, found := m.byEmail[e]; found {
			return lead, true
		}
	}
	if n := normalizeNumber(number); n != "" {
		if lead, found := m.byNumber[n]; found {
			return lead, true
		}
	}
	return nil, false
}

// AddLead adds a lead to the matcher to catch duplicates within one batch.
func (m *LeadMatcher) AddLead(lead *models.Lead) {
	if e := normalizeEmail(lead.Email); e != "" {
		m.byEmail[e] = lead
	}
	if n := normalizeNumber(lead.Number); n != "" {
		m.byNumber[n] = lead
	}
}

// normalizeEmail converts email to lowercase for comparison.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// normalizeNumber keeps the last ten digits so country prefixes and
// punctuation do not matter. Numbers shorter than seven digits are ignored.
func normalizeNumber(number string) string {
	var digits []rune
	for _, r := range number {
		if unicode.IsDigit(r) {
			digits = append(digits, r)
		}
	}
	if len(digits) < 7 {
		return ""
	}
	if len(digits) > 10 {
		digits = digits[len(digits)-10:]
	}
	return string(digits)
}
