// ABOUTME: Remote tabular store abstraction and range helpers
// ABOUTME: The engine talks to the spreadsheet only through RemoteStore
package sync

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/harperreed/leadsheet/config"
)

var (
	// ErrReadOnly is returned by stores that cannot write.
	ErrReadOnly = errors.New("remote store is read-only")

	// ErrRemoteWrite wraps every failed remote append, update or clear.
	ErrRemoteWrite = errors.New("remote write failed")
)

// RemoteStore reads and writes A1 ranges of one spreadsheet.
type RemoteStore interface {
	// BatchGet fetches several ranges in one call, in order.
	BatchGet(ctx context.Context, ranges []string) ([][][]interface{}, error)
	Get(ctx context.Context, rng string) ([][]interface{}, error)
	// Append adds a row after the table in rng and returns the written range.
	Append(ctx context.Context, rng string, row []interface{}) (string, error)
	Update(ctx context.Context, rng string, rows [][]interface{}) error
	Clear(ctx context.Context, rng string) error
}

// Ranges are the A1 ranges of every table the engine reads.
type Ranges struct {
	Leads         string
	StageRules    string
	SLARules      string
	AutoActions   string
	CategoryRules string
	Settings      string
}

// RangesFor builds the ranges for the configured tab names.
func RangesFor(s config.SheetNames) Ranges {
	return Ranges{
		Leads:         quoteSheet(s.Leads) + "!A1:AZ5000",
		StageRules:    quoteSheet(s.StageRules) + "!A1:E500",
		SLARules:      quoteSheet(s.SLARules) + "!A1:C500",
		AutoActions:   quoteSheet(s.AutoActions) + "!A1:C500",
		CategoryRules: quoteSheet(s.CategoryRules) + "!A1:D500",
		Settings:      quoteSheet(s.Settings) + "!A1:Z500",
	}
}

// All lists the ranges in fetch order; the leads range is first.
func (r Ranges) All() []string {
	return []string{r.Leads, r.StageRules, r.SLARules, r.AutoActions, r.CategoryRules, r.Settings}
}

var plainSheetName = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func quoteSheet(name string) string {
	if plainSheetName.MatchString(name) {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// sheetOf returns the sheet part of an A1 range such as "Leads!A1:AZ5000".
func sheetOf(rng string) string {
	for i := len(rng) - 1; i >= 0; i-- {
		if rng[i] == '!' {
			return rng[:i]
		}
	}
	return rng
}

// RowRange addresses a single row of the sheet in rng.
func RowRange(rng string, row int) string {
	return fmt.Sprintf("%s!A%d", sheetOf(rng), row)
}

var updatedRowPattern = regexp.MustCompile(`![A-Z]+(\d+)`)

// ParseUpdatedRow extracts the first row number from a range like "Leads!A42:AG42".
func ParseUpdatedRow(updatedRange string) (int, error) {
	m := updatedRowPattern.FindStringSubmatch(updatedRange)
	if m == nil {
		return 0, fmt.Errorf("no row in updated range %q", updatedRange)
	}
	return strconv.Atoi(m[1])
}
