// ABOUTME: Sheets API implementation of RemoteStore
// ABOUTME: Writes are RAW so cells keep their text; dates are read as serial numbers
package sync

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsStore reads and writes one spreadsheet.
type SheetsStore struct {
	service       *sheets.Service
	spreadsheetID string
	readOnly      bool
}

// NewSheetsStore creates a read/write store from an OAuth token source.
func NewSheetsStore(ctx context.Context, spreadsheetID string, ts oauth2.TokenSource) (*SheetsStore, error) {
	if ts == nil {
		return nil, ErrNoSession
	}
	service, err := sheets.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, ts)))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &SheetsStore{service: service, spreadsheetID: spreadsheetID}, nil
}

// NewPublicSheetsStore creates a read-only store for a publicly shared
// spreadsheet using an API key.
func NewPublicSheetsStore(ctx context.Context, spreadsheetID, apiKey string) (*SheetsStore, error) {
	service, err := sheets.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create public sheets service: %w", err)
	}
	return &SheetsStore{service: service, spreadsheetID: spreadsheetID, readOnly: true}, nil
}

// ReadOnly reports whether writes are refused.
func (s *SheetsStore) ReadOnly() bool {
	return s.readOnly
}

func (s *SheetsStore) BatchGet(ctx context.Context, ranges []string) ([][][]interface{}, error) {
	resp, err := s.service.Spreadsheets.Values.BatchGet(s.spreadsheetID).
		Ranges(ranges...).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("SERIAL_NUMBER").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to batch get ranges: %w", err)
	}
	out := make([][][]interface{}, len(ranges))
	for i, vr := range resp.ValueRanges {
		if i < len(out) && vr != nil {
			out[i] = vr.Values
		}
	}
	return out, nil
}

func (s *SheetsStore) Get(ctx context.Context, rng string) ([][]interface{}, error) {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("SERIAL_NUMBER").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get range %s: %w", rng, err)
	}
	return resp.Values, nil
}

func (s *SheetsStore) Append(ctx context.Context, rng string, row []interface{}) (string, error) {
	if s.readOnly {
		return "", ErrReadOnly
	}
	resp, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, rng, &sheets.ValueRange{
		Values: [][]interface{}{row},
	}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to append to %s: %w", rng, err)
	}
	if resp.Updates == nil {
		return "", fmt.Errorf("append to %s returned no updated range", rng)
	}
	return resp.Updates.UpdatedRange, nil
}

func (s *SheetsStore) Update(ctx context.Context, rng string, rows [][]interface{}) error {
	if s.readOnly {
		return ErrReadOnly
	}
	_, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, rng, &sheets.ValueRange{
		Values: rows,
	}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", rng, err)
	}
	return nil
}

func (s *SheetsStore) Clear(ctx context.Context, rng string) error {
	if s.readOnly {
		return ErrReadOnly
	}
	_, err := s.service.Spreadsheets.Values.Clear(s.spreadsheetID, rng, &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to clear %s: %w", rng, err)
	}
	return nil
}
