// ABOUTME: Test utilities for creating isolated kv clients
// ABOUTME: Uses in-memory BadgerDB so tests never touch the user's data directory

package kv

import (
	"testing"
)

// NewTestClient creates an in-memory client that is closed when the test ends.
func NewTestClient(t testing.TB) *Client {
	t.Helper()

	c, err := OpenInMemory()
	if err != nil {
		t.Fatalf("Failed to open in-memory kv: %v", err)
	}
	t.Cleanup(func() {
		if err := c.Close(); err != nil {
			t.Logf("Warning: failed to close test kv: %v", err)
		}
	})
	return c
}
