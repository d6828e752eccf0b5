// Package testutil provides shared test helpers for setting up journal
// services and databases.
package testutil

import (
	"io"
	"log/slog"
	"testing"

	"github.com/starford/jera/internal/journal"
)

// Logger returns a quiet logger for tests.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestJournal creates a journal service over temporary data and photos
// directories, cleaned up with the test.
func TestJournal(t *testing.T) *journal.Service {
	t.Helper()
	svc, err := journal.New(t.TempDir(), t.TempDir(), Logger())
	if err != nil {
		t.Fatalf("journal.New: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}
