package index

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/jera/internal/auditlog"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMigrateFromAudit(t *testing.T) {
	db := testDB(t)
	log := auditlog.New(filepath.Join(t.TempDir(), "captures.jsonl"), quietLogger())

	recs := []auditlog.Record{
		{ID: "2025-12-10_080000", TS: "2025-12-10T08:00:00Z", Path: "/p/2025-12-10_080000.jpg", Action: "capture", Mood: strptr("tired")},
		{ID: "2025-12-12_074512", TS: "2025-12-12T07:45:12Z", Path: "/p/2025-12-12_074512.jpg", Action: "capture", Width: intptr(1280), Height: intptr(720)},
		{ID: "2025-12-10_080000", TS: "2025-12-11T09:00:00Z", Action: "delete", Reason: "manual"},
	}
	for _, r := range recs {
		if err := log.Append(r); err != nil {
			t.Fatal(err)
		}
	}

	n, err := MigrateFromAudit(db, log, quietLogger())
	if err != nil {
		t.Fatalf("MigrateFromAudit: %v", err)
	}
	if n != 3 {
		t.Errorf("imported %d, want 3", n)
	}

	// last record for an id wins, so the first capture is now a tombstone
	row, err := db.GetByID("2025-12-10_080000")
	if err != nil {
		t.Fatal(err)
	}
	if row == nil || row.Action != ActionDelete {
		t.Errorf("replay should leave the delete: %+v", row)
	}

	latest, err := db.LatestCapture()
	if err != nil {
		t.Fatal(err)
	}
	if latest == nil || latest.ID != "2025-12-12_074512" {
		t.Errorf("latest: %+v", latest)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t)
	log := auditlog.New(filepath.Join(t.TempDir(), "captures.jsonl"), quietLogger())
	if err := log.Append(auditlog.Record{ID: "a", TS: "2025-01-01T00:00:00Z", Path: "/p/a.jpg", Action: "capture"}); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if _, err := MigrateFromAudit(db, log, quietLogger()); err != nil {
			t.Fatal(err)
		}
	}

	n, err := db.Count()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("count after double migrate: got %d, want 1", n)
	}
}

func TestMigrateFallbacks(t *testing.T) {
	db := testDB(t)
	path := filepath.Join(t.TempDir(), "captures.jsonl")
	log := auditlog.New(path, quietLogger())

	// legacy line: no id, no action; id derives from the path stem
	if err := log.Append(auditlog.Record{TS: "2025-02-02T10:00:00Z", Path: "/p/2025-02-02_100000.jpg"}); err != nil {
		t.Fatal(err)
	}
	// no id and no path: skipped
	if err := log.Append(auditlog.Record{TS: "2025-02-03T10:00:00Z"}); err != nil {
		t.Fatal(err)
	}
	// malformed line: skipped by the reader
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("not-json\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	n, err := MigrateFromAudit(db, log, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("imported %d, want 1", n)
	}

	row, err := db.GetByID("2025-02-02_100000")
	if err != nil {
		t.Fatal(err)
	}
	if row == nil {
		t.Fatal("stem-derived row not found")
	}
	if row.Action != ActionCapture {
		t.Errorf("default action: got %q, want capture", row.Action)
	}
}
