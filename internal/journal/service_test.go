package journal

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/starford/jera/internal/apperr"
	"github.com/starford/jera/internal/index"
	"github.com/starford/jera/internal/sidecar"
)

// newTestService builds a service over temp dirs with a fixed clock.
func newTestService(t *testing.T, at time.Time) *Service {
	t.Helper()
	svc, err := New(t.TempDir(), t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	svc.now = func() time.Time { return at }
	t.Cleanup(func() { svc.Close() })
	return svc
}

func strptr(s string) *string { return &s }

var testTS = time.Date(2025, 12, 12, 7, 45, 12, 0, time.UTC)

func TestRecordCaptureAndGet(t *testing.T) {
	svc := newTestService(t, testTS)

	e := NewCapture(testTS, "/photos/2025/12/2025-12-12_074512.jpg", 1280, 720)
	rec, err := svc.RecordCapture(e)
	if err != nil {
		t.Fatalf("RecordCapture: %v", err)
	}
	if rec.ID != "2025-12-12_074512" {
		t.Errorf("id: %q", rec.ID)
	}
	if rec.Resolution == nil || *rec.Resolution != "1280x720" {
		t.Errorf("resolution: %+v", rec.Resolution)
	}
	if rec.Action != index.ActionCapture {
		t.Errorf("action: %q", rec.Action)
	}
	if rec.CreatedAt <= 0 {
		t.Errorf("created_at: %v", rec.CreatedAt)
	}

	// a stub sidecar was created alongside
	if rec.EditedAt == nil {
		t.Error("stub sidecar should supply edited_at")
	}

	got, err := svc.GetItem(rec.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.ID != rec.ID || got.TS != "2025-12-12T07:45:12Z" {
		t.Errorf("got %+v", got)
	}
}

func TestRecordCaptureRejectsInvalid(t *testing.T) {
	svc := newTestService(t, testTS)

	// deletion entry handed to the capture path
	if _, err := svc.RecordCapture(NewDeletion("2025-12-12_074512", testTS, "x")); !errors.Is(err, apperr.ErrInvalidEntry) {
		t.Errorf("wrong action: got %v", err)
	}

	// capture without a path
	e := NewCapture(testTS, "", 0, 0)
	if _, err := svc.RecordCapture(e); !errors.Is(err, apperr.ErrInvalidEntry) {
		t.Errorf("missing path: got %v", err)
	}

	// malformed id
	e = NewCapture(testTS, "/p/x.jpg", 0, 0)
	e.ID = "not-an-id"
	if _, err := svc.RecordCapture(e); !errors.Is(err, apperr.ErrInvalidEntry) {
		t.Errorf("bad id: got %v", err)
	}
}

func TestRecordDeletion(t *testing.T) {
	svc := newTestService(t, testTS)

	e := NewCapture(testTS, "/p/2025-12-12_074512.jpg", 0, 0)
	if _, err := svc.RecordCapture(e); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.UpdateMeta(e.ID, index.FieldPatch{Mood: strptr("happy")}); err != nil {
		t.Fatal(err)
	}

	rec, err := svc.RecordDeletion(e.ID, "manual")
	if err != nil {
		t.Fatalf("RecordDeletion: %v", err)
	}
	if rec.Action != index.ActionDelete {
		t.Errorf("action: %q", rec.Action)
	}

	// the sidecar is gone, so no mood survives on the tombstone
	got, err := svc.GetItem(e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Mood != nil {
		t.Errorf("mood should be gone with the sidecar: %q", *got.Mood)
	}
	if got.EditedAt != nil {
		t.Errorf("edited_at should be gone: %q", *got.EditedAt)
	}
}

func TestListMonthMergesSidecar(t *testing.T) {
	svc := newTestService(t, testTS)

	first := NewCapture(time.Date(2025, 12, 10, 8, 0, 0, 0, time.UTC), "/p/a.jpg", 0, 0)
	second := NewCapture(testTS, "/p/b.jpg", 1280, 720)
	for _, e := range []Entry{first, second} {
		if _, err := svc.RecordCapture(e); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := svc.UpdateMeta(second.ID, index.FieldPatch{Mood: strptr("happy"), Notes: strptr("snow")}); err != nil {
		t.Fatal(err)
	}

	items, err := svc.ListMonth(2025, 12)
	if err != nil {
		t.Fatalf("ListMonth: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].ID != first.ID || items[1].ID != second.ID {
		t.Errorf("order: %s, %s", items[0].ID, items[1].ID)
	}
	if items[1].Mood == nil || *items[1].Mood != "happy" {
		t.Errorf("sidecar mood not merged: %+v", items[1].Mood)
	}
	if items[0].Mood != nil {
		t.Errorf("first item should have no mood: %q", *items[0].Mood)
	}
}

func TestSidecarOverridesIndexFields(t *testing.T) {
	svc := newTestService(t, testTS)

	e := NewCapture(testTS, "/p/a.jpg", 0, 0)
	e.Mood = strptr("from-index")
	if _, err := svc.RecordCapture(e); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.UpdateMeta(e.ID, index.FieldPatch{Mood: strptr("from-sidecar")}); err != nil {
		t.Fatal(err)
	}
	got, err := svc.GetItem(e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Mood == nil || *got.Mood != "from-sidecar" {
		t.Errorf("mood: %+v", got.Mood)
	}
}

func TestGetItemSidecarOnly(t *testing.T) {
	svc := newTestService(t, testTS)

	// sidecar with no index row: still retrievable
	if err := svc.meta.Write("2025-12-12_074512", sidecar.Meta{Notes: strptr("orphan")}); err != nil {
		t.Fatal(err)
	}

	got, err := svc.GetItem("2025-12-12_074512")
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.ID != "2025-12-12_074512" {
		t.Errorf("id: %q", got.ID)
	}
	if got.Notes == nil || *got.Notes != "orphan" {
		t.Errorf("notes: %+v", got.Notes)
	}
	if got.Path != "" || got.Action != "" {
		t.Errorf("sidecar-only record should carry no index fields: %+v", got)
	}
}

func TestGetItemNotFound(t *testing.T) {
	svc := newTestService(t, testTS)
	if _, err := svc.GetItem("2025-01-01_000000"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestLatest(t *testing.T) {
	svc := newTestService(t, testTS)

	if _, err := svc.Latest(); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("empty journal: got %v, want ErrNotFound", err)
	}

	older := NewCapture(time.Date(2025, 12, 10, 8, 0, 0, 0, time.UTC), "/p/a.jpg", 0, 0)
	newer := NewCapture(testTS, "/p/b.jpg", 0, 0)
	for _, e := range []Entry{older, newer} {
		if _, err := svc.RecordCapture(e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := svc.Latest()
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != newer.ID {
		t.Errorf("got %s, want %s", got.ID, newer.ID)
	}

	// deleting the newest shifts latest back
	if _, err := svc.RecordDeletion(newer.ID, "manual"); err != nil {
		t.Fatal(err)
	}
	got, err = svc.Latest()
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != older.ID {
		t.Errorf("after delete: got %s, want %s", got.ID, older.ID)
	}
}

func TestUpdateMetaRejectsEmptyPatch(t *testing.T) {
	svc := newTestService(t, testTS)
	if _, err := svc.UpdateMeta("2025-12-12_074512", index.FieldPatch{}); !errors.Is(err, apperr.ErrInvalidEntry) {
		t.Errorf("got %v, want ErrInvalidEntry", err)
	}
	if _, err := svc.UpdateMeta("", index.FieldPatch{Mood: strptr("x")}); !errors.Is(err, apperr.ErrInvalidEntry) {
		t.Errorf("empty id: got %v, want ErrInvalidEntry", err)
	}
}

func TestMigrateIfNeeded(t *testing.T) {
	svc := newTestService(t, testTS)

	// nothing to migrate yet
	n, err := svc.MigrateIfNeeded("")
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("empty: imported %d", n)
	}

	e := NewCapture(testTS, "/p/2025-12-12_074512.jpg", 1280, 720)
	if _, err := svc.RecordCapture(e); err != nil {
		t.Fatal(err)
	}

	// replaying the journal's own audit file is a safe no-op net of rows
	n, err = svc.MigrateIfNeeded("")
	if err != nil {
		t.Fatalf("MigrateIfNeeded: %v", err)
	}
	if n != 1 {
		t.Errorf("imported %d, want 1", n)
	}
	count, err := svc.db.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("count after replay: got %d, want 1", count)
	}
}

func TestWritersSerialize(t *testing.T) {
	svc := newTestService(t, testTS)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := range 20 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			day := time.Date(2025, 12, 1+n, 9, 0, 0, 0, time.UTC)
			e := NewCapture(day, "/p/x.jpg", 0, 0)
			if _, err := svc.RecordCapture(e); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent capture: %v", err)
	}

	items, err := svc.ListMonth(2025, 12)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 20 {
		t.Errorf("got %d items, want 20", len(items))
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(errors.New("boom")) {
		t.Error("plain errors are not retryable")
	}
}
