package auditlog

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testLog(t *testing.T) *Log {
	t.Helper()
	path := filepath.Join(t.TempDir(), "captures.jsonl")
	return New(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func collect(l *Log) []Record {
	var out []Record
	for rec := range l.All() {
		out = append(out, rec)
	}
	return out
}

func strptr(s string) *string { return &s }

func TestAppendAndReplayOrder(t *testing.T) {
	l := testLog(t)

	recs := []Record{
		{ID: "2025-12-12_074512", TS: "2025-12-12T07:45:12Z", Path: "/p/a.jpg", Action: "capture"},
		{ID: "2025-12-12_074512", TS: "2025-12-12T08:00:00Z", Action: "delete", Reason: "retake"},
		{ID: "2025-12-12_081502", TS: "2025-12-12T08:15:02Z", Path: "/p/b.jpg", Action: "capture", Mood: strptr("happy")},
	}
	for _, r := range recs {
		if err := l.Append(r); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got := collect(l)
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	for i := range recs {
		if got[i].ID != recs[i].ID || got[i].Action != recs[i].Action {
			t.Errorf("record %d: got %+v, want %+v", i, got[i], recs[i])
		}
	}
	if got[2].Mood == nil || *got[2].Mood != "happy" {
		t.Errorf("mood not round-tripped: %+v", got[2])
	}
	if got[1].Reason != "retake" {
		t.Errorf("reason not round-tripped: %+v", got[1])
	}
}

func TestAllMissingFile(t *testing.T) {
	l := testLog(t)
	if l.Exists() {
		t.Fatal("file should not exist yet")
	}
	if got := collect(l); got != nil {
		t.Errorf("got %v, want empty", got)
	}
}

func TestAllSkipsMalformedLines(t *testing.T) {
	l := testLog(t)
	if err := l.Append(Record{ID: "a", Action: "capture"}); err != nil {
		t.Fatal(err)
	}

	// simulate a corrupt line plus a crashed writer's partial trailing line
	f, err := os.OpenFile(l.Path(), os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("{not json}\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	if err := l.Append(Record{ID: "b", Action: "capture"}); err != nil {
		t.Fatal(err)
	}

	f, err = os.OpenFile(l.Path(), os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(`{"id":"trunc`); err != nil {
		t.Fatal(err)
	}
	f.Close()

	got := collect(l)
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2: %+v", len(got), got)
	}
	if got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("wrong records survived: %+v", got)
	}
}

func TestAllEarlyStop(t *testing.T) {
	l := testLog(t)
	for _, id := range []string{"a", "b", "c"} {
		if err := l.Append(Record{ID: id, Action: "capture"}); err != nil {
			t.Fatal(err)
		}
	}

	var seen int
	for range l.All() {
		seen++
		break
	}
	if seen != 1 {
		t.Errorf("seen %d, want 1", seen)
	}
}

func TestOptionalFieldsOmitted(t *testing.T) {
	l := testLog(t)
	if err := l.Append(Record{ID: "a", TS: "2025-01-01T00:00:00Z", Path: "/p", Action: "capture"}); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(l.Path())
	if err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{"mood", "notes", "width", "height", "resolution", "reason"} {
		if strings.Contains(string(raw), `"`+field+`":`) {
			t.Errorf("unset field %q should be omitted: %s", field, raw)
		}
	}
}
