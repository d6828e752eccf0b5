// Package auditlog maintains the append-only newline-delimited JSON event
// log (captures.jsonl). The log is the durable source of truth: every
// capture and deletion is appended and fsynced here before the index is
// touched, and the index can always be rebuilt from it.
package auditlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
)

// Record is one event line in the audit log. Optional fields are pointers
// so absent and null are distinguishable from zero values.
type Record struct {
	ID         string  `json:"id"`
	TS         string  `json:"ts"`
	Path       string  `json:"path"`
	Width      *int64  `json:"width,omitempty"`
	Height     *int64  `json:"height,omitempty"`
	Resolution *string `json:"resolution,omitempty"`
	Mood       *string `json:"mood,omitempty"`
	Notes      *string `json:"notes,omitempty"`
	Action     string  `json:"action"`
	Reason     string  `json:"reason,omitempty"`
}

// Log appends to and replays a single JSONL audit file.
type Log struct {
	path   string
	logger *slog.Logger
}

// New creates a Log for the given file path. The file is created lazily on
// first append.
func New(path string, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{path: path, logger: logger}
}

// Path returns the audit file path.
func (l *Log) Path() string {
	return l.path
}

// Exists reports whether the audit file is present on disk.
func (l *Log) Exists() bool {
	_, err := os.Stat(l.path)
	return err == nil
}

// Append serializes rec as one JSON line and appends it, flushing and
// fsyncing before returning so the line is durable before the caller
// proceeds to the index write. Lines are never rewritten or deleted.
func (l *Log) Append(rec Record) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("auditlog: marshal: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("auditlog: open %s: %w", l.path, err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("auditlog: append: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("auditlog: fsync: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("auditlog: close: %w", err)
	}
	return nil
}

// All returns a lazy sequence over every parseable record, in file order.
// Malformed lines (including a trailing partial line left by a crashed
// writer) are skipped with a warning, never fatal, so one corrupt line
// cannot block replay of the rest.
func (l *Log) All() iter.Seq[Record] {
	return func(yield func(Record) bool) {
		f, err := os.Open(l.path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				l.logger.Warn("auditlog: open for read failed",
					slog.String("path", l.path), slog.String("error", err.Error()))
			}
			return
		}
		defer f.Close()

		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		lineNo := 0
		for sc.Scan() {
			lineNo++
			raw := sc.Bytes()
			if len(raw) == 0 {
				continue
			}
			var rec Record
			if err := json.Unmarshal(raw, &rec); err != nil {
				l.logger.Warn("auditlog: skipping malformed line",
					slog.Int("line", lineNo), slog.String("error", err.Error()))
				continue
			}
			if !yield(rec) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			l.logger.Warn("auditlog: scan stopped",
				slog.String("path", l.path), slog.String("error", err.Error()))
		}
	}
}
