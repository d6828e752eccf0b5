// Package sidecar manages the per-item editable metadata files at
// <data_dir>/metadata/<id>.json. Sidecars are a convenience overlay over
// the index, lifecycle-managed independently of it: created as a stub at
// first capture, overwritten wholesale on every edit, removed when the
// capture is deleted.
package sidecar

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Meta is the full contents of one sidecar file. Mood and Notes are
// pointers so a null field never shadows an index value during merge.
type Meta struct {
	ID       string  `json:"id"`
	Mood     *string `json:"mood"`
	Notes    *string `json:"notes"`
	EditedAt string  `json:"edited_at"`
}

// IsZero reports whether the meta carries no sidecar data.
func (m Meta) IsZero() bool {
	return m.ID == "" && m.Mood == nil && m.Notes == nil && m.EditedAt == ""
}

// Store reads and writes sidecar files under a metadata directory.
type Store struct {
	dir    string
	logger *slog.Logger
}

// New creates a Store writing under dataDir/metadata.
func New(dataDir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: filepath.Join(dataDir, "metadata"), logger: logger}
}

func (s *Store) pathFor(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Read returns the sidecar for id. A missing or malformed sidecar yields
// the zero Meta, never an error: the index row still renders without it.
func (s *Store) Read(id string) Meta {
	data, err := os.ReadFile(s.pathFor(id))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("sidecar: read failed",
				slog.String("id", id), slog.String("error", err.Error()))
		}
		return Meta{}
	}
	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		s.logger.Warn("sidecar: malformed file ignored",
			slog.String("id", id), slog.String("error", err.Error()))
		return Meta{}
	}
	return m
}

// Write atomically replaces the sidecar for id with meta (wholesale, not
// merged field-by-field). EditedAt is filled with the current UTC time when
// the caller omitted it.
func (s *Store) Write(id string, meta Meta) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("sidecar: create dir: %w", err)
	}
	meta.ID = id
	if meta.EditedAt == "" {
		meta.EditedAt = time.Now().UTC().Format(time.RFC3339)
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("sidecar: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+id+".tmp-*")
	if err != nil {
		return fmt.Errorf("sidecar: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("sidecar: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sidecar: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("sidecar: close temp: %w", err)
	}
	if err := os.Rename(tmpName, s.pathFor(id)); err != nil {
		return fmt.Errorf("sidecar: rename: %w", err)
	}
	success = true
	return nil
}

// Delete removes the sidecar for id; missing files are a no-op.
func (s *Store) Delete(id string) error {
	err := os.Remove(s.pathFor(id))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("sidecar: delete %s: %w", id, err)
	}
	return nil
}

// Exists reports whether a sidecar file is present for id.
func (s *Store) Exists(id string) bool {
	_, err := os.Stat(s.pathFor(id))
	return err == nil
}
