// Package filestore manages the on-disk photo layout: one year/month folder
// tree under a root, deterministic timestamp-derived filenames, and atomic
// byte writes.
package filestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/starford/jera/internal/apperr"
)

// Store provides photo file operations rooted at a single directory.
type Store struct {
	root string // absolute path to the photos root
}

// New creates a Store rooted at the given directory, creating it if needed.
func New(root string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("filestore: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create root: %w", err)
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute photos root.
func (s *Store) Root() string {
	return s.root
}

// YearMonthFolder returns (creating if needed) the folder root/YYYY/MM for ts.
func (s *Store) YearMonthFolder(ts time.Time) (string, error) {
	folder := filepath.Join(s.root, ts.Format("2006"), ts.Format("01"))
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return "", fmt.Errorf("filestore: create folder: %w", err)
	}
	return folder, nil
}

// MakeFilename derives the deterministic filename for ts:
// YYYY-MM-DD_HHMMSS.jpg. Two writes in the same second collide on purpose;
// the one-per-day rule makes that moot in practice.
func MakeFilename(ts time.Time) string {
	return ts.Format("2006-01-02_150405") + ".jpg"
}

// Stem returns the filename without extension, which doubles as the capture
// id (e.g. "2025-12-12_074512").
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Write atomically writes data for ts and returns the final absolute path.
// The temp file lives in the destination directory so the rename is atomic;
// a crash mid-write never leaves a partial file at the final path.
func (s *Store) Write(ts time.Time, data []byte) (string, error) {
	folder, err := s.YearMonthFolder(ts)
	if err != nil {
		return "", err
	}
	final := filepath.Join(folder, MakeFilename(ts))

	tmp, err := os.CreateTemp(folder, ".jera-tmp-*")
	if err != nil {
		return "", fmt.Errorf("filestore: create temp: %w", err)
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
		return "", fmt.Errorf("filestore: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("filestore: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("filestore: close temp: %w", err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		return "", fmt.Errorf("filestore: rename: %w", err)
	}
	success = true
	return final, nil
}

// LastImageForDate returns the most recent .jpg for the given calendar date,
// or ErrNoImage if none exists. Filenames start with YYYY-MM-DD and sort
// lexicographically, so the last match is the latest capture.
func (s *Store) LastImageForDate(date time.Time) (string, error) {
	matches, err := s.imagesForDate(date)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", apperr.ErrNoImage
	}
	return matches[len(matches)-1], nil
}

// DeleteLastImageForDate removes the most recent image for the date and
// returns the deleted path. Returns ErrNoImage when there is nothing to
// delete.
func (s *Store) DeleteLastImageForDate(date time.Time) (string, error) {
	p, err := s.LastImageForDate(date)
	if err != nil {
		return "", err
	}
	if err := os.Remove(p); err != nil {
		return "", fmt.Errorf("filestore: delete %s: %w", p, err)
	}
	return p, nil
}

// imagesForDate lists .jpg files for a date in ascending filename order.
func (s *Store) imagesForDate(date time.Time) ([]string, error) {
	folder := filepath.Join(s.root, date.Format("2006"), date.Format("01"))
	prefix := date.Format("2006-01-02")

	entries, err := os.ReadDir(folder)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("filestore: read folder: %w", err)
	}

	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".jpg") {
			continue
		}
		out = append(out, filepath.Join(folder, name))
	}
	sort.Strings(out)
	return out, nil
}
