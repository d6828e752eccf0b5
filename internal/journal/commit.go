package journal

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/jera/internal/apperr"
	"github.com/starford/jera/internal/filestore"
	"github.com/starford/jera/internal/lockfile"
)

// CommitOptions configures a Commit call.
type CommitOptions struct {
	// AllowRetake permits superseding an existing same-day capture. The
	// prior image is deleted and a deletion event recorded before the new
	// capture is written.
	AllowRetake bool

	// Mood and Notes, when set, are stored on the capture entry.
	Mood  *string
	Notes *string
}

// Commit stores raw JPEG bytes as today's capture and records it. The
// whole check-delete-write-record sequence runs inside one critical
// section, so two concurrent callers cannot both pass the one-per-day
// check.
//
// When a live capture already exists for the day and opts.AllowRetake is
// false, Commit returns ErrAlreadyCaptured with the existing path; the
// caller presents it as a friendly message, not a crash.
func (s *Service) Commit(data []byte, width, height int, opts CommitOptions) (Record, error) {
	if len(data) == 0 {
		return Record{}, fmt.Errorf("%w: no image bytes", apperr.ErrInvalidEntry)
	}

	ts := s.now().UTC()

	guard, err := lockfile.Acquire(s.lockPath, captureLockTimeout)
	if err != nil {
		return Record{}, err
	}
	defer guard.Release()

	// One-per-day check, under the same lock as the write.
	existing, err := s.photos.LastImageForDate(ts)
	switch {
	case err == nil:
		if !opts.AllowRetake {
			return Record{}, fmt.Errorf("journal: photo already exists for %s at %s: %w",
				ts.Format("2006-01-02"), existing, apperr.ErrAlreadyCaptured)
		}
		if err := s.retakeLocked(ts); err != nil {
			return Record{}, err
		}
	case errors.Is(err, apperr.ErrNoImage):
		// First capture of the day.
	default:
		return Record{}, err
	}

	path, err := s.photos.Write(ts, data)
	if err != nil {
		return Record{}, err
	}

	e := NewCapture(ts, path, width, height)
	e.Mood = opts.Mood
	e.Notes = opts.Notes
	if err := e.Validate(); err != nil {
		return Record{}, err
	}

	rec, err := s.recordCaptureLocked(e)
	if err != nil {
		return Record{}, err
	}
	s.logger.Info("journal: capture committed",
		slog.String("id", e.ID), slog.String("path", path))
	return rec, nil
}

// retakeLocked deletes the existing image for ts's date and records the
// deletion. Callers must hold the journal lock.
func (s *Service) retakeLocked(ts time.Time) error {
	deleted, err := s.photos.DeleteLastImageForDate(ts)
	if err != nil {
		return fmt.Errorf("journal: retake delete: %w", err)
	}
	priorID := filestore.Stem(deleted)
	if _, err := s.recordDeletionLocked(priorID, "retake"); err != nil {
		return err
	}
	s.logger.Info("journal: retake superseded prior capture",
		slog.String("id", priorID), slog.String("path", deleted))
	return nil
}
