// Package journal composes the file store, audit log, index and sidecar
// store into the capture journal's record/query/update/migrate operations.
// Every state-mutating operation runs under one cross-process file lock
// keyed to the index path, so writers are strictly ordered; reads are
// lock-free and tolerate the index state at the instant of the call.
package journal

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/starford/jera/internal/apperr"
	"github.com/starford/jera/internal/auditlog"
	"github.com/starford/jera/internal/filestore"
	"github.com/starford/jera/internal/index"
	"github.com/starford/jera/internal/lockfile"
	"github.com/starford/jera/internal/sidecar"
)

// Data directory layout.
const (
	DBFilename    = "index.db"
	AuditFilename = "captures.jsonl"
)

// Per-operation lock acquisition timeouts. Migration replays the whole
// audit file, so it gets the long one.
const (
	captureLockTimeout  = 10 * time.Second
	deletionLockTimeout = 8 * time.Second
	metaLockTimeout     = 5 * time.Second
	migrateLockTimeout  = 60 * time.Second
)

// Service is the journal orchestrator. Construct it explicitly with New
// and pass it to the callers that need it; there is no process-wide
// singleton.
type Service struct {
	photos   *filestore.Store
	audit    *auditlog.Log
	db       *index.DB
	meta     *sidecar.Store
	lockPath string
	logger   *slog.Logger
	now      func() time.Time
}

// New opens (creating as needed) the journal stores under dataDir and
// photosRoot. Close the returned service when done.
func New(dataDir, photosRoot string, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: create data dir: %w", err)
	}

	photos, err := filestore.New(photosRoot)
	if err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dataDir, DBFilename)
	db, err := index.Open(dbPath)
	if err != nil {
		return nil, err
	}

	if lockfile.Degraded() {
		logger.Warn("journal: OS advisory locking unavailable, falling back to in-process lock",
			slog.String("lock", lockfile.PathFor(dbPath)))
	}

	return &Service{
		photos:   photos,
		audit:    auditlog.New(filepath.Join(dataDir, AuditFilename), logger),
		db:       db,
		meta:     sidecar.New(dataDir, logger),
		lockPath: lockfile.PathFor(dbPath),
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Close releases the index connection. The lock file stays on disk; only
// its lock state is transient.
func (s *Service) Close() error {
	return s.db.Close()
}

// Photos returns the underlying photo file store.
func (s *Service) Photos() *filestore.Store {
	return s.photos
}

// Index returns the underlying capture index for read-only use.
func (s *Service) Index() index.CaptureIndex {
	return s.db
}

// RecordCapture records a capture event: under the lock it appends to the
// audit log, upserts the index row and ensures a stub sidecar exists.
// An audit append failure aborts before the index is touched — the audit
// line is the durability anchor. Sidecar stub failure is logged and
// swallowed. Returns the merged record.
func (s *Service) RecordCapture(e Entry) (Record, error) {
	if e.Action != index.ActionCapture {
		return Record{}, fmt.Errorf("%w: action must be %q", apperr.ErrInvalidEntry, index.ActionCapture)
	}
	if err := e.Validate(); err != nil {
		return Record{}, err
	}

	guard, err := lockfile.Acquire(s.lockPath, captureLockTimeout)
	if err != nil {
		return Record{}, err
	}
	defer guard.Release()

	return s.recordCaptureLocked(e)
}

// recordCaptureLocked does the capture write sequence. Callers must hold
// the journal lock.
func (s *Service) recordCaptureLocked(e Entry) (Record, error) {
	if err := s.audit.Append(e.auditRecord()); err != nil {
		return Record{}, fmt.Errorf("journal: audit append for %s: %w", e.ID, err)
	}
	if err := s.db.Upsert(e.indexRow()); err != nil {
		return Record{}, fmt.Errorf("journal: index write for %s: %w", e.ID, err)
	}

	if !s.meta.Exists(e.ID) {
		stub := sidecar.Meta{ID: e.ID}
		if err := s.meta.Write(e.ID, stub); err != nil {
			// Non-fatal: the sidecar is an overlay, not the record of truth.
			s.logger.Warn("journal: sidecar stub write failed",
				slog.String("id", e.ID), slog.String("error", err.Error()))
		}
	}

	row, err := s.db.GetByID(e.ID)
	if err != nil {
		return Record{}, err
	}
	return merge(row, s.meta.Read(e.ID)), nil
}

// RecordDeletion records a deletion event for id: under the lock it
// appends a delete audit line, upserts a delete row and removes the
// sidecar (best effort). Returns the deletion summary.
func (s *Service) RecordDeletion(id, reason string) (Record, error) {
	if id == "" {
		return Record{}, fmt.Errorf("%w: id is required", apperr.ErrInvalidEntry)
	}
	if reason == "" {
		reason = "delete"
	}

	guard, err := lockfile.Acquire(s.lockPath, deletionLockTimeout)
	if err != nil {
		return Record{}, err
	}
	defer guard.Release()

	return s.recordDeletionLocked(id, reason)
}

// recordDeletionLocked does the deletion write sequence. Callers must hold
// the journal lock.
func (s *Service) recordDeletionLocked(id, reason string) (Record, error) {
	e := NewDeletion(id, s.now(), reason)

	if err := s.audit.Append(e.auditRecord()); err != nil {
		return Record{}, fmt.Errorf("journal: deletion audit append for %s: %w", id, err)
	}
	if err := s.db.Upsert(e.indexRow()); err != nil {
		return Record{}, fmt.Errorf("journal: deletion index write for %s: %w", id, err)
	}
	if err := s.meta.Delete(id); err != nil {
		s.logger.Warn("journal: sidecar delete failed",
			slog.String("id", id), slog.String("error", err.Error()))
	}

	row, err := s.db.GetByID(id)
	if err != nil {
		return Record{}, err
	}
	return merge(row, sidecar.Meta{}), nil
}

// RecordExternalDeletion records a deletion (reason "external") for an
// image that vanished from disk behind the journal's back. The
// live-capture check runs inside the critical section: a removal the
// journal performed itself (retake, manual delete) is tombstoned under
// the same lock, so a racing filesystem event re-reads the tombstone
// here and writes nothing instead of a second delete line. Returns true
// when a deletion was recorded.
func (s *Service) RecordExternalDeletion(id string) (bool, error) {
	if id == "" {
		return false, fmt.Errorf("%w: id is required", apperr.ErrInvalidEntry)
	}

	guard, err := lockfile.Acquire(s.lockPath, deletionLockTimeout)
	if err != nil {
		return false, err
	}
	defer guard.Release()

	row, err := s.db.GetByID(id)
	if err != nil {
		return false, err
	}
	if row == nil || row.Action != index.ActionCapture {
		return false, nil
	}

	if _, err := s.recordDeletionLocked(id, "external"); err != nil {
		return false, err
	}
	return true, nil
}

// ListMonth returns the month's captures merged with their sidecars, in
// ascending timestamp order. No lock is taken: the worst outcome of a
// concurrent writer is a stale merged record, not corruption.
func (s *Service) ListMonth(year, month int) ([]Record, error) {
	rows, err := s.db.GetByMonth(year, month)
	if err != nil {
		return nil, err
	}
	out := make([]Record, len(rows))
	for i, r := range rows {
		out[i] = merge(&r, s.meta.Read(r.ID))
	}
	return out, nil
}

// GetItem returns the merged record for id. When the index has no row the
// sidecar alone is returned if present; ErrNotFound otherwise.
func (s *Service) GetItem(id string) (Record, error) {
	row, err := s.db.GetByID(id)
	if err != nil {
		return Record{}, err
	}
	meta := s.meta.Read(id)
	if row == nil && meta.IsZero() {
		return Record{}, fmt.Errorf("journal: item %s: %w", id, apperr.ErrNotFound)
	}
	return merge(row, meta), nil
}

// Latest returns the most recent live capture merged with its sidecar, or
// ErrNotFound when the journal is empty.
func (s *Service) Latest() (Record, error) {
	row, err := s.db.LatestCapture()
	if err != nil {
		return Record{}, err
	}
	if row == nil {
		return Record{}, fmt.Errorf("journal: latest: %w", apperr.ErrNotFound)
	}
	return merge(row, s.meta.Read(row.ID)), nil
}

// UpdateMeta replaces the sidecar for id wholesale and reflects the
// editable fields into the index columns under the lock, so reads are
// never torn between sidecar and index for longer than the critical
// section. Returns the merged record after the update.
func (s *Service) UpdateMeta(id string, patch index.FieldPatch) (Record, error) {
	if id == "" {
		return Record{}, fmt.Errorf("%w: id is required", apperr.ErrInvalidEntry)
	}
	if patch.IsZero() {
		return Record{}, fmt.Errorf("%w: nothing to update", apperr.ErrInvalidEntry)
	}

	guard, err := lockfile.Acquire(s.lockPath, metaLockTimeout)
	if err != nil {
		return Record{}, err
	}
	defer guard.Release()

	meta := sidecar.Meta{ID: id, Mood: patch.Mood, Notes: patch.Notes}
	if err := s.meta.Write(id, meta); err != nil {
		return Record{}, fmt.Errorf("journal: meta write for %s: %w", id, err)
	}
	if err := s.db.UpdateFields(id, patch); err != nil {
		return Record{}, err
	}

	row, err := s.db.GetByID(id)
	if err != nil {
		return Record{}, err
	}
	return merge(row, s.meta.Read(id)), nil
}

// MigrateIfNeeded replays the audit file at auditPath (the service's own
// audit file when empty) into the index under the lock. Returns the number
// of rows imported, 0 when the audit file does not exist.
func (s *Service) MigrateIfNeeded(auditPath string) (int, error) {
	log := s.audit
	if auditPath != "" {
		log = auditlog.New(auditPath, s.logger)
	}
	if !log.Exists() {
		return 0, nil
	}

	guard, err := lockfile.Acquire(s.lockPath, migrateLockTimeout)
	if err != nil {
		return 0, err
	}
	defer guard.Release()

	return index.MigrateFromAudit(s.db, log, s.logger)
}

// IsRetryable reports whether err is a transient condition worth retrying,
// currently only a lock acquisition timeout.
func IsRetryable(err error) bool {
	return errors.Is(err, lockfile.ErrTimeout)
}
