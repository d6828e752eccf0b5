package index

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/starford/jera/internal/auditlog"
)

// MigrateFromAudit replays every audit record through Upsert and returns
// the number of rows imported. Records without a derivable id fall back to
// the file path's stem; records with neither are skipped. Upserts are
// keyed by id, so running the migration repeatedly, or over a log that
// already partially exists in the index, is safe.
func MigrateFromAudit(db *DB, log *auditlog.Log, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}

	count := 0
	for rec := range log.All() {
		id := rec.ID
		if id == "" && rec.Path != "" {
			base := filepath.Base(rec.Path)
			id = strings.TrimSuffix(base, filepath.Ext(base))
		}
		if id == "" {
			logger.Warn("migrate: skipping record without id", slog.String("ts", rec.TS))
			continue
		}

		action := rec.Action
		if action == "" {
			action = ActionCapture
		}

		row := Row{
			ID:         id,
			TS:         rec.TS,
			Path:       rec.Path,
			Width:      rec.Width,
			Height:     rec.Height,
			Resolution: rec.Resolution,
			Mood:       rec.Mood,
			Notes:      rec.Notes,
			Action:     action,
		}
		if err := db.Upsert(row); err != nil {
			// One bad record must not abort replay of the rest.
			logger.Warn("migrate: upsert failed",
				slog.String("id", id), slog.String("error", err.Error()))
			continue
		}
		count++
	}
	return count, nil
}
