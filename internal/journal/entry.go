package journal

import (
	"fmt"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/jera/internal/apperr"
	"github.com/starford/jera/internal/auditlog"
	"github.com/starford/jera/internal/index"
	"github.com/starford/jera/internal/sidecar"
)

// tsFormat is the storage representation for timestamps. UTC RFC 3339
// strings order lexicographically, which the index month queries rely on.
const tsFormat = time.RFC3339

// idPattern matches the date-time stem ids derived from filenames,
// e.g. "2025-12-12_074512".
var idPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}_\d{6}$`)

// Entry is one capture or deletion event, validated at construction rather
// than probed with optional-key lookups at use sites.
type Entry struct {
	ID         string
	TS         string
	Path       string
	Width      *int64
	Height     *int64
	Resolution *string
	Mood       *string
	Notes      *string
	Action     string
	Reason     string
}

// IDForTime derives the capture id (the filename stem) for a timestamp.
func IDForTime(ts time.Time) string {
	return ts.UTC().Format("2006-01-02_150405")
}

// NewCapture builds a capture entry for an image written at ts. Width and
// height of zero mean unknown; otherwise the WxH resolution is derived.
func NewCapture(ts time.Time, path string, width, height int) Entry {
	e := Entry{
		ID:     IDForTime(ts),
		TS:     ts.UTC().Format(tsFormat),
		Path:   path,
		Action: index.ActionCapture,
	}
	if width > 0 && height > 0 {
		w, h := int64(width), int64(height)
		res := fmt.Sprintf("%dx%d", width, height)
		e.Width, e.Height, e.Resolution = &w, &h, &res
	}
	return e
}

// NewDeletion builds a deletion entry superseding the capture with the
// given id. Reason is e.g. "retake", "manual" or "external".
func NewDeletion(id string, ts time.Time, reason string) Entry {
	return Entry{
		ID:     id,
		TS:     ts.UTC().Format(tsFormat),
		Action: index.ActionDelete,
		Reason: reason,
	}
}

// Validate rejects malformed entries before any I/O happens.
func (e Entry) Validate() error {
	err := validation.ValidateStruct(&e,
		validation.Field(&e.ID, validation.Required, validation.Match(idPattern)),
		validation.Field(&e.TS, validation.Required, validation.Date(tsFormat)),
		validation.Field(&e.Action, validation.Required,
			validation.In(index.ActionCapture, index.ActionDelete)),
		validation.Field(&e.Path,
			validation.Required.When(e.Action == index.ActionCapture).Error("required for captures")),
	)
	if err != nil {
		return fmt.Errorf("%w: %s", apperr.ErrInvalidEntry, err)
	}
	return nil
}

// auditRecord converts the entry to its audit log line shape.
func (e Entry) auditRecord() auditlog.Record {
	return auditlog.Record{
		ID:         e.ID,
		TS:         e.TS,
		Path:       e.Path,
		Width:      e.Width,
		Height:     e.Height,
		Resolution: e.Resolution,
		Mood:       e.Mood,
		Notes:      e.Notes,
		Action:     e.Action,
		Reason:     e.Reason,
	}
}

// indexRow converts the entry to its index row shape.
func (e Entry) indexRow() index.Row {
	return index.Row{
		ID:         e.ID,
		TS:         e.TS,
		Path:       e.Path,
		Width:      e.Width,
		Height:     e.Height,
		Resolution: e.Resolution,
		Mood:       e.Mood,
		Notes:      e.Notes,
		Action:     e.Action,
	}
}

// Record is the merged shape exposed to readers: an index row with the
// user-editable fields replaced by sidecar values when present.
type Record struct {
	ID         string  `json:"id"`
	TS         string  `json:"ts"`
	Path       string  `json:"path"`
	Width      *int64  `json:"width"`
	Height     *int64  `json:"height"`
	Resolution *string `json:"resolution"`
	Mood       *string `json:"mood"`
	Notes      *string `json:"notes"`
	Action     string  `json:"action"`
	CreatedAt  float64 `json:"created_at"`
	EditedAt   *string `json:"edited_at"`
}

// merge overlays sidecar meta onto an index row. When row is nil the
// record is built from the sidecar alone (degenerate sidecar-only item).
func merge(row *index.Row, meta sidecar.Meta) Record {
	var rec Record
	if row != nil {
		rec = Record{
			ID:         row.ID,
			TS:         row.TS,
			Path:       row.Path,
			Width:      row.Width,
			Height:     row.Height,
			Resolution: row.Resolution,
			Mood:       row.Mood,
			Notes:      row.Notes,
			Action:     row.Action,
			CreatedAt:  row.CreatedAt,
		}
	} else {
		rec.ID = meta.ID
	}
	if meta.Mood != nil {
		rec.Mood = meta.Mood
	}
	if meta.Notes != nil {
		rec.Notes = meta.Notes
	}
	if meta.EditedAt != "" {
		edited := meta.EditedAt
		rec.EditedAt = &edited
	}
	return rec
}
