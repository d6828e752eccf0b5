package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Actions stored in the captures table.
const (
	ActionCapture = "capture"
	ActionDelete  = "delete"
)

// Row represents a row in the captures table. TS is an RFC 3339 UTC string;
// month queries rely on its lexicographic ordering. Optional columns are
// pointers so NULL round-trips cleanly.
type Row struct {
	ID         string
	TS         string
	Path       string
	Width      *int64
	Height     *int64
	Resolution *string
	Mood       *string
	Notes      *string
	Action     string
	CreatedAt  float64
}

// FieldPatch describes a targeted update of the user-editable columns.
// A nil pointer leaves the column untouched.
type FieldPatch struct {
	Mood  *string
	Notes *string
}

// IsZero reports whether the patch touches nothing.
func (p FieldPatch) IsZero() bool {
	return p.Mood == nil && p.Notes == nil
}

const rowColumns = `id, ts, path, width, height, resolution, mood, notes, action, created_at`

// Upsert inserts or replaces a row keyed by id. Replaying the same entry
// twice leaves the table unchanged in effect, which makes audit replay and
// migration safe to repeat. created_at records the store-insert wall clock.
func (db *DB) Upsert(row Row) error {
	if row.ID == "" {
		return errors.New("index: upsert: id is required")
	}
	_, err := db.conn.Exec(`
		INSERT OR REPLACE INTO captures
		(`+rowColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, row.ID, row.TS, row.Path, row.Width, row.Height, row.Resolution,
		row.Mood, row.Notes, row.Action, float64(time.Now().UnixNano())/1e9)
	if err != nil {
		return fmt.Errorf("index: upsert %s: %w", row.ID, err)
	}
	return nil
}

// GetByID returns the row for id, or nil when absent.
func (db *DB) GetByID(id string) (*Row, error) {
	row, err := scanRow(db.conn.QueryRow(
		`SELECT `+rowColumns+` FROM captures WHERE id = ? LIMIT 1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("index: get %s: %w", id, err)
	}
	return row, nil
}

// GetByMonth returns capture rows (action='capture') for the month in
// ascending timestamp order. Boundaries are the half-open string range
// [start_of_month, start_of_next_month), matching the stored TS format.
func (db *DB) GetByMonth(year, month int) ([]Row, error) {
	start, end := monthRange(year, month)
	rows, err := db.conn.Query(`
		SELECT `+rowColumns+` FROM captures
		WHERE ts >= ? AND ts < ? AND action = ?
		ORDER BY ts ASC
	`, start, end, ActionCapture)
	if err != nil {
		return nil, fmt.Errorf("index: month query: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("index: month scan: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// UpdateFields applies a targeted column update for the editable fields.
// A zero patch is a no-op.
func (db *DB) UpdateFields(id string, patch FieldPatch) error {
	if patch.IsZero() {
		return nil
	}
	if patch.Mood != nil {
		if _, err := db.conn.Exec(`UPDATE captures SET mood = ? WHERE id = ?`, *patch.Mood, id); err != nil {
			return fmt.Errorf("index: update mood %s: %w", id, err)
		}
	}
	if patch.Notes != nil {
		if _, err := db.conn.Exec(`UPDATE captures SET notes = ? WHERE id = ?`, *patch.Notes, id); err != nil {
			return fmt.Errorf("index: update notes %s: %w", id, err)
		}
	}
	return nil
}

// Count returns the total number of rows, deletions included.
func (db *DB) Count() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM captures`).Scan(&n); err != nil {
		return 0, fmt.Errorf("index: count: %w", err)
	}
	return n, nil
}

// LatestCapture returns the most recent live capture by timestamp, or nil
// when the index holds none.
func (db *DB) LatestCapture() (*Row, error) {
	row, err := scanRow(db.conn.QueryRow(
		`SELECT `+rowColumns+` FROM captures WHERE action = ? ORDER BY ts DESC LIMIT 1`,
		ActionCapture))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("index: latest: %w", err)
	}
	return row, nil
}

// monthRange computes the half-open [start, end) TS strings for a month.
func monthRange(year, month int) (string, string) {
	start := fmt.Sprintf("%04d-%02d-01T00:00:00", year, month)
	var end string
	if month == 12 {
		end = fmt.Sprintf("%04d-01-01T00:00:00", year+1)
	} else {
		end = fmt.Sprintf("%04d-%02d-01T00:00:00", year, month+1)
	}
	return start, end
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(sc scanner) (*Row, error) {
	var (
		r             Row
		width, height sql.NullInt64
		resolution    sql.NullString
		mood, notes   sql.NullString
	)
	err := sc.Scan(&r.ID, &r.TS, &r.Path, &width, &height, &resolution,
		&mood, &notes, &r.Action, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	if width.Valid {
		r.Width = &width.Int64
	}
	if height.Valid {
		r.Height = &height.Int64
	}
	if resolution.Valid {
		r.Resolution = &resolution.String
	}
	if mood.Valid {
		r.Mood = &mood.String
	}
	if notes.Valid {
		r.Notes = &notes.String
	}
	return &r, nil
}
