package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/jera/internal/journal"
)

// CommitRequest is the request body for committing a capture from bytes.
type CommitRequest struct {
	ImageBase64 string  `json:"image_base64"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Mood        *string `json:"mood"`
	Notes       *string `json:"notes"`
	AllowRetake bool    `json:"allow_retake"`
}

// Validate rejects malformed commit requests before any bytes are decoded.
func (r CommitRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ImageBase64, validation.Required),
		validation.Field(&r.Width, validation.Min(0)),
		validation.Field(&r.Height, validation.Min(0)),
	)
}

// UpdateMetaRequest is the request body for updating editable metadata.
// Absent fields leave the corresponding values untouched.
type UpdateMetaRequest struct {
	Mood  *string `json:"mood"`
	Notes *string `json:"notes"`
}

// Validate requires at least one field to update.
func (r UpdateMetaRequest) Validate() error {
	if r.Mood == nil && r.Notes == nil {
		return validation.NewError("validation_empty_patch", "at least one of mood, notes is required")
	}
	return nil
}

// MonthResponse wraps a month listing.
type MonthResponse struct {
	Items []journal.Record `json:"items"`
	Total int              `json:"total"`
}

// MigrateResponse reports the outcome of an audit replay.
type MigrateResponse struct {
	Imported int `json:"imported"`
}
