package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/jera/internal/apperr"
	"github.com/starford/jera/internal/index"
	"github.com/starford/jera/internal/journal"
)

// Handler holds API route handlers.
type Handler struct {
	svc *journal.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *journal.Service) *Handler {
	return &Handler{svc: svc}
}

// writeErr maps journal errors to HTTP responses. Lock timeouts surface as
// 503 so callers know the save is retryable.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperr.ErrAlreadyCaptured):
		writeJSON(w, http.StatusConflict, errorBody("already captured today"))
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrNoImage):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrInvalidEntry):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case journal.IsRetryable(err):
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, errorBody("busy, retry"))
	default:
		slog.Error("request failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// Commit handles POST /captures: decodes the image bytes and runs the
// commit-from-bytes flow.
func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 32<<20)
	var req CommitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("image_base64 is not valid base64"))
		return
	}

	rec, err := h.svc.Commit(data, req.Width, req.Height, journal.CommitOptions{
		AllowRetake: req.AllowRetake,
		Mood:        req.Mood,
		Notes:       req.Notes,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// ListMonth handles GET /months/{year}/{month}.
func (h *Handler) ListMonth(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid year"))
		return
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil || month < 1 || month > 12 {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid month"))
		return
	}

	items, err := h.svc.ListMonth(year, month)
	if err != nil {
		writeErr(w, err)
		return
	}
	if items == nil {
		items = []journal.Record{}
	}
	writeJSON(w, http.StatusOK, MonthResponse{Items: items, Total: len(items)})
}

// GetItem handles GET /items/{id}.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := h.svc.GetItem(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Latest handles GET /latest.
func (h *Handler) Latest(w http.ResponseWriter, _ *http.Request) {
	rec, err := h.svc.Latest()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// UpdateMeta handles PATCH /items/{id}/meta.
func (h *Handler) UpdateMeta(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateMetaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	rec, err := h.svc.UpdateMeta(id, index.FieldPatch{Mood: req.Mood, Notes: req.Notes})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Delete handles DELETE /items/{id}. The optional reason query defaults
// to "manual". The image file stays on disk: deletion only tombstones
// the record, and removing the day's file is the retake flow's job
// (commit with allow_retake). A tombstoned day therefore still refuses
// a plain re-commit until retake is used.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	reason := r.URL.Query().Get("reason")
	if reason == "" {
		reason = "manual"
	}

	rec, err := h.svc.RecordDeletion(id, reason)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Migrate handles POST /migrate: replays the audit log into the index.
func (h *Handler) Migrate(w http.ResponseWriter, _ *http.Request) {
	n, err := h.svc.MigrateIfNeeded("")
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MigrateResponse{Imported: n})
}
