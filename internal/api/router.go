package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/starford/jera/internal/journal"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
func NewRouter(svc *journal.Service, authEnabled bool, token string) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Capture lifecycle.
	r.Post("/captures", h.Commit)
	r.Delete("/items/{id}", h.Delete)

	// Reads.
	r.Get("/months/{year}/{month}", h.ListMonth)
	r.Get("/items/{id}", h.GetItem)
	r.Get("/latest", h.Latest)

	// Editable metadata.
	r.Patch("/items/{id}/meta", h.UpdateMeta)

	// Maintenance.
	r.Post("/migrate", h.Migrate)

	return r
}
