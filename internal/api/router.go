package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all mirror routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(h *Handler, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// List view.
	r.Get("/applications", h.View)
	r.Post("/applications", h.Create)
	r.Post("/applications/reload", h.Reload)
	r.Post("/applications/filter", h.SetFilter)
	r.Post("/applications/search", h.Search)
	r.Post("/applications/more", h.LoadMore)

	// Bulk.
	r.Post("/applications/bulk-move", h.BulkMove)
	r.Post("/applications/bulk-delete", h.BulkDelete)

	// Single record.
	r.Get("/applications/{id}", h.Get)
	r.Patch("/applications/{id}", h.Update)
	r.Delete("/applications/{id}", h.Delete)
	r.Post("/applications/{id}/move", h.Move)

	// Notes.
	r.Get("/applications/{id}/notes", h.ListNotes)
	r.Post("/applications/{id}/notes", h.CreateNote)
	r.Patch("/applications/{id}/notes/{noteID}", h.UpdateNote)
	r.Delete("/applications/{id}/notes/{noteID}", h.DeleteNote)

	// Selection.
	r.Post("/selection", h.SelectAll)
	r.Delete("/selection", h.ClearSelection)
	r.Post("/selection/{id}", h.Toggle)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
