package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/applysync/internal/appstore"
	"github.com/starford/applysync/internal/models"
	"github.com/starford/applysync/internal/notes"
)

// DetailFetcher loads a single application straight from the backend.
type DetailFetcher interface {
	Get(ctx context.Context, id string) (models.Application, error)
}

// Handler holds API route handlers.
type Handler struct {
	store   *appstore.Store
	search  *appstore.SearchBox
	details DetailFetcher
	notes   *notes.Registry
}

// NewHandler creates a new Handler.
func NewHandler(store *appstore.Store, search *appstore.SearchBox, details DetailFetcher, reg *notes.Registry) *Handler {
	return &Handler{store: store, search: search, details: details, notes: reg}
}

// View handles GET /applications.
//
//	@Summary	Current list view with tabs, selection and pagination state
//	@Tags		applications
//	@Produce	json
//	@Success	200	{object}	ViewResponse
//	@Router		/applications [get]
func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newViewResponse(h.store))
}

// Reload handles POST /applications/reload.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Reload(r.Context()); err != nil {
		writeError(w, "reload", err)
		return
	}
	writeJSON(w, http.StatusOK, newViewResponse(h.store))
}

// SetFilter handles POST /applications/filter.
//
//	@Summary	Switch the status tab
//	@Tags		applications
//	@Accept		json
//	@Produce	json
//	@Param		body	body		FilterRequest	true	"Tab"
//	@Success	200		{object}	ViewResponse
//	@Failure	400		{object}	errResponse
//	@Router		/applications/filter [post]
func (h *Handler) SetFilter(w http.ResponseWriter, r *http.Request) {
	var req FilterRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.store.SetFilter(r.Context(), req.Tab); err != nil {
		writeError(w, "set filter", err)
		return
	}
	writeJSON(w, http.StatusOK, newViewResponse(h.store))
}

// Search handles POST /applications/search. Without submit the value is
// debounced and the response is 202.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.search.Type(req.Q)
	if !req.Submit && h.search.Pending() {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	h.search.Submit()
	writeJSON(w, http.StatusOK, newViewResponse(h.store))
}

// LoadMore handles POST /applications/more.
func (h *Handler) LoadMore(w http.ResponseWriter, r *http.Request) {
	if err := h.store.LoadMore(r.Context()); err != nil {
		writeError(w, "load more", err)
		return
	}
	writeJSON(w, http.StatusOK, newViewResponse(h.store))
}

// Create handles POST /applications.
//
//	@Summary	Create an application
//	@Tags		applications
//	@Accept		json
//	@Produce	json
//	@Param		body	body		models.CreateApplication	true	"Application"
//	@Success	201		{object}	models.Application
//	@Failure	400		{object}	errResponse
//	@Router		/applications [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in models.CreateApplication
	if !decodeBody(w, r, &in) {
		return
	}
	a, err := h.store.Create(r.Context(), in)
	if err != nil {
		writeError(w, "create application", err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// Get handles GET /applications/{id}. It bypasses the list cache.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.details.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get application", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Update handles PATCH /applications/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var p models.ApplicationPatch
	if !decodeBody(w, r, &p) {
		return
	}
	a, err := h.store.Update(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		writeError(w, "update application", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Delete handles DELETE /applications/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.Remove(r.Context(), id); err != nil {
		writeError(w, "delete application", err)
		return
	}
	h.notes.Forget(id)
	w.WriteHeader(http.StatusNoContent)
}

// Move handles POST /applications/{id}/move.
func (h *Handler) Move(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.store.MoveStatus(r.Context(), chi.URLParam(r, "id"), req.Status); err != nil {
		writeError(w, "move application", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Toggle handles POST /selection/{id}.
func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	on := h.store.Toggle(chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, map[string]bool{"selected": on})
}

// SelectAll handles POST /selection.
func (h *Handler) SelectAll(w http.ResponseWriter, r *http.Request) {
	h.store.SelectAll()
	writeJSON(w, http.StatusOK, map[string][]string{"selected": h.store.SelectedIDs()})
}

// ClearSelection handles DELETE /selection.
func (h *Handler) ClearSelection(w http.ResponseWriter, r *http.Request) {
	h.store.ClearSelection()
	w.WriteHeader(http.StatusNoContent)
}

// BulkMove handles POST /applications/bulk-move. Partial failures answer
// 207 with the failed ids.
//
//	@Summary	Move every selected application
//	@Tags		bulk
//	@Accept		json
//	@Produce	json
//	@Param		body	body		MoveRequest	true	"Target status"
//	@Success	200		{object}	ViewResponse
//	@Success	207		{object}	BulkResponse
//	@Failure	400		{object}	errResponse
//	@Router		/applications/bulk-move [post]
func (h *Handler) BulkMove(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.store.BulkMove(r.Context(), req.Status); err != nil {
		writeError(w, "bulk move", err)
		return
	}
	writeJSON(w, http.StatusOK, newViewResponse(h.store))
}

// BulkDelete handles POST /applications/bulk-delete.
func (h *Handler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.BulkDelete(r.Context()); err != nil {
		writeError(w, "bulk delete", err)
		return
	}
	writeJSON(w, http.StatusOK, newViewResponse(h.store))
}

// ListNotes handles GET /applications/{id}/notes. It refreshes from the
// backend before answering.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	s := h.notes.For(chi.URLParam(r, "id"))
	if err := s.Refresh(r.Context()); err != nil {
		writeError(w, "list notes", err)
		return
	}
	writeJSON(w, http.StatusOK, s.Items())
}

// CreateNote handles POST /applications/{id}/notes.
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	n, err := h.notes.For(chi.URLParam(r, "id")).Create(r.Context(), req.Content)
	if err != nil {
		writeError(w, "create note", err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// UpdateNote handles PATCH /applications/{id}/notes/{noteID}.
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	n, err := h.notes.For(chi.URLParam(r, "id")).Update(r.Context(), chi.URLParam(r, "noteID"), req.Content)
	if err != nil {
		writeError(w, "update note", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// DeleteNote handles DELETE /applications/{id}/notes/{noteID}.
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := h.notes.For(chi.URLParam(r, "id")).Delete(r.Context(), chi.URLParam(r, "noteID")); err != nil {
		writeError(w, "delete note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
