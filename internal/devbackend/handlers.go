package devbackend

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/applysync/internal/apperr"
	"github.com/starford/applysync/internal/client"
	"github.com/starford/applysync/internal/models"
	"github.com/starford/applysync/internal/status"
)

const maxBody = 1 << 20

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, detail("invalid JSON body"))
		return false
	}
	return true
}

func (s *Server) writeErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, detail("Not found"))
	case errors.Is(err, apperr.ErrValidation):
		writeJSON(w, http.StatusUnprocessableEntity, detail(err.Error()))
	default:
		s.logger.Error("devbackend: "+op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, detail("internal error"))
	}
}

// GET /applications?status_eq=&q=&limit=&offset=
func (s *Server) listApplications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ListFilter{Text: q.Get("q")}
	if v := q.Get("status_eq"); v != "" {
		st, err := status.ParseWire(v)
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, detail(err.Error()))
			return
		}
		f.Status = st
	}
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	f.Offset, _ = strconv.Atoi(q.Get("offset"))

	items, total, err := s.db.ListApplications(f)
	if err != nil {
		s.writeErr(w, "list applications", err)
		return
	}
	w.Header().Set(client.HasMoreHeader, strconv.FormatBool(f.Offset+len(items) < total))
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) getApplication(w http.ResponseWriter, r *http.Request) {
	a, err := s.db.GetApplication(chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, "get application", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) createApplication(w http.ResponseWriter, r *http.Request) {
	var in models.CreateApplication
	if !decode(w, r, &in) {
		return
	}
	a, err := s.db.CreateApplication(in, s.now())
	if err != nil {
		s.writeErr(w, "create application", err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) updateApplication(w http.ResponseWriter, r *http.Request) {
	var p models.ApplicationPatch
	if !decode(w, r, &p) {
		return
	}
	a, err := s.db.UpdateApplication(chi.URLParam(r, "id"), p)
	if err != nil {
		s.writeErr(w, "update application", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) deleteApplication(w http.ResponseWriter, r *http.Request) {
	if err := s.db.DeleteApplication(chi.URLParam(r, "id")); err != nil {
		s.writeErr(w, "delete application", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /applications/{id}/move?new_status=
func (s *Server) moveApplication(w http.ResponseWriter, r *http.Request) {
	st, err := status.ParseWire(r.URL.Query().Get("new_status"))
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, detail(err.Error()))
		return
	}
	if err := s.db.MoveApplication(chi.URLParam(r, "id"), st); err != nil {
		s.writeErr(w, "move application", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) bulkMove(w http.ResponseWriter, r *http.Request) {
	var req models.BulkMoveRequest
	if !decode(w, r, &req) {
		return
	}
	if !req.Status.Valid() {
		writeJSON(w, http.StatusUnprocessableEntity, detail("invalid status"))
		return
	}
	n, err := s.db.BulkMove(req.IDs, req.Status, s.faultSet())
	if err != nil {
		s.writeErr(w, "bulk move", err)
		return
	}
	writeJSON(w, http.StatusOK, models.BulkResult{Requested: len(req.IDs), Updated: n})
}

func (s *Server) bulkDelete(w http.ResponseWriter, r *http.Request) {
	var req models.BulkDeleteRequest
	if !decode(w, r, &req) {
		return
	}
	n, err := s.db.BulkDelete(req.IDs, s.faultSet())
	if err != nil {
		s.writeErr(w, "bulk delete", err)
		return
	}
	writeJSON(w, http.StatusOK, models.BulkResult{Requested: len(req.IDs), Deleted: n})
}

func (s *Server) listNotes(w http.ResponseWriter, r *http.Request) {
	items, err := s.db.ListNotes(chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, "list notes", err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) createNote(w http.ResponseWriter, r *http.Request) {
	var in models.NoteInput
	if !decode(w, r, &in) {
		return
	}
	n, err := s.db.CreateNote(chi.URLParam(r, "id"), in, s.now())
	if err != nil {
		s.writeErr(w, "create note", err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (s *Server) updateNote(w http.ResponseWriter, r *http.Request) {
	var in models.NoteInput
	if !decode(w, r, &in) {
		return
	}
	n, err := s.db.UpdateNote(chi.URLParam(r, "id"), chi.URLParam(r, "noteID"), in)
	if err != nil {
		s.writeErr(w, "update note", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) deleteNote(w http.ResponseWriter, r *http.Request) {
	if err := s.db.DeleteNote(chi.URLParam(r, "id"), chi.URLParam(r, "noteID")); err != nil {
		s.writeErr(w, "delete note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
