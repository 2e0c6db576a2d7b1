package devbackend

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server serves the tracker HTTP contract over a DB.
type Server struct {
	db     *DB
	token  string
	logger *slog.Logger
	now    func() time.Time

	mu         sync.Mutex
	faults     map[string]int
	unverified bool
}

// Option configures a Server.
type Option func(*Server)

// WithToken requires "Authorization: Bearer <token>" on every request.
// An empty token disables auth.
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithClock overrides time.Now for created_at stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer creates a Server over db.
func NewServer(db *DB, opts ...Option) *Server {
	s := &Server{
		db:     db,
		logger: slog.Default(),
		now:    time.Now,
		faults: make(map[string]int),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// DB returns the underlying store, for seeding.
func (s *Server) DB() *DB { return s.db }

// Fail makes every request addressing application id answer with code.
// Bulk endpoints silently skip the id instead.
func (s *Server) Fail(id string, code int) {
	s.mu.Lock()
	s.faults[id] = code
	s.mu.Unlock()
}

// ClearFaults removes every injected failure.
func (s *Server) ClearFaults() {
	s.mu.Lock()
	s.faults = make(map[string]int)
	s.mu.Unlock()
}

// SetUnverified makes every authenticated request answer 403 "Email not verified".
func (s *Server) SetUnverified(v bool) {
	s.mu.Lock()
	s.unverified = v
	s.mu.Unlock()
}

func (s *Server) fault(id string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.faults[id]
	return code, ok
}

func (s *Server) faultSet() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.faults))
	for id := range s.faults {
		out[id] = true
	}
	return out
}

// Handler returns the chi router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(s.auth)

	r.Get("/applications", s.listApplications)
	r.Post("/applications", s.createApplication)
	r.Post("/applications/bulk-move", s.bulkMove)
	r.Post("/applications/bulk-delete", s.bulkDelete)

	r.Route("/applications/{id}", func(r chi.Router) {
		r.Use(s.injectFaults)
		r.Get("/", s.getApplication)
		r.Patch("/", s.updateApplication)
		r.Delete("/", s.deleteApplication)
		r.Post("/move", s.moveApplication)

		r.Get("/notes", s.listNotes)
		r.Post("/notes", s.createNote)
		r.Patch("/notes/{noteID}", s.updateNote)
		r.Delete("/notes/{noteID}", s.deleteNote)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("devbackend: request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("took", time.Since(start)))
	})
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") || strings.TrimPrefix(h, "Bearer ") != s.token {
				writeJSON(w, http.StatusUnauthorized, detail("Not authenticated"))
				return
			}
		}
		s.mu.Lock()
		unverified := s.unverified
		s.mu.Unlock()
		if unverified {
			writeJSON(w, http.StatusForbidden, detail("Email not verified"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) injectFaults(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if code, ok := s.fault(chi.URLParam(r, "id")); ok {
			writeJSON(w, code, detail("injected failure"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type errDetail struct {
	Detail string `json:"detail"`
}

func detail(msg string) errDetail {
	return errDetail{Detail: msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("devbackend: json encode failed", slog.String("error", err.Error()))
	}
}
