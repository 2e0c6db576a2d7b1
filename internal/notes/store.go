// Package notes keeps the per-application note lists. Mutations are applied
// optimistically and every mutation, successful or not, is followed by a
// background refresh from the backend.
package notes

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/applysync/internal/apperr"
	"github.com/starford/applysync/internal/client"
	"github.com/starford/applysync/internal/events"
	"github.com/starford/applysync/internal/models"
	"github.com/starford/applysync/internal/optimistic"
)

// TempPrefix marks notes that exist only locally.
const TempPrefix = "tmp-"

// API is the subset of the backend the notes store needs.
type API interface {
	List(ctx context.Context, appID string) ([]models.Note, error)
	Create(ctx context.Context, appID string, in models.NoteInput) (models.Note, error)
	Update(ctx context.Context, appID, noteID string, in models.NoteInput) (models.Note, error)
	Delete(ctx context.Context, appID, noteID string) error
}

var _ API = (*client.Notes)(nil)

// Config tunes a Store.
type Config struct {
	Logger *slog.Logger
	Events events.Publisher
	Now    func() time.Time
	// Context bounds background refreshes. Defaults to context.Background.
	Context context.Context
}

// Store is the note list of one application.
type Store struct {
	api    API
	appID  string
	logger *slog.Logger
	events events.Publisher
	now    func() time.Time
	bg     context.Context

	mu      sync.Mutex
	items   []models.Note
	loading bool
	err     error
	seq     uint64
	// gen counts applied refreshes. Rollbacks taken from an older list are
	// dropped.
	gen uint64

	wg sync.WaitGroup
}

// New creates the note store for appID.
func New(api API, appID string, cfg Config) *Store {
	s := &Store{
		api:    api,
		appID:  appID,
		logger: cfg.Logger,
		events: cfg.Events,
		now:    cfg.Now,
		bg:     cfg.Context,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.events == nil {
		s.events = events.Nop{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.bg == nil {
		s.bg = context.Background()
	}
	return s
}

// ApplicationID returns the owning application.
func (s *Store) ApplicationID() string { return s.appID }

// Items returns the notes, newest first.
func (s *Store) Items() []models.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Note(nil), s.items...)
}

// Err returns the last refresh error.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Loading reports whether a refresh is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Wait blocks until every background refresh has finished.
func (s *Store) Wait() {
	s.wg.Wait()
}

// Refresh replaces the list with the backend's. Only the newest refresh is
// applied, and it overwrites any optimistic state.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.loading = true
	s.mu.Unlock()

	items, err := s.api.List(ctx, s.appID)

	s.mu.Lock()
	if seq != s.seq {
		s.mu.Unlock()
		return nil
	}
	s.loading = false
	if err != nil {
		s.err = err
		s.mu.Unlock()
		s.logger.Warn("notes: refresh failed", slog.String("application_id", s.appID), slog.String("error", err.Error()))
		return err
	}
	sortNewestFirst(items)
	s.items = items
	s.gen++
	s.err = nil
	s.mu.Unlock()

	s.events.Publish(events.Event{Type: events.NotesChanged, Data: map[string]string{"application_id": s.appID}})
	return nil
}

// Create inserts a placeholder note at once and replaces it with the server
// note on success. On failure the placeholder is removed and the error
// returned.
func (s *Store) Create(ctx context.Context, content string) (models.Note, error) {
	in, err := models.NewNoteInput(content)
	if err != nil {
		return models.Note{}, fmt.Errorf("%w: %w", apperr.ErrValidation, err)
	}
	tmp := models.Note{
		ID:            TempPrefix + uuid.NewString(),
		ApplicationID: s.appID,
		Content:       in.Content,
		CreatedAt:     s.now(),
	}

	defer s.refreshAsync()
	return optimistic.Run(ctx, optimistic.Mutation[struct{}, models.Note]{
		Apply: func() struct{} {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.items = append([]models.Note{tmp}, s.items...)
			return struct{}{}
		},
		Remote: func(ctx context.Context) (models.Note, error) {
			return s.api.Create(ctx, s.appID, in)
		},
		Rollback: func(struct{}) {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.removeLocked(tmp.ID)
		},
		Commit: func(_ struct{}, n models.Note) {
			s.mu.Lock()
			defer s.mu.Unlock()
			i := s.indexLocked(tmp.ID)
			switch {
			case s.indexLocked(n.ID) >= 0:
				s.removeLocked(tmp.ID)
			case i >= 0:
				s.items[i] = n
			default:
				// A refresh dropped the placeholder before the note existed.
				s.items = append(s.items, n)
				sortNewestFirst(s.items)
			}
		},
	})
}

type noteSnapshot struct {
	prev  models.Note
	index int
	found bool
	gen   uint64
}

// Update replaces the content of noteID.
func (s *Store) Update(ctx context.Context, noteID, content string) (models.Note, error) {
	if err := checkPersisted(noteID); err != nil {
		return models.Note{}, err
	}
	in, err := models.NewNoteInput(content)
	if err != nil {
		return models.Note{}, fmt.Errorf("%w: %w", apperr.ErrValidation, err)
	}

	defer s.refreshAsync()
	return optimistic.Run(ctx, optimistic.Mutation[noteSnapshot, models.Note]{
		Apply: func() noteSnapshot {
			s.mu.Lock()
			defer s.mu.Unlock()
			i := s.indexLocked(noteID)
			if i < 0 {
				return noteSnapshot{}
			}
			snap := noteSnapshot{prev: s.items[i], index: i, found: true, gen: s.gen}
			s.items[i].Content = in.Content
			return snap
		},
		Remote: func(ctx context.Context) (models.Note, error) {
			return s.api.Update(ctx, s.appID, noteID, in)
		},
		Rollback: func(snap noteSnapshot) {
			s.mu.Lock()
			defer s.mu.Unlock()
			if !snap.found || snap.gen != s.gen {
				return
			}
			if i := s.indexLocked(noteID); i >= 0 {
				s.items[i] = snap.prev
			}
		},
		Commit: func(_ noteSnapshot, n models.Note) {
			s.mu.Lock()
			defer s.mu.Unlock()
			if i := s.indexLocked(noteID); i >= 0 {
				s.items[i] = n
			}
		},
	})
}

// Delete removes noteID. On failure it returns to its previous position.
func (s *Store) Delete(ctx context.Context, noteID string) error {
	if err := checkPersisted(noteID); err != nil {
		return err
	}

	defer s.refreshAsync()
	return optimistic.Exec(ctx,
		func() noteSnapshot {
			s.mu.Lock()
			defer s.mu.Unlock()
			i := s.indexLocked(noteID)
			if i < 0 {
				return noteSnapshot{}
			}
			snap := noteSnapshot{prev: s.items[i], index: i, found: true, gen: s.gen}
			s.removeLocked(noteID)
			return snap
		},
		func(ctx context.Context) error {
			return s.api.Delete(ctx, s.appID, noteID)
		},
		func(snap noteSnapshot) {
			s.mu.Lock()
			defer s.mu.Unlock()
			if !snap.found || snap.gen != s.gen || s.indexLocked(noteID) >= 0 {
				return
			}
			i := min(snap.index, len(s.items))
			s.items = append(s.items, models.Note{})
			copy(s.items[i+1:], s.items[i:])
			s.items[i] = snap.prev
		},
	)
}

func (s *Store) refreshAsync() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = s.Refresh(s.bg)
	}()
}

func (s *Store) indexLocked(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) removeLocked(id string) {
	if i := s.indexLocked(id); i >= 0 {
		s.items = append(s.items[:i], s.items[i+1:]...)
	}
}

func checkPersisted(id string) error {
	if id == "" {
		return fmt.Errorf("%w: note id is required", apperr.ErrValidation)
	}
	if strings.HasPrefix(id, TempPrefix) {
		return fmt.Errorf("%w: note %s is still being created", apperr.ErrValidation, id)
	}
	return nil
}

func sortNewestFirst(items []models.Note) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}
