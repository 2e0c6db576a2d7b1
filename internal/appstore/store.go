// Package appstore holds the client-side collection of job applications and
// keeps it consistent with the backend: filtered and searched first-page
// loads, infinite-scroll pagination, optimistic single-record mutations and
// best-effort bulk operations over a selection.
package appstore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/applysync/internal/apperr"
	"github.com/starford/applysync/internal/client"
	"github.com/starford/applysync/internal/events"
	"github.com/starford/applysync/internal/models"
	"github.com/starford/applysync/internal/optimistic"
	"github.com/starford/applysync/internal/query"
	"github.com/starford/applysync/internal/status"
)

// TempPrefix marks ids of records that exist only locally.
const TempPrefix = "tmp-"

// DefaultPageSize is used when Config.PageSize is unset.
const DefaultPageSize = 20

// IsTemp reports whether id is a placeholder id.
func IsTemp(id string) bool {
	return strings.HasPrefix(id, TempPrefix)
}

// API is the subset of the backend the store needs.
type API interface {
	List(ctx context.Context, p client.ListParams) (client.Page, error)
	Create(ctx context.Context, in models.CreateApplication) (models.Application, error)
	Update(ctx context.Context, id string, p models.ApplicationPatch) (models.Application, error)
	Delete(ctx context.Context, id string) error
	Move(ctx context.Context, id string, s status.Wire) error
	BulkMove(ctx context.Context, ids []string, s status.Wire) (models.BulkResult, error)
	BulkDelete(ctx context.Context, ids []string) (models.BulkResult, error)
}

var _ API = (*client.Applications)(nil)

// State is the lifecycle of the current query.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateErrored:
		return "errored"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Config tunes a Store.
type Config struct {
	PageSize        int
	BulkStrategy    BulkStrategy
	BulkConcurrency int
	Logger          *slog.Logger
	Events          events.Publisher
	Now             func() time.Time
}

// View is a consistent copy of the store state.
type View struct {
	Items       []models.Application
	State       State
	Err         error
	HasMore     bool
	LoadingMore bool
	SelectedIDs []string
	Filter      Tab
	Search      string
	Query       query.Query
}

// Store is safe for concurrent use. Network calls are made without holding
// the lock; first-page responses are tagged with a sequence number and only
// the latest one is applied.
type Store struct {
	api      API
	pageSize int
	bulk     BulkStrategy
	bulkN    int
	logger   *slog.Logger
	events   events.Publisher
	now      func() time.Time

	mu          sync.Mutex
	items       []models.Application
	state       State
	err         error
	filter      Tab
	search      string
	query       query.Query
	seq         uint64
	gen         uint64
	offset      int
	hasMore     bool
	loadingMore bool
	selected    map[string]struct{}
	overrides   map[string]status.Display
	moveErrs    map[string]error
}

// New creates a Store over api.
func New(api API, cfg Config) *Store {
	s := &Store{
		api:       api,
		pageSize:  cfg.PageSize,
		bulk:      cfg.BulkStrategy,
		bulkN:     cfg.BulkConcurrency,
		logger:    cfg.Logger,
		events:    cfg.Events,
		now:       cfg.Now,
		filter:    TabAll,
		selected:  make(map[string]struct{}),
		overrides: make(map[string]status.Display),
		moveErrs:  make(map[string]error),
	}
	if s.pageSize <= 0 {
		s.pageSize = DefaultPageSize
	}
	if s.bulk == "" {
		s.bulk = BulkFanout
	}
	if s.bulkN <= 0 {
		s.bulkN = DefaultBulkConcurrency
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
	return s
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]models.Application, len(s.items))
	for i, a := range s.items {
		items[i] = a.Clone()
	}
	return View{
		Items:       items,
		State:       s.state,
		Err:         s.err,
		HasMore:     s.hasMore,
		LoadingMore: s.loadingMore,
		SelectedIDs: s.selectedIDsLocked(),
		Filter:      s.filter,
		Search:      s.search,
		Query:       s.query,
	}
}

// Get returns the cached record with id.
func (s *Store) Get(id string) (models.Application, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.items[i].Clone(), true
	}
	return models.Application{}, false
}

// DisplayedStatus is the status shown for a: a pending or applied move
// override wins over the record's own status.
func (s *Store) DisplayedStatus(a models.Application) status.Display {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayedLocked(a)
}

func (s *Store) displayedLocked(a models.Application) status.Display {
	if d, ok := s.overrides[a.ID]; ok {
		return d
	}
	return status.DisplayOrDefault(a.Status)
}

// MoveError returns the error of the last failed move of id, if any.
func (s *Store) MoveError(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moveErrs[id]
}

// SetFilter switches the status tab and loads its first page.
func (s *Store) SetFilter(ctx context.Context, tab Tab) error {
	if !tab.Valid() {
		return fmt.Errorf("%w: unknown tab %q", apperr.ErrValidation, string(tab))
	}
	s.mu.Lock()
	s.filter = tab
	s.clearSelectionLocked()
	s.mu.Unlock()
	return s.Reload(ctx)
}

// SetSearch parses raw and, when the parsed query changed, loads the first
// page for it.
func (s *Store) SetSearch(ctx context.Context, raw string) error {
	q := query.Parse(raw)
	s.mu.Lock()
	if q.Equal(s.query) && (s.state == StateReady || s.state == StateLoading) {
		s.search = raw
		s.mu.Unlock()
		return nil
	}
	s.search = raw
	s.query = q
	s.clearSelectionLocked()
	s.mu.Unlock()
	return s.Reload(ctx)
}

// Reload fetches the first page for the current filter and query. A response
// that arrives after a newer Reload started is discarded.
func (s *Store) Reload(ctx context.Context) error {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.state = StateLoading
	s.err = nil
	s.offset = 0
	s.hasMore = false
	s.loadingMore = false
	params := s.paramsLocked(0)
	q := s.query
	s.mu.Unlock()

	page, err := s.api.List(ctx, params)

	s.mu.Lock()
	if seq != s.seq {
		s.mu.Unlock()
		s.logger.Debug("appstore: discarding stale page", slog.Uint64("seq", seq))
		return nil
	}
	if err != nil {
		s.state = StateErrored
		s.err = err
		s.mu.Unlock()
		s.logger.Warn("appstore: load failed", slog.String("error", err.Error()))
		s.events.Publish(events.Event{Type: events.ApplicationsError, Data: map[string]string{"error": err.Error()}})
		return err
	}
	s.items = filterDates(page.Items, q)
	s.gen++
	s.offset = len(page.Items)
	s.hasMore = s.morePages(page)
	s.state = StateReady
	s.selected = make(map[string]struct{})
	s.overrides = make(map[string]status.Display)
	s.moveErrs = make(map[string]error)
	n := len(s.items)
	s.mu.Unlock()

	s.logger.Debug("appstore: loaded", slog.Int("items", n), slog.String("filter", string(params.Status)))
	s.events.Publish(events.Event{Type: events.ApplicationsChanged, Data: map[string]int{"count": n}})
	return nil
}

// Create validates in, shows a placeholder at the top of the list and
// replaces it with the server record once the create succeeds.
func (s *Store) Create(ctx context.Context, in models.CreateApplication) (models.Application, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return models.Application{}, fmt.Errorf("%w: %w", apperr.ErrValidation, err)
	}
	tmpID := TempPrefix + uuid.NewString()
	placeholder := in.Placeholder(tmpID, s.now())

	created, err := optimistic.Run(ctx, optimistic.Mutation[struct{}, models.Application]{
		Apply: func() struct{} {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.items = append([]models.Application{placeholder}, s.items...)
			return struct{}{}
		},
		Remote: func(ctx context.Context) (models.Application, error) {
			return s.api.Create(ctx, in)
		},
		Rollback: func(struct{}) {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.removeLocked(tmpID)
		},
		Commit: func(_ struct{}, a models.Application) {
			s.mu.Lock()
			defer s.mu.Unlock()
			i := s.indexLocked(tmpID)
			switch {
			case s.indexLocked(a.ID) >= 0:
				s.removeLocked(tmpID)
			case i >= 0:
				s.items[i] = a.Clone()
			case s.matchesLocked(a):
				// A reload replaced the list while the create was in flight
				// and its page did not include the new record yet.
				s.insertLocked(0, a.Clone())
			}
		},
	})
	if err != nil {
		return models.Application{}, err
	}
	s.publishRecord(events.Created, created.ID)
	return created, nil
}

// recordSnapshot is the state a single-record mutation restores on failure.
// gen is the list generation it was taken from; once a reload has replaced
// the list the snapshot is obsolete and is not restored.
type recordSnapshot struct {
	prev        models.Application
	index       int
	found       bool
	selected    bool
	gen         uint64
	hadOverride bool
	override    status.Display
}

// Update sends only the fields of p that differ from the cached record. An
// empty difference returns the cached record without a request.
func (s *Store) Update(ctx context.Context, id string, p models.ApplicationPatch) (models.Application, error) {
	if err := checkPersisted(id); err != nil {
		return models.Application{}, err
	}
	if err := p.Validate(); err != nil {
		return models.Application{}, fmt.Errorf("%w: %w", apperr.ErrValidation, err)
	}
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return models.Application{}, fmt.Errorf("appstore: update %s: %w", id, apperr.ErrNotFound)
	}
	cur := s.items[i].Clone()
	s.mu.Unlock()

	diff := p.Diff(cur)
	if diff.IsEmpty() {
		return cur, nil
	}

	updated, err := optimistic.Run(ctx, optimistic.Mutation[recordSnapshot, models.Application]{
		Apply: func() recordSnapshot {
			s.mu.Lock()
			defer s.mu.Unlock()
			i := s.indexLocked(id)
			if i < 0 {
				return recordSnapshot{}
			}
			snap := recordSnapshot{prev: s.items[i].Clone(), index: i, found: true, gen: s.gen}
			snap.override, snap.hadOverride = s.overrides[id]
			s.items[i] = diff.Apply(s.items[i])
			if diff.Status != nil {
				s.overrides[id] = status.ToDisplay(*diff.Status)
			}
			return snap
		},
		Remote: func(ctx context.Context) (models.Application, error) {
			return s.api.Update(ctx, id, diff)
		},
		Rollback: func(snap recordSnapshot) {
			s.mu.Lock()
			defer s.mu.Unlock()
			if !snap.found || snap.gen != s.gen {
				return
			}
			if i := s.indexLocked(id); i >= 0 {
				s.items[i] = snap.prev
			}
			s.restoreOverrideLocked(id, snap.hadOverride, snap.override)
		},
		Commit: func(_ recordSnapshot, a models.Application) {
			s.mu.Lock()
			defer s.mu.Unlock()
			if i := s.indexLocked(id); i >= 0 {
				s.items[i] = a.Clone()
			}
			if diff.Status != nil {
				delete(s.overrides, id)
			}
		},
	})
	if err != nil {
		return models.Application{}, err
	}
	s.publishRecord(events.Updated, id)
	return updated, nil
}

// Remove deletes id optimistically. On failure the record returns to its
// previous position and selection state.
func (s *Store) Remove(ctx context.Context, id string) error {
	if err := checkPersisted(id); err != nil {
		return err
	}
	var (
		removed    bool
		removedGen uint64
	)
	err := optimistic.Exec(ctx,
		func() recordSnapshot {
			s.mu.Lock()
			defer s.mu.Unlock()
			i := s.indexLocked(id)
			if i < 0 {
				return recordSnapshot{}
			}
			_, sel := s.selected[id]
			snap := recordSnapshot{prev: s.items[i], index: i, found: true, selected: sel, gen: s.gen}
			s.removeLocked(id)
			removed, removedGen = true, s.gen
			return snap
		},
		func(ctx context.Context) error {
			return s.api.Delete(ctx, id)
		},
		func(snap recordSnapshot) {
			s.mu.Lock()
			defer s.mu.Unlock()
			if !snap.found || snap.gen != s.gen || s.indexLocked(id) >= 0 {
				return
			}
			s.insertLocked(snap.index, snap.prev)
			if snap.selected {
				s.selected[id] = struct{}{}
			}
		},
	)
	if err != nil {
		return err
	}
	s.mu.Lock()
	switch {
	case removed && removedGen == s.gen:
		s.consumedLocked(1)
	case s.indexLocked(id) >= 0:
		// A reload fetched the record before the delete landed.
		s.removeLocked(id)
		s.consumedLocked(1)
	}
	s.mu.Unlock()
	s.publishRecord(events.Deleted, id)
	return nil
}

type moveSnapshot struct {
	prev        status.Wire
	found       bool
	gen         uint64
	hadOverride bool
	override    status.Display
}

// MoveStatus changes the status of id. The new status shows immediately;
// on failure the previous status returns and MoveError(id) reports why.
func (s *Store) MoveStatus(ctx context.Context, id string, to status.Display) error {
	if err := checkPersisted(id); err != nil {
		return err
	}
	if _, err := status.ParseDisplay(string(to)); err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrValidation, err)
	}
	wire := status.ToWire(to)

	err := optimistic.Exec(ctx,
		func() moveSnapshot {
			s.mu.Lock()
			defer s.mu.Unlock()
			snap := moveSnapshot{gen: s.gen}
			snap.override, snap.hadOverride = s.overrides[id]
			if i := s.indexLocked(id); i >= 0 {
				snap.prev, snap.found = s.items[i].Status, true
				s.items[i].Status = wire
			}
			s.overrides[id] = to
			delete(s.moveErrs, id)
			return snap
		},
		func(ctx context.Context) error {
			return s.api.Move(ctx, id, wire)
		},
		func(snap moveSnapshot) {
			s.mu.Lock()
			defer s.mu.Unlock()
			if snap.gen != s.gen {
				return
			}
			if i := s.indexLocked(id); i >= 0 && snap.found {
				s.items[i].Status = snap.prev
			}
			s.restoreOverrideLocked(id, snap.hadOverride, snap.override)
		},
	)
	if err != nil {
		s.mu.Lock()
		s.moveErrs[id] = err
		s.mu.Unlock()
		s.logger.Warn("appstore: move failed", slog.String("id", id), slog.String("error", err.Error()))
		return err
	}
	s.publishRecord(events.Updated, id)
	return nil
}

func (s *Store) restoreOverrideLocked(id string, had bool, d status.Display) {
	if had {
		s.overrides[id] = d
	} else {
		delete(s.overrides, id)
	}
}

// publishRecord announces a change to id with its displayed status when the
// record is still listed.
func (s *Store) publishRecord(kind, id string) {
	rec := events.Record{Kind: kind, ID: id}
	if kind != events.Deleted {
		s.mu.Lock()
		if i := s.indexLocked(id); i >= 0 {
			rec.Company = s.items[i].Company
			rec.Status = s.displayedLocked(s.items[i])
		}
		s.mu.Unlock()
	}
	s.events.PublishRecord(rec)
}

// matchesLocked reports whether a belongs in the current tab and query.
// Text matching mirrors the backend search over company, title and
// description.
func (s *Store) matchesLocked(a models.Application) bool {
	if s.filter != TabAll && s.filter != "" && status.DisplayOrDefault(a.Status) != status.Display(s.filter) {
		return false
	}
	if !s.query.Contains(a.AppliedDate) {
		return false
	}
	if s.query.Text == "" {
		return true
	}
	text := strings.ToLower(s.query.Text)
	for _, f := range []string{a.Company, a.JobTitle, a.JobDescription} {
		if strings.Contains(strings.ToLower(f), text) {
			return true
		}
	}
	return false
}

func checkPersisted(id string) error {
	if id == "" {
		return fmt.Errorf("%w: id is required", apperr.ErrValidation)
	}
	if IsTemp(id) {
		return fmt.Errorf("%w: %s is still being created", apperr.ErrValidation, id)
	}
	return nil
}

func (s *Store) paramsLocked(offset int) client.ListParams {
	return client.ListParams{
		Status: s.filter.Wire(),
		Text:   s.query.Text,
		Limit:  s.pageSize,
		Offset: offset,
	}
}

func (s *Store) morePages(p client.Page) bool {
	if p.HasMore != nil {
		return *p.HasMore
	}
	return len(p.Items) == s.pageSize
}

// consumedLocked accounts for n records removed on the server so the next
// page offset does not skip any.
func (s *Store) consumedLocked(n int) {
	s.offset -= n
	if s.offset < 0 {
		s.offset = 0
	}
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
	delete(s.selected, id)
}

func (s *Store) insertLocked(i int, a models.Application) {
	if i > len(s.items) {
		i = len(s.items)
	}
	s.items = append(s.items, models.Application{})
	copy(s.items[i+1:], s.items[i:])
	s.items[i] = a
}

func filterDates(items []models.Application, q query.Query) []models.Application {
	out := make([]models.Application, 0, len(items))
	for _, a := range items {
		if q.Contains(a.AppliedDate) {
			out = append(out, a)
		}
	}
	return out
}
