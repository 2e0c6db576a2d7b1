package appstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/starford/applysync/internal/apperr"
	"github.com/starford/applysync/internal/client"
	"github.com/starford/applysync/internal/models"
	"github.com/starford/applysync/internal/status"
)

// fakeAPI serves applications from memory. Hooks let tests fail or block
// individual calls.
type fakeAPI struct {
	mu   sync.Mutex
	apps []models.Application

	listCalls []client.ListParams
	moveCalls []string
	delCalls  []string
	updCalls  []models.ApplicationPatch
	bulkCalls int

	// listHook runs before each List and may block or fail it.
	listHook   func(p client.ListParams) error
	createHook func() error
	// callHook runs before Update, Delete and Move and may block or fail them.
	callHook   func(op, id string) error
	failMove   map[string]error
	failDelete map[string]error
	failUpdate error
	// batchApplied overrides the count reported by the bulk endpoints.
	batchApplied *int
}

func newFake(apps ...models.Application) *fakeAPI {
	return &fakeAPI{apps: apps, failMove: map[string]error{}, failDelete: map[string]error{}}
}

func (f *fakeAPI) List(ctx context.Context, p client.ListParams) (client.Page, error) {
	f.mu.Lock()
	f.listCalls = append(f.listCalls, p)
	hook := f.listHook
	f.mu.Unlock()
	if hook != nil {
		if err := hook(p); err != nil {
			return client.Page{}, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	var match []models.Application
	for _, a := range f.apps {
		if p.Status != "" && a.Status != p.Status {
			continue
		}
		match = append(match, a.Clone())
	}
	if p.Offset >= len(match) {
		return client.Page{Items: []models.Application{}}, nil
	}
	match = match[p.Offset:]
	if p.Limit > 0 && len(match) > p.Limit {
		match = match[:p.Limit]
	}
	return client.Page{Items: match}, nil
}

func (f *fakeAPI) Create(ctx context.Context, in models.CreateApplication) (models.Application, error) {
	if f.createHook != nil {
		if err := f.createHook(); err != nil {
			return models.Application{}, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	a := in.Placeholder(fmt.Sprintf("srv-%d", len(f.apps)), time.Now())
	f.apps = append([]models.Application{a}, f.apps...)
	return a, nil
}

func (f *fakeAPI) hook(op, id string) error {
	f.mu.Lock()
	h := f.callHook
	f.mu.Unlock()
	if h == nil {
		return nil
	}
	return h(op, id)
}

func (f *fakeAPI) Update(ctx context.Context, id string, p models.ApplicationPatch) (models.Application, error) {
	if err := f.hook("update", id); err != nil {
		return models.Application{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updCalls = append(f.updCalls, p)
	if f.failUpdate != nil {
		return models.Application{}, f.failUpdate
	}
	for i := range f.apps {
		if f.apps[i].ID == id {
			f.apps[i] = p.Apply(f.apps[i])
			return f.apps[i], nil
		}
	}
	return models.Application{}, apperr.ErrNotFound
}

func (f *fakeAPI) Delete(ctx context.Context, id string) error {
	if err := f.hook("delete", id); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delCalls = append(f.delCalls, id)
	if err := f.failDelete[id]; err != nil {
		return err
	}
	for i := range f.apps {
		if f.apps[i].ID == id {
			f.apps = append(f.apps[:i], f.apps[i+1:]...)
			return nil
		}
	}
	return apperr.ErrNotFound
}

func (f *fakeAPI) Move(ctx context.Context, id string, s status.Wire) error {
	if err := f.hook("move", id); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moveCalls = append(f.moveCalls, id)
	if err := f.failMove[id]; err != nil {
		return err
	}
	for i := range f.apps {
		if f.apps[i].ID == id {
			f.apps[i].Status = s
			return nil
		}
	}
	return apperr.ErrNotFound
}

func (f *fakeAPI) BulkMove(ctx context.Context, ids []string, s status.Wire) (models.BulkResult, error) {
	f.mu.Lock()
	f.bulkCalls++
	f.mu.Unlock()
	n := 0
	for _, id := range ids {
		f.mu.Lock()
		failed := f.failMove[id] != nil
		f.mu.Unlock()
		if !failed && f.Move(ctx, id, s) == nil {
			n++
		}
	}
	if f.batchApplied != nil {
		n = *f.batchApplied
	}
	return models.BulkResult{Requested: len(ids), Updated: n}, nil
}

func (f *fakeAPI) BulkDelete(ctx context.Context, ids []string) (models.BulkResult, error) {
	f.mu.Lock()
	f.bulkCalls++
	f.mu.Unlock()
	n := 0
	for _, id := range ids {
		if f.Delete(ctx, id) == nil {
			n++
		}
	}
	if f.batchApplied != nil {
		n = *f.batchApplied
	}
	return models.BulkResult{Requested: len(ids), Deleted: n}, nil
}

// setCompany and setStatus edit the server copy, as another client would.
func (f *fakeAPI) setCompany(id, company string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.apps {
		if f.apps[i].ID == id {
			f.apps[i].Company = company
		}
	}
}

func (f *fakeAPI) setStatus(id string, st status.Wire) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.apps {
		if f.apps[i].ID == id {
			f.apps[i].Status = st
		}
	}
}

// gate blocks a call until release is closed and then returns err.
type gate struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gate) wait(err error) error {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return err
}

func (f *fakeAPI) listCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listCalls)
}

func (f *fakeAPI) lastList() client.ListParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls[len(f.listCalls)-1]
}

func app(id, company string, st status.Wire) models.Application {
	return models.Application{
		ID:        id,
		Company:   company,
		JobTitle:  "Engineer",
		Status:    st,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func appsN(n int, st status.Wire) []models.Application {
	out := make([]models.Application, n)
	for i := range out {
		out[i] = app(fmt.Sprintf("a%02d", i), fmt.Sprintf("Company %02d", i), st)
	}
	return out
}

// loaded returns a store over api with the first page already loaded.
func loaded(t *testing.T, api API, cfg Config) *Store {
	t.Helper()
	s := New(api, cfg)
	if err := s.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	return s
}

func ids(items []models.Application) []string {
	out := make([]string, len(items))
	for i, a := range items {
		out[i] = a.ID
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}
