package notes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/applysync/internal/apperr"
	"github.com/starford/applysync/internal/models"
)

var errBoom = errors.New("boom")

type fakeAPI struct {
	mu    sync.Mutex
	notes []models.Note
	next  int
	lists int

	createHook func() error
	listHook   func(call int) error
	// callHook runs before Update and Delete and may block or fail them.
	callHook   func(op, id string) error
	failUpdate error
	failDelete error
}

func (f *fakeAPI) List(ctx context.Context, appID string) ([]models.Note, error) {
	f.mu.Lock()
	f.lists++
	call := f.lists
	hook := f.listHook
	f.mu.Unlock()
	if hook != nil {
		if err := hook(call); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Note(nil), f.notes...), nil
}

func (f *fakeAPI) Create(ctx context.Context, appID string, in models.NoteInput) (models.Note, error) {
	if f.createHook != nil {
		if err := f.createHook(); err != nil {
			return models.Note{}, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	n := models.Note{
		ID:            fmt.Sprintf("n%d", f.next),
		ApplicationID: appID,
		Content:       in.Content,
		CreatedAt:     time.Date(2024, 1, 1, 0, f.next, 0, 0, time.UTC),
	}
	f.notes = append(f.notes, n)
	return n, nil
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

func (f *fakeAPI) Update(ctx context.Context, appID, noteID string, in models.NoteInput) (models.Note, error) {
	if err := f.hook("update", noteID); err != nil {
		return models.Note{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate != nil {
		return models.Note{}, f.failUpdate
	}
	for i := range f.notes {
		if f.notes[i].ID == noteID {
			f.notes[i].Content = in.Content
			return f.notes[i], nil
		}
	}
	return models.Note{}, apperr.ErrNotFound
}

func (f *fakeAPI) Delete(ctx context.Context, appID, noteID string) error {
	if err := f.hook("delete", noteID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete != nil {
		return f.failDelete
	}
	for i := range f.notes {
		if f.notes[i].ID == noteID {
			f.notes = append(f.notes[:i], f.notes[i+1:]...)
			return nil
		}
	}
	return apperr.ErrNotFound
}

func noteIDs(items []models.Note) []string {
	out := make([]string, len(items))
	for i, n := range items {
		out[i] = n.ID
	}
	return out
}

func TestCreate_TempThenReplaced(t *testing.T) {
	api := &fakeAPI{}
	s := New(api, "app-1", Config{})

	release := make(chan struct{})
	entered := make(chan struct{})
	api.createHook = func() error {
		close(entered)
		<-release
		return nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.Create(context.Background(), "  first call  ")
		done <- err
	}()
	<-entered

	items := s.Items()
	if len(items) != 1 || !strings.HasPrefix(items[0].ID, TempPrefix) || items[0].Content != "first call" {
		t.Fatalf("optimistic items = %+v", items)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got := noteIDs(s.Items()); len(got) != 1 || got[0] != "n1" {
		t.Errorf("items after create = %v, want [n1]", got)
	}
	s.Wait()
	if got := noteIDs(s.Items()); len(got) != 1 || got[0] != "n1" {
		t.Errorf("items after refresh = %v, want [n1]", got)
	}
}

func TestCreate_FailureRemovesTempAndReturnsError(t *testing.T) {
	api := &fakeAPI{createHook: func() error { return errBoom }}
	s := New(api, "app-1", Config{})

	_, err := s.Create(context.Background(), "hello")
	if !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if len(s.Items()) != 0 {
		t.Errorf("items = %v", noteIDs(s.Items()))
	}
	s.Wait()
	api.mu.Lock()
	lists := api.lists
	api.mu.Unlock()
	if lists != 1 {
		t.Errorf("refreshes after failure = %d, want 1", lists)
	}
}

func TestCreate_BlankIsValidationError(t *testing.T) {
	s := New(&fakeAPI{}, "app-1", Config{})
	if _, err := s.Create(context.Background(), "   "); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("err = %v", err)
	}
	if _, err := s.Create(context.Background(), strings.Repeat("x", models.MaxNoteLen+1)); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("oversize err = %v", err)
	}
}

func TestUpdateAndDelete_RollBackOnFailure(t *testing.T) {
	api := &fakeAPI{}
	s := New(api, "app-1", Config{})
	ctx := context.Background()
	for _, c := range []string{"one", "two", "three"} {
		if _, err := s.Create(ctx, c); err != nil {
			t.Fatal(err)
		}
	}
	s.Wait()
	before := noteIDs(s.Items())
	if len(before) != 3 || before[0] != "n3" {
		t.Fatalf("items = %v, want newest first", before)
	}

	api.failUpdate = errBoom
	if _, err := s.Update(ctx, "n2", "changed"); !errors.Is(err, errBoom) {
		t.Fatalf("update err = %v", err)
	}
	for _, n := range s.Items() {
		if n.ID == "n2" && n.Content != "two" {
			t.Errorf("content = %q after rollback", n.Content)
		}
	}

	api.failDelete = errBoom
	if err := s.Delete(ctx, "n2"); !errors.Is(err, errBoom) {
		t.Fatalf("delete err = %v", err)
	}
	if got := noteIDs(s.Items()); strings.Join(got, ",") != strings.Join(before, ",") {
		t.Errorf("items = %v, want %v", got, before)
	}
	s.Wait()

	api.failDelete = nil
	if err := s.Delete(ctx, "n2"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	s.Wait()
	if got := noteIDs(s.Items()); strings.Join(got, ",") != "n3,n1" {
		t.Errorf("items = %v", got)
	}
}

func TestRefresh_NewestWins(t *testing.T) {
	api := &fakeAPI{notes: []models.Note{{ID: "old", ApplicationID: "app-1", Content: "x"}}}
	s := New(api, "app-1", Config{})

	release := make(chan struct{})
	entered := make(chan struct{})
	api.listHook = func(call int) error {
		if call == 1 {
			close(entered)
			<-release
		}
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- s.Refresh(context.Background()) }()
	<-entered

	api.mu.Lock()
	api.notes = []models.Note{{ID: "new", ApplicationID: "app-1", Content: "y"}}
	api.mu.Unlock()
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	api.mu.Lock()
	api.notes = []models.Note{{ID: "stale", ApplicationID: "app-1", Content: "z"}}
	api.mu.Unlock()
	close(release)
	<-done

	if got := noteIDs(s.Items()); len(got) != 1 || got[0] != "new" {
		t.Errorf("items = %v, want [new]", got)
	}
	if s.Loading() {
		t.Error("loading left set")
	}
}

func TestTempIDsCannotBeMutated(t *testing.T) {
	s := New(&fakeAPI{}, "app-1", Config{})
	if _, err := s.Update(context.Background(), "tmp-x", "a"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("update err = %v", err)
	}
	if err := s.Delete(context.Background(), "tmp-x"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("delete err = %v", err)
	}
}

func TestRegistry_OneStorePerApplication(t *testing.T) {
	r := NewRegistry(&fakeAPI{}, Config{})
	a := r.For("app-1")
	if r.For("app-1") != a {
		t.Error("same application must share a store")
	}
	if r.For("app-2") == a {
		t.Error("different applications must not share a store")
	}
	r.Forget("app-1")
	if r.For("app-1") == a {
		t.Error("Forget should drop the store")
	}
	r.Wait()
}
