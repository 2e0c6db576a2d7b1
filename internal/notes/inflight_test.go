package notes

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/starford/applysync/internal/models"
)

// seeded returns a store loaded with notes. List calls after the n-th fail
// so the refresh that follows a mutation leaves the list as the mutation
// left it.
func seeded(t *testing.T, n int, notes ...models.Note) (*fakeAPI, *Store) {
	t.Helper()
	api := &fakeAPI{notes: notes}
	api.listHook = func(call int) error {
		if call > n {
			return errBoom
		}
		return nil
	}
	s := New(api, "app-1", Config{})
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	return api, s
}

func note(id, content string, minute int) models.Note {
	return models.Note{ID: id, ApplicationID: "app-1", Content: content, CreatedAt: time.Date(2023, 6, 1, 0, minute, 0, 0, time.UTC)}
}

// block makes op on id wait until release is closed and then fail with err.
func block(api *fakeAPI, op, id string, err error) (entered, release chan struct{}) {
	entered, release = make(chan struct{}), make(chan struct{})
	api.mu.Lock()
	api.callHook = func(gotOp, gotID string) error {
		if gotOp != op || gotID != id {
			return nil
		}
		close(entered)
		<-release
		return err
	}
	api.mu.Unlock()
	return entered, release
}

func TestUpdate_FailureAfterRefreshKeepsServerNote(t *testing.T) {
	api, s := seeded(t, 2, note("a", "one", 1))
	entered, release := block(api, "update", "a", errBoom)

	done := make(chan error, 1)
	go func() {
		_, err := s.Update(context.Background(), "a", "mine")
		done <- err
	}()
	<-entered

	api.mu.Lock()
	api.notes[0].Content = "theirs"
	api.mu.Unlock()
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	close(release)
	if err := <-done; !errors.Is(err, errBoom) {
		t.Fatalf("Update err = %v", err)
	}
	s.Wait()

	items := s.Items()
	if len(items) != 1 || items[0].Content != "theirs" {
		t.Errorf("items = %+v, want the refreshed content", items)
	}
}

func TestDelete_FailureAfterRefreshDoesNotReinsert(t *testing.T) {
	api, s := seeded(t, 2, note("a", "one", 1), note("b", "two", 2))
	entered, release := block(api, "delete", "a", errBoom)

	done := make(chan error, 1)
	go func() { done <- s.Delete(context.Background(), "a") }()
	<-entered

	// Another client removed the note in the meantime.
	api.mu.Lock()
	api.notes = []models.Note{note("b", "two", 2)}
	api.mu.Unlock()
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	close(release)
	if err := <-done; !errors.Is(err, errBoom) {
		t.Fatalf("Delete err = %v", err)
	}
	s.Wait()

	if got := noteIDs(s.Items()); strings.Join(got, ",") != "b" {
		t.Errorf("items = %v, want [b]", got)
	}
}

func TestCreate_CommitAfterRefreshAddsNoteOnce(t *testing.T) {
	api, s := seeded(t, 2, note("a", "one", 1))

	entered, release := make(chan struct{}), make(chan struct{})
	api.createHook = func() error {
		close(entered)
		<-release
		return nil
	}
	done := make(chan error, 1)
	go func() {
		_, err := s.Create(context.Background(), "fresh")
		done <- err
	}()
	<-entered

	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := noteIDs(s.Items()); strings.Join(got, ",") != "a" {
		t.Fatalf("after refresh items = %v, want placeholder gone", got)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Create: %v", err)
	}
	s.Wait()

	if got := noteIDs(s.Items()); strings.Join(got, ",") != "n1,a" {
		t.Errorf("items = %v, want [n1 a]", got)
	}
}
