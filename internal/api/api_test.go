package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/starford/applysync/internal/appstore"
	"github.com/starford/applysync/internal/client"
	"github.com/starford/applysync/internal/devbackend"
	"github.com/starford/applysync/internal/models"
	"github.com/starford/applysync/internal/notes"
	"github.com/starford/applysync/internal/session"
	"github.com/starford/applysync/internal/status"
	"github.com/starford/applysync/internal/testutil"
)

type env struct {
	backend *devbackend.Server
	store   *appstore.Store
	notes   *notes.Registry
	router  http.Handler
}

// testEnv wires the mirror to a reference backend seeded with n applied
// applications. authToken enables mirror auth when non-empty.
func testEnv(t *testing.T, n int, authToken string) *env {
	t.Helper()
	srv, ts := testutil.Backend(t, "backend-token")
	testutil.Seed(t, srv.DB(), n, status.WireApplied)

	c := client.New(ts.URL, session.NewMemory("backend-token"), client.Options{})
	apps := client.NewApplications(c)
	store := appstore.New(apps, appstore.Config{PageSize: 2})
	box := appstore.NewSearchBox(context.Background(), store, time.Hour)
	t.Cleanup(box.Close)
	reg := notes.NewRegistry(client.NewNotes(c), notes.Config{})
	t.Cleanup(reg.Wait)

	if err := store.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	h := NewHandler(store, box, apps, reg)
	return &env{backend: srv, store: store, notes: reg, router: NewRouter(h, authToken != "", authToken, nil)}
}

func (e *env) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeView(t *testing.T, w *httptest.ResponseRecorder) ViewResponse {
	t.Helper()
	var v ViewResponse
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode view: %v (%s)", err, w.Body.String())
	}
	return v
}

func TestView(t *testing.T) {
	e := testEnv(t, 3, "")
	w := e.do(t, http.MethodGet, "/applications", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	v := decodeView(t, w)
	if v.State != "ready" || len(v.Items) != 2 || !v.HasMore {
		t.Errorf("view = state %s items %d hasMore %v", v.State, len(v.Items), v.HasMore)
	}
	if len(v.Tabs) != 5 || !v.Tabs[0].Active {
		t.Errorf("tabs = %+v", v.Tabs)
	}
	if v.Items[0].StatusLabel != "Applied" || v.Items[0].DisplayedStatus != status.Applied {
		t.Errorf("item = %+v", v.Items[0])
	}

	w = e.do(t, http.MethodPost, "/applications/more", nil)
	if v := decodeView(t, w); len(v.Items) != 3 || v.HasMore {
		t.Errorf("after more: items %d hasMore %v", len(v.Items), v.HasMore)
	}
}

func TestAuthMiddleware(t *testing.T) {
	e := testEnv(t, 1, "mirror-secret")
	if w := e.do(t, http.MethodGet, "/applications", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", w.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/applications", nil)
	req.Header.Set("Authorization", "Bearer mirror-secret")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("with token = %d", w.Code)
	}

	if w := e.do(t, http.MethodGet, "/applications?access_token=mirror-secret", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("query token outside /events = %d, want 401", w.Code)
	}
	if w := e.do(t, http.MethodGet, "/events?access_token=wrong", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong query token = %d, want 401", w.Code)
	}
	if w := e.do(t, http.MethodGet, "/events?access_token=mirror-secret", nil); w.Code == http.StatusUnauthorized {
		t.Error("query token on /events should pass auth")
	}
}

func TestCreateUpdateMoveDelete(t *testing.T) {
	e := testEnv(t, 0, "")

	w := e.do(t, http.MethodPost, "/applications", models.CreateApplication{Company: "Acme"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", w.Code, w.Body.String())
	}
	var a models.Application
	_ = json.Unmarshal(w.Body.Bytes(), &a)

	if w := e.do(t, http.MethodPost, "/applications", models.CreateApplication{Company: " "}); w.Code != http.StatusBadRequest {
		t.Errorf("blank company = %d, want 400", w.Code)
	}

	title := "SRE"
	w = e.do(t, http.MethodPatch, "/applications/"+a.ID, models.ApplicationPatch{JobTitle: &title})
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d %s", w.Code, w.Body.String())
	}

	w = e.do(t, http.MethodPost, "/applications/"+a.ID+"/move", MoveRequest{Status: status.Offer})
	if w.Code != http.StatusNoContent {
		t.Fatalf("move = %d %s", w.Code, w.Body.String())
	}
	w = e.do(t, http.MethodGet, "/applications/"+a.ID, nil)
	var got models.Application
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.Status != status.WireOffer || got.JobTitle != "SRE" {
		t.Errorf("backend record = %+v", got)
	}

	if w := e.do(t, http.MethodDelete, "/applications/"+a.ID, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	if w := e.do(t, http.MethodGet, "/applications/"+a.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
}

func TestMoveFailureShowsMoveError(t *testing.T) {
	e := testEnv(t, 2, "")
	e.backend.Fail("app-01", http.StatusInternalServerError)

	w := e.do(t, http.MethodPost, "/applications/app-01/move", MoveRequest{Status: status.Rejected})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("move = %d, want 502", w.Code)
	}
	v := decodeView(t, e.do(t, http.MethodGet, "/applications", nil))
	for _, it := range v.Items {
		if it.ID == "app-01" {
			if it.MoveError == "" || it.DisplayedStatus != status.Applied {
				t.Errorf("item = %+v", it)
			}
		}
	}
}

func TestBulkMovePartial(t *testing.T) {
	e := testEnv(t, 2, "")
	e.backend.Fail("app-01", http.StatusInternalServerError)

	if w := e.do(t, http.MethodPost, "/selection", nil); w.Code != http.StatusOK {
		t.Fatalf("select all = %d", w.Code)
	}
	w := e.do(t, http.MethodPost, "/applications/bulk-move", MoveRequest{Status: status.Interviewing})
	if w.Code != http.StatusMultiStatus {
		t.Fatalf("bulk = %d, want 207 (%s)", w.Code, w.Body.String())
	}
	var resp BulkResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Applied != 1 || resp.Requested != 2 || resp.Failed["app-01"] == "" {
		t.Errorf("resp = %+v", resp)
	}
	if len(e.store.SelectedIDs()) != 0 {
		t.Error("selection not cleared")
	}

	if w := e.do(t, http.MethodPost, "/applications/bulk-delete", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bulk with empty selection = %d, want 400", w.Code)
	}
}

func TestFilterAndSearch(t *testing.T) {
	e := testEnv(t, 2, "")

	if w := e.do(t, http.MethodPost, "/applications/filter", FilterRequest{Tab: "bogus"}); w.Code != http.StatusBadRequest {
		t.Errorf("bogus tab = %d", w.Code)
	}
	w := e.do(t, http.MethodPost, "/applications/filter", FilterRequest{Tab: appstore.Tab(status.Offer)})
	if v := decodeView(t, w); len(v.Items) != 0 || !v.Tabs[3].Active {
		t.Errorf("offer view = %+v", v)
	}

	if w := e.do(t, http.MethodPost, "/applications/filter", FilterRequest{Tab: appstore.TabAll}); w.Code != http.StatusOK {
		t.Fatal(w.Code)
	}
	if w := e.do(t, http.MethodPost, "/applications/search", SearchRequest{Q: "Company 01"}); w.Code != http.StatusAccepted {
		t.Errorf("debounced search = %d, want 202", w.Code)
	}
	w = e.do(t, http.MethodPost, "/applications/search", SearchRequest{Q: "Company 01", Submit: true})
	v := decodeView(t, w)
	if len(v.Items) != 1 || v.Items[0].Company != "Company 01" || v.Query.Canonical != "Company 01" {
		t.Errorf("search view = %+v", v)
	}

	w = e.do(t, http.MethodPost, "/applications/search", SearchRequest{Q: "2024-06-01..2024-05-31", Submit: true})
	v = decodeView(t, w)
	if len(v.Items) != 2 || v.Query.Canonical != "2024-05-31..2024-06-01" {
		t.Errorf("date view items %d canonical %q", len(v.Items), v.Query.Canonical)
	}
}

func TestNotes(t *testing.T) {
	e := testEnv(t, 1, "")

	w := e.do(t, http.MethodPost, "/applications/app-00/notes", NoteRequest{Content: "phone screen"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create note = %d %s", w.Code, w.Body.String())
	}
	var n models.Note
	_ = json.Unmarshal(w.Body.Bytes(), &n)

	w = e.do(t, http.MethodPatch, "/applications/app-00/notes/"+n.ID, NoteRequest{Content: "onsite"})
	if w.Code != http.StatusOK {
		t.Fatalf("update note = %d", w.Code)
	}

	w = e.do(t, http.MethodGet, "/applications/app-00/notes", nil)
	var list []models.Note
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if len(list) != 1 || list[0].Content != "onsite" {
		t.Errorf("notes = %+v", list)
	}

	if w := e.do(t, http.MethodPost, "/applications/app-00/notes", NoteRequest{Content: "  "}); w.Code != http.StatusBadRequest {
		t.Errorf("blank note = %d", w.Code)
	}
	if w := e.do(t, http.MethodDelete, "/applications/app-00/notes/"+n.ID, nil); w.Code != http.StatusNoContent {
		t.Errorf("delete note = %d", w.Code)
	}
}
