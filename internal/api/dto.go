package api

import (
	"sort"

	"github.com/starford/applysync/internal/appstore"
	"github.com/starford/applysync/internal/models"
	"github.com/starford/applysync/internal/query"
	"github.com/starford/applysync/internal/status"
)

// ApplicationItem is one row of the list view.
type ApplicationItem struct {
	models.Application
	DisplayedStatus status.Display `json:"displayed_status"`
	StatusLabel     string         `json:"status_label"`
	Pending         bool           `json:"pending,omitempty"`
	Selected        bool           `json:"selected"`
	MoveError       string         `json:"move_error,omitempty"`
}

// TabItem is one filter tab.
type TabItem struct {
	Tab    appstore.Tab `json:"tab"`
	Label  string       `json:"label"`
	Active bool         `json:"active"`
}

// ViewResponse is the list view of GET /applications.
type ViewResponse struct {
	Items       []ApplicationItem `json:"items"`
	State       string            `json:"state"`
	Error       string            `json:"error,omitempty"`
	HasMore     bool              `json:"has_more"`
	LoadingMore bool              `json:"loading_more"`
	Selected    []string          `json:"selected"`
	Tabs        []TabItem         `json:"tabs"`
	Search      string            `json:"search"`
	Query       QueryResponse     `json:"query"`
}

// QueryResponse is the parsed search box value.
type QueryResponse struct {
	Text      string       `json:"text,omitempty"`
	DateFrom  *models.Date `json:"date_from,omitempty"`
	DateTo    *models.Date `json:"date_to,omitempty"`
	Canonical string       `json:"canonical"`
}

// FilterRequest is the body of POST /applications/filter.
type FilterRequest struct {
	Tab appstore.Tab `json:"tab"`
}

// SearchRequest is the body of POST /applications/search. Submit applies
// the value without waiting for the debounce window.
type SearchRequest struct {
	Q      string `json:"q"`
	Submit bool   `json:"submit"`
}

// MoveRequest is the body of the single and bulk move endpoints.
type MoveRequest struct {
	Status status.Display `json:"status"`
}

// NoteRequest is the body for creating or updating a note.
type NoteRequest struct {
	Content string `json:"content"`
}

// BulkResponse reports a bulk operation that did not fully apply.
type BulkResponse struct {
	Error     string            `json:"error"`
	Op        string            `json:"op"`
	Requested int               `json:"requested"`
	Applied   int               `json:"applied"`
	Failed    map[string]string `json:"failed,omitempty"`
}

func newBulkResponse(e *appstore.BulkError) BulkResponse {
	resp := BulkResponse{Error: e.Error(), Op: e.Op, Requested: e.Requested, Applied: e.Applied}
	if len(e.Failed) > 0 {
		resp.Failed = make(map[string]string, len(e.Failed))
		for id, err := range e.Failed {
			resp.Failed[id] = err.Error()
		}
	}
	return resp
}

func newViewResponse(s *appstore.Store) ViewResponse {
	v := s.Snapshot()
	selected := make(map[string]bool, len(v.SelectedIDs))
	for _, id := range v.SelectedIDs {
		selected[id] = true
	}

	items := make([]ApplicationItem, 0, len(v.Items))
	for _, a := range v.Items {
		d := s.DisplayedStatus(a)
		item := ApplicationItem{
			Application:     a,
			DisplayedStatus: d,
			StatusLabel:     status.Label(d),
			Pending:         appstore.IsTemp(a.ID),
			Selected:        selected[a.ID],
		}
		if err := s.MoveError(a.ID); err != nil {
			item.MoveError = err.Error()
		}
		items = append(items, item)
	}

	tabs := make([]TabItem, 0, 5)
	for _, t := range appstore.Tabs() {
		tabs = append(tabs, TabItem{Tab: t, Label: t.Label(), Active: t == v.Filter})
	}

	sel := append([]string(nil), v.SelectedIDs...)
	sort.Strings(sel)

	resp := ViewResponse{
		Items:       items,
		State:       v.State.String(),
		HasMore:     v.HasMore,
		LoadingMore: v.LoadingMore,
		Selected:    sel,
		Tabs:        tabs,
		Search:      v.Search,
		Query: QueryResponse{
			Text:      v.Query.Text,
			DateFrom:  v.Query.From,
			DateTo:    v.Query.To,
			Canonical: query.Format(v.Query),
		},
	}
	if v.Err != nil {
		resp.Error = v.Err.Error()
	}
	return resp
}
