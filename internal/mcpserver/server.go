// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the application tracker to LLMs via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/applysync/internal/appstore"
	"github.com/starford/applysync/internal/models"
	"github.com/starford/applysync/internal/notes"
	"github.com/starford/applysync/internal/status"
)

// DetailFetcher loads a single application from the backend.
type DetailFetcher interface {
	Get(ctx context.Context, id string) (models.Application, error)
}

// Server wraps the MCP server with tracker tools.
type Server struct {
	mcp     *server.MCPServer
	store   *appstore.Store
	details DetailFetcher
	notes   *notes.Registry
}

// New creates a new MCP server with all tools registered.
func New(store *appstore.Store, details DetailFetcher, reg *notes.Registry, version string) *Server {
	s := &Server{store: store, details: details, notes: reg}

	s.mcp = server.NewMCPServer(
		"applysync",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_applications",
		mcp.WithDescription("List job applications, optionally filtered by status tab and a search query. "+
			"The query may be free text or a date / date range on the applied date; see get_search_syntax."),
		mcp.WithString("tab", mcp.Description("Status tab: all, applied, interviewing, offer or rejected (default all)")),
		mcp.WithString("query", mcp.Description("Free text, a date, or a date range such as 2024-01-01..2024-01-31")),
	), s.searchApplications)

	s.mcp.AddTool(mcp.NewTool("load_more_applications",
		mcp.WithDescription("Append the next page to the current application list and return it."),
	), s.loadMore)

	s.mcp.AddTool(mcp.NewTool("get_application",
		mcp.WithDescription("Read one application, including its job description."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Application id")),
	), s.getApplication)

	s.mcp.AddTool(mcp.NewTool("create_application",
		mcp.WithDescription("Record a new job application."),
		mcp.WithString("company", mcp.Required(), mcp.Description("Company name")),
		mcp.WithString("job_title", mcp.Description("Job title")),
		mcp.WithString("job_description", mcp.Description("Job description text")),
		mcp.WithString("applied_date", mcp.Description("Applied date as YYYY-MM-DD")),
	), s.createApplication)

	s.mcp.AddTool(mcp.NewTool("move_application",
		mcp.WithDescription("Change the status of one application."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Application id")),
		mcp.WithString("status", mcp.Required(), mcp.Description("applied, interviewing, offer or rejected")),
	), s.moveApplication)

	s.mcp.AddTool(mcp.NewTool("bulk_move_applications",
		mcp.WithDescription("Change the status of several listed applications at once. "+
			"Members that fail keep their status and are reported."),
		mcp.WithString("ids", mcp.Required(), mcp.Description("Comma-separated application ids from the current list")),
		mcp.WithString("status", mcp.Required(), mcp.Description("applied, interviewing, offer or rejected")),
	), s.bulkMove)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List the notes of an application, newest first."),
		mcp.WithString("application_id", mcp.Required(), mcp.Description("Application id")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("add_note",
		mcp.WithDescription("Attach a note to an application."),
		mcp.WithString("application_id", mcp.Required(), mcp.Description("Application id")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Note text")),
	), s.addNote)

	s.mcp.AddTool(mcp.NewTool("get_search_syntax",
		mcp.WithDescription("Returns the search query syntax accepted by search_applications."),
	), s.getSearchSyntax)

	s.mcp.AddResource(
		mcp.NewResource("applysync://search-syntax", "Search Syntax",
			mcp.WithResourceDescription("Free text, date and date range forms accepted by the application search."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readSearchSyntaxResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

type listItem struct {
	ID          string       `json:"id"`
	Company     string       `json:"company"`
	JobTitle    string       `json:"job_title,omitempty"`
	Status      string       `json:"status"`
	AppliedDate *models.Date `json:"applied_date,omitempty"`
}

type listResult struct {
	Items   []listItem `json:"items"`
	HasMore bool       `json:"has_more"`
}

func (s *Server) listJSON() string {
	v := s.store.Snapshot()
	out := listResult{Items: make([]listItem, 0, len(v.Items)), HasMore: v.HasMore}
	for _, a := range v.Items {
		out.Items = append(out.Items, listItem{
			ID:          a.ID,
			Company:     a.Company,
			JobTitle:    a.JobTitle,
			Status:      string(s.store.DisplayedStatus(a)),
			AppliedDate: a.AppliedDate,
		})
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	return string(data)
}

func (s *Server) searchApplications(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tab := appstore.TabAll
	if v, err := req.RequireString("tab"); err == nil && v != "" {
		tab = appstore.Tab(v)
	}
	q := ""
	if v, err := req.RequireString("query"); err == nil {
		q = v
	}

	if err := s.store.SetFilter(ctx, tab); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.store.SetSearch(ctx, q); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(s.listJSON()), nil
}

func (s *Server) loadMore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.store.LoadMore(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(s.listJSON()), nil
}

func (s *Server) getApplication(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	a, err := s.details.Get(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	out, _ := json.MarshalIndent(a, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) createApplication(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	company, err := req.RequireString("company")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	in := models.CreateApplication{Company: company}
	if v, err := req.RequireString("job_title"); err == nil {
		in.JobTitle = v
	}
	if v, err := req.RequireString("job_description"); err == nil {
		in.JobDescription = v
	}
	if v, err := req.RequireString("applied_date"); err == nil && v != "" {
		d, err := models.ParseDate(v)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		in.AppliedDate = &d
	}

	a, err := s.store.Create(ctx, in)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", a.ID)), nil
}

func (s *Server) moveApplication(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := req.RequireString("status")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := status.ParseDisplay(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.store.MoveStatus(ctx, id, to); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("moved: %s -> %s", id, to)), nil
}

func (s *Server) bulkMove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawIDs, err := req.RequireString("ids")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := req.RequireString("status")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := status.ParseDisplay(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.store.ClearSelection()
	var missing []string
	for _, id := range strings.Split(rawIDs, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		s.store.Select(id, true)
		if !s.store.IsSelected(id) {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		s.store.ClearSelection()
		return mcp.NewToolResultError("not in the current list: " + strings.Join(missing, ", ")), nil
	}

	if err := s.store.BulkMove(ctx, to); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(s.listJSON()), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	appID, err := req.RequireString("application_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ns := s.notes.For(appID)
	if err := ns.Refresh(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	items := ns.Items()
	if len(items) == 0 {
		return mcp.NewToolResultText("no notes found"), nil
	}
	var b strings.Builder
	for _, n := range items {
		fmt.Fprintf(&b, "[%s] %s\n", n.CreatedAt.Format("2006-01-02 15:04"), n.Content)
	}
	return mcp.NewToolResultText(strings.TrimRight(b.String(), "\n")), nil
}

func (s *Server) addNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	appID, err := req.RequireString("application_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.notes.For(appID).Create(ctx, content)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("note added: %s", n.ID)), nil
}

func (s *Server) getSearchSyntax(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(SearchSyntax), nil
}

func (s *Server) readSearchSyntaxResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "applysync://search-syntax",
			MIMEType: "text/markdown",
			Text:     SearchSyntax,
		},
	}, nil
}
