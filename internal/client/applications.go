package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/starford/applysync/internal/models"
	"github.com/starford/applysync/internal/status"
)

// HasMoreHeader is set by backends that know whether further pages exist.
const HasMoreHeader = "X-Has-More"

// ListParams selects one page of applications.
type ListParams struct {
	Status status.Wire
	Text   string
	Limit  int
	Offset int
}

func (p ListParams) encode() string {
	v := url.Values{}
	if p.Status != "" {
		v.Set("status_eq", string(p.Status))
	}
	if p.Text != "" {
		v.Set("q", p.Text)
	}
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Offset > 0 {
		v.Set("offset", strconv.Itoa(p.Offset))
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

// Page is one list response. HasMore is nil when the backend did not say.
type Page struct {
	Items   []models.Application
	HasMore *bool
}

// Applications is the typed application API.
type Applications struct {
	c *Client
}

// NewApplications wraps c.
func NewApplications(c *Client) *Applications {
	return &Applications{c: c}
}

// List fetches one page.
func (a *Applications) List(ctx context.Context, p ListParams) (Page, error) {
	var items []models.Application
	hdr, err := a.c.do(ctx, "GET", "/applications"+p.encode(), nil, &items)
	if err != nil {
		return Page{}, err
	}
	if err := validateAll(items); err != nil {
		return Page{}, fmt.Errorf("client: list applications: %w", err)
	}
	page := Page{Items: items}
	if v := hdr.Get(HasMoreHeader); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			page.HasMore = &b
		}
	}
	return page, nil
}

// Get fetches one application.
func (a *Applications) Get(ctx context.Context, id string) (models.Application, error) {
	var app models.Application
	if err := a.c.Get(ctx, appPath(id), &app); err != nil {
		return models.Application{}, err
	}
	if err := validateOne(app); err != nil {
		return models.Application{}, fmt.Errorf("client: get application: %w", err)
	}
	return app, nil
}

// Create posts a new application and returns the server record.
func (a *Applications) Create(ctx context.Context, in models.CreateApplication) (models.Application, error) {
	var app models.Application
	if err := a.c.Post(ctx, "/applications", in, &app); err != nil {
		return models.Application{}, err
	}
	if err := validateOne(app); err != nil {
		return models.Application{}, fmt.Errorf("client: create application: %w", err)
	}
	return app, nil
}

// Update sends a partial update and returns the server record.
func (a *Applications) Update(ctx context.Context, id string, p models.ApplicationPatch) (models.Application, error) {
	var app models.Application
	if err := a.c.Patch(ctx, appPath(id), p, &app); err != nil {
		return models.Application{}, err
	}
	if err := validateOne(app); err != nil {
		return models.Application{}, fmt.Errorf("client: update application: %w", err)
	}
	return app, nil
}

// Delete removes an application.
func (a *Applications) Delete(ctx context.Context, id string) error {
	return a.c.Delete(ctx, appPath(id))
}

// Move changes the status of one application. The backend answers 204.
func (a *Applications) Move(ctx context.Context, id string, s status.Wire) error {
	path := appPath(id) + "/move?new_status=" + url.QueryEscape(string(s))
	return a.c.Post(ctx, path, nil, nil)
}

// BulkMove moves ids to s in a single request.
func (a *Applications) BulkMove(ctx context.Context, ids []string, s status.Wire) (models.BulkResult, error) {
	var res models.BulkResult
	err := a.c.Post(ctx, "/applications/bulk-move", models.BulkMoveRequest{IDs: ids, Status: s}, &res)
	return res, err
}

// BulkDelete deletes ids in a single request.
func (a *Applications) BulkDelete(ctx context.Context, ids []string) (models.BulkResult, error) {
	var res models.BulkResult
	err := a.c.Post(ctx, "/applications/bulk-delete", models.BulkDeleteRequest{IDs: ids}, &res)
	return res, err
}

func appPath(id string) string {
	return "/applications/" + url.PathEscape(id)
}
