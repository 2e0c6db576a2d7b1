package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/starford/applysync/internal/models"
)

// Notes is the typed notes API.
type Notes struct {
	c *Client
}

// NewNotes wraps c.
func NewNotes(c *Client) *Notes {
	return &Notes{c: c}
}

// List fetches every note of an application.
func (n *Notes) List(ctx context.Context, appID string) ([]models.Note, error) {
	var items []models.Note
	if err := n.c.Get(ctx, notesPath(appID), &items); err != nil {
		return nil, err
	}
	if err := validateAll(items); err != nil {
		return nil, fmt.Errorf("client: list notes: %w", err)
	}
	return items, nil
}

// Create adds a note.
func (n *Notes) Create(ctx context.Context, appID string, in models.NoteInput) (models.Note, error) {
	var note models.Note
	if err := n.c.Post(ctx, notesPath(appID), in, &note); err != nil {
		return models.Note{}, err
	}
	if err := validateOne(note); err != nil {
		return models.Note{}, fmt.Errorf("client: create note: %w", err)
	}
	return note, nil
}

// Update replaces the content of a note.
func (n *Notes) Update(ctx context.Context, appID, noteID string, in models.NoteInput) (models.Note, error) {
	var note models.Note
	if err := n.c.Patch(ctx, notesPath(appID)+"/"+url.PathEscape(noteID), in, &note); err != nil {
		return models.Note{}, err
	}
	if err := validateOne(note); err != nil {
		return models.Note{}, fmt.Errorf("client: update note: %w", err)
	}
	return note, nil
}

// Delete removes a note.
func (n *Notes) Delete(ctx context.Context, appID, noteID string) error {
	return n.c.Delete(ctx, notesPath(appID)+"/"+url.PathEscape(noteID))
}

func notesPath(appID string) string {
	return "/applications/" + url.PathEscape(appID) + "/notes"
}
