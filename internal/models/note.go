package models

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Note is a free-text note attached to an application.
type Note struct {
	ID            string    `json:"note_id"`
	ApplicationID string    `json:"application_id"`
	Content       string    `json:"content"`
	CreatedAt     time.Time `json:"created_at"`
}

// Validate checks a decoded note before it enters the store.
func (n Note) Validate() error {
	return validation.ValidateStruct(&n,
		validation.Field(&n.ID, validation.Required),
		validation.Field(&n.Content, validation.RuneLength(0, MaxNoteLen)),
	)
}

// NoteInput is the body for creating or updating a note.
type NoteInput struct {
	Content string `json:"content"`
}

// NewNoteInput trims content and validates it.
func NewNoteInput(content string) (NoteInput, error) {
	in := NoteInput{Content: strings.TrimSpace(content)}
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Content, validation.Required.Error("note content is required"), validation.RuneLength(0, MaxNoteLen)),
	)
	return in, err
}
