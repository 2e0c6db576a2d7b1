// Package apperr defines the error taxonomy shared across the sync layer.
package apperr

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("session invalid")
	ErrUnverified   = errors.New("email not verified")
	ErrSchema       = errors.New("unexpected response shape")
	ErrPartial      = errors.New("partial failure")
)
