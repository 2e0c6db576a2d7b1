package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/starford/applysync/internal/apperr"
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status  int
	Message string
	Data    map[string]any
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{Status: status}
	var data map[string]any
	if json.Unmarshal(body, &data) == nil {
		e.Data = data
		e.Message = messageFrom(data)
	}
	if e.Message == "" {
		e.Message = fmt.Sprintf("HTTP %d", status)
	}
	return e
}

// messageFrom prefers the "detail" field, then "message", then "error".
func messageFrom(data map[string]any) string {
	for _, key := range []string{"detail", "message", "error"} {
		if s, ok := data[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d: %s", e.Status, e.Message)
}

// Unwrap maps well-known statuses onto the shared taxonomy so callers can
// use errors.Is(err, apperr.ErrUnauthorized) and friends.
func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusUnauthorized:
		return apperr.ErrUnauthorized
	case e.Status == http.StatusForbidden && e.Message == "Email not verified":
		return apperr.ErrUnverified
	case e.Status == http.StatusNotFound:
		return apperr.ErrNotFound
	case e.Status == http.StatusBadRequest || e.Status == http.StatusUnprocessableEntity:
		return apperr.ErrValidation
	}
	return nil
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
