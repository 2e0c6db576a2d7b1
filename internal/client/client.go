// Package client is the typed HTTP transport between the sync layer and the
// tracker backend. It attaches the bearer token, decodes JSON responses into
// validated domain values, and turns 401 responses into session invalidation.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/starford/applysync/internal/apperr"
	"github.com/starford/applysync/internal/session"
)

const maxResponseBytes = 10 << 20

// Options tunes a Client.
type Options struct {
	// Timeout bounds a single request. Zero means 30s.
	Timeout time.Duration
	// RateLimit is the sustained request rate per second. Zero disables limiting.
	RateLimit float64
	// RateBurst is the limiter bucket size. Defaults to 1 when limiting.
	RateBurst int
	// HTTPClient overrides the underlying client (tests).
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the tracker backend.
type Client struct {
	baseURL string
	http    *http.Client
	session session.Provider
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates a Client for baseURL. sess may be nil for unauthenticated use.
func New(baseURL string, sess session.Provider, opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
		session: sess,
		limiter: limiter,
		logger:  logger,
	}
}

// Get issues GET path and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	_, err := c.do(ctx, http.MethodGet, path, nil, out)
	return err
}

// Post issues POST path with an optional JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	_, err := c.do(ctx, http.MethodPost, path, body, out)
	return err
}

// Patch issues PATCH path with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	_, err := c.do(ctx, http.MethodPatch, path, body, out)
	return err
}

// Delete issues DELETE path and expects no body.
func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.do(ctx, http.MethodDelete, path, nil, nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) (http.Header, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("client: rate limit: %w", err)
		}
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("client: encode body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.session != nil {
		if tok := c.session.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("client: read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := newAPIError(resp.StatusCode, data)
		c.logger.Debug("client: request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
			slog.String("error", apiErr.Message))
		if resp.StatusCode == http.StatusUnauthorized && c.session != nil {
			c.logger.Warn("client: session invalidated", slog.String("path", path))
			c.session.Invalidate()
		}
		return resp.Header, apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(data)) == 0 {
		return resp.Header, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return resp.Header, fmt.Errorf("%w: %s %s: %w", apperr.ErrSchema, method, path, err)
	}
	return resp.Header, nil
}

// validator is implemented by domain types checked at the schema boundary.
type validator interface {
	Validate() error
}

func validateAll[T validator](items []T) error {
	var errs []error
	for i, it := range items {
		if err := it.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("item %d: %w", i, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", apperr.ErrSchema, errors.Join(errs...))
	}
	return nil
}

func validateOne(v validator) error {
	if err := v.Validate(); err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrSchema, err)
	}
	return nil
}
