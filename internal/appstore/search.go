package appstore

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/starford/applysync/internal/debounce"
)

// SearchBox feeds keystrokes into Store.SetSearch. Typing is debounced;
// Submit and Blur apply the pending value at once, and clearing the box
// applies immediately.
type SearchBox struct {
	store  *Store
	ctx    context.Context
	logger *slog.Logger
	deb    *debounce.Debouncer[string]

	mu    sync.Mutex
	value string
}

// NewSearchBox binds a search box to store. Searches run with ctx.
func NewSearchBox(ctx context.Context, store *Store, window time.Duration) *SearchBox {
	b := &SearchBox{store: store, ctx: ctx, logger: store.logger}
	b.deb = debounce.New(window, b.apply)
	return b
}

// Type records a new box value.
func (b *SearchBox) Type(raw string) {
	b.mu.Lock()
	b.value = raw
	b.mu.Unlock()

	if strings.TrimSpace(raw) == "" {
		b.deb.Cancel()
		b.apply(raw)
		return
	}
	b.deb.Push(raw)
}

// Submit applies the pending value now (Enter key).
func (b *SearchBox) Submit() bool {
	return b.deb.Flush()
}

// Blur applies the pending value now (focus left the box).
func (b *SearchBox) Blur() bool {
	return b.deb.Flush()
}

// Clear empties the box and applies immediately.
func (b *SearchBox) Clear() {
	b.Type("")
}

// Value is the current box text.
func (b *SearchBox) Value() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.value
}

// Pending reports whether a debounced value has not been applied yet.
func (b *SearchBox) Pending() bool {
	return b.deb.Pending()
}

// Close drops any pending value.
func (b *SearchBox) Close() {
	b.deb.Cancel()
}

func (b *SearchBox) apply(raw string) {
	if err := b.store.SetSearch(b.ctx, raw); err != nil {
		b.logger.Warn("appstore: search failed", slog.String("query", raw), slog.String("error", err.Error()))
	}
}
