package appstore

import (
	"context"
	"log/slog"

	"github.com/starford/applysync/internal/events"
)

// HasMore reports whether another page may exist.
func (s *Store) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

// LoadingMore reports whether a LoadMore is in flight.
func (s *Store) LoadingMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadingMore
}

// LoadMore fetches the next page and appends it. It returns immediately when
// there is nothing more to load, a first page is still loading, or another
// LoadMore is in flight. Records already present are not duplicated.
func (s *Store) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	if !s.hasMore || s.loadingMore || s.state == StateLoading || s.state == StateIdle {
		s.mu.Unlock()
		return nil
	}
	s.loadingMore = true
	seq := s.seq
	params := s.paramsLocked(s.offset)
	q := s.query
	s.mu.Unlock()

	page, err := s.api.List(ctx, params)

	s.mu.Lock()
	if seq != s.seq {
		s.mu.Unlock()
		return nil
	}
	s.loadingMore = false
	if err != nil {
		s.state = StateErrored
		s.err = err
		s.mu.Unlock()
		s.logger.Warn("appstore: load more failed", slog.Int("offset", params.Offset), slog.String("error", err.Error()))
		s.events.Publish(events.Event{Type: events.ApplicationsError, Data: map[string]string{"error": err.Error()}})
		return err
	}
	seen := make(map[string]struct{}, len(s.items))
	for _, a := range s.items {
		seen[a.ID] = struct{}{}
	}
	added := 0
	for _, a := range filterDates(page.Items, q) {
		if _, dup := seen[a.ID]; dup {
			continue
		}
		seen[a.ID] = struct{}{}
		s.items = append(s.items, a)
		added++
	}
	s.offset += len(page.Items)
	s.hasMore = s.morePages(page)
	s.state = StateReady
	s.err = nil
	n := len(s.items)
	s.mu.Unlock()

	s.logger.Debug("appstore: page appended", slog.Int("added", added), slog.Int("offset", params.Offset))
	s.events.Publish(events.Event{Type: events.ApplicationsChanged, Data: map[string]int{"count": n}})
	return nil
}
