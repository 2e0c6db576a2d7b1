package appstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/starford/applysync/internal/apperr"
	"github.com/starford/applysync/internal/events"
	"github.com/starford/applysync/internal/status"
)

// BulkStrategy selects how bulk operations reach the backend.
type BulkStrategy string

const (
	// BulkFanout issues one request per record, concurrently.
	BulkFanout BulkStrategy = "fanout"
	// BulkBatch issues a single request to the bulk endpoint.
	BulkBatch BulkStrategy = "batch"
)

// DefaultBulkConcurrency bounds concurrent fanout requests.
const DefaultBulkConcurrency = 8

// BulkError reports a bulk operation where some members did not apply.
// Successful members stay applied.
type BulkError struct {
	Op        string
	Requested int
	Applied   int
	Succeeded []string
	Failed    map[string]error
}

func (e *BulkError) Error() string {
	return fmt.Sprintf("appstore: bulk %s: %d of %d applied", e.Op, e.Applied, e.Requested)
}

// Unwrap exposes apperr.ErrPartial and every member error, ordered by id.
func (e *BulkError) Unwrap() []error {
	ids := make([]string, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := []error{apperr.ErrPartial}
	for _, id := range ids {
		out = append(out, e.Failed[id])
	}
	return out
}

// BulkMove moves every selected record to the given status. The selection
// is cleared whatever the outcome.
func (s *Store) BulkMove(ctx context.Context, to status.Display) error {
	if _, err := status.ParseDisplay(string(to)); err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrValidation, err)
	}
	wire := status.ToWire(to)
	ids, err := s.takeSelection()
	if err != nil {
		return err
	}

	apply := func(ok []string) {
		s.mu.Lock()
		for _, id := range ok {
			if i := s.indexLocked(id); i >= 0 {
				s.items[i].Status = wire
			}
			s.overrides[id] = to
			delete(s.moveErrs, id)
		}
		s.mu.Unlock()
		for _, id := range ok {
			s.publishRecord(events.Updated, id)
		}
	}

	if s.bulk == BulkBatch {
		return s.runBatch(ctx, "move", ids, apply, func(ctx context.Context) (int, error) {
			res, err := s.api.BulkMove(ctx, ids, wire)
			return res.Updated, err
		})
	}
	return s.runFanout(ctx, "move", ids, apply, func(ctx context.Context, id string) error {
		return s.api.Move(ctx, id, wire)
	})
}

// BulkDelete deletes every selected record. The selection is cleared
// whatever the outcome.
func (s *Store) BulkDelete(ctx context.Context) error {
	ids, err := s.takeSelection()
	if err != nil {
		return err
	}

	apply := func(ok []string) {
		s.mu.Lock()
		removed := 0
		for _, id := range ok {
			if s.indexLocked(id) >= 0 {
				s.removeLocked(id)
				removed++
			}
		}
		s.consumedLocked(removed)
		s.mu.Unlock()
		for _, id := range ok {
			s.publishRecord(events.Deleted, id)
		}
	}

	if s.bulk == BulkBatch {
		return s.runBatch(ctx, "delete", ids, apply, func(ctx context.Context) (int, error) {
			res, err := s.api.BulkDelete(ctx, ids)
			return res.Deleted, err
		})
	}
	return s.runFanout(ctx, "delete", ids, apply, func(ctx context.Context, id string) error {
		return s.api.Delete(ctx, id)
	})
}

// takeSelection returns the selected ids and clears the selection.
func (s *Store) takeSelection() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.selectedIDsLocked()
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: nothing selected", apperr.ErrValidation)
	}
	s.clearSelectionLocked()
	return ids, nil
}

// runFanout calls fn for every id with bounded concurrency and waits for all
// of them to settle before applying the successes.
func (s *Store) runFanout(ctx context.Context, op string, ids []string, apply func([]string), fn func(context.Context, string) error) error {
	errs := make([]error, len(ids))
	var g errgroup.Group
	g.SetLimit(s.bulkN)
	for i, id := range ids {
		g.Go(func() error {
			errs[i] = fn(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	var ok []string
	failed := make(map[string]error)
	for i, id := range ids {
		if errs[i] != nil {
			failed[id] = errs[i]
			continue
		}
		ok = append(ok, id)
	}
	apply(ok)

	if len(failed) == 0 {
		s.logger.Info("appstore: bulk done", slog.String("op", op), slog.Int("count", len(ids)))
		return nil
	}
	s.logger.Warn("appstore: bulk partially failed",
		slog.String("op", op),
		slog.Int("requested", len(ids)),
		slog.Int("failed", len(failed)))
	return &BulkError{Op: op, Requested: len(ids), Applied: len(ok), Succeeded: ok, Failed: failed}
}

// runBatch issues one bulk request. When the backend reports fewer applied
// records than requested the list is reloaded, since the failed members are
// unknown.
func (s *Store) runBatch(ctx context.Context, op string, ids []string, apply func([]string), fn func(context.Context) (int, error)) error {
	n, err := fn(ctx)
	if err != nil {
		failed := make(map[string]error, len(ids))
		for _, id := range ids {
			failed[id] = err
		}
		return &BulkError{Op: op, Requested: len(ids), Failed: failed}
	}
	if n >= len(ids) {
		apply(ids)
		return nil
	}
	s.logger.Warn("appstore: bulk batch partially applied",
		slog.String("op", op),
		slog.Int("requested", len(ids)),
		slog.Int("applied", n))
	if rerr := s.Reload(ctx); rerr != nil {
		return errors.Join(&BulkError{Op: op, Requested: len(ids), Applied: n}, rerr)
	}
	return &BulkError{Op: op, Requested: len(ids), Applied: n}
}
