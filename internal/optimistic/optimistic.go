// Package optimistic applies a local state change before the matching
// remote call and undoes it if the call fails.
package optimistic

import "context"

// Mutation describes one optimistic change.
//
// Apply runs synchronously before Remote and returns the pre-mutation
// snapshot. Rollback receives that snapshot when Remote fails. Commit
// receives the snapshot and the remote result on success, which is where
// placeholder identities are replaced by server-assigned ones.
type Mutation[S, R any] struct {
	Apply    func() S
	Remote   func(ctx context.Context) (R, error)
	Rollback func(S)
	Commit   func(S, R)
}

// Run executes m. The remote error, if any, is returned unchanged after the
// rollback so callers can report it.
func Run[S, R any](ctx context.Context, m Mutation[S, R]) (R, error) {
	snap := m.Apply()

	res, err := m.Remote(ctx)
	if err != nil {
		if m.Rollback != nil {
			m.Rollback(snap)
		}
		var zero R
		return zero, err
	}
	if m.Commit != nil {
		m.Commit(snap, res)
	}
	return res, nil
}

// Exec is Run for remote calls without a result value.
func Exec[S any](ctx context.Context, apply func() S, remote func(ctx context.Context) error, rollback func(S)) error {
	_, err := Run(ctx, Mutation[S, struct{}]{
		Apply: apply,
		Remote: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, remote(ctx)
		},
		Rollback: rollback,
	})
	return err
}
