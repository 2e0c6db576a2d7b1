package session

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDelay = 100 * time.Millisecond

// Watch follows the token file's directory and reloads the token when
// another process writes, replaces, or removes it. It blocks until ctx is
// cancelled.
//
// The directory is watched rather than the file because atomic writers
// replace the inode, which would silently end a per-file watch.
func (f *File) Watch(ctx context.Context, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(f.path)); err != nil {
		return err
	}
	logger.Info("session: watching token file", slog.String("path", f.path))

	// reloadTimer debounces bursts (write + chmod + rename) into one reload.
	var reloadTimer *time.Timer
	var reloadCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			logger.Info("session: watcher stopped")
			return nil

		case <-reloadCh:
			reloadCh = nil
			reloadTimer = nil
			changed, err := f.reload()
			if err != nil {
				logger.Warn("session: reload failed", slog.String("error", err.Error()))
				continue
			}
			if changed {
				logger.Info("session: token changed on disk", slog.Bool("signed_in", f.Token() != ""))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != f.path {
				continue
			}
			if reloadTimer == nil {
				reloadTimer = time.NewTimer(reloadDelay)
				reloadCh = reloadTimer.C
			} else {
				reloadTimer.Reset(reloadDelay)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("session: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}
