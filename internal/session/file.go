package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// File is a Provider persisted to a single file, so the token survives
// restarts and can be shared with other processes (see Watch).
type File struct {
	path string

	mu    sync.RWMutex
	token string
	subs  listeners
}

// NewFile opens the token file at path. A missing file means signed out.
func NewFile(path string) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("session: resolve path: %w", err)
	}
	f := &File{path: abs}
	tok, err := f.read()
	if err != nil {
		return nil, err
	}
	f.token = tok
	return f, nil
}

// Path returns the absolute token file path.
func (f *File) Path() string { return f.path }

// Token implements Provider.
func (f *File) Token() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.token
}

// SetToken implements Provider. An empty token removes the file.
func (f *File) SetToken(tok string) error {
	tok = strings.TrimSpace(tok)

	f.mu.Lock()
	if tok == "" {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			f.mu.Unlock()
			return fmt.Errorf("session: remove token: %w", err)
		}
	} else if err := writeAtomic(f.path, []byte(tok+"\n")); err != nil {
		f.mu.Unlock()
		return err
	}
	changed := f.token != tok
	f.token = tok
	f.mu.Unlock()

	if changed {
		f.subs.notify(tok)
	}
	return nil
}

// Invalidate implements Provider. The in-memory token is cleared even when
// the file cannot be removed.
func (f *File) Invalidate() {
	if err := f.SetToken(""); err != nil {
		f.mu.Lock()
		changed := f.token != ""
		f.token = ""
		f.mu.Unlock()
		if changed {
			f.subs.notify("")
		}
	}
}

// OnChange implements Provider.
func (f *File) OnChange(fn func(string)) func() {
	return f.subs.add(fn)
}

// reload re-reads the file and notifies listeners when the token changed
// outside this process.
func (f *File) reload() (bool, error) {
	tok, err := f.read()
	if err != nil {
		return false, err
	}
	f.mu.Lock()
	changed := f.token != tok
	f.token = tok
	f.mu.Unlock()
	if changed {
		f.subs.notify(tok)
	}
	return changed, nil
}

func (f *File) read() (string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("session: read token: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// writeAtomic writes content: tmp file → fsync → rename.
func writeAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("session: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".applysync-token-*")
	if err != nil {
		return fmt.Errorf("session: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err := tmp.Chmod(0o600); err != nil {
		return fmt.Errorf("session: chmod temp: %w", err)
	}
	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("session: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("session: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("session: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("session: rename: %w", err)
	}
	success = true
	return nil
}
