// Package session abstracts the persisted auth token so the sync layer never
// reads global storage directly.
package session

import "sync"

// Provider supplies the bearer token and broadcasts changes to it.
type Provider interface {
	// Token returns the current token, or "" when signed out.
	Token() string
	// SetToken stores tok and notifies listeners.
	SetToken(tok string) error
	// Invalidate clears the token after an authorization failure and
	// notifies listeners with an empty token.
	Invalidate()
	// OnChange registers fn and returns a function that unregisters it.
	OnChange(fn func(token string)) (cancel func())
}

type listeners struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(string)
}

func (l *listeners) add(fn func(string)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]func(string))
	}
	id := l.next
	l.next++
	l.fns[id] = fn
	return func() {
		l.mu.Lock()
		delete(l.fns, id)
		l.mu.Unlock()
	}
}

func (l *listeners) notify(tok string) {
	l.mu.Lock()
	fns := make([]func(string), 0, len(l.fns))
	for _, fn := range l.fns {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(tok)
	}
}

// Memory is an in-process Provider.
type Memory struct {
	mu    sync.RWMutex
	token string
	subs  listeners
}

// NewMemory returns a Memory provider holding tok.
func NewMemory(tok string) *Memory {
	return &Memory{token: tok}
}

// Token implements Provider.
func (m *Memory) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// SetToken implements Provider.
func (m *Memory) SetToken(tok string) error {
	m.mu.Lock()
	changed := m.token != tok
	m.token = tok
	m.mu.Unlock()
	if changed {
		m.subs.notify(tok)
	}
	return nil
}

// Invalidate implements Provider.
func (m *Memory) Invalidate() {
	_ = m.SetToken("")
}

// OnChange implements Provider.
func (m *Memory) OnChange(fn func(string)) func() {
	return m.subs.add(fn)
}

var (
	_ Provider = (*Memory)(nil)
	_ Provider = (*File)(nil)
)
