package notes

import "sync"

// Registry hands out exactly one Store per application.
type Registry struct {
	api API
	cfg Config

	mu     sync.Mutex
	stores map[string]*Store
}

// NewRegistry creates an empty registry.
func NewRegistry(api API, cfg Config) *Registry {
	return &Registry{api: api, cfg: cfg, stores: make(map[string]*Store)}
}

// For returns the store of appID, creating it on first use.
func (r *Registry) For(appID string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stores[appID]
	if !ok {
		s = New(r.api, appID, r.cfg)
		r.stores[appID] = s
	}
	return s
}

// Forget drops the store of appID, for example after the application was
// deleted. Pending background refreshes finish first.
func (r *Registry) Forget(appID string) {
	r.mu.Lock()
	s, ok := r.stores[appID]
	delete(r.stores, appID)
	r.mu.Unlock()
	if ok {
		s.Wait()
	}
}

// Wait blocks until every store's background refreshes have finished.
func (r *Registry) Wait() {
	r.mu.Lock()
	stores := make([]*Store, 0, len(r.stores))
	for _, s := range r.stores {
		stores = append(stores, s)
	}
	r.mu.Unlock()
	for _, s := range stores {
		s.Wait()
	}
}
