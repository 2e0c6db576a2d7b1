package appstore

// Toggle flips the selection of id and returns the new state. Ids that are
// not loaded, or are still being created, cannot be selected.
func (s *Store) Toggle(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.selected[id]; ok {
		delete(s.selected, id)
		return false
	}
	if !s.selectableLocked(id) {
		return false
	}
	s.selected[id] = struct{}{}
	return true
}

// Select sets the selection of id.
func (s *Store) Select(id string, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !on {
		delete(s.selected, id)
		return
	}
	if s.selectableLocked(id) {
		s.selected[id] = struct{}{}
	}
}

// SelectAll selects every loaded record.
func (s *Store) SelectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.items {
		if !IsTemp(a.ID) {
			s.selected[a.ID] = struct{}{}
		}
	}
}

// ClearSelection empties the selection.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearSelectionLocked()
}

// IsSelected reports whether id is selected.
func (s *Store) IsSelected(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.selected[id]
	return ok
}

// SelectedIDs returns the selection in list order.
func (s *Store) SelectedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedIDsLocked()
}

func (s *Store) selectableLocked(id string) bool {
	return !IsTemp(id) && s.indexLocked(id) >= 0
}

func (s *Store) selectedIDsLocked() []string {
	out := make([]string, 0, len(s.selected))
	for _, a := range s.items {
		if _, ok := s.selected[a.ID]; ok {
			out = append(out, a.ID)
		}
	}
	return out
}

func (s *Store) clearSelectionLocked() {
	s.selected = make(map[string]struct{})
}
