package appstore

import "github.com/starford/applysync/internal/status"

// Tab is a status filter. TabAll shows every status.
type Tab string

// TabAll disables the status filter.
const TabAll Tab = "all"

// Tabs returns the filter tabs in display order.
func Tabs() []Tab {
	out := []Tab{TabAll}
	for _, d := range status.All() {
		out = append(out, Tab(d))
	}
	return out
}

// Valid reports whether t is TabAll or a display status.
func (t Tab) Valid() bool {
	if t == TabAll {
		return true
	}
	_, err := status.ParseDisplay(string(t))
	return err == nil
}

// Wire returns the backend status filter for t, or "" for TabAll.
func (t Tab) Wire() status.Wire {
	if t == TabAll || t == "" {
		return ""
	}
	return status.ToWire(status.Display(t))
}

// Label is the tab caption.
func (t Tab) Label() string {
	if t == TabAll {
		return "All"
	}
	return status.Label(status.Display(t))
}
