// Package status translates application statuses between the backend wire
// vocabulary and the display vocabulary.
package status

import "fmt"

// Wire is a status value as sent to and received from the backend.
type Wire string

// Display is a status value as shown to the user and used for tabs.
type Display string

// Wire statuses.
const (
	WireApplied      Wire = "applied"
	WireInterviewing Wire = "interviewing"
	WireOffer        Wire = "offer"
	WireRejected     Wire = "rejected"
)

// Display statuses.
const (
	Applied      Display = "applied"
	Interviewing Display = "interviewing"
	Offer        Display = "offer"
	Rejected     Display = "rejected"
)

var wireToDisplay = map[Wire]Display{
	WireApplied:      Applied,
	WireInterviewing: Interviewing,
	WireOffer:        Offer,
	WireRejected:     Rejected,
}

var displayToWire = map[Display]Wire{
	Applied:      WireApplied,
	Interviewing: WireInterviewing,
	Offer:        WireOffer,
	Rejected:     WireRejected,
}

var labels = map[Display]string{
	Applied:      "Applied",
	Interviewing: "Interviewing",
	Offer:        "Offer",
	Rejected:     "Rejected",
}

// ToDisplay maps a wire status to its display status.
// It panics on a value outside the closed enumeration.
func ToDisplay(w Wire) Display {
	d, ok := wireToDisplay[w]
	if !ok {
		panic(fmt.Sprintf("status: unknown wire status %q", string(w)))
	}
	return d
}

// ToWire maps a display status to its wire status.
// It panics on a value outside the closed enumeration.
func ToWire(d Display) Wire {
	w, ok := displayToWire[d]
	if !ok {
		panic(fmt.Sprintf("status: unknown display status %q", string(d)))
	}
	return w
}

// DisplayOrDefault is ToDisplay with an empty wire status shown as Applied.
func DisplayOrDefault(w Wire) Display {
	if w == "" {
		return Applied
	}
	return ToDisplay(w)
}

// All returns the display statuses in tab order.
func All() []Display {
	return []Display{Applied, Interviewing, Offer, Rejected}
}

// AllWire returns the wire statuses in tab order.
func AllWire() []Wire {
	return []Wire{WireApplied, WireInterviewing, WireOffer, WireRejected}
}

// Label returns the human-readable label for d.
func Label(d Display) string {
	if l, ok := labels[d]; ok {
		return l
	}
	return string(d)
}

// ParseDisplay validates user input at the edges (CLI flags, HTTP params).
func ParseDisplay(s string) (Display, error) {
	d := Display(s)
	if _, ok := displayToWire[d]; !ok {
		return "", fmt.Errorf("status: invalid status %q", s)
	}
	return d, nil
}

// ParseWire validates a wire status received from outside the core.
func ParseWire(s string) (Wire, error) {
	w := Wire(s)
	if _, ok := wireToDisplay[w]; !ok {
		return "", fmt.Errorf("status: invalid wire status %q", s)
	}
	return w, nil
}

// Valid reports whether w is a member of the enumeration.
func (w Wire) Valid() bool {
	_, ok := wireToDisplay[w]
	return ok
}
