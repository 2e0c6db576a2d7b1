// Package query parses the free-text search box into a text term and an
// optional inclusive date range.
package query

import (
	"regexp"
	"strings"
	"time"

	"github.com/starford/applysync/internal/models"
)

// Query is the structured form of a search box value.
type Query struct {
	Text string
	From *models.Date
	To   *models.Date
}

// HasDates reports whether either bound is set.
func (q Query) HasDates() bool {
	return q.From != nil || q.To != nil
}

// Equal compares two queries by value.
func (q Query) Equal(o Query) bool {
	return q.Text == o.Text && dateEqual(q.From, o.From) && dateEqual(q.To, o.To)
}

// Contains reports whether d falls inside the inclusive range. Without bounds
// every record matches; with bounds, records lacking a date are excluded.
func (q Query) Contains(d *models.Date) bool {
	if !q.HasDates() {
		return true
	}
	if d == nil {
		return false
	}
	if q.From != nil && d.Before(*q.From) {
		return false
	}
	if q.To != nil && d.After(*q.To) {
		return false
	}
	return true
}

// Tried in order; the generic layouts come first, ISO and US numeric last.
// Only four-digit years are accepted.
var dateLayouts = []string{
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"2006/01/02",
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
}

var (
	dotRangeRe  = regexp.MustCompile(`^(.+?)\s*\.\.\s*(.+)$`)
	wordRangeRe = regexp.MustCompile(`(?i)^(.+?)\s+to\s+(.+)$`)
	yearRe      = regexp.MustCompile(`\d{4}`)
)

// Parse turns a raw search string into a Query. It never fails: anything
// that is not a date or a date range is returned as free text.
func Parse(raw string) Query {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Query{}
	}
	if from, to, ok := parseRange(s); ok {
		if to.Before(from) {
			from, to = to, from
		}
		return Query{From: &from, To: &to}
	}
	if d, ok := parseDate(s); ok {
		from, to := d, d
		return Query{From: &from, To: &to}
	}
	return Query{Text: s}
}

// Format renders q so that Parse(Format(q)) equals q.
func Format(q Query) string {
	switch {
	case q.From != nil && q.To != nil && *q.From == *q.To:
		return q.From.String()
	case q.From != nil && q.To != nil:
		return q.From.String() + ".." + q.To.String()
	case q.From != nil:
		return q.From.String()
	case q.To != nil:
		return q.To.String()
	}
	return q.Text
}

func parseRange(s string) (models.Date, models.Date, bool) {
	for _, re := range []*regexp.Regexp{dotRangeRe, wordRangeRe} {
		if m := re.FindStringSubmatch(s); m != nil {
			if a, b, ok := parsePair(m[1], m[2]); ok {
				return a, b, true
			}
		}
	}
	// A bare hyphen may also appear inside ISO dates, so try every split.
	for i := 0; i < len(s); i++ {
		if s[i] != '-' {
			continue
		}
		if a, b, ok := parsePair(s[:i], s[i+1:]); ok {
			return a, b, true
		}
	}
	return models.Date{}, models.Date{}, false
}

func parsePair(left, right string) (models.Date, models.Date, bool) {
	a, ok := parseDate(strings.TrimSpace(left))
	if !ok {
		return models.Date{}, models.Date{}, false
	}
	b, ok := parseDate(strings.TrimSpace(right))
	if !ok {
		return models.Date{}, models.Date{}, false
	}
	return a, b, true
}

func parseDate(s string) (models.Date, bool) {
	if s == "" || !yearRe.MatchString(s) {
		return models.Date{}, false
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		return models.DateOf(t), true
	}
	return models.Date{}, false
}

func dateEqual(a, b *models.Date) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
