package query

import (
	"testing"
	"time"

	"github.com/starford/applysync/internal/models"
)

func date(y int, m time.Month, d int) *models.Date {
	return &models.Date{Year: y, Month: m, Day: d}
}

func TestParse_Empty(t *testing.T) {
	q := Parse("   ")
	if !q.Equal(Query{}) {
		t.Errorf("empty input = %+v", q)
	}
}

func TestParse_Text(t *testing.T) {
	q := Parse("  Google ")
	if q.Text != "Google" || q.From != nil || q.To != nil {
		t.Errorf("q = %+v", q)
	}
}

func TestParse_InvertedRangeNormalized(t *testing.T) {
	q := Parse("2024-01-05..2024-01-01")
	if q.Text != "" {
		t.Errorf("text = %q", q.Text)
	}
	if !dateEqual(q.From, date(2024, 1, 1)) || !dateEqual(q.To, date(2024, 1, 5)) {
		t.Errorf("range = %v..%v", q.From, q.To)
	}
}

func TestParse_RangeSeparators(t *testing.T) {
	cases := []string{
		"2024-01-01..2024-01-05",
		"2024-01-01 .. 2024-01-05",
		"2024-01-01 to 2024-01-05",
		"2024-01-01 TO 2024-01-05",
		"2024-01-01-2024-01-05",
		"2024-01-01 - 2024-01-05",
		"01/01/2024 - 01/05/2024",
		"Jan 1, 2024 to Jan 5, 2024",
	}
	for _, in := range cases {
		q := Parse(in)
		if !dateEqual(q.From, date(2024, 1, 1)) || !dateEqual(q.To, date(2024, 1, 5)) {
			t.Errorf("Parse(%q) = %v..%v text=%q", in, q.From, q.To, q.Text)
		}
	}
}

func TestParse_SingleDate(t *testing.T) {
	for _, in := range []string{"2025-09-02", "09/02/2025", "Sep 2, 2025"} {
		q := Parse(in)
		if !dateEqual(q.From, date(2025, 9, 2)) || !dateEqual(q.To, date(2025, 9, 2)) {
			t.Errorf("Parse(%q) = %v..%v", in, q.From, q.To)
		}
	}
}

func TestParse_InvalidDatesFallBackToText(t *testing.T) {
	for _, in := range []string{"02/30/2024", "2024-13-01", "13/01/2024", "01/05/24", "2024", "2024-01-01..2024-02-30"} {
		q := Parse(in)
		if q.HasDates() {
			t.Errorf("Parse(%q) should not yield dates, got %v..%v", in, q.From, q.To)
		}
		if q.Text != in {
			t.Errorf("Parse(%q).Text = %q", in, q.Text)
		}
	}
}

func TestParse_TextContainingTo(t *testing.T) {
	q := Parse("Toronto to Tokyo")
	if q.Text != "Toronto to Tokyo" || q.HasDates() {
		t.Errorf("q = %+v", q)
	}
}

func TestFormat_RoundTrip(t *testing.T) {
	inputs := []string{
		"", "Google", "2024-01-05..2024-01-01", "2024-03-01", "12/31/2023 to 01/02/2024",
		"Feb 29, 2024", "data engineer", "2024-01-01 - 2024-01-01",
	}
	for _, in := range inputs {
		q := Parse(in)
		again := Parse(Format(q))
		if !again.Equal(q) {
			t.Errorf("round trip %q: %+v -> %q -> %+v", in, q, Format(q), again)
		}
		if !Parse(Format(again)).Equal(again) {
			t.Errorf("format not idempotent for %q", in)
		}
	}
}

func TestContains(t *testing.T) {
	q := Parse("2024-01-01..2024-01-31")
	if !q.Contains(date(2024, 1, 1)) || !q.Contains(date(2024, 1, 31)) {
		t.Error("bounds are inclusive")
	}
	if q.Contains(date(2024, 2, 1)) {
		t.Error("outside range should not match")
	}
	if q.Contains(nil) {
		t.Error("undated records are excluded when a bound is set")
	}
	if !(Query{Text: "x"}).Contains(nil) {
		t.Error("text-only query matches everything")
	}
}
