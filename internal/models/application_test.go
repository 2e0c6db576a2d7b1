package models

import (
	"testing"

	"github.com/starford/applysync/internal/status"
)

func strp(s string) *string { return &s }

func TestCreateApplication_Validate(t *testing.T) {
	c := CreateApplication{Company: "   "}.Normalize()
	if err := c.Validate(); err == nil {
		t.Error("whitespace company should fail")
	}
	c = CreateApplication{Company: " Acme ", Status: status.WireOffer}.Normalize()
	if err := c.Validate(); err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}
	if c.Company != "Acme" {
		t.Errorf("company = %q", c.Company)
	}
	c.Status = "ghosted"
	if err := c.Validate(); err == nil {
		t.Error("unknown status should fail")
	}
}

func TestPatch_Diff(t *testing.T) {
	cur := Application{ID: "a", Company: "Acme", JobTitle: "SRE"}
	p := ApplicationPatch{Company: strp("Acme"), JobTitle: strp("SWE")}
	d := p.Diff(cur)
	if d.Company != nil {
		t.Error("unchanged company should be dropped")
	}
	if d.JobTitle == nil || *d.JobTitle != "SWE" {
		t.Errorf("job title diff = %v", d.JobTitle)
	}
	if !(ApplicationPatch{Company: strp("Acme")}).Diff(cur).IsEmpty() {
		t.Error("identical patch should diff to empty")
	}
}

func TestPatch_ApplyDoesNotAlias(t *testing.T) {
	d := Date{Year: 2024, Month: 1, Day: 1}
	cur := Application{ID: "a", Company: "Acme", AppliedDate: &d}
	next := ApplicationPatch{Company: strp("Beta")}.Apply(cur)
	next.AppliedDate.Day = 9
	if cur.AppliedDate.Day != 1 {
		t.Error("Apply must deep-copy the applied date")
	}
	if cur.Company != "Acme" || next.Company != "Beta" {
		t.Errorf("cur=%q next=%q", cur.Company, next.Company)
	}
}

func TestApplication_Validate(t *testing.T) {
	if err := (Application{ID: "x", Company: "Acme"}).Validate(); err != nil {
		t.Errorf("empty status should be accepted: %v", err)
	}
	if err := (Application{Company: "Acme"}).Validate(); err == nil {
		t.Error("missing id should fail")
	}
	if err := (Application{ID: "x", Company: "Acme", Status: "bogus"}).Validate(); err == nil {
		t.Error("bogus status should fail")
	}
}

func TestNewNoteInput(t *testing.T) {
	if _, err := NewNoteInput("   \n"); err == nil {
		t.Error("blank note should fail")
	}
	in, err := NewNoteInput("  call back  ")
	if err != nil || in.Content != "call back" {
		t.Errorf("in = %+v, err = %v", in, err)
	}
}
