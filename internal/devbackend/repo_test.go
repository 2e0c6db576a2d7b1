package devbackend

import (
	"errors"
	"testing"
	"time"

	"github.com/starford/applysync/internal/apperr"
	"github.com/starford/applysync/internal/models"
	"github.com/starford/applysync/internal/status"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCreateDefaultsStatusAndTrims(t *testing.T) {
	db := testDB(t)
	a, err := db.CreateApplication(models.CreateApplication{Company: "  Acme  "}, time.Now())
	if err != nil {
		t.Fatalf("CreateApplication: %v", err)
	}
	if a.Company != "Acme" || a.Status != status.WireApplied {
		t.Errorf("a = %+v", a)
	}

	_, err = db.CreateApplication(models.CreateApplication{Company: "   "}, time.Now())
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("blank company err = %v, want ErrValidation", err)
	}
}

func TestListFiltersAndOrders(t *testing.T) {
	db := testDB(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range []struct {
		company string
		st      status.Wire
	}{
		{"Acme", status.WireApplied},
		{"Globex", status.WireOffer},
		{"Initech", status.WireApplied},
	} {
		err := db.InsertApplication(models.Application{
			Company:   c.company,
			Status:    c.st,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("InsertApplication: %v", err)
		}
	}

	items, total, err := db.ListApplications(ListFilter{Status: status.WireApplied})
	if err != nil {
		t.Fatalf("ListApplications: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Fatalf("total = %d len = %d, want 2", total, len(items))
	}
	if items[0].Company != "Initech" {
		t.Errorf("first = %s, want newest Initech", items[0].Company)
	}

	items, _, err = db.ListApplications(ListFilter{Text: "glob"})
	if err != nil {
		t.Fatalf("ListApplications: %v", err)
	}
	if len(items) != 1 || items[0].Company != "Globex" {
		t.Errorf("text search = %+v", items)
	}
}

func TestAppliedDateRoundTrip(t *testing.T) {
	db := testDB(t)
	d := models.Date{Year: 2024, Month: time.February, Day: 29}
	if err := db.InsertApplication(models.Application{ID: "a1", Company: "Acme", AppliedDate: &d}); err != nil {
		t.Fatal(err)
	}
	got, err := db.GetApplication("a1")
	if err != nil {
		t.Fatalf("GetApplication: %v", err)
	}
	if got.AppliedDate == nil || *got.AppliedDate != d {
		t.Errorf("applied = %v, want %v", got.AppliedDate, d)
	}
}

func TestDeleteCascadesNotes(t *testing.T) {
	db := testDB(t)
	if err := db.InsertApplication(models.Application{ID: "a1", Company: "Acme"}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.CreateNote("a1", models.NoteInput{Content: "hi"}, time.Now()); err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	if err := db.DeleteApplication("a1"); err != nil {
		t.Fatalf("DeleteApplication: %v", err)
	}
	if _, err := db.ListNotes("a1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("ListNotes after delete err = %v", err)
	}
	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM notes`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("orphan notes = %d", n)
	}
}
