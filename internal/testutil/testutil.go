// Package testutil provides shared test helpers for standing up the
// reference backend and seeding it.
package testutil

import (
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/starford/applysync/internal/devbackend"
	"github.com/starford/applysync/internal/models"
	"github.com/starford/applysync/internal/status"
)

// TestDB opens an in-memory backend database that is closed on cleanup.
func TestDB(t *testing.T) *devbackend.DB {
	t.Helper()
	db, err := devbackend.Open(":memory:")
	if err != nil {
		t.Fatalf("devbackend.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Backend starts the reference backend on an httptest server. An empty token
// disables auth.
func Backend(t *testing.T, token string) (*devbackend.Server, *httptest.Server) {
	t.Helper()
	srv := devbackend.NewServer(TestDB(t), devbackend.WithToken(token))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

// Seed inserts n applications named "Company 00".."Company n-1" with the
// given status. Creation times descend so list order matches index order.
func Seed(t *testing.T, db *devbackend.DB, n int, st status.Wire) []models.Application {
	t.Helper()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	out := make([]models.Application, 0, n)
	for i := 0; i < n; i++ {
		d := models.DateOf(base.AddDate(0, 0, -i))
		a := models.Application{
			ID:          fmt.Sprintf("app-%02d", i),
			Company:     fmt.Sprintf("Company %02d", i),
			JobTitle:    "Engineer",
			Status:      st,
			AppliedDate: &d,
			CreatedAt:   base.Add(-time.Duration(i) * time.Minute),
		}
		if err := db.InsertApplication(a); err != nil {
			t.Fatalf("InsertApplication: %v", err)
		}
		out = append(out, a)
	}
	return out
}
