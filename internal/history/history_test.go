package history

import (
	"path/filepath"
	"testing"
	"time"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAddAndRecent(t *testing.T) {
	s := testStore(t)

	first := &Record{
		StartedAt:        time.Now().Add(-time.Hour),
		DurationSeconds:  12.5,
		EmailsProcessed:  8,
		NewSponsorsAdded: 2,
		NeedReview:       1,
		Complete:         1,
		Rejections:       map[string]int{"denylist": 3, "self_reference": 1},
	}
	if err := s.Add(first); err != nil {
		t.Fatalf("add: %v", err)
	}
	if first.ID == 0 {
		t.Error("expected ID to be set")
	}

	second := &Record{StartedAt: time.Now(), DurationSeconds: 3.1, EmailsProcessed: 1}
	if err := s.Add(second); err != nil {
		t.Fatalf("add: %v", err)
	}

	records, err := s.Recent(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].ID != second.ID {
		t.Errorf("newest first: got ID %d, want %d", records[0].ID, second.ID)
	}
	if records[1].Rejections["denylist"] != 3 {
		t.Errorf("rejections round trip: got %v", records[1].Rejections)
	}
}

func TestTotals(t *testing.T) {
	s := testStore(t)

	for i := 0; i < 3; i++ {
		err := s.Add(&Record{
			StartedAt:        time.Now(),
			EmailsProcessed:  5,
			NewSponsorsAdded: 2,
			NeedReview:       1,
		})
		if err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	totals, err := s.Totals()
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.Cycles != 3 || totals.EmailsProcessed != 15 || totals.NewSponsors != 6 || totals.NeedReview != 3 {
		t.Errorf("got %+v, want 3/15/6/3", totals)
	}
}

func TestTotalsEmpty(t *testing.T) {
	s := testStore(t)
	totals, err := s.Totals()
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.Cycles != 0 {
		t.Errorf("got %d cycles, want 0", totals.Cycles)
	}
}
