package web

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sponsorscan/sponsorscan/internal/history"
	"github.com/sponsorscan/sponsorscan/internal/store"
)

type fakeStats struct {
	stats *store.Stats
}

func (f *fakeStats) Stats(ctx context.Context) (*store.Stats, error) {
	return f.stats, nil
}

func TestRateLimiter(t *testing.T) {
	rl := &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    3,
		window:   time.Minute,
	}

	for i := 0; i < 3; i++ {
		if !rl.Allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("1.2.3.4") {
		t.Error("fourth request should be rejected")
	}
	if !rl.Allow("5.6.7.8") {
		t.Error("different client should not be affected")
	}
}

func TestRateLimiterWindowExpiry(t *testing.T) {
	rl := &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    1,
		window:   10 * time.Millisecond,
	}

	if !rl.Allow("a") {
		t.Fatal("first request should be allowed")
	}
	if rl.Allow("a") {
		t.Fatal("second request inside window should be rejected")
	}
	time.Sleep(20 * time.Millisecond)
	if !rl.Allow("a") {
		t.Error("request after window should be allowed")
	}
}

func TestHandleStats(t *testing.T) {
	s := &Server{
		sponsors: &fakeStats{stats: &store.Stats{
			Total:   7,
			Pending: 2,
		}},
	}

	req := httptest.NewRequest("GET", "/api/stats", nil)
	rec := httptest.NewRecorder()
	s.handleStats(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got store.Stats
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Total != 7 {
		t.Errorf("Total = %d, want 7", got.Total)
	}
}

func TestHandleCycles(t *testing.T) {
	hs, err := history.NewStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer hs.Close()

	if err := hs.Add(&history.Record{
		StartedAt:       time.Now(),
		DurationSeconds: 1.5,
		EmailsProcessed: 4,
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	s := &Server{historyStore: hs}

	req := httptest.NewRequest("GET", "/api/cycles", nil)
	rec := httptest.NewRecorder()
	s.handleCycles(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got []history.Record
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].EmailsProcessed != 4 {
		t.Errorf("EmailsProcessed = %d, want 4", got[0].EmailsProcessed)
	}
}

func TestHandleCyclesNoStore(t *testing.T) {
	s := &Server{}
	req := httptest.NewRequest("GET", "/api/cycles", nil)
	rec := httptest.NewRecorder()
	s.handleCycles(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
