// Package history keeps a local SQLite log of scan cycles so repeated
// runs can be inspected without touching the main database.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one completed (or failed) scan cycle.
type Record struct {
	ID               int64          `json:"id"`
	StartedAt        time.Time      `json:"startedAt"`
	DurationSeconds  float64        `json:"durationSeconds"`
	EmailsProcessed  int            `json:"emailsProcessed"`
	NewSponsorsAdded int            `json:"newSponsorsAdded"`
	NeedReview       int            `json:"needReview"`
	Complete         int            `json:"complete"`
	Rejections       map[string]int `json:"rejections,omitempty"` // reason code -> count
	Error            string         `json:"error,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
}

type Store struct {
	db *sql.DB
}

func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "history.db"
	}
	return filepath.Join(home, ".sponsorscan", "history.db")
}

func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS cycles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at DATETIME NOT NULL,
		duration_seconds REAL NOT NULL,
		emails_processed INTEGER NOT NULL DEFAULT 0,
		new_sponsors INTEGER NOT NULL DEFAULT 0,
		need_review INTEGER NOT NULL DEFAULT 0,
		complete INTEGER NOT NULL DEFAULT 0,
		rejections TEXT,
		error TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_cycles_started_at ON cycles(started_at);
	`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Add inserts a cycle record and fills in its ID.
func (s *Store) Add(record *Record) error {
	rejections, err := json.Marshal(record.Rejections)
	if err != nil {
		return fmt.Errorf("failed to serialize rejections: %w", err)
	}

	result, err := s.db.Exec(`
	INSERT INTO cycles (started_at, duration_seconds, emails_processed, new_sponsors, need_review, complete, rejections, error, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.StartedAt,
		record.DurationSeconds,
		record.EmailsProcessed,
		record.NewSponsorsAdded,
		record.NeedReview,
		record.Complete,
		string(rejections),
		record.Error,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert cycle record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	record.ID = id
	return nil
}

// Recent returns the last n cycles, newest first.
func (s *Store) Recent(n int) ([]Record, error) {
	rows, err := s.db.Query(`
	SELECT id, started_at, duration_seconds, emails_processed, new_sponsors, need_review, complete, rejections, error, created_at
	FROM cycles ORDER BY started_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycles: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}

func scanRecord(scanner interface{ Scan(...any) error }) (*Record, error) {
	var r Record
	var startedAt, createdAt sql.NullTime
	var rejections, errStr sql.NullString

	err := scanner.Scan(&r.ID, &startedAt, &r.DurationSeconds, &r.EmailsProcessed,
		&r.NewSponsorsAdded, &r.NeedReview, &r.Complete, &rejections, &errStr, &createdAt)
	if err != nil {
		return nil, err
	}

	r.StartedAt = startedAt.Time
	r.CreatedAt = createdAt.Time
	r.Error = errStr.String
	if rejections.String != "" {
		if err := json.Unmarshal([]byte(rejections.String), &r.Rejections); err != nil {
			r.Rejections = nil
		}
	}
	return &r, nil
}

// Totals aggregates across every recorded cycle.
type Totals struct {
	Cycles          int64 `json:"cycles"`
	EmailsProcessed int64 `json:"emailsProcessed"`
	NewSponsors     int64 `json:"newSponsors"`
	NeedReview      int64 `json:"needReview"`
}

func (s *Store) Totals() (*Totals, error) {
	var t Totals
	err := s.db.QueryRow(`
	SELECT COUNT(*),
	       COALESCE(SUM(emails_processed), 0),
	       COALESCE(SUM(new_sponsors), 0),
	       COALESCE(SUM(need_review), 0)
	FROM cycles`).Scan(&t.Cycles, &t.EmailsProcessed, &t.NewSponsors, &t.NeedReview)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate cycles: %w", err)
	}
	return &t, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
