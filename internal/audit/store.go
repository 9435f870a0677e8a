// Package audit keeps a persistent trail of the mutations aliasync sends to
// the appliance.
package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"grimm.is/aliasync/internal/clock"

	_ "modernc.org/sqlite"
)

// DefaultRetentionDays is used when no retention is configured.
const DefaultRetentionDays = 90

// Actions recorded by the orchestrator.
const (
	ActionCreate = "alias.create"
	ActionUpdate = "alias.update"
	ActionReload = "alias.reload"
)

// Statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Event is one mutation attempt.
type Event struct {
	ID        int64          `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id"`
	Action    string         `json:"action"`
	Resource  string         `json:"resource"`
	Status    string         `json:"status"`
	Reason    string         `json:"reason,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// Filter narrows a Query. Zero values match everything.
type Filter struct {
	Since    time.Time
	Until    time.Time
	RunID    string
	Action   string
	Resource string
	Limit    int
}

// Store provides persistent storage for audit events.
type Store struct {
	mu            sync.RWMutex
	db            *sql.DB
	retentionDays int
	clock         clock.Clock
}

// NewStore opens (or creates) the audit database at dbPath and prunes events
// older than the retention period.
func NewStore(dbPath string, retentionDays int) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
			return nil, fmt.Errorf("create audit dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	// A single connection keeps :memory: databases coherent.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS alias_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			run_id TEXT NOT NULL,
			action TEXT NOT NULL,
			resource TEXT NOT NULL,
			status TEXT NOT NULL,
			reason TEXT,
			details TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_alias_events_ts ON alias_events(ts);
		CREATE INDEX IF NOT EXISTS idx_alias_events_run ON alias_events(run_id);
		CREATE INDEX IF NOT EXISTS idx_alias_events_resource ON alias_events(resource);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create audit table: %w", err)
	}

	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}

	s := &Store{db: db, retentionDays: retentionDays, clock: clock.Real}
	if _, err := s.Prune(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// SetClock replaces the time source used for timestamps and pruning.
func (s *Store) SetClock(c clock.Clock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock.Or(c)
}

// Write persists an event. A zero timestamp is set to now.
func (s *Store) Write(evt Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if evt.Timestamp.IsZero() {
		evt.Timestamp = s.clock.Now()
	}

	var details sql.NullString
	if len(evt.Details) > 0 {
		b, err := json.Marshal(evt.Details)
		if err != nil {
			b = []byte("{}")
		}
		details = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT INTO alias_events (ts, run_id, action, resource, status, reason, details)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, evt.Timestamp.UnixNano(), evt.RunID, evt.Action, evt.Resource, evt.Status, evt.Reason, details)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Query returns events matching f, newest first.
func (s *Store) Query(f Filter) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var where []string
	var args []any
	if !f.Since.IsZero() {
		where = append(where, "ts >= ?")
		args = append(args, f.Since.UnixNano())
	}
	if !f.Until.IsZero() {
		where = append(where, "ts <= ?")
		args = append(args, f.Until.UnixNano())
	}
	if f.RunID != "" {
		where = append(where, "run_id = ?")
		args = append(args, f.RunID)
	}
	if f.Action != "" {
		where = append(where, "action = ?")
		args = append(args, f.Action)
	}
	if f.Resource != "" {
		where = append(where, "resource = ?")
		args = append(args, f.Resource)
	}

	query := "SELECT id, ts, run_id, action, resource, status, reason, details FROM alias_events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY ts DESC, id DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			evt     Event
			ts      int64
			reason  sql.NullString
			details sql.NullString
		)
		if err := rows.Scan(&evt.ID, &ts, &evt.RunID, &evt.Action, &evt.Resource, &evt.Status, &reason, &details); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		evt.Timestamp = time.Unix(0, ts)
		evt.Reason = reason.String
		if details.Valid && details.String != "" {
			_ = json.Unmarshal([]byte(details.String), &evt.Details)
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read audit events: %w", err)
	}
	return events, nil
}

// Prune removes events older than the retention period.
func (s *Store) Prune() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clock.Now().AddDate(0, 0, -s.retentionDays)
	result, err := s.db.Exec("DELETE FROM alias_events WHERE ts < ?", cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune audit events: %w", err)
	}
	return result.RowsAffected()
}

// Count returns the total number of events in the store.
func (s *Store) Count() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	err := s.db.QueryRow("SELECT COUNT(*) FROM alias_events").Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
