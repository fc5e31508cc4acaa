// Package sqlite persists the monitoring event stream so `shepherd tail`
// can show alert history across watcher restarts.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/steveyegge/shepherd/internal/config"
	"github.com/steveyegge/shepherd/internal/events"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id         TEXT PRIMARY KEY,
	type       TEXT NOT NULL,
	timestamp  DATETIME NOT NULL,
	project_id TEXT NOT NULL,
	severity   TEXT NOT NULL,
	message    TEXT NOT NULL,
	data       TEXT
);

CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
CREATE INDEX IF NOT EXISTS idx_events_project ON events(project_id, timestamp);
`

// EventStore is the SQLite-backed event log.
type EventStore struct {
	db *sql.DB
}

// Open opens (or creates) the event database at path.
func Open(path string) (*EventStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// WAL mode so the watcher can write while tail reads
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &EventStore{db: db}, nil
}

// Store persists a single event. Duplicate IDs are ignored so a replayed
// stream never errors.
func (s *EventStore) Store(event *events.Event) error {
	if event == nil {
		return fmt.Errorf("nil event")
	}

	var dataStr sql.NullString
	if len(event.Data) > 0 {
		encoded, err := json.Marshal(event.Data)
		if err != nil {
			return fmt.Errorf("failed to encode event data: %w", err)
		}
		dataStr = sql.NullString{String: string(encoded), Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO events (id, type, timestamp, project_id, severity, message, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, event.ID, string(event.Type), event.Timestamp, event.ProjectID,
		string(event.Severity), event.Message, dataStr)
	if err != nil {
		return fmt.Errorf("failed to store event: %w", err)
	}
	return nil
}

// Query returns events matching the filter, oldest first.
func (s *EventStore) Query(ctx context.Context, filter events.Filter) ([]*events.Event, error) {
	whereClauses := []string{}
	args := []interface{}{}

	if filter.ProjectID != "" {
		whereClauses = append(whereClauses, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.Type != "" {
		whereClauses = append(whereClauses, "type = ?")
		args = append(args, string(filter.Type))
	}
	if !filter.AfterTime.IsZero() {
		whereClauses = append(whereClauses, "timestamp > ?")
		args = append(args, filter.AfterTime)
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = "WHERE " + strings.Join(whereClauses, " AND ")
	}

	limitSQL := ""
	if filter.Limit > 0 {
		limitSQL = fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	querySQL := fmt.Sprintf(`
		SELECT id, type, timestamp, project_id, severity, message, data
		FROM events
		%s
		ORDER BY timestamp ASC, id ASC
		%s
	`, whereSQL, limitSQL)

	rows, err := s.db.QueryContext(ctx, querySQL, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []*events.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

// Recent returns the most recent limit events, oldest first so they print
// in chronological order.
func (s *EventStore) Recent(ctx context.Context, projectID string, limit int) ([]*events.Event, error) {
	if limit <= 0 {
		limit = 20
	}

	whereSQL := ""
	args := []interface{}{}
	if projectID != "" {
		whereSQL = "WHERE project_id = ?"
		args = append(args, projectID)
	}
	args = append(args, limit)

	querySQL := fmt.Sprintf(`
		SELECT id, type, timestamp, project_id, severity, message, data
		FROM (
			SELECT id, type, timestamp, project_id, severity, message, data
			FROM events
			%s
			ORDER BY timestamp DESC, id DESC
			LIMIT ?
		)
		ORDER BY timestamp ASC, id ASC
	`, whereSQL)

	rows, err := s.db.QueryContext(ctx, querySQL, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent events: %w", err)
	}
	defer rows.Close()

	var out []*events.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

// Since returns events at or after the given time, oldest first. The
// comparison is inclusive so events sharing the boundary timestamp are
// never lost; callers dedupe boundary events by ID. Used by tail --follow.
func (s *EventStore) Since(ctx context.Context, projectID string, t time.Time) ([]*events.Event, error) {
	whereClauses := []string{"timestamp >= ?"}
	args := []interface{}{t}
	if projectID != "" {
		whereClauses = append(whereClauses, "project_id = ?")
		args = append(args, projectID)
	}

	querySQL := fmt.Sprintf(`
		SELECT id, type, timestamp, project_id, severity, message, data
		FROM events
		WHERE %s
		ORDER BY timestamp ASC, id ASC
	`, strings.Join(whereClauses, " AND "))

	rows, err := s.db.QueryContext(ctx, querySQL, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events since %v: %w", t, err)
	}
	defer rows.Close()

	var out []*events.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

// Prune deletes events outside the retention policy: old non-alert noise
// first, then expired alerts, then the oldest non-alerts beyond the global
// cap. Returns the number of deleted rows.
func (s *EventStore) Prune(ctx context.Context, cfg config.EventRetentionConfig) (int64, error) {
	if !cfg.Enabled {
		return 0, nil
	}
	if err := cfg.Validate(); err != nil {
		return 0, err
	}

	var total int64
	now := time.Now()

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM events
		WHERE type != ? AND timestamp < ?
	`, string(events.EventTypeViolationAlert), now.AddDate(0, 0, -cfg.RetentionDays))
	if err != nil {
		return total, fmt.Errorf("failed to prune events: %w", err)
	}
	n, _ := res.RowsAffected()
	total += n

	res, err = s.db.ExecContext(ctx, `
		DELETE FROM events
		WHERE type = ? AND timestamp < ?
	`, string(events.EventTypeViolationAlert), now.AddDate(0, 0, -cfg.RetentionAlertDays))
	if err != nil {
		return total, fmt.Errorf("failed to prune alerts: %w", err)
	}
	n, _ = res.RowsAffected()
	total += n

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&count); err != nil {
		return total, fmt.Errorf("failed to count events: %w", err)
	}
	if count > cfg.GlobalLimitEvents {
		res, err = s.db.ExecContext(ctx, `
			DELETE FROM events
			WHERE id IN (
				SELECT id FROM events
				WHERE type != ?
				ORDER BY timestamp ASC, id ASC
				LIMIT ?
			)
		`, string(events.EventTypeViolationAlert), count-cfg.GlobalLimitEvents)
		if err != nil {
			return total, fmt.Errorf("failed to enforce global limit: %w", err)
		}
		n, _ = res.RowsAffected()
		total += n
	}

	return total, nil
}

// Close closes the database connection.
func (s *EventStore) Close() error {
	return s.db.Close()
}

func scanEvent(rows *sql.Rows) (*events.Event, error) {
	var event events.Event
	var eventType, severity string
	var dataStr sql.NullString

	err := rows.Scan(&event.ID, &eventType, &event.Timestamp,
		&event.ProjectID, &severity, &event.Message, &dataStr)
	if err != nil {
		return nil, fmt.Errorf("failed to scan event: %w", err)
	}

	event.Type = events.EventType(eventType)
	event.Severity = events.EventSeverity(severity)
	if dataStr.Valid && dataStr.String != "" {
		if err := json.Unmarshal([]byte(dataStr.String), &event.Data); err != nil {
			return nil, fmt.Errorf("failed to decode event data: %w", err)
		}
	}
	return &event, nil
}
