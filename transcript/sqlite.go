package transcript

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const eventTable = "transcript_events"

// SQLiteStore persists transcripts in a SQLite database. Each event is stored
// as a JSON envelope row ordered by sequence number within its transcript.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLite-backed transcript store and ensures schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	if err := ensureSQLiteSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// OpenSQLiteStore opens (or creates) the database at path and returns a store.
func OpenSQLiteStore(path string) (*SQLiteStore, *sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite database: %w", err)
	}
	store, err := NewSQLiteStore(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return store, db, nil
}

func ensureSQLiteSchema(db *sql.DB) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			transcript_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			event_json BLOB NOT NULL,
			PRIMARY KEY(transcript_id, seq)
		);`, eventTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_kind ON %s(kind);`, eventTable, eventTable),
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Save replaces any stored events for id with the provided list.
func (s *SQLiteStore) Save(id string, events []Event) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	if _, err := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE transcript_id = ?", eventTable), id); err != nil {
		_ = tx.Rollback()
		return err
	}

	now := time.Now().UTC().UnixMilli()
	for seq, ev := range events {
		payload, err := MarshalEvent(ev)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		_, err = tx.Exec(
			fmt.Sprintf("INSERT INTO %s (transcript_id, seq, kind, created_at, event_json) VALUES (?, ?, ?, ?, ?)", eventTable),
			id, seq, ev.EventKind(), now, payload)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// Load returns the decoded events for id ordered by sequence, or ErrNotFound.
func (s *SQLiteStore) Load(id string) ([]Event, error) {
	rows, err := s.db.Query(
		fmt.Sprintf("SELECT event_json FROM %s WHERE transcript_id = ? ORDER BY seq ASC", eventTable), id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		ev, err := UnmarshalEvent(payload)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if events == nil {
		return nil, ErrNotFound
	}
	return events, nil
}

// List returns the distinct stored transcript ids.
func (s *SQLiteStore) List() ([]string, error) {
	rows, err := s.db.Query(fmt.Sprintf("SELECT DISTINCT transcript_id FROM %s ORDER BY transcript_id ASC", eventTable))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes all events for the transcript or returns ErrNotFound.
func (s *SQLiteStore) Delete(id string) error {
	result, err := s.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE transcript_id = ?", eventTable), id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
