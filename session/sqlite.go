package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/probelabs/probe/core"
)

const (
	sessionTable = "sessions"
	eventTable   = "session_events"
)

// SQLiteStore is a durable SessionStore implementation backed by a SQLite
// database. Session state and metadata are stored as JSON documents; events
// are appended as JSON rows ordered by sequence number. Safe for concurrent
// use through database/sql's connection pooling.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an existing database handle and ensures schema.
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
			id TEXT PRIMARY KEY,
			state_json BLOB NOT NULL,
			metadata_json BLOB NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);`, sessionTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			event_json BLOB NOT NULL,
			PRIMARY KEY(session_id, seq)
		);`, eventTable),
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Create forces the creation (or reset) of a session with the given id.
func (s *SQLiteStore) Create(sessionID string) (*core.Session, error) {
	sess := core.NewSession(sessionID)
	if err := s.writeSession(sess); err != nil {
		return nil, err
	}
	if _, err := s.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE session_id = ?", eventTable), sessionID); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get loads an existing session or creates a new one lazily.
func (s *SQLiteStore) Get(sessionID string) (*core.Session, error) {
	var stateJSON, metadataJSON []byte
	var createdAt, updatedAt int64

	err := s.db.QueryRow(
		fmt.Sprintf("SELECT state_json, metadata_json, created_at, updated_at FROM %s WHERE id = ?", sessionTable),
		sessionID).Scan(&stateJSON, &metadataJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return s.Create(sessionID)
	}
	if err != nil {
		return nil, err
	}

	sess := core.NewSession(sessionID)
	sess.Created = time.UnixMilli(createdAt).UTC()
	sess.Updated = time.UnixMilli(updatedAt).UTC()
	if err := json.Unmarshal(stateJSON, &sess.State); err != nil {
		return nil, fmt.Errorf("decode session state: %w", err)
	}
	if err := json.Unmarshal(metadataJSON, &sess.Metadata); err != nil {
		return nil, fmt.Errorf("decode session metadata: %w", err)
	}

	events, err := s.loadEvents(sessionID)
	if err != nil {
		return nil, err
	}
	sess.Events = events

	return sess, nil
}

// AppendEvent persists an event row for an existing or newly created session.
func (s *SQLiteStore) AppendEvent(sessionID string, ev core.Event) error {
	if err := s.ensureSession(sessionID); err != nil {
		return err
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	var next int64
	if err := tx.QueryRow(
		fmt.Sprintf("SELECT COALESCE(MAX(seq), -1) + 1 FROM %s WHERE session_id = ?", eventTable),
		sessionID).Scan(&next); err != nil {
		_ = tx.Rollback()
		return err
	}

	if _, err := tx.Exec(
		fmt.Sprintf("INSERT INTO %s (session_id, seq, event_json) VALUES (?, ?, ?)", eventTable),
		sessionID, next, payload); err != nil {
		_ = tx.Rollback()
		return err
	}

	if _, err := tx.Exec(
		fmt.Sprintf("UPDATE %s SET updated_at = ? WHERE id = ?", sessionTable),
		time.Now().UTC().UnixMilli(), sessionID); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

// ApplyDelta merges a key/value delta into the persisted session state.
func (s *SQLiteStore) ApplyDelta(sessionID string, delta map[string]interface{}) error {
	if len(delta) == 0 {
		return nil
	}

	sess, err := s.Get(sessionID)
	if err != nil {
		return err
	}
	sess.ApplyStateDelta(delta)

	return s.writeSession(sess)
}

func (s *SQLiteStore) ensureSession(sessionID string) error {
	var exists int
	err := s.db.QueryRow(
		fmt.Sprintf("SELECT 1 FROM %s WHERE id = ?", sessionTable), sessionID).Scan(&exists)
	if err == sql.ErrNoRows {
		return s.writeSession(core.NewSession(sessionID))
	}
	return err
}

func (s *SQLiteStore) writeSession(sess *core.Session) error {
	stateJSON, err := json.Marshal(sess.State)
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}
	metadataJSON, err := json.Marshal(sess.Metadata)
	if err != nil {
		return fmt.Errorf("encode session metadata: %w", err)
	}

	_, err = s.db.Exec(
		fmt.Sprintf(`INSERT INTO %s (id, state_json, metadata_json, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET state_json = excluded.state_json,
				metadata_json = excluded.metadata_json, updated_at = excluded.updated_at`, sessionTable),
		sess.ID, stateJSON, metadataJSON, sess.Created.UnixMilli(), sess.Updated.UnixMilli())
	return err
}

func (s *SQLiteStore) loadEvents(sessionID string) ([]core.Event, error) {
	rows, err := s.db.Query(
		fmt.Sprintf("SELECT event_json FROM %s WHERE session_id = ? ORDER BY seq ASC", eventTable), sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []core.Event{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var ev core.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
