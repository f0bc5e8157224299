// Package store persists the linked device's state in SQLite: key
// material, the registration record, conversations, messages, contacts and
// settings. All public methods are safe for concurrent use (SQLite
// serializes writes).
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// FileName is the database file inside the storage directory.
const FileName = "siglink.db"

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// DB is the device database.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the database in dir.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return OpenPath(filepath.Join(dir, FileName))
}

// OpenPath opens the database at dbPath. The schema is created
// automatically on first use.
func OpenPath(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &DB{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *DB) Close() error {
	return s.db.Close()
}

func (s *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id              TEXT PRIMARY KEY,
		type            TEXT NOT NULL,
		name            TEXT NOT NULL DEFAULT '',
		recipient_id    TEXT NOT NULL DEFAULT '',
		group_id        TEXT NOT NULL DEFAULT '',
		last_message_at INTEGER NOT NULL DEFAULT 0,
		unread          INTEGER NOT NULL DEFAULT 0,
		created_at      TEXT NOT NULL,
		updated_at      TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id               TEXT PRIMARY KEY,
		conversation_id  TEXT NOT NULL,
		sender           TEXT NOT NULL,
		body             TEXT NOT NULL DEFAULT '',
		timestamp        INTEGER NOT NULL,
		server_timestamp INTEGER NOT NULL DEFAULT 0,
		outgoing         INTEGER NOT NULL DEFAULT 0,
		status           TEXT NOT NULL,
		created_at       TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_conversation
		ON messages(conversation_id, timestamp);

	CREATE TABLE IF NOT EXISTS contacts (
		id           TEXT PRIMARY KEY,
		uuid         TEXT NOT NULL DEFAULT '',
		phone        TEXT NOT NULL DEFAULT '',
		name         TEXT NOT NULL DEFAULT '',
		profile_key  BLOB,
		color        TEXT NOT NULL DEFAULT '',
		blocked      INTEGER NOT NULL DEFAULT 0,
		expire_timer INTEGER NOT NULL DEFAULT 0,
		archived     INTEGER NOT NULL DEFAULT 0,
		updated_at   TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS identity_keys (
		kind    TEXT PRIMARY KEY,
		public  BLOB NOT NULL,
		private BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS signed_pre_keys (
		kind   TEXT NOT NULL,
		id     INTEGER NOT NULL,
		record BLOB NOT NULL,
		PRIMARY KEY (kind, id)
	);

	CREATE TABLE IF NOT EXISTS kyber_pre_keys (
		kind        TEXT NOT NULL,
		id          INTEGER NOT NULL,
		record      BLOB NOT NULL,
		last_resort INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (kind, id)
	);

	CREATE TABLE IF NOT EXISTS registration (
		id   INTEGER PRIMARY KEY CHECK (id = 1),
		data BLOB NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
