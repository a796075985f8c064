package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// pragma is one connection setting and the value PRAGMA name reads back.
type pragma struct {
	name string
	set  string
	want string
}

var pragmas = []pragma{
	{name: "journal_mode", set: "WAL", want: "wal"},
	{name: "synchronous", set: "NORMAL", want: "1"},
	{name: "busy_timeout", set: "5000", want: "5000"},
	{name: "foreign_keys", set: "ON", want: "1"},
}

// migrations[i] upgrades a database from user_version i to i+1.
var migrations = []func(tx *sql.Tx) error{
	createTables,
	indexJournalTimestamp,
}

// SchemaVersion is the user_version of a fully migrated database.
var SchemaVersion = len(migrations)

// Store is the durable local storage for the intent record and the
// snapshot journal.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens the SQLite database at path, creating it and its parent
// directory if needed, and migrates it to SchemaVersion. ":memory:" opens
// a private in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite has one writer; a single connection also keeps an in-memory
	// database alive for the life of the store.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	for _, p := range pragmas {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA %s = %s", p.name, p.set)); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set %s: %w", p.name, err)
		}
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database. Closing twice is harmless.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Version reports the database's user_version.
func (s *Store) Version(ctx context.Context) (int, error) {
	var v int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}
	return v, nil
}

// migrate applies every migration above the current user_version, each in
// its own transaction together with the version bump.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if version > SchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, SchemaVersion)
	}

	for v := version; v < SchemaVersion; v++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
		if err := migrations[v](tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
		// PRAGMA does not accept bound parameters.
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrate to v%d: set user_version: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
	}
	return nil
}

func createTables(tx *sql.Tx) error {
	_, err := tx.Exec(schemaSQL)
	return err
}

// indexJournalTimestamp supports history range queries by server time.
func indexJournalTimestamp(tx *sql.Tx) error {
	_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_snapshot_journal_timestamp
		ON snapshot_journal(timestamp_ms)`)
	return err
}

// checkPragmas compares every pragma with the value Open sets.
func (s *Store) checkPragmas() error {
	for _, p := range pragmas {
		var got string
		if err := s.db.QueryRow("PRAGMA " + p.name).Scan(&got); err != nil {
			return fmt.Errorf("read %s: %w", p.name, err)
		}
		if got != p.want {
			return fmt.Errorf("%s = %q, want %q", p.name, got, p.want)
		}
	}
	return nil
}
