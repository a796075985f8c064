package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/liftsync/internal/persist"
)

// Get returns the value stored under key. ok is false if the key is absent.
func (s *Store) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return value, true, nil
}

// Put stores value under key, replacing any previous value.
func (s *Store) Put(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Load implements persist.Storage. A stored value that does not decode is
// returned as an error together with ok=false.
func (s *Store) Load(ctx context.Context) (persist.Record, bool, error) {
	value, ok, err := s.Get(ctx, persist.RecordKey)
	if err != nil || !ok {
		return persist.Record{}, false, err
	}
	r, err := persist.Decode([]byte(value))
	if err != nil {
		return persist.Record{}, false, fmt.Errorf("load record: %w", err)
	}
	return r, true, nil
}

// Save implements persist.Storage.
func (s *Store) Save(ctx context.Context, r persist.Record) error {
	data, err := persist.Encode(r)
	if err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	if err := s.Put(ctx, persist.RecordKey, string(data)); err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	return nil
}

var _ persist.Storage = (*Store)(nil)
