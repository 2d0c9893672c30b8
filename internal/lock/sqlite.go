package lock

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore is a Store on a local SQLite database. Conditional writes
// ride on `UPDATE ... WHERE version = ?` with a rows-affected check, which
// SQLite executes atomically per statement.
//
// Suited to single-host deployments where the queue, the lock, and the
// consumer share a machine; multi-host deployments want DynamoStore.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite creates or opens the store at path. Idempotent: pragmas and
// schema are applied on every open.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("lock: open sqlite %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("lock: connect sqlite %s: %w", path, err)
	}

	// Single writer avoids SQLITE_BUSY on contended CAS updates.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("lock: %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("lock: apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get returns the current item, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, key string) (Item, error) {
	item := Item{Key: key}
	err := s.db.QueryRowContext(ctx,
		`SELECT value, version FROM lock_items WHERE key = ?`, key,
	).Scan(&item.Value, &item.Version)
	if err == sql.ErrNoRows {
		return Item{}, ErrNotFound
	}
	if err != nil {
		return Item{}, fmt.Errorf("lock: get %s: %w", key, err)
	}
	return item, nil
}

// Put conditionally writes the item.
func (s *SQLiteStore) Put(ctx context.Context, item Item) (Item, error) {
	var (
		res sql.Result
		err error
	)
	if item.Version == 0 {
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO lock_items (key, value, version) VALUES (?, ?, 1)
			ON CONFLICT(key) DO NOTHING
		`, item.Key, item.Value)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE lock_items SET value = ?, version = version + 1
			WHERE key = ? AND version = ?
		`, item.Value, item.Key, item.Version)
	}
	if err != nil {
		return Item{}, fmt.Errorf("lock: put %s: %w", item.Key, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return Item{}, fmt.Errorf("lock: put %s: %w", item.Key, err)
	}
	if affected == 0 {
		return Item{}, ErrConflict
	}

	stored := item
	stored.Version = item.Version + 1
	return stored, nil
}

// Delete removes the key.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM lock_items WHERE key = ?`, key); err != nil {
		return fmt.Errorf("lock: delete %s: %w", key, err)
	}
	return nil
}
