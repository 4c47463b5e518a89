package kvstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps one row per top-level key. Nested writes rewrite the
// whole top-level value inside a transaction.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

type querier interface {
	QueryRow(query string, args ...any) *sql.Row
}

func readRow(q querier, key string) (json.RawMessage, bool, error) {
	var value string
	err := q.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return json.RawMessage(value), true, nil
}

func writeRow(tx *sql.Tx, key string, value json.RawMessage) error {
	if value == nil {
		value = json.RawMessage(jsonNull)
	}
	_, err := tx.Exec(
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(value),
	)
	return err
}

func (s *SQLiteStore) Get(path Path) (json.RawMessage, bool, error) {
	if len(path) == 0 {
		return nil, false, ErrEmptyPath
	}
	raw, ok, err := readRow(s.db, path.Root())
	if err != nil || !ok {
		return nil, false, err
	}
	v, ok := getIn(map[string]json.RawMessage{path.Root(): raw}, path)
	return v, ok, nil
}

func (s *SQLiteStore) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Set(path Path, value json.RawMessage) error {
	if len(path) == 0 {
		return ErrEmptyPath
	}
	return s.withTx(func(tx *sql.Tx) error {
		doc := map[string]json.RawMessage{}
		if len(path) > 1 {
			raw, ok, err := readRow(tx, path.Root())
			if err != nil {
				return err
			}
			if ok {
				doc[path.Root()] = raw
			}
		}
		if err := setIn(doc, path, value); err != nil {
			return err
		}
		return writeRow(tx, path.Root(), doc[path.Root()])
	})
}

func (s *SQLiteStore) SetMany(entries map[string]json.RawMessage) error {
	return s.withTx(func(tx *sql.Tx) error {
		for k, v := range entries {
			if err := writeRow(tx, k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) Delete(path Path) error {
	if len(path) == 0 {
		return ErrEmptyPath
	}
	return s.withTx(func(tx *sql.Tx) error {
		if len(path) == 1 {
			_, err := tx.Exec("DELETE FROM kv WHERE key = ?", path.Root())
			return err
		}
		raw, ok, err := readRow(tx, path.Root())
		if err != nil || !ok {
			return err
		}
		doc := map[string]json.RawMessage{path.Root(): raw}
		if err := deleteIn(doc, path); err != nil {
			return err
		}
		return writeRow(tx, path.Root(), doc[path.Root()])
	})
}

func (s *SQLiteStore) Dump() (map[string]json.RawMessage, error) {
	rows, err := s.db.Query("SELECT key, value FROM kv")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	data := map[string]json.RawMessage{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		data[key] = json.RawMessage(value)
	}
	return data, rows.Err()
}

func (s *SQLiteStore) Restore(data map[string]json.RawMessage) error {
	return s.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM kv"); err != nil {
			return err
		}
		for k, v := range data {
			if err := writeRow(tx, k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
