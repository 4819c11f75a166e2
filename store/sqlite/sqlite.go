package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/imba3r/kedai/store"
)

// sqliteStore keeps each document as one row keyed by its full path. The
// parent column indexes collection listings.
type sqliteStore struct {
	path string
	db   *sql.DB
}

type document struct {
	key   string
	store *sqliteStore
}

type collection struct {
	key   string
	store *sqliteStore
}

var _ store.Store = &sqliteStore{}

// New opens (and creates) the database file at path. ":memory:" is accepted.
func New(path string) (store.Store, error) {
	if path == "" {
		path = "kedai.db"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		key TEXT PRIMARY KEY,
		parent TEXT NOT NULL,
		value BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create documents table: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS documents_parent ON documents (parent, key)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create parent index: %w", err)
	}
	return &sqliteStore{path: path, db: db}, nil
}

func (s *sqliteStore) Document(key string) (store.Document, error) {
	key = store.Clean(key)
	if store.IsDocumentKey(key) {
		return &document{key, s}, nil
	}
	return nil, fmt.Errorf("%w: not a document path: %s", store.ErrInvalidKey, key)
}

func (s *sqliteStore) Collection(key string) (store.Collection, error) {
	key = store.Clean(key)
	if store.IsCollectionKey(key) {
		return &collection{key, s}, nil
	}
	return nil, fmt.Errorf("%w: not a collection path: %s", store.ErrInvalidKey, key)
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func (d *document) Key() string {
	return d.key
}

func (d *document) Get() ([]byte, error) {
	var value []byte
	err := d.store.db.QueryRow(`SELECT value FROM documents WHERE key = ?`, d.key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", d.key, err)
	}
	return value, nil
}

func (d *document) Set(data []byte) error {
	if err := store.ValidateObject(data); err != nil {
		return err
	}
	return d.put(d.store.db, data)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (d *document) put(db execer, data []byte) error {
	parent, err := store.CollectionKey(d.key)
	if err != nil {
		return err
	}
	_, err = db.Exec(`INSERT INTO documents (key, parent, value) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, d.key, parent, data)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", d.key, err)
	}
	return nil
}

func (d *document) Update(data []byte) error {
	return d.merge(data, false)
}

func (d *document) Merge(data []byte) error {
	return d.merge(data, true)
}

func (d *document) merge(data []byte, create bool) (retErr error) {
	tx, err := d.store.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	var base []byte
	err = tx.QueryRow(`SELECT value FROM documents WHERE key = ?`, d.key).Scan(&base)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if !create {
			return store.ErrNotFound
		}
	case err != nil:
		return fmt.Errorf("select %s: %w", d.key, err)
	}
	merged, err := store.MergeJSON(base, data)
	if err != nil {
		return err
	}
	if err := d.put(tx, merged); err != nil {
		return err
	}
	return tx.Commit()
}

func (d *document) Delete() error {
	if _, err := d.store.db.Exec(`DELETE FROM documents WHERE key = ?`, d.key); err != nil {
		return fmt.Errorf("delete %s: %w", d.key, err)
	}
	return nil
}

func (c *collection) Key() string {
	return c.key
}

func (c *collection) Add(data []byte) (store.Document, error) {
	d, err := c.store.Document(fmt.Sprintf("%s/%s", c.key, ulid.Make()))
	if err != nil {
		return nil, err
	}
	return d, d.Set(data)
}

func (c *collection) Items(q store.Query, o store.Order, l store.Limit) ([]store.CollectionItem, error) {
	rows, err := c.store.db.Query(`SELECT key, value FROM documents WHERE parent = ? ORDER BY key`, c.key)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", c.key, err)
	}
	defer func() { _ = rows.Close() }()
	items := make([]store.CollectionItem, 0)
	for rows.Next() {
		var item store.CollectionItem
		if err := rows.Scan(&item.Key, &item.Value); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return store.Select(items, q, o, l)
}
