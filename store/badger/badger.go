package badger

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/golang/glog"
	"github.com/oklog/ulid/v2"

	"github.com/imba3r/kedai/store"
)

type badgerStore struct {
	path string
	db   *badger.DB
}

type document struct {
	key   string
	store *badgerStore
}

type collection struct {
	key   string
	store *badgerStore
}

var _ store.Store = &badgerStore{}

// New opens the database in path. An empty path keeps everything in memory.
func New(path string) (store.Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(glogLogger{})
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger %q: %w", path, err)
	}
	return &badgerStore{db: db, path: path}, nil
}

func (bs *badgerStore) Document(key string) (store.Document, error) {
	key = store.Clean(key)
	if store.IsDocumentKey(key) {
		return &document{key, bs}, nil
	}
	return nil, fmt.Errorf("%w: not a document path: %s", store.ErrInvalidKey, key)
}

func (bs *badgerStore) Collection(key string) (store.Collection, error) {
	key = store.Clean(key)
	if store.IsCollectionKey(key) {
		return &collection{key, bs}, nil
	}
	return nil, fmt.Errorf("%w: not a collection path: %s", store.ErrInvalidKey, key)
}

func (bs *badgerStore) Close() error {
	return bs.db.Close()
}

func (d *document) Key() string {
	return d.key
}

func (d *document) Get() ([]byte, error) {
	var value []byte
	err := d.store.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(d.key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (d *document) Set(data []byte) error {
	if err := store.ValidateObject(data); err != nil {
		return err
	}
	return d.store.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(d.key), data)
	})
}

func (d *document) Update(data []byte) error {
	return d.merge(data, false)
}

func (d *document) Merge(data []byte) error {
	return d.merge(data, true)
}

func (d *document) merge(data []byte, create bool) error {
	return d.store.db.Update(func(txn *badger.Txn) error {
		var base []byte
		item, err := txn.Get([]byte(d.key))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			if !create {
				return store.ErrNotFound
			}
		case err != nil:
			return err
		default:
			if base, err = item.ValueCopy(nil); err != nil {
				return err
			}
		}
		merged, err := store.MergeJSON(base, data)
		if err != nil {
			return err
		}
		return txn.Set([]byte(d.key), merged)
	})
}

func (d *document) Delete() error {
	return d.store.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(d.key))
	})
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
	items := make([]store.CollectionItem, 0)
	err := c.store.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		// Iterate with collection key as prefix, skipping sub-collections.
		prefix := append([]byte(c.key), '/')
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			if bytes.ContainsRune(item.Key()[len(prefix):], '/') {
				continue
			}
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			items = append(items, store.CollectionItem{Key: string(item.KeyCopy(nil)), Value: value})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return store.Select(items, q, o, l)
}

// glogLogger routes badger's internal logging through glog.
type glogLogger struct{}

func (glogLogger) Errorf(format string, args ...interface{}) {
	glog.Errorf("[badger] "+format, args...)
}

func (glogLogger) Warningf(format string, args ...interface{}) {
	glog.Warningf("[badger] "+format, args...)
}

func (glogLogger) Infof(format string, args ...interface{}) {
	glog.V(1).Infof("[badger] "+format, args...)
}

func (glogLogger) Debugf(format string, args ...interface{}) {
	glog.V(2).Infof("[badger] "+format, args...)
}
