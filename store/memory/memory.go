// Package memory is an in-process store.Store. Contents are lost on Close.
package memory

import (
	"fmt"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/imba3r/kedai/store"
)

type memoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

type document struct {
	key   string
	store *memoryStore
}

type collection struct {
	key   string
	store *memoryStore
}

var _ store.Store = &memoryStore{}

func New() store.Store {
	return &memoryStore{docs: make(map[string][]byte)}
}

func (ms *memoryStore) Document(key string) (store.Document, error) {
	key = store.Clean(key)
	if store.IsDocumentKey(key) {
		return &document{key, ms}, nil
	}
	return nil, fmt.Errorf("%w: not a document path: %s", store.ErrInvalidKey, key)
}

func (ms *memoryStore) Collection(key string) (store.Collection, error) {
	key = store.Clean(key)
	if store.IsCollectionKey(key) {
		return &collection{key, ms}, nil
	}
	return nil, fmt.Errorf("%w: not a collection path: %s", store.ErrInvalidKey, key)
}

func (ms *memoryStore) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.docs = make(map[string][]byte)
	return nil
}

func (d *document) Key() string {
	return d.key
}

func (d *document) Get() ([]byte, error) {
	d.store.mu.RLock()
	defer d.store.mu.RUnlock()
	v, ok := d.store.docs[d.key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (d *document) Set(data []byte) error {
	if err := store.ValidateObject(data); err != nil {
		return err
	}
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	d.store.docs[d.key] = append([]byte(nil), data...)
	return nil
}

func (d *document) Update(data []byte) error {
	return d.merge(data, false)
}

func (d *document) Merge(data []byte) error {
	return d.merge(data, true)
}

func (d *document) merge(data []byte, create bool) error {
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	base, ok := d.store.docs[d.key]
	if !ok && !create {
		return store.ErrNotFound
	}
	merged, err := store.MergeJSON(base, data)
	if err != nil {
		return err
	}
	d.store.docs[d.key] = merged
	return nil
}

func (d *document) Delete() error {
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	delete(d.store.docs, d.key)
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
	c.store.mu.RLock()
	items := make([]store.CollectionItem, 0)
	for key, value := range c.store.docs {
		if store.IsChild(c.key, key) {
			items = append(items, store.CollectionItem{Key: key, Value: append([]byte(nil), value...)})
		}
	}
	c.store.mu.RUnlock()
	store.SortByKey(items)
	return store.Select(items, q, o, l)
}
