package kedai

import (
	"github.com/golang/glog"

	"github.com/imba3r/kedai/store"
)

// adapter wraps a Store so every successful write is published to the
// written document's key and to its collection's key.
type adapter struct {
	store        store.Store
	eventHandler EventHandler
	metrics      *Metrics
}

type document struct {
	document store.Document
	adapter  *adapter
}

type collection struct {
	collection store.Collection
	adapter    *adapter
}

var _ store.Store = &adapter{}

func newAdapter(s store.Store, eventHandler EventHandler, metrics *Metrics) *adapter {
	return &adapter{s, eventHandler, metrics}
}

func (a *adapter) Document(key string) (store.Document, error) {
	d, err := a.store.Document(key)
	if err != nil {
		return nil, err
	}
	return &document{d, a}, nil
}

func (a *adapter) Collection(key string) (store.Collection, error) {
	c, err := a.store.Collection(key)
	if err != nil {
		return nil, err
	}
	return &collection{c, a}, nil
}

func (a *adapter) Close() error {
	return a.store.Close()
}

func (a *adapter) published(op, key string, data []byte, err error) error {
	a.metrics.write(op, err)
	if err != nil {
		glog.V(1).Infof("[%s:%s] %v", op, key, err)
		return err
	}
	collectionKey, keyErr := store.CollectionKey(key)
	if keyErr != nil {
		return keyErr
	}
	a.eventHandler.Publish(collectionKey, data)
	a.eventHandler.Publish(key, data)
	return nil
}

func (d *document) Key() string {
	return d.document.Key()
}

func (d *document) Get() ([]byte, error) {
	return d.document.Get()
}

func (d *document) Set(data []byte) error {
	return d.adapter.published("SET", d.Key(), data, d.document.Set(data))
}

func (d *document) Update(data []byte) error {
	return d.adapter.published("UPDATE", d.Key(), data, d.document.Update(data))
}

func (d *document) Merge(data []byte) error {
	return d.adapter.published("MERGE", d.Key(), data, d.document.Merge(data))
}

func (d *document) Delete() error {
	return d.adapter.published("DELETE", d.Key(), nil, d.document.Delete())
}

func (c *collection) Key() string {
	return c.collection.Key()
}

func (c *collection) Items(q store.Query, o store.Order, l store.Limit) ([]store.CollectionItem, error) {
	return c.collection.Items(q, o, l)
}

func (c *collection) Add(data []byte) (store.Document, error) {
	doc, err := c.collection.Add(data)
	if err != nil {
		c.adapter.metrics.write("ADD", err)
		return nil, err
	}
	return &document{doc, c.adapter}, c.adapter.published("ADD", doc.Key(), data, nil)
}
