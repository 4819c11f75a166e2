// Package kedai is the backing service for the coffee-shop back office: a
// document store whose writes are published to live subscribers.
package kedai

import (
	"encoding/json"
	"errors"

	"github.com/imba3r/kedai/store"
)

// Hub pairs a publishing Store with the PubSub its writes feed.
type Hub struct {
	Store   store.Store
	PubSub  EventHandler
	Metrics *Metrics
}

func New(s store.Store, logEvents bool) *Hub {
	metrics := newMetrics()
	pubSub := newEventHandler(logEvents, metrics)
	return &Hub{
		Store:   newAdapter(s, pubSub, metrics),
		PubSub:  pubSub,
		Metrics: metrics,
	}
}

// Snapshot returns the current state of key: the JSON array of collection
// items chosen by sel for a collection key, the document itself for a
// document key. A missing document is JSON null.
func (h *Hub) Snapshot(key string, sel store.Selection) ([]byte, error) {
	if store.IsCollectionKey(store.Clean(key)) {
		items, err := h.Select(key, sel)
		if err != nil {
			return nil, err
		}
		return json.Marshal(items)
	}
	d, err := h.Store.Document(key)
	if err != nil {
		return nil, err
	}
	data, err := d.Get()
	if errors.Is(err, store.ErrNotFound) {
		return []byte("null"), nil
	}
	return data, err
}

// Select lists the documents of a collection chosen by sel. The zero
// Selection lists every document in identifier order.
func (h *Hub) Select(key string, sel store.Selection) ([]store.CollectionItem, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}
	c, err := h.Store.Collection(key)
	if err != nil {
		return nil, err
	}
	return c.Items(sel.Query, sel.Order, sel.Limit)
}

// SubscribeSnapshots subscribes to key with Snapshot(key, sel) as the
// payload.
func (h *Hub) SubscribeSnapshots(key string, sel store.Selection) chan Event {
	key = store.Clean(key)
	return h.PubSub.SubscribeWithFunc(key, func() ([]byte, error) {
		return h.Snapshot(key, sel)
	})
}

func (h *Hub) Close() error {
	h.PubSub.Close()
	return h.Store.Close()
}
