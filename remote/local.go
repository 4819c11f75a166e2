// Package remote provides livesync sources: Local talks to an in-process
// hub, Client to a kedai server over the sync websocket.
package remote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/imba3r/kedai"
	"github.com/imba3r/kedai/livesync"
	"github.com/imba3r/kedai/store"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrClosed           = errors.New("connection closed")
)

// Local serves a hub in the same process.
type Local struct {
	hub *kedai.Hub
}

func NewLocal(hub *kedai.Hub) *Local {
	return &Local{hub: hub}
}

// Subscribe re-reads the selected documents on every change published for
// path.
func (l *Local) Subscribe(ctx context.Context, path string, sel store.Selection, onSnapshot func(livesync.Snapshot), onError func(error)) (livesync.CancelFunc, error) {
	key := store.Clean(path)
	if !store.IsCollectionKey(key) {
		return nil, fmt.Errorf("%w: %s", store.ErrInvalidKey, path)
	}
	if err := sel.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	channel := l.hub.PubSub.Subscribe(key)
	var (
		once      sync.Once
		cancelled atomic.Bool
	)
	cancel := func() {
		once.Do(func() {
			cancelled.Store(true)
			l.hub.PubSub.Unsubscribe(key, channel)
		})
	}
	go func() {
		deliver := func() bool {
			items, err := l.hub.Select(key, sel)
			if err != nil {
				glog.Errorf("[remote] %s: %v", key, err)
				cancel()
				onError(err)
				return false
			}
			onSnapshot(items)
			return true
		}
		if !deliver() {
			return
		}
		for e := range channel {
			if e.Err != nil {
				cancel()
				onError(e.Err)
				return
			}
			if !deliver() {
				return
			}
		}
		if !cancelled.Load() {
			onError(ErrClosed)
		}
	}()
	return cancel, nil
}

func (l *Local) Append(ctx context.Context, path string, fields []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c, err := l.hub.Store.Collection(path)
	if err != nil {
		return "", err
	}
	d, err := c.Add(fields)
	if err != nil {
		return "", err
	}
	return store.DocumentID(d.Key()), nil
}

func (l *Local) SetFields(ctx context.Context, key string, fields []byte) error {
	return l.document(ctx, key, func(d store.Document) error { return d.Update(fields) })
}

func (l *Local) Put(ctx context.Context, key string, fields []byte) error {
	return l.document(ctx, key, func(d store.Document) error { return d.Merge(fields) })
}

func (l *Local) Delete(ctx context.Context, key string) error {
	return l.document(ctx, key, store.Document.Delete)
}

func (l *Local) document(ctx context.Context, key string, fn func(store.Document) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d, err := l.hub.Store.Document(key)
	if err != nil {
		return err
	}
	return fn(d)
}
