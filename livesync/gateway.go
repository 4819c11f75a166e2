package livesync

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Jeffail/gabs/v2"
	"github.com/golang/glog"

	"github.com/imba3r/kedai/store"
)

type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpPut    Op = "put"
	OpRemove Op = "remove"
)

// Settled describes a finished mutation. ID is the assigned identifier for
// a successful create.
type Settled struct {
	Op         Op
	Collection string
	ID         string
	Err        error
}

// Gateway performs writes against the Source and tracks how many are in
// flight. It never touches a view; the next snapshot reflects the write.
//
// Submitted writes cannot be cancelled. After Close they still complete
// remotely but no listener hears about it.
type Gateway struct {
	m *Manager

	mu        sync.Mutex
	inflight  int
	closed    bool
	settled   map[int]func(Settled)
	changed   map[int]func()
	listeners int
}

func NewGateway(m *Manager) *Gateway {
	return &Gateway{
		m:       m,
		settled: make(map[int]func(Settled)),
		changed: make(map[int]func()),
	}
}

// Create appends fields as a new document and returns the identifier the
// store assigned.
func (g *Gateway) Create(ctx context.Context, collection string, fields any) (string, error) {
	path, err := collectionPath(collection)
	if err != nil {
		return "", err
	}
	body, err := payload(fields)
	if err != nil {
		return "", err
	}
	return g.run(ctx, OpCreate, path, "", func(ctx context.Context) (string, error) {
		return g.m.source.Append(ctx, path, body)
	})
}

// Update overwrites the given fields of an existing document.
func (g *Gateway) Update(ctx context.Context, collection, id string, fields any) error {
	return g.write(ctx, OpUpdate, collection, id, fields, g.m.source.SetFields)
}

// Put is Update that creates the document when it does not exist.
func (g *Gateway) Put(ctx context.Context, collection, id string, fields any) error {
	return g.write(ctx, OpPut, collection, id, fields, g.m.source.Put)
}

// Remove deletes the document. Confirming with the user is the caller's job.
func (g *Gateway) Remove(ctx context.Context, collection, id string) error {
	path, key, err := documentKey(collection, id)
	if err != nil {
		return err
	}
	_, err = g.run(ctx, OpRemove, path, id, func(ctx context.Context) (string, error) {
		return id, g.m.source.Delete(ctx, key)
	})
	return err
}

func (g *Gateway) write(ctx context.Context, op Op, collection, id string, fields any, fn func(context.Context, string, []byte) error) error {
	path, key, err := documentKey(collection, id)
	if err != nil {
		return err
	}
	body, err := payload(fields)
	if err != nil {
		return err
	}
	_, err = g.run(ctx, op, path, id, func(ctx context.Context) (string, error) {
		return id, fn(ctx, key, body)
	})
	return err
}

func (g *Gateway) run(ctx context.Context, op Op, collection, id string, fn func(context.Context) (string, error)) (string, error) {
	if !g.begin() {
		return "", ErrClosed
	}
	ctx = context.WithoutCancel(ctx)
	err := g.m.ensure(ctx)
	if err == nil {
		id, err = fn(ctx)
	}
	if err != nil {
		glog.Warningf("[livesync] %s %s/%s: %v", op, collection, id, err)
	} else {
		glog.V(1).Infof("[livesync] %s %s/%s", op, collection, id)
	}
	g.settle(Settled{Op: op, Collection: collection, ID: id, Err: err})
	return id, err
}

func (g *Gateway) begin() bool {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return false
	}
	g.inflight++
	changed := g.changedLocked()
	g.mu.Unlock()
	call(changed)
	return true
}

func (g *Gateway) settle(s Settled) {
	g.mu.Lock()
	g.inflight--
	if g.closed {
		g.mu.Unlock()
		return
	}
	settled := make([]func(Settled), 0, len(g.settled))
	for _, fn := range g.settled {
		settled = append(settled, fn)
	}
	changed := g.changedLocked()
	g.mu.Unlock()
	for _, fn := range settled {
		fn(s)
	}
	call(changed)
}

func (g *Gateway) changedLocked() []func() {
	changed := make([]func(), 0, len(g.changed))
	for _, fn := range g.changed {
		changed = append(changed, fn)
	}
	return changed
}

// Submitting reports whether any mutation is in flight.
func (g *Gateway) Submitting() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inflight > 0
}

// OnSettled registers fn to run when a mutation finishes.
func (g *Gateway) OnSettled(fn func(Settled)) func() {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.listeners
	g.listeners++
	g.settled[id] = fn
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.settled, id)
	}
}

// OnChange registers fn to run whenever Submitting may have changed.
func (g *Gateway) OnChange(fn func()) func() {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.listeners
	g.listeners++
	g.changed[id] = fn
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.changed, id)
	}
}

// Close refuses new mutations and silences the ones still in flight.
func (g *Gateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	g.settled = map[int]func(Settled){}
	g.changed = map[int]func(){}
}

func documentKey(collection, id string) (string, string, error) {
	path, err := collectionPath(collection)
	if err != nil {
		return "", "", err
	}
	key, err := store.DocumentKey(path, id)
	if err != nil {
		return "", "", err
	}
	return path, key, nil
}

// payload encodes fields as a JSON object without an "id" field. The
// identifier is document metadata and is never written as a field.
func payload(fields any) ([]byte, error) {
	var data []byte
	switch f := fields.(type) {
	case []byte:
		data = f
	case json.RawMessage:
		data = f
	default:
		var err error
		if data, err = json.Marshal(fields); err != nil {
			return nil, fmt.Errorf("encode fields: %w", err)
		}
	}
	c, err := gabs.ParseJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrNotObject, err)
	}
	if _, ok := c.Data().(map[string]interface{}); !ok {
		return nil, store.ErrNotObject
	}
	if c.Exists("id") {
		if err := c.Delete("id"); err != nil {
			return nil, err
		}
	}
	return c.Bytes(), nil
}
