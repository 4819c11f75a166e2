package livesync_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/imba3r/kedai/livesync"
	"github.com/imba3r/kedai/session"
	"github.com/imba3r/kedai/store"
)

const (
	menuItems = "artifacts/app/public/data/menuItems"
	orders    = "artifacts/app/public/data/orders"
	customers = "artifacts/app/public/data/customers"
)

type menuItem struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Category string  `json:"category,omitempty"`
}

func decodeMenuItem(id string, data []byte) (menuItem, error) {
	var m menuItem
	err := json.Unmarshal(data, &m)
	return m, err
}

type write struct {
	op   string
	key  string
	data string
}

type fakeSub struct {
	path       string
	sel        store.Selection
	onSnapshot func(livesync.Snapshot)
	onError    func(error)
	cancelled  atomic.Int32
}

// fakeSource records writes and lets tests deliver snapshots by hand.
type fakeSource struct {
	mu      sync.Mutex
	subs    []*fakeSub
	writes  []write
	nextID  string
	err     error
	release chan struct{}
}

func (f *fakeSource) Subscribe(ctx context.Context, path string, sel store.Selection, onSnapshot func(livesync.Snapshot), onError func(error)) (livesync.CancelFunc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &fakeSub{path: path, sel: sel, onSnapshot: onSnapshot, onError: onError}
	f.subs = append(f.subs, s)
	return func() { s.cancelled.Add(1) }, nil
}

func (f *fakeSource) record(op, key string, data []byte) error {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.writes = append(f.writes, write{op: op, key: key, data: string(data)})
	return nil
}

func (f *fakeSource) Append(ctx context.Context, path string, fields []byte) (string, error) {
	if err := f.record("append", path, fields); err != nil {
		return "", err
	}
	return f.nextID, nil
}

func (f *fakeSource) SetFields(ctx context.Context, key string, fields []byte) error {
	return f.record("set", key, fields)
}

func (f *fakeSource) Put(ctx context.Context, key string, fields []byte) error {
	return f.record("put", key, fields)
}

func (f *fakeSource) Delete(ctx context.Context, key string) error {
	return f.record("delete", key, nil)
}

func (f *fakeSource) sub(t *testing.T, path string) *fakeSub {
	t.Helper()
	var found *fakeSub
	eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		for _, s := range f.subs {
			if s.path == path {
				found = s
				return true
			}
		}
		return false
	})
	return found
}

func (f *fakeSource) recorded() []write {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]write(nil), f.writes...)
}

type provider struct {
	calls   atomic.Int32
	release chan struct{}
	err     error
}

func (p *provider) SignIn(ctx context.Context) (session.Identity, error) {
	p.calls.Add(1)
	if p.release != nil {
		<-p.release
	}
	if p.err != nil {
		return session.Identity{}, p.err
	}
	return session.Identity{UID: "u1", Anonymous: true}, nil
}

func newManager(source livesync.Source) (*livesync.Manager, *provider) {
	p := &provider{}
	return livesync.NewManager(source, session.New(p)), p
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(time.Millisecond)
	}
}

func snapshot(collection string, docs map[string]string) livesync.Snapshot {
	s := livesync.Snapshot{}
	for id, value := range docs {
		s = append(s, store.CollectionItem{Key: collection + "/" + id, Value: []byte(value)})
	}
	return s
}

func fieldsOf(t *testing.T, data string) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	return m
}

var errDenied = errors.New("permission denied")
