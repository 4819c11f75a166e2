package livesync

import (
	"context"
	"fmt"
	"sync"

	"github.com/golang/glog"

	"github.com/imba3r/kedai/store"
)

// Subscription mirrors one collection. The view is replaced wholesale on
// every snapshot and is read-only for everyone else.
type Subscription[T any] struct {
	path   string
	sel    store.Selection
	decode Decoder[T]

	mu        sync.Mutex
	view      View[T]
	order     []string
	loading   bool
	err       error
	closed    bool
	cancel    CancelFunc
	onError   []func(error)
	listeners map[int]func()
	next      int
	changes   chan struct{}
}

// Subscribe starts mirroring path. The session is established and the
// source subscribed in the background; until the first snapshot or an
// error arrives Loading reports true. The returned error covers only an
// invalid path.
func Subscribe[T any](ctx context.Context, m *Manager, path string, decode Decoder[T]) (*Subscription[T], error) {
	return SubscribeSelected(ctx, m, path, store.Selection{}, decode)
}

// SubscribeSelected is Subscribe narrowed to the documents sel chooses.
// With an ordered selection Items keeps the order the source sent.
func SubscribeSelected[T any](ctx context.Context, m *Manager, path string, sel store.Selection, decode Decoder[T]) (*Subscription[T], error) {
	path, err := collectionPath(path)
	if err != nil {
		return nil, err
	}
	if err := sel.Validate(); err != nil {
		return nil, fmt.Errorf("invalid selection: %w", err)
	}
	s := &Subscription[T]{
		path:      path,
		sel:       sel,
		decode:    decode,
		view:      View[T]{},
		loading:   true,
		listeners: make(map[int]func()),
		changes:   make(chan struct{}, 1),
	}
	go s.start(context.WithoutCancel(ctx), m)
	return s, nil
}

func (s *Subscription[T]) start(ctx context.Context, m *Manager) {
	if err := m.ensure(ctx); err != nil {
		s.fail(err)
		return
	}
	cancel, err := m.source.Subscribe(ctx, s.path, s.sel, s.deliver, s.fail)
	if err != nil {
		s.fail(err)
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		return
	}
	s.cancel = cancel
	s.mu.Unlock()
}

// deliver replaces the view with the decoded snapshot. Snapshots arriving
// after Unsubscribe are dropped.
func (s *Subscription[T]) deliver(snapshot Snapshot) {
	view, order := decodeInOrder(snapshot, s.decode)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		glog.V(2).Infof("[livesync] dropped snapshot for closed %s", s.path)
		return
	}
	s.view = view
	s.order = order
	s.loading = false
	s.err = nil
	listeners := s.notifyLocked()
	s.mu.Unlock()
	call(listeners)
}

func (s *Subscription[T]) fail(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	glog.Errorf("[livesync] %s: %v", s.path, err)
	s.loading = false
	s.err = err
	onError := append([]func(error){}, s.onError...)
	listeners := s.notifyLocked()
	s.mu.Unlock()
	for _, fn := range onError {
		fn(err)
	}
	call(listeners)
}

func (s *Subscription[T]) notifyLocked() []func() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
	listeners := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	return listeners
}

func call(listeners []func()) {
	for _, fn := range listeners {
		fn()
	}
}

func (s *Subscription[T]) Path() string {
	return s.path
}

// View returns a copy of the current mirror.
func (s *Subscription[T]) View() View[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.clone()
}

func (s *Subscription[T]) Selection() store.Selection {
	return s.sel
}

// IDs returns the current identifiers in the order Items uses.
func (s *Subscription[T]) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idsLocked()
}

func (s *Subscription[T]) idsLocked() []string {
	if !s.sel.Ordered() {
		return s.view.IDs()
	}
	return append([]string(nil), s.order...)
}

// Items returns the current records ordered by identifier, or in the
// selection's field order when it has one.
func (s *Subscription[T]) Items() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.idsLocked()
	items := make([]T, 0, len(ids))
	for _, id := range ids {
		items = append(items, s.view[id])
	}
	return items
}

func (s *Subscription[T]) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the session or subscription failure, if any. There is no
// automatic retry; subscribe again to recover.
func (s *Subscription[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// OnChange registers fn to run after every snapshot or failure. The
// returned func removes it.
func (s *Subscription[T]) OnChange(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// OnError registers fn to receive the failure that settled the
// subscription. A failure that already happened is reported immediately.
func (s *Subscription[T]) OnError(fn func(error)) {
	s.mu.Lock()
	err := s.err
	if err == nil && !s.closed {
		s.onError = append(s.onError, fn)
	}
	s.mu.Unlock()
	if err != nil {
		fn(err)
	}
}

// Changes signals state changes. Signals coalesce; read the state after
// receiving. The channel is closed by Unsubscribe.
func (s *Subscription[T]) Changes() <-chan struct{} {
	return s.changes
}

// Unsubscribe stops the channel. It is safe to call more than once.
func (s *Subscription[T]) Unsubscribe() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancel := s.cancel
	s.cancel = nil
	s.listeners = map[int]func(){}
	s.onError = nil
	close(s.changes)
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Subscription[T]) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
