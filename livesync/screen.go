package livesync

import (
	"context"
	"sync"
)

// State is what a list screen renders.
type State[T any] struct {
	Items      []T
	Loading    bool
	Err        error
	Submitting bool
}

// Screen binds one collection's subscription to a gateway writing to the
// same collection. Closing it tears both down.
type Screen[T any] struct {
	collection string
	sub        *Subscription[T]
	gateway    *Gateway
	remove     []func()

	mu        sync.Mutex
	listeners map[int]func()
	next      int
}

func OpenScreen[T any](ctx context.Context, m *Manager, collection string, decode Decoder[T]) (*Screen[T], error) {
	sub, err := Subscribe(ctx, m, collection, decode)
	if err != nil {
		return nil, err
	}
	s := &Screen[T]{
		collection: sub.Path(),
		sub:        sub,
		gateway:    NewGateway(m),
		listeners:  make(map[int]func()),
	}
	s.remove = []func(){
		sub.OnChange(s.changed),
		s.gateway.OnChange(s.changed),
	}
	return s, nil
}

func (s *Screen[T]) changed() {
	s.mu.Lock()
	listeners := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()
	call(listeners)
}

func (s *Screen[T]) State() State[T] {
	return State[T]{
		Items:      s.sub.Items(),
		Loading:    s.sub.Loading(),
		Err:        s.sub.Err(),
		Submitting: s.gateway.Submitting(),
	}
}

func (s *Screen[T]) Subscription() *Subscription[T] {
	return s.sub
}

func (s *Screen[T]) Gateway() *Gateway {
	return s.gateway
}

func (s *Screen[T]) Create(ctx context.Context, fields any) (string, error) {
	return s.gateway.Create(ctx, s.collection, fields)
}

func (s *Screen[T]) Update(ctx context.Context, id string, fields any) error {
	return s.gateway.Update(ctx, s.collection, id, fields)
}

func (s *Screen[T]) Put(ctx context.Context, id string, fields any) error {
	return s.gateway.Put(ctx, s.collection, id, fields)
}

func (s *Screen[T]) Remove(ctx context.Context, id string) error {
	return s.gateway.Remove(ctx, s.collection, id)
}

// OnChange registers fn to run after any state change.
func (s *Screen[T]) OnChange(fn func()) func() {
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

func (s *Screen[T]) Close() {
	for _, remove := range s.remove {
		remove()
	}
	s.mu.Lock()
	s.listeners = map[int]func(){}
	s.mu.Unlock()
	s.gateway.Close()
	s.sub.Unsubscribe()
}
