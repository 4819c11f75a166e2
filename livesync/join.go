package livesync

import (
	"sync"
)

// Joined is one primary record with the display value looked up from the
// related view. Related holds the fallback when the foreign key has no
// match.
type Joined[P any] struct {
	ID      string
	Record  P
	Related string
	Found   bool
}

// Join attaches display(related[foreignKey(p)]) to every primary record,
// substituting fallback for misses. It reads both views once, never
// mutates them, and orders the result by primary identifier.
func Join[P, R any](primary View[P], related View[R], foreignKey func(P) string, display func(R) string, fallback string) []Joined[P] {
	joined := make([]Joined[P], 0, len(primary))
	for _, id := range primary.IDs() {
		record := primary[id]
		j := Joined[P]{ID: id, Record: record, Related: fallback}
		if r, ok := related[foreignKey(record)]; ok {
			j.Related = display(r)
			j.Found = true
		}
		joined = append(joined, j)
	}
	return joined
}

// JoinView keeps a Join of two subscriptions current.
type JoinView[P, R any] struct {
	primary *Subscription[P]
	related *Subscription[R]
	join    func(View[P], View[R]) []Joined[P]
	remove  []func()

	// Held from reading the inputs until the result is stored, so a join
	// of older inputs never replaces one of newer inputs.
	recomputing sync.Mutex

	mu        sync.Mutex
	records   []Joined[P]
	closed    bool
	listeners map[int]func()
	next      int
}

func NewJoinView[P, R any](primary *Subscription[P], related *Subscription[R], foreignKey func(P) string, display func(R) string, fallback string) *JoinView[P, R] {
	j := &JoinView[P, R]{
		primary: primary,
		related: related,
		join: func(p View[P], r View[R]) []Joined[P] {
			return Join(p, r, foreignKey, display, fallback)
		},
		listeners: make(map[int]func()),
	}
	j.remove = []func(){
		primary.OnChange(j.recompute),
		related.OnChange(j.recompute),
	}
	j.recompute()
	return j
}

func (j *JoinView[P, R]) recompute() {
	j.recomputing.Lock()
	records := j.join(j.primary.View(), j.related.View())
	j.mu.Lock()
	j.recomputing.Unlock()
	if j.closed {
		j.mu.Unlock()
		return
	}
	j.records = records
	listeners := make([]func(), 0, len(j.listeners))
	for _, fn := range j.listeners {
		listeners = append(listeners, fn)
	}
	j.mu.Unlock()
	call(listeners)
}

func (j *JoinView[P, R]) Records() []Joined[P] {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]Joined[P](nil), j.records...)
}

// Loading reports whether either input is still waiting for its first
// snapshot.
func (j *JoinView[P, R]) Loading() bool {
	return j.primary.Loading() || j.related.Loading()
}

// Err returns the first input failure.
func (j *JoinView[P, R]) Err() error {
	if err := j.primary.Err(); err != nil {
		return err
	}
	return j.related.Err()
}

func (j *JoinView[P, R]) OnChange(fn func()) func() {
	j.mu.Lock()
	defer j.mu.Unlock()
	id := j.next
	j.next++
	j.listeners[id] = fn
	return func() {
		j.mu.Lock()
		defer j.mu.Unlock()
		delete(j.listeners, id)
	}
}

// Close detaches from the inputs. It does not unsubscribe them.
func (j *JoinView[P, R]) Close() {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return
	}
	j.closed = true
	j.listeners = map[int]func(){}
	j.mu.Unlock()
	for _, remove := range j.remove {
		remove()
	}
}
