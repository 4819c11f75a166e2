package kedai

import (
	"sync"

	"github.com/golang/glog"
)

// Event is one notification on a subscribed key. Payload is the snapshot
// produced by the subscription's func, or the written data when there is
// none. Err is set when the snapshot func failed.
type Event struct {
	Key     string
	Payload []byte
	Err     error
}

type EventHandler interface {
	Subscribe(key string) chan Event
	SubscribeWithFunc(key string, f SnapshotFunc) chan Event
	// Unsubscribe closes channel. Repeated calls are no-ops.
	Unsubscribe(key string, channel chan Event)
	Publish(key string, data []byte)
	Close()
}

// SnapshotFunc computes the current state of a key at publish time.
type SnapshotFunc func() ([]byte, error)

type eventHandler struct {
	reg       *registry
	logEvents bool
	metrics   *Metrics
}

type cmd struct {
	op      registryOperation
	key     string
	f       SnapshotFunc
	channel chan Event
	data    []byte
}

type topic struct {
	key         string
	subscribers []subscriber
}

type subscriber struct {
	channel chan Event
	f       SnapshotFunc
}

type registry struct {
	cmdChan   chan cmd
	done      chan struct{}
	closeOnce sync.Once
	topics    map[string]*topic
	metrics   *Metrics
}

type registryOperation int

const (
	sub registryOperation = iota
	pub
	unsub
)

func newEventHandler(logEvents bool, metrics *Metrics) EventHandler {
	return &eventHandler{newRegistry(metrics), logEvents, metrics}
}

func (e *eventHandler) Subscribe(key string) chan Event {
	return e.reg.subscribe(key, nil)
}

func (e *eventHandler) SubscribeWithFunc(key string, f SnapshotFunc) chan Event {
	return e.reg.subscribe(key, f)
}

func (e *eventHandler) Unsubscribe(key string, channel chan Event) {
	e.reg.unsubscribe(key, channel)
}

func (e *eventHandler) Publish(key string, data []byte) {
	if e.logEvents {
		glog.Infof("[PUBLISH:%s] %s", key, data)
	}
	e.reg.publish(key, data)
}

func (e *eventHandler) Close() {
	e.reg.close()
}

func (r *registry) subscribe(key string, f SnapshotFunc) chan Event {
	c := make(chan Event, 1)
	if !r.send(cmd{op: sub, channel: c, key: key, f: f}) {
		close(c)
	}
	return c
}

func (r *registry) publish(key string, data []byte) {
	r.send(cmd{op: pub, data: data, key: key})
}

func (r *registry) unsubscribe(key string, c chan Event) {
	r.send(cmd{op: unsub, channel: c, key: key})
}

func (r *registry) send(c cmd) bool {
	select {
	case r.cmdChan <- c:
		return true
	case <-r.done:
		return false
	}
}

func (r *registry) close() {
	r.closeOnce.Do(func() { close(r.done) })
}

func newRegistry(metrics *Metrics) *registry {
	r := &registry{
		cmdChan: make(chan cmd),
		done:    make(chan struct{}),
		topics:  make(map[string]*topic),
		metrics: metrics,
	}
	go r.start()
	return r
}

func (r *registry) start() {
	for {
		select {
		case cmd := <-r.cmdChan:
			switch cmd.op {
			case pub:
				r.doPublish(cmd.key, cmd.data)
			case sub:
				r.doSubscribe(cmd.key, cmd.f, cmd.channel)
			case unsub:
				r.doUnsubscribe(cmd.key, cmd.channel)
			}
		case <-r.done:
			for key, t := range r.topics {
				for _, s := range t.subscribers {
					close(s.channel)
				}
				delete(r.topics, key)
			}
			r.metrics.subscriptions.Set(0)
			return
		}
	}
}

func (r *registry) doPublish(key string, data []byte) {
	t, exists := r.topics[key]
	if !exists {
		return
	}
	for _, s := range t.subscribers {
		event := Event{Key: key, Payload: data}
		if s.f != nil {
			payload, err := s.f()
			event = Event{Key: key, Payload: payload, Err: err}
		}
		deliverLatest(s.channel, event)
		r.metrics.publishes.Inc()
	}
}

// deliverLatest replaces an undelivered event with the newer one. Events
// carry full state, so only the newest matters to a slow reader.
func deliverLatest(c chan Event, event Event) {
	select {
	case c <- event:
		return
	default:
	}
	select {
	case <-c:
	default:
	}
	select {
	case c <- event:
	default:
	}
}

func (r *registry) doSubscribe(key string, f SnapshotFunc, channel chan Event) {
	s := subscriber{channel: channel, f: f}
	t, exists := r.topics[key]
	if !exists {
		r.topics[key] = &topic{
			key:         key,
			subscribers: []subscriber{s},
		}
	} else {
		t.subscribers = append(t.subscribers, s)
	}
	r.metrics.subscriptions.Inc()
}

func (r *registry) doUnsubscribe(topicName string, channel chan Event) {
	t, exists := r.topics[topicName]
	if !exists {
		return
	}
	position := -1
	for i, s := range t.subscribers {
		if s.channel == channel {
			position = i
		}
	}
	if position < 0 {
		return
	}
	close(channel)
	r.metrics.subscriptions.Dec()
	t.subscribers[position] = t.subscribers[len(t.subscribers)-1]
	t.subscribers = t.subscribers[:len(t.subscribers)-1]
	if len(t.subscribers) == 0 {
		delete(r.topics, topicName)
	}
}
