package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	gws "github.com/gorilla/websocket"

	"github.com/imba3r/kedai/livesync"
	"github.com/imba3r/kedai/session"
	"github.com/imba3r/kedai/store"
	"github.com/imba3r/kedai/websocket"
)

const writeWait = 10 * time.Second

// Client is a livesync source backed by a kedai server. It connects on first
// use, with the session's token, and shares one server subscription among
// all local subscribers of a collection.
//
// A dropped connection fails every subscription and pending request. The
// next call reconnects.
type Client struct {
	url     string
	session *session.Session
	dialer  *gws.Dialer

	mu      sync.Mutex
	conn    *gws.Conn
	closed  bool
	nextReq uint64
	nextSub int
	pending map[uint64]chan reply
	// Server subscriptions by websocket.SubscriptionID.
	keys map[string]*keySubscription
}

type reply struct {
	m   websocket.Message
	err error
}

type keySubscription struct {
	key         string
	sel         store.Selection
	subscribers map[int]*subscriber
	last        livesync.Snapshot
	version     uint64
	ready       bool
}

type subscriber struct {
	mu         sync.Mutex
	version    uint64
	done       atomic.Bool
	onSnapshot func(livesync.Snapshot)
	onError    func(error)
}

// snapshot delivers s unless a newer version got there first.
func (s *subscriber) snapshot(version uint64, snapshot livesync.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done.Load() || version <= s.version {
		return
	}
	s.version = version
	s.onSnapshot(snapshot)
}

func (s *subscriber) fail(err error) {
	if s.done.Swap(true) {
		return
	}
	s.onError(err)
}

// NewClient connects to the server at serverURL, e.g. http://localhost:8080.
func NewClient(serverURL string, sess *session.Session) (*Client, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/sync"
	return &Client{
		url:     u.String(),
		session: sess,
		dialer:  &gws.Dialer{HandshakeTimeout: 10 * time.Second},
		pending: make(map[uint64]chan reply),
		keys:    make(map[string]*keySubscription),
	}, nil
}

func (c *Client) connect(ctx context.Context) (*gws.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if c.conn != nil {
		return c.conn, nil
	}
	identity, err := c.session.Ensure(ctx)
	if err != nil {
		return nil, err
	}
	conn, _, err := c.dialer.DialContext(ctx, c.url+"?token="+url.QueryEscape(identity.Token), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.url, err)
	}
	glog.V(1).Infof("[remote] connected to %s as %s", c.url, identity.UID)
	c.conn = conn
	go c.readLoop(conn)
	return conn, nil
}

// send writes m with a fresh request id. Called with c.mu held.
func (c *Client) send(conn *gws.Conn, m websocket.Message, wait bool) (uint64, chan reply, error) {
	c.nextReq++
	m.RequestID = c.nextReq
	var ch chan reply
	if wait {
		ch = make(chan reply, 1)
		c.pending[m.RequestID] = ch
	}
	data, err := json.Marshal(m)
	if err == nil {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		err = conn.WriteMessage(gws.TextMessage, data)
	}
	if err != nil {
		delete(c.pending, m.RequestID)
		return 0, nil, err
	}
	return m.RequestID, ch, nil
}

func (c *Client) await(ctx context.Context, id uint64, ch chan reply) (websocket.Message, error) {
	select {
	case r := <-ch:
		if r.err != nil {
			return r.m, r.err
		}
		if r.m.Operation == websocket.Failure {
			return r.m, errorFor(r.m.Error)
		}
		return r.m, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return websocket.Message{}, ctx.Err()
	}
}

func (c *Client) request(ctx context.Context, op websocket.Operation, key string, payload []byte) (websocket.Message, error) {
	conn, err := c.connect(ctx)
	if err != nil {
		return websocket.Message{}, err
	}
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return websocket.Message{}, ErrClosed
	}
	id, ch, err := c.send(conn, websocket.Message{Operation: op, Key: key, Payload: payload}, true)
	c.mu.Unlock()
	if err != nil {
		return websocket.Message{}, err
	}
	return c.await(ctx, id, ch)
}

func (c *Client) Subscribe(ctx context.Context, path string, sel store.Selection, onSnapshot func(livesync.Snapshot), onError func(error)) (livesync.CancelFunc, error) {
	key := store.Clean(path)
	if !store.IsCollectionKey(key) {
		return nil, fmt.Errorf("%w: %s", store.ErrInvalidKey, path)
	}
	if err := sel.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	id := websocket.SubscriptionID(key, sel)
	conn, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	sub := &subscriber{onSnapshot: onSnapshot, onError: onError}
	ks, exists := c.keys[id]
	if !exists {
		ks = &keySubscription{key: key, sel: sel, subscribers: make(map[int]*subscriber)}
		c.keys[id] = ks
	}
	c.nextSub++
	sid := c.nextSub
	ks.subscribers[sid] = sub
	var (
		reqID uint64
		ch    chan reply
	)
	if !exists {
		m := websocket.Message{Operation: websocket.Subscribe, Key: key, Parameters: websocket.Parameters(sel)}
		if reqID, ch, err = c.send(conn, m, true); err != nil {
			delete(c.keys, id)
			c.mu.Unlock()
			return nil, err
		}
	}
	cached, version, ready := ks.last, ks.version, ks.ready
	c.mu.Unlock()

	cancel := func() { c.unsubscribe(id, sid, sub) }
	if !exists {
		if _, err := c.await(ctx, reqID, ch); err != nil {
			sub.done.Store(true)
			c.failKey(id, ks, err)
			return nil, err
		}
	}
	if ready {
		go sub.snapshot(version, cached)
	}
	return cancel, nil
}

func (c *Client) unsubscribe(id string, sid int, sub *subscriber) {
	sub.done.Store(true)
	c.mu.Lock()
	defer c.mu.Unlock()
	ks := c.keys[id]
	if ks == nil {
		return
	}
	if _, ok := ks.subscribers[sid]; !ok {
		return
	}
	delete(ks.subscribers, sid)
	if len(ks.subscribers) > 0 {
		return
	}
	delete(c.keys, id)
	c.release(ks)
}

// release ends the server subscription behind ks. Called with c.mu held,
// after ks left c.keys, so a later SUBSCRIBE for the same id follows the
// UNSUBSCRIBE on the wire.
func (c *Client) release(ks *keySubscription) {
	if c.conn == nil {
		return
	}
	m := websocket.Message{Operation: websocket.Unsubscribe, Key: ks.key, Parameters: websocket.Parameters(ks.sel)}
	if _, _, err := c.send(c.conn, m, false); err != nil {
		glog.Warningf("[remote] unsubscribe %s: %v", ks.key, err)
	}
}

// failKey ends every subscriber of ks, if ks is still the live entry for
// id, and releases the server subscription so subscribing again starts
// from a fresh snapshot.
func (c *Client) failKey(id string, ks *keySubscription, err error) {
	c.mu.Lock()
	if ks == nil {
		ks = c.keys[id]
	}
	if ks == nil || c.keys[id] != ks {
		c.mu.Unlock()
		return
	}
	delete(c.keys, id)
	c.release(ks)
	c.mu.Unlock()
	for _, s := range ks.subscribers {
		go s.fail(err)
	}
}

func (c *Client) readLoop(conn *gws.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.drop(conn, err)
			return
		}
		var m websocket.Message
		if err := json.Unmarshal(data, &m); err != nil {
			glog.Warningf("[remote] json.Unmarshal %v", err)
			continue
		}
		switch {
		case m.Operation == websocket.ValueChange:
			c.valueChange(m)
		case m.RequestID != 0:
			c.mu.Lock()
			ch := c.pending[m.RequestID]
			delete(c.pending, m.RequestID)
			c.mu.Unlock()
			if ch != nil {
				ch <- reply{m: m}
			}
		case m.Operation == websocket.Failure:
			c.failKey(websocket.SubscriptionID(store.Clean(m.Key), m.Selection()), nil, errorFor(m.Error))
		}
	}
}

func (c *Client) valueChange(m websocket.Message) {
	id := websocket.SubscriptionID(store.Clean(m.Key), m.Selection())
	var snapshot livesync.Snapshot
	if err := json.Unmarshal(m.Payload, &snapshot); err != nil {
		c.failKey(id, nil, fmt.Errorf("decode snapshot: %w", err))
		return
	}
	c.mu.Lock()
	ks := c.keys[id]
	if ks == nil {
		c.mu.Unlock()
		return
	}
	ks.version++
	ks.last = snapshot
	ks.ready = true
	version := ks.version
	subscribers := make([]*subscriber, 0, len(ks.subscribers))
	for _, s := range ks.subscribers {
		subscribers = append(subscribers, s)
	}
	c.mu.Unlock()
	for _, s := range subscribers {
		go s.snapshot(version, snapshot)
	}
}

func (c *Client) drop(conn *gws.Conn, cause error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	pending, keys := c.pending, c.keys
	c.pending = make(map[uint64]chan reply)
	c.keys = make(map[string]*keySubscription)
	closed := c.closed
	c.mu.Unlock()
	conn.Close()

	if !closed {
		glog.Warningf("[remote] connection lost: %v", cause)
	}
	err := fmt.Errorf("%w: %v", ErrClosed, cause)
	for _, ch := range pending {
		ch <- reply{err: err}
	}
	for _, ks := range keys {
		for _, s := range ks.subscribers {
			go s.fail(err)
		}
	}
}

// Close disconnects and fails everything still open. The client cannot be
// reused.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (c *Client) Append(ctx context.Context, path string, fields []byte) (string, error) {
	m, err := c.request(ctx, websocket.Add, store.Clean(path), fields)
	if err != nil {
		return "", err
	}
	var result websocket.AddResult
	if err := json.Unmarshal(m.Payload, &result); err != nil {
		return "", fmt.Errorf("decode add result: %w", err)
	}
	return result.ID, nil
}

func (c *Client) SetFields(ctx context.Context, key string, fields []byte) error {
	_, err := c.request(ctx, websocket.Update, store.Clean(key), fields)
	return err
}

func (c *Client) Put(ctx context.Context, key string, fields []byte) error {
	_, err := c.request(ctx, websocket.Merge, store.Clean(key), fields)
	return err
}

func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.request(ctx, websocket.Delete, store.Clean(key), nil)
	return err
}

func errorFor(e *websocket.Error) error {
	if e == nil {
		return errors.New("unknown error")
	}
	var sentinel error
	switch e.Code {
	case websocket.CodePermissionDenied:
		sentinel = ErrPermissionDenied
	case websocket.CodeNotFound:
		sentinel = store.ErrNotFound
	case websocket.CodeInvalidArgument:
		sentinel = ErrInvalidArgument
	default:
		return errors.New(e.Message)
	}
	return fmt.Errorf("%w: %s", sentinel, e.Message)
}
