package websocket

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/imba3r/kedai"
	"github.com/imba3r/kedai/session"
	"github.com/imba3r/kedai/store"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	readLimit  = 1 << 20
)

// Verifier authenticates the upgrade request.
type Verifier interface {
	VerifyRequest(r *http.Request) (session.Identity, error)
}

type Handler struct {
	hub      *kedai.Hub
	verifier Verifier
	scope    string
	upgrader websocket.Upgrader
}

// NewHandler serves the sync protocol for keys under artifacts/<appID>/.
func NewHandler(hub *kedai.Hub, verifier Verifier, appID string) *Handler {
	return &Handler{
		hub:      hub,
		verifier: verifier,
		scope:    "artifacts/" + appID + "/",
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type connection struct {
	id       string
	handler  *Handler
	conn     *websocket.Conn
	identity session.Identity

	writeMutex sync.Mutex

	// Subscriptions to the hub, mapped by SubscriptionID. Only the read loop
	// touches it.
	subscriptions map[string]subscription
}

type subscription struct {
	key     string
	channel chan kedai.Event
}

func (h *Handler) HandlerFunc() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := h.verifier.VerifyRequest(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			glog.Errorf("[ERR] websocket.Upgrader.Upgrade %v", err)
			return
		}
		c := &connection{
			id:            uuid.NewString(),
			handler:       h,
			conn:          conn,
			identity:      identity,
			subscriptions: make(map[string]subscription),
		}
		glog.V(1).Infof("[ws:%s] connected uid=%s", c.id, identity.UID)
		done := make(chan struct{})
		go c.ping(done)
		c.readLoop()
		close(done)
		for _, s := range c.subscriptions {
			h.hub.PubSub.Unsubscribe(s.key, s.channel)
		}
		conn.Close()
		glog.V(1).Infof("[ws:%s] closed", c.id)
	}
}

func (c *connection) readLoop() {
	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		msgType, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				glog.Warningf("[ws:%s] read: %v", c.id, err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			glog.Warningf("[ws:%s] messageType must be websocket.TextMessage", c.id)
			continue
		}
		var m Message
		if err := json.Unmarshal(msg, &m); err != nil {
			glog.Warningf("[ws:%s] json.Unmarshal %v", c.id, err)
			continue
		}
		c.handle(m)
	}
}

func (c *connection) handle(m Message) {
	key := store.Clean(m.Key)
	if !strings.HasPrefix(key+"/", c.handler.scope) {
		c.fail(m, CodePermissionDenied, "permission denied: "+m.Key)
		return
	}
	switch m.Operation {
	case Subscribe:
		if !store.IsCollectionKey(key) && !store.IsDocumentKey(key) {
			c.fail(m, CodeInvalidArgument, "invalid key: "+m.Key)
			return
		}
		sel := m.Selection()
		if err := sel.Validate(); err != nil {
			c.fail(m, CodeInvalidArgument, err.Error())
			return
		}
		c.reply(m, nil)
		id := SubscriptionID(key, sel)
		if _, exists := c.subscriptions[id]; exists {
			// Already listening; the subscriber starts over from the current
			// state.
			c.sendSnapshot(key, sel)
			return
		}
		channel := c.handler.hub.SubscribeSnapshots(key, sel)
		c.subscriptions[id] = subscription{key: key, channel: channel}
		go c.listen(key, sel, channel)
	case Unsubscribe:
		id := SubscriptionID(key, m.Selection())
		if s, exists := c.subscriptions[id]; exists {
			delete(c.subscriptions, id)
			c.handler.hub.PubSub.Unsubscribe(s.key, s.channel)
		}
		c.reply(m, nil)
	case Add:
		col, err := c.handler.hub.Store.Collection(key)
		if err != nil {
			c.failErr(m, err)
			return
		}
		d, err := col.Add(m.Payload)
		if err != nil {
			c.failErr(m, err)
			return
		}
		payload, _ := json.Marshal(AddResult{ID: store.DocumentID(d.Key())})
		c.reply(m, payload)
	case Set, Update, Merge, Delete:
		d, err := c.handler.hub.Store.Document(key)
		if err != nil {
			c.failErr(m, err)
			return
		}
		switch m.Operation {
		case Set:
			err = d.Set(m.Payload)
		case Update:
			err = d.Update(m.Payload)
		case Merge:
			err = d.Merge(m.Payload)
		case Delete:
			err = d.Delete()
		}
		if err != nil {
			c.failErr(m, err)
			return
		}
		c.reply(m, nil)
	default:
		c.fail(m, CodeInvalidArgument, "unknown operation "+string(m.Operation))
	}
}

// listen sends the current snapshot of key, then every published one, until
// the subscription is closed.
func (c *connection) listen(key string, sel store.Selection, channel chan kedai.Event) {
	c.sendSnapshot(key, sel)
	for e := range channel {
		if e.Err != nil {
			c.subscriptionFailed(key, sel, e.Err)
			continue
		}
		c.writeMessage(Message{Operation: ValueChange, Key: key, Parameters: Parameters(sel), Payload: e.Payload})
	}
}

func (c *connection) sendSnapshot(key string, sel store.Selection) {
	snapshot, err := c.handler.hub.Snapshot(key, sel)
	if err != nil {
		c.subscriptionFailed(key, sel, err)
		return
	}
	c.writeMessage(Message{Operation: ValueChange, Key: key, Parameters: Parameters(sel), Payload: snapshot})
}

func (c *connection) subscriptionFailed(key string, sel store.Selection, err error) {
	glog.Errorf("[ERR:Subscribe] %s %v", key, err)
	c.writeMessage(Message{
		Operation:  Failure,
		Key:        key,
		Parameters: Parameters(sel),
		Error:      &Error{Code: CodeInternal, Message: err.Error()},
	})
}

func (c *connection) reply(m Message, payload []byte) {
	c.writeMessage(Message{Operation: Result, Key: m.Key, RequestID: m.RequestID, Payload: payload})
}

func (c *connection) failErr(m Message, err error) {
	glog.V(1).Infof("[ERR:%s] %s %v", m.Operation, m.Key, err)
	code := CodeInternal
	switch {
	case errors.Is(err, store.ErrNotFound):
		code = CodeNotFound
	case errors.Is(err, store.ErrInvalidKey), errors.Is(err, store.ErrNotObject):
		code = CodeInvalidArgument
	}
	c.fail(m, code, err.Error())
}

func (c *connection) fail(m Message, code, message string) {
	c.writeMessage(Message{
		Operation: Failure,
		Key:       m.Key,
		RequestID: m.RequestID,
		Error:     &Error{Code: code, Message: message},
	})
}

func (c *connection) writeMessage(m Message) {
	data, err := json.Marshal(m)
	if err != nil {
		glog.Errorf("[ERR] json.Marshal %v", err)
		return
	}
	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		glog.V(1).Infof("[ws:%s] write: %v", c.id, err)
	}
}

func (c *connection) ping(done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.writeMutex.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMutex.Unlock()
			if err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
