package remote_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/imba3r/kedai"
	"github.com/imba3r/kedai/livesync"
	"github.com/imba3r/kedai/session"
	"github.com/imba3r/kedai/store/memory"
	"github.com/imba3r/kedai/websocket"
)

const menuItems = "artifacts/app/public/data/menuItems"

type menuItem struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

func decodeMenuItem(id string, data []byte) (menuItem, error) {
	var m menuItem
	err := json.Unmarshal(data, &m)
	return m, err
}

// recorder collects the callbacks of one source subscription.
type recorder struct {
	mu        sync.Mutex
	snapshots []livesync.Snapshot
	err       error
}

func (r *recorder) onSnapshot(s livesync.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, s)
}

func (r *recorder) onError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *recorder) last() (livesync.Snapshot, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snapshots) == 0 {
		return nil, 0
	}
	return r.snapshots[len(r.snapshots)-1], len(r.snapshots)
}

func (r *recorder) failure() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func newServer(t *testing.T, allowAnonymous bool) (*httptest.Server, *kedai.Hub) {
	t.Helper()
	hub := kedai.New(memory.New(), false)
	issuer := session.NewIssuer("secret", time.Hour, allowAnonymous)
	mux := http.NewServeMux()
	mux.Handle("/session", issuer)
	mux.Handle("/sync", websocket.NewHandler(hub, issuer, "app").HandlerFunc())
	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		server.Close()
		hub.Close()
	})
	return server, hub
}
