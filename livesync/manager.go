// Package livesync keeps typed, in-memory mirrors of remote collections
// current and routes writes back through the same remote source.
//
// A view is never patched locally. Every write goes to the Source and shows
// up in the view only when the next snapshot arrives.
package livesync

import (
	"context"
	"errors"
	"fmt"

	"github.com/imba3r/kedai/session"
	"github.com/imba3r/kedai/store"
)

var ErrClosed = errors.New("livesync: closed")

// Manager is created once per process and passed to every screen. It owns
// the Source and the session that gates all of its operations.
type Manager struct {
	source  Source
	session *session.Session
}

func NewManager(source Source, sess *session.Session) *Manager {
	return &Manager{source: source, session: sess}
}

func (m *Manager) Session() *session.Session {
	return m.session
}

// ensure signs in before any source operation.
func (m *Manager) ensure(ctx context.Context) error {
	if _, err := m.session.Ensure(ctx); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	return nil
}

func collectionPath(path string) (string, error) {
	path = store.Clean(path)
	if !store.IsCollectionKey(path) {
		return "", fmt.Errorf("%w: %q is not a collection", store.ErrInvalidKey, path)
	}
	return path, nil
}
