// Package session establishes the process-wide identity every sync
// operation runs under.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

var (
	ErrAnonymousDisabled = errors.New("anonymous sign-in is disabled")
	ErrUnauthenticated   = errors.New("unauthenticated")
)

type Identity struct {
	UID       string    `json:"uid"`
	Anonymous bool      `json:"anonymous"`
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// expirySkew renews a token this long before it expires, so one handed out
// by Ensure is still valid when it reaches the server.
const expirySkew = 30 * time.Second

// Expired reports whether the identity's token is past, or within skew of,
// its expiry. An identity without an expiry never expires.
func (i Identity) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Add(expirySkew).Before(i.ExpiresAt)
}

type Provider interface {
	SignIn(ctx context.Context) (Identity, error)
}

// Session is created once per process and handed to every consumer. The
// first Ensure signs in; later calls return the same identity. Concurrent
// callers arriving before the first sign-in settles share its result.
//
// A failed sign-in is kept and returned to later callers without retrying
// until Reset is called. An expired identity is dropped and the next Ensure
// signs in again.
type Session struct {
	provider Provider
	group    singleflight.Group

	mu       sync.Mutex
	identity *Identity
	err      error
}

func New(provider Provider) *Session {
	return &Session{provider: provider}
}

func (s *Session) Ensure(ctx context.Context) (Identity, error) {
	if identity, done, err := s.settled(); done {
		return identity, err
	}
	ch := s.group.DoChan("signin", func() (interface{}, error) {
		if identity, done, err := s.settled(); done {
			return identity, err
		}
		// The sign-in outlives any single caller's context.
		identity, err := s.provider.SignIn(context.WithoutCancel(ctx))
		s.mu.Lock()
		defer s.mu.Unlock()
		if err != nil {
			glog.Errorf("[session] sign-in failed: %v", err)
			s.err = err
			return Identity{}, err
		}
		glog.V(1).Infof("[session] signed in as %s", identity.UID)
		s.identity = &identity
		return identity, nil
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return Identity{}, r.Err
		}
		return r.Val.(Identity), nil
	case <-ctx.Done():
		return Identity{}, ctx.Err()
	}
}

func (s *Session) settled() (Identity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity != nil && s.identity.Expired(time.Now()) {
		glog.V(1).Infof("[session] token for %s expired", s.identity.UID)
		s.identity = nil
	}
	if s.identity != nil {
		return *s.identity, true, nil
	}
	if s.err != nil {
		return Identity{}, true, s.err
	}
	return Identity{}, false, nil
}

// Current returns the identity without signing in.
func (s *Session) Current() (Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil || s.identity.Expired(time.Now()) {
		return Identity{}, false
	}
	return *s.identity, true
}

// Reset forgets the identity or the sticky failure so the next Ensure signs
// in again.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = nil
	s.err = nil
}

// Anonymous mints a local identity without a server round trip. It serves
// in-process hubs.
type Anonymous struct{}

func (Anonymous) SignIn(ctx context.Context) (Identity, error) {
	return Identity{UID: uuid.NewString(), Anonymous: true}, nil
}
